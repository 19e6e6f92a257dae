package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/seagrayinc/overdrive/pkg/overdrive"
)

const (
	DefaultExplorationSpeed        = 450
	DefaultExplorationAcceleration = 500
	DefaultMaxRetries              = 3

	stopAcceleration = 500

	// minLoopPieces is the smallest piece count that can close a loop.
	minLoopPieces = 4
)

var (
	ErrAlreadyScanning = errors.New("track: already scanning")
	ErrInvalidTrack    = errors.New("track: invalid track")
)

// Origin is where every scan starts.
var Origin = Position{X: 0, Y: 0, Direction: East}

// Vehicle is the part of a vehicle the scanner drives.
type Vehicle interface {
	AddListener(overdrive.Listener) overdrive.ListenerID
	RemoveListener(overdrive.ListenerID)
	SetSpeed(ctx context.Context, speed, acceleration uint16) error
	ChangeLane(ctx context.Context, offset float32) error
}

type State uint8

const (
	Idle State = iota
	Mapping
	Validating
	Failed
	Succeeded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Mapping:
		return "mapping"
	case Validating:
		return "validating"
	case Failed:
		return "failed"
	case Succeeded:
		return "succeeded"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

type Option func(*Scanner)

// WithExplorationSpeed sets the speed the vehicle drives at while the loop is mapped.
func WithExplorationSpeed(speed, acceleration uint16) Option {
	return func(s *Scanner) {
		s.speed = speed
		s.acceleration = acceleration
	}
}

// WithMaxRetries sets how many failed validation passes end the scan.
func WithMaxRetries(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithMeter replaces the global meter.
func WithMeter(m metric.Meter) Option {
	return func(s *Scanner) {
		s.meter = m
	}
}

// Scanner builds a map of a closed track loop from the telemetry of a vehicle driving it.
//
// The loop is driven once to record every piece, and a second time to confirm that the
// recorded pieces repeat. A mismatch on the second pass throws the map away and starts
// over, until the retry budget runs out.
type Scanner struct {
	speed        uint16
	acceleration uint16
	maxRetries   int
	meter        metric.Meter

	scans   metric.Int64Counter
	retried metric.Int64Counter
	mapped  metric.Int64Counter

	mu        sync.Mutex
	state     State
	scanID    string
	pieces    []Piece
	position  Position
	cursor    int
	retries   int
	tracking  bool
	done      chan State
	listeners map[overdrive.ListenerID]func([]Piece)
}

// NewScanner creates a Scanner. Metrics go to the global OTel meter (no-op if not configured)
// unless WithMeter is given.
func NewScanner(opts ...Option) (*Scanner, error) {
	s := &Scanner{
		speed:        DefaultExplorationSpeed,
		acceleration: DefaultExplorationAcceleration,
		maxRetries:   DefaultMaxRetries,
		position:     Origin,
		listeners:    make(map[overdrive.ListenerID]func([]Piece)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meter == nil {
		s.meter = meter()
	}

	var err error

	s.scans, err = s.meter.Int64Counter(
		"track.scans",
		metric.WithDescription("Completed track scans by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scans counter: %w", err)
	}

	s.retried, err = s.meter.Int64Counter(
		"track.validation.retries",
		metric.WithDescription("Validation passes that did not match the mapped loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retries counter: %w", err)
	}

	s.mapped, err = s.meter.Int64Counter(
		"track.pieces.mapped",
		metric.WithDescription("Road pieces recorded while mapping"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pieces counter: %w", err)
	}

	return s, nil
}

// AddListener registers fn to receive a copy of the pieces each time the map changes.
func (s *Scanner) AddListener(fn func([]Piece)) overdrive.ListenerID {
	id := overdrive.ListenerID(uuid.NewString())
	s.mu.Lock()
	s.listeners[id] = fn
	s.mu.Unlock()
	return id
}

func (s *Scanner) RemoveListener(id overdrive.ListenerID) {
	s.mu.Lock()
	delete(s.listeners, id)
	s.mu.Unlock()
}

func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pieces returns a copy of the pieces recorded so far.
func (s *Scanner) Pieces() []Piece {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Scan drives v around the loop until the map is validated, the retry budget is spent, or
// ctx ends. Only one scan runs at a time; a second call returns ErrAlreadyScanning without
// touching the running scan or the vehicle. The vehicle is stopped before Scan returns.
func (s *Scanner) Scan(ctx context.Context, v Vehicle) ([]Piece, error) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return nil, ErrAlreadyScanning
	}
	s.resetLocked()
	s.retries = 0
	s.state = Mapping
	s.scanID = uuid.NewString()
	done := make(chan State, 1)
	s.done = done
	log := slog.With(slog.String("scan", s.scanID))
	s.mu.Unlock()

	log.Info("track scan started",
		slog.Int("speed", int(s.speed)),
		slog.Int("max_retries", s.maxRetries))

	id := v.AddListener(s.handle)

	var (
		result State
		err    error
	)
	if err = v.SetSpeed(ctx, s.speed, s.acceleration); err != nil {
		err = fmt.Errorf("starting vehicle: %w", err)
	} else if err = v.ChangeLane(ctx, 0); err != nil {
		err = fmt.Errorf("centering vehicle: %w", err)
	} else {
		select {
		case result = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	// The caller's context may already be done, the vehicle still has to stop.
	if stopErr := v.SetSpeed(context.WithoutCancel(ctx), 0, stopAcceleration); stopErr != nil {
		log.Warn("failed to stop vehicle", slog.Any("error", stopErr))
	}
	v.RemoveListener(id)

	s.mu.Lock()
	pieces := s.snapshotLocked()
	s.state = Idle
	s.done = nil
	s.mu.Unlock()

	switch {
	case err != nil:
		s.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "aborted")))
		log.Warn("track scan aborted", slog.Any("error", err))
		return nil, err
	case result == Failed:
		s.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("result", Failed.String())))
		log.Warn("track scan failed", slog.Int("retries", s.maxRetries))
		return nil, ErrInvalidTrack
	default:
		s.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("result", Succeeded.String())))
		log.Info("track scan succeeded", slog.Int("pieces", len(pieces)))
		return pieces, nil
	}
}

func (s *Scanner) handle(msg overdrive.Message) {
	switch msg.Kind {
	case overdrive.KindTransitionUpdate:
		if t, ok := msg.Body.(overdrive.TransitionUpdate); ok {
			s.onTransition(t)
		}
	case overdrive.KindPositionUpdate:
		if p, ok := msg.Body.(overdrive.PositionUpdate); ok {
			s.onPosition(p)
		}
	}
}

func (s *Scanner) onTransition(t overdrive.TransitionUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked() {
		return
	}
	s.tracking = true
	if p := s.leavingLocked(); p != nil {
		p.SetElevation(t.UphillCounter, t.DownhillCounter)
	}
}

func (s *Scanner) onPosition(p overdrive.PositionUpdate) {
	s.mu.Lock()
	if !s.activeLocked() || !s.tracking {
		s.mu.Unlock()
		return
	}
	s.tracking = false

	id := uint32(p.RoadPieceID)
	kind := KindFromID(id)
	if s.state == Mapping && len(s.pieces) == 0 && kind != StartGrid {
		s.mu.Unlock()
		return
	}

	piece := NewPiece(kind, id, p.Clockwise(), s.position)
	if s.state == Mapping {
		s.pieces = append(s.pieces, piece)
		s.mapped.Add(context.Background(), 1)
		slog.Debug("mapped piece", slog.String("scan", s.scanID), slog.String("piece", piece.String()))
	}

	if kind == Curve {
		s.position.Rotate(piece.Flipped)
	}
	if kind != StartGrid && kind != Unknown {
		s.position.Advance(1)
	}

	settled := false
	switch s.state {
	case Mapping:
		if len(s.pieces) >= minLoopPieces && s.pieces[0].IsAt(s.position) {
			s.state = Validating
			s.cursor = 0
			slog.Info("track loop closed, validating",
				slog.String("scan", s.scanID),
				slog.Int("pieces", len(s.pieces)))
		}
	case Validating:
		settled = s.validateLocked(piece)
	}

	pieces := s.snapshotLocked()
	listeners := make([]func([]Piece), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	state, done := s.state, s.done
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(pieces)
	}
	if settled {
		done <- state
	}
}

// validateLocked compares piece against the piece recorded at the cursor and reports whether
// the scan has settled.
func (s *Scanner) validateLocked(piece Piece) bool {
	want := s.pieces[s.cursor]
	if !want.Equal(piece) {
		s.retries++
		s.retried.Add(context.Background(), 1)
		slog.Warn("track validation mismatch",
			slog.String("scan", s.scanID),
			slog.Int("index", s.cursor),
			slog.String("want", want.String()),
			slog.String("got", piece.String()),
			slog.Int("retries", s.retries))

		if s.retries >= s.maxRetries {
			s.state = Failed
			return true
		}
		s.resetLocked()
		s.state = Mapping
		return false
	}

	s.pieces[s.cursor].Validated = true
	if s.cursor == len(s.pieces)-1 {
		s.state = Succeeded
		return true
	}
	s.cursor++
	return false
}

// leavingLocked returns the piece a transition event reports on: the last mapped piece while
// mapping, the piece before the cursor while validating.
func (s *Scanner) leavingLocked() *Piece {
	n := len(s.pieces)
	if n == 0 {
		return nil
	}
	if s.state == Mapping {
		return &s.pieces[n-1]
	}
	i := s.cursor - 1
	if i < 0 {
		i = n - 1
	}
	return &s.pieces[i]
}

func (s *Scanner) activeLocked() bool {
	return s.state == Mapping || s.state == Validating
}

// resetLocked clears the map. The retry count survives so a scan cannot retry forever.
func (s *Scanner) resetLocked() {
	s.pieces = nil
	s.position = Origin
	s.cursor = 0
	s.tracking = false
}

func (s *Scanner) snapshotLocked() []Piece {
	if len(s.pieces) == 0 {
		return []Piece{}
	}
	out := make([]Piece, len(s.pieces))
	copy(out, s.pieces)
	return out
}
