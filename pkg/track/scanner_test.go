package track

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/overdrive/pkg/overdrive"
)

type fakeVehicle struct {
	mu        sync.Mutex
	listeners map[overdrive.ListenerID]overdrive.Listener
	nextID    int
	speeds    []uint16
	lanes     []float32
	speedErr  error
}

func newFakeVehicle() *fakeVehicle {
	return &fakeVehicle{listeners: make(map[overdrive.ListenerID]overdrive.Listener)}
}

func (f *fakeVehicle) AddListener(l overdrive.Listener) overdrive.ListenerID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := overdrive.ListenerID(string(rune('a' + f.nextID)))
	f.listeners[id] = l
	return id
}

func (f *fakeVehicle) RemoveListener(id overdrive.ListenerID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
}

func (f *fakeVehicle) SetSpeed(_ context.Context, speed, _ uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speeds = append(f.speeds, speed)
	if speed > 0 {
		return f.speedErr
	}
	return nil
}

func (f *fakeVehicle) ChangeLane(_ context.Context, offset float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lanes = append(f.lanes, offset)
	return nil
}

func (f *fakeVehicle) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeVehicle) commandedSpeeds() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint16(nil), f.speeds...)
}

func (f *fakeVehicle) emit(body overdrive.Body) {
	f.mu.Lock()
	listeners := make([]overdrive.Listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	msg := overdrive.Message{CorrelationID: "car-1", Timestamp: time.Now(), Kind: body.Kind(), Body: body}
	for _, l := range listeners {
		l(msg)
	}
}

type segment struct {
	id        uint8
	clockwise bool
}

// drive emits the transition onto a segment followed by its position update.
func (f *fakeVehicle) drive(segments ...segment) {
	for _, seg := range segments {
		f.emit(overdrive.TransitionUpdate{})
		f.emit(seg.position())
	}
}

func (s segment) position() overdrive.PositionUpdate {
	flags := uint8(0x40)
	if s.clockwise {
		flags = overdrive.ClockwiseFlags
	}
	return overdrive.PositionUpdate{RoadPieceID: s.id, ParsingFlags: flags}
}

var (
	grid  = segment{id: 34}
	curve = segment{id: 17, clockwise: true}

	// A start grid followed by four clockwise curves closes on itself.
	loop = []segment{grid, curve, curve, curve, curve}

	loopPieces = []Piece{
		{Kind: StartGrid, ID: 34, Position: Position{0, 0, East}},
		{Kind: Curve, ID: 17, Flipped: true, Position: Position{0, 0, East}},
		{Kind: Curve, ID: 17, Flipped: true, Position: Position{0, 1, South}},
		{Kind: Curve, ID: 17, Flipped: true, Position: Position{-1, 1, West}},
		{Kind: Curve, ID: 17, Flipped: true, Position: Position{-1, 0, North}},
	}
)

type scanResult struct {
	pieces []Piece
	err    error
}

func startScan(t *testing.T, ctx context.Context, s *Scanner, v *fakeVehicle) <-chan scanResult {
	t.Helper()
	ch := make(chan scanResult, 1)
	go func() {
		pieces, err := s.Scan(ctx, v)
		ch <- scanResult{pieces, err}
	}()
	require.Eventually(t, func() bool {
		return v.listenerCount() == 1 && s.State() == Mapping
	}, time.Second, time.Millisecond)
	return ch
}

func waitResult(t *testing.T, ch <-chan scanResult) scanResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for scan")
		return scanResult{}
	}
}

func newTestScanner(t *testing.T, opts ...Option) *Scanner {
	t.Helper()
	s, err := NewScanner(opts...)
	require.NoError(t, err)
	return s
}

func TestScanClosedLoop(t *testing.T) {
	s := newTestScanner(t)
	v := newFakeVehicle()
	ch := startScan(t, context.Background(), s, v)

	v.drive(loop...)
	assert.Equal(t, Validating, s.State())
	v.drive(loop...)

	r := waitResult(t, ch)
	require.NoError(t, r.err)

	want := make([]Piece, len(loopPieces))
	for i, p := range loopPieces {
		p.Validated = true
		want[i] = p
	}
	if diff := cmp.Diff(want, r.pieces); diff != "" {
		t.Errorf("pieces mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []uint16{DefaultExplorationSpeed, 0}, v.commandedSpeeds())
	assert.Equal(t, []float32{0}, v.lanes)
	assert.Equal(t, 0, v.listenerCount())
	assert.Equal(t, Idle, s.State())
}

func TestScanElevation(t *testing.T) {
	s := newTestScanner(t)
	v := newFakeVehicle()
	ch := startScan(t, context.Background(), s, v)

	climb := []uint8{1, 2, 3, 4, 5}

	// Nothing is mapped yet, so these counters have no piece to land on.
	v.emit(overdrive.TransitionUpdate{UphillCounter: 9})
	for pass := 0; pass < 2; pass++ {
		for i, seg := range loop {
			// Counters arrive with the transition that leaves the previous piece.
			if pass > 0 || i > 0 {
				prev := climb[(i+len(loop)-1)%len(loop)]
				v.emit(overdrive.TransitionUpdate{UphillCounter: prev, DownhillCounter: prev + 10})
			}
			v.emit(seg.position())
		}
	}

	r := waitResult(t, ch)
	require.NoError(t, r.err)
	require.Len(t, r.pieces, len(climb))
	for i, p := range r.pieces {
		assert.Equal(t, climb[i], p.Up, "piece %d", i)
		assert.Equal(t, climb[i]+10, p.Down, "piece %d", i)
	}
}

func TestScanIgnoresUngatedEvents(t *testing.T) {
	s := newTestScanner(t)
	v := newFakeVehicle()
	ch := startScan(t, context.Background(), s, v)

	// No transition yet.
	v.emit(overdrive.PositionUpdate{RoadPieceID: 34})
	// Mapping only starts at the start grid.
	v.drive(curve, segment{id: 36}, segment{id: 99})
	assert.Empty(t, s.Pieces())

	v.drive(grid)
	// A second position update without a new transition.
	v.emit(overdrive.PositionUpdate{RoadPieceID: 17, ParsingFlags: overdrive.ClockwiseFlags})
	// Unrelated messages.
	v.emit(overdrive.StatusUpdate{OnTrack: true})
	v.emit(overdrive.Collision{})
	assert.Len(t, s.Pieces(), 1)

	v.drive(curve, curve, curve, curve)
	v.drive(loop...)

	r := waitResult(t, ch)
	require.NoError(t, r.err)
	assert.Len(t, r.pieces, 5)
}

func TestScanRetriesExhausted(t *testing.T) {
	s := newTestScanner(t)
	v := newFakeVehicle()
	ch := startScan(t, context.Background(), s, v)

	wrong := segment{id: 18, clockwise: true}
	for i := 0; i < DefaultMaxRetries; i++ {
		v.drive(loop...)
		require.Equal(t, Validating, s.State())
		v.drive(grid, wrong)
	}

	r := waitResult(t, ch)
	assert.ErrorIs(t, r.err, ErrInvalidTrack)
	assert.Nil(t, r.pieces)
	assert.Equal(t, []uint16{DefaultExplorationSpeed, 0}, v.commandedSpeeds())
	assert.Equal(t, 0, v.listenerCount())
	assert.Equal(t, Idle, s.State())
}

func TestScanRecoversAfterMismatch(t *testing.T) {
	s := newTestScanner(t)
	v := newFakeVehicle()
	ch := startScan(t, context.Background(), s, v)

	v.drive(loop...)
	v.drive(grid, curve, segment{id: 36})
	assert.Equal(t, Mapping, s.State())
	assert.Empty(t, s.Pieces())

	v.drive(loop...)
	v.drive(loop...)

	r := waitResult(t, ch)
	require.NoError(t, r.err)
	assert.Len(t, r.pieces, 5)
}

func TestScanRetryCountSurvivesReset(t *testing.T) {
	s := newTestScanner(t, WithMaxRetries(2))
	v := newFakeVehicle()
	ch := startScan(t, context.Background(), s, v)

	v.drive(loop...)
	v.drive(grid, segment{id: 36})
	v.drive(loop...)
	v.drive(segment{id: 34, clockwise: true})

	r := waitResult(t, ch)
	assert.ErrorIs(t, r.err, ErrInvalidTrack)
}

func TestScanAlreadyScanning(t *testing.T) {
	s := newTestScanner(t)
	v := newFakeVehicle()
	ch := startScan(t, context.Background(), s, v)
	v.drive(grid, curve)

	other := newFakeVehicle()
	_, err := s.Scan(context.Background(), other)
	assert.ErrorIs(t, err, ErrAlreadyScanning)
	assert.Empty(t, other.commandedSpeeds())
	assert.Equal(t, 0, other.listenerCount())
	assert.Len(t, s.Pieces(), 2)
	assert.Equal(t, Mapping, s.State())

	v.drive(curve, curve, curve)
	v.drive(loop...)
	r := waitResult(t, ch)
	require.NoError(t, r.err)
}

func TestScanCancelled(t *testing.T) {
	s := newTestScanner(t)
	v := newFakeVehicle()
	ctx, cancel := context.WithCancel(context.Background())
	ch := startScan(t, ctx, s, v)
	v.drive(grid)

	cancel()
	r := waitResult(t, ch)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, []uint16{DefaultExplorationSpeed, 0}, v.commandedSpeeds())
	assert.Equal(t, 0, v.listenerCount())
	assert.Equal(t, Idle, s.State())

	// Events after the scan ended are ignored.
	v.drive(loop...)
	assert.Equal(t, Idle, s.State())
}

func TestScanVehicleError(t *testing.T) {
	s := newTestScanner(t, WithExplorationSpeed(600, 700))
	v := newFakeVehicle()
	v.speedErr = errors.New("not connected")

	_, err := s.Scan(context.Background(), v)
	require.Error(t, err)
	assert.ErrorIs(t, err, v.speedErr)
	assert.Equal(t, []uint16{600, 0}, v.commandedSpeeds())
	assert.Equal(t, 0, v.listenerCount())

	// The scanner is free again.
	v.speedErr = nil
	ch := startScan(t, context.Background(), s, v)
	v.drive(loop...)
	v.drive(loop...)
	require.NoError(t, waitResult(t, ch).err)
}

func TestScanListeners(t *testing.T) {
	s := newTestScanner(t)
	v := newFakeVehicle()

	var (
		mu    sync.Mutex
		sizes []int
	)
	id := s.AddListener(func(pieces []Piece) {
		mu.Lock()
		sizes = append(sizes, len(pieces))
		mu.Unlock()
	})

	ch := startScan(t, context.Background(), s, v)
	v.drive(loop...)
	v.drive(loop...)
	require.NoError(t, waitResult(t, ch).err)

	mu.Lock()
	assert.Equal(t, []int{1, 2, 3, 4, 5, 5, 5, 5, 5, 5}, sizes)
	mu.Unlock()

	s.RemoveListener(id)
	ch = startScan(t, context.Background(), s, v)
	v.drive(loop...)
	v.drive(loop...)
	require.NoError(t, waitResult(t, ch).err)

	mu.Lock()
	assert.Len(t, sizes, 10)
	mu.Unlock()
}
