// Package vehicle drives a single vehicle and keeps track of the vehicles in range.
package vehicle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/seagrayinc/overdrive/pkg/ble"
	"github.com/seagrayinc/overdrive/pkg/frame"
	"github.com/seagrayinc/overdrive/pkg/overdrive"
)

var (
	ErrNotConnected   = errors.New("vehicle: not connected")
	ErrRequestTimeout = errors.New("vehicle: request timed out")
)

// DefaultRequestTimeout bounds how long Ping, Version and BatteryLevel wait for an answer.
const DefaultRequestTimeout = 1500 * time.Millisecond

type Option func(*Vehicle)

func WithRequestTimeout(d time.Duration) Option {
	return func(v *Vehicle) {
		if d > 0 {
			v.requestTimeout = d
		}
	}
}

func WithSendBuffer(n int) Option {
	return func(v *Vehicle) {
		v.sendBuffer = n
	}
}

// WithWriteGap spaces consecutive writes at least d apart.
func WithWriteGap(d time.Duration) Option {
	return func(v *Vehicle) {
		v.writeGap = d
	}
}

func WithMeter(m metric.Meter) Option {
	return func(v *Vehicle) {
		v.meter = m
	}
}

// Vehicle is the command facade of one vehicle. Incoming messages and outgoing requests are
// published to every registered listener.
type Vehicle struct {
	info           ble.Info
	manager        ble.Manager
	requestTimeout time.Duration
	sendBuffer     int
	writeGap       time.Duration
	meter          metric.Meter

	received metric.Int64Counter
	unknown  metric.Int64Counter

	connMu sync.Mutex

	mu        sync.RWMutex
	transport *Transport
	cancel    context.CancelFunc
	polling   chan struct{}
	listeners map[overdrive.ListenerID]overdrive.Listener
	offset    float32
}

// New creates an unconnected Vehicle for a discovered device.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(info ble.Info, manager ble.Manager, opts ...Option) (*Vehicle, error) {
	v := &Vehicle{
		info:           info,
		manager:        manager,
		requestTimeout: DefaultRequestTimeout,
		listeners:      make(map[overdrive.ListenerID]overdrive.Listener),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.meter == nil {
		v.meter = meter()
	}

	var err error

	v.received, err = v.meter.Int64Counter(
		"vehicle.frames.received",
		metric.WithDescription("Frames received from vehicles"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating received counter: %w", err)
	}

	v.unknown, err = v.meter.Int64Counter(
		"vehicle.frames.unknown",
		metric.WithDescription("Received frames with an unsupported type code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unknown counter: %w", err)
	}

	return v, nil
}

// ID is the correlation id stamped on every message of this vehicle.
func (v *Vehicle) ID() string {
	return v.info.Address
}

func (v *Vehicle) Address() string {
	return v.info.Address
}

func (v *Vehicle) Name() string {
	return v.info.Name
}

func (v *Vehicle) Connected() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.transport != nil
}

// Offset is the last lane offset requested or reported, in millimeters from the road center.
func (v *Vehicle) Offset() float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.offset
}

// Connect opens the device, starts streaming its notifications and switches it to SDK mode.
// ctx bounds the connection attempt only; the connection lasts until Disconnect.
func (v *Vehicle) Connect(ctx context.Context) error {
	v.connMu.Lock()
	defer v.connMu.Unlock()

	if v.Connected() {
		return nil
	}

	dev, err := v.manager.Open(ctx, v.info)
	if err != nil {
		return fmt.Errorf("connecting %s: %w", v.ID(), err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &Transport{
		Device:     dev,
		SendBuffer: v.sendBuffer,
		WriteGap:   v.writeGap,
		OnWrite:    v.written,
	}
	t.StartSender(runCtx)
	frames := t.Poll(runCtx, dev.PollNotifications(runCtx))
	polling := make(chan struct{})
	go v.pollLoop(frames, polling)

	v.mu.Lock()
	v.transport = t
	v.cancel = cancel
	v.polling = polling
	v.mu.Unlock()

	slog.Info("vehicle connected", slog.String("id", v.ID()), slog.String("name", v.info.Name))
	return v.EnableSDKMode(ctx)
}

// Disconnect writes the requests still queued, leaves SDK mode, asks the vehicle to drop the
// link, closes the device and removes every listener.
func (v *Vehicle) Disconnect(ctx context.Context) error {
	v.connMu.Lock()
	defer v.connMu.Unlock()

	v.mu.Lock()
	t, cancel, polling := v.transport, v.cancel, v.polling
	v.transport = nil
	v.cancel = nil
	v.polling = nil
	v.mu.Unlock()

	if t == nil {
		return nil
	}

	var errs []error
	if err := t.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing queued requests: %w", err))
	}
	cancel()
	// Once cancelled the sender stops at its next step.
	_ = t.Stop(context.Background())
	<-polling

	v.mu.Lock()
	v.listeners = make(map[overdrive.ListenerID]overdrive.Listener)
	v.mu.Unlock()

	for _, r := range []overdrive.Request{
		overdrive.SDKModeRequest{On: false, Flags: overdrive.SDKOptionOverride},
		overdrive.DisconnectRequest{},
	} {
		if err := t.Device.Write(ctx, overdrive.Encode(r)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Kind(), err))
		}
	}
	if err := t.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing device: %w", err))
	}

	slog.Info("vehicle disconnected", slog.String("id", v.ID()))
	return errors.Join(errs...)
}

func (v *Vehicle) pollLoop(frames <-chan frame.Frame, done chan<- struct{}) {
	defer close(done)
	for f := range frames {
		code := f.Code()
		v.received.Add(context.Background(), 1)

		msg, ok := overdrive.DecodeResponse(v.ID(), code, f)
		if !ok {
			v.unknown.Add(context.Background(), 1,
				metric.WithAttributes(attribute.Int("code", int(code))))
			slog.Debug("unsupported response", slog.String("id", v.ID()), slog.String("bytes", f.String()))
			continue
		}

		if o, ok := msg.Body.(overdrive.OffsetFromRoadCenter); ok {
			v.mu.Lock()
			v.offset = o.Offset
			v.mu.Unlock()
		}
		v.publish(msg)
	}
}

// written publishes requests once they reached the device.
func (v *Vehicle) written(f frame.Frame) {
	msg, ok := overdrive.DecodeRequest(v.ID(), f)
	if !ok {
		return
	}
	v.publish(msg)
}

func (v *Vehicle) publish(msg overdrive.Message) {
	v.mu.RLock()
	listeners := make([]overdrive.Listener, 0, len(v.listeners))
	for _, l := range v.listeners {
		listeners = append(listeners, l)
	}
	v.mu.RUnlock()

	for _, l := range listeners {
		l(msg)
	}
}

// AddListener registers l for every message published by the vehicle. Listeners run on the
// vehicle's receive goroutine and must not block.
func (v *Vehicle) AddListener(l overdrive.Listener) overdrive.ListenerID {
	id := overdrive.ListenerID(uuid.NewString())
	v.mu.Lock()
	v.listeners[id] = l
	v.mu.Unlock()
	return id
}

func (v *Vehicle) RemoveListener(id overdrive.ListenerID) {
	v.mu.Lock()
	delete(v.listeners, id)
	v.mu.Unlock()
}

// Send queues a request for the vehicle.
func (v *Vehicle) Send(ctx context.Context, r overdrive.Request) error {
	return v.sendFrame(ctx, overdrive.Encode(r))
}

func (v *Vehicle) sendFrame(ctx context.Context, f frame.Frame) error {
	v.mu.RLock()
	t := v.transport
	v.mu.RUnlock()
	if t == nil {
		return ErrNotConnected
	}
	return t.Send(ctx, f)
}

// SetSpeed changes speed in millimeters per second, staying under the road's speed limit.
func (v *Vehicle) SetSpeed(ctx context.Context, speed, acceleration uint16) error {
	return v.Send(ctx, overdrive.SpeedRequest{Speed: speed, Acceleration: acceleration, RespectLimit: true})
}

// SetSpeedUnrestricted changes speed ignoring the road's speed limit.
func (v *Vehicle) SetSpeedUnrestricted(ctx context.Context, speed, acceleration uint16) error {
	return v.Send(ctx, overdrive.SpeedRequest{Speed: speed, Acceleration: acceleration})
}

// ChangeLane moves to offset millimeters from the road center.
func (v *Vehicle) ChangeLane(ctx context.Context, offset float32) error {
	return v.ChangeLaneWith(ctx, overdrive.NewChangeLaneRequest(offset))
}

func (v *Vehicle) ChangeLaneWith(ctx context.Context, r overdrive.ChangeLaneRequest) error {
	if err := v.Send(ctx, r); err != nil {
		return err
	}
	v.setOffset(r.Offset)
	return nil
}

func (v *Vehicle) CancelLaneChange(ctx context.Context) error {
	return v.Send(ctx, overdrive.CancelLaneChangeRequest{})
}

// SetOffset tells the vehicle its current offset from the road center.
func (v *Vehicle) SetOffset(ctx context.Context, offset float32) error {
	if err := v.Send(ctx, overdrive.SetOffsetRequest{Offset: offset}); err != nil {
		return err
	}
	v.setOffset(offset)
	return nil
}

func (v *Vehicle) setOffset(offset float32) {
	v.mu.Lock()
	v.offset = offset
	v.mu.Unlock()
}

// SetLights applies a mask such as overdrive.LightsHeadlightsOn.
func (v *Vehicle) SetLights(ctx context.Context, mask uint8) error {
	return v.Send(ctx, overdrive.LightsRequest{Mask: mask})
}

func (v *Vehicle) SetLightsPattern(ctx context.Context, r overdrive.LightsPatternRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return v.Send(ctx, r)
}

func (v *Vehicle) Turn(ctx context.Context, turn overdrive.TurnType, trigger overdrive.TurnTrigger) error {
	return v.Send(ctx, overdrive.TurnRequest{Type: turn, Trigger: trigger})
}

func (v *Vehicle) TurnLeft(ctx context.Context) error {
	return v.Turn(ctx, overdrive.TurnLeft, overdrive.TurnTriggerImmediate)
}

func (v *Vehicle) TurnRight(ctx context.Context) error {
	return v.Turn(ctx, overdrive.TurnRight, overdrive.TurnTriggerImmediate)
}

func (v *Vehicle) UTurn(ctx context.Context) error {
	return v.Turn(ctx, overdrive.TurnUTurn, overdrive.TurnTriggerImmediate)
}

func (v *Vehicle) UTurnJump(ctx context.Context) error {
	return v.Turn(ctx, overdrive.TurnUTurnJump, overdrive.TurnTriggerImmediate)
}

func (v *Vehicle) EnableSDKMode(ctx context.Context) error {
	return v.Send(ctx, overdrive.SDKModeRequest{On: true, Flags: overdrive.SDKOptionOverride})
}

func (v *Vehicle) DisableSDKMode(ctx context.Context) error {
	return v.Send(ctx, overdrive.SDKModeRequest{On: false, Flags: overdrive.SDKOptionOverride})
}

// Ping measures the round trip to the vehicle.
func (v *Vehicle) Ping(ctx context.Context) (time.Duration, error) {
	sent, got, err := v.request(ctx, overdrive.PingRequest{}, overdrive.KindPingResponse)
	if err != nil {
		return 0, err
	}
	return got.Timestamp.Sub(sent.Timestamp), nil
}

func (v *Vehicle) Version(ctx context.Context) (uint16, error) {
	_, got, err := v.request(ctx, overdrive.VersionRequest{}, overdrive.KindVersionResponse)
	if err != nil {
		return 0, err
	}
	return got.Body.(overdrive.VersionResponse).Version, nil
}

// BatteryLevel reports the battery level in millivolts.
func (v *Vehicle) BatteryLevel(ctx context.Context) (uint16, error) {
	_, got, err := v.request(ctx, overdrive.BatteryLevelRequest{}, overdrive.KindBatteryLevelResponse)
	if err != nil {
		return 0, err
	}
	return got.Body.(overdrive.BatteryLevelResponse).Level, nil
}

// request sends r and waits for the first message of kind want.
func (v *Vehicle) request(ctx context.Context, r overdrive.Request, want overdrive.Kind) (sent, got overdrive.Message, err error) {
	ctx, cancel := context.WithTimeout(ctx, v.requestTimeout)
	defer cancel()

	answers := make(chan overdrive.Message, 1)
	id := v.AddListener(func(m overdrive.Message) {
		if m.Kind != want {
			return
		}
		select {
		case answers <- m:
		default:
		}
	})
	defer v.RemoveListener(id)

	sent = overdrive.EncodeRequest(v.ID(), r)
	if err = v.sendFrame(ctx, sent.Payload); err != nil {
		return sent, got, err
	}

	select {
	case got = <-answers:
		return sent, got, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return sent, got, fmt.Errorf("%s: %w", r.Kind(), ErrRequestTimeout)
		}
		return sent, got, ctx.Err()
	}
}
