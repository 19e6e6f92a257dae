// Package simulator stands in for a vehicle on a track loop. It answers requests written to a
// mock device and, while driving, reports the road pieces it passes.
package simulator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seagrayinc/overdrive/pkg/ble"
	"github.com/seagrayinc/overdrive/pkg/frame"
	"github.com/seagrayinc/overdrive/pkg/overdrive"
)

// Segment is one road piece of a simulated loop.
type Segment struct {
	ID        uint8
	Clockwise bool
	Up        uint8
	Down      uint8
}

// Oval is a start grid, two straights and four clockwise curves.
func Oval() []Segment {
	return []Segment{
		{ID: 34},
		{ID: 36},
		{ID: 17, Clockwise: true, Up: 2},
		{ID: 17, Clockwise: true},
		{ID: 39, Down: 2},
		{ID: 18, Clockwise: true},
		{ID: 18, Clockwise: true},
	}
}

// Ring is a start grid followed by four clockwise curves, the smallest closed loop.
func Ring() []Segment {
	return []Segment{
		{ID: 34},
		{ID: 17, Clockwise: true},
		{ID: 17, Clockwise: true},
		{ID: 17, Clockwise: true},
		{ID: 17, Clockwise: true},
	}
}

const (
	DefaultVersion      = 0x2e6a
	DefaultBatteryLevel = 3900
)

// Car is a simulated vehicle behind a MockDevice.
type Car struct {
	device   *ble.MockDevice
	segments []Segment

	mu      sync.Mutex
	speed   uint16
	sdk     bool
	offset  float32
	next    int
	version uint16
	battery uint16
}

// NewCar drives segments in order, starting at the first one.
func NewCar(device *ble.MockDevice, segments []Segment) *Car {
	c := &Car{
		device:   device,
		segments: segments,
		version:  DefaultVersion,
		battery:  DefaultBatteryLevel,
	}
	device.OnWrite(c.handle)
	return c
}

func (c *Car) SetBatteryLevel(level uint16) {
	c.mu.Lock()
	c.battery = level
	c.mu.Unlock()
}

func (c *Car) Driving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed > 0
}

func (c *Car) SDKMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sdk
}

func (c *Car) Offset() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

func (c *Car) handle(b []byte) {
	msg, ok := overdrive.DecodeRequest(c.device.Address(), b)
	if !ok {
		slog.Debug("simulator ignoring request", slog.String("bytes", frame.EncodeToString(b)))
		return
	}

	c.mu.Lock()
	var reply overdrive.Response
	switch r := msg.Body.(type) {
	case overdrive.SpeedRequest:
		c.speed = r.Speed
	case overdrive.ChangeLaneRequest:
		c.offset = r.Offset
	case overdrive.SetOffsetRequest:
		c.offset = r.Offset
	case overdrive.SDKModeRequest:
		c.sdk = r.On
	case overdrive.PingRequest:
		reply = overdrive.PingResponse{}
	case overdrive.VersionRequest:
		reply = overdrive.VersionResponse{Version: c.version}
	case overdrive.BatteryLevelRequest:
		reply = overdrive.BatteryLevelResponse{Level: c.battery}
	}
	c.mu.Unlock()

	if reply != nil {
		c.device.Emit(overdrive.Encode(reply))
	}
}

// Step moves onto the next segment, reporting the transition and the position update a real
// vehicle would. It does nothing and reports false while the car stands still.
func (c *Car) Step() bool {
	c.mu.Lock()
	if c.speed == 0 || len(c.segments) == 0 {
		c.mu.Unlock()
		return false
	}
	n := len(c.segments)
	seg := c.segments[c.next]
	prev := c.segments[(c.next+n-1)%n]
	c.next = (c.next + 1) % n
	speed, offset := c.speed, c.offset
	c.mu.Unlock()

	flags := uint8(0x40)
	if seg.Clockwise {
		flags = overdrive.ClockwiseFlags
	}

	transition := overdrive.TransitionUpdate{
		RoadPieceID:         seg.ID,
		PreviousRoadPieceID: prev.ID,
		Offset:              offset,
		UphillCounter:       prev.Up,
		DownhillCounter:     prev.Down,
	}
	position := overdrive.PositionUpdate{
		RoadPieceID:      seg.ID,
		Offset:           offset,
		Speed:            speed,
		ParsingFlags:     flags,
		LastDesiredSpeed: speed,
	}
	return c.device.Emit(overdrive.Encode(transition)) && c.device.Emit(overdrive.Encode(position))
}

// Run steps every interval until ctx ends.
func (c *Car) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Step()
		}
	}
}
