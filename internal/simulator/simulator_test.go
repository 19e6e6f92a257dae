package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/overdrive/pkg/ble"
	"github.com/seagrayinc/overdrive/pkg/overdrive"
	"github.com/seagrayinc/overdrive/pkg/track"
	"github.com/seagrayinc/overdrive/pkg/vehicle"
)

func TestCarAnswersRequests(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	device := ble.NewMockDevice("sim")
	car := NewCar(device, Ring())
	car.SetBatteryLevel(3700)
	notifications := device.PollNotifications(ctx)

	go func() {
		_ = device.Write(ctx, overdrive.Encode(overdrive.BatteryLevelRequest{}))
	}()

	select {
	case b := <-notifications:
		msg, ok := overdrive.DecodeResponse("sim", b[1], b)
		require.True(t, ok)
		assert.Equal(t, overdrive.BatteryLevelResponse{Level: 3700}, msg.Body)
	case <-ctx.Done():
		t.Fatal("timeout waiting for battery level")
	}

	require.NoError(t, device.Write(ctx, overdrive.Encode(overdrive.SDKModeRequest{On: true})))
	require.NoError(t, device.Write(ctx, overdrive.Encode(overdrive.NewChangeLaneRequest(-23))))
	assert.True(t, car.SDKMode())
	assert.Equal(t, float32(-23), car.Offset())
	assert.False(t, car.Step(), "a parked car does not move")
}

func TestCarStep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	device := ble.NewMockDevice("sim")
	car := NewCar(device, Oval())
	notifications := device.PollNotifications(ctx)

	require.NoError(t, device.Write(ctx, overdrive.Encode(overdrive.NewSpeedRequest(450))))
	require.True(t, car.Driving())

	var got []overdrive.Message
	go func() {
		for i := 0; i < 4; i++ {
			car.Step()
		}
	}()
	for len(got) < 8 {
		select {
		case b := <-notifications:
			msg, ok := overdrive.DecodeResponse("sim", b[1], b)
			require.True(t, ok)
			got = append(got, msg)
		case <-ctx.Done():
			t.Fatal("timeout waiting for telemetry")
		}
	}

	first := got[0].Body.(overdrive.TransitionUpdate)
	assert.Equal(t, uint8(34), first.RoadPieceID)
	assert.Equal(t, uint8(18), first.PreviousRoadPieceID)

	grid := got[1].Body.(overdrive.PositionUpdate)
	assert.Equal(t, uint8(34), grid.RoadPieceID)
	assert.False(t, grid.Clockwise())
	assert.Equal(t, uint16(450), grid.Speed)

	curve := got[5].Body.(overdrive.PositionUpdate)
	assert.Equal(t, uint8(17), curve.RoadPieceID)
	assert.True(t, curve.Clockwise())

	// Leaving the first curve reports its climb.
	leaving := got[6].Body.(overdrive.TransitionUpdate)
	assert.Equal(t, uint8(2), leaving.UphillCounter)
}

func TestScanSimulatedTrack(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		kinds    []track.Kind
	}{
		{
			name:     "Ring",
			segments: Ring(),
			kinds:    []track.Kind{track.StartGrid, track.Curve, track.Curve, track.Curve, track.Curve},
		},
		{
			name:     "Oval",
			segments: Oval(),
			kinds: []track.Kind{
				track.StartGrid, track.Straight, track.Curve, track.Curve,
				track.Straight, track.Curve, track.Curve,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			manager := ble.NewMockManager()
			device := manager.Add(ble.Info{Address: "sim", Name: "Simulated"})
			car := NewCar(device, tt.segments)

			v, err := vehicle.New(ble.Info{Address: "sim"}, manager)
			require.NoError(t, err)
			require.NoError(t, v.Connect(ctx))
			defer func() { _ = v.Disconnect(context.Background()) }()

			scanner, err := track.NewScanner()
			require.NoError(t, err)

			type result struct {
				pieces []track.Piece
				err    error
			}
			done := make(chan result, 1)
			go func() {
				pieces, err := scanner.Scan(ctx, v)
				done <- result{pieces, err}
			}()

			require.Eventually(t, car.Driving, time.Second, time.Millisecond)

			var r result
		drive:
			for {
				select {
				case r = <-done:
					break drive
				default:
					car.Step()
				}
			}

			require.NoError(t, r.err)
			require.Len(t, r.pieces, len(tt.kinds))
			for i, p := range r.pieces {
				assert.Equal(t, tt.kinds[i], p.Kind, "piece %d", i)
				assert.True(t, p.Validated, "piece %d", i)
				assert.Equal(t, uint32(tt.segments[i].ID), p.ID, "piece %d", i)
				assert.Equal(t, tt.segments[i].Up, p.Up, "piece %d", i)
			}
			assert.Equal(t, track.Origin, r.pieces[0].Position)

			require.Eventually(t, func() bool { return !car.Driving() }, time.Second, time.Millisecond)
			assert.True(t, car.SDKMode())
		})
	}
}
