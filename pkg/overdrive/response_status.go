package overdrive

import "github.com/seagrayinc/overdrive/pkg/frame"

const codeStatusUpdate = 0x3F

type StatusUpdate struct {
	OnTrack     bool
	OnCharger   bool
	BatteryLow  bool
	BatteryFull bool
}

func (StatusUpdate) Kind() Kind { return KindStatusUpdate }
func (StatusUpdate) response()  {}
func (StatusUpdate) Code() byte { return codeStatusUpdate }
func (StatusUpdate) Size() int  { return 4 }

func (r StatusUpdate) put(b []byte) {
	frame.PutBool(b[2:3], r.OnTrack)
	frame.PutBool(b[3:4], r.OnCharger)
	frame.PutBool(b[4:5], r.BatteryLow)
	frame.PutBool(b[5:6], r.BatteryFull)
}

func parseStatusUpdate(b []byte) StatusUpdate {
	return StatusUpdate{
		OnTrack:     frame.Bool(b[2:3]),
		OnCharger:   frame.Bool(b[3:4]),
		BatteryLow:  frame.Bool(b[4:5]),
		BatteryFull: frame.Bool(b[5:6]),
	}
}
