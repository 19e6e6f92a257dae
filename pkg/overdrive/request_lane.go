package overdrive

import "github.com/seagrayinc/overdrive/pkg/frame"

const (
	codeChangeLane = 0x25
	codeSetOffset  = 0x2C
)

const (
	DefaultLaneChangeSpeed        = 300
	DefaultLaneChangeAcceleration = 300
)

// ChangeLaneRequest moves the vehicle to Offset millimeters from the road center.
type ChangeLaneRequest struct {
	Speed        uint16
	Acceleration uint16
	Offset       float32
	HopIntent    uint8
	Tag          uint8
}

func NewChangeLaneRequest(offset float32) ChangeLaneRequest {
	return ChangeLaneRequest{
		Speed:        DefaultLaneChangeSpeed,
		Acceleration: DefaultLaneChangeAcceleration,
		Offset:       offset,
	}
}

func (ChangeLaneRequest) Kind() Kind { return KindChangeLane }
func (ChangeLaneRequest) request()   {}
func (ChangeLaneRequest) Code() byte { return codeChangeLane }
func (ChangeLaneRequest) Size() int  { return 10 }

func (r ChangeLaneRequest) put(b []byte) {
	frame.PutUint16(b[2:4], r.Speed)
	frame.PutUint16(b[4:6], r.Acceleration)
	frame.PutFloat32(b[6:10], r.Offset)
	b[10] = r.HopIntent
	b[11] = r.Tag
}

func parseChangeLaneRequest(b []byte) ChangeLaneRequest {
	return ChangeLaneRequest{
		Speed:        frame.Uint16(b[2:4]),
		Acceleration: frame.Uint16(b[4:6]),
		Offset:       frame.Float32(b[6:10]),
		HopIntent:    b[10],
		Tag:          b[11],
	}
}

// SetOffsetRequest tells the vehicle where it currently is relative to the road center.
type SetOffsetRequest struct {
	Offset float32
}

func (SetOffsetRequest) Kind() Kind { return KindSetOffset }
func (SetOffsetRequest) request()   {}
func (SetOffsetRequest) Code() byte { return codeSetOffset }
func (SetOffsetRequest) Size() int  { return 4 }

func (r SetOffsetRequest) put(b []byte) {
	frame.PutFloat32(b[2:6], r.Offset)
}

func parseSetOffsetRequest(b []byte) SetOffsetRequest {
	return SetOffsetRequest{Offset: frame.Float32(b[2:6])}
}
