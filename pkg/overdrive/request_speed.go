package overdrive

import "github.com/seagrayinc/overdrive/pkg/frame"

const codeSpeed = 0x24

// DefaultAcceleration is used by speed requests that do not name one.
const DefaultAcceleration = 500

type SpeedRequest struct {
	Speed        uint16
	Acceleration uint16
	// RespectLimit keeps the vehicle under the speed limit of the current road piece.
	RespectLimit bool
}

func NewSpeedRequest(speed uint16) SpeedRequest {
	return SpeedRequest{Speed: speed, Acceleration: DefaultAcceleration, RespectLimit: true}
}

func (SpeedRequest) Kind() Kind { return KindSpeed }
func (SpeedRequest) request()   {}
func (SpeedRequest) Code() byte { return codeSpeed }
func (SpeedRequest) Size() int  { return 5 }

func (r SpeedRequest) put(b []byte) {
	frame.PutUint16(b[2:4], r.Speed)
	frame.PutUint16(b[4:6], r.Acceleration)
	frame.PutBool(b[6:7], r.RespectLimit)
}

func parseSpeedRequest(b []byte) SpeedRequest {
	return SpeedRequest{
		Speed:        frame.Uint16(b[2:4]),
		Acceleration: frame.Uint16(b[4:6]),
		RespectLimit: frame.Bool(b[6:7]),
	}
}
