package overdrive

import "github.com/seagrayinc/overdrive/pkg/frame"

const (
	codePingResponse         = 0x17
	codeVersionResponse      = 0x19
	codeBatteryLevelResponse = 0x1B
	codeDelocalized          = 0x2B
	codeCollision            = 0x4D
	codeCycleOvertime        = 0x86
)

type PingResponse struct{}

func (PingResponse) Kind() Kind   { return KindPingResponse }
func (PingResponse) response()    {}
func (PingResponse) Code() byte   { return codePingResponse }
func (PingResponse) Size() int    { return 0 }
func (PingResponse) put(_ []byte) {}

func parsePingResponse(_ []byte) PingResponse {
	return PingResponse{}
}

type VersionResponse struct {
	Version uint16
}

func (VersionResponse) Kind() Kind { return KindVersionResponse }
func (VersionResponse) response()  {}
func (VersionResponse) Code() byte { return codeVersionResponse }
func (VersionResponse) Size() int  { return 2 }

func (r VersionResponse) put(b []byte) {
	frame.PutUint16(b[2:4], r.Version)
}

func parseVersionResponse(b []byte) VersionResponse {
	return VersionResponse{Version: frame.Uint16(b[2:4])}
}

// BatteryLevelResponse carries the battery level in millivolts.
type BatteryLevelResponse struct {
	Level uint16
}

func (BatteryLevelResponse) Kind() Kind { return KindBatteryLevelResponse }
func (BatteryLevelResponse) response()  {}
func (BatteryLevelResponse) Code() byte { return codeBatteryLevelResponse }
func (BatteryLevelResponse) Size() int  { return 2 }

func (r BatteryLevelResponse) put(b []byte) {
	frame.PutUint16(b[2:4], r.Level)
}

func parseBatteryLevelResponse(b []byte) BatteryLevelResponse {
	return BatteryLevelResponse{Level: frame.Uint16(b[2:4])}
}

// Delocalized is sent when the vehicle loses track of where it is, e.g. when lifted off the road.
type Delocalized struct{}

func (Delocalized) Kind() Kind   { return KindDelocalized }
func (Delocalized) response()    {}
func (Delocalized) Code() byte   { return codeDelocalized }
func (Delocalized) Size() int    { return 0 }
func (Delocalized) put(_ []byte) {}

func parseDelocalized(_ []byte) Delocalized {
	return Delocalized{}
}

type Collision struct{}

func (Collision) Kind() Kind   { return KindCollision }
func (Collision) response()    {}
func (Collision) Code() byte   { return codeCollision }
func (Collision) Size() int    { return 0 }
func (Collision) put(_ []byte) {}

func parseCollision(_ []byte) Collision {
	return Collision{}
}

type CycleOvertime struct{}

func (CycleOvertime) Kind() Kind   { return KindCycleOvertime }
func (CycleOvertime) response()    {}
func (CycleOvertime) Code() byte   { return codeCycleOvertime }
func (CycleOvertime) Size() int    { return 0 }
func (CycleOvertime) put(_ []byte) {}

func parseCycleOvertime(_ []byte) CycleOvertime {
	return CycleOvertime{}
}
