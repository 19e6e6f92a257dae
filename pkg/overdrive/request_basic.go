package overdrive

const (
	codeDisconnect       = 0x0D
	codePing             = 0x16
	codeVersion          = 0x18
	codeBatteryLevel     = 0x1A
	codeCancelLaneChange = 0x26
)

// DisconnectRequest asks the vehicle to drop the connection.
type DisconnectRequest struct{}

func (DisconnectRequest) Kind() Kind   { return KindDisconnect }
func (DisconnectRequest) request()     {}
func (DisconnectRequest) Code() byte   { return codeDisconnect }
func (DisconnectRequest) Size() int    { return 0 }
func (DisconnectRequest) put(_ []byte) {}

func parseDisconnectRequest(_ []byte) DisconnectRequest {
	return DisconnectRequest{}
}

type PingRequest struct{}

func (PingRequest) Kind() Kind   { return KindPing }
func (PingRequest) request()     {}
func (PingRequest) Code() byte   { return codePing }
func (PingRequest) Size() int    { return 0 }
func (PingRequest) put(_ []byte) {}

func parsePingRequest(_ []byte) PingRequest {
	return PingRequest{}
}

type VersionRequest struct{}

func (VersionRequest) Kind() Kind   { return KindVersion }
func (VersionRequest) request()     {}
func (VersionRequest) Code() byte   { return codeVersion }
func (VersionRequest) Size() int    { return 0 }
func (VersionRequest) put(_ []byte) {}

func parseVersionRequest(_ []byte) VersionRequest {
	return VersionRequest{}
}

type BatteryLevelRequest struct{}

func (BatteryLevelRequest) Kind() Kind   { return KindBatteryLevel }
func (BatteryLevelRequest) request()     {}
func (BatteryLevelRequest) Code() byte   { return codeBatteryLevel }
func (BatteryLevelRequest) Size() int    { return 0 }
func (BatteryLevelRequest) put(_ []byte) {}

func parseBatteryLevelRequest(_ []byte) BatteryLevelRequest {
	return BatteryLevelRequest{}
}

// CancelLaneChangeRequest aborts a lane change in progress.
type CancelLaneChangeRequest struct{}

func (CancelLaneChangeRequest) Kind() Kind   { return KindCancelLaneChange }
func (CancelLaneChangeRequest) request()     {}
func (CancelLaneChangeRequest) Code() byte   { return codeCancelLaneChange }
func (CancelLaneChangeRequest) Size() int    { return 0 }
func (CancelLaneChangeRequest) put(_ []byte) {}

func parseCancelLaneChangeRequest(_ []byte) CancelLaneChangeRequest {
	return CancelLaneChangeRequest{}
}
