package overdrive

import "github.com/seagrayinc/overdrive/pkg/frame"

const codeSDKMode = 0x90

// SDKOptionOverride lets SDK commands override the vehicle's own localization behavior.
const SDKOptionOverride = 0x01

// SDKModeRequest switches the vehicle in and out of SDK mode. Vehicles ignore most commands
// until SDK mode is on.
type SDKModeRequest struct {
	On    bool
	Flags uint8
}

func (SDKModeRequest) Kind() Kind { return KindSDKMode }
func (SDKModeRequest) request()   {}
func (SDKModeRequest) Code() byte { return codeSDKMode }
func (SDKModeRequest) Size() int  { return 2 }

func (r SDKModeRequest) put(b []byte) {
	frame.PutBool(b[2:3], r.On)
	b[3] = r.Flags
}

func parseSDKModeRequest(b []byte) SDKModeRequest {
	return SDKModeRequest{On: frame.Bool(b[2:3]), Flags: b[3]}
}
