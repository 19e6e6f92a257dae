package overdrive

const codeTurn = 0x32

type TurnType uint8

const (
	TurnNone TurnType = iota
	TurnLeft
	TurnRight
	TurnUTurn
	TurnUTurnJump
)

type TurnTrigger uint8

const (
	TurnTriggerImmediate TurnTrigger = iota
	TurnTriggerIntersection
)

type TurnRequest struct {
	Type    TurnType
	Trigger TurnTrigger
}

func (TurnRequest) Kind() Kind { return KindTurn }
func (TurnRequest) request()   {}
func (TurnRequest) Code() byte { return codeTurn }
func (TurnRequest) Size() int  { return 2 }

func (r TurnRequest) put(b []byte) {
	b[2] = byte(r.Type)
	b[3] = byte(r.Trigger)
}

func parseTurnRequest(b []byte) TurnRequest {
	return TurnRequest{Type: TurnType(b[2]), Trigger: TurnTrigger(b[3])}
}
