package overdrive

import "github.com/seagrayinc/overdrive/pkg/frame"

const (
	codePositionUpdate       = 0x27
	codeTransitionUpdate     = 0x29
	codeIntersectionUpdate   = 0x2A
	codeOffsetFromRoadCenter = 0x2D
)

// ClockwiseFlags is the parsing flags value reported while driving through a piece in the
// clockwise direction.
const ClockwiseFlags = 0x47

// PositionUpdate is sent each time the vehicle reads a location code from the road.
type PositionUpdate struct {
	LocationID                 uint8
	RoadPieceID                uint8
	Offset                     float32
	Speed                      uint16
	ParsingFlags               uint8
	LastReceivedLaneChangeCmd  uint8
	LastExecutedLaneChangeCmd  uint8
	LastDesiredLaneChangeSpeed uint16
	LastDesiredSpeed           uint16
}

func (PositionUpdate) Kind() Kind { return KindPositionUpdate }
func (PositionUpdate) response()  {}
func (PositionUpdate) Code() byte { return codePositionUpdate }
func (PositionUpdate) Size() int  { return 15 }

func (p PositionUpdate) put(b []byte) {
	b[2] = p.LocationID
	b[3] = p.RoadPieceID
	frame.PutFloat32(b[4:8], p.Offset)
	frame.PutUint16(b[8:10], p.Speed)
	b[10] = p.ParsingFlags
	b[11] = p.LastReceivedLaneChangeCmd
	b[12] = p.LastExecutedLaneChangeCmd
	frame.PutUint16(b[13:15], p.LastDesiredLaneChangeSpeed)
	frame.PutUint16(b[15:17], p.LastDesiredSpeed)
}

func (p PositionUpdate) Clockwise() bool {
	return p.ParsingFlags == ClockwiseFlags
}

func parsePositionUpdate(b []byte) PositionUpdate {
	return PositionUpdate{
		LocationID:                 b[2],
		RoadPieceID:                b[3],
		Offset:                     frame.Float32(b[4:8]),
		Speed:                      frame.Uint16(b[8:10]),
		ParsingFlags:               b[10],
		LastReceivedLaneChangeCmd:  b[11],
		LastExecutedLaneChangeCmd:  b[12],
		LastDesiredLaneChangeSpeed: frame.Uint16(b[13:15]),
		LastDesiredSpeed:           frame.Uint16(b[15:17]),
	}
}

// TransitionUpdate is sent when the vehicle leaves one road piece for the next. The counters
// describe the piece being left.
type TransitionUpdate struct {
	RoadPieceID               uint8
	PreviousRoadPieceID       uint8
	Offset                    float32
	LastReceivedLaneChangeCmd uint8
	LastExecutedLaneChangeCmd uint8
	LastDesiredLaneChangeCmd  uint16
	DrivingDirection          uint8
	HadLaneChange             uint8
	UphillCounter             uint8
	DownhillCounter           uint8
	LeftWheelDistanceCm       uint8
	RightWheelDistanceCm      uint8
}

func (TransitionUpdate) Kind() Kind { return KindTransitionUpdate }
func (TransitionUpdate) response()  {}
func (TransitionUpdate) Code() byte { return codeTransitionUpdate }
func (TransitionUpdate) Size() int  { return 16 }

func (t TransitionUpdate) put(b []byte) {
	b[2] = t.RoadPieceID
	b[3] = t.PreviousRoadPieceID
	frame.PutFloat32(b[4:8], t.Offset)
	b[8] = t.LastReceivedLaneChangeCmd
	b[9] = t.LastExecutedLaneChangeCmd
	frame.PutUint16(b[10:12], t.LastDesiredLaneChangeCmd)
	b[12] = t.DrivingDirection
	b[13] = t.HadLaneChange
	b[14] = t.UphillCounter
	b[15] = t.DownhillCounter
	b[16] = t.LeftWheelDistanceCm
	b[17] = t.RightWheelDistanceCm
}

func parseTransitionUpdate(b []byte) TransitionUpdate {
	return TransitionUpdate{
		RoadPieceID:               b[2],
		PreviousRoadPieceID:       b[3],
		Offset:                    frame.Float32(b[4:8]),
		LastReceivedLaneChangeCmd: b[8],
		LastExecutedLaneChangeCmd: b[9],
		LastDesiredLaneChangeCmd:  frame.Uint16(b[10:12]),
		DrivingDirection:          b[12],
		HadLaneChange:             b[13],
		UphillCounter:             b[14],
		DownhillCounter:           b[15],
		LeftWheelDistanceCm:       b[16],
		RightWheelDistanceCm:      b[17],
	}
}

type IntersectionUpdate struct {
	RoadPieceID                 uint8
	Offset                      float32
	IntersectionCode            uint8
	IsExisting                  uint8
	MmSinceLastTransitionBar    uint16
	MmSinceLastIntersectionCode uint16
}

func (IntersectionUpdate) Kind() Kind { return KindIntersectionUpdate }
func (IntersectionUpdate) response()  {}
func (IntersectionUpdate) Code() byte { return codeIntersectionUpdate }
func (IntersectionUpdate) Size() int  { return 11 }

func (i IntersectionUpdate) put(b []byte) {
	b[2] = i.RoadPieceID
	frame.PutFloat32(b[3:7], i.Offset)
	b[7] = i.IntersectionCode
	b[8] = i.IsExisting
	frame.PutUint16(b[9:11], i.MmSinceLastTransitionBar)
	frame.PutUint16(b[11:13], i.MmSinceLastIntersectionCode)
}

func parseIntersectionUpdate(b []byte) IntersectionUpdate {
	return IntersectionUpdate{
		RoadPieceID:                 b[2],
		Offset:                      frame.Float32(b[3:7]),
		IntersectionCode:            b[7],
		IsExisting:                  b[8],
		MmSinceLastTransitionBar:    frame.Uint16(b[9:11]),
		MmSinceLastIntersectionCode: frame.Uint16(b[11:13]),
	}
}

type OffsetFromRoadCenter struct {
	Offset       float32
	LaneChangeID uint8
}

func (OffsetFromRoadCenter) Kind() Kind { return KindOffsetFromRoadCenter }
func (OffsetFromRoadCenter) response()  {}
func (OffsetFromRoadCenter) Code() byte { return codeOffsetFromRoadCenter }
func (OffsetFromRoadCenter) Size() int  { return 5 }

func (o OffsetFromRoadCenter) put(b []byte) {
	frame.PutFloat32(b[2:6], o.Offset)
	b[6] = o.LaneChangeID
}

func parseOffsetFromRoadCenter(b []byte) OffsetFromRoadCenter {
	return OffsetFromRoadCenter{
		Offset:       frame.Float32(b[2:6]),
		LaneChangeID: b[6],
	}
}
