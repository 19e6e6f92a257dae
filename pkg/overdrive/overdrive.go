// Package overdrive encodes vehicle requests and decodes vehicle responses.
//
// Every frame starts with a length byte followed by a type code, and all multi-byte fields are
// little endian. Requests and responses share a single Message type whose Kind tells which typed
// Body it carries.
package overdrive

import (
	"time"

	"github.com/seagrayinc/overdrive/pkg/frame"
)

// GATT identifiers of the vehicle service.
const (
	ServiceUUID = "be15beef-6186-407e-8381-0bd89c4d8df4"
	ReadUUID    = "be15bee0-6186-407e-8381-0bd89c4d8df4"
	WriteUUID   = "be15bee1-6186-407e-8381-0bd89c4d8df4"
)

type Kind uint8

const (
	KindUnknown Kind = iota

	KindDisconnect
	KindPing
	KindVersion
	KindBatteryLevel
	KindLights
	KindSpeed
	KindChangeLane
	KindCancelLaneChange
	KindSetOffset
	KindTurn
	KindLightsPattern
	KindSDKMode

	KindPingResponse
	KindVersionResponse
	KindBatteryLevelResponse
	KindPositionUpdate
	KindTransitionUpdate
	KindIntersectionUpdate
	KindDelocalized
	KindOffsetFromRoadCenter
	KindStatusUpdate
	KindCollision
	KindCycleOvertime
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindDisconnect:           "disconnect",
	KindPing:                 "ping",
	KindVersion:              "version",
	KindBatteryLevel:         "battery-level",
	KindLights:               "lights",
	KindSpeed:                "speed",
	KindChangeLane:           "change-lane",
	KindCancelLaneChange:     "cancel-lane-change",
	KindSetOffset:            "set-offset",
	KindTurn:                 "turn",
	KindLightsPattern:        "lights-pattern",
	KindSDKMode:              "sdk-mode",
	KindPingResponse:         "ping-response",
	KindVersionResponse:      "version-response",
	KindBatteryLevelResponse: "battery-level-response",
	KindPositionUpdate:       "position-update",
	KindTransitionUpdate:     "transition-update",
	KindIntersectionUpdate:   "intersection-update",
	KindDelocalized:          "delocalized",
	KindOffsetFromRoadCenter: "offset-from-road-center",
	KindStatusUpdate:         "status-update",
	KindCollision:            "collision",
	KindCycleOvertime:        "cycle-overtime",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) IsRequest() bool {
	return k >= KindDisconnect && k <= KindSDKMode
}

func (k Kind) IsResponse() bool {
	return k >= KindPingResponse && k <= KindCycleOvertime
}

// Body is the typed content of a Message.
type Body interface {
	Kind() Kind
}

// Message is a single request sent to, or response received from, a vehicle.
// Messages are not modified after construction.
type Message struct {
	CorrelationID string
	Timestamp     time.Time
	Payload       frame.Frame
	Kind          Kind
	Body          Body
}

// Code returns the wire type code of the message.
func (m Message) Code() byte {
	if len(m.Payload) < frame.HeaderLen {
		return 0
	}
	return m.Payload.Code()
}

// Listener receives messages published by a vehicle.
type Listener func(Message)

// ListenerID identifies a registered listener so it can be removed again.
type ListenerID string
