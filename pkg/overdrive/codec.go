package overdrive

import (
	"time"

	"github.com/seagrayinc/overdrive/pkg/frame"
)

// Encodable is a Body with a fixed wire layout.
type Encodable interface {
	Body
	Code() byte
	// Size is the number of bytes after the frame header.
	Size() int
	put(b []byte)
}

// Request is implemented by the parameters of every command a vehicle accepts.
type Request interface {
	Encodable
	request()
}

// Response is implemented by every message a vehicle sends.
type Response interface {
	Encodable
	response()
}

type parserFunc func([]byte) Body

// wrappedParser is a helper to convert a typed parser function into a generic parserFunc.
func wrappedParser[T Body](f func([]byte) T) parserFunc {
	return func(b []byte) Body {
		return f(b)
	}
}

type parser struct {
	size  int // total frame size the layout needs
	parse parserFunc
}

var (
	responseParsers = map[byte]parser{
		codePingResponse:         {2, wrappedParser(parsePingResponse)},
		codeVersionResponse:      {4, wrappedParser(parseVersionResponse)},
		codeBatteryLevelResponse: {4, wrappedParser(parseBatteryLevelResponse)},
		codePositionUpdate:       {17, wrappedParser(parsePositionUpdate)},
		codeTransitionUpdate:     {18, wrappedParser(parseTransitionUpdate)},
		codeIntersectionUpdate:   {13, wrappedParser(parseIntersectionUpdate)},
		codeDelocalized:          {2, wrappedParser(parseDelocalized)},
		codeOffsetFromRoadCenter: {7, wrappedParser(parseOffsetFromRoadCenter)},
		codeStatusUpdate:         {6, wrappedParser(parseStatusUpdate)},
		codeCollision:            {2, wrappedParser(parseCollision)},
		codeCycleOvertime:        {2, wrappedParser(parseCycleOvertime)},
	}

	requestParsers = map[byte]parser{
		codeDisconnect:       {2, wrappedParser(parseDisconnectRequest)},
		codePing:             {2, wrappedParser(parsePingRequest)},
		codeVersion:          {2, wrappedParser(parseVersionRequest)},
		codeBatteryLevel:     {2, wrappedParser(parseBatteryLevelRequest)},
		codeLights:           {3, wrappedParser(parseLightsRequest)},
		codeSpeed:            {7, wrappedParser(parseSpeedRequest)},
		codeChangeLane:       {12, wrappedParser(parseChangeLaneRequest)},
		codeCancelLaneChange: {2, wrappedParser(parseCancelLaneChangeRequest)},
		codeSetOffset:        {6, wrappedParser(parseSetOffsetRequest)},
		codeTurn:             {4, wrappedParser(parseTurnRequest)},
		codeLightsPattern:    {18, wrappedParser(parseLightsPatternRequest)},
		codeSDKMode:          {4, wrappedParser(parseSDKModeRequest)},
	}
)

// Encode serializes e into a frame.
func Encode(e Encodable) frame.Frame {
	f := frame.New(e.Code(), e.Size())
	e.put(f)
	return f
}

// EncodeRequest serializes r and wraps it in a Message stamped with the current time.
func EncodeRequest(correlationID string, r Request) Message {
	return Message{
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
		Payload:       Encode(r),
		Kind:          r.Kind(),
		Body:          r,
	}
}

// DecodeResponse builds a typed Message from a received frame. It reports false when code is
// not a known response code, or when buf is too short for the layout of that code; neither case
// is an error and neither has side effects.
func DecodeResponse(correlationID string, code byte, buf []byte) (Message, bool) {
	return decode(responseParsers, correlationID, code, buf)
}

// DecodeRequest is the inverse of Encode.
func DecodeRequest(correlationID string, buf []byte) (Message, bool) {
	if len(buf) < frame.HeaderLen {
		return Message{}, false
	}
	return decode(requestParsers, correlationID, buf[1], buf)
}

// ResponseSize returns the total frame size of a known response code.
func ResponseSize(code byte) (int, bool) {
	p, ok := responseParsers[code]
	return p.size, ok
}

func decode(parsers map[byte]parser, correlationID string, code byte, buf []byte) (Message, bool) {
	p, ok := parsers[code]
	if !ok || len(buf) < p.size {
		return Message{}, false
	}

	body := p.parse(buf)
	return Message{
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
		Payload:       frame.Frame(buf),
		Kind:          body.Kind(),
		Body:          body,
	}, true
}
