package overdrive

import "errors"

const (
	codeLights        = 0x1D
	codeLightsPattern = 0x33
)

// Masks accepted by LightsRequest.
const (
	LightsHeadlightsOn  = 0x44
	LightsHeadlightsOff = 0x04
	LightsTaillightsOn  = 0x22
	LightsTaillightsOff = 0x02
	LightsFlashTail     = 0x88
)

type LightsTarget uint8

const (
	LightsTargetHead LightsTarget = iota
	LightsTargetBrake
	LightsTargetFront
	LightsTargetEngine
)

type LightsPattern uint8

const (
	LightsPatternSteady LightsPattern = iota
	LightsPatternFade
	LightsPatternThrob
	LightsPatternFlash
	LightsPatternRandom
)

// Channel markers written in front of each color block of a lights pattern.
const (
	LightsChannelRed   = 0x00
	LightsChannelBlue  = 0x02
	LightsChannelGreen = 0x03
)

// MaxColorValue is the brightest value a color channel accepts.
const MaxColorValue = 15

var ErrColorOutOfRange = errors.New("overdrive: color channel value out of range")

type LightsRequest struct {
	Mask uint8
}

func (LightsRequest) Kind() Kind { return KindLights }
func (LightsRequest) request()   {}
func (LightsRequest) Code() byte { return codeLights }
func (LightsRequest) Size() int  { return 1 }

func (r LightsRequest) put(b []byte) {
	b[2] = r.Mask
}

func parseLightsRequest(b []byte) LightsRequest {
	return LightsRequest{Mask: b[2]}
}

// ColorRange is the start and end brightness of one color channel.
type ColorRange struct {
	Start uint8
	End   uint8
}

// LightsPatternRequest drives the color of the engine light. The zero value is a steady light
// pattern on the head lights; NewLightsPatternRequest starts from the engine light instead.
type LightsPatternRequest struct {
	Target  LightsTarget
	Pattern LightsPattern
	Red     ColorRange
	Green   ColorRange
	Blue    ColorRange
	Cycle   uint8
}

func NewLightsPatternRequest(red, green, blue ColorRange) LightsPatternRequest {
	return LightsPatternRequest{
		Target:  LightsTargetEngine,
		Pattern: LightsPatternSteady,
		Red:     red,
		Green:   green,
		Blue:    blue,
	}
}

func (LightsPatternRequest) Kind() Kind { return KindLightsPattern }
func (LightsPatternRequest) request()   {}
func (LightsPatternRequest) Code() byte { return codeLightsPattern }
func (LightsPatternRequest) Size() int  { return 16 }

// Validate checks that every color value fits the channel range.
func (r LightsPatternRequest) Validate() error {
	for _, c := range []ColorRange{r.Red, r.Green, r.Blue} {
		if c.Start > MaxColorValue || c.End > MaxColorValue {
			return ErrColorOutOfRange
		}
	}
	return nil
}

func (r LightsPatternRequest) put(b []byte) {
	b[2] = byte(r.Target)
	r.putChannel(b[3:8], LightsChannelRed, r.Red)
	r.putChannel(b[8:13], LightsChannelGreen, r.Green)
	r.putChannel(b[13:18], LightsChannelBlue, r.Blue)
}

func (r LightsPatternRequest) putChannel(b []byte, channel byte, c ColorRange) {
	b[0] = channel
	b[1] = byte(r.Pattern)
	b[2] = c.Start
	b[3] = c.End
	b[4] = r.Cycle
}

func parseLightsPatternRequest(b []byte) LightsPatternRequest {
	return LightsPatternRequest{
		Target:  LightsTarget(b[2]),
		Pattern: LightsPattern(b[4]),
		Red:     ColorRange{Start: b[5], End: b[6]},
		Green:   ColorRange{Start: b[10], End: b[11]},
		Blue:    ColorRange{Start: b[15], End: b[16]},
		Cycle:   b[7],
	}
}
