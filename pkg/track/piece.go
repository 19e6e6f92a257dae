package track

import "fmt"

// Kind is the shape of a road piece.
type Kind uint8

const (
	Unknown Kind = iota
	Straight
	Curve
	StartGrid
	FinishLine
	Special
	Crossroad
	JumpRamp
	JumpLanding
)

var kindNames = [...]string{
	Unknown:     "unknown",
	Straight:    "straight",
	Curve:       "curve",
	StartGrid:   "start-grid",
	FinishLine:  "finish-line",
	Special:     "special",
	Crossroad:   "crossroad",
	JumpRamp:    "jump-ramp",
	JumpLanding: "jump-landing",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

var pieceKinds = map[uint32]Kind{
	17: Curve,
	18: Curve,
	20: Curve,
	23: Curve,
	36: Straight,
	39: Straight,
	40: Straight,
	51: Straight,
	34: StartGrid,
	33: FinishLine,
	57: Special,
	10: Crossroad,
	58: JumpRamp,
	63: JumpLanding,
}

// KindFromID maps a road piece id to its kind. Ids not in the table are Unknown.
func KindFromID(id uint32) Kind {
	return pieceKinds[id]
}

type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// Rotate turns a quarter turn clockwise or counter-clockwise.
func (d Direction) Rotate(clockwise bool) Direction {
	if clockwise {
		return (d + 1) % 4
	}
	return (d + 3) % 4
}

// Position is a cell on the track grid together with the heading of the vehicle. North is
// negative Y.
type Position struct {
	X         int
	Y         int
	Direction Direction
}

// Advance moves n cells along the current heading.
func (p *Position) Advance(n int) {
	switch p.Direction {
	case North:
		p.Y -= n
	case East:
		p.X += n
	case South:
		p.Y += n
	case West:
		p.X -= n
	}
}

func (p *Position) Rotate(clockwise bool) {
	p.Direction = p.Direction.Rotate(clockwise)
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d %s)", p.X, p.Y, p.Direction)
}

// Piece is one road piece as observed while driving the loop. Position is where the vehicle
// was when it entered the piece.
type Piece struct {
	Kind      Kind
	ID        uint32
	Flipped   bool
	Position  Position
	Up        uint8
	Down      uint8
	Validated bool
}

func NewPiece(kind Kind, id uint32, flipped bool, pos Position) Piece {
	return Piece{Kind: kind, ID: id, Flipped: flipped, Position: pos}
}

// SetElevation records the climb and descent counters reported when leaving the piece.
func (p *Piece) SetElevation(up, down uint8) {
	p.Up = up
	p.Down = down
}

func (p Piece) IsAt(pos Position) bool {
	return p.Position == pos
}

// Equal compares kind, id, orientation and position. Elevation and validation state are
// ignored.
func (p Piece) Equal(other Piece) bool {
	return p.Kind == other.Kind &&
		p.ID == other.ID &&
		p.Flipped == other.Flipped &&
		p.Position == other.Position
}

func (p Piece) String() string {
	return fmt.Sprintf("%s#%d flipped=%t at %s", p.Kind, p.ID, p.Flipped, p.Position)
}
