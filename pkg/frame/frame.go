package frame

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// HeaderLen covers the length byte and the type code.
	HeaderLen = 2

	// MaxSize is the largest frame the one byte length prefix can describe.
	MaxSize = 256
)

var (
	ErrShortFrame     = errors.New("frame: shorter than header")
	ErrLengthMismatch = errors.New("frame: length prefix does not match frame size")
	ErrTooLarge       = errors.New("frame: larger than the length prefix can describe")
)

// Frame is a raw message as it travels over the wire: byte 0 holds the number of bytes that
// follow it, byte 1 holds the type code.
type Frame []byte

// New allocates a frame with room for size bytes after the header and fills in the header.
// It panics if the frame would exceed MaxSize.
func New(code byte, size int) Frame {
	if size < 0 || HeaderLen+size > MaxSize {
		panic(fmt.Sprintf("frame: invalid size %d for code 0x%02x", size, code))
	}
	f := make(Frame, HeaderLen+size)
	f[0] = byte(size + 1)
	f[1] = code
	return f
}

func (f Frame) Code() byte {
	return f[1]
}

// Size is the number of bytes after the header.
func (f Frame) Size() int {
	return len(f) - HeaderLen
}

func (f Frame) String() string {
	return EncodeToString(f)
}

// Validate checks that b is a well formed frame.
func Validate(b []byte) error {
	if len(b) < HeaderLen {
		return ErrShortFrame
	}
	if len(b) > MaxSize {
		return ErrTooLarge
	}
	if int(b[0])+1 != len(b) {
		return ErrLengthMismatch
	}
	return nil
}

// EncodeToString renders b as dash separated hex, e.g. 01-16.
func EncodeToString(b []byte) string {
	hexDigits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range hexDigits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// DecodeString is the inverse of EncodeToString. Dashes and whitespace are ignored.
func DecodeString(s string) ([]byte, error) {
	s = strings.NewReplacer("-", "", " ", "", "\n", "", "\t", "").Replace(s)
	return hex.DecodeString(s)
}

func PutUint16(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b, v)
}

func Uint16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func PutFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func Float32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func PutBool(b []byte, v bool) {
	if v {
		b[0] = 1
		return
	}
	b[0] = 0
}

// Bool reports whether the byte equals 1. Any other value is false.
func Bool(b []byte) bool {
	return b[0] == 1
}
