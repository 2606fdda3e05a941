// Package codec reads and writes vgeom objects as a binary stream.
//
// A stream starts with the magic "VGEO" and a little-endian uint16 version,
// followed by records. Each record is a tag byte, an object id, the payload
// length and the payload, the integers as uvarints. An object is written
// once, after every object it references; later references use its id. A
// root record names the object one Encode call was asked to write, so
// objects shared between several encoded values stay shared after decoding.
//
// Decoded formats are registered, so a format read back is the same pointer
// as the equal format already in use.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// Stream format errors.
var (
	// ErrBadMagic indicates the stream does not start with "VGEO".
	ErrBadMagic = errors.New("codec: not a vgeom stream")

	// ErrUnsupportedVersion indicates a stream written by a newer version.
	ErrUnsupportedVersion = errors.New("codec: unsupported stream version")

	// ErrCorrupt indicates a malformed record or a dangling reference.
	ErrCorrupt = errors.New("codec: corrupt stream")

	// ErrUnsupportedType indicates a value the codec cannot write.
	ErrUnsupportedType = errors.New("codec: unsupported type")
)

const magic = "VGEO"

// Version is the stream version written by Encoder.
const Version uint16 = 1

type tag uint8

const (
	tagName tag = iota + 1
	tagArrayFormat
	tagFormat
	tagTransform
	tagSlider
	tagVertexData
	tagPrimitive
	tagGeom
	tagRoot
)

func (t tag) String() string {
	switch t {
	case tagName:
		return "name"
	case tagArrayFormat:
		return "array format"
	case tagFormat:
		return "format"
	case tagTransform:
		return "transform"
	case tagSlider:
		return "slider"
	case tagVertexData:
		return "vertex data"
	case tagPrimitive:
		return "primitive"
	case tagGeom:
		return "geom"
	case tagRoot:
		return "root"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// payload appends the fields of one record.
type payload []byte

func (p *payload) uvarint(v uint64)  { *p = binary.AppendUvarint(*p, v) }
func (p *payload) int(v int)         { p.uvarint(uint64(v)) }
func (p *payload) byte(v uint8)      { *p = append(*p, v) }
func (p *payload) float32(v float32) { *p = binary.LittleEndian.AppendUint32(*p, math32.Float32bits(v)) }

func (p *payload) bool(v bool) {
	if v {
		p.byte(1)
	} else {
		p.byte(0)
	}
}

func (p *payload) bytes(b []byte) {
	p.int(len(b))
	*p = append(*p, b...)
}

func (p *payload) string(s string) {
	p.int(len(s))
	*p = append(*p, s...)
}

// fields reads the fields of one record. The first failure sticks; later
// reads return zero values.
type fields struct {
	b   []byte
	err error
}

func (f *fields) fail(what string) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: truncated %s", ErrCorrupt, what)
	}
	f.b = nil
}

func (f *fields) uvarint() uint64 {
	if f.err != nil {
		return 0
	}
	v, n := binary.Uvarint(f.b)
	if n <= 0 {
		f.fail("integer")
		return 0
	}
	f.b = f.b[n:]
	return v
}

// int reads a count, offset or index.
func (f *fields) int() int {
	v := f.uvarint()
	if v > math32.MaxInt32 {
		f.fail("count")
		return 0
	}
	return int(v)
}

func (f *fields) byte() uint8 {
	if f.err != nil {
		return 0
	}
	if len(f.b) < 1 {
		f.fail("byte")
		return 0
	}
	v := f.b[0]
	f.b = f.b[1:]
	return v
}

func (f *fields) bool() bool { return f.byte() != 0 }

func (f *fields) float32() float32 {
	if f.err != nil {
		return 0
	}
	if len(f.b) < 4 {
		f.fail("float")
		return 0
	}
	v := math32.Float32frombits(binary.LittleEndian.Uint32(f.b))
	f.b = f.b[4:]
	return v
}

func (f *fields) bytes() []byte {
	n := f.int()
	if f.err != nil {
		return nil
	}
	if len(f.b) < n {
		f.fail("bytes")
		return nil
	}
	v := f.b[:n:n]
	f.b = f.b[n:]
	return v
}

func (f *fields) string() string { return string(f.bytes()) }
