// Package color provides the 8-bit colour intermediate used by vertex colour
// columns: unpacking and packing of the two 32-bit packed orders and the
// float conversions around them.
package color

// ColorF32 represents a color with float32 components, nominally in [0,1].
type ColorF32 struct {
	R, G, B, A float32
}

// ColorU8 represents a color with uint8 components in [0,255].
type ColorU8 struct {
	R, G, B, A uint8
}

// Order names a 32-bit packed colour layout.
type Order uint8

const (
	// OrderDCBA stores R,G,B,A in ascending byte addresses (the OpenGL order):
	// the little-endian word is A<<24 | B<<16 | G<<8 | R.
	OrderDCBA Order = iota
	// OrderDABC stores B,G,R,A in ascending byte addresses (the DirectX ARGB
	// order): the little-endian word is A<<24 | R<<16 | G<<8 | B.
	OrderDABC
)

// Pack returns the packed word for c in the given order.
func Pack(c ColorU8, o Order) uint32 {
	if o == OrderDABC {
		return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	}
	return uint32(c.A)<<24 | uint32(c.B)<<16 | uint32(c.G)<<8 | uint32(c.R)
}

// Unpack decodes a packed word in the given order.
func Unpack(v uint32, o Order) ColorU8 {
	if o == OrderDABC {
		return ColorU8{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: uint8(v >> 24)}
	}
	return ColorU8{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: uint8(v >> 24)}
}

// BytesOf returns the four bytes of c in memory order for the given layout.
func BytesOf(c ColorU8, o Order) [4]byte {
	if o == OrderDABC {
		return [4]byte{c.B, c.G, c.R, c.A}
	}
	return [4]byte{c.R, c.G, c.B, c.A}
}

// FromBytes reads a colour stored in memory order for the given layout.
func FromBytes(b []byte, o Order) ColorU8 {
	if o == OrderDABC {
		return ColorU8{R: b[2], G: b[1], B: b[0], A: b[3]}
	}
	return ColorU8{R: b[0], G: b[1], B: b[2], A: b[3]}
}

// Swizzle converts n packed colours between the two orders. Only bytes 0 and 2
// of every colour change place, so the conversion is its own inverse.
// dst and src may be the same slice.
func Swizzle(dst, src []byte, n int) {
	for i := 0; i < n; i++ {
		p := i * 4
		r, g, b, a := src[p], src[p+1], src[p+2], src[p+3]
		dst[p], dst[p+1], dst[p+2], dst[p+3] = b, g, r, a
	}
}
