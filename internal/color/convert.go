package color

import "github.com/chewxy/math32"

// U8ToF32 converts ColorU8 to ColorF32.
// Each uint8 component [0,255] is mapped to float32 [0,1].
func U8ToF32(c ColorU8) ColorF32 {
	return ColorF32{
		R: float32(c.R) / 255.0,
		G: float32(c.G) / 255.0,
		B: float32(c.B) / 255.0,
		A: float32(c.A) / 255.0,
	}
}

// F32ToU8 converts ColorF32 to ColorU8.
// Each float32 component [0,1] is mapped to uint8 [0,255] with rounding.
func F32ToU8(c ColorF32) ColorU8 {
	return ColorU8{
		R: UnitToU8(c.R),
		G: UnitToU8(c.G),
		B: UnitToU8(c.B),
		A: UnitToU8(c.A),
	}
}

// UnitToU8 clamps v to [0,1] and converts it to uint8 with rounding.
func UnitToU8(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math32.Round(v * 255.0))
}

// UnitToU16 clamps v to [0,1] and converts it to uint16 with rounding.
func UnitToU16(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 65535
	}
	return uint16(math32.Round(v * 65535.0))
}

// Scale multiplies c by s component-wise and adds offset, clamping the
// result to the 8-bit range.
func Scale(c ColorU8, s, offset [4]float32) ColorU8 {
	f := U8ToF32(c)
	return F32ToU8(ColorF32{
		R: f.R*s[0] + offset[0],
		G: f.G*s[1] + offset[1],
		B: f.B*s[2] + offset[2],
		A: f.A*s[3] + offset[3],
	})
}
