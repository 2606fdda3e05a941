package vgeom

import "sync"

// Standard formats, registered in the default registry on first use.
var (
	stdOnce    sync.Once
	stdFormats struct {
		v3, v3n3, v3t2, v3n3t2, v3c4, v3n3c4, v3c4t2, v3n3c4t2, v3cp *Format
	}
)

func stdFormat(cols ...ColumnSpec) *Format {
	return RegisterFormat(NewFormat(NewArrayFormat(cols...)))
}

var (
	specVertex   = ColumnSpec{NameVertex, 3, Float32, ContentsPoint}
	specNormal   = ColumnSpec{NameNormal, 3, Float32, ContentsVector}
	specTexcoord = ColumnSpec{NameTexcoord, 2, Float32, ContentsTexcoord}
	specColor    = ColumnSpec{NameColor, 4, Float32, ContentsColor}
	specPacked   = ColumnSpec{NameColor, 1, PackedDABC, ContentsColor}
)

func initStdFormats() {
	stdOnce.Do(func() {
		s := &stdFormats
		s.v3 = stdFormat(specVertex)
		s.v3n3 = stdFormat(specVertex, specNormal)
		s.v3t2 = stdFormat(specVertex, specTexcoord)
		s.v3n3t2 = stdFormat(specVertex, specNormal, specTexcoord)
		s.v3c4 = stdFormat(specVertex, specColor)
		s.v3n3c4 = stdFormat(specVertex, specNormal, specColor)
		s.v3c4t2 = stdFormat(specVertex, specColor, specTexcoord)
		s.v3n3c4t2 = stdFormat(specVertex, specNormal, specColor, specTexcoord)
		s.v3cp = stdFormat(specVertex, specPacked)
	})
}

// FormatV3 is float xyz positions only.
func FormatV3() *Format { initStdFormats(); return stdFormats.v3 }

// FormatV3N3 adds float normals.
func FormatV3N3() *Format { initStdFormats(); return stdFormats.v3n3 }

// FormatV3T2 adds one float uv set.
func FormatV3T2() *Format { initStdFormats(); return stdFormats.v3t2 }

// FormatV3N3T2 has positions, normals and uvs.
func FormatV3N3T2() *Format { initStdFormats(); return stdFormats.v3n3t2 }

// FormatV3C4 adds float RGBA colours.
func FormatV3C4() *Format { initStdFormats(); return stdFormats.v3c4 }

func FormatV3N3C4() *Format { initStdFormats(); return stdFormats.v3n3c4 }

func FormatV3C4T2() *Format { initStdFormats(); return stdFormats.v3c4t2 }

func FormatV3N3C4T2() *Format { initStdFormats(); return stdFormats.v3n3c4t2 }

// FormatV3CP adds a packed DABC colour.
func FormatV3CP() *Format { initStdFormats(); return stdFormats.v3cp }
