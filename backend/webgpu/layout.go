package webgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/vgeom"
)

// VertexLayouts returns one vertex buffer layout per array of f. Shader
// locations are numbered across the arrays in order, columns in byte-offset
// order within each array.
func VertexLayouts(f *vgeom.Format) ([]gputypes.VertexBufferLayout, error) {
	layouts := make([]gputypes.VertexBufferLayout, 0, f.NumArrays())
	var loc uint32
	for i := range f.NumArrays() {
		a := f.Array(i)
		l, ok := a.BufferLayout(loc)
		if !ok {
			return nil, fmt.Errorf("%w: array %d of %s", ErrUnsupportedFormat, i, f)
		}
		for _, attr := range l.Attributes {
			if attr.Offset%min(4, attr.Format.Size()) != 0 {
				return nil, fmt.Errorf("%w: %s at offset %d", ErrUnsupportedFormat, attr.Format, attr.Offset)
			}
		}
		if l.ArrayStride%4 != 0 {
			return nil, fmt.Errorf("%w: stride %d", ErrUnsupportedFormat, l.ArrayStride)
		}
		layouts = append(layouts, l)
		loc += uint32(a.NumColumns())
	}
	return layouts, nil
}
