package backend

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vgeom"
)

// IndexUploader returns the GPU index buffer of an indexed primitive.
type IndexUploader func(p *vgeom.Primitive) (hal.Buffer, gputypes.IndexFormat, error)

// DrawPrimitives issues the draw calls of prims on sink and returns how many
// were issued. Fixed-arity primitives are one call covering every closed
// primitive; strips get one call per run. Kinds without a topology
// (patches, fans) are skipped. upload may be nil for backends without index
// buffers.
func DrawPrimitives(sink DrawSink, prims []*vgeom.Primitive, upload IndexUploader) (int, error) {
	n := 0
	for _, p := range prims {
		if p.NumPrimitives() == 0 {
			continue
		}
		topo, ok := p.Topology()
		if !ok {
			vgeom.Logger().Debug("backend: primitive kind has no topology", "kind", p.Kind())
			continue
		}
		call := DrawCall{Primitive: p, Topology: topo, Indexed: p.IsIndexed()}
		if call.Indexed && upload != nil {
			buf, format, err := upload(p)
			if err != nil {
				return n, err
			}
			call.IndexBuffer, call.IndexFormat = buf, format
		}

		if !p.Kind().IsComplex() {
			call.First, call.Count = drawStart(p, 0, call.Indexed), p.NumPrimitives()*p.VerticesPerPrimitive()
			if err := sink.Draw(call); err != nil {
				return n, fmt.Errorf("backend: draw %s: %w", p.Kind(), err)
			}
			n++
			continue
		}
		for i := range p.NumPrimitives() {
			call.First = drawStart(p, p.PrimitiveStart(i), call.Indexed)
			call.Count = p.PrimitiveNumVertices(i)
			if err := sink.Draw(call); err != nil {
				return n, fmt.Errorf("backend: draw %s run %d: %w", p.Kind(), i, err)
			}
			n++
		}
	}
	return n, nil
}

// drawStart converts a position in p's vertex list into the first index or
// the first vertex of a draw.
func drawStart(p *vgeom.Primitive, pos int, indexed bool) int {
	if indexed {
		return pos
	}
	return p.Vertex(pos)
}
