package backend

import (
	"cmp"
	"fmt"

	"github.com/gogpu/vgeom"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU reference backend.
	BackendSoftware = "software"
	// BackendWebGPU is the name of the GPU backend (gogpu/wgpu hal).
	BackendWebGPU = "webgpu"
)

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, func() Backend {
		return NewSoftwareBackend()
	})
}

// SoftwareMunger converts geoms into the form a CPU consumer reads most
// easily: animation applied, every column float32, every strip and fan
// decomposed into lists.
type SoftwareMunger struct {
	*vgeom.FormatMunger
}

// NewSoftwareMunger creates a software munger over registry (nil means the
// default registry).
func NewSoftwareMunger(registry *vgeom.FormatRegistry) *SoftwareMunger {
	return &SoftwareMunger{FormatMunger: vgeom.NewFormatMunger(registry, floatFormat)}
}

// floatFormat rewrites f with every column widened to float32. Packed
// colours become four floats.
func floatFormat(f *vgeom.Format) *vgeom.Format {
	if f.Animation().Type == vgeom.AnimationCPU {
		f = f.PostAnimatedFormat()
	}
	out := vgeom.NewFormat()
	for _, a := range f.Arrays() {
		b := vgeom.NewArrayFormat()
		for _, c := range a.Columns() {
			n := c.NumComponents()
			if c.IsPackedColor() {
				n = 4
			}
			b.AddColumn(c.Name(), n, vgeom.Float32, c.Contents(), -1)
		}
		out.AddArray(b)
	}
	return out
}

// MungeData animates d on the CPU if its format asks for it, then converts
// it to float columns.
func (m *SoftwareMunger) MungeData(d *vgeom.VertexData) (*vgeom.VertexData, error) {
	if d.Format().Animation().Type == vgeom.AnimationCPU {
		d = d.Animate()
	}
	return m.FormatMunger.MungeData(d)
}

// MungeGeom decomposes every strip and fan of g.
func (m *SoftwareMunger) MungeGeom(g *vgeom.Geom, d *vgeom.VertexData) (*vgeom.Geom, *vgeom.VertexData) {
	for _, p := range g.Primitives() {
		if p.Kind().IsComplex() {
			return g.Decompose(), d
		}
	}
	return g, d
}

// Compare orders mungers by type; all software mungers over one registry
// are interchangeable.
func (m *SoftwareMunger) Compare(other vgeom.Munger) int {
	if c := CompareMungerTypes(m, other); c != 0 {
		return c
	}
	o := other.(*SoftwareMunger)
	return cmp.Compare(m.Registry().ID(), o.Registry().ID())
}

// CompareMungerTypes orders two mungers by their dynamic type name. It
// returns 0 when both have the same type.
func CompareMungerTypes(a, b vgeom.Munger) int {
	return cmp.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}

// SoftwareBackend hands munged vertex data to a DrawSink without uploading
// anything. It is always available and serves as the reference for GPU
// backends.
type SoftwareBackend struct {
	initialized bool
	munger      vgeom.Munger
}

// NewSoftwareBackend creates a new software backend.
func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{}
}

// Name returns the backend identifier.
func (b *SoftwareBackend) Name() string {
	return BackendSoftware
}

// Init initializes the backend.
func (b *SoftwareBackend) Init() error {
	b.munger = vgeom.RegisterMunger(NewSoftwareMunger(nil))
	b.initialized = true
	return nil
}

// Close releases all backend resources.
func (b *SoftwareBackend) Close() {
	b.initialized = false
}

// Munger returns the backend's registered munger, or nil before Init.
func (b *SoftwareBackend) Munger() vgeom.Munger {
	return b.munger
}

// DrawGeom munges g and passes the result to sink.
func (b *SoftwareBackend) DrawGeom(g *vgeom.Geom, sink DrawSink) (bool, error) {
	if !b.initialized {
		return false, ErrNotInitialized
	}
	mg, md, err := g.MungeGeom(b.munger, nil)
	if err != nil {
		return false, err
	}
	if !mg.CheckValidWith(md) {
		vgeom.Logger().Debug("backend: skipping invalid geom", "data", md.Name())
		return false, nil
	}
	if !sink.BeginDrawPrimitives(&DrawState{Data: md}) {
		return false, nil
	}
	defer sink.EndDrawPrimitives()
	n, err := DrawPrimitives(sink, mg.Primitives(), nil)
	return n > 0, err
}
