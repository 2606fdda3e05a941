package webgpu

import (
	"cmp"

	"github.com/gogpu/vgeom"
	"github.com/gogpu/vgeom/backend"
)

// MungerConfig selects which conversions the GPU performs itself.
type MungerConfig struct {
	// HardwareAnimation sends per-vertex transform weights and indices to
	// the GPU instead of blending vertices on the CPU.
	HardwareAnimation bool

	// MaxTransforms is the number of weights per vertex for hardware
	// animation, 1 to 4. Zero disables hardware animation.
	MaxTransforms int

	// DecomposeStrips turns strips into lists as well as fans. Without it
	// strips are drawn one run per draw call.
	DecomposeStrips bool
}

// DefaultMungerConfig enables hardware animation with the configured
// number of transforms.
func DefaultMungerConfig() MungerConfig {
	n := vgeom.ActiveConfig().MaxHardwareTransforms
	return MungerConfig{HardwareAnimation: n > 0, MaxTransforms: n}
}

// Munger rewrites vertex data into formats WebGPU can fetch directly:
//   - packed DirectX colours become RGBA bytes (Unorm8x4)
//   - 8 and 16 bit columns with an odd component count gain one component
//   - every attribute starts on a 4-byte boundary and strides are padded to 4
//   - CPU-animated data is either animated on the CPU or given
//     transform_weight and transform_index columns for the vertex shader
//   - triangle fans (and, if configured, all strips) are decomposed
type Munger struct {
	*vgeom.FormatMunger
	cfg MungerConfig
}

// NewMunger creates a munger interning its formats in registry (nil means
// the default registry).
func NewMunger(registry *vgeom.FormatRegistry, cfg MungerConfig) *Munger {
	cfg.MaxTransforms = min(max(cfg.MaxTransforms, 0), 4)
	if cfg.MaxTransforms == 0 {
		cfg.HardwareAnimation = false
	}
	if !cfg.HardwareAnimation {
		cfg.MaxTransforms = 0
	}
	m := &Munger{cfg: cfg}
	m.FormatMunger = vgeom.NewFormatMunger(registry, m.rewrite)
	return m
}

// Config returns the munger's normalized configuration.
func (m *Munger) Config() MungerConfig { return m.cfg }

// hardwareFormat reports whether data of CPU-animated format f is handed to
// the GPU unanimated. Morph targets always animate on the CPU.
func (m *Munger) hardwareFormat(f *vgeom.Format) bool {
	return m.cfg.HardwareAnimation &&
		f.Animation().Type == vgeom.AnimationCPU &&
		len(f.Morphs()) == 0
}

func (m *Munger) rewrite(f *vgeom.Format) *vgeom.Format {
	anim := f.Animation()
	src := f
	hardware := m.hardwareFormat(f)
	switch {
	case hardware:
		anim = vgeom.HardwareAnimation(m.cfg.MaxTransforms, true)
		src = f.PostAnimatedFormat()
	case anim.Type == vgeom.AnimationCPU:
		anim = vgeom.AnimationSpec{}
		src = f.PostAnimatedFormat()
	}

	out := vgeom.NewFormatWith(anim)
	for _, a := range src.Arrays() {
		out.AddArray(legalArray(a))
	}
	if hardware {
		b := vgeom.NewArrayFormat()
		b.AddColumn(vgeom.NameTransformWeight, anim.NumTransforms, vgeom.Float32, vgeom.ContentsOther, -1)
		b.AddColumn(vgeom.NameTransformIndex, 4, vgeom.Uint8, vgeom.ContentsIndex, -1)
		b.SetPadTo(4)
		out.AddArray(b)
	}
	return out
}

// legalArray returns a copy of a with every column in a WebGPU vertex
// format, each on a 4-byte boundary.
func legalArray(a *vgeom.ArrayFormat) *vgeom.ArrayFormat {
	b := vgeom.NewArrayFormat()
	for _, c := range a.Columns() {
		n, nt := legalColumn(c)
		b.AddColumn(c.Name(), n, nt, c.Contents(), alignUp(b.TotalBytes(), 4))
	}
	b.SetPadTo(4)
	return b
}

// legalColumn returns the shape WebGPU can read column c as.
func legalColumn(c *vgeom.Column) (int, vgeom.NumericType) {
	n, nt := c.NumComponents(), c.NumericType()
	switch nt {
	case vgeom.PackedDABC:
		nt = vgeom.PackedDCBA
	case vgeom.Uint8, vgeom.Uint16:
		if n%2 == 1 {
			n++
		}
	}
	return n, nt
}

func alignUp(n, a int) int {
	return (n + a - 1) / a * a
}

// MungeData animates d on the CPU unless the GPU can do it, then converts
// it to the rewritten format. Data whose blends use more transforms than
// the configured weight count falls back to the CPU.
func (m *Munger) MungeData(d *vgeom.VertexData) (*vgeom.VertexData, error) {
	if d.Format().Animation().Type == vgeom.AnimationCPU && !m.animatesInHardware(d) {
		d = d.Animate()
	}
	return m.FormatMunger.MungeData(d)
}

func (m *Munger) animatesInHardware(d *vgeom.VertexData) bool {
	if !m.hardwareFormat(d.Format()) {
		return false
	}
	bt := d.TransformBlendTable()
	return bt == nil || bt.MaxSimultaneousTransforms() <= m.cfg.MaxTransforms
}

// MungeGeom decomposes the primitives WebGPU has no topology for.
func (m *Munger) MungeGeom(g *vgeom.Geom, d *vgeom.VertexData) (*vgeom.Geom, *vgeom.VertexData) {
	var out *vgeom.Geom
	for i, p := range g.Primitives() {
		if !m.decomposes(p.Kind()) {
			continue
		}
		if out == nil {
			out = g.MakeCopy()
		}
		if err := out.SetPrimitive(i, p.Decompose()); err != nil {
			vgeom.Logger().Warn("webgpu: decomposed primitive rejected", "kind", p.Kind(), "err", err)
		}
	}
	if out == nil {
		return g, d
	}
	return out, d
}

func (m *Munger) decomposes(k vgeom.PrimitiveKind) bool {
	return k == vgeom.TriangleFans || (m.cfg.DecomposeStrips && k.IsComplex())
}

// Compare orders mungers by type, registry and configuration.
func (m *Munger) Compare(other vgeom.Munger) int {
	if c := backend.CompareMungerTypes(m, other); c != 0 {
		return c
	}
	o := other.(*Munger)
	if c := cmp.Compare(m.Registry().ID(), o.Registry().ID()); c != 0 {
		return c
	}
	if c := compareBool(m.cfg.HardwareAnimation, o.cfg.HardwareAnimation); c != 0 {
		return c
	}
	if c := cmp.Compare(m.cfg.MaxTransforms, o.cfg.MaxTransforms); c != 0 {
		return c
	}
	return compareBool(m.cfg.DecomposeStrips, o.cfg.DecomposeStrips)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
