package vgeom

import (
	"slices"
	"sync/atomic"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/vgeom/internal/cow"
)

// Identity4 is the 4x4 identity matrix.
var Identity4 = f32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// VertexTransform is a matrix that animated vertices follow, typically a
// joint of a skeleton. The matrix is row-major and transforms column vectors.
//
// VertexTransform is safe for concurrent use.
type VertexTransform struct {
	name     string
	matrix   atomic.Pointer[f32.Mat4]
	modified atomic.Uint64
}

// NewVertexTransform creates a transform holding m.
func NewVertexTransform(name string, m f32.Mat4) *VertexTransform {
	t := &VertexTransform{name: name}
	t.SetMatrix(m)
	return t
}

// Name returns the transform's name.
func (t *VertexTransform) Name() string { return t.name }

// Matrix returns the current matrix.
func (t *VertexTransform) Matrix() f32.Mat4 { return *t.matrix.Load() }

// SetMatrix replaces the matrix and bumps the modification stamp.
func (t *VertexTransform) SetMatrix(m f32.Mat4) {
	t.matrix.Store(&m)
	t.modified.Store(uint64(NextUpdateSeq()))
}

// Modified returns the stamp of the last SetMatrix.
func (t *VertexTransform) Modified() UpdateSeq { return UpdateSeq(t.modified.Load()) }

// xformPoint applies m to (x,y,z,w).
func xformPoint(m *f32.Mat4, v [4]float32) [4]float32 {
	var out [4]float32
	for r := 0; r < 4; r++ {
		out[r] = m[r*4]*v[0] + m[r*4+1]*v[1] + m[r*4+2]*v[2] + m[r*4+3]*v[3]
	}
	return out
}

// xformVector applies the upper 3x3 of m to (x,y,z).
func xformVector(m *f32.Mat4, v [4]float32) [4]float32 {
	var out [4]float32
	for r := 0; r < 3; r++ {
		out[r] = m[r*4]*v[0] + m[r*4+1]*v[1] + m[r*4+2]*v[2]
	}
	out[3] = v[3]
	return out
}

// TransformTable is an ordered list of transforms, addressed by position.
// Hardware-animated data refers to it through per-vertex indices.
type TransformTable struct {
	cow.Ref
	transforms []*VertexTransform
	modified   UpdateSeq
}

// NewTransformTable creates a table of the given transforms.
func NewTransformTable(ts ...*VertexTransform) *TransformTable {
	return &TransformTable{transforms: slices.Clone(ts), modified: NextUpdateSeq()}
}

// Clone returns an unshared copy.
func (t *TransformTable) Clone() *TransformTable {
	return &TransformTable{transforms: slices.Clone(t.transforms), modified: t.modified}
}

// NumTransforms returns the table length.
func (t *TransformTable) NumTransforms() int { return len(t.transforms) }

// Transform returns the i-th transform, or nil if i is out of range.
func (t *TransformTable) Transform(i int) *VertexTransform {
	if i < 0 || i >= len(t.transforms) {
		violation("transform %d out of range [0,%d)", i, len(t.transforms))
		return nil
	}
	return t.transforms[i]
}

// Index returns the position of vt in the table, or -1.
func (t *TransformTable) Index(vt *VertexTransform) int {
	return slices.Index(t.transforms, vt)
}

// AddTransform appends vt and returns its index.
func (t *TransformTable) AddTransform(vt *VertexTransform) int {
	if t.IsShared() {
		violation("AddTransform on shared transform table")
		return -1
	}
	t.transforms = append(t.transforms, vt)
	t.modified = NextUpdateSeq()
	return len(t.transforms) - 1
}

// Modified returns the latest stamp of the table or any of its transforms.
func (t *TransformTable) Modified() UpdateSeq {
	m := t.modified
	for _, vt := range t.transforms {
		m = max(m, vt.Modified())
	}
	return m
}

// MaxBlendTransforms is the number of transforms one vertex may blend.
const MaxBlendTransforms = 4

// BlendEntry is one weighted transform of a TransformBlend.
type BlendEntry struct {
	Transform *VertexTransform
	Weight    float32
}

// TransformBlend is the weighted combination of up to four transforms that
// moves one vertex.
type TransformBlend struct {
	entries []BlendEntry
}

// NewTransformBlend creates a blend from (transform, weight) pairs.
func NewTransformBlend(entries ...BlendEntry) TransformBlend {
	var b TransformBlend
	for _, e := range entries {
		b.AddTransform(e.Transform, e.Weight)
	}
	return b
}

// AddTransform adds weight to t's share of the blend. A blend holds at most
// MaxBlendTransforms transforms; extra ones are dropped.
func (b *TransformBlend) AddTransform(t *VertexTransform, weight float32) {
	for i := range b.entries {
		if b.entries[i].Transform == t {
			b.entries[i].Weight += weight
			return
		}
	}
	if len(b.entries) >= MaxBlendTransforms {
		violation("transform blend holds more than %d transforms", MaxBlendTransforms)
		return
	}
	b.entries = append(b.entries, BlendEntry{Transform: t, Weight: weight})
}

// NumTransforms returns the number of transforms in the blend.
func (b TransformBlend) NumTransforms() int { return len(b.entries) }

// Entry returns the i-th weighted transform.
func (b TransformBlend) Entry(i int) BlendEntry {
	if i < 0 || i >= len(b.entries) {
		violation("blend entry %d out of range [0,%d)", i, len(b.entries))
		return BlendEntry{}
	}
	return b.entries[i]
}

// Weight returns the weight of t, or 0.
func (b TransformBlend) Weight(t *VertexTransform) float32 {
	for _, e := range b.entries {
		if e.Transform == t {
			return e.Weight
		}
	}
	return 0
}

// Normalize scales the weights to sum to 1.
func (b *TransformBlend) Normalize() {
	var sum float32
	for _, e := range b.entries {
		sum += e.Weight
	}
	if math32.Abs(sum) < 1e-12 {
		return
	}
	for i := range b.entries {
		b.entries[i].Weight /= sum
	}
}

// Matrix returns the weighted sum of the transforms' matrices.
func (b TransformBlend) Matrix() f32.Mat4 {
	if len(b.entries) == 0 {
		return Identity4
	}
	var out f32.Mat4
	for _, e := range b.entries {
		m := e.Transform.Matrix()
		for i := range out {
			out[i] += m[i] * e.Weight
		}
	}
	return out
}

// Modified returns the latest stamp of the blend's transforms.
func (b TransformBlend) Modified() UpdateSeq {
	var m UpdateSeq
	for _, e := range b.entries {
		m = max(m, e.Transform.Modified())
	}
	return m
}

// Equal reports whether two blends have the same transforms and weights.
func (b TransformBlend) Equal(o TransformBlend) bool {
	return slices.Equal(b.entries, o.entries)
}

// TransformBlendTable is the palette of blends used by CPU animation. Each
// vertex's transform_blend column holds an index into it.
type TransformBlendTable struct {
	cow.Ref
	blends   []TransformBlend
	modified UpdateSeq
}

// NewTransformBlendTable creates an empty palette.
func NewTransformBlendTable() *TransformBlendTable {
	return &TransformBlendTable{modified: NextUpdateSeq()}
}

// Clone returns an unshared copy.
func (t *TransformBlendTable) Clone() *TransformBlendTable {
	return &TransformBlendTable{blends: slices.Clone(t.blends), modified: t.modified}
}

// AddBlend returns the index of b in the palette, appending it if needed.
func (t *TransformBlendTable) AddBlend(b TransformBlend) int {
	for i := range t.blends {
		if t.blends[i].Equal(b) {
			return i
		}
	}
	if t.IsShared() {
		violation("AddBlend on shared transform blend table")
		return -1
	}
	t.blends = append(t.blends, b)
	t.modified = NextUpdateSeq()
	return len(t.blends) - 1
}

// SetBlend replaces blend i.
func (t *TransformBlendTable) SetBlend(i int, b TransformBlend) {
	if t.IsShared() {
		violation("SetBlend on shared transform blend table")
		return
	}
	if i < 0 || i >= len(t.blends) {
		violation("SetBlend(%d) out of range [0,%d)", i, len(t.blends))
		return
	}
	t.blends[i] = b
	t.modified = NextUpdateSeq()
}

// NumBlends returns the palette size.
func (t *TransformBlendTable) NumBlends() int { return len(t.blends) }

// Blend returns blend i. An out-of-range index yields the empty blend, which
// leaves vertices where they are.
func (t *TransformBlendTable) Blend(i int) TransformBlend {
	if i < 0 || i >= len(t.blends) {
		violation("blend %d out of range [0,%d)", i, len(t.blends))
		return TransformBlend{}
	}
	return t.blends[i]
}

// MaxSimultaneousTransforms returns the largest transform count of any blend.
func (t *TransformBlendTable) MaxSimultaneousTransforms() int {
	n := 0
	for _, b := range t.blends {
		n = max(n, b.NumTransforms())
	}
	return n
}

// Modified returns the latest stamp of the palette or any transform it uses.
func (t *TransformBlendTable) Modified() UpdateSeq {
	m := t.modified
	for _, b := range t.blends {
		m = max(m, b.Modified())
	}
	return m
}
