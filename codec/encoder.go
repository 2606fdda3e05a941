package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gogpu/vgeom"
)

// Encoder writes vgeom objects to a stream. Objects written by earlier
// Encode calls are referenced by id, never written twice.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	w      io.Writer
	header bool
	ids    map[any]uint64
	nextID uint64
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, ids: make(map[any]uint64)}
}

// Encode writes obj and every object it references that has not been
// written yet. obj is one of *vgeom.Geom, *vgeom.VertexData,
// *vgeom.Primitive, *vgeom.Format, *vgeom.ArrayFormat, *vgeom.Name,
// *vgeom.VertexTransform or *vgeom.VertexSlider.
func (e *Encoder) Encode(obj any) error {
	if !e.header {
		hdr := make([]byte, 0, len(magic)+2)
		hdr = append(hdr, magic...)
		hdr = binary.LittleEndian.AppendUint16(hdr, Version)
		if _, err := e.w.Write(hdr); err != nil {
			return err
		}
		e.header = true
	}

	var (
		id  uint64
		err error
	)
	switch v := obj.(type) {
	case *vgeom.Geom:
		id, err = e.geom(v)
	case *vgeom.VertexData:
		id, err = e.vertexData(v)
	case *vgeom.Primitive:
		id, err = e.primitive(v)
	case *vgeom.Format:
		id, err = e.format(v)
	case *vgeom.ArrayFormat:
		id, err = e.arrayFormat(v)
	case *vgeom.Name:
		id, err = e.name(v)
	case *vgeom.VertexTransform:
		id, err = e.transform(v)
	case *vgeom.VertexSlider:
		id, err = e.slider(v)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, obj)
	}
	if err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("%w: nil %T", ErrUnsupportedType, obj)
	}
	var p payload
	p.uvarint(id)
	return e.record(tagRoot, 0, p)
}

func (e *Encoder) record(t tag, id uint64, p payload) error {
	buf := make([]byte, 0, len(p)+2*binary.MaxVarintLen64+1)
	buf = append(buf, byte(t))
	buf = binary.AppendUvarint(buf, id)
	buf = binary.AppendUvarint(buf, uint64(len(p)))
	buf = append(buf, p...)
	_, err := e.w.Write(buf)
	return err
}

// seen returns the id already given to obj, or assigns a fresh one.
func (e *Encoder) seen(obj any) (id uint64, ok bool) {
	if id, ok := e.ids[obj]; ok {
		return id, true
	}
	e.nextID++
	e.ids[obj] = e.nextID
	return e.nextID, false
}

func (e *Encoder) name(n *vgeom.Name) (uint64, error) {
	if n == nil {
		return 0, nil
	}
	id, ok := e.seen(n)
	if ok {
		return id, nil
	}
	var p payload
	if n.IsRoot() {
		p.bool(false)
		return id, e.record(tagName, id, p)
	}
	parent, err := e.name(n.Parent())
	if err != nil {
		return 0, err
	}
	p.bool(true)
	p.uvarint(parent)
	p.string(n.Basename())
	return id, e.record(tagName, id, p)
}

func (e *Encoder) arrayFormat(a *vgeom.ArrayFormat) (uint64, error) {
	if a == nil {
		return 0, nil
	}
	id, ok := e.seen(a)
	if ok {
		return id, nil
	}
	cols := a.Columns()
	names := make([]uint64, len(cols))
	for i, c := range cols {
		n, err := e.name(c.Name())
		if err != nil {
			return 0, err
		}
		names[i] = n
	}
	var p payload
	p.int(a.PadTo())
	p.int(a.Stride())
	p.int(len(cols))
	for i, c := range cols {
		p.uvarint(names[i])
		p.int(c.NumComponents())
		p.byte(uint8(c.NumericType()))
		p.byte(uint8(c.Contents()))
		p.int(c.Start())
	}
	return id, e.record(tagArrayFormat, id, p)
}

func (e *Encoder) format(f *vgeom.Format) (uint64, error) {
	if f == nil {
		return 0, nil
	}
	id, ok := e.seen(f)
	if ok {
		return id, nil
	}
	arrays := make([]uint64, f.NumArrays())
	for i := range arrays {
		a, err := e.arrayFormat(f.Array(i))
		if err != nil {
			return 0, err
		}
		arrays[i] = a
	}
	anim := f.Animation()
	var p payload
	p.byte(uint8(anim.Type))
	p.int(anim.NumTransforms)
	p.bool(anim.Indexed)
	p.int(len(arrays))
	for _, a := range arrays {
		p.uvarint(a)
	}
	return id, e.record(tagFormat, id, p)
}

func (e *Encoder) transform(t *vgeom.VertexTransform) (uint64, error) {
	if t == nil {
		return 0, nil
	}
	id, ok := e.seen(t)
	if ok {
		return id, nil
	}
	var p payload
	p.string(t.Name())
	for _, v := range t.Matrix() {
		p.float32(v)
	}
	return id, e.record(tagTransform, id, p)
}

func (e *Encoder) slider(s *vgeom.VertexSlider) (uint64, error) {
	if s == nil {
		return 0, nil
	}
	id, ok := e.seen(s)
	if ok {
		return id, nil
	}
	n, err := e.name(s.Name())
	if err != nil {
		return 0, err
	}
	var p payload
	p.uvarint(n)
	p.float32(s.Value())
	return id, e.record(tagSlider, id, p)
}

// vertexData writes the data's upstream state. Animation tables are written
// inline; the transforms and sliders they reference are shared records.
func (e *Encoder) vertexData(d *vgeom.VertexData) (uint64, error) {
	if d == nil {
		return 0, nil
	}
	id, ok := e.seen(d)
	if ok {
		return id, nil
	}
	format, err := e.format(d.Format())
	if err != nil {
		return 0, err
	}

	var transforms []uint64
	tt := d.TransformTable()
	if tt != nil {
		for i := range tt.NumTransforms() {
			t, err := e.transform(tt.Transform(i))
			if err != nil {
				return 0, err
			}
			transforms = append(transforms, t)
		}
	}
	type blend struct {
		ids     []uint64
		weights []float32
	}
	var blends []blend
	bt := d.TransformBlendTable()
	if bt != nil {
		for i := range bt.NumBlends() {
			b := bt.Blend(i)
			var out blend
			for j := range b.NumTransforms() {
				entry := b.Entry(j)
				t, err := e.transform(entry.Transform)
				if err != nil {
					return 0, err
				}
				out.ids = append(out.ids, t)
				out.weights = append(out.weights, entry.Weight)
			}
			blends = append(blends, out)
		}
	}
	var sliders []uint64
	st := d.SliderTable()
	if st != nil {
		for i := range st.NumSliders() {
			s, err := e.slider(st.Slider(i))
			if err != nil {
				return 0, err
			}
			sliders = append(sliders, s)
		}
	}

	var p payload
	p.string(d.Name())
	p.uvarint(format)
	p.byte(uint8(d.UsageHint()))
	p.int(d.NumArrays())
	for i := range d.NumArrays() {
		a := d.Array(i)
		p.byte(uint8(a.UsageHint()))
		p.bytes(a.Bytes())
	}

	p.bool(tt != nil)
	p.int(len(transforms))
	for _, t := range transforms {
		p.uvarint(t)
	}
	p.bool(bt != nil)
	p.int(len(blends))
	for _, b := range blends {
		p.int(len(b.ids))
		for j := range b.ids {
			p.uvarint(b.ids[j])
			p.float32(b.weights[j])
		}
	}
	p.bool(st != nil)
	p.int(len(sliders))
	for _, s := range sliders {
		p.uvarint(s)
	}
	return id, e.record(tagVertexData, id, p)
}

func (e *Encoder) primitive(pr *vgeom.Primitive) (uint64, error) {
	if pr == nil {
		return 0, nil
	}
	id, ok := e.seen(pr)
	if ok {
		return id, nil
	}
	var p payload
	p.byte(uint8(pr.Kind()))
	p.int(pr.VerticesPerPrimitive())
	p.byte(uint8(pr.ShadeModel()))
	if pr.IsIndexed() {
		p.bool(true)
		idx := pr.Indices()
		p.int(len(idx))
		for _, v := range idx {
			p.uvarint(uint64(v))
		}
	} else {
		p.bool(false)
		first := 0
		if pr.NumVertices() > 0 {
			first = pr.Vertex(0)
		}
		p.int(first)
		p.int(pr.NumVertices())
	}
	ends := pr.Ends()
	p.int(len(ends))
	for _, end := range ends {
		p.int(end)
	}
	return id, e.record(tagPrimitive, id, p)
}

func (e *Encoder) geom(g *vgeom.Geom) (uint64, error) {
	if g == nil {
		return 0, nil
	}
	id, ok := e.seen(g)
	if ok {
		return id, nil
	}
	data, err := e.vertexData(g.VertexData())
	if err != nil {
		return 0, err
	}
	prims := g.Primitives()
	ids := make([]uint64, len(prims))
	for i, pr := range prims {
		if ids[i], err = e.primitive(pr); err != nil {
			return 0, err
		}
	}
	var p payload
	p.uvarint(data)
	p.int(len(ids))
	for _, pid := range ids {
		p.uvarint(pid)
	}
	return id, e.record(tagGeom, id, p)
}
