package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gogpu/vgeom"
)

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithRegistry registers decoded formats in r instead of the default
// registry.
func WithRegistry(r *vgeom.FormatRegistry) DecoderOption {
	return func(d *Decoder) {
		if r != nil {
			d.registry = r
		}
	}
}

// WithNames interns decoded names in t instead of the default table.
func WithNames(t *vgeom.NameTable) DecoderOption {
	return func(d *Decoder) {
		if t != nil {
			d.names = t
		}
	}
}

// WithObjectOptions passes opts to every vertex data, primitive and geom the
// decoder creates.
func WithObjectOptions(opts ...vgeom.Option) DecoderOption {
	return func(d *Decoder) { d.objOpts = append(d.objOpts, opts...) }
}

type rawRecord struct {
	tag  tag
	body []byte
}

// Decoder reads objects written by an Encoder. Records are buffered as they
// arrive and turned into objects when a root record asks for them, so a
// reference may point at any record read so far.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	r        *bufio.Reader
	header   bool
	registry *vgeom.FormatRegistry
	names    *vgeom.NameTable
	objOpts  []vgeom.Option

	records   map[uint64]rawRecord
	objects   map[uint64]any
	resolving map[uint64]bool
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:         bufio.NewReader(r),
		registry:  vgeom.DefaultRegistry(),
		names:     vgeom.DefaultNames(),
		records:   make(map[uint64]rawRecord),
		objects:   make(map[uint64]any),
		resolving: make(map[uint64]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.objOpts = append([]vgeom.Option{vgeom.WithRegistry(d.registry)}, d.objOpts...)
	return d
}

// Decode returns the next object written by Encoder.Encode. It returns
// io.EOF at a clean end of stream.
func (d *Decoder) Decode() (any, error) {
	if !d.header {
		if err := d.readHeader(); err != nil {
			return nil, err
		}
		d.header = true
	}
	for {
		t, id, body, err := d.readRecord()
		if err != nil {
			return nil, err
		}
		if t != tagRoot {
			_, pending := d.records[id]
			_, built := d.objects[id]
			if pending || built || id == 0 {
				return nil, fmt.Errorf("%w: duplicate record %d", ErrCorrupt, id)
			}
			d.records[id] = rawRecord{tag: t, body: body}
			continue
		}
		f := fields{b: body}
		root := f.uvarint()
		if f.err != nil {
			return nil, f.err
		}
		obj, err := d.resolve(root)
		if err != nil {
			return nil, err
		}
		vgeom.Logger().Debug("codec: decoded", "id", root, "type", fmt.Sprintf("%T", obj))
		return obj, nil
	}
}

func (d *Decoder) readHeader() error {
	var hdr [len(magic) + 2]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrBadMagic
		}
		return err
	}
	if string(hdr[:len(magic)]) != magic {
		return ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(hdr[len(magic):]); v > Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	return nil
}

func (d *Decoder) readRecord() (tag, uint64, []byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, 0, nil, err
	}
	t := tag(b)
	if t < tagName || t > tagRoot {
		return 0, 0, nil, fmt.Errorf("%w: unknown %s", ErrCorrupt, t)
	}
	id, err := binary.ReadUvarint(d.r)
	if err != nil {
		return 0, 0, nil, truncated(err)
	}
	n, err := binary.ReadUvarint(d.r)
	if err != nil {
		return 0, 0, nil, truncated(err)
	}
	if n > 1<<30 {
		return 0, 0, nil, fmt.Errorf("%w: %s record of %d bytes", ErrCorrupt, t, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return 0, 0, nil, truncated(err)
	}
	return t, id, body, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated record", ErrCorrupt)
	}
	return err
}

// resolve returns the object with the given id, building it and the objects
// it references on first use.
func (d *Decoder) resolve(id uint64) (any, error) {
	if obj, ok := d.objects[id]; ok {
		return obj, nil
	}
	rec, ok := d.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: reference to unknown record %d", ErrCorrupt, id)
	}
	if d.resolving[id] {
		return nil, fmt.Errorf("%w: record %d references itself", ErrCorrupt, id)
	}
	d.resolving[id] = true
	defer delete(d.resolving, id)

	f := &fields{b: rec.body}
	var (
		obj any
		err error
	)
	switch rec.tag {
	case tagName:
		obj, err = d.name(f)
	case tagArrayFormat:
		obj, err = d.arrayFormat(f)
	case tagFormat:
		obj, err = d.format(f)
	case tagTransform:
		obj, err = d.transform(f)
	case tagSlider:
		obj, err = d.slider(f)
	case tagVertexData:
		obj, err = d.vertexData(f)
	case tagPrimitive:
		obj, err = d.primitive(f)
	case tagGeom:
		obj, err = d.geom(f)
	default:
		err = fmt.Errorf("%w: %s record %d", ErrCorrupt, rec.tag, id)
	}
	if err == nil {
		err = f.err
	}
	if err != nil {
		return nil, err
	}
	d.objects[id] = obj
	delete(d.records, id)
	return obj, nil
}

// ref resolves a reference to an object of type T. Id 0 is nil.
func ref[T any](d *Decoder, f *fields) (T, error) {
	var zero T
	id := f.uvarint()
	if f.err != nil || id == 0 {
		return zero, f.err
	}
	obj, err := d.resolve(id)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: record %d is %T, want %T", ErrCorrupt, id, obj, zero)
	}
	return v, nil
}

func (d *Decoder) name(f *fields) (*vgeom.Name, error) {
	if !f.bool() {
		return d.names.Root(), f.err
	}
	parent, err := ref[*vgeom.Name](d, f)
	if err != nil {
		return nil, err
	}
	base := f.string()
	if parent == nil || base == "" {
		return nil, fmt.Errorf("%w: name without parent or basename", ErrCorrupt)
	}
	return parent.Append(base), f.err
}

func (d *Decoder) arrayFormat(f *fields) (*vgeom.ArrayFormat, error) {
	a := vgeom.NewArrayFormat()
	a.SetPadTo(f.int())
	stride := f.int()
	n := f.int()
	for range n {
		name, err := ref[*vgeom.Name](d, f)
		if err != nil {
			return nil, err
		}
		comps := f.int()
		nt := vgeom.NumericType(f.byte())
		contents := vgeom.Contents(f.byte())
		start := f.int()
		if f.err != nil {
			return nil, f.err
		}
		if name == nil || comps < 1 || nt > vgeom.Float32 || contents > vgeom.ContentsMorphDelta {
			return nil, fmt.Errorf("%w: invalid column", ErrCorrupt)
		}
		a.AddColumn(name, comps, nt, contents, start)
	}
	if f.err != nil {
		return nil, f.err
	}
	if a.NumColumns() != n {
		return nil, fmt.Errorf("%w: overlapping columns", ErrCorrupt)
	}
	a.SetStride(stride)
	return d.registry.RegisterArray(a), nil
}

func (d *Decoder) format(f *fields) (*vgeom.Format, error) {
	anim := vgeom.AnimationSpec{
		Type:          vgeom.AnimationType(f.byte()),
		NumTransforms: f.int(),
		Indexed:       f.bool(),
	}
	n := f.int()
	arrays := make([]*vgeom.ArrayFormat, 0, min(n, len(f.b)))
	for range n {
		a, err := ref[*vgeom.ArrayFormat](d, f)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, fmt.Errorf("%w: format with a nil array", ErrCorrupt)
		}
		arrays = append(arrays, a)
	}
	if f.err != nil {
		return nil, f.err
	}
	return d.registry.Register(vgeom.NewFormatWith(anim, arrays...)), nil
}

func (d *Decoder) transform(f *fields) (*vgeom.VertexTransform, error) {
	name := f.string()
	var m [16]float32
	for i := range m {
		m[i] = f.float32()
	}
	return vgeom.NewVertexTransform(name, m), f.err
}

func (d *Decoder) slider(f *fields) (*vgeom.VertexSlider, error) {
	name, err := ref[*vgeom.Name](d, f)
	if err != nil {
		return nil, err
	}
	if name == nil {
		return nil, fmt.Errorf("%w: slider without a name", ErrCorrupt)
	}
	s := vgeom.NewVertexSlider(name)
	s.SetValue(f.float32())
	return s, f.err
}

func (d *Decoder) vertexData(f *fields) (*vgeom.VertexData, error) {
	name := f.string()
	format, err := ref[*vgeom.Format](d, f)
	if err != nil {
		return nil, err
	}
	if format == nil {
		return nil, fmt.Errorf("%w: vertex data %q without a format", ErrCorrupt, name)
	}
	usage := vgeom.UsageHint(f.byte())
	if n := f.int(); f.err == nil && n != format.NumArrays() {
		return nil, fmt.Errorf("%w: %d arrays for a format of %d", ErrCorrupt, n, format.NumArrays())
	}
	if f.err != nil {
		return nil, f.err
	}

	out := vgeom.NewVertexData(name, format, usage, d.objOpts...)
	rows := -1
	for i := range format.NumArrays() {
		af := format.Array(i)
		a := vgeom.NewVertexArray(af, vgeom.UsageHint(f.byte()))
		b := f.bytes()
		if f.err != nil {
			return nil, f.err
		}
		if s := af.Stride(); s > 0 && len(b)%s != 0 {
			return nil, fmt.Errorf("%w: array %d holds %d bytes, stride %d", ErrCorrupt, i, len(b), s)
		}
		a.SetBytes(b)
		if rows >= 0 && a.NumRows() != rows {
			return nil, fmt.Errorf("%w: array %d has %d rows, want %d", ErrCorrupt, i, a.NumRows(), rows)
		}
		rows = a.NumRows()
		out.SetArray(i, a)
	}

	if f.bool() {
		t := vgeom.NewTransformTable()
		for range f.int() {
			vt, err := ref[*vgeom.VertexTransform](d, f)
			if err != nil {
				return nil, err
			}
			if vt == nil {
				return nil, fmt.Errorf("%w: nil transform", ErrCorrupt)
			}
			t.AddTransform(vt)
		}
		out.SetTransformTable(t)
	} else if f.int() != 0 {
		return nil, fmt.Errorf("%w: transforms without a table", ErrCorrupt)
	}

	if f.bool() {
		t := vgeom.NewTransformBlendTable()
		for i := range f.int() {
			var b vgeom.TransformBlend
			for range f.int() {
				vt, err := ref[*vgeom.VertexTransform](d, f)
				if err != nil {
					return nil, err
				}
				if vt == nil {
					return nil, fmt.Errorf("%w: nil transform in blend", ErrCorrupt)
				}
				b.AddTransform(vt, f.float32())
			}
			if f.err != nil {
				return nil, f.err
			}
			if t.AddBlend(b) != i {
				return nil, fmt.Errorf("%w: repeated blend %d", ErrCorrupt, i)
			}
		}
		out.SetTransformBlendTable(t)
	} else if f.int() != 0 {
		return nil, fmt.Errorf("%w: blends without a table", ErrCorrupt)
	}

	if f.bool() {
		t := vgeom.NewSliderTable()
		for range f.int() {
			s, err := ref[*vgeom.VertexSlider](d, f)
			if err != nil {
				return nil, err
			}
			if s == nil {
				return nil, fmt.Errorf("%w: nil slider", ErrCorrupt)
			}
			t.AddSlider(s)
		}
		out.SetSliderTable(t)
	} else if f.int() != 0 {
		return nil, fmt.Errorf("%w: sliders without a table", ErrCorrupt)
	}
	return out, f.err
}

func (d *Decoder) primitive(f *fields) (*vgeom.Primitive, error) {
	kind := vgeom.PrimitiveKind(f.byte())
	perPrim := f.int()
	shade := vgeom.ShadeModel(f.byte())
	if f.err != nil {
		return nil, f.err
	}

	var p *vgeom.Primitive
	switch {
	case kind == vgeom.Patches:
		if perPrim < 1 {
			return nil, fmt.Errorf("%w: patches of %d vertices", ErrCorrupt, perPrim)
		}
		p = vgeom.NewPatches(perPrim, d.objOpts...)
	case kind <= vgeom.TriangleFans:
		p = vgeom.NewPrimitive(kind, d.objOpts...)
	default:
		return nil, fmt.Errorf("%w: primitive kind %d", ErrCorrupt, kind)
	}
	p.SetShadeModel(shade)

	indexed := f.bool()
	var (
		verts        []int
		first, count int
	)
	if indexed {
		n := f.int()
		verts = make([]int, 0, min(n, len(f.b)))
		for range n {
			verts = append(verts, f.int())
		}
		count = len(verts)
	} else {
		first, count = f.int(), f.int()
	}
	nEnds := f.int()
	ends := make([]int, 0, min(nEnds, len(f.b)))
	for range nEnds {
		ends = append(ends, f.int())
	}
	if f.err != nil {
		return nil, f.err
	}

	add := func(from, to int) {
		if !indexed {
			p.AddConsecutiveVertices(first+from, to-from)
			return
		}
		for _, v := range verts[from:to] {
			p.AddVertex(v)
		}
	}
	next := 0
	for _, end := range ends {
		if end <= next || end > count {
			return nil, fmt.Errorf("%w: run end %d", ErrCorrupt, end)
		}
		add(next, end)
		if err := p.ClosePrimitive(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		next = end
	}
	add(next, count)
	if indexed {
		p.MakeIndexed()
	}
	return p, nil
}

func (d *Decoder) geom(f *fields) (*vgeom.Geom, error) {
	data, err := ref[*vgeom.VertexData](d, f)
	if err != nil {
		return nil, err
	}
	g := vgeom.NewGeom(data, d.objOpts...)
	for range f.int() {
		p, err := ref[*vgeom.Primitive](d, f)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: nil primitive", ErrCorrupt)
		}
		if err := g.AddPrimitive(p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	return g, f.err
}
