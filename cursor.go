package vgeom

// VertexReader reads one column of a vertex table row by row. Values are
// converted to float32 (or int) on the way out; integer colour components
// read as [0,1].
//
// A reader is bound to the arrays visible when it was created and is not
// safe for concurrent use.
type VertexReader struct {
	array  *VertexArray
	column *Column
	row    int
}

// NewVertexReader binds a reader to the named column of d. If the column is
// missing, HasColumn reports false and reads return zeros.
func NewVertexReader(d *VertexData, name *Name) *VertexReader {
	c := d.cdata()
	ai, col := c.format.Column(name)
	if col == nil {
		return &VertexReader{}
	}
	return &VertexReader{array: c.arrays[ai], column: col}
}

// NewArrayReader binds a reader to the named column of one array.
func NewArrayReader(a *VertexArray, name *Name) *VertexReader {
	col := a.format.ColumnByName(name)
	if col == nil {
		return &VertexReader{}
	}
	return &VertexReader{array: a, column: col}
}

// HasColumn reports whether the reader is bound to a column.
func (r *VertexReader) HasColumn() bool { return r.column != nil }

// Column returns the bound column, or nil.
func (r *VertexReader) Column() *Column { return r.column }

// NumRows returns the number of rows of the bound array.
func (r *VertexReader) NumRows() int {
	if r.array == nil {
		return 0
	}
	return r.array.NumRows()
}

// SetRow moves the cursor to row.
func (r *VertexReader) SetRow(row int) { r.row = row }

// Row returns the row the next read will use.
func (r *VertexReader) Row() int { return r.row }

// IsAtEnd reports whether every row has been read.
func (r *VertexReader) IsAtEnd() bool { return r.row >= r.NumRows() }

// next returns the current row's bytes and advances, or nil past the end.
func (r *VertexReader) next() []byte {
	if r.column == nil {
		return nil
	}
	if r.row < 0 || r.row >= r.array.NumRows() {
		violation("read row %d of %d", r.row, r.array.NumRows())
		return nil
	}
	s := r.array.format.stride
	b := r.array.data[r.row*s : (r.row+1)*s]
	r.row++
	return b
}

// GetData4 reads up to four values and advances. Missing components take
// the column defaults: w and alpha are 1.
func (r *VertexReader) GetData4() [4]float32 {
	b := r.next()
	if b == nil {
		return [4]float32{}
	}
	return r.column.get4(b)
}

// GetData3 reads three values and advances.
func (r *VertexReader) GetData3() [3]float32 {
	v := r.GetData4()
	return [3]float32{v[0], v[1], v[2]}
}

// GetData2 reads two values and advances.
func (r *VertexReader) GetData2() [2]float32 {
	v := r.GetData4()
	return [2]float32{v[0], v[1]}
}

// GetData1 reads one value and advances.
func (r *VertexReader) GetData1() float32 {
	return r.GetData4()[0]
}

// GetDataN appends every value of the current row to dst and advances.
func (r *VertexReader) GetDataN(dst []float32) []float32 {
	b := r.next()
	if b == nil {
		return dst
	}
	return r.column.getN(b, dst)
}

// GetData1i reads the first value as an integer and advances.
func (r *VertexReader) GetData1i() int {
	b := r.next()
	if b == nil {
		return 0
	}
	return r.column.geti(b, 0)
}

// VertexWriter writes one column of a vertex table row by row. Creating a
// writer takes a private copy of the column's array if it is shared.
type VertexWriter struct {
	data   *VertexData
	ai     int
	array  *VertexArray
	column *Column
	row    int
}

// NewVertexWriter binds a writer to the named column of d. If the column is
// missing, HasColumn reports false and writes are dropped.
func NewVertexWriter(d *VertexData, name *Name) *VertexWriter {
	ai, col := d.Format().Column(name)
	if col == nil {
		return &VertexWriter{data: d, ai: -1}
	}
	return &VertexWriter{data: d, ai: ai, array: d.ModifyArray(ai), column: col}
}

// HasColumn reports whether the writer is bound to a column.
func (w *VertexWriter) HasColumn() bool { return w.column != nil }

// Column returns the bound column, or nil.
func (w *VertexWriter) Column() *Column { return w.column }

// SetRow moves the cursor to row.
func (w *VertexWriter) SetRow(row int) { w.row = row }

// Row returns the row the next write will use.
func (w *VertexWriter) Row() int { return w.row }

// NumRows returns the number of rows of the bound array.
func (w *VertexWriter) NumRows() int {
	if w.array == nil {
		return 0
	}
	return w.array.NumRows()
}

// IsAtEnd reports whether the cursor is past the last row.
func (w *VertexWriter) IsAtEnd() bool { return w.row >= w.NumRows() }

// rowBytes returns the current row for writing, growing the table by one
// row first when grow is set and the cursor is at the end.
func (w *VertexWriter) rowBytes(grow bool) []byte {
	if w.column == nil {
		return nil
	}
	if w.row >= w.array.NumRows() {
		if !grow {
			violation("write row %d of %d", w.row, w.array.NumRows())
			return nil
		}
		w.data.SetNumRows(w.row + 1)
		w.array = w.data.ModifyArray(w.ai)
	} else if w.array.IsShared() {
		// A snapshot taken since the writer was bound now owns the array.
		w.array = w.data.ModifyArray(w.ai)
	}
	if w.row < 0 {
		violation("write row %d", w.row)
		return nil
	}
	s := w.array.format.stride
	b := w.array.ModifyBytes()
	r := b[w.row*s : (w.row+1)*s]
	w.row++
	return r
}

// SetData4 writes up to four values into an existing row and advances.
func (w *VertexWriter) SetData4(v [4]float32) {
	if b := w.rowBytes(false); b != nil {
		w.column.set4(b, v)
	}
}

// SetData3 writes three values and advances; a fourth stored value takes
// the column default.
func (w *VertexWriter) SetData3(x, y, z float32) {
	if b := w.rowBytes(false); b != nil {
		w.column.setN(b, []float32{x, y, z})
	}
}

// SetData2 writes two values and advances.
func (w *VertexWriter) SetData2(x, y float32) {
	if b := w.rowBytes(false); b != nil {
		w.column.setN(b, []float32{x, y})
	}
}

// SetData1 writes one value and advances.
func (w *VertexWriter) SetData1(x float32) {
	if b := w.rowBytes(false); b != nil {
		w.column.setN(b, []float32{x})
	}
}

// SetDataN writes the given values and advances.
func (w *VertexWriter) SetDataN(v ...float32) {
	if b := w.rowBytes(false); b != nil {
		w.column.setN(b, v)
	}
}

// SetData1i writes an integer into the first value and advances.
func (w *VertexWriter) SetData1i(v int) {
	if b := w.rowBytes(false); b != nil {
		w.column.seti(b, 0, v)
	}
}

// AddData4 is SetData4 that appends a row when the cursor is at the end.
func (w *VertexWriter) AddData4(v [4]float32) {
	if b := w.rowBytes(true); b != nil {
		w.column.set4(b, v)
	}
}

// AddData3 is SetData3 that appends a row when the cursor is at the end.
func (w *VertexWriter) AddData3(x, y, z float32) {
	if b := w.rowBytes(true); b != nil {
		w.column.setN(b, []float32{x, y, z})
	}
}

// AddData2 is SetData2 that appends a row when the cursor is at the end.
func (w *VertexWriter) AddData2(x, y float32) {
	if b := w.rowBytes(true); b != nil {
		w.column.setN(b, []float32{x, y})
	}
}

// AddData1 is SetData1 that appends a row when the cursor is at the end.
func (w *VertexWriter) AddData1(x float32) {
	if b := w.rowBytes(true); b != nil {
		w.column.setN(b, []float32{x})
	}
}

// AddData1i is SetData1i that appends a row when the cursor is at the end.
func (w *VertexWriter) AddData1i(v int) {
	if b := w.rowBytes(true); b != nil {
		w.column.seti(b, 0, v)
	}
}

// VertexRewriter reads and writes the same column, sharing one cursor.
type VertexRewriter struct {
	VertexWriter
}

// NewVertexRewriter binds a rewriter to the named column of d.
func NewVertexRewriter(d *VertexData, name *Name) *VertexRewriter {
	return &VertexRewriter{VertexWriter: *NewVertexWriter(d, name)}
}

// GetData4 reads the current row without advancing.
func (rw *VertexRewriter) GetData4() [4]float32 {
	if rw.column == nil || rw.row < 0 || rw.row >= rw.array.NumRows() {
		return [4]float32{}
	}
	return rw.column.get4(rw.array.Row(rw.row))
}

// GetDataN appends the current row's values to dst without advancing.
func (rw *VertexRewriter) GetDataN(dst []float32) []float32 {
	if rw.column == nil || rw.row < 0 || rw.row >= rw.array.NumRows() {
		return dst
	}
	return rw.column.getN(rw.array.Row(rw.row), dst)
}

// GetData1i reads the current row's first value as an integer without
// advancing.
func (rw *VertexRewriter) GetData1i() int {
	if rw.column == nil || rw.row < 0 || rw.row >= rw.array.NumRows() {
		return 0
	}
	return rw.column.geti(rw.array.Row(rw.row), 0)
}
