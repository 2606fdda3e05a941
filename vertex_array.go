package vgeom

import (
	"slices"

	"github.com/gogpu/vgeom/internal/cow"
)

// VertexArray is one interleaved array of rows laid out by an ArrayFormat.
//
// Arrays are shared between VertexData objects copy-on-write. An array handed
// out by VertexData.Array is read-only; write through VertexData.ModifyArray,
// which hands back a private array. Mutating a shared array is a precondition
// violation and is ignored.
type VertexArray struct {
	cow.Ref

	format   *ArrayFormat
	usage    UsageHint
	data     []byte
	modified UpdateSeq
}

// NewVertexArray creates an empty array. An unregistered format is
// registered in the default registry.
func NewVertexArray(format *ArrayFormat, usage UsageHint) *VertexArray {
	return &VertexArray{
		format:   RegisterArrayFormat(format),
		usage:    usage,
		modified: NextUpdateSeq(),
	}
}

func (a *VertexArray) writable(op string) bool {
	if a.IsShared() {
		violation("%s on shared vertex array", op)
		return false
	}
	return true
}

// Clone returns an unshared copy of the array's rows.
func (a *VertexArray) Clone() *VertexArray {
	return &VertexArray{
		format:   a.format,
		usage:    a.usage,
		data:     slices.Clone(a.data),
		modified: a.modified,
	}
}

// Format returns the array's row layout.
func (a *VertexArray) Format() *ArrayFormat { return a.format }

// UsageHint returns the expected update frequency.
func (a *VertexArray) UsageHint() UsageHint { return a.usage }

// SetUsageHint changes the expected update frequency.
func (a *VertexArray) SetUsageHint(u UsageHint) {
	if a.writable("SetUsageHint") {
		a.usage = u
		a.modified = NextUpdateSeq()
	}
}

// Modified returns the stamp of the last change.
func (a *VertexArray) Modified() UpdateSeq { return a.modified }

// NumRows returns the number of rows.
func (a *VertexArray) NumRows() int {
	if a.format.stride == 0 {
		return 0
	}
	return len(a.data) / a.format.stride
}

// DataSize returns the size of the array in bytes.
func (a *VertexArray) DataSize() int { return len(a.data) }

// Bytes returns the raw rows. The slice must not be modified.
func (a *VertexArray) Bytes() []byte { return a.data }

// Row returns the bytes of row i. The slice must not be modified.
func (a *VertexArray) Row(i int) []byte {
	s := a.format.stride
	return a.data[i*s : (i+1)*s : (i+1)*s]
}

// ModifyBytes returns the raw rows for writing and marks the array modified.
func (a *VertexArray) ModifyBytes() []byte {
	if !a.writable("ModifyBytes") {
		return slices.Clone(a.data)
	}
	a.modified = NextUpdateSeq()
	return a.data
}

// SetBytes replaces the raw rows. len(b) should be a multiple of the stride;
// a trailing partial row is dropped.
func (a *VertexArray) SetBytes(b []byte) {
	if !a.writable("SetBytes") {
		return
	}
	if s := a.format.stride; s > 0 && len(b)%s != 0 {
		violation("SetBytes with %d bytes, not a multiple of stride %d", len(b), s)
		b = b[:len(b)/s*s]
	}
	a.data = slices.Clone(b)
	a.modified = NextUpdateSeq()
}

// SetNumRows grows or shrinks the array. New rows are zero. It reports
// whether the row count changed.
func (a *VertexArray) SetNumRows(n int) bool {
	if !a.writable("SetNumRows") {
		return false
	}
	if n < 0 {
		violation("SetNumRows(%d)", n)
		n = 0
	}
	want := n * a.format.stride
	if want == len(a.data) {
		return false
	}
	if want < len(a.data) {
		a.data = a.data[:want]
	} else {
		a.data = slices.Grow(a.data, want-len(a.data))
		a.data = append(a.data, make([]byte, want-len(a.data))...)
	}
	a.modified = NextUpdateSeq()
	return true
}

// ReserveRows preallocates space for n rows.
func (a *VertexArray) ReserveRows(n int) {
	if a.writable("ReserveRows") {
		if extra := n*a.format.stride - len(a.data); extra > 0 {
			a.data = slices.Grow(a.data, extra)
		}
	}
}

// ClearRows removes every row.
func (a *VertexArray) ClearRows() {
	if a.writable("ClearRows") && len(a.data) > 0 {
		a.data = a.data[:0]
		a.modified = NextUpdateSeq()
	}
}
