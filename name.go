package vgeom

import (
	"strings"
	"sync"
)

// Name is an interned, hierarchical attribute name such as "texcoord.tangent".
// Two names are equal exactly when their pointers are equal. Names live for
// the lifetime of their table.
type Name struct {
	table    *NameTable
	parent   *Name
	basename string
	full     string
	depth    int
}

type nameKey struct {
	parent   *Name
	basename string
}

// NameTable interns names. The zero value is not usable; use NewNameTable.
//
// NameTable is safe for concurrent use.
type NameTable struct {
	mu    sync.Mutex
	root  *Name
	names map[nameKey]*Name
}

// NewNameTable creates an empty table.
func NewNameTable() *NameTable {
	t := &NameTable{names: make(map[nameKey]*Name)}
	t.root = &Name{table: t}
	return t
}

var defaultNames = NewNameTable()

// DefaultNames returns the process-wide name table.
func DefaultNames() *NameTable { return defaultNames }

// MakeName interns a dotted name in the default table.
func MakeName(s string) *Name { return defaultNames.Make(s) }

// Root returns the table's unnamed root. Every top-level name is its child.
func (t *NameTable) Root() *Name { return t.root }

// Make interns s, splitting it on '.' into a chain of children of the root.
// An empty string yields the root.
func (t *NameTable) Make(s string) *Name {
	n := t.root
	if s == "" {
		return n
	}
	for _, part := range strings.Split(s, ".") {
		n = n.Append(part)
	}
	return n
}

// Len returns the number of interned names, excluding the root.
func (t *NameTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.names)
}

// Append returns the child of n with the given basename. A basename that
// contains dots appends each part in turn.
func (n *Name) Append(basename string) *Name {
	if strings.Contains(basename, ".") {
		out := n
		for _, part := range strings.Split(basename, ".") {
			out = out.Append(part)
		}
		return out
	}
	t := n.table
	k := nameKey{parent: n, basename: basename}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.names[k]; ok {
		return c
	}
	full := basename
	if n.depth > 0 {
		full = n.full + "." + basename
	}
	c := &Name{table: t, parent: n, basename: basename, full: full, depth: n.depth + 1}
	t.names[k] = c
	return c
}

// Parent returns the enclosing name, or nil for the root.
func (n *Name) Parent() *Name { return n.parent }

// Basename returns the last component of the name.
func (n *Name) Basename() string { return n.basename }

// String returns the full dotted name.
func (n *Name) String() string {
	if n == nil {
		return "<nil>"
	}
	return n.full
}

// Depth returns the number of components; the root has depth 0.
func (n *Name) Depth() int { return n.depth }

// IsRoot reports whether n is its table's root.
func (n *Name) IsRoot() bool { return n.parent == nil }

// TopLevel returns the ancestor of n directly below the root.
func (n *Name) TopLevel() *Name {
	if n.depth <= 1 {
		return n
	}
	t := n
	for t.depth > 1 {
		t = t.parent
	}
	return t
}

// IsAncestorOf reports whether n is other or one of its parents.
func (n *Name) IsAncestorOf(other *Name) bool {
	for o := other; o != nil; o = o.parent {
		if o == n {
			return true
		}
	}
	return false
}

// Morph returns the name of the morph delta column for n under slider:
// "<n>.morph.<slider>".
func (n *Name) Morph(slider *Name) *Name {
	return n.Append("morph").Append(slider.String())
}

// MorphBase reports the base column and slider name when n names a morph
// delta column, i.e. has the shape "<base>.morph.<slider>".
func (n *Name) MorphBase() (base *Name, slider *Name, ok bool) {
	for p := n.parent; p != nil && p.parent != nil; p = p.parent {
		if p.basename != "morph" {
			continue
		}
		if p.parent.IsRoot() {
			return nil, nil, false
		}
		rel := strings.TrimPrefix(n.full, p.full+".")
		return p.parent, n.table.Make(rel), true
	}
	return nil, nil, false
}

// Compare orders names by their full dotted string.
func (n *Name) Compare(other *Name) int {
	if n == other {
		return 0
	}
	return strings.Compare(n.String(), other.String())
}

// Standard attribute names.
var (
	NameVertex          = MakeName("vertex")
	NameNormal          = MakeName("normal")
	NameTangent         = MakeName("tangent")
	NameBinormal        = MakeName("binormal")
	NameTexcoord        = MakeName("texcoord")
	NameColor           = MakeName("color")
	NameRotate          = MakeName("rotate")
	NameSize            = MakeName("size")
	NameAspectRatio     = MakeName("aspect_ratio")
	NameTransformBlend  = MakeName("transform_blend")
	NameTransformWeight = MakeName("transform_weight")
	NameTransformIndex  = MakeName("transform_index")
	NameIndex           = MakeName("index")
)
