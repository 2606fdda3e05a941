// Package cow provides the shared-ownership marker behind every copy-on-write
// value in vgeom.
//
// Go has no deterministic reference count, so sharing is one-way: once a value
// has been handed to a second owner it is marked shared and never written again.
// A writer that finds its value shared replaces its own pointer with a private
// clone first. The only cost of the one-way flag is an occasional extra copy.
package cow

import "sync/atomic"

// Ref records whether a value is reachable from more than one owner.
// Embed it in copy-on-write types; it must not be copied after first use.
type Ref struct {
	shared atomic.Bool
}

// MarkShared flags the value as having more than one owner.
func (r *Ref) MarkShared() { r.shared.Store(true) }

// IsShared reports whether the value may be observed by another owner.
func (r *Ref) IsShared() bool { return r.shared.Load() }

// IsUniquelyOwned reports whether the caller is the value's only owner.
func (r *Ref) IsUniquelyOwned() bool { return !r.shared.Load() }

// Value is implemented by pointer types that embed Ref and can clone themselves.
// Clone must return a fresh, unshared deep-enough copy that a writer may mutate.
type Value[P any] interface {
	IsShared() bool
	MarkShared()
	Clone() P
}

// Share marks v shared and returns it, for giving a second owner the same pointer.
func Share[P Value[P]](v P) P {
	v.MarkShared()
	return v
}

// ShareAll marks every element of vs shared.
func ShareAll[P Value[P]](vs []P) {
	for _, v := range vs {
		v.MarkShared()
	}
}

// Unique returns v when the caller owns it exclusively, otherwise a private clone.
// Every mutation entry point goes through Unique before writing.
func Unique[P Value[P]](v P) P {
	if v.IsShared() {
		return v.Clone()
	}
	return v
}
