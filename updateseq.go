package vgeom

import "sync/atomic"

// UpdateSeq is a process-wide monotonically increasing modification stamp.
// Every mutation of a cycled object stores a fresh value, so comparing two
// stamps tells whether anything changed in between.
type UpdateSeq uint64

var seqCounter atomic.Uint64

// NextUpdateSeq returns a stamp greater than every stamp returned before.
func NextUpdateSeq() UpdateSeq {
	return UpdateSeq(seqCounter.Add(1))
}
