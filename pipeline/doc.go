// Package pipeline implements the multi-stage, copy-on-write cell that lets a
// render thread read a stable snapshot of an object while the application
// thread edits it.
//
// # Stages
//
// A Pipeline has N stages. Stage 0 is the upstream stage written by the
// application thread; stage N-1 is the most downstream stage, read by the
// thread that issues draw calls. Once per frame, after the downstream reader has
// finished with its snapshot, the scheduler calls Pipeline.Cycle, which shifts
// every cycler's payload one stage downstream (k to k+1).
//
// A single-stage pipeline (the default) degenerates to one copy-on-write
// cell: reads and writes all address stage 0.
//
// # Copy-on-write
//
// After a cycle, stage k and k+1 point at the same payload. A Write to stage k
// then clones the payload before handing it to the writer, so the reader of
// stage k+1 never observes a partially written value. The same holds within
// one stage: a payload returned by Read is cloned by the next Write, so a
// reader sees the old value or the new one, never a mix. Writes that follow
// each other with no Read in between find the slot unique and write in place.
//
// Writes to one cycler are serialized by a per-cycler RWMutex. Read and View
// take the read lock, so readers never block each other.
package pipeline
