package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// CloneFunc returns a private copy of a payload that a writer may mutate.
// The copy may share immutable or copy-on-write parts with the original.
type CloneFunc[T any] func(*T) *T

// slot is one pipeline stage of a Cycler.
type slot[T any] struct {
	data    atomic.Pointer[T]
	shared  bool        // data is also referenced by another stage; guarded by Cycler.mu
	exposed atomic.Bool // data was returned by Read since it was last cloned
}

// Cycler holds one payload per pipeline stage.
//
// A payload returned by Read is never written again: the next Write to that
// stage clones it first. Writes are serialized per cycler and hold the write
// lock while they run; Read and View hold the read lock only long enough to
// load the payload, so readers never observe a write in progress.
//
// Cycler must not be copied after creation.
type Cycler[T any] struct {
	mu     sync.RWMutex
	stages []slot[T]
	clone  CloneFunc[T]
	hook   *cycleHook
}

// NewCycler creates a cycler whose every stage starts out sharing initial.
// A nil pipeline means Default().
func NewCycler[T any](p *Pipeline, initial *T, clone CloneFunc[T]) *Cycler[T] {
	if p == nil {
		p = Default()
	}
	if initial == nil {
		initial = new(T)
	}
	n := p.NumStages()
	c := &Cycler[T]{
		stages: make([]slot[T], n),
		clone:  clone,
	}
	for i := range c.stages {
		c.stages[i].data.Store(initial)
		c.stages[i].shared = n > 1
	}
	c.hook = &cycleHook{cycle: c.Cycle}
	p.add(c.hook)
	return c
}

// NumStages returns the number of stages this cycler was created with.
func (c *Cycler[T]) NumStages() int {
	return len(c.stages)
}

// checkStage panics on an out-of-range stage: asking for a stage the pipeline
// does not have is a programming error.
func (c *Cycler[T]) checkStage(stage int) {
	if stage < 0 || stage >= len(c.stages) {
		panic(fmt.Sprintf("pipeline: stage %d out of range [0,%d)", stage, len(c.stages)))
	}
}

// Read returns the payload visible at stage. The result must be treated as
// read-only; it stays a stable snapshot because later writes clone it.
func (c *Cycler[T]) Read(stage int) *T {
	c.checkStage(stage)
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := &c.stages[stage]
	s.exposed.Store(true)
	return s.data.Load()
}

// View runs fn on the payload visible at stage without handing it out.
// fn must not retain the payload or anything it references that a writer
// may change in place, and must not call back into the cycler.
func (c *Cycler[T]) View(stage int, fn func(*T)) {
	c.checkStage(stage)
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.stages[stage].data.Load())
}

// Write runs fn with exclusive access to a writable payload for stage.
// If the stage's payload is shared with another stage, or was returned by
// Read, it is cloned first. Writes to the same cycler never overlap, and
// readers wait for a running write to finish. fn must not call back into
// the cycler.
func (c *Cycler[T]) Write(stage int, fn func(*T)) {
	c.checkStage(stage)
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.stages[stage]
	p := s.data.Load()
	if s.shared || s.exposed.Load() {
		p = c.clone(p)
		s.data.Store(p)
		s.exposed.Store(false)
		c.refreshSharedLocked()
	}
	fn(p)
}

// IsShared reports whether stage currently shares its payload with another stage.
func (c *Cycler[T]) IsShared(stage int) bool {
	c.checkStage(stage)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stages[stage].shared
}

// Cycle shifts every payload one stage downstream: stage k+1 receives stage k.
// Stage 0 keeps its payload, now shared with stage 1.
func (c *Cycler[T]) Cycle() {
	if len(c.stages) < 2 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := len(c.stages) - 1; k > 0; k-- {
		c.stages[k].data.Store(c.stages[k-1].data.Load())
		c.stages[k].exposed.Store(c.stages[k-1].exposed.Load())
	}
	c.refreshSharedLocked()
}

// Stages returns the distinct payloads currently held by any stage, upstream
// first. Like Read, it hands the payloads out.
func (c *Cycler[T]) Stages() []*T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*T, 0, len(c.stages))
	for i := range c.stages {
		c.stages[i].exposed.Store(true)
		p := c.stages[i].data.Load()
		dup := false
		for _, q := range out {
			if q == p {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// refreshSharedLocked recomputes the shared flag of every stage.
// Caller must hold mu.
func (c *Cycler[T]) refreshSharedLocked() {
	for i := range c.stages {
		p := c.stages[i].data.Load()
		shared := false
		for j := range c.stages {
			if i != j && c.stages[j].data.Load() == p {
				shared = true
				break
			}
		}
		c.stages[i].shared = shared
	}
}
