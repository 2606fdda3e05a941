package pipeline

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	value int
	list  []int
}

func clonePayload(p *payload) *payload {
	return &payload{value: p.value, list: append([]int(nil), p.list...)}
}

func TestCyclerSingleStageWritesInPlace(t *testing.T) {
	c := NewCycler(New("single", 1), &payload{value: 1}, clonePayload)

	var first, second *payload
	c.Write(0, func(d *payload) { first, d.value = d, 2 })
	c.View(0, func(d *payload) { assert.Equal(t, 2, d.value) })
	c.Write(0, func(d *payload) { second, d.value = d, 3 })

	assert.Same(t, first, second, "View does not hand the payload out")
	assert.Equal(t, 3, c.Read(0).value)
	assert.False(t, c.IsShared(0))
}

func TestCyclerReadSnapshotSurvivesWrite(t *testing.T) {
	c := NewCycler(New("single", 1), &payload{value: 1, list: []int{1, 1}}, clonePayload)

	snap := c.Read(0)
	c.Write(0, func(d *payload) {
		d.value = 2
		d.list[0] = 2
	})

	assert.Equal(t, 1, snap.value)
	assert.Equal(t, []int{1, 1}, snap.list)
	assert.NotSame(t, snap, c.Read(0))
	assert.Equal(t, []int{2, 1}, c.Read(0).list)
}

// untorn reports whether every element of l carries the same frame.
func untorn(l []int) bool {
	for _, v := range l {
		if v != l[0] {
			return false
		}
	}
	return true
}

func TestCyclerSameStageReadersAndWriter(t *testing.T) {
	c := NewCycler(New("single", 1), &payload{list: make([]int, 16)}, clonePayload)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if d := c.Read(0); !untorn(d.list) {
					t.Errorf("torn read: %v", d.list)
					return
				}
				c.View(0, func(d *payload) {
					if !untorn(d.list) {
						t.Errorf("torn view: %v", d.list)
					}
				})
			}
		}()
	}

	for frame := 1; frame <= 500; frame++ {
		c.Write(0, func(d *payload) {
			for i := range d.list {
				d.list[i] = frame
			}
		})
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, 500, c.Read(0).list[15])
}

func TestCyclerWriteIsolatesDownstreamStage(t *testing.T) {
	p := New("double", 2)
	c := NewCycler(p, &payload{value: 1, list: []int{1}}, clonePayload)
	require.Equal(t, 2, c.NumStages())
	require.True(t, c.IsShared(0))

	render := c.Read(1)
	c.Write(0, func(d *payload) {
		d.value = 42
		d.list[0] = 42
	})

	assert.Equal(t, 1, c.Read(1).value, "downstream stage must keep its snapshot")
	assert.Equal(t, []int{1}, render.list)
	assert.Equal(t, 42, c.Read(0).value)
	assert.False(t, c.IsShared(0))

	c.Cycle()
	assert.Equal(t, 42, c.Read(1).value)
	assert.Same(t, c.Read(0), c.Read(1))
	assert.True(t, c.IsShared(1))
}

func TestCyclerSecondWriteInFrameDoesNotClone(t *testing.T) {
	c := NewCycler(New("double", 2), &payload{}, clonePayload)

	var first, second *payload
	c.Write(0, func(d *payload) { first = d })
	c.Write(0, func(d *payload) { second = d })
	assert.Same(t, first, second)
}

func TestCyclerTripleBuffering(t *testing.T) {
	c := NewCycler(New("triple", 3), &payload{value: 0}, clonePayload)

	for frame := 1; frame <= 3; frame++ {
		c.Write(0, func(d *payload) { d.value = frame })
		c.Cycle()
	}
	assert.Equal(t, 3, c.Read(0).value)
	assert.Equal(t, 3, c.Read(1).value)
	assert.Equal(t, 2, c.Read(2).value)
	assert.Len(t, c.Stages(), 2)
}

func TestCyclerStageOutOfRangePanics(t *testing.T) {
	c := NewCycler(New("double", 2), &payload{}, clonePayload)
	assert.Panics(t, func() { c.Read(2) })
	assert.Panics(t, func() { c.Write(-1, func(*payload) {}) })
}

func TestCyclerConcurrentReadersAndWriter(t *testing.T) {
	p := New("concurrent", 2)
	c := NewCycler(p, &payload{list: make([]int, 16)}, clonePayload)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Every element of a snapshot was written in the same frame.
				if d := c.Read(1); !untorn(d.list) {
					t.Errorf("torn snapshot: %v", d.list)
					return
				}
			}
		}()
	}

	for frame := 1; frame <= 200; frame++ {
		c.Write(0, func(d *payload) {
			for i := range d.list {
				d.list[i] = frame
			}
		})
		p.Cycle()
	}
	close(stop)
	wg.Wait()
}

func TestPipelineDropsDeadCyclers(t *testing.T) {
	p := New("weak", 2)
	keep := NewCycler(p, &payload{}, clonePayload)
	func() {
		_ = NewCycler(p, &payload{}, clonePayload)
	}()
	runtime.GC()
	runtime.GC()

	p.Cycle()
	assert.Equal(t, 1, p.NumCyclers())
	runtime.KeepAlive(keep)
}

func TestPipelineSetNumStages(t *testing.T) {
	p := New("resize", 0)
	assert.Equal(t, 1, p.NumStages())
	p.SetNumStages(3)
	c := NewCycler(p, &payload{}, clonePayload)
	assert.Equal(t, 3, c.NumStages())
	assert.Equal(t, "resize", p.Name())
}
