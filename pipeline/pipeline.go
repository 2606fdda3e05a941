package pipeline

import (
	"sync"
	"weak"
)

// DefaultNumStages is the stage count of the default pipeline.
const DefaultNumStages = 1

// cycleHook is the non-generic handle a Pipeline keeps for each cycler.
// The pipeline holds it weakly so that dropping a cycler is enough to drop it
// from the pipeline.
type cycleHook struct {
	cycle func()
}

// Pipeline groups the cyclers that are advanced together once per frame.
//
// Pipeline is safe for concurrent use.
type Pipeline struct {
	mu        sync.Mutex
	name      string
	numStages int
	hooks     []weak.Pointer[cycleHook]
}

var (
	defaultOnce sync.Once
	defaultPipe *Pipeline
)

// Default returns the process-wide pipeline, creating it on first use.
func Default() *Pipeline {
	defaultOnce.Do(func() {
		defaultPipe = New("default", DefaultNumStages)
	})
	return defaultPipe
}

// New creates a pipeline with the given number of stages (at least 1).
func New(name string, numStages int) *Pipeline {
	if numStages < 1 {
		numStages = 1
	}
	return &Pipeline{name: name, numStages: numStages}
}

// Name returns the pipeline's name.
func (p *Pipeline) Name() string { return p.name }

// NumStages returns the stage count used for newly created cyclers.
func (p *Pipeline) NumStages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numStages
}

// SetNumStages changes the stage count for cyclers created afterwards.
// Existing cyclers keep the count they were created with.
func (p *Pipeline) SetNumStages(n int) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.numStages = n
}

func (p *Pipeline) add(h *cycleHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, weak.Make(h))
}

// Cycle advances every live cycler of the pipeline by one stage.
// It must be called by a single scheduler goroutine at the frame boundary,
// after the downstream stage's reader is done.
func (p *Pipeline) Cycle() {
	p.mu.Lock()
	live := make([]*cycleHook, 0, len(p.hooks))
	alive := p.hooks[:0]
	for _, wh := range p.hooks {
		h := wh.Value()
		if h == nil {
			continue
		}
		alive = append(alive, wh)
		live = append(live, h)
	}
	p.hooks = alive
	p.mu.Unlock()

	for _, h := range live {
		h.cycle()
	}
	slogger().Debug("pipeline cycled", "pipeline", p.name, "cyclers", len(live))
}

// NumCyclers returns the number of registered cyclers that are still alive.
func (p *Pipeline) NumCyclers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, wh := range p.hooks {
		if wh.Value() != nil {
			n++
		}
	}
	return n
}
