package vgeom

import (
	"slices"
	"sync"
	"sync/atomic"
)

// FormatObserver is notified when a format it depends on leaves its registry.
// Mungers that memoize per-format results implement it to drop those rows.
type FormatObserver interface {
	FormatUnregistered(f *Format)
}

// FormatRegistry interns array formats and formats so that structurally
// equal descriptions share one immutable instance.
//
// FormatRegistry is safe for concurrent use. Its lock is held only for map
// updates; observers are notified after it is released.
type FormatRegistry struct {
	mu        sync.Mutex
	formats   map[string]*Format
	arrays    map[string]*ArrayFormat
	observers map[*Format][]FormatObserver
	nextID    uint64
	id        uint64
}

var registrySeq atomic.Uint64

// NewFormatRegistry creates an empty registry.
func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{
		formats:   make(map[string]*Format),
		arrays:    make(map[string]*ArrayFormat),
		observers: make(map[*Format][]FormatObserver),
		id:        registrySeq.Add(1),
	}
}

// ID returns a process-unique number identifying the registry.
func (r *FormatRegistry) ID() uint64 { return r.id }

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *FormatRegistry
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *FormatRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewFormatRegistry()
	})
	return defaultRegistry
}

// RegisterFormat registers f in the default registry.
func RegisterFormat(f *Format) *Format { return DefaultRegistry().Register(f) }

// RegisterArrayFormat registers a in the default registry.
func RegisterArrayFormat(a *ArrayFormat) *ArrayFormat { return DefaultRegistry().RegisterArray(a) }

// Register returns the canonical format equal to f. If none exists, f itself
// becomes canonical: its arrays are replaced by their canonical instances and
// it is frozen. Callers must use the returned pointer and drop f.
//
// A column name that appears in more than one array is kept in the first
// array only.
func (r *FormatRegistry) Register(f *Format) *Format {
	if f == nil {
		return nil
	}
	if f.IsRegistered() {
		return f
	}
	f.dropDuplicateColumns()

	r.mu.Lock()
	defer r.mu.Unlock()

	k := f.key()
	if existing, ok := r.formats[k]; ok {
		return existing
	}
	for i, a := range f.arrays {
		f.arrays[i] = r.registerArrayLocked(a)
	}
	r.nextID++
	f.id = r.nextID
	f.reg = r
	f.deriveIndexes()
	f.registered.Store(true)
	r.formats[k] = f

	Logger().Debug("vgeom: format registered", "id", f.id, "arrays", len(f.arrays), "columns", f.NumColumns())
	return f
}

// dropDuplicateColumns removes later occurrences of a column name.
func (f *Format) dropDuplicateColumns() {
	seen := make(map[*Name]bool)
	for i := 0; i < len(f.arrays); i++ {
		a := f.arrays[i]
		for _, c := range a.Columns() {
			if !seen[c.name] {
				seen[c.name] = true
				continue
			}
			Logger().Warn("vgeom: duplicate column in format; keeping the first", "column", c.name.String())
			f.ModifyArray(i).RemoveColumn(c.name)
		}
		if f.arrays[i].NumColumns() == 0 {
			f.arrays = slices.Delete(f.arrays, i, i+1)
			i--
		}
	}
}

// RegisterArray returns the canonical array format equal to a.
func (r *FormatRegistry) RegisterArray(a *ArrayFormat) *ArrayFormat {
	if a == nil {
		return nil
	}
	if a.IsRegistered() {
		return a
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerArrayLocked(a)
}

func (r *FormatRegistry) registerArrayLocked(a *ArrayFormat) *ArrayFormat {
	if a.IsRegistered() {
		return a
	}
	k := a.key()
	if existing, ok := r.arrays[k]; ok {
		return existing
	}
	a.registered.Store(true)
	r.arrays[k] = a
	return a
}

// Unregister removes f from the registry and notifies its observers. The
// format stays valid and immutable for anyone still holding it; a later
// Register of an equal format creates a new canonical instance.
func (r *FormatRegistry) Unregister(f *Format) {
	if f == nil || !f.IsRegistered() {
		return
	}
	r.mu.Lock()
	k := f.key()
	if r.formats[k] == f {
		delete(r.formats, k)
	}
	obs := r.observers[f]
	delete(r.observers, f)
	r.mu.Unlock()

	for _, o := range obs {
		o.FormatUnregistered(f)
	}
	Logger().Debug("vgeom: format unregistered", "id", f.id, "observers", len(obs))
}

// AddObserver arranges for o to be told when f is unregistered.
func (r *FormatRegistry) AddObserver(f *Format, o FormatObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.observers[f], o) {
		return
	}
	r.observers[f] = append(r.observers[f], o)
}

// RemoveObserver cancels a previous AddObserver.
func (r *FormatRegistry) RemoveObserver(f *Format, o FormatObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obs := slices.DeleteFunc(r.observers[f], func(x FormatObserver) bool { return x == o })
	if len(obs) == 0 {
		delete(r.observers, f)
		return
	}
	r.observers[f] = obs
}

// Len returns the number of registered formats.
func (r *FormatRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.formats)
}

// NumArrays returns the number of registered array formats.
func (r *FormatRegistry) NumArrays() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.arrays)
}
