package cache

import (
	"sync"
)

// DefaultBudgetBytes is the budget of the default manager (16 MB).
const DefaultBudgetBytes int64 = 16 * 1024 * 1024

// Evictor is implemented by objects that keep cache rows recorded in a Manager.
type Evictor interface {
	// EvictCacheEntry drops the owner's local row for e, if the row still
	// refers to e. It is called after the ledger row has been removed and
	// without the manager's lock held, so it may take the owner's own locks.
	EvictCacheEntry(e *Entry)
}

// entryKey identifies a ledger row: the owning object plus its local key.
type entryKey struct {
	owner Evictor
	key   any
}

// Entry is one ledger row. The owner creates it with NewEntry, stores it in
// its local cache row, and then reports it with Manager.Record.
type Entry struct {
	owner Evictor
	key   any
	size  int64

	// Guarded by the manager's mu.
	mgr  *Manager
	node *lruNode[*Entry]
}

// NewEntry creates an unrecorded ledger entry. key must be comparable.
func NewEntry(owner Evictor, key any, sizeBytes int64) *Entry {
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	return &Entry{owner: owner, key: key, size: sizeBytes}
}

// Owner returns the object whose local row this entry mirrors.
func (e *Entry) Owner() Evictor { return e.owner }

// Key returns the owner-local key.
func (e *Entry) Key() any { return e.key }

// Size returns the entry's size in bytes.
func (e *Entry) Size() int64 { return e.size }

// Manager is an LRU ledger of cache entries under one byte budget.
//
// Manager is safe for concurrent use. Its lock is held only for map and list
// updates; owner callbacks run after it is released.
type Manager struct {
	mu sync.Mutex

	budget int64
	total  int64

	lru   *lruList[*Entry]
	index map[entryKey]*Entry

	records   uint64
	evictions uint64
}

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// Default returns the process-wide manager, creating it on first use with
// DefaultBudgetBytes.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultMgr = NewManager(DefaultBudgetBytes)
	})
	return defaultMgr
}

// NewManager creates a ledger with the given budget. Negative budgets are
// treated as 0.
func NewManager(budgetBytes int64) *Manager {
	if budgetBytes < 0 {
		budgetBytes = 0
	}
	return &Manager{
		budget: budgetBytes,
		lru:    newLRUList[*Entry](),
		index:  make(map[entryKey]*Entry),
	}
}

// Record adds e as the most recently used entry. An entry belongs to at most
// one manager. An entry already recorded
// under the same owner and key is replaced without an owner callback, since
// the owner is the one refreshing it. Afterwards entries are evicted from the
// least recently used end while the total exceeds the budget; that may include
// e itself.
func (m *Manager) Record(e *Entry) {
	if e == nil {
		return
	}
	m.mu.Lock()
	k := entryKey{owner: e.owner, key: e.key}
	if old, ok := m.index[k]; ok {
		m.removeLocked(old)
	}
	if e.mgr == m {
		m.removeLocked(e)
	}
	e.mgr = m
	e.node = m.lru.PushFront(e)
	m.index[k] = e
	m.total += e.size
	m.records++

	evicted := m.evictLocked()
	m.mu.Unlock()

	m.notify(evicted)
}

// Touch marks e as most recently used. It reports false if e is no longer
// in the ledger.
func (m *Manager) Touch(e *Entry) bool {
	if e == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.mgr != m {
		return false
	}
	m.lru.MoveToFront(e.node)
	return true
}

// Remove drops e from the ledger without calling its owner and reports
// whether it was present.
func (m *Manager) Remove(e *Entry) bool {
	if e == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.mgr != m {
		return false
	}
	m.removeLocked(e)
	return true
}

// Contains reports whether e is currently in the ledger.
func (m *Manager) Contains(e *Entry) bool {
	if e == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return e.mgr == m
}

// Lookup returns the entry recorded for owner and key.
func (m *Manager) Lookup(owner Evictor, key any) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.index[entryKey{owner: owner, key: key}]
	return e, ok
}

// Budget returns the configured budget in bytes.
func (m *Manager) Budget() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budget
}

// SetBudget changes the budget and evicts down to it.
func (m *Manager) SetBudget(budgetBytes int64) {
	if budgetBytes < 0 {
		budgetBytes = 0
	}
	m.mu.Lock()
	m.budget = budgetBytes
	evicted := m.evictLocked()
	m.mu.Unlock()

	m.notify(evicted)
}

// TotalSize returns the summed size of all ledger entries.
func (m *Manager) TotalSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Len returns the number of ledger entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Entries returns the ledger entries from least to most recently used.
func (m *Manager) Entries() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Entry, 0, m.lru.Len())
	m.lru.Each(func(e *Entry) { out = append(out, e) })
	return out
}

// EntriesFor returns the ledger entries owned by owner, least recent first.
func (m *Manager) EntriesFor(owner Evictor) []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Entry
	m.lru.Each(func(e *Entry) {
		if e.owner == owner {
			out = append(out, e)
		}
	})
	return out
}

// Flush evicts every entry, calling each owner back.
func (m *Manager) Flush() {
	m.mu.Lock()
	var evicted []*Entry
	for {
		e, ok := m.lru.Oldest()
		if !ok {
			break
		}
		m.removeLocked(e)
		evicted = append(evicted, e)
	}
	m.evictions += uint64(len(evicted))
	m.mu.Unlock()

	m.notify(evicted)
}

// Stats returns a snapshot of the ledger counters.
func (m *Manager) Stats() LedgerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return LedgerStats{
		Entries:     m.lru.Len(),
		TotalBytes:  m.total,
		BudgetBytes: m.budget,
		Records:     m.records,
		Evictions:   m.evictions,
	}
}

// evictLocked removes least recently used entries while over budget and
// returns them for owner notification. Caller must hold mu.
func (m *Manager) evictLocked() []*Entry {
	var evicted []*Entry
	for m.total > m.budget {
		e, ok := m.lru.Oldest()
		if !ok {
			break
		}
		m.removeLocked(e)
		evicted = append(evicted, e)
	}
	m.evictions += uint64(len(evicted))
	return evicted
}

// removeLocked unlinks e from the list and index. Caller must hold mu.
func (m *Manager) removeLocked(e *Entry) {
	m.lru.Remove(e.node)
	k := entryKey{owner: e.owner, key: e.key}
	if m.index[k] == e {
		delete(m.index, k)
	}
	m.total -= e.size
	e.node = nil
	e.mgr = nil
}

// notify calls the owners of evicted entries. Must not hold mu.
func (m *Manager) notify(evicted []*Entry) {
	for _, e := range evicted {
		slogger().Debug("cache entry evicted", "key", e.key, "bytes", e.size)
		if e.owner != nil {
			e.owner.EvictCacheEntry(e)
		}
	}
}
