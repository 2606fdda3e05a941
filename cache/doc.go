// Package cache holds the caching primitives behind vgeom's derived data.
//
// # Manager
//
// Manager is the process-wide LRU ledger of cache entries. The cached payloads
// (munged vertex data, decomposed primitives, munged formats) live inside many
// separately owned objects; the ledger only records their sizes and recency so
// that a single byte budget governs all of them.
//
//	e := cache.NewEntry(owner, key, sizeBytes)
//	row.entry = e        // owner stores its local row first
//	cache.Default().Record(e)
//
// When the total exceeds the budget, the least recently used entries are
// removed from the ledger and their owners are told to drop the local row via
// Evictor.EvictCacheEntry. A budget of 0 caches nothing but stays correct.
//
// # ShardedCache[K, V]
//
// A sharded LRU map with a per-shard entry capacity, used where a bounded memo
// is enough and no cross-object budget applies (per-munger format memos).
//
//	memo := cache.NewSharded[uint64, *Format](64, cache.Uint64Hasher)
//	f := memo.GetOrCreate(id, func() *Format { return munge(id) })
//
// # Thread Safety
//
// Manager and ShardedCache are safe for concurrent use and must not be copied
// after creation.
package cache
