package mvcc

import (
	"sync"

	"github.com/google/btree"
)

// RowChain is the ordered, append-only (during a transaction's life)
// sequence of versions for a single RowID. Callers serialize access via
// Lock/RLock around a single row operation; locks are never held across
// an external wait (spec.md §5).
type RowChain struct {
	mu       sync.RWMutex
	versions []RowVersion
}

// Lock acquires the chain for exclusive (writer) access.
func (c *RowChain) Lock() { c.mu.Lock() }

// Unlock releases exclusive access.
func (c *RowChain) Unlock() { c.mu.Unlock() }

// RLock acquires the chain for shared (reader) access.
func (c *RowChain) RLock() { c.mu.RLock() }

// RUnlock releases shared access.
func (c *RowChain) RUnlock() { c.mu.RUnlock() }

// Append adds a new version at the head of the chain (most recent).
// Caller must hold the exclusive lock.
func (c *RowChain) Append(v RowVersion) {
	c.versions = append(c.versions, v)
}

// Len returns the number of versions in the chain. Caller must hold
// either lock.
func (c *RowChain) Len() int { return len(c.versions) }

// Newest iterates versions newest-first, calling fn for each. Iteration
// stops early if fn returns false. Caller must hold either lock.
func (c *RowChain) Newest(fn func(v *RowVersion) bool) {
	for i := len(c.versions) - 1; i >= 0; i-- {
		if !fn(&c.versions[i]) {
			return
		}
	}
}

// RetainFunc keeps only versions for which keep returns true, compacting
// the slice in place. Caller must hold the exclusive lock.
func (c *RowChain) RetainFunc(keep func(v *RowVersion) bool) {
	out := c.versions[:0]
	for i := range c.versions {
		if keep(&c.versions[i]) {
			out = append(out, c.versions[i])
		}
	}
	c.versions = out
}

// VersionStore is the per-RowID version chain map: point lookup plus
// ordered range scans over a table_id prefix (spec.md §4.1). RowID
// ordering is maintained in a google/btree index alongside the map so
// that range() does not need a full scan-and-sort.
type VersionStore struct {
	mu    sync.RWMutex
	rows  map[RowID]*RowChain
	index *btree.BTreeG[RowID]
}

// NewVersionStore creates an empty VersionStore.
func NewVersionStore() *VersionStore {
	return &VersionStore{
		rows: make(map[RowID]*RowChain),
		index: btree.NewG(32, func(a, b RowID) bool {
			return a.Less(b)
		}),
	}
}

// GetOrCreate returns the chain for id, creating an empty one (and
// indexing it) if absent. The returned chain is not locked; the caller
// acquires the lock appropriate to its operation.
func (vs *VersionStore) GetOrCreate(id RowID) *RowChain {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	chain, ok := vs.rows[id]
	if !ok {
		chain = &RowChain{}
		vs.rows[id] = chain
		vs.index.ReplaceOrInsert(id)
	}
	return chain
}

// Get returns the chain for id, or (nil, false) if the store has no chain
// for that RowID (none was created, or it was removed once empty).
func (vs *VersionStore) Get(id RowID) (*RowChain, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	chain, ok := vs.rows[id]
	return chain, ok
}

// RemoveIfEmpty deletes the row entry for id if its chain currently has
// zero versions. Caller must hold the chain's exclusive lock while
// checking emptiness and must release it only after RemoveIfEmpty
// returns, to avoid racing a concurrent Append.
func (vs *VersionStore) RemoveIfEmpty(id RowID) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	chain, ok := vs.rows[id]
	if !ok || chain.Len() != 0 {
		return
	}
	delete(vs.rows, id)
	vs.index.Delete(id)
}

// ScanRowIDs returns a snapshot of every RowID currently in the store, in
// RowID order. Individual chains may race with concurrent writers after
// the snapshot is taken.
func (vs *VersionStore) ScanRowIDs() []RowID {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	ids := make([]RowID, 0, vs.index.Len())
	vs.index.Ascend(func(id RowID) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// ScanRowIDsForTable returns a snapshot of every RowID belonging to
// tableID, in RowID order.
func (vs *VersionStore) ScanRowIDsForTable(tableID uint64) []RowID {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	lo := RowID{TableID: tableID, RowNum: 0}
	ids := make([]RowID, 0)
	vs.index.AscendGreaterOrEqual(lo, func(id RowID) bool {
		if id.TableID != tableID {
			return false
		}
		ids = append(ids, id)
		return true
	})
	return ids
}

// Len returns the number of distinct RowIDs currently in the store.
func (vs *VersionStore) Len() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.rows)
}

// ForEachChain visits every (RowID, *RowChain) pair currently in the
// store. It is used by the garbage collector, which takes its own
// per-chain exclusive lock inside fn. The set of chains visited is a
// snapshot; chains created concurrently after the call may be missed.
func (vs *VersionStore) ForEachChain(fn func(id RowID, chain *RowChain)) {
	vs.mu.RLock()
	snapshot := make(map[RowID]*RowChain, len(vs.rows))
	for id, chain := range vs.rows {
		snapshot[id] = chain
	}
	vs.mu.RUnlock()

	for id, chain := range snapshot {
		fn(id, chain)
	}
}
