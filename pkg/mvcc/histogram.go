package mvcc

import "github.com/google/btree"

// beginHistogram is an ordered multiset of active transactions' begin
// timestamps, supporting an O(log n) "oldest active begin_ts" query for
// the garbage collector (spec.md §4.5, §9). Grounded on google/btree
// (asaidimu/go-store), which offers the ordered-map/min-query shape the
// original source's BTreeMap<u64, usize> needs.
type beginHistogram struct {
	counts map[uint64]int
	order  *btree.BTreeG[uint64]
}

func newBeginHistogram() *beginHistogram {
	return &beginHistogram{
		counts: make(map[uint64]int),
		order:  btree.NewG(32, func(a, b uint64) bool { return a < b }),
	}
}

// Add records one more active transaction beginning at ts.
func (h *beginHistogram) Add(ts uint64) {
	if h.counts[ts] == 0 {
		h.order.ReplaceOrInsert(ts)
	}
	h.counts[ts]++
}

// Remove records one fewer active transaction beginning at ts, deleting
// the entry entirely once its count reaches zero.
func (h *beginHistogram) Remove(ts uint64) {
	n, ok := h.counts[ts]
	if !ok {
		return
	}
	if n <= 1 {
		delete(h.counts, ts)
		h.order.Delete(ts)
		return
	}
	h.counts[ts] = n - 1
}

// Oldest returns the minimum begin_ts among active transactions and true,
// or (0, false) if there are none.
func (h *beginHistogram) Oldest() (uint64, bool) {
	min, ok := h.order.Min()
	return min, ok
}

// Len returns the number of distinct begin timestamps tracked.
func (h *beginHistogram) Len() int {
	return h.order.Len()
}
