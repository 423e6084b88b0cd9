// Package mvcc implements the version store and transaction manager of a
// main-memory MVCC key-value engine, following the Larson et al. (VLDB
// 2011) design: row versions carry a TxID/Timestamp duality on their
// begin/end markers, visibility is a pure predicate over the observer's
// snapshot, and write-write conflicts abort the later writer.
package mvcc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hekaton-db/hekaton/pkg/clock"
)

// Logger receives trace-level diagnostics for transaction lifecycle
// events. It mirrors the original source's tracing::trace!/debug! calls
// without introducing a logging dependency the rest of the stack doesn't
// already use (SPEC_FULL.md §10.1). NewEngine installs a no-op Logger
// that discards everything, and SetLogger(nil) restores it.
type Logger interface {
	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Tracef(string, ...any) {}
func (noopLogger) Debugf(string, ...any) {}

// Engine is the version store + transaction manager: the core described
// in spec.md §1. A single coarse lock (mu, "engine_lock") guards the
// transaction table and active-begin histogram; per-row RowChain locks
// guard individual version chains. engine_lock is only ever acquired
// while zero or more chain locks the caller already holds are held
// (visibility resolution briefly takes engine_lock via txLookup from
// inside a chain lock) — it is never itself held while blocking on a
// chain lock. Commit and Rollback rely on this: both acquire every
// chain their write set touches, in RowID order, before transitioning
// the transaction out of TxActive, so no reader can ever resolve a
// begin/end marker against a transaction it would see in a state other
// than Active (spec.md §9).
type Engine struct {
	mu       sync.Mutex
	clock    clock.Clock
	log      DurableLog
	logger   Logger
	versions *VersionStore
	txs      map[TxID]*Transaction
	nextTxID uint64
	hist     *beginHistogram
}

// NewEngine creates an empty Engine backed by clk for timestamps and log
// for durability. Pass mvcc.NoopLog{} for a purely in-memory engine.
func NewEngine(clk clock.Clock, log DurableLog) *Engine {
	return &Engine{
		clock:    clk,
		log:      log,
		logger:   noopLogger{},
		versions: NewVersionStore(),
		txs:      make(map[TxID]*Transaction),
		hist:     newBeginHistogram(),
	}
}

// SetLogger installs a Logger for trace/debug diagnostics.
func (e *Engine) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	e.logger = l
}

// txLookup resolves id against the live transaction table under
// engine_lock; it is the collaborator the visibility predicates use.
func (e *Engine) txLookup(id TxID) (*Transaction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.txs[id]
	return t, ok
}

// Lookup exposes txLookup for collaborators outside the package (audit,
// metrics wiring) that need a transaction's CorrelationID or WriteSet
// size without duplicating the engine's locking discipline.
func (e *Engine) Lookup(id TxID) (*Transaction, bool) {
	return e.txLookup(id)
}

// ActiveTransactionCount returns the number of transactions currently in
// TxActive state.
func (e *Engine) ActiveTransactionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, t := range e.txs {
		if t.State == TxActive {
			n++
		}
	}
	return n
}

// OldestActiveBeginTS returns the oldest begin_ts among active
// transactions, or (0, false) if none are active.
func (e *Engine) OldestActiveBeginTS() (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.Oldest()
}

// RowCount returns the number of distinct RowIDs currently in the store.
func (e *Engine) RowCount() int {
	return e.versions.Len()
}

// acquireActive resolves id and requires it to be Active, returning the
// error taxonomy operations in spec.md §6 promise otherwise.
func (e *Engine) acquireActive(id TxID) (*Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.txs[id]
	if !ok {
		return nil, ErrNoSuchTransactionID
	}
	if t.State != TxActive {
		return nil, ErrTxTerminated
	}
	return t, nil
}

// Begin starts a new transaction and returns its TxID (spec.md §4.2).
func (e *Engine) Begin() TxID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextTxID++
	id := TxID(e.nextTxID)
	beginTS := e.clock.Now()

	txn := newTransaction(id, beginTS)
	e.txs[id] = txn
	e.hist.Add(beginTS)

	e.logger.Tracef("BEGIN %s", txn)
	return id
}

// Insert appends a new current version for row.ID within tx_id (spec.md
// §4.3). It does not check whether a visible version already exists;
// callers requiring uniqueness must perform a prior visibility read.
func (e *Engine) Insert(id TxID, row Row) error {
	txn, err := e.acquireActive(id)
	if err != nil {
		return err
	}

	chain := e.versions.GetOrCreate(row.ID)
	chain.Lock()
	chain.Append(RowVersion{
		Begin: TxIDMarker(id),
		Row:   Row{ID: row.ID, Data: append([]byte(nil), row.Data...)},
	})
	chain.Unlock()

	e.mu.Lock()
	txn.addToWriteSet(row.ID)
	e.mu.Unlock()
	return nil
}

// Delete end-marks the newest version of id visible to tx_id (spec.md
// §4.3). Returns true if a version was end-marked, false if none was
// visible. A write-write conflict aborts the calling transaction and
// returns ErrWriteWriteConflict.
func (e *Engine) Delete(id TxID, rowID RowID) (bool, error) {
	txn, err := e.acquireActive(id)
	if err != nil {
		return false, err
	}

	chain, ok := e.versions.Get(rowID)
	if !ok {
		return false, nil
	}

	chain.Lock()
	var conflict, found bool
	chain.Newest(func(v *RowVersion) bool {
		if isWriteWriteConflict(txn, v, e.txLookup) {
			conflict = true
			return false
		}
		if isVisible(txn, v, e.txLookup) {
			m := TxIDMarker(id)
			v.End = &m
			found = true
			return false
		}
		return true
	})
	chain.Unlock()

	if conflict {
		_ = e.Rollback(id)
		return false, ErrWriteWriteConflict
	}
	if found {
		e.mu.Lock()
		txn.addToWriteSet(rowID)
		e.mu.Unlock()
		return true, nil
	}
	return false, nil
}

// Update is delete(tx_id, row.id) followed, on success, by
// insert(tx_id, row) (spec.md §4.3).
func (e *Engine) Update(id TxID, row Row) (bool, error) {
	deleted, err := e.Delete(id, row.ID)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}
	if err := e.Insert(id, row); err != nil {
		return false, err
	}
	return true, nil
}

// Read returns the newest version of id visible to tx_id, or nil if none
// is visible (spec.md §4.3).
func (e *Engine) Read(id TxID, rowID RowID) (*Row, error) {
	txn, err := e.acquireActive(id)
	if err != nil {
		return nil, err
	}

	chain, ok := e.versions.Get(rowID)
	if !ok {
		return nil, nil
	}

	var result *Row
	chain.RLock()
	chain.Newest(func(v *RowVersion) bool {
		if isVisible(txn, v, e.txLookup) {
			result = &Row{ID: v.Row.ID, Data: append([]byte(nil), v.Row.Data...)}
			return false
		}
		return true
	})
	chain.RUnlock()

	if result != nil {
		e.mu.Lock()
		txn.addToReadSet(rowID)
		e.mu.Unlock()
	}
	return result, nil
}

// ScanRowIDs returns every RowID currently in the store, in RowID order,
// without visibility filtering (spec.md §4.1, §4.3).
func (e *Engine) ScanRowIDs() []RowID {
	return e.versions.ScanRowIDs()
}

// ScanRowIDsForTable returns every RowID belonging to tableID, in RowID
// order, without visibility filtering.
func (e *Engine) ScanRowIDsForTable(tableID uint64) []RowID {
	return e.versions.ScanRowIDsForTable(tableID)
}

// Commit durably commits tx_id, rewriting its TxID markers to timestamps
// and appending a LogRecord if any versions were affected (spec.md §4.2).
func (e *Engine) Commit(id TxID) error {
	commitTS := e.clock.Now()

	e.mu.Lock()
	txn, ok := e.txs[id]
	if !ok {
		e.mu.Unlock()
		return ErrNoSuchTransactionID
	}
	if txn.State != TxActive {
		e.mu.Unlock()
		return ErrTxTerminated
	}
	writeSet := make([]RowID, 0, len(txn.WriteSet))
	for r := range txn.WriteSet {
		writeSet = append(writeSet, r)
	}
	e.mu.Unlock()

	// Every chain the write set touches is locked before the
	// Active -> Preparing transition below, in a fixed RowID order
	// shared with Rollback to avoid a lock-ordering deadlock between
	// concurrent commits/rollbacks with overlapping write sets. A
	// reader blocked on one of these chains can only resume once its
	// marker has already been rewritten to a timestamp, so it never
	// observes this transaction in TxPreparing.
	sort.Slice(writeSet, func(i, j int) bool { return writeSet[i].Less(writeSet[j]) })
	chains := make([]*RowChain, len(writeSet))
	for i, r := range writeSet {
		if chain, ok := e.versions.Get(r); ok {
			chain.Lock()
			chains[i] = chain
		}
	}

	e.mu.Lock()
	txn.State = TxPreparing
	e.logger.Tracef("PREPARE %s", txn)
	e.mu.Unlock()

	record := LogRecord{TxTimestamp: commitTS}
	for _, chain := range chains {
		if chain == nil {
			continue
		}
		for i := range chain.versions {
			v := &chain.versions[i]
			touched := false
			if v.Begin.IsTxID() && v.Begin.TxIDValue() == id {
				v.Begin = Timestamp(txn.BeginTS)
				touched = true
			}
			if v.End != nil && v.End.IsTxID() && v.End.TxIDValue() == id {
				ts := Timestamp(commitTS)
				v.End = &ts
				touched = true
			}
			if touched {
				record.Versions = append(record.Versions, v.Clone())
			}
		}
		chain.Unlock()
	}

	e.mu.Lock()
	txn.State = TxCommitted
	e.hist.Remove(txn.BeginTS)
	e.logger.Tracef("COMMIT %s", txn)
	e.mu.Unlock()

	if len(record.Versions) > 0 {
		if err := e.log.Append(record); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	return nil
}

// Rollback discards tx_id's writes (spec.md §4.2). It is safe to call
// more than once for the same TxID; subsequent calls return
// ErrTxTerminated rather than corrupting state.
func (e *Engine) Rollback(id TxID) error {
	e.mu.Lock()
	txn, ok := e.txs[id]
	if !ok {
		e.mu.Unlock()
		return ErrNoSuchTransactionID
	}
	if txn.State != TxActive {
		e.mu.Unlock()
		return ErrTxTerminated
	}
	writeSet := make([]RowID, 0, len(txn.WriteSet))
	for r := range txn.WriteSet {
		writeSet = append(writeSet, r)
	}
	e.mu.Unlock()

	// Same discipline as Commit: every touched chain is locked, in
	// the same RowID order, before the Active -> Aborted transition,
	// so no reader can resolve a marker against an Aborted-but-not-
	// yet-stripped transaction.
	sort.Slice(writeSet, func(i, j int) bool { return writeSet[i].Less(writeSet[j]) })
	chains := make([]*RowChain, len(writeSet))
	for i, r := range writeSet {
		if chain, ok := e.versions.Get(r); ok {
			chain.Lock()
			chains[i] = chain
		}
	}

	e.mu.Lock()
	txn.State = TxAborted
	e.logger.Tracef("ABORT %s", txn)
	e.mu.Unlock()

	for i, r := range writeSet {
		chain := chains[i]
		if chain == nil {
			continue
		}
		chain.RetainFunc(func(v *RowVersion) bool {
			if v.Begin.IsTxID() && v.Begin.TxIDValue() == id {
				return false
			}
			if v.End != nil && v.End.IsTxID() && v.End.TxIDValue() == id {
				v.End = nil
			}
			return true
		})
		if chain.Len() == 0 {
			e.versions.RemoveIfEmpty(r)
		}
		chain.Unlock()
	}

	e.mu.Lock()
	txn.State = TxTerminated
	e.hist.Remove(txn.BeginTS)
	e.logger.Tracef("TERMINATE %s", txn)
	e.mu.Unlock()
	return nil
}

// DropUnusedRowVersions sweeps every chain, removing versions provably
// invisible to all active transactions (spec.md §4.5), and returns how
// many versions were reclaimed.
func (e *Engine) DropUnusedRowVersions() int {
	e.mu.Lock()
	oldest, hasActive := e.hist.Oldest()
	liveActive := make(map[TxID]bool, len(e.txs))
	for id, t := range e.txs {
		if t.State == TxActive {
			liveActive[id] = true
		}
	}
	e.mu.Unlock()

	var reclaimed int
	e.versions.ForEachChain(func(id RowID, chain *RowChain) {
		chain.Lock()
		before := chain.Len()
		chain.RetainFunc(func(v *RowVersion) bool {
			if v.End == nil {
				return true
			}
			if v.End.IsTxID() {
				return liveActive[v.End.TxIDValue()]
			}
			if !hasActive {
				return false
			}
			return oldest <= v.End.TimestampValue()
		})
		reclaimed += before - chain.Len()
		if chain.Len() == 0 {
			e.versions.RemoveIfEmpty(id)
		}
		chain.Unlock()
	})
	return reclaimed
}

// Recover replays the durable log in append order, rebuilding in-memory
// state equivalent to having committed every logged transaction (spec.md
// §4.6). It must be called before any transaction is begun.
func (e *Engine) Recover() error {
	records, err := e.log.Replay()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	for _, rec := range records {
		for _, v := range rec.Versions {
			chain := e.versions.GetOrCreate(v.Row.ID)
			chain.Lock()
			chain.Append(v)
			chain.Unlock()
		}
		e.clock.ResetFloor(rec.TxTimestamp)
	}
	return nil
}
