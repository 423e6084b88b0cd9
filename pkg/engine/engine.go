// Package engine wires the mvcc core to its durability, observability,
// and admin-surface collaborators: pkg/wal for the commit log, pkg/audit
// for lifecycle events, pkg/metrics for counters, and pkg/adminserver for
// the health/metrics HTTP surface. This is the package cmd/hekatond
// constructs directly.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hekaton-db/hekaton/pkg/adminserver"
	"github.com/hekaton-db/hekaton/pkg/audit"
	"github.com/hekaton-db/hekaton/pkg/clock"
	"github.com/hekaton-db/hekaton/pkg/metrics"
	"github.com/hekaton-db/hekaton/pkg/mvcc"
	"github.com/hekaton-db/hekaton/pkg/wal"
)

// Config controls how a Engine is constructed.
type Config struct {
	// WALPath is the file the durable log is written to. Empty disables
	// durability (mvcc.NoopLog is used instead).
	WALPath string

	// AuditLogPath is the file audit events are appended to. Empty logs
	// to stdout.
	AuditLogPath string

	// AdminHost and AdminPort configure the admin HTTP server. If either
	// is set, Open wires an admin server (unset parts take the
	// adminserver defaults) and Run starts it.
	AdminHost string
	AdminPort int

	// GCInterval records the intended background sweep interval. Open
	// does not read it; Run takes the sweep interval as its own argument
	// (zero there disables the background sweep).
	GCInterval time.Duration

	// SlowCommitThreshold is the minimum commit/rollback duration logged
	// to the slow transaction log. Zero uses the metrics package default.
	SlowCommitThreshold time.Duration

	// ProfileCommits enables per-stage commit timing via CommitProfiler.
	ProfileCommits bool
}

// DefaultConfig returns an in-memory-only engine configuration with no
// admin server.
func DefaultConfig() *Config {
	return &Config{}
}

// Engine is the fully wired, production-shaped entry point: the mvcc
// transaction manager plus its durability and observability
// collaborators.
type Engine struct {
	core      *mvcc.Engine
	log       *wal.FileLog
	audit     *audit.Logger
	collector *metrics.Collector
	resources *metrics.ResourceTracker
	admin     *adminserver.Server
	profiler  *metrics.CommitProfiler
	slowTx    *metrics.SlowTransactionLog
}

// Open constructs an Engine per cfg, replaying any existing durable log
// before returning.
func Open(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	collector := metrics.NewCollector()
	resources := metrics.NewResourceTracker(nil)

	var durableLog mvcc.DurableLog = mvcc.NoopLog{}
	var fileLog *wal.FileLog
	if cfg.WALPath != "" {
		fl, err := wal.Open(cfg.WALPath)
		if err != nil {
			return nil, fmt.Errorf("engine: open wal: %w", err)
		}
		fl.SetResourceTracker(resources)
		fileLog = fl
		durableLog = fl
	}

	var auditLogger *audit.Logger
	var err error
	if cfg.AuditLogPath != "" {
		auditLogger, err = audit.NewFileLogger(cfg.AuditLogPath, nil)
		if err != nil {
			return nil, fmt.Errorf("engine: open audit log: %w", err)
		}
	} else {
		auditLogger = audit.NewLogger(nil)
	}

	slowTxCfg := metrics.DefaultSlowTransactionLogConfig()
	if cfg.SlowCommitThreshold > 0 {
		slowTxCfg.Threshold = cfg.SlowCommitThreshold
	}
	slowTx, err := metrics.NewSlowTransactionLog(slowTxCfg)
	if err != nil {
		return nil, fmt.Errorf("engine: open slow transaction log: %w", err)
	}

	core := mvcc.NewEngine(clock.NewMonotonic(), durableLog)

	e := &Engine{
		core:      core,
		log:       fileLog,
		audit:     auditLogger,
		collector: collector,
		resources: resources,
		profiler:  metrics.NewCommitProfiler(cfg.ProfileCommits),
		slowTx:    slowTx,
	}

	recoverStart := time.Now()
	recoverErr := core.Recover()
	auditLogger.LogRecover(0, time.Since(recoverStart), recoverErr)
	if recoverErr != nil {
		return nil, fmt.Errorf("engine: recover: %w", recoverErr)
	}

	if cfg.AdminHost != "" || cfg.AdminPort != 0 {
		adminCfg := adminserver.DefaultConfig()
		if cfg.AdminHost != "" {
			adminCfg.Host = cfg.AdminHost
		}
		if cfg.AdminPort != 0 {
			adminCfg.Port = cfg.AdminPort
		}
		e.admin = adminserver.New(adminCfg, collector, resources, e.engineStats)
	}

	return e, nil
}

func (e *Engine) engineStats() adminserver.EngineStats {
	oldest, _ := e.core.OldestActiveBeginTS()
	return adminserver.EngineStats{
		ActiveTransactions:  e.core.ActiveTransactionCount(),
		RowCount:            e.core.RowCount(),
		OldestActiveBeginTS: oldest,
	}
}

// AdminServer returns the wired admin HTTP server, or nil if none was
// configured.
func (e *Engine) AdminServer() *adminserver.Server { return e.admin }

// Begin starts a new transaction (spec.md §4.2).
func (e *Engine) Begin() mvcc.TxID {
	id := e.core.Begin()
	e.collector.RecordBegin()
	if txn, ok := e.core.Lookup(id); ok {
		e.audit.LogBegin(uint64(id), txn.CorrelationID)
	}
	return id
}

// Commit commits tx_id.
func (e *Engine) Commit(id mvcc.TxID) error {
	var correlationID uuid.UUID
	var writeSetSize int
	if txn, ok := e.core.Lookup(id); ok {
		correlationID = txn.CorrelationID
		writeSetSize = len(txn.WriteSet)
	}

	start := time.Now()
	_, err := e.profiler.ProfileCommit(uint64(id), func(session *metrics.ProfileSession) error {
		defer metrics.TimeStage(session, "commit")()
		return e.core.Commit(id)
	})
	d := time.Since(start)

	e.collector.RecordCommit(d, err == nil)
	e.audit.LogCommit(uint64(id), correlationID, writeSetSize, d, err)
	e.slowTx.LogTransaction(metrics.SlowTransactionEntry{
		Duration:     d,
		Operation:    "commit",
		TxID:         uint64(id),
		WriteSetSize: writeSetSize,
		Error:        errString(err),
	})
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Rollback rolls back tx_id.
func (e *Engine) Rollback(id mvcc.TxID) error {
	var correlationID uuid.UUID
	var writeSetSize int
	if txn, ok := e.core.Lookup(id); ok {
		correlationID = txn.CorrelationID
		writeSetSize = len(txn.WriteSet)
	}

	start := time.Now()
	err := e.core.Rollback(id)
	d := time.Since(start)

	e.collector.RecordRollback(false)
	e.audit.LogRollback(uint64(id), correlationID, writeSetSize, false)
	e.slowTx.LogTransaction(metrics.SlowTransactionEntry{
		Duration:     d,
		Operation:    "rollback",
		TxID:         uint64(id),
		WriteSetSize: writeSetSize,
		Error:        errString(err),
	})
	return err
}

// Insert inserts row under tx_id.
func (e *Engine) Insert(id mvcc.TxID, row mvcc.Row) error {
	err := e.core.Insert(id, row)
	if err == nil {
		e.collector.RecordInsert()
	}
	return err
}

// Update updates row under tx_id.
func (e *Engine) Update(id mvcc.TxID, row mvcc.Row) (bool, error) {
	updated, err := e.core.Update(id, row)
	if err != nil {
		e.recordConflictIfAny(id, err)
		return updated, err
	}
	if updated {
		e.collector.RecordInsert()
		e.collector.RecordDelete()
	}
	return updated, nil
}

// Delete end-marks rowID's newest version visible to tx_id.
func (e *Engine) Delete(id mvcc.TxID, rowID mvcc.RowID) (bool, error) {
	deleted, err := e.core.Delete(id, rowID)
	if err != nil {
		e.recordConflictIfAny(id, err)
		return deleted, err
	}
	if deleted {
		e.collector.RecordDelete()
	}
	return deleted, nil
}

func (e *Engine) recordConflictIfAny(id mvcc.TxID, err error) {
	if err == mvcc.ErrWriteWriteConflict {
		var correlationID uuid.UUID
		if txn, ok := e.core.Lookup(id); ok {
			correlationID = txn.CorrelationID
		}
		e.collector.RecordRollback(true)
		e.audit.LogWriteWriteConflict(uint64(id), correlationID)
	}
}

// Read returns the newest version of rowID visible to tx_id.
func (e *Engine) Read(id mvcc.TxID, rowID mvcc.RowID) (*mvcc.Row, error) {
	row, err := e.core.Read(id, rowID)
	if err == nil {
		e.collector.RecordRead()
	}
	return row, err
}

// ScanRowIDs returns every RowID in the store.
func (e *Engine) ScanRowIDs() []mvcc.RowID { return e.core.ScanRowIDs() }

// ScanRowIDsForTable returns every RowID belonging to tableID.
func (e *Engine) ScanRowIDsForTable(tableID uint64) []mvcc.RowID {
	return e.core.ScanRowIDsForTable(tableID)
}

// RowCount returns the number of distinct RowIDs currently in the store.
func (e *Engine) RowCount() int { return e.core.RowCount() }

// RunGC runs one garbage collection sweep and records its outcome.
func (e *Engine) RunGC() {
	start := time.Now()
	reclaimed := e.core.DropUnusedRowVersions()
	e.collector.RecordGCRun(reclaimed)
	e.audit.LogGCRun(reclaimed, time.Since(start))
}

// Close closes the slow transaction log, the durable log (if any) and the
// audit log. It does not stop the admin server; Run shuts that down when
// it receives a signal.
func (e *Engine) Close() error {
	e.resources.Close()
	_ = e.slowTx.Close()
	if e.log != nil {
		if err := e.log.Close(); err != nil {
			return err
		}
	}
	return e.audit.Close()
}

// Run starts the admin HTTP server (if configured) and the background GC
// sweep (if gcInterval > 0), then blocks until SIGINT/SIGTERM or the
// admin server fails. It always calls Close before returning.
func (e *Engine) Run(gcInterval time.Duration) error {
	defer e.Close()

	errChan := make(chan error, 1)
	if e.admin != nil {
		fmt.Printf("🚀 hekaton engine admin surface starting\n")
		go func() { errChan <- e.admin.ListenAndServe() }()
	}

	stopGC := make(chan struct{})
	if gcInterval > 0 {
		go e.gcLoop(gcInterval, stopGC)
		defer close(stopGC)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("\n⚠️  received signal: %v\n", sig)
		if e.admin != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return e.admin.Shutdown(ctx)
		}
		return nil
	}
}

func (e *Engine) gcLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.RunGC()
		case <-stop:
			return
		}
	}
}
