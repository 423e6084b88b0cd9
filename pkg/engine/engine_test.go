package engine

import (
	"path/filepath"
	"testing"

	"github.com/hekaton-db/hekaton/pkg/mvcc"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WALPath = filepath.Join(t.TempDir(), "test.wal")

	e, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineInsertCommitRead(t *testing.T) {
	e := openTestEngine(t)
	rowID := mvcc.RowID{TableID: 1, RowNum: 1}

	tx := e.Begin()
	if err := e.Insert(tx, mvcc.Row{ID: rowID, Data: []byte("v1")}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := e.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	readTx := e.Begin()
	row, err := e.Read(readTx, rowID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(row.Data) != "v1" {
		t.Fatalf("expected v1, got %q", row.Data)
	}
	if err := e.Commit(readTx); err != nil {
		t.Fatalf("Commit read tx: %v", err)
	}

	if got := e.RowCount(); got != 1 {
		t.Fatalf("expected 1 row, got %d", got)
	}
}

func TestEngineRollbackDiscardsInsert(t *testing.T) {
	e := openTestEngine(t)
	rowID := mvcc.RowID{TableID: 1, RowNum: 2}

	tx := e.Begin()
	if err := e.Insert(tx, mvcc.Row{ID: rowID, Data: []byte("discarded")}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := e.Rollback(tx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	readTx := e.Begin()
	row, err := e.Read(readTx, rowID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if row != nil {
		t.Fatalf("expected rolled-back row to be invisible, got %q", row.Data)
	}
	_ = e.Rollback(readTx)
}

func TestEngineDeleteAndGC(t *testing.T) {
	e := openTestEngine(t)
	rowID := mvcc.RowID{TableID: 2, RowNum: 1}

	tx := e.Begin()
	if err := e.Insert(tx, mvcc.Row{ID: rowID, Data: []byte("v1")}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := e.Commit(tx); err != nil {
		t.Fatalf("Commit insert: %v", err)
	}

	delTx := e.Begin()
	deleted, err := e.Delete(delTx, rowID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report a version was end-marked")
	}
	if err := e.Commit(delTx); err != nil {
		t.Fatalf("Commit delete: %v", err)
	}

	e.RunGC()
	if got := e.RowCount(); got != 0 {
		t.Fatalf("expected GC to reclaim the deleted row, got row count %d", got)
	}
}

func TestEngineScanRowIDsForTable(t *testing.T) {
	e := openTestEngine(t)

	tx := e.Begin()
	for i := uint64(0); i < 3; i++ {
		if err := e.Insert(tx, mvcc.Row{ID: mvcc.RowID{TableID: 5, RowNum: i}, Data: []byte("x")}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := e.Insert(tx, mvcc.Row{ID: mvcc.RowID{TableID: 6, RowNum: 0}, Data: []byte("y")}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := e.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ids := e.ScanRowIDsForTable(5)
	if len(ids) != 3 {
		t.Fatalf("expected 3 rows in table 5, got %d", len(ids))
	}
	for _, id := range ids {
		if id.TableID != 5 {
			t.Fatalf("scan leaked row from table %d", id.TableID)
		}
	}
}

func TestEngineRecoversFromWAL(t *testing.T) {
	dir := t.TempDir()
	walPath := filepath.Join(dir, "recover.wal")
	rowID := mvcc.RowID{TableID: 9, RowNum: 1}

	cfg := DefaultConfig()
	cfg.WALPath = walPath
	e1, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tx := e1.Begin()
	if err := e1.Insert(tx, mvcc.Row{ID: rowID, Data: []byte("durable")}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := e1.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := e1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg2 := DefaultConfig()
	cfg2.WALPath = walPath
	e2, err := Open(cfg2)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer e2.Close()

	if got := e2.RowCount(); got != 1 {
		t.Fatalf("expected 1 recovered row, got %d", got)
	}

	readTx := e2.Begin()
	row, err := e2.Read(readTx, rowID)
	if err != nil {
		t.Fatalf("Read recovered row: %v", err)
	}
	if string(row.Data) != "durable" {
		t.Fatalf("expected recovered data 'durable', got %q", row.Data)
	}
}
