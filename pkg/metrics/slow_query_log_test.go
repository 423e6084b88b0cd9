package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestSlowTransactionLog_LogTransaction(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  50 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	stl.LogTransaction(SlowTransactionEntry{
		Duration:     100 * time.Millisecond,
		Operation:    "commit",
		TxID:         1,
		WriteSetSize: 3,
	})

	stl.LogTransaction(SlowTransactionEntry{
		Duration:  10 * time.Millisecond,
		Operation: "commit",
		TxID:      2,
	})

	entries := stl.GetEntries()
	if len(entries) != 1 {
		t.Errorf("Expected 1 slow transaction entry, got %d", len(entries))
	}
	if entries[0].Operation != "commit" {
		t.Errorf("Expected operation 'commit', got '%s'", entries[0].Operation)
	}
	if entries[0].TxID != 1 {
		t.Errorf("Expected tx_id 1, got %d", entries[0].TxID)
	}
}

func TestSlowTransactionLog_MaxEntries(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  10 * time.Millisecond,
		MaxEntries: 5,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	for i := 0; i < 10; i++ {
		stl.LogTransaction(SlowTransactionEntry{
			Duration:  20 * time.Millisecond,
			Operation: "commit",
			TxID:      uint64(i),
		})
	}

	entries := stl.GetEntries()
	if len(entries) != 5 {
		t.Errorf("Expected 5 entries (max), got %d", len(entries))
	}
}

func TestSlowTransactionLog_GetRecentEntries(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  10 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	for i := 0; i < 10; i++ {
		stl.LogTransaction(SlowTransactionEntry{
			Duration:  20 * time.Millisecond,
			Operation: "commit",
			TxID:      uint64(i),
		})
	}

	recent := stl.GetRecentEntries(3)
	if len(recent) != 3 {
		t.Errorf("Expected 3 recent entries, got %d", len(recent))
	}
}

func TestSlowTransactionLog_GetEntriesByOperation(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  10 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	stl.LogTransaction(SlowTransactionEntry{Duration: 50 * time.Millisecond, Operation: "commit"})
	stl.LogTransaction(SlowTransactionEntry{Duration: 60 * time.Millisecond, Operation: "rollback"})
	stl.LogTransaction(SlowTransactionEntry{Duration: 70 * time.Millisecond, Operation: "commit"})

	commits := stl.GetEntriesByOperation("commit")
	if len(commits) != 2 {
		t.Errorf("Expected 2 commit entries, got %d", len(commits))
	}
	rollbacks := stl.GetEntriesByOperation("rollback")
	if len(rollbacks) != 1 {
		t.Errorf("Expected 1 rollback entry, got %d", len(rollbacks))
	}
}

func TestSlowTransactionLog_GetEntriesSince(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  10 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	now := time.Now()

	stl.mu.Lock()
	stl.entries = append(stl.entries, SlowTransactionEntry{
		Timestamp: now.Add(-10 * time.Minute),
		Duration:  50 * time.Millisecond,
		Operation: "commit",
	})
	stl.mu.Unlock()

	stl.LogTransaction(SlowTransactionEntry{Duration: 60 * time.Millisecond, Operation: "rollback"})

	recent := stl.GetEntriesSince(now.Add(-5 * time.Minute))
	if len(recent) != 1 {
		t.Errorf("Expected 1 recent entry, got %d", len(recent))
	}
}

func TestSlowTransactionLog_GetStatistics(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  10 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	stl.LogTransaction(SlowTransactionEntry{Duration: 50 * time.Millisecond, Operation: "commit"})
	stl.LogTransaction(SlowTransactionEntry{Duration: 100 * time.Millisecond, Operation: "rollback"})
	stl.LogTransaction(SlowTransactionEntry{Duration: 75 * time.Millisecond, Operation: "commit"})

	stats := stl.GetStatistics()

	if stats["total_entries"].(int) != 3 {
		t.Errorf("Expected 3 total entries, got %v", stats["total_entries"])
	}
	avgDuration := stats["avg_duration_ms"].(float64)
	if avgDuration < 74.0 || avgDuration > 76.0 {
		t.Errorf("Expected avg duration ~75ms, got %.2fms", avgDuration)
	}
	byOp := stats["by_operation"].(map[string]int)
	if byOp["commit"] != 2 {
		t.Errorf("Expected 2 commits, got %d", byOp["commit"])
	}
	if byOp["rollback"] != 1 {
		t.Errorf("Expected 1 rollback, got %d", byOp["rollback"])
	}
}

func TestSlowTransactionLog_Clear(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  10 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	stl.LogTransaction(SlowTransactionEntry{Duration: 50 * time.Millisecond, Operation: "commit"})
	if len(stl.GetEntries()) != 1 {
		t.Error("Expected 1 entry before clear")
	}

	stl.Clear()
	if len(stl.GetEntries()) != 0 {
		t.Error("Expected 0 entries after clear")
	}
}

func TestSlowTransactionLog_ThresholdUpdate(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  50 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	if stl.GetThreshold() != 50*time.Millisecond {
		t.Error("Expected initial threshold of 50ms")
	}
	stl.SetThreshold(100 * time.Millisecond)
	if stl.GetThreshold() != 100*time.Millisecond {
		t.Error("Expected updated threshold of 100ms")
	}
}

func TestSlowTransactionLog_EnableDisable(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  10 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	if !stl.IsEnabled() {
		t.Error("Expected log to be enabled")
	}
	stl.Disable()
	if stl.IsEnabled() {
		t.Error("Expected log to be disabled")
	}

	stl.LogTransaction(SlowTransactionEntry{Duration: 50 * time.Millisecond, Operation: "commit"})
	if len(stl.GetEntries()) != 0 {
		t.Error("Expected no entries when disabled")
	}

	stl.Enable()
	stl.LogTransaction(SlowTransactionEntry{Duration: 50 * time.Millisecond, Operation: "commit"})
	if len(stl.GetEntries()) != 1 {
		t.Error("Expected 1 entry when enabled")
	}
}

func TestSlowTransactionLog_ExportToJSON(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  10 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	stl.LogTransaction(SlowTransactionEntry{Duration: 50 * time.Millisecond, Operation: "commit", TxID: 7})

	var buf bytes.Buffer
	if err := stl.ExportToJSON(&buf); err != nil {
		t.Fatalf("Failed to export to JSON: %v", err)
	}

	var entries []SlowTransactionEntry
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("Failed to parse exported JSON: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry in JSON, got %d", len(entries))
	}
}

func TestSlowTransactionLog_FileLogging(t *testing.T) {
	tmpFile := "/tmp/slow_tx_test.log"
	defer os.Remove(tmpFile)

	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:   10 * time.Millisecond,
		MaxEntries:  100,
		LogFilePath: tmpFile,
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}
	defer stl.Close()

	stl.LogTransaction(SlowTransactionEntry{Duration: 50 * time.Millisecond, Operation: "commit", TxID: 1})
	stl.Close()

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected log file to have content")
	}

	var entry SlowTransactionEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("Failed to parse log file JSON: %v", err)
	}
}

func TestSlowTransactionLog_GetTopSlowest(t *testing.T) {
	stl, err := NewSlowTransactionLog(&SlowTransactionLogConfig{
		Threshold:  10 * time.Millisecond,
		MaxEntries: 100,
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	durations := []time.Duration{
		50 * time.Millisecond,
		200 * time.Millisecond,
		30 * time.Millisecond,
		100 * time.Millisecond,
		150 * time.Millisecond,
	}
	for _, d := range durations {
		stl.LogTransaction(SlowTransactionEntry{Duration: d, Operation: "commit"})
	}

	top3 := stl.GetTopSlowest(3)
	if len(top3) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(top3))
	}
	if top3[0].Duration != 200*time.Millisecond {
		t.Errorf("Expected slowest to be 200ms, got %v", top3[0].Duration)
	}
	if top3[1].Duration != 150*time.Millisecond {
		t.Errorf("Expected second slowest to be 150ms, got %v", top3[1].Duration)
	}
	if top3[2].Duration != 100*time.Millisecond {
		t.Errorf("Expected third slowest to be 100ms, got %v", top3[2].Duration)
	}
}

func TestSlowTransactionLog_DefaultConfig(t *testing.T) {
	config := DefaultSlowTransactionLogConfig()

	if config.Threshold != 100*time.Millisecond {
		t.Errorf("Expected default threshold 100ms, got %v", config.Threshold)
	}
	if config.MaxEntries != 1000 {
		t.Errorf("Expected default max entries 1000, got %d", config.MaxEntries)
	}
	if !config.Enabled {
		t.Error("Expected default enabled to be true")
	}
}

func TestSlowTransactionLog_EmptyStatistics(t *testing.T) {
	stl, err := NewSlowTransactionLog(DefaultSlowTransactionLogConfig())
	if err != nil {
		t.Fatalf("Failed to create slow transaction log: %v", err)
	}

	stats := stl.GetStatistics()
	if stats["total_entries"].(int) != 0 {
		t.Errorf("Expected 0 entries, got %v", stats["total_entries"])
	}
}
