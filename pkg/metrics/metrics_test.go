package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorRecordsCommitAndAbort(t *testing.T) {
	c := NewCollector()
	c.RecordBegin()
	c.RecordBegin()
	c.RecordCommit(2*time.Millisecond, true)
	c.RecordCommit(time.Millisecond, false)

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.TransactionsBegun)
	assert.EqualValues(t, 1, snap.TransactionsCommitted)
	assert.EqualValues(t, 1, snap.TransactionsAborted)
}

func TestCollectorRecordsConflictRollback(t *testing.T) {
	c := NewCollector()
	c.RecordRollback(true)
	c.RecordRollback(false)

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.TransactionsAborted)
	assert.EqualValues(t, 1, snap.WriteWriteConflicts)
}

func TestCollectorRecordsGC(t *testing.T) {
	c := NewCollector()
	c.RecordGCRun(5)
	c.RecordGCRun(3)

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.GCRuns)
	assert.EqualValues(t, 8, snap.GCVersionsReclaimed)
}

func TestTimingHistogramBuckets(t *testing.T) {
	h := NewTimingHistogram(100)
	h.Record(500 * time.Microsecond)
	h.Record(5 * time.Millisecond)
	h.Record(50 * time.Millisecond)

	buckets := h.GetBuckets()
	assert.EqualValues(t, 1, buckets["0-1ms"])
	assert.EqualValues(t, 1, buckets["1-10ms"])
	assert.EqualValues(t, 1, buckets["10-100ms"])
}

func TestTimingHistogramPercentilesEmpty(t *testing.T) {
	h := NewTimingHistogram(100)
	p := h.GetPercentiles()
	assert.Equal(t, time.Duration(0), p["p50"])
}

func TestResetZeroesCounters(t *testing.T) {
	c := NewCollector()
	c.RecordBegin()
	c.RecordGCRun(10)
	c.Reset()

	snap := c.Snapshot()
	assert.Zero(t, snap.TransactionsBegun)
	assert.Zero(t, snap.GCVersionsReclaimed)
}
