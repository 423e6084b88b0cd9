// Package metrics collects real-time engine counters (atomic, lock-free
// on the hot path) and exposes them in Prometheus text exposition
// format. Adapted from the document-store MetricsCollector/TimingHistogram
// shape for transaction-lifecycle and garbage-collection counters instead
// of query/insert/update/delete counters.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects transaction and GC counters for one Engine.
type Collector struct {
	transactionsBegun     uint64
	transactionsCommitted uint64
	transactionsAborted   uint64
	transactionsTerminated uint64

	writeWriteConflicts uint64

	reads   uint64
	inserts uint64
	deletes uint64

	gcRuns              uint64
	gcVersionsReclaimed uint64

	logAppends uint64
	logErrors  uint64

	mu            sync.RWMutex
	commitTimings *TimingHistogram

	startTime time.Time
}

// TimingHistogram stores timing data in fixed latency buckets plus a
// bounded recent-sample window for percentile estimation.
type TimingHistogram struct {
	bucket0_1ms      uint64
	bucket1_10ms     uint64
	bucket10_100ms   uint64
	bucket100_1000ms uint64
	bucket1000ms     uint64

	mu               sync.Mutex
	recentTimings    []time.Duration
	maxRecentTimings int
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		commitTimings: NewTimingHistogram(1000),
		startTime:     time.Now(),
	}
}

// NewTimingHistogram creates a histogram retaining at most maxRecent
// samples for percentile estimation.
func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{
		recentTimings:    make([]time.Duration, 0, maxRecent),
		maxRecentTimings: maxRecent,
	}
}

func (c *Collector) RecordBegin()      { atomic.AddUint64(&c.transactionsBegun, 1) }
func (c *Collector) RecordTerminated() { atomic.AddUint64(&c.transactionsTerminated, 1) }

// RecordCommit records a commit attempt's outcome and latency.
func (c *Collector) RecordCommit(d time.Duration, success bool) {
	if success {
		atomic.AddUint64(&c.transactionsCommitted, 1)
	} else {
		atomic.AddUint64(&c.transactionsAborted, 1)
	}
	c.commitTimings.Record(d)
}

// RecordRollback records a rollback, noting whether it was triggered by
// a write-write conflict rather than an explicit caller request.
func (c *Collector) RecordRollback(causedByConflict bool) {
	atomic.AddUint64(&c.transactionsAborted, 1)
	if causedByConflict {
		atomic.AddUint64(&c.writeWriteConflicts, 1)
	}
}

func (c *Collector) RecordRead()   { atomic.AddUint64(&c.reads, 1) }
func (c *Collector) RecordInsert() { atomic.AddUint64(&c.inserts, 1) }
func (c *Collector) RecordDelete() { atomic.AddUint64(&c.deletes, 1) }

// RecordGCRun records one garbage collection sweep reclaiming n
// versions.
func (c *Collector) RecordGCRun(n int) {
	atomic.AddUint64(&c.gcRuns, 1)
	atomic.AddUint64(&c.gcVersionsReclaimed, uint64(n))
}

// RecordLogAppend records a durable log append, success or failure.
func (c *Collector) RecordLogAppend(success bool) {
	atomic.AddUint64(&c.logAppends, 1)
	if !success {
		atomic.AddUint64(&c.logErrors, 1)
	}
}

// Record adds a timing observation to th.
func (th *TimingHistogram) Record(d time.Duration) {
	switch ms := d.Milliseconds(); {
	case ms < 1:
		atomic.AddUint64(&th.bucket0_1ms, 1)
	case ms < 10:
		atomic.AddUint64(&th.bucket1_10ms, 1)
	case ms < 100:
		atomic.AddUint64(&th.bucket10_100ms, 1)
	case ms < 1000:
		atomic.AddUint64(&th.bucket100_1000ms, 1)
	default:
		atomic.AddUint64(&th.bucket1000ms, 1)
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.recentTimings) >= th.maxRecentTimings {
		th.recentTimings = th.recentTimings[1:]
	}
	th.recentTimings = append(th.recentTimings, d)
}

// GetBuckets returns cumulative-free bucket counts keyed by bucket label.
func (th *TimingHistogram) GetBuckets() map[string]uint64 {
	return map[string]uint64{
		"0-1ms":      atomic.LoadUint64(&th.bucket0_1ms),
		"1-10ms":     atomic.LoadUint64(&th.bucket1_10ms),
		"10-100ms":   atomic.LoadUint64(&th.bucket10_100ms),
		"100-1000ms": atomic.LoadUint64(&th.bucket100_1000ms),
		">1000ms":    atomic.LoadUint64(&th.bucket1000ms),
	}
}

// GetPercentiles returns p50/p95/p99 from the recent-sample window.
func (th *TimingHistogram) GetPercentiles() map[string]time.Duration {
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) == 0 {
		return map[string]time.Duration{"p50": 0, "p95": 0, "p99": 0}
	}

	sorted := make([]time.Duration, len(th.recentTimings))
	copy(sorted, th.recentTimings)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	return map[string]time.Duration{
		"p50": sorted[len(sorted)*50/100],
		"p95": sorted[len(sorted)*95/100],
		"p99": sorted[len(sorted)*99/100],
	}
}

// Snapshot is a point-in-time view of every counter, suitable for JSON
// serialization on an admin endpoint.
type Snapshot struct {
	UptimeSeconds          float64                  `json:"uptime_seconds"`
	TransactionsBegun      uint64                   `json:"transactions_begun"`
	TransactionsCommitted  uint64                   `json:"transactions_committed"`
	TransactionsAborted    uint64                   `json:"transactions_aborted"`
	TransactionsTerminated uint64                   `json:"transactions_terminated"`
	WriteWriteConflicts    uint64                   `json:"write_write_conflicts"`
	Reads                  uint64                   `json:"reads"`
	Inserts                uint64                   `json:"inserts"`
	Deletes                uint64                   `json:"deletes"`
	GCRuns                 uint64                   `json:"gc_runs"`
	GCVersionsReclaimed    uint64                   `json:"gc_versions_reclaimed"`
	LogAppends             uint64                   `json:"log_appends"`
	LogErrors              uint64                   `json:"log_errors"`
	CommitTimingBuckets    map[string]uint64        `json:"commit_timing_buckets"`
	CommitTimingPercentile map[string]time.Duration `json:"commit_timing_percentiles"`
}

// Snapshot returns the current value of every counter.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:          time.Since(c.startTime).Seconds(),
		TransactionsBegun:      atomic.LoadUint64(&c.transactionsBegun),
		TransactionsCommitted:  atomic.LoadUint64(&c.transactionsCommitted),
		TransactionsAborted:    atomic.LoadUint64(&c.transactionsAborted),
		TransactionsTerminated: atomic.LoadUint64(&c.transactionsTerminated),
		WriteWriteConflicts:    atomic.LoadUint64(&c.writeWriteConflicts),
		Reads:                  atomic.LoadUint64(&c.reads),
		Inserts:                atomic.LoadUint64(&c.inserts),
		Deletes:                atomic.LoadUint64(&c.deletes),
		GCRuns:                 atomic.LoadUint64(&c.gcRuns),
		GCVersionsReclaimed:    atomic.LoadUint64(&c.gcVersionsReclaimed),
		LogAppends:             atomic.LoadUint64(&c.logAppends),
		LogErrors:              atomic.LoadUint64(&c.logErrors),
		CommitTimingBuckets:    c.commitTimings.GetBuckets(),
		CommitTimingPercentile: c.commitTimings.GetPercentiles(),
	}
}

// Reset zeroes every counter and restarts the uptime clock. Intended for
// tests; production callers should not normally reset live counters.
func (c *Collector) Reset() {
	atomic.StoreUint64(&c.transactionsBegun, 0)
	atomic.StoreUint64(&c.transactionsCommitted, 0)
	atomic.StoreUint64(&c.transactionsAborted, 0)
	atomic.StoreUint64(&c.transactionsTerminated, 0)
	atomic.StoreUint64(&c.writeWriteConflicts, 0)
	atomic.StoreUint64(&c.reads, 0)
	atomic.StoreUint64(&c.inserts, 0)
	atomic.StoreUint64(&c.deletes, 0)
	atomic.StoreUint64(&c.gcRuns, 0)
	atomic.StoreUint64(&c.gcVersionsReclaimed, 0)
	atomic.StoreUint64(&c.logAppends, 0)
	atomic.StoreUint64(&c.logErrors, 0)

	c.mu.Lock()
	c.commitTimings = NewTimingHistogram(1000)
	c.startTime = time.Now()
	c.mu.Unlock()
}
