package metrics

import (
	"fmt"
	"io"
	"time"
)

// PrometheusExporter renders a Collector (and, if set, a ResourceTracker)
// as Prometheus text exposition format.
// https://prometheus.io/docs/instrumenting/exposition_formats/
type PrometheusExporter struct {
	collector       *Collector
	resourceTracker *ResourceTracker
	namespace       string
}

// NewPrometheusExporter creates an exporter for collector, optionally
// enriched with resourceTracker (pass nil to omit runtime stats).
func NewPrometheusExporter(collector *Collector, resourceTracker *ResourceTracker) *PrometheusExporter {
	return &PrometheusExporter{
		collector:       collector,
		resourceTracker: resourceTracker,
		namespace:       "hekaton",
	}
}

// SetNamespace overrides the default "hekaton" metric name prefix.
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes every metric to w in Prometheus text format.
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	snap := pe.collector.Snapshot()

	if err := pe.writeGauge(w, "uptime_seconds", "Engine uptime in seconds", snap.UptimeSeconds); err != nil {
		return err
	}

	counters := []struct {
		name, help string
		value      uint64
	}{
		{"transactions_begun_total", "Total transactions begun", snap.TransactionsBegun},
		{"transactions_committed_total", "Total transactions committed", snap.TransactionsCommitted},
		{"transactions_aborted_total", "Total transactions aborted", snap.TransactionsAborted},
		{"transactions_terminated_total", "Total transactions reaching a terminal state", snap.TransactionsTerminated},
		{"write_write_conflicts_total", "Total write-write conflicts detected", snap.WriteWriteConflicts},
		{"reads_total", "Total row reads", snap.Reads},
		{"inserts_total", "Total row inserts", snap.Inserts},
		{"deletes_total", "Total row deletes", snap.Deletes},
		{"gc_runs_total", "Total garbage collection sweeps", snap.GCRuns},
		{"gc_versions_reclaimed_total", "Total row versions reclaimed by garbage collection", snap.GCVersionsReclaimed},
		{"log_appends_total", "Total durable log append attempts", snap.LogAppends},
		{"log_errors_total", "Total durable log append failures", snap.LogErrors},
	}
	for _, c := range counters {
		if err := pe.writeCounter(w, c.name, c.help, c.value); err != nil {
			return err
		}
	}

	if err := pe.writeHistogram(w, "commit_duration_seconds", "Commit latency histogram", snap.CommitTimingBuckets); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "commit_duration_seconds", snap.CommitTimingPercentile); err != nil {
		return err
	}

	if pe.resourceTracker != nil {
		if err := pe.writeResourceStats(w); err != nil {
			return err
		}
	}

	return nil
}

func (pe *PrometheusExporter) writeResourceStats(w io.Writer) error {
	stats := pe.resourceTracker.GetStats()

	gauges := []struct {
		name, help string
		value      float64
	}{
		{"memory_heap_bytes", "Heap memory in bytes", float64(stats.HeapInUse)},
		{"memory_stack_bytes", "Stack memory in bytes", float64(stats.StackInUse)},
		{"memory_objects", "Number of live allocated objects", float64(stats.AllocObjects)},
		{"goroutines", "Number of goroutines", float64(stats.NumGoroutines)},
		{"last_gc_time_nanoseconds", "Time of the last Go runtime GC in nanoseconds since the Unix epoch", float64(stats.LastGCTimeNs)},
		{"cpu_count", "Number of CPUs available", float64(stats.NumCPU)},
	}
	for _, g := range gauges {
		if err := pe.writeGauge(w, g.name, g.help, g.value); err != nil {
			return err
		}
	}

	counters := []struct {
		name, help string
		value      uint64
	}{
		{"memory_allocations_total", "Total memory allocations", stats.AllocBytes},
		{"io_bytes_read_total", "Total bytes read from durable storage", stats.BytesRead},
		{"io_bytes_written_total", "Total bytes written to durable storage", stats.BytesWritten},
		{"io_read_operations_total", "Total durable storage read operations", stats.ReadsCompleted},
		{"io_write_operations_total", "Total durable storage write operations", stats.WritesCompleted},
		{"runtime_gc_runs_total", "Total Go runtime garbage collection runs", uint64(stats.GCRuns)},
	}
	for _, c := range counters {
		if err := pe.writeCounter(w, c.name, c.help, c.value); err != nil {
			return err
		}
	}

	return nil
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, buckets map[string]uint64) error {
	metricName := pe.namespace + "_" + name
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", metricName, help, metricName); err != nil {
		return err
	}

	var cumulative uint64
	for _, b := range []struct {
		label, le string
	}{
		{"0-1ms", "0.001"},
		{"1-10ms", "0.01"},
		{"10-100ms", "0.1"},
		{"100-1000ms", "1.0"},
		{">1000ms", "+Inf"},
	} {
		cumulative += buckets[b.label]
		if _, err := fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", metricName, b.le, cumulative); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s_count %d\n", metricName, cumulative)
	return err
}

func (pe *PrometheusExporter) writePercentiles(w io.Writer, baseName string, percentiles map[string]time.Duration) error {
	for _, p := range []string{"p50", "p95", "p99"} {
		help := fmt.Sprintf("%s percentile of %s", p, baseName)
		if err := pe.writeGauge(w, baseName+"_"+p, help, percentiles[p].Seconds()); err != nil {
			return err
		}
	}
	return nil
}
