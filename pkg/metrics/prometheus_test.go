package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetricsIncludesNamespacedCounters(t *testing.T) {
	c := NewCollector()
	c.RecordBegin()
	c.RecordCommit(time.Millisecond, true)

	exp := NewPrometheusExporter(c, nil)
	var buf bytes.Buffer
	require.NoError(t, exp.WriteMetrics(&buf))

	out := buf.String()
	assert.True(t, strings.Contains(out, "hekaton_transactions_begun_total 1"))
	assert.True(t, strings.Contains(out, "hekaton_transactions_committed_total 1"))
}

func TestSetNamespaceChangesPrefix(t *testing.T) {
	c := NewCollector()
	exp := NewPrometheusExporter(c, nil)
	exp.SetNamespace("custom")

	var buf bytes.Buffer
	require.NoError(t, exp.WriteMetrics(&buf))
	assert.True(t, strings.Contains(buf.String(), "custom_uptime_seconds"))
}

func TestWriteMetricsWithResourceTracker(t *testing.T) {
	c := NewCollector()
	rt := NewResourceTracker(&ResourceTrackerConfig{Enabled: false})
	exp := NewPrometheusExporter(c, rt)

	var buf bytes.Buffer
	require.NoError(t, exp.WriteMetrics(&buf))
	assert.True(t, strings.Contains(buf.String(), "hekaton_memory_heap_bytes"))
}
