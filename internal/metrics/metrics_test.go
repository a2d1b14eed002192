package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	start := time.Now()
	m.Observe("merge", OutcomeOK, start)
	m.Observe("merge", OutcomeOK, start)
	m.Observe("convert", OutcomeError, start)
	m.Observe("convert", OutcomeDefect, start)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("merge", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("convert", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.defects.WithLabelValues("convert")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.defects.WithLabelValues("merge")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe("check", OutcomeOK, time.Now()) })
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Observe("check", OutcomeOK, time.Now())

	path := filepath.Join(t.TempDir(), "onnxkit.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `onnxkit_operations_total{op="check",outcome="ok"} 1`)
}
