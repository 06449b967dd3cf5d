package observability

import (
	"context"
	"encoding/json"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	logger, err = NewLogger("WARN", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(0))

	_, err = NewLogger("chatty", false)
	assert.Error(t, err)
}

func TestSectionMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewSectionMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.Observe(ctx, "save", "b6_water", true, 20*time.Millisecond)
	m.Observe(ctx, "save", "b6_water", false, 5*time.Millisecond)
	m.Observe(ctx, "load", "b6_water", true, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("save", "b6_water", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("save", "b6_water", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.durations))

	expected := `
# HELP vsmecore_section_operations_total Section store operations partitioned by operation, collection and status.
# TYPE vsmecore_section_operations_total counter
vsmecore_section_operations_total{collection="b6_water",operation="load",status="success"} 1
vsmecore_section_operations_total{collection="b6_water",operation="save",status="error"} 1
vsmecore_section_operations_total{collection="b6_water",operation="save",status="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "vsmecore_section_operations_total"))

	_, err = NewSectionMetrics(reg)
	assert.Error(t, err, "second registration must collide")
}

func TestExpvarRecorder(t *testing.T) {
	rec := NewExpvarRecorder("")
	published := expvar.Get(rec.Name())
	require.NotNil(t, published)

	ctx := context.Background()
	rec.Observe(ctx, "load", "b7_waste", true, 2*time.Millisecond)
	rec.Observe(ctx, "load", "b7_waste", false, 3*time.Millisecond)
	rec.Observe(ctx, "save", "b3_energy_emissions", true, time.Millisecond)
	rec.Observe(ctx, "", "b7_waste", true, time.Millisecond)

	totals := rec.Totals()
	require.Len(t, totals, 2)
	assert.Equal(t, int64(1), totals["load/b7_waste"].Success)
	assert.Equal(t, int64(1), totals["load/b7_waste"].Errors)
	assert.InDelta(t, 5.0, totals["load/b7_waste"].TotalMS, 0.001)

	assert.Equal(t, []string{
		"load/b7_waste success=1 error=1 total_ms=5.000",
		"save/b3_energy_emissions success=1 error=0 total_ms=1.000",
	}, totals.Lines())

	var decoded map[string]OperationTotals
	require.NoError(t, json.Unmarshal([]byte(published.String()), &decoded))
	assert.Equal(t, OperationTotals{Success: 1, TotalMS: 1}, decoded["save/b3_energy_emissions"])
}

func TestRecordersFanOut(t *testing.T) {
	a, b := NewExpvarRecorder(""), NewExpvarRecorder("")
	Recorders{a, nil, b}.Observe(context.Background(), "save", "c5_wage_ratio", true, time.Millisecond)
	assert.Equal(t, int64(1), a.Totals()["save/c5_wage_ratio"].Success)
	assert.Equal(t, int64(1), b.Totals()["save/c5_wage_ratio"].Success)
}
