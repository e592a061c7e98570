package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqleval/pattern"
)

func TestCounterAndGaugeConcurrent(t *testing.T) {
	r := NewMetricsRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.Counter("c").Inc()
				r.Gauge("g").Add(0.5)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8000), r.Counter("c").Get())
	assert.Equal(t, 4000.0, r.Gauge("g").Get())

	r.Reset()
	assert.Equal(t, int64(0), r.Counter("c").Get())
	assert.Equal(t, 4000.0, r.Gauge("g").Get())
}

func TestHistogramBuckets(t *testing.T) {
	h := NewHistogramMetric([]float64{10, 1, 5})
	for _, v := range []float64{0.5, 1, 3, 7, 100} {
		h.Observe(v)
	}
	stats := h.GetStats()
	assert.Equal(t, int64(5), stats.Count)
	assert.InDelta(t, 22.3, stats.Mean, 1e-9)
	assert.Equal(t, map[string]int64{"1": 2, "5": 1, "10": 1, "+Inf": 1}, stats.Buckets)
}

func TestTimer(t *testing.T) {
	timer := NewTimerMetric()
	timer.Observe(2 * time.Millisecond)
	d := timer.Time(func() {})
	assert.GreaterOrEqual(t, d, time.Duration(0))
	stats := timer.GetStats()
	assert.Equal(t, int64(2), stats.Count)
	assert.GreaterOrEqual(t, stats.Sum, 2.0)
}

func TestEvaluationMetrics(t *testing.T) {
	r := NewMetricsRegistry()
	m := NewEvaluationMetrics(r)
	m.RecordBatch(100, time.Millisecond, nil)
	m.RecordBatch(50, time.Millisecond, errors.New("boom"))
	m.RecordPatternCache(pattern.CacheStats{Hits: 3, Misses: 1, Entries: 1})

	assert.Equal(t, int64(100), r.Counter(MetricRowsEvaluated).Get())
	assert.Equal(t, int64(2), r.Counter(MetricBatchesEvaluated).Get())
	assert.Equal(t, int64(1), r.Counter(MetricEvaluationFailures).Get())
	assert.Equal(t, 3.0, r.Gauge(MetricPatternCacheHits).Get())

	all := r.GetAllMetrics()
	names := make([]string, len(all))
	for i, metric := range all {
		names[i] = metric.Name
	}
	assert.Equal(t, []string{
		MetricBatchesEvaluated, MetricEvaluationFailures, MetricEvaluationLatency, MetricRowsEvaluated,
		MetricPatternCacheSize, MetricPatternCacheHits, MetricPatternCacheMisses, MetricPoolInFlight,
	}, names)

	latency, ok := r.GetMetric(MetricEvaluationLatency)
	require.True(t, ok)
	assert.Equal(t, MetricTypeTimer, latency.Type)
	assert.Equal(t, int64(2), latency.Value.(HistogramStats).Count)

	r.SetLabels(MetricRowsEvaluated, map[string]string{"worker": "w1"})
	rows, ok := r.GetMetric(MetricRowsEvaluated)
	require.True(t, ok)
	assert.Equal(t, "eval.rows map[worker:w1]: 100 count", rows.String())

	_, ok = r.GetMetric("missing")
	assert.False(t, ok)
}
