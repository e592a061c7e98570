package monitoring

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sqleval/pattern"
)

// MetricType represents different types of metrics
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
	MetricTypeTimer     MetricType = "timer"
)

// Names of the metrics recorded by evaluation
const (
	MetricRowsEvaluated      = "eval.rows"
	MetricBatchesEvaluated   = "eval.batches"
	MetricEvaluationFailures = "eval.failures"
	MetricEvaluationLatency  = "eval.latency"
	MetricPoolInFlight       = "worker.in_flight"
	MetricPatternCacheHits   = "pattern.cache.hits"
	MetricPatternCacheMisses = "pattern.cache.misses"
	MetricPatternCacheSize   = "pattern.cache.entries"
)

// Metric is a snapshot of one metric
type Metric struct {
	Name      string
	Type      MetricType
	Value     interface{}
	Labels    map[string]string
	Timestamp time.Time
	Unit      string
}

// CounterMetric tracks incremental values
type CounterMetric struct {
	value atomic.Int64
}

func (c *CounterMetric) Inc()            { c.value.Add(1) }
func (c *CounterMetric) Add(delta int64) { c.value.Add(delta) }
func (c *CounterMetric) Get() int64      { return c.value.Load() }
func (c *CounterMetric) Reset()          { c.value.Store(0) }

// GaugeMetric tracks point-in-time values
type GaugeMetric struct {
	bits atomic.Uint64
}

func (g *GaugeMetric) Set(value float64) {
	g.bits.Store(math.Float64bits(value))
}

func (g *GaugeMetric) Add(delta float64) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (g *GaugeMetric) Get() float64 {
	return math.Float64frombits(g.bits.Load())
}

// HistogramMetric tracks distribution of values
type HistogramMetric struct {
	mu      sync.RWMutex
	buckets []float64
	counts  []int64
	sum     float64
	count   int64
}

func NewHistogramMetric(buckets []float64) *HistogramMetric {
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	return &HistogramMetric{
		buckets: sorted,
		counts:  make([]int64, len(sorted)+1), // last slot is +Inf
	}
}

func (h *HistogramMetric) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += value
	h.count++
	i := sort.SearchFloat64s(h.buckets, value)
	h.counts[i]++
}

// HistogramStats is a snapshot of a histogram
type HistogramStats struct {
	Count   int64
	Sum     float64
	Mean    float64
	Buckets map[string]int64
}

func (h *HistogramMetric) GetStats() HistogramStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := HistogramStats{
		Count:   h.count,
		Sum:     h.sum,
		Buckets: make(map[string]int64, len(h.counts)),
	}
	if h.count > 0 {
		stats.Mean = h.sum / float64(h.count)
	}
	for i, bucket := range h.buckets {
		stats.Buckets[fmt.Sprintf("%g", bucket)] = h.counts[i]
	}
	stats.Buckets["+Inf"] = h.counts[len(h.buckets)]
	return stats
}

// TimerMetric records durations in milliseconds
type TimerMetric struct {
	histogram *HistogramMetric
}

func NewTimerMetric() *TimerMetric {
	buckets := []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}
	return &TimerMetric{histogram: NewHistogramMetric(buckets)}
}

// Observe records one duration
func (t *TimerMetric) Observe(d time.Duration) {
	t.histogram.Observe(float64(d.Microseconds()) / 1000)
}

// Since records the time elapsed since start and returns it
func (t *TimerMetric) Since(start time.Time) time.Duration {
	d := time.Since(start)
	t.Observe(d)
	return d
}

func (t *TimerMetric) Time(fn func()) time.Duration {
	start := time.Now()
	fn()
	return t.Since(start)
}

func (t *TimerMetric) GetStats() HistogramStats {
	return t.histogram.GetStats()
}

// MetricsRegistry manages named metrics
type MetricsRegistry struct {
	mu         sync.RWMutex
	counters   map[string]*CounterMetric
	gauges     map[string]*GaugeMetric
	histograms map[string]*HistogramMetric
	timers     map[string]*TimerMetric
	labels     map[string]map[string]string
}

func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters:   make(map[string]*CounterMetric),
		gauges:     make(map[string]*GaugeMetric),
		histograms: make(map[string]*HistogramMetric),
		timers:     make(map[string]*TimerMetric),
		labels:     make(map[string]map[string]string),
	}
}

func getOrCreate[M any](r *MetricsRegistry, m map[string]*M, name string, create func() *M) *M {
	r.mu.RLock()
	existing, ok := m[name]
	r.mu.RUnlock()
	if ok {
		return existing
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := m[name]; ok {
		return existing
	}
	created := create()
	m[name] = created
	return created
}

func (r *MetricsRegistry) Counter(name string) *CounterMetric {
	return getOrCreate(r, r.counters, name, func() *CounterMetric { return &CounterMetric{} })
}

func (r *MetricsRegistry) Gauge(name string) *GaugeMetric {
	return getOrCreate(r, r.gauges, name, func() *GaugeMetric { return &GaugeMetric{} })
}

func (r *MetricsRegistry) Histogram(name string, buckets []float64) *HistogramMetric {
	return getOrCreate(r, r.histograms, name, func() *HistogramMetric { return NewHistogramMetric(buckets) })
}

func (r *MetricsRegistry) Timer(name string) *TimerMetric {
	return getOrCreate(r, r.timers, name, NewTimerMetric)
}

func (r *MetricsRegistry) SetLabels(name string, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[name] = labels
}

// GetAllMetrics returns a snapshot of every metric sorted by name
func (r *MetricsRegistry) GetAllMetrics() []Metric {
	r.mu.RLock()
	names := make([]string, 0, len(r.counters)+len(r.gauges)+len(r.histograms)+len(r.timers))
	for name := range r.counters {
		names = append(names, name)
	}
	for name := range r.gauges {
		names = append(names, name)
	}
	for name := range r.histograms {
		names = append(names, name)
	}
	for name := range r.timers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	metrics := make([]Metric, 0, len(names))
	for _, name := range names {
		if m, ok := r.GetMetric(name); ok {
			metrics = append(metrics, m)
		}
	}
	return metrics
}

// Reset zeroes every counter. Gauges and distributions are kept.
func (r *MetricsRegistry) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, counter := range r.counters {
		counter.Reset()
	}
}

func (r *MetricsRegistry) GetMetric(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := Metric{Name: name, Labels: r.labels[name], Timestamp: time.Now()}
	if counter, ok := r.counters[name]; ok {
		m.Type, m.Value, m.Unit = MetricTypeCounter, counter.Get(), "count"
		return m, true
	}
	if gauge, ok := r.gauges[name]; ok {
		m.Type, m.Value, m.Unit = MetricTypeGauge, gauge.Get(), "value"
		return m, true
	}
	if histogram, ok := r.histograms[name]; ok {
		m.Type, m.Value, m.Unit = MetricTypeHistogram, histogram.GetStats(), "distribution"
		return m, true
	}
	if timer, ok := r.timers[name]; ok {
		m.Type, m.Value, m.Unit = MetricTypeTimer, timer.GetStats(), "milliseconds"
		return m, true
	}
	return Metric{}, false
}

// EvaluationMetrics groups the metrics recorded around expression evaluation
type EvaluationMetrics struct {
	Rows     *CounterMetric
	Batches  *CounterMetric
	Failures *CounterMetric
	Latency  *TimerMetric
	InFlight *GaugeMetric

	registry *MetricsRegistry
}

// NewEvaluationMetrics registers the evaluation metrics in r
func NewEvaluationMetrics(r *MetricsRegistry) *EvaluationMetrics {
	return &EvaluationMetrics{
		Rows:     r.Counter(MetricRowsEvaluated),
		Batches:  r.Counter(MetricBatchesEvaluated),
		Failures: r.Counter(MetricEvaluationFailures),
		Latency:  r.Timer(MetricEvaluationLatency),
		InFlight: r.Gauge(MetricPoolInFlight),
		registry: r,
	}
}

// RecordBatch records one finished evaluation over a batch of rows
func (m *EvaluationMetrics) RecordBatch(rows int, elapsed time.Duration, err error) {
	m.Batches.Inc()
	m.Latency.Observe(elapsed)
	if err != nil {
		m.Failures.Inc()
		return
	}
	m.Rows.Add(int64(rows))
}

// RecordPatternCache copies pattern cache statistics into gauges
func (m *EvaluationMetrics) RecordPatternCache(stats pattern.CacheStats) {
	m.registry.Gauge(MetricPatternCacheHits).Set(float64(stats.Hits))
	m.registry.Gauge(MetricPatternCacheMisses).Set(float64(stats.Misses))
	m.registry.Gauge(MetricPatternCacheSize).Set(float64(stats.Entries))
}

// GlobalRegistry is the process-wide registry
var GlobalRegistry = NewMetricsRegistry()

func Counter(name string) *CounterMetric {
	return GlobalRegistry.Counter(name)
}

func Gauge(name string) *GaugeMetric {
	return GlobalRegistry.Gauge(name)
}

func Timer(name string) *TimerMetric {
	return GlobalRegistry.Timer(name)
}

func GetAllMetrics() []Metric {
	return GlobalRegistry.GetAllMetrics()
}

func GetMetric(name string) (Metric, bool) {
	return GlobalRegistry.GetMetric(name)
}

func (m Metric) String() string {
	labels := ""
	if len(m.Labels) > 0 {
		labels = fmt.Sprintf(" %v", m.Labels)
	}
	return fmt.Sprintf("%s%s: %v %s", m.Name, labels, m.Value, m.Unit)
}
