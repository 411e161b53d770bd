package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketwatch/internal/failure"
	"marketwatch/internal/sampler"
)

const namespace = "marketwatch"

// Collector owns the sampler's Prometheus collectors on a private registry.
type Collector struct {
	registry *prometheus.Registry

	cycles      *prometheus.CounterVec
	duration    prometheus.Histogram
	lastValue   *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
	fallbacks   prometheus.Counter

	mu          sync.RWMutex
	lastOK      time.Time
	lastFailure failure.Kind
}

// New registers every collector on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sampler",
				Name:      "cycles_total",
				Help:      "Sampling cycles by result and failure kind.",
			},
			[]string{"result", "kind"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sampler",
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of one sampling cycle.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
		),
		lastValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sampler",
				Name:      "last_value",
				Help:      "Most recently stored value per field.",
			},
			[]string{"field"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sampler",
				Name:      "last_success_timestamp_seconds",
				Help:      "Capture time of the last stored sample.",
			},
		),
		fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sampler",
				Name:      "index_fallbacks_total",
				Help:      "Cycles whose index value came from the fallback source.",
			},
		),
	}

	c.registry.MustRegister(
		c.cycles,
		c.duration,
		c.lastValue,
		c.lastSuccess,
		c.fallbacks,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler exposing the registered metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveCycle implements sampler.Recorder.
func (c *Collector) ObserveCycle(out sampler.Outcome, elapsed time.Duration) {
	c.duration.Observe(elapsed.Seconds())

	if !out.OK() {
		c.cycles.WithLabelValues("failed", string(out.Kind())).Inc()
		c.mu.Lock()
		c.lastFailure = out.Kind()
		c.mu.Unlock()
		return
	}

	result := "inserted"
	if !out.Inserted {
		result = "duplicate"
	}
	c.cycles.WithLabelValues(result, "none").Inc()
	if out.IndexSource == sampler.IndexFallback {
		c.fallbacks.Inc()
	}

	if out.Sample.HasIndex() {
		c.lastValue.WithLabelValues("index_value").Set(out.Sample.IndexValue)
	}
	c.lastValue.WithLabelValues("fx_rate").Set(out.Sample.FXRate)
	c.lastValue.WithLabelValues("exchange_price").Set(out.Sample.ExchangePrice)
	c.lastSuccess.Set(float64(out.Timestamp.UnixMicro()) / 1e6)

	c.mu.Lock()
	c.lastOK = out.Timestamp
	c.lastFailure = failure.KindNone
	c.mu.Unlock()
}

// Health is the state reported by /healthz.
type Health struct {
	LastSuccess time.Time    `json:"last_success,omitempty"`
	LastFailure failure.Kind `json:"last_failure,omitempty"`
}

// Health returns the latest cycle state.
func (c *Collector) Health() Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Health{LastSuccess: c.lastOK, LastFailure: c.lastFailure}
}

var _ sampler.Recorder = (*Collector)(nil)
