package metrics

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusConfig configures a PrometheusSink.
type PrometheusConfig struct {
	// Namespace prefixes every metric name.
	Namespace string
	// Registerer receives new collectors. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Buckets are the histogram buckets in seconds for Timing.
	Buckets []float64
	Logger  *slog.Logger
}

// PrometheusSink adapts the Sink interface to Prometheus vectors. The label set of
// a metric is fixed by its first use; later calls fill missing labels with "" and
// drop unknown ones.
type PrometheusSink struct {
	namespace string
	reg       prometheus.Registerer
	buckets   []float64
	logger    *slog.Logger

	mu         sync.Mutex
	counters   map[string]*labelledVec[*prometheus.CounterVec]
	gauges     map[string]*labelledVec[*prometheus.GaugeVec]
	histograms map[string]*labelledVec[*prometheus.HistogramVec]
}

type labelledVec[V any] struct {
	vec    V
	labels []string
}

var _ Sink = (*PrometheusSink)(nil)

// NewPrometheusSink creates a sink registering collectors lazily.
func NewPrometheusSink(cfg PrometheusConfig) *PrometheusSink {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PrometheusSink{
		namespace:  sanitizeName(cfg.Namespace),
		reg:        reg,
		buckets:    buckets,
		logger:     logger.With("component", "prometheus_sink"),
		counters:   make(map[string]*labelledVec[*prometheus.CounterVec]),
		gauges:     make(map[string]*labelledVec[*prometheus.GaugeVec]),
		histograms: make(map[string]*labelledVec[*prometheus.HistogramVec]),
	}
}

// Count adds value to a counter.
func (s *PrometheusSink) Count(name string, value int64, tags map[string]string) {
	if s == nil || value < 0 {
		return
	}
	s.mu.Lock()
	lv, ok := s.counters[name]
	if !ok {
		labels := labelKeys(tags)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      sanitizeName(name) + "_total",
			Help:      "Counter " + name + ".",
		}, labels)
		lv = &labelledVec[*prometheus.CounterVec]{vec: register(s, vec), labels: labels}
		s.counters[name] = lv
	}
	s.mu.Unlock()
	lv.vec.WithLabelValues(labelValues(lv.labels, tags)...).Add(float64(value))
}

// Gauge sets a gauge.
func (s *PrometheusSink) Gauge(name string, value float64, tags map[string]string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	lv, ok := s.gauges[name]
	if !ok {
		labels := labelKeys(tags)
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      sanitizeName(name),
			Help:      "Gauge " + name + ".",
		}, labels)
		lv = &labelledVec[*prometheus.GaugeVec]{vec: register(s, vec), labels: labels}
		s.gauges[name] = lv
	}
	s.mu.Unlock()
	lv.vec.WithLabelValues(labelValues(lv.labels, tags)...).Set(value)
}

// Timing observes a duration in seconds.
func (s *PrometheusSink) Timing(name string, value time.Duration, tags map[string]string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	lv, ok := s.histograms[name]
	if !ok {
		labels := labelKeys(tags)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      sanitizeName(name) + "_seconds",
			Help:      "Duration of " + name + ".",
			Buckets:   s.buckets,
		}, labels)
		lv = &labelledVec[*prometheus.HistogramVec]{vec: register(s, vec), labels: labels}
		s.histograms[name] = lv
	}
	s.mu.Unlock()
	lv.vec.WithLabelValues(labelValues(lv.labels, tags)...).Observe(value.Seconds())
}

// register adds c to the registry, reusing a previously registered equivalent collector.
func register[C prometheus.Collector](s *PrometheusSink, c C) C {
	if err := s.reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		s.logger.Warn("metric registration failed", "error", err)
	}
	return c
}

func labelKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		if k == "" {
			continue
		}
		keys = append(keys, sanitizeName(k))
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

func labelValues(labels []string, tags map[string]string) []string {
	values := make([]string, len(labels))
	for k, v := range tags {
		if i, ok := slices.BinarySearch(labels, sanitizeName(k)); ok {
			values[i] = v
		}
	}
	return values
}

var nameReplacer = strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_")

func sanitizeName(name string) string {
	return nameReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}
