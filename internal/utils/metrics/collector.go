// internal/utils/metrics/collector.go
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricType представляет тип метрики
type MetricType string

const (
	BundleCounterType        MetricType = "bundle_counter"
	BundleDurationType       MetricType = "bundle_duration"
	RelayCounterType         MetricType = "relay_counter"
	RelayLatencyType         MetricType = "relay_latency"
	ConfirmationDurationType MetricType = "confirmation_duration"
	RPCLatencyType           MetricType = "rpc_latency"
)

const namespace = "solana_bundler"

// Collector управляет набором метрик бандлера.
type Collector struct {
	metrics  sync.Map
	gatherer prometheus.Gatherer
}

// NewCollector creates the collector and registers its metrics on reg.
// A nil reg gets a private registry.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{}
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}
	if err := c.initializeMetrics(reg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collector) initializeMetrics(reg prometheus.Registerer) error {
	metricsMap := map[MetricType]prometheus.Collector{
		BundleCounterType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundles_total",
				Help:      "Bundle attempts by terminal status",
			},
			[]string{"status"},
		),
		BundleDurationType: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bundle_attempt_duration_seconds",
				Help:      "Duration of one build-submit-confirm attempt",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"status"},
		),
		RelayCounterType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_submissions_total",
				Help:      "Relay sendBundle calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		RelayLatencyType: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "relay_latency_seconds",
				Help:      "Relay call latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"endpoint", "method"},
		),
		ConfirmationDurationType: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "confirmation_duration_seconds",
				Help:      "Time from submission to a terminal watcher state",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"state"},
		),
		RPCLatencyType: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
			},
			[]string{"method", "endpoint"},
		),
	}

	for metricType, metric := range metricsMap {
		if err := reg.Register(metric); err != nil {
			return err
		}
		c.metrics.Store(metricType, metric)
	}
	return nil
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}

func (c *Collector) counter(t MetricType) *prometheus.CounterVec {
	if c == nil {
		return nil
	}
	if m, ok := c.metrics.Load(t); ok {
		if v, ok := m.(*prometheus.CounterVec); ok {
			return v
		}
	}
	return nil
}

func (c *Collector) histogram(t MetricType) *prometheus.HistogramVec {
	if c == nil {
		return nil
	}
	if m, ok := c.metrics.Load(t); ok {
		if v, ok := m.(*prometheus.HistogramVec); ok {
			return v
		}
	}
	return nil
}

// RecordBundle records one attempt's terminal status and duration.
func (c *Collector) RecordBundle(status string, duration time.Duration) {
	if v := c.counter(BundleCounterType); v != nil {
		v.WithLabelValues(status).Inc()
	}
	if v := c.histogram(BundleDurationType); v != nil {
		v.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// RecordRelay records one relay call. outcome is "accepted" or a failure kind.
func (c *Collector) RecordRelay(endpoint, method, outcome string, duration time.Duration) {
	if v := c.counter(RelayCounterType); v != nil && method == "sendBundle" {
		v.WithLabelValues(endpoint, outcome).Inc()
	}
	if v := c.histogram(RelayLatencyType); v != nil {
		v.WithLabelValues(endpoint, method).Observe(duration.Seconds())
	}
}

// RecordConfirmation records how long the watcher took to reach state.
func (c *Collector) RecordConfirmation(state string, duration time.Duration) {
	if v := c.histogram(ConfirmationDurationType); v != nil {
		v.WithLabelValues(state).Observe(duration.Seconds())
	}
}

// RecordRPCLatency записывает метрики RPC-запроса
func (c *Collector) RecordRPCLatency(method, endpoint string, duration time.Duration) {
	if v := c.histogram(RPCLatencyType); v != nil {
		v.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	}
}
