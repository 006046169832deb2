package observability

import (
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Compile-time interface check.
var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory is a MetricFactory backed by a Prometheus registry.
// Dotted metric names become underscored ("fulfillment.order.items" is
// exported as fulfillment_order_items).
type PrometheusFactory struct {
	registry *prometheus.Registry
}

// NewPrometheusFactory creates a factory with its own registry. Go runtime
// and process collectors are registered alongside the fulfillment metrics.
func NewPrometheusFactory() *PrometheusFactory {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusFactory{registry: reg}
}

// Registry returns the underlying registry.
func (f *PrometheusFactory) Registry() *prometheus.Registry { return f.registry }

// Handler serves the registry in the Prometheus exposition format.
func (f *PrometheusFactory) Handler() http.Handler {
	return promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{})
}

// Counter implements MetricFactory. Asking twice for the same name returns
// the same counter.
func (f *PrometheusFactory) Counter(name string) Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricName(name),
		Help: name,
	})
	if err := f.registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Histogram implements MetricFactory. Names ending in _ms get latency
// buckets, everything else gets small count buckets.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	buckets := []float64{1, 2, 3, 5, 8, 13, 21, 34}
	if strings.HasSuffix(name, "_ms") {
		buckets = prometheus.ExponentialBuckets(10, 2, 12)
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricName(name),
		Help:    name,
		Buckets: buckets,
	})
	if err := f.registry.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
