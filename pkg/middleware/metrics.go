package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/telepath-dev/telepath/pkg/route"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "telepath").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "telepath",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the dispatch metrics registered on one registry.
type metrics struct {
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchErrors   *prometheus.CounterVec
}

// metricsKey identifies one set of metric names on one registry.
type metricsKey struct {
	registry  prometheus.Registerer
	namespace string
	subsystem string
}

// Metrics are registered once per registry, namespace and subsystem; later
// Prometheus calls with the same key share them.
var (
	registered   = map[metricsKey]*metrics{}
	registeredMu sync.Mutex
)

func metricsFor(config MetricsConfig) *metrics {
	registeredMu.Lock()
	defer registeredMu.Unlock()

	key := metricsKey{registry: config.Registry, namespace: config.Namespace, subsystem: config.Subsystem}
	if m, ok := registered[key]; ok {
		return m
	}
	factory := promauto.With(config.Registry)
	m := &metrics{
		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_total",
			Help:        "Total number of dispatched events by match kind, route and status",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "route", "status"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Handler execution duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		dispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_errors_total",
			Help:        "Total number of failed dispatches by route and error type",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "error_type"}),
	}
	registered[key] = m
	return m
}

// Prometheus creates middleware that collects Prometheus metrics per dispatch.
//
// Metrics collected:
//   - telepath_dispatch_total: Counter of dispatches by kind, route and status
//   - telepath_dispatch_duration_seconds: Histogram of handler duration by kind
//   - telepath_dispatch_errors_total: Counter of failures by route and error type
//
// The route label is the matched route path, or the match kind for the
// home and fallback handlers, so label cardinality is bounded by the table.
//
// Calls sharing a registry, namespace and subsystem share one set of
// metrics; the buckets and const labels of the first such call apply.
// Use a different namespace or subsystem to register a separate set.
//
// Example:
//
//	d := telepath.New(table,
//	    telepath.WithMiddleware(middleware.Prometheus(middleware.WithNamespace("myapp"))),
//	)
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) route.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	m := metricsFor(config)

	return route.MiddlewareFunc(func(ctx context.Context, d *route.Dispatch, next func(context.Context) error) error {
		kind := d.Match.Kind.String()
		name := d.Route()

		start := time.Now()
		err := next(ctx)
		m.dispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.dispatchErrors.WithLabelValues(name, categorizeError(err)).Inc()
		}
		m.dispatchTotal.WithLabelValues(kind, name, status).Inc()
		return err
	})
}

// categorizeError returns a low-cardinality category for err.
func categorizeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, route.ErrNoHandler):
		return "no_handler"
	case errors.Is(err, route.ErrArgumentType):
		return "argument_type"
	case errors.Is(err, ErrPanic):
		return "panic"
	default:
		return "handler"
	}
}
