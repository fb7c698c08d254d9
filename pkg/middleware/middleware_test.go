package middleware

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telepath-dev/telepath/pkg/route"
)

func testTable(t *testing.T) *route.Table {
	t.Helper()
	ctrl := []route.Param{route.P("c", route.RoleController)}
	ref := func(name string) route.HandlerRef {
		return route.HandlerRef{Package: "example.com/nav", Name: name}
	}
	table, err := route.NewTable(
		route.Declaration{Ref: ref("Home"), Params: ctrl},
		route.Declaration{Ref: ref("NotFound"), Params: ctrl},
		[]route.Declaration{
			{Path: "/orders", Prefix: true, Description: "orders", Ref: ref("Orders"), Params: ctrl},
		},
	)
	require.NoError(t, err)
	return table
}

func dispatchFor(t *testing.T, path string) *route.Dispatch {
	t.Helper()
	return &route.Dispatch{ID: "d-1", Match: testTable(t).Resolve(path)}
}

func ok(context.Context) error { return nil }

func registeredOn(reg prometheus.Registerer, opts ...MetricsOption) *metrics {
	config := defaultMetricsConfig()
	config.Registry = reg
	for _, opt := range opts {
		opt(&config)
	}
	return metricsFor(config)
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, isMetric := o.(prometheus.Metric)
	require.True(t, isMetric)
	var m dto.Metric
	require.NoError(t, metric.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

// =============================================================================
// Prometheus
// =============================================================================

func TestPrometheusRecordsSuccessAndError(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := Prometheus(WithRegistry(reg))
	m := registeredOn(reg)

	require.NoError(t, mw.Handle(context.Background(), dispatchFor(t, "/orders/1"), ok))
	boom := errors.New("boom")
	err := mw.Handle(context.Background(), dispatchFor(t, "/nowhere"), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("prefix", "/orders", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("fallback", "fallback", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchErrors.WithLabelValues("fallback", "handler")))
	assert.Equal(t, uint64(1), histogramCount(t, m.dispatchDuration.WithLabelValues("prefix")))
	assert.Equal(t, uint64(1), histogramCount(t, m.dispatchDuration.WithLabelValues("fallback")))
}

func TestPrometheusSharesMetricsPerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	assert.NotPanics(t, func() {
		Prometheus(WithRegistry(reg))
		Prometheus(WithRegistry(reg))
	})
	assert.Same(t, registeredOn(reg), registeredOn(reg))
}

func TestPrometheusSeparatesNamespacesOnOneRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := Prometheus(WithRegistry(reg))
	second := Prometheus(WithRegistry(reg), WithNamespace("x"))

	require.NoError(t, first.Handle(context.Background(), dispatchFor(t, "/orders"), ok))
	require.NoError(t, second.Handle(context.Background(), dispatchFor(t, "/orders"), ok))
	require.NoError(t, second.Handle(context.Background(), dispatchFor(t, "/orders"), ok))

	assert.NotSame(t, registeredOn(reg), registeredOn(reg, WithNamespace("x")))
	assert.Equal(t, 1.0, testutil.ToFloat64(registeredOn(reg).dispatchTotal.WithLabelValues("exact", "/orders", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(registeredOn(reg, WithNamespace("x")).dispatchTotal.WithLabelValues("exact", "/orders", "success")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "telepath_dispatch_total")
	assert.Contains(t, names, "x_dispatch_total")
}

func TestPrometheusNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := Prometheus(WithRegistry(reg), WithNamespace("app"), WithSubsystem("nav"),
		WithConstLabels(prometheus.Labels{"env": "test"}), WithBuckets([]float64{0.1, 1}))
	require.NoError(t, mw.Handle(context.Background(), dispatchFor(t, "/orders"), ok))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "app_nav_dispatch_total")
	assert.Contains(t, names, "app_nav_dispatch_duration_seconds")
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{route.ErrNoHandler, "no_handler"},
		{route.ErrArgumentType, "argument_type"},
		{ErrPanic, "panic"},
		{errors.New("x"), "handler"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err), tt.err.Error())
	}
}

// =============================================================================
// OpenTelemetry
// =============================================================================

func newRecorder(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func TestOpenTelemetrySpan(t *testing.T) {
	exporter, tp := newRecorder(t)
	mw := OpenTelemetry(
		WithTracerProvider(tp),
		WithIncludeController(true),
		WithAttributeExtractor(func(*route.Dispatch) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)

	d := dispatchFor(t, "/orders/7")
	d.Controller = &bytes.Buffer{}
	err := mw.Handle(context.Background(), d, func(ctx context.Context) error {
		assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
		return nil
	})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "telepath /orders", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	attrs := map[attribute.Key]string{}
	for _, kv := range span.Attributes {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "d-1", attrs["telepath.dispatch_id"])
	assert.Equal(t, "/orders/7", attrs["telepath.path"])
	assert.Equal(t, "prefix", attrs["telepath.match"])
	assert.Equal(t, "example.com/nav.Orders", attrs["telepath.handler"])
	assert.Equal(t, "*bytes.Buffer", attrs["telepath.controller"])
	assert.Equal(t, "ok", attrs["test.attr"])
}

func TestOpenTelemetryRecordsError(t *testing.T) {
	exporter, tp := newRecorder(t)
	mw := OpenTelemetry(WithTracerProvider(tp))

	boom := errors.New("boom")
	err := mw.Handle(context.Background(), dispatchFor(t, "/x"), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "telepath fallback", spans[0].Name)
	require.NotEmpty(t, spans[0].Events)
}

func TestOpenTelemetryFilter(t *testing.T) {
	exporter, tp := newRecorder(t)
	mw := OpenTelemetry(
		WithTracerProvider(tp),
		WithDispatchFilter(func(d *route.Dispatch) bool { return d.Match.Kind != route.MatchFallback }),
	)

	require.NoError(t, mw.Handle(context.Background(), dispatchFor(t, "/x"), ok))
	assert.Empty(t, exporter.GetSpans())
}

// =============================================================================
// Logging and recovery
// =============================================================================

func observedLogger(buf *bytes.Buffer) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(buf), zapcore.DebugLevel))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	mw := Logging(observedLogger(&buf))

	require.NoError(t, mw.Handle(context.Background(), dispatchFor(t, "/orders"), ok))
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"route":"/orders"`)
	assert.Contains(t, buf.String(), `"dispatch_id":"d-1"`)

	buf.Reset()
	_ = mw.Handle(context.Background(), dispatchFor(t, "/orders"), func(context.Context) error { return errors.New("boom") })
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	mw := Recover(observedLogger(&buf))

	err := mw.Handle(context.Background(), dispatchFor(t, "/orders"), func(context.Context) error {
		panic("kaboom")
	})
	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Contains(t, buf.String(), "handler panic")

	assert.NoError(t, mw.Handle(context.Background(), dispatchFor(t, "/orders"), ok))
}

func TestNilLoggers(t *testing.T) {
	assert.NoError(t, Logging(nil).Handle(context.Background(), dispatchFor(t, "/orders"), ok))
	assert.NoError(t, Recover(nil).Handle(context.Background(), dispatchFor(t, "/orders"), ok))
}
