package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/telepath-dev/telepath/pkg/route"
)

// Default tracer name for telepath dispatches.
const defaultTracerName = "telepath"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "telepath").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// IncludeController adds the controller's type to spans.
	IncludeController bool

	// Filter determines which dispatches to trace.
	// Return true to trace the dispatch, false to skip.
	// If nil, all dispatches are traced.
	Filter func(d *route.Dispatch) bool

	// AttributeExtractor extracts custom attributes from the dispatch.
	AttributeExtractor func(d *route.Dispatch) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeController enables including the controller type in spans.
func WithIncludeController(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeController = include
	}
}

// WithDispatchFilter sets a filter function for dispatches.
func WithDispatchFilter(filter func(d *route.Dispatch) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(d *route.Dispatch) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every dispatch.
//
// Each span is named "telepath <route>" and carries the input path, the
// matched route, the match kind, the handler and the dispatch ID. Handler
// errors are recorded on the span. The span context is passed to the
// handler through its context.Context.
//
// Without WithTracerProvider the global provider is used, so configure it
// in main() before dispatching:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) route.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return route.MiddlewareFunc(func(ctx context.Context, d *route.Dispatch, next func(context.Context) error) error {
		if config.Filter != nil && !config.Filter(d) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("telepath.dispatch_id", d.ID),
			attribute.String("telepath.path", d.Match.Path),
			attribute.String("telepath.route", d.Route()),
			attribute.String("telepath.match", d.Match.Kind.String()),
			attribute.String("telepath.handler", d.Match.Node.Ref().Key()),
		}
		if d.Match.Node.Prefix() {
			attrs = append(attrs, attribute.Bool("telepath.prefix", true))
		}
		if config.IncludeController && d.Controller != nil {
			attrs = append(attrs, attribute.String("telepath.controller", typeName(d.Controller)))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(d)...)
		}

		spanCtx, span := config.tracer.Start(ctx, spanName(d),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(d.Start),
		)
		defer span.End()

		err := next(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

func spanName(d *route.Dispatch) string {
	return "telepath " + d.Route()
}
