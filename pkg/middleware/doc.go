// Package middleware provides dispatch middleware for telepath.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware
//   - Logging and panic recovery middleware
//
// Middleware wraps the handler call of every dispatch and sees the resolved
// match, the dispatch ID and the handler's error:
//
//	d := telepath.New(table,
//	    telepath.WithMiddleware(
//	        middleware.Recover(logger),
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	        middleware.Prometheus(),
//	        middleware.Logging(logger),
//	    ),
//	)
//
// # OpenTelemetry Middleware
//
// One span per dispatch, named after the matched route. The span context is
// handed to the handler through its context.Context, so handlers that take
// a leading context.Context propagate the trace:
//
//	func Orders(ctx context.Context, c *app.Controller, p string) error {
//	    req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
//	    ...
//	}
//
// # Prometheus Metrics
//
//   - telepath_dispatch_total: dispatches by match kind, route and status
//   - telepath_dispatch_duration_seconds: handler duration by match kind
//   - telepath_dispatch_errors_total: failures by route and error type
//
// Expose them on a separate port:
//
//	http.Handle("/metrics", promhttp.Handler())
//	go http.ListenAndServe(":9090", nil)
package middleware
