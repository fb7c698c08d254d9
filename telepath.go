// Package telepath routes incoming deep-link events to handler functions.
//
// Routes are declared on handler functions with directive comments:
//
//	//telepath:route /orders prefix description="Order pages"
//	//telepath:role c=controller p=pathData
//	func Orders(c *app.Controller, p string) error
//
// `telepath gen` scans those directives, validates them and writes a
// generated Table function. At runtime a Dispatcher resolves each event
// against the frozen table and invokes the winning handler:
//
//	table := nav.MustTable()
//	d := telepath.New(table,
//	    telepath.WithMiddleware(middleware.Logging(logger)),
//	)
//	rec, err := d.Dispatch(ctx, event, controller)
package telepath

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telepath-dev/telepath/pkg/route"
)

// Version is the telepath release.
const Version = "0.4.0"

// =============================================================================
// Dispatcher
// =============================================================================

// Dispatcher resolves events against a frozen table and runs the handler
// through a middleware chain. It is safe for concurrent use.
type Dispatcher struct {
	table       *route.Table
	middlewares []route.Middleware
	logger      *zap.Logger
	newID       func() string
	now         func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMiddleware appends middleware. The first middleware runs outermost.
func WithMiddleware(mw ...route.Middleware) Option {
	return func(d *Dispatcher) {
		d.middlewares = append(d.middlewares, mw...)
	}
}

// WithLogger sets the logger. Dispatches are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithIDGenerator replaces the random UUID dispatch IDs.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// New creates a Dispatcher for table.
func New(table *route.Table, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:  table,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Table returns the underlying route table.
func (d *Dispatcher) Table() *route.Table {
	return d.table
}

// Resolve resolves path without invoking anything.
func (d *Dispatcher) Resolve(path string) route.Match {
	return d.table.Resolve(path)
}

// Dispatch resolves ev and invokes the winning handler with controller.
// The returned record is never nil; the error comes from the handler or
// from middleware.
func (d *Dispatcher) Dispatch(ctx context.Context, ev route.Event, controller any) (*route.Dispatch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rec := &route.Dispatch{
		ID:         d.newID(),
		Event:      ev,
		Match:      d.table.ResolveEvent(ev),
		Controller: controller,
		Start:      d.now(),
	}
	ctx = withDispatch(ctx, rec)

	err := route.Chain(ctx, rec, d.middlewares, func(ctx context.Context) error {
		return rec.Match.Invoke(ctx, controller, ev)
	})

	d.logger.Debug("dispatched",
		zap.String("dispatch_id", rec.ID),
		zap.String("kind", rec.Match.Kind.String()),
		zap.String("route", rec.Route()),
		zap.String("handler", rec.Match.Node.Ref().Key()),
		zap.Error(err),
	)
	return rec, err
}

// =============================================================================
// Route listing
// =============================================================================

// RouteInfo describes one route for listings.
type RouteInfo struct {
	Path        string `json:"path"`
	Prefix      bool   `json:"prefix"`
	Description string `json:"description"`
	Handler     string `json:"handler"`
	CallOrder   string `json:"call_order"`
}

// Routes lists the table's routes in path order.
func (d *Dispatcher) Routes() []RouteInfo {
	nodes := d.table.Nodes()
	out := make([]RouteInfo, len(nodes))
	for i, n := range nodes {
		out[i] = RouteInfo{
			Path:        n.Path(),
			Prefix:      n.Prefix(),
			Description: n.Description(),
			Handler:     n.Ref().Key(),
			CallOrder:   n.Binding().CallOrder(),
		}
	}
	return out
}

// =============================================================================
// Context
// =============================================================================

type dispatchKey struct{}

func withDispatch(ctx context.Context, rec *route.Dispatch) context.Context {
	return context.WithValue(ctx, dispatchKey{}, rec)
}

// FromContext returns the dispatch a handler is running in.
func FromContext(ctx context.Context) (*route.Dispatch, bool) {
	rec, ok := ctx.Value(dispatchKey{}).(*route.Dispatch)
	return rec, ok
}
