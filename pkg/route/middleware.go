package route

import (
	"context"
	"time"
)

// Dispatch describes one resolution and invocation in flight.
type Dispatch struct {
	// ID uniquely identifies the dispatch.
	ID string

	// Event is the incoming event. May be nil.
	Event Event

	// Match is the resolution result.
	Match Match

	// Controller is the controller handle passed by the caller.
	Controller any

	// Start is when the dispatch began.
	Start time.Time
}

// Route returns the path of the matched route, or the match kind for
// sentinels. Suitable as a low-cardinality label.
func (d *Dispatch) Route() string {
	if p := d.Match.Node.Path(); p != "" {
		return p
	}
	return d.Match.Kind.String()
}

// Middleware wraps handler invocation.
type Middleware interface {
	Handle(ctx context.Context, d *Dispatch, next func(context.Context) error) error
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, d *Dispatch, next func(context.Context) error) error

// Handle calls f.
func (f MiddlewareFunc) Handle(ctx context.Context, d *Dispatch, next func(context.Context) error) error {
	return f(ctx, d, next)
}

// Chain runs final through mws, the first middleware outermost.
func Chain(ctx context.Context, d *Dispatch, mws []Middleware, final func(context.Context) error) error {
	next := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context) error {
			return mw.Handle(ctx, d, inner)
		}
	}
	return next(ctx)
}
