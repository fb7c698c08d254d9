// Package deeplink exposes a Dispatcher over HTTP and WebSocket so external
// systems can deliver deep-link events.
//
// Routes served by NewHandler:
//
//	POST /dispatch   {"uri": "app://host/orders/42", "extras": {"k": "v"}}
//	GET  /open       ?uri=app://host/orders/42&k=v
//	GET  /resolve    ?path=/orders/42
//	GET  /routes
//	GET  /ws         WebSocket, one JSON request per text frame
package deeplink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/telepath-dev/telepath"
	"github.com/telepath-dev/telepath/pkg/route"
)

// DefaultMaxBody limits request bodies and WebSocket frames.
const DefaultMaxBody = 64 << 10

// ControllerFunc returns the controller handed to the handler of a request.
type ControllerFunc func(r *http.Request) (any, error)

// Request is a dispatch request.
type Request struct {
	URI    string            `json:"uri"`
	Extras map[string]string `json:"extras,omitempty"`
}

// Event converts the request into a route event. An empty URI yields an
// event without a path.
func (r Request) Event() (*route.URIEvent, error) {
	if r.URI == "" {
		return route.NewURIEvent(nil, r.Extras), nil
	}
	u, err := url.Parse(r.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid uri: %w", err)
	}
	return route.NewURIEvent(u, r.Extras), nil
}

// Reply reports the outcome of one dispatch.
type Reply struct {
	ID      string `json:"id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Route   string `json:"route,omitempty"`
	Handler string `json:"handler,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Resolution reports which route a path resolves to.
type Resolution struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Route     string `json:"route"`
	Handler   string `json:"handler"`
	CallOrder string `json:"call_order"`
}

// Option configures the handlers.
type Option func(*options)

type options struct {
	controller ControllerFunc
	logger     *zap.Logger
	maxBody    int64
}

// WithController sets the per-request controller factory. Without it
// handlers receive a nil controller.
func WithController(fn ControllerFunc) Option {
	return func(o *options) {
		o.controller = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxBody overrides DefaultMaxBody.
func WithMaxBody(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBody = n
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		controller: func(*http.Request) (any, error) { return nil, nil },
		logger:     zap.NewNop(),
		maxBody:    DefaultMaxBody,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type server struct {
	d    *telepath.Dispatcher
	opts *options
}

// NewHandler returns the HTTP API for d.
func NewHandler(d *telepath.Dispatcher, opts ...Option) http.Handler {
	s := &server{d: d, opts: newOptions(opts)}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/dispatch", s.handleDispatch)
	r.Get("/open", s.handleOpen)
	r.Get("/resolve", s.handleResolve)
	r.Get("/routes", s.handleRoutes)
	r.Method(http.MethodGet, "/ws", NewWebSocketHandler(d, opts...))
	return r
}

func (s *server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.maxBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Reply{Error: "invalid request: " + err.Error()})
		return
	}
	s.dispatch(w, r, req)
}

func (s *server) handleOpen(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := Request{URI: q.Get("uri"), Extras: map[string]string{}}
	for k, v := range q {
		if k != "uri" && len(v) > 0 {
			req.Extras[k] = v[0]
		}
	}
	s.dispatch(w, r, req)
}

func (s *server) dispatch(w http.ResponseWriter, r *http.Request, req Request) {
	ev, err := req.Event()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Reply{Error: err.Error()})
		return
	}
	controller, err := s.opts.controller(r)
	if err != nil {
		s.opts.logger.Error("controller unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Reply{Error: err.Error()})
		return
	}

	reply, err := run(r.Context(), s.d, ev, controller)
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeJSON(w, status, reply)
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var m route.Match
	if q.Has("path") {
		m = s.d.Resolve(q.Get("path"))
	} else {
		m = s.d.Table().ResolveEvent(nil)
	}
	writeJSON(w, http.StatusOK, Resolution{
		Path:      m.Path,
		Kind:      m.Kind.String(),
		Route:     routeOf(m),
		Handler:   m.Node.Ref().Key(),
		CallOrder: m.Node.Binding().CallOrder(),
	})
}

func (s *server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Routes())
}

// run dispatches ev and converts the outcome into a reply.
func run(ctx context.Context, d *telepath.Dispatcher, ev route.Event, controller any) (Reply, error) {
	rec, err := d.Dispatch(ctx, ev, controller)
	reply := Reply{
		ID:      rec.ID,
		Kind:    rec.Match.Kind.String(),
		Route:   rec.Route(),
		Handler: rec.Match.Node.Ref().Key(),
	}
	if err != nil {
		reply.Error = err.Error()
	}
	return reply, err
}

func routeOf(m route.Match) string {
	if m.Kind == route.MatchExact || m.Kind == route.MatchPrefix {
		return m.Node.Path()
	}
	return m.Kind.String()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, route.ErrNoHandler):
		return http.StatusNotImplemented
	case errors.Is(err, route.ErrArgumentType):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
