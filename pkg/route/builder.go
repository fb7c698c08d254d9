package route

import (
	"errors"
	"regexp"
	"strconv"

	"go.uber.org/zap"
)

var pathPattern = regexp.MustCompile(`^/[A-Za-z0-9/_?%]*$`)

// ValidPath reports whether path is an acceptable route path.
func ValidPath(path string) bool {
	return pathPattern.MatchString(path)
}

// Declaration is one route (or sentinel) declared on a handler.
type Declaration struct {
	// Path is the route path. Sentinels leave it empty.
	Path string

	// Prefix makes the route also accept inputs starting with Path.
	Prefix bool

	// Description documents the route. Required for routes.
	Description string

	// Ref identifies the handler. Derived from Func when zero.
	Ref HandlerRef

	// Params lists the handler parameters with their roles, in
	// declaration order. A leading context.Context is not listed.
	Params []Param

	// Func is a plain Go handler function, bound by reflection when
	// Handler is nil.
	Func any

	// Handler is the runtime capability. Tables built from scanned source
	// have neither Handler nor Func.
	Handler Handler

	// Pos is the source position of the declaration, if known.
	Pos Position
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used to report accepted and rejected
// declarations at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Builder accumulates declarations into a route table. It is not safe for
// concurrent use. After Build it is frozen and rejects every call.
type Builder struct {
	set      *conflictSet
	home     *Node
	fallback *Node
	errs     []*BuildError
	frozen   bool
	logger   *zap.Logger
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		set:    newConflictSet(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetHome declares the handler used when an event carries no path.
func (b *Builder) SetHome(d Declaration) error {
	return b.setSentinel(&b.home, "home", d)
}

// SetFallback declares the handler used when no route matches.
func (b *Builder) SetFallback(d Declaration) error {
	return b.setSentinel(&b.fallback, "fallback", d)
}

func (b *Builder) setSentinel(slot **Node, kind string, d Declaration) error {
	if b.frozen {
		return frozenError()
	}
	d.Path, d.Prefix = "", false

	n, errs := b.node(&d, false)
	if len(errs) == 0 && *slot != nil && !(*slot).Same(n) {
		errs = append(errs, &BuildError{
			Code:   CodeSentinelTwice,
			Ref:    n.ref,
			Pos:    d.Pos,
			Peer:   *slot,
			Detail: kind,
		})
	}
	if len(errs) > 0 {
		return b.reject(errs)
	}
	*slot = n
	b.logger.Debug("sentinel accepted",
		zap.String("kind", kind),
		zap.String("handler", n.ref.Key()),
	)
	return nil
}

// Add validates a route declaration and inserts it. The returned error is
// also kept for Build.
func (b *Builder) Add(d Declaration) error {
	if b.frozen {
		return frozenError()
	}

	n, errs := b.node(&d, true)
	if len(errs) == 0 {
		peer, dup := b.set.check(n)
		switch {
		case dup:
			b.logger.Debug("route redeclared", zap.String("path", n.path), zap.String("handler", n.ref.Key()))
			return nil
		case peer != nil:
			errs = append(errs, &BuildError{
				Code: CodePathConflict,
				Path: n.path,
				Ref:  n.ref,
				Pos:  n.pos,
				Peer: peer,
			})
		}
	}
	if len(errs) > 0 {
		return b.reject(errs)
	}

	b.set.insert(n)
	b.logger.Debug("route accepted",
		zap.String("path", n.path),
		zap.Bool("prefix", n.prefix),
		zap.String("handler", n.ref.Key()),
	)
	return nil
}

// AddAll adds every declaration and reports all failures together.
func (b *Builder) AddAll(decls []Declaration) error {
	var failed []*BuildError
	for _, d := range decls {
		if err := b.Add(d); err != nil {
			if errors.Is(err, ErrFrozen) {
				return err
			}
			failed = append(failed, flatten(err)...)
		}
	}
	if len(failed) > 0 {
		return &MultiBuildError{Errors: failed}
	}
	return nil
}

// Build freezes the builder and returns the table. If any declaration
// failed, no table is returned and the error is a *MultiBuildError listing
// every failure.
func (b *Builder) Build() (*Table, error) {
	if b.frozen {
		return nil, frozenError()
	}
	b.frozen = true

	if b.home == nil {
		b.errs = append(b.errs, &BuildError{Code: CodeNoSentinel, Detail: "home handler"})
	}
	if b.fallback == nil {
		b.errs = append(b.errs, &BuildError{Code: CodeNoSentinel, Detail: "fallback handler"})
	}
	if len(b.errs) > 0 {
		b.logger.Debug("route build failed", zap.Int("errors", len(b.errs)))
		return nil, &MultiBuildError{Errors: b.errs}
	}

	t := &Table{
		nodes:    b.set.sorted(),
		home:     b.home,
		fallback: b.fallback,
	}
	b.logger.Debug("route table built", zap.Int("routes", len(t.nodes)))
	return t, nil
}

// node validates d and creates its node.
func (b *Builder) node(d *Declaration, route bool) (*Node, []*BuildError) {
	var errs []*BuildError
	fail := func(e *BuildError) { errs = append(errs, e.at(d)) }

	if route {
		if !ValidPath(d.Path) {
			fail(&BuildError{Code: CodeInvalidPath, Detail: strconv.Quote(d.Path)})
		}
		if d.Description == "" {
			fail(&BuildError{Code: CodeNoDescription})
		}
	}

	ref := d.Ref
	if ref.IsZero() && d.Func != nil {
		ref, _ = RefOf(d.Func)
	}
	if ref.IsZero() {
		fail(&BuildError{Code: CodeNoIdentity})
	} else if !ref.static() {
		fail(&BuildError{Code: CodeNotStatic, Ref: ref})
	}
	d.Ref = ref

	binding, err := SortRoles(d.Params)
	if err != nil {
		fail(err.(*BuildError))
	}
	if len(errs) > 0 {
		return nil, errs
	}

	h := d.Handler
	if h == nil && d.Func != nil {
		if h, err = Bind(d.Func, binding); err != nil {
			fail(err.(*BuildError))
			return nil, errs
		}
	}

	params := make([]Param, len(d.Params))
	copy(params, d.Params)
	return &Node{
		path:        d.Path,
		prefix:      d.Prefix,
		description: d.Description,
		ref:         ref,
		params:      params,
		binding:     binding,
		handler:     h,
		pos:         d.Pos,
	}, nil
}

func (b *Builder) reject(errs []*BuildError) error {
	b.errs = append(b.errs, errs...)
	for _, e := range errs {
		b.logger.Debug("declaration rejected",
			zap.String("code", e.Code),
			zap.String("path", e.Path),
			zap.String("handler", e.Ref.Key()),
		)
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &MultiBuildError{Errors: errs}
}

// Errors returns the failures recorded so far.
func (b *Builder) Errors() []*BuildError {
	out := make([]*BuildError, len(b.errs))
	copy(out, b.errs)
	return out
}

func frozenError() error {
	return &BuildError{Code: CodeFrozen, Err: ErrFrozen}
}

func flatten(err error) []*BuildError {
	switch e := err.(type) {
	case *BuildError:
		return []*BuildError{e}
	case *MultiBuildError:
		return e.Errors
	}
	return []*BuildError{{Err: err}}
}

// NewTable builds a table from sentinels and routes in one call.
func NewTable(home, fallback Declaration, routes []Declaration, opts ...Option) (*Table, error) {
	b := NewBuilder(opts...)
	_ = b.SetHome(home)
	_ = b.SetFallback(fallback)
	_ = b.AddAll(routes)
	return b.Build()
}
