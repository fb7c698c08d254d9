package route

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"sort"
)

// Event is an incoming external event that may carry a route path.
type Event interface {
	// Path returns the route path carried by the event. ok is false when
	// the event carries no path at all.
	Path() (path string, ok bool)
}

// URIEvent is a generic deep-link event: a URI plus string extras.
type URIEvent struct {
	uri    *url.URL
	extras map[string]string
}

// ParseURI parses raw into a URIEvent without extras.
func ParseURI(raw string) (*URIEvent, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("route: parse uri: %w", err)
	}
	return NewURIEvent(u, nil), nil
}

// NewURIEvent creates an event for u. A nil u yields an event with no path.
func NewURIEvent(u *url.URL, extras map[string]string) *URIEvent {
	ev := &URIEvent{uri: u, extras: make(map[string]string, len(extras))}
	for k, v := range extras {
		ev.extras[k] = v
	}
	return ev
}

// Path returns the URI path. Only a missing URI counts as absent; a URI
// with an empty path carries the empty path.
func (e *URIEvent) Path() (string, bool) {
	if e == nil || e.uri == nil {
		return "", false
	}
	return e.uri.Path, true
}

// URI returns the event URI, or nil.
func (e *URIEvent) URI() *url.URL {
	if e == nil {
		return nil
	}
	return e.uri
}

// Extra returns a single extra value.
func (e *URIEvent) Extra(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.extras[key]
	return v, ok
}

// Extras returns the extra keys in sorted order.
func (e *URIEvent) Extras() []string {
	if e == nil {
		return nil
	}
	keys := make([]string, 0, len(e.extras))
	for k := range e.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *URIEvent) String() string {
	if e == nil || e.uri == nil {
		return "<no uri>"
	}
	return e.uri.String()
}

// Handler is the navigation capability stored in a route table.
type Handler interface {
	Navigate(ctx context.Context, controller any, path string, ev Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, controller any, path string, ev Event) error

// Navigate calls f.
func (f HandlerFunc) Navigate(ctx context.Context, controller any, path string, ev Event) error {
	return f(ctx, controller, path, ev)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// boundFunc calls a plain Go function with arguments in binding order.
type boundFunc struct {
	fn      reflect.Value
	ctx     bool
	roles   []Role
	in      []reflect.Type
	returns bool
}

// Bind adapts fn to a Handler. fn may take a leading context.Context,
// followed by exactly one parameter per role in b, and return nothing or
// a single error.
func Bind(fn any, b Binding) (Handler, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, &BuildError{Code: CodeBadSignature, Detail: fmt.Sprintf("%T is not a function", fn)}
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, &BuildError{Code: CodeBadSignature, Detail: "variadic handlers are not supported"}
	}

	bf := &boundFunc{fn: v, roles: b.roles}
	offset := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		bf.ctx = true
		offset = 1
	}
	if got, want := t.NumIn()-offset, len(b.roles); got != want {
		return nil, &BuildError{
			Code:   CodeBadSignature,
			Detail: fmt.Sprintf("function takes %d role parameters, declaration has %d", got, want),
		}
	}

	bf.in = make([]reflect.Type, len(b.roles))
	for i, role := range b.roles {
		pt := t.In(i + offset)
		if role == RolePathData && pt.Kind() != reflect.String {
			return nil, &BuildError{
				Code:   CodeBadSignature,
				Detail: fmt.Sprintf("%s parameter %d has type %s, want a string", role, i+offset, pt),
			}
		}
		bf.in[i] = pt
	}

	switch {
	case t.NumOut() == 0:
	case t.NumOut() == 1 && t.Out(0) == errorType:
		bf.returns = true
	default:
		return nil, &BuildError{Code: CodeBadSignature, Detail: "handlers return nothing or a single error"}
	}
	return bf, nil
}

func (f *boundFunc) Navigate(ctx context.Context, controller any, path string, ev Event) error {
	args := make([]reflect.Value, 0, len(f.roles)+1)
	if f.ctx {
		if ctx == nil {
			ctx = context.Background()
		}
		args = append(args, reflect.ValueOf(ctx))
	}
	for i, role := range f.roles {
		var v any
		switch role {
		case RoleController:
			v = controller
		case RolePathData:
			v = path
		case RoleEventData:
			v = ev
		}
		arg, err := argument(v, f.in[i])
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrArgumentType, role, err)
		}
		args = append(args, arg)
	}

	out := f.fn.Call(args)
	if f.returns && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

// argument converts v into a call argument of type t.
func argument(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t.Kind() == reflect.String && rv.Kind() == reflect.String {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", rv.Type(), t)
}
