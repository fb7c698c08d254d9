package route

import (
	"fmt"
	"go/token"
	"net/url"
	"reflect"
	"runtime"
	"strings"
)

// HandlerRef identifies a handler function independently of any runtime value.
type HandlerRef struct {
	// Package is the handler's import path (e.g., "example.com/app/nav").
	Package string

	// Receiver is the receiver type for methods. Route handlers must leave it empty.
	Receiver string

	// Name is the function name.
	Name string
}

// IsZero reports whether the reference names no function.
func (r HandlerRef) IsZero() bool {
	return r.Name == ""
}

// Key returns the identity used to tell two declarations of the same handler apart
// from two different handlers.
func (r HandlerRef) Key() string {
	var sb strings.Builder
	if r.Package != "" {
		sb.WriteString(r.Package)
		sb.WriteByte('.')
	}
	if r.Receiver != "" {
		sb.WriteString(r.Receiver)
		sb.WriteByte('.')
	}
	sb.WriteString(r.Name)
	return sb.String()
}

// String returns the fully qualified handler name.
func (r HandlerRef) String() string {
	return r.Key()
}

// static reports whether the reference is an exported package-level function.
func (r HandlerRef) static() bool {
	return r.Receiver == "" && token.IsExported(r.Name)
}

// RefOf derives a HandlerRef from a function value's runtime symbol.
// Method values and closures yield a non-empty Receiver.
func RefOf(fn any) (HandlerRef, bool) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return HandlerRef{}, false
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return HandlerRef{}, false
	}
	return parseSymbol(f.Name()), true
}

// parseSymbol splits a runtime symbol such as "example.com/app/nav.(*T).M-fm".
// The linker escapes dots in the last import path element ("nav%2ev2"), so
// the package part is unescaped to match the import path.
func parseSymbol(full string) HandlerRef {
	full = strings.TrimSuffix(full, "-fm")
	slash := strings.LastIndex(full, "/")
	rest := full[slash+1:]
	dot := strings.Index(rest, ".")
	if dot < 0 {
		return HandlerRef{Name: full}
	}
	pkg := full[:slash+1+dot]
	if unescaped, err := url.PathUnescape(pkg); err == nil {
		pkg = unescaped
	}
	ref := HandlerRef{Package: pkg}
	sym := rest[dot+1:]
	if i := strings.LastIndex(sym, "."); i >= 0 {
		ref.Receiver = strings.Trim(sym[:i], "()*")
		sym = sym[i+1:]
	}
	ref.Name = sym
	return ref
}

// Position is a source position of a declaration.
type Position struct {
	File   string
	Line   int
	Column int
}

// IsValid reports whether the position carries a file and line.
func (p Position) IsValid() bool {
	return p.File != "" && p.Line > 0
}

func (p Position) String() string {
	if !p.IsValid() {
		return ""
	}
	if p.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Node is one accepted route. Nodes are immutable once created by a Builder.
type Node struct {
	path        string
	prefix      bool
	description string
	ref         HandlerRef
	params      []Param
	binding     Binding
	handler     Handler
	pos         Position
}

// Path returns the route path.
func (n *Node) Path() string { return n.path }

// Prefix reports whether the route also accepts inputs starting with its path.
func (n *Node) Prefix() bool { return n.prefix }

// Description returns the documentation text of the route.
func (n *Node) Description() string { return n.description }

// Ref returns the handler identity.
func (n *Node) Ref() HandlerRef { return n.ref }

// Binding returns the handler's canonical role order.
func (n *Node) Binding() Binding { return n.binding }

// Handler returns the runtime handler. It is nil for tables built from
// scanned source, which only feed code generation and manifests.
func (n *Node) Handler() Handler { return n.handler }

// Pos returns the source position of the declaration, if known.
func (n *Node) Pos() Position { return n.pos }

// Params returns a copy of the handler's declared parameters.
func (n *Node) Params() []Param {
	out := make([]Param, len(n.params))
	copy(out, n.params)
	return out
}

// Same reports whether both nodes were declared on the same handler.
func (n *Node) Same(o *Node) bool {
	return n.ref.Key() == o.ref.Key()
}

// Signature renders the handler with its parameter list, e.g.
// "example.com/app/nav.Orders(c *app.Controller, ev route.Event)".
func (n *Node) Signature() string {
	var sb strings.Builder
	sb.WriteString(n.ref.Key())
	sb.WriteByte('(')
	for i, p := range n.params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name)
		if p.Type != "" {
			sb.WriteByte(' ')
			sb.WriteString(p.Type)
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

func (n *Node) String() string {
	return fmt.Sprintf("Node{path=%q, prefix=%t}", n.path, n.prefix)
}

// describe names the node for diagnostics.
func (n *Node) describe() string {
	s := n.path
	if n.prefix {
		s += " (prefix)"
	}
	s += " " + n.ref.Key()
	if n.pos.IsValid() {
		s += " at " + n.pos.String()
	}
	return s
}

// compareNodes orders nodes by path.
func compareNodes(a, b *Node) int {
	return strings.Compare(a.path, b.path)
}

// compareNodePath compares a node's path against a raw lookup path.
func compareNodePath(n *Node, path string) int {
	return strings.Compare(n.path, path)
}

func lessNodes(a, b *Node) bool {
	return compareNodes(a, b) < 0
}

// covers reports whether n accepts path through its prefix flag.
func covers(n *Node, path string) bool {
	return n.prefix && strings.HasPrefix(path, n.path)
}
