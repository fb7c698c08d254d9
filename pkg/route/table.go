package route

import (
	"context"
	"fmt"
	"slices"
)

// MatchKind says how a path was resolved.
type MatchKind int

const (
	// MatchHome means the event carried no path.
	MatchHome MatchKind = iota

	// MatchExact means a route path equals the input.
	MatchExact

	// MatchPrefix means the nearest preceding prefix route covers the input.
	MatchPrefix

	// MatchFallback means nothing matched.
	MatchFallback
)

func (k MatchKind) String() string {
	switch k {
	case MatchHome:
		return "home"
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchFallback:
		return "fallback"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// Match is the result of a resolution. Node is never nil.
type Match struct {
	Kind MatchKind
	Node *Node

	// Path is the input path, empty for MatchHome.
	Path string
}

// Handler returns the runtime handler of the matched node.
func (m Match) Handler() Handler {
	return m.Node.handler
}

// Invoke calls the matched handler with the values its roles select.
func (m Match) Invoke(ctx context.Context, controller any, ev Event) error {
	if m.Node.handler == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, m.Node.ref.Key())
	}
	return m.Node.handler.Navigate(ctx, controller, m.Path, ev)
}

// Table is a frozen, path-sorted route table. It is safe for concurrent use.
type Table struct {
	nodes    []*Node
	home     *Node
	fallback *Node
}

// Len returns the number of routes, not counting sentinels.
func (t *Table) Len() int {
	return len(t.nodes)
}

// Nodes returns the routes in path order.
func (t *Table) Nodes() []*Node {
	return slices.Clone(t.nodes)
}

// Home returns the sentinel used for events without a path.
func (t *Table) Home() *Node {
	return t.home
}

// Fallback returns the sentinel used when nothing matches.
func (t *Table) Fallback() *Node {
	return t.fallback
}

// Lookup returns the route declared at exactly path.
func (t *Table) Lookup(path string) (*Node, bool) {
	i, found := slices.BinarySearchFunc(t.nodes, path, compareNodePath)
	if !found {
		return nil, false
	}
	return t.nodes[i], true
}

// Resolve maps path to exactly one node. Only the exact match and the
// nearest preceding route are considered.
func (t *Table) Resolve(path string) Match {
	i, found := slices.BinarySearchFunc(t.nodes, path, compareNodePath)
	if found {
		return Match{Kind: MatchExact, Node: t.nodes[i], Path: path}
	}
	if i > 0 {
		if prev := t.nodes[i-1]; covers(prev, path) {
			return Match{Kind: MatchPrefix, Node: prev, Path: path}
		}
	}
	return Match{Kind: MatchFallback, Node: t.fallback, Path: path}
}

// ResolveEvent resolves the event's path, or returns Home when the event
// carries none.
func (t *Table) ResolveEvent(ev Event) Match {
	if ev == nil {
		return Match{Kind: MatchHome, Node: t.home}
	}
	path, ok := ev.Path()
	if !ok {
		return Match{Kind: MatchHome, Node: t.home}
	}
	return t.Resolve(path)
}

// Dispatch resolves ev and invokes the winning handler. Resolution never
// fails; the error comes from the handler.
func (t *Table) Dispatch(ctx context.Context, ev Event, controller any) error {
	return t.ResolveEvent(ev).Invoke(ctx, controller, ev)
}
