package route

import (
	"context"
	"errors"
	"math/rand"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noPathEvent struct{}

func (noPathEvent) Path() (string, bool) { return "", false }

func TestResolve(t *testing.T) {
	table := build(t,
		decl("/api", true, "API"),
		decl("/home", false, "HomePage"),
		decl("/orders", false, "Orders"),
		decl("/orders/detail", true, "Detail"),
	)

	tests := []struct {
		path string
		kind MatchKind
		want string
	}{
		{"/api", MatchExact, "API"},
		{"/api/users", MatchPrefix, "API"},
		{"/home", MatchExact, "HomePage"},
		{"/home/x", MatchFallback, "NotFound"},
		{"/orders", MatchExact, "Orders"},
		{"/orders/detail/42", MatchPrefix, "Detail"},
		{"/orders/de", MatchFallback, "NotFound"},
		{"/", MatchFallback, "NotFound"},
		{"", MatchFallback, "NotFound"},
		{"/zzz", MatchFallback, "NotFound"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m := table.Resolve(tt.path)
			assert.Equal(t, tt.kind, m.Kind)
			assert.Equal(t, tt.want, m.Node.Ref().Name)
			assert.Equal(t, tt.path, m.Path)
		})
	}
}

// Prefix containment is a literal string test, not a segment test.
// "/apix" is therefore covered by the prefix route "/api".
func TestResolveLiteralPrefixContainment(t *testing.T) {
	table := build(t,
		decl("/api", true, "API"),
		decl("/home", false, "HomePage"),
	)

	m := table.Resolve("/apix")
	assert.Equal(t, MatchPrefix, m.Kind)
	assert.Equal(t, "API", m.Node.Ref().Name)
}

func TestResolveEvent(t *testing.T) {
	table := build(t, decl("/test", false, "Test"))

	tests := []struct {
		name string
		ev   Event
		kind MatchKind
	}{
		{"nil event", nil, MatchHome},
		{"no path", noPathEvent{}, MatchHome},
		{"uri without path", NewURIEvent(&url.URL{Scheme: "app", Host: "open"}, nil), MatchFallback},
		{"empty path", mustURI(t, "app://host"), MatchFallback},
		{"nil uri", NewURIEvent(nil, nil), MatchHome},
		{"exact", mustURI(t, "app://host/test"), MatchExact},
		{"unknown", mustURI(t, "app://host/unknown"), MatchFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, table.ResolveEvent(tt.ev).Kind)
		})
	}
}

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		want   HandlerRef
	}{
		{"example.com/app/nav.Open", HandlerRef{Package: "example.com/app/nav", Name: "Open"}},
		{"example.com/nav%2ev2.Open", HandlerRef{Package: "example.com/nav.v2", Name: "Open"}},
		{"gopkg.in/nav.v3/deep.Open", HandlerRef{Package: "gopkg.in/nav.v3/deep", Name: "Open"}},
		{"example.com/app/nav.(*Screen).Open-fm", HandlerRef{Package: "example.com/app/nav", Receiver: "Screen", Name: "Open"}},
		{"main.Open", HandlerRef{Package: "main", Name: "Open"}},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSymbol(tt.symbol))
		})
	}
}

func TestLookup(t *testing.T) {
	table := build(t, decl("/api", true, "API"))

	n, ok := table.Lookup("/api")
	require.True(t, ok)
	assert.Equal(t, "API", n.Ref().Name)

	_, ok = table.Lookup("/api/x")
	assert.False(t, ok)
}

func TestDispatchInvokesRoles(t *testing.T) {
	var got []any
	capture := HandlerFunc(func(_ context.Context, controller any, path string, ev Event) error {
		got = []any{controller, path, ev}
		return nil
	})

	d := decl("/api", true, "API")
	d.Handler = capture
	table := build(t, d)

	ev := mustURI(t, "app://host/api/users")
	require.NoError(t, table.Dispatch(context.Background(), ev, "controller"))
	assert.Equal(t, []any{"controller", "/api/users", ev}, got)
}

func TestDispatchWithoutHandler(t *testing.T) {
	table := build(t, decl("/api", false, "API"))

	err := table.Dispatch(context.Background(), mustURI(t, "app://h/api"), nil)
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestDispatchReturnsHandlerError(t *testing.T) {
	boom := errors.New("boom")
	d := decl("/api", false, "API")
	d.Handler = HandlerFunc(func(context.Context, any, string, Event) error { return boom })
	table := build(t, d)

	err := table.Dispatch(context.Background(), mustURI(t, "app://h/api"), nil)
	assert.ErrorIs(t, err, boom)
}

func TestConcurrentResolve(t *testing.T) {
	table := build(t,
		decl("/a", true, "A"),
		decl("/b", false, "B"),
		decl("/c", true, "C"),
	)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				assert.Equal(t, "A", table.Resolve("/a/x").Node.Ref().Name)
				assert.Equal(t, MatchFallback, table.Resolve("/bb").Kind)
			}
		}()
	}
	wg.Wait()
}

func mustURI(t *testing.T, raw string) *URIEvent {
	t.Helper()
	ev, err := ParseURI(raw)
	require.NoError(t, err)
	return ev
}

// =============================================================================
// Scenarios
// =============================================================================

func TestScenarioExactRoutes(t *testing.T) {
	table := build(t,
		decl("/test", false, "Test"),
		decl("/home", false, "HomePage"),
	)

	assert.Equal(t, "Test", table.Resolve("/test").Node.Ref().Name)
	assert.Same(t, table.Fallback(), table.Resolve("/unknown").Node)
}

func TestScenarioPrefixFallback(t *testing.T) {
	table := build(t,
		decl("/api", true, "API"),
		decl("/home", false, "HomePage"),
	)

	assert.Equal(t, "API", table.Resolve("/api/users").Node.Ref().Name)
	assert.Equal(t, "API", table.Resolve("/apix").Node.Ref().Name)
}

func TestScenarioCoveredRouteRejected(t *testing.T) {
	b := NewBuilder()
	sentinels(b)
	require.NoError(t, b.Add(decl("/a", true, "A")))
	assert.Equal(t, CodePathConflict, buildCode(t, b.Add(decl("/a/b", false, "B"))))

	_, err := b.Build()
	assert.Error(t, err)
}

func TestScenarioAbsentPath(t *testing.T) {
	var called []string
	home := Declaration{
		Ref:    ref("Home"),
		Params: ctrl(),
		Handler: HandlerFunc(func(context.Context, any, string, Event) error {
			called = append(called, "home")
			return nil
		}),
	}
	b := NewBuilder()
	require.NoError(t, b.SetHome(home))
	require.NoError(t, b.SetFallback(Declaration{Ref: ref("NotFound"), Params: ctrl()}))
	table, err := b.Build()
	require.NoError(t, err)

	require.NoError(t, table.Dispatch(context.Background(), noPathEvent{}, nil))
	assert.Equal(t, []string{"home"}, called)
}

// =============================================================================
// Properties
// =============================================================================

// randomDecls returns declarations over a tiny alphabet so that overlaps
// are frequent.
func randomDecls(r *rand.Rand, n int) []Declaration {
	decls := make([]Declaration, n)
	for i := range decls {
		decls[i] = decl(randomPath(r), r.Intn(3) == 0, "H"+strings.Repeat("x", i))
	}
	return decls
}

func randomPath(r *rand.Rand) string {
	const alphabet = "ab/"
	var sb strings.Builder
	sb.WriteByte('/')
	for i := r.Intn(4); i > 0; i-- {
		sb.WriteByte(alphabet[r.Intn(len(alphabet))])
	}
	return sb.String()
}

// accepted builds decls, keeping whatever the builder accepts.
func accepted(t *testing.T, decls []Declaration) *Table {
	t.Helper()
	b := NewBuilder()
	sentinels(b)
	for _, d := range decls {
		_ = b.Add(d)
	}
	// Rejections are expected; rebuild from the survivors only.
	survivors := b.set.sorted()
	kept := make([]Declaration, len(survivors))
	for i, n := range survivors {
		kept[i] = Declaration{Path: n.path, Prefix: n.prefix, Description: n.description, Ref: n.ref, Params: ctrl()}
	}
	return build(t, kept...)
}

func TestPropertySelfResolve(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		table := accepted(t, randomDecls(r, 12))
		for _, n := range table.Nodes() {
			m := table.Resolve(n.Path())
			require.Equal(t, MatchExact, m.Kind)
			require.Same(t, n, m.Node)
		}
	}
}

func TestPropertyMutualExclusivity(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for round := 0; round < 200; round++ {
		table := accepted(t, randomDecls(r, 12))
		for probe := 0; probe < 50; probe++ {
			input := randomPath(r) + randomPath(r)[1:]

			var winners []*Node
			for _, n := range table.Nodes() {
				if n.Path() == input || covers(n, input) {
					winners = append(winners, n)
				}
			}
			require.LessOrEqual(t, len(winners), 1, "input %q accepted by %v", input, paths(winners))

			m := table.Resolve(input)
			if len(winners) == 0 {
				require.Equal(t, MatchFallback, m.Kind, "input %q", input)
			} else {
				require.Same(t, winners[0], m.Node, "input %q", input)
			}
		}
	}
}

func TestPropertyIdempotentBuild(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for round := 0; round < 50; round++ {
		decls := randomDecls(r, 10)

		run := func() ([]string, []string) {
			b := NewBuilder()
			sentinels(b)
			_ = b.AddAll(decls)
			table, err := b.Build()
			if err != nil {
				var multi *MultiBuildError
				require.ErrorAs(t, err, &multi)
				return nil, multi.Codes()
			}
			return paths(table.Nodes()), nil
		}

		p1, c1 := run()
		p2, c2 := run()
		require.Equal(t, p1, p2)
		require.Equal(t, c1, c2)
	}
}

func TestPropertyConflictSymmetry(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for round := 0; round < 500; round++ {
		a := decl(randomPath(r), r.Intn(2) == 0, "A")
		b := decl(randomPath(r), r.Intn(2) == 0, "B")

		conflicts := func(first, second Declaration) bool {
			bld := NewBuilder()
			require.NoError(t, bld.Add(first))
			return bld.Add(second) != nil
		}
		require.Equal(t, conflicts(a, b), conflicts(b, a), "%s(%t) vs %s(%t)", a.Path, a.Prefix, b.Path, b.Prefix)
	}
}

func TestPropertyTableSorted(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for round := 0; round < 50; round++ {
		table := accepted(t, randomDecls(r, 15))
		got := paths(table.Nodes())
		assert.True(t, slices.IsSorted(got))
	}
}
