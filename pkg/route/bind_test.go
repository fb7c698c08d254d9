package route_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telepath-dev/telepath/pkg/route"
)

type Controller struct {
	Visited []string
}

type callKey struct{}

var errLocked = errors.New("locked")

func Home(c *Controller) { c.Visited = append(c.Visited, "home") }

func NotFound(c *Controller, p string) { c.Visited = append(c.Visited, "notfound:"+p) }

// Open declares its event before its controller.
func Open(ev route.Event, c *Controller) error {
	p, _ := ev.Path()
	c.Visited = append(c.Visited, "open:"+p)
	return nil
}

func Account(ctx context.Context, c *Controller, p string) error {
	if v, _ := ctx.Value(callKey{}).(string); v != "" {
		c.Visited = append(c.Visited, v)
	}
	if p == "/account/locked" {
		return errLocked
	}
	c.Visited = append(c.Visited, "account:"+p)
	return nil
}

type Slug string

func Article(c *Controller, s Slug) { c.Visited = append(c.Visited, "article:"+string(s)) }

func BadPath(c *Controller, p int) {}

func BadResult(c *Controller) int { return 0 }

func controllerOnly() []route.Param {
	return []route.Param{route.P("c", route.RoleController)}
}

func table(t *testing.T, routes ...route.Declaration) *route.Table {
	t.Helper()
	tbl, err := route.NewTable(
		route.Declaration{Func: Home, Params: controllerOnly()},
		route.Declaration{Func: NotFound, Params: []route.Param{
			route.P("c", route.RoleController),
			route.P("p", route.RolePathData),
		}},
		routes,
	)
	require.NoError(t, err)
	return tbl
}

func TestRefOf(t *testing.T) {
	ref, ok := route.RefOf(Open)
	require.True(t, ok)
	assert.Equal(t, "github.com/telepath-dev/telepath/pkg/route_test", ref.Package)
	assert.Empty(t, ref.Receiver)
	assert.Equal(t, "Open", ref.Name)

	_, ok = route.RefOf("not a func")
	assert.False(t, ok)
}

func TestFuncRefsMustBeStatic(t *testing.T) {
	closure := func(c *Controller) {}

	b := route.NewBuilder()
	err := b.Add(route.Declaration{Path: "/x", Description: "x", Func: closure, Params: controllerOnly()})
	var be *route.BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, route.CodeNotStatic, be.Code)
}

func TestEventBeforeController(t *testing.T) {
	tbl := table(t, route.Declaration{
		Path:        "/open",
		Prefix:      true,
		Description: "open anything",
		Func:        Open,
		Params: []route.Param{
			route.P("ev", route.RoleEventData),
			route.P("c", route.RoleController),
		},
	})

	n, ok := tbl.Lookup("/open")
	require.True(t, ok)
	assert.Equal(t, "event, controller", n.Binding().CallOrder())
	assert.Equal(t, []route.Role{route.RoleEventData, route.RoleController}, n.Binding().Order())

	ev, err := route.ParseURI("app://x/open/doc")
	require.NoError(t, err)
	c := &Controller{}
	require.NoError(t, tbl.Dispatch(context.Background(), ev, c))
	assert.Equal(t, []string{"open:/open/doc"}, c.Visited)
}

func TestBindContextAndError(t *testing.T) {
	tbl := table(t, route.Declaration{
		Path:        "/account",
		Prefix:      true,
		Description: "account pages",
		Func:        Account,
		Params: []route.Param{
			route.P("c", route.RoleController),
			route.P("p", route.RolePathData),
		},
	})

	c := &Controller{}
	ctx := context.WithValue(context.Background(), callKey{}, "ctx")
	ev, _ := route.ParseURI("app://x/account/profile")
	require.NoError(t, tbl.Dispatch(ctx, ev, c))
	assert.Equal(t, []string{"ctx", "account:/account/profile"}, c.Visited)

	locked, _ := route.ParseURI("app://x/account/locked")
	assert.ErrorIs(t, tbl.Dispatch(context.Background(), locked, c), errLocked)
}

func TestBindNamedStringPath(t *testing.T) {
	tbl := table(t, route.Declaration{
		Path:        "/articles",
		Prefix:      true,
		Description: "articles",
		Func:        Article,
		Params: []route.Param{
			route.P("c", route.RoleController),
			route.P("s", route.RolePathData),
		},
	})

	c := &Controller{}
	ev, _ := route.ParseURI("app://x/articles/go")
	require.NoError(t, tbl.Dispatch(context.Background(), ev, c))
	assert.Equal(t, []string{"article:/articles/go"}, c.Visited)
}

func TestSentinelsReceivePath(t *testing.T) {
	tbl := table(t)
	c := &Controller{}

	ev, _ := route.ParseURI("app://x/missing")
	require.NoError(t, tbl.Dispatch(context.Background(), ev, c))
	require.NoError(t, tbl.Dispatch(context.Background(), nil, c))
	assert.Equal(t, []string{"notfound:/missing", "home"}, c.Visited)
}

func TestDispatchArgumentTypeMismatch(t *testing.T) {
	tbl := table(t)

	err := tbl.Dispatch(context.Background(), nil, "not a controller")
	assert.ErrorIs(t, err, route.ErrArgumentType)
}

func TestBindRejectsSignatures(t *testing.T) {
	tests := []struct {
		name   string
		fn     any
		params []route.Param
	}{
		{"not a func", 42, controllerOnly()},
		{"path not string", BadPath, []route.Param{route.P("c", route.RoleController), route.P("p", route.RolePathData)}},
		{"result not error", BadResult, controllerOnly()},
		{"too few params", Home, []route.Param{route.P("c", route.RoleController), route.P("p", route.RolePathData)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := route.SortRoles(tt.params)
			require.NoError(t, err)

			_, err = route.Bind(tt.fn, b)
			var be *route.BuildError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, route.CodeBadSignature, be.Code)
		})
	}
}

func TestHandlerFunc(t *testing.T) {
	var got string
	h := route.HandlerFunc(func(_ context.Context, _ any, path string, _ route.Event) error {
		got = path
		return nil
	})
	require.NoError(t, h.Navigate(context.Background(), nil, "/x", nil))
	assert.Equal(t, "/x", got)
}

func TestURIEventExtras(t *testing.T) {
	ev, err := route.ParseURI("app://host/p?q=1")
	require.NoError(t, err)
	assert.Empty(t, ev.Extras())

	u := ev.URI()
	ev = route.NewURIEvent(u, map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, []string{"a", "b"}, ev.Extras())
	v, ok := ev.Extra("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, "app://host/p?q=1", ev.String())
}
