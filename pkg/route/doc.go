// Package route validates route declarations, freezes them into a sorted
// table and resolves incoming paths to exactly one handler.
//
// A Builder accepts declarations one at a time. Each declaration is checked
// for a well-formed path, a description, an exported package-level handler
// and a valid set of parameter roles, then checked for conflicts against
// the routes accepted so far. Two routes conflict when some input path
// would be accepted by both: equal paths, or a prefix route whose path
// starts the other route's path.
//
//	b := route.NewBuilder()
//	b.SetHome(route.Declaration{Func: nav.Home, Params: []route.Param{route.P("c", route.RoleController)}})
//	b.SetFallback(route.Declaration{Func: nav.NotFound, Params: []route.Param{route.P("c", route.RoleController)}})
//	b.Add(route.Declaration{
//		Path:        "/api",
//		Prefix:      true,
//		Description: "API landing",
//		Func:        nav.API,
//		Params: []route.Param{
//			route.P("c", route.RoleController),
//			route.P("p", route.RolePathData),
//		},
//	})
//	table, err := b.Build()
//
// Resolution looks for an exact match first, then for the nearest preceding
// route if it is a prefix route whose path starts the input. Prefix
// containment is a literal string test, so "/apix" is covered by "/api".
// Events without a path go to the home handler; everything else that does
// not match goes to the fallback handler.
package route
