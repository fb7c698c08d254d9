// Package gen writes the Go source that rebuilds a validated route table
// at runtime with real handler functions.
package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/telepath-dev/telepath/pkg/route"
)

// DefaultFilename is the name of the generated file.
const DefaultFilename = "telepath_gen.go"

const routeImport = "github.com/telepath-dev/telepath/pkg/route"

// Option configures a Generator.
type Option func(*Generator)

// WithImportPath sets the import path of the package the file is generated
// into. Handlers in that package are referenced without a qualifier.
func WithImportPath(importPath string) Option {
	return func(g *Generator) {
		g.self = importPath
	}
}

// WithPackageNames supplies the package name of each handler import path.
// Paths without an entry use their last element.
func WithPackageNames(names map[string]string) Option {
	return func(g *Generator) {
		for k, v := range names {
			g.names[k] = v
		}
	}
}

// Generator generates the table source.
type Generator struct {
	pkg   string
	self  string
	names map[string]string
}

// NewGenerator creates a generator for a file in package pkg.
func NewGenerator(pkg string, opts ...Option) *Generator {
	g := &Generator{pkg: pkg, names: map[string]string{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders the source for t. The output depends only on the table,
// so regenerating an unchanged table yields identical bytes.
func (g *Generator) Generate(t *route.Table) ([]byte, error) {
	nodes := t.Nodes()
	all := append([]*route.Node{t.Home(), t.Fallback()}, nodes...)
	aliases := g.aliases(all)

	var buf bytes.Buffer
	buf.WriteString("// Code generated by telepath. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", g.pkg)

	buf.WriteString("import (\n")
	fmt.Fprintf(&buf, "\t%q\n", routeImport)
	if len(aliases) > 0 {
		buf.WriteString("\n")
		for _, imp := range sortedKeys(aliases) {
			fmt.Fprintf(&buf, "\t%s %q\n", aliases[imp], imp)
		}
	}
	buf.WriteString(")\n\n")

	buf.WriteString("// Table builds the route table declared by //telepath: directives.\n")
	buf.WriteString("func Table(opts ...route.Option) (*route.Table, error) {\n")
	buf.WriteString("\tb := route.NewBuilder(opts...)\n")
	buf.WriteString("\t_ = b.SetHome(")
	g.writeDecl(&buf, t.Home(), aliases, false)
	buf.WriteString(")\n")
	buf.WriteString("\t_ = b.SetFallback(")
	g.writeDecl(&buf, t.Fallback(), aliases, false)
	buf.WriteString(")\n")
	for _, n := range nodes {
		fmt.Fprintf(&buf, "\n\t// %s calls %s(%s)\n", n.Path(), g.qualified(n.Ref(), aliases), n.Binding().CallOrder())
		buf.WriteString("\t_ = b.Add(")
		g.writeDecl(&buf, n, aliases, true)
		buf.WriteString(")\n")
	}
	buf.WriteString("\treturn b.Build()\n}\n\n")

	buf.WriteString("// MustTable is like Table but panics on error.\n")
	buf.WriteString("func MustTable(opts ...route.Option) *route.Table {\n")
	buf.WriteString("\tt, err := Table(opts...)\n")
	buf.WriteString("\tif err != nil {\n\t\tpanic(err)\n\t}\n")
	buf.WriteString("\treturn t\n}\n")

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("gen: format generated source: %w", err)
	}
	return src, nil
}

func (g *Generator) writeDecl(buf *bytes.Buffer, n *route.Node, aliases map[string]string, isRoute bool) {
	buf.WriteString("route.Declaration{\n")
	if isRoute {
		fmt.Fprintf(buf, "Path: %q,\n", n.Path())
		if n.Prefix() {
			buf.WriteString("Prefix: true,\n")
		}
		fmt.Fprintf(buf, "Description: %q,\n", n.Description())
	}
	ref := n.Ref()
	fmt.Fprintf(buf, "Ref: route.HandlerRef{Package: %q, Name: %q},\n", ref.Package, ref.Name)
	fmt.Fprintf(buf, "Func: %s,\n", g.qualified(ref, aliases))
	buf.WriteString("Params: []route.Param{\n")
	for _, p := range n.Params() {
		fmt.Fprintf(buf, "{Name: %q, Type: %q, Roles: []route.Role{%s}},\n", p.Name, p.Type, roleList(p.Roles))
	}
	buf.WriteString("},\n")
	if pos := n.Pos(); pos.IsValid() {
		fmt.Fprintf(buf, "Pos: route.Position{File: %q, Line: %d},\n", path.Clean(strings.ReplaceAll(pos.File, "\\", "/")), pos.Line)
	}
	buf.WriteString("}")
}

func (g *Generator) qualified(ref route.HandlerRef, aliases map[string]string) string {
	if alias, ok := aliases[ref.Package]; ok {
		return alias + "." + ref.Name
	}
	return ref.Name
}

// aliases assigns a unique import name to every handler package other than
// the generated file's own.
func (g *Generator) aliases(nodes []*route.Node) map[string]string {
	seen := map[string]bool{}
	var imports []string
	for _, n := range nodes {
		p := n.Ref().Package
		if p == g.self || seen[p] {
			continue
		}
		seen[p] = true
		imports = append(imports, p)
	}
	sort.Strings(imports)

	taken := map[string]bool{"route": true, g.pkg: true}
	out := make(map[string]string, len(imports))
	for _, imp := range imports {
		base := g.names[imp]
		if base == "" {
			base = identifier(path.Base(imp))
		}
		name := base
		for i := 2; taken[name]; i++ {
			name = base + strconv.Itoa(i)
		}
		taken[name] = true
		out[imp] = name
	}
	return out
}

func roleList(roles []route.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		switch r {
		case route.RoleController:
			names[i] = "route.RoleController"
		case route.RolePathData:
			names[i] = "route.RolePathData"
		case route.RoleEventData:
			names[i] = "route.RoleEventData"
		default:
			names[i] = fmt.Sprintf("route.Role(%d)", int(r))
		}
	}
	return strings.Join(names, ", ")
}

// identifier turns a path element such as "go-nav" or "v2" into a usable
// package name.
func identifier(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if sb.Len() == 0 {
				sb.WriteByte('p')
			}
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "pkg"
	}
	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteFile writes src to name unless the file already holds the same
// bytes. It reports whether the file changed.
func WriteFile(name string, src []byte) (bool, error) {
	if old, err := os.ReadFile(name); err == nil && bytes.Equal(old, src) {
		return false, nil
	}
	if err := os.WriteFile(name, src, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
