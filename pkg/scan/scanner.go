// Package scan reads //telepath: directives from Go source and turns them
// into route declarations.
package scan

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"

	terrors "github.com/telepath-dev/telepath/internal/errors"
	"github.com/telepath-dev/telepath/pkg/route"
)

// Scan error codes.
const (
	CodeBadDirective = "T301"
	CodeParse        = "T302"
	CodeNoModule     = "T307"
)

// Error is a problem found while reading source.
type Error struct {
	Code string
	Pos  route.Position
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Pos.IsValid() {
		sb.WriteString(e.Pos.String())
		sb.WriteString(": ")
	}
	sb.WriteString(e.Code)
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Diagnostic converts the error into a formatted tooling diagnostic.
func (e *Error) Diagnostic() *terrors.Diagnostic {
	d := terrors.New(e.Code).WithDetail(e.Msg)
	if e.Pos.IsValid() {
		d.WithLocation(e.Pos.File, e.Pos.Line, e.Pos.Column)
	}
	if e.Err != nil {
		d.Wrap(e.Err)
	}
	return d
}

// Result holds everything found by a scan.
type Result struct {
	// Routes are the route declarations in source order.
	Routes []route.Declaration

	// Homes and Fallbacks are the sentinel declarations. A valid project has
	// exactly one of each; the builder reports anything else.
	Homes     []route.Declaration
	Fallbacks []route.Declaration

	// Packages maps each handler import path to its package name.
	Packages map[string]string

	// Errors lists directive and parse problems. Declarations with errors
	// are left out of the lists above.
	Errors []*Error
}

// Err returns the scan errors joined, or nil.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	if len(r.Errors) == 1 {
		return r.Errors[0]
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d scan errors:\n  %s", len(r.Errors), strings.Join(msgs, "\n  "))
}

// Build folds the scanned declarations into a route table.
func (r *Result) Build(opts ...route.Option) (*route.Table, error) {
	b := route.NewBuilder(opts...)
	for _, d := range r.Homes {
		_ = b.SetHome(d)
	}
	for _, d := range r.Fallbacks {
		_ = b.SetFallback(d)
	}
	_ = b.AddAll(r.Routes)
	return b.Build()
}

// ImportPaths returns the handler packages in sorted order.
func (r *Result) ImportPaths() []string {
	out := make([]string, 0, len(r.Packages))
	for p := range r.Packages {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithModulePath sets the module path instead of reading go.mod.
func WithModulePath(module string) Option {
	return func(s *Scanner) {
		s.module = module
	}
}

// WithExclude skips files and directories whose slash-separated path
// relative to the root, or whose base name, matches one of the patterns.
func WithExclude(patterns ...string) Option {
	return func(s *Scanner) {
		s.exclude = append(s.exclude, patterns...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scanner scans a module for route directives.
type Scanner struct {
	root    string
	module  string
	modDir  string
	exclude []string
	logger  *zap.Logger
}

// New creates a scanner rooted at root. Unless WithModulePath is given, the
// module path is read from the nearest go.mod at or above root.
func New(root string, opts ...Option) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	s := &Scanner{root: abs, modDir: abs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.module == "" {
		s.modDir, s.module, err = findModule(abs)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ModulePath returns the module path handler imports are based on.
func (s *Scanner) ModulePath() string {
	return s.module
}

// findModule walks up from dir to the nearest go.mod and reads its module path.
func findModule(dir string) (string, string, error) {
	for d := dir; ; d = filepath.Dir(d) {
		data, err := os.ReadFile(filepath.Join(d, "go.mod"))
		if err == nil {
			module := modfile.ModulePath(data)
			if module == "" {
				return "", "", &Error{Code: CodeNoModule, Pos: route.Position{File: filepath.Join(d, "go.mod"), Line: 1}, Msg: "go.mod has no module directive"}
			}
			return d, module, nil
		}
		if !os.IsNotExist(err) {
			return "", "", &Error{Code: CodeNoModule, Msg: "read go.mod", Err: err}
		}
		if parent := filepath.Dir(d); parent == d {
			return "", "", &Error{Code: CodeNoModule, Msg: "no go.mod found at or above " + dir}
		}
	}
}

// Scan walks dirs (relative to the root; the root itself when empty) and
// collects every directive. Only I/O failures are returned as errors;
// source problems are reported in Result.Errors.
func (s *Scanner) Scan(dirs ...string) (*Result, error) {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	res := &Result{Packages: map[string]string{}}

	for _, dir := range dirs {
		start := filepath.Join(s.root, dir)
		err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != start && s.skipDir(p, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(p, ".go") || strings.HasSuffix(p, "_test.go") || s.excluded(p, d.Name()) {
				return nil
			}
			s.scanFile(p, res)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", start, err)
		}
	}

	s.logger.Debug("scan complete",
		zap.Int("routes", len(res.Routes)),
		zap.Int("packages", len(res.Packages)),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (s *Scanner) skipDir(p, name string) bool {
	switch {
	case name == "testdata" || name == "vendor" || name == "node_modules":
		return true
	case strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_"):
		return true
	}
	// A nested module is not part of this one.
	if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
		return true
	}
	return s.excluded(p, name)
}

func (s *Scanner) excluded(p, name string) bool {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.exclude {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// ImportPath returns the import path of the package in dir.
func (s *Scanner) ImportPath(dir string) string {
	rel, err := filepath.Rel(s.modDir, dir)
	if err != nil || rel == "." {
		return s.module
	}
	return s.module + "/" + filepath.ToSlash(rel)
}

// displayPath shortens file names in positions to be relative to the root.
func (s *Scanner) displayPath(file string) string {
	if rel, err := filepath.Rel(s.root, file); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return file
}

func (s *Scanner) scanFile(file string, res *Result) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file, nil, parser.ParseComments)
	if err != nil {
		res.Errors = append(res.Errors, &Error{
			Code: CodeParse,
			Pos:  route.Position{File: s.displayPath(file), Line: 1},
			Msg:  "parse failed",
			Err:  err,
		})
		return
	}
	if ast.IsGenerated(f) {
		return
	}

	pkg := s.ImportPath(filepath.Dir(file))
	found := false
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Doc == nil {
			continue
		}
		if s.scanFunc(fset, pkg, fn, res) {
			found = true
		}
	}
	if found {
		res.Packages[pkg] = f.Name.Name
		s.logger.Debug("scanned file", zap.String("file", s.displayPath(file)), zap.String("package", pkg))
	}
}

// funcDirectives is what the directives of one function declare.
type funcDirectives struct {
	routes   []route.Declaration
	roles    map[string][]route.Role
	home     *route.Position
	fallback *route.Position
}

// scanFunc reads the directives of fn. It reports whether fn declared anything.
func (s *Scanner) scanFunc(fset *token.FileSet, pkg string, fn *ast.FuncDecl, res *Result) bool {
	fd := funcDirectives{roles: map[string][]route.Role{}}
	var errs []*Error
	fail := func(pos route.Position, format string, args ...any) {
		errs = append(errs, &Error{Code: CodeBadDirective, Pos: pos, Msg: fmt.Sprintf(format, args...)})
	}

	for _, c := range fn.Doc.List {
		pos := s.position(fset, c.Pos())
		d, ok, err := ParseDirective(c.Text)
		if !ok {
			continue
		}
		if err != nil {
			fail(pos, "%v", err)
			continue
		}
		switch d.Kind {
		case KindRoute:
			decl, err := routeDirective(d)
			if err != nil {
				fail(pos, "%v", err)
				continue
			}
			decl.Pos = pos
			fd.routes = append(fd.routes, decl)
		case KindRole:
			if len(d.Args) == 0 {
				fail(pos, "role directive lists no parameters")
			}
			for _, a := range d.Args {
				if a.Key == "" {
					fail(pos, "role argument %q is not name=role", a.Value)
					continue
				}
				role, err := route.ParseRole(a.Value)
				if err != nil {
					fail(pos, "parameter %s: unknown role %q", a.Key, a.Value)
					continue
				}
				fd.roles[a.Key] = append(fd.roles[a.Key], role)
			}
		case KindHome:
			fd.home = &pos
		case KindFallback:
			fd.fallback = &pos
		default:
			fail(pos, "unknown directive %q", d.Kind)
		}
	}

	if len(fd.routes) == 0 && fd.home == nil && fd.fallback == nil {
		if len(fd.roles) > 0 {
			fail(s.position(fset, fn.Pos()), "%s has roles but no route, home or fallback directive", fn.Name.Name)
		}
		res.Errors = append(res.Errors, errs...)
		return len(errs) > 0
	}

	params, err := signatureParams(fn, fd.roles)
	if err != nil {
		fail(s.position(fset, fn.Pos()), "%s: %v", fn.Name.Name, err)
	}
	if len(errs) > 0 {
		res.Errors = append(res.Errors, errs...)
		return true
	}

	ref := route.HandlerRef{Package: pkg, Receiver: receiverName(fn), Name: fn.Name.Name}
	for _, d := range fd.routes {
		d.Ref, d.Params = ref, params
		res.Routes = append(res.Routes, d)
	}
	if fd.home != nil {
		res.Homes = append(res.Homes, route.Declaration{Ref: ref, Params: params, Pos: *fd.home})
	}
	if fd.fallback != nil {
		res.Fallbacks = append(res.Fallbacks, route.Declaration{Ref: ref, Params: params, Pos: *fd.fallback})
	}
	return true
}

func (s *Scanner) position(fset *token.FileSet, p token.Pos) route.Position {
	pos := fset.Position(p)
	return route.Position{File: s.displayPath(pos.Filename), Line: pos.Line, Column: pos.Column}
}

// routeDirective reads "route <path> [prefix] description=...".
func routeDirective(d *Directive) (route.Declaration, error) {
	var decl route.Declaration
	pos := d.Positional()
	if len(pos) == 0 {
		return decl, &directiveError{msg: "route directive has no path"}
	}
	decl.Path = pos[0]
	for _, flag := range pos[1:] {
		if flag != "prefix" {
			return decl, &directiveError{msg: fmt.Sprintf("unknown route flag %q", flag)}
		}
		decl.Prefix = true
	}
	for _, a := range d.Args {
		switch a.Key {
		case "":
		case "description", "desc":
			decl.Description = a.Value
		case "prefix":
			switch a.Value {
			case "true":
				decl.Prefix = true
			case "false":
				decl.Prefix = false
			default:
				return decl, &directiveError{msg: fmt.Sprintf("prefix=%s is not a boolean", a.Value)}
			}
		default:
			return decl, &directiveError{msg: fmt.Sprintf("unknown route argument %q", a.Key)}
		}
	}
	return decl, nil
}

// signatureParams lists fn's parameters with the roles assigned by name.
// A leading context.Context parameter is skipped.
func signatureParams(fn *ast.FuncDecl, roles map[string][]route.Role) ([]route.Param, error) {
	var params []route.Param
	used := map[string]bool{}
	for i, field := range fn.Type.Params.List {
		typ := types.ExprString(field.Type)
		if i == 0 && typ == "context.Context" {
			continue
		}
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{{Name: "_"}}
		}
		for _, n := range names {
			p := route.Param{Name: n.Name, Type: typ}
			if n.Name != "_" {
				p.Roles = roles[n.Name]
				used[n.Name] = true
			}
			params = append(params, p)
		}
	}
	var unknown []string
	for name := range roles {
		if !used[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("roles given to unknown parameters %s", strings.Join(unknown, ", "))
	}
	return params, nil
}

func receiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	t := fn.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	switch x := t.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.IndexExpr:
		return types.ExprString(x.X)
	case *ast.IndexListExpr:
		return types.ExprString(x.X)
	}
	return types.ExprString(t)
}
