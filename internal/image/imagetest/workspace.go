// Package imagetest provides an in-memory image.Resolver that type-checks
// Go source text, so universes can be built deterministically in tests
// without the go command.
package imagetest

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"sort"
	"sync"

	"github.com/abramin/sharelens/internal/image"
	"golang.org/x/tools/go/packages"
)

// Package maps file names to source text.
type Package map[string]string

// Module is what one search directory resolves to.
type Module struct {
	Packages map[string]Package // root packages by import path
	Deps     map[string]Package // importable, not reported as roots
}

// Workspace maps search directories to modules. Resolving a directory that
// is not in the workspace fails, like a missing module. A Workspace is safe
// for concurrent use once Modules is populated.
type Workspace struct {
	Modules map[string]Module

	mu    sync.Mutex
	calls int
}

// Calls returns how many times Resolve was called.
func (w *Workspace) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// Resolve implements image.Resolver. Every call type-checks afresh, so two
// universes never share type objects.
func (w *Workspace) Resolve(ctx context.Context, req image.Request) ([]*packages.Package, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mod, ok := w.Modules[req.Dir]
	if !ok {
		return nil, fmt.Errorf("no module in %s", req.Dir)
	}

	c := &checker{
		req:     req,
		sources: make(map[string]Package, len(mod.Packages)+len(mod.Deps)),
		loaded:  make(map[string]*packages.Package),
	}
	for path, files := range mod.Deps {
		c.sources[path] = files
	}
	for path, files := range mod.Packages {
		c.sources[path] = files
	}

	paths := make([]string, 0, len(mod.Packages))
	for path := range mod.Packages {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	roots := make([]*packages.Package, 0, len(paths))
	for _, path := range paths {
		pkg, err := c.load(path)
		if err != nil {
			return nil, err
		}
		roots = append(roots, pkg)
	}
	return roots, nil
}

type checker struct {
	req      image.Request
	sources  map[string]Package
	loaded   map[string]*packages.Package
	visiting []string
}

func (c *checker) load(path string) (*packages.Package, error) {
	if pkg, ok := c.loaded[path]; ok {
		return pkg, nil
	}
	files, ok := c.sources[path]
	if !ok {
		return nil, fmt.Errorf("package %s not found", path)
	}
	for _, p := range c.visiting {
		if p == path {
			return nil, fmt.Errorf("import cycle through %s", path)
		}
	}
	c.visiting = append(c.visiting, path)
	defer func() { c.visiting = c.visiting[:len(c.visiting)-1] }()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	pkg := &packages.Package{
		ID:      path,
		PkgPath: path,
		GoFiles: names,
		Imports: make(map[string]*packages.Package),
	}
	pkg.CompiledGoFiles = names

	var syntax []*ast.File
	for _, name := range names {
		f, err := parser.ParseFile(c.req.Fset, name, files[name], parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		syntax = append(syntax, f)
	}

	conf := types.Config{
		Importer: importerFunc(func(imp string) (*types.Package, error) {
			dep, err := c.load(imp)
			if err != nil {
				return nil, err
			}
			pkg.Imports[imp] = dep
			return dep.Types, nil
		}),
		Error: func(err error) {
			var terr types.Error
			msg := err.Error()
			if errors.As(err, &terr) {
				msg = terr.Msg
			}
			pkg.Errors = append(pkg.Errors, packages.Error{Msg: msg, Kind: packages.TypeError})
		},
	}
	tpkg, _ := conf.Check(path, c.req.Fset, syntax, nil)
	pkg.Types = tpkg
	if tpkg != nil {
		pkg.Name = tpkg.Name()
	}
	c.loaded[path] = pkg
	return pkg, nil
}

type importerFunc func(path string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) { return f(path) }
