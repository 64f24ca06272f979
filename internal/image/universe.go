// Package image loads Go program images into isolated metadata universes.
//
// A Universe is the type graph of one program (the server or the client)
// loaded from compiler export data. Every Universe owns its own file set,
// resolver and package index; two universes never share type objects, so a
// declaration is correlated across them only through its memberkey.Key.
package image

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"go/types"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abramin/sharelens/internal/memberkey"
	"github.com/bmatcuk/doublestar"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"
)

var (
	// ErrNotFound is returned when a key does not resolve in a universe.
	ErrNotFound = errors.New("declaration not found")
	// ErrClosed is returned by a Universe after Close.
	ErrClosed = errors.New("universe closed")
	// ErrNoSearchPath is returned when a Spec names no directories.
	ErrNoSearchPath = errors.New("no search path")
)

// Spec describes where an image is loaded from.
type Spec struct {
	Name       string   `yaml:"name"`
	Dirs       []string `yaml:"dirs"`     // module roots searched for packages
	Patterns   []string `yaml:"patterns"` // package patterns, default ./...
	Env        []string `yaml:"env"`
	BuildFlags []string `yaml:"build_flags"`
	Binary     string   `yaml:"binary"` // linked executable carrying DWARF, optional
}

// Options tune how a Universe is built and enumerated.
type Options struct {
	Logger       *zap.Logger
	ExcludeDirs  []string // directory names skipped during enumeration
	ExcludeFiles []string // doublestar patterns for files whose types are skipped
}

// LoadError reports that no package of an image could be loaded.
type LoadError struct {
	Image    string
	Dirs     []string
	Failures []error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s image: nothing loaded from %s", e.Image, strings.Join(e.Dirs, ", "))
	if len(e.Failures) > 0 {
		msg += ": " + e.Failures[0].Error()
	}
	return msg
}

func (e *LoadError) Unwrap() []error { return e.Failures }

// Universe is an isolated, read-only view of one program image.
type Universe struct {
	name     string
	fset     *token.FileSet
	roots    []*packages.Package
	rootSeen map[string]bool
	byPath   map[string]*types.Package
	failures []error
	opts     Options
	log      *zap.Logger
	closed   bool
}

func newUniverse(name string, opts Options) *Universe {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Universe{
		name:     name,
		fset:     token.NewFileSet(),
		rootSeen: make(map[string]bool),
		byPath:   make(map[string]*types.Package),
		opts:     opts,
		log:      log.With(zap.String("image", name)),
	}
}

// Empty returns a universe in which nothing resolves.
func Empty(name string) *Universe {
	return newUniverse(name, Options{})
}

// Open loads the image described by spec. Each directory is resolved on its
// own; directories or dependencies that fail are logged and recorded in
// Failures. Open fails only when no root package could be loaded at all.
func Open(ctx context.Context, spec Spec, resolver Resolver, opts Options) (*Universe, error) {
	if len(spec.Dirs) == 0 {
		return nil, fmt.Errorf("%s image: %w", spec.Name, ErrNoSearchPath)
	}
	if resolver == nil {
		resolver = PackagesResolver{Env: spec.Env, BuildFlags: spec.BuildFlags}
	}
	patterns := spec.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	u := newUniverse(spec.Name, opts)
	for _, dir := range spec.Dirs {
		pkgs, err := resolver.Resolve(ctx, Request{Dir: dir, Patterns: patterns, Fset: u.fset})
		if err != nil {
			u.fail(fmt.Errorf("resolving %s: %w", dir, err))
			continue
		}
		u.add(pkgs)
	}

	if len(u.roots) == 0 {
		return nil, &LoadError{Image: spec.Name, Dirs: spec.Dirs, Failures: u.failures}
	}
	sort.Slice(u.roots, func(i, j int) bool { return u.roots[i].PkgPath < u.roots[j].PkgPath })

	u.log.Debug("image loaded",
		zap.Int("roots", len(u.roots)),
		zap.Int("packages", len(u.byPath)),
		zap.Int("failures", len(u.failures)))
	return u, nil
}

// add indexes root packages and everything they import. The first package
// seen for an import path wins.
func (u *Universe) add(pkgs []*packages.Package) {
	for _, pkg := range pkgs {
		if pkg.Types == nil {
			u.fail(fmt.Errorf("package %s: no type information", pkg.PkgPath))
			continue
		}
		// go list reports a pattern that matched nothing as a nameless
		// package carrying only errors.
		if !loaded(pkg) {
			u.fail(fmt.Errorf("package %s: no Go files loaded", pkg.PkgPath))
			continue
		}
		if u.rootSeen[pkg.PkgPath] {
			continue
		}
		u.rootSeen[pkg.PkgPath] = true
		u.roots = append(u.roots, pkg)
	}

	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, perr := range pkg.Errors {
			u.fail(fmt.Errorf("package %s: %s", pkg.PkgPath, perr.Msg))
		}
		if pkg.Types == nil || !loaded(pkg) {
			return
		}
		if _, ok := u.byPath[pkg.PkgPath]; !ok {
			u.byPath[pkg.PkgPath] = pkg.Types
		}
	})
}

func loaded(pkg *packages.Package) bool {
	if pkg.Name == "" {
		return false
	}
	return len(pkg.Errors) == 0 || len(pkg.GoFiles) > 0 || len(pkg.CompiledGoFiles) > 0
}

func (u *Universe) fail(err error) {
	u.failures = append(u.failures, err)
	u.log.Warn("image resolution failure", zap.Error(err))
}

// Name returns the image name, e.g. "server".
func (u *Universe) Name() string { return u.name }

// Fset returns the file set holding the image's positions.
func (u *Universe) Fset() *token.FileSet { return u.fset }

// Packages returns the root packages in import path order.
func (u *Universe) Packages() []*packages.Package { return u.roots }

// Failures returns the recoverable errors met while loading.
func (u *Universe) Failures() []error { return u.failures }

// Close releases the package graph. It is safe to call more than once.
func (u *Universe) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	u.roots = nil
	u.byPath = nil
	return nil
}

// lookupType finds a named type by its package-qualified name.
func (u *Universe) lookupType(qualified string) (*types.TypeName, error) {
	if u.closed {
		return nil, ErrClosed
	}
	pkgPath, name, ok := memberkey.SplitQualified(qualified)
	if !ok {
		return nil, fmt.Errorf("type %q: %w", qualified, ErrNotFound)
	}
	pkg := u.byPath[pkgPath]
	if pkg == nil {
		return nil, fmt.Errorf("type %q: package %s not in %s image: %w", qualified, pkgPath, u.name, ErrNotFound)
	}
	tn, ok := pkg.Scope().Lookup(name).(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("type %q: %w", qualified, ErrNotFound)
	}
	return tn, nil
}

// fileOf returns the unadjusted file name of a position.
func (u *Universe) fileOf(pos token.Pos) string {
	if !pos.IsValid() {
		return ""
	}
	return u.fset.PositionFor(pos, false).Filename
}

func (u *Universe) excludedPackage(pkg *packages.Package) bool {
	if len(u.opts.ExcludeDirs) == 0 {
		return false
	}
	dir := packageDir(pkg)
	if dir == "" {
		return false
	}
	if pkg.Module != nil && pkg.Module.Dir != "" {
		if rel, err := filepath.Rel(pkg.Module.Dir, dir); err == nil {
			dir = rel
		}
	}
	for _, elem := range strings.Split(filepath.ToSlash(dir), "/") {
		for _, excluded := range u.opts.ExcludeDirs {
			if elem == excluded {
				return true
			}
		}
	}
	return false
}

func (u *Universe) excludedFile(file string) bool {
	if file == "" {
		return false
	}
	name := strings.TrimPrefix(filepath.ToSlash(file), "/")
	for _, pattern := range u.opts.ExcludeFiles {
		if matched, err := doublestar.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// packageDir returns the directory of a package.
func packageDir(pkg *packages.Package) string {
	if len(pkg.GoFiles) > 0 {
		return filepath.Dir(pkg.GoFiles[0])
	}
	if len(pkg.CompiledGoFiles) > 0 {
		return filepath.Dir(pkg.CompiledGoFiles[0])
	}
	return ""
}
