package image

import (
	"context"
	"fmt"
	"go/token"
	"os"
	"strings"

	"golang.org/x/tools/go/packages"
)

// LoadMode is the packages.Load mode used for program images. Types are read
// from compiler export data; no syntax is parsed and nothing is executed.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedTypes |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedModule

// Request asks a Resolver for the packages matching Patterns in the module
// rooted at Dir. Positions must be recorded in Fset.
type Request struct {
	Dir      string
	Patterns []string
	Fset     *token.FileSet
}

// Resolver turns a search path into loaded packages. Each Universe owns the
// packages its resolver returns; resolvers must not share type objects
// between calls.
type Resolver interface {
	Resolve(ctx context.Context, req Request) ([]*packages.Package, error)
}

// PackagesResolver loads packages with golang.org/x/tools/go/packages.
type PackagesResolver struct {
	// Env replaces the process environment for the go command. When nil,
	// a minimal environment is derived from the process with workspaces
	// disabled, so one image never picks up another module through go.work.
	Env        []string
	BuildFlags []string
}

// Resolve implements Resolver.
func (r PackagesResolver) Resolve(ctx context.Context, req Request) ([]*packages.Package, error) {
	env := r.Env
	if env == nil {
		env = isolatedEnv(os.Environ())
	}
	cfg := &packages.Config{
		Context:    ctx,
		Mode:       LoadMode,
		Dir:        req.Dir,
		Fset:       req.Fset,
		Env:        env,
		BuildFlags: r.BuildFlags,
	}

	pkgs, err := packages.Load(cfg, req.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages in %s: %w", req.Dir, err)
	}
	return pkgs, nil
}

// passthroughEnv lists the variables the go command needs to find its
// toolchain and caches.
var passthroughEnv = []string{
	"PATH", "HOME", "USERPROFILE", "LOCALAPPDATA", "APPDATA", "TMPDIR", "TEMP", "TMP",
	"GOROOT", "GOPATH", "GOCACHE", "GOMODCACHE", "GOPROXY", "GOPRIVATE", "GONOSUMDB",
	"GOTOOLCHAIN", "GOOS", "GOARCH", "CGO_ENABLED", "SYSTEMROOT",
}

func isolatedEnv(environ []string) []string {
	keep := make(map[string]bool, len(passthroughEnv))
	for _, k := range passthroughEnv {
		keep[k] = true
	}
	out := make([]string, 0, len(passthroughEnv)+1)
	for _, kv := range environ {
		k, _, ok := strings.Cut(kv, "=")
		if ok && keep[k] {
			out = append(out, kv)
		}
	}
	return append(out, "GOWORK=off")
}
