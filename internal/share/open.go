package share

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/abramin/sharelens/internal/fileid"
	"github.com/abramin/sharelens/internal/image"
	"github.com/abramin/sharelens/internal/sharedset"
	"github.com/abramin/sharelens/internal/symbols"
	"go.uber.org/zap"
)

// Options configure Open.
type Options struct {
	Server image.Spec
	Client image.Spec

	SharedFiles   []string // paths or doublestar patterns, relative to BaseDir
	DiscoverLinks bool     // add symlinked .go files found in the client dirs
	SymbolPath    []string // directories searched for split debug files
	Providers     []string // provider order, symbols.DefaultOrder when empty
	Manifest      string   // manifest file for the manifest provider
	BaseDir       string

	ExcludeDirs  []string
	ExcludeFiles []string

	Resolver image.Resolver // nil loads with go/packages
	Logger   *zap.Logger
}

// Open loads both images, the shared file set and the symbol providers.
// A server image that cannot be loaded is a *ConfigError. A client image
// that cannot be loaded degrades to an empty universe, so nothing is shared
// by reference. Everything already acquired is released when Open fails.
func Open(ctx context.Context, opts Options) (svc *Service, err error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var cleanup []func() error
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				_ = cleanup[i]()
			}
		}
	}()

	imgOpts := image.Options{Logger: log, ExcludeDirs: opts.ExcludeDirs, ExcludeFiles: opts.ExcludeFiles}
	server, err := image.Open(ctx, absSpec(opts.BaseDir, opts.Server), opts.Resolver, imgOpts)
	if err != nil {
		return nil, &ConfigError{Image: specName(opts.Server, "server"), Path: strings.Join(opts.Server.Dirs, ", "), Err: err}
	}
	cleanup = append(cleanup, server.Close)

	client, cerr := image.Open(ctx, absSpec(opts.BaseDir, opts.Client), opts.Resolver, imgOpts)
	if cerr != nil {
		log.Warn("client image unavailable, nothing will be shared by reference",
			zap.Strings("dirs", opts.Client.Dirs), zap.Error(cerr))
		client = image.Empty(specName(opts.Client, "client"))
	}
	cleanup = append(cleanup, client.Close)

	reg := fileid.NewRegistry()
	shared, err := openShared(reg, opts, log)
	if err != nil {
		return nil, err
	}

	providers, err := openProviders(reg, opts, log)
	for _, p := range providers {
		cleanup = append(cleanup, p.Close)
	}
	if err != nil {
		return nil, err
	}

	log.Info("pass opened",
		zap.Int("server_packages", len(server.Packages())),
		zap.Int("client_packages", len(client.Packages())),
		zap.Int("shared_files", shared.Len()),
		zap.Int("providers", len(providers)))
	return New(reg, server, client, symbols.NewLocator(providers...), shared, log), nil
}

func specName(spec image.Spec, fallback string) string {
	if spec.Name != "" {
		return spec.Name
	}
	return fallback
}

// absSpec resolves relative directories and the binary against baseDir.
func absSpec(baseDir string, spec image.Spec) image.Spec {
	out := spec
	out.Dirs = absPaths(baseDir, spec.Dirs)
	if spec.Binary != "" {
		out.Binary = absPath(baseDir, spec.Binary)
	}
	return out
}

func absPaths(baseDir string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = absPath(baseDir, p)
	}
	return out
}

func absPath(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

func openShared(reg *fileid.Registry, opts Options, log *zap.Logger) (*sharedset.Set, error) {
	paths, err := sharedset.Expand(opts.BaseDir, opts.SharedFiles)
	if err != nil {
		return nil, &ConfigError{Path: "shared_files", Err: err}
	}
	if opts.DiscoverLinks {
		dirs := absSpec(opts.BaseDir, opts.Client).Dirs
		links, err := sharedset.DiscoverLinks(dirs, opts.ExcludeDirs...)
		if err != nil {
			log.Warn("discovering linked files", zap.Error(err))
		}
		paths = append(paths, links...)
	}
	shared, err := sharedset.New(reg, paths)
	if err != nil {
		return nil, &ConfigError{Path: "shared_files", Err: err}
	}
	return shared, nil
}

// openProviders builds the providers in configured order. Providers without
// a store configured are skipped. On error the providers built so far are
// returned for cleanup.
func openProviders(reg *fileid.Registry, opts Options, log *zap.Logger) ([]symbols.Provider, error) {
	order := opts.Providers
	if len(order) == 0 {
		order = symbols.DefaultOrder
	}
	var providers []symbols.Provider
	for _, name := range order {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case symbols.NameManifest:
			if opts.Manifest == "" {
				continue
			}
			path := absPath(opts.BaseDir, opts.Manifest)
			p, err := symbols.LoadManifest(reg, path)
			if err != nil {
				return providers, &ConfigError{Path: path, Err: err}
			}
			providers = append(providers, p)
		case symbols.NameDWARF:
			spec := absSpec(opts.BaseDir, opts.Server)
			if spec.Binary == "" {
				continue
			}
			providers = append(providers, symbols.NewDWARFProvider(reg, spec.Binary, absPaths(opts.BaseDir, opts.SymbolPath), log))
		case symbols.NamePositions:
			providers = append(providers, symbols.NewPositionProvider(reg))
		default:
			return providers, &ConfigError{Path: "providers", Err: fmt.Errorf("unknown symbol provider %q", name)}
		}
	}
	return providers, nil
}
