// Package scan runs generation passes: every exported server entity of a
// pass is classified and the outcome is persisted as a report.
package scan

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/abramin/sharelens/internal/config"
	"github.com/abramin/sharelens/internal/image"
	"github.com/abramin/sharelens/internal/memberkey"
	"github.com/abramin/sharelens/internal/share"
	"github.com/abramin/sharelens/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner coordinates the scan pipeline.
type Runner struct {
	cfg        *config.Config
	projectDir string
	log        *zap.Logger

	// Resolver loads both images of every pass; nil uses go/packages.
	Resolver image.Resolver
	// Parallelism bounds how many passes load at once; GOMAXPROCS when zero.
	Parallelism int
}

// NewRunner creates a runner for the given project directory. Relative
// paths in cfg are resolved against it.
func NewRunner(cfg *config.Config, projectDir string, log *zap.Logger) *Runner {
	absPath, err := filepath.Abs(projectDir)
	if err != nil {
		absPath = projectDir
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		projectDir: absPath,
		log:        log,
	}
}

// Entity is one classified server entity.
type Entity struct {
	Key   memberkey.Key
	Kind  share.Kind
	Files []string
}

// Diagnostic reports a member that is not shared although its type is.
type Diagnostic struct {
	TypeKey   memberkey.Key
	MemberKey memberkey.Key
	Message   string
}

// PassResult holds the outcome of one pass.
type PassResult struct {
	Name           string
	ServerDirs     []string
	ClientDirs     []string
	ServerPackages int
	ClientPackages int
	SharedFiles    int
	Failures       int
	Entities       []Entity
	Diagnostics    []Diagnostic
}

// Count returns how many entities of the pass have kind k.
func (p *PassResult) Count(k share.Kind) int {
	n := 0
	for _, e := range p.Entities {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Result holds the results of a scan run.
type Result struct {
	Passes          []*PassResult
	EntityCount     int
	DiagnosticCount int
	Duration        time.Duration
	DBPath          string
}

// Classify runs the named passes, or every configured pass when names is
// empty, without persisting anything.
func (r *Runner) Classify(ctx context.Context, names ...string) ([]*PassResult, error) {
	passes, err := r.selectPasses(names)
	if err != nil {
		return nil, err
	}

	limit := r.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]*PassResult, len(passes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, pc := range passes {
		g.Go(func() error {
			res, err := r.runPass(ctx, pc)
			if err != nil {
				return fmt.Errorf("pass %s: %w", pc.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Run classifies the selected passes and writes the report store. Passes
// that were not run keep their previous results.
func (r *Runner) Run(ctx context.Context, names ...string) (*Result, error) {
	start := time.Now()

	fmt.Println("Classifying passes...")
	passes, err := r.Classify(ctx, names...)
	if err != nil {
		return nil, err
	}

	// Open (or create) the store
	st, err := store.Open(r.OutputDir())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	scannedAt := time.Now().Format(time.RFC3339)
	result := &Result{Passes: passes, DBPath: st.DBPath()}
	for _, p := range passes {
		if err := persist(st, p, scannedAt); err != nil {
			return nil, fmt.Errorf("storing pass %s: %w", p.Name, err)
		}
		result.EntityCount += len(p.Entities)
		result.DiagnosticCount += len(p.Diagnostics)
		fmt.Printf("  %s: %d entities (%d by reference, %d by source, %d not shared), %d diagnostics\n",
			p.Name, len(p.Entities), p.Count(share.SharedByReference), p.Count(share.SharedBySource),
			p.Count(share.NotShared), len(p.Diagnostics))
	}

	// Store scan metadata
	if err := st.SetMetadata("scanned_at", scannedAt); err != nil {
		return nil, fmt.Errorf("storing metadata: %w", err)
	}
	if err := st.SetMetadata("project_dir", r.projectDir); err != nil {
		return nil, fmt.Errorf("storing metadata: %w", err)
	}

	// Write report.json for the generator
	if err := st.WriteReportJSON(); err != nil {
		return nil, fmt.Errorf("writing report.json: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// OutputDir returns the report directory.
func (r *Runner) OutputDir() string {
	dir := r.cfg.OutputDir
	if dir == "" {
		dir = config.Default().OutputDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(r.projectDir, dir)
}

func (r *Runner) selectPasses(names []string) ([]config.PassConfig, error) {
	if len(names) == 0 {
		if len(r.cfg.Passes) == 0 {
			return nil, fmt.Errorf("no passes configured")
		}
		return r.cfg.Passes, nil
	}
	passes := make([]config.PassConfig, 0, len(names))
	for _, name := range names {
		pc, ok := r.cfg.Pass(name)
		if !ok {
			return nil, fmt.Errorf("unknown pass %q", name)
		}
		passes = append(passes, pc)
	}
	return passes, nil
}

// Options returns the service options of a pass.
func (r *Runner) Options(pc config.PassConfig) share.Options {
	manifest := r.cfg.Manifest
	if pc.Manifest != "" {
		manifest = pc.Manifest
	}
	shared := make([]string, 0, len(r.cfg.SharedFiles)+len(pc.SharedFiles))
	shared = append(shared, r.cfg.SharedFiles...)
	shared = append(shared, pc.SharedFiles...)

	return share.Options{
		Server:        pc.Server,
		Client:        pc.Client,
		SharedFiles:   shared,
		DiscoverLinks: r.cfg.DiscoverLinks,
		SymbolPath:    r.cfg.SymbolPath,
		Providers:     r.cfg.Providers,
		Manifest:      manifest,
		BaseDir:       r.projectDir,
		ExcludeDirs:   r.cfg.Exclude.Dirs,
		ExcludeFiles:  r.cfg.Exclude.FilesGlob,
		Resolver:      r.Resolver,
		Logger:        r.log.With(zap.String("pass", pc.Name)),
	}
}

func (r *Runner) runPass(ctx context.Context, pc config.PassConfig) (*PassResult, error) {
	log := r.log.With(zap.String("pass", pc.Name))
	svc, err := share.Open(ctx, r.Options(pc))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("closing pass", zap.Error(err))
		}
	}()

	res := &PassResult{
		Name:           pc.Name,
		ServerDirs:     pc.Server.Dirs,
		ClientDirs:     pc.Client.Dirs,
		ServerPackages: len(svc.Server().Packages()),
		ClientPackages: len(svc.Client().Packages()),
		SharedFiles:    svc.SharedFiles(),
		Failures:       len(svc.Server().Failures()) + len(svc.Client().Failures()),
	}

	typeKinds := make(map[memberkey.Key]share.Kind)
	for _, k := range svc.Entities() {
		kind, err := svc.Classify(k)
		if err != nil {
			log.Warn("skipping entity", zap.Stringer("key", k), zap.Error(err))
			continue
		}
		files, err := svc.Files(k)
		if err != nil {
			return nil, fmt.Errorf("locating %s: %w", k, err)
		}
		res.Entities = append(res.Entities, Entity{Key: k, Kind: kind, Files: files})

		if k.Kind() == memberkey.KindType {
			typeKinds[k] = kind
			continue
		}
		typeKind, ok := typeKinds[k.TypeKey()]
		if !ok {
			if typeKind, err = svc.Classify(k.TypeKey()); err != nil {
				continue
			}
			typeKinds[k.TypeKey()] = typeKind
		}
		if typeKind.Shared() && !kind.Shared() {
			d := Diagnostic{
				TypeKey:   k.TypeKey(),
				MemberKey: k,
				Message:   fmt.Sprintf("type %s is %s but member %s is not shared", k.TypeName(), typeKind, memberName(k)),
			}
			log.Warn(d.Message)
			res.Diagnostics = append(res.Diagnostics, d)
		}
	}

	log.Info("pass classified",
		zap.Int("entities", len(res.Entities)),
		zap.Int("diagnostics", len(res.Diagnostics)))
	return res, nil
}

// memberName renders a member without its type prefix, e.g. Run(string).
func memberName(k memberkey.Key) string {
	if k.Kind() == memberkey.KindConstructor {
		return "constructor(" + strings.Join(k.Params(), ", ") + ")"
	}
	if k.Kind() == memberkey.KindMethod {
		return k.Member() + "(" + strings.Join(k.Params(), ", ") + ")"
	}
	return k.Member()
}

func persist(st *store.Store, p *PassResult, scannedAt string) error {
	batch, err := st.BeginBatch()
	if err != nil {
		return err
	}
	if err := writePass(batch, p, scannedAt); err != nil {
		batch.Rollback()
		return err
	}
	return batch.Commit()
}

func writePass(batch *store.BatchTx, p *PassResult, scannedAt string) error {
	// Replace the previous results of this pass
	if err := batch.DeletePass(p.Name); err != nil {
		return fmt.Errorf("deleting previous results: %w", err)
	}

	passID, err := batch.InsertPass(&store.Pass{
		Name:           p.Name,
		ServerDirs:     p.ServerDirs,
		ClientDirs:     p.ClientDirs,
		ServerPackages: p.ServerPackages,
		ClientPackages: p.ClientPackages,
		SharedFiles:    p.SharedFiles,
		Failures:       p.Failures,
		ScannedAt:      scannedAt,
	})
	if err != nil {
		return fmt.Errorf("inserting pass: %w", err)
	}

	for _, e := range p.Entities {
		if _, err := batch.InsertEntity(&store.Entity{
			PassID:    passID,
			Key:       e.Key.String(),
			Kind:      store.EntityKind(e.Key.Kind().String()),
			TypeName:  e.Key.TypeName(),
			Member:    e.Key.Member(),
			Params:    strings.Join(e.Key.Params(), ", "),
			ShareKind: e.Kind.String(),
			Files:     e.Files,
		}); err != nil {
			return fmt.Errorf("inserting entity %s: %w", e.Key, err)
		}
	}

	for _, d := range p.Diagnostics {
		if err := batch.InsertDiagnostic(&store.Diagnostic{
			PassID:    passID,
			TypeKey:   d.TypeKey.String(),
			MemberKey: d.MemberKey.String(),
			Message:   d.Message,
		}); err != nil {
			return fmt.Errorf("inserting diagnostic: %w", err)
		}
	}
	return nil
}
