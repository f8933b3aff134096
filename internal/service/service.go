// Package service is the composition root for the knowledge store. It
// wires the store, query engine, statistics cache, usage log, and
// workspace guard into one façade the CLI (or an embedding harness)
// calls. The service receives an already-resolved project root and a
// loaded config; it parses no flags and reads no config files itself.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/config"
	"github.com/fyrsmithlabs/knowd/internal/gitinfo"
	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/query"
	"github.com/fyrsmithlabs/knowd/internal/secrets"
	"github.com/fyrsmithlabs/knowd/internal/stats"
	"github.com/fyrsmithlabs/knowd/internal/store"
	"github.com/fyrsmithlabs/knowd/internal/transfer"
	"github.com/fyrsmithlabs/knowd/internal/usagelog"
	"github.com/fyrsmithlabs/knowd/internal/workspace"
)

// Service exposes every knowledge-store operation behind one façade.
// All filesystem paths accepted by its methods pass through the
// workspace guard before anything touches disk.
type Service struct {
	cfg    config.Config
	guard  *workspace.Guard
	store  *store.Store
	engine *query.Engine
	cache  *stats.Cache
	git    *gitinfo.Info
	hasGit bool
	logger *zap.Logger
	now    func() time.Time

	storageDir string
}

// Options tunes Service construction beyond the config file.
type Options struct {
	// Logger defaults to a nop logger.
	Logger *zap.Logger

	// Now is the clock, injectable for tests. Nil means time.Now.
	Now func() time.Time

	// ForceFileBackend skips the tracker probe.
	ForceFileBackend bool
}

// New builds a Service rooted at the given project directory. The
// storage directory is created if missing, the tracker command is
// probed once to pick the backend, and the statistics cache is wired
// to invalidate on every write.
func New(ctx context.Context, root string, cfg config.Config, opts Options) (*Service, error) {
	if !cfg.Enabled {
		return nil, knowledge.NewError(knowledge.KindStorage, "service.new", "knowledge store is disabled by configuration")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	guard, err := workspace.NewGuard(root)
	if err != nil {
		return nil, fmt.Errorf("creating workspace guard: %w", err)
	}
	storageDir, err := guard.Resolve(cfg.StorageDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, knowledge.WrapError(knowledge.KindStorage, "service.new", err)
	}

	scanner, err := buildScanner(cfg.Scanner, guard)
	if err != nil {
		return nil, err
	}

	st, err := store.New(ctx, store.Options{
		Dir:       storageDir,
		Command:   cfg.Command,
		ForceFile: opts.ForceFileBackend,
		Scanner:   scanner,
		Logger:    logger,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	usage := usagelog.New(storageDir, logger)
	cache := stats.NewCache(st.Identity(), stats.CacheTTL, now)
	st.OnWrite(cache.Invalidate)

	git, hasGit, err := gitinfo.Open(guard.Root())
	if err != nil {
		logger.Warn("git detection failed", zap.Error(err))
		hasGit = false
	}

	return &Service{
		cfg:        cfg,
		guard:      guard,
		store:      st,
		engine:     query.NewEngine(st, usage, logger, now),
		cache:      cache,
		git:        git,
		hasGit:     hasGit,
		logger:     logger,
		now:        now,
		storageDir: storageDir,
	}, nil
}

func buildScanner(cfg config.ScannerConfig, guard *workspace.Guard) (*secrets.Scanner, error) {
	sc := secrets.DefaultConfig()
	sc.Enabled = cfg.Enabled
	if cfg.AllowlistPath != "" {
		path, err := guard.Resolve(cfg.AllowlistPath)
		if err != nil {
			return nil, err
		}
		if err := sc.LoadAllowlist(path); err != nil {
			return nil, err
		}
	}
	return secrets.New(sc)
}

// Root returns the resolved project root.
func (s *Service) Root() string {
	return s.guard.Root()
}

// StorageDir returns the resolved storage directory.
func (s *Service) StorageDir() string {
	return s.storageDir
}

// Init prepares the backing storage for first use.
func (s *Service) Init(ctx context.Context) error {
	return s.store.Init(ctx)
}

// Create validates, scans, deduplicates, and persists a new entry,
// returning its assigned id.
func (s *Service) Create(ctx context.Context, e *knowledge.Entry) (string, error) {
	if e.CreatedBy == "" {
		e.CreatedBy = s.cfg.CreatedBy
	}
	return s.store.Create(ctx, e)
}

// Get fetches one entry by id.
func (s *Service) Get(ctx context.Context, id string) (*knowledge.Entry, error) {
	return s.store.Get(ctx, id)
}

// Query runs the ranked query pipeline.
func (s *Service) Query(ctx context.Context, filters knowledge.QueryFilters) ([]knowledge.Entry, error) {
	return s.engine.Run(ctx, filters)
}

// GetRelated returns the entries an entry soft-references. Missing
// targets are silently dropped.
func (s *Service) GetRelated(ctx context.Context, id string) ([]knowledge.Entry, error) {
	return s.engine.Related(ctx, id)
}

// Supersede creates the replacement entry and flips the old one to
// superseded, linking the two.
func (s *Service) Supersede(ctx context.Context, id string, replacement *knowledge.Entry) (string, error) {
	if replacement.CreatedBy == "" {
		replacement.CreatedBy = s.cfg.CreatedBy
	}
	return s.store.Supersede(ctx, id, replacement)
}

// Deprecate marks an entry deprecated without replacement.
func (s *Service) Deprecate(ctx context.Context, id string) error {
	return s.store.Deprecate(ctx, id)
}

// GetStatistics returns a snapshot for the given range, served from
// the cache when fresh. bypassCache forces a recomputation.
func (s *Service) GetStatistics(ctx context.Context, r stats.DateRange, bypassCache bool) (*stats.Snapshot, error) {
	if !bypassCache {
		if snap := s.cache.Get(r); snap != nil {
			return snap, nil
		}
	}
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	snap := stats.Compute(entries, r, s.now())
	s.cache.Put(r, snap)
	return snap, nil
}

// Export writes matching entries as line-delimited JSON to the given
// path, which must stay inside the workspace.
func (s *Service) Export(ctx context.Context, path string, opts transfer.ExportOptions) (int, error) {
	resolved, err := s.guard.Resolve(path)
	if err != nil {
		return 0, err
	}
	entries, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return 0, knowledge.WrapError(knowledge.KindStorage, "service.export", err)
	}
	f, err := os.Create(resolved)
	if err != nil {
		return 0, knowledge.WrapError(knowledge.KindStorage, "service.export", err)
	}
	defer f.Close()

	count := 0
	for i := range entries {
		if transfer.Matches(&entries[i], opts) {
			count++
		}
	}
	if err := transfer.Export(f, entries, opts); err != nil {
		return 0, err
	}
	s.logger.Info("exported entries", zap.String("path", resolved), zap.Int("count", count))
	return count, nil
}

// Import reads line-delimited JSON from the given path and applies it
// with the chosen conflict strategy. Bad lines are recorded in the
// report and never abort the run.
func (s *Service) Import(ctx context.Context, path string, strategy transfer.Strategy) (*transfer.Report, error) {
	resolved, err := s.guard.Resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, knowledge.WrapError(knowledge.KindStorage, "service.import", err)
	}
	defer f.Close()

	report, err := transfer.Import(ctx, s.store, f, strategy, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.Info("import finished",
		zap.Int("total", report.Total),
		zap.Int("success", report.SuccessCount),
		zap.Int("skipped", report.SkipCount),
		zap.Int("errors", report.ErrorCount))
	return report, nil
}
