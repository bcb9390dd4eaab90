// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/builder"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/config"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/provider"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/telemetry"
)

// maxCachedGraphs bounds the in-memory graph cache. Graphs are evicted
// oldest-first; snapshots exist for anything worth keeping longer.
const maxCachedGraphs = 8

// shutdownGrace is how long in-flight requests get to finish once the
// service context is canceled.
const shutdownGrace = 5 * time.Second

// ServiceConfig wires a Service to a workspace.
type ServiceConfig struct {
	// ProjectRoot is the directory the provider scans. Empty means ".".
	ProjectRoot string

	// Config supplies server, build, and snapshot settings. Nil uses
	// config.DefaultConfig().
	Config *config.Config

	// Logger receives service lifecycle and handler logs. Nil uses
	// slog.Default().
	Logger *slog.Logger

	// EnableWatcher starts the filesystem watcher so /v1/graph/watch can
	// stream change events. Off by default; most CLI-driven uses never
	// connect a watch client.
	EnableWatcher bool
}

// DefaultServiceConfig returns a ServiceConfig for the current directory.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ProjectRoot: ".",
		Config:      config.DefaultConfig(),
		Logger:      slog.Default(),
	}
}

// CachedGraph is one built graph retained for follow-up operations.
type CachedGraph struct {
	GraphID      string
	Session      *builder.Session
	Graph        *graph.Graph
	RootID       graph.NodeID
	Stats        builder.Stats
	BuiltAtMilli int64
}

// Service owns the workspace provider, the optional snapshot store, the
// optional watcher, and the bounded cache of built graphs.
type Service struct {
	cfg         *config.Config
	projectRoot string
	logger      *slog.Logger

	provider    *provider.LocalProvider
	snapshotMgr *graph.SnapshotManager
	db          *badger.DB
	watcher     *provider.Watcher
	limiter     *rate.Limiter

	startedAt time.Time
	closeOnce sync.Once

	mu     sync.RWMutex
	graphs map[string]*CachedGraph
	order  []string // graph ids, oldest first
}

// NewService scans the project root and brings up the configured
// subsystems.
//
// Description:
//
//	The provider scan walks the whole workspace, so construction can take
//	a moment on large trees; ctx bounds it. When snapshots are enabled the
//	badger store is opened (and created) under the configured directory.
//	The watcher is constructed but not started; Run starts it.
//
// Inputs:
//   - ctx: bounds the initial workspace scan.
//   - sc: workspace wiring; zero fields fall back to defaults.
//
// Outputs:
//   - *Service: ready to serve. Callers must Close it.
//   - error: unusable root, snapshot store failure, or watcher failure.
//
// Thread Safety: the returned Service is safe for concurrent use.
func NewService(ctx context.Context, sc ServiceConfig) (*Service, error) {
	if sc.Config == nil {
		sc.Config = config.DefaultConfig()
	}
	if sc.Logger == nil {
		sc.Logger = slog.Default()
	}
	if sc.ProjectRoot == "" {
		sc.ProjectRoot = "."
	}
	root, err := filepath.Abs(sc.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	excludes := append([]string{}, provider.DefaultExcludes...)
	excludes = append(excludes, sc.Config.Build.Excludes...)
	if sc.Config.Snapshots.Enabled {
		// The snapshot store must not be scanned or watched as source.
		if name := snapshotExcludeName(sc.Config.Snapshots.Dir); name != "" {
			excludes = append(excludes, name)
		}
	}
	p, err := provider.NewLocalProvider(ctx, root,
		provider.WithProviderLogger(sc.Logger),
		provider.WithExcludes(excludes),
	)
	if err != nil {
		return nil, fmt.Errorf("workspace provider: %w", err)
	}

	s := &Service{
		cfg:         sc.Config,
		projectRoot: root,
		logger:      sc.Logger,
		provider:    p,
		limiter: rate.NewLimiter(
			rate.Limit(sc.Config.Server.BuildRateLimit),
			sc.Config.Server.BuildRateBurst,
		),
		startedAt: time.Now(),
		graphs:    make(map[string]*CachedGraph),
	}

	if sc.Config.Snapshots.Enabled {
		dir := sc.Config.SnapshotPath(root)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
		db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		mgr, err := graph.NewSnapshotManager(db, sc.Logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("snapshot manager: %w", err)
		}
		s.db = db
		s.snapshotMgr = mgr
	}

	if sc.EnableWatcher {
		w, err := provider.NewWatcher(p, provider.WithWatcherLogger(sc.Logger))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("workspace watcher: %w", err)
		}
		s.watcher = w
	}

	s.logger.Info("depgraph service initialized",
		slog.String("project_root", root),
		slog.Bool("snapshots", s.snapshotMgr != nil),
		slog.Bool("watcher", s.watcher != nil))
	return s, nil
}

// Router assembles the gin engine with the service's middleware stack.
func (s *Service) Router() *gin.Engine {
	registerDirectionRule()
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(s.cfg.Telemetry.ServiceName))
	router.Use(RequestIDMiddleware())

	handlers := NewHandlers(s)
	router.GET("/health", handlers.HandleHealth)
	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

// Run serves HTTP until ctx is canceled or the listener fails, then
// drains in-flight requests and releases the service's resources.
func (s *Service) Run(ctx context.Context) error {
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("depgraph service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Close()
	s.logger.Info("depgraph service stopped")
	return err
}

// Close stops the watcher and closes the snapshot store. Safe to call
// more than once.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		if s.watcher != nil {
			s.watcher.Stop()
		}
		if s.db != nil {
			if err := s.db.Close(); err != nil {
				s.logger.Warn("snapshot store close failed", slog.String("error", err.Error()))
			}
		}
	})
}

// buildGraph runs one builder session for req and caches the result.
func (s *Service) buildGraph(ctx context.Context, req BuildRequest) (*CachedGraph, error) {
	dirText := req.Direction
	if dirText == "" {
		dirText = s.cfg.Build.Direction
	}
	dir, err := graph.ParseDirection(dirText)
	if err != nil {
		return nil, err
	}
	depth := req.MaxDepth
	if depth == 0 {
		depth = s.cfg.Build.MaxDepth
	}

	session, err := builder.NewSession(s.provider,
		builder.WithLogger(s.logger),
		builder.WithMaxImplementationFiles(s.cfg.Build.MaxImplementationFiles),
	)
	if err != nil {
		return nil, err
	}

	result, err := session.Build(ctx, req.File, ast.Position{Line: req.Line, Col: req.Col}, depth, dir)
	if err != nil {
		return nil, err
	}

	cached := &CachedGraph{
		GraphID:      session.ID().String(),
		Session:      session,
		Graph:        result.Graph,
		RootID:       result.RootID,
		Stats:        result.Stats,
		BuiltAtMilli: time.Now().UnixMilli(),
	}
	s.cacheGraph(cached)
	return cached, nil
}

// cacheGraph inserts cg, evicting the oldest entries past the cap.
func (s *Service) cacheGraph(cg *CachedGraph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[cg.GraphID] = cg
	s.order = append(s.order, cg.GraphID)
	for len(s.order) > maxCachedGraphs {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.graphs, evicted)
		s.logger.Debug("evicted cached graph", slog.String("graph_id", evicted))
	}
}

// GetGraph returns the cached graph for id, or ErrGraphNotFound.
func (s *Service) GetGraph(id string) (*CachedGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cg, ok := s.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	return cg, nil
}

// latestGraph returns the most recently built graph, or nil.
func (s *Service) latestGraph() *CachedGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil
	}
	return s.graphs[s.order[len(s.order)-1]]
}

// cachedCount returns how many graphs the cache holds.
func (s *Service) cachedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.graphs)
}

// snapshotExcludeName returns the top directory name of a relative
// snapshot path. Absolute paths live outside the workspace by convention
// and need no exclusion.
func snapshotExcludeName(dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(filepath.Clean(dir)), "/")
	if len(parts) == 0 || parts[0] == "." || parts[0] == ".." {
		return ""
	}
	return parts[0]
}
