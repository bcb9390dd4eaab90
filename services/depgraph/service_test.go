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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/config"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/provider"
)

// mainSource declares helper on 0-based line 2 and calls it from main on
// line 7. Every workspace fixture in this package builds from it.
const mainSource = `package main

func helper() int {
	return 1
}

func main() {
	helper()
}
`

const ifaceSource = `package main

type Storage interface {
	Save(key string) error
}
`

const implSource = `package main

type diskStorage struct{}

func (d *diskStorage) Save(key string) error {
	return nil
}

var _ Storage = (*diskStorage)(nil)
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeProjectFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// testServiceConfig wires a service to dir with snapshots off; tests that
// need the store flip Snapshots.Enabled back on.
func testServiceConfig(dir string) ServiceConfig {
	cfg := config.DefaultConfig()
	cfg.Snapshots.Enabled = false
	return ServiceConfig{
		ProjectRoot: dir,
		Config:      cfg,
		Logger:      quietLogger(),
	}
}

func newTestService(t *testing.T, sc ServiceConfig) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), sc)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

// setupTestService creates a service over a one-file workspace.
func setupTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	writeProjectFile(t, dir, "main.go", mainSource)
	return newTestService(t, testServiceConfig(dir))
}

// setupSnapshotService creates a service with the snapshot store enabled.
func setupSnapshotService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	writeProjectFile(t, dir, "main.go", mainSource)
	sc := testServiceConfig(dir)
	sc.Config.Snapshots.Enabled = true
	return newTestService(t, sc)
}

func setupTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return svc.Router()
}

// doRequest runs one request through the router. A non-nil body is sent
// as JSON.
func doRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// buildTestGraph builds the helper-caller graph through the service.
func buildTestGraph(t *testing.T, svc *Service) *CachedGraph {
	t.Helper()
	cached, err := svc.buildGraph(context.Background(), BuildRequest{
		File:      "main.go",
		Line:      2,
		Col:       0,
		Direction: "up",
		MaxDepth:  2,
	})
	if err != nil {
		t.Fatalf("buildGraph: %v", err)
	}
	return cached
}

func TestNewService_Defaults(t *testing.T) {
	svc := setupTestService(t)

	if svc.provider == nil {
		t.Fatal("provider not constructed")
	}
	if svc.snapshotMgr != nil || svc.db != nil {
		t.Error("snapshot store constructed with snapshots disabled")
	}
	if svc.watcher != nil {
		t.Error("watcher constructed without EnableWatcher")
	}
	if svc.limiter == nil {
		t.Error("rate limiter not constructed")
	}
	if svc.cachedCount() != 0 {
		t.Errorf("cachedCount = %d, want 0", svc.cachedCount())
	}

	// Close twice: the second call must be a no-op.
	svc.Close()
	svc.Close()
}

func TestNewService_MissingRoot(t *testing.T) {
	sc := testServiceConfig(filepath.Join(t.TempDir(), "does-not-exist"))
	if _, err := NewService(context.Background(), sc); !errors.Is(err, provider.ErrNotDirectory) {
		t.Fatalf("err = %v, want ErrNotDirectory", err)
	}
}

func TestNewService_SnapshotStore(t *testing.T) {
	svc := setupSnapshotService(t)

	if svc.snapshotMgr == nil || svc.db == nil {
		t.Fatal("snapshot store not constructed")
	}
	dir := svc.cfg.SnapshotPath(svc.projectRoot)
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("snapshot dir %s: %v", dir, err)
	}
}

func TestService_BuildGraphDefaults(t *testing.T) {
	svc := setupTestService(t)

	// Direction and depth fall back to the configured defaults (down, 5):
	// helper has no callees, so the graph is the seed alone.
	cached, err := svc.buildGraph(context.Background(), BuildRequest{File: "main.go", Line: 2})
	if err != nil {
		t.Fatalf("buildGraph: %v", err)
	}
	if cached.Graph.Len() != 1 {
		t.Errorf("Len = %d, want 1", cached.Graph.Len())
	}
	if cached.Graph.BuildDirection != graph.DirectionDown {
		t.Errorf("BuildDirection = %s, want down", cached.Graph.BuildDirection)
	}
	if cached.Graph.MaxDepth != svc.cfg.Build.MaxDepth {
		t.Errorf("MaxDepth = %d, want %d", cached.Graph.MaxDepth, svc.cfg.Build.MaxDepth)
	}
}

func TestService_BuildGraphCaches(t *testing.T) {
	svc := setupTestService(t)
	cached := buildTestGraph(t, svc)

	if cached.GraphID == "" {
		t.Fatal("empty graph id")
	}
	got, err := svc.GetGraph(cached.GraphID)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	if got != cached {
		t.Error("GetGraph returned a different entry")
	}
	if latest := svc.latestGraph(); latest != cached {
		t.Error("latestGraph returned a different entry")
	}
}

func TestService_GetGraphUnknown(t *testing.T) {
	svc := setupTestService(t)
	if _, err := svc.GetGraph("nope"); !errors.Is(err, ErrGraphNotFound) {
		t.Fatalf("err = %v, want ErrGraphNotFound", err)
	}
}

func TestService_CacheEviction(t *testing.T) {
	svc := setupTestService(t)

	for i := 0; i < maxCachedGraphs+2; i++ {
		svc.cacheGraph(&CachedGraph{GraphID: fmt.Sprintf("g-%d", i)})
	}

	if svc.cachedCount() != maxCachedGraphs {
		t.Fatalf("cachedCount = %d, want %d", svc.cachedCount(), maxCachedGraphs)
	}
	if _, err := svc.GetGraph("g-0"); !errors.Is(err, ErrGraphNotFound) {
		t.Errorf("oldest entry survived eviction: %v", err)
	}
	if _, err := svc.GetGraph("g-1"); !errors.Is(err, ErrGraphNotFound) {
		t.Errorf("second oldest entry survived eviction: %v", err)
	}
	last := fmt.Sprintf("g-%d", maxCachedGraphs+1)
	if latest := svc.latestGraph(); latest == nil || latest.GraphID != last {
		t.Errorf("latestGraph = %v, want %s", latest, last)
	}
}

func TestSnapshotExcludeName(t *testing.T) {
	cases := []struct {
		dir  string
		want string
	}{
		{".depgraph/snapshots", ".depgraph"},
		{"snaps", "snaps"},
		{"a/b/c", "a"},
		{"/var/lib/depgraph", ""},
		{"", ""},
		{".", ""},
		{"../outside", ""},
	}
	for _, tc := range cases {
		if got := snapshotExcludeName(tc.dir); got != tc.want {
			t.Errorf("snapshotExcludeName(%q) = %q, want %q", tc.dir, got, tc.want)
		}
	}
}
