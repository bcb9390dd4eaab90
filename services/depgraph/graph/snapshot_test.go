// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

// newTestDB creates an in-memory BadgerDB for testing.
func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSnapshotManager(t *testing.T) *SnapshotManager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	mgr, err := NewSnapshotManager(newTestDB(t), logger)
	if err != nil {
		t.Fatalf("NewSnapshotManager: %v", err)
	}
	return mgr
}

func TestNewSnapshotManager_NilDB(t *testing.T) {
	if _, err := NewSnapshotManager(nil, slog.Default()); err == nil {
		t.Error("expected error for nil DB")
	}
}

func TestSnapshotManager_SaveAndLoad(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()
	g := buildTestGraph(t)

	meta, err := mgr.Save(ctx, g, "before refactor")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if meta.SnapshotID == "" || len(meta.SnapshotID) != 16 {
		t.Errorf("unexpected snapshot id: %q", meta.SnapshotID)
	}
	if meta.NodeCount != 3 || meta.EdgeCount != 3 {
		t.Errorf("unexpected counts: %+v", meta)
	}
	if meta.Label != "before refactor" {
		t.Errorf("label lost: %q", meta.Label)
	}
	if meta.GraphHash != g.Hash() {
		t.Error("metadata must carry the structural hash")
	}

	loaded, loadedMeta, err := mgr.Load(ctx, meta.SnapshotID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Hash() != g.Hash() {
		t.Error("loaded graph must hash identically")
	}
	if loadedMeta.SnapshotID != meta.SnapshotID {
		t.Error("metadata mismatch on load")
	}
}

func TestSnapshotManager_LoadLatest(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()

	g := buildTestGraph(t)
	if _, err := mgr.Save(ctx, g, "first"); err != nil {
		t.Fatal(err)
	}

	// Second save from the same seed with a later build time.
	g.BuiltAtMilli += 1000
	second, err := mgr.Save(ctx, g, "second")
	if err != nil {
		t.Fatal(err)
	}

	_, meta, err := mgr.LoadLatest(ctx, SeedHash(g.RootID))
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if meta.SnapshotID != second.SnapshotID {
		t.Errorf("latest should be the second save, got %q", meta.SnapshotID)
	}
}

func TestSnapshotManager_LoadLatest_NoSnapshots(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	_, _, err := mgr.LoadLatest(context.Background(), SeedHash("/never/seen:0:0"))
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestSnapshotManager_List(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()

	g := buildTestGraph(t)
	for i := 0; i < 3; i++ {
		g.BuiltAtMilli += int64(i) * 1000
		if _, err := mgr.Save(ctx, g, ""); err != nil {
			t.Fatal(err)
		}
	}

	all, err := mgr.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("expected snapshots in list")
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAtMilli > all[i-1].CreatedAtMilli {
			t.Error("list must be newest first")
		}
	}

	filtered, err := mgr.List(ctx, SeedHash(g.RootID), 1)
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(filtered) != 1 {
		t.Errorf("limit 1 must return 1 entry, got %d", len(filtered))
	}
}

func TestSnapshotManager_Delete(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()
	g := buildTestGraph(t)

	meta, err := mgr.Save(ctx, g, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.Delete(ctx, meta.SnapshotID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, _, err := mgr.Load(ctx, meta.SnapshotID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound after delete, got %v", err)
	}

	// The latest pointer is gone too.
	if _, _, err := mgr.LoadLatest(ctx, SeedHash(g.RootID)); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected latest pointer cleared, got %v", err)
	}
}

func TestSnapshotManager_IntegrityCheck(t *testing.T) {
	mgr := newTestSnapshotManager(t)
	ctx := context.Background()
	g := buildTestGraph(t)

	meta, err := mgr.Save(ctx, g, "")
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the stored payload behind the manager's back.
	dataKey := keyPrefixSnap + meta.SeedHash + ":" + meta.SnapshotID + keySuffixData
	err = mgr.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(dataKey), []byte("garbage"))
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := mgr.Load(ctx, meta.SnapshotID); !errors.Is(err, ErrIntegrity) {
		t.Errorf("expected ErrIntegrity for corrupted payload, got %v", err)
	}
}
