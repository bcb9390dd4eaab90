// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// waitForChange receives events until one for path satisfies accept, or the
// deadline expires.
func waitForChange(t *testing.T, events <-chan ChangeEvent, path string, accept func(ChangeEvent) bool) ChangeEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatal("event channel closed while waiting")
			}
			if event.Path == path && accept(event) {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a change to %s", path)
		}
	}
}

func startTestWatcher(t *testing.T) (*LocalProvider, *Watcher) {
	t.Helper()
	p, _, _ := newTestProvider(t)
	w, err := NewWatcher(p, WithDebounce(30*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return p, w
}

func TestWatcher_ReindexOnCreate(t *testing.T) {
	p, w := startTestWatcher(t)

	events, cancel, err := w.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	extra := writeFile(t, p.Root(), "extra.go", "package main\n\nfunc added() {}\n")
	waitForChange(t, events, extra, func(ChangeEvent) bool { return true })

	// Events publish after the index refresh, so the symbols are visible now.
	syms := p.Index().GetByFile(extra)
	found := false
	for _, sym := range syms {
		if sym.Name == "added" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the new file to be indexed, got %d symbols", len(syms))
	}
}

func TestWatcher_RemoveDropsIndexEntries(t *testing.T) {
	p, w := startTestWatcher(t)

	extra := writeFile(t, p.Root(), "extra.go", "package main\n\nfunc added() {}\n")

	events, cancel, err := w.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	// Wait for the create to be applied before removing.
	waitForChange(t, events, extra, func(ChangeEvent) bool { return true })

	if err := os.Remove(extra); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitForChange(t, events, extra, func(e ChangeEvent) bool {
		return e.Op == ChangeOpRemove || e.Op == ChangeOpRename
	})

	if syms := p.Index().GetByFile(extra); len(syms) != 0 {
		t.Errorf("expected index entries to be dropped, got %d", len(syms))
	}
}

func TestWatcher_IgnoredPaths(t *testing.T) {
	p, _, _ := newTestProvider(t)
	w, err := NewWatcher(p)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(p.Root(), "main.go"), false},
		{filepath.Join(p.Root(), "pkg", "deep", "file.go"), false},
		{filepath.Join(p.Root(), "node_modules", "lib.js"), true},
		{filepath.Join(p.Root(), "pkg", ".git", "config"), true},
	}
	for _, tc := range tests {
		if got := w.ignored(tc.path); got != tc.want {
			t.Errorf("ignored(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestWatcher_StartStop(t *testing.T) {
	p, _, _ := newTestProvider(t)
	w, err := NewWatcher(p)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	if w.IsWatching() {
		t.Error("watcher should not report watching before Start")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.IsWatching() {
		t.Error("watcher should report watching after Start")
	}

	// Starting again is a no-op.
	if err := w.Start(context.Background()); err != nil {
		t.Errorf("second Start: %v", err)
	}

	events, cancel, err := w.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	w.Stop()
	if w.IsWatching() {
		t.Error("watcher should not report watching after Stop")
	}
	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected the subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("subscriber channel not closed after Stop")
	}

	if _, _, err := w.Subscribe(); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("expected ErrWatcherClosed after Stop, got %v", err)
	}

	// Stop is idempotent.
	w.Stop()
}

func TestWatcher_SubscribeCancel(t *testing.T) {
	_, w := startTestWatcher(t)

	events, cancel, err := w.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected the channel to be closed after cancel")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after cancel")
	}

	// Canceling twice is safe.
	cancel()
}

func TestDedupeChanges(t *testing.T) {
	changes := []ChangeEvent{
		{Path: "a", Op: ChangeOpCreate},
		{Path: "b", Op: ChangeOpWrite},
		{Path: "a", Op: ChangeOpWrite},
		{Path: "c", Op: ChangeOpRemove},
		{Path: "b", Op: ChangeOpRemove},
	}

	got := dedupeChanges(changes)
	want := []ChangeEvent{
		{Path: "a", Op: ChangeOpWrite},
		{Path: "b", Op: ChangeOpRemove},
		{Path: "c", Op: ChangeOpRemove},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d changes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Path != want[i].Path || got[i].Op != want[i].Op {
			t.Errorf("change %d: got %s/%s, want %s/%s",
				i, got[i].Path, got[i].Op, want[i].Path, want[i].Op)
		}
	}
}

func TestConvertOp(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want ChangeOp
	}{
		{fsnotify.Create, ChangeOpCreate},
		{fsnotify.Write, ChangeOpWrite},
		{fsnotify.Remove, ChangeOpRemove},
		{fsnotify.Rename, ChangeOpRename},
		{fsnotify.Chmod, ChangeOpWrite},
		{fsnotify.Create | fsnotify.Write, ChangeOpCreate},
	}
	for _, tc := range tests {
		if got := convertOp(tc.op); got != tc.want {
			t.Errorf("convertOp(%v) = %s, want %s", tc.op, got, tc.want)
		}
	}
}

func TestChangeOpString(t *testing.T) {
	tests := []struct {
		op   ChangeOp
		want string
	}{
		{ChangeOpCreate, "create"},
		{ChangeOpWrite, "write"},
		{ChangeOpRemove, "remove"},
		{ChangeOpRename, "rename"},
		{ChangeOp(99), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.op.String(); got != tc.want {
			t.Errorf("ChangeOp(%d).String() = %q, want %q", tc.op, got, tc.want)
		}
	}
}
