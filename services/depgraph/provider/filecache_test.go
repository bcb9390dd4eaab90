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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeFile creates a file under dir with the given content.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFileCache_Lines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "first\nsecond\nthird")
	cache := NewFileCache()

	lines, err := cache.Lines(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 3 || lines[1] != "second" {
		t.Errorf("unexpected lines: %v", lines)
	}

	// Second read is a hit.
	if _, err := cache.Lines(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
}

func TestFileCache_StripsCarriageReturns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "crlf.txt", "one\r\ntwo\r\n")
	cache := NewFileCache()

	lines, err := cache.Lines(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines[0] != "one" || lines[1] != "two" {
		t.Errorf("carriage returns not stripped: %q", lines)
	}
}

func TestFileCache_StaleEntryReloaded(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "old")
	cache := NewFileCache()

	if _, err := cache.Lines(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Rewrite with a different size and an explicit future mtime so the
	// change is visible regardless of filesystem timestamp granularity.
	if err := os.WriteFile(path, []byte("new content"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	lines, err := cache.Lines(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines[0] != "new content" {
		t.Errorf("expected reloaded content, got %q", lines[0])
	}
}

func TestFileCache_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "big.txt", "0123456789 this is larger than the cap")
	cache := NewFileCache(WithFileSizeLimit(10))

	_, err := cache.Lines(path)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestFileCache_MissingFile(t *testing.T) {
	cache := NewFileCache()
	if _, err := cache.Lines(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileCache_Invalidate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "content")
	cache := NewFileCache()

	if _, err := cache.Lines(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cache.Invalidate(path)

	if _, err := cache.Lines(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := cache.Stats()
	if stats.Hits != 0 || stats.Misses != 2 {
		t.Errorf("expected 0 hits / 2 misses after invalidate, got %d / %d", stats.Hits, stats.Misses)
	}
}

func TestFileCache_Clear(t *testing.T) {
	dir := t.TempDir()
	cache := NewFileCache()
	for _, name := range []string{"a.txt", "b.txt"} {
		path := writeFile(t, dir, name, name)
		if _, err := cache.Lines(path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	cache.Clear()
	if entries := cache.Stats().Entries; entries != 0 {
		t.Errorf("expected empty cache, got %d entries", entries)
	}
}

func TestFileCache_CapacityEviction(t *testing.T) {
	dir := t.TempDir()
	cache := NewFileCache(WithCacheCapacity(2))

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := writeFile(t, dir, name, name)
		if _, err := cache.Lines(path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if entries := cache.Stats().Entries; entries != 2 {
		t.Errorf("expected 2 entries after eviction, got %d", entries)
	}
}

func TestFileCache_ContentSharesEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "shared")
	cache := NewFileCache()

	if _, err := cache.Lines(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, err := cache.Content(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "shared" {
		t.Errorf("unexpected content: %q", content)
	}
	if stats := cache.Stats(); stats.Misses != 1 {
		t.Errorf("Content should reuse the Lines entry, got %d misses", stats.Misses)
	}
}
