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
	"container/list"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// DefaultCacheCapacity is the default number of files held in the cache.
	DefaultCacheCapacity = 512

	// DefaultFileSizeLimit matches the parsers' per-file ceiling; files the
	// parsers refuse are not worth caching either.
	DefaultFileSizeLimit = 2 * 1024 * 1024
)

// fileEntry is one cached file. mtime and size validate freshness against
// the filesystem on every hit.
type fileEntry struct {
	path    string
	content []byte
	lines   []string
	mtime   int64
	size    int64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// FileCacheOption configures a FileCache.
type FileCacheOption func(*FileCache)

// WithCacheCapacity sets the maximum number of cached files.
func WithCacheCapacity(capacity int) FileCacheOption {
	return func(c *FileCache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithFileSizeLimit sets the per-file size ceiling in bytes.
func WithFileSizeLimit(limit int64) FileCacheOption {
	return func(c *FileCache) {
		if limit > 0 {
			c.sizeLimit = limit
		}
	}
}

// FileCache is an LRU cache of file contents with line splits. Every hit
// revalidates against the file's current mtime and size, so a stale entry
// is replaced transparently rather than served.
//
// Thread Safety: safe for concurrent use.
type FileCache struct {
	mu        sync.Mutex
	capacity  int
	sizeLimit int64
	items     map[string]*list.Element
	order     *list.List // front = most recent

	hits   atomic.Int64
	misses atomic.Int64
}

// NewFileCache returns an empty cache.
func NewFileCache(opts ...FileCacheOption) *FileCache {
	c := &FileCache{
		capacity:  DefaultCacheCapacity,
		sizeLimit: DefaultFileSizeLimit,
		order:     list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.items = make(map[string]*list.Element, c.capacity)
	return c
}

// Lines returns the file's lines, reading through the cache.
func (c *FileCache) Lines(path string) ([]string, error) {
	entry, err := c.get(path)
	if err != nil {
		return nil, err
	}
	return entry.lines, nil
}

// Content returns the file's raw bytes, reading through the cache. Callers
// must not mutate the returned slice.
func (c *FileCache) Content(path string) ([]byte, error) {
	entry, err := c.get(path)
	if err != nil {
		return nil, err
	}
	return entry.content, nil
}

// get returns a fresh entry for path, loading or reloading as needed.
func (c *FileCache) get(path string) (*fileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.Invalidate(path)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read %s: is a directory", path)
	}
	if info.Size() > c.sizeLimit {
		return nil, fmt.Errorf("read %s (%d bytes): %w", path, info.Size(), ErrFileTooLarge)
	}

	mtime := info.ModTime().UnixNano()
	size := info.Size()

	c.mu.Lock()
	if elem, ok := c.items[path]; ok {
		entry := elem.Value.(*fileEntry)
		if entry.mtime == mtime && entry.size == size {
			c.order.MoveToFront(elem)
			c.mu.Unlock()
			c.hits.Add(1)
			return entry, nil
		}
		// Stale; drop and reload below.
		c.order.Remove(elem)
		delete(c.items, path)
	}
	c.mu.Unlock()
	c.misses.Add(1)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	entry := &fileEntry{
		path:    path,
		content: content,
		lines:   splitLines(content),
		mtime:   mtime,
		size:    size,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[path]; ok {
		// Another goroutine loaded it while we read; keep theirs.
		c.order.MoveToFront(elem)
		return elem.Value.(*fileEntry), nil
	}
	c.items[path] = c.order.PushFront(entry)
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*fileEntry).path)
	}
	return entry, nil
}

// Invalidate drops the entry for path, if cached.
func (c *FileCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[path]; ok {
		c.order.Remove(elem)
		delete(c.items, path)
	}
}

// Clear drops all entries.
func (c *FileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Stats returns hit/miss counters and the current entry count.
func (c *FileCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.items)
	c.mu.Unlock()
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}

// splitLines breaks content into lines without trailing carriage returns.
func splitLines(content []byte) []string {
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
