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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounce is how long the watcher waits for the change burst to
	// settle before re-indexing.
	DefaultDebounce = 250 * time.Millisecond

	// defaultEventBuffer sizes the raw event channel.
	defaultEventBuffer = 1000

	// subscriberBuffer sizes each subscriber channel. Slow subscribers drop
	// events rather than stall re-indexing.
	subscriberBuffer = 64
)

// ChangeOp classifies a filesystem change.
type ChangeOp int

const (
	// ChangeOpCreate is a new file or directory.
	ChangeOpCreate ChangeOp = iota

	// ChangeOpWrite is a content modification.
	ChangeOpWrite

	// ChangeOpRemove is a deletion.
	ChangeOpRemove

	// ChangeOpRename is a move; the path is the old name.
	ChangeOpRename
)

// String returns the op name.
func (op ChangeOp) String() string {
	switch op {
	case ChangeOpCreate:
		return "create"
	case ChangeOpWrite:
		return "write"
	case ChangeOpRemove:
		return "remove"
	case ChangeOpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeEvent is one debounced file change, published to subscribers after
// the index has been refreshed for it.
type ChangeEvent struct {
	// Path is the absolute path that changed.
	Path string `json:"path"`

	// Op is the kind of change.
	Op ChangeOp `json:"op"`

	// At is when the change was observed.
	At time.Time `json:"at"`
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher keeps a LocalProvider's index and caches consistent with the
// filesystem and fans change events out to subscribers.
//
// Description:
//
//	fsnotify events from the project tree are debounced, deduplicated to
//	the latest op per path, applied to the provider (re-index on
//	create/write, removal on remove/rename), then published.
//
// Thread Safety:
//
//	Safe for concurrent use. Events are applied from a single goroutine.
type Watcher struct {
	provider *LocalProvider
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	changes  chan ChangeEvent
	done     chan struct{}
	stopOnce sync.Once

	subMu   sync.Mutex
	subs    map[int]chan ChangeEvent
	nextSub int
	closed  bool

	mu       sync.RWMutex
	watching bool
}

// NewWatcher returns a watcher for the provider's project root. Call Start
// to begin watching and Stop to release the inotify handles.
func NewWatcher(p *LocalProvider, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		provider: p,
		fsw:      fsw,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		changes:  make(chan ChangeEvent, defaultEventBuffer),
		done:     make(chan struct{}),
		subs:     make(map[int]chan ChangeEvent),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the project root recursively. Returns nil if already
// watching. The watcher stops when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.provider.Root()); err != nil {
		return err
	}

	go w.collect(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher and closes all subscriber channels.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()

		w.subMu.Lock()
		for id, ch := range w.subs {
			close(ch)
			delete(w.subs, id)
		}
		w.closed = true
		w.subMu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Subscribe returns a channel of applied change events and a cancel
// function. The channel closes on cancel or Stop.
func (w *Watcher) Subscribe() (<-chan ChangeEvent, func(), error) {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	if w.closed {
		return nil, nil, ErrWatcherClosed
	}

	id := w.nextSub
	w.nextSub++
	ch := make(chan ChangeEvent, subscriberBuffer)
	w.subs[id] = ch

	cancel := func() {
		w.subMu.Lock()
		defer w.subMu.Unlock()
		if sub, ok := w.subs[id]; ok {
			close(sub)
			delete(w.subs, id)
		}
	}
	return ch, cancel, nil
}

// addRecursive watches root and every non-excluded subdirectory.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.provider.excluded(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignored reports whether any path segment under the root is excluded.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.provider.Root(), path)
	if err != nil {
		return true
	}
	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if w.provider.excluded(segment) {
			return true
		}
	}
	return false
}

// collect converts fsnotify events into ChangeEvents on the debounce
// channel and attaches watches to newly created directories.
func (w *Watcher) collect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.fsw.Add(event.Name)
				}
			}

			change := ChangeEvent{Path: event.Name, Op: convertOp(event.Op), At: time.Now()}
			select {
			case w.changes <- change:
			default:
				// Full buffer: the debouncer will catch this file on its
				// next event; dropping is better than blocking inotify.
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// debounceLoop batches changes until the burst settles, then applies them.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []ChangeEvent
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			w.apply(ctx, dedupeChanges(batch))
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// apply refreshes the provider for each change, then publishes it.
func (w *Watcher) apply(ctx context.Context, changes []ChangeEvent) {
	for _, change := range changes {
		switch change.Op {
		case ChangeOpRemove, ChangeOpRename:
			w.provider.removeFile(change.Path)
		default:
			w.provider.files.Invalidate(change.Path)
			if info, err := os.Stat(change.Path); err != nil || info.IsDir() {
				break
			}
			if _, err := w.provider.registry.GetForFile(change.Path); err != nil {
				break // not a source file; cache invalidation is enough
			}
			if w.provider.indexFile(ctx, change.Path) {
				w.logger.Debug("re-indexed changed file", slog.String("path", change.Path))
			}
		}

		recordWatchEvent(ctx, change.Op.String())
		w.publish(change)
	}
}

// publish fans one event out to subscribers without blocking.
func (w *Watcher) publish(event ChangeEvent) {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// dedupeChanges keeps the latest change per path, preserving order of first
// appearance.
func dedupeChanges(changes []ChangeEvent) []ChangeEvent {
	seen := make(map[string]int, len(changes))
	result := make([]ChangeEvent, 0, len(changes))
	for _, change := range changes {
		if idx, dup := seen[change.Path]; dup {
			result[idx] = change
			continue
		}
		seen[change.Path] = len(result)
		result = append(result, change)
	}
	return result
}

// convertOp maps fsnotify ops onto ChangeOps.
func convertOp(op fsnotify.Op) ChangeOp {
	switch {
	case op.Has(fsnotify.Create):
		return ChangeOpCreate
	case op.Has(fsnotify.Remove):
		return ChangeOpRemove
	case op.Has(fsnotify.Rename):
		return ChangeOpRename
	default:
		return ChangeOpWrite
	}
}
