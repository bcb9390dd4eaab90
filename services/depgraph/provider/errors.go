// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package provider supplies source analysis to the tree builder: symbol
// resolution at a position, reference and definition locations, cached file
// reads, and optional raw parse trees.
//
// # Ownership Model
//
// A LocalProvider owns its symbol index, file cache, and parse-tree cache.
// The watcher, when started, writes back into those through ReplaceFile and
// Invalidate; nothing else mutates them after the construction-time scan.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. A single provider serves
// any number of concurrent traversal sessions.
//
// # Lifecycle
//
// NewLocalProvider scans the workspace synchronously; the returned provider
// is immediately usable. The optional Watcher runs until Stop or context
// cancellation, after which Subscribe channels are closed.
package provider

import "errors"

var (
	// ErrFileTooLarge is returned when a file exceeds the cache's
	// per-file size cap.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrProjectTooLarge aborts the workspace scan when the file-count or
	// total-size cap is hit.
	ErrProjectTooLarge = errors.New("project exceeds scan limits")

	// ErrNotDirectory is returned when the project root does not exist or
	// is not a directory.
	ErrNotDirectory = errors.New("project root is not a directory")

	// ErrWatcherClosed is returned by watcher operations after Stop.
	ErrWatcherClosed = errors.New("watcher is closed")
)
