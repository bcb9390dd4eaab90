// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package depgraph exposes the dependency graph engine over HTTP.
//
// The service owns one workspace (a LocalProvider over the project root)
// and runs a fresh builder session per build request. Built graphs are
// cached in memory so follow-up operations — snapshot saves, impact
// analysis — can reference them by graph id without rebuilding; the cache
// is bounded and evicts oldest-first. Snapshot persistence and the file
// watcher are optional subsystems: when not configured, their endpoints
// answer 503 rather than failing at startup.
//
// # Ownership Model
//
// The Service owns the provider, the snapshot store's badger handle, and
// the watcher. Handlers borrow them; Close releases them.
//
// # Thread Safety
//
// All handlers are safe for concurrent use. The graph cache is guarded by
// an RWMutex; cached graphs are treated as read-only after the build that
// produced them, except for implementation expansion which runs on the
// session that owns the graph.
package depgraph

import "errors"

var (
	// ErrGraphNotFound is returned when a graph id is not in the cache.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrNoGraphs is returned when an operation needs a cached graph and
	// none has been built yet.
	ErrNoGraphs = errors.New("no graphs cached")
)
