// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package impact maps a unified diff onto a built dependency graph.
//
// A patch touches files at line granularity; the graph knows symbols at
// line granularity. Intersecting the two answers the review question "what
// does this change actually reach": the directly edited nodes, plus the
// ancestor closure of callers that transitively depend on them.
//
// # Ownership Model
//
// The Analyzer reads the graph and never mutates it. Reports are fresh
// values owned by the caller.
//
// # Thread Safety
//
// An Analyzer is stateless apart from its configuration and is safe for
// concurrent use. The graph passed to Analyze must not be mutated while the
// analysis runs; analyzing a snapshot-loaded or post-build graph satisfies
// this.
package impact

import "errors"

var (
	// ErrEmptyPatch is returned when Analyze receives an empty diff.
	ErrEmptyPatch = errors.New("patch is empty")

	// ErrMalformedPatch wraps unified-diff parse failures.
	ErrMalformedPatch = errors.New("malformed patch")
)
