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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ComputeID derives the canonical node id for a position:
// "<absolute_file_path>:<line>:<col>" with 0-based coordinates.
//
// The function is pure and injective for distinct (path, line, col) inputs:
// paths may contain ':' themselves, but the two numeric suffixes are
// fixed-arity, so splitting on the last two colons always recovers the
// original triple. The id doubles as the cycle-detection key, so two
// distinct positions mapping to one id would silently merge their subtrees.
func ComputeID(absPath string, line, col int) NodeID {
	return fmt.Sprintf("%s:%d:%d", absPath, line, col)
}

// PositionKey builds the visit-cache key for a positional probe.
func PositionKey(id NodeID, dir Direction, depth int) string {
	return fmt.Sprintf("%s|%s|%d", id, dir, depth)
}

// SymbolKey builds the visit-cache key for a symbolic probe: a name being
// chased inside a context node before its own position is known.
func SymbolKey(name string, contextID NodeID) string {
	return name + "|" + contextID
}

// VisitCache remembers which probes a traversal has already made. Marking a
// position before recursing into it is what keeps self-referential and
// mutually recursive code from looping the walker.
//
// Thread Safety: owned by one traversal session; not safe for concurrent use.
type VisitCache struct {
	seen map[string]struct{}

	// claims maps node id to the first (path, line, col) that claimed it,
	// used to detect distinct positions colliding on one id.
	claims map[NodeID]string

	collisions int
}

// NewVisitCache returns an empty cache.
func NewVisitCache() *VisitCache {
	return &VisitCache{
		seen:   make(map[string]struct{}),
		claims: make(map[NodeID]string),
	}
}

// Seen reports whether key was marked before.
func (c *VisitCache) Seen(key string) bool {
	_, ok := c.seen[key]
	return ok
}

// MarkSeen records key. Marking an already-seen key is harmless.
func (c *VisitCache) MarkSeen(key string) {
	c.seen[key] = struct{}{}
}

// RecordID registers that (absPath, line, col) claims id. It returns false
// when a different position already claimed the same id; that is the one
// defect class worth surfacing during a traversal, so it logs at Warn and
// bumps the collision counter.
func (c *VisitCache) RecordID(ctx context.Context, id NodeID, absPath string, line, col int) bool {
	claim := fmt.Sprintf("%s|%d|%d", absPath, line, col)
	if prev, ok := c.claims[id]; ok {
		if prev == claim {
			return true
		}
		c.collisions++
		slog.Warn("node id claimed by two distinct positions",
			slog.String("id", id),
			slog.String("first", prev),
			slog.String("second", claim))
		initMetrics()
		if identityCollisions != nil {
			identityCollisions.Add(ctx, 1, metric.WithAttributes(
				attribute.String("id", id)))
		}
		return false
	}
	c.claims[id] = claim
	return true
}

// Collisions returns how many distinct-position id collisions were recorded.
func (c *VisitCache) Collisions() int { return c.collisions }

// Size returns the number of marked keys.
func (c *VisitCache) Size() int { return len(c.seen) }
