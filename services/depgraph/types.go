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
	"github.com/AleutianAI/AleutianGraph/services/depgraph/builder"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/impact"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/provider"
)

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// BuildRequest describes a graph build seeded at a position in a file.
type BuildRequest struct {
	// File is the seed file, relative to the project root or absolute.
	File string `json:"file" binding:"required"`

	// Line and Col locate the seed symbol, 0-based in the tree-sitter
	// convention: line 0 is the first line of the file.
	Line int `json:"line" binding:"min=0"`
	Col  int `json:"col" binding:"min=0"`

	// Direction is up, down, or both. Empty uses the configured default.
	Direction string `json:"direction" binding:"omitempty,direction"`

	// MaxDepth bounds the traversal. Zero uses the configured default.
	MaxDepth int `json:"max_depth" binding:"omitempty,min=1,max=64"`

	// IncludeGraph inlines the full serialized graph in the response.
	// Large graphs make large responses; stats are always returned.
	IncludeGraph bool `json:"include_graph"`
}

// BuildResponse reports the outcome of a build.
type BuildResponse struct {
	GraphID string                   `json:"graph_id"`
	RootID  string                   `json:"root_id"`
	Stats   builder.Stats            `json:"stats"`
	Graph   *graph.SerializableGraph `json:"graph,omitempty"`
}

// ImplementationRequest asks for the concrete implementation behind an
// interface method at the given position.
type ImplementationRequest struct {
	File string `json:"file" binding:"required"`
	Line int    `json:"line" binding:"min=0"`
	Col  int    `json:"col" binding:"min=0"`

	// MaxDepth bounds the callee walk before the implementation search.
	// Zero means 1: resolve the seed and search from it directly.
	MaxDepth int `json:"max_depth" binding:"omitempty,min=1,max=64"`

	IncludeGraph bool `json:"include_graph"`
}

// ImplementationResponse reports whether an implementation was found and,
// when it was, the node that realizes the seed symbol.
type ImplementationResponse struct {
	GraphID          string                   `json:"graph_id"`
	RootID           string                   `json:"root_id"`
	Found            bool                     `json:"found"`
	ImplementationID string                   `json:"implementation_id,omitempty"`
	Symbol           string                   `json:"symbol,omitempty"`
	File             string                   `json:"file,omitempty"`
	Line             int                      `json:"line,omitempty"`
	Stats            builder.Stats            `json:"stats"`
	Graph            *graph.SerializableGraph `json:"graph,omitempty"`
}

// SaveSnapshotRequest persists a graph. All fields are optional: with a
// graph id the cached graph is saved; with a build block a fresh graph is
// built and saved; with neither the most recently built graph is saved.
type SaveSnapshotRequest struct {
	GraphID string        `json:"graph_id"`
	Label   string        `json:"label"`
	Build   *BuildRequest `json:"build"`
}

// SaveSnapshotResponse identifies the stored snapshot.
type SaveSnapshotResponse struct {
	SnapshotID     string `json:"snapshot_id"`
	RootID         string `json:"root_id"`
	GraphHash      string `json:"graph_hash"`
	NodeCount      int    `json:"node_count"`
	EdgeCount      int    `json:"edge_count"`
	CompressedSize int64  `json:"compressed_size"`
}

// ListSnapshotsResponse lists snapshot metadata, newest first.
type ListSnapshotsResponse struct {
	Snapshots []*graph.SnapshotMetadata `json:"snapshots"`
	Count     int                       `json:"count"`
}

// LoadSnapshotResponse returns a stored graph with its metadata.
type LoadSnapshotResponse struct {
	Metadata *graph.SnapshotMetadata  `json:"metadata"`
	Graph    *graph.SerializableGraph `json:"graph,omitempty"`
}

// SnapshotDiffResponse wraps a structural diff between two snapshots.
type SnapshotDiffResponse struct {
	Diff *graph.SnapshotDiff `json:"diff"`
}

// ImpactRequest asks which graph nodes a unified diff touches. The graph
// is resolved from SnapshotID, then GraphID, then the most recent build.
type ImpactRequest struct {
	Patch      string `json:"patch" binding:"required"`
	GraphID    string `json:"graph_id"`
	SnapshotID string `json:"snapshot_id"`
}

// ImpactResponse carries the impact report plus the graph it ran against.
type ImpactResponse struct {
	GraphID    string         `json:"graph_id,omitempty"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
	Report     *impact.Report `json:"report"`
}

// HealthResponse reports service liveness and subsystem availability.
type HealthResponse struct {
	Status           string `json:"status"`
	UptimeMilli      int64  `json:"uptime_milli"`
	GraphsCached     int    `json:"graphs_cached"`
	SnapshotsEnabled bool   `json:"snapshots_enabled"`
	Watching         bool   `json:"watching"`
}

// WatchMessage is one frame on the watch websocket. Action is
// "watch_started" on connect, "change" per filesystem event, and
// "watch_closed" when the watcher shuts down.
type WatchMessage struct {
	Action      string                `json:"action"`
	ProjectRoot string                `json:"project_root,omitempty"`
	Event       *provider.ChangeEvent `json:"event,omitempty"`
}
