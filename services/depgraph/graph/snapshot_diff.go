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
	"fmt"
	"sort"
)

// SnapshotDiff describes the differences between two graph snapshots.
//
// Node ids encode file:line:col, so a symbol that moved shows up as a
// removal plus an addition rather than a modification.
type SnapshotDiff struct {
	// BaseSnapshotID and TargetSnapshotID label the compared snapshots.
	BaseSnapshotID   string `json:"base_snapshot_id"`
	TargetSnapshotID string `json:"target_snapshot_id"`

	// NodesAdded are ids present in target but not in base.
	NodesAdded []string `json:"nodes_added"`

	// NodesRemoved are ids present in base but not in target.
	NodesRemoved []string `json:"nodes_removed"`

	// NodesModified are same-id nodes whose content changed.
	NodesModified []NodeDiff `json:"nodes_modified"`

	// EdgesAdded and EdgesRemoved count directed child-link changes.
	EdgesAdded   int `json:"edges_added"`
	EdgesRemoved int `json:"edges_removed"`

	// Summary aggregates the change counts.
	Summary DiffSummary `json:"summary"`
}

// NodeDiff describes how one node changed between snapshots.
type NodeDiff struct {
	// NodeID is the shared node id.
	NodeID string `json:"node_id"`

	// Symbol is the target-side identifier name.
	Symbol string `json:"symbol"`

	// ChangeType is one of "symbol_renamed", "source_changed",
	// "edges_changed", "implementation_changed".
	ChangeType string `json:"change_type"`
}

// DiffSummary aggregates statistics about a diff.
type DiffSummary struct {
	// TotalChanges counts added + removed + modified nodes + edge deltas.
	TotalChanges int `json:"total_changes"`

	// FilesAffected is the number of distinct files touched.
	FilesAffected int `json:"files_affected"`

	// ChangeRatio is changed nodes over the larger graph's node count.
	ChangeRatio float64 `json:"change_ratio"`
}

// DiffSnapshots compares two graphs, typically loaded from snapshots.
// Output ordering is deterministic.
func DiffSnapshots(base, target *Graph, baseSnapshotID, targetSnapshotID string) (*SnapshotDiff, error) {
	if base == nil || target == nil {
		return nil, fmt.Errorf("%w: both graphs required for diff", ErrNilGraph)
	}

	diff := &SnapshotDiff{
		BaseSnapshotID:   baseSnapshotID,
		TargetSnapshotID: targetSnapshotID,
		NodesAdded:       []string{},
		NodesRemoved:     []string{},
		NodesModified:    []NodeDiff{},
	}

	affectedFiles := make(map[string]bool)

	for id, tNode := range target.nodes {
		bNode, exists := base.nodes[id]
		if !exists {
			diff.NodesAdded = append(diff.NodesAdded, id)
			affectedFiles[tNode.FullPath] = true
			continue
		}
		if changeType, changed := classifyNodeChange(bNode, tNode); changed {
			affectedFiles[tNode.FullPath] = true
			diff.NodesModified = append(diff.NodesModified, NodeDiff{
				NodeID:     id,
				Symbol:     tNode.Symbol,
				ChangeType: changeType,
			})
		}
	}

	for id, bNode := range base.nodes {
		if _, exists := target.nodes[id]; !exists {
			diff.NodesRemoved = append(diff.NodesRemoved, id)
			affectedFiles[bNode.FullPath] = true
		}
	}

	sort.Strings(diff.NodesAdded)
	sort.Strings(diff.NodesRemoved)
	sort.Slice(diff.NodesModified, func(i, j int) bool {
		return diff.NodesModified[i].NodeID < diff.NodesModified[j].NodeID
	})

	baseEdges := childEdgeSet(base)
	targetEdges := childEdgeSet(target)
	for key := range targetEdges {
		if !baseEdges[key] {
			diff.EdgesAdded++
		}
	}
	for key := range baseEdges {
		if !targetEdges[key] {
			diff.EdgesRemoved++
		}
	}

	totalNodes := len(base.nodes)
	if len(target.nodes) > totalNodes {
		totalNodes = len(target.nodes)
	}
	changeRatio := 0.0
	if totalNodes > 0 {
		changedNodes := len(diff.NodesAdded) + len(diff.NodesRemoved) + len(diff.NodesModified)
		changeRatio = float64(changedNodes) / float64(totalNodes)
	}

	diff.Summary = DiffSummary{
		TotalChanges:  len(diff.NodesAdded) + len(diff.NodesRemoved) + len(diff.NodesModified) + diff.EdgesAdded + diff.EdgesRemoved,
		FilesAffected: len(affectedFiles),
		ChangeRatio:   changeRatio,
	}
	return diff, nil
}

// classifyNodeChange compares two same-id nodes. Renames win over source
// changes, source changes over edge-count changes.
func classifyNodeChange(base, target *Node) (string, bool) {
	if base.Symbol != target.Symbol {
		return "symbol_renamed", true
	}
	if base.SourceText != target.SourceText {
		return "source_changed", true
	}
	if base.IsImplementation != target.IsImplementation || base.Implements != target.Implements {
		return "implementation_changed", true
	}
	if len(base.Children) != len(target.Children) || len(base.Parents) != len(target.Parents) {
		return "edges_changed", true
	}
	return "", false
}

// childEdgeSet flattens a graph's child links to "from>to" keys.
func childEdgeSet(g *Graph) map[string]bool {
	set := make(map[string]bool, g.edgeCount)
	for id, node := range g.nodes {
		for _, child := range node.Children {
			set[id+">"+child] = true
		}
	}
	return set
}
