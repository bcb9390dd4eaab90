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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// GraphSchemaVersion is the serialization schema version. Increment on
// breaking format changes.
const GraphSchemaVersion = "1.0"

// SerializableGraph is the JSON form of a Graph. Nodes are sorted by id so
// output is deterministic and diffable; adjacency is embedded in the nodes,
// so no separate edge list is needed.
type SerializableGraph struct {
	// SchemaVersion identifies the serialization format.
	SchemaVersion string `json:"schema_version"`

	// RootID is the session seed node id.
	RootID NodeID `json:"root_id"`

	// Direction and MaxDepth echo the build request.
	Direction string `json:"direction"`
	MaxDepth  int    `json:"max_depth"`

	// BuiltAtMilli is when the traversal finished (Unix milliseconds).
	BuiltAtMilli int64 `json:"built_at_milli"`

	// GraphHash is the deterministic structural hash.
	GraphHash string `json:"graph_hash"`

	// Nodes, sorted by id.
	Nodes []*Node `json:"nodes"`
}

// Hash returns the deterministic structural hash: SHA-256 over the sorted
// node ids and sorted parent>child pairs. Cosmetic fields (source text, doc
// comments, variables) do not contribute, so reformatting a file without
// moving symbols keeps the hash stable.
func (g *Graph) Hash() string {
	if g == nil {
		return ""
	}

	lines := make([]string, 0, len(g.nodes)*2)
	for id, node := range g.nodes {
		lines = append(lines, "n:"+id)
		for _, child := range node.Children {
			lines = append(lines, "e:"+id+">"+child)
		}
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ToSerializable converts the graph to its JSON form. Never returns nil.
func (g *Graph) ToSerializable() *SerializableGraph {
	if g == nil {
		return &SerializableGraph{
			SchemaVersion: GraphSchemaVersion,
			Nodes:         []*Node{},
		}
	}

	return &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		RootID:        g.RootID,
		Direction:     g.BuildDirection.String(),
		MaxDepth:      g.MaxDepth,
		BuiltAtMilli:  g.BuiltAtMilli,
		GraphHash:     g.Hash(),
		Nodes:         g.Nodes(),
	}
}

// FromSerializable reconstructs a Graph, rebuilding the secondary indexes
// and repairing any one-sided adjacency (a child link whose mirror parent
// link is missing, or vice versa).
func FromSerializable(sg *SerializableGraph) (*Graph, error) {
	if sg == nil {
		return nil, fmt.Errorf("%w: serializable graph is nil", ErrNilGraph)
	}
	if sg.SchemaVersion != GraphSchemaVersion {
		return nil, fmt.Errorf("%w: %q (expected %q)", ErrSchemaVersion, sg.SchemaVersion, GraphSchemaVersion)
	}

	g := NewGraph()
	g.RootID = sg.RootID
	g.MaxDepth = sg.MaxDepth
	g.BuiltAtMilli = sg.BuiltAtMilli
	if dir, err := ParseDirection(sg.Direction); err == nil {
		g.BuildDirection = dir
	}

	for i, node := range sg.Nodes {
		if node == nil {
			return nil, fmt.Errorf("node at index %d is nil", i)
		}
		if node.ID == "" {
			return nil, fmt.Errorf("node at index %d has empty id", i)
		}
		if _, exists := g.nodes[node.ID]; exists {
			return nil, fmt.Errorf("duplicate node id %s at index %d", node.ID, i)
		}
		g.nodes[node.ID] = node
		g.byName[node.Symbol] = append(g.byName[node.Symbol], node)
		g.byFile[node.FullPath] = append(g.byFile[node.FullPath], node)
	}

	// Validate references and repair one-sided links.
	for _, node := range g.nodes {
		for _, childID := range node.Children {
			child, ok := g.nodes[childID]
			if !ok {
				return nil, fmt.Errorf("%w: node %s references child %s", ErrNodeNotFound, node.ID, childID)
			}
			if !child.HasParent(node.ID) {
				child.Parents = append(child.Parents, node.ID)
			}
			g.edgeCount++
		}
		for _, parentID := range node.Parents {
			parent, ok := g.nodes[parentID]
			if !ok {
				return nil, fmt.Errorf("%w: node %s references parent %s", ErrNodeNotFound, node.ID, parentID)
			}
			if !parent.HasChild(node.ID) {
				parent.Children = append(parent.Children, node.ID)
				g.edgeCount++
			}
		}
	}

	return g, nil
}

// Summary returns a one-line description for logs and CLI output.
func (sg *SerializableGraph) Summary() string {
	if sg == nil {
		return "<nil graph>"
	}
	edges := 0
	for _, node := range sg.Nodes {
		edges += len(node.Children)
	}
	root := sg.RootID
	if idx := strings.LastIndex(root, "/"); idx >= 0 {
		root = root[idx+1:]
	}
	return fmt.Sprintf("%d nodes, %d edges, root %s, direction %s, depth %d",
		len(sg.Nodes), edges, root, sg.Direction, sg.MaxDepth)
}
