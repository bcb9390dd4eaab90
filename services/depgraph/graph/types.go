// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the dependency graph built by a traversal session:
// nodes keyed by position-derived ids, bidirectional caller/callee edges,
// and the visit cache that keeps cyclic code from looping the walker.
//
// Coordinate Convention: lines and columns are 0-based internally.
// DisplayLine/DisplayColumn convert at presentation boundaries.
//
// Thread Safety: a Graph belongs to one traversal session and is not safe
// for concurrent use. Snapshot and serialization operate on graphs that are
// no longer being mutated.
package graph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

// NodeID uniquely identifies a node by its defining position.
// See ComputeID for the format.
type NodeID = string

// Direction selects which way a traversal walks from a node.
type Direction int

const (
	// DirectionUp walks toward callers (ancestors).
	DirectionUp Direction = iota

	// DirectionDown walks toward callees (descendants).
	DirectionDown

	// DirectionBoth walks both ways from the seed.
	DirectionBoth
)

var directionNames = map[Direction]string{
	DirectionUp:   "up",
	DirectionDown: "down",
	DirectionBoth: "both",
}

// String returns the lowercase direction name.
func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection converts a string to a Direction. Matching is
// case-insensitive; the empty string defaults to DirectionBoth.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "callers", "ancestors":
		return DirectionUp, nil
	case "down", "callees", "descendants":
		return DirectionDown, nil
	case "both", "":
		return DirectionBoth, nil
	default:
		return DirectionBoth, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
}

// VariableRef records one variable or call observed in a node's local scope.
type VariableRef struct {
	// Name is the referenced identifier.
	Name string `json:"name"`

	// Line and Col locate the reference (0-based).
	Line int `json:"line"`
	Col  int `json:"col"`

	// IsCall is true when the reference is a call site.
	IsCall bool `json:"is_call"`

	// Definition points at the node for the definition when it resolved.
	// Nil for unresolved references, which are still worth recording.
	Definition *NodeID `json:"definition,omitempty"`
}

// NodeExtra carries optional capability data attached by detectors. The
// traversal core never reads it.
type NodeExtra struct {
	// IsComponent marks UI component symbols (.jsx/.tsx).
	IsComponent bool `json:"is_component,omitempty"`

	// Props lists component prop names when the detector extracted them.
	Props []string `json:"props,omitempty"`
}

// Node is one symbol occurrence in the dependency graph.
//
// Edges are NodeID references rather than pointers so cyclic call structures
// carry no ownership cycles and serialize flat.
type Node struct {
	// ID is the position-derived identity (ComputeID).
	ID NodeID `json:"id"`

	// Symbol is the identifier name at this position.
	Symbol string `json:"symbol"`

	// File is the basename; FullPath the absolute path.
	File     string `json:"file"`
	FullPath string `json:"full_path"`

	// Line and Col are the defining position (0-based).
	Line int `json:"line"`
	Col  int `json:"col"`

	// Children are ids this node calls or uses.
	Children []NodeID `json:"children"`

	// Parents are ids that call or use this node.
	Parents []NodeID `json:"parents"`

	// IsRoot is true only for the session seed.
	IsRoot bool `json:"is_root"`

	// IsImplementation marks a node discovered by implementation search;
	// Implements names the interface-ish node it satisfies.
	IsImplementation bool   `json:"is_implementation,omitempty"`
	Implements       NodeID `json:"implements,omitempty"`

	// VariablesUsed lists locals and calls observed in this node's scope,
	// deduplicated by (Name, IsCall).
	VariablesUsed []VariableRef `json:"variables_used,omitempty"`

	// SourceText and DocComment are best-effort cosmetic extractions.
	SourceText string `json:"source_text,omitempty"`
	DocComment string `json:"doc_comment,omitempty"`

	// Extra holds optional capability data (component props).
	Extra *NodeExtra `json:"extra,omitempty"`
}

// DisplayLine returns the 1-based line for presentation.
func (n *Node) DisplayLine() int { return n.Line + 1 }

// DisplayColumn returns the 1-based column for presentation.
func (n *Node) DisplayColumn() int { return n.Col + 1 }

// RecordVariable appends ref unless a reference with the same (Name, IsCall)
// was already recorded. Returns true when the ref was added.
func (n *Node) RecordVariable(ref VariableRef) bool {
	for _, existing := range n.VariablesUsed {
		if existing.Name == ref.Name && existing.IsCall == ref.IsCall {
			return false
		}
	}
	n.VariablesUsed = append(n.VariablesUsed, ref)
	return true
}

// HasChild reports whether id is already a child of n.
func (n *Node) HasChild(id NodeID) bool { return containsID(n.Children, id) }

// HasParent reports whether id is already a parent of n.
func (n *Node) HasParent(id NodeID) bool { return containsID(n.Parents, id) }

func containsID(ids []NodeID, id NodeID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// Graph is the arena of nodes for one traversal session.
type Graph struct {
	// Session stamp, filled in by the builder when a traversal finishes.
	RootID         NodeID
	BuildDirection Direction
	MaxDepth       int
	BuiltAtMilli   int64

	nodes map[NodeID]*Node

	// Secondary indexes for presentation queries. Maintained on create;
	// nodes are never deleted during a session.
	byName map[string][]*Node
	byFile map[string][]*Node

	// edgeCount tracks distinct directed child links.
	edgeCount int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:  make(map[NodeID]*Node),
		byName: make(map[string][]*Node),
		byFile: make(map[string][]*Node),
	}
}

// GetOrCreate returns the node for (fullPath, pos), creating it on first
// sight. The second return is true when the node was created. An existing
// node is returned unchanged: symbol and isRoot from later calls never
// overwrite the first claim.
func (g *Graph) GetOrCreate(fullPath string, pos ast.Position, symbol string, isRoot bool) (*Node, bool) {
	id := ComputeID(fullPath, pos.Line, pos.Col)
	if existing, ok := g.nodes[id]; ok {
		return existing, false
	}

	node := &Node{
		ID:       id,
		Symbol:   symbol,
		File:     filepath.Base(fullPath),
		FullPath: fullPath,
		Line:     pos.Line,
		Col:      pos.Col,
		Children: make([]NodeID, 0, 4),
		Parents:  make([]NodeID, 0, 2),
		IsRoot:   isRoot,
	}
	g.nodes[id] = node
	g.byName[symbol] = append(g.byName[symbol], node)
	g.byFile[fullPath] = append(g.byFile[fullPath], node)
	return node, true
}

// Connect wires node and other according to the traversal direction:
//
//	DirectionUp:   node.Children += other; other.Parents += node
//	DirectionDown: node.Parents += other; other.Children += node
//
// Walking up, "node" is the newly discovered caller and "other" the node
// walked from, so the caller gains a child. Walking down the discovered
// callee gains a parent. Insertion is idempotent; self-edges are silent
// no-ops; unknown ids return ErrNodeNotFound.
func (g *Graph) Connect(nodeID, otherID NodeID, dir Direction) error {
	if nodeID == otherID {
		return nil
	}
	node, ok := g.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	other, ok := g.nodes[otherID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, otherID)
	}

	switch dir {
	case DirectionUp:
		g.link(node, other)
	case DirectionDown:
		g.link(other, node)
	default:
		return fmt.Errorf("%w: connect requires up or down, got %s", ErrUnknownDirection, dir)
	}
	return nil
}

// link makes child a Child of parent and parent a Parent of child, skipping
// sides that already exist so re-walks never duplicate edges.
func (g *Graph) link(parent, child *Node) {
	added := false
	if !parent.HasChild(child.ID) {
		parent.Children = append(parent.Children, child.ID)
		added = true
	}
	if !child.HasParent(parent.ID) {
		child.Parents = append(child.Parents, parent.ID)
	}
	if added {
		g.edgeCount++
	}
}

// Get returns the node for id, or nil when absent.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of distinct directed child links.
func (g *Graph) EdgeCount() int { return g.edgeCount }

// Nodes returns all nodes sorted by id. The slice is fresh; the nodes are
// the live ones.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodesByName returns the nodes carrying the given symbol name.
func (g *Graph) NodesByName(name string) []*Node {
	found := g.byName[name]
	out := make([]*Node, len(found))
	copy(out, found)
	return out
}

// NodesByFile returns the nodes defined in the given absolute path.
func (g *Graph) NodesByFile(fullPath string) []*Node {
	found := g.byFile[fullPath]
	out := make([]*Node, len(found))
	copy(out, found)
	return out
}

// Root returns the seed node, or nil when the graph has none yet.
func (g *Graph) Root() *Node {
	for _, node := range g.nodes {
		if node.IsRoot {
			return node
		}
	}
	return nil
}
