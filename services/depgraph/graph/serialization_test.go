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
	"encoding/json"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

// buildTestGraph wires root -> helper -> leaf with the root calling both.
func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	root, _ := g.GetOrCreate("/src/main.go", ast.Position{Line: 3, Col: 0}, "main", true)
	helper, _ := g.GetOrCreate("/src/util.go", ast.Position{Line: 10, Col: 0}, "helper", false)
	leaf, _ := g.GetOrCreate("/src/util.go", ast.Position{Line: 30, Col: 0}, "leaf", false)

	if err := g.Connect(helper.ID, root.ID, DirectionDown); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(leaf.ID, helper.ID, DirectionDown); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(leaf.ID, root.ID, DirectionDown); err != nil {
		t.Fatal(err)
	}

	g.RootID = root.ID
	g.BuildDirection = DirectionDown
	g.MaxDepth = 5
	g.BuiltAtMilli = 1700000000000
	return g
}

func TestGraph_Hash_Deterministic(t *testing.T) {
	g1 := buildTestGraph(t)
	g2 := buildTestGraph(t)

	if g1.Hash() != g2.Hash() {
		t.Error("identical structures must hash identically")
	}

	// Adding an edge changes the hash.
	before := g1.Hash()
	leaf := g1.Get("/src/util.go:30:0")
	extra, _ := g1.GetOrCreate("/src/extra.go", ast.Position{Line: 1, Col: 0}, "extra", false)
	if err := g1.Connect(extra.ID, leaf.ID, DirectionDown); err != nil {
		t.Fatal(err)
	}
	if g1.Hash() == before {
		t.Error("structural change must change the hash")
	}
}

func TestGraph_SerializationRoundTrip(t *testing.T) {
	g := buildTestGraph(t)
	sg := g.ToSerializable()

	if sg.SchemaVersion != GraphSchemaVersion {
		t.Errorf("unexpected schema version %q", sg.SchemaVersion)
	}
	if sg.RootID != g.RootID || sg.Direction != "down" || sg.MaxDepth != 5 {
		t.Errorf("session stamp not carried: %+v", sg)
	}
	if len(sg.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(sg.Nodes))
	}

	// Through JSON and back.
	data, err := json.Marshal(sg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded SerializableGraph
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored, err := FromSerializable(&decoded)
	if err != nil {
		t.Fatalf("FromSerializable: %v", err)
	}

	if restored.Len() != g.Len() {
		t.Errorf("node count changed: %d vs %d", restored.Len(), g.Len())
	}
	if restored.EdgeCount() != g.EdgeCount() {
		t.Errorf("edge count changed: %d vs %d", restored.EdgeCount(), g.EdgeCount())
	}
	if restored.Hash() != g.Hash() {
		t.Error("hash must survive the round trip")
	}
	if restored.RootID != g.RootID || restored.BuildDirection != g.BuildDirection {
		t.Error("session stamp must survive the round trip")
	}

	root := restored.Get(g.RootID)
	if root == nil || !root.IsRoot {
		t.Fatal("root node lost in round trip")
	}
	if len(root.Children) != 2 {
		t.Errorf("root children lost: %v", root.Children)
	}

	// Indexes are rebuilt.
	if len(restored.NodesByFile("/src/util.go")) != 2 {
		t.Error("byFile index not rebuilt")
	}
	if len(restored.NodesByName("helper")) != 1 {
		t.Error("byName index not rebuilt")
	}
}

func TestFromSerializable_RejectsBadInput(t *testing.T) {
	if _, err := FromSerializable(nil); !errors.Is(err, ErrNilGraph) {
		t.Errorf("nil input: expected ErrNilGraph, got %v", err)
	}

	if _, err := FromSerializable(&SerializableGraph{SchemaVersion: "9.9"}); !errors.Is(err, ErrSchemaVersion) {
		t.Errorf("bad schema: expected ErrSchemaVersion, got %v", err)
	}

	dangling := &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		Nodes: []*Node{
			{ID: "/a.go:1:0", Symbol: "a", FullPath: "/a.go", Children: []NodeID{"/missing.go:0:0"}},
		},
	}
	if _, err := FromSerializable(dangling); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("dangling child: expected ErrNodeNotFound, got %v", err)
	}
}

func TestFromSerializable_RepairsOneSidedLinks(t *testing.T) {
	sg := &SerializableGraph{
		SchemaVersion: GraphSchemaVersion,
		Nodes: []*Node{
			{ID: "/a.go:1:0", Symbol: "a", FullPath: "/a.go", Children: []NodeID{"/b.go:2:0"}},
			{ID: "/b.go:2:0", Symbol: "b", FullPath: "/b.go"}, // missing mirror parent
		},
	}

	g, err := FromSerializable(sg)
	if err != nil {
		t.Fatalf("FromSerializable: %v", err)
	}
	b := g.Get("/b.go:2:0")
	if !b.HasParent("/a.go:1:0") {
		t.Error("one-sided child link must be mirrored on load")
	}
}
