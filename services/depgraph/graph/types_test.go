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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

func TestGraph_GetOrCreate_Idempotent(t *testing.T) {
	g := NewGraph()

	first, created := g.GetOrCreate("/src/a.go", ast.Position{Line: 10, Col: 2}, "handler", true)
	if !created {
		t.Fatal("first call should create the node")
	}
	if first.ID != "/src/a.go:10:2" {
		t.Errorf("unexpected id: %q", first.ID)
	}
	if first.File != "a.go" || first.FullPath != "/src/a.go" {
		t.Errorf("unexpected file fields: %q %q", first.File, first.FullPath)
	}
	if !first.IsRoot {
		t.Error("first claim sets IsRoot")
	}

	second, created := g.GetOrCreate("/src/a.go", ast.Position{Line: 10, Col: 2}, "renamed", false)
	if created {
		t.Error("second call must not create")
	}
	if second != first {
		t.Error("second call must return the same node")
	}
	if second.Symbol != "handler" || !second.IsRoot {
		t.Error("later calls must not overwrite the first claim")
	}

	if g.Len() != 1 {
		t.Errorf("expected 1 node, got %d", g.Len())
	}
}

func TestGraph_Connect_UpMakesDiscoveredNodeTheCaller(t *testing.T) {
	g := NewGraph()
	walked, _ := g.GetOrCreate("/src/a.go", ast.Position{Line: 5, Col: 0}, "callee", true)
	discovered, _ := g.GetOrCreate("/src/b.go", ast.Position{Line: 20, Col: 0}, "caller", false)

	// Walking up: the discovered node calls the node we walked from.
	if err := g.Connect(discovered.ID, walked.ID, DirectionUp); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if !discovered.HasChild(walked.ID) {
		t.Error("up: discovered node must gain the walked node as child")
	}
	if !walked.HasParent(discovered.ID) {
		t.Error("up: walked node must gain the discovered node as parent")
	}
	if discovered.HasParent(walked.ID) || walked.HasChild(discovered.ID) {
		t.Error("up: reverse links must not appear")
	}
}

func TestGraph_Connect_DownMakesDiscoveredNodeTheCallee(t *testing.T) {
	g := NewGraph()
	walked, _ := g.GetOrCreate("/src/a.go", ast.Position{Line: 5, Col: 0}, "caller", true)
	discovered, _ := g.GetOrCreate("/src/b.go", ast.Position{Line: 20, Col: 0}, "callee", false)

	if err := g.Connect(discovered.ID, walked.ID, DirectionDown); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if !discovered.HasParent(walked.ID) {
		t.Error("down: discovered node must gain the walked node as parent")
	}
	if !walked.HasChild(discovered.ID) {
		t.Error("down: walked node must gain the discovered node as child")
	}
}

func TestGraph_Connect_Idempotent(t *testing.T) {
	g := NewGraph()
	a, _ := g.GetOrCreate("/src/a.go", ast.Position{Line: 1, Col: 0}, "a", true)
	b, _ := g.GetOrCreate("/src/b.go", ast.Position{Line: 2, Col: 0}, "b", false)

	for i := 0; i < 3; i++ {
		if err := g.Connect(b.ID, a.ID, DirectionUp); err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
	}

	if len(b.Children) != 1 || len(a.Parents) != 1 {
		t.Errorf("expected single edge, got children=%v parents=%v", b.Children, a.Parents)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("expected edge count 1, got %d", g.EdgeCount())
	}
}

func TestGraph_Connect_SelfEdgeIsNoOp(t *testing.T) {
	g := NewGraph()
	a, _ := g.GetOrCreate("/src/a.go", ast.Position{Line: 1, Col: 0}, "a", true)

	if err := g.Connect(a.ID, a.ID, DirectionUp); err != nil {
		t.Fatalf("self edge should be silently ignored, got %v", err)
	}
	if len(a.Children) != 0 || len(a.Parents) != 0 {
		t.Error("self edge must not create links")
	}
}

func TestGraph_Connect_UnknownID(t *testing.T) {
	g := NewGraph()
	a, _ := g.GetOrCreate("/src/a.go", ast.Position{Line: 1, Col: 0}, "a", true)

	err := g.Connect(a.ID, "/src/missing.go:1:0", DirectionUp)
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestGraph_Connect_RejectsBoth(t *testing.T) {
	g := NewGraph()
	a, _ := g.GetOrCreate("/src/a.go", ast.Position{Line: 1, Col: 0}, "a", true)
	b, _ := g.GetOrCreate("/src/b.go", ast.Position{Line: 2, Col: 0}, "b", false)

	err := g.Connect(a.ID, b.ID, DirectionBoth)
	if !errors.Is(err, ErrUnknownDirection) {
		t.Errorf("expected ErrUnknownDirection for edge direction 'both', got %v", err)
	}
}

func TestGraph_MutualRecursionStaysTwoNodes(t *testing.T) {
	g := NewGraph()
	f, _ := g.GetOrCreate("/src/m.go", ast.Position{Line: 3, Col: 0}, "ping", true)
	h, _ := g.GetOrCreate("/src/m.go", ast.Position{Line: 9, Col: 0}, "pong", false)

	// ping calls pong, pong calls ping; re-walking must not grow the graph.
	if err := g.Connect(h.ID, f.ID, DirectionDown); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(f.ID, h.ID, DirectionDown); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(h.ID, f.ID, DirectionDown); err != nil {
		t.Fatal(err)
	}

	if g.Len() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.Len())
	}
	if len(f.Children) != 1 || len(h.Children) != 1 {
		t.Errorf("each node calls the other exactly once: f=%v h=%v", f.Children, h.Children)
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
}

func TestParseDirection(t *testing.T) {
	cases := []struct {
		in   string
		want Direction
		ok   bool
	}{
		{"up", DirectionUp, true},
		{"UP", DirectionUp, true},
		{"callers", DirectionUp, true},
		{"down", DirectionDown, true},
		{"descendants", DirectionDown, true},
		{"both", DirectionBoth, true},
		{"", DirectionBoth, true},
		{"sideways", DirectionBoth, false},
	}

	for _, tc := range cases {
		got, err := ParseDirection(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParseDirection(%q): unexpected error %v", tc.in, err)
			continue
		}
		if !tc.ok && !errors.Is(err, ErrUnknownDirection) {
			t.Errorf("ParseDirection(%q): expected ErrUnknownDirection, got %v", tc.in, err)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParseDirection(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestNode_RecordVariable_Dedup(t *testing.T) {
	n := &Node{ID: "x"}

	if !n.RecordVariable(VariableRef{Name: "conn", Line: 4, Col: 1, IsCall: false}) {
		t.Error("first record should succeed")
	}
	if n.RecordVariable(VariableRef{Name: "conn", Line: 9, Col: 5, IsCall: false}) {
		t.Error("same (name, is_call) must dedup")
	}
	// Same name as a call is a distinct observation.
	if !n.RecordVariable(VariableRef{Name: "conn", Line: 9, Col: 5, IsCall: true}) {
		t.Error("call-site record with same name should succeed")
	}
	if len(n.VariablesUsed) != 2 {
		t.Errorf("expected 2 refs, got %d", len(n.VariablesUsed))
	}
}

func TestGraph_Indexes(t *testing.T) {
	g := NewGraph()
	g.GetOrCreate("/src/a.go", ast.Position{Line: 1, Col: 0}, "setup", true)
	g.GetOrCreate("/src/b.go", ast.Position{Line: 2, Col: 0}, "setup", false)
	g.GetOrCreate("/src/a.go", ast.Position{Line: 8, Col: 0}, "run", false)

	byName := g.NodesByName("setup")
	if len(byName) != 2 {
		t.Errorf("expected 2 'setup' nodes, got %d", len(byName))
	}

	byFile := g.NodesByFile("/src/a.go")
	if len(byFile) != 2 {
		t.Errorf("expected 2 nodes in a.go, got %d", len(byFile))
	}

	// Returned slices are copies; mutating them must not corrupt the index.
	byFile[0] = nil
	if again := g.NodesByFile("/src/a.go"); again[0] == nil {
		t.Error("NodesByFile must return a defensive copy")
	}

	root := g.Root()
	if root == nil || root.Symbol != "setup" || !root.IsRoot {
		t.Errorf("unexpected root: %+v", root)
	}
}

func TestGraph_NodesSortedByID(t *testing.T) {
	g := NewGraph()
	g.GetOrCreate("/src/z.go", ast.Position{Line: 1, Col: 0}, "z", false)
	g.GetOrCreate("/src/a.go", ast.Position{Line: 1, Col: 0}, "a", true)

	nodes := g.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].ID > nodes[1].ID {
		t.Error("Nodes() must return ids in sorted order")
	}
}
