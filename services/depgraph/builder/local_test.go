// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/provider"
)

const callerSource = `package main

func helper() int {
	return 1
}

func main() {
	helper()
}
`

const storageIfaceSource = `package main

type Storage interface {
	Save(key string) error
}
`

const storageImplSource = `package main

type diskStorage struct{}

func (d *diskStorage) Save(key string) error {
	return nil
}

var _ Storage = (*diskStorage)(nil)
`

func writeWorkspaceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newWorkspaceProvider(t *testing.T, dir string) *provider.LocalProvider {
	t.Helper()
	p, err := provider.NewLocalProvider(context.Background(), dir)
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	return p
}

func TestSession_BuildUpWithLocalProvider(t *testing.T) {
	dir := t.TempDir()
	mainPath := writeWorkspaceFile(t, dir, "main.go", callerSource)
	s := newTestSession(t, newWorkspaceProvider(t, dir))

	res, err := s.Build(context.Background(), mainPath, ast.Position{Line: 2, Col: 0}, 2, graph.DirectionUp)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if res.Graph.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (nodes %v)", res.Graph.Len(), res.Graph.Nodes())
	}

	helperID := graph.ComputeID(mainPath, 2, 0)
	callerID := graph.ComputeID(mainPath, 6, 0)
	helper, caller := res.Graph.Get(helperID), res.Graph.Get(callerID)
	if helper == nil || caller == nil {
		t.Fatalf("nodes: helper=%v caller=%v", helper, caller)
	}

	if helper.Symbol != "helper" || !helper.IsRoot {
		t.Errorf("root node: Symbol=%q IsRoot=%v", helper.Symbol, helper.IsRoot)
	}
	if caller.Symbol != "main" {
		t.Errorf("caller Symbol = %q, want main", caller.Symbol)
	}
	if caller.SourceText != "func main() {" {
		t.Errorf("caller SourceText = %q", caller.SourceText)
	}
	sameIDs(t, "helper.Parents", helper.Parents, callerID)
	sameIDs(t, "caller.Children", caller.Children, helperID)
}

const chainSource = `package main

func f() {
	g()
}

func g() {
	h()
}

func h() {}
`

const mutualSource = `package main

func f() {
	g()
}

func g() {
	f()
}
`

func TestSession_BuildChainDownWithLocalProvider(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkspaceFile(t, dir, "chain.go", chainSource)
	s := newTestSession(t, newWorkspaceProvider(t, dir))

	// Seed on the symbol name, not the declaration keyword; the position
	// must canonicalize to f's declaration before the id is computed.
	res, err := s.Build(context.Background(), path, ast.Position{Line: 2, Col: 5}, 3, graph.DirectionDown)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if res.Graph.Len() != 3 {
		t.Fatalf("Len = %d, want 3 (nodes %v)", res.Graph.Len(), res.Graph.Nodes())
	}

	fID := graph.ComputeID(path, 2, 0)
	gID := graph.ComputeID(path, 6, 0)
	hID := graph.ComputeID(path, 10, 0)
	f, g, h := res.Graph.Get(fID), res.Graph.Get(gID), res.Graph.Get(hID)
	if f == nil || g == nil || h == nil {
		t.Fatalf("nodes: f=%v g=%v h=%v", f, g, h)
	}
	if res.RootID != fID {
		t.Errorf("RootID = %s, want %s", res.RootID, fID)
	}

	sameIDs(t, "f.Children", f.Children, gID)
	sameIDs(t, "g.Children", g.Children, hID)
	sameIDs(t, "h.Children", h.Children)
}

func TestSession_BuildMutualRecursionWithLocalProvider(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkspaceFile(t, dir, "mutual.go", mutualSource)
	s := newTestSession(t, newWorkspaceProvider(t, dir))

	res, err := s.Build(context.Background(), path, ast.Position{Line: 2, Col: 5}, 5, graph.DirectionBoth)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Two functions calling each other collapse to exactly two nodes:
	// every call site canonicalizes to its enclosing declaration, so no
	// mention position ever becomes its own node.
	if res.Graph.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (nodes %v)", res.Graph.Len(), res.Graph.Nodes())
	}

	fID := graph.ComputeID(path, 2, 0)
	gID := graph.ComputeID(path, 6, 0)
	f, g := res.Graph.Get(fID), res.Graph.Get(gID)
	if f == nil || g == nil {
		t.Fatalf("nodes: f=%v g=%v", f, g)
	}

	sameIDs(t, "f.Children", f.Children, gID)
	sameIDs(t, "f.Parents", f.Parents, gID)
	sameIDs(t, "g.Children", g.Children, fID)
	sameIDs(t, "g.Parents", g.Parents, fID)
}

func TestSession_FindImplementationWithLocalProvider(t *testing.T) {
	dir := t.TempDir()
	ifacePath := writeWorkspaceFile(t, dir, "iface.go", storageIfaceSource)
	implPath := writeWorkspaceFile(t, dir, "impl.go", storageImplSource)
	s := newTestSession(t, newWorkspaceProvider(t, dir))

	res, err := s.Build(context.Background(), ifacePath, ast.Position{Line: 2, Col: 0}, 1, graph.DirectionDown)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ok, err := s.FindImplementation(context.Background(), res.RootID)
	if err != nil || !ok {
		t.Fatalf("FindImplementation = %v, %v, want true, nil", ok, err)
	}

	// The compile-time assertion "var _ Storage = ..." sits on line 8.
	implID := graph.ComputeID(implPath, 8, 0)
	impl := s.Graph().Get(implID)
	if impl == nil {
		t.Fatalf("implementation node missing, graph has %v", s.Graph().Nodes())
	}
	if !impl.IsImplementation || impl.Implements != res.RootID {
		t.Errorf("stamps: IsImplementation=%v Implements=%s", impl.IsImplementation, impl.Implements)
	}
	if impl.SourceText != "var _ Storage = (*diskStorage)(nil)" {
		t.Errorf("SourceText = %q", impl.SourceText)
	}
	sameIDs(t, "impl.Parents", impl.Parents, res.RootID)

	root := s.Graph().Get(res.RootID)
	found := false
	for _, id := range root.Children {
		if id == implID {
			found = true
		}
	}
	if !found {
		t.Errorf("root.Children = %v, missing %s", root.Children, implID)
	}
}
