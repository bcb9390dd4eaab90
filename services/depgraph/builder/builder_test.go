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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/provider"
)

// declPos is where funcLines places every declaration.
var declPos = ast.Position{Line: 2, Col: 5}

// funcLines renders a single-function source file: the declaration sits on
// line 2 and each callee occupies one body line starting at line 3.
func funcLines(name string, callees ...string) []string {
	lines := []string{"package main", "", "func " + name + "() {"}
	for _, callee := range callees {
		lines = append(lines, "\t"+callee+"()")
	}
	return append(lines, "}")
}

func lineKey(file string, line int) string {
	return fmt.Sprintf("%s:%d", file, line)
}

func declLoc(file string) ast.Location {
	return ast.Location{
		FilePath: file,
		Start:    declPos,
		End:      ast.Position{Line: declPos.Line, Col: declPos.Col + 1},
	}
}

func declID(file string) graph.NodeID {
	return graph.ComputeID(file, declPos.Line, declPos.Col)
}

// fakeProvider scripts answers by (file, line), ignoring columns. Missing
// entries degrade to "unknown", which is the provider contract.
type fakeProvider struct {
	files   map[string][]string
	symbols map[string]string
	refs    map[string][]ast.Location
	defs    map[string][]ast.Location
}

func (p *fakeProvider) SymbolAt(_ context.Context, file string, pos ast.Position) (string, bool) {
	name, ok := p.symbols[lineKey(file, pos.Line)]
	return name, ok && name != ""
}

func (p *fakeProvider) References(_ context.Context, file string, pos ast.Position) []ast.Location {
	return p.refs[lineKey(file, pos.Line)]
}

func (p *fakeProvider) Definitions(_ context.Context, file string, pos ast.Position) []ast.Location {
	return p.defs[lineKey(file, pos.Line)]
}

func (p *fakeProvider) ReadFile(_ context.Context, path string) ([]string, bool) {
	lines, ok := p.files[path]
	return lines, ok
}

// fakeWorkspace wires a provider over single-function files. decls maps a
// file to the function it declares; calls maps a file to the functions its
// body calls, one per line from line 3. References and definitions answer
// with declaration positions, the way an engine that canonicalizes to
// declarations would.
func fakeWorkspace(decls map[string]string, calls map[string][]string) *fakeProvider {
	p := &fakeProvider{
		files:   make(map[string][]string),
		symbols: make(map[string]string),
		refs:    make(map[string][]ast.Location),
		defs:    make(map[string][]ast.Location),
	}
	fileOf := make(map[string]string, len(decls))
	for file, name := range decls {
		fileOf[name] = file
	}
	for file, name := range decls {
		p.files[file] = funcLines(name, calls[file]...)
		p.symbols[lineKey(file, declPos.Line)] = name
		p.defs[lineKey(file, declPos.Line)] = []ast.Location{declLoc(file)}
		for i, callee := range calls[file] {
			target, ok := fileOf[callee]
			if !ok {
				continue
			}
			p.defs[lineKey(file, declPos.Line+1+i)] = []ast.Location{declLoc(target)}
			key := lineKey(target, declPos.Line)
			p.refs[key] = append(p.refs[key], declLoc(file))
		}
	}
	return p
}

func newTestSession(t *testing.T, p provider.Provider, opts ...Option) *Session {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSession(p, append([]Option{WithLogger(quiet)}, opts...)...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func sameIDs(t *testing.T, label string, got []graph.NodeID, want ...graph.NodeID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", label, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: got %v, want %v", label, got, want)
		}
	}
}

func findVariable(refs []graph.VariableRef, name string, isCall bool) (graph.VariableRef, bool) {
	for _, ref := range refs {
		if ref.Name == name && ref.IsCall == isCall {
			return ref, true
		}
	}
	return graph.VariableRef{}, false
}

func TestNewSession_NilProvider(t *testing.T) {
	if _, err := NewSession(nil); !errors.Is(err, ErrNilProvider) {
		t.Fatalf("err = %v, want ErrNilProvider", err)
	}
}

func TestNewSession_Defaults(t *testing.T) {
	s := newTestSession(t, fakeWorkspace(map[string]string{"/src/f.go": "f"}, nil))
	if s.ID() == uuid.Nil {
		t.Error("session id is nil")
	}
	if s.Graph() == nil || s.Graph().Len() != 0 {
		t.Errorf("fresh session graph = %v, want empty", s.Graph())
	}
}

func TestSession_BuildChainDown(t *testing.T) {
	p := fakeWorkspace(
		map[string]string{"/src/f.go": "f", "/src/g.go": "g", "/src/h.go": "h"},
		map[string][]string{"/src/f.go": {"g"}, "/src/g.go": {"h"}},
	)
	s := newTestSession(t, p)

	res, err := s.Build(context.Background(), "/src/f.go", declPos, 3, graph.DirectionDown)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fID, gID, hID := declID("/src/f.go"), declID("/src/g.go"), declID("/src/h.go")
	if res.Graph.Len() != 3 {
		t.Fatalf("Len = %d, want 3", res.Graph.Len())
	}
	f, g, h := res.Graph.Get(fID), res.Graph.Get(gID), res.Graph.Get(hID)
	if f == nil || g == nil || h == nil {
		t.Fatalf("missing nodes: f=%v g=%v h=%v", f, g, h)
	}

	sameIDs(t, "f.Children", f.Children, gID)
	sameIDs(t, "f.Parents", f.Parents)
	sameIDs(t, "g.Children", g.Children, hID)
	sameIDs(t, "g.Parents", g.Parents, fID)
	sameIDs(t, "h.Children", h.Children)
	sameIDs(t, "h.Parents", h.Parents, gID)

	if !f.IsRoot || g.IsRoot || h.IsRoot {
		t.Errorf("IsRoot flags: f=%v g=%v h=%v", f.IsRoot, g.IsRoot, h.IsRoot)
	}
	if f.Symbol != "f" || g.Symbol != "g" || h.Symbol != "h" {
		t.Errorf("symbols: %q %q %q", f.Symbol, g.Symbol, h.Symbol)
	}
	if f.SourceText != "func f() {" {
		t.Errorf("SourceText = %q", f.SourceText)
	}

	ref, ok := findVariable(f.VariablesUsed, "g", true)
	if !ok {
		t.Fatalf("f.VariablesUsed = %v, want a call to g", f.VariablesUsed)
	}
	if ref.Definition == nil || *ref.Definition != gID {
		t.Errorf("g call Definition = %v, want %s", ref.Definition, gID)
	}
}

func TestSession_BuildStampsAndStats(t *testing.T) {
	p := fakeWorkspace(
		map[string]string{"/src/f.go": "f", "/src/g.go": "g"},
		map[string][]string{"/src/f.go": {"g"}},
	)
	s := newTestSession(t, p)

	res, err := s.Build(context.Background(), "/src/f.go", declPos, 2, graph.DirectionDown)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fID := declID("/src/f.go")
	if res.RootID != fID {
		t.Errorf("RootID = %s, want %s", res.RootID, fID)
	}
	if res.Graph.RootID != fID {
		t.Errorf("Graph.RootID = %s, want %s", res.Graph.RootID, fID)
	}
	if res.Graph.BuildDirection != graph.DirectionDown {
		t.Errorf("BuildDirection = %s", res.Graph.BuildDirection)
	}
	if res.Graph.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", res.Graph.MaxDepth)
	}
	if res.Graph.BuiltAtMilli <= 0 {
		t.Errorf("BuiltAtMilli = %d", res.Graph.BuiltAtMilli)
	}
	if root := res.Graph.Root(); root == nil || root.ID != fID {
		t.Errorf("Root() = %v, want node %s", root, fID)
	}

	if res.Stats.SessionID != s.ID().String() {
		t.Errorf("Stats.SessionID = %q, want %q", res.Stats.SessionID, s.ID().String())
	}
	if res.Stats.Nodes != 2 || res.Stats.Edges != 1 {
		t.Errorf("Stats nodes/edges = %d/%d, want 2/1", res.Stats.Nodes, res.Stats.Edges)
	}
	if res.Stats.UnresolvedImports != 0 || res.Stats.IdentityCollisions != 0 {
		t.Errorf("Stats = %+v, want no unresolved imports or collisions", res.Stats)
	}
}

func TestSession_BuildUpCallers(t *testing.T) {
	p := fakeWorkspace(
		map[string]string{"/src/f.go": "f", "/src/g.go": "g", "/src/h.go": "h"},
		map[string][]string{"/src/f.go": {"g"}, "/src/g.go": {"h"}},
	)
	s := newTestSession(t, p)

	res, err := s.Build(context.Background(), "/src/h.go", declPos, 3, graph.DirectionUp)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	fID, gID, hID := declID("/src/f.go"), declID("/src/g.go"), declID("/src/h.go")
	if res.Graph.Len() != 3 {
		t.Fatalf("Len = %d, want 3", res.Graph.Len())
	}
	f, g, h := res.Graph.Get(fID), res.Graph.Get(gID), res.Graph.Get(hID)

	sameIDs(t, "h.Parents", h.Parents, gID)
	sameIDs(t, "g.Parents", g.Parents, fID)
	sameIDs(t, "f.Parents", f.Parents)
	sameIDs(t, "g.Children", g.Children, hID)
	sameIDs(t, "f.Children", f.Children, gID)
	if !h.IsRoot {
		t.Error("seed node lost IsRoot")
	}
}

func TestSession_BuildMutualRecursion(t *testing.T) {
	for _, maxDepth := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("depth_%d", maxDepth), func(t *testing.T) {
			p := fakeWorkspace(
				map[string]string{"/src/f.go": "f", "/src/g.go": "g"},
				map[string][]string{"/src/f.go": {"g"}, "/src/g.go": {"f"}},
			)
			s := newTestSession(t, p)

			res, err := s.Build(context.Background(), "/src/f.go", declPos, maxDepth, graph.DirectionBoth)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}

			fID, gID := declID("/src/f.go"), declID("/src/g.go")
			if res.Graph.Len() != 2 {
				t.Fatalf("Len = %d, want 2 (nodes %v)", res.Graph.Len(), res.Graph.Nodes())
			}
			f, g := res.Graph.Get(fID), res.Graph.Get(gID)

			sameIDs(t, "f.Children", f.Children, gID)
			sameIDs(t, "f.Parents", f.Parents, gID)
			sameIDs(t, "g.Children", g.Children, fID)
			sameIDs(t, "g.Parents", g.Parents, fID)
		})
	}
}

func TestSession_BuildDiamondSharedCallee(t *testing.T) {
	p := fakeWorkspace(
		map[string]string{"/src/root.go": "root", "/src/x.go": "x", "/src/y.go": "y", "/src/z.go": "z"},
		map[string][]string{"/src/root.go": {"x", "y"}, "/src/x.go": {"z"}, "/src/y.go": {"z"}},
	)
	s := newTestSession(t, p)

	res, err := s.Build(context.Background(), "/src/root.go", declPos, 3, graph.DirectionDown)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	rootID, xID, yID, zID := declID("/src/root.go"), declID("/src/x.go"), declID("/src/y.go"), declID("/src/z.go")
	if res.Graph.Len() != 4 {
		t.Fatalf("Len = %d, want 4", res.Graph.Len())
	}
	root, x, y, z := res.Graph.Get(rootID), res.Graph.Get(xID), res.Graph.Get(yID), res.Graph.Get(zID)

	sameIDs(t, "root.Children", root.Children, xID, yID)
	sameIDs(t, "x.Children", x.Children, zID)
	sameIDs(t, "y.Children", y.Children, zID)
	sameIDs(t, "z.Parents", z.Parents, xID, yID)

	if res.Graph.EdgeCount() != 4 {
		t.Errorf("EdgeCount = %d, want 4", res.Graph.EdgeCount())
	}
	// z is reached twice at the same depth; the second visit wires the edge
	// and stops at the cache.
	if res.Stats.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", res.Stats.CacheHits)
	}
}

func TestSession_BuildDepthBound(t *testing.T) {
	p := fakeWorkspace(
		map[string]string{"/src/a.go": "a", "/src/b.go": "b", "/src/c.go": "c", "/src/d.go": "d"},
		map[string][]string{"/src/a.go": {"b"}, "/src/b.go": {"c"}, "/src/c.go": {"d"}},
	)
	s := newTestSession(t, p)

	res, err := s.Build(context.Background(), "/src/a.go", declPos, 2, graph.DirectionDown)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if res.Graph.Len() != 3 {
		t.Fatalf("Len = %d, want 3", res.Graph.Len())
	}
	if res.Graph.Get(declID("/src/d.go")) != nil {
		t.Error("node beyond max depth materialized")
	}
	if res.Stats.PrunedDepth != 2 {
		t.Errorf("PrunedDepth = %d, want 2", res.Stats.PrunedDepth)
	}

	// The call past the boundary is still recorded, just without a node.
	c := res.Graph.Get(declID("/src/c.go"))
	ref, ok := findVariable(c.VariablesUsed, "d", true)
	if !ok {
		t.Fatalf("c.VariablesUsed = %v, want a call to d", c.VariablesUsed)
	}
	if ref.Definition != nil {
		t.Errorf("d call Definition = %v, want nil", ref.Definition)
	}
}

func TestSession_BuildUnresolvedImport(t *testing.T) {
	file := "/src/m.go"
	p := &fakeProvider{
		files: map[string][]string{file: {
			"package main",
			"",
			`import "example.com/missing/mod"`,
			"",
			"func f() {",
			"\tmod.Run()",
			"}",
		}},
		symbols: map[string]string{lineKey(file, 4): "f"},
		refs:    map[string][]ast.Location{},
		defs:    map[string][]ast.Location{},
	}
	s := newTestSession(t, p, WithProjectRoot(t.TempDir()))

	res, err := s.Build(context.Background(), file, ast.Position{Line: 4, Col: 5}, 3, graph.DirectionDown)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if res.Graph.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (unresolved import must not materialize)", res.Graph.Len())
	}
	if res.Stats.UnresolvedImports != 1 {
		t.Errorf("UnresolvedImports = %d, want 1", res.Stats.UnresolvedImports)
	}

	root := res.Graph.Get(res.RootID)
	ref, ok := findVariable(root.VariablesUsed, "mod", false)
	if !ok {
		t.Fatalf("VariablesUsed = %v, want import ref mod", root.VariablesUsed)
	}
	if ref.Definition != nil {
		t.Errorf("mod Definition = %v, want nil", ref.Definition)
	}
	if ref.Line != 2 {
		t.Errorf("mod Line = %d, want 2", ref.Line)
	}
}

func TestSession_BuildArgumentErrors(t *testing.T) {
	p := fakeWorkspace(map[string]string{"/src/f.go": "f"}, nil)
	s := newTestSession(t, p)
	ctx := context.Background()

	cases := []struct {
		name     string
		file     string
		pos      ast.Position
		maxDepth int
		dir      graph.Direction
		want     error
	}{
		{"zero depth", "/src/f.go", declPos, 0, graph.DirectionDown, ErrInvalidDepth},
		{"negative depth", "/src/f.go", declPos, -1, graph.DirectionDown, ErrInvalidDepth},
		{"empty file", "", declPos, 2, graph.DirectionDown, ErrInvalidSeed},
		{"negative line", "/src/f.go", ast.Position{Line: -1}, 2, graph.DirectionDown, ErrInvalidSeed},
		{"negative col", "/src/f.go", ast.Position{Col: -2}, 2, graph.DirectionDown, ErrInvalidSeed},
		{"unknown direction", "/src/f.go", declPos, 2, graph.Direction(99), graph.ErrUnknownDirection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Build(ctx, tc.file, tc.pos, tc.maxDepth, tc.dir); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	// Rejected arguments must not consume the session.
	if _, err := s.Build(ctx, "/src/f.go", declPos, 2, graph.DirectionDown); err != nil {
		t.Fatalf("Build after rejected arguments: %v", err)
	}
}

func TestSession_BuildConsumesSession(t *testing.T) {
	p := fakeWorkspace(map[string]string{"/src/f.go": "f"}, nil)
	s := newTestSession(t, p)
	ctx := context.Background()

	if _, err := s.Build(ctx, "/src/f.go", declPos, 2, graph.DirectionDown); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := s.Build(ctx, "/src/f.go", declPos, 2, graph.DirectionDown); !errors.Is(err, ErrSessionReused) {
		t.Fatalf("second Build err = %v, want ErrSessionReused", err)
	}
}

func TestSession_BuildSeedNotResolved(t *testing.T) {
	p := fakeWorkspace(map[string]string{"/src/f.go": "f"}, nil)
	s := newTestSession(t, p)
	ctx := context.Background()

	// Line 1 is blank: no indexed symbol, no identifier to fall back on.
	_, err := s.Build(ctx, "/src/f.go", ast.Position{Line: 1, Col: 0}, 2, graph.DirectionDown)
	if !errors.Is(err, ErrSeedNotResolved) {
		t.Fatalf("err = %v, want ErrSeedNotResolved", err)
	}

	// An unresolvable seed leaves the session usable.
	if _, err := s.Build(ctx, "/src/f.go", declPos, 2, graph.DirectionDown); err != nil {
		t.Fatalf("Build after unresolved seed: %v", err)
	}
}

func TestSession_BuildCanceled(t *testing.T) {
	p := fakeWorkspace(map[string]string{"/src/f.go": "f"}, nil)
	s := newTestSession(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Build(ctx, "/src/f.go", declPos, 2, graph.DirectionDown); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
