// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/config"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

func TestParseSeed(t *testing.T) {
	tests := []struct {
		arg      string
		wantFile string
		wantLine int
		wantCol  int
	}{
		{"main.go:1", "main.go", 0, 0},
		{"main.go:42", "main.go", 41, 0},
		{"pkg/api/handler.go:17:6", "pkg/api/handler.go", 16, 5},
		{"a.py:100:1", "a.py", 99, 0},
	}

	for _, tt := range tests {
		seed, err := parseSeed(tt.arg)
		if err != nil {
			t.Errorf("parseSeed(%q) failed: %v", tt.arg, err)
			continue
		}
		if seed.File != tt.wantFile {
			t.Errorf("parseSeed(%q).File = %q, want %q", tt.arg, seed.File, tt.wantFile)
		}
		if seed.Pos.Line != tt.wantLine || seed.Pos.Col != tt.wantCol {
			t.Errorf("parseSeed(%q).Pos = %d:%d, want %d:%d",
				tt.arg, seed.Pos.Line, seed.Pos.Col, tt.wantLine, tt.wantCol)
		}
	}
}

func TestParseSeedErrors(t *testing.T) {
	bad := []string{
		"main.go",          // no line
		":42",              // no file
		"main.go:0",        // lines are 1-based
		"main.go:-3",       // negative
		"main.go:abc",      // not a number
		"main.go:10:0",     // columns are 1-based
		"main.go:10:x",     // column not a number
		"main.go:10:2:9",   // too many parts
	}

	for _, arg := range bad {
		if _, err := parseSeed(arg); err == nil {
			t.Errorf("parseSeed(%q) should fail", arg)
		}
	}
}

// treeGraphFixture builds main -> handler -> save -> handler, the back
// edge making the callee walk cyclic.
func treeGraphFixture(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.NewGraph()

	main, _ := g.GetOrCreate("/proj/cmd/main.go", ast.Position{Line: 3, Col: 5}, "main", true)
	handler, _ := g.GetOrCreate("/proj/pkg/api.go", ast.Position{Line: 5, Col: 5}, "handler", false)
	save, _ := g.GetOrCreate("/proj/pkg/storage.go", ast.Position{Line: 10, Col: 5}, "save", false)

	for _, pair := range [][2]graph.NodeID{
		{main.ID, handler.ID},
		{handler.ID, save.ID},
		{save.ID, handler.ID},
	} {
		if err := g.Connect(pair[0], pair[1], graph.DirectionUp); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	g.RootID = main.ID
	return g
}

func TestRenderGraphTree(t *testing.T) {
	oldProject := flagProject
	flagProject = "/proj"
	defer func() { flagProject = oldProject }()

	g := treeGraphFixture(t)
	out := renderGraphTree(g, graph.DirectionDown)

	if !strings.Contains(out, "main  cmd/main.go:4") {
		t.Errorf("Tree should open with the root at its display line, got:\n%s", out)
	}
	if !strings.Contains(out, "└── handler  api.go:6") {
		t.Errorf("Tree should show handler under the root, got:\n%s", out)
	}
	if !strings.Contains(out, "    └── save  storage.go:11") {
		t.Errorf("Tree should nest save under handler, got:\n%s", out)
	}
	if !strings.Contains(out, "└── handler ↺") {
		t.Errorf("The back edge should render as a cycle marker, got:\n%s", out)
	}
}

func TestRenderGraphTreeUp(t *testing.T) {
	oldProject := flagProject
	flagProject = "/proj"
	defer func() { flagProject = oldProject }()

	g := treeGraphFixture(t)
	out := renderGraphTree(g, graph.DirectionUp)

	// The root has no callers, so the upward tree is the root line alone.
	if out != "main  cmd/main.go:4\n" {
		t.Errorf("Upward tree = %q, want the bare root line", out)
	}
}

func TestRenderGraphTreeEmpty(t *testing.T) {
	out := renderGraphTree(graph.NewGraph(), graph.DirectionDown)
	if out != "Empty graph.\n" {
		t.Errorf("Empty graph rendered %q", out)
	}
}

func TestRelToProject(t *testing.T) {
	oldProject := flagProject
	flagProject = "/proj"
	defer func() { flagProject = oldProject }()

	if got := relToProject("/proj/pkg/api.go"); got != "pkg/api.go" {
		t.Errorf("relToProject inside project = %q, want pkg/api.go", got)
	}
	if got := relToProject("/other/x.go"); got != "/other/x.go" {
		t.Errorf("relToProject outside project = %q, want the absolute path", got)
	}
}

func TestWorkspaceExcludes(t *testing.T) {
	oldConfig := cliConfig
	defer func() { cliConfig = oldConfig }()

	cliConfig = config.DefaultConfig()
	cliConfig.Build.Excludes = []string{"gen"}
	cliConfig.Snapshots.Dir = "state/snapshots"

	excludes := workspaceExcludes()

	want := map[string]bool{"node_modules": false, "gen": false, "state": false}
	for _, name := range excludes {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("Excludes missing %q: %v", name, excludes)
		}
	}
}

func TestWorkspaceExcludesAbsoluteSnapshotDir(t *testing.T) {
	oldConfig := cliConfig
	defer func() { cliConfig = oldConfig }()

	cliConfig = config.DefaultConfig()
	cliConfig.Snapshots.Dir = "/var/lib/depgraph-snapshots"

	// An absolute store lives outside the scan; nothing extra to exclude.
	for _, name := range workspaceExcludes() {
		if strings.HasPrefix(name, "/") {
			t.Errorf("Absolute snapshot dir leaked into excludes: %q", name)
		}
	}
}
