// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lang

import (
	"context"
	"path/filepath"
	"testing"
)

func newGoWorkspace(t *testing.T) (root string) {
	t.Helper()
	root = t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/app\n\ngo 1.22\n")
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, root, "internal/store/store.go", "package store\n\nfunc Save() {}\n")
	writeFile(t, root, "internal/store/backend.go", "package store\n\ntype Backend struct{}\n")
	writeFile(t, root, "internal/store/store_test.go", "package store\n")
	return root
}

func TestGoResolver_ModuleInternalImport(t *testing.T) {
	root := newGoWorkspace(t)
	current := filepath.Join(root, "main.go")

	res := NewGoResolver()
	imp := ImportInfo{ModulePath: "example.com/app/internal/store"}
	resolved, ok := res.ResolveImportToFile(context.Background(), imp, current, root)
	if !ok {
		t.Fatal("module-internal import did not resolve")
	}
	// First sorted .go file, tests excluded.
	if want := filepath.Join(root, "internal", "store", "backend.go"); resolved != want {
		t.Errorf("resolved = %s, want %s", resolved, want)
	}
}

func TestGoResolver_ModuleRootImport(t *testing.T) {
	root := newGoWorkspace(t)
	current := filepath.Join(root, "internal", "store", "store.go")

	res := NewGoResolver()
	resolved, ok := res.ResolveImportToFile(context.Background(), ImportInfo{ModulePath: "example.com/app"}, current, root)
	if !ok {
		t.Fatal("module root import did not resolve")
	}
	if want := filepath.Join(root, "main.go"); resolved != want {
		t.Errorf("resolved = %s, want %s", resolved, want)
	}
}

func TestGoResolver_ExternalImportsUnresolvable(t *testing.T) {
	root := newGoWorkspace(t)
	current := filepath.Join(root, "main.go")

	res := NewGoResolver()
	for _, spec := range []string{"fmt", "github.com/other/mod", "example.com/apple/pkg"} {
		if _, ok := res.ResolveImportToFile(context.Background(), ImportInfo{ModulePath: spec}, current, root); ok {
			t.Errorf("%s should not resolve", spec)
		}
	}
}

func TestGoResolver_NoGoMod(t *testing.T) {
	root := t.TempDir()
	current := writeFile(t, root, "main.go", "package main\n")

	res := NewGoResolver()
	if _, ok := res.ResolveImportToFile(context.Background(), ImportInfo{ModulePath: "example.com/app/pkg"}, current, root); ok {
		t.Error("resolution without go.mod should fail")
	}
}

func TestGoResolver_ParseImports(t *testing.T) {
	source := `package main

import (
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"
)
`
	res := NewGoResolver()
	imports := res.ParseImports(context.Background(), []byte(source), "/src/main.go")
	if len(imports) != 3 {
		t.Fatalf("got %d imports, want 3", len(imports))
	}

	byPath := make(map[string]ImportInfo, len(imports))
	for _, imp := range imports {
		byPath[imp.ModulePath] = imp
	}
	if imp := byPath["net/http"]; imp.Name != "http" {
		t.Errorf("net/http Name = %s, want http", imp.Name)
	}
	if imp := byPath["github.com/go-chi/chi/v5"]; imp.Alias != "chi" {
		t.Errorf("chi Alias = %s, want chi", imp.Alias)
	}
}

func TestGoScanImports_FallbackShapes(t *testing.T) {
	lines := []string{
		`package main`,
		``,
		`import "fmt"`,
		`import alias "example.com/x"`,
		`import (`,
		`	"strings"`,
		`	log "log/slog"`,
		`)`,
	}
	imports := goScanImports(lines)
	if len(imports) != 4 {
		t.Fatalf("got %d imports, want 4", len(imports))
	}
	if imports[1].Alias != "alias" {
		t.Errorf("Alias = %s, want alias", imports[1].Alias)
	}
	if imports[3].Name != "log" {
		t.Errorf("Name = %s, want log", imports[3].Name)
	}
}

func TestGoResolver_FindSymbolInFile(t *testing.T) {
	lines := []string{
		"package store",
		"",
		"type Backend struct{}",
		"",
		"func (b *Backend) Save() error { return nil }",
		"",
		"func Open(path string) (*Backend, error) { return nil, nil }",
	}
	res := NewGoResolver()
	ctx := context.Background()

	cases := []struct {
		symbol   string
		wantLine int
	}{
		{"Backend", 2},
		{"Save", 4},
		{"Open", 6},
		{"store", 0},
	}
	for _, tc := range cases {
		pos, ok := res.FindSymbolInFile(ctx, "/src/store.go", lines, tc.symbol)
		if !ok {
			t.Errorf("%s not found", tc.symbol)
			continue
		}
		if pos.Line != tc.wantLine {
			t.Errorf("%s Line = %d, want %d", tc.symbol, pos.Line, tc.wantLine)
		}
	}
}

func TestGoResolver_ImplementationPatterns(t *testing.T) {
	res := NewGoResolver()
	patterns := res.ImplementationPatterns("Storage")

	matched := false
	for _, pat := range patterns {
		if pat.MatchString("var _ Storage = (*diskStorage)(nil)") {
			matched = true
		}
	}
	if !matched {
		t.Error("interface assertion did not match")
	}
}
