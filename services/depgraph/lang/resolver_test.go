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
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeFile creates a file under dir, making parent directories as needed.
func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

func TestRegistry_ForFile(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		path string
		want string
	}{
		{"/src/app/main.py", "python"},
		{"/src/app/main.go", "golang"},
		{"/src/app/lib.rs", "rust"},
		{"/src/app/index.ts", "cfamily"},
		{"/src/app/view.jsx", "cfamily"},
		{"/src/app/util.mjs", "cfamily"},
		{"/src/app/run.sh", "script"},
		{"/src/app/conf.lua", "script"},
		{"/src/app/Makefile", "script"},
	}
	for _, tc := range cases {
		if got := reg.ForFile(tc.path).Language(); got != tc.want {
			t.Errorf("ForFile(%s) = %s, want %s", tc.path, got, tc.want)
		}
	}
}

func TestRegistry_ForLanguage(t *testing.T) {
	reg := NewRegistry()

	for _, tag := range []string{"cfamily", "python", "golang", "rust", "script"} {
		if _, ok := reg.ForLanguage(tag); !ok {
			t.Errorf("ForLanguage(%s) not found", tag)
		}
	}
	if _, ok := reg.ForLanguage("cobol"); ok {
		t.Error("ForLanguage(cobol) should not resolve")
	}
	if reg.Fallback().Language() != "script" {
		t.Errorf("Fallback() = %s, want script", reg.Fallback().Language())
	}
}

func TestRegistry_Languages(t *testing.T) {
	want := []string{"cfamily", "golang", "python", "rust", "script"}
	if got := NewRegistry().Languages(); !reflect.DeepEqual(got, want) {
		t.Errorf("Languages() = %v, want %v", got, want)
	}
}

func TestImportInfo_BoundNames(t *testing.T) {
	from := ImportInfo{Name: "typing", Names: []string{"Optional", "List"}}
	if got := from.BoundNames(); !reflect.DeepEqual(got, []string{"Optional", "List"}) {
		t.Errorf("BoundNames() = %v", got)
	}

	plain := ImportInfo{Name: "os"}
	if got := plain.BoundNames(); !reflect.DeepEqual(got, []string{"os"}) {
		t.Errorf("BoundNames() = %v", got)
	}

	if got := (ImportInfo{}).BoundNames(); got != nil {
		t.Errorf("BoundNames() on empty import = %v, want nil", got)
	}
}

func TestScanForDeclaration_ColumnPointsAtName(t *testing.T) {
	lines := []string{
		"// leading comment",
		"export function loadUser(id) {",
	}
	pos, ok := scanForDeclaration(lines, cfamilyDeclPatterns("loadUser"))
	if !ok {
		t.Fatal("declaration not found")
	}
	if pos.Line != 1 {
		t.Errorf("Line = %d, want 1", pos.Line)
	}
	if want := len("export function "); pos.Col != want {
		t.Errorf("Col = %d, want %d", pos.Col, want)
	}
}

func TestInsideRoot(t *testing.T) {
	root := string(filepath.Separator) + filepath.Join("work", "proj")

	cases := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "src", "a.ts"), true},
		{root, true},
		{filepath.Dir(root), false},
		{string(filepath.Separator) + filepath.Join("work", "other", "a.ts"), false},
	}
	for _, tc := range cases {
		if got := insideRoot(tc.path, root); got != tc.want {
			t.Errorf("insideRoot(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestFindSymbolWith_CleanParseIsAuthoritative(t *testing.T) {
	// The file parses cleanly and lacks the symbol, so the regex fallback
	// must not fire even though a comment mentions the name.
	lines := []string{
		"# class Ghost would match the regex",
		"def real():",
		"    pass",
	}
	res := NewPythonResolver()
	ctx := context.Background()
	if _, ok := res.FindSymbolInFile(ctx, "/src/mod.py", lines, "Ghost"); ok {
		t.Error("comment text should not resolve as a declaration")
	}
	pos, ok := res.FindSymbolInFile(ctx, "/src/mod.py", lines, "real")
	if !ok {
		t.Fatal("real not found")
	}
	if pos.Line != 1 {
		t.Errorf("Line = %d, want 1", pos.Line)
	}
}
