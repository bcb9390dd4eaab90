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

func TestScriptResolver_SourceDirective(t *testing.T) {
	root := t.TempDir()
	libFile := writeFile(t, root, "scripts/lib.sh", "helper() {\n  true\n}\n")
	current := writeFile(t, root, "scripts/run.sh", "#!/bin/bash\nsource ./lib.sh\nhelper\n")

	res := NewScriptResolver()
	imports := res.ParseImports(context.Background(), []byte("source ./lib.sh\n. ../common.sh\n"), current)
	if len(imports) != 2 {
		t.Fatalf("got %d imports, want 2", len(imports))
	}
	if imports[0].ModulePath != "./lib.sh" {
		t.Errorf("ModulePath = %s", imports[0].ModulePath)
	}
	if imports[1].ModulePath != "../common.sh" {
		t.Errorf("dot-source ModulePath = %s", imports[1].ModulePath)
	}

	resolved, ok := res.ResolveImportToFile(context.Background(), imports[0], current, root)
	if !ok {
		t.Fatal("./lib.sh did not resolve")
	}
	if resolved != libFile {
		t.Errorf("resolved = %s, want %s", resolved, libFile)
	}
}

func TestScriptResolver_ProjectRootSecondChance(t *testing.T) {
	root := t.TempDir()
	commonFile := writeFile(t, root, "common.sh", "set -e\n")
	current := writeFile(t, root, "deep/nested/task.sh", "source common.sh\n")

	res := NewScriptResolver()
	resolved, ok := res.ResolveImportToFile(context.Background(), ImportInfo{ModulePath: "common.sh"}, current, root)
	if !ok {
		t.Fatal("common.sh did not resolve")
	}
	if resolved != commonFile {
		t.Errorf("resolved = %s, want %s", resolved, commonFile)
	}
}

func TestScriptResolver_ShellExpansionUnresolvable(t *testing.T) {
	root := t.TempDir()
	current := writeFile(t, root, "run.sh", "")

	res := NewScriptResolver()
	for _, spec := range []string{"$HOME/lib.sh", "`pwd`/x.sh", ""} {
		if _, ok := res.ResolveImportToFile(context.Background(), ImportInfo{ModulePath: spec}, current, root); ok {
			t.Errorf("%q should not resolve", spec)
		}
	}
}

func TestScriptResolver_IncludeDirective(t *testing.T) {
	source := "#include \"helpers.inc\"\ninclude(common.cmake)\n"
	res := NewScriptResolver()
	imports := res.ParseImports(context.Background(), []byte(source), "/src/build.cmake")
	if len(imports) != 2 {
		t.Fatalf("got %d imports, want 2", len(imports))
	}
	if imports[0].ModulePath != "helpers.inc" {
		t.Errorf("ModulePath = %s", imports[0].ModulePath)
	}
	if imports[1].ModulePath != "common.cmake" {
		t.Errorf("ModulePath = %s", imports[1].ModulePath)
	}
}

func TestScriptResolver_FindSymbolInFile(t *testing.T) {
	lines := []string{
		"#!/bin/bash",
		"RETRIES=3",
		"",
		"function deploy {",
		"  true",
		"}",
		"",
		"cleanup() {",
		"  true",
		"}",
	}
	res := NewScriptResolver()
	ctx := context.Background()

	cases := []struct {
		symbol   string
		wantLine int
	}{
		{"deploy", 3},
		{"cleanup", 7},
		{"RETRIES", 1},
	}
	for _, tc := range cases {
		pos, ok := res.FindSymbolInFile(ctx, "/scripts/run.sh", lines, tc.symbol)
		if !ok {
			t.Errorf("%s not found", tc.symbol)
			continue
		}
		if pos.Line != tc.wantLine {
			t.Errorf("%s Line = %d, want %d", tc.symbol, pos.Line, tc.wantLine)
		}
	}

	if _, ok := res.FindSymbolInFile(ctx, "/scripts/run.sh", lines, ""); ok {
		t.Error("empty symbol should not resolve")
	}
}

func TestScriptResolver_AbsolutePath(t *testing.T) {
	root := t.TempDir()
	lib := writeFile(t, root, "lib.sh", "")
	current := writeFile(t, root, "run.sh", "")

	res := NewScriptResolver()
	resolved, ok := res.ResolveImportToFile(context.Background(), ImportInfo{ModulePath: lib}, current, root)
	if !ok {
		t.Fatal("absolute path did not resolve")
	}
	if resolved != lib {
		t.Errorf("resolved = %s, want %s", resolved, lib)
	}
	if filepath.Dir(resolved) != root {
		t.Errorf("resolved outside root: %s", resolved)
	}
}
