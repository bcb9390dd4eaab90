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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/modfile"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

var (
	goImportLinePattern  = regexp.MustCompile(`^\s*import\s+(?:(\w+|\.)\s+)?"([^"]+)"`)
	goImportBlockPattern = regexp.MustCompile(`^\s*(?:(\w+|\.)\s+)?"([^"]+)"`)
)

// GoResolver maps Go import paths onto workspace packages via the module
// path declared in the project root's go.mod. Standard library and
// external module imports are unresolvable on purpose; the walk only
// follows workspace code.
type GoResolver struct {
	parsers *ast.ParserRegistry

	mu sync.Mutex
	// modules caches go.mod module paths per project root. An empty value
	// records a root whose go.mod was missing or unparseable.
	modules map[string]string
}

// NewGoResolver returns a resolver for Go.
func NewGoResolver() *GoResolver {
	return &GoResolver{
		parsers: ast.DefaultRegistry(),
		modules: make(map[string]string),
	}
}

// Language returns "golang".
func (r *GoResolver) Language() string { return "golang" }

// Extensions returns the Go extension this resolver claims.
func (r *GoResolver) Extensions() []string { return []string{"go"} }

// ParseImports extracts import statements, structurally when possible.
func (r *GoResolver) ParseImports(ctx context.Context, src []byte, filePath string) []ImportInfo {
	return parseImportsWith(ctx, r.parsers, src, filePath, goScanImports)
}

func goScanImports(lines []string) []ImportInfo {
	var out []ImportInfo
	add := func(lineNum int, alias, path string) {
		name := alias
		if name == "" || name == "." {
			parts := strings.Split(path, "/")
			name = parts[len(parts)-1]
		}
		out = append(out, ImportInfo{
			Name:       name,
			ModulePath: path,
			Alias:      alias,
			Kind:       ast.ImportPlain,
			Line:       lineNum,
		})
	}
	inBlock := false
	for lineNum, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "import (":
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock:
			if m := goImportBlockPattern.FindStringSubmatch(line); m != nil {
				add(lineNum, m[1], m[2])
			}
		default:
			if m := goImportLinePattern.FindStringSubmatch(line); m != nil {
				add(lineNum, m[1], m[2])
			}
		}
	}
	return out
}

// ResolveImportToFile maps a module-internal import path to the package
// directory's first .go file (sorted, tests excluded). Imports outside the
// module path are unresolvable.
func (r *GoResolver) ResolveImportToFile(ctx context.Context, imp ImportInfo, currentFile, projectRoot string) (string, bool) {
	resolved, ok := r.resolve(imp, projectRoot)
	if ok && !insideRoot(resolved, projectRoot) {
		ok = false
	}
	recordResolution(ctx, r.Language(), ok)
	if !ok {
		return "", false
	}
	return resolved, true
}

func (r *GoResolver) resolve(imp ImportInfo, projectRoot string) (string, bool) {
	modPath := r.modulePath(projectRoot)
	if modPath == "" {
		return "", false
	}

	var pkgDir string
	switch {
	case imp.ModulePath == modPath:
		pkgDir = projectRoot
	case strings.HasPrefix(imp.ModulePath, modPath+"/"):
		rel := strings.TrimPrefix(imp.ModulePath, modPath+"/")
		pkgDir = filepath.Join(projectRoot, filepath.FromSlash(rel))
	default:
		return "", false
	}

	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return "", false
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, name)
	}
	if len(files) == 0 {
		return "", false
	}
	sort.Strings(files)
	return filepath.Join(pkgDir, files[0]), true
}

// modulePath returns the module path declared by projectRoot's go.mod,
// caching per root. Empty when the root is not a Go module.
func (r *GoResolver) modulePath(projectRoot string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.modules[projectRoot]; ok {
		return cached
	}

	modPath := ""
	goMod := filepath.Join(projectRoot, "go.mod")
	if data, err := os.ReadFile(goMod); err == nil {
		if parsed, err := modfile.Parse(goMod, data, nil); err == nil && parsed.Module != nil {
			modPath = parsed.Module.Mod.Path
		}
	}
	r.modules[projectRoot] = modPath
	return modPath
}

// FindSymbolInFile locates symbol in an already-read file.
func (r *GoResolver) FindSymbolInFile(ctx context.Context, path string, lines []string, symbol string) (ast.Position, bool) {
	return findSymbolWith(ctx, r.parsers, path, lines, symbol, goDeclPatterns)
}

func goDeclPatterns(symbol string) []*regexp.Regexp {
	q := quoted(symbol)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`^func\s+(?:\([^)]*\)\s*)?(%s)\s*[(\[]`, q)),
		regexp.MustCompile(fmt.Sprintf(`^type\s+(%s)\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`^(?:var|const)\s+(%s)\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`^package\s+(%s)\b`, q)),
	}
}

// ImplementationPatterns matches the conventional compile-time interface
// assertion and constructors returning symbol. Go's structural typing
// offers nothing stronger to a line scan.
func (r *GoResolver) ImplementationPatterns(symbol string) []*regexp.Regexp {
	q := quoted(symbol)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`var\s+_\s+(?:\w+\.)?%s\s*=`, q)),
		regexp.MustCompile(fmt.Sprintf(`\)\s+(?:\w+\.)?%s\s*\{`, q)),
	}
}
