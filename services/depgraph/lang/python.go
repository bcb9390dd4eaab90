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
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

var (
	pythonImportPattern = regexp.MustCompile(`^\s*import\s+([\w.]+)(?:\s+as\s+(\w+))?`)
	pythonFromPattern   = regexp.MustCompile(`^\s*from\s+(\.*[\w.]*)\s+import\s+(.+)`)
)

// PythonResolver handles Python's dotted module paths. Absolute paths are
// probed under the project root (then beside the importing file as a
// second chance for packages run from a subdirectory); relative paths
// strip one directory per dot beyond the first. Both module.py and
// module/__init__.py layouts are probed.
type PythonResolver struct {
	parsers *ast.ParserRegistry
}

// NewPythonResolver returns a resolver for Python.
func NewPythonResolver() *PythonResolver {
	return &PythonResolver{parsers: ast.DefaultRegistry()}
}

// Language returns "python".
func (r *PythonResolver) Language() string { return "python" }

// Extensions returns the Python extensions this resolver claims.
func (r *PythonResolver) Extensions() []string { return []string{"py", "pyi"} }

// ParseImports extracts import statements, structurally when possible.
func (r *PythonResolver) ParseImports(ctx context.Context, src []byte, filePath string) []ImportInfo {
	return parseImportsWith(ctx, r.parsers, src, filePath, pythonScanImports)
}

func pythonScanImports(lines []string) []ImportInfo {
	var out []ImportInfo
	for lineNum, line := range lines {
		if m := pythonImportPattern.FindStringSubmatch(line); m != nil {
			name := m[2]
			if name == "" {
				parts := strings.Split(m[1], ".")
				name = parts[len(parts)-1]
			}
			out = append(out, ImportInfo{
				Name:       name,
				ModulePath: m[1],
				Alias:      m[2],
				Kind:       ast.ImportPlain,
				Line:       lineNum,
			})
			continue
		}
		if m := pythonFromPattern.FindStringSubmatch(line); m != nil {
			imp := ImportInfo{
				ModulePath: m[1],
				Kind:       ast.ImportFrom,
				Line:       lineNum,
				IsRelative: strings.HasPrefix(m[1], "."),
			}
			for _, member := range strings.Split(m[2], ",") {
				member = strings.TrimSpace(strings.TrimSuffix(member, "\\"))
				if member == "" {
					continue
				}
				if member == "*" {
					imp.IsWildcard = true
					continue
				}
				// "name as alias" binds the alias.
				if fields := strings.Fields(member); len(fields) == 3 && fields[1] == "as" {
					member = fields[2]
				} else {
					member = fields[0]
				}
				member = strings.Trim(member, "()")
				if member != "" {
					imp.Names = append(imp.Names, member)
				}
			}
			out = append(out, imp)
		}
	}
	return out
}

// ResolveImportToFile maps a dotted module path to a workspace file.
func (r *PythonResolver) ResolveImportToFile(ctx context.Context, imp ImportInfo, currentFile, projectRoot string) (string, bool) {
	resolved, ok := r.resolve(imp, currentFile, projectRoot)
	if ok && !insideRoot(resolved, projectRoot) {
		ok = false
	}
	recordResolution(ctx, r.Language(), ok)
	if !ok {
		return "", false
	}
	return resolved, true
}

func (r *PythonResolver) resolve(imp ImportInfo, currentFile, projectRoot string) (string, bool) {
	spec := imp.ModulePath
	if spec == "" {
		return "", false
	}

	if strings.HasPrefix(spec, ".") {
		dots := len(spec) - len(strings.TrimLeft(spec, "."))
		dir := filepath.Dir(currentFile)
		// One dot is the current package; each extra dot pops a directory.
		for i := 1; i < dots; i++ {
			dir = filepath.Dir(dir)
		}
		rest := strings.TrimLeft(spec, ".")
		if rest == "" {
			// "from . import x" imports siblings; x may itself be a module.
			for _, name := range imp.BoundNames() {
				if resolved, ok := probePythonModule(filepath.Join(dir, name)); ok {
					return resolved, true
				}
			}
			init := filepath.Join(dir, "__init__.py")
			if fileExists(init) {
				return init, true
			}
			return "", false
		}
		return probePythonModule(filepath.Join(dir, pythonPathFromDotted(rest)))
	}

	relPath := pythonPathFromDotted(spec)
	if resolved, ok := probePythonModule(filepath.Join(projectRoot, relPath)); ok {
		return resolved, true
	}
	return probePythonModule(filepath.Join(filepath.Dir(currentFile), relPath))
}

func pythonPathFromDotted(dotted string) string {
	return filepath.Join(strings.Split(dotted, ".")...)
}

// probePythonModule tries base.py, then base/__init__.py.
func probePythonModule(base string) (string, bool) {
	if resolved, ok := probeExtensions(base, []string{".py"}); ok {
		return resolved, true
	}
	init := filepath.Join(base, "__init__.py")
	if fileExists(init) {
		return init, true
	}
	return "", false
}

// FindSymbolInFile locates symbol in an already-read file.
func (r *PythonResolver) FindSymbolInFile(ctx context.Context, path string, lines []string, symbol string) (ast.Position, bool) {
	return findSymbolWith(ctx, r.parsers, path, lines, symbol, pythonDeclPatterns)
}

func pythonDeclPatterns(symbol string) []*regexp.Regexp {
	q := quoted(symbol)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`^\s*(?:async\s+)?def\s+(%s)\s*\(`, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*class\s+(%s)\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`^(%s)\s*(?::[^=]+)?=`, q)),
	}
}

// ImplementationPatterns matches subclass declarations and ABC register
// calls for symbol.
func (r *PythonResolver) ImplementationPatterns(symbol string) []*regexp.Regexp {
	q := quoted(symbol)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`class\s+\w+\s*\([^)]*\b%s\b[^)]*\)\s*:`, q)),
		regexp.MustCompile(fmt.Sprintf(`@%s\.register\b`, q)),
	}
}
