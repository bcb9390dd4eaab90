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
	scriptSourcePattern  = regexp.MustCompile(`^\s*(?:source|\.)\s+["']?([^"'\s;]+)`)
	scriptIncludePattern = regexp.MustCompile(`^\s*#?\s*include\s*[("<]?\s*["']?([^"')>\s]+)`)
)

// ScriptResolver is the fallback for files no language-specific resolver
// claims. It understands source/include directives with literal paths and
// locates symbols with generic declaration shapes. Good enough to keep a
// traversal moving through glue scripts; never authoritative.
type ScriptResolver struct{}

// NewScriptResolver returns the fallback resolver.
func NewScriptResolver() *ScriptResolver { return &ScriptResolver{} }

// Language returns "script".
func (r *ScriptResolver) Language() string { return "script" }

// Extensions returns the shell extensions this resolver claims directly.
// Everything else reaches it through the registry fallback.
func (r *ScriptResolver) Extensions() []string { return []string{"sh", "bash", "zsh"} }

// ParseImports scans for source and include directives.
func (r *ScriptResolver) ParseImports(ctx context.Context, src []byte, filePath string) []ImportInfo {
	var out []ImportInfo
	for lineNum, line := range splitLines(string(src)) {
		path := ""
		if m := scriptSourcePattern.FindStringSubmatch(line); m != nil {
			path = m[1]
		} else if m := scriptIncludePattern.FindStringSubmatch(line); m != nil {
			path = m[1]
		}
		if path == "" {
			continue
		}
		out = append(out, ImportInfo{
			Name:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			ModulePath: path,
			Kind:       ast.ImportInclude,
			Line:       lineNum,
			IsRelative: !filepath.IsAbs(path),
		})
	}
	return out
}

// ResolveImportToFile treats the specifier as a literal path, tried beside
// the current file and then under the project root. Paths with shell
// expansions are unresolvable.
func (r *ScriptResolver) ResolveImportToFile(ctx context.Context, imp ImportInfo, currentFile, projectRoot string) (string, bool) {
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

func (r *ScriptResolver) resolve(imp ImportInfo, currentFile, projectRoot string) (string, bool) {
	spec := imp.ModulePath
	if spec == "" || strings.ContainsAny(spec, "$`") {
		return "", false
	}
	if filepath.IsAbs(spec) {
		if fileExists(spec) {
			return spec, true
		}
		return "", false
	}
	if candidate := filepath.Join(filepath.Dir(currentFile), spec); fileExists(candidate) {
		return candidate, true
	}
	if candidate := filepath.Join(projectRoot, spec); fileExists(candidate) {
		return candidate, true
	}
	return "", false
}

// FindSymbolInFile scans for generic declaration shapes.
func (r *ScriptResolver) FindSymbolInFile(ctx context.Context, path string, lines []string, symbol string) (ast.Position, bool) {
	if symbol == "" {
		return ast.Position{}, false
	}
	return scanForDeclaration(lines, scriptDeclPatterns(symbol))
}

func scriptDeclPatterns(symbol string) []*regexp.Regexp {
	q := quoted(symbol)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`^\s*function\s+(%s)\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*(%s)\s*\(\s*\)`, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*(?:def|class|fn|func|sub|proc)\s+(%s)\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`^(%s)=`, q)),
		regexp.MustCompile(fmt.Sprintf(`^(%s)\s*:`, q)),
	}
}

// ImplementationPatterns returns nothing; scripts have no implementation
// relationship worth scanning for.
func (r *ScriptResolver) ImplementationPatterns(symbol string) []*regexp.Regexp {
	return nil
}
