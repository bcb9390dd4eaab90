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

// cfamilyModuleExtensions is the probe order for extensionless specifiers,
// TypeScript before JavaScript.
var cfamilyModuleExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

var (
	cfamilyImportPattern   = regexp.MustCompile(`^\s*import\s+(?:type\s+)?(?:[\w$]+|\*\s+as\s+[\w$]+|\{[^}]*\})?\s*(?:,\s*\{[^}]*\})?\s*(?:from\s+)?['"]([^'"]+)['"]`)
	cfamilyRequirePattern  = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	cfamilyDynamicPattern  = regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`)
	cfamilyReExportPattern = regexp.MustCompile(`^\s*export\s+(?:\*|\{[^}]*\}|type\s+\{[^}]*\})\s+from\s+['"]([^'"]+)['"]`)
)

// CFamilyResolver handles the JavaScript/TypeScript module system: relative
// specifiers with extension and index probing, plus a configurable alias
// prefix mapped onto the project root. Bare specifiers name packages and
// are never resolved to workspace files.
type CFamilyResolver struct {
	parsers     *ast.ParserRegistry
	aliasPrefix string
}

// CFamilyOption customizes a CFamilyResolver.
type CFamilyOption func(*CFamilyResolver)

// WithAliasPrefix overrides the "@/" path alias. Empty disables alias
// resolution.
func WithAliasPrefix(prefix string) CFamilyOption {
	return func(r *CFamilyResolver) {
		r.aliasPrefix = prefix
	}
}

// NewCFamilyResolver returns a resolver for the JS/TS family.
func NewCFamilyResolver(opts ...CFamilyOption) *CFamilyResolver {
	r := &CFamilyResolver{
		parsers:     ast.DefaultRegistry(),
		aliasPrefix: "@/",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Language returns "cfamily".
func (r *CFamilyResolver) Language() string { return "cfamily" }

// Extensions returns the JS/TS extensions this resolver claims.
func (r *CFamilyResolver) Extensions() []string {
	return []string{"js", "jsx", "mjs", "cjs", "ts", "tsx", "mts", "cts"}
}

// ParseImports extracts import statements, structurally when possible.
func (r *CFamilyResolver) ParseImports(ctx context.Context, src []byte, filePath string) []ImportInfo {
	return parseImportsWith(ctx, r.parsers, src, filePath, cfamilyScanImports)
}

// cfamilyScanImports is the line-based fallback for files tree-sitter
// could not parse.
func cfamilyScanImports(lines []string) []ImportInfo {
	var out []ImportInfo
	add := func(lineNum int, path string, kind ast.ImportKind) {
		out = append(out, ImportInfo{
			Name:       cfamilyModuleName(path),
			ModulePath: path,
			Kind:       kind,
			Line:       lineNum,
			IsRelative: strings.HasPrefix(path, "."),
		})
	}
	for lineNum, line := range lines {
		if m := cfamilyImportPattern.FindStringSubmatch(line); m != nil {
			add(lineNum, m[1], ast.ImportPlain)
			continue
		}
		if m := cfamilyReExportPattern.FindStringSubmatch(line); m != nil {
			add(lineNum, m[1], ast.ImportFrom)
			continue
		}
		if m := cfamilyRequirePattern.FindStringSubmatch(line); m != nil {
			add(lineNum, m[1], ast.ImportRequire)
			continue
		}
		if m := cfamilyDynamicPattern.FindStringSubmatch(line); m != nil {
			add(lineNum, m[1], ast.ImportDynamic)
		}
	}
	return out
}

func cfamilyModuleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResolveImportToFile maps relative and alias specifiers onto workspace
// files. Probing order: the literal path when it carries an extension,
// then each module extension, then index.* inside a directory.
func (r *CFamilyResolver) ResolveImportToFile(ctx context.Context, imp ImportInfo, currentFile, projectRoot string) (string, bool) {
	spec := imp.ModulePath
	var target string
	switch {
	case spec == "":
		recordResolution(ctx, r.Language(), false)
		return "", false
	case strings.HasPrefix(spec, "."):
		target = filepath.Join(filepath.Dir(currentFile), spec)
	case r.aliasPrefix != "" && strings.HasPrefix(spec, r.aliasPrefix):
		target = filepath.Join(projectRoot, strings.TrimPrefix(spec, r.aliasPrefix))
	default:
		// Bare specifier: an npm package, not a workspace file.
		recordResolution(ctx, r.Language(), false)
		return "", false
	}

	resolved, ok := r.probeModule(filepath.Clean(target))
	if ok && !insideRoot(resolved, projectRoot) {
		ok = false
	}
	recordResolution(ctx, r.Language(), ok)
	if !ok {
		return "", false
	}
	return resolved, true
}

func (r *CFamilyResolver) probeModule(target string) (string, bool) {
	if filepath.Ext(target) != "" && fileExists(target) {
		return target, true
	}
	if resolved, ok := probeExtensions(target, cfamilyModuleExtensions); ok {
		return resolved, true
	}
	return probeExtensions(filepath.Join(target, "index"), cfamilyModuleExtensions)
}

// FindSymbolInFile locates symbol in an already-read file.
func (r *CFamilyResolver) FindSymbolInFile(ctx context.Context, path string, lines []string, symbol string) (ast.Position, bool) {
	return findSymbolWith(ctx, r.parsers, path, lines, symbol, cfamilyDeclPatterns)
}

func cfamilyDeclPatterns(symbol string) []*regexp.Regexp {
	q := quoted(symbol)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(%s)\s*[(<]`, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(%s)\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*(?:export\s+)?(?:const|let|var)\s+(%s)\s*[=:]`, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*(?:export\s+)?(?:interface|enum)\s+(%s)\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*(?:export\s+)?type\s+(%s)\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*(?:public\s+|private\s+|protected\s+|static\s+|async\s+)*(%s)\s*\([^)]*\)\s*[:{]`, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*(%s)\s*:\s*(?:async\s+)?(?:function\b|\()`, q)),
	}
}

// ImplementationPatterns matches classes implementing or extending symbol
// and typed bindings annotated with it.
func (r *CFamilyResolver) ImplementationPatterns(symbol string) []*regexp.Regexp {
	q := quoted(symbol)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`class\s+[\w$]+(?:<[^>]*>)?\s+(?:extends\s+[\w$.]+(?:<[^>]*>)?\s+)?implements\s+[^{]*\b%s\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`class\s+[\w$]+(?:<[^>]*>)?\s+extends\s+%s\b`, q)),
		regexp.MustCompile(fmt.Sprintf(`:\s*%s(?:<[^>]*>)?\s*=`, q)),
	}
}
