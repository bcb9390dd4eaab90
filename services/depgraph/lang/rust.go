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
	rustUsePattern     = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?use\s+(.+?)\s*;`)
	rustModDeclPattern = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+(\w+)\s*;`)
)

// RustResolver handles use paths and mod declarations. crate:: paths are
// resolved under src/ (or the project root when there is no src/);
// self::/super:: paths against the current file's directory; bare names
// beside the current file. Both m.rs and m/mod.rs layouts are probed.
// External crates are unresolvable on purpose.
type RustResolver struct {
	parsers *ast.ParserRegistry
}

// NewRustResolver returns a resolver for Rust.
func NewRustResolver() *RustResolver {
	return &RustResolver{parsers: ast.DefaultRegistry()}
}

// Language returns "rust".
func (r *RustResolver) Language() string { return "rust" }

// Extensions returns the Rust extension this resolver claims.
func (r *RustResolver) Extensions() []string { return []string{"rs"} }

// ParseImports extracts use statements, structurally when possible, and
// surfaces body-less mod declarations as imports since they pull sibling
// files into the crate.
func (r *RustResolver) ParseImports(ctx context.Context, src []byte, filePath string) []ImportInfo {
	out := parseImportsWith(ctx, r.parsers, src, filePath, rustScanUses)
	return append(out, rustScanModDecls(splitLines(string(src)))...)
}

func rustScanModDecls(lines []string) []ImportInfo {
	var out []ImportInfo
	for lineNum, line := range lines {
		if m := rustModDeclPattern.FindStringSubmatch(line); m != nil {
			out = append(out, ImportInfo{
				Name:       m[1],
				ModulePath: m[1],
				Kind:       ast.ImportPlain,
				Line:       lineNum,
				IsRelative: true,
			})
		}
	}
	return out
}

func rustScanUses(lines []string) []ImportInfo {
	var out []ImportInfo
	for lineNum, line := range lines {
		m := rustUsePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, rustParseUseExpr(m[1], lineNum))
	}
	return out
}

// rustParseUseExpr decomposes a use expression: path::{list}, path::*,
// path as alias, or a plain path.
func rustParseUseExpr(expr string, lineNum int) ImportInfo {
	imp := ImportInfo{Kind: ast.ImportPlain, Line: lineNum}

	if open := strings.Index(expr, "::{"); open >= 0 {
		imp.ModulePath = expr[:open]
		imp.Kind = ast.ImportFrom
		list := strings.TrimSuffix(expr[open+3:], "}")
		for _, member := range strings.Split(list, ",") {
			member = strings.TrimSpace(member)
			if member == "" || member == "self" {
				continue
			}
			if member == "*" {
				imp.IsWildcard = true
				continue
			}
			if fields := strings.Fields(member); len(fields) == 3 && fields[1] == "as" {
				member = fields[2]
			}
			imp.Names = append(imp.Names, member)
		}
	} else if strings.HasSuffix(expr, "::*") {
		imp.ModulePath = strings.TrimSuffix(expr, "::*")
		imp.IsWildcard = true
	} else if before, alias, found := strings.Cut(expr, " as "); found {
		imp.ModulePath = strings.TrimSpace(before)
		imp.Alias = strings.TrimSpace(alias)
		imp.Name = imp.Alias
	} else {
		imp.ModulePath = expr
	}

	if imp.Name == "" {
		imp.Name = lastRustUseSegment(imp.ModulePath)
	}
	imp.IsRelative = rustPathIsRelative(imp.ModulePath)
	return imp
}

func lastRustUseSegment(path string) string {
	segs := strings.Split(path, "::")
	return segs[len(segs)-1]
}

func rustPathIsRelative(path string) bool {
	if strings.HasPrefix(path, "crate::") || strings.HasPrefix(path, "self::") || strings.HasPrefix(path, "super::") {
		return true
	}
	return !strings.Contains(path, "::")
}

// ResolveImportToFile maps a use path or mod declaration to a crate file.
func (r *RustResolver) ResolveImportToFile(ctx context.Context, imp ImportInfo, currentFile, projectRoot string) (string, bool) {
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

func (r *RustResolver) resolve(imp ImportInfo, currentFile, projectRoot string) (string, bool) {
	spec := imp.ModulePath
	if spec == "" {
		return "", false
	}
	segs := strings.Split(spec, "::")

	switch segs[0] {
	case "crate":
		base := filepath.Join(projectRoot, "src")
		if !dirExists(base) {
			base = projectRoot
		}
		return rustProbeSegments(base, segs[1:])
	case "self":
		return rustProbeSegments(filepath.Dir(currentFile), segs[1:])
	case "super":
		dir := filepath.Dir(currentFile)
		rest := segs
		for len(rest) > 0 && rest[0] == "super" {
			dir = filepath.Dir(dir)
			rest = rest[1:]
		}
		return rustProbeSegments(dir, rest)
	default:
		if len(segs) > 1 {
			// Multi-segment without crate/self/super names an external crate.
			return "", false
		}
		if resolved, ok := rustProbeModule(filepath.Join(filepath.Dir(currentFile), segs[0])); ok {
			return resolved, true
		}
		return rustProbeModule(filepath.Join(projectRoot, "src", segs[0]))
	}
}

// rustProbeSegments tries progressively shorter prefixes of segs as module
// paths, longest first, since trailing segments may name symbols rather
// than modules.
func rustProbeSegments(base string, segs []string) (string, bool) {
	if len(segs) == 0 {
		return "", false
	}
	for i := len(segs); i >= 1; i-- {
		if resolved, ok := rustProbeModule(filepath.Join(base, filepath.Join(segs[:i]...))); ok {
			return resolved, true
		}
	}
	return "", false
}

// rustProbeModule tries base.rs, then base/mod.rs.
func rustProbeModule(base string) (string, bool) {
	if resolved, ok := probeExtensions(base, []string{".rs"}); ok {
		return resolved, true
	}
	mod := filepath.Join(base, "mod.rs")
	if fileExists(mod) {
		return mod, true
	}
	return "", false
}

// FindSymbolInFile locates symbol in an already-read file.
func (r *RustResolver) FindSymbolInFile(ctx context.Context, path string, lines []string, symbol string) (ast.Position, bool) {
	return findSymbolWith(ctx, r.parsers, path, lines, symbol, rustDeclPatterns)
}

func rustDeclPatterns(symbol string) []*regexp.Regexp {
	q := quoted(symbol)
	vis := `(?:pub(?:\([^)]*\))?\s+)?`
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`^\s*%s(?:async\s+)?(?:unsafe\s+)?fn\s+(%s)\s*[(<]`, vis, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*%s(?:struct|enum|trait|union|mod)\s+(%s)\b`, vis, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*%s(?:const|static)\s+(%s)\b`, vis, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*%stype\s+(%s)\b`, vis, q)),
		regexp.MustCompile(fmt.Sprintf(`^\s*macro_rules!\s+(%s)\b`, q)),
	}
}

// ImplementationPatterns matches impl blocks for the trait symbol.
func (r *RustResolver) ImplementationPatterns(symbol string) []*regexp.Regexp {
	q := quoted(symbol)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`impl(?:<[^>]*>)?\s+%s(?:<[^>]*>)?\s+for\s+\w+`, q)),
	}
}
