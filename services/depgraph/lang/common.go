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
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

// fileExists reports whether path is an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// dirExists reports whether path is an existing directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// probeExtensions tries base+ext for each extension in order and returns
// the first existing file.
func probeExtensions(base string, exts []string) (string, bool) {
	for _, ext := range exts {
		candidate := base + ext
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// parseImportsWith runs the registered tree-sitter parser for filePath and
// converts its imports. When no parser claims the file or the parse fails
// outright, fallback scans the raw lines instead. A parse that succeeds
// with zero imports is trusted as-is.
func parseImportsWith(
	ctx context.Context,
	parsers *ast.ParserRegistry,
	src []byte,
	filePath string,
	fallback func(lines []string) []ImportInfo,
) []ImportInfo {
	if parsers != nil {
		if p, err := parsers.GetForFile(filePath); err == nil {
			if result, err := p.Parse(ctx, src, filePath); err == nil {
				out := make([]ImportInfo, 0, len(result.Imports))
				for _, imp := range result.Imports {
					out = append(out, fromASTImport(imp))
				}
				return out
			}
		}
	}
	if fallback == nil {
		return nil
	}
	return fallback(splitLines(string(src)))
}

// findSymbolWith locates symbol in already-read lines, structurally when a
// tree-sitter parser claims the file, else by declaration regex.
func findSymbolWith(
	ctx context.Context,
	parsers *ast.ParserRegistry,
	path string,
	lines []string,
	symbol string,
	declPatterns func(symbol string) []*regexp.Regexp,
) (ast.Position, bool) {
	if symbol == "" {
		return ast.Position{}, false
	}
	content := strings.Join(lines, "\n")
	if parsers != nil {
		if p, err := parsers.GetForFile(path); err == nil {
			if result, err := p.Parse(ctx, []byte(content), path); err == nil {
				if matches := result.SymbolsNamed(symbol); len(matches) > 0 {
					return matches[0].Start, true
				}
				// A clean parse that lacks the symbol is authoritative for
				// structured languages; regexes would only add noise.
				if len(result.Errors) == 0 {
					return ast.Position{}, false
				}
			}
		}
	}
	if declPatterns == nil {
		return ast.Position{}, false
	}
	return scanForDeclaration(lines, declPatterns(symbol))
}

// scanForDeclaration returns the position of the first line matched by any
// pattern. The column points at the symbol name when the pattern captures
// it as group 1, else at the match start.
func scanForDeclaration(lines []string, patterns []*regexp.Regexp) (ast.Position, bool) {
	for lineNum, line := range lines {
		for _, pat := range patterns {
			loc := pat.FindStringSubmatchIndex(line)
			if loc == nil {
				continue
			}
			col := loc[0]
			if len(loc) >= 4 && loc[2] >= 0 {
				col = loc[2]
			}
			return ast.Position{Line: lineNum, Col: col}, true
		}
	}
	return ast.Position{}, false
}

// splitLines splits source on \n, tolerating \r\n.
func splitLines(src string) []string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// insideRoot reports whether path stays under root after cleaning, keeping
// resolution from escaping the workspace via ../ chains.
func insideRoot(path, root string) bool {
	if root == "" {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// quoted builds a whole-word regex fragment for symbol.
func quoted(symbol string) string {
	return regexp.QuoteMeta(symbol)
}
