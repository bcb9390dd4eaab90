// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"context"
	"regexp"
)

var (
	// regexCallPattern matches ident( for plain, member, and awaited calls.
	regexCallPattern = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*\(`)

	// regexMacroPattern matches Rust-style ident!( macros.
	regexMacroPattern = regexp.MustCompile(`([A-Za-z_$][\w$]*)!\s*\(`)

	// regexNewPattern matches constructor calls.
	regexNewPattern = regexp.MustCompile(`\bnew\s+([A-Za-z_$][\w$]*)`)

	// regexDynImportPattern captures the module literal of import(...).
	regexDynImportPattern = regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]`)

	// regexDeclPrefix marks ident( occurrences that declare rather than
	// call: "def f(", "fn f(", "function f(", "func f(".
	regexDeclPrefix = regexp.MustCompile(`(?:function|def|fn|func)\s+$`)
)

// regexStrategy scans cached lines for call shapes. Always applicable; the
// last resort when no parse tree exists.
type regexStrategy struct{}

func newRegexStrategy() *regexStrategy { return &regexStrategy{} }

// Name returns "regex".
func (s *regexStrategy) Name() string { return "regex" }

// DetectCalls scans the scope's lines.
func (s *regexStrategy) DetectCalls(ctx context.Context, req ScopeRequest) (map[string]CallInfo, bool) {
	calls := make(map[string]CallInfo)
	scope := req.Scope.Clamp(len(req.Lines))

	record := func(name string, line, col int) {
		if name == "" {
			return
		}
		if _, seen := calls[name]; seen {
			return
		}
		calls[name] = CallInfo{Name: name, Line: line, Col: col, Method: s.Name()}
	}

	for lineNum := scope.StartLine; lineNum <= scope.EndLine && lineNum < len(req.Lines); lineNum++ {
		line := req.Lines[lineNum]

		for _, m := range regexMacroPattern.FindAllStringSubmatchIndex(line, -1) {
			record(line[m[2]:m[3]], lineNum, m[2])
		}
		for _, m := range regexDynImportPattern.FindAllStringSubmatchIndex(line, -1) {
			record(line[m[2]:m[3]], lineNum, m[2])
		}
		for _, m := range regexNewPattern.FindAllStringSubmatchIndex(line, -1) {
			record(line[m[2]:m[3]], lineNum, m[2])
		}
		for _, m := range regexCallPattern.FindAllStringSubmatchIndex(line, -1) {
			if regexDeclPrefix.MatchString(line[:m[2]]) {
				continue
			}
			record(line[m[2]:m[3]], lineNum, m[2])
		}
	}
	return calls, true
}
