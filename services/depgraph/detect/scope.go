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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

const (
	// scopeWindowBefore and scopeWindowAfter bound the fallback window when
	// no syntax tree is available to find the enclosing declaration.
	scopeWindowBefore = 10
	scopeWindowAfter  = 50
)

// scopeBoundaryTypes are the node kinds that terminate the upward walk from
// a position: the enclosing function, method, or class.
var scopeBoundaryTypes = map[string]struct{}{
	"function_declaration": {},
	"function_definition":  {},
	"function_item":        {},
	"function_expression":  {},
	"generator_function":   {},
	"arrow_function":       {},
	"method_definition":    {},
	"method_declaration":   {},
	"decorated_definition": {},
	"class_declaration":    {},
	"class_definition":     {},
	"class_specifier":      {},
	"impl_item":            {},
	"trait_item":           {},
}

// Scope is an inclusive 0-based line window.
type Scope struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Clamp bounds the scope to a file of lineCount lines.
func (s Scope) Clamp(lineCount int) Scope {
	if s.StartLine < 0 {
		s.StartLine = 0
	}
	if lineCount > 0 && s.EndLine > lineCount-1 {
		s.EndLine = lineCount - 1
	}
	if s.EndLine < s.StartLine {
		s.EndLine = s.StartLine
	}
	return s
}

// Contains reports whether line falls inside the scope.
func (s Scope) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// Text joins the scope's lines.
func (s Scope) Text(lines []string) string {
	clamped := s.Clamp(len(lines))
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines[clamped.StartLine:clamped.EndLine+1], "\n")
}

// ResolveScope finds the detection window around pos: the enclosing
// function/method/class when a tree is available, else a fixed window
// clamped to the file.
func ResolveScope(tree *sitter.Tree, pos ast.Position, lineCount int) Scope {
	if tree != nil {
		if scope, ok := enclosingDeclaration(tree, pos); ok {
			return scope.Clamp(lineCount)
		}
	}
	return Scope{
		StartLine: pos.Line - scopeWindowBefore,
		EndLine:   pos.Line + scopeWindowAfter,
	}.Clamp(lineCount)
}

func enclosingDeclaration(tree *sitter.Tree, pos ast.Position) (Scope, bool) {
	root := tree.RootNode()
	if root == nil {
		return Scope{}, false
	}
	point := sitter.Point{Row: uint32(pos.Line), Column: uint32(pos.Col)}
	node := root.NamedDescendantForPointRange(point, point)
	for node != nil {
		if _, boundary := scopeBoundaryTypes[node.Type()]; boundary {
			return Scope{
				StartLine: int(node.StartPoint().Row),
				EndLine:   int(node.EndPoint().Row),
			}, true
		}
		node = node.Parent()
	}
	return Scope{}, false
}
