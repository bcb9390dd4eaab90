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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// callNodeTypes are the call-shaped node kinds across the supported
// grammars. await_expression needs no entry; the walk descends into it and
// finds the inner call.
var callNodeTypes = map[string]struct{}{
	"call_expression":   {},
	"call":              {},
	"method_invocation": {},
	"macro_invocation":  {},
	"new_expression":    {},
}

// treeStrategy extracts call sites from the parse tree. Not applicable when
// the request carries no tree.
type treeStrategy struct{}

func newTreeStrategy() *treeStrategy { return &treeStrategy{} }

// Name returns "tree-sitter".
func (s *treeStrategy) Name() string { return "tree-sitter" }

// DetectCalls walks the tree inside the scope bounds.
func (s *treeStrategy) DetectCalls(ctx context.Context, req ScopeRequest) (map[string]CallInfo, bool) {
	if req.Tree == nil {
		return nil, false
	}
	root := req.Tree.RootNode()
	if root == nil {
		return nil, false
	}
	calls := make(map[string]CallInfo)
	s.walk(root, req, calls)
	return calls, true
}

func (s *treeStrategy) walk(node *sitter.Node, req ScopeRequest, calls map[string]CallInfo) {
	if int(node.StartPoint().Row) > req.Scope.EndLine || int(node.EndPoint().Row) < req.Scope.StartLine {
		return
	}

	if _, isCall := callNodeTypes[node.Type()]; isCall && req.Scope.Contains(int(node.StartPoint().Row)) {
		if name := calleeName(node, req.Content); name != "" {
			if _, seen := calls[name]; !seen {
				calls[name] = CallInfo{
					Name:   name,
					Line:   int(node.StartPoint().Row),
					Col:    int(node.StartPoint().Column),
					Method: s.Name(),
				}
			}
		}
	}

	// Descend regardless; arguments nest further calls.
	for i := 0; i < int(node.ChildCount()); i++ {
		s.walk(node.Child(i), req, calls)
	}
}

// calleeName extracts the callee identifier from a call-shaped node,
// taking the rightmost segment of member and scoped callees.
func calleeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "call_expression", "call":
		fn := node.ChildByFieldName("function")
		if fn != nil && fn.Type() == "import" {
			return dynamicImportTarget(node, content)
		}
		return rightmostIdentifier(fn, content)
	case "method_invocation":
		return rightmostIdentifier(node.ChildByFieldName("name"), content)
	case "macro_invocation":
		return rightmostIdentifier(node.ChildByFieldName("macro"), content)
	case "new_expression":
		return rightmostIdentifier(node.ChildByFieldName("constructor"), content)
	}
	return ""
}

func rightmostIdentifier(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "identifier", "field_identifier", "property_identifier",
		"type_identifier", "shorthand_property_identifier":
		return node.Content(content)
	case "member_expression":
		return rightmostIdentifier(node.ChildByFieldName("property"), content)
	case "attribute":
		return rightmostIdentifier(node.ChildByFieldName("attribute"), content)
	case "field_expression":
		return rightmostIdentifier(node.ChildByFieldName("field"), content)
	case "selector_expression":
		return rightmostIdentifier(node.ChildByFieldName("field"), content)
	case "scoped_identifier":
		return rightmostIdentifier(node.ChildByFieldName("name"), content)
	case "generic_function", "generic_type":
		return rightmostIdentifier(node.ChildByFieldName("function"), content)
	case "parenthesized_expression":
		if node.NamedChildCount() > 0 {
			return rightmostIdentifier(node.NamedChild(0), content)
		}
	}
	return ""
}

// dynamicImportTarget names a dynamic import(...) by its module literal so
// the record survives in VariablesUsed; the literal never matches a
// workspace definition and the branch prunes silently.
func dynamicImportTarget(call *sitter.Node, content []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "string" {
			return strings.Trim(arg.Content(content), "'\"`")
		}
	}
	return ""
}
