// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.opentelemetry.io/otel/attribute"
)

// JavaScript grammar node types used during extraction.
//
// Reference: https://github.com/tree-sitter/tree-sitter-javascript
const (
	jsNodeProgram           = "program"
	jsNodeImportStatement   = "import_statement"
	jsNodeImportClause      = "import_clause"
	jsNodeNamespaceImport   = "namespace_import"
	jsNodeNamedImports      = "named_imports"
	jsNodeImportSpecifier   = "import_specifier"
	jsNodeString            = "string"
	jsNodeStringFragment    = "string_fragment"
	jsNodeExportStatement   = "export_statement"
	jsNodeExportClause      = "export_clause"
	jsNodeExportSpecifier   = "export_specifier"
	jsNodeFunctionDecl      = "function_declaration"
	jsNodeGeneratorDecl     = "generator_function_declaration"
	jsNodeClassDecl         = "class_declaration"
	jsNodeClassBody         = "class_body"
	jsNodeMethodDefinition  = "method_definition"
	jsNodePropertyIdent     = "property_identifier"
	jsNodeLexicalDecl       = "lexical_declaration"
	jsNodeVariableDecl      = "variable_declaration"
	jsNodeVariableDeclarator = "variable_declarator"
	jsNodeIdentifier        = "identifier"
	jsNodeArrowFunction     = "arrow_function"
	jsNodeFunctionExpr      = "function_expression"
	jsNodeCallExpression    = "call_expression"
	jsNodeComment           = "comment"
	jsNodeImportKeyword     = "import"
)

// JavaScriptParserOption configures a JavaScriptParser.
type JavaScriptParserOption func(*JavaScriptParser)

// WithJSMaxFileSize overrides the maximum accepted file size in bytes.
func WithJSMaxFileSize(size int) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		if size > 0 {
			p.maxFileSize = size
		}
	}
}

// JavaScriptParser extracts symbols and imports from JavaScript source,
// including CommonJS require bindings and dynamic import() expressions.
//
// Thread Safety: safe for concurrent use; a fresh tree-sitter parser is
// created per Parse call.
type JavaScriptParser struct {
	maxFileSize int
}

// NewJavaScriptParser creates a JavaScript parser with default limits.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	p := &JavaScriptParser{maxFileSize: defaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "javascript".
func (p *JavaScriptParser) Language() string { return "javascript" }

// Extensions returns the extensions this parser claims.
func (p *JavaScriptParser) Extensions() []string { return []string{"js", "jsx", "mjs", "cjs"} }

// Parse extracts functions, classes, methods, variables, and every import
// form (ES, CommonJS, dynamic) from JavaScript source.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("javascript parse canceled before start: %w", err)
	}

	ctx, span := startParseSpan(ctx, "javascript", filePath, len(content))
	defer span.End()
	started := time.Now()

	if err := checkContent(content, p.maxFileSize); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(started), 0, false)
		return nil, err
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "javascript",
		Hash:          contentHash(content),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       make([]*Symbol, 0),
		Imports:       make([]Import, 0),
	}

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(started), 0, false)
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(started), 0, false)
		return nil, fmt.Errorf("javascript parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		result.Errors = append(result.Errors, ParseError{
			Message:  "source contains syntax errors; extraction is partial",
			Location: nodeLocation(root, filePath),
		})
	}

	extractECMAScript(root, content, filePath, "javascript", result, false)
	collectDynamicImports(root, content, filePath, result)

	if err := result.Validate(); err != nil {
		slog.Debug("javascript parse produced invalid symbols",
			slog.String("file", filePath),
			slog.String("error", err.Error()))
	}

	span.SetAttributes(
		attribute.Int("symbols", len(result.Symbols)),
		attribute.Int("imports", len(result.Imports)),
	)
	recordParseMetrics(ctx, "javascript", time.Since(started), len(result.Symbols), true)
	return result, nil
}

// extractECMAScript walks declarations shared by the JavaScript and
// TypeScript grammars. The TypeScript parser layers its own node kinds on
// top and delegates everything else here.
func extractECMAScript(node *sitter.Node, content []byte, filePath, language string, result *ParseResult, exported bool) {
	switch node.Type() {
	case jsNodeProgram:
		for i := 0; i < int(node.ChildCount()); i++ {
			extractECMAScript(node.Child(i), content, filePath, language, result, false)
		}

	case jsNodeImportStatement:
		extractESImport(node, content, filePath, result)

	case jsNodeExportStatement:
		extractESExport(node, content, filePath, language, result)

	case jsNodeFunctionDecl, jsNodeGeneratorDecl:
		if sym := extractESFunction(node, content, filePath, language, exported); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}

	case jsNodeClassDecl:
		extractESClass(node, content, filePath, language, result, exported)

	case jsNodeLexicalDecl, jsNodeVariableDecl:
		extractRequireImports(node, content, filePath, result)
		extractESVariables(node, content, filePath, language, result, exported)
	}
}

func extractESImport(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	imp := Import{Kind: ImportPlain, Location: nodeLocation(node, filePath)}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case jsNodeString:
			imp.Path = extractStringFragment(child, content)
		case jsNodeImportClause:
			parseImportClause(child, content, &imp)
		}
	}
	if imp.Path == "" {
		return
	}

	imp.IsRelative = strings.HasPrefix(imp.Path, ".")
	if imp.Name == "" {
		if len(imp.Names) > 0 {
			imp.Name = imp.Names[0]
			imp.Kind = ImportFrom
		} else {
			imp.Name = lastPathSegment(imp.Path)
		}
	} else if len(imp.Names) > 0 {
		imp.Kind = ImportFrom
	}
	result.Imports = append(result.Imports, imp)
}

func parseImportClause(clause *sitter.Node, content []byte, imp *Import) {
	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		switch child.Type() {
		case jsNodeIdentifier:
			// Default binding.
			imp.Name = nodeText(child, content)
		case jsNodeNamespaceImport:
			for j := 0; j < int(child.ChildCount()); j++ {
				if gc := child.Child(j); gc.Type() == jsNodeIdentifier {
					imp.Name = nodeText(gc, content)
					imp.Alias = imp.Name
				}
			}
			imp.IsWildcard = true
		case jsNodeNamedImports:
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() != jsNodeImportSpecifier {
					continue
				}
				// "a as b" binds b; the alias is the last identifier.
				var last string
				for k := 0; k < int(gc.ChildCount()); k++ {
					if idNode := gc.Child(k); idNode.Type() == jsNodeIdentifier {
						last = nodeText(idNode, content)
					}
				}
				if last != "" {
					imp.Names = append(imp.Names, last)
				}
			}
		}
	}
}

// extractESExport unwraps "export <decl>" and records re-export statements
// ("export { a } from 'm'", "export * from 'm'") as imports.
func extractESExport(node *sitter.Node, content []byte, filePath, language string, result *ParseResult) {
	var fromPath string
	var reexported []string
	isWildcard := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case jsNodeString:
			fromPath = extractStringFragment(child, content)
		case jsNodeExportClause:
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() != jsNodeExportSpecifier {
					continue
				}
				for k := 0; k < int(gc.ChildCount()); k++ {
					if idNode := gc.Child(k); idNode.Type() == jsNodeIdentifier {
						reexported = append(reexported, nodeText(idNode, content))
						break
					}
				}
			}
		case "*":
			isWildcard = true
		default:
			extractECMAScript(child, content, filePath, language, result, true)
		}
	}

	if fromPath != "" {
		name := ""
		if len(reexported) > 0 {
			name = reexported[0]
		}
		result.Imports = append(result.Imports, Import{
			Name:       name,
			Path:       fromPath,
			Names:      reexported,
			Kind:       ImportFrom,
			IsRelative: strings.HasPrefix(fromPath, "."),
			IsWildcard: isWildcard,
			Location:   nodeLocation(node, filePath),
		})
	}
}

func extractESFunction(node *sitter.Node, content []byte, filePath, language string, exported bool) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	if name == "" {
		return nil
	}

	kind := SymbolKindFunction
	if isUpperIdent(name) && isComponentFile(filePath) {
		kind = SymbolKindComponent
	}

	return &Symbol{
		ID:         GenerateID(filePath, int(node.StartPoint().Row), name),
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		Start:      startPos(node),
		End:        endPos(node),
		Signature:  signatureText(node, content),
		DocComment: jsDocAbove(node, content),
		Exported:   exported,
		Language:   language,
	}
}

func extractESClass(node *sitter.Node, content []byte, filePath, language string, result *ParseResult, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	result.Symbols = append(result.Symbols, &Symbol{
		ID:         GenerateID(filePath, int(node.StartPoint().Row), name),
		Name:       name,
		Kind:       SymbolKindClass,
		FilePath:   filePath,
		Start:      startPos(node),
		End:        endPos(node),
		Signature:  signatureText(node, content),
		DocComment: jsDocAbove(node, content),
		Exported:   exported,
		Language:   language,
	})

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		if member.Type() != jsNodeMethodDefinition {
			continue
		}
		methodName := ""
		if mn := member.ChildByFieldName("name"); mn != nil {
			methodName = nodeText(mn, content)
		}
		if methodName == "" {
			continue
		}
		result.Symbols = append(result.Symbols, &Symbol{
			ID:         GenerateID(filePath, int(member.StartPoint().Row), methodName),
			Name:       methodName,
			Kind:       SymbolKindMethod,
			FilePath:   filePath,
			Start:      startPos(member),
			End:        endPos(member),
			Signature:  signatureText(member, content),
			DocComment: jsDocAbove(member, content),
			Receiver:   name,
			Exported:   exported && !strings.HasPrefix(methodName, "#"),
			Language:   language,
		})
	}
}

// extractESVariables records declarators; initializer functions become
// function symbols spanning the whole declarator.
func extractESVariables(node *sitter.Node, content []byte, filePath, language string, result *ParseResult, exported bool) {
	isConst := strings.HasPrefix(nodeText(node, content), "const")

	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != jsNodeVariableDeclarator {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != jsNodeIdentifier {
			continue
		}
		name := nodeText(nameNode, content)

		kind := SymbolKindVariable
		if isConst {
			kind = SymbolKindConstant
		}
		if value := decl.ChildByFieldName("value"); value != nil {
			switch value.Type() {
			case jsNodeArrowFunction, jsNodeFunctionExpr:
				kind = SymbolKindFunction
				if isUpperIdent(name) && isComponentFile(filePath) {
					kind = SymbolKindComponent
				}
			case jsNodeCallExpression:
				// require() declarators already became imports.
				if isRequireCall(value, content) {
					continue
				}
			}
		}

		result.Symbols = append(result.Symbols, &Symbol{
			ID:         GenerateID(filePath, int(decl.StartPoint().Row), name),
			Name:       name,
			Kind:       kind,
			FilePath:   filePath,
			Start:      startPos(decl),
			End:        endPos(decl),
			Signature:  signatureText(decl, content),
			DocComment: jsDocAbove(node, content),
			Exported:   exported,
			Language:   language,
		})
	}
}

// extractRequireImports records "const x = require('m')" declarators.
func extractRequireImports(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != jsNodeVariableDeclarator {
			continue
		}
		value := decl.ChildByFieldName("value")
		if value == nil || value.Type() != jsNodeCallExpression || !isRequireCall(value, content) {
			continue
		}
		path := firstStringArgument(value, content)
		if path == "" {
			continue
		}

		imp := Import{
			Path:       path,
			Kind:       ImportRequire,
			IsRelative: strings.HasPrefix(path, "."),
			Location:   nodeLocation(decl, filePath),
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode != nil && nameNode.Type() == jsNodeIdentifier {
			imp.Name = nodeText(nameNode, content)
		} else if nameNode != nil {
			// Destructured require: const { a, b } = require('m').
			for j := 0; j < int(nameNode.ChildCount()); j++ {
				gc := nameNode.Child(j)
				if gc.Type() == "shorthand_property_identifier_pattern" || gc.Type() == jsNodeIdentifier {
					imp.Names = append(imp.Names, nodeText(gc, content))
				}
			}
			if len(imp.Names) > 0 {
				imp.Name = imp.Names[0]
				imp.Kind = ImportFrom
			}
		}
		if imp.Name == "" && len(imp.Names) == 0 {
			imp.Name = lastPathSegment(path)
		}
		result.Imports = append(result.Imports, imp)
	}
}

// collectDynamicImports scans the whole tree for import("m") expressions.
func collectDynamicImports(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	if node.Type() == jsNodeCallExpression {
		if fn := node.ChildByFieldName("function"); fn != nil && fn.Type() == jsNodeImportKeyword {
			if path := firstStringArgument(node, content); path != "" {
				result.Imports = append(result.Imports, Import{
					Name:       lastPathSegment(path),
					Path:       path,
					Kind:       ImportDynamic,
					IsRelative: strings.HasPrefix(path, "."),
					Location:   nodeLocation(node, filePath),
				})
			}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectDynamicImports(node.Child(i), content, filePath, result)
	}
}

func isRequireCall(call *sitter.Node, content []byte) bool {
	fn := call.ChildByFieldName("function")
	return fn != nil && fn.Type() == jsNodeIdentifier && nodeText(fn, content) == "require"
}

func firstStringArgument(call *sitter.Node, content []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		if arg := args.Child(i); arg.Type() == jsNodeString {
			return extractStringFragment(arg, content)
		}
	}
	return ""
}

func extractStringFragment(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == jsNodeStringFragment {
			return nodeText(child, content)
		}
	}
	return stripQuotes(nodeText(node, content))
}

// jsDocAbove extracts the comment block directly above a declaration,
// handling both // runs and /** */ blocks.
func jsDocAbove(node *sitter.Node, content []byte) string {
	prev := node.PrevSibling()
	if prev == nil || prev.Type() != jsNodeComment {
		return ""
	}
	if int(prev.EndPoint().Row) < int(node.StartPoint().Row)-1 {
		return ""
	}
	text := nodeText(prev, content)
	if strings.HasPrefix(text, "/*") {
		text = strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/")
		var lines []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, "\n")
	}
	return lineCommentsAbove(node, content, jsNodeComment, "//")
}

func isComponentFile(path string) bool {
	return strings.HasSuffix(path, ".jsx") || strings.HasSuffix(path, ".tsx")
}
