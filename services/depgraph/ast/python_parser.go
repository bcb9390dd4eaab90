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
	"github.com/smacker/go-tree-sitter/python"
	"go.opentelemetry.io/otel/attribute"
)

// Python grammar node types used during extraction.
const (
	pyNodeModule          = "module"
	pyNodeImport          = "import_statement"
	pyNodeImportFrom      = "import_from_statement"
	pyNodeDottedName      = "dotted_name"
	pyNodeAliasedImport   = "aliased_import"
	pyNodeRelativeImport  = "relative_import"
	pyNodeImportPrefix    = "import_prefix"
	pyNodeWildcardImport  = "wildcard_import"
	pyNodeFunctionDef     = "function_definition"
	pyNodeClassDef        = "class_definition"
	pyNodeDecoratedDef    = "decorated_definition"
	pyNodeExpressionStmt  = "expression_statement"
	pyNodeAssignment      = "assignment"
	pyNodeIdentifier      = "identifier"
	pyNodeString          = "string"
	pyNodeBlock           = "block"
	pyNodeStringContent   = "string_content"
)

// PythonParserOption configures a PythonParser.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize overrides the maximum accepted file size in bytes.
func WithPythonMaxFileSize(size int) PythonParserOption {
	return func(p *PythonParser) {
		if size > 0 {
			p.maxFileSize = size
		}
	}
}

// PythonParser extracts symbols and imports from Python source.
//
// Thread Safety: safe for concurrent use; a fresh tree-sitter parser is
// created per Parse call.
type PythonParser struct {
	maxFileSize int
}

// NewPythonParser creates a Python parser with default limits.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{maxFileSize: defaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "python".
func (p *PythonParser) Language() string { return "python" }

// Extensions returns the extensions this parser claims.
func (p *PythonParser) Extensions() []string { return []string{"py", "pyi"} }

// Parse extracts functions, classes, methods, module-level assignments, and
// imports (including relative forms) from Python source.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("python parse canceled before start: %w", err)
	}

	ctx, span := startParseSpan(ctx, "python", filePath, len(content))
	defer span.End()
	started := time.Now()

	if err := checkContent(content, p.maxFileSize); err != nil {
		recordParseMetrics(ctx, "python", time.Since(started), 0, false)
		return nil, err
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "python",
		Hash:          contentHash(content),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       make([]*Symbol, 0),
		Imports:       make([]Import, 0),
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "python", time.Since(started), 0, false)
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(started), 0, false)
		return nil, fmt.Errorf("python parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		result.Errors = append(result.Errors, ParseError{
			Message:  "source contains syntax errors; extraction is partial",
			Location: nodeLocation(root, filePath),
		})
	}

	p.extract(root, content, filePath, result, "")

	if err := result.Validate(); err != nil {
		slog.Debug("python parse produced invalid symbols",
			slog.String("file", filePath),
			slog.String("error", err.Error()))
	}

	span.SetAttributes(
		attribute.Int("symbols", len(result.Symbols)),
		attribute.Int("imports", len(result.Imports)),
	)
	recordParseMetrics(ctx, "python", time.Since(started), len(result.Symbols), true)
	return result, nil
}

// extract walks the tree. container is "" at module level, the class name
// inside a class body, and the enclosing function name inside a function.
func (p *PythonParser) extract(node *sitter.Node, content []byte, filePath string, result *ParseResult, container string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case pyNodeImport:
			p.processImport(child, content, filePath, result)
		case pyNodeImportFrom:
			p.processImportFrom(child, content, filePath, result)
		case pyNodeFunctionDef:
			p.processFunction(child, content, filePath, result, container, nil)
		case pyNodeClassDef:
			p.processClass(child, content, filePath, result, nil)
		case pyNodeDecoratedDef:
			p.processDecorated(child, content, filePath, result, container)
		case pyNodeExpressionStmt:
			if container == "" {
				p.processModuleAssignment(child, content, filePath, result)
			}
		case pyNodeBlock:
			p.extract(child, content, filePath, result, container)
		}
	}
}

// processImport handles "import a.b" and "import a.b as c" forms, including
// comma-separated lists.
func (p *PythonParser) processImport(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case pyNodeDottedName:
			path := nodeText(child, content)
			p.addImport(node, filePath, result, Import{
				Name: lastDottedSegment(path),
				Path: path,
				Kind: ImportPlain,
			})
		case pyNodeAliasedImport:
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			path := nodeText(nameNode, content)
			alias := nodeText(aliasNode, content)
			p.addImport(node, filePath, result, Import{
				Name:  alias,
				Path:  path,
				Alias: alias,
				Kind:  ImportPlain,
			})
		}
	}
}

// processImportFrom handles "from X import a, b as c, *" including relative
// module paths ("from . import x", "from ..pkg import y"). Relative paths
// keep their leading dots in Path so the resolver can count them.
func (p *PythonParser) processImportFrom(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	var modulePath string
	isRelative := false
	var bound []string
	isWildcard := false
	sawImport := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "from", "import":
			if child.Type() == "import" {
				sawImport = true
			}
		case pyNodeRelativeImport:
			isRelative = true
			modulePath = nodeText(child, content)
		case pyNodeDottedName:
			if !sawImport {
				modulePath = nodeText(child, content)
			} else {
				bound = append(bound, nodeText(child, content))
			}
		case pyNodeAliasedImport:
			// Aliased members bind their alias, not their source name.
			aliasNode := child.ChildByFieldName("alias")
			if alias := nodeText(aliasNode, content); alias != "" {
				bound = append(bound, alias)
			} else if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				bound = append(bound, nodeText(nameNode, content))
			}
		case pyNodeWildcardImport:
			isWildcard = true
		}
	}

	if modulePath == "" && !isRelative {
		return
	}

	primary := ""
	if len(bound) > 0 {
		primary = bound[0]
	}

	p.addImport(node, filePath, result, Import{
		Name:       primary,
		Path:       modulePath,
		Names:      bound,
		Kind:       ImportFrom,
		IsRelative: isRelative || strings.HasPrefix(modulePath, "."),
		IsWildcard: isWildcard,
	})
}

func (p *PythonParser) addImport(node *sitter.Node, filePath string, result *ParseResult, imp Import) {
	if imp.Path == "" && len(imp.Names) == 0 {
		return
	}
	imp.Location = nodeLocation(node, filePath)
	result.Imports = append(result.Imports, imp)
}

func (p *PythonParser) processDecorated(node *sitter.Node, content []byte, filePath string, result *ParseResult, container string) {
	def := node.ChildByFieldName("definition")
	if def == nil {
		return
	}
	// The decorated wrapper owns the span so decorators stay inside it.
	switch def.Type() {
	case pyNodeFunctionDef:
		p.processFunction(def, content, filePath, result, container, node)
	case pyNodeClassDef:
		p.processClass(def, content, filePath, result, node)
	}
}

func (p *PythonParser) processFunction(node *sitter.Node, content []byte, filePath string, result *ParseResult, container string, wrapper *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)
	if name == "" {
		return
	}

	span := node
	if wrapper != nil {
		span = wrapper
	}

	kind := SymbolKindFunction
	receiver := ""
	if container != "" {
		kind = SymbolKindMethod
		receiver = container
	}

	sym := &Symbol{
		ID:         GenerateID(filePath, int(span.StartPoint().Row), name),
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		Start:      startPos(span),
		End:        endPos(span),
		Signature:  signatureText(node, content),
		DocComment: p.docstring(node, content),
		Receiver:   receiver,
		Exported:   !strings.HasPrefix(name, "_"),
		Language:   "python",
	}
	result.Symbols = append(result.Symbols, sym)

	// Nested defs are plain functions, not methods of the enclosing one.
	if body := node.ChildByFieldName("body"); body != nil {
		p.extract(body, content, filePath, result, "")
	}
}

func (p *PythonParser) processClass(node *sitter.Node, content []byte, filePath string, result *ParseResult, wrapper *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	span := node
	if wrapper != nil {
		span = wrapper
	}

	result.Symbols = append(result.Symbols, &Symbol{
		ID:         GenerateID(filePath, int(span.StartPoint().Row), name),
		Name:       name,
		Kind:       SymbolKindClass,
		FilePath:   filePath,
		Start:      startPos(span),
		End:        endPos(span),
		Signature:  signatureText(node, content),
		DocComment: p.docstring(node, content),
		Exported:   !strings.HasPrefix(name, "_"),
		Language:   "python",
	})

	if body := node.ChildByFieldName("body"); body != nil {
		p.extract(body, content, filePath, result, name)
	}
}

// processModuleAssignment records simple module-level "NAME = value" targets.
func (p *PythonParser) processModuleAssignment(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		assign := node.Child(i)
		if assign.Type() != pyNodeAssignment {
			continue
		}
		left := assign.ChildByFieldName("left")
		if left == nil || left.Type() != pyNodeIdentifier {
			continue
		}
		name := nodeText(left, content)
		if name == "" {
			continue
		}

		kind := SymbolKindVariable
		if name == strings.ToUpper(name) && strings.ContainsAny(name, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			kind = SymbolKindConstant
		}

		result.Symbols = append(result.Symbols, &Symbol{
			ID:       GenerateID(filePath, int(assign.StartPoint().Row), name),
			Name:     name,
			Kind:     kind,
			FilePath: filePath,
			Start:    startPos(assign),
			End:      endPos(assign),
			Exported: !strings.HasPrefix(name, "_"),
			Language: "python",
		})
	}
}

// docstring returns the first-statement string literal of a definition body.
func (p *PythonParser) docstring(node *sitter.Node, content []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != pyNodeExpressionStmt || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != pyNodeString {
		return ""
	}
	for i := 0; i < int(str.NamedChildCount()); i++ {
		if c := str.NamedChild(i); c.Type() == pyNodeStringContent {
			return strings.TrimSpace(nodeText(c, content))
		}
	}
	text := nodeText(str, content)
	text = strings.Trim(text, "\"'")
	return strings.TrimSpace(text)
}

func lastDottedSegment(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
