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
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"go.opentelemetry.io/otel/attribute"
)

// Go grammar node types used during extraction.
const (
	goNodeSourceFile        = "source_file"
	goNodePackageClause     = "package_clause"
	goNodePackageIdentifier = "package_identifier"
	goNodeImportDecl        = "import_declaration"
	goNodeImportSpec        = "import_spec"
	goNodeImportSpecList    = "import_spec_list"
	goNodeFunctionDecl      = "function_declaration"
	goNodeMethodDecl        = "method_declaration"
	goNodeTypeDecl          = "type_declaration"
	goNodeTypeSpec          = "type_spec"
	goNodeStructType        = "struct_type"
	goNodeInterfaceType     = "interface_type"
	goNodeConstDecl         = "const_declaration"
	goNodeConstSpec         = "const_spec"
	goNodeVarDecl           = "var_declaration"
	goNodeVarSpec           = "var_spec"
	goNodeComment           = "comment"
	goNodeParameterList     = "parameter_list"
	goNodeParameterDecl     = "parameter_declaration"
	goNodePointerType       = "pointer_type"
	goNodeTypeIdentifier    = "type_identifier"
	goNodeStringLiteral     = "interpreted_string_literal"
	goNodeBlankIdentifier   = "blank_identifier"
	goNodeDot               = "dot"
)

// GoParserOption configures a GoParser.
type GoParserOption func(*GoParser)

// WithGoMaxFileSize overrides the maximum accepted file size in bytes.
func WithGoMaxFileSize(size int) GoParserOption {
	return func(p *GoParser) {
		if size > 0 {
			p.maxFileSize = size
		}
	}
}

// GoParser extracts symbols and imports from Go source.
//
// Thread Safety: safe for concurrent use; a fresh tree-sitter parser is
// created per Parse call.
type GoParser struct {
	maxFileSize int
}

// NewGoParser creates a Go parser with default limits.
func NewGoParser(opts ...GoParserOption) *GoParser {
	p := &GoParser{maxFileSize: defaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "go".
func (p *GoParser) Language() string { return "go" }

// Extensions returns the extensions this parser claims.
func (p *GoParser) Extensions() []string { return []string{"go"} }

// Parse extracts functions, methods, types, package-level constants and
// variables, and imports from Go source.
//
// Inputs:
//
//	ctx      - Context for cancellation. Checked before and after parsing.
//	content  - Raw source bytes. Must be valid UTF-8.
//	filePath - Absolute path recorded in the result and symbol IDs.
//
// Outputs:
//
//	*ParseResult - Extracted symbols and imports. Never nil on success.
//	error        - Non-nil only for complete failures (size, encoding, parse).
func (p *GoParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("go parse canceled before start: %w", err)
	}

	ctx, span := startParseSpan(ctx, "go", filePath, len(content))
	defer span.End()
	started := time.Now()

	if err := checkContent(content, p.maxFileSize); err != nil {
		recordParseMetrics(ctx, "go", time.Since(started), 0, false)
		return nil, err
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "go",
		Hash:          contentHash(content),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       make([]*Symbol, 0),
		Imports:       make([]Import, 0),
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "go", time.Since(started), 0, false)
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "go", time.Since(started), 0, false)
		return nil, fmt.Errorf("go parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		result.Errors = append(result.Errors, ParseError{
			Message:  "source contains syntax errors; extraction is partial",
			Location: nodeLocation(root, filePath),
		})
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		p.extractTopLevel(root.Child(i), content, filePath, result)
	}

	if err := result.Validate(); err != nil {
		slog.Debug("go parse produced invalid symbols",
			slog.String("file", filePath),
			slog.String("error", err.Error()))
	}

	span.SetAttributes(
		attribute.Int("symbols", len(result.Symbols)),
		attribute.Int("imports", len(result.Imports)),
	)
	recordParseMetrics(ctx, "go", time.Since(started), len(result.Symbols), true)
	return result, nil
}

func (p *GoParser) extractTopLevel(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	switch node.Type() {
	case goNodePackageClause:
		p.extractPackage(node, content, filePath, result)
	case goNodeImportDecl:
		p.extractImports(node, content, filePath, result)
	case goNodeFunctionDecl:
		if sym := p.extractFunction(node, content, filePath, ""); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}
	case goNodeMethodDecl:
		receiver := p.receiverType(node, content)
		if sym := p.extractFunction(node, content, filePath, receiver); sym != nil {
			result.Symbols = append(result.Symbols, sym)
		}
	case goNodeTypeDecl:
		p.extractTypes(node, content, filePath, result)
	case goNodeConstDecl:
		p.extractValueSpecs(node, goNodeConstSpec, SymbolKindConstant, content, filePath, result)
	case goNodeVarDecl:
		p.extractValueSpecs(node, goNodeVarSpec, SymbolKindVariable, content, filePath, result)
	}
}

func (p *GoParser) extractPackage(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != goNodePackageIdentifier {
			continue
		}
		name := nodeText(child, content)
		result.Symbols = append(result.Symbols, &Symbol{
			ID:       GenerateID(filePath, int(node.StartPoint().Row), name),
			Name:     name,
			Kind:     SymbolKindModule,
			FilePath: filePath,
			Start:    startPos(node),
			End:      endPos(node),
			Exported: true,
			Language: "go",
		})
		return
	}
}

// extractImports handles both single-spec and grouped import declarations.
func (p *GoParser) extractImports(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == goNodeImportSpec {
			p.addImportSpec(n, content, filePath, result)
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
}

func (p *GoParser) addImportSpec(spec *sitter.Node, content []byte, filePath string, result *ParseResult) {
	var path, alias string
	isWildcard := false

	for i := 0; i < int(spec.ChildCount()); i++ {
		child := spec.Child(i)
		switch child.Type() {
		case goNodeStringLiteral:
			path = stripQuotes(nodeText(child, content))
		case goNodePackageIdentifier:
			alias = nodeText(child, content)
		case goNodeBlankIdentifier:
			alias = "_"
		case goNodeDot:
			// Dot imports splice the package's names into scope.
			isWildcard = true
		}
	}
	if path == "" {
		return
	}

	name := alias
	if name == "" || name == "_" {
		name = lastPathSegment(path)
	}

	result.Imports = append(result.Imports, Import{
		Name:       name,
		Path:       path,
		Alias:      alias,
		Kind:       ImportPlain,
		IsRelative: false,
		IsWildcard: isWildcard,
		Location:   nodeLocation(spec, filePath),
	})
}

func (p *GoParser) extractFunction(node *sitter.Node, content []byte, filePath, receiver string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	if name == "" {
		return nil
	}

	kind := SymbolKindFunction
	if receiver != "" {
		kind = SymbolKindMethod
	}

	return &Symbol{
		ID:         GenerateID(filePath, int(node.StartPoint().Row), name),
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		Start:      startPos(node),
		End:        endPos(node),
		Signature:  signatureText(node, content),
		DocComment: lineCommentsAbove(node, content, goNodeComment, "//"),
		Receiver:   receiver,
		Exported:   isUpperIdent(name),
		Language:   "go",
	}
}

// receiverType returns the bare receiver type name, pointer stripped.
func (p *GoParser) receiverType(node *sitter.Node, content []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	var found string
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if found != "" {
			return
		}
		if n.Type() == goNodeTypeIdentifier {
			found = nodeText(n, content)
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(recv)
	return found
}

func (p *GoParser) extractTypes(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != goNodeTypeSpec {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, content)

		kind := SymbolKindTypeAlias
		if typeNode := spec.ChildByFieldName("type"); typeNode != nil {
			switch typeNode.Type() {
			case goNodeStructType:
				kind = SymbolKindStruct
			case goNodeInterfaceType:
				kind = SymbolKindInterface
			}
		}

		// Grouped specs carry their doc on the enclosing declaration.
		docNode := spec
		if node.ChildCount() <= 3 {
			docNode = node
		}

		result.Symbols = append(result.Symbols, &Symbol{
			ID:         GenerateID(filePath, int(spec.StartPoint().Row), name),
			Name:       name,
			Kind:       kind,
			FilePath:   filePath,
			Start:      startPos(spec),
			End:        endPos(spec),
			Signature:  signatureText(spec, content),
			DocComment: lineCommentsAbove(docNode, content, goNodeComment, "//"),
			Exported:   isUpperIdent(name),
			Language:   "go",
		})
	}
}

func (p *GoParser) extractValueSpecs(node *sitter.Node, specType string, kind SymbolKind, content []byte, filePath string, result *ParseResult) {
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == specType {
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if child.Type() != "identifier" {
					continue
				}
				name := nodeText(child, content)
				if name == "" || name == "_" {
					continue
				}
				result.Symbols = append(result.Symbols, &Symbol{
					ID:       GenerateID(filePath, int(n.StartPoint().Row), name),
					Name:     name,
					Kind:     kind,
					FilePath: filePath,
					Start:    startPos(n),
					End:      endPos(n),
					Exported: isUpperIdent(name),
					Language: "go",
				})
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
}

func lastPathSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
