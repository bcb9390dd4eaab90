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
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"go.opentelemetry.io/otel/attribute"
)

// TypeScript grammar node types layered on top of the JavaScript set.
const (
	tsNodeInterfaceDecl     = "interface_declaration"
	tsNodeTypeAliasDecl     = "type_alias_declaration"
	tsNodeEnumDecl          = "enum_declaration"
	tsNodeAbstractClassDecl = "abstract_class_declaration"
	tsNodeAmbientDecl       = "ambient_declaration"
	tsNodeInternalModule    = "internal_module"
	tsNodeTypeIdentifier    = "type_identifier"
	tsNodeStatementBlock    = "statement_block"
)

// TypeScriptParserOption configures a TypeScriptParser.
type TypeScriptParserOption func(*TypeScriptParser)

// WithTSMaxFileSize overrides the maximum accepted file size in bytes.
func WithTSMaxFileSize(size int) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		if size > 0 {
			p.maxFileSize = size
		}
	}
}

// TypeScriptParser extracts symbols and imports from TypeScript and TSX
// source. The TSX grammar is selected for .tsx files; everything the
// JavaScript extractor understands is delegated to it.
//
// Thread Safety: safe for concurrent use; a fresh tree-sitter parser is
// created per Parse call.
type TypeScriptParser struct {
	maxFileSize int
}

// NewTypeScriptParser creates a TypeScript parser with default limits.
func NewTypeScriptParser(opts ...TypeScriptParserOption) *TypeScriptParser {
	p := &TypeScriptParser{maxFileSize: defaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() string { return "typescript" }

// Extensions returns the extensions this parser claims.
func (p *TypeScriptParser) Extensions() []string { return []string{"ts", "tsx", "mts", "cts"} }

// Parse extracts symbols and imports from TypeScript source, adding
// interfaces, type aliases, enums, abstract classes, and namespaces to the
// shared ECMAScript extraction.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("typescript parse canceled before start: %w", err)
	}

	ctx, span := startParseSpan(ctx, "typescript", filePath, len(content))
	defer span.End()
	started := time.Now()

	if err := checkContent(content, p.maxFileSize); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(started), 0, false)
		return nil, err
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "typescript",
		Hash:          contentHash(content),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       make([]*Symbol, 0),
		Imports:       make([]Import, 0),
	}

	parser := sitter.NewParser()
	if strings.HasSuffix(filePath, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(started), 0, false)
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(started), 0, false)
		return nil, fmt.Errorf("typescript parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		result.Errors = append(result.Errors, ParseError{
			Message:  "source contains syntax errors; extraction is partial",
			Location: nodeLocation(root, filePath),
		})
	}

	p.extract(root, content, filePath, result, false)
	collectDynamicImports(root, content, filePath, result)

	if err := result.Validate(); err != nil {
		slog.Debug("typescript parse produced invalid symbols",
			slog.String("file", filePath),
			slog.String("error", err.Error()))
	}

	span.SetAttributes(
		attribute.Int("symbols", len(result.Symbols)),
		attribute.Int("imports", len(result.Imports)),
	)
	recordParseMetrics(ctx, "typescript", time.Since(started), len(result.Symbols), true)
	return result, nil
}

func (p *TypeScriptParser) extract(node *sitter.Node, content []byte, filePath string, result *ParseResult, exported bool) {
	switch node.Type() {
	case jsNodeProgram, tsNodeAmbientDecl, tsNodeStatementBlock:
		for i := 0; i < int(node.ChildCount()); i++ {
			p.extract(node.Child(i), content, filePath, result, exported)
		}

	case tsNodeInterfaceDecl:
		p.addNamedType(node, content, filePath, result, SymbolKindInterface, exported)

	case tsNodeTypeAliasDecl:
		p.addNamedType(node, content, filePath, result, SymbolKindTypeAlias, exported)

	case tsNodeEnumDecl:
		p.addNamedType(node, content, filePath, result, SymbolKindEnum, exported)

	case tsNodeAbstractClassDecl:
		extractESClass(node, content, filePath, "typescript", result, exported)

	case tsNodeInternalModule:
		p.extractNamespace(node, content, filePath, result, exported)

	case jsNodeExportStatement:
		// Route through the TS handler so "export interface Foo" lands here.
		handled := false
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			switch child.Type() {
			case tsNodeInterfaceDecl, tsNodeTypeAliasDecl, tsNodeEnumDecl,
				tsNodeAbstractClassDecl, tsNodeInternalModule:
				p.extract(child, content, filePath, result, true)
				handled = true
			}
		}
		if !handled {
			extractESExport(node, content, filePath, "typescript", result)
		}

	default:
		extractECMAScript(node, content, filePath, "typescript", result, exported)
	}
}

func (p *TypeScriptParser) addNamedType(node *sitter.Node, content []byte, filePath string, result *ParseResult, kind SymbolKind, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)
	if name == "" {
		return
	}
	result.Symbols = append(result.Symbols, &Symbol{
		ID:         GenerateID(filePath, int(node.StartPoint().Row), name),
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		Start:      startPos(node),
		End:        endPos(node),
		Signature:  signatureText(node, content),
		DocComment: jsDocAbove(node, content),
		Exported:   exported,
		Language:   "typescript",
	})
}

func (p *TypeScriptParser) extractNamespace(node *sitter.Node, content []byte, filePath string, result *ParseResult, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode != nil {
		name := nodeText(nameNode, content)
		result.Symbols = append(result.Symbols, &Symbol{
			ID:       GenerateID(filePath, int(node.StartPoint().Row), name),
			Name:     name,
			Kind:     SymbolKindModule,
			FilePath: filePath,
			Start:    startPos(node),
			End:      endPos(node),
			Exported: exported,
			Language: "typescript",
		})
	}
	if body := node.ChildByFieldName("body"); body != nil {
		p.extract(body, content, filePath, result, exported)
	}
}
