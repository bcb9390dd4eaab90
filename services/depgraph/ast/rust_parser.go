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
	"github.com/smacker/go-tree-sitter/rust"
	"go.opentelemetry.io/otel/attribute"
)

// Rust grammar node types.
const (
	rustNodeSourceFile    = "source_file"
	rustNodeUseDecl       = "use_declaration"
	rustNodeModItem       = "mod_item"
	rustNodeFunctionItem  = "function_item"
	rustNodeFunctionSig   = "function_signature_item"
	rustNodeImplItem      = "impl_item"
	rustNodeStructItem    = "struct_item"
	rustNodeEnumItem      = "enum_item"
	rustNodeTraitItem     = "trait_item"
	rustNodeConstItem     = "const_item"
	rustNodeStaticItem    = "static_item"
	rustNodeTypeItem      = "type_item"
	rustNodeMacroDef      = "macro_definition"
	rustNodeDeclList      = "declaration_list"
	rustNodeVisibility    = "visibility_modifier"
	rustNodeScopedIdent   = "scoped_identifier"
	rustNodeUseAsClause   = "use_as_clause"
	rustNodeScopedUseList = "scoped_use_list"
	rustNodeUseList       = "use_list"
	rustNodeUseWildcard   = "use_wildcard"
	rustNodeIdentifier    = "identifier"
	rustNodeLineComment   = "line_comment"
)

// RustParserOption configures a RustParser.
type RustParserOption func(*RustParser)

// WithRustMaxFileSize overrides the maximum accepted file size in bytes.
func WithRustMaxFileSize(size int) RustParserOption {
	return func(p *RustParser) {
		if size > 0 {
			p.maxFileSize = size
		}
	}
}

// RustParser extracts symbols and use declarations from Rust source.
//
// Thread Safety: safe for concurrent use; a fresh tree-sitter parser is
// created per Parse call.
type RustParser struct {
	maxFileSize int
}

// NewRustParser creates a Rust parser with default limits.
func NewRustParser(opts ...RustParserOption) *RustParser {
	p := &RustParser{maxFileSize: defaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "rust".
func (p *RustParser) Language() string { return "rust" }

// Extensions returns the extensions this parser claims.
func (p *RustParser) Extensions() []string { return []string{"rs"} }

// Parse extracts functions, impl methods, types, traits, constants, and use
// declarations from Rust source.
func (p *RustParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rust parse canceled before start: %w", err)
	}

	ctx, span := startParseSpan(ctx, "rust", filePath, len(content))
	defer span.End()
	started := time.Now()

	if err := checkContent(content, p.maxFileSize); err != nil {
		recordParseMetrics(ctx, "rust", time.Since(started), 0, false)
		return nil, err
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "rust",
		Hash:          contentHash(content),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       make([]*Symbol, 0),
		Imports:       make([]Import, 0),
	}

	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "rust", time.Since(started), 0, false)
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "rust", time.Since(started), 0, false)
		return nil, fmt.Errorf("rust parse canceled after tree-sitter: %w", err)
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
		slog.Debug("rust parse produced invalid symbols",
			slog.String("file", filePath),
			slog.String("error", err.Error()))
	}

	span.SetAttributes(
		attribute.Int("symbols", len(result.Symbols)),
		attribute.Int("imports", len(result.Imports)),
	)
	recordParseMetrics(ctx, "rust", time.Since(started), len(result.Symbols), true)
	return result, nil
}

// extract walks items in a source file, module body, or impl/trait body.
// receiver carries the impl or trait type for contained functions.
func (p *RustParser) extract(node *sitter.Node, content []byte, filePath string, result *ParseResult, receiver string) {
	switch node.Type() {
	case rustNodeSourceFile, rustNodeDeclList:
		for i := 0; i < int(node.ChildCount()); i++ {
			p.extract(node.Child(i), content, filePath, result, receiver)
		}

	case rustNodeUseDecl:
		p.processUse(node, content, filePath, result)

	case rustNodeFunctionItem, rustNodeFunctionSig:
		p.addFunction(node, content, filePath, result, receiver)

	case rustNodeImplItem:
		implType := ""
		if typeNode := node.ChildByFieldName("type"); typeNode != nil {
			implType = nodeText(typeNode, content)
		}
		if body := node.ChildByFieldName("body"); body != nil {
			p.extract(body, content, filePath, result, implType)
		}

	case rustNodeTraitItem:
		name := p.addNamedItem(node, content, filePath, result, SymbolKindTrait)
		if body := node.ChildByFieldName("body"); body != nil {
			p.extract(body, content, filePath, result, name)
		}

	case rustNodeStructItem:
		p.addNamedItem(node, content, filePath, result, SymbolKindStruct)

	case rustNodeEnumItem:
		p.addNamedItem(node, content, filePath, result, SymbolKindEnum)

	case rustNodeTypeItem:
		p.addNamedItem(node, content, filePath, result, SymbolKindTypeAlias)

	case rustNodeConstItem, rustNodeStaticItem:
		p.addNamedItem(node, content, filePath, result, SymbolKindConstant)

	case rustNodeMacroDef:
		p.addNamedItem(node, content, filePath, result, SymbolKindFunction)

	case rustNodeModItem:
		p.addNamedItem(node, content, filePath, result, SymbolKindModule)
		if body := node.ChildByFieldName("body"); body != nil {
			p.extract(body, content, filePath, result, "")
		}
	}
}

func (p *RustParser) addFunction(node *sitter.Node, content []byte, filePath string, result *ParseResult, receiver string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)
	if name == "" {
		return
	}

	kind := SymbolKindFunction
	if receiver != "" {
		kind = SymbolKindMethod
	}
	result.Symbols = append(result.Symbols, &Symbol{
		ID:         GenerateID(filePath, int(node.StartPoint().Row), name),
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		Start:      startPos(node),
		End:        endPos(node),
		Signature:  signatureText(node, content),
		DocComment: lineCommentsAbove(node, content, rustNodeLineComment, "///"),
		Receiver:   receiver,
		Exported:   rustIsPublic(node, content),
		Language:   "rust",
	})
}

func (p *RustParser) addNamedItem(node *sitter.Node, content []byte, filePath string, result *ParseResult, kind SymbolKind) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := nodeText(nameNode, content)
	if name == "" {
		return ""
	}
	result.Symbols = append(result.Symbols, &Symbol{
		ID:         GenerateID(filePath, int(node.StartPoint().Row), name),
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		Start:      startPos(node),
		End:        endPos(node),
		Signature:  signatureText(node, content),
		DocComment: lineCommentsAbove(node, content, rustNodeLineComment, "///"),
		Exported:   rustIsPublic(node, content),
		Language:   "rust",
	})
	return name
}

// processUse flattens a use declaration into one Import per bound name.
func (p *RustParser) processUse(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	arg := node.ChildByFieldName("argument")
	if arg == nil {
		return
	}
	loc := nodeLocation(node, filePath)

	switch arg.Type() {
	case rustNodeScopedIdent, rustNodeIdentifier:
		path := nodeText(arg, content)
		result.Imports = append(result.Imports, Import{
			Name:       lastRustSegment(path),
			Path:       path,
			Kind:       ImportPlain,
			IsRelative: rustIsRelativePath(path),
			Location:   loc,
		})

	case rustNodeUseAsClause:
		pathNode := arg.ChildByFieldName("path")
		aliasNode := arg.ChildByFieldName("alias")
		if pathNode == nil || aliasNode == nil {
			return
		}
		path := nodeText(pathNode, content)
		alias := nodeText(aliasNode, content)
		result.Imports = append(result.Imports, Import{
			Name:       alias,
			Path:       path,
			Alias:      alias,
			Kind:       ImportPlain,
			IsRelative: rustIsRelativePath(path),
			Location:   loc,
		})

	case rustNodeScopedUseList:
		pathNode := arg.ChildByFieldName("path")
		listNode := arg.ChildByFieldName("list")
		path := ""
		if pathNode != nil {
			path = nodeText(pathNode, content)
		}
		imp := Import{
			Name:       lastRustSegment(path),
			Path:       path,
			Kind:       ImportFrom,
			IsRelative: rustIsRelativePath(path),
			Location:   loc,
		}
		if listNode != nil {
			collectUseListNames(listNode, content, &imp)
		}
		result.Imports = append(result.Imports, imp)

	case rustNodeUseWildcard:
		path := ""
		for i := 0; i < int(arg.ChildCount()); i++ {
			child := arg.Child(i)
			if child.Type() == rustNodeScopedIdent || child.Type() == rustNodeIdentifier {
				path = nodeText(child, content)
				break
			}
		}
		result.Imports = append(result.Imports, Import{
			Name:       lastRustSegment(path),
			Path:       path,
			Kind:       ImportPlain,
			IsRelative: rustIsRelativePath(path),
			IsWildcard: true,
			Location:   loc,
		})
	}
}

// collectUseListNames gathers bound names from a use_list, flattening
// nested groups to their final segments.
func collectUseListNames(list *sitter.Node, content []byte, imp *Import) {
	for i := 0; i < int(list.ChildCount()); i++ {
		child := list.Child(i)
		switch child.Type() {
		case rustNodeIdentifier, rustNodeScopedIdent:
			imp.Names = append(imp.Names, lastRustSegment(nodeText(child, content)))
		case rustNodeUseAsClause:
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				imp.Names = append(imp.Names, nodeText(aliasNode, content))
			}
		case rustNodeScopedUseList:
			if inner := child.ChildByFieldName("list"); inner != nil {
				collectUseListNames(inner, content, imp)
			}
		case rustNodeUseWildcard:
			imp.IsWildcard = true
		}
	}
}

func rustIsPublic(node *sitter.Node, content []byte) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == rustNodeVisibility {
			return strings.HasPrefix(nodeText(child, content), "pub")
		}
	}
	return false
}

func rustIsRelativePath(path string) bool {
	return strings.HasPrefix(path, "self::") ||
		strings.HasPrefix(path, "super::") ||
		strings.HasPrefix(path, "crate::") ||
		path == "self" || path == "super" || path == "crate"
}

func lastRustSegment(path string) string {
	if idx := strings.LastIndex(path, "::"); idx >= 0 {
		return path[idx+2:]
	}
	return path
}
