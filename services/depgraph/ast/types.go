// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast defines the language-neutral symbol model produced by the
// tree-sitter parsers and consumed by the resolver, detector, and graph
// layers.
//
// # Coordinate Convention
//
// All positions in this package are 0-based for both line and column,
// matching tree-sitter's native row/column space. Presentation layers derive
// 1-based coordinates through DisplayLine/DisplayColumn; nothing below the
// presentation boundary adds one.
//
// # Thread Safety
//
// All types in this file are value types or are treated as immutable after
// construction by their producing parser. Sharing a *Symbol between
// goroutines after parsing is safe as long as no caller mutates it.
package ast

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Position is a 0-based (line, column) coordinate within a source file.
type Position struct {
	// Line is the 0-based line index.
	Line int `json:"line"`

	// Col is the 0-based column index (byte offset within the line).
	Col int `json:"col"`
}

// DisplayLine returns the 1-based line number for presentation.
func (p Position) DisplayLine() int { return p.Line + 1 }

// DisplayColumn returns the 1-based column number for presentation.
func (p Position) DisplayColumn() int { return p.Col + 1 }

// IsValid reports whether both coordinates are non-negative.
func (p Position) IsValid() bool { return p.Line >= 0 && p.Col >= 0 }

// Before reports whether p occurs strictly before other in document order.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Col < other.Col
}

// Location identifies a span of source text within one file.
type Location struct {
	// FilePath is the absolute path to the file.
	FilePath string `json:"file_path"`

	// Start is the inclusive start position.
	Start Position `json:"start"`

	// End is the inclusive end position.
	End Position `json:"end"`
}

// Contains reports whether pos falls inside the location's span.
func (l Location) Contains(pos Position) bool {
	if pos.Line < l.Start.Line || pos.Line > l.End.Line {
		return false
	}
	if pos.Line == l.Start.Line && pos.Col < l.Start.Col {
		return false
	}
	if pos.Line == l.End.Line && l.End.Col >= 0 && pos.Col > l.End.Col {
		return false
	}
	return true
}

// SymbolKind classifies a parsed symbol.
type SymbolKind int

const (
	// SymbolKindUnknown is the zero value; parsers never emit it for
	// recognized declarations.
	SymbolKindUnknown SymbolKind = iota

	// SymbolKindFunction is a free function.
	SymbolKindFunction

	// SymbolKindMethod is a function bound to a receiver, class, or impl.
	SymbolKindMethod

	// SymbolKindClass is a class declaration (Python, ECMAScript).
	SymbolKindClass

	// SymbolKindStruct is a struct declaration (Go, Rust).
	SymbolKindStruct

	// SymbolKindInterface is an interface declaration (Go, TypeScript).
	SymbolKindInterface

	// SymbolKindTrait is a trait declaration (Rust).
	SymbolKindTrait

	// SymbolKindEnum is an enum declaration (Rust, TypeScript).
	SymbolKindEnum

	// SymbolKindTypeAlias is a named type alias.
	SymbolKindTypeAlias

	// SymbolKindVariable is a module-level or exported variable.
	SymbolKindVariable

	// SymbolKindConstant is a module-level constant.
	SymbolKindConstant

	// SymbolKindImport is an import binding materialized as a symbol.
	SymbolKindImport

	// SymbolKindModule is a module/package declaration (Rust mod, Go package).
	SymbolKindModule

	// SymbolKindComponent is a UI component (capitalized function returning
	// markup in ECMAScript dialects). Carried as capability data; the core
	// traversal treats it as a function.
	SymbolKindComponent
)

var symbolKindNames = map[SymbolKind]string{
	SymbolKindUnknown:   "unknown",
	SymbolKindFunction:  "function",
	SymbolKindMethod:    "method",
	SymbolKindClass:     "class",
	SymbolKindStruct:    "struct",
	SymbolKindInterface: "interface",
	SymbolKindTrait:     "trait",
	SymbolKindEnum:      "enum",
	SymbolKindTypeAlias: "type_alias",
	SymbolKindVariable:  "variable",
	SymbolKindConstant:  "constant",
	SymbolKindImport:    "import",
	SymbolKindModule:    "module",
	SymbolKindComponent: "component",
}

// String returns the human-readable kind name.
func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("symbol_kind(%d)", int(k))
}

// MarshalJSON serializes the kind as its string name.
func (k SymbolKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON restores a kind from its string name.
func (k *SymbolKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for kind, n := range symbolKindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownSymbolKind, name)
}

// IsCallable reports whether symbols of this kind can appear as call targets.
func (k SymbolKind) IsCallable() bool {
	switch k {
	case SymbolKindFunction, SymbolKindMethod, SymbolKindClass,
		SymbolKindComponent, SymbolKindStruct:
		return true
	default:
		return false
	}
}

// Symbol is one declaration extracted from a source file.
type Symbol struct {
	// ID uniquely identifies the symbol: "file_path:start_line:name".
	ID string `json:"id"`

	// Name is the declared identifier.
	Name string `json:"name"`

	// Kind classifies the declaration.
	Kind SymbolKind `json:"kind"`

	// FilePath is the absolute path to the declaring file.
	FilePath string `json:"file_path"`

	// Start and End bound the declaration, 0-based.
	Start Position `json:"start"`
	End   Position `json:"end"`

	// Signature is the declaration header text, single-line, best effort.
	Signature string `json:"signature,omitempty"`

	// DocComment is the documentation block immediately preceding the
	// declaration, without comment markers. Cosmetic, best effort.
	DocComment string `json:"doc_comment,omitempty"`

	// Receiver is the receiver type for Go methods, or the class/impl name
	// qualifying a member in other languages.
	Receiver string `json:"receiver,omitempty"`

	// Exported reports language-specific visibility (capitalization in Go,
	// leading underscore absence in Python, export keyword in ECMAScript,
	// pub in Rust).
	Exported bool `json:"exported"`

	// Language is the parser's language tag.
	Language string `json:"language"`
}

// GenerateID builds the canonical symbol ID from a file path, a 0-based
// start line, and a name. Injective for distinct (path, line, name) triples.
func GenerateID(filePath string, startLine int, name string) string {
	return fmt.Sprintf("%s:%d:%s", filePath, startLine, name)
}

// Location returns the symbol's span as a Location.
func (s *Symbol) Location() Location {
	return Location{FilePath: s.FilePath, Start: s.Start, End: s.End}
}

// Contains reports whether pos falls inside the symbol's span.
func (s *Symbol) Contains(pos Position) bool {
	return s.Location().Contains(pos)
}

// Validate checks the symbol's internal consistency.
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSymbol)
	}
	if s.FilePath == "" {
		return fmt.Errorf("%w: %s has empty file path", ErrInvalidSymbol, s.Name)
	}
	if !s.Start.IsValid() {
		return fmt.Errorf("%w: %s has negative start position", ErrInvalidSymbol, s.Name)
	}
	if s.End.Line < s.Start.Line {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidSymbol, s.Name)
	}
	if s.ID == "" {
		return fmt.Errorf("%w: %s has empty id", ErrInvalidSymbol, s.Name)
	}
	return nil
}

// ImportKind classifies how an import binding was expressed.
type ImportKind int

const (
	// ImportPlain is a whole-module import (Go import, Python import a.b,
	// ES import x from "m").
	ImportPlain ImportKind = iota

	// ImportFrom is a named-member import (Python from/import,
	// ES import {a, b} from "m", Rust use a::{b, c}).
	ImportFrom

	// ImportRequire is a CommonJS require binding.
	ImportRequire

	// ImportDynamic is a dynamic import(...) expression.
	ImportDynamic

	// ImportInclude is a script-style source/include directive.
	ImportInclude
)

var importKindNames = map[ImportKind]string{
	ImportPlain:   "plain",
	ImportFrom:    "from",
	ImportRequire: "require",
	ImportDynamic: "dynamic",
	ImportInclude: "include",
}

// String returns the human-readable kind name.
func (k ImportKind) String() string {
	if name, ok := importKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("import_kind(%d)", int(k))
}

// Import is one import/require/use statement extracted from a source file.
type Import struct {
	// Name is the primary bound identifier: the alias when one is given,
	// otherwise the default binding or the last path segment.
	Name string `json:"name"`

	// Path is the module path exactly as written in the source.
	Path string `json:"path"`

	// Alias is the rebinding name, when the language form provides one.
	Alias string `json:"alias,omitempty"`

	// Names lists the individually imported members for ImportFrom forms.
	Names []string `json:"names,omitempty"`

	// Kind classifies the import form.
	Kind ImportKind `json:"kind"`

	// IsRelative is true for leading-dot or path-relative module specs.
	IsRelative bool `json:"is_relative"`

	// IsWildcard is true for star imports.
	IsWildcard bool `json:"is_wildcard"`

	// Location is where the statement appears.
	Location Location `json:"location"`
}

// BoundNames returns every identifier this import introduces into scope:
// the primary name plus any named members, aliases preferred.
func (i Import) BoundNames() []string {
	seen := make(map[string]struct{}, len(i.Names)+1)
	out := make([]string, 0, len(i.Names)+1)
	add := func(name string) {
		if name == "" || name == "_" || name == "." {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	add(i.Name)
	for _, n := range i.Names {
		add(n)
	}
	return out
}

// ParseError records a syntax problem encountered during parsing. Parsers
// return partial results alongside errors; a non-empty Errors list does not
// invalidate the extracted symbols.
type ParseError struct {
	// Message describes the problem.
	Message string `json:"message"`

	// Location is where the problem was detected.
	Location Location `json:"location"`
}

// ParseResult is everything a parser extracted from one file.
type ParseResult struct {
	// FilePath is the absolute path of the parsed file.
	FilePath string `json:"file_path"`

	// Language is the parser's language tag.
	Language string `json:"language"`

	// Hash is the hex-encoded SHA-256 of the parsed content.
	Hash string `json:"hash"`

	// ParsedAtMilli is the parse timestamp in Unix milliseconds.
	ParsedAtMilli int64 `json:"parsed_at_milli"`

	// Symbols are the extracted declarations in source order.
	Symbols []*Symbol `json:"symbols"`

	// Imports are the extracted import statements in source order.
	Imports []Import `json:"imports"`

	// Errors are non-fatal syntax problems found while parsing.
	Errors []ParseError `json:"errors,omitempty"`
}

// Validate checks every extracted symbol.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return fmt.Errorf("%w: empty file path", ErrInvalidParseResult)
	}
	for _, sym := range r.Symbols {
		if err := sym.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SymbolAt returns the innermost symbol whose span contains pos, preferring
// later (more deeply nested) declarations when spans overlap.
func (r *ParseResult) SymbolAt(pos Position) (*Symbol, bool) {
	var best *Symbol
	for _, sym := range r.Symbols {
		if !sym.Contains(pos) {
			continue
		}
		if best == nil || spanLines(sym) <= spanLines(best) {
			best = sym
		}
	}
	return best, best != nil
}

// SymbolsNamed returns all symbols with the given name, in source order.
func (r *ParseResult) SymbolsNamed(name string) []*Symbol {
	var out []*Symbol
	for _, sym := range r.Symbols {
		if sym.Name == name {
			out = append(out, sym)
		}
	}
	return out
}

func spanLines(s *Symbol) int { return s.End.Line - s.Start.Line }

// LanguageForExtension maps a file extension (with or without the leading
// dot) to the language tag used across the engine. The boolean is false for
// extensions no registered parser claims; callers fall back to the script
// resolver in that case.
func LanguageForExtension(ext string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "go":
		return "go", true
	case "py", "pyi":
		return "python", true
	case "js", "jsx", "mjs", "cjs":
		return "javascript", true
	case "ts", "tsx", "mts", "cts":
		return "typescript", true
	case "rs":
		return "rust", true
	default:
		return "", false
	}
}

// LanguageForFile maps a file path to a language tag via its extension.
func LanguageForFile(path string) (string, bool) {
	return LanguageForExtension(filepath.Ext(path))
}
