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
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Parser extracts symbols and imports from source content in one language.
//
// Implementations create a fresh tree-sitter parser per Parse call, so a
// single Parser value is safe for concurrent use.
type Parser interface {
	// Parse extracts a ParseResult from content. filePath is recorded in
	// the result and used for symbol IDs; it is not read from disk.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the language tag ("go", "python", ...).
	Language() string

	// Extensions returns the file extensions this parser claims, without
	// leading dots.
	Extensions() []string
}

// ParserRegistry maps language tags and file extensions to parsers.
//
// Thread Safety: safe for concurrent use.
type ParserRegistry struct {
	mu          sync.RWMutex
	byLanguage  map[string]Parser
	byExtension map[string]Parser
}

// NewParserRegistry returns an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// DefaultRegistry returns a registry with every built-in parser registered:
// Go, Python, JavaScript, TypeScript, and Rust.
func DefaultRegistry() *ParserRegistry {
	reg := NewParserRegistry()
	// Registration of built-ins cannot collide.
	_ = reg.Register(NewGoParser())
	_ = reg.Register(NewPythonParser())
	_ = reg.Register(NewJavaScriptParser())
	_ = reg.Register(NewTypeScriptParser())
	_ = reg.Register(NewRustParser())
	return reg
}

// Register adds a parser for its language and extensions. Registering a
// second parser for the same language or extension returns
// ErrDuplicateParser and leaves the registry unchanged.
func (r *ParserRegistry) Register(p Parser) error {
	if p == nil {
		return fmt.Errorf("%w: nil parser", ErrDuplicateParser)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	lang := strings.ToLower(p.Language())
	if _, exists := r.byLanguage[lang]; exists {
		return fmt.Errorf("%w: language %q", ErrDuplicateParser, lang)
	}
	for _, ext := range p.Extensions() {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if _, exists := r.byExtension[ext]; exists {
			return fmt.Errorf("%w: extension %q", ErrDuplicateParser, ext)
		}
	}

	r.byLanguage[lang] = p
	for _, ext := range p.Extensions() {
		r.byExtension[strings.ToLower(strings.TrimPrefix(ext, "."))] = p
	}
	return nil
}

// GetByLanguage returns the parser for a language tag.
func (r *ParserRegistry) GetByLanguage(language string) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byLanguage[strings.ToLower(language)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return p, nil
}

// GetByExtension returns the parser claiming a file extension. The leading
// dot is optional.
func (r *ParserRegistry) GetByExtension(ext string) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExtension[strings.ToLower(strings.TrimPrefix(ext, "."))]
	if !ok {
		return nil, fmt.Errorf("%w: extension %s", ErrUnsupportedLanguage, ext)
	}
	return p, nil
}

// GetForFile returns the parser claiming the file's extension.
func (r *ParserRegistry) GetForFile(path string) (Parser, error) {
	return r.GetByExtension(filepath.Ext(path))
}

// Languages returns the registered language tags, sorted.
func (r *ParserRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Extensions returns the registered extensions, sorted, without dots.
func (r *ParserRegistry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
