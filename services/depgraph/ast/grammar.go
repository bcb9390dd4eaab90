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
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// grammarByExtension mirrors the extension claims of the built-in parsers.
// TSX gets its own grammar; plain TypeScript variants share one.
var grammarByExtension = map[string]func() *sitter.Language{
	"go":  golang.GetLanguage,
	"py":  python.GetLanguage,
	"pyi": python.GetLanguage,
	"js":  javascript.GetLanguage,
	"jsx": javascript.GetLanguage,
	"mjs": javascript.GetLanguage,
	"cjs": javascript.GetLanguage,
	"ts":  typescript.GetLanguage,
	"mts": typescript.GetLanguage,
	"cts": typescript.GetLanguage,
	"tsx": tsx.GetLanguage,
	"rs":  rust.GetLanguage,
}

// GrammarForFile returns the tree-sitter grammar for a file path, selected
// by extension the same way DefaultRegistry selects parsers. Callers that
// need a raw parse tree (rather than extracted symbols) use this to drive
// their own sitter.Parser.
func GrammarForFile(path string) (*sitter.Language, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	get, ok := grammarByExtension[ext]
	if !ok {
		return nil, false
	}
	return get(), true
}
