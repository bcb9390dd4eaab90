// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

// Provider answers the four questions the traversal asks about source code.
// Every method degrades instead of erroring: an empty or false result means
// the answer is unknown and the caller prunes that branch.
type Provider interface {
	// SymbolAt returns the name of the symbol at a position.
	SymbolAt(ctx context.Context, file string, pos ast.Position) (string, bool)

	// References returns the locations that mention the symbol at a
	// position, across the workspace.
	References(ctx context.Context, file string, pos ast.Position) []ast.Location

	// Definitions returns the locations where the symbol at a position is
	// declared.
	Definitions(ctx context.Context, file string, pos ast.Position) []ast.Location

	// ReadFile returns the file's lines, cached.
	ReadFile(ctx context.Context, path string) ([]string, bool)
}

// TreeParser is an optional capability: providers that can hand out raw
// parse trees let the detector run structurally instead of by regex.
// Callers discover it by type assertion.
type TreeParser interface {
	// ParseTree returns the file's parse tree and the exact content it was
	// parsed from. The tree is owned by the provider; callers must not
	// Close it.
	ParseTree(ctx context.Context, file string) (*sitter.Tree, []byte, bool)
}

// ImplementationFinder is an optional capability: providers backed by an
// engine that understands interface satisfaction can answer implementation
// queries directly, skipping the pattern-based fallback.
type ImplementationFinder interface {
	// Implementation returns locations of concrete implementations of the
	// symbol at a position.
	Implementation(ctx context.Context, file string, pos ast.Position) []ast.Location
}
