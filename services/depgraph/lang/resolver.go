// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lang resolves imports to workspace files, one resolver per
// language family, with a script resolver as the fallback for anything
// unrecognized. Resolvers never return errors: a path that cannot be
// resolved is (_, false) and the traversal prunes that branch.
//
// Thread Safety: resolvers and the registry are safe for concurrent use.
package lang

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

// ImportInfo is the resolver-facing view of one import statement.
type ImportInfo struct {
	// Name is the primary bound identifier.
	Name string

	// ModulePath is the imported module specifier as written, including
	// leading dots for relative Python paths and crate:: for Rust.
	ModulePath string

	// Alias is the explicit binding alias, when one was written.
	Alias string

	// Names lists member bindings of from-style imports.
	Names []string

	// Kind classifies the import statement form.
	Kind ast.ImportKind

	// Line and Col locate the statement (0-based).
	Line int
	Col  int

	// IsRelative marks specifiers resolved against the importing file.
	IsRelative bool

	// IsWildcard marks star/glob bindings.
	IsWildcard bool
}

// fromASTImport converts a parsed ast.Import to the resolver view.
func fromASTImport(imp ast.Import) ImportInfo {
	return ImportInfo{
		Name:       imp.Name,
		ModulePath: imp.Path,
		Alias:      imp.Alias,
		Names:      imp.Names,
		Kind:       imp.Kind,
		Line:       imp.Location.Start.Line,
		Col:        imp.Location.Start.Col,
		IsRelative: imp.IsRelative,
		IsWildcard: imp.IsWildcard,
	}
}

// BoundNames returns the identifiers this import binds in the importing
// scope: member names for from-style imports, else the primary name.
func (i ImportInfo) BoundNames() []string {
	if len(i.Names) > 0 {
		return i.Names
	}
	if i.Name != "" {
		return []string{i.Name}
	}
	return nil
}

// Resolver maps one language family's import and symbol conventions onto
// the workspace.
type Resolver interface {
	// Language returns the language tag this resolver serves.
	Language() string

	// Extensions returns the file extensions it claims, without dots.
	Extensions() []string

	// ParseImports extracts import statements from source. Parse failures
	// yield whatever the fallback line scan recovers, never an error.
	ParseImports(ctx context.Context, src []byte, filePath string) []ImportInfo

	// ResolveImportToFile maps an import to an absolute workspace file.
	// False means the specifier points outside the workspace (stdlib,
	// external package) or at nothing.
	ResolveImportToFile(ctx context.Context, imp ImportInfo, currentFile, projectRoot string) (string, bool)

	// FindSymbolInFile locates a symbol's definition inside a file whose
	// lines are already cached. False when the file does not define it.
	FindSymbolInFile(ctx context.Context, path string, lines []string, symbol string) (ast.Position, bool)

	// ImplementationPatterns returns regexes matching lines that declare
	// an implementation of symbol (class X implements Y, impl Y for X).
	ImplementationPatterns(symbol string) []*regexp.Regexp
}

// Registry dispatches files to resolvers by extension, with the script
// resolver as the fallback for unclaimed extensions.
type Registry struct {
	mu         sync.RWMutex
	byLanguage map[string]Resolver
	byExt      map[string]Resolver
	fallback   Resolver
}

// NewRegistry returns a registry with every built-in resolver registered
// and the script resolver installed as fallback.
func NewRegistry() *Registry {
	r := &Registry{
		byLanguage: make(map[string]Resolver),
		byExt:      make(map[string]Resolver),
		fallback:   NewScriptResolver(),
	}
	for _, res := range []Resolver{
		NewCFamilyResolver(),
		NewPythonResolver(),
		NewGoResolver(),
		NewRustResolver(),
	} {
		r.register(res)
	}
	r.register(r.fallback)
	return r
}

func (r *Registry) register(res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLanguage[res.Language()] = res
	for _, ext := range res.Extensions() {
		r.byExt[strings.ToLower(ext)] = res
	}
}

// ForFile returns the resolver claiming the file's extension, falling back
// to the script resolver. Never nil.
func (r *Registry) ForFile(path string) Resolver {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if res, ok := r.byExt[ext]; ok {
		return res
	}
	return r.fallback
}

// ForLanguage returns the resolver for a language tag.
func (r *Registry) ForLanguage(tag string) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byLanguage[strings.ToLower(tag)]
	return res, ok
}

// Fallback returns the script resolver.
func (r *Registry) Fallback() Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Languages returns the registered language tags, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byLanguage))
	for tag := range r.byLanguage {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
