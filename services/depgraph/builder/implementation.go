// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/lang"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/provider"
)

// FindImplementation locates a concrete implementation of the symbol behind
// rootID and attaches it to the graph as a child of that node, marked with
// IsImplementation and Implements.
//
// Providers with the ImplementationFinder capability answer directly.
// Otherwise the session runs the language's implementation patterns over a
// bounded set of candidate files. Finding nothing is a normal terminal:
// (false, nil).
func (s *Session) FindImplementation(ctx context.Context, rootID graph.NodeID) (bool, error) {
	root := s.graph.Get(rootID)
	if root == nil {
		return false, fmt.Errorf("implementation root %q: %w", rootID, graph.ErrNodeNotFound)
	}

	ctx, span := startImplementationSpan(ctx, s.id.String(), root.Symbol)
	defer span.End()

	if fi, ok := s.provider.(provider.ImplementationFinder); ok {
		pos := ast.Position{Line: root.Line, Col: root.Col}
		for _, loc := range fi.Implementation(ctx, root.FullPath, pos) {
			if s.materializeImplementation(ctx, root, loc.FilePath, loc.Start) {
				recordImplementation(ctx, "capability")
				return true, nil
			}
		}
	}

	resolver := s.resolvers.ForFile(root.FullPath)
	patterns := resolver.ImplementationPatterns(root.Symbol)
	if len(patterns) == 0 {
		recordImplementation(ctx, "none")
		return false, nil
	}

	for _, path := range s.implementationCandidates(root, resolver) {
		if ctx.Err() != nil {
			recordImplementation(ctx, "none")
			return false, ctx.Err()
		}
		lines, ok := s.provider.ReadFile(ctx, path)
		if !ok {
			continue
		}
		for lineNo, line := range lines {
			for _, pattern := range patterns {
				m := pattern.FindStringIndex(line)
				if m == nil {
					continue
				}
				if s.materializeImplementation(ctx, root, path, ast.Position{Line: lineNo, Col: m[0]}) {
					recordImplementation(ctx, "search")
					return true, nil
				}
			}
		}
	}

	recordImplementation(ctx, "none")
	return false, nil
}

// materializeImplementation grows the graph by one level below root at the
// implementation position and stamps the node. A position that collapses to
// root itself, or that fails to resolve, yields false so the caller keeps
// searching.
func (s *Session) materializeImplementation(ctx context.Context, root *graph.Node, file string, pos ast.Position) bool {
	file = s.absolute(file)
	if graph.ComputeID(file, pos.Line, pos.Col) == root.ID {
		return false
	}
	id := s.expandNode(ctx, file, pos, "", root.ID, 1, 1, graph.DirectionDown)
	if id == "" {
		return false
	}
	node := s.graph.Get(id)
	if node == nil {
		return false
	}
	node.IsImplementation = true
	node.Implements = root.ID
	s.logger.Debug("implementation attached",
		slog.String("root", string(root.ID)),
		slog.String("implementation", string(node.ID)),
		slog.String("symbol", node.Symbol))
	return true
}

// implementationCandidates lists the files the pattern search may scan,
// capped at maxImplFiles. Indexed providers supply their file list; bare
// providers fall back to a bounded walk under the project root.
func (s *Session) implementationCandidates(root *graph.Node, resolver lang.Resolver) []string {
	exts := make(map[string]bool, 4)
	for _, ext := range resolver.Extensions() {
		exts["."+strings.ToLower(ext)] = true
	}

	if ip, ok := s.provider.(indexedProvider); ok && ip.Index() != nil {
		var out []string
		for _, path := range ip.Index().Files() {
			if !exts[strings.ToLower(filepath.Ext(path))] {
				continue
			}
			out = append(out, path)
			if len(out) >= s.maxImplFiles {
				break
			}
		}
		return out
	}

	if s.projectRoot == "" {
		return nil
	}
	var out []string
	_ = filepath.WalkDir(s.projectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == s.projectRoot {
				return nil
			}
			name := d.Name()
			for _, excluded := range provider.DefaultExcludes {
				if name == excluded {
					return fs.SkipDir
				}
			}
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		out = append(out, path)
		if len(out) >= s.maxImplFiles {
			return fs.SkipAll
		}
		return nil
	})
	return out
}
