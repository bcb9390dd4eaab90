// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

// Impact reasons, most specific first. A node whose declaration line is
// inside a touched range is "declaration"; one that merely uses a symbol on
// a touched line is "reference"; everything reached through parent edges is
// "ancestor".
const (
	ReasonDeclaration = "declaration"
	ReasonReference   = "reference"
	ReasonAncestor    = "ancestor"
)

// NodeImpact is one graph node reached by the patch.
type NodeImpact struct {
	// NodeID identifies the node in the analyzed graph.
	NodeID string `json:"node_id"`

	// Symbol and File locate it for a human reader.
	Symbol string `json:"symbol"`
	File   string `json:"file"`
	Path   string `json:"path"`
	Line   int    `json:"line"`

	// Distance is 0 for directly changed nodes; otherwise the number of
	// parent hops from the nearest directly changed node.
	Distance int `json:"distance"`

	// Reason is declaration, reference, or ancestor.
	Reason string `json:"reason"`
}

// Summary aggregates a report.
type Summary struct {
	FilesChanged  int `json:"files_changed"`
	DirectNodes   int `json:"direct_nodes"`
	AffectedNodes int `json:"affected_nodes"`
	MaxDistance   int `json:"max_distance"`
}

// Report is the result of one impact analysis.
type Report struct {
	// Files are the per-file change summaries parsed from the patch.
	Files []FileChange `json:"files"`

	// Direct are nodes whose declaration or recorded references sit on
	// touched lines, sorted by path then line.
	Direct []NodeImpact `json:"direct"`

	// Affected is the ancestor closure of Direct, sorted by distance then
	// id. Direct nodes are not repeated here.
	Affected []NodeImpact `json:"affected"`

	// Summary aggregates the counts above.
	Summary Summary `json:"summary"`
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the structural logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithProjectRoot anchors repo-relative patch paths. When set, a patch path
// resolves to exactly one absolute path; without it, matching falls back to
// path-suffix comparison against the graph's files.
func WithProjectRoot(root string) Option {
	return func(a *Analyzer) {
		a.projectRoot = root
	}
}

// Analyzer intersects patches with built graphs.
type Analyzer struct {
	logger      *slog.Logger
	projectRoot string
}

// NewAnalyzer creates an Analyzer with the given options.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze parses patch and reports which nodes of g it reaches.
//
// Description:
//
//	Maps each file diff to touched line ranges in original-file
//	coordinates, finds the graph nodes whose declaration line or recorded
//	variable references fall inside those ranges, then walks parent edges
//	to collect every node that transitively depends on a changed one.
//
// Inputs:
//
//	ctx - Context for tracing and cancellation.
//	g - A built graph. Must not be nil and must not be mutated during the
//	   call.
//	patch - A unified diff. Must not be empty.
//
// Outputs:
//
//	*Report - Deterministically ordered impact report.
//	error - ErrEmptyPatch, ErrMalformedPatch, or graph.ErrNilGraph.
func (a *Analyzer) Analyze(ctx context.Context, g *graph.Graph, patch string) (*Report, error) {
	if g == nil {
		return nil, graph.ErrNilGraph
	}
	if strings.TrimSpace(patch) == "" {
		return nil, ErrEmptyPatch
	}

	start := time.Now()
	ctx, span := startAnalyzeSpan(ctx, g.Len())
	defer span.End()

	files, err := parsePatch(patch)
	if err != nil {
		recordAnalysis(ctx, time.Since(start), 0, false)
		return nil, err
	}

	direct := a.directImpacts(g, files)
	affected := ancestorClosure(g, direct)

	report := &Report{
		Files:    files,
		Direct:   direct,
		Affected: affected,
		Summary: Summary{
			FilesChanged:  len(files),
			DirectNodes:   len(direct),
			AffectedNodes: len(affected),
			MaxDistance:   maxDistance(affected),
		},
	}

	span.SetAttributes(
		attribute.Int("impact.files", len(files)),
		attribute.Int("impact.direct", len(direct)),
		attribute.Int("impact.affected", len(affected)),
	)
	recordAnalysis(ctx, time.Since(start), len(direct)+len(affected), true)

	a.logger.Info("impact analysis complete",
		slog.Int("files", len(files)),
		slog.Int("direct", len(direct)),
		slog.Int("affected", len(affected)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return report, nil
}

// directImpacts finds nodes sitting on touched lines.
func (a *Analyzer) directImpacts(g *graph.Graph, files []FileChange) []NodeImpact {
	var out []NodeImpact
	seen := make(map[string]bool)

	for _, fc := range files {
		if fc.Status == "added" || len(fc.Ranges) == 0 {
			continue
		}
		for _, node := range a.nodesForPath(g, fc.Path) {
			if seen[node.ID] {
				continue
			}
			reason, hit := classifyDirect(node, fc.Ranges)
			if !hit {
				continue
			}
			seen[node.ID] = true
			out = append(out, NodeImpact{
				NodeID:   node.ID,
				Symbol:   node.Symbol,
				File:     node.File,
				Path:     node.FullPath,
				Line:     node.Line,
				Distance: 0,
				Reason:   reason,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

// classifyDirect reports whether node intersects any touched range and how.
func classifyDirect(node *graph.Node, ranges []LineRange) (string, bool) {
	for _, r := range ranges {
		if r.Contains(node.Line) {
			return ReasonDeclaration, true
		}
	}
	for _, ref := range node.VariablesUsed {
		for _, r := range ranges {
			if r.Contains(ref.Line) {
				return ReasonReference, true
			}
		}
	}
	return "", false
}

// nodesForPath resolves a repo-relative patch path to graph nodes.
func (a *Analyzer) nodesForPath(g *graph.Graph, relPath string) []*graph.Node {
	if a.projectRoot != "" {
		return g.NodesByFile(filepath.Join(a.projectRoot, relPath))
	}

	// Without a root, fall back to suffix matching across the graph.
	suffix := "/" + filepath.ToSlash(relPath)
	var out []*graph.Node
	for _, node := range g.Nodes() {
		full := filepath.ToSlash(node.FullPath)
		if full == relPath || strings.HasSuffix(full, suffix) {
			out = append(out, node)
		}
	}
	return out
}

// ancestorClosure walks parent edges breadth-first from the direct set,
// recording the hop distance at which each ancestor is first reached.
// The seen set makes cycles terminate.
func ancestorClosure(g *graph.Graph, direct []NodeImpact) []NodeImpact {
	seen := make(map[graph.NodeID]bool, len(direct))
	type queued struct {
		id       graph.NodeID
		distance int
	}
	var queue []queued

	for _, d := range direct {
		id := graph.NodeID(d.NodeID)
		seen[id] = true
		queue = append(queue, queued{id: id, distance: 0})
	}

	var out []NodeImpact
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		node := g.Get(cur.id)
		if node == nil {
			continue
		}
		for _, parentID := range node.Parents {
			if seen[parentID] {
				continue
			}
			seen[parentID] = true

			parent := g.Get(parentID)
			if parent == nil {
				continue
			}
			out = append(out, NodeImpact{
				NodeID:   parent.ID,
				Symbol:   parent.Symbol,
				File:     parent.File,
				Path:     parent.FullPath,
				Line:     parent.Line,
				Distance: cur.distance + 1,
				Reason:   ReasonAncestor,
			})
			queue = append(queue, queued{id: parentID, distance: cur.distance + 1})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

func maxDistance(affected []NodeImpact) int {
	max := 0
	for _, n := range affected {
		if n.Distance > max {
			max = n.Distance
		}
	}
	return max
}
