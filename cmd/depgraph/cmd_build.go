// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/builder"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/provider"
)

// buildTimeout bounds the workspace scan plus the traversal.
const buildTimeout = 2 * time.Minute

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	buildDirection    string
	buildDepth        int
	buildFormat       string
	buildJSON         bool
	buildIncludeGraph bool
	buildSave         bool
	buildLabel        string
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var buildCmd = &cobra.Command{
	Use:   "build SEED",
	Short: "Build a dependency graph from a seed position",
	Long: `Build a dependency graph seeded at a position in a source file.

The seed is FILE:LINE or FILE:LINE:COL with 1-based line and column, the
way editors display them. The file path is relative to the project root.

Direction selects what the walk follows:
  up    - callers (who depends on the seed)
  down  - callees and imports (what the seed depends on)
  both  - both ways

Examples:
  depgraph build services/auth/login.go:42
  depgraph build pkg/api/handler.go:17:6 --direction up
  depgraph build main.go:10 --depth 3 --format flat
  depgraph build main.go:10 --json --include-graph
  depgraph build main.go:10 --save --label "before refactor"`,
	Args: cobra.ExactArgs(1),
	Run:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildDirection, "direction", "d", "",
		"Traversal direction: up, down, or both (default from config)")
	buildCmd.Flags().IntVar(&buildDepth, "depth", 0,
		"Maximum traversal depth (0 = config default)")
	buildCmd.Flags().StringVar(&buildFormat, "format", "tree",
		"Output format: tree, flat, columns")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false,
		"Output as JSON for scripting")
	buildCmd.Flags().BoolVar(&buildIncludeGraph, "include-graph", false,
		"Include the full serialized graph in JSON output")
	buildCmd.Flags().BoolVar(&buildSave, "save", false,
		"Save the built graph to the snapshot store")
	buildCmd.Flags().StringVar(&buildLabel, "label", "",
		"Label for the saved snapshot (implies --save)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runBuild(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	seed, err := parseSeed(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitBadArgs)
	}

	_, result, err := buildFromSeed(ctx, seed, buildDirection, buildDepth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: build failed: %v\n", err)
		os.Exit(exitError)
	}

	var meta *graph.SnapshotMetadata
	if buildSave || buildLabel != "" {
		meta, err = saveGraphSnapshot(ctx, result.Graph, buildLabel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: saving snapshot: %v\n", err)
			os.Exit(exitError)
		}
	}

	if buildJSON {
		outputBuildJSON(result, meta)
	} else {
		outputBuildText(result, meta)
	}
	os.Exit(exitSuccess)
}

// =============================================================================
// SHARED BUILD HELPERS
// =============================================================================

// seedRef is a parsed FILE:LINE[:COL] argument. Line and Col are already
// converted to the engine's 0-based convention.
type seedRef struct {
	File string
	Pos  ast.Position
}

// parseSeed parses FILE:LINE or FILE:LINE:COL with 1-based line and column.
func parseSeed(arg string) (seedRef, error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return seedRef{}, fmt.Errorf("seed must be FILE:LINE or FILE:LINE:COL, got %q", arg)
	}
	if parts[0] == "" {
		return seedRef{}, fmt.Errorf("seed %q has an empty file path", arg)
	}

	line, err := strconv.Atoi(parts[1])
	if err != nil || line < 1 {
		return seedRef{}, fmt.Errorf("seed line must be a positive integer, got %q", parts[1])
	}

	col := 1
	if len(parts) == 3 {
		col, err = strconv.Atoi(parts[2])
		if err != nil || col < 1 {
			return seedRef{}, fmt.Errorf("seed column must be a positive integer, got %q", parts[2])
		}
	}

	return seedRef{
		File: parts[0],
		Pos:  ast.Position{Line: line - 1, Col: col - 1},
	}, nil
}

// workspaceExcludes mirrors the service's provider wiring: configured
// excludes plus the snapshot directory when it lives inside the project.
func workspaceExcludes() []string {
	excludes := append([]string{}, provider.DefaultExcludes...)
	excludes = append(excludes, cliConfig.Build.Excludes...)
	if cliConfig.Snapshots.Enabled {
		dir := cliConfig.Snapshots.Dir
		if dir != "" && !filepath.IsAbs(dir) {
			parts := strings.Split(filepath.ToSlash(filepath.Clean(dir)), "/")
			if len(parts) > 0 && parts[0] != "." && parts[0] != ".." {
				excludes = append(excludes, parts[0])
			}
		}
	}
	return excludes
}

// buildFromSeed scans the workspace and runs one traversal. Empty direction
// and zero depth fall back to the configured defaults.
func buildFromSeed(ctx context.Context, seed seedRef, direction string, depth int) (*builder.Session, *builder.Result, error) {
	if direction == "" {
		direction = cliConfig.Build.Direction
	}
	dir, err := graph.ParseDirection(direction)
	if err != nil {
		return nil, nil, err
	}
	if depth <= 0 {
		depth = cliConfig.Build.MaxDepth
	}

	p, err := provider.NewLocalProvider(ctx, flagProject,
		provider.WithExcludes(workspaceExcludes()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning workspace: %w", err)
	}

	session, err := builder.NewSession(p,
		builder.WithMaxImplementationFiles(cliConfig.Build.MaxImplementationFiles),
	)
	if err != nil {
		return nil, nil, err
	}

	result, err := session.Build(ctx, seed.File, seed.Pos, depth, dir)
	if err != nil {
		return nil, nil, err
	}
	return session, result, nil
}

// saveGraphSnapshot opens the snapshot store just long enough to persist g.
func saveGraphSnapshot(ctx context.Context, g *graph.Graph, label string) (*graph.SnapshotMetadata, error) {
	mgr, cleanup, err := openSnapshotStore()
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return mgr.Save(ctx, g, label)
}

// relToProject shortens absolute workspace paths for display.
func relToProject(path string) string {
	if rel, err := filepath.Rel(flagProject, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

// buildOutput is the JSON document printed by --json.
type buildOutput struct {
	RootID     string                   `json:"root_id"`
	Stats      builder.Stats            `json:"stats"`
	SnapshotID string                   `json:"snapshot_id,omitempty"`
	Graph      *graph.SerializableGraph `json:"graph,omitempty"`
}

func outputBuildJSON(result *builder.Result, meta *graph.SnapshotMetadata) {
	out := buildOutput{
		RootID: string(result.RootID),
		Stats:  result.Stats,
	}
	if meta != nil {
		out.SnapshotID = meta.SnapshotID
	}
	if buildIncludeGraph {
		out.Graph = result.Graph.ToSerializable()
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(exitError)
	}
}

func outputBuildText(result *builder.Result, meta *graph.SnapshotMetadata) {
	g := result.Graph
	root := g.Root()
	if root == nil {
		fmt.Println("Empty graph.")
		return
	}

	effective := buildDirection
	if effective == "" {
		effective = cliConfig.Build.Direction
	}
	dir, _ := graph.ParseDirection(effective)

	switch buildFormat {
	case "flat":
		outputNodesFlat(g)
	case "columns":
		outputNodesColumns(g)
	default: // tree
		fmt.Print(renderGraphTree(g, dir))
	}

	fmt.Printf("\n%d nodes, %d edges in %dms", g.Len(), g.EdgeCount(), result.Stats.ElapsedMilli)
	if result.Stats.PrunedDepth > 0 {
		fmt.Printf(" (%d branches pruned at depth)", result.Stats.PrunedDepth)
	}
	fmt.Println()

	if meta != nil {
		fmt.Printf("Snapshot saved: %s\n", meta.SnapshotID)
	}
}

func outputNodesFlat(g *graph.Graph) {
	for _, node := range g.Nodes() {
		fmt.Printf("  %s:%d  %s()\n", node.File, node.DisplayLine(), node.Symbol)
	}
}

func outputNodesColumns(g *graph.Graph) {
	for _, node := range g.Nodes() {
		fmt.Printf("%s:%d:%s\n", relToProject(node.FullPath), node.DisplayLine(), node.Symbol)
	}
}

// renderGraphTree draws the graph as a box-drawing tree from the root,
// following parent edges for upward builds and child edges otherwise. A
// node already on the walk path prints with a cycle marker and is not
// descended into.
func renderGraphTree(g *graph.Graph, dir graph.Direction) string {
	root := g.Root()
	if root == nil {
		return "Empty graph.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s:%d\n", root.Symbol, relToProject(root.FullPath), root.DisplayLine())

	onPath := map[graph.NodeID]bool{root.ID: true}

	var walk func(id graph.NodeID, prefix string)
	walk = func(id graph.NodeID, prefix string) {
		node := g.Get(id)
		if node == nil {
			return
		}
		edges := node.Children
		if dir == graph.DirectionUp {
			edges = node.Parents
		}
		for i, kid := range edges {
			connector, nested := "├──", "│   "
			if i == len(edges)-1 {
				connector, nested = "└──", "    "
			}

			kidNode := g.Get(kid)
			if kidNode == nil {
				continue
			}
			if onPath[kid] {
				fmt.Fprintf(&b, "%s%s %s ↺\n", prefix, connector, kidNode.Symbol)
				continue
			}

			fmt.Fprintf(&b, "%s%s %s  %s:%d\n",
				prefix, connector, kidNode.Symbol, kidNode.File, kidNode.DisplayLine())

			onPath[kid] = true
			walk(kid, prefix+nested)
			delete(onPath, kid)
		}
	}
	walk(root.ID, "")

	return b.String()
}
