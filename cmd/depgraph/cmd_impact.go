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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/impact"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	impactSeed      string
	impactSnapshot  string
	impactDirection string
	impactDepth     int
	impactJSON      bool
	impactFormat    string
	impactFailOn    bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var impactCmd = &cobra.Command{
	Use:   "impact [PATCH_FILE]",
	Short: "Report which graph nodes a patch touches",
	Long: `Intersect a unified diff with a dependency graph.

The patch comes from PATCH_FILE, or from stdin when the argument is
omitted or is "-". The graph comes from one of:
  --seed FILE:LINE[:COL]   build a fresh graph around the seed
  --snapshot SNAPSHOT_ID   load a saved snapshot

The report lists directly touched nodes (declaration or recorded
reference on a changed line) and the ancestor closure that transitively
depends on them.

Examples:
  git diff | depgraph impact --seed services/auth/login.go:42
  depgraph impact change.patch --snapshot 4f1f3a98aa514c7e
  git diff main | depgraph impact --seed main.go:10 --fail-on-impact

CI/CD Integration:
  --fail-on-impact exits 1 when the patch reaches any graph node.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runImpactAnalysis,
}

func init() {
	impactCmd.Flags().StringVar(&impactSeed, "seed", "",
		"Build a graph at FILE:LINE[:COL] (1-based) and analyze against it")
	impactCmd.Flags().StringVar(&impactSnapshot, "snapshot", "",
		"Analyze against a saved snapshot")
	impactCmd.Flags().StringVarP(&impactDirection, "direction", "d", "",
		"Traversal direction for --seed builds (default from config)")
	impactCmd.Flags().IntVar(&impactDepth, "depth", 0,
		"Maximum traversal depth for --seed builds (0 = config default)")
	impactCmd.Flags().BoolVar(&impactJSON, "json", false,
		"Output as JSON for scripting")
	impactCmd.Flags().StringVar(&impactFormat, "format", "summary",
		"Output format: summary, full")
	impactCmd.Flags().BoolVar(&impactFailOn, "fail-on-impact", false,
		"Exit 1 when the patch reaches any graph node")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runImpactAnalysis(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	if (impactSeed == "") == (impactSnapshot == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of --seed or --snapshot is required")
		os.Exit(exitBadArgs)
	}

	patch, err := readPatch(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading patch: %v\n", err)
		os.Exit(exitBadArgs)
	}

	g, err := impactGraph(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	analyzer := impact.NewAnalyzer(impact.WithProjectRoot(flagProject))
	report, err := analyzer.Analyze(ctx, g, patch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: impact analysis failed: %v\n", err)
		os.Exit(exitError)
	}

	if impactJSON {
		outputJSON(report)
	} else {
		outputImpactText(report, impactFormat)
	}

	if impactFailOn && report.Summary.DirectNodes+report.Summary.AffectedNodes > 0 {
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

// readPatch reads the unified diff from the file argument or stdin.
func readPatch(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// impactGraph resolves the graph to analyze: a fresh build around --seed,
// or a loaded --snapshot.
func impactGraph(ctx context.Context) (*graph.Graph, error) {
	if impactSnapshot != "" {
		mgr, cleanup, err := openSnapshotStore()
		if err != nil {
			return nil, err
		}
		defer cleanup()

		g, _, err := mgr.Load(ctx, impactSnapshot)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot %s: %w", impactSnapshot, err)
		}
		return g, nil
	}

	seed, err := parseSeed(impactSeed)
	if err != nil {
		return nil, err
	}
	_, result, err := buildFromSeed(ctx, seed, impactDirection, impactDepth)
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}
	return result.Graph, nil
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputImpactText(report *impact.Report, format string) {
	fmt.Printf("Changed files: %d\n", report.Summary.FilesChanged)
	if format == "full" {
		for _, f := range report.Files {
			fmt.Printf("  %-9s %s\n", f.Status, f.Path)
		}
	}

	fmt.Println()
	if report.Summary.DirectNodes == 0 {
		fmt.Println("No graph nodes touched.")
		return
	}

	fmt.Printf("Directly changed (%d):\n", report.Summary.DirectNodes)
	for _, n := range report.Direct {
		fmt.Printf("  %s:%d  %s  (%s)\n", n.File, n.Line+1, n.Symbol, n.Reason)
	}

	if report.Summary.AffectedNodes > 0 {
		fmt.Println()
		fmt.Printf("Transitively affected (%d, max distance %d):\n",
			report.Summary.AffectedNodes, report.Summary.MaxDistance)
		limit := 10
		if format == "full" {
			limit = len(report.Affected)
		}
		for i, n := range report.Affected {
			if i >= limit {
				fmt.Printf("  ... and %d more (use --format full)\n", len(report.Affected)-limit)
				break
			}
			fmt.Printf("  %s:%d  %s  (distance %d)\n", n.File, n.Line+1, n.Symbol, n.Distance)
		}
	}
}
