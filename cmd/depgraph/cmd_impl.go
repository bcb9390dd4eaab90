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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	implDepth int
	implJSON  bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var implCmd = &cobra.Command{
	Use:   "impl SEED",
	Short: "Find the concrete implementation behind an interface symbol",
	Long: `Find the concrete implementation behind the interface symbol at SEED.

The seed is FILE:LINE or FILE:LINE:COL with 1-based line and column,
pointing at an interface or abstract declaration. The search runs a
shallow downward build first, then scans workspace files whose imports
or naming make them implementation candidates.

A completed search that finds nothing is not an error; the command
reports "no implementation found" and exits 0.

Examples:
  depgraph impl pkg/storage/store.go:14
  depgraph impl pkg/storage/store.go:14:6 --json`,
	Args: cobra.ExactArgs(1),
	Run:  runImpl,
}

func init() {
	implCmd.Flags().IntVar(&implDepth, "depth", 1,
		"Depth of the preparatory downward build")
	implCmd.Flags().BoolVar(&implJSON, "json", false,
		"Output as JSON for scripting")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// implOutput is the JSON document printed by --json.
type implOutput struct {
	RootID           string `json:"root_id"`
	Found            bool   `json:"found"`
	ImplementationID string `json:"implementation_id,omitempty"`
	Symbol           string `json:"symbol,omitempty"`
	File             string `json:"file,omitempty"`
	Line             int    `json:"line,omitempty"`
}

func runImpl(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	seed, err := parseSeed(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitBadArgs)
	}

	session, result, err := buildFromSeed(ctx, seed, "down", implDepth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: build failed: %v\n", err)
		os.Exit(exitError)
	}

	found, err := session.FindImplementation(ctx, result.RootID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: implementation search failed: %v\n", err)
		os.Exit(exitError)
	}

	out := implOutput{RootID: string(result.RootID), Found: found}
	if found {
		for _, node := range session.Graph().Nodes() {
			if node.IsImplementation && node.Implements == result.RootID {
				out.ImplementationID = string(node.ID)
				out.Symbol = node.Symbol
				out.File = node.FullPath
				out.Line = node.Line
				break
			}
		}
	}

	if implJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(exitError)
		}
		os.Exit(exitSuccess)
	}

	root := session.Graph().Get(result.RootID)
	if !found {
		fmt.Printf("No implementation found for %s.\n", describeNode(root))
		os.Exit(exitSuccess)
	}

	impl := session.Graph().Get(graph.NodeID(out.ImplementationID))
	fmt.Printf("Implementation of %s:\n", describeNode(root))
	fmt.Printf("  %s  %s:%d\n", out.Symbol, relToProject(out.File), displayLine(impl, out.Line))
	os.Exit(exitSuccess)
}

// describeNode names a node for human output without assuming it exists.
func describeNode(node *graph.Node) string {
	if node == nil {
		return "the seed symbol"
	}
	return fmt.Sprintf("%s (%s:%d)", node.Symbol, node.File, node.DisplayLine())
}

// displayLine converts the 0-based line to the 1-based display convention,
// preferring the node's own accessor when the node is at hand.
func displayLine(node *graph.Node, rawLine int) int {
	if node != nil {
		return node.DisplayLine()
	}
	return rawLine + 1
}
