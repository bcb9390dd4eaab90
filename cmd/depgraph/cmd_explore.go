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
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/tui"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	exploreDirection string
	exploreDepth     int
	exploreHideFiles bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var exploreCmd = &cobra.Command{
	Use:   "explore SEED",
	Short: "Explore a dependency graph interactively",
	Long: `Build a dependency graph and walk it in an interactive terminal UI.

The seed is FILE:LINE or FILE:LINE:COL with 1-based line and column.
Inside the explorer: j/k move, enter expands, p flips between callers
and callees, d opens node detail, / filters by symbol, ? shows help,
q quits. The node under the cursor at quit is printed as FILE:LINE:COL
so shells can capture it.

Examples:
  depgraph explore services/auth/login.go:42
  depgraph explore main.go:10 --direction up --depth 4
  vim $(depgraph explore main.go:10 | cut -d: -f1)`,
	Args: cobra.ExactArgs(1),
	Run:  runExplore,
}

func init() {
	exploreCmd.Flags().StringVarP(&exploreDirection, "direction", "d", "",
		"Traversal direction: up, down, or both (default from config)")
	exploreCmd.Flags().IntVar(&exploreDepth, "depth", 0,
		"Maximum traversal depth (0 = config default)")
	exploreCmd.Flags().BoolVar(&exploreHideFiles, "hide-files", false,
		"Hide file:line columns in the tree pane")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runExplore(cmd *cobra.Command, args []string) {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "Error: explore needs a terminal; use 'depgraph build' for piped output")
		os.Exit(exitBadArgs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	seed, err := parseSeed(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitBadArgs)
	}

	_, result, err := buildFromSeed(ctx, seed, exploreDirection, exploreDepth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: build failed: %v\n", err)
		os.Exit(exitError)
	}

	config := tui.DefaultExplorerConfig()
	config.ShowFiles = !exploreHideFiles

	model := tui.NewExplorerModel(result.Graph, config)
	program := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := program.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: explorer failed: %v\n", err)
		os.Exit(exitError)
	}

	// Print the cursor position so the selection survives the alt screen.
	if explorer, ok := finalModel.(tui.ExplorerModel); ok {
		if node := explorer.Selected(); node != nil {
			fmt.Printf("%s:%d:%d\n", node.FullPath, node.DisplayLine(), node.DisplayColumn())
		}
	}
	os.Exit(exitSuccess)
}
