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
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/config"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

// snapshotTimeout bounds store operations; badger work is local and fast.
const snapshotTimeout = 30 * time.Second

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	snapshotsJSON  bool
	snapshotsLimit int
	snapshotsRoot  string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage saved graph snapshots",
	Long: `Commands for listing, inspecting, diffing, and deleting snapshots.

Snapshots are gzip-compressed graphs in a BadgerDB store under the
project's snapshot directory (.depgraph/snapshots by default). They are
created by 'depgraph build --save' or through the HTTP service.

Subcommands:
  list  - List snapshots, newest first
  show  - Show one snapshot's metadata
  diff  - Compare two snapshots node by node
  rm    - Delete a snapshot

Examples:
  depgraph snapshots list
  depgraph snapshots show 4f1f3a98aa514c7e
  depgraph snapshots diff 4f1f3a98aa514c7e 9d2c41706b7e8f10
  depgraph snapshots rm 4f1f3a98aa514c7e`,
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	Run:   runSnapshotsList,
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show SNAPSHOT_ID",
	Short: "Show one snapshot's metadata",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotsShow,
}

var snapshotsDiffCmd = &cobra.Command{
	Use:   "diff BASE_ID TARGET_ID",
	Short: "Compare two snapshots node by node",
	Long: `Compare two snapshots and report added, removed, and modified nodes.

Node identity encodes file, position, and symbol, so a declaration that
moved shows up as a removal plus an addition rather than a modification.

Examples:
  depgraph snapshots diff 4f1f3a98aa514c7e 9d2c41706b7e8f10
  depgraph snapshots diff 4f1f3a98aa514c7e 9d2c41706b7e8f10 --json`,
	Args: cobra.ExactArgs(2),
	Run:  runSnapshotsDiff,
}

var snapshotsRmCmd = &cobra.Command{
	Use:   "rm SNAPSHOT_ID",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotsRm,
}

func init() {
	snapshotsCmd.PersistentFlags().BoolVar(&snapshotsJSON, "json", false,
		"Output as JSON for scripting")

	snapshotsListCmd.Flags().IntVar(&snapshotsLimit, "limit", 20,
		"Maximum snapshots to list")
	snapshotsListCmd.Flags().StringVar(&snapshotsRoot, "root", "",
		"Only list snapshots of this root node id")

	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsShowCmd)
	snapshotsCmd.AddCommand(snapshotsDiffCmd)
	snapshotsCmd.AddCommand(snapshotsRmCmd)
}

// =============================================================================
// STORE ACCESS
// =============================================================================

// openSnapshotStore opens the project's snapshot store. The cleanup
// function closes the underlying database and must always be called.
func openSnapshotStore() (*graph.SnapshotManager, func(), error) {
	if !cliConfig.Snapshots.Enabled {
		return nil, nil, fmt.Errorf("snapshots are disabled in %s", config.FileName)
	}

	dir := cliConfig.SnapshotPath(flagProject)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot store: %w", err)
	}
	mgr, err := graph.NewSnapshotManager(db, nil)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return mgr, func() { _ = db.Close() }, nil
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runSnapshotsList(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	mgr, cleanup, err := openSnapshotStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	defer cleanup()

	seedHash := ""
	if snapshotsRoot != "" {
		seedHash = graph.SeedHash(snapshotsRoot)
	}

	metas, err := mgr.List(ctx, seedHash, snapshotsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: listing snapshots: %v\n", err)
		os.Exit(exitError)
	}

	if snapshotsJSON {
		outputJSON(metas)
		os.Exit(exitSuccess)
	}

	if len(metas) == 0 {
		fmt.Println("No snapshots.")
		os.Exit(exitSuccess)
	}

	fmt.Printf("%-18s %-20s %-9s %6s %7s %7s  %s\n",
		"SNAPSHOT", "CREATED", "DIRECTION", "DEPTH", "NODES", "EDGES", "LABEL")
	for _, meta := range metas {
		fmt.Printf("%-18s %-20s %-9s %6d %7d %7d  %s\n",
			meta.SnapshotID,
			formatMilli(meta.CreatedAtMilli),
			meta.Direction,
			meta.MaxDepth,
			meta.NodeCount,
			meta.EdgeCount,
			meta.Label)
	}
	os.Exit(exitSuccess)
}

func runSnapshotsShow(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	mgr, cleanup, err := openSnapshotStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	defer cleanup()

	g, meta, err := mgr.Load(ctx, args[0])
	if err != nil {
		exitSnapshotError(args[0], err)
	}

	if snapshotsJSON {
		outputJSON(meta)
		os.Exit(exitSuccess)
	}

	fmt.Printf("Snapshot %s\n", meta.SnapshotID)
	fmt.Printf("  Created:    %s\n", formatMilli(meta.CreatedAtMilli))
	if meta.Label != "" {
		fmt.Printf("  Label:      %s\n", meta.Label)
	}
	fmt.Printf("  Root:       %s\n", meta.RootID)
	if root := g.Root(); root != nil {
		fmt.Printf("  Seed:       %s  %s:%d\n", root.Symbol, relToProject(root.FullPath), root.DisplayLine())
	}
	fmt.Printf("  Build:      %s, depth %d\n", meta.Direction, meta.MaxDepth)
	fmt.Printf("  Size:       %d nodes, %d edges (%d bytes compressed)\n",
		meta.NodeCount, meta.EdgeCount, meta.CompressedSize)
	fmt.Printf("  Graph hash: %s\n", meta.GraphHash)
	os.Exit(exitSuccess)
}

func runSnapshotsDiff(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	mgr, cleanup, err := openSnapshotStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	defer cleanup()

	baseGraph, _, err := mgr.Load(ctx, args[0])
	if err != nil {
		exitSnapshotError(args[0], err)
	}
	targetGraph, _, err := mgr.Load(ctx, args[1])
	if err != nil {
		exitSnapshotError(args[1], err)
	}

	diff, err := graph.DiffSnapshots(baseGraph, targetGraph, args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: diffing snapshots: %v\n", err)
		os.Exit(exitError)
	}

	if snapshotsJSON {
		outputJSON(diff)
		os.Exit(exitSuccess)
	}

	outputDiffText(diff)
	os.Exit(exitSuccess)
}

func runSnapshotsRm(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	mgr, cleanup, err := openSnapshotStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	defer cleanup()

	if err := mgr.Delete(ctx, args[0]); err != nil {
		exitSnapshotError(args[0], err)
	}

	fmt.Printf("Deleted snapshot %s\n", args[0])
	os.Exit(exitSuccess)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

// exitSnapshotError distinguishes a missing snapshot from a store failure.
func exitSnapshotError(id string, err error) {
	if errors.Is(err, graph.ErrSnapshotNotFound) {
		fmt.Fprintf(os.Stderr, "Error: snapshot %s not found\n", id)
		os.Exit(exitBadArgs)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitError)
}

func outputJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(exitError)
	}
}

func formatMilli(milli int64) string {
	return time.UnixMilli(milli).Format("2006-01-02 15:04:05")
}

func outputDiffText(diff *graph.SnapshotDiff) {
	fmt.Printf("Diff %s -> %s\n\n", diff.BaseSnapshotID, diff.TargetSnapshotID)

	if diff.Summary.TotalChanges == 0 {
		fmt.Println("No changes.")
		return
	}

	if len(diff.NodesAdded) > 0 {
		fmt.Printf("Added (%d):\n", len(diff.NodesAdded))
		for _, id := range diff.NodesAdded {
			fmt.Printf("  + %s\n", id)
		}
		fmt.Println()
	}
	if len(diff.NodesRemoved) > 0 {
		fmt.Printf("Removed (%d):\n", len(diff.NodesRemoved))
		for _, id := range diff.NodesRemoved {
			fmt.Printf("  - %s\n", id)
		}
		fmt.Println()
	}
	if len(diff.NodesModified) > 0 {
		fmt.Printf("Modified (%d):\n", len(diff.NodesModified))
		for _, nd := range diff.NodesModified {
			fmt.Printf("  ~ %s  %s (%s)\n", nd.NodeID, nd.Symbol, nd.ChangeType)
		}
		fmt.Println()
	}

	fmt.Printf("Edges: +%d -%d\n", diff.EdgesAdded, diff.EdgesRemoved)
	fmt.Printf("Total: %d changes across %d files (ratio %.2f)\n",
		diff.Summary.TotalChanges, diff.Summary.FilesAffected, diff.Summary.ChangeRatio)
}
