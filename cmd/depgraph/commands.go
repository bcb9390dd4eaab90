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
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	flagProject string

	rootCmd = &cobra.Command{
		Use:   "depgraph",
		Short: "Build and explore symbol dependency graphs",
		Long: `Depgraph builds bidirectional symbol dependency graphs from source
code: seed it at a position in a file and it walks callers, callees, and
imports to a bounded depth across Go, Python, JavaScript, TypeScript, and
Rust.

Graphs can be printed, snapshotted, diffed, intersected with patches, or
explored interactively.`,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the depgraph version",
		Run:   runVersion,
	}
)

// init wires every feature command onto the root. The commands themselves
// live in their cmd_*.go files.
func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "C", ".",
		"Project root to operate on")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(implCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("depgraph %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
}
