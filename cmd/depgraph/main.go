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
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/config"
)

// Exit codes shared by every subcommand.
const (
	exitSuccess = 0
	exitError   = 1
	exitBadArgs = 2
)

// version is stamped at release time via -ldflags "-X main.version=...".
var version = "0.1.0-dev"

// cliConfig is loaded once in PersistentPreRun and read by every command.
var cliConfig *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		abs, err := filepath.Abs(flagProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid project root %q: %v\n", flagProject, err)
			os.Exit(exitBadArgs)
		}
		flagProject = abs

		// A missing config file yields the defaults; only a present but
		// broken file fails here.
		cfg, err := config.Load(context.Background(), flagProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: loading %s: %v\n", config.FileName, err)
			os.Exit(exitError)
		}
		cliConfig = cfg

		slog.SetDefault(cfg.Logging.Logger(os.Stderr))
	}
}
