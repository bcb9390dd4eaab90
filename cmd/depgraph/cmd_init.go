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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/config"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	initForce          bool
	initNonInteractive bool
	initPort           int
	initDirection      string
	initDepth          int
	initNoSnapshots    bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a depgraph.config.yaml for a project",
	Long: `Write a depgraph.config.yaml into the project root.

On a terminal this runs a short wizard for the settings people actually
change: listen port, default traversal direction and depth, and whether
to keep a snapshot store. Piped or scripted runs (or --non-interactive)
take the defaults, adjusted by the flags below.

The generated file is plain YAML; everything else (telemetry, logging,
rate limits) can be edited in afterwards.

Examples:
  depgraph init
  depgraph init ./myproject
  depgraph init --non-interactive --port 9000 --direction both
  depgraph init --force`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInitConfig,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false,
		"Overwrite an existing config file")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false,
		"Skip the wizard and take defaults plus flags")
	initCmd.Flags().IntVar(&initPort, "port", 0,
		"Listen port for the HTTP service")
	initCmd.Flags().StringVarP(&initDirection, "direction", "d", "",
		"Default traversal direction: up, down, or both")
	initCmd.Flags().IntVar(&initDepth, "depth", 0,
		"Default maximum traversal depth")
	initCmd.Flags().BoolVar(&initNoSnapshots, "no-snapshots", false,
		"Disable the snapshot store")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runInitConfig(cmd *cobra.Command, args []string) {
	targetRoot := flagProject
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid path %q: %v\n", args[0], err)
			os.Exit(exitBadArgs)
		}
		targetRoot = abs
	}

	info, err := os.Stat(targetRoot)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: %s is not a directory\n", targetRoot)
		os.Exit(exitBadArgs)
	}

	path := filepath.Join(targetRoot, config.FileName)
	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", path)
		os.Exit(exitBadArgs)
	}

	cfg := config.DefaultConfig()
	applyInitFlags(cfg)

	interactive := !initNonInteractive &&
		(isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()))
	if interactive {
		if err := runInitWizard(cfg); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(os.Stderr, "Aborted.")
				os.Exit(exitError)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
	}

	if err := writeConfigFile(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: writing %s: %v\n", path, err)
		os.Exit(exitError)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Next: depgraph build FILE:LINE, or depgraph serve")
	os.Exit(exitSuccess)
}

// applyInitFlags folds the non-interactive flags into cfg. The wizard
// starts from these values, so flags also pre-seed the interactive run.
func applyInitFlags(cfg *config.Config) {
	if initPort > 0 {
		cfg.Server.Port = initPort
	}
	if initDirection != "" {
		cfg.Build.Direction = initDirection
	}
	if initDepth > 0 {
		cfg.Build.MaxDepth = initDepth
	}
	if initNoSnapshots {
		cfg.Snapshots.Enabled = false
	}
}

// runInitWizard collects the commonly changed settings and writes them
// back into cfg.
func runInitWizard(cfg *config.Config) error {
	portStr := strconv.Itoa(cfg.Server.Port)
	depthStr := strconv.Itoa(cfg.Build.MaxDepth)
	direction := cfg.Build.Direction
	snapshots := cfg.Snapshots.Enabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP listen port").
				Description("Used by 'depgraph serve'").
				Value(&portStr).
				Validate(validatePort),
			huh.NewSelect[string]().
				Title("Default traversal direction").
				Description("What a build follows when the request does not say").
				Options(
					huh.NewOption("down - callees and imports", "down"),
					huh.NewOption("up - callers", "up"),
					huh.NewOption("both", "both"),
				).
				Value(&direction),
			huh.NewInput().
				Title("Default maximum depth").
				Description("Recursion bound for traversals (1-64)").
				Value(&depthStr).
				Validate(validateDepth),
			huh.NewConfirm().
				Title("Keep a snapshot store?").
				Description("Saved graphs live in .depgraph/snapshots").
				Value(&snapshots),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	// Validators already passed, so these cannot fail.
	cfg.Server.Port, _ = strconv.Atoi(portStr)
	cfg.Build.MaxDepth, _ = strconv.Atoi(depthStr)
	cfg.Build.Direction = direction
	cfg.Snapshots.Enabled = snapshots
	return nil
}

func validatePort(s string) error {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be 1-65535")
	}
	return nil
}

func validateDepth(s string) error {
	depth, err := strconv.Atoi(s)
	if err != nil || depth < 1 || depth > 64 {
		return fmt.Errorf("depth must be 1-64")
	}
	return nil
}

// writeConfigFile validates cfg and writes it as YAML.
func writeConfigFile(path string, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	header := "# depgraph configuration. Environment variables (ALEUTIAN_DEPGRAPH_*)\n# override values in this file.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}
