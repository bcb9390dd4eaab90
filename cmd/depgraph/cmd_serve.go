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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/depgraph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	serveHost  string
	servePort  int
	serveWatch bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the depgraph HTTP service",
	Long: `Run the depgraph HTTP service over the project.

The service scans the workspace once at startup and then answers graph
builds, implementation searches, snapshot operations, and impact analyses
under /v1. Health and Prometheus metrics sit on the engine root.

Configuration comes from depgraph.config.yaml in the project root,
overridden by ALEUTIAN_DEPGRAPH_* environment variables and the flags
below.

Examples:
  depgraph serve
  depgraph serve --port 9000 --watch
  depgraph serve -C /path/to/project`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Bind address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Listen port (overrides config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false,
		"Watch the workspace and stream change events on /v1/graph/watch")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServe(cmd *cobra.Command, args []string) {
	if serveHost != "" {
		cliConfig.Server.Host = serveHost
	}
	if servePort > 0 {
		cliConfig.Server.Port = servePort
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    cliConfig.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cliConfig.Telemetry.Environment,
		TraceExporter:  cliConfig.Telemetry.TraceExporter,
		MetricExporter: cliConfig.Telemetry.MetricExporter,
		OTLPEndpoint:   cliConfig.Telemetry.OTLPEndpoint,
		OTLPInsecure:   true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: telemetry init: %v\n", err)
		os.Exit(exitError)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := depgraph.NewService(ctx, depgraph.ServiceConfig{
		ProjectRoot:   flagProject,
		Config:        cliConfig,
		Logger:        slog.Default(),
		EnableWatcher: serveWatch,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: starting service: %v\n", err)
		os.Exit(exitError)
	}

	// Graceful shutdown: cancel the run context and let the service drain
	// in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("shutting down depgraph service")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: service stopped: %v\n", err)
		os.Exit(exitError)
	}
}
