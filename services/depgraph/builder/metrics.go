// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

var (
	tracer = otel.Tracer("aleutian.depgraph.builder")
	meter  = otel.Meter("aleutian.depgraph.builder")
)

var (
	buildDuration    metric.Float64Histogram
	buildNodes       metric.Int64Histogram
	prunedBranches   metric.Int64Counter
	implementationOp metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildDuration, err = meter.Float64Histogram(
			"depgraph_build_duration_seconds",
			metric.WithDescription("Duration of traversal builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildNodes, err = meter.Int64Histogram(
			"depgraph_build_nodes",
			metric.WithDescription("Nodes per completed build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		prunedBranches, err = meter.Int64Counter(
			"depgraph_pruned_branches_total",
			metric.WithDescription("Traversal branches dropped, by reason"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		implementationOp, err = meter.Int64Counter(
			"depgraph_implementation_searches_total",
			metric.WithDescription("Implementation searches, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startBuildSpan creates the span covering one traversal build.
func startBuildSpan(ctx context.Context, sessionID string, dir graph.Direction, maxDepth int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Session.Build",
		trace.WithAttributes(
			attribute.String("build.session_id", sessionID),
			attribute.String("build.direction", dir.String()),
			attribute.Int("build.max_depth", maxDepth),
		),
	)
}

// startImplementationSpan creates the span covering one implementation search.
func startImplementationSpan(ctx context.Context, sessionID, symbol string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Session.FindImplementation",
		trace.WithAttributes(
			attribute.String("build.session_id", sessionID),
			attribute.String("build.symbol", symbol),
		),
	)
}

// recordBuild records the duration and size of one build.
func recordBuild(ctx context.Context, dir graph.Direction, duration time.Duration, nodes int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("direction", dir.String()),
		attribute.Bool("success", success),
	)
	buildDuration.Record(ctx, duration.Seconds(), attrs)
	if success {
		buildNodes.Record(ctx, int64(nodes), attrs)
	}
}

// recordPrune counts one dropped branch.
func recordPrune(ctx context.Context, reason string) {
	if err := initMetrics(); err != nil {
		return
	}
	prunedBranches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason)))
}

// recordImplementation counts one implementation search by outcome.
func recordImplementation(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	implementationOp.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome)))
}
