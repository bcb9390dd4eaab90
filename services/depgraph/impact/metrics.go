// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("aleutian.depgraph.impact")
	meter  = otel.Meter("aleutian.depgraph.impact")
)

var (
	analysisDuration metric.Float64Histogram
	impactedNodes    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisDuration, err = meter.Float64Histogram(
			"depgraph_impact_duration_seconds",
			metric.WithDescription("Duration of impact analyses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		impactedNodes, err = meter.Int64Histogram(
			"depgraph_impact_nodes",
			metric.WithDescription("Nodes reached per analysis, direct plus ancestors"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalyzeSpan creates the span covering one analysis.
func startAnalyzeSpan(ctx context.Context, graphSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Analyzer.Analyze",
		trace.WithAttributes(
			attribute.Int("impact.graph_nodes", graphSize),
		),
	)
}

// recordAnalysis records one analysis outcome.
func recordAnalysis(ctx context.Context, duration time.Duration, nodes int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	analysisDuration.Record(ctx, duration.Seconds(), attrs)
	if success {
		impactedNodes.Record(ctx, int64(nodes), attrs)
	}
}
