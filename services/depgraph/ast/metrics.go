// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("aleutian.depgraph.ast")
	meter  = otel.Meter("aleutian.depgraph.ast")

	metricsOnce sync.Once

	parseLatency     metric.Float64Histogram
	parseTotal       metric.Int64Counter
	symbolsExtracted metric.Int64Histogram
)

// initMetrics lazily creates the package's instruments. Failures are logged
// and leave the corresponding instrument nil; record sites tolerate nil.
func initMetrics() {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"depgraph_parse_duration_seconds",
			metric.WithDescription("Single-file parse latency in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			slog.Warn("failed to create parse latency histogram", slog.String("error", err.Error()))
		}

		parseTotal, err = meter.Int64Counter(
			"depgraph_parse_total",
			metric.WithDescription("Total parse attempts by language and outcome"),
		)
		if err != nil {
			slog.Warn("failed to create parse counter", slog.String("error", err.Error()))
		}

		symbolsExtracted, err = meter.Int64Histogram(
			"depgraph_parse_symbols_extracted",
			metric.WithDescription("Symbols extracted per parsed file"),
		)
		if err != nil {
			slog.Warn("failed to create symbols histogram", slog.String("error", err.Error()))
		}
	})
}

// startParseSpan opens the standard per-parse span.
func startParseSpan(ctx context.Context, language, filePath string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ast.parse",
		trace.WithAttributes(
			attribute.String("language", language),
			attribute.String("file_path", filePath),
			attribute.Int("content_bytes", size),
		),
	)
}

// recordParseMetrics records one parse outcome.
func recordParseMetrics(ctx context.Context, language string, duration time.Duration, symbolCount int, success bool) {
	initMetrics()

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)
	if parseLatency != nil {
		parseLatency.Record(ctx, duration.Seconds(), attrs)
	}
	if parseTotal != nil {
		parseTotal.Add(ctx, 1, attrs)
	}
	if symbolsExtracted != nil && success {
		symbolsExtracted.Record(ctx, int64(symbolCount),
			metric.WithAttributes(attribute.String("language", language)))
	}
}
