// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("aleutian.depgraph.provider")

	metricsOnce sync.Once

	operationTotal metric.Int64Counter
	scanDuration   metric.Float64Histogram
	scanFiles      metric.Int64Counter
	watchEvents    metric.Int64Counter
)

// initMetrics lazily creates the package's instruments. Failures are logged
// and leave the corresponding instrument nil; record sites tolerate nil.
func initMetrics() {
	metricsOnce.Do(func() {
		var err error

		operationTotal, err = meter.Int64Counter(
			"depgraph_provider_operations_total",
			metric.WithDescription("Provider queries by operation and outcome"),
		)
		if err != nil {
			slog.Warn("failed to create provider operation counter", slog.String("error", err.Error()))
		}

		scanDuration, err = meter.Float64Histogram(
			"depgraph_workspace_scan_duration_seconds",
			metric.WithDescription("Workspace scan wall time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			slog.Warn("failed to create scan duration histogram", slog.String("error", err.Error()))
		}

		scanFiles, err = meter.Int64Counter(
			"depgraph_workspace_files_scanned_total",
			metric.WithDescription("Files visited by workspace scans, by result"),
		)
		if err != nil {
			slog.Warn("failed to create scan file counter", slog.String("error", err.Error()))
		}

		watchEvents, err = meter.Int64Counter(
			"depgraph_watch_events_total",
			metric.WithDescription("Debounced file change events by operation"),
		)
		if err != nil {
			slog.Warn("failed to create watch event counter", slog.String("error", err.Error()))
		}
	})
}

// recordOperation counts one provider query outcome.
func recordOperation(ctx context.Context, operation string, found bool) {
	initMetrics()
	if operationTotal == nil {
		return
	}
	outcome := "hit"
	if !found {
		outcome = "miss"
	}
	operationTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

// recordScan records one workspace scan.
func recordScan(ctx context.Context, duration time.Duration, parsed, skipped int) {
	initMetrics()
	if scanDuration != nil {
		scanDuration.Record(ctx, duration.Seconds())
	}
	if scanFiles != nil {
		scanFiles.Add(ctx, int64(parsed), metric.WithAttributes(attribute.String("result", "parsed")))
		scanFiles.Add(ctx, int64(skipped), metric.WithAttributes(attribute.String("result", "skipped")))
	}
}

// recordWatchEvent counts one published change event.
func recordWatchEvent(ctx context.Context, op string) {
	initMetrics()
	if watchEvents == nil {
		return
	}
	watchEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
