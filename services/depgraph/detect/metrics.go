// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("aleutian.depgraph.detect")

	metricsOnce sync.Once

	detectionTotal metric.Int64Counter
)

// initMetrics lazily creates the package's instruments. Failures are logged
// and leave the corresponding instrument nil; record sites tolerate nil.
func initMetrics() {
	metricsOnce.Do(func() {
		var err error

		detectionTotal, err = meter.Int64Counter(
			"depgraph_call_detections_total",
			metric.WithDescription("Detected call sites by winning strategy"),
		)
		if err != nil {
			slog.Warn("failed to create call detection counter", slog.String("error", err.Error()))
		}
	})
}

// recordDetection counts calls produced by the winning strategy.
func recordDetection(ctx context.Context, strategy string, count int) {
	initMetrics()
	if detectionTotal == nil {
		return
	}
	detectionTotal.Add(ctx, int64(count),
		metric.WithAttributes(attribute.String("strategy", strategy)),
	)
}
