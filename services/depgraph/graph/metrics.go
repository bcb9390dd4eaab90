// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("aleutian.depgraph.graph")
	meter  = otel.Meter("aleutian.depgraph.graph")

	metricsOnce sync.Once

	identityCollisions metric.Int64Counter
	snapshotBytes      metric.Int64Histogram
	snapshotTotal      metric.Int64Counter
)

// initMetrics lazily creates the package's instruments. Failures are logged
// and leave the corresponding instrument nil; record sites tolerate nil.
func initMetrics() {
	metricsOnce.Do(func() {
		var err error

		identityCollisions, err = meter.Int64Counter(
			"depgraph_identity_collisions_total",
			metric.WithDescription("Node ids claimed by two distinct positions"),
		)
		if err != nil {
			slog.Warn("failed to create identity collision counter", slog.String("error", err.Error()))
		}

		snapshotBytes, err = meter.Int64Histogram(
			"depgraph_snapshot_compressed_bytes",
			metric.WithDescription("Compressed snapshot payload size"),
			metric.WithUnit("By"),
		)
		if err != nil {
			slog.Warn("failed to create snapshot size histogram", slog.String("error", err.Error()))
		}

		snapshotTotal, err = meter.Int64Counter(
			"depgraph_snapshot_operations_total",
			metric.WithDescription("Snapshot operations by kind and outcome"),
		)
		if err != nil {
			slog.Warn("failed to create snapshot counter", slog.String("error", err.Error()))
		}
	})
}
