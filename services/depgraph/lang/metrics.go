// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lang

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("aleutian.depgraph.lang")

	metricsOnce sync.Once

	resolutionTotal metric.Int64Counter
)

// initMetrics lazily creates the package's instruments. Failures are logged
// and leave the corresponding instrument nil; record sites tolerate nil.
func initMetrics() {
	metricsOnce.Do(func() {
		var err error

		resolutionTotal, err = meter.Int64Counter(
			"depgraph_import_resolutions_total",
			metric.WithDescription("Import-to-file resolution attempts by language and outcome"),
		)
		if err != nil {
			slog.Warn("failed to create import resolution counter", slog.String("error", err.Error()))
		}
	})
}

// recordResolution counts one ResolveImportToFile outcome.
func recordResolution(ctx context.Context, language string, resolved bool) {
	initMetrics()
	if resolutionTotal == nil {
		return
	}
	outcome := "resolved"
	if !resolved {
		outcome = "unresolved"
	}
	resolutionTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.String("outcome", outcome),
		),
	)
}
