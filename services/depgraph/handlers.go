// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/builder"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

// Handlers holds the HTTP handlers for the depgraph service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers backed by the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// requestLogger returns a logger carrying the request id and handler name.
func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.svc.logger.With("request_id", getOrCreateRequestID(c), "handler", handler)
}

// HandleHealth handles GET /health.
//
// Description:
//
//	Reports liveness plus which optional subsystems are up. Always 200;
//	clients inspect the body to learn what the instance can do.
//
// Response: 200 with HealthResponse.
//
// Thread Safety: This handler is safe for concurrent use.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:           "ok",
		UptimeMilli:      time.Since(h.svc.startedAt).Milliseconds(),
		GraphsCached:     h.svc.cachedCount(),
		SnapshotsEnabled: h.svc.snapshotMgr != nil,
		Watching:         h.svc.watcher != nil && h.svc.watcher.IsWatching(),
	})
}

// writeBuildError maps a build failure to a status code and writes the
// error response.
func writeBuildError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, builder.ErrInvalidSeed),
		errors.Is(err, builder.ErrInvalidDepth),
		errors.Is(err, graph.ErrUnknownDirection):
		logger.Warn("rejected build request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_ARGUMENT",
		})
	case errors.Is(err, builder.ErrSeedNotResolved):
		logger.Info("seed did not resolve", slog.String("error", err.Error()))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "SEED_NOT_RESOLVED",
		})
	default:
		logger.Error("graph build failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "graph build failed: " + err.Error(),
			Code:  "BUILD_FAILED",
		})
	}
}
