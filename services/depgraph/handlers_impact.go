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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/impact"
)

// HandleImpact handles POST /v1/impact.
//
// Description:
//
//	Intersects a unified diff with a dependency graph: which nodes the
//	patch touches directly, and which ancestors (callers) sit above them.
//	The graph comes from snapshot_id, then graph_id, then the most recent
//	build. Patches are matched against the sources the graph was built
//	from, so stale graphs under-report.
//
// Request Body: ImpactRequest.
//
// Response:
//
//	200 with ImpactResponse
//	400 if the patch is missing, empty, or malformed
//	404 if the referenced graph or snapshot does not exist
//	500 on analysis failure
//	503 if snapshot_id is set but snapshots are not enabled
//
// Thread Safety: This handler is safe for concurrent use.
func (h *Handlers) HandleImpact(c *gin.Context) {
	logger := h.requestLogger(c, "HandleImpact")

	var req ImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid impact request: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	g, resp, ok := h.resolveImpactGraph(c, logger, req)
	if !ok {
		return
	}

	analyzer := impact.NewAnalyzer(
		impact.WithLogger(logger),
		impact.WithProjectRoot(h.svc.projectRoot),
	)
	report, err := analyzer.Analyze(c.Request.Context(), g, req.Patch)
	if err != nil {
		switch {
		case errors.Is(err, impact.ErrEmptyPatch), errors.Is(err, impact.ErrMalformedPatch):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_PATCH",
			})
		default:
			logger.Error("impact analysis failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "impact analysis failed: " + err.Error(),
				Code:  "IMPACT_FAILED",
			})
		}
		return
	}

	resp.Report = report
	logger.Info("impact analyzed",
		slog.Int("direct", report.Summary.DirectNodes),
		slog.Int("affected", report.Summary.AffectedNodes))
	c.JSON(http.StatusOK, resp)
}

// resolveImpactGraph picks the graph to analyze and pre-fills the
// response with its provenance. On failure the error response has
// already been written and ok is false.
func (h *Handlers) resolveImpactGraph(c *gin.Context, logger *slog.Logger, req ImpactRequest) (*graph.Graph, ImpactResponse, bool) {
	if req.SnapshotID != "" {
		if h.svc.snapshotMgr == nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error: "snapshot persistence is not enabled",
				Code:  "SNAPSHOTS_NOT_AVAILABLE",
			})
			return nil, ImpactResponse{}, false
		}
		g, _, err := h.svc.snapshotMgr.Load(c.Request.Context(), req.SnapshotID)
		if err != nil {
			h.writeSnapshotLoadError(c, logger, req.SnapshotID, err)
			return nil, ImpactResponse{}, false
		}
		return g, ImpactResponse{SnapshotID: req.SnapshotID}, true
	}

	if req.GraphID != "" {
		cached, err := h.svc.GetGraph(req.GraphID)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "GRAPH_NOT_FOUND",
			})
			return nil, ImpactResponse{}, false
		}
		return cached.Graph, ImpactResponse{GraphID: cached.GraphID}, true
	}

	cached := h.svc.latestGraph()
	if cached == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no graphs have been built yet",
			Code:  "NO_GRAPHS",
		})
		return nil, ImpactResponse{}, false
	}
	return cached.Graph, ImpactResponse{GraphID: cached.GraphID}, true
}
