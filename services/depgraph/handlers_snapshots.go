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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

// requireSnapshots writes a 503 and returns false when the snapshot
// store is not configured.
func (h *Handlers) requireSnapshots(c *gin.Context) bool {
	if h.svc.snapshotMgr == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "snapshot persistence is not enabled",
			Code:  "SNAPSHOTS_NOT_AVAILABLE",
		})
		return false
	}
	return true
}

// resolveGraphForSave picks the graph to snapshot: an explicit graph id,
// a fresh build, or the most recent build, in that order. On failure the
// error response has already been written.
func (h *Handlers) resolveGraphForSave(c *gin.Context, logger *slog.Logger, req SaveSnapshotRequest) (*CachedGraph, error) {
	if req.GraphID != "" {
		cached, err := h.svc.GetGraph(req.GraphID)
		if err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "GRAPH_NOT_FOUND",
			})
			return nil, err
		}
		return cached, nil
	}
	if req.Build != nil {
		cached, err := h.svc.buildGraph(c.Request.Context(), *req.Build)
		if err != nil {
			writeBuildError(c, logger, err)
			return nil, err
		}
		return cached, nil
	}
	cached := h.svc.latestGraph()
	if cached == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no graphs have been built yet",
			Code:  "NO_GRAPHS",
		})
		return nil, ErrNoGraphs
	}
	return cached, nil
}

// HandleSaveSnapshot handles POST /v1/snapshots.
//
// Description:
//
//	Persists a graph to the snapshot store. The request may name a cached
//	graph, describe a fresh build, or be empty to save the most recently
//	built graph. Snapshot ids derive from the root, build time, and graph
//	content, so re-saving the same cached graph is idempotent.
//
// Request Body: SaveSnapshotRequest (may be empty).
//
// Response:
//
//	200 with SaveSnapshotResponse
//	404 if the referenced graph does not exist
//	500 on store failure
//	503 if snapshots are not enabled
//
// Thread Safety: This handler is safe for concurrent use.
func (h *Handlers) HandleSaveSnapshot(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSaveSnapshot")
	if !h.requireSnapshots(c) {
		return
	}

	var req SaveSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body - all fields are optional
		req = SaveSnapshotRequest{}
	}

	cached, err := h.resolveGraphForSave(c, logger, req)
	if err != nil {
		return
	}

	meta, err := h.svc.snapshotMgr.Save(c.Request.Context(), cached.Graph, req.Label)
	if err != nil {
		logger.Error("snapshot save failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to save snapshot: " + err.Error(),
			Code:  "SNAPSHOT_SAVE_FAILED",
		})
		return
	}

	logger.Info("snapshot saved",
		slog.String("snapshot_id", meta.SnapshotID),
		slog.String("graph_id", cached.GraphID),
		slog.Int("nodes", meta.NodeCount))
	c.JSON(http.StatusOK, SaveSnapshotResponse{
		SnapshotID:     meta.SnapshotID,
		RootID:         meta.RootID,
		GraphHash:      meta.GraphHash,
		NodeCount:      meta.NodeCount,
		EdgeCount:      meta.EdgeCount,
		CompressedSize: meta.CompressedSize,
	})
}

// HandleListSnapshots handles GET /v1/snapshots.
//
// Description:
//
//	Lists snapshot metadata, newest first. With no filter every snapshot
//	in the store is listed.
//
// Query Parameters:
//
//	root_id - optional root node id; listed snapshots share its seed
//	seed_hash - optional precomputed seed hash (root_id wins if both set)
//	limit - maximum entries to return (default 100)
//
// Response:
//
//	200 with ListSnapshotsResponse
//	500 on store failure
//	503 if snapshots are not enabled
//
// Thread Safety: This handler is safe for concurrent use.
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	logger := h.requestLogger(c, "HandleListSnapshots")
	if !h.requireSnapshots(c) {
		return
	}

	seedHash := c.Query("seed_hash")
	if rootID := c.Query("root_id"); rootID != "" {
		seedHash = graph.SeedHash(rootID)
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	snapshots, err := h.svc.snapshotMgr.List(c.Request.Context(), seedHash, limit)
	if err != nil {
		logger.Error("snapshot list failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to list snapshots: " + err.Error(),
			Code:  "SNAPSHOT_LIST_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, ListSnapshotsResponse{
		Snapshots: snapshots,
		Count:     len(snapshots),
	})
}

// HandleLoadSnapshot handles GET /v1/snapshots/:id.
//
// Description:
//
//	Loads a stored snapshot. Metadata is always returned; the serialized
//	graph only when the graph query parameter is true, since stored
//	graphs can be large.
//
// Query Parameters:
//
//	graph - "true" to include the serialized graph in the response
//
// Response:
//
//	200 with LoadSnapshotResponse
//	404 if no snapshot has that id
//	500 on store failure
//	503 if snapshots are not enabled
//
// Thread Safety: This handler is safe for concurrent use.
func (h *Handlers) HandleLoadSnapshot(c *gin.Context) {
	logger := h.requestLogger(c, "HandleLoadSnapshot")
	if !h.requireSnapshots(c) {
		return
	}

	snapshotID := c.Param("id")
	g, meta, err := h.svc.snapshotMgr.Load(c.Request.Context(), snapshotID)
	if err != nil {
		if errors.Is(err, graph.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "snapshot not found: " + snapshotID,
				Code:  "SNAPSHOT_NOT_FOUND",
			})
			return
		}
		logger.Error("snapshot load failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to load snapshot: " + err.Error(),
			Code:  "SNAPSHOT_LOAD_FAILED",
		})
		return
	}

	resp := LoadSnapshotResponse{Metadata: meta}
	if c.Query("graph") == "true" {
		resp.Graph = g.ToSerializable()
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDeleteSnapshot handles DELETE /v1/snapshots/:id.
//
// Description:
//
//	Removes a snapshot and its index entries. Deleting the snapshot a
//	latest-pointer references leaves the pointer dangling; loads through
//	it then fall back to the listing.
//
// Response:
//
//	200 with {"deleted": id}
//	404 if no snapshot has that id
//	500 on store failure
//	503 if snapshots are not enabled
//
// Thread Safety: This handler is safe for concurrent use.
func (h *Handlers) HandleDeleteSnapshot(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDeleteSnapshot")
	if !h.requireSnapshots(c) {
		return
	}

	snapshotID := c.Param("id")
	if err := h.svc.snapshotMgr.Delete(c.Request.Context(), snapshotID); err != nil {
		if errors.Is(err, graph.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "snapshot not found: " + snapshotID,
				Code:  "SNAPSHOT_NOT_FOUND",
			})
			return
		}
		logger.Error("snapshot delete failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to delete snapshot: " + err.Error(),
			Code:  "SNAPSHOT_DELETE_FAILED",
		})
		return
	}

	logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	c.JSON(http.StatusOK, gin.H{"deleted": snapshotID})
}

// HandleDiffSnapshots handles GET /v1/snapshots/diff.
//
// Description:
//
//	Loads two snapshots and reports their structural differences: nodes
//	added, removed, and modified, plus edge churn. Both snapshots are
//	loaded in full, so diffing very large graphs costs two decompressions.
//
// Query Parameters:
//
//	base - snapshot id of the baseline (required)
//	target - snapshot id to compare against the baseline (required)
//
// Response:
//
//	200 with SnapshotDiffResponse
//	400 if either id is missing
//	404 if either snapshot does not exist
//	500 on store failure
//	503 if snapshots are not enabled
//
// Thread Safety: This handler is safe for concurrent use.
func (h *Handlers) HandleDiffSnapshots(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDiffSnapshots")
	if !h.requireSnapshots(c) {
		return
	}

	baseID := c.Query("base")
	targetID := c.Query("target")
	if baseID == "" || targetID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "both base and target snapshot ids are required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	baseGraph, _, err := h.svc.snapshotMgr.Load(c.Request.Context(), baseID)
	if err != nil {
		h.writeSnapshotLoadError(c, logger, baseID, err)
		return
	}
	targetGraph, _, err := h.svc.snapshotMgr.Load(c.Request.Context(), targetID)
	if err != nil {
		h.writeSnapshotLoadError(c, logger, targetID, err)
		return
	}

	diff, err := graph.DiffSnapshots(baseGraph, targetGraph, baseID, targetID)
	if err != nil {
		logger.Error("snapshot diff failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to diff snapshots: " + err.Error(),
			Code:  "SNAPSHOT_DIFF_FAILED",
		})
		return
	}

	logger.Info("snapshots diffed",
		slog.String("base", baseID),
		slog.String("target", targetID),
		slog.Int("total_changes", diff.Summary.TotalChanges))
	c.JSON(http.StatusOK, SnapshotDiffResponse{Diff: diff})
}

// writeSnapshotLoadError maps a load failure to 404 or 500.
func (h *Handlers) writeSnapshotLoadError(c *gin.Context, logger *slog.Logger, snapshotID string, err error) {
	if errors.Is(err, graph.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "snapshot not found: " + snapshotID,
			Code:  "SNAPSHOT_NOT_FOUND",
		})
		return
	}
	logger.Error("snapshot load failed",
		slog.String("snapshot_id", snapshotID),
		slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: "failed to load snapshot: " + err.Error(),
		Code:  "SNAPSHOT_LOAD_FAILED",
	})
}
