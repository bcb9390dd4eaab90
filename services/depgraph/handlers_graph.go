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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local tool; the service binds loopback by default.
		return true
	},
}

// HandleBuildGraph handles POST /v1/graph/build.
//
// Description:
//
//	Builds a dependency graph seeded at (file, line, col), walking in the
//	requested direction up to max_depth. The graph is cached under the
//	returned graph_id for snapshot and impact operations. Stats are always
//	returned; the serialized graph only when include_graph is set.
//
// Request Body: BuildRequest.
//
// Response:
//
//	200 with BuildResponse
//	400 if the request or seed arguments are invalid
//	404 if nothing resolves at the seed position
//	500 on build failure
//
// Thread Safety: This handler is safe for concurrent use.
func (h *Handlers) HandleBuildGraph(c *gin.Context) {
	logger := h.requestLogger(c, "HandleBuildGraph")

	var req BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid build request: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	cached, err := h.svc.buildGraph(c.Request.Context(), req)
	if err != nil {
		writeBuildError(c, logger, err)
		return
	}

	resp := BuildResponse{
		GraphID: cached.GraphID,
		RootID:  string(cached.RootID),
		Stats:   cached.Stats,
	}
	if req.IncludeGraph {
		resp.Graph = cached.Graph.ToSerializable()
	}

	logger.Info("graph built",
		slog.String("graph_id", cached.GraphID),
		slog.String("file", req.File),
		slog.Int("nodes", cached.Graph.Len()),
		slog.Int("edges", cached.Graph.EdgeCount()))
	c.JSON(http.StatusOK, resp)
}

// HandleImplementation handles POST /v1/graph/implementation.
//
// Description:
//
//	Resolves the seed symbol, then searches the workspace for a concrete
//	implementation of it. The search runs on a fresh downward build so the
//	implementation node and its edge land in a cached graph the client can
//	fetch or snapshot afterwards. found:false with 200 means the search
//	completed and nothing qualified.
//
// Request Body: ImplementationRequest.
//
// Response:
//
//	200 with ImplementationResponse
//	400 if the request or seed arguments are invalid
//	404 if nothing resolves at the seed position
//	500 on build or search failure
//
// Thread Safety: This handler is safe for concurrent use.
func (h *Handlers) HandleImplementation(c *gin.Context) {
	logger := h.requestLogger(c, "HandleImplementation")

	var req ImplementationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid implementation request: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	depth := req.MaxDepth
	if depth == 0 {
		depth = 1
	}
	cached, err := h.svc.buildGraph(c.Request.Context(), BuildRequest{
		File:      req.File,
		Line:      req.Line,
		Col:       req.Col,
		Direction: "down",
		MaxDepth:  depth,
	})
	if err != nil {
		writeBuildError(c, logger, err)
		return
	}

	found, err := cached.Session.FindImplementation(c.Request.Context(), cached.RootID)
	if err != nil {
		logger.Error("implementation search failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "implementation search failed: " + err.Error(),
			Code:  "IMPLEMENTATION_FAILED",
		})
		return
	}

	resp := ImplementationResponse{
		GraphID: cached.GraphID,
		RootID:  string(cached.RootID),
		Found:   found,
		Stats:   cached.Stats,
	}
	if found {
		for _, node := range cached.Graph.Nodes() {
			if node.IsImplementation && node.Implements == cached.RootID {
				resp.ImplementationID = string(node.ID)
				resp.Symbol = node.Symbol
				resp.File = node.FullPath
				resp.Line = node.Line
				break
			}
		}
	}
	if req.IncludeGraph {
		resp.Graph = cached.Graph.ToSerializable()
	}

	logger.Info("implementation search complete",
		slog.String("graph_id", cached.GraphID),
		slog.Bool("found", found),
		slog.String("implementation_id", resp.ImplementationID))
	c.JSON(http.StatusOK, resp)
}

// HandleWatch handles GET /v1/graph/watch.
//
// Description:
//
//	Upgrades to a websocket and streams workspace change events from the
//	filesystem watcher. The first frame is a watch_started message naming
//	the project root; each subsequent frame wraps one debounced change
//	event. The stream ends when the client disconnects or the watcher
//	shuts down (a final watch_closed frame is attempted on the latter).
//
// Response:
//
//	101 switching protocols on success
//	503 if the watcher is not running
//
// Thread Safety: This handler is safe for concurrent use; each
// connection holds its own subscription.
func (h *Handlers) HandleWatch(c *gin.Context) {
	logger := h.requestLogger(c, "HandleWatch")

	if h.svc.watcher == nil || !h.svc.watcher.IsWatching() {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "filesystem watcher is not running",
			Code:  "WATCH_NOT_AVAILABLE",
		})
		return
	}

	events, cancel, err := h.svc.watcher.Subscribe()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "watch subscription failed: " + err.Error(),
			Code:  "WATCH_NOT_AVAILABLE",
		})
		return
	}
	defer cancel()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	if err := ws.WriteJSON(WatchMessage{
		Action:      "watch_started",
		ProjectRoot: h.svc.projectRoot,
	}); err != nil {
		logger.Error("websocket write failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("watch stream opened")

	// The client never sends application frames; reading still has to
	// happen so close frames are processed and disconnects surface.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = ws.WriteJSON(WatchMessage{Action: "watch_closed"})
				logger.Info("watch stream closed by watcher")
				return
			}
			if err := ws.WriteJSON(WatchMessage{Action: "change", Event: &ev}); err != nil {
				logger.Info("watch client disconnected", slog.String("error", err.Error()))
				return
			}
		case <-clientGone:
			logger.Info("watch client disconnected")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
