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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all depgraph routes with the router.
//
// Description:
//
//	Registers all /v1/* endpoints with the given Gin router group. The
//	router group should already have any required middleware applied;
//	build endpoints additionally get the service's rate limiter.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Graph Endpoints:
//
//	POST /v1/graph/build - Build a graph from a seed position
//	POST /v1/graph/implementation - Resolve an interface implementation
//	GET  /v1/graph/watch - Stream workspace change events (websocket)
//
// Snapshot Endpoints:
//
//	GET    /v1/snapshots - List snapshot metadata
//	POST   /v1/snapshots - Persist a graph as a snapshot
//	GET    /v1/snapshots/diff - Compare two snapshots
//	GET    /v1/snapshots/:id - Load a snapshot
//	DELETE /v1/snapshots/:id - Delete a snapshot
//
// Impact Endpoints:
//
//	POST /v1/impact - Intersect a unified diff with a graph
//
// Example:
//
//	service, _ := depgraph.NewService(ctx, depgraph.DefaultServiceConfig())
//	handlers := depgraph.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	depgraph.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	graphGroup := rg.Group("/graph")
	{
		// Builds parse source; they are rate limited.
		build := graphGroup.Group("", RateLimitMiddleware(handlers.svc.limiter))
		{
			build.POST("/build", handlers.HandleBuildGraph)
			build.POST("/implementation", handlers.HandleImplementation)
		}

		// Change event stream
		graphGroup.GET("/watch", handlers.HandleWatch)
	}

	snapshots := rg.Group("/snapshots")
	{
		snapshots.GET("", handlers.HandleListSnapshots)
		snapshots.POST("", handlers.HandleSaveSnapshot)

		// Snapshot comparison (must be registered before :id wildcard)
		snapshots.GET("/diff", handlers.HandleDiffSnapshots)

		snapshots.GET("/:id", handlers.HandleLoadSnapshot)
		snapshots.DELETE("/:id", handlers.HandleDeleteSnapshot)
	}

	// Impact analysis
	rg.POST("/impact", handlers.HandleImpact)
}
