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
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

const (
	// requestIDHeader is echoed back on every response so clients can
	// correlate logs across services.
	requestIDHeader = "X-Request-ID"

	// requestIDKey is the gin context key holding the request id.
	requestIDKey = "request_id"
)

var directionRuleOnce sync.Once

// registerDirectionRule installs the "direction" binding rule on gin's
// shared validator. The rule delegates to graph.ParseDirection so request
// validation and the engine accept exactly the same spellings.
func registerDirectionRule() {
	directionRuleOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("direction", func(fl validator.FieldLevel) bool {
			_, err := graph.ParseDirection(fl.Field().String())
			return err == nil
		})
	})
}

// RequestIDMiddleware assigns every request an id, honoring one supplied
// by the client, and echoes it in the response headers.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// getOrCreateRequestID returns the request id set by RequestIDMiddleware,
// minting one if the handler is reached without the middleware (tests).
func getOrCreateRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	id := uuid.New().String()
	c.Set(requestIDKey, id)
	return id
}

// RateLimitMiddleware rejects requests above the configured build rate
// with 429. Builds parse and walk source files, so a burst of them can
// starve the box; reads and snapshot loads are not limited.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "build rate limit exceeded, retry later",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
