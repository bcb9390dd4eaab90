// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detect finds call and reference sites inside a scope. A tree
// strategy queries the parse tree when one is available; a regex strategy
// scans the cached lines otherwise. Control-flow keywords and builtins are
// excluded per language so the traversal never chases `if(` or `len(`.
package detect

import (
	"context"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
)

// CallInfo is one detected call site within a scope.
type CallInfo struct {
	// Name is the callee identifier (rightmost segment for member calls).
	Name string `json:"name"`

	// Line and Col locate the call (0-based).
	Line int `json:"line"`
	Col  int `json:"col"`

	// Method names the strategy that produced the hit.
	Method string `json:"method"`
}

// ScopeRequest carries everything a strategy may need. Tree and Content are
// optional; strategies that need them report not-applicable when absent.
type ScopeRequest struct {
	// File is the absolute path, used only for logging.
	File string

	// Language is the resolver language tag for keyword exclusion.
	Language string

	// Lines is the full cached file text.
	Lines []string

	// Scope bounds the detection window (inclusive, 0-based lines).
	Scope Scope

	// Tree is the parse tree when the provider could produce one.
	Tree *sitter.Tree

	// Content is the source backing Tree.
	Content []byte
}

// Strategy is one detection approach. The boolean reports applicability:
// false means the strategy could not run at all (as opposed to running and
// finding nothing).
type Strategy interface {
	Name() string
	DetectCalls(ctx context.Context, req ScopeRequest) (map[string]CallInfo, bool)
}

// Detector runs strategies in order and returns the first non-empty result,
// keyword-filtered and deduplicated by callee name.
//
// Thread Safety: safe for concurrent use.
type Detector struct {
	strategies []Strategy
	logger     *slog.Logger
}

// DetectorOption customizes a Detector.
type DetectorOption func(*Detector)

// WithDetectorLogger overrides the default logger.
func WithDetectorLogger(logger *slog.Logger) DetectorOption {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithStrategies replaces the default strategy chain.
func WithStrategies(strategies ...Strategy) DetectorOption {
	return func(d *Detector) {
		if len(strategies) > 0 {
			d.strategies = strategies
		}
	}
}

// NewDetector returns a detector with the default chain: tree first, regex
// fallback.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		strategies: []Strategy{newTreeStrategy(), newRegexStrategy()},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectCalls returns the calls found in the request's scope, keyed by
// callee name. An empty map means the scope makes no calls; detection never
// fails harder than that.
func (d *Detector) DetectCalls(ctx context.Context, req ScopeRequest) map[string]CallInfo {
	for _, strategy := range d.strategies {
		calls, ok := strategy.DetectCalls(ctx, req)
		if !ok {
			continue
		}
		filtered := d.filterKeywords(req.Language, calls)
		if len(filtered) == 0 {
			// Ran but found nothing real; let the next strategy try.
			continue
		}
		recordDetection(ctx, strategy.Name(), len(filtered))
		d.logger.Debug("calls detected",
			slog.String("file", req.File),
			slog.String("strategy", strategy.Name()),
			slog.Int("count", len(filtered)),
		)
		return filtered
	}
	return map[string]CallInfo{}
}

func (d *Detector) filterKeywords(language string, calls map[string]CallInfo) map[string]CallInfo {
	out := make(map[string]CallInfo, len(calls))
	for name, call := range calls {
		if IsKeyword(language, name) {
			continue
		}
		out[name] = call
	}
	return out
}
