// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package builder walks a codebase outward from a seed position and grows a
// dependency graph: callers above it, callees and imports below it, bounded
// by depth and kept cycle-safe by the visit cache.
//
// Ownership Model:
//
//	A Session owns its Graph and VisitCache exclusively and is consumed by
//	one Build call. The provider, resolver registry, and detector it holds
//	are shared, concurrency-safe collaborators. Callers that want parallel
//	traversals create parallel Sessions over one provider.
//
// Thread Safety:
//
//	Sessions are not safe for concurrent use. Everything a Session borrows
//	(provider, resolvers, detector) is.
//
// Lifecycle:
//
//	NewSession → Build (once) → optional FindImplementation calls → read the
//	Result's graph. Sessions hold no resources that need closing.
//
// Failure inside a traversal never surfaces as an error: an unreadable
// file, an unresolvable import, or a position without a symbol prunes that
// branch and the walk continues. Build itself errors only on invalid
// arguments or a seed that names nothing.
package builder

import "errors"

var (
	// ErrNilProvider is returned by NewSession without a provider.
	ErrNilProvider = errors.New("provider must not be nil")

	// ErrInvalidSeed is returned for an empty seed file or negative
	// coordinates.
	ErrInvalidSeed = errors.New("invalid seed position")

	// ErrInvalidDepth is returned when maxDepth is below 1.
	ErrInvalidDepth = errors.New("max depth must be at least 1")

	// ErrSeedNotResolved is returned when no symbol can be named at the
	// seed position.
	ErrSeedNotResolved = errors.New("no symbol at seed position")

	// ErrSessionReused is returned by a second Build on the same Session.
	ErrSessionReused = errors.New("session already consumed by a build")
)
