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

import "errors"

var (
	// ErrNodeNotFound is returned when an edge names an id the graph
	// does not hold.
	ErrNodeNotFound = errors.New("node not found")

	// ErrUnknownDirection is returned for unparseable direction strings
	// and for Connect calls with a non-edge direction.
	ErrUnknownDirection = errors.New("unknown direction")

	// ErrNilGraph is returned by operations on a nil graph.
	ErrNilGraph = errors.New("graph must not be nil")

	// ErrSchemaVersion is returned when loading a serialized graph with
	// an unsupported schema version.
	ErrSchemaVersion = errors.New("unsupported schema version")

	// ErrSnapshotNotFound is returned when a snapshot id has no entry.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrIntegrity is returned when a snapshot payload fails its
	// content-hash check.
	ErrIntegrity = errors.New("snapshot integrity check failed")
)
