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

import (
	"context"
	"testing"
)

func TestComputeID(t *testing.T) {
	id := ComputeID("/proj/src/main.go", 41, 8)
	if id != "/proj/src/main.go:41:8" {
		t.Errorf("unexpected id: %q", id)
	}

	// Deterministic: same inputs, same id.
	if ComputeID("/proj/src/main.go", 41, 8) != id {
		t.Error("ComputeID must be deterministic")
	}

	// Distinct positions yield distinct ids.
	if ComputeID("/proj/src/main.go", 41, 9) == id {
		t.Error("distinct columns must yield distinct ids")
	}
	if ComputeID("/proj/src/other.go", 41, 8) == id {
		t.Error("distinct files must yield distinct ids")
	}
}

func TestPositionKey_IncludesDepthAndDirection(t *testing.T) {
	id := ComputeID("/a.go", 1, 0)

	up3 := PositionKey(id, DirectionUp, 3)
	up2 := PositionKey(id, DirectionUp, 2)
	down3 := PositionKey(id, DirectionDown, 3)

	if up3 == up2 {
		t.Error("different depths must produce different keys")
	}
	if up3 == down3 {
		t.Error("different directions must produce different keys")
	}
}

func TestVisitCache_SeenAndMark(t *testing.T) {
	cache := NewVisitCache()
	key := PositionKey("/a.go:1:0", DirectionUp, 2)

	if cache.Seen(key) {
		t.Error("fresh cache must not report seen")
	}
	cache.MarkSeen(key)
	if !cache.Seen(key) {
		t.Error("marked key must be seen")
	}

	// Marking again is harmless.
	cache.MarkSeen(key)
	if cache.Size() != 1 {
		t.Errorf("expected 1 key, got %d", cache.Size())
	}

	symKey := SymbolKey("handler", "/a.go:1:0")
	if cache.Seen(symKey) {
		t.Error("symbolic key must be independent of positional key")
	}
	cache.MarkSeen(symKey)
	if !cache.Seen(symKey) {
		t.Error("symbolic key must be seen after marking")
	}
}

func TestVisitCache_RecordID_CollisionDetection(t *testing.T) {
	cache := NewVisitCache()
	ctx := context.Background()
	id := ComputeID("/a.go", 5, 0)

	if !cache.RecordID(ctx, id, "/a.go", 5, 0) {
		t.Error("first claim must succeed")
	}
	// Same position re-claiming is fine.
	if !cache.RecordID(ctx, id, "/a.go", 5, 0) {
		t.Error("re-claim by the same position must succeed")
	}
	if cache.Collisions() != 0 {
		t.Errorf("expected 0 collisions, got %d", cache.Collisions())
	}

	// A different position claiming the same id is the defect case.
	if cache.RecordID(ctx, id, "/b.go", 9, 4) {
		t.Error("claim by a distinct position must report a collision")
	}
	if cache.Collisions() != 1 {
		t.Errorf("expected 1 collision, got %d", cache.Collisions())
	}
}
