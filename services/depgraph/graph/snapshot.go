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
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BadgerDB key layout for graph snapshots:
//
//	depgraph:snap:{seedHash}:{snapshotID}:data → gzip(JSON(SerializableGraph))
//	depgraph:snap:{seedHash}:{snapshotID}:meta → JSON(SnapshotMetadata)
//	depgraph:snap:{seedHash}:latest            → snapshotID
//	depgraph:snap:index:{snapshotID}           → seedHash
const (
	keyPrefixSnap      = "depgraph:snap:"
	keyPrefixSnapIndex = "depgraph:snap:index:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// SnapshotMetadata describes one saved graph snapshot.
type SnapshotMetadata struct {
	// SnapshotID is SHA256(RootID + BuiltAtMilli + GraphHash)[:16].
	SnapshotID string `json:"snapshot_id"`

	// RootID is the seed node id the graph was built from.
	RootID string `json:"root_id"`

	// SeedHash is SHA256(RootID)[:16], the key-grouping prefix.
	SeedHash string `json:"seed_hash"`

	// GraphHash is the structural hash of the stored graph.
	GraphHash string `json:"graph_hash"`

	// Direction and MaxDepth echo the build request.
	Direction string `json:"direction"`
	MaxDepth  int    `json:"max_depth"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	// CreatedAtMilli is when the snapshot was saved (Unix milliseconds).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// NodeCount and EdgeCount size the stored graph.
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`

	// SchemaVersion is the serialization schema version.
	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the gzip payload size in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is SHA256 of the compressed payload, checked on load.
	ContentHash string `json:"content_hash"`
}

// SnapshotManager persists graph snapshots as gzip-compressed JSON in
// BadgerDB, keyed by the seed they were built from.
//
// Thread Safety: safe for concurrent use; BadgerDB handles its own
// concurrency control.
type SnapshotManager struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewSnapshotManager wraps an opened BadgerDB. The caller owns the DB
// lifecycle.
func NewSnapshotManager(db *badger.DB, logger *slog.Logger) (*SnapshotManager, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotManager{db: db, logger: logger}, nil
}

// Save persists a snapshot of g and updates the seed's latest pointer.
func (m *SnapshotManager) Save(ctx context.Context, g *Graph, label string) (*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if g == nil {
		return nil, ErrNilGraph
	}

	ctx, span := tracer.Start(ctx, "graph.snapshot.save")
	defer span.End()

	sg := g.ToSerializable()
	jsonData, err := json.Marshal(sg)
	if err != nil {
		recordSnapshotOp(ctx, "save", false, 0)
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing graph: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	compressedData := compressed.Bytes()

	seedHash := SeedHash(g.RootID)
	// Id over root, build time, and content: re-saving the same build is
	// idempotent, while two builds in the same millisecond (different
	// direction or depth) still get distinct ids.
	snapshotID := hashString(fmt.Sprintf("%s:%d:%s", g.RootID, g.BuiltAtMilli, sg.GraphHash))[:16]

	meta := &SnapshotMetadata{
		SnapshotID:     snapshotID,
		RootID:         g.RootID,
		SeedHash:       seedHash,
		GraphHash:      sg.GraphHash,
		Direction:      g.BuildDirection.String(),
		MaxDepth:       g.MaxDepth,
		Label:          label,
		CreatedAtMilli: time.Now().UnixMilli(),
		NodeCount:      g.Len(),
		EdgeCount:      g.EdgeCount(),
		SchemaVersion:  GraphSchemaVersion,
		CompressedSize: int64(len(compressedData)),
		ContentHash:    hashBytes(compressedData),
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	dataKey := keyPrefixSnap + seedHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + seedHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + seedHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), compressedData); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(latestKey), []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(indexKey), []byte(seedHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		recordSnapshotOp(ctx, "save", false, 0)
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	m.logger.Info("snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("root_id", g.RootID),
		slog.Int("node_count", meta.NodeCount),
		slog.Int("edge_count", meta.EdgeCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	span.SetAttributes(
		attribute.String("snapshot_id", snapshotID),
		attribute.Int("node_count", meta.NodeCount),
	)
	recordSnapshotOp(ctx, "save", true, int64(len(compressedData)))

	return meta, nil
}

// Load retrieves a snapshot by id.
func (m *SnapshotManager) Load(ctx context.Context, snapshotID string) (*Graph, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot ID must not be empty")
	}

	seedHash, err := m.getSeedHash(snapshotID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return m.loadByKeys(ctx, seedHash, snapshotID)
}

// LoadLatest loads the most recent snapshot for a seed hash.
func (m *SnapshotManager) LoadLatest(ctx context.Context, seedHash string) (*Graph, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if seedHash == "" {
		return nil, nil, fmt.Errorf("seed hash must not be empty")
	}

	latestKey := keyPrefixSnap + seedHash + keySuffixLatest
	var snapshotID string
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snapshotID = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("%w: no snapshots for seed %s", ErrSnapshotNotFound, seedHash)
		}
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", seedHash, err)
	}

	return m.loadByKeys(ctx, seedHash, snapshotID)
}

// List returns snapshot metadata, newest first, optionally filtered by seed
// hash. limit <= 0 defaults to 100.
func (m *SnapshotManager) List(ctx context.Context, seedHash string, limit int) ([]*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = 100
	}

	prefix := keyPrefixSnap
	if seedHash != "" {
		prefix = keyPrefixSnap + seedHash + ":"
	}

	var results []*SnapshotMetadata
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !isMetaKey(key) {
				continue
			}

			var meta SnapshotMetadata
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				m.logger.Warn("skipping corrupt snapshot metadata",
					slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAtMilli > results[j].CreatedAtMilli
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot's data, metadata, and index entries. Deleting
// the latest snapshot also clears the latest pointer.
func (m *SnapshotManager) Delete(ctx context.Context, snapshotID string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return fmt.Errorf("snapshot ID must not be empty")
	}

	seedHash, err := m.getSeedHash(snapshotID)
	if err != nil {
		return fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}

	dataKey := keyPrefixSnap + seedHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + seedHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + seedHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(dataKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("deleting data: %w", err)
		}
		if err := txn.Delete([]byte(metaKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("deleting metadata: %w", err)
		}
		if err := txn.Delete([]byte(indexKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("deleting reverse index: %w", err)
		}

		item, err := txn.Get([]byte(latestKey))
		if err == nil {
			var currentLatest string
			_ = item.Value(func(val []byte) error {
				currentLatest = string(val)
				return nil
			})
			if currentLatest == snapshotID {
				if err := txn.Delete([]byte(latestKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("deleting latest pointer: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", snapshotID, err)
	}

	m.logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

func (m *SnapshotManager) loadByKeys(ctx context.Context, seedHash, snapshotID string) (*Graph, *SnapshotMetadata, error) {
	dataKey := keyPrefixSnap + seedHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + seedHash + ":" + snapshotID + keySuffixMeta

	var compressedData, metaJSON []byte
	err := m.db.View(func(txn *badger.Txn) error {
		dataItem, err := txn.Get([]byte(dataKey))
		if err != nil {
			return fmt.Errorf("reading data for %s: %w", snapshotID, err)
		}
		compressedData, err = dataItem.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copying data for %s: %w", snapshotID, err)
		}

		metaItem, err := txn.Get([]byte(metaKey))
		if err != nil {
			return fmt.Errorf("reading metadata for %s: %w", snapshotID, err)
		}
		metaJSON, err = metaItem.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copying metadata for %s: %w", snapshotID, err)
		}
		return nil
	})
	if err != nil {
		recordSnapshotOp(ctx, "load", false, 0)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
		}
		return nil, nil, err
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", snapshotID, err)
	}
	if meta.ContentHash != "" && meta.ContentHash != hashBytes(compressedData) {
		recordSnapshotOp(ctx, "load", false, 0)
		return nil, nil, fmt.Errorf("%w: %s", ErrIntegrity, snapshotID)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot %s: %w", snapshotID, err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("reading decompressed data for %s: %w", snapshotID, err)
	}

	var sg SerializableGraph
	if err := json.Unmarshal(jsonData, &sg); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling graph for %s: %w", snapshotID, err)
	}

	g, err := FromSerializable(&sg)
	if err != nil {
		return nil, nil, fmt.Errorf("reconstructing graph for %s: %w", snapshotID, err)
	}

	recordSnapshotOp(ctx, "load", true, int64(len(compressedData)))
	return g, &meta, nil
}

func (m *SnapshotManager) getSeedHash(snapshotID string) (string, error) {
	indexKey := keyPrefixSnapIndex + snapshotID
	var seedHash string
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			seedHash = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", ErrSnapshotNotFound
		}
		return "", err
	}
	return seedHash, nil
}

// SeedHash returns SHA256(rootID)[:16], the key prefix grouping all
// snapshots built from one seed. Exported so handlers can convert a root id
// to the stored hash.
func SeedHash(rootID string) string {
	return hashString(rootID)[:16]
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func isMetaKey(key string) bool {
	return len(key) > len(keySuffixMeta) && key[len(key)-len(keySuffixMeta):] == keySuffixMeta
}

func recordSnapshotOp(ctx context.Context, kind string, success bool, compressedBytes int64) {
	initMetrics()
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	)
	if snapshotTotal != nil {
		snapshotTotal.Add(ctx, 1, attrs)
	}
	if snapshotBytes != nil && success && compressedBytes > 0 {
		snapshotBytes.Record(ctx, compressedBytes, metric.WithAttributes(attribute.String("kind", kind)))
	}
}
