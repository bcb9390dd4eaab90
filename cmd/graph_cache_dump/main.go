// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// graph_cache_dump inspects the depgraph snapshot store.
//
// The snapshot manager persists built graphs as gzip-compressed JSON in
// BadgerDB, keyed by the seed they were built from. This tool opens the
// store read-only and prints a human-readable summary: per-snapshot
// metadata, stored payload sizes with content-hash verification, latest
// pointers, and any orphaned keys left behind by interrupted writes.
//
// Usage:
//
//	graph_cache_dump [--path /path/to/.depgraph/snapshots]
//
// If --path is not given, reads ALEUTIAN_DEPGRAPH_SNAPSHOT_DIR from the
// environment, falling back to .depgraph/snapshots under the working
// directory.
//
// Exit codes:
//
//	0 — success (including "empty store", which prints a message and exits 0)
//	1 — error opening or reading the database
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

// Key layout, duplicated from the snapshot manager because the prefixes are
// unexported there. Must match snapshot.go exactly:
//
//	depgraph:snap:{seedHash}:{snapshotID}:data → gzip(JSON(SerializableGraph))
//	depgraph:snap:{seedHash}:{snapshotID}:meta → JSON(SnapshotMetadata)
//	depgraph:snap:{seedHash}:latest            → snapshotID
//	depgraph:snap:index:{snapshotID}           → seedHash
const (
	snapKeyPrefix  = "depgraph:snap:"
	indexKeyPrefix = "depgraph:snap:index:"
)

// storeScan is everything one pass over the keyspace collects.
type storeScan struct {
	metas      map[string]*graph.SnapshotMetadata // snapshotID → decoded metadata
	dataSizes  map[string]int                     // snapshotID → stored payload bytes
	dataHashes map[string]string                  // snapshotID → sha256 of payload
	latest     map[string]string                  // seedHash → snapshotID
	index      map[string]string                  // snapshotID → seedHash
	corrupt    []string                           // keys whose values failed to decode
	unknown    []string                           // keys matching no layout rule
}

func main() {
	pathFlag := flag.String("path", "", "Path to the snapshot BadgerDB directory (overrides ALEUTIAN_DEPGRAPH_SNAPSHOT_DIR)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("ALEUTIAN_DEPGRAPH_SNAPSHOT_DIR")
	}
	if dbPath == "" {
		dbPath = filepath.Join(".depgraph", "snapshots")
	}

	fmt.Printf("Snapshot store path: %s\n", dbPath)

	// Check existence before trying to open — gives a cleaner error message
	// than BadgerDB's "no such file or directory" buried in a long error.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Store directory does not exist. Nothing has been saved yet.")
		fmt.Println("Run 'depgraph build SEED --save' or POST /api/v1/snapshots to populate it.")
		os.Exit(0)
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil). // suppress BadgerDB internal logs
		WithReadOnly(true)

	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	scan, err := scanStore(db)
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	if len(scan.metas) == 0 && len(scan.dataSizes) == 0 &&
		len(scan.latest) == 0 && len(scan.index) == 0 {
		fmt.Println("\nNo snapshot keys found.")
		fmt.Println("The store has been opened before but nothing was saved,")
		fmt.Println("or every snapshot has since been deleted.")
		os.Exit(0)
	}

	printSnapshots(scan)
	printOrphans(scan)
	printSummary(scan, dbPath)
}

// scanStore walks every key under the snapshot prefix in one read
// transaction and classifies it.
func scanStore(db *dgbadger.DB) (*storeScan, error) {
	scan := &storeScan{
		metas:      make(map[string]*graph.SnapshotMetadata),
		dataSizes:  make(map[string]int),
		dataHashes: make(map[string]string),
		latest:     make(map[string]string),
		index:      make(map[string]string),
	}

	err := db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(snapKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())

			raw, err := item.ValueCopy(nil)
			if err != nil {
				scan.corrupt = append(scan.corrupt, fmt.Sprintf("%s (copy value: %v)", key, err))
				continue
			}

			switch {
			case strings.HasPrefix(key, indexKeyPrefix):
				snapshotID := strings.TrimPrefix(key, indexKeyPrefix)
				scan.index[snapshotID] = string(raw)

			case strings.HasSuffix(key, ":latest"):
				seedHash := strings.TrimSuffix(strings.TrimPrefix(key, snapKeyPrefix), ":latest")
				scan.latest[seedHash] = string(raw)

			case strings.HasSuffix(key, ":meta"):
				_, snapshotID, ok := splitSnapshotKey(key, ":meta")
				if !ok {
					scan.unknown = append(scan.unknown, key)
					continue
				}
				var meta graph.SnapshotMetadata
				if err := json.Unmarshal(raw, &meta); err != nil {
					scan.corrupt = append(scan.corrupt, fmt.Sprintf("%s (json decode: %v)", key, err))
					continue
				}
				scan.metas[snapshotID] = &meta

			case strings.HasSuffix(key, ":data"):
				_, snapshotID, ok := splitSnapshotKey(key, ":data")
				if !ok {
					scan.unknown = append(scan.unknown, key)
					continue
				}
				scan.dataSizes[snapshotID] = len(raw)
				sum := sha256.Sum256(raw)
				scan.dataHashes[snapshotID] = hex.EncodeToString(sum[:])

			default:
				scan.unknown = append(scan.unknown, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scan, nil
}

// splitSnapshotKey extracts (seedHash, snapshotID) from a data or meta key.
func splitSnapshotKey(key, suffix string) (string, string, bool) {
	rest := strings.TrimSuffix(strings.TrimPrefix(key, snapKeyPrefix), suffix)
	parts := strings.Split(rest, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func printSnapshots(scan *storeScan) {
	metas := make([]*graph.SnapshotMetadata, 0, len(scan.metas))
	for _, meta := range scan.metas {
		metas = append(metas, meta)
	}
	// Newest first, the same order the service's list endpoint uses.
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAtMilli > metas[j].CreatedAtMilli
	})

	seeds := make(map[string]bool)
	for _, meta := range metas {
		seeds[meta.SeedHash] = true
	}

	fmt.Printf("\nFound %d snapshot%s across %d seed%s:\n",
		len(metas), plural(len(metas), "", "s"),
		len(seeds), plural(len(seeds), "", "s"))
	fmt.Println(strings.Repeat("─", 80))

	for i, meta := range metas {
		fmt.Printf("\n[%d] Snapshot:  %s\n", i+1, meta.SnapshotID)
		fmt.Printf("    Seed hash: %s\n", meta.SeedHash)
		fmt.Printf("    Root:      %s\n", meta.RootID)
		fmt.Printf("    Created:   %s\n",
			time.UnixMilli(meta.CreatedAtMilli).Format("2006-01-02 15:04:05 MST"))
		if meta.Label != "" {
			fmt.Printf("    Label:     %s\n", meta.Label)
		}
		fmt.Printf("    Build:     %s, depth %d\n", meta.Direction, meta.MaxDepth)
		fmt.Printf("    Graph:     %d nodes, %d edges, schema %s\n",
			meta.NodeCount, meta.EdgeCount, meta.SchemaVersion)

		size, hasData := scan.dataSizes[meta.SnapshotID]
		switch {
		case !hasData:
			fmt.Printf("    Stored:    DATA MISSING (metadata without payload)\n")
		case meta.ContentHash != "" && scan.dataHashes[meta.SnapshotID] != meta.ContentHash:
			fmt.Printf("    Stored:    %s — CONTENT HASH MISMATCH (payload corrupt)\n", formatBytes(size))
		default:
			fmt.Printf("    Stored:    %s, content hash OK\n", formatBytes(size))
		}
		if size != int(meta.CompressedSize) && hasData {
			fmt.Printf("    WARNING:   stored size %d differs from recorded %d\n",
				size, meta.CompressedSize)
		}

		if _, ok := scan.index[meta.SnapshotID]; !ok {
			fmt.Printf("    WARNING:   reverse index entry missing (load by id will fail)\n")
		}
		if scan.latest[meta.SeedHash] == meta.SnapshotID {
			fmt.Printf("    Latest:    yes\n")
		}
	}
}

// printOrphans reports keys whose counterparts are gone: payloads without
// metadata, index entries and latest pointers naming snapshots that no
// longer exist. Delete removes all four keys together, so orphans mean an
// interrupted write or manual tampering.
func printOrphans(scan *storeScan) {
	var orphans []string

	for snapshotID := range scan.dataSizes {
		if _, ok := scan.metas[snapshotID]; !ok {
			orphans = append(orphans, fmt.Sprintf("data for %s has no metadata", snapshotID))
		}
	}
	for snapshotID, seedHash := range scan.index {
		if _, ok := scan.metas[snapshotID]; !ok {
			orphans = append(orphans, fmt.Sprintf("index entry %s → %s names a missing snapshot", snapshotID, seedHash))
		}
	}
	for seedHash, snapshotID := range scan.latest {
		if _, ok := scan.metas[snapshotID]; !ok {
			orphans = append(orphans, fmt.Sprintf("latest pointer for seed %s names missing snapshot %s", seedHash, snapshotID))
		}
	}
	sort.Strings(orphans)

	if len(orphans) == 0 && len(scan.corrupt) == 0 && len(scan.unknown) == 0 {
		return
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	if len(orphans) > 0 {
		fmt.Printf("Orphaned keys (%d):\n", len(orphans))
		for _, o := range orphans {
			fmt.Printf("  ! %s\n", o)
		}
	}
	if len(scan.corrupt) > 0 {
		fmt.Printf("Undecodable values (%d):\n", len(scan.corrupt))
		for _, c := range scan.corrupt {
			fmt.Printf("  ! %s\n", c)
		}
	}
	if len(scan.unknown) > 0 {
		fmt.Printf("Unrecognized keys (%d):\n", len(scan.unknown))
		for _, u := range scan.unknown {
			fmt.Printf("  ? %s\n", u)
		}
	}
}

func printSummary(scan *storeScan, dbPath string) {
	var totalBytes int
	for _, size := range scan.dataSizes {
		totalBytes += size
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	fmt.Printf("Summary: %d snapshot%s, %d latest pointer%s, %s of payload, store path: %s\n",
		len(scan.metas), plural(len(scan.metas), "", "s"),
		len(scan.latest), plural(len(scan.latest), "", "s"),
		formatBytes(totalBytes), dbPath)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB (%d bytes)", float64(n)/1024/1024, n)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB (%d bytes)", float64(n)/1024, n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// plural returns singular or plural suffix based on count.
func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "graph_cache_dump: "+format+"\n", args...)
	os.Exit(1)
}
