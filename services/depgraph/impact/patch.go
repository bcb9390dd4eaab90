// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// devNull is the diff-header name for a missing side of a file pair.
const devNull = "/dev/null"

// LineRange is a contiguous run of touched lines, 0-based and inclusive on
// both ends, in the coordinates of the file the graph was built from.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether line falls inside the range.
func (r LineRange) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// FileChange summarizes how one file is touched by the patch.
type FileChange struct {
	// Path is the repo-relative path with the a/ or b/ prefix stripped.
	// For deletions it is the original path, for additions the new one.
	Path string `json:"path"`

	// OldPath is set only for renames.
	OldPath string `json:"old_path,omitempty"`

	// Status is one of "modified", "added", "deleted", or "renamed".
	Status string `json:"status"`

	// Ranges are the touched lines in original-file coordinates. Empty for
	// added files, which have no original coordinates to intersect.
	Ranges []LineRange `json:"ranges,omitempty"`

	// LinesAdded and LinesRemoved count the +/- lines across all hunks.
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// parsePatch reads a unified diff into per-file change summaries.
func parsePatch(patch string) ([]FileChange, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}
	if len(fileDiffs) == 0 {
		return nil, fmt.Errorf("%w: no file diffs", ErrMalformedPatch)
	}

	changes := make([]FileChange, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		changes = append(changes, summarizeFileDiff(fd))
	}
	return changes, nil
}

// summarizeFileDiff classifies one file diff and collects its touched ranges.
func summarizeFileDiff(fd *diff.FileDiff) FileChange {
	orig := stripDiffPrefix(fd.OrigName)
	next := stripDiffPrefix(fd.NewName)

	fc := FileChange{Path: next, Status: "modified"}
	switch {
	case fd.OrigName == devNull:
		fc.Status = "added"
	case fd.NewName == devNull:
		fc.Status = "deleted"
		fc.Path = orig
	case orig != next:
		fc.Status = "renamed"
		fc.OldPath = orig
	}

	for _, hunk := range fd.Hunks {
		ranges, added, removed := touchedRanges(hunk)
		fc.LinesAdded += added
		fc.LinesRemoved += removed
		if fc.Status != "added" {
			fc.Ranges = mergeRanges(fc.Ranges, ranges)
		}
	}
	return fc
}

// touchedRanges walks one hunk body and returns the original-file lines it
// modifies, 0-based. A removed line touches itself; an added line touches
// the original line it is inserted before, since that is where the change
// lands in the coordinates the graph knows.
func touchedRanges(hunk *diff.Hunk) (ranges []LineRange, added, removed int) {
	orig := int(hunk.OrigStartLine) - 1 // diff headers are 1-based

	touch := func(line int) {
		if n := len(ranges); n > 0 && line <= ranges[n-1].End+1 {
			if line > ranges[n-1].End {
				ranges[n-1].End = line
			}
			return
		}
		ranges = append(ranges, LineRange{Start: line, End: line})
	}

	lines := strings.Split(string(hunk.Body), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			added++
			touch(orig)
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			removed++
			touch(orig)
			orig++
		default:
			// Context line.
			orig++
		}
	}
	return ranges, added, removed
}

// mergeRanges appends more onto base, coalescing adjacent or overlapping
// runs. Both inputs are already sorted by Start, as hunks are.
func mergeRanges(base, more []LineRange) []LineRange {
	for _, r := range more {
		if n := len(base); n > 0 && r.Start <= base[n-1].End+1 {
			if r.End > base[n-1].End {
				base[n-1].End = r.End
			}
			continue
		}
		base = append(base, r)
	}
	return base
}

// stripDiffPrefix removes the conventional a/ or b/ prefix from a diff
// header name.
func stripDiffPrefix(name string) string {
	if name == devNull {
		return name
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
