// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// defaultMaxFileSize bounds single-file parses. Files above this are almost
// always generated artifacts (bundles, lockfiles) not worth graphing.
const defaultMaxFileSize = 2 * 1024 * 1024

// checkContent runs the shared pre-parse validation: size-bounded, valid
// UTF-8. Empty content is fine; it parses to an empty result.
func checkContent(content []byte, maxSize int) error {
	if maxSize > 0 && len(content) > maxSize {
		return ErrFileTooLarge
	}
	if !utf8.Valid(content) {
		return ErrInvalidEncoding
	}
	return nil
}

// contentHash returns the hex SHA-256 of content.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// startPos converts a node's start point to a Position.
func startPos(node *sitter.Node) Position {
	return Position{Line: int(node.StartPoint().Row), Col: int(node.StartPoint().Column)}
}

// endPos converts a node's end point to a Position.
func endPos(node *sitter.Node) Position {
	return Position{Line: int(node.EndPoint().Row), Col: int(node.EndPoint().Column)}
}

// nodeLocation converts a node's span to a Location.
func nodeLocation(node *sitter.Node, filePath string) Location {
	return Location{FilePath: filePath, Start: startPos(node), End: endPos(node)}
}

// nodeText returns the source text covered by node.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

// signatureText returns the declaration header: the node's text up to the
// first body brace or colon, collapsed to one line.
func signatureText(node *sitter.Node, content []byte) string {
	text := nodeText(node, content)
	if idx := strings.IndexAny(text, "{\n"); idx >= 0 {
		text = text[:idx]
	}
	return strings.Join(strings.Fields(text), " ")
}

// stripQuotes removes one layer of matching string quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// lineCommentsAbove collects the contiguous run of line comments ending on
// the line directly above node, stripping the given marker from each line.
// This is the shared doc-comment extraction for marker-comment languages.
func lineCommentsAbove(node *sitter.Node, content []byte, commentType, marker string) string {
	var lines []string
	expectLine := int(node.StartPoint().Row) - 1

	for prev := node.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if prev.Type() != commentType || int(prev.EndPoint().Row) != expectLine {
			break
		}
		text := strings.TrimSpace(nodeText(prev, content))
		if !strings.HasPrefix(text, marker) {
			// Rust separates /// docs from // remarks; only docs count.
			break
		}
		text = strings.TrimPrefix(strings.TrimPrefix(text, marker), " ")
		lines = append([]string{text}, lines...)
		expectLine = int(prev.StartPoint().Row) - 1
	}
	return strings.Join(lines, "\n")
}

// isUpperIdent reports whether the identifier starts with an uppercase rune.
func isUpperIdent(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
