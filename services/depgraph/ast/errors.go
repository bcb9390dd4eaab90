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

import "errors"

// Sentinel errors returned by parsers and the registry. Callers match with
// errors.Is; parsers wrap these with file context via fmt.Errorf("...: %w").
var (
	// ErrNilContext is returned when a nil context is passed to Parse.
	ErrNilContext = errors.New("nil context")

	// ErrFileTooLarge is returned when content exceeds the parser's
	// configured maximum file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidEncoding is returned when content is not valid UTF-8.
	ErrInvalidEncoding = errors.New("content is not valid UTF-8")

	// ErrParseFailed is returned when tree-sitter cannot produce a tree.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidSymbol is returned by Symbol.Validate for malformed symbols.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrInvalidParseResult is returned by ParseResult.Validate.
	ErrInvalidParseResult = errors.New("invalid parse result")

	// ErrUnknownSymbolKind is returned when deserializing an unrecognized
	// symbol kind name.
	ErrUnknownSymbolKind = errors.New("unknown symbol kind")

	// ErrUnsupportedLanguage is returned by the registry when no parser
	// claims a language or extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrDuplicateParser is returned when registering a parser for a
	// language that already has one.
	ErrDuplicateParser = errors.New("parser already registered")
)
