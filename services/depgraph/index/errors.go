// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index holds the workspace symbol catalog behind the analysis
// provider: every parsed declaration, queryable by id, name, file, kind,
// and position.
//
// # Ownership Model
//
// The index stores pointers to symbols but does not own them. Symbols must
// not be mutated after being added; to update a file's symbols, call
// ReplaceFile with the fresh parse.
//
// # Thread Safety
//
// SymbolIndex is safe for concurrent use. Write operations take an
// exclusive lock; reads take a shared lock.
package index

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateSymbol is returned when adding a symbol whose ID is
	// already indexed.
	ErrDuplicateSymbol = errors.New("duplicate symbol ID")

	// ErrMaxSymbolsExceeded is returned when the index is at capacity.
	ErrMaxSymbolsExceeded = errors.New("maximum symbol count exceeded")

	// ErrInvalidSymbol wraps a Symbol.Validate failure.
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// BatchError aggregates the errors of a batch operation so a caller sees
// every problem at once rather than the first.
type BatchError struct {
	// Errors holds the individual failures, each prefixed with its batch
	// position.
	Errors []error
}

// Error returns a summary: the single error's message, or the count plus
// the first error.
func (e *BatchError) Error() string {
	if len(e.Errors) == 0 {
		return "batch error with no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v (and %d more)",
		len(e.Errors), e.Errors[0], len(e.Errors)-1)
}

// Unwrap exposes the underlying errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}

// ErrorList returns every error, one per line.
func (e *BatchError) ErrorList() string {
	if len(e.Errors) == 0 {
		return ""
	}
	var b strings.Builder
	for i, err := range e.Errors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}
