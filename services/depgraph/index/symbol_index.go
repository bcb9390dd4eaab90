// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
)

const (
	// DefaultMaxSymbols caps the index; a million symbols covers any
	// workspace the walker should be pointed at.
	DefaultMaxSymbols = 1_000_000

	// searchCheckInterval is how often Search polls for cancellation.
	searchCheckInterval = 1000
)

// SymbolIndexOptions configures SymbolIndex limits.
type SymbolIndexOptions struct {
	// MaxSymbols is the capacity; exceeding it returns
	// ErrMaxSymbolsExceeded.
	MaxSymbols int
}

// DefaultSymbolIndexOptions returns the defaults.
func DefaultSymbolIndexOptions() SymbolIndexOptions {
	return SymbolIndexOptions{MaxSymbols: DefaultMaxSymbols}
}

// SymbolIndexOption is a functional option for SymbolIndex.
type SymbolIndexOption func(*SymbolIndexOptions)

// WithMaxSymbols sets the capacity.
func WithMaxSymbols(limit int) SymbolIndexOption {
	return func(o *SymbolIndexOptions) {
		o.MaxSymbols = limit
	}
}

// IndexStats describes the index contents.
type IndexStats struct {
	// TotalSymbols is the indexed symbol count.
	TotalSymbols int

	// ByKind counts symbols per kind.
	ByKind map[ast.SymbolKind]int

	// FileCount is the number of files contributing symbols.
	FileCount int

	// MaxSymbols is the configured capacity.
	MaxSymbols int
}

// SymbolIndex is the workspace symbol catalog: O(1) lookups by id, name,
// file, and kind, plus positional containment queries for seed resolution.
//
// Description:
//
//	The provider fills the index from the initial workspace scan and the
//	watcher refreshes single files through ReplaceFile. The traversal
//	reads it on every SymbolAt/Definitions call, so lookups stay map-backed.
//
// Thread Safety:
//
//	Safe for concurrent use.
type SymbolIndex struct {
	mu sync.RWMutex

	byID   map[string]*ast.Symbol
	byName map[string][]*ast.Symbol
	byFile map[string][]*ast.Symbol
	byKind map[ast.SymbolKind][]*ast.Symbol

	totalCount int
	kindCounts map[ast.SymbolKind]int

	options SymbolIndexOptions
}

// NewSymbolIndex returns an empty index.
func NewSymbolIndex(opts ...SymbolIndexOption) *SymbolIndex {
	options := DefaultSymbolIndexOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &SymbolIndex{
		byID:       make(map[string]*ast.Symbol),
		byName:     make(map[string][]*ast.Symbol),
		byFile:     make(map[string][]*ast.Symbol),
		byKind:     make(map[ast.SymbolKind][]*ast.Symbol),
		kindCounts: make(map[ast.SymbolKind]int),
		options:    options,
	}
}

// Add indexes one symbol.
//
// Errors: ErrInvalidSymbol, ErrDuplicateSymbol, ErrMaxSymbolsExceeded.
func (idx *SymbolIndex) Add(symbol *ast.Symbol) error {
	if symbol == nil {
		return fmt.Errorf("%w: symbol is nil", ErrInvalidSymbol)
	}
	if err := symbol.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSymbol, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.totalCount >= idx.options.MaxSymbols {
		return ErrMaxSymbolsExceeded
	}
	if _, exists := idx.byID[symbol.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, symbol.ID)
	}

	idx.addLocked(symbol)
	return nil
}

// AddBatch indexes symbols atomically: every symbol is validated and
// checked against the batch and the index before anything is written, so a
// failed batch leaves the index untouched.
func (idx *SymbolIndex) AddBatch(symbols []*ast.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}

	var errs []error
	seen := make(map[string]int, len(symbols))
	for i, sym := range symbols {
		if sym == nil {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: symbol is nil", i, ErrInvalidSymbol))
			continue
		}
		if err := sym.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: %v", i, ErrInvalidSymbol, err))
			continue
		}
		if first, dup := seen[sym.ID]; dup {
			errs = append(errs, fmt.Errorf("symbol[%d]: duplicate ID in batch (same as symbol[%d]): %s",
				i, first, sym.ID))
		} else {
			seen[sym.ID] = i
		}
	}
	if len(errs) > 0 {
		return &BatchError{Errors: errs}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.totalCount+len(symbols) > idx.options.MaxSymbols {
		return ErrMaxSymbolsExceeded
	}
	for i, sym := range symbols {
		if _, exists := idx.byID[sym.ID]; exists {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: %s", i, ErrDuplicateSymbol, sym.ID))
		}
	}
	if len(errs) > 0 {
		return &BatchError{Errors: errs}
	}

	for _, sym := range symbols {
		idx.addLocked(sym)
	}
	return nil
}

// ReplaceFile swaps a file's symbols in one critical section: the watcher's
// re-index path, with no window where the file is absent from the index.
// Returns the number of symbols removed. Validation failures leave the old
// symbols in place.
func (idx *SymbolIndex) ReplaceFile(filePath string, symbols []*ast.Symbol) (int, error) {
	var errs []error
	for i, sym := range symbols {
		if sym == nil {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: symbol is nil", i, ErrInvalidSymbol))
			continue
		}
		if err := sym.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: %v", i, ErrInvalidSymbol, err))
		}
	}
	if len(errs) > 0 {
		return 0, &BatchError{Errors: errs}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := idx.removeFileLocked(filePath)
	if idx.totalCount+len(symbols) > idx.options.MaxSymbols {
		// Old symbols are already gone; capacity pressure this severe means
		// the workspace outgrew the index either way.
		return removed, ErrMaxSymbolsExceeded
	}
	for _, sym := range symbols {
		if _, exists := idx.byID[sym.ID]; exists {
			continue
		}
		idx.addLocked(sym)
	}
	return removed, nil
}

// addLocked writes a symbol to every map. Caller holds idx.mu.
func (idx *SymbolIndex) addLocked(symbol *ast.Symbol) {
	idx.byID[symbol.ID] = symbol
	idx.byName[symbol.Name] = append(idx.byName[symbol.Name], symbol)
	idx.byFile[symbol.FilePath] = append(idx.byFile[symbol.FilePath], symbol)
	idx.byKind[symbol.Kind] = append(idx.byKind[symbol.Kind], symbol)

	idx.totalCount++
	idx.kindCounts[symbol.Kind]++
}

// GetByID returns the symbol with the given id.
func (idx *SymbolIndex) GetByID(id string) (*ast.Symbol, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	sym, exists := idx.byID[id]
	return sym, exists
}

// GetByName returns all symbols sharing a name. The slice is a copy.
func (idx *SymbolIndex) GetByName(name string) []*ast.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copySymbols(idx.byName[name])
}

// GetByFile returns all symbols declared in a file. The slice is a copy.
func (idx *SymbolIndex) GetByFile(filePath string) []*ast.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copySymbols(idx.byFile[filePath])
}

// GetByKind returns all symbols of a kind. The slice is a copy.
func (idx *SymbolIndex) GetByKind(kind ast.SymbolKind) []*ast.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copySymbols(idx.byKind[kind])
}

// SymbolAt returns the innermost symbol containing the position in the
// file, the seed-resolution primitive. Ties go to the narrower span.
func (idx *SymbolIndex) SymbolAt(filePath string, pos ast.Position) (*ast.Symbol, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var best *ast.Symbol
	for _, sym := range idx.byFile[filePath] {
		if !sym.Contains(pos) {
			continue
		}
		if best == nil || sym.End.Line-sym.Start.Line <= best.End.Line-best.Start.Line {
			best = sym
		}
	}
	return best, best != nil
}

// DefinitionsOf returns the symbols a call to name could land on: callable
// kinds first, then the rest, stable within each group.
func (idx *SymbolIndex) DefinitionsOf(name string) []*ast.Symbol {
	idx.mu.RLock()
	matches := copySymbols(idx.byName[name])
	idx.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Kind.IsCallable() && !matches[j].Kind.IsCallable()
	})
	return matches
}

// Files returns every indexed file path, sorted. The reference scan
// iterates this list.
func (idx *SymbolIndex) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	files := make([]string, 0, len(idx.byFile))
	for file := range idx.byFile {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

// FilesDefining returns the files declaring name, sorted and deduplicated;
// the implementation finder uses it to order its candidate list.
func (idx *SymbolIndex) FilesDefining(name string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[string]struct{})
	var files []string
	for _, sym := range idx.byName[name] {
		if _, dup := seen[sym.FilePath]; dup {
			continue
		}
		seen[sym.FilePath] = struct{}{}
		files = append(files, sym.FilePath)
	}
	sort.Strings(files)
	return files
}

func copySymbols(src []*ast.Symbol) []*ast.Symbol {
	if len(src) == 0 {
		return nil
	}
	out := make([]*ast.Symbol, len(src))
	copy(out, src)
	return out
}

// Search finds symbols matching the query, best first: exact, prefix,
// camelCase word boundary, substring, then fuzzy within an edit-distance
// threshold. The context is polled during the scan so large indexes stay
// cancellable.
func (idx *SymbolIndex) Search(ctx context.Context, query string, limit int) ([]*ast.Symbol, error) {
	ctx, span := startOperationSpan(ctx, "Search")
	defer span.End()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		setOperationSpanResult(span, 0, false)
		recordOperationMetrics(ctx, "search", time.Since(start), false)
		return nil, err
	}
	if query == "" {
		setOperationSpanResult(span, 0, true)
		recordOperationMetrics(ctx, "search", time.Since(start), true)
		return nil, nil
	}

	queryLower := strings.ToLower(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		symbol *ast.Symbol
		score  int
	}
	var results []scored
	visited := 0

	for _, sym := range idx.byID {
		visited++
		if visited%searchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		score := matchScore(query, queryLower, sym.Name, strings.ToLower(sym.Name), sym.Kind)
		if score >= 0 {
			results = append(results, scored{symbol: sym, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score < results[j].score
		}
		return results[i].symbol.ID < results[j].symbol.ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	symbols := make([]*ast.Symbol, len(results))
	for i, r := range results {
		symbols[i] = r.symbol
	}

	setOperationSpanResult(span, len(symbols), true)
	recordOperationMetrics(ctx, "search", time.Since(start), true)
	recordSearchResults(ctx, len(symbols))
	return symbols, nil
}

// matchScore ranks one candidate; lower is better, -1 is no match.
//
// The composite packs the match class with tie-breakers:
//
//	score = class*10000 + positionPenalty*100 + lengthPenalty*10 + kindPenalty
//
// so an exact match always beats a prefix match, earlier and shorter
// matches beat later and longer ones, and callables edge out data symbols.
func matchScore(query, queryLower, name, nameLower string, kind ast.SymbolKind) int {
	var class, matchPos int

	switch {
	case nameLower == queryLower:
		return 0
	case strings.HasPrefix(nameLower, queryLower):
		class, matchPos = 1, 0
	default:
		if pos := camelCaseWordMatch(name, query); pos >= 0 {
			class, matchPos = 2, pos
		} else if pos := strings.Index(nameLower, queryLower); pos >= 0 {
			class, matchPos = 3, pos
		} else {
			threshold := max(2, len(queryLower)/3)
			if levenshteinDistance(nameLower, queryLower) > threshold {
				return -1
			}
			class, matchPos = 4, 0
		}
	}

	positionPenalty := 0
	if len(name) > 0 && matchPos > 0 {
		positionPenalty = min(99, (matchPos*100)/len(name))
	}
	lengthPenalty := min(99, abs(len(name)-len(query)))

	return class*10000 + positionPenalty*100 + lengthPenalty*10 + kindPenalty(kind)
}

// camelCaseWordMatch reports where query starts a camelCase/PascalCase word
// inside name ("Process" hits "getDatesToProcess" at 10), or -1.
func camelCaseWordMatch(name, query string) int {
	if len(query) == 0 || len(name) == 0 {
		return -1
	}
	queryLower := strings.ToLower(query)

	for i := 0; i < len(name); i++ {
		boundary := i == 0 || (isUpper(name[i]) && !isUpper(name[i-1]))
		if !boundary || i+len(query) > len(name) {
			continue
		}
		if strings.ToLower(name[i:i+len(query)]) != queryLower {
			continue
		}
		// The next char must close the word, or the query is mid-word.
		if i+len(query) == len(name) || isUpper(name[i+len(query)]) || !isLetter(name[i+len(query)]) {
			return i
		}
	}
	return -1
}

func kindPenalty(kind ast.SymbolKind) int {
	switch kind {
	case ast.SymbolKindFunction, ast.SymbolKindMethod, ast.SymbolKindComponent:
		return 0
	case ast.SymbolKindClass, ast.SymbolKindStruct, ast.SymbolKindInterface,
		ast.SymbolKindTrait, ast.SymbolKindEnum, ast.SymbolKindTypeAlias:
		return 1
	case ast.SymbolKindVariable, ast.SymbolKindConstant:
		return 2
	case ast.SymbolKindModule, ast.SymbolKindImport:
		return 3
	default:
		return 5
	}
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// levenshteinDistance is the edit distance between two strings, two-row
// rolling implementation.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// RemoveByFile drops every symbol declared in filePath, returning the
// count removed.
func (idx *SymbolIndex) RemoveByFile(filePath string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.removeFileLocked(filePath)
}

// removeFileLocked drops a file's symbols from every map. Caller holds
// idx.mu.
func (idx *SymbolIndex) removeFileLocked(filePath string) int {
	symbols := idx.byFile[filePath]
	if len(symbols) == 0 {
		return 0
	}

	for _, sym := range symbols {
		delete(idx.byID, sym.ID)

		idx.byName[sym.Name] = removeSymbol(idx.byName[sym.Name], sym)
		if len(idx.byName[sym.Name]) == 0 {
			delete(idx.byName, sym.Name)
		}

		idx.byKind[sym.Kind] = removeSymbol(idx.byKind[sym.Kind], sym)
		if len(idx.byKind[sym.Kind]) == 0 {
			delete(idx.byKind, sym.Kind)
		}

		idx.totalCount--
		idx.kindCounts[sym.Kind]--
		if idx.kindCounts[sym.Kind] == 0 {
			delete(idx.kindCounts, sym.Kind)
		}
	}

	removed := len(symbols)
	delete(idx.byFile, filePath)
	return removed
}

// removeSymbol removes sym from the slice by pointer equality, swapping
// with the last element.
func removeSymbol(slice []*ast.Symbol, sym *ast.Symbol) []*ast.Symbol {
	for i, s := range slice {
		if s == sym {
			slice[i] = slice[len(slice)-1]
			return slice[:len(slice)-1]
		}
	}
	return slice
}

// Clear resets the index to empty.
func (idx *SymbolIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byID = make(map[string]*ast.Symbol)
	idx.byName = make(map[string][]*ast.Symbol)
	idx.byFile = make(map[string][]*ast.Symbol)
	idx.byKind = make(map[ast.SymbolKind][]*ast.Symbol)
	idx.kindCounts = make(map[ast.SymbolKind]int)
	idx.totalCount = 0
}

// Stats returns the maintained counters; no map traversal.
func (idx *SymbolIndex) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	byKind := make(map[ast.SymbolKind]int, len(idx.kindCounts))
	for k, v := range idx.kindCounts {
		byKind[k] = v
	}
	return IndexStats{
		TotalSymbols: idx.totalCount,
		ByKind:       byKind,
		FileCount:    len(idx.byFile),
		MaxSymbols:   idx.options.MaxSymbols,
	}
}
