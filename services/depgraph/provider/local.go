// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"container/list"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/detect"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/index"
)

const (
	// DefaultOpTimeout bounds each provider query.
	DefaultOpTimeout = 5 * time.Second

	// DefaultMaxFiles caps the construction-time scan.
	DefaultMaxFiles = 10000

	// DefaultMaxProjectBytes caps the total size of scanned files (100MB).
	DefaultMaxProjectBytes = 100 * 1024 * 1024

	// defaultTreeCapacity is the number of parse trees kept hot.
	defaultTreeCapacity = 64
)

// DefaultExcludes are directory names skipped during the scan and by the
// watcher. ".depgraph" is the tool's own state directory (snapshot store).
var DefaultExcludes = []string{
	".git", ".depgraph", "node_modules", "vendor", "target", "dist", "build",
	"__pycache__", ".venv", ".idea", ".vscode",
}

// LocalProviderOption configures a LocalProvider.
type LocalProviderOption func(*LocalProvider)

// WithExcludes replaces the default directory exclusions.
func WithExcludes(excludes []string) LocalProviderOption {
	return func(p *LocalProvider) {
		if excludes != nil {
			p.excludes = excludes
		}
	}
}

// WithMaxFiles caps how many files the scan will parse.
func WithMaxFiles(n int) LocalProviderOption {
	return func(p *LocalProvider) {
		if n > 0 {
			p.maxFiles = n
		}
	}
}

// WithMaxProjectBytes caps the total size of scanned files.
func WithMaxProjectBytes(n int64) LocalProviderOption {
	return func(p *LocalProvider) {
		if n > 0 {
			p.maxProjectBytes = n
		}
	}
}

// WithOpTimeout sets the per-query deadline. Zero disables it.
func WithOpTimeout(d time.Duration) LocalProviderOption {
	return func(p *LocalProvider) {
		p.opTimeout = d
	}
}

// WithProviderLogger sets the logger.
func WithProviderLogger(logger *slog.Logger) LocalProviderOption {
	return func(p *LocalProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRegistry replaces the parser registry.
func WithRegistry(registry *ast.ParserRegistry) LocalProviderOption {
	return func(p *LocalProvider) {
		if registry != nil {
			p.registry = registry
		}
	}
}

// WithCache replaces the file cache.
func WithCache(cache *FileCache) LocalProviderOption {
	return func(p *LocalProvider) {
		if cache != nil {
			p.files = cache
		}
	}
}

// treeEntry is one cached parse tree together with the content it was
// parsed from and the stat that validates it.
type treeEntry struct {
	path    string
	tree    *sitter.Tree
	content []byte
	mtime   int64
	size    int64
}

// LocalProvider answers traversal queries from an in-process symbol index
// built by scanning the workspace at construction time.
//
// Description:
//
//	The scan walks the project root, parses every file a registered parser
//	claims, and fills a SymbolIndex. Queries then resolve against the index
//	and the file cache; no per-query filesystem walk. A Watcher keeps the
//	index fresh while serving.
//
// Thread Safety:
//
//	Safe for concurrent use.
type LocalProvider struct {
	root     string
	registry *ast.ParserRegistry
	idx      *index.SymbolIndex
	files    *FileCache
	logger   *slog.Logger

	excludes        []string
	maxFiles        int
	maxProjectBytes int64
	opTimeout       time.Duration

	treeMu  sync.Mutex
	trees   map[string]*list.Element
	treeLRU *list.List
	treeCap int
}

// NewLocalProvider scans projectRoot and returns a ready provider.
//
// Errors: ErrNotDirectory for a bad root, ErrProjectTooLarge when the scan
// caps are exceeded, or the context's error on cancellation. Individual
// unreadable or unparseable files are skipped, not fatal.
func NewLocalProvider(ctx context.Context, projectRoot string, opts ...LocalProviderOption) (*LocalProvider, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	p := &LocalProvider{
		root:            root,
		registry:        ast.DefaultRegistry(),
		idx:             index.NewSymbolIndex(),
		files:           NewFileCache(),
		logger:          slog.Default(),
		excludes:        DefaultExcludes,
		maxFiles:        DefaultMaxFiles,
		maxProjectBytes: DefaultMaxProjectBytes,
		opTimeout:       DefaultOpTimeout,
		trees:           make(map[string]*list.Element),
		treeLRU:         list.New(),
		treeCap:         defaultTreeCapacity,
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.scan(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Root returns the absolute project root.
func (p *LocalProvider) Root() string { return p.root }

// Index returns the provider's symbol index. Callers may query it directly;
// mutation stays with the provider and its watcher.
func (p *LocalProvider) Index() *index.SymbolIndex { return p.idx }

// Cache returns the provider's file cache.
func (p *LocalProvider) Cache() *FileCache { return p.files }

// scan walks the root and indexes every parseable file.
func (p *LocalProvider) scan(ctx context.Context) error {
	start := time.Now()
	parsed, skipped := 0, 0
	var totalBytes int64

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if path != p.root && p.excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if _, perr := p.registry.GetForFile(path); perr != nil {
			return nil // no parser claims it
		}

		info, ierr := d.Info()
		if ierr != nil {
			skipped++
			return nil
		}
		if info.Size() > DefaultFileSizeLimit {
			skipped++
			return nil
		}

		totalBytes += info.Size()
		if totalBytes > p.maxProjectBytes {
			return ErrProjectTooLarge
		}
		if parsed+1 > p.maxFiles {
			return ErrProjectTooLarge
		}

		if p.indexFile(ctx, path) {
			parsed++
		} else {
			skipped++
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordScan(ctx, time.Since(start), parsed, skipped)
	p.logger.Info("workspace scan complete",
		slog.String("root", p.root),
		slog.Int("files_parsed", parsed),
		slog.Int("files_skipped", skipped),
		slog.Int("symbols", p.idx.Stats().TotalSymbols),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// indexFile parses one file and replaces its index entries. Returns false
// when the file could not be read or parsed.
func (p *LocalProvider) indexFile(ctx context.Context, path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		p.logger.Debug("skipping unreadable file", slog.String("path", path), slog.String("error", err.Error()))
		return false
	}
	parser, err := p.registry.GetForFile(path)
	if err != nil {
		return false
	}
	result, err := parser.Parse(ctx, content, path)
	if err != nil {
		p.logger.Debug("skipping unparseable file", slog.String("path", path), slog.String("error", err.Error()))
		return false
	}
	if _, err := p.idx.ReplaceFile(path, result.Symbols); err != nil {
		p.logger.Warn("failed to index file", slog.String("path", path), slog.String("error", err.Error()))
		return false
	}
	return true
}

// removeFile drops one file from the index and both caches.
func (p *LocalProvider) removeFile(path string) {
	p.idx.RemoveByFile(path)
	p.files.Invalidate(path)

	p.treeMu.Lock()
	if elem, ok := p.trees[path]; ok {
		p.treeLRU.Remove(elem)
		delete(p.trees, path)
	}
	p.treeMu.Unlock()
}

// excluded reports whether a directory name matches the exclusion list.
func (p *LocalProvider) excluded(name string) bool {
	for _, pattern := range p.excludes {
		if name == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// opContext applies the per-query deadline.
func (p *LocalProvider) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.opTimeout)
}

// normalize makes a query path absolute under the project root.
func (p *LocalProvider) normalize(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.root, path)
}

// SymbolAt returns the name of the symbol at a position: the innermost
// indexed declaration containing it, else the identifier under the cursor.
func (p *LocalProvider) SymbolAt(ctx context.Context, file string, pos ast.Position) (string, bool) {
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	name, ok := p.symbolNameAt(ctx, p.normalize(file), pos)
	recordOperation(ctx, "symbol_at", ok)
	return name, ok
}

// symbolNameAt resolves a seed position: the innermost indexed declaration
// containing it, else the identifier under the cursor.
func (p *LocalProvider) symbolNameAt(ctx context.Context, file string, pos ast.Position) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	if sym, ok := p.idx.SymbolAt(file, pos); ok {
		return sym.Name, true
	}

	// Not inside any indexed declaration; take the identifier under the
	// cursor from the line text.
	lines, err := p.files.Lines(file)
	if err != nil {
		return "", false
	}
	return identifierAt(lines, pos)
}

// identifierNameAt resolves a definition-lookup position: the identifier
// under the cursor unless it is a language keyword (a position at the start
// of a declaration line sits on `func` or `def`, not the name), else the
// enclosing indexed declaration. A call site therefore resolves to the
// callee, which is what a definition lookup wants.
func (p *LocalProvider) identifierNameAt(ctx context.Context, file string, pos ast.Position) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}

	language := ""
	if parser, err := p.registry.GetForFile(file); err == nil {
		language = parser.Language()
	}
	if lines, err := p.files.Lines(file); err == nil {
		if ident, ok := identifierAt(lines, pos); ok && !detect.IsKeyword(language, ident) {
			return ident, true
		}
	}

	if sym, ok := p.idx.SymbolAt(file, pos); ok {
		return sym.Name, true
	}
	return "", false
}

// References returns the declaration sites whose bodies mention the symbol
// at the position, excluding the symbol's own declaration lines. The name
// resolves through the enclosing declaration first: at a call site inside
// f, references means "who mentions f", which is what an ancestor walk
// needs when it lands on call positions. Each mention canonicalizes to its
// innermost enclosing indexed declaration — every call site inside one
// caller yields that caller's declaration location exactly once, so a
// caller is one graph node no matter how many times it repeats the call.
// Mentions outside any declaration (module-level code) keep their own
// position. The scan stops early at the operation deadline and returns
// what it has.
func (p *LocalProvider) References(ctx context.Context, file string, pos ast.Position) []ast.Location {
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	name, ok := p.symbolNameAt(ctx, p.normalize(file), pos)
	if !ok || name == "" {
		recordOperation(ctx, "references", false)
		return nil
	}

	// Declaration start lines per file; occurrences there are the
	// definitions themselves, not references to them.
	declLines := make(map[string]map[int]bool)
	for _, sym := range p.idx.GetByName(name) {
		if declLines[sym.FilePath] == nil {
			declLines[sym.FilePath] = make(map[int]bool)
		}
		declLines[sym.FilePath][sym.Start.Line] = true
	}

	var refs []ast.Location
	seen := make(map[string]bool)
	for _, candidate := range p.idx.Files() {
		if ctx.Err() != nil {
			break
		}
		lines, err := p.files.Lines(candidate)
		if err != nil {
			continue
		}
		for lineNo, line := range lines {
			if declLines[candidate][lineNo] {
				continue
			}
			for _, col := range wholeWordIndexes(line, name) {
				loc := ast.Location{
					FilePath: candidate,
					Start:    ast.Position{Line: lineNo, Col: col},
					End:      ast.Position{Line: lineNo, Col: col + len(name)},
				}
				if sym, ok := p.idx.SymbolAt(candidate, loc.Start); ok {
					loc = sym.Location()
				}
				key := fmt.Sprintf("%s:%d:%d", loc.FilePath, loc.Start.Line, loc.Start.Col)
				if seen[key] {
					continue
				}
				seen[key] = true
				refs = append(refs, loc)
			}
		}
	}

	recordOperation(ctx, "references", len(refs) > 0)
	return refs
}

// Definitions returns the declaration locations of the symbol at the
// position, callable definitions first.
func (p *LocalProvider) Definitions(ctx context.Context, file string, pos ast.Position) []ast.Location {
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	name, ok := p.identifierNameAt(ctx, p.normalize(file), pos)
	if !ok || name == "" {
		recordOperation(ctx, "definitions", false)
		return nil
	}

	symbols := p.idx.DefinitionsOf(name)
	locs := make([]ast.Location, 0, len(symbols))
	for _, sym := range symbols {
		locs = append(locs, sym.Location())
	}

	recordOperation(ctx, "definitions", len(locs) > 0)
	return locs
}

// ReadFile returns the file's lines through the cache.
func (p *LocalProvider) ReadFile(ctx context.Context, path string) ([]string, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	lines, err := p.files.Lines(p.normalize(path))
	if err != nil {
		p.logger.Debug("read failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, false
	}
	return lines, true
}

// ParseTree returns the file's parse tree, cached per (path, mtime, size).
// The returned tree is shared; callers must not Close it. Evicted trees are
// left to the finalizer because a reader may still be walking them.
func (p *LocalProvider) ParseTree(ctx context.Context, file string) (*sitter.Tree, []byte, bool) {
	ctx, cancel := p.opContext(ctx)
	defer cancel()

	path := p.normalize(file)
	grammar, ok := ast.GrammarForFile(path)
	if !ok {
		recordOperation(ctx, "parse_tree", false)
		return nil, nil, false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() > DefaultFileSizeLimit {
		recordOperation(ctx, "parse_tree", false)
		return nil, nil, false
	}
	mtime, size := info.ModTime().UnixNano(), info.Size()

	p.treeMu.Lock()
	if elem, hit := p.trees[path]; hit {
		entry := elem.Value.(*treeEntry)
		if entry.mtime == mtime && entry.size == size {
			p.treeLRU.MoveToFront(elem)
			p.treeMu.Unlock()
			recordOperation(ctx, "parse_tree", true)
			return entry.tree, entry.content, true
		}
		p.treeLRU.Remove(elem)
		delete(p.trees, path)
	}
	p.treeMu.Unlock()

	content, err := p.files.Content(path)
	if err != nil {
		recordOperation(ctx, "parse_tree", false)
		return nil, nil, false
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		recordOperation(ctx, "parse_tree", false)
		return nil, nil, false
	}

	entry := &treeEntry{path: path, tree: tree, content: content, mtime: mtime, size: size}
	p.treeMu.Lock()
	if elem, raced := p.trees[path]; raced {
		// Lost a parse race; serve the established entry.
		p.treeLRU.MoveToFront(elem)
		established := elem.Value.(*treeEntry)
		p.treeMu.Unlock()
		recordOperation(ctx, "parse_tree", true)
		return established.tree, established.content, true
	}
	p.trees[path] = p.treeLRU.PushFront(entry)
	for p.treeLRU.Len() > p.treeCap {
		oldest := p.treeLRU.Back()
		p.treeLRU.Remove(oldest)
		delete(p.trees, oldest.Value.(*treeEntry).path)
	}
	p.treeMu.Unlock()

	recordOperation(ctx, "parse_tree", true)
	return tree, content, true
}

// identifierAt extracts the identifier covering pos from line text.
func identifierAt(lines []string, pos ast.Position) (string, bool) {
	if pos.Line < 0 || pos.Line >= len(lines) {
		return "", false
	}
	line := lines[pos.Line]
	col := pos.Col
	if col > len(line) {
		return "", false
	}
	// A cursor sitting just past the identifier still means that
	// identifier.
	if col == len(line) || (col < len(line) && !isIdentByte(line[col])) {
		if col == 0 || !isIdentByte(line[col-1]) {
			return "", false
		}
		col--
	}

	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}
	if start == end {
		return "", false
	}
	if line[start] >= '0' && line[start] <= '9' {
		return "", false // numbers are not identifiers
	}
	return line[start:end], true
}

// wholeWordIndexes returns the column of each whole-word occurrence of name
// in line.
func wholeWordIndexes(line, name string) []int {
	if name == "" {
		return nil
	}
	var cols []int
	for i := 0; i+len(name) <= len(line); {
		if line[i:i+len(name)] != name {
			i++
			continue
		}
		beforeOK := i == 0 || !isIdentByte(line[i-1])
		afterOK := i+len(name) == len(line) || !isIdentByte(line[i+len(name)])
		if beforeOK && afterOK {
			cols = append(cols, i)
			i += len(name)
			continue
		}
		i++
	}
	return cols
}

// isIdentByte reports whether b can appear in an identifier in any of the
// supported languages ($ covers ECMAScript).
func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
