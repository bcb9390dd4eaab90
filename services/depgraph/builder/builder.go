// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/ast"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/detect"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/index"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/lang"
	"github.com/AleutianAI/AleutianGraph/services/depgraph/provider"
)

// DefaultMaxImplementationFiles caps the fallback implementation search.
const DefaultMaxImplementationFiles = 20

// rootProvider is the optional capability of providers anchored to a
// directory. LocalProvider has it; the builder uses it to absolutize seed
// paths and to bound the implementation walk.
type rootProvider interface {
	Root() string
}

// indexedProvider is the optional capability of providers backed by a
// symbol index, used for cosmetic node decoration and implementation
// candidate lists.
type indexedProvider interface {
	Index() *index.SymbolIndex
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResolvers replaces the language resolver registry.
func WithResolvers(registry *lang.Registry) Option {
	return func(s *Session) {
		if registry != nil {
			s.resolvers = registry
		}
	}
}

// WithDetector replaces the call detector.
func WithDetector(d *detect.Detector) Option {
	return func(s *Session) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithProjectRoot sets the root for import resolution. Defaults to the
// provider's root when the provider has one.
func WithProjectRoot(root string) Option {
	return func(s *Session) {
		if root != "" {
			s.projectRoot = root
		}
	}
}

// WithMaxImplementationFiles caps the fallback implementation search.
func WithMaxImplementationFiles(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxImplFiles = n
		}
	}
}

// Stats summarizes one build.
type Stats struct {
	SessionID          string `json:"session_id"`
	Nodes              int    `json:"nodes"`
	Edges              int    `json:"edges"`
	CacheHits          int    `json:"cache_hits"`
	PrunedDepth        int    `json:"pruned_depth"`
	PrunedNoSymbol     int    `json:"pruned_no_symbol"`
	UnresolvedImports  int    `json:"unresolved_imports"`
	IdentityCollisions int    `json:"identity_collisions"`
	ElapsedMilli       int64  `json:"elapsed_milli"`
}

// Result is what a completed build hands back.
type Result struct {
	Graph  *graph.Graph
	RootID graph.NodeID
	Stats  Stats
}

// Session drives one traversal. It owns the graph and the visit cache; the
// provider, resolvers, and detector are shared collaborators.
type Session struct {
	id        uuid.UUID
	provider  provider.Provider
	resolvers *lang.Registry
	detector  *detect.Detector
	logger    *slog.Logger

	graph *graph.Graph
	cache *graph.VisitCache

	projectRoot  string
	maxImplFiles int

	built bool
	stats Stats
}

// NewSession creates a single-use traversal session over the provider.
func NewSession(p provider.Provider, opts ...Option) (*Session, error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	s := &Session{
		id:           uuid.New(),
		provider:     p,
		resolvers:    lang.NewRegistry(),
		detector:     detect.NewDetector(),
		logger:       slog.Default(),
		graph:        graph.NewGraph(),
		cache:        graph.NewVisitCache(),
		maxImplFiles: DefaultMaxImplementationFiles,
	}
	if rp, ok := p.(rootProvider); ok {
		s.projectRoot = rp.Root()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Graph returns the session graph. Before Build it is empty; after Build it
// is the built result and FindImplementation may still grow it.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Build grows the dependency graph around the seed position: callers when
// walking up, callees and imports when walking down, both ways for
// DirectionBoth. A seed that resolves but expands nowhere yields a one-node
// graph and no error; only invalid arguments or an unresolvable seed fail.
func (s *Session) Build(ctx context.Context, seedFile string, pos ast.Position, maxDepth int, dir graph.Direction) (*Result, error) {
	if s.built {
		return nil, ErrSessionReused
	}
	if maxDepth < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, maxDepth)
	}
	if seedFile == "" || pos.Line < 0 || pos.Col < 0 {
		return nil, fmt.Errorf("%w: file=%q line=%d col=%d", ErrInvalidSeed, seedFile, pos.Line, pos.Col)
	}
	switch dir {
	case graph.DirectionUp, graph.DirectionDown, graph.DirectionBoth:
	default:
		return nil, fmt.Errorf("%w: %s", graph.ErrUnknownDirection, dir)
	}

	seed := s.absolute(seedFile)
	pos = s.canonicalPosition(seed, pos)
	symbol, ok := s.resolveSymbol(ctx, seed, pos)
	if !ok {
		return nil, fmt.Errorf("%w: %s:%d:%d", ErrSeedNotResolved, seed, pos.Line, pos.Col)
	}

	s.built = true
	started := time.Now()
	ctx, span := startBuildSpan(ctx, s.id.String(), dir, maxDepth)
	defer span.End()

	s.logger.Info("build started",
		slog.String("session", s.id.String()),
		slog.String("file", seed),
		slog.Int("line", pos.Line),
		slog.String("symbol", symbol),
		slog.String("direction", dir.String()),
		slog.Int("max_depth", maxDepth),
	)

	rootID := s.expandNode(ctx, seed, pos, symbol, "", 0, maxDepth, dir)
	if rootID == "" {
		// The seed resolved above, so only cancellation lands here.
		recordBuild(ctx, dir, time.Since(started), 0, false)
		return nil, fmt.Errorf("build canceled: %w", ctx.Err())
	}

	s.graph.RootID = rootID
	s.graph.BuildDirection = dir
	s.graph.MaxDepth = maxDepth
	s.graph.BuiltAtMilli = time.Now().UnixMilli()

	s.stats.SessionID = s.id.String()
	s.stats.Nodes = s.graph.Len()
	s.stats.Edges = s.graph.EdgeCount()
	s.stats.IdentityCollisions = s.cache.Collisions()
	s.stats.ElapsedMilli = time.Since(started).Milliseconds()

	span.SetAttributes(
		attribute.Int("build.nodes", s.stats.Nodes),
		attribute.Int("build.edges", s.stats.Edges),
	)
	recordBuild(ctx, dir, time.Since(started), s.stats.Nodes, true)
	s.logger.Info("build complete",
		slog.String("session", s.id.String()),
		slog.Int("nodes", s.stats.Nodes),
		slog.Int("edges", s.stats.Edges),
		slog.Int("cache_hits", s.stats.CacheHits),
		slog.Int64("elapsed_ms", s.stats.ElapsedMilli),
	)

	return &Result{Graph: s.graph, RootID: rootID, Stats: s.stats}, nil
}

// expandNode runs the per-position state machine: bounds and symbol checks,
// node materialization, parent wiring, then the directional expansions. It
// returns the node id, or "" when the branch pruned.
//
// The parent edge is wired before the visit-cache guard: a position reached
// again through a different parent still owes that parent an edge, it just
// does not get re-expanded.
func (s *Session) expandNode(ctx context.Context, file string, pos ast.Position, symbol string, parentID graph.NodeID, depth, maxDepth int, dir graph.Direction) graph.NodeID {
	if depth > maxDepth {
		s.prune(ctx, "depth", file, pos)
		return ""
	}
	if ctx.Err() != nil {
		s.prune(ctx, "canceled", file, pos)
		return ""
	}

	if symbol == "" {
		resolved, ok := s.resolveSymbol(ctx, file, pos)
		if !ok {
			s.prune(ctx, "no_symbol", file, pos)
			return ""
		}
		symbol = resolved
	}

	id := graph.ComputeID(file, pos.Line, pos.Col)
	s.cache.RecordID(ctx, id, file, pos.Line, pos.Col)

	lines, _ := s.provider.ReadFile(ctx, file)

	node, created := s.graph.GetOrCreate(file, pos, symbol, parentID == "" && depth == 0)
	if created {
		s.decorate(node, lines)
	}

	if parentID != "" && parentID != node.ID {
		if err := s.graph.Connect(node.ID, parentID, dir); err != nil {
			s.logger.Debug("edge rejected",
				slog.String("node", node.ID),
				slog.String("parent", parentID),
				slog.String("error", err.Error()))
		}
	}

	key := graph.PositionKey(node.ID, dir, depth)
	if s.cache.Seen(key) {
		s.stats.CacheHits++
		return node.ID
	}
	s.cache.MarkSeen(key)

	if dir == graph.DirectionUp || dir == graph.DirectionBoth {
		s.expandUp(ctx, node, depth, maxDepth)
	}
	if dir == graph.DirectionDown || dir == graph.DirectionBoth {
		s.expandDown(ctx, node, lines, depth, maxDepth)
	}
	if depth == 0 || dir == graph.DirectionDown {
		s.expandLocal(ctx, node, lines, depth, maxDepth)
	}
	return node.ID
}

// expandUp discovers callers: every reference to this node's symbol becomes
// a parent probe walking up.
func (s *Session) expandUp(ctx context.Context, node *graph.Node, depth, maxDepth int) {
	if depth+1 > maxDepth {
		s.prune(ctx, "depth", node.FullPath, ast.Position{Line: node.Line, Col: node.Col})
		return
	}
	refs := s.provider.References(ctx, node.FullPath, ast.Position{Line: node.Line, Col: node.Col})
	for _, ref := range refs {
		if graph.ComputeID(ref.FilePath, ref.Start.Line, ref.Start.Col) == node.ID {
			continue
		}
		s.expandNode(ctx, ref.FilePath, ref.Start, "", node.ID, depth+1, maxDepth, graph.DirectionUp)
	}
}

// expandDown follows the definition of the symbol at this position, then
// the file's imports that the node's scope actually uses.
func (s *Session) expandDown(ctx context.Context, node *graph.Node, lines []string, depth, maxDepth int) {
	if depth+1 > maxDepth {
		s.prune(ctx, "depth", node.FullPath, ast.Position{Line: node.Line, Col: node.Col})
		return
	}
	pos := ast.Position{Line: node.Line, Col: node.Col}
	for _, def := range s.provider.Definitions(ctx, node.FullPath, pos) {
		if graph.ComputeID(def.FilePath, def.Start.Line, def.Start.Col) == node.ID {
			continue
		}
		s.expandNode(ctx, def.FilePath, def.Start, "", node.ID, depth+1, maxDepth, graph.DirectionDown)
	}

	s.expandImports(ctx, node, lines, depth, maxDepth)
}

// expandImports records and chases imports whose bound names the node's
// scope mentions. Unresolvable imports are recorded with a nil Definition
// and materialize no node.
func (s *Session) expandImports(ctx context.Context, node *graph.Node, lines []string, depth, maxDepth int) {
	if len(lines) == 0 {
		return
	}
	resolver := s.resolvers.ForFile(node.FullPath)
	imports := resolver.ParseImports(ctx, []byte(strings.Join(lines, "\n")), node.FullPath)
	if len(imports) == 0 {
		return
	}

	scope, _, _ := s.scopeFor(ctx, node.FullPath, ast.Position{Line: node.Line, Col: node.Col}, len(lines))
	scopeText := scope.Text(lines)

	for _, imp := range imports {
		name := boundNameUsed(imp, scopeText)
		if name == "" {
			continue
		}
		ref := graph.VariableRef{Name: name, Line: imp.Line, Col: imp.Col}

		symKey := graph.SymbolKey(name, node.ID)
		if s.cache.Seen(symKey) {
			node.RecordVariable(ref)
			continue
		}
		s.cache.MarkSeen(symKey)

		target, ok := resolver.ResolveImportToFile(ctx, imp, node.FullPath, s.projectRoot)
		if !ok {
			s.recordUnresolvedImport(ctx, node, ref)
			continue
		}
		targetLines, ok := s.provider.ReadFile(ctx, target)
		if !ok {
			s.recordUnresolvedImport(ctx, node, ref)
			continue
		}
		symPos, ok := s.resolvers.ForFile(target).FindSymbolInFile(ctx, target, targetLines, name)
		if !ok {
			s.recordUnresolvedImport(ctx, node, ref)
			continue
		}

		if childID := s.expandNode(ctx, target, symPos, name, node.ID, depth+1, maxDepth, graph.DirectionDown); childID != "" {
			def := childID
			ref.Definition = &def
		}
		node.RecordVariable(ref)
	}
}

func (s *Session) recordUnresolvedImport(ctx context.Context, node *graph.Node, ref graph.VariableRef) {
	s.stats.UnresolvedImports++
	node.RecordVariable(ref)
	s.logger.Debug("import not resolved",
		slog.String("file", node.FullPath),
		slog.String("name", ref.Name),
		slog.Int("line", ref.Line))
	recordPrune(ctx, "unresolved_import")
}

// expandLocal chases the calls the detector finds inside the node's scope,
// walking down to each callee's definition.
func (s *Session) expandLocal(ctx context.Context, node *graph.Node, lines []string, depth, maxDepth int) {
	if len(lines) == 0 {
		return
	}
	pos := ast.Position{Line: node.Line, Col: node.Col}
	scope, tree, content := s.scopeFor(ctx, node.FullPath, pos, len(lines))

	calls := s.detector.DetectCalls(ctx, detect.ScopeRequest{
		File:     node.FullPath,
		Language: s.resolvers.ForFile(node.FullPath).Language(),
		Lines:    lines,
		Scope:    scope,
		Tree:     tree,
		Content:  content,
	})
	if len(calls) == 0 {
		return
	}

	names := make([]string, 0, len(calls))
	for name := range calls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		callPos := s.locateCall(lines, scope, calls[name])
		ref := graph.VariableRef{Name: name, Line: callPos.Line, Col: callPos.Col, IsCall: true}

		symKey := graph.SymbolKey(name, node.ID)
		if s.cache.Seen(symKey) {
			node.RecordVariable(ref)
			continue
		}
		s.cache.MarkSeen(symKey)

		var childID graph.NodeID
		for _, def := range s.provider.Definitions(ctx, node.FullPath, callPos) {
			if graph.ComputeID(def.FilePath, def.Start.Line, def.Start.Col) == node.ID {
				continue
			}
			if childID = s.expandNode(ctx, def.FilePath, def.Start, name, node.ID, depth+1, maxDepth, graph.DirectionDown); childID != "" {
				break
			}
		}
		if childID != "" {
			def := childID
			ref.Definition = &def
		}
		node.RecordVariable(ref)
	}
}

// canonicalPosition snaps a position to its innermost enclosing indexed
// declaration when the provider carries an index. A seed placed anywhere on
// a declaration (the symbol name, the body) then computes the same node id
// as the declaration location the provider's Definitions and References
// return, so one symbol never splits into a seed node and a declaration
// node. Providers without an index keep the position as given.
func (s *Session) canonicalPosition(file string, pos ast.Position) ast.Position {
	ip, ok := s.provider.(indexedProvider)
	if !ok || ip.Index() == nil {
		return pos
	}
	if sym, ok := ip.Index().SymbolAt(file, pos); ok {
		return sym.Start
	}
	return pos
}

// resolveSymbol names the symbol at a position: the provider first, then the
// identifier on the cached line.
func (s *Session) resolveSymbol(ctx context.Context, file string, pos ast.Position) (string, bool) {
	if name, ok := s.provider.SymbolAt(ctx, file, pos); ok && name != "" {
		return name, true
	}
	lines, ok := s.provider.ReadFile(ctx, file)
	if !ok || pos.Line < 0 || pos.Line >= len(lines) {
		return "", false
	}
	return identifierOn(lines[pos.Line], pos.Col)
}

// decorate fills the cosmetic fields of a fresh node: its source line and,
// when the provider carries an index, the declaration's doc comment.
func (s *Session) decorate(node *graph.Node, lines []string) {
	if node.Line >= 0 && node.Line < len(lines) {
		node.SourceText = strings.TrimSpace(lines[node.Line])
	}
	ip, ok := s.provider.(indexedProvider)
	if !ok || ip.Index() == nil {
		return
	}
	sym, ok := ip.Index().SymbolAt(node.FullPath, ast.Position{Line: node.Line, Col: node.Col})
	if !ok {
		return
	}
	node.DocComment = sym.DocComment
	if sym.Kind == ast.SymbolKindComponent {
		node.Extra = &graph.NodeExtra{IsComponent: true}
	}
}

// scopeFor resolves the detection scope around a position, using the
// provider's parse-tree capability when it has one.
func (s *Session) scopeFor(ctx context.Context, file string, pos ast.Position, lineCount int) (detect.Scope, *sitter.Tree, []byte) {
	var tree *sitter.Tree
	var content []byte
	if tp, ok := s.provider.(provider.TreeParser); ok {
		if t, c, ok := tp.ParseTree(ctx, file); ok {
			tree, content = t, c
		}
	}
	return detect.ResolveScope(tree, pos, lineCount), tree, content
}

// locateCall settles on a position for a detected call: the strategy's
// coordinates when they land inside the file, else the first whole-word
// occurrence inside the scope, else the scope start.
func (s *Session) locateCall(lines []string, scope detect.Scope, call detect.CallInfo) ast.Position {
	if call.Line >= 0 && call.Line < len(lines) && call.Col >= 0 && call.Col <= len(lines[call.Line]) {
		return ast.Position{Line: call.Line, Col: call.Col}
	}
	for lineNo := scope.StartLine; lineNo <= scope.EndLine && lineNo < len(lines); lineNo++ {
		if lineNo < 0 {
			continue
		}
		if col := wholeWordIndex(lines[lineNo], call.Name); col >= 0 {
			return ast.Position{Line: lineNo, Col: col}
		}
	}
	start := scope.StartLine
	if start < 0 {
		start = 0
	}
	return ast.Position{Line: start, Col: 0}
}

// prune drops a branch: Debug log plus a counter, never an error.
func (s *Session) prune(ctx context.Context, reason, file string, pos ast.Position) {
	switch reason {
	case "depth":
		s.stats.PrunedDepth++
	case "no_symbol":
		s.stats.PrunedNoSymbol++
	}
	recordPrune(ctx, reason)
	s.logger.Debug("branch pruned",
		slog.String("reason", reason),
		slog.String("file", file),
		slog.Int("line", pos.Line),
		slog.Int("col", pos.Col))
}

// absolute normalizes a path against the project root.
func (s *Session) absolute(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if s.projectRoot != "" {
		return filepath.Join(s.projectRoot, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// boundNameUsed returns the first name the import binds that appears as a
// whole word in the scope text, or "".
func boundNameUsed(imp lang.ImportInfo, scopeText string) string {
	for _, name := range imp.BoundNames() {
		if wholeWordInText(scopeText, name) {
			return name
		}
	}
	return ""
}

// wholeWordInText reports whether name occurs in text bounded by
// non-identifier bytes.
func wholeWordInText(text, name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i+len(name) <= len(text); i++ {
		if text[i:i+len(name)] != name {
			continue
		}
		beforeOK := i == 0 || !isIdentChar(text[i-1])
		afterOK := i+len(name) == len(text) || !isIdentChar(text[i+len(name)])
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}

// wholeWordIndex returns the column of the first whole-word occurrence of
// name in line, or -1.
func wholeWordIndex(line, name string) int {
	if name == "" {
		return -1
	}
	for i := 0; i+len(name) <= len(line); i++ {
		if line[i:i+len(name)] != name {
			continue
		}
		beforeOK := i == 0 || !isIdentChar(line[i-1])
		afterOK := i+len(name) == len(line) || !isIdentChar(line[i+len(name)])
		if beforeOK && afterOK {
			return i
		}
	}
	return -1
}

// identifierOn extracts the identifier covering col in line.
func identifierOn(line string, col int) (string, bool) {
	if col > len(line) {
		return "", false
	}
	if col == len(line) || !isIdentChar(line[col]) {
		if col == 0 || !isIdentChar(line[col-1]) {
			return "", false
		}
		col--
	}
	start := col
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(line[end]) {
		end++
	}
	if start == end || (line[start] >= '0' && line[start] <= '9') {
		return "", false
	}
	return line[start:end], true
}

// isIdentChar matches identifier bytes across the supported languages.
func isIdentChar(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
