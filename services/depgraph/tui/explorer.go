// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui provides the interactive terminal explorer for built graphs.
//
// # Description
//
// This package implements the graph explorer TUI using bubbletea. It renders
// a built dependency graph as a collapsible tree, walks callee or caller
// edges, and filters nodes by symbol name.
//
// # Thread Safety
//
// TUI components are designed for single-threaded use within the bubbletea
// event loop. Do not access TUI state from multiple goroutines, and do not
// mutate the explored graph while the program runs.
package tui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/AleutianGraph/services/depgraph/graph"
)

// =============================================================================
// Config
// =============================================================================

// ExplorerConfig configures the graph explorer TUI.
type ExplorerConfig struct {
	// ShowFiles renders file:line next to each symbol.
	ShowFiles bool

	// MaxDetailRefs caps the variable references listed in the detail view.
	MaxDetailRefs int

	// Width overrides terminal width (0 = auto-detect).
	Width int

	// Height overrides terminal height (0 = auto-detect).
	Height int
}

// DefaultExplorerConfig returns sensible defaults.
func DefaultExplorerConfig() ExplorerConfig {
	return ExplorerConfig{
		ShowFiles:     true,
		MaxDetailRefs: 8,
	}
}

// =============================================================================
// Rows
// =============================================================================

// treeRow is one rendered line of the tree pane: a node at a depth, with
// the state needed to draw its expansion marker.
type treeRow struct {
	id       graph.NodeID
	depth    int
	kids     int
	expanded bool
	cycle    bool
}

func (r treeRow) expandable() bool { return r.kids > 0 && !r.cycle }

// =============================================================================
// Model
// =============================================================================

// ExplorerModel is the bubbletea model for interactive graph exploration.
//
// # Description
//
// Manages tree expansion, caller/callee orientation, the symbol filter,
// and the detail overlay for the node under the cursor.
type ExplorerModel struct {
	// Configuration
	config ExplorerConfig

	// Graph being explored
	graph *graph.Graph

	// Tree state. showParents flips the edge set the tree follows:
	// children (callees) by default, parents (callers) when set.
	showParents bool
	expanded    map[graph.NodeID]bool
	rows        []treeRow
	cursor      int

	// Filter state. applied holds the lowercased active filter; when it is
	// non-empty the tree pane is replaced by the flat match list.
	filter    textinput.Model
	filtering bool
	applied   string
	matches   []graph.NodeID

	// Viewport for scrolling
	viewport viewport.Model

	// Terminal dimensions
	width  int
	height int

	// State flags
	ready      bool
	showHelp   bool
	showDetail bool
	quitting   bool
}

// NewExplorerModel creates an explorer over a built graph.
//
// # Inputs
//
//   - g: The graph to explore. Must not be nil and must have a root.
//   - config: Configuration options.
//
// # Outputs
//
//   - ExplorerModel: Ready-to-use model for tea.NewProgram.
func NewExplorerModel(g *graph.Graph, config ExplorerConfig) ExplorerModel {
	ti := textinput.New()
	ti.Placeholder = "symbol filter"
	ti.Prompt = "/"
	ti.CharLimit = 64
	ti.Width = 32

	m := ExplorerModel{
		config:   config,
		graph:    g,
		expanded: make(map[graph.NodeID]bool),
		filter:   ti,
	}
	if root := g.Root(); root != nil {
		m.expanded[root.ID] = true
	}
	m.rebuildRows()
	return m
}

// Init implements tea.Model.
func (m ExplorerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.config.Width > 0 {
			m.width = m.config.Width
		}
		if m.config.Height > 0 {
			m.height = m.config.Height
		}

		headerHeight := 3
		footerHeight := 2
		viewportHeight := m.height - headerHeight - footerHeight

		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}

		m.updateViewportContent()

	case tea.KeyMsg:
		// Route keystrokes to the filter box while it has focus.
		if m.filtering {
			return m.handleFilterInput(msg)
		}

		// Overlays swallow keys until dismissed.
		if m.showHelp {
			if msg.String() == "q" || msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
				m.updateViewportContent()
			}
			return m, nil
		}
		if m.showDetail {
			if msg.String() == "q" || msg.String() == "d" || msg.String() == "esc" || msg.String() == "enter" {
				m.showDetail = false
				m.updateViewportContent()
			}
			return m, nil
		}

		switch msg.String() {
		case "j", "down":
			m.moveCursor(1)

		case "k", "up":
			m.moveCursor(-1)

		case "g", "home":
			m.cursor = 0
			m.updateViewportContent()
			m.viewport.GotoTop()

		case "G", "end":
			m.cursor = m.visibleCount() - 1
			if m.cursor < 0 {
				m.cursor = 0
			}
			m.updateViewportContent()
			m.viewport.GotoBottom()

		case "ctrl+d":
			m.viewport.HalfViewDown()

		case "ctrl+u":
			m.viewport.HalfViewUp()

		case "enter", " ", "l", "right":
			m.toggleCurrent()

		case "h", "left":
			m.collapseCurrent()

		case "p":
			m.toggleEdges()

		case "d":
			if m.currentNode() != nil {
				m.showDetail = true
				m.updateViewportContent()
			}

		case "/":
			m.filtering = true
			m.filter.Focus()
			return m, textinput.Blink

		case "esc":
			if m.applied != "" {
				m.clearFilter()
			}

		case "?":
			m.showHelp = true
			m.updateViewportContent()

		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

		// Keys are fully handled above; the viewport's own keymap also
		// binds j/k and would double-scroll if the message fell through.
		return m, nil

	default:
		// Non-key messages (blink ticks) keep the filter cursor alive.
		if m.filtering {
			m.filter, cmd = m.filter.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m ExplorerModel) View() string {
	if m.quitting {
		return ""
	}

	if !m.ready || m.graph == nil || m.graph.Root() == nil {
		return "Loading...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderFilterBar())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// =============================================================================
// Filter Input
// =============================================================================

func (m ExplorerModel) handleFilterInput(msg tea.KeyMsg) (ExplorerModel, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.applied = strings.ToLower(strings.TrimSpace(m.filter.Value()))
		m.filtering = false
		m.filter.Blur()
		m.cursor = 0
		m.rebuildRows()
		m.updateViewportContent()
		m.viewport.GotoTop()
		return m, nil

	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.clearFilter()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m *ExplorerModel) clearFilter() {
	m.filter.SetValue("")
	m.applied = ""
	m.matches = nil
	m.cursor = 0
	m.rebuildRows()
	m.updateViewportContent()
	m.viewport.GotoTop()
}

// =============================================================================
// Navigation
// =============================================================================

func (m *ExplorerModel) moveCursor(delta int) {
	next := m.cursor + delta
	if next < 0 || next >= m.visibleCount() {
		return
	}
	m.cursor = next
	m.updateViewportContent()
	m.ensureCursorVisible()
}

// ensureCursorVisible scrolls the viewport so the cursor row stays on
// screen. Rows map one-to-one onto content lines.
func (m *ExplorerModel) ensureCursorVisible() {
	if !m.ready {
		return
	}
	if m.cursor < m.viewport.YOffset {
		m.viewport.SetYOffset(m.cursor)
	} else if m.cursor >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(m.cursor - m.viewport.Height + 1)
	}
}

func (m *ExplorerModel) toggleCurrent() {
	if m.applied != "" {
		// The flat match list has nothing to expand; enter opens detail.
		if m.currentNode() != nil {
			m.showDetail = true
			m.updateViewportContent()
		}
		return
	}
	if m.cursor >= len(m.rows) {
		return
	}
	row := m.rows[m.cursor]
	if !row.expandable() {
		return
	}
	m.expanded[row.id] = !m.expanded[row.id]
	m.rebuildRows()
	m.updateViewportContent()
}

func (m *ExplorerModel) collapseCurrent() {
	if m.applied != "" || m.cursor >= len(m.rows) {
		return
	}
	row := m.rows[m.cursor]
	if m.expanded[row.id] {
		m.expanded[row.id] = false
		m.rebuildRows()
		m.updateViewportContent()
	}
}

// toggleEdges flips the tree between callees and callers. Expansion state
// describes the other edge set, so it resets to the root.
func (m *ExplorerModel) toggleEdges() {
	m.showParents = !m.showParents
	m.expanded = make(map[graph.NodeID]bool)
	if root := m.graph.Root(); root != nil {
		m.expanded[root.ID] = true
	}
	m.cursor = 0
	m.rebuildRows()
	m.updateViewportContent()
	m.viewport.GotoTop()
}

// =============================================================================
// Row Construction
// =============================================================================

// rebuildRows recomputes the visible line set: the flattened tree, or the
// flat match list while a filter is applied.
func (m *ExplorerModel) rebuildRows() {
	if m.applied != "" {
		m.matches = m.matchingNodes()
		m.rows = nil
		return
	}
	m.matches = nil
	m.rows = m.flattenTree()
}

// flattenTree walks the expanded portion of the tree depth-first. A node
// already on the walk path renders as a cycle marker and is not descended
// into, which is what makes mutual recursion displayable.
func (m *ExplorerModel) flattenTree() []treeRow {
	root := m.graph.Root()
	if root == nil {
		return nil
	}

	var rows []treeRow
	onPath := make(map[graph.NodeID]bool)

	var walk func(id graph.NodeID, depth int)
	walk = func(id graph.NodeID, depth int) {
		node := m.graph.Get(id)
		if node == nil {
			return
		}
		kids := m.edgesOf(node)
		cycle := onPath[id]
		rows = append(rows, treeRow{
			id:       id,
			depth:    depth,
			kids:     len(kids),
			expanded: m.expanded[id] && !cycle,
			cycle:    cycle,
		})
		if cycle || !m.expanded[id] {
			return
		}

		onPath[id] = true
		for _, kid := range kids {
			walk(kid, depth+1)
		}
		delete(onPath, id)
	}

	walk(root.ID, 0)
	return rows
}

// edgesOf returns the ids the tree follows from node in the current
// orientation.
func (m *ExplorerModel) edgesOf(node *graph.Node) []graph.NodeID {
	if m.showParents {
		return node.Parents
	}
	return node.Children
}

// matchingNodes returns ids whose symbol contains the applied filter,
// case-insensitively, in a stable order.
func (m *ExplorerModel) matchingNodes() []graph.NodeID {
	var out []*graph.Node
	for _, node := range m.graph.Nodes() {
		if strings.Contains(strings.ToLower(node.Symbol), m.applied) {
			out = append(out, node)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		if out[i].FullPath != out[j].FullPath {
			return out[i].FullPath < out[j].FullPath
		}
		return out[i].Line < out[j].Line
	})

	ids := make([]graph.NodeID, len(out))
	for i, node := range out {
		ids[i] = node.ID
	}
	return ids
}

func (m ExplorerModel) visibleCount() int {
	if m.applied != "" {
		return len(m.matches)
	}
	return len(m.rows)
}

// currentNode returns the node under the cursor, nil when the pane is
// empty.
func (m ExplorerModel) currentNode() *graph.Node {
	if m.applied != "" {
		if m.cursor < len(m.matches) {
			return m.graph.Get(m.matches[m.cursor])
		}
		return nil
	}
	if m.cursor < len(m.rows) {
		return m.graph.Get(m.rows[m.cursor].id)
	}
	return nil
}

// =============================================================================
// Viewport Content
// =============================================================================

func (m *ExplorerModel) updateViewportContent() {
	if !m.ready {
		return
	}

	var content string
	switch {
	case m.showHelp:
		content = m.renderHelp()
	case m.showDetail:
		content = m.renderDetail()
	case m.applied != "":
		content = m.renderMatches()
	default:
		content = m.renderTree()
	}

	m.viewport.SetContent(content)
}

// =============================================================================
// Result Access
// =============================================================================

// Selected returns the node under the cursor when the program exited, so
// callers can print or act on it.
func (m ExplorerModel) Selected() *graph.Node {
	return m.currentNode()
}
