// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Header Rendering
// =============================================================================

func (m ExplorerModel) renderHeader() string {
	root := m.graph.Root()
	if root == nil {
		return titleStyle.Render("No graph to explore")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Dependency Explorer"))
	b.WriteString("  ")
	b.WriteString(symbolStyle.Render(root.Symbol))

	orientation := "callees"
	if m.showParents {
		orientation = "callers"
	}
	b.WriteString(statsStyle.Render(fmt.Sprintf("  %s · %d nodes · %d edges",
		orientation, m.graph.Len(), m.graph.EdgeCount())))

	return b.String()
}

// renderFilterBar shows the filter input while typing, the active filter
// with its match count once applied, and nothing otherwise.
func (m ExplorerModel) renderFilterBar() string {
	if m.filtering {
		return m.filter.View()
	}
	if m.applied != "" {
		return statsStyle.Render(fmt.Sprintf("filter %q · %d matches · esc clears",
			m.applied, len(m.matches)))
	}
	return ""
}

// =============================================================================
// Footer Rendering
// =============================================================================

func (m ExplorerModel) renderFooter() string {
	var keys []string

	switch {
	case m.filtering:
		keys = []string{"[Enter] Apply", "[Esc] Cancel"}
	case m.showHelp:
		keys = []string{"[Q/?/Esc] Close help"}
	case m.showDetail:
		keys = []string{"[Q/D/Esc] Close detail"}
	case m.applied != "":
		keys = []string{
			"[J/K] Move", "[Enter] Detail", "[Esc] Clear filter", "[?] Help", "[Q] Quit",
		}
	default:
		keys = []string{
			"[J/K] Move", "[Enter] Expand", "[P] Callers/callees",
			"[D] Detail", "[/] Filter", "[?] Help", "[Q] Quit",
		}
	}

	return footerStyle.Render(strings.Join(keys, "  "))
}

// =============================================================================
// Tree Rendering
// =============================================================================

func (m ExplorerModel) renderTree() string {
	if len(m.rows) == 0 {
		return "Empty graph"
	}

	var b strings.Builder
	for i, row := range m.rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderRow(row, i == m.cursor))
	}
	return b.String()
}

func (m ExplorerModel) renderRow(row treeRow, selected bool) string {
	node := m.graph.Get(row.id)
	if node == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("  ", row.depth))
	b.WriteString(m.rowMarker(row))
	b.WriteString(" ")
	b.WriteString(node.Symbol)

	if row.kids > 0 && !row.expanded && !row.cycle {
		b.WriteString(countStyle.Render(fmt.Sprintf(" (+%d)", row.kids)))
	}
	if node.IsImplementation {
		b.WriteString(" " + implBadge.Render("impl"))
	}
	if m.config.ShowFiles {
		b.WriteString(fileStyle.Render(fmt.Sprintf("  %s:%d", node.File, node.DisplayLine())))
	}

	line := b.String()
	if selected {
		return cursorStyle.Render(line)
	}
	return line
}

func (m ExplorerModel) rowMarker(row treeRow) string {
	switch {
	case row.cycle:
		return cycleStyle.Render("↺")
	case !row.expandable():
		return leafStyle.Render("·")
	case row.expanded:
		return "▾"
	default:
		return "▸"
	}
}

// =============================================================================
// Match List Rendering
// =============================================================================

func (m ExplorerModel) renderMatches() string {
	if len(m.matches) == 0 {
		return fmt.Sprintf("No symbols match %q", m.applied)
	}

	var b strings.Builder
	for i, id := range m.matches {
		node := m.graph.Get(id)
		if node == nil {
			continue
		}
		if i > 0 {
			b.WriteString("\n")
		}
		line := fmt.Sprintf("%s%s", node.Symbol,
			fileStyle.Render(fmt.Sprintf("  %s:%d", node.FullPath, node.DisplayLine())))
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
	}
	return b.String()
}

// =============================================================================
// Detail Rendering
// =============================================================================

func (m ExplorerModel) renderDetail() string {
	node := m.currentNode()
	if node == nil {
		return "No node selected"
	}

	var b strings.Builder
	b.WriteString(symbolStyle.Render(node.Symbol))
	if node.IsRoot {
		b.WriteString(" " + implBadge.Render("root"))
	}
	if node.IsImplementation {
		b.WriteString(" " + implBadge.Render("impl"))
		if node.Implements != "" {
			b.WriteString(statsStyle.Render("  implements " + string(node.Implements)))
		}
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s:%d:%d\n", node.FullPath, node.DisplayLine(), node.DisplayColumn()))
	b.WriteString(statsStyle.Render(fmt.Sprintf("%d callers · %d callees\n",
		len(node.Parents), len(node.Children))))

	if node.SourceText != "" {
		b.WriteString("\n")
		b.WriteString(sourceStyle.Render(node.SourceText))
		b.WriteString("\n")
	}
	if node.DocComment != "" {
		b.WriteString("\n")
		b.WriteString(docStyle.Render(node.DocComment))
		b.WriteString("\n")
	}

	if len(node.VariablesUsed) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("References"))
		b.WriteString("\n")
		limit := m.config.MaxDetailRefs
		if limit <= 0 {
			limit = len(node.VariablesUsed)
		}
		for i, ref := range node.VariablesUsed {
			if i >= limit {
				b.WriteString(statsStyle.Render(
					fmt.Sprintf("  … %d more\n", len(node.VariablesUsed)-limit)))
				break
			}
			marker := " "
			if ref.IsCall {
				marker = "()"
			}
			resolved := ""
			if ref.Definition == nil {
				resolved = statsStyle.Render("  unresolved")
			}
			b.WriteString(fmt.Sprintf("  %s%s  line %d%s\n", ref.Name, marker, ref.Line+1, resolved))
		}
	}

	return b.String()
}

// =============================================================================
// Help Rendering
// =============================================================================

func (m ExplorerModel) renderHelp() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")

	helpItems := []struct {
		key  string
		desc string
	}{
		{"↑/↓ or J/K", "Move the cursor"},
		{"Enter/Space/L", "Expand or collapse the current node"},
		{"H", "Collapse the current node"},
		{"P", "Toggle callers/callees orientation"},
		{"D", "Show node detail"},
		{"/", "Filter symbols by name"},
		{"Esc", "Clear the active filter"},
		{"", ""},
		{"Ctrl+D/U", "Page down/up"},
		{"G / Shift+G", "Go to top/bottom"},
		{"?", "Toggle this help"},
		{"Q", "Quit"},
	}

	for _, item := range helpItems {
		if item.key == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			helpKeyStyle.Render(fmt.Sprintf("%-15s", item.key)),
			helpDescStyle.Render(item.desc),
		))
	}

	b.WriteString("\n")
	b.WriteString(helpDescStyle.Render("Press ? or Q to close help"))

	return b.String()
}

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	symbolStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	cursorStyle = lipgloss.NewStyle().
			Reverse(true)

	cycleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	leafStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	implBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Background(lipgloss.Color("22")).
			Padding(0, 1)

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	docStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))
)
