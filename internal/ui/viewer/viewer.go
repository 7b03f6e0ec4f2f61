// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package viewer is an interactive terminal pager for one diff.
//
// Every op is shown as one row with its original and modified line numbers,
// so the rows are exactly the ops of the diff. Hunks can be stepped through
// with n and p.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/linediff/internal/diff"
	"github.com/jeranaias/linediff/internal/util"
)

// =============================================================================
// PALETTE
// =============================================================================

var (
	purple    = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	cyan      = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	emerald   = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	rose      = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	overlay   = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}
	textMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

	titleStyle  = lipgloss.NewStyle().Foreground(purple).Bold(true)
	pathStyle   = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(textMuted)
	sepStyle    = lipgloss.NewStyle().Foreground(overlay)
	insertStyle = lipgloss.NewStyle().Foreground(emerald)
	deleteStyle = lipgloss.NewStyle().Foreground(rose)
	hunkStyle   = lipgloss.NewStyle().Foreground(cyan).Bold(true)
)

// gutterWidth is two four-digit line numbers and their separators.
const gutterWidth = 10

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model of the viewer.
type Model struct {
	diff     *diff.Diff
	hunks    []diff.Hunk
	keys     KeyMap
	viewport viewport.Model

	width    int
	height   int
	ready    bool
	hunk     int // index into hunks, -1 before the first jump
	showHelp bool
}

// New creates a viewer for d. It renders nothing until it knows the window
// size.
func New(d *diff.Diff) *Model {
	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()

	return &Model{
		diff:     d,
		hunks:    d.Hunks(),
		keys:     DefaultKeyMap(),
		viewport: vp,
		hunk:     -1,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// SetSize lays the viewer out for a width x height window.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true
	m.layout()
	m.viewport.SetContent(m.renderOps())
}

// layout gives the viewport whatever the header and footer leave.
func (m *Model) layout() {
	m.viewport.Width = m.width
	m.viewport.Height = max(1, m.height-lipgloss.Height(m.header())-lipgloss.Height(m.footer()))
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	case key.Matches(msg, m.keys.NextHunk):
		m.jump(m.hunk + 1)
	case key.Matches(msg, m.keys.PrevHunk):
		m.jump(m.hunk - 1)
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
	}
	return m, nil
}

// jump scrolls hunk i to the top of the view. Out of range indexes are
// ignored.
func (m *Model) jump(i int) {
	if i < 0 || i >= len(m.hunks) {
		return
	}
	m.hunk = i
	m.viewport.SetYOffset(m.hunks[i].Start)
}

// CurrentHunk returns the index of the hunk last jumped to, or -1.
func (m *Model) CurrentHunk() int {
	return m.hunk
}

// YOffset returns the first op row in view.
func (m *Model) YOffset() int {
	return m.viewport.YOffset
}

// =============================================================================
// RENDERING
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return m.header() + "\n" + m.viewport.View() + "\n" + m.footer()
}

func (m *Model) header() string {
	path := m.diff.FilePath
	if path == "" {
		path = "(input)"
	}
	title := titleStyle.Render("linediff") + " " + pathStyle.Render(path) + " " +
		mutedStyle.Render(m.diff.Summary())
	return title + "\n" + sepStyle.Render(strings.Repeat("─", max(1, m.width)))
}

func (m *Model) footer() string {
	var pos string
	switch {
	case len(m.hunks) == 0:
		pos = "no changes"
	case m.hunk < 0:
		pos = fmt.Sprintf("%d hunks", len(m.hunks))
	default:
		pos = fmt.Sprintf("hunk %d/%d", m.hunk+1, len(m.hunks))
	}
	status := mutedStyle.Render(fmt.Sprintf("%s  %3.0f%%", pos, m.viewport.ScrollPercent()*100))

	bindings := m.keys.ShortHelp()
	if m.showHelp {
		bindings = m.keys.FullHelp()
	}
	help := mutedStyle.Width(max(1, m.width)).Render(helpLine(bindings, " · "))
	return status + "\n" + help
}

// renderOps renders one row per op. Rows that open a hunk get a marker in
// the gutter.
func (m *Model) renderOps() string {
	if len(m.diff.Ops) == 0 {
		return mutedStyle.Render("(both inputs are empty)")
	}

	starts := make(map[int]bool, len(m.hunks))
	for _, h := range m.hunks {
		starts[h.Start] = true
	}

	textWidth := max(1, m.width-gutterWidth-2)
	rows := make([]string, 0, len(m.diff.Ops))
	oldLine, newLine := 1, 1

	for i, op := range m.diff.Ops {
		var oldNum, newNum string
		style := mutedStyle
		switch op.Kind {
		case diff.OpEqual:
			oldNum, newNum = fmt.Sprint(oldLine), fmt.Sprint(newLine)
			oldLine++
			newLine++
		case diff.OpDelete:
			oldNum = fmt.Sprint(oldLine)
			oldLine++
			style = deleteStyle
		case diff.OpInsert:
			newNum = fmt.Sprint(newLine)
			newLine++
			style = insertStyle
		}

		marker := " "
		if starts[i] {
			marker = hunkStyle.Render("▸")
		}
		gutter := mutedStyle.Render(fmt.Sprintf("%4s %4s", oldNum, newNum))
		text := util.TruncateWidth(op.Kind.Prefix()+expandTabs(op.Line), textWidth, "…")
		rows = append(rows, gutter+marker+" "+style.Render(text))
	}
	return strings.Join(rows, "\n")
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

// =============================================================================
// PROGRAM
// =============================================================================

// Run shows d full screen until the user quits or ctx ends.
func Run(ctx context.Context, d *diff.Diff, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(New(d),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}
