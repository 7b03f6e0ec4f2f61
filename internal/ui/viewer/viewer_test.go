// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package viewer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/linediff/internal/diff"
)

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// twoHunkDiff changes line 2 and line 40 of a 50 line file.
func twoHunkDiff(t *testing.T) *diff.Diff {
	t.Helper()
	var a, b strings.Builder
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&a, "line %d\n", i)
		switch i {
		case 2:
			b.WriteString("changed 2\n")
		case 40:
			b.WriteString("changed 40\n")
		default:
			fmt.Fprintf(&b, "line %d\n", i)
		}
	}
	d, err := diff.Compare(context.Background(), "file.txt", a.String(), b.String())
	require.NoError(t, err)
	require.Len(t, d.Hunks(), 2)
	return d
}

func TestView_NotReadyUntilSized(t *testing.T) {
	m := New(twoHunkDiff(t))
	assert.Equal(t, "Loading...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	view := m.View()
	assert.Contains(t, view, "file.txt")
	assert.Contains(t, view, "Modified +2 -2")
	assert.Contains(t, view, "2 hunks")
}

func TestView_RowsShowLineNumbersAndPrefixes(t *testing.T) {
	d, err := diff.Compare(context.Background(), "f", "a\nb\n", "a\nc\n")
	require.NoError(t, err)

	m := New(d)
	m.SetSize(80, 20)
	rows := strings.Split(m.renderOps(), "\n")

	require.Len(t, rows, 3)
	assert.Contains(t, rows[0], "   1    1")
	assert.Contains(t, rows[0], " a")
	assert.Contains(t, rows[1], "   2     ")
	assert.Contains(t, rows[1], "-b")
	assert.Contains(t, rows[2], "        2")
	assert.Contains(t, rows[2], "+c")
}

func TestView_TruncatesLongLines(t *testing.T) {
	long := strings.Repeat("x", 200)
	d, err := diff.Compare(context.Background(), "f", "", long+"\n")
	require.NoError(t, err)

	m := New(d)
	m.SetSize(40, 10)
	assert.Contains(t, m.renderOps(), "…")
	assert.NotContains(t, m.renderOps(), long)
}

func TestView_Empty(t *testing.T) {
	d, err := diff.Compare(context.Background(), "", "", "")
	require.NoError(t, err)

	m := New(d)
	m.SetSize(80, 10)
	assert.Contains(t, m.View(), "both inputs are empty")
	assert.Contains(t, m.View(), "no changes")
}

func TestUpdate_HunkNavigation(t *testing.T) {
	m := New(twoHunkDiff(t))
	m.SetSize(80, 12)
	hunks := m.diff.Hunks()

	assert.Equal(t, -1, m.CurrentHunk())

	m.Update(runeKey("n"))
	assert.Equal(t, 0, m.CurrentHunk())
	assert.Equal(t, hunks[0].Start, m.YOffset())

	m.Update(runeKey("n"))
	assert.Equal(t, 1, m.CurrentHunk())
	assert.Equal(t, hunks[1].Start, m.YOffset())
	assert.Contains(t, m.View(), "hunk 2/2")

	// Past the last hunk nothing moves.
	m.Update(runeKey("n"))
	assert.Equal(t, 1, m.CurrentHunk())

	m.Update(runeKey("p"))
	assert.Equal(t, 0, m.CurrentHunk())
	m.Update(runeKey("p"))
	assert.Equal(t, 0, m.CurrentHunk())
}

func TestUpdate_Scrolling(t *testing.T) {
	m := New(twoHunkDiff(t))
	m.SetSize(80, 12)

	m.Update(runeKey("j"))
	m.Update(runeKey("j"))
	assert.Equal(t, 2, m.YOffset())

	m.Update(runeKey("k"))
	assert.Equal(t, 1, m.YOffset())

	m.Update(runeKey("G"))
	assert.True(t, m.viewport.AtBottom())

	m.Update(runeKey("g"))
	assert.Equal(t, 0, m.YOffset())
}

func TestUpdate_HelpToggleResizesViewport(t *testing.T) {
	m := New(twoHunkDiff(t))
	m.SetSize(30, 20)
	before := m.viewport.Height

	m.Update(runeKey("?"))
	assert.True(t, m.showHelp)
	assert.Less(t, m.viewport.Height, before)
	assert.Contains(t, m.View(), "PgDn/C-d")

	m.Update(runeKey("?"))
	assert.Equal(t, before, m.viewport.Height)
}

func TestUpdate_Quit(t *testing.T) {
	for _, msg := range []tea.KeyMsg{runeKey("q"), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		m := New(twoHunkDiff(t))
		_, cmd := m.Update(msg)
		require.NotNil(t, cmd, msg.String())
		assert.Equal(t, tea.Quit(), cmd(), msg.String())
	}
}

func TestKeyMap_HelpLine(t *testing.T) {
	line := helpLine(DefaultKeyMap().ShortHelp(), " · ")
	assert.Equal(t, "n next hunk · p previous hunk · ? toggle help · q/Esc quit", line)
}
