package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/proxy"
	"github.com/bd-pipeline/bd-loader/pkg/tree"
)

// TreeView renders the visible rows and tracks the scroll window around the
// cursor.
type TreeView struct {
	ui     models.UISettings
	index  int
	offset int
	height int
	width  int
}

func NewTreeView(ui models.UISettings) *TreeView {
	return &TreeView{ui: ui, height: 10}
}

// SetSize sets the number of rows and the row width.
func (t *TreeView) SetSize(width, height int) {
	t.width = width
	if height < 1 {
		height = 1
	}
	t.height = height
}

// Index returns the row of the cursor.
func (t *TreeView) Index() int {
	return t.index
}

// Reset puts the cursor back on the first row.
func (t *TreeView) Reset() {
	t.index = 0
	t.offset = 0
}

// Sync moves the cursor onto cursor when it is visible and keeps it inside
// rows otherwise.
func (t *TreeView) Sync(rows []proxy.Row, cursor tree.Handle) {
	for i, r := range rows {
		if r.Handle == cursor {
			t.index = i
			t.scroll(len(rows))
			return
		}
	}
	t.clamp(len(rows))
}

// Move shifts the cursor by delta rows and returns the row it lands on.
func (t *TreeView) Move(rows []proxy.Row, delta int) (proxy.Row, bool) {
	if len(rows) == 0 {
		return proxy.Row{}, false
	}
	t.index += delta
	t.clamp(len(rows))
	return rows[t.index], true
}

// Current returns the row under the cursor.
func (t *TreeView) Current(rows []proxy.Row) (proxy.Row, bool) {
	if t.index < 0 || t.index >= len(rows) {
		return proxy.Row{}, false
	}
	return rows[t.index], true
}

func (t *TreeView) clamp(n int) {
	if t.index >= n {
		t.index = n - 1
	}
	if t.index < 0 {
		t.index = 0
	}
	t.scroll(n)
}

func (t *TreeView) scroll(n int) {
	if t.index < t.offset {
		t.offset = t.index
	}
	if t.index >= t.offset+t.height {
		t.offset = t.index - t.height + 1
	}
	if last := n - t.height; t.offset > last {
		t.offset = last
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

// Window returns the bounds of the rows on screen.
func (t *TreeView) Window(n int) (int, int) {
	start := t.offset
	if start > n {
		start = n
	}
	end := start + t.height
	if end > n {
		end = n
	}
	return start, end
}

// Glyph returns the decoration of n: the type icon of known asset types, a
// folder that opens when expanded for other branches and the asset icon for
// leaves.
func (t *TreeView) Glyph(n *tree.Node) string {
	if n.IsLeaf() {
		return t.ui.AssetIcon
	}
	if glyph, ok := t.ui.TypeIcons[n.Label]; ok && n.Entity == tree.AssetType {
		return glyph
	}
	if n.State == tree.Expanded {
		return t.ui.FolderOpen
	}
	return t.ui.FolderIcon
}

// RenderRow renders one row without cursor highlighting.
func (t *TreeView) RenderRow(r proxy.Row) string {
	n := r.Node
	glyph := t.Glyph(n)
	if n.IsLeaf() && n.IconState == tree.IconLoaded {
		glyph = swatch(n.Icon, glyph)
	}

	label := n.Label
	if n.Loading == tree.InProgress {
		label += " …"
	}
	return strings.Repeat("  ", r.Depth) + glyph + " " + label
}

// View renders the rows of the window. marked reports the multi-selection.
func (t *TreeView) View(rows []proxy.Row, marked func(tree.Handle) bool) string {
	start, end := t.Window(len(rows))
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		r := rows[i]
		line := t.RenderRow(r)
		if t.width > 2 {
			line = truncate.StringWithTail(line, uint(t.width-2), "…")
		}

		var style lipgloss.Style
		switch {
		case i == t.index:
			style = SelectedStyle
		case marked(r.Handle):
			style = MarkedStyle
		case r.Node.IsLeaf():
			style = NormalStyle
		default:
			style = TypeRowStyle
		}

		cursor := "  "
		if i == t.index {
			cursor = "▌ "
		}
		lines = append(lines, cursor+style.Render(line))
	}
	return strings.Join(lines, "\n")
}
