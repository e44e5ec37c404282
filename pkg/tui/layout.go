package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// SharedLayout holds the pane geometry derived from the window size.
type SharedLayout struct {
	Width       int
	Height      int
	ShowDetails bool

	contentHeight int
	treeWidth     int
	detailsWidth  int
}

// NewSharedLayout creates a layout for the given window size.
func NewSharedLayout(width, height int, showDetails bool) *SharedLayout {
	sl := &SharedLayout{
		Width:       width,
		Height:      height,
		ShowDetails: showDetails,
	}
	sl.recalculateDimensions()
	return sl
}

// SetSize updates the window size.
func (sl *SharedLayout) SetSize(width, height int) {
	sl.Width = width
	sl.Height = height
	sl.recalculateDimensions()
}

// SetShowDetails shows or hides the details pane.
func (sl *SharedLayout) SetShowDetails(show bool) {
	sl.ShowDetails = show
	sl.recalculateDimensions()
}

func (sl *SharedLayout) recalculateDimensions() {
	// header (5), filter bar (3), help pane (4), status line (1)
	sl.contentHeight = sl.Height - 13
	if sl.contentHeight < 6 {
		sl.contentHeight = 6
	}

	available := sl.Width - 4 // outer padding and gap
	if !sl.ShowDetails {
		sl.treeWidth = available
		sl.detailsWidth = 0
		return
	}
	sl.detailsWidth = available * 2 / 5
	sl.treeWidth = available - sl.detailsWidth
}

// GetContentHeight returns the outer height of the panes.
func (sl *SharedLayout) GetContentHeight() int {
	return sl.contentHeight
}

// GetTreeWidth returns the outer width of the tree pane.
func (sl *SharedLayout) GetTreeWidth() int {
	return sl.treeWidth
}

// GetDetailsWidth returns the outer width of the details pane, zero when
// hidden.
func (sl *SharedLayout) GetDetailsWidth() int {
	return sl.detailsWidth
}

// PaneBodyHeight is the number of content lines inside a bordered pane with
// a heading.
func (sl *SharedLayout) PaneBodyHeight() int {
	h := sl.contentHeight - 4 // borders, heading, blank line
	if h < 1 {
		h = 1
	}
	return h
}

// RenderHeader renders a heading followed by a run of colons up to
// availableWidth, with an optional badge at the end.
func (sl *SharedLayout) RenderHeader(heading string, active bool, badge string, availableWidth int) string {
	badgeWidth := 0
	if badge != "" {
		badgeWidth = lipgloss.Width(badge) + 1
	}
	colonSpace := availableWidth - lipgloss.Width(heading) - badgeWidth - 1
	if colonSpace < 3 {
		colonSpace = 3
	}

	var result strings.Builder
	result.WriteString(GetActiveHeaderStyle(active).Render(heading))
	result.WriteString(" ")
	result.WriteString(GetActiveColonStyle(active).Render(strings.Repeat(":", colonSpace)))
	if badge != "" {
		result.WriteString(" ")
		result.WriteString(badge)
	}
	return result.String()
}

// RenderPane draws body inside a rounded border with a colon heading.
func (sl *SharedLayout) RenderPane(heading, badge, body string, width int, active bool) string {
	inner := width - 4 // borders and padding
	if inner < 1 {
		inner = 1
	}
	header := sl.RenderHeader(heading, active, badge, inner)

	content := lipgloss.NewStyle().
		Width(inner).
		Height(sl.contentHeight - 2).
		MaxHeight(sl.contentHeight - 2).
		Render(header + "\n\n" + body)

	return paneBorderStyle(active).
		Padding(0, 1).
		Render(content)
}

// RenderHelpPane renders rows of key bindings in a bordered pane.
func (sl *SharedLayout) RenderHelpPane(helpRows [][]key.Binding) string {
	helpBorderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorInactive)).
		Width(sl.Width-4).
		Padding(0, 1)

	helpContent := formatHelpTextRows(helpRows, sl.Width-8)
	return ContentPaddingStyle.Render(helpBorderStyle.Render(helpContent))
}

func formatHelpTextRows(rows [][]key.Binding, width int) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		items := make([]string, 0, len(row))
		for _, b := range row {
			if !b.Enabled() {
				continue
			}
			h := b.Help()
			items = append(items, h.Key+" "+h.Desc)
		}
		line := strings.Join(items, " • ")
		if width > 0 {
			line = truncate.StringWithTail(line, uint(width), "…")
		}
		lines = append(lines, DescriptionStyle.Render(line))
	}
	return strings.Join(lines, "\n")
}
