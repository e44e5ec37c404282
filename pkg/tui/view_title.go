package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// ViewTitle is the banner on top of the overlay views.
type ViewTitle struct {
	text     string
	subtitle string
}

// NewViewTitle creates a title.
func NewViewTitle(text string) *ViewTitle {
	return &ViewTitle{text: text}
}

// SetSubtitle sets the dim text rendered after the title.
func (v *ViewTitle) SetSubtitle(subtitle string) {
	v.subtitle = subtitle
}

func (v *ViewTitle) View() string {
	if v.text == "" {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorWhite)).
		Background(lipgloss.Color("0")).
		Bold(true).
		Padding(0, 1)

	title := titleStyle.Render("\n" + v.text + "\n")
	if v.subtitle == "" {
		return title
	}
	sub := DescriptionStyle.Render("\n\n" + v.subtitle)
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", sub)
}

// ViewWithAlignment renders the title left aligned in width.
func (v *ViewTitle) ViewWithAlignment(width int) string {
	if v.text == "" {
		return ""
	}
	return lipgloss.NewStyle().
		Width(width).
		PaddingLeft(2).
		PaddingRight(2).
		Render(v.View())
}

// ViewTitleHeight is the number of lines a title takes.
func ViewTitleHeight() int {
	return 3
}
