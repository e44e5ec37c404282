package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const logo = `▗▖ ▗▄▄  ▗▖   ▄▄  ▗▖ ▗▄▄
▐▙▖▐ ▐  ▐▌  ▐ ▐ ▐▌▌▐ ▐
▐▄▘▐▄▘  ▐▙▖ ▝▄▘ ▐▀▌▐▄▘`

// renderHeader renders the project title on the left and the logo on the
// right, the title aligned with the last logo line.
func renderHeader(width int, title, version string) string {
	logoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorLogo)).
		Bold(true)
	titleStyle := logoStyle
	versionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorDim))

	headerPadding := lipgloss.NewStyle().
		PaddingLeft(1).
		PaddingRight(1).
		Width(width)

	logoBlock := logoStyle.Render(logo)
	if version != "" {
		logoBlock = lipgloss.JoinVertical(lipgloss.Right, logoBlock, versionStyle.Render(version))
	}

	contentWidth := width - 2
	if title == "" {
		return headerPadding.Render(lipgloss.NewStyle().
			Width(contentWidth).
			Align(lipgloss.Right).
			Render(logoBlock))
	}

	lines := strings.Count(logoBlock, "\n")
	titleBlock := titleStyle.Render(strings.Repeat("\n", lines) + title)
	gap := contentWidth - lipgloss.Width(titleBlock) - lipgloss.Width(logoBlock)
	if gap < 1 {
		gap = 1
	}
	return headerPadding.Render(lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleBlock,
		strings.Repeat(" ", gap),
		logoBlock,
	))
}
