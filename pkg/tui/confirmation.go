package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Prompt is a yes/no question put to the user.
type Prompt struct {
	Title    string
	Question string
	// Notes are listed under the question as bullets.
	Notes []string
	Yes   string
	No    string
	// Boxed draws a bordered dialog instead of a single line.
	Boxed bool
}

// ConfirmationModel holds at most one open prompt and runs the command bound
// to the answer.
type ConfirmationModel struct {
	prompt Prompt
	open   bool
	onYes  func() tea.Cmd
	onNo   func() tea.Cmd

	yesKey key.Binding
	noKey  key.Binding
}

func NewConfirmation() *ConfirmationModel {
	return &ConfirmationModel{
		yesKey: key.NewBinding(key.WithKeys("y", "Y", "enter")),
		noKey:  key.NewBinding(key.WithKeys("n", "N", "esc")),
	}
}

// Ask opens p. Either callback may be nil.
func (m *ConfirmationModel) Ask(p Prompt, onYes, onNo func() tea.Cmd) {
	if p.Yes == "" {
		p.Yes = "Yes"
	}
	if p.No == "" {
		p.No = "No"
	}
	m.prompt = p
	m.onYes = onYes
	m.onNo = onNo
	m.open = true
}

func (m *ConfirmationModel) Active() bool {
	return m.open
}

// Update answers the prompt. Every other key is swallowed while it is open.
func (m *ConfirmationModel) Update(msg tea.KeyMsg) tea.Cmd {
	if !m.open {
		return nil
	}

	var answer func() tea.Cmd
	switch {
	case key.Matches(msg, m.yesKey):
		answer = m.onYes
	case key.Matches(msg, m.noKey):
		answer = m.onNo
	default:
		return nil
	}

	m.open = false
	m.onYes, m.onNo = nil, nil
	if answer == nil {
		return nil
	}
	return answer()
}

// View renders the prompt centred in width, or nothing when closed.
func (m *ConfirmationModel) View(width int) string {
	if !m.open {
		return ""
	}
	if m.prompt.Boxed {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, m.box(width))
	}

	line := ConfirmWarningStyle.Render(m.prompt.Question) + " " + m.options()
	if width > 0 && lipgloss.Width(line) < width {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, line)
	}
	return line
}

func (m *ConfirmationModel) box(width int) string {
	boxWidth := 60
	if width > 0 && width-2 < boxWidth {
		boxWidth = max(width-2, 20)
	}
	inner := lipgloss.NewStyle().Width(boxWidth - 4).Align(lipgloss.Center)

	var lines []string
	if m.prompt.Title != "" {
		lines = append(lines, inner.Render(ConfirmWarningStyle.Render(m.prompt.Title)), "")
	}
	if m.prompt.Question != "" {
		lines = append(lines, inner.Render(m.prompt.Question))
	}
	if len(m.prompt.Notes) > 0 {
		lines = append(lines, "")
		for _, n := range m.prompt.Notes {
			lines = append(lines, NormalStyle.Render("  • "+n))
		}
	}
	lines = append(lines, "", inner.Render(m.options()))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorActive)).
		Padding(0, 1).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))
}

func (m *ConfirmationModel) options() string {
	return DescriptionStyle.Render("[y] " + m.prompt.Yes + "  [n] " + m.prompt.No)
}
