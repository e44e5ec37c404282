package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SearchBar is the filter input above the tree.
type SearchBar struct {
	input    textinput.Model
	isActive bool
	width    int
	applied  string
}

// NewSearchBar creates an empty filter bar.
func NewSearchBar() *SearchBar {
	ti := textinput.New()
	ti.Placeholder = "Filter"
	ti.CharLimit = 100
	ti.Width = 50

	return &SearchBar{
		input: ti,
	}
}

// SetActive focuses or blurs the input.
func (s *SearchBar) SetActive(active bool) {
	s.isActive = active
	if active {
		s.input.Focus()
	} else {
		s.input.Blur()
	}
}

// Active reports whether the bar has focus.
func (s *SearchBar) Active() bool {
	return s.isActive
}

// SetWidth sets the outer width.
func (s *SearchBar) SetWidth(width int) {
	s.width = width
	// borders (4), outer padding (2), icon (5), gap (1)
	s.input.Width = width - 12
}

// Value returns the text being typed.
func (s *SearchBar) Value() string {
	return s.input.Value()
}

// SetValue replaces the text.
func (s *SearchBar) SetValue(value string) {
	s.input.SetValue(value)
}

// Applied returns the text of the last applied filter.
func (s *SearchBar) Applied() string {
	return s.applied
}

// Apply records the current text as the applied filter and reports whether
// it changed.
func (s *SearchBar) Apply() (string, bool) {
	value := s.input.Value()
	if value == s.applied {
		return value, false
	}
	s.applied = value
	return value, true
}

// Update forwards key input to the text field.
func (s *SearchBar) Update(msg tea.Msg) (*SearchBar, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

// View renders the bar. While blurred with a filter applied, the filter is
// shown on the right so it stays visible when the input is edited away.
func (s *SearchBar) View() string {
	border, icon := ColorInactive, searchIconStyle.Render(" ⌕ ")
	if s.isActive {
		border, icon = ColorActive, searchIconActiveStyle.Render("⌕")
	}

	input, hint := s.input, ""
	if !s.isActive && s.applied != "" && s.applied != s.input.Value() {
		hint = DescriptionStyle.Render("filter: " + s.applied)
		input.Width = max(input.Width-lipgloss.Width(hint)-1, 1)
	}
	line := lipgloss.JoinHorizontal(lipgloss.Center, icon, " ", input.View())
	if hint != "" {
		line += " " + hint
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Width(s.width-4).
		Padding(0, 1)
	return ContentPaddingStyle.Render(box.Render(line))
}

// Reset clears the text and the applied filter.
func (s *SearchBar) Reset() {
	s.input.SetValue("")
	s.applied = ""
}
