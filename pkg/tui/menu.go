package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// actionDoneMsg reports a finished menu action.
type actionDoneMsg struct {
	label string
	err   error
}

// MenuModel is the context menu of the selected assets.
type MenuModel struct {
	actions []models.MenuAction
	index   int
	active  bool
	title   *ViewTitle
}

func NewMenu() *MenuModel {
	return &MenuModel{title: NewViewTitle("Actions")}
}

// Open shows actions for count selected assets.
func (m *MenuModel) Open(actions []models.MenuAction, count int) {
	m.actions = actions
	m.index = 0
	m.active = len(actions) > 0
	m.title.SetSubtitle(fmt.Sprintf("%d asset%s selected", count, pluralize(count)))
}

func (m *MenuModel) Active() bool {
	return m.active
}

func (m *MenuModel) Close() {
	m.active = false
}

// Update moves through the actions. Enter runs the highlighted one in a
// command and closes the menu.
func (m *MenuModel) Update(msg tea.KeyMsg) tea.Cmd {
	if !m.active {
		return nil
	}
	switch msg.String() {
	case "up", "k":
		if m.index > 0 {
			m.index--
		}
	case "down", "j":
		if m.index < len(m.actions)-1 {
			m.index++
		}
	case "esc", "q", "m":
		m.Close()
	case "enter":
		action := m.actions[m.index]
		m.Close()
		return runAction(action)
	}
	return nil
}

func runAction(action models.MenuAction) tea.Cmd {
	return func() tea.Msg {
		var err error
		if action.Run != nil {
			err = action.Run()
		}
		return actionDoneMsg{label: action.Label, err: err}
	}
}

func (m *MenuModel) View() string {
	if !m.active {
		return ""
	}
	lines := make([]string, 0, len(m.actions))
	for i, action := range m.actions {
		if i == m.index {
			lines = append(lines, SelectedStyle.Render("▌ "+action.Label))
			continue
		}
		lines = append(lines, NormalStyle.Render("  "+action.Label))
	}
	body := ActiveBorderStyle.
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, m.title.View(), "", body)
}
