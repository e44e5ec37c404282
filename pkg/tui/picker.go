package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// ProjectLister lists the projects the user can switch to.
type ProjectLister interface {
	GetProjects(ctx context.Context, excludedTitles []string) ([]*models.Project, error)
}

type projectItem struct {
	project *models.Project
}

func (i projectItem) Title() string       { return i.project.Title }
func (i projectItem) Description() string { return fmt.Sprintf("id %d", i.project.ID) }
func (i projectItem) FilterValue() string { return i.project.Title }

// projectsMsg delivers the result of loadProjects.
type projectsMsg struct {
	projects []*models.Project
	err      error
}

// switchProjectMsg asks the app to switch to project.
type switchProjectMsg struct {
	project *models.Project
}

func loadProjects(ctx context.Context, lister ProjectLister, excluded []string) tea.Cmd {
	return func() tea.Msg {
		projects, err := lister.GetProjects(ctx, excluded)
		return projectsMsg{projects: projects, err: err}
	}
}

// ProjectPicker is the project list overlay.
type ProjectPicker struct {
	list   list.Model
	title  *ViewTitle
	active bool
	width  int
}

func NewProjectPicker() *ProjectPicker {
	l := list.New(nil, list.NewDefaultDelegate(), 40, 10)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	l.SetStatusBarItemName("project", "projects")
	return &ProjectPicker{
		list:  l,
		title: NewViewTitle("Projects"),
	}
}

// Open shows projects with current preselected.
func (p *ProjectPicker) Open(projects []*models.Project, current *models.Project) tea.Cmd {
	items := make([]list.Item, 0, len(projects))
	selected := 0
	for i, project := range projects {
		items = append(items, projectItem{project: project})
		if current != nil && project.ID == current.ID {
			selected = i
		}
	}
	cmd := p.list.SetItems(items)
	p.list.ResetFilter()
	p.list.Select(selected)
	p.title.SetSubtitle(fmt.Sprintf("%d project%s", len(projects), pluralize(len(projects))))
	p.active = true
	return cmd
}

func (p *ProjectPicker) Active() bool {
	return p.active
}

func (p *ProjectPicker) Close() {
	p.active = false
}

func (p *ProjectPicker) SetSize(width, height int) {
	p.width = width
	p.list.SetSize(width-4, height-ViewTitleHeight()-2)
}

// Update handles keys while open. Enter on a project emits a
// switchProjectMsg, esc closes unless a filter is being typed.
func (p *ProjectPicker) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok && p.list.FilterState() != list.Filtering {
		switch key.String() {
		case "esc", "q":
			if p.list.FilterState() == list.FilterApplied {
				break
			}
			p.Close()
			return nil
		case "enter":
			item, ok := p.list.SelectedItem().(projectItem)
			if !ok {
				return nil
			}
			p.Close()
			return func() tea.Msg { return switchProjectMsg{project: item.project} }
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return cmd
}

func (p *ProjectPicker) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		p.title.ViewWithAlignment(p.width),
		"",
		ContentPaddingStyle.Render(p.list.View()),
	)
}

func pluralize(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
