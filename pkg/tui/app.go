// Package tui is the terminal presentation of the asset browser.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/browser"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/mainloop"
	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/proxy"
	"github.com/bd-pipeline/bd-loader/pkg/tree"
)

// statusTimeout is how long a StatusMsg stays in the status bar.
const statusTimeout = 4 * time.Second

// StatusMsg is shown in the status bar until it times out.
type StatusMsg string

// PersistentStatusMsg is shown until the next status.
type PersistentStatusMsg string

type clearStatusMsg struct {
	seq int
}

type reloadMsg struct{}

// Options configures the app.
type Options struct {
	Settings *models.Settings
	// Projects enables the project picker.
	Projects ProjectLister
	Version  string
}

// App is the browser window: a filter bar, the asset tree, the details
// panel and the project and action overlays.
type App struct {
	ctx      context.Context
	loop     *mainloop.Loop
	browser  *browser.Browser
	projects ProjectLister
	settings *models.Settings
	version  string

	keys    keyMap
	layout  *SharedLayout
	search  *SearchBar
	tree    *TreeView
	details *DetailsView
	picker  *ProjectPicker
	menu    *MenuModel
	confirm *ConfirmationModel
	spinner spinner.Model

	width     int
	height    int
	statusMsg string
	statusSeq int

	log *zap.Logger
}

// NewApp creates the app. Callbacks posted to loop run inside Update.
func NewApp(ctx context.Context, loop *mainloop.Loop, b *browser.Browser, opts Options) *App {
	settings := opts.Settings
	if settings == nil {
		settings = models.DefaultSettings()
	}
	return &App{
		ctx:      ctx,
		loop:     loop,
		browser:  b,
		projects: opts.Projects,
		settings: settings,
		version:  opts.Version,
		keys:     defaultKeyMap(),
		layout:   NewSharedLayout(80, 24, settings.UI.ShowDetails),
		search:   NewSearchBar(),
		tree:     NewTreeView(settings.UI),
		details:  NewDetailsView(),
		picker:   NewProjectPicker(),
		menu:     NewMenu(),
		confirm:  NewConfirmation(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(SpinnerStyle)),
		log:      logging.Named("tui"),
	}
}

// Run starts the program on the terminal and blocks until it exits.
func Run(ctx context.Context, app *App) error {
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		waitLoop(a.ctx, a.loop),
		a.spinner.Tick,
		func() tea.Msg { return reloadMsg{} },
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(tick)
		return a, cmd
	}
	cmd := a.update(msg)
	a.sync()
	return a, cmd
}

func (a *App) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return nil

	case loopMsg:
		return runLoop(a.ctx, a.loop, msg)

	case reloadMsg:
		a.browser.Reload()
		a.tree.Reset()
		return nil

	case StatusMsg:
		a.statusMsg = string(msg)
		a.statusSeq++
		seq := a.statusSeq
		return tea.Tick(statusTimeout, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })

	case PersistentStatusMsg:
		a.statusMsg = string(msg)
		a.statusSeq++
		return nil

	case clearStatusMsg:
		if msg.seq == a.statusSeq {
			a.statusMsg = ""
		}
		return nil

	case projectsMsg:
		if msg.err != nil {
			a.log.Error("unable to list projects", zap.Error(msg.err))
			return status("Unable to list projects")
		}
		return a.picker.Open(msg.projects, a.browser.Project())

	case switchProjectMsg:
		return a.confirmSwitch(msg.project)

	case actionDoneMsg:
		if msg.err != nil {
			a.log.Error("menu action failed", zap.String("action", msg.label), zap.Error(msg.err))
			return status(fmt.Sprintf("%s failed", msg.label))
		}
		return status(msg.label + " done")

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if a.picker.Active() {
		return a.picker.Update(msg)
	}
	return nil
}

func status(text string) tea.Cmd {
	return func() tea.Msg { return StatusMsg(text) }
}

func (a *App) confirmSwitch(project *models.Project) tea.Cmd {
	current := a.browser.Project()
	if current != nil && current.ID == project.ID {
		return nil
	}
	if current == nil {
		a.switchProject(project)
		return status("Project " + project.Title)
	}
	a.confirm.Ask(Prompt{
		Title:    "Switch project",
		Question: fmt.Sprintf("Leave %s for %s?", current.Title, project.Title),
		Notes:    []string{"the filter is cleared", "cached icons are dropped", "the asset tree is reloaded"},
		Yes:      "Switch",
		No:       "Stay",
		Boxed:    true,
	}, func() tea.Cmd {
		a.switchProject(project)
		return status("Project " + project.Title)
	}, nil)
	return nil
}

func (a *App) switchProject(project *models.Project) {
	a.log.Info("switching project", zap.String("project", project.Title), zap.Int("id", project.ID))
	a.search.Reset()
	a.browser.SetActiveProject(project)
	a.tree.Reset()
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}

	switch {
	case a.confirm.Active():
		return a.confirm.Update(msg)
	case a.menu.Active():
		return a.menu.Update(msg)
	case a.picker.Active():
		return a.picker.Update(msg)
	case a.search.Active():
		return a.handleSearchKey(msg)
	}
	return a.handleTreeKey(msg)
}

func (a *App) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		a.search.SetActive(false)
		a.search.Reset()
		a.browser.Search("")
		return nil
	case tea.KeyEnter:
		a.search.SetActive(false)
		a.applyFilter()
		return nil
	}

	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	if a.search.Value() == "" {
		a.applyFilter()
	}
	return cmd
}

func (a *App) applyFilter() {
	if text, changed := a.search.Apply(); changed {
		a.browser.Search(text)
		a.tree.Reset()
	}
}

func (a *App) rows() []proxy.Row {
	return a.browser.Proxy().Rows()
}

func (a *App) handleTreeKey(msg tea.KeyMsg) tea.Cmd {
	rows := a.rows()

	switch {
	case key.Matches(msg, a.keys.Quit):
		return tea.Quit
	case key.Matches(msg, a.keys.Up):
		a.moveAndSelect(rows, -1)
	case key.Matches(msg, a.keys.Down):
		a.moveAndSelect(rows, 1)
	case key.Matches(msg, a.keys.PageUp):
		a.moveAndSelect(rows, -a.layout.PaneBodyHeight())
	case key.Matches(msg, a.keys.PageDown):
		a.moveAndSelect(rows, a.layout.PaneBodyHeight())
	case key.Matches(msg, a.keys.ExtendUp):
		if r, ok := a.tree.Move(rows, -1); ok {
			a.browser.MoveCursor(r.Handle)
		}
	case key.Matches(msg, a.keys.ExtendDown):
		if r, ok := a.tree.Move(rows, 1); ok {
			a.browser.MoveCursor(r.Handle)
		}
	case key.Matches(msg, a.keys.Mark):
		if r, ok := a.tree.Current(rows); ok {
			a.browser.Mark(r.Handle)
		}
	case key.Matches(msg, a.keys.Expand):
		if r, ok := a.tree.Current(rows); ok && r.Node.State != tree.Expanded {
			a.browser.Toggle(r.Handle)
		}
	case key.Matches(msg, a.keys.Collapse):
		a.collapse(rows)
	case key.Matches(msg, a.keys.Toggle):
		if r, ok := a.tree.Current(rows); ok {
			if r.Node.IsLeaf() {
				return a.openMenu()
			}
			a.browser.Toggle(r.Handle)
		}
	case key.Matches(msg, a.keys.Filter):
		a.search.SetActive(true)
	case key.Matches(msg, a.keys.Clear):
		if a.search.Applied() != "" {
			a.search.Reset()
			a.browser.Search("")
			a.tree.Reset()
		}
	case key.Matches(msg, a.keys.Menu):
		return a.openMenu()
	case key.Matches(msg, a.keys.Projects):
		if a.projects == nil {
			return status("No project list available")
		}
		return loadProjects(a.ctx, a.projects, a.settings.Catalog.ExcludedProjects)
	case key.Matches(msg, a.keys.Reload):
		a.search.Reset()
		a.browser.Reload()
		a.tree.Reset()
	case key.Matches(msg, a.keys.Details):
		a.layout.SetShowDetails(!a.layout.ShowDetails)
		a.resize()
	case key.Matches(msg, a.keys.ScrollUp):
		a.details.ScrollUp()
	case key.Matches(msg, a.keys.ScrollDown):
		a.details.ScrollDown()
	}
	return nil
}

func (a *App) moveAndSelect(rows []proxy.Row, delta int) {
	if r, ok := a.tree.Move(rows, delta); ok {
		a.browser.Select(r.Handle)
	}
}

// collapse folds an expanded row, or jumps to the parent of any other row.
func (a *App) collapse(rows []proxy.Row) {
	r, ok := a.tree.Current(rows)
	if !ok {
		return
	}
	if r.Node.State == tree.Expanded {
		a.browser.Toggle(r.Handle)
		return
	}
	parent, ok := a.browser.Model().Parent(r.Handle)
	if ok && parent != a.browser.Model().Root() {
		a.browser.Select(parent)
	}
}

func (a *App) openMenu() tea.Cmd {
	actions := a.browser.MenuActions()
	if len(actions) == 0 {
		return nil
	}
	a.menu.Open(actions, len(a.browser.Selected()))
	return nil
}

// sync keeps the cursor on its row after the tree changed and fetches the
// icons of the rows on screen.
func (a *App) sync() {
	rows := a.rows()
	a.tree.Sync(rows, a.browser.Cursor())
	start, end := a.tree.Window(len(rows))
	a.browser.RequestIcons(rows[start:end])
}

func (a *App) resize() {
	a.layout.SetSize(a.width, a.height)
	a.search.SetWidth(a.width)
	a.tree.SetSize(a.layout.GetTreeWidth()-4, a.layout.PaneBodyHeight())
	a.details.SetSize(a.layout.GetDetailsWidth()-4, a.layout.PaneBodyHeight())
	a.picker.SetSize(a.width, a.layout.GetContentHeight())
}

func (a *App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Loading..."
	}

	title := "No project"
	if p := a.browser.Project(); p != nil {
		title = p.Title
	}

	var body string
	switch {
	case a.confirm.Active():
		body = lipgloss.Place(a.width, a.layout.GetContentHeight(), lipgloss.Center, lipgloss.Center, a.confirm.View(a.width-4))
	case a.picker.Active():
		body = a.picker.View()
	case a.menu.Active():
		body = ContentPaddingStyle.Render(a.menu.View())
	default:
		body = a.panesView()
	}

	bottom := a.layout.RenderHelpPane(a.keys.helpRows())

	content := lipgloss.JoinVertical(lipgloss.Left,
		renderHeader(a.width, title, a.version),
		"",
		a.search.View(),
		body,
		bottom,
	)
	if a.statusMsg != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, StatusBarStyle.Render(a.statusMsg))
	}
	return content
}

func (a *App) panesView() string {
	rows := a.rows()

	var treeBody string
	switch {
	case a.browser.Model().State() == tree.Loading:
		treeBody = lipgloss.Place(a.layout.GetTreeWidth()-4, a.layout.PaneBodyHeight(),
			lipgloss.Center, lipgloss.Center, a.spinner.View())
	case len(rows) == 0 && a.search.Applied() != "":
		treeBody = EmptyStyle.Render("No assets match " + a.search.Applied())
	case len(rows) == 0:
		treeBody = EmptyStyle.Render("No assets")
	default:
		treeBody = a.tree.View(rows, a.browser.Marked)
	}

	badge := ""
	if n := len(a.browser.Selected()); n > 1 {
		badge = DescriptionStyle.Render(fmt.Sprintf("%d selected", n))
	}
	panes := []string{a.layout.RenderPane("ASSETS", badge, treeBody, a.layout.GetTreeWidth(), !a.search.Active())}

	if a.layout.ShowDetails {
		state, asset, details := a.browser.Details()
		detailsBody := a.details.View(state, asset, details, a.spinner.View())
		panes = append(panes, a.layout.RenderPane("DETAILS", "", detailsBody, a.layout.GetDetailsWidth(), false))
	}
	return ContentPaddingStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, panes...))
}
