package tui

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/bd-pipeline/bd-loader/pkg/browser"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// maxThumbnailWidth caps the preview so the fields stay on screen.
const maxThumbnailWidth = 48

// DetailsView renders the details panel of the selected asset.
type DetailsView struct {
	viewport viewport.Model
	width    int
	height   int
	shown    *models.AssetDetails
}

func NewDetailsView() *DetailsView {
	return &DetailsView{viewport: viewport.New(40, 10)}
}

// SetSize sets the inner size of the panel.
func (d *DetailsView) SetSize(width, height int) {
	d.width = width
	d.height = height
	d.viewport.Width = width
	d.viewport.Height = height
	d.shown = nil
}

// Update scrolls the ready panel.
func (d *DetailsView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return cmd
}

// ScrollUp and ScrollDown move the ready panel by one line.
func (d *DetailsView) ScrollUp()   { d.viewport.LineUp(1) }
func (d *DetailsView) ScrollDown() { d.viewport.LineDown(1) }

// View renders state. spinner is the current loading frame.
func (d *DetailsView) View(state browser.DetailsState, asset *models.AssetInfo, details *models.AssetDetails, spinner string) string {
	switch state {
	case browser.DetailsLoading:
		return d.center(spinner + " Loading details")
	case browser.DetailsReady:
		if details != d.shown {
			d.viewport.SetContent(d.content(asset, details))
			d.viewport.GotoTop()
			d.shown = details
		}
		return d.viewport.View()
	}
	d.shown = nil
	return d.center(EmptyStyle.Render(wordwrap.String(browser.EmptyDetailsText, d.wrapWidth())))
}

func (d *DetailsView) wrapWidth() int {
	if d.width < 10 {
		return 10
	}
	return d.width
}

func (d *DetailsView) center(s string) string {
	if d.width <= 0 || d.height <= 0 {
		return s
	}
	return lipgloss.Place(d.width, d.height, lipgloss.Center, lipgloss.Center, s)
}

func (d *DetailsView) content(asset *models.AssetInfo, details *models.AssetDetails) string {
	var b strings.Builder

	thumbnail := details.Thumbnail
	if thumbnail == nil && asset != nil {
		thumbnail = asset.Icon
	}
	if thumbnail != nil {
		width := d.width
		if width > maxThumbnailWidth {
			width = maxThumbnailWidth
		}
		b.WriteString(renderImage(thumbnail, width))
		b.WriteString("\n\n")
	}

	column := (d.wrapWidth() - 2) / 2
	name := details.FullName
	if name == "" && asset != nil {
		name = asset.FullName()
	}
	b.WriteString(detailRow(column,
		detailItem("Name", name, column),
		detailItem("Version", strconv.Itoa(details.Version), column)))
	b.WriteString("\n\n")
	b.WriteString(detailRow(column,
		detailItem("Created", humanizeTime(details.CreatedAt), column),
		detailItem("Modified", humanizeTime(details.ModifiedAt), column)))
	return b.String()
}

func detailItem(label, value string, width int) string {
	return LabelStyle.Render(label) + "\n" + ValueStyle.Render(wordwrap.String(value, width))
}

func detailRow(column int, left, right string) string {
	cell := lipgloss.NewStyle().Width(column).MarginRight(2)
	return lipgloss.JoinHorizontal(lipgloss.Top, cell.Render(left), lipgloss.NewStyle().Width(column).Render(right))
}

func humanizeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
