// Package browser composes the lazy tree, the filter proxy and the details
// panel state. Every method runs on the UI goroutine.
package browser

import (
	"strings"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/accessor"
	"github.com/bd-pipeline/bd-loader/pkg/hooks"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/proxy"
	"github.com/bd-pipeline/bd-loader/pkg/tree"
)

// EmptyDetailsText is shown while no asset is selected.
const EmptyDetailsText = "Select Asset to View the Details"

// DetailsState is what the details panel shows.
type DetailsState int

const (
	DetailsEmpty DetailsState = iota
	DetailsLoading
	DetailsReady
)

func (s DetailsState) String() string {
	switch s {
	case DetailsLoading:
		return "loading"
	case DetailsReady:
		return "ready"
	}
	return "empty"
}

// Icons serves leaf icons and can forget them.
type Icons interface {
	tree.IconSource
	ClearCache()
}

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

// Browser is the asset browser without its presentation.
type Browser struct {
	accessor accessor.Accessor
	icons    Icons
	hooks    *hooks.Registry
	model    *tree.Model
	proxy    *proxy.Proxy

	cursor  tree.Handle
	marked  map[tree.Handle]bool
	current *models.AssetInfo
	details *models.AssetDetails
	state   DetailsState

	log *zap.Logger
}

// New creates a browser over acc. icons and registry may be nil.
func New(acc accessor.Accessor, icons Icons, registry *hooks.Registry) *Browser {
	var iconSource tree.IconSource
	if icons != nil {
		iconSource = icons
	}
	model := tree.New(acc, iconSource, acc.ActiveProject().Key())
	return &Browser{
		accessor: acc,
		icons:    icons,
		hooks:    registry,
		model:    model,
		proxy:    proxy.New(model),
		marked:   make(map[tree.Handle]bool),
		log:      logging.Named("browser"),
	}
}

// Model returns the tree model.
func (b *Browser) Model() *tree.Model { return b.model }

// Proxy returns the filtered view.
func (b *Browser) Proxy() *proxy.Proxy { return b.proxy }

// Project returns the active project.
func (b *Browser) Project() *models.Project { return b.accessor.ActiveProject() }

// Rows returns the visible rows and starts the icon fetch of their leaves.
func (b *Browser) Rows() []proxy.Row {
	rows := b.proxy.Rows()
	b.RequestIcons(rows)
	return rows
}

// RequestIcons starts the icon fetch of the leaves among rows. Each leaf is
// fetched once.
func (b *Browser) RequestIcons(rows []proxy.Row) {
	for _, r := range rows {
		if r.Node.IsLeaf() {
			b.model.RequestIcon(r.Handle)
		}
	}
}

// Cursor returns the row under the cursor.
func (b *Browser) Cursor() tree.Handle { return b.cursor }

// Select moves the cursor to h, makes it the only marked row and shows its
// details. Details are fetched once per asset and a result that arrives
// after another row was selected only updates the asset's cache.
func (b *Browser) Select(h tree.Handle) {
	n, ok := b.model.Node(h)
	if !ok {
		return
	}
	b.cursor = h
	clear(b.marked)
	b.marked[h] = true

	if !n.IsLeaf() || n.Asset == nil {
		b.current = nil
		b.showDetails(nil)
		return
	}

	asset := n.Asset
	b.current = asset
	if asset.Details != nil {
		b.showDetails(asset.Details)
		return
	}

	b.details = nil
	b.state = DetailsLoading
	b.accessor.RequestAssetDetails(asset, func(details *models.AssetDetails) {
		asset.Details = details
		if b.current != asset {
			b.log.Debug("discarding details of a deselected asset", zap.Stringer("asset", asset))
			return
		}
		b.showDetails(details)
	})
}

func (b *Browser) showDetails(details *models.AssetDetails) {
	b.details = details
	if details == nil {
		b.state = DetailsEmpty
		return
	}
	b.state = DetailsReady
}

// Details returns the panel state, the asset it belongs to and, when Ready,
// its details.
func (b *Browser) Details() (DetailsState, *models.AssetInfo, *models.AssetDetails) {
	return b.state, b.current, b.details
}

// MoveCursor moves the cursor to h keeping the selection and the details
// panel as they are.
func (b *Browser) MoveCursor(h tree.Handle) {
	if !b.model.Valid(h) {
		return
	}
	b.cursor = h
}

// Mark toggles h in the multi-selection without moving the details panel.
func (b *Browser) Mark(h tree.Handle) {
	if !b.model.Valid(h) {
		return
	}
	if b.marked[h] {
		delete(b.marked, h)
		return
	}
	b.marked[h] = true
}

// Marked reports whether h is part of the selection.
func (b *Browser) Marked(h tree.Handle) bool {
	return b.marked[h]
}

// Selected returns the assets of the selected leaves in display order.
func (b *Browser) Selected() []*models.AssetInfo {
	var out []*models.AssetInfo
	for _, r := range b.proxy.Rows() {
		if b.marked[r.Handle] && r.Node.IsLeaf() && r.Node.Asset != nil {
			out = append(out, r.Node.Asset)
		}
	}
	return out
}

// Toggle expands a collapsed row and collapses an expanded one.
func (b *Browser) Toggle(h tree.Handle) {
	n, ok := b.model.Node(h)
	if !ok || !n.Expandable {
		return
	}
	if n.State == tree.Expanded {
		b.model.Collapse(h)
		return
	}
	b.model.Expand(h)
}

// Search filters the view by text. A non-empty text also asks the catalog
// for matching assets so unexpanded branches show up. Empty text clears the
// filter.
func (b *Browser) Search(text string) {
	if text != "" {
		b.model.SearchByRegex(text)
	} else {
		b.model.SetState(tree.Ready)
	}
	b.proxy.SetFilterWildcard(text)
}

// Filter returns the active filter text.
func (b *Browser) Filter() string {
	return b.proxy.Filter()
}

// SetActiveProject switches the catalog scope. The filter, the icon cache and
// the tree are reset.
func (b *Browser) SetActiveProject(project *models.Project) {
	b.proxy.SetFilterWildcard("")
	if b.icons != nil {
		b.icons.ClearCache()
	}
	b.accessor.SetActiveProject(project)
	b.model.SetProject(project.Key())
	b.Reload()
}

// Reload drops the selection and the tree and loads the asset types again.
func (b *Browser) Reload() {
	b.cursor = tree.Handle{}
	clear(b.marked)
	b.current = nil
	b.showDetails(nil)
	b.model.Reload()
}

// MenuActions lists the actions of the selected assets. Type rows have no
// menu.
func (b *Browser) MenuActions() []models.MenuAction {
	n, ok := b.model.Node(b.cursor)
	if !ok || !n.IsLeaf() {
		return nil
	}
	assets := b.Selected()
	if len(assets) == 0 {
		return nil
	}

	actions := []models.MenuAction{copyNameAction(assets)}
	return append(actions, b.hooks.MenuActions(b.Project(), assets)...)
}

func copyNameAction(assets []*models.AssetInfo) models.MenuAction {
	return models.MenuAction{
		Label: "Copy full name",
		Run: func() error {
			names := make([]string, 0, len(assets))
			for _, a := range assets {
				names = append(names, a.FullName())
			}
			return copyToClipboard(strings.Join(names, "\n"))
		},
	}
}
