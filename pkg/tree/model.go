// Package tree implements the lazily loaded asset hierarchy (asset type ->
// asset) behind the browser. Nodes live in an arena addressed by Handle; a
// Handle goes stale when its slot is recycled by Reload.
package tree

import (
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/icons"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// KeySeparator joins the parts of a hierarchical key.
const KeySeparator = "|"

// Source is the subset of the data accessor the model loads from. Callbacks
// are expected on the UI goroutine.
type Source interface {
	RequestAssetTypes(cb func([]string))
	RequestAssets(query models.AssetQuery, cb func([]*models.AssetInfo))
	RequestAssetsByRegex(pattern string, cb func([]*models.AssetInfo))
}

// IconSource hands out leaf icons.
type IconSource interface {
	RequestIcon(cb icons.Callback, asset *models.AssetInfo)
}

// ViewState is what the tree view shows as a whole.
type ViewState int

const (
	Loading ViewState = iota + 1
	Ready
)

func (s ViewState) String() string {
	if s == Loading {
		return "loading"
	}
	return "ready"
}

type slot struct {
	gen  uint32
	node *Node
}

// Model is the lazy tree. It is not safe for concurrent use; every method
// runs on the UI goroutine.
type Model struct {
	source  Source
	icons   IconSource
	project string

	slots []slot
	free  []uint32
	index map[string]Handle
	root  Handle
	state ViewState

	log *zap.Logger
}

// New creates an empty model scoped to projectKey. Call Reload to populate it.
func New(source Source, iconSource IconSource, projectKey string) *Model {
	m := &Model{
		source:  source,
		icons:   iconSource,
		project: projectKey,
		index:   make(map[string]Handle),
		log:     logging.Named("tree"),
	}
	m.clear()
	return m
}

// SetProject rescopes the keys of nodes created from now on. The caller
// reloads.
func (m *Model) SetProject(projectKey string) {
	m.project = projectKey
}

// Project returns the key prefix of the active project.
func (m *Model) Project() string {
	return m.project
}

// Root returns the invisible root node.
func (m *Model) Root() Handle {
	return m.root
}

// State returns the view state.
func (m *Model) State() ViewState {
	return m.state
}

// SetState sets the view state.
func (m *Model) SetState(state ViewState) {
	m.state = state
}

// Len returns the number of live nodes, root included.
func (m *Model) Len() int {
	return len(m.slots) - len(m.free)
}

// Valid reports whether h still addresses a live node.
func (m *Model) Valid(h Handle) bool {
	if int(h.index) >= len(m.slots) {
		return false
	}
	s := m.slots[h.index]
	return s.node != nil && s.gen == h.gen
}

// Node returns the node addressed by h.
func (m *Model) Node(h Handle) (*Node, bool) {
	if !m.Valid(h) {
		return nil, false
	}
	return m.slots[h.index].node, true
}

// Children returns the handles of the children of h in insertion order.
func (m *Model) Children(h Handle) []Handle {
	n, ok := m.Node(h)
	if !ok {
		return nil
	}
	return n.children
}

// Parent returns the parent of h. The root has no parent.
func (m *Model) Parent(h Handle) (Handle, bool) {
	n, ok := m.Node(h)
	if !ok || !m.Valid(n.parent) {
		return Handle{}, false
	}
	return n.parent, true
}

// FindByKey looks up a node by hierarchical key. A stale index entry is
// evicted on lookup.
func (m *Model) FindByKey(key string) (Handle, bool) {
	h, ok := m.index[key]
	if !ok {
		return Handle{}, false
	}
	if !m.Valid(h) {
		delete(m.index, key)
		return Handle{}, false
	}
	return h, true
}

// Reload drops every node, invalidating all outstanding handles, and starts
// loading the asset types again.
func (m *Model) Reload() {
	m.clear()
	m.Load(m.root)
}

func (m *Model) clear() {
	for i := range m.slots {
		if m.slots[i].node == nil {
			continue
		}
		m.slots[i].node = nil
		m.slots[i].gen++
		m.free = append(m.free, uint32(i))
	}
	m.root = m.alloc(&Node{
		Label:      "",
		Entity:     AssetType,
		Expandable: true,
		Loading:    NotLoaded,
	})
	m.state = Loading
}

func (m *Model) alloc(n *Node) Handle {
	if k := len(m.free); k > 0 {
		idx := m.free[k-1]
		m.free = m.free[:k-1]
		m.slots[idx].node = n
		return Handle{index: idx, gen: m.slots[idx].gen}
	}
	m.slots = append(m.slots, slot{node: n})
	return Handle{index: uint32(len(m.slots) - 1)}
}

// Expand marks h expanded and loads its children once.
func (m *Model) Expand(h Handle) {
	n, ok := m.Node(h)
	if !ok {
		return
	}
	n.State = Expanded
	m.Load(h)
}

// Collapse marks h collapsed. Loaded children are kept.
func (m *Model) Collapse(h Handle) {
	if n, ok := m.Node(h); ok {
		n.State = Normal
	}
}

// Load dispatches the children request of h. It is a no-op unless h is
// NotLoaded, so a node goes NotLoaded -> InProgress -> Loaded exactly once.
func (m *Model) Load(h Handle) {
	n, ok := m.Node(h)
	if !ok || n.Loading != NotLoaded {
		return
	}

	if h == m.root {
		n.Loading = InProgress
		m.source.RequestAssetTypes(func(types []string) {
			if !m.Valid(h) {
				return
			}
			m.AppendItems(h, AssetType, types)
			m.state = Ready
		})
		return
	}

	if n.Entity != AssetType {
		return
	}
	n.Loading = InProgress
	m.source.RequestAssets(models.AssetQuery{Type: n.TypeName}, func(assets []*models.AssetInfo) {
		m.AppendAssets(h, assets)
	})
}

// SearchByRegex puts the view in Loading and merges the assets matching
// pattern into the tree, whatever the current expansion state.
func (m *Model) SearchByRegex(pattern string) {
	m.state = Loading
	root := m.root
	m.source.RequestAssetsByRegex(pattern, func(assets []*models.AssetInfo) {
		if !m.Valid(root) {
			return
		}
		m.AppendAssetsByRegex(assets)
	})
}

// AppendItems appends expandable children labelled labels under parent and
// marks parent Loaded.
func (m *Model) AppendItems(parent Handle, entity EntityType, labels []string) {
	p, ok := m.Node(parent)
	if !ok {
		m.log.Debug("dropping items for a stale node", zap.Int("count", len(labels)))
		return
	}
	for _, label := range labels {
		m.appendItem(parent, label, entity, true)
	}
	p.Loading = Loaded
}

// AppendAssets appends one leaf per asset under parent and marks parent
// Loaded.
func (m *Model) AppendAssets(parent Handle, assets []*models.AssetInfo) {
	p, ok := m.Node(parent)
	if !ok {
		m.log.Debug("dropping assets for a stale node", zap.Int("count", len(assets)))
		return
	}
	for _, asset := range assets {
		h := m.appendItem(parent, asset.Name, AssetName, false)
		if n, ok := m.Node(h); ok {
			n.Asset = asset
		}
	}
	p.Loading = Loaded
}

// AppendAssetsByRegex rebuilds the type -> asset chain of each asset,
// reusing nodes already present, then marks the view Ready.
func (m *Model) AppendAssetsByRegex(assets []*models.AssetInfo) {
	for _, asset := range assets {
		typeNode, ok := m.FindByKey(m.childKey(m.root, asset.Type))
		if !ok {
			typeNode = m.appendItem(m.root, asset.Type, AssetType, true)
		}

		if _, ok := m.FindByKey(m.childKey(typeNode, asset.Name)); ok {
			continue
		}
		h := m.appendItem(typeNode, asset.Name, AssetName, false)
		if n, ok := m.Node(h); ok {
			n.Asset = asset
		}
	}
	m.state = Ready
}

func (m *Model) childKey(parent Handle, label string) string {
	parentKey := m.project
	if p, ok := m.Node(parent); ok && p.Key != "" {
		parentKey = p.Key
	}
	return parentKey + KeySeparator + label
}

func (m *Model) appendItem(parent Handle, label string, entity EntityType, expandable bool) Handle {
	if !m.Valid(parent) {
		parent = m.root
	}
	key := m.childKey(parent, label)
	if h, ok := m.FindByKey(key); ok {
		return h
	}

	n := &Node{
		Label:      label,
		Entity:     entity,
		Expandable: expandable,
		Key:        key,
		Loading:    NotLoaded,
		parent:     parent,
	}
	if entity == AssetType {
		n.TypeName = label
	}
	h := m.alloc(n)
	m.index[key] = h

	p := m.slots[parent.index].node
	p.children = append(p.children, h)
	return h
}

// RelativeKey strips the project prefix from a node key, e.g. "Prop|chair".
func (m *Model) RelativeKey(n *Node) string {
	return strings.TrimPrefix(n.Key, m.project+KeySeparator)
}

// RequestIcon starts the icon fetch of a leaf once. The icon lands on the
// node when it arrives; a missing icon leaves Icon nil with IconLoaded.
func (m *Model) RequestIcon(h Handle) {
	n, ok := m.Node(h)
	if !ok || m.icons == nil || n.Entity != AssetName || n.Asset == nil || n.IconState != IconNone {
		return
	}
	n.IconState = IconLoading
	m.icons.RequestIcon(func(icon image.Image) {
		n, ok := m.Node(h)
		if !ok {
			return
		}
		n.Icon = icon
		n.IconState = IconLoaded
	}, n.Asset)
}
