package tree

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-pipeline/bd-loader/pkg/icons"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

type fakeSource struct {
	typeCalls  []func([]string)
	assetCalls map[string][]func([]*models.AssetInfo)
	regexCalls []func([]*models.AssetInfo)
	patterns   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{assetCalls: make(map[string][]func([]*models.AssetInfo))}
}

func (s *fakeSource) RequestAssetTypes(cb func([]string)) {
	s.typeCalls = append(s.typeCalls, cb)
}

func (s *fakeSource) RequestAssets(query models.AssetQuery, cb func([]*models.AssetInfo)) {
	s.assetCalls[query.Type] = append(s.assetCalls[query.Type], cb)
}

func (s *fakeSource) RequestAssetsByRegex(pattern string, cb func([]*models.AssetInfo)) {
	s.patterns = append(s.patterns, pattern)
	s.regexCalls = append(s.regexCalls, cb)
}

type fakeIcons struct {
	requests map[models.AssetID]icons.Callback
}

func (f *fakeIcons) RequestIcon(cb icons.Callback, asset *models.AssetInfo) {
	if f.requests == nil {
		f.requests = make(map[models.AssetID]icons.Callback)
	}
	f.requests[asset.ID] = cb
}

func prop(id, name string) *models.AssetInfo {
	return &models.AssetInfo{ID: models.AssetID(id), Type: "Prop", Name: name}
}

func childByLabel(t *testing.T, m *Model, parent Handle, label string) (Handle, *Node) {
	t.Helper()
	for _, h := range m.Children(parent) {
		n, ok := m.Node(h)
		require.True(t, ok)
		if n.Label == label {
			return h, n
		}
	}
	t.Fatalf("no child %q", label)
	return Handle{}, nil
}

func loadedModel(t *testing.T, src *fakeSource) *Model {
	t.Helper()
	m := New(src, nil, "42")
	m.Reload()
	require.Len(t, src.typeCalls, 1)
	src.typeCalls[0]([]string{"Character", "Prop"})
	return m
}

func TestReloadLoadsAssetTypes(t *testing.T) {
	src := newFakeSource()
	m := New(src, nil, "42")
	m.Reload()

	root, _ := m.Node(m.Root())
	assert.Equal(t, InProgress, root.Loading)
	assert.Equal(t, Loading, m.State())

	src.typeCalls[0]([]string{"Character", "Prop"})

	assert.Equal(t, Loaded, root.Loading)
	assert.Equal(t, Ready, m.State())
	require.Len(t, m.Children(m.Root()), 2)

	_, n := childByLabel(t, m, m.Root(), "Prop")
	assert.Equal(t, "42|Prop", n.Key)
	assert.Equal(t, AssetType, n.Entity)
	assert.Equal(t, NotLoaded, n.Loading)
	assert.True(t, n.Expandable)
	assert.Equal(t, "Prop", n.TypeName)
}

func TestLoadIsGuardedByState(t *testing.T) {
	src := newFakeSource()
	m := loadedModel(t, src)
	h, n := childByLabel(t, m, m.Root(), "Prop")

	m.Expand(h)
	m.Expand(h)
	m.Load(h)
	assert.Len(t, src.assetCalls["Prop"], 1, "re-expansion while in progress is a no-op")
	assert.Equal(t, InProgress, n.Loading)
	assert.Equal(t, Expanded, n.State)

	src.assetCalls["Prop"][0]([]*models.AssetInfo{prop("1", "chair"), prop("2", "table")})
	assert.Equal(t, Loaded, n.Loading)

	m.Collapse(h)
	m.Expand(h)
	assert.Len(t, src.assetCalls["Prop"], 1, "re-expansion after load is a no-op")
	assert.Equal(t, Loaded, n.Loading)
	assert.Len(t, m.Children(h), 2)

	leafHandle, leaf := childByLabel(t, m, h, "chair")
	assert.Equal(t, "42|Prop|chair", leaf.Key)
	assert.False(t, leaf.Expandable)
	assert.True(t, leaf.IsLeaf())
	assert.Equal(t, models.AssetID("1"), leaf.Asset.ID)

	parent, ok := m.Parent(leafHandle)
	require.True(t, ok)
	assert.Equal(t, h, parent)
	assert.Equal(t, "Prop|chair", m.RelativeKey(leaf))
}

func TestLeavesAreNotLoadable(t *testing.T) {
	src := newFakeSource()
	m := loadedModel(t, src)
	h, _ := childByLabel(t, m, m.Root(), "Prop")
	m.Expand(h)
	src.assetCalls["Prop"][0]([]*models.AssetInfo{prop("1", "chair")})

	leaf, n := childByLabel(t, m, h, "chair")
	m.Expand(leaf)
	assert.Equal(t, NotLoaded, n.Loading)
	assert.Len(t, src.assetCalls, 1)
}

func TestNodePayload(t *testing.T) {
	src := newFakeSource()
	m := loadedModel(t, src)
	h, typeNode := childByLabel(t, m, m.Root(), "Prop")
	m.Expand(h)
	src.assetCalls["Prop"][0]([]*models.AssetInfo{prop("1", "chair")})
	m.AppendAssetsByRegex([]*models.AssetInfo{{ID: "2", Type: "Set", Name: "street"}})

	assert.Equal(t, "Prop", typeNode.TypeName)
	assert.Nil(t, typeNode.Asset)

	_, leaf := childByLabel(t, m, h, "chair")
	assert.Empty(t, leaf.TypeName, "a leaf carries its asset only")
	require.NotNil(t, leaf.Asset)
	assert.Equal(t, "chair", leaf.Asset.Name)

	set, setNode := childByLabel(t, m, m.Root(), "Set")
	assert.Equal(t, "Set", setNode.TypeName)
	_, street := childByLabel(t, m, set, "street")
	assert.Empty(t, street.TypeName)
}

func TestDuplicateDiscoveryReusesNodes(t *testing.T) {
	src := newFakeSource()
	m := loadedModel(t, src)
	h, _ := childByLabel(t, m, m.Root(), "Prop")

	m.AppendItems(m.Root(), AssetType, []string{"Prop", "Set"})
	assert.Len(t, m.Children(m.Root()), 3)

	m.Expand(h)
	src.assetCalls["Prop"][0]([]*models.AssetInfo{prop("1", "chair"), prop("1", "chair")})
	assert.Len(t, m.Children(h), 1)
}

func TestReloadInvalidatesHandles(t *testing.T) {
	src := newFakeSource()
	m := loadedModel(t, src)
	h, _ := childByLabel(t, m, m.Root(), "Prop")
	m.Expand(h)
	oldRoot := m.Root()

	m.Reload()

	assert.False(t, m.Valid(h))
	assert.False(t, m.Valid(oldRoot))
	_, ok := m.Node(h)
	assert.False(t, ok)

	// The late answer for the old node must not land anywhere.
	src.assetCalls["Prop"][0]([]*models.AssetInfo{prop("1", "chair")})
	assert.Equal(t, 1, m.Len())

	root, _ := m.Node(m.Root())
	assert.Equal(t, InProgress, root.Loading, "only a reload resets loading state")
	assert.Len(t, src.typeCalls, 2)

	// The stale type answer is dropped too.
	src.typeCalls[0]([]string{"Set"})
	assert.Empty(t, m.Children(m.Root()))
}

func TestFindByKeyEvictsStaleEntries(t *testing.T) {
	src := newFakeSource()
	m := loadedModel(t, src)

	_, ok := m.FindByKey("42|Prop")
	require.True(t, ok)

	m.Reload()
	assert.Contains(t, m.index, "42|Prop")

	_, ok = m.FindByKey("42|Prop")
	assert.False(t, ok)
	assert.NotContains(t, m.index, "42|Prop")
}

func TestAppendAssetsByRegex(t *testing.T) {
	src := newFakeSource()
	m := loadedModel(t, src)
	propHandle, _ := childByLabel(t, m, m.Root(), "Prop")
	m.Expand(propHandle)
	src.assetCalls["Prop"][0]([]*models.AssetInfo{prop("1", "chair")})

	m.SearchByRegex("ch.*")
	assert.Equal(t, Loading, m.State())
	require.Equal(t, []string{"ch.*"}, src.patterns)

	src.regexCalls[0]([]*models.AssetInfo{
		prop("1", "chair"),
		prop("3", "chest"),
		{ID: "9", Type: "Character", Name: "chuck"},
		{ID: "10", Type: "Vehicle", Name: "chopper"},
	})

	assert.Equal(t, Ready, m.State())
	assert.Len(t, m.Children(m.Root()), 3, "Vehicle is synthesized")
	assert.Len(t, m.Children(propHandle), 2, "chair is reused")

	vehicle, n := childByLabel(t, m, m.Root(), "Vehicle")
	assert.Equal(t, NotLoaded, n.Loading)
	_, leaf := childByLabel(t, m, vehicle, "chopper")
	assert.Equal(t, "42|Vehicle|chopper", leaf.Key)
	assert.Equal(t, models.AssetID("10"), leaf.Asset.ID)

	character, _ := childByLabel(t, m, m.Root(), "Character")
	_, chuck := childByLabel(t, m, character, "chuck")
	assert.Equal(t, "chuck", chuck.Label)
}

func TestSetProjectRescopesKeys(t *testing.T) {
	src := newFakeSource()
	m := loadedModel(t, src)
	m.SetProject("7")
	m.Reload()
	src.typeCalls[1]([]string{"Prop"})

	_, n := childByLabel(t, m, m.Root(), "Prop")
	assert.Equal(t, "7|Prop", n.Key)
	assert.Equal(t, "7", m.Project())
}

func TestRequestIconOnce(t *testing.T) {
	src := newFakeSource()
	ic := &fakeIcons{}
	m := New(src, ic, "42")
	m.Reload()
	src.typeCalls[0]([]string{"Prop"})
	h, _ := childByLabel(t, m, m.Root(), "Prop")
	m.Expand(h)
	src.assetCalls["Prop"][0]([]*models.AssetInfo{prop("1", "chair")})
	leafHandle, leaf := childByLabel(t, m, h, "chair")

	m.RequestIcon(h)
	assert.Empty(t, ic.requests, "type rows have no icon request")

	m.RequestIcon(leafHandle)
	assert.Equal(t, IconLoading, leaf.IconState)
	delete(ic.requests, "1")
	m.RequestIcon(leafHandle)
	assert.Empty(t, ic.requests, "second request while loading is a no-op")

	m.Reload()
	m.RequestIcon(leafHandle)
	assert.Empty(t, ic.requests)
}

func TestIconLandsOnNode(t *testing.T) {
	src := newFakeSource()
	ic := &fakeIcons{}
	m := New(src, ic, "42")
	m.Reload()
	src.typeCalls[0]([]string{"Prop"})
	h, _ := childByLabel(t, m, m.Root(), "Prop")
	m.Expand(h)
	src.assetCalls["Prop"][0]([]*models.AssetInfo{prop("1", "chair")})
	leafHandle, leaf := childByLabel(t, m, h, "chair")

	m.RequestIcon(leafHandle)
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	ic.requests["1"](img)

	assert.Equal(t, IconLoaded, leaf.IconState)
	assert.Same(t, img, leaf.Icon)
}
