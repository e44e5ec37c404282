package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/tree"
)

type staticSource struct {
	types  []string
	assets map[string][]*models.AssetInfo
}

func (s *staticSource) RequestAssetTypes(cb func([]string)) { cb(s.types) }

func (s *staticSource) RequestAssets(q models.AssetQuery, cb func([]*models.AssetInfo)) {
	cb(s.assets[q.Type])
}

func (s *staticSource) RequestAssetsByRegex(string, func([]*models.AssetInfo)) {}

func names(t *testing.T, m *tree.Model, rows []Row) []string {
	t.Helper()
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Node.Label)
	}
	return out
}

func buildModel(t *testing.T) *tree.Model {
	t.Helper()
	src := &staticSource{
		types: []string{"Set", "Prop", "Character"},
		assets: map[string][]*models.AssetInfo{
			"Prop": {
				{ID: "1", Type: "Prop", Name: "v10"},
				{ID: "2", Type: "Prop", Name: "v2"},
				{ID: "3", Type: "Prop", Name: "xABCx"},
				{ID: "4", Type: "Prop", Name: "v100"},
			},
			"Set": {
				{ID: "5", Type: "Set", Name: "street"},
			},
		},
	}
	m := tree.New(src, nil, "1")
	m.Reload()
	for _, h := range m.Children(m.Root()) {
		if n, _ := m.Node(h); n.Label != "Character" {
			m.Expand(h)
		}
	}
	return m
}

func handleOf(t *testing.T, m *tree.Model, key string) tree.Handle {
	t.Helper()
	h, ok := m.FindByKey(key)
	require.True(t, ok, key)
	return h
}

func TestRowsAreNaturallySorted(t *testing.T) {
	m := buildModel(t)
	p := New(m)

	rows := p.Rows()
	assert.Equal(t,
		[]string{"Character", "Prop", "v2", "v10", "v100", "xABCx", "Set", "street"},
		names(t, m, rows))
	assert.Equal(t, 0, rows[1].Depth)
	assert.Equal(t, 1, rows[2].Depth)
}

func TestCollapsedNodesHideChildren(t *testing.T) {
	m := buildModel(t)
	m.Collapse(handleOf(t, m, "1|Prop"))
	p := New(m)

	assert.Equal(t, []string{"Character", "Prop", "Set", "street"}, names(t, m, p.Rows()))
}

func TestRecursiveFilterKeepsAncestors(t *testing.T) {
	m := buildModel(t)
	p := New(m)
	p.SetFilterWildcard("abc")

	assert.Equal(t, []string{"Prop", "xABCx"}, names(t, m, p.Rows()))
	assert.True(t, p.Accepts(handleOf(t, m, "1|Prop")))
	assert.False(t, p.Accepts(handleOf(t, m, "1|Set")))
	assert.False(t, p.Accepts(handleOf(t, m, "1|Prop|v2")))
}

func TestFilterWildcards(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{"", []string{"Character", "Prop", "v2", "v10", "v100", "xABCx", "Set", "street"}},
		{"V1*", []string{"Prop", "v10", "v100"}},
		{"v?0", []string{"Prop", "v10", "v100"}},
		{"prop|v2", []string{"Prop", "v2"}},
		{"set", []string{"Set", "street"}},
		{"CHAR", []string{"Character"}},
		{"s[tx]reet", []string{"Set", "street"}},
		{"{", nil},
		{"[", nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			m := buildModel(t)
			p := New(m)
			p.SetFilterWildcard(tt.pattern)
			assert.Equal(t, tt.pattern, p.Filter())

			got := names(t, m, p.Rows())
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaleHandleIsNotAccepted(t *testing.T) {
	m := buildModel(t)
	h := handleOf(t, m, "1|Prop")
	p := New(m)
	m.Reload()
	assert.False(t, p.Accepts(h))
	assert.Same(t, m, p.Model())
}
