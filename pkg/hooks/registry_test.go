package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

func typesHook(types ...string) func(context.Context, *models.Project) ([]string, error) {
	return func(context.Context, *models.Project) ([]string, error) {
		return types, nil
	}
}

func TestEmptyRegistryIsNotLoaded(t *testing.T) {
	r := NewRegistry()
	_, err := r.AssetTypes(&models.Project{ID: 1})
	assert.ErrorIs(t, err, ErrHooksNotLoaded)

	var nilRegistry *Registry
	_, err = nilRegistry.Assets(nil)
	assert.ErrorIs(t, err, ErrHooksNotLoaded)
	assert.Nil(t, nilRegistry.MenuActions(nil, nil))
}

func TestMissingHook(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(GetAssetTypes, typesHook("Prop")))

	_, err := r.AssetDetails(&models.Project{ID: 1})
	assert.ErrorIs(t, err, ErrHookNotFound)
	assert.Contains(t, err.Error(), GetAssetsDetails)
}

func TestAddValidatesSignature(t *testing.T) {
	tests := []struct {
		name    string
		hook    string
		fn      any
		wantErr bool
	}{
		{"func literal", GetAssetTypes, typesHook(), false},
		{"named type", GetAssetTypes, AssetTypesHook(typesHook()), false},
		{"wrong signature", GetAssets, typesHook(), true},
		{"unknown name", "bd.loader.nope", typesHook(), true},
		{"menu", AddItemMenuAction, func(*models.Project, []*models.AssetInfo) []models.MenuAction { return nil }, false},
		{"shelf", AddShelfButtons, func(string) []models.ShelfButton { return nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Add(tt.hook, tt.fn)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProjectHooksTakePrecedence(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(GetAssetTypes, typesHook("global")))
	require.NoError(t, r.AddForProject("7", GetAssetTypes, typesHook("seven")))

	tests := []struct {
		name    string
		project *models.Project
		want    []string
	}{
		{"scoped project", &models.Project{ID: 7}, []string{"seven"}},
		{"other project", &models.Project{ID: 8}, []string{"global"}},
		{"no project", nil, []string{"global"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := r.AssetTypes(tt.project)
			require.NoError(t, err)
			got, err := fn(context.Background(), tt.project)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLastRegisteredHookWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(GetAssetTypes, typesHook("first")))
	require.NoError(t, r.Add(GetAssetTypes, typesHook("second")))

	fn, err := r.AssetTypes(nil)
	require.NoError(t, err)
	got, _ := fn(context.Background(), nil)
	assert.Equal(t, []string{"second"}, got)
}

func TestMenuActionsCollectsEveryHook(t *testing.T) {
	r := NewRegistry()
	var ran []string
	menu := func(label string) func(*models.Project, []*models.AssetInfo) []models.MenuAction {
		return func(_ *models.Project, assets []*models.AssetInfo) []models.MenuAction {
			return []models.MenuAction{{
				Label: label,
				Run: func() error {
					ran = append(ran, label+":"+assets[0].Name)
					return nil
				},
			}}
		}
	}
	require.NoError(t, r.Add(AddItemMenuAction, menu("Reference")))
	require.NoError(t, r.AddForProject("1", AddItemMenuAction, menu("Import")))

	actions := r.MenuActions(&models.Project{ID: 1}, []*models.AssetInfo{{Name: "chair"}})
	require.Len(t, actions, 2)
	assert.Equal(t, "Import", actions[0].Label)
	assert.Equal(t, "Reference", actions[1].Label)

	require.NoError(t, actions[1].Run())
	assert.Equal(t, []string{"Reference:chair"}, ran)
}

func TestShelfButtons(t *testing.T) {
	r := NewRegistry()
	_, err := r.ShelfButtons("BDPipeline")
	assert.True(t, errors.Is(err, ErrHooksNotLoaded))

	require.NoError(t, r.Add(AddShelfButtons, func(shelf string) []models.ShelfButton {
		return []models.ShelfButton{{Shelf: shelf, Label: "Loader"}}
	}))
	buttons, err := r.ShelfButtons("BDPipeline")
	require.NoError(t, err)
	assert.Equal(t, []models.ShelfButton{{Shelf: "BDPipeline", Label: "Loader"}}, buttons)
}

func TestPanickingHookIsSkipped(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logging.Set(zap.New(core))
	defer logging.Set(nil)

	r := NewRegistry()
	require.NoError(t, r.Add(AddItemMenuAction, func(*models.Project, []*models.AssetInfo) []models.MenuAction {
		return []models.MenuAction{{Label: "Reference"}}
	}))
	require.NoError(t, r.Add(AddItemMenuAction, func(_ *models.Project, assets []*models.AssetInfo) []models.MenuAction {
		return []models.MenuAction{{Label: "Open " + assets[5].Name}}
	}))
	require.NoError(t, r.Add(AddShelfButtons, func(string) []models.ShelfButton {
		panic("shelf hook bug")
	}))
	require.NoError(t, r.Add(AddShelfButtons, func(shelf string) []models.ShelfButton {
		return []models.ShelfButton{{Shelf: shelf, Label: "Loader"}}
	}))

	var actions []models.MenuAction
	require.NotPanics(t, func() {
		actions = r.MenuActions(&models.Project{ID: 1}, []*models.AssetInfo{{Name: "chair"}})
	})
	require.Len(t, actions, 1)
	assert.Equal(t, "Reference", actions[0].Label)

	var buttons []models.ShelfButton
	require.NotPanics(t, func() {
		var err error
		buttons, err = r.ShelfButtons("BDPipeline")
		require.NoError(t, err)
	})
	assert.Equal(t, []models.ShelfButton{{Shelf: "BDPipeline", Label: "Loader"}}, buttons)

	entries := logs.FilterMessage("hook panicked").All()
	require.Len(t, entries, 2)
	assert.Equal(t, AddItemMenuAction, entries[0].ContextMap()["hook"])
	assert.Equal(t, AddShelfButtons, entries[1].ContextMap()["hook"])
}

func TestRegistrations(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddForProject("2", GetAssets, func(context.Context, *models.Project, models.AssetQuery) ([]*models.AssetInfo, error) {
		return nil, nil
	}))
	require.NoError(t, r.Add(GetAssetTypes, typesHook()))

	assert.Equal(t, []Registration{
		{Name: GetAssetTypes, Source: "builtin"},
		{Name: GetAssets, Project: "2", Source: "builtin"},
	}, r.Registrations())
}
