package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-pipeline/bd-loader/pkg/models"
)

const propsScript = `package props

import "github.com/bd-pipeline/bd-loader/pkg/models"

var Projects = []string{"42"}

func GetAssetTypes(project *models.Project) []string {
	return []string{"Prop", project.Title}
}

func GetAssets(project *models.Project, query models.AssetQuery) []*models.AssetInfo {
	return []*models.AssetInfo{{ID: models.IntAssetID(1), Type: query.Type, Name: "chair"}}
}
`

const globalScript = `package global

func AddShelfButtons(shelf string) []string {
	return nil
}
`

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadScriptsRegistersDeclaredHooks(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "props.go", propsScript)
	writeScript(t, dir, "README.md", "not a script")

	r := NewRegistry()
	require.NoError(t, r.LoadScripts(dir, filepath.Join(dir, "missing")))

	project := &models.Project{ID: 42, Title: "Forest"}
	typesFn, err := r.AssetTypes(project)
	require.NoError(t, err)
	types, err := typesFn(context.Background(), project)
	require.NoError(t, err)
	assert.Equal(t, []string{"Prop", "Forest"}, types)

	assetsFn, err := r.Assets(project)
	require.NoError(t, err)
	assets, err := assetsFn(context.Background(), project, models.AssetQuery{Type: "Prop"})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, models.AssetID("1"), assets[0].ID)
	assert.Equal(t, "Prop", assets[0].Type)

	_, err = r.AssetTypes(&models.Project{ID: 1})
	assert.ErrorIs(t, err, ErrHookNotFound, "script hooks are scoped to Projects")
}

func TestLoadScriptRejectsWrongSignature(t *testing.T) {
	path := writeScript(t, t.TempDir(), "global.go", globalScript)
	err := NewRegistry().LoadScript(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AddShelfButtons")
}

func TestLoadScriptReportsSyntaxErrors(t *testing.T) {
	path := writeScript(t, t.TempDir(), "broken.go", "package broken\nfunc {")
	assert.Error(t, NewRegistry().LoadScript(path))
}

func TestScriptRemovalUnregisters(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "props.go", propsScript)
	r := NewRegistry()
	require.NoError(t, r.LoadScripts(dir))
	require.NotEmpty(t, r.Registrations())

	r.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Remove})

	assert.Empty(t, r.Registrations())
	_, err := r.AssetTypes(&models.Project{ID: 42})
	assert.ErrorIs(t, err, ErrHookNotFound)
}

func TestReloadReplacesScriptHooks(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "props.go", propsScript)
	r := NewRegistry()
	require.NoError(t, r.LoadScripts(dir))
	require.NoError(t, r.LoadScript(path))

	assert.Len(t, r.Registrations(), 2)
}

func TestDirs(t *testing.T) {
	value := "/a" + string(os.PathListSeparator) + " " + string(os.PathListSeparator) + "/b"
	assert.Equal(t, []string{"/a", "/b"}, Dirs(value))
	assert.Empty(t, Dirs(""))
}
