package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-pipeline/bd-loader/pkg/graphql"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

func lookup(values map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), lookup(nil))
	require.NoError(t, err)

	assert.Equal(t, graphql.TransportHTTPS, cfg.GraphQL.Transport)
	assert.Equal(t, 84000*time.Second, cfg.GraphQL.CacheTTL)
	assert.Equal(t, []string{"POST", "GET", "HEAD"}, cfg.GraphQL.CacheMethods)
	assert.Equal(t, AccessorGraphQL, cfg.Accessor)
	assert.Equal(t, 12, cfg.IconWorkers)
	assert.Empty(t, cfg.SettingsPath)
	assert.Equal(t, "token.json", filepath.Base(cfg.Auth.TokenFile))
}

func TestLoadEnvironment(t *testing.T) {
	sep := string(os.PathListSeparator)
	cfg, err := LoadFrom(t.TempDir(), lookup(map[string]string{
		"BD_GRAPHQL_HTTPS_ENDPOINT":      "https://catalog/v1/graphql",
		"BD_GRAPHQL_TRANSPORT":           "wss",
		"BD_GRAPHQL_WSS_ENDPOINT":        "wss://catalog/v1/graphql",
		"BD_API_CACHE_EXPIRE_TIME":       "60",
		"BD_API_CACHE_ALLOWABLE_METHODS": "post, ws",
		"BD_AUTH0_DOMAIN":                "studio.auth0.com",
		"BD_AUTH0_CLIENT_ID":             "loader",
		"BD_API_TOKEN":                   "static",
		"BD_HOOKPATH":                    "/a" + sep + " " + sep + "/b",
		"BD_LOADER_ACCESSOR":             "hooks",
		"BD_LOADER_ICON_WORKERS":         "4",
		"BD_LOADER_LOG_LEVEL":            "debug",
		"OTEL_EXPORTER_OTLP_ENDPOINT":    "localhost:4318",
	}))
	require.NoError(t, err)

	assert.Equal(t, "wss", cfg.GraphQL.Transport)
	assert.Equal(t, time.Minute, cfg.GraphQL.CacheTTL)
	assert.Equal(t, []string{"post", "ws"}, cfg.GraphQL.CacheMethods)
	assert.Equal(t, "studio.auth0.com", cfg.Auth.Domain)
	assert.Equal(t, "static", cfg.Auth.Token)
	assert.Equal(t, []string{"/a", "/b"}, cfg.HookPath)
	assert.Equal(t, AccessorHooks, cfg.Accessor)
	assert.Equal(t, 4, cfg.IconWorkers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"ttl not a number", map[string]string{"BD_API_CACHE_EXPIRE_TIME": "soon"}},
		{"workers not a number", map[string]string{"BD_LOADER_ICON_WORKERS": "many"}},
		{"unknown accessor", map[string]string{"BD_LOADER_ACCESSOR": "sql"}},
		{"unknown transport", map[string]string{"BD_GRAPHQL_TRANSPORT": "grpc"}},
		{"negative workers", map[string]string{"BD_LOADER_REQUEST_WORKERS": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(t.TempDir(), lookup(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestSettingsFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(`
catalog:
  accessor: hooks
  excluded_projects: [Archive]
icons:
  workers: 6
`), 0o644))

	cfg, err := LoadFrom(dir, lookup(nil))
	require.NoError(t, err)
	assert.Equal(t, AccessorHooks, cfg.Accessor)
	assert.Equal(t, 6, cfg.IconWorkers)
	assert.Equal(t, []string{"Archive"}, cfg.Settings.Catalog.ExcludedProjects)
	assert.Equal(t, "BDPipeline", cfg.Settings.Shelf.Suffix, "unset keys keep their defaults")

	cfg, err = LoadFrom(dir, lookup(map[string]string{"BD_LOADER_ICON_WORKERS": "2"}))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.IconWorkers, "environment wins over the settings file")
}

func TestReadSettingsTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.toml"), []byte(`
[shelf]
suffix = "Pipeline"

[icons]
width = 64
`), 0o644))

	settings, path, err := ReadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "settings.toml"), path)
	assert.Equal(t, "Pipeline", settings.Shelf.Suffix)
	assert.Equal(t, 64, settings.Icons.Width)
	assert.Equal(t, 58, settings.Icons.Height)
}

func TestReadSettingsInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("icons: ["), 0o644))

	_, _, err := ReadSettings(dir)
	assert.Error(t, err)
}

func TestWriteSettingsRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	settings := models.DefaultSettings()
	settings.UI.ShowDetails = false

	path, err := WriteSettings(dir, settings)
	require.NoError(t, err)

	got, gotPath, err := ReadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, path, gotPath)
	assert.Equal(t, settings, got)
}
