package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bd-pipeline/bd-loader/internal/cli"
	"github.com/bd-pipeline/bd-loader/pkg/accessor"
	"github.com/bd-pipeline/bd-loader/pkg/config"
	"github.com/bd-pipeline/bd-loader/pkg/hooks"
	"github.com/bd-pipeline/bd-loader/pkg/mainloop"
	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/runner"
	"github.com/bd-pipeline/bd-loader/pkg/workspace"
)

var catalog = []*models.AssetInfo{
	{ID: "1", Type: "Prop", Level: "L1", Category: "kitchen", Name: "cup10"},
	{ID: "2", Type: "Prop", Level: "L1", Category: "kitchen", Name: "cup2"},
	{ID: "3", Type: "Set", Name: "street"},
	{ID: "4", Type: "Prop", Level: "L1", Name: "chair"},
	{ID: "5", Type: "Prop", Level: "L2", Name: "chair"},
}

var created = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

// catalogHooks serves the fixture catalog through the hook accessor.
func catalogHooks(t *testing.T) *hooks.Registry {
	t.Helper()
	reg := hooks.NewRegistry()
	require.NoError(t, reg.Add(hooks.GetAssetTypes, func(context.Context, *models.Project) ([]string, error) {
		return []string{"Prop", "Set"}, nil
	}))
	require.NoError(t, reg.Add(hooks.GetAssets, func(_ context.Context, _ *models.Project, q models.AssetQuery) ([]*models.AssetInfo, error) {
		var out []*models.AssetInfo
		for _, a := range catalog {
			if a.Type == q.Type && (q.Level == "" || a.Level == q.Level) && (q.Category == "" || a.Category == q.Category) {
				out = append(out, a)
			}
		}
		return out, nil
	}))
	require.NoError(t, reg.Add(hooks.GetAssetsByRegex, func(_ context.Context, _ *models.Project, pattern string) ([]*models.AssetInfo, error) {
		re := regexp.MustCompile(pattern)
		var out []*models.AssetInfo
		for _, a := range catalog {
			if re.MatchString(a.Name) {
				out = append(out, a)
			}
		}
		return out, nil
	}))
	require.NoError(t, reg.Add(hooks.GetAssetsDetails, func(_ context.Context, _ *models.Project, a *models.AssetInfo) (*models.AssetDetails, error) {
		return &models.AssetDetails{FullName: a.FullName(), Version: 3, CreatedAt: created}, nil
	}))
	require.NoError(t, reg.Add(hooks.LoadAssetIcon, func(context.Context, *models.Project, *models.AssetInfo) (image.Image, error) {
		return imaging.New(40, 20, color.NRGBA{G: 200, A: 255}), nil
	}))
	return reg
}

func testConfig() *config.Config {
	return &config.Config{Settings: models.DefaultSettings()}
}

func hookDeps(t *testing.T) Deps {
	t.Helper()
	reg := catalogHooks(t)
	cfg := testConfig()
	return Deps{
		Open: func(context.Context) (*cli.CommandContext, error) {
			loop := mainloop.New()
			r := runner.New(loop, 2)
			return cli.WithAccessor(cfg, loop, r, reg, accessor.NewHookAccessor(reg, r)), nil
		},
		Registry: func() (*hooks.Registry, error) {
			return cli.LoadRegistry(cfg)
		},
	}
}

// run executes cmd with the flags the root command normally provides.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cmd.Flags().StringP("output", "o", "text", "Output format")
	cmd.Flags().Int("project", 0, "Project id")

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	err := cmd.Execute()
	return buf.String(), err
}

func inProject(t *testing.T) {
	t.Setenv(workspace.ProjectIDEnv, "42")
	t.Setenv(workspace.ProjectEnv, "Tales")
}

func TestTypesCommand(t *testing.T) {
	inProject(t)

	out, err := run(t, NewTypesCommand(hookDeps(t)))
	require.NoError(t, err)
	assert.Equal(t, "Prop\nSet\n", out)

	out, err = run(t, NewTypesCommand(hookDeps(t)), "-o", "json")
	require.NoError(t, err)
	var result NameListOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, NameListOutput{Project: "Tales", Count: 2, Names: []string{"Prop", "Set"}}, result)
}

func TestCommandsNeedAProject(t *testing.T) {
	t.Setenv(workspace.ProjectIDEnv, "")

	_, err := run(t, NewTypesCommand(hookDeps(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no project")
	assert.ErrorIs(t, err, workspace.ErrNoContext)

	_, err = run(t, NewTypesCommand(hookDeps(t)), "--project", "-3")
	assert.Error(t, err)
}

func TestProjectFlagOverridesContext(t *testing.T) {
	inProject(t)

	out, err := run(t, NewTypesCommand(hookDeps(t)), "--project", "7", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "project: \"7\"")
}

func TestAssetsCommand(t *testing.T) {
	inProject(t)

	tests := []struct {
		name     string
		args     []string
		contains []string
		excludes []string
	}{
		{
			name:     "every asset of a type",
			args:     []string{"Prop"},
			contains: []string{"ID", "CATEGORY", "cup2", "cup10", "chair", "4 assets"},
			excludes: []string{"street"},
		},
		{
			name:     "narrowed to a level",
			args:     []string{"Prop", "--level", "L2"},
			contains: []string{"chair", "1 asset\n"},
			excludes: []string{"cup2"},
		},
		{
			name:     "narrowed to a category",
			args:     []string{"Prop", "-c", "kitchen"},
			contains: []string{"cup2", "cup10", "2 assets"},
			excludes: []string{"chair"},
		},
		{
			name:     "nothing found",
			args:     []string{"Vehicle"},
			contains: []string{"No assets found for Vehicle in Tales."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, NewAssetsCommand(hookDeps(t)), tt.args...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestAssetsCommandNaturalOrder(t *testing.T) {
	inProject(t)

	out, err := run(t, NewAssetsCommand(hookDeps(t)), "Prop", "-c", "kitchen", "-o", "json")
	require.NoError(t, err)

	var result AssetListOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Assets, 2)
	assert.Equal(t, "cup2", result.Assets[0].Name)
	assert.Equal(t, "cup10", result.Assets[1].Name)
	assert.Equal(t, "Prop_L1_kitchen_cup10", result.Assets[1].FullName)
}

func TestSearchCommand(t *testing.T) {
	inProject(t)

	out, err := run(t, NewSearchCommand(hookDeps(t)), "^cup", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "count: 2")
	assert.Contains(t, out, "query: ^cup")

	_, err = run(t, NewSearchCommand(hookDeps(t)), "cup(")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid search pattern")
}

func TestDetailsCommand(t *testing.T) {
	inProject(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr string
	}{
		{"by name", []string{"Prop", "cup2"}, []string{"Name: Prop_L1_kitchen_cup2", "ID: 2", "Version: 3", "Created: 2024-01-0", "Modified: -"}, ""},
		{"by full name", []string{"Prop", "Prop_L2_chair"}, []string{"ID: 5"}, ""},
		{"ambiguous name", []string{"Prop", "chair"}, nil, "multiple Prop assets named 'chair'"},
		{"unknown asset", []string{"Prop", "lamp"}, nil, "asset not found: Prop lamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, NewDetailsCommand(hookDeps(t)), tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestDetailsCommandJSON(t *testing.T) {
	inProject(t)

	out, err := run(t, NewDetailsCommand(hookDeps(t)), "Set", "street", "-o", "json")
	require.NoError(t, err)

	var result DetailsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "Set_street", result.FullName)
	assert.Equal(t, 3, result.Version)
	assert.True(t, created.Equal(result.CreatedAt))
	assert.False(t, result.HasThumbnail)
}

func TestIconCommand(t *testing.T) {
	inProject(t)
	dir := t.TempDir()

	tests := []struct {
		name          string
		args          []string
		width, height int
	}{
		{"processed to the icon footprint", []string{"--file", filepath.Join(dir, "cup2.png")}, 103, 58},
		{"raw", []string{"--file", filepath.Join(dir, "raw.png"), "--raw"}, 40, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, NewIconCommand(hookDeps(t)), append([]string{"Prop", "cup2"}, tt.args...)...)
			require.NoError(t, err)

			img, err := imaging.Open(tt.args[1])
			require.NoError(t, err)
			assert.Equal(t, tt.width, img.Bounds().Dx())
			assert.Equal(t, tt.height, img.Bounds().Dy())
		})
	}
}

func TestCatalogCommandsNeedGraphQL(t *testing.T) {
	inProject(t)

	for _, cmd := range []*cobra.Command{
		NewLevelsCommand(hookDeps(t)),
		NewCategoriesCommand(hookDeps(t)),
	} {
		_, err := run(t, cmd, "Prop")
		assert.ErrorIs(t, err, cli.ErrCatalogRequired, cmd.Name())
	}
	_, err := run(t, NewProjectsCommand(hookDeps(t)))
	assert.ErrorIs(t, err, cli.ErrCatalogRequired)
}

func TestShelfCommand(t *testing.T) {
	out, err := run(t, NewShelfCommand(hookDeps(t)), "ModelingBDPipeline")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `shelfButton -parent "ModelingBDPipeline" -label "Loader"`), out)
	assert.Contains(t, out, `system(\"bd-loader open &\")`)

	out, err = run(t, NewShelfCommand(hookDeps(t)), "Custom")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, NewShelfCommand(hookDeps(t)), "Custom", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestHooksCommand(t *testing.T) {
	out, err := run(t, NewHooksCommand(hookDeps(t)))
	require.NoError(t, err)
	assert.Contains(t, out, "HOOK")
	assert.Contains(t, out, hooks.AddShelfButtons)
	assert.Contains(t, out, "builtin")
}

// fakeCatalog answers GraphQL operations by name.
type fakeCatalog map[string]string

var operation = regexp.MustCompile(`query (\w+)`)

func (f fakeCatalog) Execute(_ context.Context, query string, _ map[string]any, out any) error {
	op := operation.FindStringSubmatch(query)[1]
	data, ok := f[op]
	if !ok {
		return fmt.Errorf("unexpected operation %s", op)
	}
	return json.Unmarshal([]byte(data), out)
}

func graphQLDeps(responses fakeCatalog) Deps {
	cfg := testConfig()
	cfg.Settings.Catalog.ExcludedProjects = []string{"Archive"}
	return Deps{
		Open: func(context.Context) (*cli.CommandContext, error) {
			loop := mainloop.New()
			r := runner.New(loop, 2)
			return cli.WithAccessor(cfg, loop, r, hooks.NewRegistry(), accessor.NewGraphQLAccessor(responses, r)), nil
		},
	}
}

func TestProjectsCommand(t *testing.T) {
	deps := graphQLDeps(fakeCatalog{
		"GetProjects": `{"projects":[{"id":42,"title":"Tales","thumbnail":""},{"id":7,"title":"Legends","thumbnail":null}]}`,
	})

	out, err := run(t, NewProjectsCommand(deps))
	require.NoError(t, err)
	assert.Contains(t, out, "ID  TITLE")
	assert.Contains(t, out, "42  Tales")
	assert.Contains(t, out, "7   Legends")
}

func TestLevelsAndCategoriesCommands(t *testing.T) {
	deps := graphQLDeps(fakeCatalog{
		"GetProjects":        `{"projects":[{"id":42,"title":"Tales"}]}`,
		"GetAssetLevels":     `{"assets":[{"level":"L1"},{"level":"L2"},{"level":null}]}`,
		"GetAssetCategories": `{"assets":[{"category":"kitchen"}]}`,
	})

	out, err := run(t, NewLevelsCommand(deps), "Prop", "--project", "42")
	require.NoError(t, err)
	assert.Equal(t, "L1\nL2\n", out)

	out, err = run(t, NewCategoriesCommand(deps), "Prop", "--project", "42")
	require.NoError(t, err)
	assert.Equal(t, "kitchen\n", out)

	out, err = run(t, NewCategoriesCommand(deps), "CHR", "--project", "42")
	require.NoError(t, err)
	assert.Equal(t, "No categories found in Tales.\n", out)
}
