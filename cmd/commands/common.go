package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bd-pipeline/bd-loader/internal/cli"
	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/proxy"
)

// Deps is what the subcommands need from the entry point.
type Deps struct {
	// Open connects the catalog.
	Open cli.Opener
	// Registry loads the hooks without connecting the catalog.
	Registry cli.RegistryLoader
}

// AssetOutput is one asset row.
type AssetOutput struct {
	ID       string `json:"id" yaml:"id"`
	Type     string `json:"type" yaml:"type"`
	Level    string `json:"level,omitempty" yaml:"level,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Name     string `json:"name" yaml:"name"`
	FullName string `json:"fullname" yaml:"fullname"`
}

// AssetListOutput is the result of assets and search.
type AssetListOutput struct {
	Project string        `json:"project" yaml:"project"`
	Query   string        `json:"query" yaml:"query"`
	Count   int           `json:"count" yaml:"count"`
	Assets  []AssetOutput `json:"assets" yaml:"assets"`
}

// NameListOutput is the result of types, levels and categories.
type NameListOutput struct {
	Project string   `json:"project" yaml:"project"`
	Type    string   `json:"type,omitempty" yaml:"type,omitempty"`
	Count   int      `json:"count" yaml:"count"`
	Names   []string `json:"names" yaml:"names"`
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	if format == "" {
		format = string(cli.FormatText)
	}
	return format, cli.ValidateOutputFormat(format)
}

// session connects the catalog and activates the project selected by
// --project or by the workspace context.
func session(cmd *cobra.Command, deps Deps) (*cli.CommandContext, *models.Project, error) {
	id, _ := cmd.Flags().GetInt("project")
	if err := cli.ValidateProjectID(id); err != nil {
		return nil, nil, err
	}
	c, err := deps.Open(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	project, err := c.ResolveProject(cmd.Context(), id)
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("no project: %w", err)
	}
	return c, project, nil
}

func projectLabel(p *models.Project) string {
	if p.Title != "" {
		return p.Title
	}
	return p.Key()
}

func toAssetOutputs(assets []*models.AssetInfo) []AssetOutput {
	sorted := append([]*models.AssetInfo(nil), assets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return proxy.NaturalLess(sorted[i].Type, sorted[j].Type)
		}
		return proxy.NaturalLess(sorted[i].Name, sorted[j].Name)
	})

	out := make([]AssetOutput, 0, len(sorted))
	for _, a := range sorted {
		out = append(out, AssetOutput{
			ID:       a.ID.String(),
			Type:     a.Type,
			Level:    a.Level,
			Category: a.Category,
			Name:     a.Name,
			FullName: a.FullName(),
		})
	}
	return out
}

func printAssets(cmd *cobra.Command, format string, result AssetListOutput) error {
	if format != string(cli.FormatText) {
		return cli.OutputResults(cmd.OutOrStdout(), format, result)
	}
	out := cmd.OutOrStdout()
	if result.Count == 0 {
		fmt.Fprintf(out, "No assets found for %s in %s.\n", result.Query, result.Project)
		return nil
	}
	table := cli.NewTableFormatter(out)
	table.Header("ID", "TYPE", "LEVEL", "CATEGORY", "NAME")
	for _, a := range result.Assets {
		table.Row(a.ID, a.Type, cli.OrDash(a.Level), cli.OrDash(a.Category), a.Name)
	}
	table.Flush()
	fmt.Fprintf(out, "\n%d asset%s\n", result.Count, plural(result.Count))
	return nil
}

func printNames(cmd *cobra.Command, format, what string, result NameListOutput) error {
	if format != string(cli.FormatText) {
		return cli.OutputResults(cmd.OutOrStdout(), format, result)
	}
	out := cmd.OutOrStdout()
	if result.Count == 0 {
		fmt.Fprintf(out, "No %s found in %s.\n", what, result.Project)
		return nil
	}
	fmt.Fprintln(out, strings.Join(result.Names, "\n"))
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// findAsset looks up the asset named name among the assets of assetType.
func findAsset(ctx context.Context, c *cli.CommandContext, assetType, name string) (*models.AssetInfo, error) {
	assets, err := cli.Await(ctx, c, func(cb func([]*models.AssetInfo)) {
		c.Accessor.RequestAssets(models.AssetQuery{Type: assetType}, cb)
	})
	if err != nil {
		return nil, fmt.Errorf("list %s assets: %w", assetType, err)
	}
	var matches []*models.AssetInfo
	for _, a := range assets {
		if a.Name == name || a.FullName() == name {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("asset not found: %s %s", assetType, name)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("multiple %s assets named '%s'. Please use the full name (e.g., %s)", assetType, name, matches[0].FullName())
	}
}
