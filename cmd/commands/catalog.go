package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bd-pipeline/bd-loader/internal/cli"
	"github.com/bd-pipeline/bd-loader/pkg/accessor"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// NewTypesCommand creates the types command
func NewTypesCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the asset types of the project",
		Long: `List the asset types of the active project.

The project is taken from --project, or from BD_PROJECT_ID when the loader
runs inside a pipeline context.

Examples:
  bd-loader types
  bd-loader types --project 42 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			c, project, err := session(cmd, deps)
			if err != nil {
				return err
			}
			defer c.Close()

			types, err := cli.Await(cmd.Context(), c, c.Accessor.RequestAssetTypes)
			if err != nil {
				return fmt.Errorf("failed to list asset types: %w", err)
			}
			return printNames(cmd, format, "asset types", NameListOutput{
				Project: projectLabel(project),
				Count:   len(types),
				Names:   types,
			})
		},
	}
}

// NewAssetsCommand creates the assets command
func NewAssetsCommand(deps Deps) *cobra.Command {
	var query models.AssetQuery

	cmd := &cobra.Command{
		Use:   "assets <type>",
		Short: "List the assets of a type",
		Long: `List the assets of one type, optionally narrowed to a level and a category.

Examples:
  bd-loader assets Prop
  bd-loader assets Prop --level L1 --category kitchen
  bd-loader assets Set -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			if err := cli.ValidateAssetType(args[0]); err != nil {
				return err
			}
			query.Type = args[0]

			c, project, err := session(cmd, deps)
			if err != nil {
				return err
			}
			defer c.Close()

			assets, err := cli.Await(cmd.Context(), c, func(cb func([]*models.AssetInfo)) {
				c.Accessor.RequestAssets(query, cb)
			})
			if err != nil {
				return fmt.Errorf("failed to list assets: %w", err)
			}
			return printAssets(cmd, format, AssetListOutput{
				Project: projectLabel(project),
				Query:   query.Type,
				Count:   len(assets),
				Assets:  toAssetOutputs(assets),
			})
		},
	}

	cmd.Flags().StringVarP(&query.Level, "level", "l", "", "Only assets of this level")
	cmd.Flags().StringVarP(&query.Category, "category", "c", "", "Only assets of this category")

	return cmd
}

// NewSearchCommand creates the search command
func NewSearchCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "search <pattern>",
		Short: "Search assets by name",
		Long: `Search every asset of the project whose name matches a regular expression.

This is the query the browser filter runs when text is applied.

Examples:
  bd-loader search cup
  bd-loader search '^cup[0-9]+$' -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			pattern := args[0]
			if err := cli.ValidatePattern(pattern); err != nil {
				return err
			}

			c, project, err := session(cmd, deps)
			if err != nil {
				return err
			}
			defer c.Close()

			assets, err := cli.Await(cmd.Context(), c, func(cb func([]*models.AssetInfo)) {
				c.Accessor.RequestAssetsByRegex(pattern, cb)
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return printAssets(cmd, format, AssetListOutput{
				Project: projectLabel(project),
				Query:   pattern,
				Count:   len(assets),
				Assets:  toAssetOutputs(assets),
			})
		},
	}
}

// NewLevelsCommand creates the levels command
func NewLevelsCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "levels <type>",
		Short: "List the levels used by an asset type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			assetType := args[0]
			if err := cli.ValidateAssetType(assetType); err != nil {
				return err
			}

			c, project, err := session(cmd, deps)
			if err != nil {
				return err
			}
			defer c.Close()

			catalog, err := c.RequireCatalog()
			if err != nil {
				return err
			}
			levels, err := cli.Await(cmd.Context(), c, func(cb func([]string)) {
				catalog.RequestAssetLevels(assetType, cb)
			})
			if err != nil {
				return fmt.Errorf("failed to list levels: %w", err)
			}
			return printNames(cmd, format, "levels", NameListOutput{
				Project: projectLabel(project),
				Type:    assetType,
				Count:   len(levels),
				Names:   levels,
			})
		},
	}
}

// NewCategoriesCommand creates the categories command
func NewCategoriesCommand(deps Deps) *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "categories <type>",
		Short: "List the categories used by an asset type",
		Long: `List the categories used by an asset type.

Characters and environment levels are not grouped in categories.

Examples:
  bd-loader categories Prop
  bd-loader categories Set --level L2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			assetType := args[0]
			if err := cli.ValidateAssetType(assetType); err != nil {
				return err
			}

			c, project, err := session(cmd, deps)
			if err != nil {
				return err
			}
			defer c.Close()

			catalog, err := c.RequireCatalog()
			if err != nil {
				return err
			}
			result := NameListOutput{Project: projectLabel(project), Type: assetType, Names: []string{}}
			if accessor.HasCategories(assetType, level) {
				categories, err := cli.Await(cmd.Context(), c, func(cb func([]string)) {
					catalog.RequestAssetCategories(assetType, level, cb)
				})
				if err != nil {
					return fmt.Errorf("failed to list categories: %w", err)
				}
				result.Names = categories
				result.Count = len(categories)
			}
			return printNames(cmd, format, "categories", result)
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", "", "Level the assets belong to")

	return cmd
}

// ProjectOutput is one row of the projects command.
type ProjectOutput struct {
	ID           int    `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	HasThumbnail bool   `json:"has_thumbnail" yaml:"has_thumbnail"`
}

// NewProjectsCommand creates the projects command
func NewProjectsCommand(deps Deps) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List the active projects",
		Long: `List the active projects of the catalog.

Projects listed under catalog.excluded_projects in the settings file are
hidden unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			c, err := deps.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			catalog, err := c.RequireCatalog()
			if err != nil {
				return err
			}
			var excluded []string
			if !all {
				excluded = c.Config.Settings.Catalog.ExcludedProjects
			}
			projects, err := catalog.GetProjects(cmd.Context(), excluded)
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			rows := make([]ProjectOutput, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, ProjectOutput{ID: p.ID, Title: p.Title, HasThumbnail: p.Thumbnail != nil})
			}
			if format != string(cli.FormatText) {
				return cli.OutputResults(cmd.OutOrStdout(), format, rows)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No active projects.")
				return nil
			}
			table := cli.NewTableFormatter(out)
			table.Header("ID", "TITLE")
			for _, r := range rows {
				table.Row(strconv.Itoa(r.ID), r.Title)
			}
			table.Flush()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include excluded projects")

	return cmd
}
