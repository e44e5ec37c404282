package commands

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bd-pipeline/bd-loader/internal/cli"
	"github.com/bd-pipeline/bd-loader/pkg/icons"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// DetailsOutput is the result of the details command.
type DetailsOutput struct {
	ID           string    `json:"id" yaml:"id"`
	FullName     string    `json:"fullname" yaml:"fullname"`
	Version      int       `json:"version" yaml:"version"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	ModifiedAt   time.Time `json:"modified_at" yaml:"modified_at"`
	HasThumbnail bool      `json:"has_thumbnail" yaml:"has_thumbnail"`
}

// NewDetailsCommand creates the details command
func NewDetailsCommand(deps Deps) *cobra.Command {
	var thumbnail string

	cmd := &cobra.Command{
		Use:   "details <type> <name>",
		Short: "Show the details of an asset",
		Long: `Show the full name, version and timestamps of an asset.

The name is either the asset name or its full name when several assets of
the type share a name.

Examples:
  bd-loader details Prop cup2
  bd-loader details Prop Prop_L1_kitchen_cup2 -o json
  bd-loader details Set street --thumbnail street.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			c, _, err := session(cmd, deps)
			if err != nil {
				return err
			}
			defer c.Close()

			asset, err := findAsset(cmd.Context(), c, args[0], args[1])
			if err != nil {
				return err
			}
			details, err := cli.Await(cmd.Context(), c, func(cb func(*models.AssetDetails)) {
				c.Accessor.RequestAssetDetails(asset, cb)
			})
			if err != nil {
				return fmt.Errorf("failed to load details: %w", err)
			}
			if details == nil {
				return fmt.Errorf("no details for %s", asset.FullName())
			}

			if thumbnail != "" {
				if details.Thumbnail == nil {
					cli.PrintWarning("%s has no thumbnail", asset.FullName())
				} else if err := saveImage(details.Thumbnail, thumbnail); err != nil {
					return err
				}
			}

			result := DetailsOutput{
				ID:           asset.ID.String(),
				FullName:     details.FullName,
				Version:      details.Version,
				CreatedAt:    details.CreatedAt,
				ModifiedAt:   details.ModifiedAt,
				HasThumbnail: details.Thumbnail != nil,
			}
			if result.FullName == "" {
				result.FullName = asset.FullName()
			}
			if format != string(cli.FormatText) {
				return cli.OutputResults(cmd.OutOrStdout(), format, result)
			}
			return printDetails(cmd, result)
		},
	}

	cmd.Flags().StringVar(&thumbnail, "thumbnail", "", "Write the thumbnail to this file")

	return cmd
}

func printDetails(cmd *cobra.Command, d DetailsOutput) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name: %s\n", d.FullName)
	fmt.Fprintf(out, "ID: %s\n", d.ID)
	fmt.Fprintf(out, "Version: %d\n", d.Version)
	fmt.Fprintf(out, "Created: %s\n", when(d.CreatedAt))
	fmt.Fprintf(out, "Modified: %s\n", when(d.ModifiedAt))
	return nil
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04"), humanize.Time(t))
}

// NewIconCommand creates the icon command
func NewIconCommand(deps Deps) *cobra.Command {
	var (
		output string
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "icon <type> <name>",
		Short: "Write the icon of an asset to a file",
		Long: `Fetch the icon of an asset and write it to a file.

The icon is cropped, scaled and rounded the way the browser shows it unless
--raw is given. The file format follows the extension.

Examples:
  bd-loader icon Prop cup2
  bd-loader icon Prop cup2 --file cup2.jpg --raw`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := session(cmd, deps)
			if err != nil {
				return err
			}
			defer c.Close()

			asset, err := findAsset(cmd.Context(), c, args[0], args[1])
			if err != nil {
				return err
			}
			icon, err := c.Accessor.LoadAssetIcon(cmd.Context(), asset)
			if err != nil {
				return fmt.Errorf("failed to load icon: %w", err)
			}
			if icon == nil {
				return fmt.Errorf("%s has no icon", asset.FullName())
			}
			if !raw {
				s := c.Config.Settings.Icons
				icon = icons.Process(icon, icons.Size{Width: s.Width, Height: s.Height, Radius: s.Radius})
			}

			if output == "" {
				output = asset.FullName() + ".png"
			}
			if err := saveImage(icon, output); err != nil {
				return err
			}
			if info, err := os.Stat(output); err == nil {
				cli.PrintSuccess("Wrote %s (%s)", output, cli.FormatBytes(info.Size()))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "file", "f", "", "Output file (default <fullname>.png)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Write the icon as stored")

	return cmd
}

func saveImage(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
