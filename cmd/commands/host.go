package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bd-pipeline/bd-loader/internal/cli"
	"github.com/bd-pipeline/bd-loader/pkg/hooks"
	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/shelf"
)

// NewShelfCommand creates the shelf command
func NewShelfCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "shelf <shelf-name>",
		Short: "Print the shelf buttons registered for a shelf",
		Long: `Ask every add_shelf_buttons hook for the buttons of a shelf and print them
as MEL shelfButton commands for the host application to source.

The loader registers its own button on shelves whose name ends with the
configured suffix (BDPipeline by default).

Examples:
  bd-loader shelf ModelingBDPipeline
  bd-loader shelf ModelingBDPipeline -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			registry, err := deps.Registry()
			if err != nil {
				return err
			}

			buttons, err := registry.ShelfButtons(args[0])
			if err != nil && !errors.Is(err, hooks.ErrHookNotFound) {
				return fmt.Errorf("failed to collect shelf buttons: %w", err)
			}
			if buttons == nil {
				buttons = []models.ShelfButton{}
			}

			if format != string(cli.FormatText) {
				return cli.OutputResults(cmd.OutOrStdout(), format, buttons)
			}
			fmt.Fprint(cmd.OutOrStdout(), shelf.MEL(buttons))
			return nil
		},
	}
}

// NewHooksCommand creates the hooks command
func NewHooksCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "List the registered hooks",
		Long: `List every hook registered from BD_HOOKPATH scripts and by the loader
itself, with the project it is scoped to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			registry, err := deps.Registry()
			if err != nil {
				return err
			}

			regs := registry.Registrations()
			if format != string(cli.FormatText) {
				return cli.OutputResults(cmd.OutOrStdout(), format, regs)
			}

			table := cli.NewTableFormatter(cmd.OutOrStdout())
			table.Header("HOOK", "PROJECT", "SOURCE")
			for _, r := range regs {
				table.Row(r.Name, cli.OrDash(r.Project), r.Source)
			}
			table.Flush()
			return nil
		},
	}
}
