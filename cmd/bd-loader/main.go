package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/cmd/commands"
	"github.com/bd-pipeline/bd-loader/internal/cli"
	"github.com/bd-pipeline/bd-loader/pkg/browser"
	"github.com/bd-pipeline/bd-loader/pkg/config"
	"github.com/bd-pipeline/bd-loader/pkg/hooks"
	"github.com/bd-pipeline/bd-loader/pkg/icons"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/metrics"
	"github.com/bd-pipeline/bd-loader/pkg/shelf"
	"github.com/bd-pipeline/bd-loader/pkg/telemetry"
	"github.com/bd-pipeline/bd-loader/pkg/tui"
	"github.com/bd-pipeline/bd-loader/pkg/workspace"
)

// Version is set during build with -ldflags
var version = "dev"

var (
	cfg             *config.Config
	shutdownTracing func(context.Context) error

	outputFormat string
	projectID    int
	metricsAddr  string
	quiet        bool
	noColor      bool
)

var rootCmd = &cobra.Command{
	Use:   "bd-loader",
	Short: "Browse the production asset catalog",
	Long: `bd-loader browses the asset catalog of a production: asset types, the assets
of each type, their icons and details. Without a subcommand it opens the
terminal browser; the subcommands run the same queries for scripts.

The catalog is reached through GraphQL (BD_GRAPHQL_HTTPS_ENDPOINT or
BD_GRAPHQL_WSS_ENDPOINT) or through hook scripts found on BD_HOOKPATH when
BD_LOADER_ACCESSOR=hooks.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cli.NewCommandContext(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		// Without a project the browser starts on the project picker.
		if _, err := c.ResolveProject(cmd.Context(), projectID); err != nil && !errors.Is(err, workspace.ErrNoContext) {
			return err
		}
		return browse(cmd.Context(), c)
	},
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the browser in the current pipeline context",
	Long: `Open the browser bound to the project and task of the current pipeline
context. This is what the shelf button runs; it refuses to open without an
active task.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wctx, err := shelf.CheckOpen(workspace.FromEnv())
		if err != nil {
			return fmt.Errorf("unable to open the loader: %w", err)
		}

		c, err := cli.NewCommandContext(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		if _, err := c.ResolveProject(cmd.Context(), wctx.Project.ID); err != nil {
			return err
		}
		logging.Info("opening loader", zap.Int("project", wctx.Project.ID), zap.String("task", wctx.Task.Name))
		return browse(cmd.Context(), c)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of bd-loader",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bd-loader version %s\n", version)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json, yaml)")
	flags.IntVarP(&projectID, "project", "p", 0, "Project id (default $BD_PROJECT_ID)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default $BD_LOADER_METRICS_ADDR)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only print results")
	flags.BoolVar(&noColor, "no-color", false, "Disable symbols in messages")

	deps := commands.Deps{
		Open: func(ctx context.Context) (*cli.CommandContext, error) {
			return cli.NewCommandContext(ctx, cfg)
		},
		Registry: func() (*hooks.Registry, error) {
			return cli.LoadRegistry(cfg)
		},
	}

	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(commands.NewTypesCommand(deps))
	rootCmd.AddCommand(commands.NewAssetsCommand(deps))
	rootCmd.AddCommand(commands.NewSearchCommand(deps))
	rootCmd.AddCommand(commands.NewDetailsCommand(deps))
	rootCmd.AddCommand(commands.NewIconCommand(deps))
	rootCmd.AddCommand(commands.NewProjectsCommand(deps))
	rootCmd.AddCommand(commands.NewLevelsCommand(deps))
	rootCmd.AddCommand(commands.NewCategoriesCommand(deps))
	rootCmd.AddCommand(commands.NewShelfCommand(deps))
	rootCmd.AddCommand(commands.NewHooksCommand(deps))
}

// ownsTerminal reports whether cmd runs the full-screen browser.
func ownsTerminal(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == openCmd
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	// The browser draws on the terminal, so only scripts log to stderr.
	if _, set := os.LookupEnv("BD_LOADER_LOG_FILE"); !set && !ownsTerminal(cmd) {
		cfg.Log.OutputPath = "stderr"
	}
	if err := logging.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	cli.SetGlobalFlags(quiet, noColor)

	shutdownTracing, err = telemetry.Initialize(cmd.Context(), telemetry.Config{
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		logging.Warn("tracing disabled", zap.Error(err))
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cmd.Context(), cfg.MetricsAddr); err != nil {
				logging.Error("metrics server stopped", zap.String("addr", cfg.MetricsAddr), zap.Error(err))
			}
		}()
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if shutdownTracing != nil {
		if err := shutdownTracing(context.Background()); err != nil {
			logging.Debug("shutdown tracing", zap.Error(err))
		}
	}
	_ = logging.Sync()
}

// browse runs the terminal browser until the user quits or ctx is done.
func browse(ctx context.Context, c *cli.CommandContext) error {
	size := cfg.Settings.Icons
	manager := icons.NewManager(c.Accessor, c.Loop, icons.Options{
		Workers: cfg.IconWorkers,
		Size:    icons.Size{Width: size.Width, Height: size.Height, Radius: size.Radius},
	})
	manager.Start()
	defer manager.Stop()

	if len(cfg.HookPath) > 0 {
		if err := c.Registry.Watch(ctx, cfg.HookPath...); err != nil {
			logging.Warn("hook scripts are not reloaded on change", zap.Error(err))
		}
	}

	var projects tui.ProjectLister
	if c.Catalog != nil {
		projects = c.Catalog
	}
	b := browser.New(c.Accessor, manager, c.Registry)
	app := tui.NewApp(ctx, c.Loop, b, tui.Options{
		Settings: cfg.Settings,
		Projects: projects,
		Version:  version,
	})
	if err := tui.Run(ctx, app); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to start the terminal user interface: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cli.PrintError("%v", err)
		stop()
		os.Exit(1)
	}
}
