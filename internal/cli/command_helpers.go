package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/accessor"
	"github.com/bd-pipeline/bd-loader/pkg/config"
	"github.com/bd-pipeline/bd-loader/pkg/graphql"
	"github.com/bd-pipeline/bd-loader/pkg/hooks"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/mainloop"
	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/runner"
	"github.com/bd-pipeline/bd-loader/pkg/shelf"
	"github.com/bd-pipeline/bd-loader/pkg/workspace"
)

// ErrNoResult is returned by Await when every request finished without
// delivering a result. The failure itself is in the log.
var ErrNoResult = errors.New("request did not complete, see the log for details")

// ErrCatalogRequired is returned by commands that need the GraphQL catalog
// while the hook accessor is selected.
var ErrCatalogRequired = errors.New("this command needs the graphql accessor")

// CommandContext is the loader runtime shared by the browser and the
// subcommands.
type CommandContext struct {
	Config   *config.Config
	Loop     *mainloop.Loop
	Runner   *runner.Runner
	Registry *hooks.Registry
	Accessor accessor.Accessor
	// Catalog is set when Accessor is backed by GraphQL.
	Catalog *accessor.GraphQLAccessor

	client *graphql.Client
}

// Opener builds the context for one command run.
type Opener func(ctx context.Context) (*CommandContext, error)

// RegistryLoader builds the hook registry without connecting the catalog.
type RegistryLoader func() (*hooks.Registry, error)

// LoadRegistry loads the hook scripts on cfg.HookPath and registers the
// shelf button hook. Scripts that fail to load are logged and skipped.
func LoadRegistry(cfg *config.Config) (*hooks.Registry, error) {
	registry := hooks.NewRegistry()
	if len(cfg.HookPath) > 0 {
		if err := registry.LoadScripts(cfg.HookPath...); err != nil {
			logging.Warn("unable to load every hook script", zap.Error(err))
		}
	}
	if err := shelf.Register(registry, cfg.Settings.Shelf, ""); err != nil {
		return nil, fmt.Errorf("register shelf hook: %w", err)
	}
	return registry, nil
}

// NewCommandContext loads the hook registry and connects the accessor
// selected by cfg.
func NewCommandContext(ctx context.Context, cfg *config.Config) (*CommandContext, error) {
	registry, err := LoadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	loop := mainloop.New()
	r := runner.New(loop, cfg.RequestWorkers)

	if cfg.Accessor == config.AccessorHooks {
		return WithAccessor(cfg, loop, r, registry, accessor.NewHookAccessor(registry, r)), nil
	}

	tokens, err := graphql.TokenSource(ctx, cfg.Auth)
	if err != nil {
		r.Shutdown()
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	client, err := graphql.Dial(ctx, cfg.GraphQL, tokens)
	if err != nil {
		r.Shutdown()
		return nil, fmt.Errorf("connect to catalog: %w", err)
	}
	c := WithAccessor(cfg, loop, r, registry, accessor.NewGraphQLAccessor(client, r))
	c.client = client
	return c, nil
}

// WithAccessor assembles a context around acc. acc must deliver through r,
// and r through loop.
func WithAccessor(cfg *config.Config, loop *mainloop.Loop, r *runner.Runner, registry *hooks.Registry, acc accessor.Accessor) *CommandContext {
	c := &CommandContext{
		Config:   cfg,
		Loop:     loop,
		Runner:   r,
		Registry: registry,
		Accessor: acc,
	}
	if catalog, ok := acc.(*accessor.GraphQLAccessor); ok {
		c.Catalog = catalog
	}
	return c
}

// Close stops the runner, drops undelivered results and closes the session.
func (c *CommandContext) Close() {
	c.Runner.Shutdown()
	c.Loop.Close()
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			logging.Debug("close graphql client", zap.Error(err))
		}
	}
}

// RequireCatalog returns the GraphQL accessor or ErrCatalogRequired.
func (c *CommandContext) RequireCatalog() (*accessor.GraphQLAccessor, error) {
	if c.Catalog == nil {
		return nil, ErrCatalogRequired
	}
	return c.Catalog, nil
}

// ResolveProject activates the project with id, or the project of the
// workspace context when id is zero. The title is looked up in the catalog
// when it is not known.
func (c *CommandContext) ResolveProject(ctx context.Context, id int) (*models.Project, error) {
	var project *models.Project
	if id != 0 {
		project = &models.Project{ID: id}
	} else {
		wctx, err := workspace.FromEnv()
		if err != nil {
			return nil, fmt.Errorf("pass --project or set %s: %w", workspace.ProjectIDEnv, err)
		}
		project = wctx.Project
	}

	if project.Title == "" && c.Catalog != nil {
		projects, err := c.Catalog.GetProjects(ctx, nil)
		if err != nil {
			logging.Warn("unable to look up project title", zap.Int("project", project.ID), zap.Error(err))
		}
		for _, p := range projects {
			if p.ID == project.ID {
				project = p
				break
			}
		}
	}

	c.Accessor.SetActiveProject(project)
	return project, nil
}

// Await issues request and runs the loop on the calling goroutine until its
// callback fires. A request that fails never calls back, so Await gives up
// with ErrNoResult once the runner has nothing left to do.
func Await[T any](ctx context.Context, c *CommandContext, request func(cb func(T))) (T, error) {
	var (
		result T
		done   bool
	)
	request(func(v T) {
		result = v
		done = true
	})

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		c.Runner.Wait()
		cancel()
	}()

	for !done {
		fn, ok := c.Loop.Wait(waitCtx)
		if !ok {
			break
		}
		fn()
	}
	c.Loop.RunPending()

	if done {
		return result, nil
	}
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, ErrNoResult
}
