package accessor

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/hooks"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/runner"
)

// HookAccessor resolves every request through the hook registry for the
// active project.
type HookAccessor struct {
	scope
	registry *hooks.Registry
}

// NewHookAccessor creates an accessor backed by registry.
func NewHookAccessor(registry *hooks.Registry, r *runner.Runner) *HookAccessor {
	a := &HookAccessor{registry: registry}
	a.runner = r
	a.log = logging.Named("accessor.hooks")
	return a
}

// missing reports whether err means no hook is registered. Such results are
// empty, not failures.
func (a *HookAccessor) missing(name string, err error) bool {
	if errors.Is(err, hooks.ErrHookNotFound) || errors.Is(err, hooks.ErrHooksNotLoaded) {
		a.log.Debug("hook unavailable", zap.String("hook", name), zap.Error(err))
		return true
	}
	return false
}

func (a *HookAccessor) RequestAssetTypes(cb func([]string)) {
	request(&a.scope, hooks.GetAssetTypes, func(ctx context.Context, p *models.Project) ([]string, error) {
		fn, err := a.registry.AssetTypes(p)
		if err != nil {
			if a.missing(hooks.GetAssetTypes, err) {
				return []string{}, nil
			}
			return nil, err
		}
		return fn(ctx, p)
	}, cb)
}

func (a *HookAccessor) RequestAssets(query models.AssetQuery, cb func([]*models.AssetInfo)) {
	request(&a.scope, hooks.GetAssets, func(ctx context.Context, p *models.Project) ([]*models.AssetInfo, error) {
		fn, err := a.registry.Assets(p)
		if err != nil {
			if a.missing(hooks.GetAssets, err) {
				return []*models.AssetInfo{}, nil
			}
			return nil, err
		}
		return fn(ctx, p, query)
	}, cb)
}

func (a *HookAccessor) RequestAssetsByRegex(pattern string, cb func([]*models.AssetInfo)) {
	request(&a.scope, hooks.GetAssetsByRegex, func(ctx context.Context, p *models.Project) ([]*models.AssetInfo, error) {
		fn, err := a.registry.AssetsByRegex(p)
		if err != nil {
			if a.missing(hooks.GetAssetsByRegex, err) {
				return []*models.AssetInfo{}, nil
			}
			return nil, err
		}
		return fn(ctx, p, pattern)
	}, cb)
}

func (a *HookAccessor) RequestAssetDetails(asset *models.AssetInfo, cb func(*models.AssetDetails)) {
	request(&a.scope, hooks.GetAssetsDetails, func(ctx context.Context, p *models.Project) (*models.AssetDetails, error) {
		fn, err := a.registry.AssetDetails(p)
		if err != nil {
			if a.missing(hooks.GetAssetsDetails, err) {
				return nil, nil
			}
			return nil, err
		}
		return fn(ctx, p, asset)
	}, cb)
}

func (a *HookAccessor) LoadAssetIcon(ctx context.Context, asset *models.AssetInfo) (image.Image, error) {
	p := a.ActiveProject()
	fn, err := a.registry.AssetIcon(p)
	if err != nil {
		if a.missing(hooks.LoadAssetIcon, err) {
			return nil, nil
		}
		return nil, err
	}
	return fn(ctx, p, asset)
}
