// Package hooks resolves named, typed extension points per project. Hooks are
// registered from Go or loaded from Go scripts found on BD_HOOKPATH.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/metrics"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// Hook names.
const (
	GetAssetTypes     = "bd.loader.get_asset_types"
	GetAssets         = "bd.loader.get_assets"
	GetAssetsByRegex  = "bd.loader.get_assets_by_regex"
	GetAssetsDetails  = "bd.loader.get_assets_details"
	LoadAssetIcon     = "bd.loader.load_asset_icon_pixmap"
	AddItemMenuAction = "bd.loader.add_item_menu_action"
	AddShelfButtons   = "bd.maya.add_shelf_buttons"
)

var (
	// ErrHookNotFound is returned when no hook is registered under a name.
	ErrHookNotFound = errors.New("hook not found")
	// ErrHooksNotLoaded is returned by a registry nothing was ever registered in.
	ErrHooksNotLoaded = errors.New("hooks not loaded")
)

// Typed hook signatures, one per name.
type (
	AssetTypesHook    func(ctx context.Context, project *models.Project) ([]string, error)
	AssetsHook        func(ctx context.Context, project *models.Project, query models.AssetQuery) ([]*models.AssetInfo, error)
	AssetsByRegexHook func(ctx context.Context, project *models.Project, pattern string) ([]*models.AssetInfo, error)
	AssetDetailsHook  func(ctx context.Context, project *models.Project, asset *models.AssetInfo) (*models.AssetDetails, error)
	AssetIconHook     func(ctx context.Context, project *models.Project, asset *models.AssetInfo) (image.Image, error)
	MenuActionHook    func(project *models.Project, assets []*models.AssetInfo) []models.MenuAction
	ShelfButtonsHook  func(shelf string) []models.ShelfButton
)

type entry struct {
	fn     any
	source string
}

// Registry maps hook names to handlers, globally and per project key.
type Registry struct {
	mu       sync.RWMutex
	loaded   bool
	global   map[string][]entry
	projects map[string]map[string][]entry
	log      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		global:   make(map[string][]entry),
		projects: make(map[string]map[string][]entry),
		log:      logging.Named("hooks"),
	}
}

// normalize checks fn against the signature of name and converts unnamed
// func literals to the named hook type.
func normalize(name string, fn any) (any, error) {
	switch name {
	case GetAssetTypes:
		switch f := fn.(type) {
		case AssetTypesHook:
			return f, nil
		case func(context.Context, *models.Project) ([]string, error):
			return AssetTypesHook(f), nil
		}
	case GetAssets:
		switch f := fn.(type) {
		case AssetsHook:
			return f, nil
		case func(context.Context, *models.Project, models.AssetQuery) ([]*models.AssetInfo, error):
			return AssetsHook(f), nil
		}
	case GetAssetsByRegex:
		switch f := fn.(type) {
		case AssetsByRegexHook:
			return f, nil
		case func(context.Context, *models.Project, string) ([]*models.AssetInfo, error):
			return AssetsByRegexHook(f), nil
		}
	case GetAssetsDetails:
		switch f := fn.(type) {
		case AssetDetailsHook:
			return f, nil
		case func(context.Context, *models.Project, *models.AssetInfo) (*models.AssetDetails, error):
			return AssetDetailsHook(f), nil
		}
	case LoadAssetIcon:
		switch f := fn.(type) {
		case AssetIconHook:
			return f, nil
		case func(context.Context, *models.Project, *models.AssetInfo) (image.Image, error):
			return AssetIconHook(f), nil
		}
	case AddItemMenuAction:
		switch f := fn.(type) {
		case MenuActionHook:
			return f, nil
		case func(*models.Project, []*models.AssetInfo) []models.MenuAction:
			return MenuActionHook(f), nil
		}
	case AddShelfButtons:
		switch f := fn.(type) {
		case ShelfButtonsHook:
			return f, nil
		case func(string) []models.ShelfButton:
			return ShelfButtonsHook(f), nil
		}
	default:
		return nil, fmt.Errorf("unknown hook %q", name)
	}
	return nil, fmt.Errorf("hook %q: unexpected signature %T", name, fn)
}

// Add registers fn for every project.
func (r *Registry) Add(name string, fn any) error {
	return r.add("", name, fn, "")
}

// AddForProject registers fn for the project with the given key only.
// Project hooks take precedence over global ones.
func (r *Registry) AddForProject(projectKey, name string, fn any) error {
	return r.add(projectKey, name, fn, "")
}

func (r *Registry) add(projectKey, name string, fn any, source string) error {
	typed, err := normalize(name, fn)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = true
	e := entry{fn: typed, source: source}
	if projectKey == "" {
		r.global[name] = append(r.global[name], e)
		return nil
	}
	hooks, ok := r.projects[projectKey]
	if !ok {
		hooks = make(map[string][]entry)
		r.projects[projectKey] = hooks
	}
	hooks[name] = append(hooks[name], e)
	return nil
}

// removeSource drops every hook registered from source.
func (r *Registry) removeSource(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	filter := func(m map[string][]entry) {
		for name, entries := range m {
			kept := entries[:0]
			for _, e := range entries {
				if e.source != source {
					kept = append(kept, e)
				}
			}
			if len(kept) == 0 {
				delete(m, name)
				continue
			}
			m[name] = kept
		}
	}
	filter(r.global)
	for _, hooks := range r.projects {
		filter(hooks)
	}
}

// lookup returns the hooks of name visible to project, project hooks first,
// and how many of them are project hooks.
func (r *Registry) lookup(project *models.Project, name string) ([]entry, int, error) {
	if r == nil {
		return nil, 0, ErrHooksNotLoaded
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return nil, 0, ErrHooksNotLoaded
	}

	var found []entry
	if project != nil {
		found = append(found, r.projects[project.Key()][name]...)
	}
	local := len(found)
	found = append(found, r.global[name]...)
	if len(found) == 0 {
		metrics.HookCalled(name, false)
		return nil, 0, fmt.Errorf("%w: %s", ErrHookNotFound, name)
	}
	metrics.HookCalled(name, true)
	return found, local, nil
}

// one returns the hook that answers a single-result call: the most recently
// registered project hook, else the most recently registered global one.
func (r *Registry) one(project *models.Project, name string) (any, error) {
	found, local, err := r.lookup(project, name)
	if err != nil {
		return nil, err
	}
	if local > 0 {
		return found[local-1].fn, nil
	}
	return found[len(found)-1].fn, nil
}

// AssetTypes resolves GetAssetTypes.
func (r *Registry) AssetTypes(project *models.Project) (AssetTypesHook, error) {
	fn, err := r.one(project, GetAssetTypes)
	if err != nil {
		return nil, err
	}
	return fn.(AssetTypesHook), nil
}

// Assets resolves GetAssets.
func (r *Registry) Assets(project *models.Project) (AssetsHook, error) {
	fn, err := r.one(project, GetAssets)
	if err != nil {
		return nil, err
	}
	return fn.(AssetsHook), nil
}

// AssetsByRegex resolves GetAssetsByRegex.
func (r *Registry) AssetsByRegex(project *models.Project) (AssetsByRegexHook, error) {
	fn, err := r.one(project, GetAssetsByRegex)
	if err != nil {
		return nil, err
	}
	return fn.(AssetsByRegexHook), nil
}

// AssetDetails resolves GetAssetsDetails.
func (r *Registry) AssetDetails(project *models.Project) (AssetDetailsHook, error) {
	fn, err := r.one(project, GetAssetsDetails)
	if err != nil {
		return nil, err
	}
	return fn.(AssetDetailsHook), nil
}

// AssetIcon resolves LoadAssetIcon.
func (r *Registry) AssetIcon(project *models.Project) (AssetIconHook, error) {
	fn, err := r.one(project, LoadAssetIcon)
	if err != nil {
		return nil, err
	}
	return fn.(AssetIconHook), nil
}

// MenuActions calls every AddItemMenuAction hook visible to project and
// concatenates their actions. A missing hook yields no actions.
func (r *Registry) MenuActions(project *models.Project, assets []*models.AssetInfo) []models.MenuAction {
	found, _, err := r.lookup(project, AddItemMenuAction)
	if err != nil {
		if r != nil {
			r.log.Debug("no menu hooks", zap.Error(err))
		}
		return nil
	}
	var actions []models.MenuAction
	for _, e := range found {
		r.guard(AddItemMenuAction, e, func() {
			actions = append(actions, e.fn.(MenuActionHook)(project, assets)...)
		})
	}
	return actions
}

// ShelfButtons calls every AddShelfButtons hook for shelf.
func (r *Registry) ShelfButtons(shelf string) ([]models.ShelfButton, error) {
	found, _, err := r.lookup(nil, AddShelfButtons)
	if err != nil {
		return nil, err
	}
	var buttons []models.ShelfButton
	for _, e := range found {
		r.guard(AddShelfButtons, e, func() {
			buttons = append(buttons, e.fn.(ShelfButtonsHook)(shelf)...)
		})
	}
	return buttons, nil
}

// guard runs one hook of a fan-out call. A panicking hook is logged and
// contributes nothing; the other hooks still run.
func (r *Registry) guard(name string, e entry, call func()) {
	var pc panics.Catcher
	pc.Try(call)
	if rec := pc.Recovered(); rec != nil {
		r.log.Error("hook panicked", zap.String("hook", name), zap.String("source", e.source), zap.Error(rec.AsError()))
	}
}

// Registration describes one registered hook.
type Registration struct {
	Name    string `json:"name" yaml:"name"`
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
	Source  string `json:"source" yaml:"source"`
}

// Registrations lists every registered hook sorted by name.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Registration
	add := func(project string, m map[string][]entry) {
		for name, entries := range m {
			for _, e := range entries {
				source := e.source
				if source == "" {
					source = "builtin"
				}
				out = append(out, Registration{Name: name, Project: project, Source: source})
			}
		}
	}
	add("", r.global)
	for key, hooks := range r.projects {
		add(key, hooks)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if out[i].Project != out[j].Project {
			return out[i].Project < out[j].Project
		}
		return out[i].Source < out[j].Source
	})
	return out
}
