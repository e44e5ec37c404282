package hooks

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/icons"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// PathEnv lists the directories hook scripts are loaded from.
const PathEnv = "BD_HOOKPATH"

// Symbols exposes the models package to hook scripts.
var Symbols = interp.Exports{
	"github.com/bd-pipeline/bd-loader/pkg/models/models": {
		"AssetID":      reflect.ValueOf((*models.AssetID)(nil)),
		"AssetInfo":    reflect.ValueOf((*models.AssetInfo)(nil)),
		"AssetDetails": reflect.ValueOf((*models.AssetDetails)(nil)),
		"AssetQuery":   reflect.ValueOf((*models.AssetQuery)(nil)),
		"Project":      reflect.ValueOf((*models.Project)(nil)),
		"MenuAction":   reflect.ValueOf((*models.MenuAction)(nil)),
		"ShelfButton":  reflect.ValueOf((*models.ShelfButton)(nil)),
		"IntAssetID":   reflect.ValueOf(models.IntAssetID),
	},
}

// scriptFuncs maps hook names to the function a script declares for them.
var scriptFuncs = map[string]string{
	GetAssetTypes:     "GetAssetTypes",
	GetAssets:         "GetAssets",
	GetAssetsByRegex:  "GetAssetsByRegex",
	GetAssetsDetails:  "GetAssetsDetails",
	LoadAssetIcon:     "LoadAssetIcon",
	AddItemMenuAction: "AddItemMenuAction",
	AddShelfButtons:   "AddShelfButtons",
}

// Dirs splits a BD_HOOKPATH value.
func Dirs(value string) []string {
	var dirs []string
	for _, d := range filepath.SplitList(value) {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// LoadScripts interprets every *.go file of dirs. Missing directories are
// skipped. A failing script does not stop the others.
func (r *Registry) LoadScripts(dirs ...string) error {
	var errs []error
	for _, dir := range dirs {
		paths, err := filepath.Glob(filepath.Join(dir, "*.go"))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(paths) == 0 {
			r.log.Debug("no hook scripts", zap.String("dir", dir))
		}
		sort.Strings(paths)
		for _, path := range paths {
			if err := r.LoadScript(path); err != nil {
				errs = append(errs, err)
			}
		}
	}

	r.mu.Lock()
	r.loaded = true
	r.mu.Unlock()
	return errors.Join(errs...)
}

// LoadScript interprets one script and registers the hook functions it
// declares, replacing whatever the same file registered before. A script
// may declare `var Projects []string` to scope its hooks to those project
// keys.
func (r *Registry) LoadScript(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read hook script: %w", err)
	}
	file, err := parser.ParseFile(token.NewFileSet(), path, src, parser.PackageClauseOnly)
	if err != nil {
		return fmt.Errorf("parse hook script %s: %w", path, err)
	}
	pkg := file.Name.Name

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("load stdlib symbols: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return fmt.Errorf("load model symbols: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return fmt.Errorf("evaluate hook script %s: %w", path, err)
	}

	projects := []string{""}
	if v, err := i.Eval(pkg + ".Projects"); err == nil {
		if keys, ok := v.Interface().([]string); ok && len(keys) > 0 {
			projects = keys
		}
	}

	type found struct {
		name string
		fn   any
	}
	var hooks []found
	for name, symbol := range scriptFuncs {
		v, err := i.Eval(pkg + "." + symbol)
		if err != nil {
			continue
		}
		fn, err := adaptScript(name, v.Interface())
		if err != nil {
			return fmt.Errorf("hook script %s: %w", path, err)
		}
		hooks = append(hooks, found{name, fn})
	}

	r.removeSource(path)
	for _, h := range hooks {
		for _, project := range projects {
			if err := r.add(project, h.name, h.fn, path); err != nil {
				return err
			}
		}
	}
	r.log.Info("loaded hook script", zap.String("path", path), zap.Int("hooks", len(hooks)))
	return nil
}

// adaptScript wraps a script function into the typed hook for name. Scripts
// use plain signatures without context or error.
func adaptScript(name string, v any) (any, error) {
	bad := func() (any, error) {
		return nil, fmt.Errorf("%s: unexpected signature %T", scriptFuncs[name], v)
	}
	switch name {
	case GetAssetTypes:
		f, ok := v.(func(*models.Project) []string)
		if !ok {
			return bad()
		}
		return AssetTypesHook(func(_ context.Context, p *models.Project) ([]string, error) {
			return f(p), nil
		}), nil
	case GetAssets:
		f, ok := v.(func(*models.Project, models.AssetQuery) []*models.AssetInfo)
		if !ok {
			return bad()
		}
		return AssetsHook(func(_ context.Context, p *models.Project, q models.AssetQuery) ([]*models.AssetInfo, error) {
			return f(p, q), nil
		}), nil
	case GetAssetsByRegex:
		f, ok := v.(func(*models.Project, string) []*models.AssetInfo)
		if !ok {
			return bad()
		}
		return AssetsByRegexHook(func(_ context.Context, p *models.Project, pattern string) ([]*models.AssetInfo, error) {
			return f(p, pattern), nil
		}), nil
	case GetAssetsDetails:
		f, ok := v.(func(*models.Project, *models.AssetInfo) *models.AssetDetails)
		if !ok {
			return bad()
		}
		return AssetDetailsHook(func(_ context.Context, p *models.Project, a *models.AssetInfo) (*models.AssetDetails, error) {
			return f(p, a), nil
		}), nil
	case LoadAssetIcon:
		f, ok := v.(func(*models.Project, *models.AssetInfo) []byte)
		if !ok {
			return bad()
		}
		return AssetIconHook(func(_ context.Context, p *models.Project, a *models.AssetInfo) (image.Image, error) {
			return icons.Decode(f(p, a))
		}), nil
	case AddItemMenuAction:
		f, ok := v.(func(*models.Project, []*models.AssetInfo) []models.MenuAction)
		if !ok {
			return bad()
		}
		return MenuActionHook(f), nil
	case AddShelfButtons:
		f, ok := v.(func(string) []models.ShelfButton)
		if !ok {
			return bad()
		}
		return ShelfButtonsHook(f), nil
	}
	return nil, fmt.Errorf("unknown hook %q", name)
}

// Watch reloads scripts of dirs when they change until ctx is done.
func (r *Registry) Watch(ctx context.Context, dirs ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create hook watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			r.log.Warn("unable to watch hook directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				r.handleEvent(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Warn("hook watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (r *Registry) handleEvent(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".go" {
		return
	}
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		r.removeSource(event.Name)
		r.log.Info("unloaded hook script", zap.String("path", event.Name))
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		if err := r.LoadScript(event.Name); err != nil {
			r.log.Error("unable to reload hook script", zap.String("path", event.Name), zap.Error(err))
		}
	}
}
