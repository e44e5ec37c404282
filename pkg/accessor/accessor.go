// Package accessor is the data capability the browser loads from. Every
// Request* call returns immediately and delivers its result on the UI
// goroutine through the runner.
package accessor

import (
	"context"
	"errors"
	"image"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/runner"
)

// ErrNoProject is returned by synchronous calls made before a project is set.
var ErrNoProject = errors.New("accessor: no active project")

// Accessor reads the asset catalog of the active project.
type Accessor interface {
	// SetActiveProject replaces the catalog scope. It invalidates no cache.
	SetActiveProject(project *models.Project)
	ActiveProject() *models.Project

	RequestAssetTypes(cb func([]string))
	RequestAssets(query models.AssetQuery, cb func([]*models.AssetInfo))
	RequestAssetsByRegex(pattern string, cb func([]*models.AssetInfo))
	RequestAssetDetails(asset *models.AssetInfo, cb func(*models.AssetDetails))

	// LoadAssetIcon blocks. It is called from icon workers only.
	LoadAssetIcon(ctx context.Context, asset *models.AssetInfo) (image.Image, error)
}

// scope holds the active project and the runner shared by both accessors.
type scope struct {
	project atomic.Pointer[models.Project]
	runner  *runner.Runner
	log     *zap.Logger
}

func (s *scope) SetActiveProject(project *models.Project) {
	s.project.Store(project)
}

func (s *scope) ActiveProject() *models.Project {
	return s.project.Load()
}

// request runs work against the project active at call time. Without a
// project cb receives the zero value so the view leaves its loading state.
func request[T any](s *scope, name string, work func(ctx context.Context, project *models.Project) (T, error), cb func(T)) {
	project := s.project.Load()
	runner.Execute(s.runner, name, func(ctx context.Context) (T, error) {
		if project == nil {
			s.log.Debug("no active project", zap.String("request", name))
			var zero T
			return zero, nil
		}
		return work(ctx, project)
	}, cb)
}

// Require returns the active project of a, or ErrNoProject.
func Require(a Accessor) (*models.Project, error) {
	if p := a.ActiveProject(); p != nil {
		return p, nil
	}
	return nil, ErrNoProject
}
