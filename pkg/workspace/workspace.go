// Package workspace reads the production context the loader was started in.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// Environment variables describing the active context.
const (
	ProjectIDEnv = "BD_PROJECT_ID"
	ProjectEnv   = "BD_PROJECT"
	TaskEnv      = "BD_TASK"
)

var (
	// ErrNoContext is returned when no project is active.
	ErrNoContext = errors.New("no active context")
	// ErrNoTask is returned when a context has no task.
	ErrNoTask = errors.New("no active task")
)

// Context is the project and task the artist is working on.
type Context struct {
	Project *models.Project `json:"project" yaml:"project"`
	Task    *models.Task    `json:"task,omitempty" yaml:"task,omitempty"`
}

// FromEnv reads the context from the process environment.
func FromEnv() (*Context, error) {
	return Lookup(os.LookupEnv)
}

// Lookup reads the context through lookup. BD_TASK is either a task name or
// "<id>:<name>".
func Lookup(lookup func(string) (string, bool)) (*Context, error) {
	raw, ok := lookup(ProjectIDEnv)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, ErrNoContext
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", ProjectIDEnv, raw, err)
	}

	title, _ := lookup(ProjectEnv)
	ctx := &Context{Project: &models.Project{ID: id, Title: strings.TrimSpace(title)}}

	if task, ok := lookup(TaskEnv); ok && strings.TrimSpace(task) != "" {
		ctx.Task = parseTask(strings.TrimSpace(task))
	}
	return ctx, nil
}

func parseTask(value string) *models.Task {
	if idPart, name, ok := strings.Cut(value, ":"); ok {
		if id, err := strconv.Atoi(idPart); err == nil {
			return &models.Task{ID: id, Name: name}
		}
	}
	return &models.Task{Name: value}
}

// RequireTask returns the context when it has a task.
func RequireTask(ctx *Context, err error) (*Context, error) {
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		return nil, ErrNoContext
	}
	if ctx.Task == nil {
		return nil, ErrNoTask
	}
	return ctx, nil
}

// Env renders ctx as environment assignments for a child process.
func (c *Context) Env() []string {
	if c == nil || c.Project == nil {
		return nil
	}
	env := []string{ProjectIDEnv + "=" + strconv.Itoa(c.Project.ID)}
	if c.Project.Title != "" {
		env = append(env, ProjectEnv+"="+c.Project.Title)
	}
	if c.Task != nil {
		task := c.Task.Name
		if c.Task.ID != 0 {
			task = strconv.Itoa(c.Task.ID) + ":" + task
		}
		env = append(env, TaskEnv+"="+task)
	}
	return env
}
