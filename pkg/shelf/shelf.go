// Package shelf registers the loader button on the host application's
// pipeline shelves.
package shelf

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/hooks"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/workspace"
)

// DefaultCommand opens the loader from a shelf button.
const DefaultCommand = "bd-loader open"

// Register adds the AddShelfButtons hook that puts a loader button on every
// shelf named with settings.Suffix.
func Register(registry *hooks.Registry, settings models.ShelfSettings, command string) error {
	if command == "" {
		command = DefaultCommand
	}
	return registry.Add(hooks.AddShelfButtons, func(shelf string) []models.ShelfButton {
		if !strings.HasSuffix(shelf, settings.Suffix) {
			return nil
		}
		return []models.ShelfButton{{
			Shelf:      shelf,
			Label:      settings.Label,
			Annotation: settings.Label,
			Image:      settings.Image,
			Command:    command,
			SourceType: "mel",
		}}
	})
}

// MEL renders buttons as shelfButton commands. Commands are run detached
// through system so the host stays responsive.
func MEL(buttons []models.ShelfButton) string {
	var b strings.Builder
	for _, btn := range buttons {
		cmd := btn.Command
		if btn.SourceType == "mel" {
			cmd = fmt.Sprintf("system(%s)", melString(btn.Command+" &"))
		}
		fmt.Fprintf(&b, "shelfButton -parent %s -label %s -annotation %s -image %s -sourceType %s -command %s;\n",
			melString(btn.Shelf), melString(btn.Label), melString(btn.Annotation),
			melString(btn.Image), melString(btn.SourceType), melString(cmd))
	}
	return b.String()
}

func melString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}

// CheckOpen reports whether the loader may open in ctx. A missing context or
// task is logged as a warning and returned.
func CheckOpen(ctx *workspace.Context, err error) (*workspace.Context, error) {
	ctx, err = workspace.RequireTask(ctx, err)
	if err != nil {
		logging.Warn("unable to open the loader", zap.Error(err))
		return nil, err
	}
	return ctx, nil
}
