package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bd-pipeline/bd-loader/pkg/mainloop"
)

// loopMsg carries a function posted to the main loop into Update, so that
// results of background work are applied on the goroutine that owns the
// widgets.
type loopMsg struct {
	fn func()
}

// waitLoop blocks until the loop has work. It returns nil once ctx is done.
func waitLoop(ctx context.Context, loop *mainloop.Loop) tea.Cmd {
	return func() tea.Msg {
		fn, ok := loop.Wait(ctx)
		if !ok {
			return nil
		}
		return loopMsg{fn: fn}
	}
}

// runLoop applies msg and everything queued behind it, then waits again.
func runLoop(ctx context.Context, loop *mainloop.Loop, msg loopMsg) tea.Cmd {
	msg.fn()
	loop.RunPending()
	return waitLoop(ctx, loop)
}
