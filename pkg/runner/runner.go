// Package runner executes units of work on pooled background goroutines and
// delivers their results on the UI-owning goroutine.
package runner

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/mainloop"
	"github.com/bd-pipeline/bd-loader/pkg/metrics"
)

// Runner is a bounded pool of background goroutines.
type Runner struct {
	ctx        context.Context
	cancel     context.CancelFunc
	dispatcher mainloop.Dispatcher
	sem        *semaphore.Weighted
	wg         conc.WaitGroup
	log        *zap.Logger
}

// New creates a runner with at most workers concurrent units of work.
// workers <= 0 means runtime.NumCPU().
func New(dispatcher mainloop.Dispatcher, workers int) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:        ctx,
		cancel:     cancel,
		dispatcher: dispatcher,
		sem:        semaphore.NewWeighted(int64(workers)),
		log:        logging.Named("runner"),
	}
}

// Submit runs work in the background. It never blocks the caller.
func (r *Runner) Submit(name string, work func(ctx context.Context)) {
	r.wg.Go(func() {
		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			return
		}
		defer r.sem.Release(1)

		var pc panics.Catcher
		pc.Try(func() { work(r.ctx) })
		if rec := pc.Recovered(); rec != nil {
			metrics.RequestFailed(name)
			r.log.Error("request panicked", zap.String("request", name), zap.Error(rec.AsError()))
		}
	})
}

// Shutdown cancels pending units of work and waits for running ones.
func (r *Runner) Shutdown() {
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until every submitted unit of work has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Execute runs work on the pool and posts cb(result) to the UI goroutine.
// When work fails the error is logged and cb is never invoked.
func Execute[T any](r *Runner, name string, work func(ctx context.Context) (T, error), cb func(T)) {
	r.Submit(name, func(ctx context.Context) {
		timer := metrics.StartRequest(name)
		result, err := work(ctx)
		timer.Done(err)
		if err != nil {
			r.log.Error("unable to make request", zap.String("request", name), zap.Error(err))
			return
		}
		if !r.dispatcher.Post(func() { cb(result) }) {
			r.log.Debug("result dropped, loop closed", zap.String("request", name))
		}
	})
}
