// Package icons fetches, post-processes and caches asset icons on a fixed
// pool of background workers.
package icons

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/lifo"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/mainloop"
	"github.com/bd-pipeline/bd-loader/pkg/metrics"
	"github.com/bd-pipeline/bd-loader/pkg/models"
)

const (
	// DefaultWorkers is the size of the icon worker pool.
	DefaultWorkers = 12
	// DefaultPollInterval bounds how long a worker waits on the queue before
	// rechecking for shutdown.
	DefaultPollInterval = 5 * time.Millisecond
)

// Source fetches the raw icon of an asset. It is called from worker goroutines.
type Source interface {
	LoadAssetIcon(ctx context.Context, asset *models.AssetInfo) (image.Image, error)
}

// Callback receives the processed icon, or nil when the asset has none.
type Callback func(icon image.Image)

// Options configures a Manager.
type Options struct {
	Workers      int
	PollInterval time.Duration
	Size         Size
}

type result struct {
	asset *models.AssetInfo
	icon  image.Image
	err   error
}

// Manager owns the icon cache. RequestIcon, ClearCache and every callback run
// on the UI goroutine, so the cache and the pending map need no locking; only
// the queue is shared with the workers.
type Manager struct {
	source     Source
	dispatcher mainloop.Dispatcher
	opts       Options

	queue *lifo.Queue[*models.AssetInfo]

	loaded   map[models.AssetID]image.Image
	requests map[models.AssetID][]Callback

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	log    *zap.Logger
}

// NewManager creates a stopped manager.
func NewManager(source Source, dispatcher mainloop.Dispatcher, opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Size.Width <= 0 || opts.Size.Height <= 0 {
		opts.Size = DefaultSize
	}
	return &Manager{
		source:     source,
		dispatcher: dispatcher,
		opts:       opts,
		queue:      lifo.New[*models.AssetInfo](),
		loaded:     make(map[models.AssetID]image.Image),
		requests:   make(map[models.AssetID][]Callback),
		log:        logging.Named("icons"),
	}
}

// Start launches the worker pool.
func (m *Manager) Start() {
	if m.cancel != nil {
		return
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	for i := 0; i < m.opts.Workers; i++ {
		m.wg.Go(m.work)
	}
	m.log.Debug("icon workers started", zap.Int("workers", m.opts.Workers))
}

// Stop signals the workers and waits for them. A fetch already running
// completes; its result is still posted.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.cancel = nil
}

// RequestIcon delivers the icon of asset to cb. A cached icon is delivered
// synchronously. A request for an id that is already in flight joins it and
// every joined callback is called once the fetch completes.
func (m *Manager) RequestIcon(cb Callback, asset *models.AssetInfo) {
	id := asset.ID

	if icon, ok := m.loaded[id]; ok {
		metrics.IconRequested("cached")
		cb(icon)
		return
	}

	if pending, ok := m.requests[id]; ok {
		metrics.IconRequested("pending")
		m.requests[id] = append(pending, cb)
		return
	}

	metrics.IconRequested("queued")
	m.requests[id] = []Callback{cb}
	m.queue.Put(asset)
	metrics.SetIconQueueDepth(m.queue.Len())
}

// Cached returns the cached icon for id.
func (m *Manager) Cached(id models.AssetID) (image.Image, bool) {
	icon, ok := m.loaded[id]
	return icon, ok
}

// Pending reports whether a fetch for id is outstanding.
func (m *Manager) Pending(id models.AssetID) bool {
	_, ok := m.requests[id]
	return ok
}

// ClearCache drops cached icons, pending callbacks and queued fetches.
// Fetches already running are not cancelled; their result repopulates the
// cache but reaches no callback.
func (m *Manager) ClearCache() {
	m.loaded = make(map[models.AssetID]image.Image)
	m.requests = make(map[models.AssetID][]Callback)
	m.queue.Clear()
	metrics.SetIconCacheSize(0)
	metrics.SetIconQueueDepth(0)
}

func (m *Manager) work() {
	for {
		asset, err := m.queue.Get(m.ctx, m.opts.PollInterval)
		if m.ctx.Err() != nil {
			return
		}
		if errors.Is(err, lifo.ErrEmpty) {
			continue
		}
		metrics.SetIconQueueDepth(m.queue.Len())

		res := m.fetch(asset)
		if !m.dispatcher.Post(func() { m.onLoaded(res) }) {
			return
		}
	}
}

// fetch loads and processes one icon. A panic in the source or in
// processing is logged and reported as a failed fetch so the worker keeps
// running and the pending callbacks are released.
func (m *Manager) fetch(asset *models.AssetInfo) (res result) {
	var pc panics.Catcher
	pc.Try(func() { res = m.load(asset) })
	if rec := pc.Recovered(); rec != nil {
		err := rec.AsError()
		metrics.IconFetched(err)
		m.log.Error("icon fetch panicked", zap.Stringer("asset", asset), zap.Error(err))
		return result{asset: asset, err: err}
	}
	return res
}

func (m *Manager) load(asset *models.AssetInfo) result {
	raw, err := m.source.LoadAssetIcon(m.ctx, asset)
	metrics.IconFetched(err)
	if err != nil {
		m.log.Error("unable to load the asset icon", zap.Stringer("asset", asset), zap.Error(err))
		return result{asset: asset, err: err}
	}
	if raw == nil {
		return result{asset: asset}
	}
	return result{asset: asset, icon: Process(raw, m.opts.Size)}
}

func (m *Manager) onLoaded(res result) {
	id := res.asset.ID
	if res.err == nil {
		m.loaded[id] = res.icon
		metrics.SetIconCacheSize(len(m.loaded))
	}

	callbacks := m.requests[id]
	delete(m.requests, id)
	for _, cb := range callbacks {
		cb(res.icon)
	}
}
