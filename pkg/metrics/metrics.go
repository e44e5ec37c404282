// Package metrics provides Prometheus metrics for the loader.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Background request metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_loader_requests_total",
			Help: "Total number of background requests",
		},
		[]string{"request", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bd_loader_request_duration_seconds",
			Help:    "Background request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"request"},
	)

	// Icon metrics
	iconRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_loader_icon_requests_total",
			Help: "Icon requests by outcome (cached, pending, queued)",
		},
		[]string{"outcome"},
	)

	iconFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_loader_icon_fetches_total",
			Help: "Icon fetches performed by the workers",
		},
		[]string{"status"},
	)

	iconQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bd_loader_icon_queue_depth",
			Help: "Icons waiting for a worker",
		},
	)

	iconCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bd_loader_icon_cache_size",
			Help: "Icons held in memory",
		},
	)

	// GraphQL metrics
	graphqlQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_loader_graphql_queries_total",
			Help: "GraphQL operations by transport and cache result",
		},
		[]string{"operation", "transport", "cache"},
	)

	graphqlErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_loader_graphql_errors_total",
			Help: "GraphQL operations that failed",
		},
		[]string{"operation"},
	)

	// Hook metrics
	hookCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bd_loader_hook_calls_total",
			Help: "Hook resolutions by result",
		},
		[]string{"hook", "result"},
	)
)

// RequestTimer measures one background request.
type RequestTimer struct {
	name  string
	start time.Time
}

// StartRequest starts timing a background request.
func StartRequest(name string) RequestTimer {
	return RequestTimer{name: name, start: time.Now()}
}

// Done records the request outcome.
func (t RequestTimer) Done(err error) {
	requestDuration.WithLabelValues(t.name).Observe(time.Since(t.start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	requestsTotal.WithLabelValues(t.name, status).Inc()
}

// RequestFailed records a request that never produced a result.
func RequestFailed(name string) {
	requestsTotal.WithLabelValues(name, "panic").Inc()
}

// IconRequested records how an icon request was satisfied.
func IconRequested(outcome string) {
	iconRequestsTotal.WithLabelValues(outcome).Inc()
}

// IconFetched records a worker fetch.
func IconFetched(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	iconFetchesTotal.WithLabelValues(status).Inc()
}

// SetIconQueueDepth updates the pending icon gauge.
func SetIconQueueDepth(n int) {
	iconQueueDepth.Set(float64(n))
}

// SetIconCacheSize updates the cached icon gauge.
func SetIconCacheSize(n int) {
	iconCacheSize.Set(float64(n))
}

// GraphQLQuery records one GraphQL operation.
func GraphQLQuery(operation, transport string, cached bool, err error) {
	cache := "miss"
	if cached {
		cache = "hit"
	}
	graphqlQueriesTotal.WithLabelValues(operation, transport, cache).Inc()
	if err != nil {
		graphqlErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// HookCalled records a hook resolution.
func HookCalled(hook string, found bool) {
	result := "found"
	if !found {
		result = "missing"
	}
	hookCallsTotal.WithLabelValues(hook, result).Inc()
}

// Handler returns the Prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
