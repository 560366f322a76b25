// Package metrics exposes Prometheus metrics for the bookmark pipeline.
// Every recording method is safe on a nil *Metrics so callers that do not
// care about metrics can pass nil.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MrSnakeDoc/bookmarks/internal/domain"
)

// Fetch outcomes, used as the "outcome" label.
const (
	OutcomeSuccess       = "success"
	OutcomeRefreshFailed = "auth_refresh_failed"
	OutcomeUpstream      = "upstream_fetch_failed"
	OutcomeRunaway       = "pagination_runaway"
	OutcomeCanceled      = "canceled"
	OutcomeError         = "error"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Fetch-all metrics
	Fetches       *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	FetchedPages  prometheus.Counter
	FetchedPosts  prometheus.Counter
	PageRetries   *prometheus.CounterVec

	// Token metrics
	TokenRefreshes *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec
	CacheEvicted prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookmarks_fetch_total",
				Help: "Total number of fetch-all sweeps by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bookmarks_fetch_duration_seconds",
				Help:    "Duration of a complete fetch-all sweep in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		FetchedPages: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bookmarks_pages_fetched_total",
				Help: "Total number of bookmark pages fetched from upstream",
			},
		),
		FetchedPosts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bookmarks_posts_fetched_total",
				Help: "Total number of posts fetched from upstream",
			},
		),
		PageRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookmarks_page_retries_total",
				Help: "Total number of page retries by reason",
			},
			[]string{"reason"},
		),
		TokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookmarks_token_refresh_total",
				Help: "Total number of access token refreshes",
			},
			[]string{"success"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookmarks_cache_lookups_total",
				Help: "Total number of collection cache lookups",
			},
			[]string{"result"},
		),
		CacheEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bookmarks_cache_evicted_total",
				Help: "Total number of idle session collections evicted",
			},
		),
	}
}

// Outcome maps a fetch-all error to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	}

	switch domain.KindOf(err) {
	case domain.KindAuthRefreshFailed:
		return OutcomeRefreshFailed
	case domain.KindUpstreamFetchFailed:
		return OutcomeUpstream
	case domain.KindPaginationRunaway:
		return OutcomeRunaway
	default:
		return OutcomeError
	}
}

// RecordFetch records a finished fetch-all sweep.
func (m *Metrics) RecordFetch(err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(Outcome(err)).Inc()
	m.FetchDuration.Observe(duration.Seconds())
}

// RecordPage records one successfully fetched page.
func (m *Metrics) RecordPage(posts int) {
	if m == nil {
		return
	}
	m.FetchedPages.Inc()
	m.FetchedPosts.Add(float64(posts))
}

// RecordRetry records a page retry. reason is "unauthorized" or "transient".
func (m *Metrics) RecordRetry(reason string) {
	if m == nil {
		return
	}
	m.PageRetries.WithLabelValues(reason).Inc()
}

// RecordRefresh records a token refresh attempt.
func (m *Metrics) RecordRefresh(success bool) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(boolLabel(success)).Inc()
}

// RecordCacheLookup records a store lookup.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordEvictions records collections removed by the garbage collector.
func (m *Metrics) RecordEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheEvicted.Add(float64(n))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
