// Package remote implements the external place-name sources: the GeoNames
// JSON API and the Getty TGN HTML interface. Each adapter runs under its
// own deadline and builds its result map in isolation, so one source
// failing or timing out never taints the other.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skyviewcafe/atlas/internal/model"
)

// Adapter is one remote place-name source.
type Adapter interface {
	// Name identifies the source in logs, metrics and info lines.
	Name() string
	// Search queries the source for the parsed request. A non-nil Result
	// may accompany an error when partial data survived (Getty soft-limit
	// aborts). Deadline overruns surface as context.DeadlineExceeded.
	Search(ctx context.Context, parsed model.ParsedSearchString) (*Result, error)
}

// Result is one adapter's contribution to a search.
type Result struct {
	Matches *model.LocationMap
	Metrics Metrics
}

// Metrics counts what one adapter call saw and kept. The orchestrator
// folds these into the response's info lines.
type Metrics struct {
	// Raw is the number of items the source returned before filtering.
	Raw int
	// Matched is the number of items that survived the filters.
	Matched int
	// Retrieved counts secondary (per-item) fetches that completed.
	Retrieved int
	// Pages counts preliminary result pages fetched.
	Pages int
	// Complete is false when a soft retrieval budget cut the run short.
	Complete bool
	// FailedSyntax marks a query the source rejected as malformed.
	FailedSyntax bool
	// TooManyResults marks a query the source refused as too broad.
	TooManyResults bool
}

var (
	remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_remote_requests_total",
		Help: "Remote source lookups by source and outcome.",
	}, []string{"source", "outcome"})

	remoteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_remote_request_duration_seconds",
		Help:    "Remote source lookup latency.",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 40, 110},
	}, []string{"source"})

	remoteMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_remote_matches_total",
		Help: "Locations accepted from remote sources.",
	}, []string{"source"})
)

// observe records one adapter call in the Prometheus counters.
func observe(source string, start time.Time, matched int, err error) {
	remoteDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	remoteRequests.WithLabelValues(source, outcome).Inc()
	if matched > 0 {
		remoteMatches.WithLabelValues(source).Add(float64(matched))
	}
}

func statusError(source string, status int) error {
	return fmt.Errorf("%s server error (HTTP %d)", source, status)
}
