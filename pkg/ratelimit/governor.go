// Package ratelimit paces outbound Graph API requests. The remote platform
// enforces a strict per-token request budget, so every request issued for a
// session must pass through a single Governor that spaces dispatch times.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request pacing.
var (
	governorWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_governor_waits_total",
		Help: "Total requests delayed by the inter-request spacing governor",
	})

	governorWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "graph_governor_wait_seconds",
		Help:    "Time requests spent waiting for a dispatch slot",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5},
	})
)

// DefaultMinInterval is the spacing applied between requests when no explicit
// interval is configured.
const DefaultMinInterval = 200 * time.Millisecond

// Governor enforces a minimum interval between consecutive requests issued by
// one client session. The dispatch clock is a single serialized value shared
// by every worker; workers reserve a slot under the mutex and sleep outside
// it, so no two requests ever begin less than minInterval apart while slow
// workers never block another worker's reservation.
type Governor struct {
	mu          sync.Mutex
	nextSlot    time.Time
	minInterval time.Duration
	logger      zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewGovernor creates a governor with the given minimum inter-request
// interval. A non-positive interval falls back to DefaultMinInterval.
func NewGovernor(minInterval time.Duration, logger zerolog.Logger) *Governor {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Governor{
		minInterval: minInterval,
		logger:      logger,
		now:         time.Now,
	}
}

// MinInterval returns the configured inter-request spacing.
func (g *Governor) MinInterval() time.Duration {
	return g.minInterval
}

// Wait blocks until the caller may dispatch a request, or until ctx is
// cancelled. The returned error is non-nil only on cancellation; in that case
// the reserved slot is simply abandoned, which errs on the side of spacing
// requests further apart.
func (g *Governor) Wait(ctx context.Context) error {
	g.mu.Lock()
	now := g.now()
	slot := g.nextSlot
	if slot.Before(now) {
		slot = now
	}
	g.nextSlot = slot.Add(g.minInterval)
	g.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return nil
	}

	governorWaitsTotal.Inc()
	governorWaitSeconds.Observe(delay.Seconds())
	g.logger.Debug().
		Dur("delay", delay).
		Msg("Pacing request dispatch")

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate governor wait: %w", ctx.Err())
	case <-time.After(delay):
		return nil
	}
}
