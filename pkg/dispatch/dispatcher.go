// Package dispatch runs per-entity fetches over a bounded worker pool. The
// shared rate governor, not pool size, is the real throughput limit, so the
// pool is clamped to a small fixed ceiling regardless of caller wishes.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stratdash/meta-insights/pkg/logging"
)

// MaxWorkers is the pool ceiling. Raising it does not increase throughput
// against the governed client and risks bursting the remote limit.
const MaxWorkers = 2

// Prometheus metrics for dispatch operations.
var (
	dispatchOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_outcomes_total",
		Help: "Per-entity dispatch outcomes by result",
	}, []string{"result"})

	dispatchBatchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_batch_duration_seconds",
		Help:    "Duration of complete dispatch batches",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300},
	})
)

// Config holds worker pool configuration.
type Config struct {
	// Workers requested by the caller; clamped to [1, MaxWorkers].
	Workers int

	// ProgressEvery logs a progress line every N completions. Zero
	// disables progress logging.
	ProgressEvery int

	// EntityTimeout bounds one per-entity fetch, including its retries.
	EntityTimeout time.Duration
}

// DefaultConfig returns safe defaults for governed fan-out.
func DefaultConfig() Config {
	return Config{
		Workers:       MaxWorkers,
		ProgressEvery: 25,
		EntityTimeout: 2 * time.Minute,
	}
}

// clamp normalizes a config at the single point of use.
func (c Config) clamp(idCount int) Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Workers > MaxWorkers {
		c.Workers = MaxWorkers
	}
	if c.Workers > idCount {
		c.Workers = idCount
	}
	if c.EntityTimeout <= 0 {
		c.EntityTimeout = 2 * time.Minute
	}
	return c
}

// Func fetches the result for one entity id.
type Func[T any] func(ctx context.Context, id string) (T, error)

// Outcome is the tagged per-entity result. Every input id yields exactly one
// Outcome; a failed fetch carries a zero Value with HasData false rather
// than disappearing from the batch.
type Outcome[T any] struct {
	ID      string
	Value   T
	Err     error
	HasData bool
}

// Run fans fn out over ids with at most cfg.Workers parallel calls and
// returns one outcome per id. Completion order is unspecified; callers that
// need positional correspondence must sort afterward (see SortByID).
//
// Per-entity failures are contained in the outcome list. Context
// cancellation is the one batch-fatal condition: collected results are
// discarded and the whole dispatch fails atomically.
func Run[T any](ctx context.Context, ids []string, cfg Config, fn Func[T]) ([]Outcome[T], error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cfg = cfg.clamp(len(ids))

	logger := logging.NewLogger("dispatcher")
	start := time.Now()
	defer func() {
		dispatchBatchSeconds.Observe(time.Since(start).Seconds())
	}()

	work := make(chan string, len(ids))
	for _, id := range ids {
		work <- id
	}
	close(work)

	results := make(chan Outcome[T], len(ids))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}

				entityCtx, cancel := context.WithTimeout(ctx, cfg.EntityTimeout)
				value, err := fn(entityCtx, id)
				cancel()

				if err != nil {
					dispatchOutcomesTotal.WithLabelValues("failure").Inc()
					logger.Warn().
						Err(err).
						Str("entity_id", id).
						Msg("Per-entity fetch failed")
					var zero T
					results <- Outcome[T]{ID: id, Value: zero, Err: err}
					continue
				}

				dispatchOutcomesTotal.WithLabelValues("success").Inc()
				results <- Outcome[T]{ID: id, Value: value, HasData: true}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome[T], 0, len(ids))
	for outcome := range results {
		outcomes = append(outcomes, outcome)

		if cfg.ProgressEvery > 0 && len(outcomes)%cfg.ProgressEvery == 0 {
			logger.Info().
				Int("completed", len(outcomes)).
				Int("total", len(ids)).
				Msg("Dispatch progress")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// SortByID orders outcomes by entity id for callers that need stable output.
func SortByID[T any](outcomes []Outcome[T]) {
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].ID < outcomes[j].ID
	})
}

// Succeeded counts outcomes that carry data.
func Succeeded[T any](outcomes []Outcome[T]) int {
	n := 0
	for _, o := range outcomes {
		if o.HasData {
			n++
		}
	}
	return n
}

// Failed counts contained per-entity failures.
func Failed[T any](outcomes []Outcome[T]) int {
	return len(outcomes) - Succeeded(outcomes)
}
