package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/shop-order-export/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_batches_total",
		Help: "Total detail batches by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "export_batch_duration_seconds",
		Help:    "Detail batch round-trip duration in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

// Config holds scheduler configuration.
type Config struct {
	// Interval is the minimum spacing between batch dispatches.
	Interval time.Duration

	// Timeout bounds each batch's remote call.
	Timeout time.Duration
}

// DefaultConfig returns the pacing the remote API tolerates.
func DefaultConfig() Config {
	return Config{
		Interval: 4 * time.Second,
		Timeout:  30 * time.Second,
	}
}

// Querier runs one GraphQL query. *client.Client implements it.
type Querier interface {
	Query(ctx context.Context, operation, query string) (*client.Response, error)
}

// Result is the outcome of one batch: Data on success, Err on failure.
type Result struct {
	Batch Batch

	// Data maps each alias to its raw order object (possibly "null").
	Data map[string]json.RawMessage
	Err  error

	// Offset is the dispatch time relative to the start of the run.
	Offset   time.Duration
	Duration time.Duration
}

// OK reports whether the batch produced a usable response.
func (r Result) OK() bool {
	return r.Err == nil
}

// Lookup returns the raw order object for alias.
func (r Result) Lookup(alias string) (json.RawMessage, bool) {
	raw, ok := r.Data[alias]
	return raw, ok
}

// Scheduler dispatches batches at a fixed pace and joins their results.
type Scheduler struct {
	querier Querier
	config  Config
	logger  zerolog.Logger
}

// NewScheduler creates a scheduler. A zero Timeout falls back to the default.
func NewScheduler(q Querier, config Config) *Scheduler {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Interval < 0 {
		config.Interval = 0
	}
	return &Scheduler{
		querier: q,
		config:  config,
		logger:  log.With().Str("component", "batch-scheduler").Logger(),
	}
}

// Run dispatches batch i no earlier than i*Interval after Run starts and waits
// for every dispatched batch to finish. Results are indexed like batches. A
// failing batch never affects its siblings. When ctx is cancelled, batches not
// yet dispatched are recorded as failed and in-flight calls are cancelled.
func (s *Scheduler) Run(ctx context.Context, batches []Batch) []Result {
	results := make([]Result, len(batches))
	for i := range batches {
		results[i].Batch = batches[i]
	}
	if len(batches) == 0 {
		return results
	}

	start := time.Now()
	limit := rate.Inf
	if s.config.Interval > 0 {
		limit = rate.Every(s.config.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	s.logger.Info().
		Int("batches", len(batches)).
		Dur("interval", s.config.Interval).
		Msg("Starting staged batch fetch")

	var g errgroup.Group
	for i := range batches {
		if err := limiter.Wait(ctx); err != nil {
			cause := ctx.Err()
			if cause == nil {
				// The next slot lies beyond the context deadline.
				cause = context.DeadlineExceeded
			}
			for j := i; j < len(batches); j++ {
				results[j].Err = fmt.Errorf("batch %d not dispatched: %w", j, cause)
				batchesTotal.WithLabelValues("failed").Inc()
			}
			s.logger.Warn().
				Err(err).
				Int("dispatched", i).
				Int("abandoned", len(batches)-i).
				Msg("Stopping dispatch")
			break
		}

		r := &results[i]
		r.Offset = time.Since(start)
		g.Go(func() error {
			s.fetch(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.Info().
		Int("batches", len(batches)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Staged batch fetch complete")

	return results
}

// fetch performs one batch call and records its outcome on r.
func (s *Scheduler) fetch(ctx context.Context, r *Result) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	logger := s.logger.With().Int("batch", r.Batch.Index).Logger()
	logger.Debug().
		Int("orders", len(r.Batch.Requests)).
		Dur("offset", r.Offset).
		Msg("Dispatching batch")

	started := time.Now()
	resp, err := s.querier.Query(ctx, "orders_batch", r.Batch.Query)
	r.Duration = time.Since(started)
	batchDuration.Observe(r.Duration.Seconds())

	if err == nil {
		r.Data, err = decodeData(resp)
	}
	if err != nil {
		r.Data = nil
		r.Err = fmt.Errorf("batch %d: %w", r.Batch.Index, err)
		batchesTotal.WithLabelValues("failed").Inc()
		logger.Warn().
			Err(err).
			Str("error_kind", client.Kind(err)).
			Dur("duration", r.Duration).
			Msg("Batch failed")
		return
	}

	batchesTotal.WithLabelValues("ok").Inc()
	logger.Debug().
		Dur("duration", r.Duration).
		Msg("Batch complete")
}

func decodeData(resp *client.Response) (map[string]json.RawMessage, error) {
	if resp == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, &client.DecodeError{Err: errors.New("response has no data")}
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, &client.DecodeError{Snippet: string(resp.Data), Err: err}
	}
	return data, nil
}
