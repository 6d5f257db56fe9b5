// Package export runs the order export pipeline: list open orders, fetch
// them in staged batches, and fold them into export rows and a picking list.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/shop-order-export/pkg/batch"
	"github.com/Sternrassler/shop-order-export/pkg/cache"
	"github.com/Sternrassler/shop-order-export/pkg/client"
	"github.com/Sternrassler/shop-order-export/pkg/orders"
	"github.com/Sternrassler/shop-order-export/pkg/picklist"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_runs_total",
		Help: "Total export runs by outcome",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "export_run_duration_seconds",
		Help:    "Export run duration in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	ordersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "export_orders_total",
		Help: "Total orders exported as rows",
	})

	skippedOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "export_skipped_orders_total",
		Help: "Total listed orders missing from the export",
	})
)

// Run outcomes.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
	OutcomeCached  = "cached"
)

// Querier runs one GraphQL query. *client.Client implements it.
type Querier interface {
	Query(ctx context.Context, operation, query string) (*client.Response, error)
}

// Config tunes the pipeline.
type Config struct {
	BatchSize   int
	Scheduler   batch.Config
	PageSize    int
	PaginateAll bool
	StatusQuery string
	Keys        picklist.AttributeKeys
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:   batch.DefaultSize,
		Scheduler:   batch.DefaultConfig(),
		PageSize:    orders.DefaultPageSize,
		StatusQuery: orders.DefaultStatusQuery,
		Keys:        picklist.DefaultAttributeKeys(),
	}
}

// Request selects what to export.
type Request struct {
	// DeliveryDate is the target date for the picking list, e.g. "Thu Dec 24 2020".
	DeliveryDate string

	// StatusQuery overrides the configured order filter when non-empty.
	StatusQuery string
}

// Exporter runs export pipelines. It holds no state across runs.
type Exporter struct {
	lister     *orders.Lister
	scheduler  *batch.Scheduler
	aggregator *picklist.Aggregator
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// New creates an exporter issuing queries through q.
func New(q Querier, config Config) *Exporter {
	if config.BatchSize <= 0 {
		config.BatchSize = batch.DefaultSize
	}
	if config.StatusQuery == "" {
		config.StatusQuery = orders.DefaultStatusQuery
	}
	if config.Keys == (picklist.AttributeKeys{}) {
		config.Keys = picklist.DefaultAttributeKeys()
	}

	return &Exporter{
		lister:     orders.NewLister(q, config.PageSize, config.PaginateAll),
		scheduler:  batch.NewScheduler(q, config.Scheduler),
		aggregator: picklist.NewAggregator(config.Keys),
		config:     config,
		logger:     log.With().Str("component", "exporter").Logger(),
	}
}

// WithCache enables result caching through m.
func (e *Exporter) WithCache(m *cache.Manager) *Exporter {
	e.cache = m
	return e
}

// Run executes one export. Only a failed id listing or a cancelled ctx
// returns an error; failed batches are reported on the result.
func (e *Exporter) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	statusQuery := req.StatusQuery
	if statusQuery == "" {
		statusQuery = e.config.StatusQuery
	}

	logger := e.logger.With().
		Str("run_id", runID).
		Str("delivery_date", req.DeliveryDate).
		Logger()

	key, cacheable := e.cacheKey(ctx, logger, statusQuery, req.DeliveryDate)
	if cacheable {
		if res := e.lookup(ctx, logger, key); res != nil {
			runsTotal.WithLabelValues(OutcomeCached).Inc()
			return res, nil
		}
	}

	logger.Info().Str("status_query", statusQuery).Msg("Starting export")

	listing, err := e.lister.ListIDs(ctx, statusQuery)
	if err != nil {
		runsTotal.WithLabelValues(OutcomeFailed).Inc()
		logger.Error().Err(err).Str("error_kind", client.Kind(err)).Msg("Export aborted")
		return nil, err
	}

	batches := batch.Build(listing.IDs, e.config.BatchSize)
	results := e.scheduler.Run(ctx, batches)
	if err := ctx.Err(); err != nil {
		runsTotal.WithLabelValues(OutcomeFailed).Inc()
		logger.Warn().Err(err).Msg("Export cancelled")
		return nil, fmt.Errorf("export cancelled: %w", err)
	}

	agg := e.aggregator.Aggregate(results, req.DeliveryDate)
	table := picklist.Assemble(agg.Rows, agg.PickingList)

	res := &Result{
		RunID:          runID,
		DeliveryDate:   req.DeliveryDate,
		Headers:        table.Headers,
		Rows:           table.Rows,
		PickingList:    table.PickingList,
		Orders:         len(listing.IDs),
		SkippedBatches: skippedBatches(results),
		SkippedOrders:  agg.SkippedOrders,
		Truncated:      listing.Truncated,
		GeneratedAt:    time.Now().UTC(),
	}

	outcome := OutcomeOK
	if !res.Complete() {
		outcome = OutcomePartial
	}
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(time.Since(start).Seconds())
	ordersTotal.Add(float64(len(res.Rows)))
	skippedOrdersTotal.Add(float64(res.Orders - len(res.Rows)))

	logger.Info().
		Int("orders", res.Orders).
		Int("rows", len(res.Rows)).
		Int("items", len(res.PickingList)).
		Int("skipped_batches", len(res.SkippedBatches)).
		Int("skipped_orders", len(res.SkippedOrders)).
		Bool("truncated", res.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Export complete")

	// Partial results are not cached; the next request retries what was missed.
	if cacheable && res.Complete() {
		e.store(ctx, logger, key, res)
	}

	return res, nil
}

func (e *Exporter) cacheKey(ctx context.Context, logger zerolog.Logger, statusQuery, date string) (cache.Key, bool) {
	if e.cache == nil {
		return cache.Key{}, false
	}
	key, err := e.cache.Key(ctx, statusQuery, date)
	if err != nil {
		logger.Warn().Err(err).Msg("Export cache unavailable, running uncached")
		return cache.Key{}, false
	}
	return key, true
}

func (e *Exporter) lookup(ctx context.Context, logger zerolog.Logger, key cache.Key) *Result {
	entry, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Export cache read failed")
		}
		return nil
	}

	var res Result
	if err := json.Unmarshal(entry.Data, &res); err != nil {
		logger.Warn().Err(err).Msg("Discarding undecodable cached export")
		return nil
	}
	res.Cached = true

	logger.Info().
		Str("cached_run_id", res.RunID).
		Dur("age", entry.Age()).
		Msg("Serving cached export")
	return &res
}

func (e *Exporter) store(ctx context.Context, logger zerolog.Logger, key cache.Key, res *Result) {
	data, err := json.Marshal(res)
	if err != nil {
		logger.Warn().Err(err).Msg("Encoding export for cache failed")
		return
	}
	if err := e.cache.Set(ctx, key, data); err != nil {
		logger.Warn().Err(err).Msg("Export cache write failed")
	}
}

func skippedBatches(results []batch.Result) []SkippedBatch {
	out := []SkippedBatch{}
	for _, r := range results {
		if r.OK() {
			continue
		}
		out = append(out, SkippedBatch{
			Index:    r.Batch.Index,
			OrderIDs: r.Batch.IDs(),
			Kind:     client.Kind(r.Err),
			Message:  r.Err.Error(),
		})
	}
	return out
}
