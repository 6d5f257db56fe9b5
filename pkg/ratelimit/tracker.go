package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	throttleAvailablePoints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_throttle_available_points",
		Help: "Query cost points available in the remote API throttle bucket",
	})

	throttleWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_throttle_waits_total",
		Help: "Total number of requests delayed because the throttle bucket was low",
	})
)

// Tracker stores throttle state in Redis and gates requests on it.
type Tracker struct {
	redis            *redis.Client
	logger           zerolog.Logger
	minimumAvailable float64
	now              func() time.Time
}

// NewTracker creates a new throttle tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:            redisClient,
		logger:           logger,
		minimumAvailable: DefaultMinimumAvailable,
		now:              time.Now,
	}
}

// SetMinimumAvailable changes the point floor below which Wait blocks.
func (t *Tracker) SetMinimumAvailable(points float64) {
	t.minimumAvailable = points
}

// GetState retrieves the current throttle state from Redis.
// Returns nil and no error when nothing has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	vals, err := t.redis.MGet(ctx,
		RedisKeyCurrentlyAvailable,
		RedisKeyMaximumAvailable,
		RedisKeyRestoreRate,
		RedisKeyLastUpdate,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("get throttle state: %w", err)
	}
	if vals[0] == nil || vals[3] == nil {
		return nil, nil
	}

	var nums [3]float64
	for i := 0; i < 3; i++ {
		s, _ := vals[i].(string)
		if s == "" {
			continue
		}
		if nums[i], err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("parse throttle field %d: %w", i, err)
		}
	}

	nanos, err := strconv.ParseInt(fmt.Sprint(vals[3]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse last update: %w", err)
	}

	return &State{
		ThrottleStatus: ThrottleStatus{
			CurrentlyAvailable: nums[0],
			MaximumAvailable:   nums[1],
			RestoreRate:        nums[2],
		},
		LastUpdate: time.Unix(0, nanos),
	}, nil
}

// Update records the throttle status from a response's cost extension.
func (t *Tracker) Update(ctx context.Context, cost Cost) error {
	ts := cost.ThrottleStatus
	if ts.MaximumAvailable <= 0 {
		// Response carried no throttle information.
		return nil
	}

	now := t.now()
	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyCurrentlyAvailable, strconv.FormatFloat(ts.CurrentlyAvailable, 'f', -1, 64), 0)
	pipe.Set(ctx, RedisKeyMaximumAvailable, strconv.FormatFloat(ts.MaximumAvailable, 'f', -1, 64), 0)
	pipe.Set(ctx, RedisKeyRestoreRate, strconv.FormatFloat(ts.RestoreRate, 'f', -1, 64), 0)
	pipe.Set(ctx, RedisKeyLastUpdate, now.UnixNano(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}

	throttleAvailablePoints.Set(ts.CurrentlyAvailable)

	t.logger.Debug().
		Float64("available", ts.CurrentlyAvailable).
		Float64("maximum", ts.MaximumAvailable).
		Float64("restore_rate", ts.RestoreRate).
		Float64("actual_cost", cost.ActualQueryCost).
		Msg("Throttle state updated")

	return nil
}

// Wait blocks until the estimated available points reach the configured floor,
// or ctx is done. Missing state lets the request through.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	wait := state.WaitFor(t.minimumAvailable, t.now())
	if wait <= 0 {
		return nil
	}

	throttleWaitsTotal.Inc()
	t.logger.Warn().
		Float64("available", state.Available(t.now())).
		Dur("wait", wait).
		Msg("Throttle bucket low - delaying request")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
