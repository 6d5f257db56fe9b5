// Package ratelimit tracks the remote API's query-cost throttle and delays
// requests while too few points are available. The throttle state reported in
// each response's extensions.cost.throttleStatus is shared across processes
// through Redis.
package ratelimit

import (
	"math"
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyCurrentlyAvailable = "shop:throttle:currently_available"
	RedisKeyMaximumAvailable   = "shop:throttle:maximum_available"
	RedisKeyRestoreRate        = "shop:throttle:restore_rate"
	RedisKeyLastUpdate         = "shop:throttle:last_update"
)

// DefaultMinimumAvailable is the point floor below which requests wait.
// A five-order detail query costs roughly 60 points.
const DefaultMinimumAvailable = 100

// ThrottleStatus is the throttle block reported by the remote API.
type ThrottleStatus struct {
	MaximumAvailable   float64 `json:"maximumAvailable"`
	CurrentlyAvailable float64 `json:"currentlyAvailable"`
	RestoreRate        float64 `json:"restoreRate"`
}

// Cost is the extensions.cost block of a GraphQL response.
type Cost struct {
	RequestedQueryCost float64        `json:"requestedQueryCost"`
	ActualQueryCost    float64        `json:"actualQueryCost"`
	ThrottleStatus     ThrottleStatus `json:"throttleStatus"`
}

// State is the last known throttle status plus when it was observed.
type State struct {
	ThrottleStatus
	LastUpdate time.Time `json:"last_update"`
}

// Available estimates the points available at now, assuming the bucket refilled
// at RestoreRate since LastUpdate.
func (s *State) Available(now time.Time) float64 {
	elapsed := now.Sub(s.LastUpdate).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	avail := s.CurrentlyAvailable + elapsed*s.RestoreRate
	if s.MaximumAvailable > 0 {
		avail = math.Min(avail, s.MaximumAvailable)
	}
	return avail
}

// WaitFor returns how long to wait at now until at least need points are available.
// Returns 0 when enough points are available or the restore rate is unknown.
func (s *State) WaitFor(need float64, now time.Time) time.Duration {
	if s.MaximumAvailable > 0 && need > s.MaximumAvailable {
		need = s.MaximumAvailable
	}
	deficit := need - s.Available(now)
	if deficit <= 0 || s.RestoreRate <= 0 {
		return 0
	}
	return time.Duration(deficit / s.RestoreRate * float64(time.Second))
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(s.LastUpdate) > maxAge
}
