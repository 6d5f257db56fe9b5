package ratelimit

import (
	"testing"
	"time"
)

func TestState_Available(t *testing.T) {
	base := time.Date(2020, 12, 24, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		state    State
		at       time.Time
		expected float64
	}{
		{
			name: "no time elapsed",
			state: State{
				ThrottleStatus: ThrottleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 200, RestoreRate: 50},
				LastUpdate:     base,
			},
			at:       base,
			expected: 200,
		},
		{
			name: "refilled for two seconds",
			state: State{
				ThrottleStatus: ThrottleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 200, RestoreRate: 50},
				LastUpdate:     base,
			},
			at:       base.Add(2 * time.Second),
			expected: 300,
		},
		{
			name: "capped at maximum",
			state: State{
				ThrottleStatus: ThrottleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 990, RestoreRate: 50},
				LastUpdate:     base,
			},
			at:       base.Add(time.Minute),
			expected: 1000,
		},
		{
			name: "clock behind last update",
			state: State{
				ThrottleStatus: ThrottleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 10, RestoreRate: 50},
				LastUpdate:     base,
			},
			at:       base.Add(-time.Second),
			expected: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Available(tt.at); got != tt.expected {
				t.Errorf("Available() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_WaitFor(t *testing.T) {
	base := time.Date(2020, 12, 24, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		status   ThrottleStatus
		need     float64
		expected time.Duration
	}{
		{
			name:     "enough points",
			status:   ThrottleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 500, RestoreRate: 50},
			need:     100,
			expected: 0,
		},
		{
			name:     "deficit of 50 at 50 per second",
			status:   ThrottleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 50, RestoreRate: 50},
			need:     100,
			expected: time.Second,
		},
		{
			name:     "need above maximum is capped",
			status:   ThrottleStatus{MaximumAvailable: 100, CurrentlyAvailable: 0, RestoreRate: 50},
			need:     400,
			expected: 2 * time.Second,
		},
		{
			name:     "unknown restore rate",
			status:   ThrottleStatus{MaximumAvailable: 1000, CurrentlyAvailable: 0},
			need:     100,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{ThrottleStatus: tt.status, LastUpdate: base}
			if got := s.WaitFor(tt.need, base); got != tt.expected {
				t.Errorf("WaitFor(%v) = %v, want %v", tt.need, got, tt.expected)
			}
		})
	}
}

func TestState_IsStale(t *testing.T) {
	now := time.Now()
	fresh := State{LastUpdate: now.Add(-time.Second)}
	stale := State{LastUpdate: now.Add(-10 * time.Minute)}

	if fresh.IsStale(5*time.Minute, now) {
		t.Error("fresh state reported stale")
	}
	if !stale.IsStale(5*time.Minute, now) {
		t.Error("stale state reported fresh")
	}
}
