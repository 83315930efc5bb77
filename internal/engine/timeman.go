package engine

import "time"

// pollInterval is how often (in nodes visited) a worker checks the wall
// clock against the time budget (§4.5 step 2, §5 Timeouts).
const pollInterval = 1024

// TimeManager tracks the single wall-clock deadline the orchestrator sets
// at startup. Unlike a game-playing engine there is no per-move allocation
// to compute: the whole solve gets one fixed budget.
type TimeManager struct {
	start    time.Time
	deadline time.Time
}

// NewTimeManager returns a manager with the budget starting now.
func NewTimeManager(limit time.Duration) *TimeManager {
	now := time.Now()
	return &TimeManager{start: now, deadline: now.Add(limit)}
}

// Expired reports whether the deadline has passed.
func (tm *TimeManager) Expired() bool {
	return time.Now().After(tm.deadline)
}

// Elapsed returns time since the search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.start)
}
