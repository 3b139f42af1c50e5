// Package ratelimit implements the base/burst/cooldown dispatch pacing used
// by the job scheduler. The pacer decides, before every dispatch, how long
// the scheduler must wait before spawning the next worker so the upstream
// per-minute quota is never exceeded while short throughput spikes stay
// possible.
package ratelimit

import (
	"time"
)

// Config holds the pacing policy parameters.
type Config struct {
	// BaseRequestsPerMinute is the sustained request rate.
	BaseRequestsPerMinute int

	// BurstRequestsPerMinute is the elevated rate allowed during a burst.
	BurstRequestsPerMinute int

	// MaxBurstLength bounds how long a single burst may run at the burst rate.
	MaxBurstLength time.Duration

	// MinBurstLength is the minimum burst period age before the whole burst
	// state is reset and a fresh cooldown window begins.
	MinBurstLength time.Duration

	// BurstCooldown is the mandatory pause after a burst period ends before
	// burst dispatching becomes available again.
	BurstCooldown time.Duration

	// MaxConsecutiveBurstPeriods bounds how many burst periods may run
	// back to back before only the base rate remains.
	MaxConsecutiveBurstPeriods int
}

// DefaultConfig returns the pacing policy used for board API calls.
func DefaultConfig() Config {
	return Config{
		BaseRequestsPerMinute:      60,
		BurstRequestsPerMinute:     120,
		MaxBurstLength:             60 * time.Second,
		MinBurstLength:             30 * time.Second,
		BurstCooldown:              60 * time.Second,
		MaxConsecutiveBurstPeriods: 1,
	}
}

// BaseInterval returns the dispatch delay at the sustained rate.
func (c Config) BaseInterval() time.Duration {
	if c.BaseRequestsPerMinute <= 0 {
		return 0
	}
	return time.Duration(float64(time.Minute) / float64(c.BaseRequestsPerMinute))
}

// BurstInterval returns the dispatch delay at the burst rate.
func (c Config) BurstInterval() time.Duration {
	if c.BurstRequestsPerMinute <= 0 {
		return 0
	}
	return time.Duration(float64(time.Minute) / float64(c.BurstRequestsPerMinute))
}

// MaxConsecutiveBurstRequests is the number of burst-interval dispatches a
// single burst period may contain before the base rate is forced.
func (c Config) MaxConsecutiveBurstRequests() int {
	perSecond := float64(c.BurstRequestsPerMinute) / 60.0
	return int(perSecond * c.MaxBurstLength.Seconds())
}

// State is the mutable burst bookkeeping. It is mutated only by the pacer
// owning it; the predicate methods are pure.
type State struct {
	// ConsecutiveBurstRequests counts burst-interval dispatches in the
	// current burst period.
	ConsecutiveBurstRequests int

	// ConsecutiveBurstPeriods counts burst periods since the last reset.
	ConsecutiveBurstPeriods int

	// BurstAvailableAfter is the instant burst dispatching unlocks again.
	BurstAvailableAfter time.Time

	// BurstPeriodStartedAt is when the current burst period began. Zero when
	// no burst period is in progress.
	BurstPeriodStartedAt time.Time
}

// CooldownActive reports whether burst dispatching is currently locked out.
func (s *State) CooldownActive(now time.Time) bool {
	return !now.After(s.BurstAvailableAfter)
}

// BurstRequestsAvailable reports whether the current burst period has
// dispatch budget left.
func (s *State) BurstRequestsAvailable(cfg Config) bool {
	return s.ConsecutiveBurstRequests < cfg.MaxConsecutiveBurstRequests()
}

// BurstPeriodsAvailable reports whether another burst period may start.
func (s *State) BurstPeriodsAvailable(cfg Config) bool {
	return s.ConsecutiveBurstPeriods < cfg.MaxConsecutiveBurstPeriods
}

// BurstPeriodExpired reports whether the in-progress burst period has lasted
// at least the configured minimum burst length.
func (s *State) BurstPeriodExpired(now time.Time, cfg Config) bool {
	if s.BurstPeriodStartedAt.IsZero() {
		return false
	}
	return now.Sub(s.BurstPeriodStartedAt) >= cfg.MinBurstLength
}
