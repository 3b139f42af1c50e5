package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for dispatch pacing.
var (
	pacerBurstRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "booru_pacer_burst_requests",
		Help: "Consecutive burst-interval dispatches in the current burst period",
	})

	pacerIntervalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booru_pacer_intervals_total",
		Help: "Total dispatch intervals handed out by rate class",
	}, []string{"class"}) // "base", "burst"

	pacerBurstPeriodsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booru_pacer_burst_periods_total",
		Help: "Total burst periods entered",
	})

	pacerCooldownsForcedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booru_pacer_cooldowns_forced_total",
		Help: "Total forced resets of burst state into a cooldown window",
	})
)

// Pacer is the stateful base/burst/cooldown pacing machine. Safe for use by
// a single dispatch loop plus observers.
type Pacer struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	logger zerolog.Logger
}

// NewPacer creates a pacer for the given policy.
func NewPacer(cfg Config, logger zerolog.Logger) *Pacer {
	return &Pacer{
		cfg:    cfg,
		logger: logger,
	}
}

// NextInterval decides the delay to apply after the next dispatch. It is
// re-evaluated before every dispatch and mutates the burst bookkeeping.
func (p *Pacer) NextInterval(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Exhausted burst budget rolls into a new burst period when one is
	// still available, starting its cooldown immediately.
	for !p.state.BurstRequestsAvailable(p.cfg) && p.state.BurstPeriodsAvailable(p.cfg) {
		p.state.ConsecutiveBurstPeriods++
		p.state.ConsecutiveBurstRequests = 0
		p.state.BurstAvailableAfter = now.Add(p.cfg.BurstCooldown)
		pacerBurstPeriodsTotal.Inc()
		p.logger.Debug().
			Int("burst_periods", p.state.ConsecutiveBurstPeriods).
			Time("burst_available_after", p.state.BurstAvailableAfter).
			Msg("Burst budget exhausted, new burst period queued")
	}

	if !p.state.CooldownActive(now) && p.state.BurstRequestsAvailable(p.cfg) {
		if p.state.ConsecutiveBurstRequests == 0 {
			p.state.BurstPeriodStartedAt = now
		}
		p.state.ConsecutiveBurstRequests++
		pacerBurstRequests.Set(float64(p.state.ConsecutiveBurstRequests))
		pacerIntervalsTotal.WithLabelValues("burst").Inc()
		return p.cfg.BurstInterval()
	}

	pacerIntervalsTotal.WithLabelValues("base").Inc()
	return p.cfg.BaseInterval()
}

// Tick is called once per scheduler iteration. Once the current burst period
// has lasted at least MinBurstLength the whole burst state resets and a
// fresh cooldown window begins.
func (p *Pacer) Tick(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.BurstPeriodExpired(now, p.cfg) {
		return
	}

	p.state.ConsecutiveBurstRequests = 0
	p.state.ConsecutiveBurstPeriods = 0
	p.state.BurstAvailableAfter = now.Add(p.cfg.BurstCooldown)
	p.state.BurstPeriodStartedAt = time.Time{}
	pacerBurstRequests.Set(0)
	pacerCooldownsForcedTotal.Inc()

	p.logger.Info().
		Time("burst_available_after", p.state.BurstAvailableAfter).
		Msg("Burst state reset, cooldown window started")
}

// Base returns the configured base interval. Unlike NextInterval it does not
// touch the burst bookkeeping, so idle loops can sleep on it freely.
func (p *Pacer) Base() time.Duration {
	return p.cfg.BaseInterval()
}

// Snapshot returns a copy of the current burst state.
func (p *Pacer) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
