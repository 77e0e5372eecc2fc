// Package quota governs the shared request budget of one forge credential.
//
// Every request in a run is admitted through a single Governor. The Governor
// learns the remaining budget and the reset instant from response headers and
// decides, before each request, whether it may go out now or has to wait for
// the window to roll over. Admission is a critical section: while one caller
// waits out a window, every other caller is blocked behind it.
package quota

import (
	"context"
	"sync"
	"time"

	"commitcrawl/internal/platform/logger"

	"golang.org/x/time/rate"
)

const (
	// DefaultLowWater is the remaining budget at or below which requests are deferred
	DefaultLowWater = 10
	// DefaultMinBackoff is the shortest wait the Governor will ever ask for
	DefaultMinBackoff = 10 * time.Second
	// resetSlack is added past the advertised reset so the first request lands in the new window
	resetSlack = time.Second
)

// Decision is the outcome of an admission check
type Decision struct {
	Proceed bool
	Wait    time.Duration
}

// State is a point-in-time copy of the governor's view of the budget
type State struct {
	Known     bool
	Remaining int
	ResetAt   time.Time
	Waits     int
	Waited    time.Duration
}

// Options configures a Governor
type Options struct {
	LowWater   int
	MinBackoff time.Duration
	// RPS paces admissions when > 0; 0 disables pacing
	RPS float64
}

// Governor tracks the budget of a credential and admits requests against it
type Governor struct {
	mu sync.Mutex

	lowWater   int
	minBackoff time.Duration
	pace       *rate.Limiter

	known        bool
	remaining    int
	resetAt      time.Time
	blockedUntil time.Time
	// windowDone is the reset instant of the last window waited out;
	// snapshots from that window or earlier are stale
	windowDone time.Time

	waits  int
	waited time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New builds a Governor; zero options fall back to the defaults
func New(opt Options) *Governor {
	g := &Governor{
		lowWater:   opt.LowWater,
		minBackoff: opt.MinBackoff,
		now:        time.Now,
		sleep:      sleepCtx,
	}
	if g.lowWater <= 0 {
		g.lowWater = DefaultLowWater
	}
	if g.minBackoff <= 0 {
		g.minBackoff = DefaultMinBackoff
	}
	if opt.RPS > 0 {
		g.pace = rate.NewLimiter(rate.Limit(opt.RPS), 1)
	}
	return g
}

// Observe records the latest quota snapshot from a response. A snapshot whose
// reset is not past a window already waited out is dropped; it comes from a
// request that went out before the wait ended.
func (g *Governor) Observe(remaining int, resetAt time.Time) {
	if remaining < 0 {
		remaining = 0
	}
	g.mu.Lock()
	if !resetAt.IsZero() && !resetAt.After(g.windowDone) {
		g.mu.Unlock()
		return
	}
	g.known = true
	g.remaining = remaining
	g.resetAt = resetAt
	g.mu.Unlock()
}

// ObserveThrottle records a throttled response. A zero-remaining snapshot is
// stored so the next admission waits for the reset; retryAfter, when set,
// holds every caller back for at least that long.
func (g *Governor) ObserveThrottle(resetAt time.Time, retryAfter time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.known = true
	g.remaining = 0
	if !resetAt.IsZero() {
		g.resetAt = resetAt
	}
	if retryAfter > 0 {
		until := g.now().Add(retryAfter)
		if until.After(g.blockedUntil) {
			g.blockedUntil = until
		}
	}
}

// Admit reports whether a request may go out now. It does not mutate state.
func (g *Governor) Admit() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.admitLocked()
}

func (g *Governor) admitLocked() Decision {
	now := g.now()
	wait := time.Duration(0)
	if g.known && g.remaining <= g.lowWater {
		wait = max(g.minBackoff, g.resetAt.Sub(now)+resetSlack)
	}
	if d := g.blockedUntil.Sub(now); d > wait {
		wait = d
	}
	if wait > 0 {
		return Decision{Wait: wait}
	}
	return Decision{Proceed: true}
}

// Acquire blocks until a request may be issued, then reserves one unit of budget.
// Waiting happens while holding the lock, so no other caller can slip a request
// out against a budget that a wait was supposed to protect.
func (g *Governor) Acquire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.admitLocked()
	if !d.Proceed {
		window := g.known && g.remaining <= g.lowWater
		logger.C(ctx).Warn().
			Int("remaining", g.remaining).
			Time("reset_at", g.resetAt).
			Dur("wait", d.Wait).
			Msg("quota low, waiting for reset")
		if err := g.sleep(ctx, d.Wait); err != nil {
			return err
		}
		g.waits++
		g.waited += d.Wait
		// the window has rolled over; the next response tells us the new budget
		if window && g.resetAt.After(g.windowDone) {
			g.windowDone = g.resetAt
		}
		g.known = false
		g.blockedUntil = time.Time{}
	}

	if g.pace != nil {
		if err := g.pace.Wait(ctx); err != nil {
			return err
		}
	}

	if g.known && g.remaining > 0 {
		g.remaining--
	}
	return nil
}

// Snapshot returns a copy of the current state
func (g *Governor) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		Known:     g.known,
		Remaining: g.remaining,
		ResetAt:   g.resetAt,
		Waits:     g.waits,
		Waited:    g.waited,
	}
}

// sleepCtx sleeps for d or returns early when ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
