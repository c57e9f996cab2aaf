// Package budget bounds how often the expensive generation call may run.
// The guard is defense in depth behind the idempotency key: it caps
// attempts per actor per window so that a caching bug or a client retry
// storm cannot silently multiply spend.
package budget

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"encore.dev/rlog"
	"golang.org/x/time/rate"
)

// Config bounds attempts per actor and process-wide invocation rate.
type Config struct {
	// Ceiling is the maximum attempts per actor inside Window.
	Ceiling int
	// Window is the rolling period attempts are counted over.
	Window time.Duration
	// InvocationsPerSecond throttles engine calls across all actors in
	// this process. Burst allows short spikes through.
	InvocationsPerSecond float64
	Burst                int
}

// DefaultConfig allows a handful of attempts per actor per day and a gentle
// process-wide engine rate.
func DefaultConfig() Config {
	return Config{
		Ceiling:              5,
		Window:               24 * time.Hour,
		InvocationsPerSecond: 2,
		Burst:                5,
	}
}

type attempt struct {
	at           time.Time
	artifactType string
	success      bool
	duration     time.Duration
}

// Guard tracks attempts per actor. It is purely additive bookkeeping: it
// never dedupes logical requests, only counts what actually ran.
type Guard struct {
	mu       sync.Mutex
	byActor  map[string][]attempt
	cfg      Config
	limiter  *rate.Limiter
	exceeded atomic.Int64
	now      func() time.Time
}

func NewGuard(cfg Config) *Guard {
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultConfig().Ceiling
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.InvocationsPerSecond <= 0 {
		cfg.InvocationsPerSecond = DefaultConfig().InvocationsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	return &Guard{
		byActor: make(map[string][]attempt),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.InvocationsPerSecond), cfg.Burst),
		now:     time.Now,
	}
}

// RecordAttempt books one engine invocation for actor. Crossing the ceiling
// bumps the anomaly counter and logs; it does not undo the attempt.
func (g *Guard) RecordAttempt(actor, artifactType string, success bool, duration time.Duration) {
	now := g.now()

	g.mu.Lock()
	kept := pruneBefore(g.byActor[actor], now.Add(-g.cfg.Window))
	kept = append(kept, attempt{at: now, artifactType: artifactType, success: success, duration: duration})
	g.byActor[actor] = kept
	count := len(kept)
	g.mu.Unlock()

	if count > g.cfg.Ceiling {
		g.exceeded.Add(1)
		rlog.Warn("call budget exceeded",
			"actor", actor,
			"artifact_type", artifactType,
			"attempts_in_window", count,
			"ceiling", g.cfg.Ceiling,
		)
	}
}

// AttemptsInWindow counts the actor's attempts inside the rolling window.
func (g *Guard) AttemptsInWindow(actor string) int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.byActor[actor] = pruneBefore(g.byActor[actor], now.Add(-g.cfg.Window))
	return len(g.byActor[actor])
}

// AlreadySucceeded reports whether actor already has a successful attempt
// for artifactType in the window. Operators use it to tell heavy users from
// runaway loops.
func (g *Guard) AlreadySucceeded(actor, artifactType string) bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.byActor[actor] = pruneBefore(g.byActor[actor], now.Add(-g.cfg.Window))
	for _, a := range g.byActor[actor] {
		if a.success && a.artifactType == artifactType {
			return true
		}
	}
	return false
}

// Exceeded reports whether the actor is at or over the ceiling. The guard
// never blocks an actor's first attempts; it is a ceiling, not a gate.
func (g *Guard) Exceeded(actor string) bool {
	return g.AttemptsInWindow(actor) >= g.cfg.Ceiling
}

// AllowInvocation consults the process-wide engine rate limit.
func (g *Guard) AllowInvocation() bool {
	return g.limiter.Allow()
}

// WaitInvocation blocks until the process-wide rate limit admits another
// engine call, or ctx is done.
func (g *Guard) WaitInvocation(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// ExceededEvents returns how many times any actor crossed the ceiling since
// start. Exposed so an operator can alert on it.
func (g *Guard) ExceededEvents() int64 {
	return g.exceeded.Load()
}

// Prune drops actors whose attempts all fell out of the window. Driven by
// the same cron job that sweeps the result cache.
func (g *Guard) Prune() int {
	cutoff := g.now().Add(-g.cfg.Window)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for actor, attempts := range g.byActor {
		kept := pruneBefore(attempts, cutoff)
		if len(kept) == 0 {
			delete(g.byActor, actor)
			removed++
			continue
		}
		g.byActor[actor] = kept
	}
	return removed
}

func pruneBefore(attempts []attempt, cutoff time.Time) []attempt {
	kept := attempts[:0]
	for _, a := range attempts {
		if a.at.After(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}
