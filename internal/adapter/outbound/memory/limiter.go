// Package memory provides in-memory adapter implementations.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/odisys/ces-gate/internal/domain/ratelimit"
)

// Limiter implements ratelimit.Limiter with GCRA state held in memory.
// Safe for concurrent use. A background sweep evicts idle keys so the
// map does not grow without bound.
type Limiter struct {
	tats          map[string]time.Time // theoretical arrival time per key
	mu            sync.Mutex
	stop          chan struct{}
	wg            sync.WaitGroup
	once          sync.Once
	sweepInterval time.Duration
	maxIdle       time.Duration
}

// NewLimiter creates a Limiter with default sweep settings (every 5
// minutes, evicting keys idle for an hour).
func NewLimiter() *Limiter {
	return NewLimiterWithSweep(5*time.Minute, time.Hour)
}

// NewLimiterWithSweep creates a Limiter with custom sweep settings.
func NewLimiterWithSweep(sweepInterval, maxIdle time.Duration) *Limiter {
	return &Limiter{
		tats:          make(map[string]time.Time),
		stop:          make(chan struct{}),
		sweepInterval: sweepInterval,
		maxIdle:       maxIdle,
	}
}

// Compile-time check that Limiter implements ratelimit.Limiter.
var _ ratelimit.Limiter = (*Limiter)(nil)

// Allow applies GCRA: each allowed request advances the key's theoretical
// arrival time by one emission interval; a request arriving before
// TAT minus the burst allowance is rejected.
func (l *Limiter) Allow(_ context.Context, key string, cfg ratelimit.Config) (ratelimit.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	emission := cfg.Period / time.Duration(cfg.Rate)

	if cfg.Burst < cfg.Rate {
		cfg.Burst = cfg.Rate
	}
	burstOffset := time.Duration(cfg.Burst) * emission

	tat, ok := l.tats[key]
	if !ok || tat.Before(now) {
		tat = now
	}

	allowAt := tat.Add(-burstOffset)
	if now.Before(allowAt) {
		return ratelimit.Result{
			Allowed:    false,
			RetryAfter: allowAt.Sub(now),
			ResetAfter: tat.Sub(now),
		}, nil
	}

	newTAT := tat.Add(emission)
	if newTAT.Before(now) {
		newTAT = now.Add(emission)
	}
	l.tats[key] = newTAT

	remaining := int((burstOffset - newTAT.Sub(now)) / emission)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > cfg.Burst {
		remaining = cfg.Burst
	}

	return ratelimit.Result{
		Allowed:    true,
		Remaining:  remaining,
		ResetAfter: newTAT.Sub(now),
	}, nil
}

// StartSweep starts the background eviction goroutine. It stops when ctx
// is cancelled or Stop is called.
func (l *Limiter) StartSweep(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.maxIdle)
	for key, tat := range l.tats {
		if tat.Before(cutoff) {
			delete(l.tats, key)
		}
	}
}

// Stop stops the sweep goroutine and waits for it to exit. Safe to call
// multiple times.
func (l *Limiter) Stop() {
	l.once.Do(func() {
		close(l.stop)
	})
	l.wg.Wait()
}

// Size returns the number of tracked keys.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tats)
}
