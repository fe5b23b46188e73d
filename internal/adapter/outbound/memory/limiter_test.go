package memory

import (
	"context"
	"testing"
	"time"

	"github.com/odisys/ces-gate/internal/domain/ratelimit"
)

// exhaust issues requests until one is rejected, returning the rejection.
func exhaust(t *testing.T, l *Limiter, key string, cfg ratelimit.Config) ratelimit.Result {
	t.Helper()
	for i := 0; i < cfg.Burst+4; i++ {
		res, err := l.Allow(context.Background(), key, cfg)
		if err != nil {
			t.Fatalf("allow failed: %v", err)
		}
		if !res.Allowed {
			return res
		}
	}
	t.Fatalf("no rejection after %d requests", cfg.Burst+4)
	return ratelimit.Result{}
}

func TestLimiterAllowsWithinBurst(t *testing.T) {
	l := NewLimiter()
	cfg := ratelimit.Config{Rate: 10, Burst: 10, Period: time.Minute}

	for i := 0; i < 10; i++ {
		res, err := l.Allow(context.Background(), "user:merchant-1", cfg)
		if err != nil {
			t.Fatalf("allow failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
}

func TestLimiterRejectsBeyondBurst(t *testing.T) {
	l := NewLimiter()
	cfg := ratelimit.Config{Rate: 2, Burst: 2, Period: time.Hour}

	res := exhaust(t, l, "ip:10.0.0.1", cfg)
	if res.RetryAfter <= 0 {
		t.Errorf("rejection must carry a retry hint, got %v", res.RetryAfter)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := NewLimiter()
	cfg := ratelimit.Config{Rate: 1, Burst: 1, Period: time.Hour}

	exhaust(t, l, "user:a", cfg)

	res, err := l.Allow(context.Background(), "user:b", cfg)
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if !res.Allowed {
		t.Fatal("user:b must not share user:a's allowance")
	}
}

func TestLimiterRecoversOverTime(t *testing.T) {
	l := NewLimiter()
	cfg := ratelimit.Config{Rate: 1, Burst: 1, Period: 50 * time.Millisecond}

	res := exhaust(t, l, "user:a", cfg)

	time.Sleep(res.RetryAfter + 10*time.Millisecond)
	res, err := l.Allow(context.Background(), "user:a", cfg)
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if !res.Allowed {
		t.Fatal("allowance should recover after the retry interval")
	}
}

func TestLimiterSweepEvictsIdleKeys(t *testing.T) {
	l := NewLimiterWithSweep(time.Hour, time.Nanosecond)
	cfg := ratelimit.Config{Rate: 1, Burst: 1, Period: time.Millisecond}

	if _, err := l.Allow(context.Background(), "user:a", cfg); err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if l.Size() != 1 {
		t.Fatalf("expected 1 tracked key, got %d", l.Size())
	}

	time.Sleep(2 * time.Millisecond)
	l.sweep()
	if l.Size() != 0 {
		t.Fatalf("sweep should evict idle keys, %d remain", l.Size())
	}
}

func TestLimiterStopIsIdempotent(t *testing.T) {
	l := NewLimiter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l.StartSweep(ctx)
	l.Stop()
	l.Stop()
}
