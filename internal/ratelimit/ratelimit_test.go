package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Burst(t *testing.T) {
	cases := []struct {
		name  string
		burst int
		calls int
		want  int
	}{
		{"within burst", 3, 3, 3},
		{"over burst", 2, 5, 2},
		{"single token", 1, 4, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rl := New(0.01, tc.burst)
			defer rl.Stop()

			allowed := 0
			for range tc.calls {
				if rl.Allow("198.51.100.4") {
					allowed++
				}
			}
			if allowed != tc.want {
				t.Errorf("allowed %d of %d calls, want %d", allowed, tc.calls, tc.want)
			}
		})
	}
}

func TestKeyedRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := New(0.01, 1)
	defer rl.Stop()

	if !rl.Allow("203.0.113.7") {
		t.Fatal("first request from 203.0.113.7 refused")
	}
	if rl.Allow("203.0.113.7") {
		t.Error("second request from 203.0.113.7 allowed past a burst of 1")
	}
	if !rl.Allow("203.0.113.8") {
		t.Error("203.0.113.8 refused because of another client's traffic")
	}
	if got := rl.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestKeyedRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := New(0.01, 1)
	defer rl.Stop()

	if err := rl.Wait(context.Background(), "client"); err != nil {
		t.Fatalf("Wait() with a token available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx, "client"); err == nil {
		t.Error("Wait() returned nil with an empty bucket and a short deadline")
	}

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx, "other"); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() on cancelled ctx = %v", err)
	}
}

func TestKeyedRateLimiter_SweepDropsIdleKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(idleTTL / 2)
	rl.Allow("recent")
	now = now.Add(idleTTL/2 + time.Second)

	rl.sweep()

	if got := rl.Len(); got != 1 {
		t.Fatalf("Len() = %d after sweep, want 1", got)
	}
	rl.mu.Lock()
	_, kept := rl.limiters["recent"]
	rl.mu.Unlock()
	if !kept {
		t.Error("recent key was swept")
	}
}

func TestKeyedRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := New(1, 1)
	rl.Stop()
	rl.Stop()
}
