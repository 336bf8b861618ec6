package queue_test

import (
	"testing"
	"time"

	"github.com/ddeklerk28/groupq/queue"
)

func TestLimits_UnconfiguredKindUnlimited(t *testing.T) {
	l := queue.NewLimits()
	for range 100 {
		if !l.Acquire("anything") {
			t.Fatal("unconfigured kind must never be throttled")
		}
	}
}

func TestLimits_MaxActive(t *testing.T) {
	l := queue.NewLimits(queue.Config{Kind: "heavy", MaxActive: 2})

	if !l.Acquire("heavy") || !l.Acquire("heavy") {
		t.Fatal("first two acquires should succeed")
	}
	if l.Acquire("heavy") {
		t.Fatal("third acquire exceeds MaxActive")
	}
	if got := l.ActiveCount("heavy"); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}

	l.Release("heavy")
	if !l.Acquire("heavy") {
		t.Fatal("acquire after release should succeed")
	}
}

func TestLimits_RatePerSecond(t *testing.T) {
	l := queue.NewLimits(queue.Config{Kind: "bursty", RatePerSecond: 1, Burst: 2})

	if !l.Acquire("bursty") || !l.Acquire("bursty") {
		t.Fatal("burst allowance should admit two acquires")
	}
	if l.Acquire("bursty") {
		t.Fatal("third acquire should be rate-limited")
	}

	// Tokens refill at one per second.
	deadline := time.Now().Add(2 * time.Second)
	for !l.Acquire("bursty") {
		if time.Now().After(deadline) {
			t.Fatal("rate limiter never refilled")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestLimits_SetConfigReplaces(t *testing.T) {
	l := queue.NewLimits(queue.Config{Kind: "k", MaxActive: 1})

	if !l.Acquire("k") {
		t.Fatal("first acquire should succeed")
	}
	if l.Acquire("k") {
		t.Fatal("second acquire should be denied at MaxActive 1")
	}

	l.SetConfig(queue.Config{Kind: "k", MaxActive: 3})
	if !l.Acquire("k") {
		t.Fatal("acquire after raising MaxActive should succeed")
	}
}

func TestLimits_ReleaseNeverNegative(t *testing.T) {
	l := queue.NewLimits(queue.Config{Kind: "k", MaxActive: 1})
	l.Release("k")
	l.Release("k")
	if got := l.ActiveCount("k"); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
	if !l.Acquire("k") {
		t.Fatal("acquire should succeed after spurious releases")
	}
}
