package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_SameKeySameInstance(t *testing.T) {
	l := New(5, 2)
	if l.Get("owner/repo#1") != l.Get("owner/repo#1") {
		t.Fatal("expected the same limiter for the same target")
	}
	if l.Get("owner/repo#1") == l.Get("owner/repo#2") {
		t.Fatal("expected distinct limiters per target")
	}
}

func TestLimiter_PrunesExpiredEntries(t *testing.T) {
	l := New(1, 1)
	l.ttl = 5 * time.Millisecond

	if l.Get("stale") == nil {
		t.Fatal("expected limiter instance")
	}

	time.Sleep(10 * time.Millisecond)
	l.lastPruned = time.Now().Add(-2 * time.Minute)

	if l.Get("fresh") == nil {
		t.Fatal("expected limiter instance")
	}
	if _, ok := l.limiters["stale"]; ok {
		t.Fatal("expected stale limiter to be pruned")
	}
}
