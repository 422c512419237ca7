package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestIntervalOk(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(clock.now)

	if !l.IntervalOk("store", "10.0.0.1", time.Second) {
		t.Fatal("first call should be admitted")
	}
	clock.advance(500 * time.Millisecond)
	if l.IntervalOk("store", "10.0.0.1", time.Second) {
		t.Fatal("second call within the interval should be rejected")
	}
	// the rejection must not have refreshed the window
	clock.advance(600 * time.Millisecond)
	if !l.IntervalOk("store", "10.0.0.1", time.Second) {
		t.Fatal("call after the interval should be admitted")
	}
}

func TestIntervalOkRejectionDoesNotUpdateState(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(clock.now)

	if !l.IntervalOk("store", "10.0.0.1", time.Second) {
		t.Fatal("first call should be admitted")
	}
	for i := 0; i < 5; i++ {
		clock.advance(150 * time.Millisecond)
		if l.IntervalOk("store", "10.0.0.1", time.Second) {
			t.Fatalf("call %d within the interval should be rejected", i)
		}
	}
	// 750ms of hammering later, the original window still expires on schedule.
	clock.advance(300 * time.Millisecond)
	if !l.IntervalOk("store", "10.0.0.1", time.Second) {
		t.Fatal("call after the original interval should be admitted")
	}
}

func TestIntervalOkKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(clock.now)

	if !l.IntervalOk("store", "10.0.0.1", time.Second) {
		t.Fatal("first ip should be admitted")
	}
	if !l.IntervalOk("store", "10.0.0.2", time.Second) {
		t.Fatal("second ip should be admitted")
	}
	if !l.IntervalOk("list", "10.0.0.1", time.Second) {
		t.Fatal("same ip under a different scope should be admitted")
	}
}

func TestIntervalOkUnknownIP(t *testing.T) {
	l := New()
	if l.IntervalOk("store", "", time.Second) {
		t.Fatal("unknown ip must always be rejected")
	}
}

func TestTokenOk(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(clock.now)

	for i := 0; i < 5; i++ {
		if !l.TokenOk("get", "10.0.0.1", 5, 10*time.Second) {
			t.Fatalf("call %d should be admitted", i)
		}
	}
	if l.TokenOk("get", "10.0.0.1", 5, 10*time.Second) {
		t.Fatal("sixth call should be rejected")
	}
	clock.advance(10 * time.Second)
	for i := 0; i < 5; i++ {
		if !l.TokenOk("get", "10.0.0.1", 5, 10*time.Second) {
			t.Fatalf("call %d after refill should be admitted", i)
		}
	}
}

func TestTokenOkPartialRefill(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(clock.now)

	for i := 0; i < 5; i++ {
		l.TokenOk("get", "10.0.0.1", 5, 10*time.Second)
	}
	// tokens replenish uniformly: 2s into a 10s/5-token window buys one token
	clock.advance(2 * time.Second)
	if !l.TokenOk("get", "10.0.0.1", 5, 10*time.Second) {
		t.Fatal("one token should have replenished")
	}
	if l.TokenOk("get", "10.0.0.1", 5, 10*time.Second) {
		t.Fatal("only one token should have replenished")
	}
}

func TestTokenOkUnknownIP(t *testing.T) {
	l := New()
	if l.TokenOk("get", "", 5, time.Minute) {
		t.Fatal("unknown ip must always be rejected")
	}
}
