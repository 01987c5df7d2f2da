package breaker

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{FailureThreshold: 3, SuccessThreshold: 2, OpenDuration: 20 * time.Millisecond}
}

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	b := newBreaker(testConfig())

	for i := 0; i < 2; i++ {
		b.Failure()
		if b.State() != Closed {
			t.Fatalf("expected breaker to stay closed before threshold, iter %d", i)
		}
	}
	b.Failure()
	if b.State() != Open {
		t.Fatalf("expected breaker open after reaching failure threshold, got %v", b.State())
	}
	if b.Allow() {
		t.Fatal("expected open breaker to deny calls before OpenDuration elapses")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cfg := testConfig()
	b := newBreaker(cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		b.Failure()
	}
	if b.State() != Open {
		t.Fatalf("expected open, got %v", b.State())
	}

	time.Sleep(cfg.OpenDuration + 5*time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected probe to be allowed once OpenDuration has elapsed")
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected half-open after elapsed probe, got %v", b.State())
	}

	for i := 0; i < cfg.SuccessThreshold; i++ {
		b.Success()
	}
	if b.State() != Closed {
		t.Fatalf("expected closed after success threshold in half-open, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cfg := testConfig()
	b := newBreaker(cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		b.Failure()
	}
	time.Sleep(cfg.OpenDuration + 5*time.Millisecond)
	b.Allow() // transitions to half-open

	b.Failure()
	if b.State() != Open {
		t.Fatalf("expected a half-open failure to reopen the breaker, got %v", b.State())
	}
}

func TestBreakerHalfOpenRejectsConcurrentProbes(t *testing.T) {
	cfg := testConfig()
	b := newBreaker(cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		b.Failure()
	}
	time.Sleep(cfg.OpenDuration + 5*time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected the first caller after OpenDuration to be allowed through")
	}
	if b.Allow() {
		t.Fatal("expected a second concurrent caller to be denied while the probe is outstanding")
	}

	b.Success()
	if !b.Allow() {
		t.Fatal("expected a new probe to be allowed once the prior trial resolved")
	}
}

func TestRegistryGetIsPerHost(t *testing.T) {
	r := NewRegistry(testConfig(), 10, time.Hour)
	defer r.Close()

	a1 := r.Get("a.example.com")
	a2 := r.Get("a.example.com")
	b1 := r.Get("b.example.com")

	if a1 != a2 {
		t.Fatal("expected repeated Get for the same host to return the same breaker")
	}
	if a1 == b1 {
		t.Fatal("expected distinct hosts to get distinct breakers")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 registered breakers, got %d", r.Len())
	}
}

func TestRegistryEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	r := NewRegistry(testConfig(), 2, time.Hour)
	defer r.Close()

	r.Get("a")
	r.Get("b")
	r.Get("a") // touch a, making b the LRU entry
	r.Get("c") // evicts b

	if r.Len() != 2 {
		t.Fatalf("expected registry bounded to 2 entries, got %d", r.Len())
	}
}
