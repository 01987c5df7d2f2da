package pool

import (
	"context"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{MaxConnsPerHost: 1, AcquireTimeout: 30 * time.Millisecond, IdleTimeout: time.Hour, UpstreamTimeout: time.Second}
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(testConfig(), nil)
	defer p.Close()

	lease, err := p.Acquire(context.Background(), "api.example.com")
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	if lease.Client() == nil {
		t.Fatal("expected a non-nil pooled client")
	}
	lease.Release()

	if p.Stats() != 1 {
		t.Fatalf("expected 1 tracked host, got %d", p.Stats())
	}
}

func TestAcquireBlocksAtCapacityThenTimesOut(t *testing.T) {
	p := New(testConfig(), nil)
	defer p.Close()

	lease, err := p.Acquire(context.Background(), "api.example.com")
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	defer lease.Release()

	_, err = p.Acquire(context.Background(), "api.example.com")
	if err == nil {
		t.Fatal("expected a second acquire at capacity to time out")
	}
}

func TestAcquireSucceedsAfterRelease(t *testing.T) {
	p := New(testConfig(), nil)
	defer p.Close()

	lease, err := p.Acquire(context.Background(), "api.example.com")
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	lease.Release()

	lease2, err := p.Acquire(context.Background(), "api.example.com")
	if err != nil {
		t.Fatalf("expected acquire to succeed once the slot is released, got %v", err)
	}
	lease2.Release()
}

func TestDistinctHostsDoNotShareCapacity(t *testing.T) {
	p := New(testConfig(), nil)
	defer p.Close()

	a, err := p.Acquire(context.Background(), "a.example.com")
	if err != nil {
		t.Fatalf("unexpected error acquiring for host a: %v", err)
	}
	defer a.Release()

	b, err := p.Acquire(context.Background(), "b.example.com")
	if err != nil {
		t.Fatalf("expected host b's pool to be independent of host a's, got %v", err)
	}
	b.Release()

	if p.Stats() != 2 {
		t.Fatalf("expected 2 tracked hosts, got %d", p.Stats())
	}
}
