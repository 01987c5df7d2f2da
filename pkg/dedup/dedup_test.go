package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/proxilion/grc-gateway/pkg/normalize"
)

func TestExecuteCoalescesConcurrentCallers(t *testing.T) {
	d := New()
	fp := normalize.Fingerprint("fp1")

	var calls int32
	release := make(chan struct{})
	producer := func(ctx context.Context) Result {
		atomic.AddInt32(&calls, 1)
		<-release
		return Result{StatusCode: 200, Response: []byte("ok")}
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Execute(context.Background(), fp, producer)
		}(i)
	}

	// give every goroutine a chance to register as a waiter before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected producer invoked exactly once, got %d", got)
	}
	for i, r := range results {
		if r.StatusCode != 200 || string(r.Response) != "ok" {
			t.Fatalf("result %d did not receive fanned-out response: %+v", i, r)
		}
	}
	if d.InFlight() != 0 {
		t.Fatalf("expected no in-flight calls after completion, got %d", d.InFlight())
	}
}

func TestExecuteWaiterTimesOutIndependently(t *testing.T) {
	d := New(WithTimeout(10 * time.Millisecond))
	fp := normalize.Fingerprint("fp1")

	release := make(chan struct{})
	producer := func(ctx context.Context) Result {
		<-release
		return Result{StatusCode: 200}
	}

	go d.Execute(context.Background(), fp, producer)
	time.Sleep(5 * time.Millisecond)

	r := d.Execute(context.Background(), fp, producer)
	if r.Err == nil {
		t.Fatal("expected waiter to time out while producer is still running")
	}

	close(release)
}

func TestExecuteDistinctFingerprintsRunIndependently(t *testing.T) {
	d := New()
	var calls int32
	producer := func(ctx context.Context) Result {
		atomic.AddInt32(&calls, 1)
		return Result{StatusCode: 200}
	}

	d.Execute(context.Background(), normalize.Fingerprint("a"), producer)
	d.Execute(context.Background(), normalize.Fingerprint("b"), producer)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 independent producer calls, got %d", got)
	}
}
