package stream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/proxilion/grc-gateway/internal/pipeerr"
)

// blockingRecorder wraps httptest.NewRecorder, blocking the first Write
// until release is closed — used to let the upstream reader goroutine race
// ahead of the consumer loop long enough to overflow MaxBuffered.
type blockingRecorder struct {
	http.ResponseWriter
	release chan struct{}
	blocked bool
}

func (w *blockingRecorder) Write(p []byte) (int, error) {
	if !w.blocked {
		w.blocked = true
		<-w.release
	}
	return w.ResponseWriter.Write(p)
}

// infiniteReader returns a fixed chunk of data on every Read with no EOF,
// simulating an upstream producing faster than the pipeline can consume.
type infiniteReader struct{}

func (infiniteReader) Read(p []byte) (int, error) {
	n := copy(p, []byte("chunk"))
	return n, nil
}

func TestCopyPassThroughWithNilInspector(t *testing.T) {
	p := New(DefaultConfig(), nil)
	rec := httptest.NewRecorder()

	n, err := p.Copy(context.Background(), rec, strings.NewReader("hello world"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk for a short body, got %d", n)
	}
	if rec.Body.String() != "hello world" {
		t.Fatalf("expected body forwarded unchanged, got %q", rec.Body.String())
	}
}

func TestCopyInspectorCanAbortStream(t *testing.T) {
	p := New(DefaultConfig(), nil)
	rec := httptest.NewRecorder()

	inspect := func(ctx context.Context, seq int, chunk []byte, accumulated string) ([]byte, bool) {
		return chunk, strings.Contains(accumulated, "secret")
	}

	_, err := p.Copy(context.Background(), rec, strings.NewReader("here is a secret"), inspect)
	if err == nil {
		t.Fatal("expected an error when the inspector aborts the stream")
	}
}

func TestCopyFailsWithBackpressureExceededOnOverflow(t *testing.T) {
	p := New(Config{ChunkTimeout: time.Second, MaxBuffered: 2}, nil)
	bw := &blockingRecorder{ResponseWriter: httptest.NewRecorder(), release: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := p.Copy(context.Background(), bw, infiniteReader{}, nil)
		done <- err
	}()

	// Give the reader goroutine time to race ahead of the stalled consumer
	// and overflow MaxBuffered before the consumer is allowed to proceed.
	time.Sleep(50 * time.Millisecond)
	close(bw.release)

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a backpressure error once MaxBuffered was exceeded")
		}
		if kind := pipeerr.KindOf(err); kind != pipeerr.StreamBackpressure {
			t.Fatalf("expected StreamBackpressure, got %v", kind)
		}
	case <-time.After(time.Second):
		t.Fatal("Copy did not return after the backpressure overflow")
	}
}

func TestCopyTimesOutWaitingForNextChunk(t *testing.T) {
	p := New(Config{ChunkTimeout: 5 * time.Millisecond, MaxBuffered: 4}, nil)
	rec := httptest.NewRecorder()

	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() {
		_, err := p.Copy(context.Background(), rec, pr, nil)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a chunk-timeout error")
		}
	case <-time.After(time.Second):
		t.Fatal("Copy did not return within the expected chunk timeout window")
	}
}
