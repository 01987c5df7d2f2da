// Package stream implements the streaming response pipeline: chunked/SSE upstream bodies are scanned and forwarded incrementally
// instead of buffered in full, preserving strict chunk order while still
// running each chunk through the scanner/policy path. This generalises the
// teacher's handleStreamingResponse (pkg/proxy/proxy.go), which copied
// bytes straight through with no inspection, into an inspectable pipe.
package stream

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/proxilion/grc-gateway/internal/obs"
	"github.com/proxilion/grc-gateway/internal/pipeerr"
)

// DefaultChunkTimeout bounds how long the pipeline waits for the next
// chunk from upstream before giving up on the stream.
const DefaultChunkTimeout = 30 * time.Second

// DefaultMaxBuffered bounds how many read-but-unflushed chunks may
// accumulate before the pipeline gives up on the stream as
// backpressure-exceeded.
const DefaultMaxBuffered = 64

// Chunk is one unit of streamed output, in the order it arrived.
type Chunk struct {
	Seq  int
	Data []byte
}

// Inspector is given each chunk's raw bytes and the text extracted so far
// from the accumulated stream, and returns the bytes to actually forward
// (identity for pass-through, redacted/modified bytes otherwise) plus
// whether the stream must be aborted immediately (e.g. a critical finding
// appeared mid-stream).
type Inspector func(ctx context.Context, seq int, chunk []byte, accumulatedText string) (forward []byte, abort bool)

// Config bounds one streaming pass-through.
type Config struct {
	ChunkTimeout time.Duration
	MaxBuffered  int
}

func DefaultConfig() Config {
	return Config{ChunkTimeout: DefaultChunkTimeout, MaxBuffered: DefaultMaxBuffered}
}

// Pipeline copies upstream's body to the client chunk-by-chunk, running
// each chunk through inspect before it's written. Chunks are always
// written in arrival order: this is a single-threaded read-inspect-write
// loop, so ordering is structural rather than something that needs
// reassembly after the fact.
type Pipeline struct {
	cfg     Config
	metrics *obs.Metrics
}

// New builds a Pipeline.
func New(cfg Config, metrics *obs.Metrics) *Pipeline {
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = DefaultChunkTimeout
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = DefaultMaxBuffered
	}
	return &Pipeline{cfg: cfg, metrics: metrics}
}

// Copy reads chunks from upstream, inspects each one, and writes the
// (possibly modified) bytes to w, flushing after every chunk so the client
// sees output incrementally rather than buffered. inspect may be nil for a
// plain pass-through. It returns the number of chunks forwarded and the
// first error encountered, if any.
//
// The consumer (this goroutine) is expected to keep pace with upstream:
// once MaxBuffered chunks have been read from upstream but not yet
// consumed here, the reader goroutine hard-fails the stream with
// pipeerr.StreamBackpressure rather than blocking indefinitely on a full
// channel.
func (p *Pipeline) Copy(ctx context.Context, w http.ResponseWriter, upstream io.Reader, inspect Inspector) (int, error) {
	flusher, _ := w.(http.Flusher)

	type readResult struct {
		data []byte
		err  error
	}
	// One extra slot reserved so an overflow error can always be delivered
	// even when all MaxBuffered data slots are occupied.
	reads := make(chan readResult, p.cfg.MaxBuffered+1)

	go func() {
		defer close(reads)
		buf := make([]byte, 4096)
		for {
			n, err := upstream.Read(buf)
			if n > 0 {
				if len(reads) >= p.cfg.MaxBuffered {
					reads <- readResult{err: pipeerr.New(pipeerr.StreamBackpressure, "max buffered chunks exceeded")}
					return
				}
				cp := make([]byte, n)
				copy(cp, buf[:n])
				select {
				case reads <- readResult{data: cp}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					reads <- readResult{err: err}
				}
				return
			}
		}
	}()

	var accumulatedText []byte
	seq := 0
	for {
		timer := time.NewTimer(p.cfg.ChunkTimeout)
		select {
		case rr, ok := <-reads:
			timer.Stop()
			if !ok {
				return seq, nil
			}
			if rr.err != nil {
				if pipeerr.KindOf(rr.err) == pipeerr.StreamBackpressure {
					return seq, rr.err
				}
				return seq, pipeerr.Wrap(pipeerr.StreamTimeout, "upstream stream read failed", rr.err)
			}

			forward := rr.data
			abort := false
			if inspect != nil {
				accumulatedText = append(accumulatedText, rr.data...)
				forward, abort = inspect(ctx, seq, rr.data, string(accumulatedText))
			}

			if _, err := w.Write(forward); err != nil {
				return seq, pipeerr.Wrap(pipeerr.Internal, "writing chunk to client", err)
			}
			if flusher != nil {
				flusher.Flush()
			}
			seq++

			if abort {
				return seq, pipeerr.New(pipeerr.PolicyBlock, "stream aborted mid-flight by inspector")
			}

		case <-timer.C:
			return seq, pipeerr.New(pipeerr.StreamTimeout, "timed out waiting for next upstream chunk")

		case <-ctx.Done():
			timer.Stop()
			return seq, pipeerr.Wrap(pipeerr.StreamTimeout, "context cancelled mid-stream", ctx.Err())
		}
	}
}

// ScanLines exposes an SSE-aware line reader for inspectors that want to
// reason in terms of "data: ..." events rather than raw byte chunks.
func ScanLines(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return sc
}
