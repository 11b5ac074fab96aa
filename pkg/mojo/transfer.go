package mojo

import (
	"context"
	"fmt"
	"io"
	"time"
)

// ProgressFunc receives the cumulative number of bytes processed.
type ProgressFunc func(done int)

// ChunkSize returns the transfer chunk size for a payload of total bytes,
// roughly one percent of the payload.
func ChunkSize(total int) int {
	if chunk := total / 100; chunk > 1 {
		return chunk
	}
	return 1
}

// progressTracker reports progress once more than a chunk was processed
// since the last report.
type progressTracker struct {
	chunk    int
	done     int
	reported int
	report   ProgressFunc
}

func newProgressTracker(total int, report ProgressFunc) *progressTracker {
	return &progressTracker{chunk: ChunkSize(total), report: report}
}

func (p *progressTracker) add(n int) {
	p.done += n
	if p.done-p.reported > p.chunk {
		p.reported = p.done
		if p.report != nil {
			p.report(p.done)
		}
	}
}

// Stream writes the content of src to w in chunks of ChunkSize(total)
// until src is exhausted. It returns the number of bytes written.
func Stream(ctx context.Context, w io.Writer, src io.Reader, total int, progress ProgressFunc) (int, error) {
	tracker := newProgressTracker(total, progress)
	buf := make([]byte, tracker.chunk)
	for {
		if err := ctx.Err(); err != nil {
			return tracker.done, cancelled("write", err)
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return tracker.done, ioFailure("write", werr)
			}
			tracker.add(n)
		}
		if err == io.EOF {
			return tracker.done, nil
		}
		if err != nil {
			return tracker.done, ioFailure("read payload", err)
		}
	}
}

// Readback reads len(expected) bytes from r and compares them with
// expected. The first differing byte fails with KindVerificationFailed.
func Readback(ctx context.Context, r *Reader, timeout time.Duration, expected []byte, progress ProgressFunc) (int, error) {
	tracker := newProgressTracker(len(expected), progress)
	for i, want := range expected {
		got, err := r.ReadByte(ctx, timeout)
		if err != nil {
			return tracker.done, err
		}
		if got != want {
			return tracker.done, newError(KindVerificationFailed, "verify", "verification failed",
				fmt.Errorf("byte %d: got 0x%02x, want 0x%02x", i, got, want))
		}
		tracker.add(1)
	}
	return tracker.done, nil
}
