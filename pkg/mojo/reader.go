package mojo

import (
	"context"
	"encoding/binary"
	"errors"
	"time"
)

var errNoData = errors.New("timeout while reading from serial port")

// Reader reads single bytes from a Transport with a bounded wait.
type Reader struct {
	Transport    Transport
	PollInterval time.Duration
}

// NewReader creates a Reader with the default poll interval.
func NewReader(t Transport) *Reader {
	return &Reader{Transport: t, PollInterval: DefaultTiming().PollInterval}
}

// ReadByte returns the next byte, or fails with KindTimeout if nothing
// arrives within timeout. It fails with KindCancelled when ctx is done.
func (r *Reader) ReadByte(ctx context.Context, timeout time.Duration) (byte, error) {
	start := time.Now()
	var ready <-chan struct{}
	if n, ok := r.Transport.(Notifier); ok {
		ready = n.Ready()
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, cancelled("read", err)
		}
		n, err := r.Transport.Available()
		if err != nil {
			return 0, ioFailure("read", err)
		}
		if n > 0 {
			b, err := r.Transport.ReadByte()
			if err != nil {
				return 0, ioFailure("read", err)
			}
			return b, nil
		}
		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			return 0, newError(KindTimeout, "read", errNoData.Error(), nil)
		}
		wait := r.PollInterval
		if wait <= 0 || wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
		case <-ready:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// ReadUint32 reads a 4-byte little-endian value, applying timeout to each byte.
func (r *Reader) ReadUint32(ctx context.Context, timeout time.Duration) (uint32, error) {
	var buf [4]byte
	for i := range buf {
		b, err := r.ReadByte(ctx, timeout)
		if err != nil {
			return 0, err
		}
		buf[i] = b
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
