package mojo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPayload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func TestChunkSize(t *testing.T) {
	testCases := []struct {
		total  int
		expect int
	}{
		{0, 1},
		{1, 1},
		{99, 1},
		{199, 1},
		{200, 2},
		{12345, 123},
		{1000000, 10000},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expect, ChunkSize(tc.total), "total %d", tc.total)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disconnected")
}

func TestStream(t *testing.T) {
	for _, size := range []int{0, 1, 50, 100, 101, 12345, 100000} {
		t.Run(fmt.Sprintf("%d bytes", size), func(t *testing.T) {
			payload := testPayload(size)
			var out bytes.Buffer
			var reports []int
			sent, err := Stream(context.Background(), &out, bytes.NewReader(payload), size, func(done int) {
				reports = append(reports, done)
			})
			require.NoError(t, err)
			require.Equal(t, size, sent)
			require.True(t, bytes.Equal(payload, out.Bytes()))
			chunk := ChunkSize(size)
			require.True(t, len(reports) <= (size+chunk-1)/chunk)
			last := 0
			for _, done := range reports {
				require.True(t, done > last)
				require.True(t, done <= size)
				last = done
			}
		})
	}
}

func TestStreamFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	sent, err := Stream(ctx, &out, bytes.NewReader(testPayload(1000)), 1000, nil)
	require.True(t, IsKind(err, KindCancelled))
	require.Equal(t, 0, sent)
	require.Equal(t, 0, out.Len())

	_, err = Stream(context.Background(), failingWriter{}, bytes.NewReader(testPayload(10)), 10, nil)
	require.True(t, IsKind(err, KindIOFailure))
}

func TestReadback(t *testing.T) {
	payload := testPayload(300)

	r := NewReader(&fakeTransport{in: append([]byte(nil), payload...)})
	done, err := Readback(context.Background(), r, 10*time.Millisecond, payload, nil)
	require.NoError(t, err)
	require.Equal(t, len(payload), done)

	for _, at := range []int{0, 150, 299} {
		t.Run(fmt.Sprintf("mismatch at %d", at), func(t *testing.T) {
			echo := append([]byte(nil), payload...)
			echo[at] ^= 0xff
			r := NewReader(&fakeTransport{in: echo})
			_, err := Readback(context.Background(), r, 10*time.Millisecond, payload, nil)
			require.True(t, IsKind(err, KindVerificationFailed))
			require.True(t, strings.Contains(err.Error(), fmt.Sprintf("byte %d:", at)))
		})
	}

	r = NewReader(&fakeTransport{in: payload[:100]})
	_, err = Readback(context.Background(), r, 10*time.Millisecond, payload, nil)
	require.True(t, IsKind(err, KindTimeout))
}
