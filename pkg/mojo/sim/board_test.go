package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mojo.go/pkg/mojo"
)

var timing = mojo.Timing{
	AckTimeout:    200 * time.Millisecond,
	LaunchTimeout: 200 * time.Millisecond,
	PollInterval:  time.Millisecond,
	ResetPulse:    time.Microsecond,
	ResetSettle:   time.Microsecond,
}

func openSession(t *testing.T, b *Board) *mojo.Session {
	conn, err := b.Open("sim")
	require.NoError(t, err)
	s := mojo.NewSession(conn, timing)
	require.NoError(t, s.Handshake(context.Background()))
	return s
}

func TestBoardSession(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()
	s := openSession(t, b)
	require.Equal(t, mojo.StateReady, s.State())

	payload := []byte("bitstream")
	require.NoError(t, s.Write(ctx, mojo.ModeFlash, payload, nil))
	require.Equal(t, payload, b.Flash())
	require.NoError(t, s.Verify(ctx, payload, nil))
	require.NoError(t, s.Launch(ctx))
	require.NoError(t, s.Run())
	require.Equal(t, mojo.StateRunning, s.State())
	require.True(t, b.Running())
	require.Equal(t, []byte{
		'!',
		'W', 9, 0, 0, 0,
		'R', 14, 0, 0, 0,
		'L',
		'S',
	}, b.Received())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, mojo.StateClosed, s.State())
	require.True(t, b.Conn().Closed())
	require.Equal(t, 2, b.Conn().Closes())

	s = openSession(t, b)
	require.NoError(t, s.ClearFlash(ctx))
	require.Empty(t, b.Flash())
	err := s.Launch(ctx)
	require.True(t, mojo.IsKind(err, mojo.KindProtocolViolation))
	require.Equal(t, mojo.StateError, s.State())
	require.NoError(t, s.Close())
}

func TestBoardReadbackPadding(t *testing.T) {
	b := NewBoard()
	b.flash = []byte{1, 2}
	require.Equal(t, []byte{mojo.FlashStartTag, 7, 0, 0, 0, 1, 2, 0xff, 0xff}, b.readback(9))
	require.Equal(t, []byte{mojo.FlashStartTag, 7}, b.readback(2))

	b.Faults.Corrupt = 1
	require.Equal(t, byte(0xfd), b.readback(7)[6])

	b.flash = nil
	require.Equal(t, []byte{0xff, 0xff}, b.readback(2))
}

func TestBoardOpen(t *testing.T) {
	b := NewBoard()
	_, err := b.Open("")
	require.True(t, mojo.IsKind(err, mojo.KindInvalidArgument))

	b.Faults.Stale = []byte{'x', 'y'}
	conn, err := b.Open("sim")
	require.NoError(t, err)
	n, err := conn.Available()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = b.Open("sim")
	require.True(t, mojo.IsKind(err, mojo.KindPortBusy))

	require.NoError(t, conn.Close())
	_, err = conn.Write([]byte{'!'})
	require.Equal(t, ErrClosed, err)
	_, err = conn.Available()
	require.Equal(t, ErrClosed, err)

	_, err = b.Open("sim")
	require.NoError(t, err)
}

func TestBoardReset(t *testing.T) {
	b := NewBoard()
	conn, err := b.Open("sim")
	require.NoError(t, err)
	require.NoError(t, mojo.ResetDevice(context.Background(), conn, timing))
	require.Equal(t, 1, b.Resets())

	s := mojo.NewSession(conn, timing)
	require.NoError(t, s.Handshake(context.Background()))
	require.NoError(t, s.Run())
	require.True(t, b.Running())
	require.NoError(t, mojo.ResetDevice(context.Background(), conn, timing))
	require.Equal(t, 2, b.Resets())
	require.False(t, b.Running())
}
