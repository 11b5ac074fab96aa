package mqtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventEncoding(t *testing.T) {
	e := &Event{
		Type:     EventProgress,
		Host:     "a1b2c3",
		Port:     "/dev/ttyACM0",
		Fraction: 0.25,
		Time:     time.Date(2024, 5, 1, 10, 0, 0, 1000, time.UTC),
	}
	data, err := e.Encode()
	require.NoError(t, err)
	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	require.Equal(t, e.Type, decoded.Type)
	require.Equal(t, e.Host, decoded.Host)
	require.Equal(t, e.Port, decoded.Port)
	require.Equal(t, e.Fraction, decoded.Fraction)
	require.True(t, e.Time.Equal(decoded.Time))
	require.Equal(t, "a1b2c3 /dev/ttyACM0: 25%", decoded.String())

	_, err = DecodeEvent([]byte{0xff, 0xff})
	require.Error(t, err)
	_, err = DecodeEvent(nil)
	require.Error(t, err)
}

func TestTopic(t *testing.T) {
	require.Equal(t, "h/dev_ttyACM0/status", Topic("h", "/dev/ttyACM0"))
	require.Equal(t, "h/COM3/status", Topic("h", "COM3"))
	require.Equal(t, "h/a_b/status", Topic("h", "a+b"))
}
