package mojo

import (
	"io"
	"time"
)

// Serial line settings expected by the boot ROM.
const (
	BaudRate = 115200
	DataBits = 8
	StopBits = 1
)

// Transport is a single open serial connection to the device.
type Transport interface {
	io.Writer
	io.ByteReader
	// Available returns the number of bytes which can be read without blocking.
	Available() (int, error)
	// SetReset drives the control line used to reset the device.
	SetReset(asserted bool) error
	// Flush discards all bytes received but not yet read.
	Flush() error
	// Close releases the connection. Calling Close more than once returns nil.
	Close() error
}

// Notifier is optionally implemented by a Transport to wake up readers
// as soon as new bytes arrive, instead of waiting for the next poll.
type Notifier interface {
	Ready() <-chan struct{}
}

// OpenFunc opens a Transport on the named port.
type OpenFunc func(port string) (Transport, error)

// PortLister enumerates the available serial port names.
type PortLister func() ([]string, error)

// Timing defines the time budgets of the protocol.
type Timing struct {
	// AckTimeout bounds every single-byte read except the launch ack.
	AckTimeout time.Duration
	// LaunchTimeout bounds the ack of the launch command.
	LaunchTimeout time.Duration
	// PollInterval is the wait between two checks for available bytes.
	PollInterval time.Duration
	// ResetPulse is the hold time of each edge of the reset pulse.
	ResetPulse time.Duration
	// ResetSettle is the hold time after the reset pulse, letting the boot
	// ROM become ready for the interrupt byte.
	// A zero or negative value means the default of any field.
	ResetSettle time.Duration
}

// DefaultTiming returns the timing required by the boot ROM.
func DefaultTiming() Timing {
	return Timing{
		AckTimeout:    1000 * time.Millisecond,
		LaunchTimeout: 2000 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
		ResetPulse:    5 * time.Millisecond,
		ResetSettle:   700 * time.Millisecond,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.AckTimeout <= 0 {
		t.AckTimeout = d.AckTimeout
	}
	if t.LaunchTimeout <= 0 {
		t.LaunchTimeout = d.LaunchTimeout
	}
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	if t.ResetPulse <= 0 {
		t.ResetPulse = d.ResetPulse
	}
	if t.ResetSettle <= 0 {
		t.ResetSettle = d.ResetSettle
	}
	return t
}
