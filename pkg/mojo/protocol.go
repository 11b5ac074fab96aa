package mojo

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/golang/glog"
)

// Command and acknowledgement bytes.
const (
	CmdInterrupt     byte = '!'
	CmdErase         byte = 'C'
	CmdWriteFlash    byte = 'W'
	CmdWriteVolatile byte = 'I'
	CmdReadFlash     byte = 'R'
	CmdLaunch        byte = 'L'
	CmdStart         byte = 'S'

	AckReady      byte = 'R'
	AckDone       byte = 'D'
	AckOK         byte = 'O'
	FlashStartTag byte = 0xAA
)

// FlashHeaderSize is the size of the header the boot ROM stores in front
// of the image: start tag and 4-byte size.
const FlashHeaderSize = 5

// Messages reported by the protocol steps.
const (
	MsgNoResponse         = "device did not respond; verify the port selection"
	MsgEraseNotAcked      = "flash erase not acknowledged"
	MsgSizeNotAcked       = "transfer size not acknowledged"
	MsgTransferNotAcked   = "transfer not acknowledged"
	MsgInvalidStartTag    = "flash missing valid start byte"
	MsgSizeMismatch       = "file size mismatch"
	MsgVerificationFailed = "verification failed"
	MsgLaunchFailed       = "could not start device"
)

// State is the state of a Session.
type State int

// Session states.
const (
	StateIdle State = iota
	StateHandshaking
	StateReady
	StateClearingFlash
	StateWriting
	StateVerifying
	StateLaunching
	StateRunning
	StateClosed
	StateError
)

var stateNames = []string{
	"idle",
	"handshaking",
	"ready",
	"clearing-flash",
	"writing",
	"verifying",
	"launching",
	"running",
	"closed",
	"error",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal indicates no further operations are accepted.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateError
}

// Session drives the boot ROM protocol over one open Transport.
type Session struct {
	Transport Transport
	Timing    Timing

	reader *Reader
	state  State
}

// NewSession creates a Session on an open Transport.
func NewSession(t Transport, timing Timing) *Session {
	timing = timing.withDefaults()
	return &Session{
		Transport: t,
		Timing:    timing,
		reader:    &Reader{Transport: t, PollInterval: timing.PollInterval},
	}
}

// State gets the current state.
func (s *Session) State() State {
	return s.state
}

// Handshake interrupts the boot process and waits for the ready byte.
func (s *Session) Handshake(ctx context.Context) error {
	if err := s.enter("handshake", StateHandshaking, StateIdle); err != nil {
		return err
	}
	if err := s.send("handshake", CmdInterrupt); err != nil {
		return s.fail(err)
	}
	if err := s.Transport.Flush(); err != nil {
		return s.fail(ioFailure("flush", err))
	}
	if err := s.expect(ctx, "handshake", AckReady, s.Timing.AckTimeout, MsgNoResponse); err != nil {
		return s.fail(err)
	}
	s.state = StateReady
	return nil
}

// ClearFlash erases the flash content.
func (s *Session) ClearFlash(ctx context.Context) error {
	if err := s.enter("erase", StateClearingFlash, StateReady); err != nil {
		return err
	}
	if err := s.send("erase", CmdErase); err != nil {
		return s.fail(err)
	}
	if err := s.expect(ctx, "erase", AckDone, s.Timing.AckTimeout, MsgEraseNotAcked); err != nil {
		return s.fail(err)
	}
	s.state = StateReady
	return nil
}

// Write transfers payload to the destination specified by mode.
func (s *Session) Write(ctx context.Context, mode Mode, payload []byte, progress ProgressFunc) error {
	if err := s.enter("write", StateWriting, StateReady); err != nil {
		return err
	}
	cmd := CmdWriteVolatile
	if mode == ModeFlash {
		cmd = CmdWriteFlash
	}
	if err := s.send("write", cmd); err != nil {
		return s.fail(err)
	}
	if err := s.sendUint32("write", uint32(len(payload))); err != nil {
		return s.fail(err)
	}
	if err := s.expect(ctx, "write", AckOK, s.Timing.AckTimeout, MsgSizeNotAcked); err != nil {
		return s.fail(err)
	}
	sent, err := Stream(ctx, s.Transport, bytes.NewReader(payload), len(payload), progress)
	if err != nil {
		return s.fail(err)
	}
	glog.V(2).Infof("write: %d bytes sent", sent)
	if err := s.expect(ctx, "write", AckDone, s.Timing.AckTimeout, MsgTransferNotAcked); err != nil {
		return s.fail(err)
	}
	s.state = StateReady
	return nil
}

// Verify reads the flash back and compares it with payload byte by byte.
func (s *Session) Verify(ctx context.Context, payload []byte, progress ProgressFunc) error {
	if err := s.enter("verify", StateVerifying, StateReady); err != nil {
		return err
	}
	size := uint32(len(payload) + FlashHeaderSize)
	if err := s.send("verify", CmdReadFlash); err != nil {
		return s.fail(err)
	}
	if err := s.sendUint32("verify", size); err != nil {
		return s.fail(err)
	}
	if err := s.expect(ctx, "verify", FlashStartTag, s.Timing.AckTimeout, MsgInvalidStartTag); err != nil {
		return s.fail(err)
	}
	reported, err := s.reader.ReadUint32(ctx, s.Timing.AckTimeout)
	if err != nil {
		return s.fail(err)
	}
	if reported != size {
		return s.fail(newError(KindSizeMismatch, "verify", MsgSizeMismatch,
			fmt.Errorf("expected %d and got %d", size, reported)))
	}
	if _, err := Readback(ctx, s.reader, s.Timing.AckTimeout, payload, progress); err != nil {
		return s.fail(err)
	}
	s.state = StateReady
	return nil
}

// Launch starts FPGA configuration from flash.
func (s *Session) Launch(ctx context.Context) error {
	if err := s.enter("launch", StateLaunching, StateReady); err != nil {
		return err
	}
	if err := s.send("launch", CmdLaunch); err != nil {
		return s.fail(err)
	}
	if err := s.expect(ctx, "launch", AckOK, s.Timing.LaunchTimeout, MsgLaunchFailed); err != nil {
		return s.fail(err)
	}
	s.state = StateReady
	return nil
}

// Run leaves command mode. The device doesn't acknowledge it.
func (s *Session) Run() error {
	if err := s.enter("run", StateRunning, StateReady); err != nil {
		return err
	}
	if err := s.send("run", CmdStart); err != nil {
		return s.fail(err)
	}
	return nil
}

// Close closes the transport. It's safe to call Close in any state and
// more than once.
func (s *Session) Close() error {
	if s.state != StateError {
		s.state = StateClosed
	}
	return s.Transport.Close()
}

func (s *Session) enter(op string, next State, from ...State) error {
	for _, st := range from {
		if s.state == st {
			glog.V(2).Infof("%s: %s -> %s", op, s.state, next)
			s.state = next
			return nil
		}
	}
	return newError(KindInvalidState, op, op+" not allowed", fmt.Errorf("session is %s", s.state))
}

func (s *Session) fail(err error) error {
	s.state = StateError
	return err
}

func (s *Session) send(op string, cmd byte) error {
	glog.V(2).Infof("%s: send %q", op, cmd)
	if _, err := s.Transport.Write([]byte{cmd}); err != nil {
		return ioFailure(op, err)
	}
	return nil
}

func (s *Session) sendUint32(op string, val uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], val)
	if _, err := s.Transport.Write(buf[:]); err != nil {
		return ioFailure(op, err)
	}
	return nil
}

func (s *Session) expect(ctx context.Context, op string, want byte, timeout time.Duration, msg string) error {
	got, err := s.reader.ReadByte(ctx, timeout)
	if err != nil {
		if IsKind(err, KindTimeout) {
			return newError(KindTimeout, op, msg, err)
		}
		return err
	}
	if got != want {
		return newError(KindProtocolViolation, op, msg, fmt.Errorf("got 0x%02x, want 0x%02x", got, want))
	}
	glog.V(2).Infof("%s: recv %q", op, got)
	return nil
}
