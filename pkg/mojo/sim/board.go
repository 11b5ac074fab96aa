// Package sim provides a simulated Mojo board speaking the boot ROM protocol.
package sim

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mojo.go/pkg/mojo"
)

// ErrClosed is returned when using a closed connection.
var ErrClosed = errors.New("connection closed")

// Faults scripts misbehavior of the simulated boot ROM.
type Faults struct {
	// Silent ignores the interrupt byte.
	Silent bool
	// ReadyByte replaces the ready acknowledgement if non-zero.
	ReadyByte byte
	// RejectErase, RejectSize, RejectTransfer, RejectLaunch answer the
	// corresponding step with a wrong acknowledgement.
	RejectErase    bool
	RejectSize     bool
	RejectTransfer bool
	RejectLaunch   bool
	// StartTag replaces the flash start tag in readback if non-zero.
	StartTag byte
	// SizeDelta is added to the size reported in readback.
	SizeDelta int
	// Corrupt flips all bits of the echoed image byte at this offset
	// during readback, if >= 0.
	Corrupt int
	// Stale bytes are already buffered when a connection is opened.
	Stale []byte
}

// NoFaults is a well behaving board.
func NoFaults() Faults {
	return Faults{Corrupt: -1}
}

type parseState int

const (
	stateBoot parseState = iota
	stateCommand
	stateWriteLen
	stateWriteData
	stateReadLen
)

// Board is a simulated Mojo board. Its flash survives across connections.
type Board struct {
	Faults Faults

	lock     sync.Mutex
	flash    []byte
	ram      []byte
	running  bool
	resets   int
	dtr      bool
	conn     *Conn
	received []byte

	state    parseState
	mode     byte
	lenBuf   []byte
	expected int
	data     []byte
}

// NewBoard creates a board with an erased flash.
func NewBoard() *Board {
	return &Board{Faults: NoFaults()}
}

// Open implements mojo.OpenFunc. The port name is ignored.
func (b *Board) Open(port string) (mojo.Transport, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if port == "" {
		return nil, &mojo.Error{Kind: mojo.KindInvalidArgument, Op: "open", Msg: "a serial port must be selected"}
	}
	if b.conn != nil && !b.conn.closed {
		return nil, &mojo.Error{Kind: mojo.KindPortBusy, Op: "open", Msg: "port is currently in use"}
	}
	b.conn = &Conn{board: b, visible: append([]byte(nil), b.Faults.Stale...)}
	b.state, b.received = stateBoot, nil
	return b.conn, nil
}

// Flash returns a copy of the image stored in flash, nil if erased.
func (b *Board) Flash() []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]byte(nil), b.flash...)
}

// RAM returns a copy of the image last loaded into the FPGA directly.
func (b *Board) RAM() []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]byte(nil), b.ram...)
}

// Running indicates the board left command mode.
func (b *Board) Running() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.running
}

// Resets returns the number of reset pulses seen, counted on the falling
// edge of the reset line.
func (b *Board) Resets() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.resets
}

// Received returns all command bytes received on the current connection,
// excluding payload data.
func (b *Board) Received() []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]byte(nil), b.received...)
}

// Conn returns the last opened connection.
func (b *Board) Conn() *Conn {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.conn
}

func (b *Board) setReset(asserted bool) {
	if !asserted && b.dtr {
		b.resets++
		b.state, b.running = stateBoot, false
	}
	b.dtr = asserted
}

// feed consumes one byte from the host and returns the reply.
func (b *Board) feed(c byte) []byte {
	switch b.state {
	case stateBoot:
		b.received = append(b.received, c)
		if c != mojo.CmdInterrupt || b.Faults.Silent {
			return nil
		}
		b.state = stateCommand
		if b.Faults.ReadyByte != 0 {
			return []byte{b.Faults.ReadyByte}
		}
		return []byte{mojo.AckReady}
	case stateCommand:
		b.received = append(b.received, c)
		return b.command(c)
	case stateWriteLen, stateReadLen:
		b.received = append(b.received, c)
		if b.lenBuf = append(b.lenBuf, c); len(b.lenBuf) < 4 {
			return nil
		}
		b.expected = int(binary.LittleEndian.Uint32(b.lenBuf))
		if b.state == stateReadLen {
			b.state = stateCommand
			return b.readback(b.expected)
		}
		if b.Faults.RejectSize {
			b.state = stateCommand
			return []byte{'N'}
		}
		b.data = make([]byte, 0, b.expected)
		if b.expected == 0 {
			b.state = stateCommand
			return append([]byte{mojo.AckOK}, b.store()...)
		}
		b.state = stateWriteData
		return []byte{mojo.AckOK}
	case stateWriteData:
		if b.data = append(b.data, c); len(b.data) < b.expected {
			return nil
		}
		b.state = stateCommand
		return b.store()
	}
	return nil
}

func (b *Board) command(c byte) []byte {
	switch c {
	case mojo.CmdErase:
		if b.Faults.RejectErase {
			return []byte{'E'}
		}
		b.flash = nil
		return []byte{mojo.AckDone}
	case mojo.CmdWriteFlash, mojo.CmdWriteVolatile:
		b.mode, b.lenBuf, b.state = c, nil, stateWriteLen
	case mojo.CmdReadFlash:
		b.lenBuf, b.state = nil, stateReadLen
	case mojo.CmdLaunch:
		if b.Faults.RejectLaunch || b.flash == nil {
			return []byte{'F'}
		}
		return []byte{mojo.AckOK}
	case mojo.CmdStart:
		b.running, b.state = true, stateBoot
		glog.V(2).Info("sim: running")
	}
	return nil
}

func (b *Board) store() []byte {
	if b.Faults.RejectTransfer {
		return []byte{'X'}
	}
	if b.mode == mojo.CmdWriteFlash {
		b.flash = b.data
	} else {
		b.ram = b.data
	}
	b.data = nil
	return []byte{mojo.AckDone}
}

// readback returns n bytes of the flash content: start tag, size, image,
// padded with the erased value 0xff.
func (b *Board) readback(n int) []byte {
	content := make([]byte, 0, n)
	if b.flash != nil {
		tag := byte(mojo.FlashStartTag)
		if b.Faults.StartTag != 0 {
			tag = b.Faults.StartTag
		}
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(b.flash)+mojo.FlashHeaderSize+b.Faults.SizeDelta))
		content = append(content, tag)
		content = append(content, size[:]...)
		content = append(content, b.flash...)
		if at := b.Faults.Corrupt; at >= 0 && at < len(b.flash) {
			content[mojo.FlashHeaderSize+at] ^= 0xff
		}
	}
	for len(content) < n {
		content = append(content, 0xff)
	}
	return content[:n]
}

// Conn is a connection to a Board, implementing mojo.Transport.
// Replies to a write become readable after the next Flush or read, so
// flushing right after the interrupt byte doesn't lose the ready byte.
type Conn struct {
	board   *Board
	pending []byte
	visible []byte
	closed  bool
	closes  int
}

// Write implements io.Writer.
func (c *Conn) Write(p []byte) (int, error) {
	b := c.board
	b.lock.Lock()
	defer b.lock.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	for _, v := range p {
		c.pending = append(c.pending, b.feed(v)...)
	}
	return len(p), nil
}

// Available implements mojo.Transport.
func (c *Conn) Available() (int, error) {
	c.board.lock.Lock()
	defer c.board.lock.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	c.publish()
	return len(c.visible), nil
}

// ReadByte implements io.ByteReader.
func (c *Conn) ReadByte() (byte, error) {
	c.board.lock.Lock()
	defer c.board.lock.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	c.publish()
	if len(c.visible) == 0 {
		return 0, errors.New("no data")
	}
	v := c.visible[0]
	c.visible = c.visible[1:]
	return v, nil
}

// SetReset implements mojo.Transport.
func (c *Conn) SetReset(asserted bool) error {
	c.board.lock.Lock()
	defer c.board.lock.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.board.setReset(asserted)
	return nil
}

// Flush implements mojo.Transport.
func (c *Conn) Flush() error {
	c.board.lock.Lock()
	defer c.board.lock.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.visible = nil
	return nil
}

// Close implements mojo.Transport.
func (c *Conn) Close() error {
	c.board.lock.Lock()
	defer c.board.lock.Unlock()
	c.closes++
	c.closed = true
	return nil
}

// Closed indicates Close was called.
func (c *Conn) Closed() bool {
	c.board.lock.Lock()
	defer c.board.lock.Unlock()
	return c.closed
}

// Closes returns how many times Close was called.
func (c *Conn) Closes() int {
	c.board.lock.Lock()
	defer c.board.lock.Unlock()
	return c.closes
}

func (c *Conn) publish() {
	if len(c.pending) > 0 {
		c.visible = append(c.visible, c.pending...)
		c.pending = nil
	}
}
