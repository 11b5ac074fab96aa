// Package serial provides mojo.Transport over a native serial port.
package serial

import (
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
	bugst "go.bug.st/serial"

	"github.com/robotalks/mojo.go/pkg/mojo"
)

// ErrClosed indicates the port has been closed.
var ErrClosed = errors.New("serial port closed")

// pollTimeout bounds each blocking read so the pump notices Close.
const pollTimeout = 100 * time.Millisecond

// Port is an open serial port. Received bytes are pumped into an internal
// buffer by a background goroutine.
type Port struct {
	Name string

	port    bugst.Port
	lock    sync.Mutex
	buf     []byte
	err     error
	closed  bool
	readyCh chan struct{}
	doneCh  chan struct{}
}

// Mode returns the line settings required by the boot ROM: 115200-8N1.
func Mode() *bugst.Mode {
	return &bugst.Mode{
		BaudRate: mojo.BaudRate,
		DataBits: mojo.DataBits,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
}

// Open opens the named serial port.
func Open(name string) (*Port, error) {
	if name == "" {
		return nil, &mojo.Error{Kind: mojo.KindInvalidArgument, Op: "open", Msg: "a serial port must be selected"}
	}
	port, err := bugst.Open(name, Mode())
	if err != nil {
		return nil, translateError(name, err)
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return nil, translateError(name, err)
	}
	p := &Port{
		Name:    name,
		port:    port,
		readyCh: make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
	}
	go p.readLoop()
	glog.V(2).Infof("%s: opened", name)
	return p, nil
}

// Opener implements mojo.OpenFunc.
func Opener(name string) (mojo.Transport, error) {
	p, err := Open(name)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Write implements io.Writer.
func (p *Port) Write(data []byte) (int, error) {
	if p.isClosed() {
		return 0, ErrClosed
	}
	written := 0
	for written < len(data) {
		n, err := p.port.Write(data[written:])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Available implements mojo.Transport.
func (p *Port) Available() (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	if len(p.buf) == 0 && p.err != nil {
		return 0, p.err
	}
	return len(p.buf), nil
}

// ReadByte implements io.ByteReader. It doesn't block.
func (p *Port) ReadByte() (byte, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	if len(p.buf) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		return 0, errors.New("no data available")
	}
	b := p.buf[0]
	p.buf = p.buf[1:]
	return b, nil
}

// Ready implements mojo.Notifier.
func (p *Port) Ready() <-chan struct{} {
	return p.readyCh
}

// SetReset implements mojo.Transport, driving DTR.
func (p *Port) SetReset(asserted bool) error {
	if p.isClosed() {
		return ErrClosed
	}
	return p.port.SetDTR(asserted)
}

// Flush implements mojo.Transport.
func (p *Port) Flush() error {
	if p.isClosed() {
		return ErrClosed
	}
	err := p.port.ResetInputBuffer()
	p.lock.Lock()
	p.buf = nil
	p.lock.Unlock()
	return err
}

// Close implements mojo.Transport.
func (p *Port) Close() error {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return nil
	}
	p.closed = true
	p.lock.Unlock()
	err := p.port.Close()
	<-p.doneCh
	glog.V(2).Infof("%s: closed", p.Name)
	return err
}

func (p *Port) isClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

func (p *Port) readLoop() {
	defer close(p.doneCh)
	buf := make([]byte, 256)
	for {
		n, err := p.port.Read(buf)
		p.lock.Lock()
		closed := p.closed
		if n > 0 && !closed {
			p.buf = append(p.buf, buf[:n]...)
		}
		if err != nil && !closed {
			p.err = err
		}
		p.lock.Unlock()
		if n > 0 {
			select {
			case p.readyCh <- struct{}{}:
			default:
			}
		}
		if closed || err != nil {
			if err != nil && !closed {
				glog.V(2).Infof("%s: read: %v", p.Name, err)
			}
			return
		}
	}
}
