package mojo

import (
	"errors"
	"sync"
)

// fakeTransport replies to writes through reply. Replies become readable
// on the next Available or ReadByte, Flush only drops what was readable.
type fakeTransport struct {
	lock    sync.Mutex
	written []byte
	pending []byte
	in      []byte
	resets  []bool
	flushes int
	closes  int

	reply    func(p []byte) []byte
	writeErr error
	availErr error
	resetErr error
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, p...)
	if f.reply != nil {
		f.pending = append(f.pending, f.reply(p)...)
	}
	return len(p), nil
}

func (f *fakeTransport) Available() (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.availErr != nil {
		return 0, f.availErr
	}
	f.publish()
	return len(f.in), nil
}

func (f *fakeTransport) ReadByte() (byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.publish()
	if len(f.in) == 0 {
		return 0, errors.New("empty")
	}
	b := f.in[0]
	f.in = f.in[1:]
	return b, nil
}

func (f *fakeTransport) SetReset(asserted bool) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets = append(f.resets, asserted)
	return nil
}

func (f *fakeTransport) Flush() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.flushes++
	f.in = nil
	return nil
}

func (f *fakeTransport) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) publish() {
	f.in = append(f.in, f.pending...)
	f.pending = nil
}

// replyTo answers cmd with ack.
func replyTo(cmd, ack byte) func([]byte) []byte {
	return func(p []byte) []byte {
		if len(p) == 1 && p[0] == cmd {
			return []byte{ack}
		}
		return nil
	}
}
