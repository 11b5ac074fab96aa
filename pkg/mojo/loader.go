package mojo

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"
)

// Status texts reported while an operation runs.
const (
	StatusConnecting = "Connecting..."
	StatusClearing   = "Clearing..."
	StatusLoading    = "Loading..."
	StatusVerifying  = "Verifying..."
	StatusDone       = "Done"
)

// Loader runs erase and upload operations against Mojo boards, each on its
// own goroutine. At most one operation may be in flight per port.
type Loader struct {
	Open       OpenFunc
	Progress   ProgressSink
	Outcome    OutcomeSink
	Dispatcher Dispatcher
	Timing     Timing
	// CloseFailed receives errors from closing the port after an
	// operation. Such errors never change the outcome.
	CloseFailed func(op *Operation, err error)

	lock     sync.Mutex
	active   map[string]*Operation
	queue    *Queue
	closed   bool
	inflight sync.WaitGroup
}

// Operation is a running erase or upload.
type Operation struct {
	name   string
	port   string
	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
	err    error
}

// NewLoader creates a Loader opening ports with open.
func NewLoader(open OpenFunc) *Loader {
	return &Loader{Open: open, Timing: DefaultTiming()}
}

// EraseFlash clears the flash of the board on port.
func (l *Loader) EraseFlash(ctx context.Context, port string) (*Operation, error) {
	return l.start(ctx, "erase", port, func(ctx context.Context, sess *Session) error {
		l.status(StatusClearing)
		return sess.ClearFlash(ctx)
	})
}

// Upload sends req.Payload to the board on port, optionally verifies the
// flash content and starts the FPGA.
func (l *Loader) Upload(ctx context.Context, port string, req Request) (*Operation, error) {
	req = req.clone()
	return l.start(ctx, "upload", port, func(ctx context.Context, sess *Session) error {
		l.status(StatusLoading)
		total := len(req.Payload)
		progress := func(done int) {
			l.progress(float64(done) / float64(total))
		}
		if err := sess.Write(ctx, req.Mode, req.Payload, progress); err != nil {
			return err
		}
		if req.ShouldVerify() {
			l.status(StatusVerifying)
			if err := sess.Verify(ctx, req.Payload, progress); err != nil {
				return err
			}
		}
		if req.Mode == ModeFlash {
			if err := sess.Launch(ctx); err != nil {
				return err
			}
		}
		return sess.Run()
	})
}

// Busy indicates an operation is in flight on port.
func (l *Loader) Busy(port string) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	_, ok := l.active[port]
	return ok
}

// Close rejects new operations, waits for the ones in flight to deliver
// their outcome and stops the default dispatcher, if it was created.
// It must not be called from a sink.
func (l *Loader) Close() error {
	l.lock.Lock()
	l.closed = true
	l.lock.Unlock()
	l.inflight.Wait()

	l.lock.Lock()
	q := l.queue
	l.lock.Unlock()
	if q != nil {
		return q.Close()
	}
	return nil
}

func (l *Loader) start(ctx context.Context, name, port string, steps func(context.Context, *Session) error) (*Operation, error) {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return nil, newError(KindInvalidState, name, "loader is closed", nil)
	}
	if port != "" {
		if l.active == nil {
			l.active = make(map[string]*Operation)
		}
		if _, busy := l.active[port]; busy {
			l.lock.Unlock()
			return nil, newError(KindInProgress, name, "another operation is in progress on "+port, nil)
		}
	}
	op := &Operation{name: name, port: port, doneCh: make(chan struct{})}
	op.ctx, op.cancel = context.WithCancel(ctx)
	if port != "" {
		l.active[port] = op
	}
	l.inflight.Add(1)
	l.lock.Unlock()
	go l.execute(op, steps)
	return op, nil
}

func (l *Loader) execute(op *Operation, steps func(context.Context, *Session) error) {
	defer l.inflight.Done()
	glog.V(4).Infof("%s[%s] started", op.name, op.port)
	sess, err := l.run(op, steps)
	if err != nil {
		glog.V(2).Infof("%s[%s] failed: %v", op.name, op.port, err)
		l.dispatch(func() {
			if l.Outcome != nil {
				l.Outcome.Failed(err)
			}
		})
		l.progress(0)
		l.status("")
		l.closeSession(op, sess)
	} else {
		l.closeSession(op, sess)
		glog.V(2).Infof("%s[%s] done", op.name, op.port)
		l.dispatch(func() {
			if l.Outcome != nil {
				l.Outcome.Succeeded()
			}
		})
	}
	l.release(op)
	op.cancel()
	l.dispatch(func() { op.finish(err) })
	glog.V(4).Infof("%s[%s] stopped", op.name, op.port)
}

func (l *Loader) run(op *Operation, steps func(context.Context, *Session) error) (*Session, error) {
	l.status(StatusConnecting)
	l.progress(0)
	if op.port == "" {
		return nil, newError(KindInvalidArgument, "open", "a serial port must be selected", nil)
	}
	t, err := l.Open(op.port)
	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			err = newError(KindPortUnavailable, "open", "could not open "+op.port, err)
		}
		return nil, err
	}
	sess := NewSession(t, l.Timing)
	if err := ResetDevice(op.ctx, t, sess.Timing); err != nil {
		sess.fail(err)
		return sess, err
	}
	if err := sess.Handshake(op.ctx); err != nil {
		return sess, err
	}
	if err := steps(op.ctx, sess); err != nil {
		return sess, err
	}
	l.status(StatusDone)
	l.progress(1)
	return sess, nil
}

func (l *Loader) closeSession(op *Operation, sess *Session) {
	if sess == nil {
		return
	}
	err := sess.Close()
	if err == nil {
		return
	}
	glog.V(2).Infof("%s[%s] close: %v", op.name, op.port, err)
	if fn := l.CloseFailed; fn != nil {
		l.dispatch(func() { fn(op, err) })
	}
}

func (l *Loader) release(op *Operation) {
	if op.port == "" {
		return
	}
	l.lock.Lock()
	if l.active[op.port] == op {
		delete(l.active, op.port)
	}
	l.lock.Unlock()
}

func (l *Loader) dispatcher() Dispatcher {
	if l.Dispatcher != nil {
		return l.Dispatcher
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.queue == nil {
		l.queue = NewQueue()
	}
	return l.queue
}

func (l *Loader) dispatch(fn func()) {
	l.dispatcher().Dispatch(fn)
}

func (l *Loader) progress(fraction float64) {
	if sink := l.Progress; sink != nil {
		l.dispatch(func() { sink.ProgressChanged(fraction) })
	}
}

func (l *Loader) status(text string) {
	if sink := l.Progress; sink != nil {
		l.dispatch(func() { sink.StatusChanged(text) })
	}
}

// Name returns "erase" or "upload".
func (o *Operation) Name() string {
	return o.name
}

// Port returns the port the operation runs on.
func (o *Operation) Port() string {
	return o.port
}

// Done is closed once the outcome was delivered.
func (o *Operation) Done() <-chan struct{} {
	return o.doneCh
}

// Err returns the failure once Done is closed, nil before that.
func (o *Operation) Err() error {
	select {
	case <-o.doneCh:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until Done is closed and returns Err.
func (o *Operation) Wait() error {
	<-o.doneCh
	return o.err
}

// Cancel requests the operation to stop. The outcome is a KindCancelled
// failure unless the operation completed already.
func (o *Operation) Cancel() {
	o.cancel()
}

func (o *Operation) finish(err error) {
	o.err = err
	close(o.doneCh)
}
