package mojo

import (
	"container/list"
	"sync"
)

// ProgressSink receives progress and status text updates.
type ProgressSink interface {
	ProgressChanged(fraction float64)
	StatusChanged(text string)
}

// OutcomeSink receives the terminal outcome of an operation.
type OutcomeSink interface {
	Succeeded()
	Failed(err error)
}

// ProgressFuncs is the func form of ProgressSink. Nil funcs are skipped.
type ProgressFuncs struct {
	OnProgress func(float64)
	OnStatus   func(string)
}

// ProgressChanged implements ProgressSink.
func (f ProgressFuncs) ProgressChanged(fraction float64) {
	if f.OnProgress != nil {
		f.OnProgress(fraction)
	}
}

// StatusChanged implements ProgressSink.
func (f ProgressFuncs) StatusChanged(text string) {
	if f.OnStatus != nil {
		f.OnStatus(text)
	}
}

// OutcomeFuncs is the func form of OutcomeSink. Nil funcs are skipped.
type OutcomeFuncs struct {
	OnSuccess func()
	OnError   func(error)
}

// Succeeded implements OutcomeSink.
func (f OutcomeFuncs) Succeeded() {
	if f.OnSuccess != nil {
		f.OnSuccess()
	}
}

// Failed implements OutcomeSink.
func (f OutcomeFuncs) Failed(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

// ProgressSinks fans out to multiple ProgressSinks.
type ProgressSinks []ProgressSink

// ProgressChanged implements ProgressSink.
func (s ProgressSinks) ProgressChanged(fraction float64) {
	for _, sink := range s {
		sink.ProgressChanged(fraction)
	}
}

// StatusChanged implements ProgressSink.
func (s ProgressSinks) StatusChanged(text string) {
	for _, sink := range s {
		sink.StatusChanged(text)
	}
}

// OutcomeSinks fans out to multiple OutcomeSinks.
type OutcomeSinks []OutcomeSink

// Succeeded implements OutcomeSink.
func (s OutcomeSinks) Succeeded() {
	for _, sink := range s {
		sink.Succeeded()
	}
}

// Failed implements OutcomeSink.
func (s OutcomeSinks) Failed(err error) {
	for _, sink := range s {
		sink.Failed(err)
	}
}

// Dispatcher hands notifications over to the context the sinks live on.
// Implementations must run the funcs in the order they were dispatched.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatchFunc is the func form of Dispatcher.
type DispatchFunc func(fn func())

// Dispatch implements Dispatcher.
func (f DispatchFunc) Dispatch(fn func()) {
	f(fn)
}

// Direct runs notifications on the calling goroutine.
var Direct = DispatchFunc(func(fn func()) { fn() })

// Queue is a Dispatcher running notifications on its own goroutine,
// in the order they were dispatched. Dispatch never blocks.
type Queue struct {
	pending list.List
	lock    sync.Mutex
	wakeCh  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// NewQueue creates and starts a Queue.
func NewQueue() *Queue {
	q := &Queue{
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go q.run()
	return q
}

// Dispatch implements Dispatcher.
func (q *Queue) Dispatch(fn func()) {
	q.lock.Lock()
	q.pending.PushBack(fn)
	q.lock.Unlock()
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

// Close stops the queue after all dispatched funcs ran.
func (q *Queue) Close() error {
	q.once.Do(func() { close(q.stopCh) })
	<-q.doneCh
	return nil
}

func (q *Queue) next() func() {
	q.lock.Lock()
	defer q.lock.Unlock()
	if elm := q.pending.Front(); elm != nil {
		q.pending.Remove(elm)
		return elm.Value.(func())
	}
	return nil
}

func (q *Queue) run() {
	defer close(q.doneCh)
	for {
		if fn := q.next(); fn != nil {
			fn()
			continue
		}
		select {
		case <-q.wakeCh:
		case <-q.stopCh:
			for fn := q.next(); fn != nil; fn = q.next() {
				fn()
			}
			return
		}
	}
}
