package preview

import (
	"context"
	"sync"
)

// Future is the pending result of one read.
type Future struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	val     string
	err     error
	conts   []continuation
}

type continuation struct {
	d  Dispatcher
	fn func(string)
}

// NewFuture returns an unsettled Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the future with a value. Only the first settle counts.
func (f *Future) Resolve(v string) { f.settle(v, nil) }

// Reject settles the future with an error. Only the first settle counts.
func (f *Future) Reject(err error) { f.settle("", err) }

func (f *Future) settle(v string, err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.val, f.err = v, err
	conts := f.conts
	f.conts = nil
	close(f.done)
	f.mu.Unlock()

	if err != nil {
		return
	}
	for _, c := range conts {
		fn := c.fn
		c.d.Dispatch(func() { fn(v) })
	}
}

// Then runs fn on d once the future resolves. Rejected futures never run
// their continuations.
func (f *Future) Then(d Dispatcher, fn func(string)) {
	f.mu.Lock()
	if !f.settled {
		f.conts = append(f.conts, continuation{d: d, fn: fn})
		f.mu.Unlock()
		return
	}
	val, err := f.val, f.err
	f.mu.Unlock()
	if err == nil {
		d.Dispatch(func() { fn(val) })
	}
}

// Done is closed when the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future settles or ctx is done.
func (f *Future) Await(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.val, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
