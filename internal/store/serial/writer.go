// Package serial funnels store calls through one goroutine so foreground logging
// and background enrichment never interleave on the same store.
package serial

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("serial writer is closed")

const (
	opQueued int32 = iota
	opClaimed
	opAbandoned
)

type op struct {
	ctx   context.Context
	fn    func(context.Context) error
	done  chan error
	state atomic.Int32
}

// Writer runs submitted operations one at a time, in submission order.
type Writer struct {
	mu     sync.RWMutex
	closed bool
	ops    chan *op
	exited chan struct{}
}

func NewWriter(buffer int) *Writer {
	if buffer < 0 {
		buffer = 0
	}
	w := &Writer{
		ops:    make(chan *op, buffer),
		exited: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Writer) loop() {
	defer close(w.exited)
	for o := range w.ops {
		// Callers that gave up before their turn are skipped.
		if !o.state.CompareAndSwap(opQueued, opClaimed) {
			continue
		}
		if err := o.ctx.Err(); err != nil {
			o.done <- err
			continue
		}
		o.done <- o.fn(o.ctx)
	}
}

// Do runs fn on the writer goroutine and waits for its result.
// A caller cancelled while its operation is queued gets ctx.Err() and fn never runs.
// Once the operation has been picked up, Do returns fn's own result.
func (w *Writer) Do(ctx context.Context, fn func(context.Context) error) error {
	o := &op{ctx: ctx, fn: fn, done: make(chan error, 1)}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrClosed
	}
	select {
	case w.ops <- o:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-o.done:
		return err
	case <-ctx.Done():
		if o.state.CompareAndSwap(opQueued, opAbandoned) {
			return ctx.Err()
		}
		return <-o.done
	}
}

// Call is Do for operations that return a value.
func Call[T any](ctx context.Context, w *Writer, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := w.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Close stops accepting work, runs everything already queued and waits for the goroutine to exit.
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ops)
	}
	w.mu.Unlock()
	<-w.exited
}
