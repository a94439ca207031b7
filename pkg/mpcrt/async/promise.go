// Package async provides a single-assignment promise used to model values
// that a protocol will only learn later, together with helpers to combine
// them.
//
// Callbacks run synchronously on the goroutine that settles the promise, in
// registration order; a callback registered on an already settled promise
// runs immediately. The runtime settles every promise from its event loop,
// which keeps all callbacks on one goroutine. Await and Done may be used
// from any goroutine.
package async

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadySettled is returned when resolving or rejecting a promise twice.
var ErrAlreadySettled = errors.New("async: promise already settled")

// Promise is a write-once container for a value of type T or an error.
type Promise[T any] struct {
	mu      sync.Mutex
	settled bool
	val     T
	err     error
	cbs     []func(T, error)
	done    chan struct{}
}

// New returns an unsettled promise.
func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolved returns a promise already holding v.
func Resolved[T any](v T) *Promise[T] {
	p := New[T]()
	_ = p.Resolve(v)
	return p
}

// Failed returns a promise already holding err.
func Failed[T any](err error) *Promise[T] {
	p := New[T]()
	_ = p.Reject(err)
	return p
}

// Resolve settles the promise with v.
func (p *Promise[T]) Resolve(v T) error {
	return p.settle(v, nil)
}

// Reject settles the promise with err. A nil err is replaced by a generic
// error so that the promise cannot appear successful.
func (p *Promise[T]) Reject(err error) error {
	if err == nil {
		err = errors.New("async: rejected with nil error")
	}
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) error {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return ErrAlreadySettled
	}
	p.settled = true
	p.val, p.err = v, err
	cbs := p.cbs
	p.cbs = nil
	close(p.done)
	p.mu.Unlock()

	for _, cb := range cbs {
		cb(v, err)
	}
	return nil
}

// OnSettle registers fn to run once the promise settles.
func (p *Promise[T]) OnSettle(fn func(T, error)) {
	p.mu.Lock()
	if !p.settled {
		p.cbs = append(p.cbs, fn)
		p.mu.Unlock()
		return
	}
	v, err := p.val, p.err
	p.mu.Unlock()
	fn(v, err)
}

// Settled reports whether the promise holds a value or an error.
func (p *Promise[T]) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Result returns the settled value and error. ok is false while pending.
func (p *Promise[T]) Result() (v T, err error, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.val, p.err, p.settled
}

// Done is closed once the promise settles.
func (p *Promise[T]) Done() <-chan struct{} { return p.done }

// Await blocks until the promise settles or ctx is done. It must not be
// called from the goroutine that is expected to settle the promise.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Forward settles dst with the outcome of p once it is known.
func (p *Promise[T]) Forward(dst *Promise[T]) {
	p.OnSettle(func(v T, err error) {
		if err != nil {
			_ = dst.Reject(err)
			return
		}
		_ = dst.Resolve(v)
	})
}
