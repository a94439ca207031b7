package mpcrt

import (
	"context"
	"errors"
	"weak"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
)

// Share is this player's fragment of a secret-shared value, or any other
// field element the runtime will only know later. It is resolved exactly
// once. A Share refers to its runtime weakly, so holding shares does not
// keep a closed runtime alive.
//
// Shares are created and combined on the runtime's event loop. Await may be
// called from any goroutine.
type Share struct {
	rt    weak.Pointer[Runtime]
	field field.Field
	p     *async.Promise[field.Element]
}

func newShare(r *Runtime, f field.Field, p *async.Promise[field.Element]) *Share {
	return &Share{rt: weak.Make(r), field: f, p: p}
}

// NewShare returns an unresolved share to be settled with Resolve.
func (r *Runtime) NewShare(f field.Field) *Share {
	return newShare(r, f, async.New[field.Element]())
}

// Constant returns a share already resolved to v.
func (r *Runtime) Constant(v field.Element) *Share {
	return newShare(r, v.Field(), async.Resolved(v))
}

func (r *Runtime) failedShare(f field.Field, err error) *Share {
	return newShare(r, f, async.Failed[field.Element](err))
}

// orFail folds a (share, error) result into a share that fails with err.
func (r *Runtime) orFail(f field.Field) func(*Share, error) *Share {
	return func(s *Share, err error) *Share {
		if err != nil {
			return r.failedShare(f, err)
		}
		return s
	}
}

// Field returns the field the share lives in.
func (s *Share) Field() field.Field { return s.field }

// Resolve settles the share. Resolving twice is a protocol violation.
func (s *Share) Resolve(v field.Element) error {
	if err := s.p.Resolve(v); err != nil {
		if errors.Is(err, async.ErrAlreadySettled) {
			return errorf("Resolve", "%w: share already resolved", ErrProtocolViolation)
		}
		return err
	}
	return nil
}

// Reject settles the share with an error.
func (s *Share) Reject(err error) error {
	if e := s.p.Reject(err); e != nil {
		return errorf("Reject", "%w: share already resolved", ErrProtocolViolation)
	}
	return nil
}

// Settled reports whether the share holds a value or an error.
func (s *Share) Settled() bool { return s.p.Settled() }

// Result returns the value or error; ok is false while pending.
func (s *Share) Result() (v field.Element, err error, ok bool) { return s.p.Result() }

// Done is closed once the share settles.
func (s *Share) Done() <-chan struct{} { return s.p.Done() }

// Await blocks until the share settles or ctx is done. It must not be
// called on the runtime's event loop.
func (s *Share) Await(ctx context.Context) (field.Element, error) {
	return s.p.Await(ctx)
}

// OnSettle registers fn to run on the settling goroutine.
func (s *Share) OnSettle(fn func(field.Element, error)) { s.p.OnSettle(fn) }

// Clone returns an independent share that settles with the same outcome.
func (s *Share) Clone() *Share {
	out := &Share{rt: s.rt, field: s.field, p: async.New[field.Element]()}
	s.p.Forward(out.p)
	return out
}

func (s *Share) runtime() (*Runtime, error) {
	r := s.rt.Value()
	if r == nil {
		return nil, ErrClosed
	}
	return r, nil
}

func (s *Share) dispatch(op string, fn func(r *Runtime) *Share) *Share {
	r, err := s.runtime()
	if err != nil {
		return &Share{field: s.field, p: async.Failed[field.Element](errorf(op, "%w", err))}
	}
	return fn(r)
}

// Add is s+o on the owning runtime.
func (s *Share) Add(o *Share) *Share {
	return s.dispatch("Add", func(r *Runtime) *Share { return r.Add(s, o) })
}

// Sub is s-o on the owning runtime.
func (s *Share) Sub(o *Share) *Share {
	return s.dispatch("Sub", func(r *Runtime) *Share { return r.Sub(s, o) })
}

// Mul is s*o on the owning runtime. A usage error comes back as a failed
// share; Runtime.Mul returns it directly.
func (s *Share) Mul(o *Share) *Share {
	return s.dispatch("Mul", func(r *Runtime) *Share { return r.orFail(s.field)(r.Mul(s, o)) })
}

// Xor is s xor o on the owning runtime, with Mul's error handling.
func (s *Share) Xor(o *Share) *Share {
	return s.dispatch("Xor", func(r *Runtime) *Share { return r.orFail(s.field)(r.Xor(s, o)) })
}

// Triple is a multiplication triple: shares of random a and b and of c = ab.
type Triple struct {
	A, B, C *Share
}
