package async

// Then returns a promise holding fn applied to p's value. Errors from p
// skip fn and propagate unchanged.
func Then[T, U any](p *Promise[T], fn func(T) (U, error)) *Promise[U] {
	out := New[U]()
	p.OnSettle(func(v T, err error) {
		if err != nil {
			_ = out.Reject(err)
			return
		}
		u, err := fn(v)
		if err != nil {
			_ = out.Reject(err)
			return
		}
		_ = out.Resolve(u)
	})
	return out
}

// Chain is Then for functions that themselves return a promise.
func Chain[T, U any](p *Promise[T], fn func(T) *Promise[U]) *Promise[U] {
	out := New[U]()
	p.OnSettle(func(v T, err error) {
		if err != nil {
			_ = out.Reject(err)
			return
		}
		fn(v).Forward(out)
	})
	return out
}

// Outcome records how one promise of a Collect settled.
type Outcome[T any] struct {
	OK    bool
	Value T
	Err   error
}

// Collect waits until threshold of ps have settled, successfully or not,
// and resolves with one entry per input in the original order. Entries for
// promises that had not settled by then are nil. A threshold of zero or
// more than len(ps) waits for all of them.
func Collect[T any](ps []*Promise[T], threshold int) *Promise[[]*Outcome[T]] {
	out := New[[]*Outcome[T]]()
	if threshold <= 0 || threshold > len(ps) {
		threshold = len(ps)
	}
	results := make([]*Outcome[T], len(ps))
	if threshold == 0 {
		_ = out.Resolve(results)
		return out
	}
	missing := threshold
	for i, p := range ps {
		p.OnSettle(func(v T, err error) {
			if missing == 0 {
				return
			}
			results[i] = &Outcome[T]{OK: err == nil, Value: v, Err: err}
			missing--
			if missing == 0 {
				_ = out.Resolve(results)
			}
		})
	}
	return out
}

// All resolves with the values of ps in order once every one of them has
// succeeded, or fails with the first error.
func All[T any](ps []*Promise[T]) *Promise[[]T] {
	out := New[[]T]()
	vals := make([]T, len(ps))
	if len(ps) == 0 {
		_ = out.Resolve(vals)
		return out
	}
	remaining := len(ps)
	for i, p := range ps {
		p.OnSettle(func(v T, err error) {
			if err != nil {
				_ = out.Reject(err)
				return
			}
			vals[i] = v
			remaining--
			if remaining == 0 {
				_ = out.Resolve(vals)
			}
		})
	}
	return out
}

// Join waits for a and b.
func Join[A, B any](a *Promise[A], b *Promise[B]) *Promise[Pair[A, B]] {
	out := New[Pair[A, B]]()
	a.OnSettle(func(av A, err error) {
		if err != nil {
			_ = out.Reject(err)
			return
		}
		b.OnSettle(func(bv B, err error) {
			if err != nil {
				_ = out.Reject(err)
				return
			}
			_ = out.Resolve(Pair[A, B]{First: av, Second: bv})
		})
	})
	return out
}

// Pair holds two values.
type Pair[A, B any] struct {
	First  A
	Second B
}
