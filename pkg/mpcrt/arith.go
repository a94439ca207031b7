package mpcrt

import (
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
)

type pair = async.Pair[field.Element, field.Element]

func (r *Runtime) sameField(op string, a, b *Share) *Share {
	if a.field.Name() != b.field.Name() {
		return r.failedShare(a.field, errorf(op, "%w: field %s and %s", ErrInvalidParameter, a.field.Name(), b.field.Name()))
	}
	return nil
}

func (r *Runtime) combine(op string, a, b *Share, fn func(x, y field.Element) field.Element) *Share {
	if bad := r.sameField(op, a, b); bad != nil {
		return bad
	}
	return newShare(r, a.field, async.Then(async.Join(a.p, b.p), func(v pair) (field.Element, error) {
		return fn(v.First, v.Second), nil
	}))
}

// Add returns a+b. It is local: sharings are linear.
func (r *Runtime) Add(a, b *Share) *Share {
	return r.combine("Add", a, b, field.Element.Add)
}

// Sub returns a-b. It is local.
func (r *Runtime) Sub(a, b *Share) *Share {
	return r.combine("Sub", a, b, field.Element.Sub)
}

// Sum adds shares of one field. An empty list is a zero constant of f.
func (r *Runtime) Sum(f field.Field, shares ...*Share) *Share {
	acc := r.Constant(f.Zero())
	for _, s := range shares {
		acc = r.Add(acc, s)
	}
	return acc
}

func (r *Runtime) withConst(s *Share, c field.Element, fn func(x field.Element) field.Element) *Share {
	if s.field.Name() != c.Field().Name() {
		return r.failedShare(s.field, errorf("const", "%w: field %s and %s", ErrInvalidParameter, s.field.Name(), c.Field().Name()))
	}
	return newShare(r, s.field, async.Then(s.p, func(x field.Element) (field.Element, error) {
		return fn(x), nil
	}))
}

// AddConst returns s+c.
func (r *Runtime) AddConst(s *Share, c field.Element) *Share {
	return r.withConst(s, c, func(x field.Element) field.Element { return x.Add(c) })
}

// SubConst returns s-c.
func (r *Runtime) SubConst(s *Share, c field.Element) *Share {
	return r.withConst(s, c, func(x field.Element) field.Element { return x.Sub(c) })
}

// MulConst returns c*s. Multiplying by a public constant is local.
func (r *Runtime) MulConst(s *Share, c field.Element) *Share {
	return r.withConst(s, c, func(x field.Element) field.Element { return x.Mul(c) })
}

// checkMul validates the operands of a multiplication: one field, large
// enough for the cluster, and n > 2t.
func (r *Runtime) checkMul(op string, a, b *Share) error {
	if a.field.Name() != b.field.Name() {
		return errorf(op, "%w: field %s and %s", ErrInvalidParameter, a.field.Name(), b.field.Name())
	}
	if err := r.checkField(op, a.field); err != nil {
		return err
	}
	if 2*r.threshold >= r.n {
		return errorf(op, "%w: multiplication needs n > 2t (n=%d, t=%d)", ErrInvalidParameter, r.n, r.threshold)
	}
	return nil
}

// Mul returns a*b using the variant's multiplication protocol. Usage
// errors are returned before the counter moves or anything is sent.
func (r *Runtime) Mul(a, b *Share) (*Share, error) {
	if err := r.checkMul("Mul", a, b); err != nil {
		return nil, err
	}
	defer r.pc.Enter().Exit()
	return r.strategy.mul(r, a, b), nil
}

// localMul multiplies two shares without resharing. The result is a
// sharing of degree 2t.
func localMul(a, b *Share) *async.Promise[field.Element] {
	return async.Then(async.Join(a.p, b.p), func(v pair) (field.Element, error) {
		return v.First.Mul(v.Second), nil
	})
}

// Xor returns a xor b for shares of bits. Over GF(2^8) this is addition;
// over a prime field it is a+b-2ab.
func (r *Runtime) Xor(a, b *Share) (*Share, error) {
	if a.field.Name() != b.field.Name() {
		return nil, errorf("Xor", "%w: field %s and %s", ErrInvalidParameter, a.field.Name(), b.field.Name())
	}
	if field.IsBinary(a.field) {
		return r.Add(a, b), nil
	}
	if err := r.checkMul("Xor", a, b); err != nil {
		return nil, err
	}
	defer r.pc.Enter().Exit()
	ab, err := r.Mul(a, b)
	if err != nil {
		return nil, err
	}
	return r.Sub(r.Add(a, b), r.MulConst(ab, a.field.FromInt(2))), nil
}
