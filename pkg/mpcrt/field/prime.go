package field

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Prime is the field of integers modulo an odd prime p.
type Prime struct {
	p    *big.Int
	size int
	name string
}

// NewPrime returns the field Z_p. The modulus must be an odd prime.
func NewPrime(p *big.Int) (*Prime, error) {
	if p == nil || p.Cmp(big.NewInt(2)) <= 0 {
		return nil, errors.New("field: modulus must be an odd prime")
	}
	if !p.ProbablyPrime(32) {
		return nil, fmt.Errorf("field: modulus %s is not prime", p)
	}
	q := new(big.Int).Set(p)
	return &Prime{
		p:    q,
		size: (q.BitLen() + 7) / 8,
		name: "Zp(" + q.String() + ")",
	}, nil
}

// MustPrime is NewPrime for small constant moduli. It panics on error.
func MustPrime(p uint64) *Prime {
	f, err := NewPrime(new(big.Int).SetUint64(p))
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Prime) Name() string { return f.name }
func (f *Prime) Modulus() *big.Int { return new(big.Int).Set(f.p) }
func (f *Prime) ByteLen() int { return f.size }
func (f *Prime) Zero() Element { return &primeElement{f: f, v: new(big.Int)} }
func (f *Prime) One() Element { return &primeElement{f: f, v: big.NewInt(1)} }

func (f *Prime) FromInt(v int64) Element {
	return f.FromBig(big.NewInt(v))
}

func (f *Prime) FromBig(v *big.Int) Element {
	r := new(big.Int).Mod(v, f.p)
	return &primeElement{f: f, v: r}
}

func (f *Prime) FromBytes(b []byte) (Element, error) {
	if len(b) != f.size {
		return nil, fmt.Errorf("field: %s expects %d bytes, got %d", f.name, f.size, len(b))
	}
	v := new(big.Int).SetBytes(b)
	if v.Cmp(f.p) >= 0 {
		return nil, fmt.Errorf("field: value out of range for %s", f.name)
	}
	return &primeElement{f: f, v: v}, nil
}

func (f *Prime) Random(r io.Reader) (Element, error) {
	if r == nil {
		r = rand.Reader
	}
	v, err := rand.Int(r, f.p)
	if err != nil {
		return nil, fmt.Errorf("field: random: %w", err)
	}
	return &primeElement{f: f, v: v}, nil
}

type primeElement struct {
	f *Prime
	v *big.Int
}

func (e *primeElement) other(o Element) *primeElement {
	pe, ok := o.(*primeElement)
	if !ok || pe.f.p.Cmp(e.f.p) != 0 {
		panic(mismatch(e.f, o.Field()))
	}
	return pe
}

func (e *primeElement) wrap(v *big.Int) Element {
	return &primeElement{f: e.f, v: v.Mod(v, e.f.p)}
}

func (e *primeElement) Field() Field { return e.f }

func (e *primeElement) Add(o Element) Element {
	return e.wrap(new(big.Int).Add(e.v, e.other(o).v))
}

func (e *primeElement) Sub(o Element) Element {
	return e.wrap(new(big.Int).Sub(e.v, e.other(o).v))
}

func (e *primeElement) Mul(o Element) Element {
	return e.wrap(new(big.Int).Mul(e.v, e.other(o).v))
}

func (e *primeElement) Div(o Element) Element {
	return e.Mul(e.other(o).Inverse())
}

func (e *primeElement) Neg() Element {
	return e.wrap(new(big.Int).Neg(e.v))
}

func (e *primeElement) Inverse() Element {
	if e.v.Sign() == 0 {
		panic("field: inverse of zero")
	}
	return &primeElement{f: e.f, v: new(big.Int).ModInverse(e.v, e.f.p)}
}

func (e *primeElement) Pow(x uint64) Element {
	return &primeElement{f: e.f, v: new(big.Int).Exp(e.v, new(big.Int).SetUint64(x), e.f.p)}
}

func (e *primeElement) Sqrt() (Element, bool) {
	r := new(big.Int).ModSqrt(e.v, e.f.p)
	if r == nil {
		return nil, false
	}
	return &primeElement{f: e.f, v: r}, true
}

func (e *primeElement) Equal(o Element) bool {
	pe, ok := o.(*primeElement)
	return ok && pe.f.p.Cmp(e.f.p) == 0 && pe.v.Cmp(e.v) == 0
}

func (e *primeElement) IsZero() bool { return e.v.Sign() == 0 }
func (e *primeElement) Big() *big.Int { return new(big.Int).Set(e.v) }
func (e *primeElement) String() string { return "{" + e.v.String() + "}" }
func (e *primeElement) Bytes() []byte { return e.v.FillBytes(make([]byte, e.f.size)) }
