package field

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Secp256k1N is the prime field of integers modulo the order of the
// secp256k1 group. Arithmetic runs on btcec's fixed-width ModNScalar instead
// of math/big.
var Secp256k1N Field = secpField{}

var secpOrder = new(big.Int).Set(btcec.S256().Params().N)

type secpField struct{}

func (secpField) Name() string { return "secp256k1.N" }
func (secpField) Modulus() *big.Int { return new(big.Int).Set(secpOrder) }
func (secpField) ByteLen() int { return 32 }
func (secpField) Zero() Element { return &secpElement{} }

func (secpField) One() Element {
	e := &secpElement{}
	e.s.SetInt(1)
	return e
}

func (f secpField) FromInt(v int64) Element {
	return f.FromBig(big.NewInt(v))
}

func (secpField) FromBig(v *big.Int) Element {
	var buf [32]byte
	new(big.Int).Mod(v, secpOrder).FillBytes(buf[:])
	e := &secpElement{}
	e.s.SetBytes(&buf)
	return e
}

func (secpField) FromBytes(b []byte) (Element, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("field: secp256k1.N expects 32 bytes, got %d", len(b))
	}
	e := &secpElement{}
	if overflow := e.s.SetByteSlice(b); overflow {
		return nil, fmt.Errorf("field: value out of range for secp256k1.N")
	}
	return e, nil
}

func (f secpField) Random(r io.Reader) (Element, error) {
	if r == nil {
		r = rand.Reader
	}
	v, err := rand.Int(r, secpOrder)
	if err != nil {
		return nil, fmt.Errorf("field: random: %w", err)
	}
	return f.FromBig(v), nil
}

type secpElement struct {
	s btcec.ModNScalar
}

func secpOther(o Element) *secpElement {
	se, ok := o.(*secpElement)
	if !ok {
		panic(mismatch(Secp256k1N, o.Field()))
	}
	return se
}

func (e *secpElement) Field() Field { return Secp256k1N }

func (e *secpElement) Add(o Element) Element {
	r := &secpElement{}
	r.s.Add2(&e.s, &secpOther(o).s)
	return r
}

func (e *secpElement) Sub(o Element) Element {
	r := &secpElement{}
	r.s.NegateVal(&secpOther(o).s).Add(&e.s)
	return r
}

func (e *secpElement) Mul(o Element) Element {
	r := &secpElement{}
	r.s.Mul2(&e.s, &secpOther(o).s)
	return r
}

func (e *secpElement) Div(o Element) Element {
	return e.Mul(secpOther(o).Inverse())
}

func (e *secpElement) Neg() Element {
	r := &secpElement{}
	r.s.NegateVal(&e.s)
	return r
}

func (e *secpElement) Inverse() Element {
	if e.s.IsZero() {
		panic("field: inverse of zero")
	}
	r := &secpElement{}
	r.s.InverseValNonConst(&e.s)
	return r
}

func (e *secpElement) Pow(x uint64) Element {
	r := &secpElement{}
	r.s.SetInt(1)
	base := e.s
	for x > 0 {
		if x&1 == 1 {
			r.s.Mul(&base)
		}
		base.Square()
		x >>= 1
	}
	return r
}

func (e *secpElement) Sqrt() (Element, bool) {
	root := new(big.Int).ModSqrt(e.Big(), secpOrder)
	if root == nil {
		return nil, false
	}
	return Secp256k1N.FromBig(root), true
}

func (e *secpElement) Equal(o Element) bool {
	se, ok := o.(*secpElement)
	return ok && se.s.Equals(&e.s)
}

func (e *secpElement) IsZero() bool { return e.s.IsZero() }

func (e *secpElement) Big() *big.Int {
	b := e.s.Bytes()
	return new(big.Int).SetBytes(b[:])
}

func (e *secpElement) Bytes() []byte {
	b := e.s.Bytes()
	return b[:]
}

func (e *secpElement) String() string { return "{" + e.Big().String() + "}" }
