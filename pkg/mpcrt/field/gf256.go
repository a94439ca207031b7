package field

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// GF256 is the field GF(2^8) with reduction polynomial x^8+x^4+x^3+x+1.
// Addition is xor; multiplication goes through log/exp tables built once at
// package initialization and never modified afterwards.
var GF256 Field = gf256{}

var (
	gfExp [256]byte
	gfLog [256]byte
	gfInv [256]byte
)

func init() {
	a := byte(1)
	for i := 0; i < 255; i++ {
		gfExp[i] = a
		gfLog[a] = byte(i)
		a = gfMulSlow(a, 0x03)
	}
	gfExp[255] = gfExp[0]
	for x := 1; x < 256; x++ {
		gfInv[x] = gfExp[(255-int(gfLog[x]))%255]
	}
}

func gfMulSlow(a, b byte) byte {
	var p byte
	for b != 0 {
		if b&1 != 0 {
			p ^= a
		}
		hi := a & 0x80
		a <<= 1
		if hi != 0 {
			a ^= 0x1b
		}
		b >>= 1
	}
	return p
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[(int(gfLog[a])+int(gfLog[b]))%255]
}

type gf256 struct{}

func (gf256) Name() string { return "GF256" }
func (gf256) Modulus() *big.Int { return big.NewInt(256) }
func (gf256) ByteLen() int { return 1 }
func (gf256) Zero() Element { return GF256Element(0) }
func (gf256) One() Element { return GF256Element(1) }

// FromInt keeps the low eight bits of v.
func (gf256) FromInt(v int64) Element { return GF256Element(byte(v)) }

func (gf256) FromBig(v *big.Int) Element {
	return GF256Element(byte(new(big.Int).Mod(v, big.NewInt(256)).Uint64()))
}

func (gf256) FromBytes(b []byte) (Element, error) {
	if len(b) != 1 {
		return nil, fmt.Errorf("field: GF256 expects 1 byte, got %d", len(b))
	}
	return GF256Element(b[0]), nil
}

func (gf256) Random(r io.Reader) (Element, error) {
	if r == nil {
		r = rand.Reader
	}
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, fmt.Errorf("field: random: %w", err)
	}
	return GF256Element(b[0]), nil
}

// GF256Element is an element of GF(2^8).
type GF256Element byte

func gfOther(o Element) GF256Element {
	g, ok := o.(GF256Element)
	if !ok {
		panic(mismatch(GF256, o.Field()))
	}
	return g
}

func (e GF256Element) Field() Field { return GF256 }
func (e GF256Element) Add(o Element) Element { return e ^ gfOther(o) }
func (e GF256Element) Sub(o Element) Element { return e ^ gfOther(o) }
func (e GF256Element) Mul(o Element) Element { return GF256Element(gfMul(byte(e), byte(gfOther(o)))) }
func (e GF256Element) Div(o Element) Element { return e.Mul(gfOther(o).Inverse()) }
func (e GF256Element) Neg() Element { return e }
func (e GF256Element) IsZero() bool { return e == 0 }
func (e GF256Element) Big() *big.Int { return big.NewInt(int64(e)) }
func (e GF256Element) Bytes() []byte { return []byte{byte(e)} }
func (e GF256Element) String() string { return fmt.Sprintf("[%d]", byte(e)) }

func (e GF256Element) Equal(o Element) bool {
	g, ok := o.(GF256Element)
	return ok && g == e
}

func (e GF256Element) Inverse() Element {
	if e == 0 {
		panic("field: inverse of zero")
	}
	return GF256Element(gfInv[e])
}

func (e GF256Element) Pow(x uint64) Element {
	result := GF256Element(1)
	base := e
	for x > 0 {
		if x&1 == 1 {
			result = GF256Element(gfMul(byte(result), byte(base)))
		}
		base = GF256Element(gfMul(byte(base), byte(base)))
		x >>= 1
	}
	return result
}

// Sqrt always succeeds: squaring is a bijection in characteristic two, so
// the root of a is a^(2^7).
func (e GF256Element) Sqrt() (Element, bool) {
	return e.Pow(128), true
}
