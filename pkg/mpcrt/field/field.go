package field

import (
	"fmt"
	"io"
	"math/big"
)

// Field describes a finite field and constructs its elements.
type Field interface {
	// Name is a stable identifier, used as a cache key and in logs.
	Name() string
	// Modulus is the field order. For GF(2^8) this is 256.
	Modulus() *big.Int
	// ByteLen is the width of Element.Bytes.
	ByteLen() int

	Zero() Element
	One() Element
	FromInt(v int64) Element
	FromBig(v *big.Int) Element
	FromBytes(b []byte) (Element, error)
	Random(r io.Reader) (Element, error)
}

// Element is a value of some Field.
type Element interface {
	Field() Field

	Add(o Element) Element
	Sub(o Element) Element
	Mul(o Element) Element
	// Div panics when o is zero.
	Div(o Element) Element
	Neg() Element
	// Inverse panics on zero.
	Inverse() Element
	Pow(e uint64) Element
	// Sqrt returns a square root and true, or false when none exists.
	Sqrt() (Element, bool)

	Equal(o Element) bool
	IsZero() bool
	Big() *big.Int
	Bytes() []byte
	String() string
}

// Sum adds the given elements. It returns f.Zero() for an empty list.
func Sum(f Field, xs ...Element) Element {
	acc := f.Zero()
	for _, x := range xs {
		acc = acc.Add(x)
	}
	return acc
}

// IsBinary reports whether f has characteristic two.
func IsBinary(f Field) bool {
	return f.Modulus().Bit(0) == 0
}

func mismatch(a, b Field) string {
	return fmt.Sprintf("field: mixing elements of %s and %s", a.Name(), b.Name())
}
