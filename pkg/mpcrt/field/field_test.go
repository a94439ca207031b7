package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGF256ReferenceVectors(t *testing.T) {
	one := GF256.FromInt(1)
	two := GF256.FromInt(2)

	require.True(t, one.Add(one).IsZero(), "1+1")
	require.True(t, one.Add(two).Equal(GF256.FromInt(3)), "1+2")
	require.True(t, two.Mul(GF256.FromInt(3)).Equal(GF256.FromInt(6)), "2*3")
	require.True(t, GF256.FromInt(16).Mul(GF256.FromInt(32)).Equal(GF256.FromInt(54)), "16*32")
	require.True(t, GF256.FromInt(0).Mul(GF256.FromInt(47)).IsZero(), "0*47")
	require.True(t, one.Mul(two).Equal(two), "1*2")
}

func TestGF256TablesMatchSlowMultiply(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			if got, want := gfMul(byte(a), byte(b)), gfMulSlow(byte(a), byte(b)); got != want {
				t.Fatalf("%d*%d: table %d, slow %d", a, b, got, want)
			}
		}
	}
}

func TestGF256InverseAndSqrt(t *testing.T) {
	for v := 1; v < 256; v++ {
		x := GF256.FromInt(int64(v))
		if !x.Mul(x.Inverse()).Equal(GF256.One()) {
			t.Fatalf("inverse of %d", v)
		}
		r, ok := x.Sqrt()
		if !ok || !r.Mul(r).Equal(x) {
			t.Fatalf("sqrt of %d", v)
		}
	}
}

func TestPrimeArithmetic(t *testing.T) {
	f := MustPrime(31)

	require.True(t, f.FromInt(5).Sub(f.FromInt(3)).Equal(f.FromInt(2)))
	require.True(t, f.FromInt(5).Sub(f.FromInt(10)).Equal(f.FromInt(26)))
	require.True(t, f.FromInt(-1).Equal(f.FromInt(30)))
	require.True(t, f.FromInt(7).Div(f.FromInt(7)).Equal(f.One()))
	require.True(t, f.FromInt(3).Pow(3).Equal(f.FromInt(27)))

	sq := f.FromInt(9)
	r, ok := sq.Sqrt()
	require.True(t, ok)
	require.True(t, r.Mul(r).Equal(sq))

	_, ok = f.FromInt(3).Sqrt()
	require.False(t, ok, "3 is not a square mod 31")
}

func TestPrimeRejectsComposite(t *testing.T) {
	_, err := NewPrime(big.NewInt(33))
	require.Error(t, err)
	_, err = NewPrime(big.NewInt(2))
	require.Error(t, err)
}

func TestBytesRoundTrip(t *testing.T) {
	fields := []Field{MustPrime(31), MustPrime(2305843009213693951), GF256, Secp256k1N}
	for _, f := range fields {
		t.Run(f.Name(), func(t *testing.T) {
			x, err := f.Random(nil)
			require.NoError(t, err)
			b := x.Bytes()
			require.Len(t, b, f.ByteLen())
			y, err := f.FromBytes(b)
			require.NoError(t, err)
			require.True(t, x.Equal(y))

			_, err = f.FromBytes(append(b, 0))
			require.Error(t, err)
		})
	}
}

func TestPrimeFromBytesRejectsOutOfRange(t *testing.T) {
	f := MustPrime(31)
	_, err := f.FromBytes([]byte{31})
	require.Error(t, err)
}

func TestSecp256k1NMatchesBigInt(t *testing.T) {
	n := Secp256k1N.Modulus()
	ref, err := NewPrime(n)
	require.NoError(t, err)

	a := Secp256k1N.FromInt(-12345)
	b := Secp256k1N.FromBig(new(big.Int).Lsh(big.NewInt(1), 200))
	ra := ref.FromBig(a.Big())
	rb := ref.FromBig(b.Big())

	require.Equal(t, 0, a.Add(b).Big().Cmp(ra.Add(rb).Big()))
	require.Equal(t, 0, a.Sub(b).Big().Cmp(ra.Sub(rb).Big()))
	require.Equal(t, 0, a.Mul(b).Big().Cmp(ra.Mul(rb).Big()))
	require.Equal(t, 0, a.Div(b).Big().Cmp(ra.Div(rb).Big()))
	require.Equal(t, 0, a.Pow(65537).Big().Cmp(ra.Pow(65537).Big()))
	require.True(t, a.Neg().Add(a).IsZero())
}

func TestMixedFieldsPanic(t *testing.T) {
	require.Panics(t, func() { MustPrime(31).One().Add(GF256.One()) })
	require.Panics(t, func() { GF256.Zero().Inverse() })
}

func TestIsBinary(t *testing.T) {
	require.True(t, IsBinary(GF256))
	require.False(t, IsBinary(MustPrime(31)))
	require.False(t, IsBinary(Secp256k1N))
}
