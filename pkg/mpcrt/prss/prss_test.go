package prss

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/shamir"
)

func TestGenerateSubsets(t *testing.T) {
	subsets := GenerateSubsets(4, 3)
	require.Len(t, subsets, 4)
	for _, s := range subsets {
		assert.Equal(t, 3, s.Len())
	}
	assert.Len(t, GenerateSubsets(5, 2), 10)
	assert.Empty(t, GenerateSubsets(2, 3))
	assert.Equal(t, []Subset{All(3)}, GenerateSubsets(3, 3))
}

func TestSubsetStringRoundTrip(t *testing.T) {
	s := NewSubset(1, 3, 4)
	assert.Equal(t, "1 3 4", s.String())
	parsed, err := ParseSubset(s.String())
	require.NoError(t, err)
	assert.Equal(t, s, parsed)
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(2))

	_, err = ParseSubset("1 x")
	assert.Error(t, err)
	_, err = ParseSubset("0")
	assert.Error(t, err)
}

func TestPRFDeterministicAndBounded(t *testing.T) {
	max := big.NewInt(1000)
	f := NewPRF([]byte("key"), max)
	g := NewPRF([]byte("key"), max)
	h := NewPRF([]byte("key"), big.NewInt(10000))

	differs := false
	for i := 0; i < 100; i++ {
		in := []byte{byte(i)}
		a := f.Eval(in)
		assert.Equal(t, 0, a.Cmp(g.Eval(in)))
		assert.True(t, a.Sign() >= 0 && a.Cmp(max) < 0)
		if a.Cmp(h.Eval(in)) != 0 {
			differs = true
		}
	}
	assert.True(t, differs, "bound must be part of the key")

	assert.Equal(t, 0, NewPRF([]byte("k"), big.NewInt(1)).Eval(nil).Sign())
}

func shares(t *testing.T, d *Dealing, f field.Field, key []byte) []shamir.Point {
	t.Helper()
	points := make([]shamir.Point, 0, d.N)
	for j := 1; j <= d.N; j++ {
		prfs := d.Keys[j].PRFs(f.Modulus())
		points = append(points, shamir.Point{X: f.FromInt(int64(j)), Y: Share(d.N, j, f, prfs, key)})
	}
	return points
}

func TestShareConsistency(t *testing.T) {
	for _, tc := range []struct{ n, t int }{{3, 1}, {4, 1}, {5, 2}, {7, 3}} {
		d, err := Deal(tc.n, tc.t, rand.New(rand.NewSource(int64(tc.n))))
		require.NoError(t, err)
		for _, f := range []field.Field{field.MustPrime(31), field.GF256, field.Secp256k1N} {
			points := shares(t, d, f, []byte("pc:1.2"))
			require.True(t, shamir.VerifySharing(points, tc.t), "%s n=%d t=%d", f.Name(), tc.n, tc.t)

			first, _ := shamir.Secret(points[:tc.t+1])
			last, _ := shamir.Secret(points[len(points)-tc.t-1:])
			require.True(t, first.Equal(last))
		}
	}
}

func TestShareDependsOnKey(t *testing.T) {
	d, err := Deal(3, 1, nil)
	require.NoError(t, err)
	f := field.MustPrime(2305843009213693951)
	a, _ := shamir.Secret(shares(t, d, f, []byte{1})[:2])
	b, _ := shamir.Secret(shares(t, d, f, []byte{2})[:2])
	require.False(t, a.Equal(b))
}

func TestShareLSB(t *testing.T) {
	const n, th = 4, 1
	d, err := Deal(n, th, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	f := field.MustPrime(2305843009213693951)
	bound := new(big.Int).Lsh(big.NewInt(1), 30)

	for k := 0; k < 20; k++ {
		key := []byte{byte(k)}
		var fp, bp []shamir.Point
		for j := 1; j <= n; j++ {
			s, b := ShareLSB(n, j, f, d.Keys[j].PRFs(bound), key)
			fp = append(fp, shamir.Point{X: f.FromInt(int64(j)), Y: s})
			bp = append(bp, shamir.Point{X: field.GF256.FromInt(int64(j)), Y: b})
		}
		v, _ := shamir.Secret(fp)
		bit, _ := shamir.Secret(bp)
		require.Equal(t, int64(v.Big().Bit(0)), bit.Big().Int64(), "key %d", k)
	}
}

func TestDealerKeysAgree(t *testing.T) {
	const n, th = 4, 1
	d, err := Deal(n, th, nil)
	require.NoError(t, err)
	f := field.MustPrime(101)
	key := []byte("dealer")

	for dealer := 1; dealer <= n; dealer++ {
		all := d.DealerKeys[dealer][dealer].PRFs(f.Modulus())
		require.Len(t, all, len(GenerateSubsets(n, n-th)))
		for j := 1; j <= n; j++ {
			own := d.DealerKeys[j][dealer].PRFs(f.Modulus())
			require.True(t, Share(n, j, f, all, key).Equal(Share(n, j, f, own, key)),
				"dealer %d player %d", dealer, j)
		}
	}
}

func TestDealRejectsBadThreshold(t *testing.T) {
	_, err := Deal(3, 3, nil)
	require.Error(t, err)
	_, err = Deal(3, 0, nil)
	require.Error(t, err)
}
