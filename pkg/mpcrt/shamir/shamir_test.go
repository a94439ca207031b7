package shamir

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
)

func TestShareRecombineRoundTrip(t *testing.T) {
	fields := []field.Field{field.MustPrime(31), field.MustPrime(2305843009213693951), field.GF256, field.Secp256k1N}
	for _, f := range fields {
		for n := 2; n <= 7; n++ {
			for deg := 1; deg < n; deg++ {
				secret, err := f.Random(nil)
				require.NoError(t, err)
				points, err := Share(secret, deg, n, nil)
				require.NoError(t, err)
				require.Len(t, points, n)

				got, err := Secret(points[:deg+1])
				require.NoError(t, err)
				require.Truef(t, got.Equal(secret), "%s n=%d deg=%d", f.Name(), n, deg)

				got, err = Secret(points[n-deg-1:])
				require.NoError(t, err)
				require.True(t, got.Equal(secret))
			}
		}
	}
}

func TestRecombineAtPlayer(t *testing.T) {
	f := field.MustPrime(47)
	points, err := Share(f.FromInt(42), 2, 5, nil)
	require.NoError(t, err)

	// Points 1..3 determine the polynomial; evaluating at 5 must give the
	// fifth share.
	got := Recombine(points[:3], f.FromInt(5))
	require.True(t, got.Equal(points[4].Y))
}

func TestShareRejectsBadDegree(t *testing.T) {
	f := field.MustPrime(31)
	_, err := Share(f.One(), 3, 3, nil)
	require.Error(t, err)
	_, err = Share(f.One(), -1, 3, nil)
	require.Error(t, err)
}

func TestShareRejectsSmallField(t *testing.T) {
	// Over Z_5, player 5 would sit at x = 0 and hold the secret.
	_, err := Share(field.MustPrime(5).FromInt(3), 1, 5, nil)
	require.ErrorIs(t, err, ErrFieldTooSmall)
	_, err = Share(field.MustPrime(3).FromInt(1), 1, 5, nil)
	require.ErrorIs(t, err, ErrFieldTooSmall)

	points, err := Share(field.MustPrime(7).FromInt(3), 1, 6, nil)
	require.NoError(t, err)
	require.Len(t, points, 6)
	require.NoError(t, CheckField(field.GF256, 255))
	require.ErrorIs(t, CheckField(field.GF256, 256), ErrFieldTooSmall)
}

func TestVerifySharing(t *testing.T) {
	f := field.MustPrime(101)
	points, err := Share(f.FromInt(7), 1, 4, nil)
	require.NoError(t, err)

	require.True(t, VerifySharing(points, 1))
	require.True(t, VerifySharing(points, 2))

	bad := append([]Point(nil), points...)
	bad[3] = Point{X: bad[3].X, Y: bad[3].Y.Add(f.One())}
	require.False(t, VerifySharing(bad, 1))

	require.False(t, VerifySharing(points[:1], 1), "too few points")
}

func TestShareDeterministicWithSeededReader(t *testing.T) {
	f := field.MustPrime(31)
	a, err := Share(f.FromInt(3), 1, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	b, err := Share(f.FromInt(3), 1, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	for i := range a {
		require.True(t, a[i].Y.Equal(b[i].Y))
	}
}
