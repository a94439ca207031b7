// Package shamir implements Shamir secret sharing over any field.Field:
// sharing with a random polynomial, Lagrange recombination at an arbitrary
// point, and consistency checking of a set of points against a degree bound.
package shamir

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
)

// ErrFieldTooSmall is returned when the field has no n distinct nonzero
// evaluation points.
var ErrFieldTooSmall = errors.New("shamir: field too small")

// Point is one evaluation (x, f(x)) of a sharing polynomial. Player i holds
// the point with X = i.
type Point struct {
	X field.Element
	Y field.Element
}

// Share splits secret into n points of a random polynomial of the given
// degree with constant term secret, evaluated at 1..n.
func Share(secret field.Element, degree, n int, rand io.Reader) ([]Point, error) {
	if degree < 0 || degree >= n {
		return nil, fmt.Errorf("shamir: degree %d out of range for %d players", degree, n)
	}
	f := secret.Field()
	if err := CheckField(f, n); err != nil {
		return nil, err
	}
	coef := make([]field.Element, degree+1)
	coef[0] = secret
	for j := 1; j <= degree; j++ {
		c, err := f.Random(rand)
		if err != nil {
			return nil, err
		}
		coef[j] = c
	}

	points := make([]Point, n)
	for i := 1; i <= n; i++ {
		x := f.FromInt(int64(i))
		points[i-1] = Point{X: x, Y: Eval(coef, x)}
	}
	return points, nil
}

// CheckField reports whether f holds the points 1..n as distinct nonzero
// elements. Over a smaller field a player's x coordinate wraps to zero, and
// that player's share is the secret.
func CheckField(f field.Field, n int) error {
	if f.Modulus().Cmp(big.NewInt(int64(n))) <= 0 {
		return fmt.Errorf("%w: %s has no %d distinct nonzero points", ErrFieldTooSmall, f.Name(), n)
	}
	return nil
}

// Eval evaluates the polynomial with the given coefficients (lowest degree
// first) at x using Horner's rule.
func Eval(coef []field.Element, x field.Element) field.Element {
	acc := coef[len(coef)-1]
	for j := len(coef) - 2; j >= 0; j-- {
		acc = acc.Mul(x).Add(coef[j])
	}
	return acc
}

// Recombine interpolates the unique polynomial of degree < len(points)
// through points and evaluates it at the given point. Passing the field's
// zero reconstructs the secret. The X coordinates must be distinct.
func Recombine(points []Point, at field.Element) field.Element {
	result := at.Field().Zero()
	for i, pi := range points {
		coeff := at.Field().One()
		for k, pk := range points {
			if k == i {
				continue
			}
			coeff = coeff.Mul(pk.X.Sub(at).Div(pk.X.Sub(pi.X)))
		}
		result = result.Add(pi.Y.Mul(coeff))
	}
	return result
}

// Secret recombines points at zero.
func Secret(points []Point) (field.Element, error) {
	if len(points) == 0 {
		return nil, errors.New("shamir: no points")
	}
	return Recombine(points, points[0].X.Field().Zero()), nil
}

// VerifySharing reports whether points lie on a single polynomial of at
// most the given degree. The first degree+1 points determine the polynomial
// and every remaining point must agree with it.
func VerifySharing(points []Point, degree int) bool {
	if degree < 0 || len(points) <= degree {
		return false
	}
	basis := points[:degree+1]
	for _, p := range points[degree+1:] {
		if !Recombine(basis, p.X).Equal(p.Y) {
			return false
		}
	}
	return true
}
