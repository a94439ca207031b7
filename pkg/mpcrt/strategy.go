package mpcrt

import (
	"fmt"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/shamir"
)

// Variant selects the adversary model the runtime defends against.
type Variant int

const (
	// Passive is secure against honest-but-curious players. Multiplication
	// reshares the local product.
	Passive Variant = iota
	// Active multiplies with preprocessed triples and checks opened
	// sharings against their degree when extra shares arrive.
	Active
)

func (v Variant) String() string {
	switch v {
	case Passive:
		return "passive"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant accepts the names String returns.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "passive":
		return Passive, nil
	case "active":
		return Active, nil
	default:
		return 0, errorf("ParseVariant", "%w: unknown variant %q", ErrInvalidParameter, s)
	}
}

// strategy holds the variant-specific halves of input sharing,
// multiplication and opening.
type strategy interface {
	input(r *Runtime, inputters []PlayerID, f field.Field, v field.Element) ([]*Share, error)
	mul(r *Runtime, a, b *Share) *Share
	recombine(r *Runtime, points []*async.Promise[shamir.Point], threshold int) *async.Promise[field.Element]
}

func strategyFor(v Variant) (strategy, error) {
	switch v {
	case Passive:
		return passiveStrategy{}, nil
	case Active:
		return activeStrategy{}, nil
	default:
		return nil, errorf("New", "%w: unknown variant %d", ErrInvalidParameter, int(v))
	}
}

type passiveStrategy struct{}

func (passiveStrategy) input(r *Runtime, inputters []PlayerID, f field.Field, v field.Element) ([]*Share, error) {
	return r.ShamirShare(inputters, f, v)
}

// mul reshares the degree 2t product at degree t and recombines the
// resharings with a degree 2t opening.
func (passiveStrategy) mul(r *Runtime, a, b *Share) *Share {
	prod := localMul(a, b)
	out := scheduleChain(r, prod, func(v field.Element) *async.Promise[field.Element] {
		points, err := r.reshare(v)
		if err != nil {
			return async.Failed[field.Element](err)
		}
		return recombineFirst(points, 2*r.threshold, 2*r.threshold+1)
	})
	return newShare(r, a.field, out)
}

func (passiveStrategy) recombine(r *Runtime, points []*async.Promise[shamir.Point], threshold int) *async.Promise[field.Element] {
	return recombineFirst(points, threshold, threshold+1)
}

type activeStrategy struct{}

// input uses PRSS sharing: one correction per inputter instead of n
// point-to-point shares.
func (activeStrategy) input(r *Runtime, inputters []PlayerID, f field.Field, v field.Element) ([]*Share, error) {
	return r.PRSSShare(inputters, f, v)
}

// mul consumes a triple (a, b, c): with d = open(x-a) and e = open(y-b),
// xy = de + db + ea + c.
func (activeStrategy) mul(r *Runtime, x, y *Share) *Share {
	triple := r.GetTriple(x.field)
	out := scheduleChain(r, triple, func(t Triple) *async.Promise[field.Element] {
		d := r.Open(r.Sub(x, t.A))
		e := r.Open(r.Sub(y, t.B))
		de := async.Join(d.p, e.p)
		return async.Chain(de, func(v async.Pair[field.Element, field.Element]) *async.Promise[field.Element] {
			dv, ev := v.First, v.Second
			sum := r.Add(r.MulConst(t.B, dv), r.MulConst(t.A, ev))
			sum = r.Add(sum, t.C)
			return r.AddConst(sum, dv.Mul(ev)).p
		})
	})
	return newShare(r, x.field, out)
}

// recombine waits for up to t extra shares beyond what the degree needs
// and checks that they all lie on one polynomial.
func (activeStrategy) recombine(r *Runtime, points []*async.Promise[shamir.Point], threshold int) *async.Promise[field.Element] {
	want := min(len(points), threshold+1+r.threshold)
	collected := async.Collect(points, want)
	return async.Then(collected, func(results []*async.Outcome[shamir.Point]) (field.Element, error) {
		good := goodPoints(results)
		if len(good) < threshold+1 {
			return nil, errorf("recombine", "%w: %d valid shares, need %d", ErrProtocolViolation, len(good), threshold+1)
		}
		if len(good) > threshold+1 && !shamir.VerifySharing(good, threshold) {
			return nil, errorf("recombine", "%w: shares are not on a degree %d polynomial", ErrVerificationFailure, threshold)
		}
		return shamir.Secret(good[:threshold+1])
	})
}

// recombineFirst reconstructs from the first threshold+1 valid shares
// among the first wait to arrive.
func recombineFirst(points []*async.Promise[shamir.Point], threshold, wait int) *async.Promise[field.Element] {
	collected := async.Collect(points, min(wait, len(points)))
	return async.Then(collected, func(results []*async.Outcome[shamir.Point]) (field.Element, error) {
		good := goodPoints(results)
		if len(good) < threshold+1 {
			return nil, errorf("recombine", "%w: %d valid shares, need %d", ErrProtocolViolation, len(good), threshold+1)
		}
		return shamir.Secret(good[:threshold+1])
	})
}

func goodPoints(results []*async.Outcome[shamir.Point]) []shamir.Point {
	good := make([]shamir.Point, 0, len(results))
	for _, res := range results {
		if res != nil && res.OK {
			good = append(good, res.Value)
		}
	}
	return good
}
