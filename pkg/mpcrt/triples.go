package mpcrt

import (
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/matrix"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/shamir"
)

// DoubleSharing is one random value shared at two degrees.
type DoubleSharing struct {
	Low  *Share
	High *Share
}

func (r *Runtime) hyperFor(f field.Field) (*matrix.Matrix, error) {
	if m, ok := r.hyper[f.Name()]; ok {
		return m, nil
	}
	m, err := matrix.Hyper(r.n, f)
	if err != nil {
		return nil, errorf("hyper", "%w: %v", ErrInvalidParameter, err)
	}
	r.hyper[f.Name()] = m
	return m, nil
}

// SingleShareRandom returns count sharings of degree degree of random
// values unknown to every player. Every player contributes a sharing; the
// contributions are mixed with a hyper-invertible matrix and the outputs
// beyond count are opened to players count+1..n, who check their degree.
// count may be at most n-t.
func (r *Runtime) SingleShareRandom(count, degree int, f field.Field) *async.Promise[[]*Share] {
	return async.Then(r.himShare("SingleShareRandom", count, f, []int{degree}), func(vecs [][]*Share) ([]*Share, error) {
		return vecs[0], nil
	})
}

// DoubleShareRandom is SingleShareRandom for pairs of sharings of the same
// random value at degrees low and high. Checking players also verify that
// both sharings hide the same value.
func (r *Runtime) DoubleShareRandom(count, low, high int, f field.Field) *async.Promise[[]DoubleSharing] {
	return async.Then(r.himShare("DoubleShareRandom", count, f, []int{low, high}), func(vecs [][]*Share) ([]DoubleSharing, error) {
		out := make([]DoubleSharing, count)
		for i := range out {
			out[i] = DoubleSharing{Low: vecs[0][i], High: vecs[1][i]}
		}
		return out, nil
	})
}

func (r *Runtime) himShare(op string, count int, f field.Field, degrees []int) *async.Promise[[][]*Share] {
	if count < 1 || count > r.n-r.threshold {
		return async.Failed[[][]*Share](errorf(op, "%w: count %d out of range 1..%d", ErrInvalidParameter, count, r.n-r.threshold))
	}
	for _, d := range degrees {
		if d < 0 || d >= r.n {
			return async.Failed[[][]*Share](errorf(op, "%w: degree %d out of range 0..%d", ErrInvalidParameter, d, r.n-1))
		}
	}
	hyper, err := r.hyperFor(f)
	if err != nil {
		return async.Failed[[][]*Share](err)
	}
	defer r.pc.Enter().Exit()

	si, err := f.Random(r.rand)
	if err != nil {
		return async.Failed[[][]*Share](errorf(op, "%w: %v", ErrInvalidParameter, err))
	}
	all := r.Players()
	vecs := make([]*async.Promise[[]field.Element], len(degrees))
	for i, d := range degrees {
		shares, err := r.ShamirShareDegree(all, f, si, d)
		if err != nil {
			return async.Failed[[][]*Share](err)
		}
		ps := make([]*async.Promise[field.Element], len(shares))
		for j, s := range shares {
			ps[j] = s.p
		}
		vecs[i] = async.All(ps)
	}

	return scheduleChain(r, async.All(vecs), func(svecs [][]field.Element) *async.Promise[[][]*Share] {
		rvecs := make([][]field.Element, len(svecs))
		for i, svec := range svecs {
			rvec, err := mix(hyper, svec)
			if err != nil {
				return async.Failed[[][]*Share](errorf(op, "%w: %v", ErrInvalidParameter, err))
			}
			rvecs[i] = rvec
		}
		for offset := 0; offset < r.n-count; offset++ {
			to := PlayerID(count + 1 + offset)
			if to == r.id {
				continue
			}
			for _, rvec := range rvecs {
				r.sendShare(to, rvec[count+offset])
			}
		}

		outputs := make([][]*Share, len(rvecs))
		for i, rvec := range rvecs {
			outputs[i] = make([]*Share, count)
			for j := range count {
				outputs[i][j] = r.Constant(rvec[j])
			}
		}
		if int(r.id) <= count {
			return async.Resolved(outputs)
		}

		// This player checks output count+offset of every vector.
		offset := int(r.id) - count - 1
		received := make([]*async.Promise[field.Element], 0, (r.n-1)*len(degrees))
		for _, id := range all {
			if id == r.id {
				continue
			}
			for range degrees {
				received = append(received, r.expectShare(id, f))
			}
		}
		return async.Then(async.All(received), func(vals []field.Element) ([][]*Share, error) {
			if err := r.checkMixed(op, f, all, degrees, rvecs, count+offset, vals); err != nil {
				r.log.Error(r.ctx, "random sharing rejected", "op", op, "error", err)
				return nil, err
			}
			return outputs, nil
		})
	})
}

// mix returns hyper * svec.
func mix(hyper *matrix.Matrix, svec []field.Element) ([]field.Element, error) {
	col := make([][]field.Element, len(svec))
	for i, s := range svec {
		col[i] = []field.Element{s}
	}
	x, err := matrix.FromRows(col)
	if err != nil {
		return nil, err
	}
	y, err := hyper.Mul(x)
	if err != nil {
		return nil, err
	}
	return y.Transpose().Row(0), nil
}

// checkMixed verifies that the shares of output index idx, as received from
// every player, lie on polynomials of the expected degrees and, for more
// than one degree, share a constant term. vals holds the peers' shares in
// player order, len(degrees) per peer.
func (r *Runtime) checkMixed(op string, f field.Field, all []PlayerID, degrees []int, rvecs [][]field.Element, idx int, vals []field.Element) error {
	points := make([][]shamir.Point, len(degrees))
	next := 0
	for _, id := range all {
		x := f.FromInt(int64(id))
		for i := range degrees {
			var y field.Element
			if id == r.id {
				y = rvecs[i][idx]
			} else {
				y = vals[next]
				next++
			}
			points[i] = append(points[i], shamir.Point{X: x, Y: y})
		}
	}
	var secret field.Element
	for i, d := range degrees {
		if !shamir.VerifySharing(points[i], d) {
			return errorf(op, "%w: output %d is not of degree %d", ErrVerificationFailure, idx, d)
		}
		s, err := shamir.Secret(points[i])
		if err != nil {
			return errorf(op, "%w: %v", ErrVerificationFailure, err)
		}
		if secret != nil && !secret.Equal(s) {
			return errorf(op, "%w: output %d sharings disagree", ErrVerificationFailure, idx)
		}
		secret = s
	}
	return nil
}

// GenerateTriples produces n-2t multiplication triples from two batches of
// random sharings and one batch of double sharings. It returns the batch
// size immediately and the triples once they are verified.
func (r *Runtime) GenerateTriples(f field.Field) (int, *async.Promise[[]Triple]) {
	count := r.n - 2*r.threshold
	if count < 1 {
		return 0, async.Failed[[]Triple](errorf("GenerateTriples", "%w: triples need n > 2t (n=%d, t=%d)", ErrInvalidParameter, r.n, r.threshold))
	}
	defer r.pc.Enter().Exit()

	as := r.SingleShareRandom(count, r.threshold, f)
	bs := r.SingleShareRandom(count, r.threshold, f)
	rs := r.DoubleShareRandom(count, r.threshold, 2*r.threshold, f)
	in := async.Join(async.Join(as, bs), rs)

	type inputs = async.Pair[async.Pair[[]*Share, []*Share], []DoubleSharing]
	out := scheduleChain(r, in, func(v inputs) *async.Promise[[]Triple] {
		a, b, rr := v.First.First, v.First.Second, v.Second
		triples := make([]Triple, count)
		cs := make([]*async.Promise[field.Element], count)
		for i := range count {
			// ab + r is a degree 2t sharing; opening it and subtracting the
			// degree t sharing of r leaves a degree t sharing of ab.
			masked := r.Add(newShare(r, f, localMul(a[i], b[i])), rr[i].High)
			d, err := r.OpenTo(masked, nil, 2*r.threshold)
			if err != nil {
				return async.Failed[[]Triple](err)
			}
			c := r.Sub(d, rr[i].Low)
			triples[i] = Triple{A: a[i], B: b[i], C: c}
			cs[i] = c.p
		}
		return async.Then(async.All(cs), func([]field.Element) ([]Triple, error) {
			return triples, nil
		})
	})
	return count, out
}
