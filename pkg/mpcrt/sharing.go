package mpcrt

import (
	"crypto/rand"
	"math/big"
	"slices"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/prss"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/shamir"
)

// checkField rejects fields without n distinct nonzero evaluation points.
func (r *Runtime) checkField(op string, f field.Field) error {
	if err := shamir.CheckField(f, r.n); err != nil {
		return errorf(op, "%w: %v", ErrInvalidParameter, err)
	}
	return nil
}

// checkInput validates the arguments common to the input sharing
// protocols. Inputters must supply a value and everybody else must not.
func (r *Runtime) checkInput(op string, inputters []PlayerID, f field.Field, v field.Element) error {
	if len(inputters) == 0 {
		return errorf(op, "%w: no inputters", ErrInvalidParameter)
	}
	if err := r.checkField(op, f); err != nil {
		return err
	}
	seen := make(map[PlayerID]struct{}, len(inputters))
	for _, id := range inputters {
		if _, ok := r.players[id]; !ok {
			return errorf(op, "%w: unknown inputter %d", ErrInvalidParameter, id)
		}
		if _, dup := seen[id]; dup {
			return errorf(op, "%w: duplicate inputter %d", ErrInvalidParameter, id)
		}
		seen[id] = struct{}{}
	}
	_, inputting := seen[r.id]
	switch {
	case inputting && v == nil:
		return errorf(op, "%w: player %d is an inputter but gave no value", ErrInvalidParameter, r.id)
	case !inputting && v != nil:
		return errorf(op, "%w: value given but player %d is not an inputter", ErrInvalidParameter, r.id)
	case v != nil && v.Field().Name() != f.Name():
		return errorf(op, "%w: value in %s, sharing over %s", ErrInvalidParameter, v.Field().Name(), f.Name())
	}
	return nil
}

// Input shares v from each inputter with the variant's input protocol:
// Shamir sharing for Passive, PRSS sharing for Active. It returns one share
// per inputter, in order.
func (r *Runtime) Input(inputters []PlayerID, f field.Field, v field.Element) ([]*Share, error) {
	return r.strategy.input(r, inputters, f, v)
}

// ShamirShare shares v from each inputter with a degree t polynomial.
func (r *Runtime) ShamirShare(inputters []PlayerID, f field.Field, v field.Element) ([]*Share, error) {
	return r.ShamirShareDegree(inputters, f, v, r.threshold)
}

// ShamirShareDegree shares v from each inputter with a polynomial of the
// given degree. Each inputter sends one share to every other player.
func (r *Runtime) ShamirShareDegree(inputters []PlayerID, f field.Field, v field.Element, degree int) ([]*Share, error) {
	if err := r.checkInput("ShamirShare", inputters, f, v); err != nil {
		return nil, err
	}
	if degree < 0 || degree >= r.n {
		return nil, errorf("ShamirShare", "%w: degree %d out of range 0..%d", ErrInvalidParameter, degree, r.n-1)
	}
	defer r.pc.Enter().Exit()

	out := make([]*Share, 0, len(inputters))
	for _, id := range inputters {
		if id != r.id {
			out = append(out, newShare(r, f, r.expectShare(id, f)))
			continue
		}
		points, err := shamir.Share(v, degree, r.n, r.rand)
		if err != nil {
			return nil, errorf("ShamirShare", "%w: %v", ErrInvalidParameter, err)
		}
		for i, pt := range points {
			to := PlayerID(i + 1)
			if to == r.id {
				out = append(out, r.Constant(pt.Y))
				continue
			}
			r.sendShare(to, pt.Y)
		}
	}
	return out, nil
}

// reshare shares v at degree t with everybody and returns, for each player
// i, the point (i, share i sent back).
func (r *Runtime) reshare(v field.Element) ([]*async.Promise[shamir.Point], error) {
	defer r.pc.Enter().Exit()
	points, err := shamir.Share(v, r.threshold, r.n, r.rand)
	if err != nil {
		return nil, errorf("reshare", "%w: %v", ErrInvalidParameter, err)
	}
	out := make([]*async.Promise[shamir.Point], len(points))
	for i, pt := range points {
		x := pt.X
		out[i] = async.Then(r.exchangeShares(PlayerID(i+1), pt.Y), func(y field.Element) (shamir.Point, error) {
			return shamir.Point{X: x, Y: y}, nil
		})
	}
	return out, nil
}

// PRSSShare shares v from each inputter using pseudo-random secret
// sharing. Players derive a random sharing from their dealer keys without
// communication; each inputter then sends one correction so that the
// sharing opens to its value.
func (r *Runtime) PRSSShare(inputters []PlayerID, f field.Field, v field.Element) ([]*Share, error) {
	if err := r.checkInput("PRSSShare", inputters, f, v); err != nil {
		return nil, err
	}
	for _, id := range inputters {
		if len(r.prfs.dealerKeys[int(id)]) == 0 {
			return nil, errorf("PRSSShare", "%w: no PRSS keys for dealer %d", ErrInvalidParameter, id)
		}
	}
	defer r.pc.Enter().Exit()

	key := []byte(r.pc.Key())
	prfs := r.prfs.dealerPRFs(f.Modulus())

	var correction field.Element
	if slices.Contains(inputters, r.id) {
		mine := prfs[int(r.id)]
		points := make([]shamir.Point, r.threshold+1)
		for i := range points {
			p := i + 1
			points[i] = shamir.Point{X: f.FromInt(int64(p)), Y: prss.Share(r.n, p, f, mine, key)}
		}
		shared, err := shamir.Secret(points)
		if err != nil {
			return nil, errorf("PRSSShare", "%w: %v", ErrInvalidParameter, err)
		}
		correction = v.Sub(shared)
		for _, id := range r.Players() {
			if id != r.id {
				r.sendShare(id, correction)
			}
		}
	}

	out := make([]*Share, 0, len(inputters))
	for _, id := range inputters {
		own := prss.Share(r.n, int(r.id), f, prfs[int(id)], key)
		var c *async.Promise[field.Element]
		if id == r.id {
			c = async.Resolved(correction)
		} else {
			c = r.expectShare(id, f)
		}
		out = append(out, newShare(r, f, async.Then(c, func(c field.Element) (field.Element, error) {
			return own.Add(c), nil
		})))
	}
	return out, nil
}

// PRSSShareRandom returns a sharing of a random element no player knows.
// With binary set the element is a random bit; over a prime field this
// costs one opening of a degree 2t sharing, otherwise it is free.
func (r *Runtime) PRSSShareRandom(f field.Field, binary bool) *Share {
	if len(r.prfs.keys) == 0 {
		return r.failedShare(f, errorf("PRSSShareRandom", "%w: no PRSS keys", ErrInvalidParameter))
	}
	if err := r.checkField("PRSSShareRandom", f); err != nil {
		return r.failedShare(f, err)
	}
	isBinary := field.IsBinary(f)
	if binary && !isBinary && 2*r.threshold >= r.n {
		return r.failedShare(f, errorf("PRSSShareRandom", "%w: random bits need n > 2t", ErrInvalidParameter))
	}
	defer r.pc.Enter().Exit()

	modulus := f.Modulus()
	if binary && isBinary {
		modulus = big.NewInt(2)
	}
	key := []byte(r.pc.Key())
	share := prss.Share(r.n, int(r.id), f, r.prfs.prfs(modulus), key)
	if isBinary || !binary {
		return r.Constant(share)
	}

	// Open r^2 and divide by a public root: the result shares +1 or -1.
	square, err := r.OpenTo(r.Constant(share.Mul(share)), nil, 2*r.threshold)
	if err != nil {
		return r.failedShare(f, err)
	}
	out := scheduleChain(r, square.p, func(sq field.Element) *async.Promise[field.Element] {
		if sq.IsZero() {
			return r.PRSSShareRandom(f, binary).p
		}
		root, ok := sq.Sqrt()
		if !ok {
			return async.Failed[field.Element](errorf("PRSSShareRandom", "%w: opened square has no root", ErrProtocolViolation))
		}
		return async.Resolved(share.Div(root).Add(f.One()).Div(f.FromInt(2)))
	})
	return newShare(r, f, out)
}

// checkBitDouble requires a prime field large enough that a mask made of
// terms summands below 2^k never wraps around the modulus.
func (r *Runtime) checkBitDouble(op string, f field.Field, terms int64) error {
	if field.IsBinary(f) {
		return errorf(op, "%w: bit doubles need a prime field", ErrInvalidParameter)
	}
	bound := new(big.Int).Lsh(big.NewInt(terms), uint(r.k))
	bound.Add(bound, big.NewInt(2))
	if f.Modulus().Cmp(bound) <= 0 {
		return errorf(op, "%w: field %s too small for security parameter %d", ErrInvalidParameter, f.Name(), r.k)
	}
	return nil
}

// PRSSShareBitDouble returns the same random bit shared over f and over
// GF(2^8). The bit is masked with a PRSS value whose low bit is also known
// as a GF(2^8) sharing, so the masked value can be opened safely.
func (r *Runtime) PRSSShareBitDouble(f field.Field) (*Share, *Share) {
	subsets := new(big.Int).Binomial(int64(r.n), int64(r.threshold)).Int64()
	if err := r.checkBitDouble("PRSSShareBitDouble", f, subsets); err != nil {
		return r.failedShare(f, err), r.failedShare(field.GF256, err)
	}
	defer r.pc.Enter().Exit()

	limit := new(big.Int).Lsh(big.NewInt(1), uint(r.k))
	key := []byte(r.pc.Key())
	bp := r.PRSSShareRandom(f, true)
	rp, rlsb := prss.ShareLSB(r.n, int(r.id), f, r.prfs.prfs(limit), key)
	return bp, r.unmask(bp, r.Constant(rp), r.Constant(rlsb))
}

// ShamirShareBitDouble is PRSSShareBitDouble with a mask that every player
// contributes to by Shamir sharing a random k-bit number.
func (r *Runtime) ShamirShareBitDouble(f field.Field) (*Share, *Share) {
	if err := r.checkBitDouble("ShamirShareBitDouble", f, int64(r.n)); err != nil {
		return r.failedShare(f, err), r.failedShare(field.GF256, err)
	}
	defer r.pc.Enter().Exit()

	limit := new(big.Int).Lsh(big.NewInt(1), uint(r.k))
	ri, err := rand.Int(r.rand, limit)
	if err != nil {
		err = errorf("ShamirShareBitDouble", "%w: %v", ErrInvalidParameter, err)
		return r.failedShare(f, err), r.failedShare(field.GF256, err)
	}
	all := r.Players()
	rip, err := r.ShamirShare(all, f, f.FromBig(ri))
	if err != nil {
		return r.failedShare(f, err), r.failedShare(field.GF256, err)
	}
	rilsb, err := r.ShamirShare(all, field.GF256, field.GF256.FromInt(int64(ri.Bit(0))))
	if err != nil {
		return r.failedShare(f, err), r.failedShare(field.GF256, err)
	}
	rp := r.Sum(f, rip...)
	rlsb := r.Sum(field.GF256, rilsb...)

	bp := r.PRSSShareRandom(f, true)
	return bp, r.unmask(bp, rp, rlsb)
}

// unmask opens b+mask, takes the low bit into GF(2^8) and xors it with the
// GF(2^8) sharing of the mask's low bit.
func (r *Runtime) unmask(b, mask, maskLSB *Share) *Share {
	opened := r.Open(r.Add(b, mask))
	bit := newShare(r, field.GF256, async.Then(opened.p, func(v field.Element) (field.Element, error) {
		return field.GF256.FromInt(int64(v.Big().Bit(0))), nil
	}))
	return r.orFail(field.GF256)(r.Xor(bit, maskLSB))
}
