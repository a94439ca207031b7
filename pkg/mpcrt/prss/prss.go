package prss

import (
	"crypto/rand"
	"fmt"
	"io"
	"sort"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/shamir"
)

// Share returns player j's share of the pseudo-random value defined by prfs
// on input key. All n players evaluating Share with their own subset PRFs
// obtain a consistent degree-t sharing, where t = n - subset size.
func Share(n, j int, f field.Field, prfs map[Subset]*PRF, key []byte) field.Element {
	all := All(n)
	result := f.Zero()
	for _, s := range sorted(prfs) {
		if !s.Contains(j) {
			continue
		}
		v := f.FromBig(prfs[s].Eval(key))
		result = result.Add(v.Mul(vanishing(f, all&^s, j)))
	}
	return result
}

// ShareLSB is Share that additionally returns a sharing over GF(2^8) of the
// least significant bit of the shared value. The bit sharing is correct as
// long as the sum of all subset PRF outputs does not wrap around the field
// modulus, so prfs should be keyed with a bound well below it.
func ShareLSB(n, j int, f field.Field, prfs map[Subset]*PRF, key []byte) (field.Element, field.Element) {
	everyone := All(n)
	share := f.Zero()
	lsb := field.GF256.Zero()
	for _, s := range sorted(prfs) {
		if !s.Contains(j) {
			continue
		}
		raw := prfs[s].Eval(key)
		share = share.Add(f.FromBig(raw).Mul(vanishing(f, everyone&^s, j)))
		bit := field.GF256.FromInt(int64(raw.Bit(0)))
		lsb = lsb.Add(bit.Mul(vanishing(field.GF256, everyone&^s, j)))
	}
	return share, lsb
}

// vanishing evaluates at j the polynomial of degree |outside| that is one at
// zero and zero on every id in outside.
func vanishing(f field.Field, outside Subset, j int) field.Element {
	ids := outside.Players()
	points := make([]shamir.Point, 0, len(ids)+1)
	for _, id := range ids {
		points = append(points, shamir.Point{X: f.FromInt(int64(id)), Y: f.Zero()})
	}
	points = append(points, shamir.Point{X: f.Zero(), Y: f.One()})
	return shamir.Recombine(points, f.FromInt(int64(j)))
}

func sorted(prfs map[Subset]*PRF) []Subset {
	out := make([]Subset, 0, len(prfs))
	for s := range prfs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// KeySize is the length of dealt subset keys in bytes.
const KeySize = 32

// Dealing is the output of a trusted key setup for n players.
type Dealing struct {
	N, T int
	// Keys[p] holds the subset keys known to player p.
	Keys map[int]Keys
	// DealerKeys[p][d] holds the keys player p knows for dealer d.
	DealerKeys map[int]map[int]Keys
}

// Deal generates PRSS keys for n players tolerating t corruptions: one key
// per subset of size n-t, and for every dealer one key per such subset
// shared with the dealer. It is meant for tests and demo deployments.
func Deal(n, t int, r io.Reader) (*Dealing, error) {
	if t < 1 || t >= n || n > MaxPlayers {
		return nil, fmt.Errorf("prss: invalid parameters n=%d t=%d", n, t)
	}
	if r == nil {
		r = rand.Reader
	}
	newKey := func() ([]byte, error) {
		k := make([]byte, KeySize)
		if _, err := io.ReadFull(r, k); err != nil {
			return nil, fmt.Errorf("prss: generate key: %w", err)
		}
		return k, nil
	}

	d := &Dealing{N: n, T: t, Keys: make(map[int]Keys), DealerKeys: make(map[int]map[int]Keys)}
	for p := 1; p <= n; p++ {
		d.Keys[p] = make(Keys)
		d.DealerKeys[p] = make(map[int]Keys)
		for dealer := 1; dealer <= n; dealer++ {
			d.DealerKeys[p][dealer] = make(Keys)
		}
	}

	subsets := GenerateSubsets(n, n-t)
	for _, s := range subsets {
		key, err := newKey()
		if err != nil {
			return nil, err
		}
		for _, p := range s.Players() {
			d.Keys[p][s] = key
		}
	}
	for dealer := 1; dealer <= n; dealer++ {
		for _, s := range subsets {
			key, err := newKey()
			if err != nil {
				return nil, err
			}
			for _, p := range s.With(dealer).Players() {
				d.DealerKeys[p][dealer][s] = key
			}
		}
	}
	return d, nil
}
