package mpcrt

import (
	"slices"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/shamir"
)

// Open reveals s to every player. The only usage error it can hit is a
// field too small for the cluster; that comes back on the returned share.
func (r *Runtime) Open(s *Share) *Share {
	out, err := r.OpenTo(s, nil, -1)
	if err != nil {
		return r.failedShare(s.field, err)
	}
	return out
}

// OpenTo reveals s to the given receivers, or to everybody when receivers
// is nil. The sharing is reconstructed as a polynomial of degree threshold;
// a negative threshold means t. Every player sends its share to each
// receiver. Non-receivers get a nil share. Bad receivers, a threshold of n
// or more and too small a field are rejected before anything is sent.
func (r *Runtime) OpenTo(s *Share, receivers []PlayerID, threshold int) (*Share, error) {
	if receivers == nil {
		receivers = r.Players()
	}
	if threshold < 0 {
		threshold = r.threshold
	}
	if threshold >= r.n {
		return nil, errorf("Open", "%w: threshold %d needs more than %d players", ErrInvalidParameter, threshold, r.n)
	}
	for _, id := range receivers {
		if _, ok := r.players[id]; !ok {
			return nil, errorf("Open", "%w: unknown receiver %d", ErrInvalidParameter, id)
		}
	}
	if err := r.checkField("Open", s.field); err != nil {
		return nil, err
	}
	receiver := slices.Contains(receivers, r.id)
	defer r.pc.Enter().Exit()

	f := s.field
	out := scheduleChain(r, s.p, func(v field.Element) *async.Promise[field.Element] {
		for _, id := range receivers {
			if id != r.id {
				r.sendShare(id, v)
			}
		}
		if !receiver {
			return async.Resolved[field.Element](nil)
		}
		points := make([]*async.Promise[shamir.Point], 0, r.n)
		for _, id := range r.Players() {
			x := f.FromInt(int64(id))
			if id == r.id {
				points = append(points, async.Resolved(shamir.Point{X: x, Y: v}))
				continue
			}
			points = append(points, async.Then(r.expectShare(id, f), func(y field.Element) (shamir.Point, error) {
				return shamir.Point{X: x, Y: y}, nil
			}))
		}
		return r.strategy.recombine(r, points, threshold)
	})
	if !receiver {
		return nil, nil
	}
	return newShare(r, f, out), nil
}
