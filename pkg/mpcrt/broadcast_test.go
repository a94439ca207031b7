package mpcrt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/mocknet"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/wire"
)

// broadcastAll runs Broadcast on every player and waits for the listed
// players' deliveries.
func broadcastAll(t *testing.T, rts []*Runtime, senders []PlayerID, msgs map[PlayerID][]byte, wait []PlayerID) map[PlayerID][][]byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	results := make([][]*async.Promise[[]byte], len(rts))
	errs := make([]error, len(rts))
	var g errgroup.Group
	for i, rt := range rts {
		g.Go(func() error {
			return rt.Exec(ctx, func() error {
				results[i], errs[i] = rt.Broadcast(senders, msgs[rt.ID()])
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())

	out := make(map[PlayerID][][]byte, len(wait))
	for _, id := range wait {
		require.NoError(t, errs[id-1])
		for _, p := range results[id-1] {
			m, err := p.Await(ctx)
			require.NoErrorf(t, err, "player %d", id)
			out[id] = append(out[id], m)
		}
	}
	return out
}

func TestBroadcast(t *testing.T) {
	rts := newCluster(t, 4, 1, Active, nil)
	got := broadcastAll(t, rts, []PlayerID{1, 3}, map[PlayerID][]byte{1: []byte("hello"), 3: []byte("world")}, []PlayerID{1, 2, 3, 4})
	for id, msgs := range got {
		require.Equalf(t, []string{"hello", "world"}, []string{string(msgs[0]), string(msgs[1])}, "player %d", id)
	}
}

func TestBroadcastWithSilentPlayer(t *testing.T) {
	silent := func(id PlayerID, tr transport.Transport) transport.Transport {
		if id == 4 {
			return mocknet.NewFaulty(tr, mocknet.Behavior{DropAllSends: true})
		}
		return tr
	}
	rts := newCluster(t, 4, 1, Active, silent)
	got := broadcastAll(t, rts, []PlayerID{2}, map[PlayerID][]byte{2: []byte("agreed")}, []PlayerID{1, 2, 3, 4})
	require.Len(t, got, 4)
	for id, msgs := range got {
		require.Equalf(t, "agreed", string(msgs[0]), "player %d", id)
	}
}

func TestBroadcastWithEquivocatingSender(t *testing.T) {
	// Player 1 sends "A" to players 2 and 3 but "B" to player 4.
	equivocate := func(id PlayerID, tr transport.Transport) transport.Transport {
		if id != 1 {
			return tr
		}
		return mocknet.NewFaulty(tr, mocknet.Behavior{
			Tamper: func(to transport.PlayerID, msg []byte) []byte {
				m, err := wire.Unmarshal(msg)
				if err != nil || m.Kind != wire.KindSend || to != 4 {
					return msg
				}
				m.Data = []byte("B")
				return m.Marshal()
			},
		})
	}
	rts := newCluster(t, 4, 1, Active, equivocate)
	got := broadcastAll(t, rts, []PlayerID{1}, map[PlayerID][]byte{1: []byte("A")}, []PlayerID{2, 3, 4})
	require.Len(t, got, 3)
	for id, msgs := range got {
		require.Equalf(t, string(got[2][0]), string(msgs[0]), "player %d disagrees", id)
	}
	require.Equal(t, "A", string(got[2][0]))
}

func TestBroadcastEmptyMessage(t *testing.T) {
	rts := newCluster(t, 4, 1, Passive, nil)
	got := broadcastAll(t, rts, []PlayerID{4}, map[PlayerID][]byte{4: {}}, []PlayerID{1, 2, 3, 4})
	for _, msgs := range got {
		require.Empty(t, msgs[0])
	}
}

func TestBroadcastUsageErrors(t *testing.T) {
	rts := newCluster(t, 4, 1, Passive, nil)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	var errs []error
	require.NoError(t, rts[0].Exec(ctx, func() error {
		r := rts[0]
		_, e1 := r.Broadcast(nil, nil)
		_, e2 := r.Broadcast([]PlayerID{1}, nil)
		_, e3 := r.Broadcast([]PlayerID{2}, []byte("x"))
		_, e4 := r.Broadcast([]PlayerID{2, 2}, nil)
		_, e5 := r.Broadcast([]PlayerID{9}, nil)
		errs = []error{e1, e2, e3, e4, e5}
		return nil
	}))
	for _, err := range errs {
		require.ErrorIs(t, err, ErrInvalidParameter)
	}
}
