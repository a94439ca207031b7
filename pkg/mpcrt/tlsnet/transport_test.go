package tlsnet

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
)

type cluster struct {
	peers     []Peer
	listeners map[transport.PlayerID]net.Listener
	creds     *Credentials
}

func newCluster(t *testing.T, n int) *cluster {
	t.Helper()
	c := &cluster{listeners: make(map[transport.PlayerID]net.Listener)}
	for i := 1; i <= n; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		id := transport.PlayerID(i)
		c.listeners[id] = ln
		c.peers = append(c.peers, Peer{ID: id, Address: ln.Addr().String()})
	}
	creds, err := Issue(c.peers)
	require.NoError(t, err)
	c.creds = creds
	return c
}

func (c *cluster) config(t *testing.T, self transport.PlayerID, cert transport.PlayerID) Config {
	t.Helper()
	pool, err := c.creds.Pool()
	require.NoError(t, err)
	kp, err := c.creds.Players[cert].TLS()
	require.NoError(t, err)
	return Config{
		Self:         self,
		Peers:        c.peers,
		Certificate:  kp,
		RootCAs:      pool,
		VerifySerial: true,
		Listener:     c.listeners[self],
		DialInterval: 20 * time.Millisecond,
	}
}

func TestDialAndExchange(t *testing.T) {
	const n = 3
	c := newCluster(t, n)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ts := make([]*Transport, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		id := transport.PlayerID(i + 1)
		g.Go(func() error {
			tr, err := Dial(gctx, c.config(t, id, id))
			ts[id-1] = tr
			return err
		})
	}
	require.NoError(t, g.Wait())
	defer func() {
		for _, tr := range ts {
			_ = tr.Close()
		}
	}()

	g, gctx = errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		self := transport.PlayerID(i + 1)
		g.Go(func() error {
			for j := 1; j <= n; j++ {
				to := transport.PlayerID(j)
				if to == self {
					continue
				}
				if err := ts[self-1].Send(gctx, to, []byte(fmt.Sprintf("%d->%d", self, to))); err != nil {
					return err
				}
			}
			for j := 1; j <= n; j++ {
				from := transport.PlayerID(j)
				if from == self {
					continue
				}
				msg, err := ts[self-1].Receive(gctx, from)
				if err != nil {
					return err
				}
				if want := fmt.Sprintf("%d->%d", from, self); string(msg) != want {
					return fmt.Errorf("player %d got %q, want %q", self, msg, want)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestSerialMismatchRejected(t *testing.T) {
	c := newCluster(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errs := make(chan error, 2)
	var second *Transport
	go func() {
		tr, err := Dial(ctx, c.config(t, 1, 1))
		if tr != nil {
			_ = tr.Close()
		}
		errs <- err
	}()
	go func() {
		// Player 2 presents player 1's certificate.
		tr, err := Dial(ctx, c.config(t, 2, 1))
		second = tr
		errs <- err
	}()

	first, other := <-errs, <-errs
	if second != nil {
		_ = second.Close()
	}
	require.True(t, first != nil || other != nil, "expected a serial mismatch error")
}

func TestDialHonorsContext(t *testing.T) {
	c := newCluster(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// Player 2 never starts, so player 1 keeps dialing until ctx ends.
	require.NoError(t, c.listeners[2].Close())
	_, err := Dial(ctx, c.config(t, 1, 1))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := newCluster(t, 2)
	cfg := c.config(t, 1, 1)

	bad := cfg
	bad.RootCAs = nil
	_, err := Dial(context.Background(), bad)
	require.Error(t, err)

	bad = cfg
	bad.Self = 5
	_, err = Dial(context.Background(), bad)
	require.Error(t, err)

	bad = cfg
	bad.Peers = []Peer{{ID: 1}, {ID: 1}}
	_, err = Dial(context.Background(), bad)
	require.Error(t, err)
}

func TestIssueSerials(t *testing.T) {
	c := newCluster(t, 3)
	for _, p := range c.peers {
		kp, err := c.creds.Players[p.ID].TLS()
		require.NoError(t, err)
		leaf, err := x509.ParseCertificate(kp.Certificate[0])
		require.NoError(t, err)
		require.Equal(t, int64(p.ID), leaf.SerialNumber.Int64())
	}
}
