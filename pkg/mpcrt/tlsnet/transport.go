// Package tlsnet implements transport.Transport over long-lived mutual TLS
// connections, one per pair of players.
//
// Player i dials every player j > i and accepts connections from every
// player j < i. The first frame on each connection is the dialer's player id.
// Dial returns once all n-1 connections are up, or fails when the caller's
// context ends first.
package tlsnet

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math/big"
	"math/rand/v2"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/logging"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/wire"
)

// Peer describes one player of the cluster.
type Peer struct {
	ID      transport.PlayerID
	Address string
	// Name is the TLS server name of the peer's certificate. Empty means
	// the host part of Address.
	Name string
}

// Config configures Dial.
type Config struct {
	Self        transport.PlayerID
	Peers       []Peer // all players, self included
	Certificate tls.Certificate
	RootCAs     *x509.CertPool

	// VerifySerial requires every peer certificate's serial number to equal
	// the peer's player id, as issued by GenerateCertificates.
	VerifySerial bool

	// Listener, if set, is used instead of listening on Self's address.
	Listener net.Listener

	// DialInterval is the pause between dial attempts. Zero means 200ms.
	DialInterval time.Duration

	Logger logging.Logger
}

// Transport implements transport.Transport using mTLS connections.
type Transport struct {
	self transport.PlayerID

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	peers map[transport.PlayerID]*peerConn

	closeOnce sync.Once
}

type peerConn struct {
	id   transport.PlayerID
	conn net.Conn

	send       chan outgoing
	recv       chan []byte
	writerDone chan struct{}

	errOnce       sync.Once
	err           error
	closeRecvOnce sync.Once
}

const (
	sendQueue          = 256
	recvQueue          = 64
	defaultDialPause   = 200 * time.Millisecond
	listenBackoffStart = 50 * time.Millisecond
	listenBackoffMax   = 2 * time.Second
	flushTimeout       = 2 * time.Second
)

// outgoing is a frame to write, or a flush marker when flushed is set.
type outgoing struct {
	data    []byte
	flushed chan struct{}
}

func (c *Config) validate() (map[transport.PlayerID]Peer, error) {
	if c.RootCAs == nil {
		return nil, errors.New("tlsnet: root CA pool required")
	}
	if len(c.Peers) < 2 {
		return nil, errors.New("tlsnet: at least two players required")
	}
	byID := make(map[transport.PlayerID]Peer, len(c.Peers))
	for _, p := range c.Peers {
		if p.ID < 1 || int(p.ID) > len(c.Peers) {
			return nil, fmt.Errorf("tlsnet: player id %d out of range 1..%d", p.ID, len(c.Peers))
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("tlsnet: duplicate player id %d", p.ID)
		}
		byID[p.ID] = p
	}
	if _, ok := byID[c.Self]; !ok {
		return nil, fmt.Errorf("tlsnet: self %d not among players", c.Self)
	}
	return byID, nil
}

// Dial listens on the local address, connects to every other player and
// returns a ready transport. ctx bounds connection establishment only.
func Dial(ctx context.Context, cfg Config) (*Transport, error) {
	byID, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With(logging.Player(cfg.Self))
	pause := cfg.DialInterval
	if pause <= 0 {
		pause = defaultDialPause
	}

	serverTLS := &tls.Config{
		Certificates: []tls.Certificate{cfg.Certificate},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    cfg.RootCAs,
		MinVersion:   tls.VersionTLS12,
	}
	var ln net.Listener
	if cfg.Listener != nil {
		ln = tls.NewListener(cfg.Listener, serverTLS)
	} else {
		ln, err = listen(ctx, byID[cfg.Self].Address, serverTLS, logger)
		if err != nil {
			return nil, err
		}
	}

	tctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		self:   cfg.Self,
		ctx:    tctx,
		cancel: cancel,
		peers:  make(map[transport.PlayerID]*peerConn),
	}

	register := func(id transport.PlayerID, conn net.Conn) error {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, exists := t.peers[id]; exists {
			return fmt.Errorf("tlsnet: duplicate connection from player %d", id)
		}
		t.peers[id] = newPeerConn(t.ctx, id, conn)
		logger.Debug(ctx, "peer connected", "peer", int(id))
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = ln.Close() })
	defer stop()

	inbound := int(cfg.Self) - 1
	g.Go(func() error {
		defer ln.Close()
		for accepted := 0; accepted < inbound; accepted++ {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return fmt.Errorf("tlsnet: accept: %w", err)
			}
			id, err := acceptPeer(gctx, conn, cfg)
			if err != nil {
				return closeWithContextErr(conn, err)
			}
			if err := register(id, conn); err != nil {
				return closeWithContextErr(conn, err)
			}
		}
		return nil
	})

	clientTLSBase := &tls.Config{
		Certificates: []tls.Certificate{cfg.Certificate},
		RootCAs:      cfg.RootCAs,
		MinVersion:   tls.VersionTLS12,
	}
	for id, peer := range byID {
		if id <= cfg.Self {
			continue // lower ids dial us
		}
		g.Go(func() error {
			conn, err := dialPeer(gctx, peer, clientTLSBase, cfg, pause)
			if err != nil {
				return err
			}
			if err := register(peer.ID, conn); err != nil {
				return closeWithContextErr(conn, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = t.Close()
		return nil, err
	}
	logger.Info(ctx, "all peers connected", "players", len(byID))
	return t, nil
}

// listen retries with jittered exponential backoff while the address is
// still held by a previous process.
func listen(ctx context.Context, addr string, cfg *tls.Config, logger logging.Logger) (net.Listener, error) {
	backoff := listenBackoffStart
	for {
		ln, err := tls.Listen("tcp", addr, cfg)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("tlsnet: listen: %w", err)
		}
		wait := backoff/2 + rand.N(backoff/2+1)
		logger.Warn(ctx, "listen address in use, retrying", "addr", addr, "wait", wait)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("tlsnet: listen: %w", ctx.Err())
		case <-time.After(wait):
		}
		backoff = min(2*backoff, listenBackoffMax)
	}
}

func acceptPeer(ctx context.Context, conn net.Conn, cfg Config) (transport.PlayerID, error) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return 0, errors.New("tlsnet: non-TLS connection accepted")
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return 0, fmt.Errorf("tlsnet: handshake: %w", err)
	}
	raw, err := wire.ReadHello(tlsConn)
	if err != nil {
		return 0, fmt.Errorf("tlsnet: read peer id: %w", err)
	}
	id := transport.PlayerID(raw)
	if id < 1 || id >= cfg.Self {
		return 0, fmt.Errorf("tlsnet: unexpected peer id %d", raw)
	}
	if cfg.VerifySerial {
		if err := checkSerial(tlsConn, id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func dialPeer(ctx context.Context, peer Peer, base *tls.Config, cfg Config, pause time.Duration) (net.Conn, error) {
	tlsCfg := base.Clone()
	tlsCfg.ServerName = serverName(peer)
	dialer := &tls.Dialer{Config: tlsCfg}
	for {
		conn, err := dialer.DialContext(ctx, "tcp", peer.Address)
		if err == nil {
			tlsConn := conn.(*tls.Conn)
			if cfg.VerifySerial {
				if err := checkSerial(tlsConn, peer.ID); err != nil {
					return nil, closeWithContextErr(conn, err)
				}
			}
			if err := wire.WriteHello(conn, uint32(cfg.Self)); err == nil {
				return conn, nil
			}
			_ = conn.Close()
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("tlsnet: dial player %d: %w", peer.ID, ctx.Err())
		case <-time.After(pause):
		}
	}
}

func serverName(p Peer) string {
	if p.Name != "" {
		return p.Name
	}
	host, _, err := net.SplitHostPort(p.Address)
	if err != nil {
		return p.Address
	}
	return host
}

func checkSerial(conn *tls.Conn, id transport.PlayerID) error {
	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return fmt.Errorf("tlsnet: player %d presented no certificate", id)
	}
	if certs[0].SerialNumber.Cmp(big.NewInt(int64(id))) != 0 {
		return fmt.Errorf("tlsnet: certificate serial %s does not match player %d", certs[0].SerialNumber, id)
	}
	return nil
}

func (t *Transport) Send(ctx context.Context, to transport.PlayerID, msg []byte) error {
	if to == t.self {
		return errors.New("tlsnet: send to self")
	}
	pc, err := t.getPeer(to)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return fmt.Errorf("tlsnet: %w", transport.ErrClosed)
	case pc.send <- outgoing{data: append([]byte(nil), msg...)}:
		return nil
	}
}

func (t *Transport) Receive(ctx context.Context, from transport.PlayerID) ([]byte, error) {
	if from == t.self {
		return nil, errors.New("tlsnet: receive from self")
	}
	pc, err := t.getPeer(from)
	if err != nil {
		return nil, err
	}
	return pc.recvOne(ctx, t.ctx)
}

// Close terminates the transport and its connections. Frames queued by Send
// are flushed first, waiting at most a couple of seconds per peer.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.RLock()
		for _, pc := range t.peers {
			pc.flush(flushTimeout)
		}
		t.mu.RUnlock()
		t.cancel()
		t.mu.Lock()
		for _, pc := range t.peers {
			pc.close()
		}
		t.mu.Unlock()
	})
	return nil
}

func (t *Transport) getPeer(id transport.PlayerID) (*peerConn, error) {
	t.mu.RLock()
	pc, ok := t.peers[id]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tlsnet: unknown peer %d", id)
	}
	return pc, nil
}

func newPeerConn(ctx context.Context, id transport.PlayerID, conn net.Conn) *peerConn {
	pc := &peerConn{
		id:         id,
		conn:       conn,
		send:       make(chan outgoing, sendQueue),
		recv:       make(chan []byte, recvQueue),
		writerDone: make(chan struct{}),
	}
	go pc.writer(ctx)
	go pc.reader(ctx)
	return pc
}

func (pc *peerConn) writer(ctx context.Context) {
	defer close(pc.writerDone)
	for {
		select {
		case <-ctx.Done():
			pc.setErr(ctx.Err())
			return
		case msg := <-pc.send:
			if msg.flushed != nil {
				close(msg.flushed)
				continue
			}
			if err := wire.WriteFrame(pc.conn, msg.data); err != nil {
				pc.setErr(err)
				return
			}
		}
	}
}

func (pc *peerConn) reader(ctx context.Context) {
	for {
		msg, err := wire.ReadFrame(pc.conn)
		if err != nil {
			pc.setErr(err)
			pc.closeRecv()
			return
		}
		select {
		case pc.recv <- msg:
		case <-ctx.Done():
			pc.setErr(ctx.Err())
			pc.closeRecv()
			return
		}
	}
}

// flush waits until every frame queued before the call has been written.
func (pc *peerConn) flush(timeout time.Duration) {
	marker := outgoing{flushed: make(chan struct{})}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case pc.send <- marker:
	case <-pc.writerDone:
		return
	case <-timer.C:
		return
	}
	select {
	case <-marker.flushed:
	case <-pc.writerDone:
	case <-timer.C:
	}
}

func (pc *peerConn) recvOne(ctx, transportCtx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-transportCtx.Done():
		return nil, fmt.Errorf("tlsnet: %w", transport.ErrClosed)
	case msg, ok := <-pc.recv:
		if !ok {
			return nil, fmt.Errorf("tlsnet: player %d: %w", pc.id, pc.errOr(io.EOF))
		}
		return msg, nil
	}
}

func (pc *peerConn) close() {
	pc.setErr(transport.ErrClosed)
}

func (pc *peerConn) setErr(err error) {
	pc.errOnce.Do(func() {
		if err == nil {
			err = io.EOF
		}
		pc.err = err
		_ = pc.conn.Close()
	})
}

func (pc *peerConn) closeRecv() {
	pc.closeRecvOnce.Do(func() {
		close(pc.recv)
	})
}

func (pc *peerConn) errOr(fallback error) error {
	if pc.err != nil {
		return pc.err
	}
	return fallback
}

func closeWithContextErr(c io.Closer, base error) error {
	if closeErr := c.Close(); closeErr != nil {
		return fmt.Errorf("%w; close error: %v", base, closeErr)
	}
	return base
}

var _ transport.Transport = (*Transport)(nil)
