package mocknet

import (
	"context"
	"fmt"
	"sync"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
)

// Net is a shared in-memory switch. Each message occupies its own
// (from, to, seq) slot, so senders never block on slow receivers.
type Net struct {
	mu sync.Mutex
	q  map[queueKey]chan []byte
}

func New() *Net { return &Net{q: make(map[queueKey]chan []byte)} }

type queueKey struct {
	from transport.PlayerID
	to   transport.PlayerID
	seq  uint64
}

func (n *Net) slot(key queueKey) chan []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := n.q[key]
	if ch == nil {
		ch = make(chan []byte, 1)
		n.q[key] = ch
	}
	return ch
}

func (n *Net) deliver(key queueKey, payload []byte) {
	// Each slot is written once, so this never blocks.
	n.slot(key) <- append([]byte(nil), payload...)
}

func (n *Net) await(ctx context.Context, done <-chan struct{}, key queueKey) ([]byte, error) {
	ch := n.slot(key)
	select {
	case msg := <-ch:
		n.mu.Lock()
		delete(n.q, key)
		n.mu.Unlock()
		return msg, nil
	case <-done:
		return nil, fmt.Errorf("mocknet: %w", transport.ErrClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Endpoint is one player's view of a Net.
type Endpoint struct {
	net   *Net
	self  transport.PlayerID
	peers map[transport.PlayerID]struct{}

	mu        sync.Mutex
	sendSeq   map[transport.PlayerID]uint64
	recvSeq   map[transport.PlayerID]uint64
	recvLocks map[transport.PlayerID]*sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Endpoint returns the endpoint of player self talking to peers. Entries
// equal to self are ignored.
func (n *Net) Endpoint(self transport.PlayerID, peers []transport.PlayerID) *Endpoint {
	peerSet := make(map[transport.PlayerID]struct{}, len(peers))
	for _, p := range peers {
		if p == self {
			continue
		}
		peerSet[p] = struct{}{}
	}
	return &Endpoint{
		net:       n,
		self:      self,
		peers:     peerSet,
		sendSeq:   make(map[transport.PlayerID]uint64),
		recvSeq:   make(map[transport.PlayerID]uint64),
		recvLocks: make(map[transport.PlayerID]*sync.Mutex),
		done:      make(chan struct{}),
	}
}

// Endpoints returns fully connected endpoints for players 1..n, in order.
func (n *Net) Endpoints(count int) []*Endpoint {
	ids := make([]transport.PlayerID, count)
	for i := range ids {
		ids[i] = transport.PlayerID(i + 1)
	}
	eps := make([]*Endpoint, count)
	for i, id := range ids {
		eps[i] = n.Endpoint(id, ids)
	}
	return eps
}

// Self returns the endpoint's player id.
func (e *Endpoint) Self() transport.PlayerID { return e.self }

func (e *Endpoint) checkPeer(op string, id transport.PlayerID) error {
	if id == e.self {
		return fmt.Errorf("mocknet: %s self", op)
	}
	if _, ok := e.peers[id]; !ok {
		return fmt.Errorf("mocknet: unknown peer %d", id)
	}
	return nil
}

func (e *Endpoint) closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *Endpoint) Send(ctx context.Context, to transport.PlayerID, msg []byte) error {
	if err := e.checkPeer("send to", to); err != nil {
		return err
	}
	if e.closed() {
		return fmt.Errorf("mocknet: %w", transport.ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	seq := e.sendSeq[to]
	e.sendSeq[to]++
	// Deliver under the lock so slots fill in sequence order.
	e.net.deliver(queueKey{from: e.self, to: to, seq: seq}, msg)
	e.mu.Unlock()
	return nil
}

func (e *Endpoint) recvLock(from transport.PlayerID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock := e.recvLocks[from]
	if lock == nil {
		lock = &sync.Mutex{}
		e.recvLocks[from] = lock
	}
	return lock
}

func (e *Endpoint) Receive(ctx context.Context, from transport.PlayerID) ([]byte, error) {
	if err := e.checkPeer("receive from", from); err != nil {
		return nil, err
	}
	lock := e.recvLock(from)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	seq := e.recvSeq[from]
	e.mu.Unlock()

	msg, err := e.net.await(ctx, e.done, queueKey{from: from, to: e.self, seq: seq})
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.recvSeq[from]++
	e.mu.Unlock()
	return msg, nil
}

// Close unblocks pending receives. Messages already sent to peers stay
// deliverable.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}

var _ transport.Transport = (*Endpoint)(nil)
