package mpcrt

import (
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/logging"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/pc"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/wire"
)

// Broadcast reliably broadcasts msg from each sender using Bracha's
// protocol: every honest player delivers the same message for a sender, or
// none at all if the sender is corrupt and silent. Senders pass their
// message and everybody else passes nil. It returns one promise per sender,
// in order.
func (r *Runtime) Broadcast(senders []PlayerID, msg []byte) ([]*async.Promise[[]byte], error) {
	if len(senders) == 0 {
		return nil, errorf("Broadcast", "%w: no senders", ErrInvalidParameter)
	}
	sending := false
	seen := make(map[PlayerID]struct{}, len(senders))
	for _, id := range senders {
		if _, ok := r.players[id]; !ok {
			return nil, errorf("Broadcast", "%w: unknown sender %d", ErrInvalidParameter, id)
		}
		if _, dup := seen[id]; dup {
			return nil, errorf("Broadcast", "%w: duplicate sender %d", ErrInvalidParameter, id)
		}
		seen[id] = struct{}{}
		sending = sending || id == r.id
	}
	switch {
	case sending && msg == nil:
		return nil, errorf("Broadcast", "%w: player %d is a sender but gave no message", ErrInvalidParameter, r.id)
	case !sending && msg != nil:
		return nil, errorf("Broadcast", "%w: message given but player %d is not a sender", ErrInvalidParameter, r.id)
	}
	defer r.pc.Enter().Exit()

	out := make([]*async.Promise[[]byte], len(senders))
	for i, sender := range senders {
		out[i] = r.bracha(sender, msg)
	}
	return out, nil
}

// bracha runs one broadcast instance under a fresh program counter.
func (r *Runtime) bracha(sender PlayerID, msg []byte) *async.Promise[[]byte] {
	defer r.pc.Enter().Exit()
	b := &brachaState{
		r:      r,
		stack:  r.pc.Snapshot(),
		result: async.New[[]byte](),
		echoes: make(map[string]int),
		ready:  make(map[string]int),
	}
	key := b.stack.Key()

	for _, id := range r.Players() {
		if id == r.id {
			continue
		}
		inbox := r.inboxes[id]
		if id == sender {
			inbox.Expect(key, wire.KindSend).OnSettle(func(m []byte, err error) {
				if err == nil {
					b.onSend(m)
				}
			})
		}
		inbox.Expect(key, wire.KindEcho).OnSettle(func(m []byte, err error) {
			if err == nil {
				b.onEcho(m)
			}
		})
		inbox.Expect(key, wire.KindReady).OnSettle(func(m []byte, err error) {
			if err == nil {
				b.onReady(m)
			}
		})
	}

	if sender == r.id {
		b.sendAll(wire.KindSend, msg)
		b.onSend(msg)
	}
	return b.result
}

type brachaState struct {
	r      *Runtime
	stack  pc.Stack
	result *async.Promise[[]byte]

	echoes    map[string]int
	ready     map[string]int
	sentEcho  bool
	sentReady string
	readySent bool
	delivered bool
}

func (b *brachaState) sendAll(kind wire.Kind, m []byte) {
	for _, id := range b.r.Players() {
		if id != b.r.id {
			b.r.sendAt(b.stack, id, kind, m)
		}
	}
}

func (b *brachaState) onSend(m []byte) {
	if b.sentEcho {
		return
	}
	b.sentEcho = true
	b.sendAll(wire.KindEcho, m)
	b.onEcho(m)
}

// echoThreshold is ceil((n+t+1)/2).
func (b *brachaState) echoThreshold() int {
	return (b.r.n + b.r.threshold + 2) / 2
}

func (b *brachaState) onEcho(m []byte) {
	k := string(m)
	b.echoes[k]++
	if b.echoes[k] >= b.echoThreshold() {
		b.sendReady(m)
	}
}

func (b *brachaState) sendReady(m []byte) {
	if b.readySent {
		return
	}
	b.readySent = true
	b.sentReady = string(m)
	b.sendAll(wire.KindReady, m)
	b.onReady(m)
}

func (b *brachaState) onReady(m []byte) {
	k := string(m)
	b.ready[k]++
	t := b.r.threshold
	if b.ready[k] < t+1 {
		return
	}
	if b.readySent && b.sentReady != k && !b.delivered {
		err := errorf("Broadcast", "%w: conflicting ready messages at %s", ErrProtocolViolation, b.stack)
		b.r.log.Error(b.r.ctx, "broadcast failed", logging.PC(b.stack), "error", err)
		b.delivered = true
		_ = b.result.Reject(err)
		return
	}
	b.sendReady(m)
	if b.ready[k] >= 2*t+1 && !b.delivered {
		b.delivered = true
		_ = b.result.Resolve(append([]byte(nil), m...))
	}
}
