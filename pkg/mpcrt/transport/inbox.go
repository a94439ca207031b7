package transport

import (
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/wire"
)

// Inbox demultiplexes messages from one peer by (program counter, kind).
//
// For every key it holds either payloads that arrived before anyone asked
// for them or waiters that asked before anything arrived, never both. Both
// are matched first in, first out. An Inbox is not safe for concurrent use;
// the runtime owns it from its event loop.
type Inbox struct {
	queues map[inboxKey]*queue
}

type inboxKey struct {
	pc   string
	kind wire.Kind
}

type queue struct {
	data    [][]byte
	waiters []*async.Promise[[]byte]
}

func NewInbox() *Inbox {
	return &Inbox{queues: make(map[inboxKey]*queue)}
}

// Deliver hands data to the oldest waiter for the key or buffers it.
func (in *Inbox) Deliver(pcKey string, kind wire.Kind, data []byte) {
	key := inboxKey{pc: pcKey, kind: kind}
	q := in.queues[key]
	if q != nil && len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters = q.waiters[1:]
		if len(q.waiters) == 0 {
			delete(in.queues, key)
		}
		_ = w.Resolve(data)
		return
	}
	if q == nil {
		q = &queue{}
		in.queues[key] = q
	}
	q.data = append(q.data, data)
}

// Expect returns a promise for the next payload under the key.
func (in *Inbox) Expect(pcKey string, kind wire.Kind) *async.Promise[[]byte] {
	key := inboxKey{pc: pcKey, kind: kind}
	q := in.queues[key]
	if q != nil && len(q.data) > 0 {
		d := q.data[0]
		q.data = q.data[1:]
		if len(q.data) == 0 {
			delete(in.queues, key)
		}
		return async.Resolved(d)
	}
	p := async.New[[]byte]()
	if q == nil {
		q = &queue{}
		in.queues[key] = q
	}
	q.waiters = append(q.waiters, p)
	return p
}

// Pending returns the number of keys holding buffered data or waiters.
func (in *Inbox) Pending() int { return len(in.queues) }

// Buffered returns the number of buffered payloads under the key.
func (in *Inbox) Buffered(pcKey string, kind wire.Kind) int {
	if q := in.queues[inboxKey{pc: pcKey, kind: kind}]; q != nil {
		return len(q.data)
	}
	return 0
}
