package mocknet

import (
	"context"
	"errors"
	"sync"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
)

// ErrInjected is returned by a Faulty endpoint once FailAfterSends is exceeded.
var ErrInjected = errors.New("mocknet: injected failure")

// Behavior selects how a Faulty endpoint misbehaves.
type Behavior struct {
	// DropAllSends pretends to send but delivers nothing.
	DropAllSends bool

	// Garbage replaces every payload with 0xFF bytes of the same length.
	Garbage bool

	// Tamper, when set, rewrites each outgoing payload. Returning nil drops
	// the message.
	Tamper func(to transport.PlayerID, msg []byte) []byte

	// FailAfterSends makes every send after the first N fail with ErrInjected.
	FailAfterSends int
}

// Faulty wraps a transport and misbehaves on the sending side. Receives are
// passed through.
type Faulty struct {
	inner    transport.Transport
	behavior Behavior

	mu    sync.Mutex
	sends int
}

func NewFaulty(inner transport.Transport, b Behavior) *Faulty {
	return &Faulty{inner: inner, behavior: b}
}

func (f *Faulty) Send(ctx context.Context, to transport.PlayerID, msg []byte) error {
	f.mu.Lock()
	f.sends++
	count := f.sends
	f.mu.Unlock()

	if f.behavior.FailAfterSends > 0 && count > f.behavior.FailAfterSends {
		return ErrInjected
	}
	if f.behavior.DropAllSends {
		return nil
	}
	if f.behavior.Garbage {
		garbage := make([]byte, len(msg))
		for i := range garbage {
			garbage[i] = 0xFF
		}
		msg = garbage
	}
	if f.behavior.Tamper != nil {
		msg = f.behavior.Tamper(to, append([]byte(nil), msg...))
		if msg == nil {
			return nil
		}
	}
	return f.inner.Send(ctx, to, msg)
}

func (f *Faulty) Receive(ctx context.Context, from transport.PlayerID) ([]byte, error) {
	return f.inner.Receive(ctx, from)
}

func (f *Faulty) Close() error { return f.inner.Close() }

// Sends returns the number of send attempts so far.
func (f *Faulty) Sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

var _ transport.Transport = (*Faulty)(nil)
