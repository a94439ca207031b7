// Package transport defines how a runtime talks to its peers: the Transport
// contract implemented by mocknet and tlsnet, and the Inbox that matches
// incoming messages to the operations waiting for them.
package transport

import (
	"context"
	"errors"
)

// PlayerID identifies a player. Valid ids are 1..n.
type PlayerID uint32

// ErrClosed is returned by transports after Close.
var ErrClosed = errors.New("transport: closed")

// Transport carries opaque byte messages between this player and its peers.
//
// Ordering: messages sent to one peer are received by that peer in the same
// order. There is no ordering across peers.
//
// Concurrency: implementations must be safe for concurrent use. The runtime
// calls Send from its event loop and runs one Receive loop per peer on its
// own goroutine.
//
// Blocking: Send should return promptly; it may buffer. Receive blocks until
// a message from the peer arrives, ctx is done, or the transport is closed.
type Transport interface {
	Send(ctx context.Context, to PlayerID, msg []byte) error
	Receive(ctx context.Context, from PlayerID) ([]byte, error)
	Close() error
}
