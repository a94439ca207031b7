// Package mocknet provides an in-memory transport for tests and examples.
//
// Mocknet implements transport.Transport with per-slot channels, so delivery
// between any two players is reliable and ordered while players on separate
// goroutines and event loops make progress independently.
//
// # Usage
//
//	net := mocknet.New()
//	eps := net.Endpoints(3) // players 1, 2 and 3
//	rt1, _ := mpcrt.New(mpcrt.Options{ID: 1, Threshold: 1, Transport: eps[0]})
//
// # Fault injection
//
// Faulty wraps an endpoint and misbehaves according to a Behavior: it can
// drop every outgoing message, replace payloads, or fail after a number of
// sends. Use it to check how honest players cope with a corrupt peer.
//
// # Limitations
//
// Mocknet is for tests only: there is no encryption, no latency and no
// reordering.
package mocknet
