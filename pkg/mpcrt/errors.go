package mpcrt

import (
	"errors"
	"fmt"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
)

var (
	// ErrInvalidParameter indicates a usage error such as a bad threshold or
	// a missing input value.
	ErrInvalidParameter = errors.New("mpcrt: invalid parameter")

	// ErrProtocolViolation indicates that a peer or the local program broke
	// the protocol, e.g. a share resolved twice or too few valid shares.
	ErrProtocolViolation = errors.New("mpcrt: protocol violation")

	// ErrVerificationFailure indicates that a consistency check failed. The
	// data involved must be discarded.
	ErrVerificationFailure = errors.New("mpcrt: verification failure")

	// ErrTransport indicates a failure to send or receive.
	ErrTransport = errors.New("mpcrt: transport failure")

	// ErrClosed indicates the runtime has been closed.
	ErrClosed = transport.ErrClosed
)

// Error wraps an underlying error with the operation that failed.
type Error struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mpcrt.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errorf creates a new Error. Use %w to keep a sentinel matchable.
func errorf(op string, format string, args ...any) error {
	return &Error{
		Op:  op,
		Err: fmt.Errorf(format, args...),
	}
}
