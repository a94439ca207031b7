package transport

import (
	"testing"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/wire"
)

func value(t *testing.T, p interface {
	Result() ([]byte, error, bool)
}) string {
	t.Helper()
	v, err, ok := p.Result()
	if !ok {
		t.Fatalf("promise still pending")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return string(v)
}

func TestDeliverBeforeExpect(t *testing.T) {
	in := NewInbox()
	in.Deliver("1.0", wire.KindShare, []byte("a"))
	in.Deliver("1.0", wire.KindShare, []byte("b"))
	if got := in.Buffered("1.0", wire.KindShare); got != 2 {
		t.Fatalf("buffered = %d", got)
	}

	if got := value(t, in.Expect("1.0", wire.KindShare)); got != "a" {
		t.Fatalf("first = %q", got)
	}
	if got := value(t, in.Expect("1.0", wire.KindShare)); got != "b" {
		t.Fatalf("second = %q", got)
	}
	if in.Pending() != 0 {
		t.Fatalf("queue not cleaned up")
	}
}

func TestExpectBeforeDeliver(t *testing.T) {
	in := NewInbox()
	first := in.Expect("2", wire.KindEcho)
	second := in.Expect("2", wire.KindEcho)
	if first.Settled() || second.Settled() {
		t.Fatal("waiters resolved early")
	}
	in.Deliver("2", wire.KindEcho, []byte("x"))
	if got := value(t, first); got != "x" {
		t.Fatalf("first = %q", got)
	}
	if second.Settled() {
		t.Fatal("second waiter resolved by first message")
	}
	in.Deliver("2", wire.KindEcho, []byte("y"))
	if got := value(t, second); got != "y" {
		t.Fatalf("second = %q", got)
	}
	if in.Pending() != 0 {
		t.Fatalf("queue not cleaned up")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	in := NewInbox()
	echo := in.Expect("3", wire.KindEcho)
	in.Deliver("3", wire.KindReady, []byte("r"))
	in.Deliver("4", wire.KindEcho, []byte("e4"))
	if echo.Settled() {
		t.Fatal("echo waiter matched a different key")
	}
	in.Deliver("3", wire.KindEcho, []byte("e3"))
	if got := value(t, echo); got != "e3" {
		t.Fatalf("echo = %q", got)
	}
	if got := value(t, in.Expect("3", wire.KindReady)); got != "r" {
		t.Fatalf("ready = %q", got)
	}
}
