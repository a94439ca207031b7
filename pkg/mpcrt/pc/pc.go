// Package pc implements the program counter that names runtime operations.
//
// The counter is a stack of integers, one level per nesting of counted
// operations. Entering an operation increments the innermost level and pushes
// a new zero level; leaving pops it. Players that issue the same operations
// in the same order therefore see the same counter values, and the runtime
// uses the counter as the correlation key for network messages.
package pc

import (
	"strconv"
	"strings"
)

// Stack is an immutable snapshot of a counter.
type Stack []uint32

// Key returns a compact string form usable as a map key, e.g. "1.0.3".
func (s Stack) Key() string {
	var b strings.Builder
	for i, v := range s {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return b.String()
}

func (s Stack) String() string { return "(" + s.Key() + ")" }

// Equal reports whether two stacks hold the same values.
func (s Stack) Equal(o Stack) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Counter is the live program counter of one runtime. It is not safe for
// concurrent use; the runtime touches it only from its event loop.
type Counter struct {
	stack Stack
}

// New returns a counter at (0).
func New() *Counter {
	return &Counter{stack: Stack{0}}
}

// Guard undoes one Enter.
type Guard struct {
	c *Counter
}

// Enter increments the innermost level and opens a new one. The returned
// guard's Exit must run on every exit path, typically via
//
//	defer c.Enter().Exit()
func (c *Counter) Enter() Guard {
	c.stack[len(c.stack)-1]++
	c.stack = append(c.stack, 0)
	return Guard{c: c}
}

// Exit pops the level opened by Enter.
func (g Guard) Exit() {
	g.c.stack = g.c.stack[:len(g.c.stack)-1]
}

// Snapshot copies the current value.
func (c *Counter) Snapshot() Stack {
	return append(Stack(nil), c.stack...)
}

// Key is Snapshot().Key() without the copy.
func (c *Counter) Key() string { return c.stack.Key() }

// Depth is the number of levels.
func (c *Counter) Depth() int { return len(c.stack) }

// Swap installs a copy of s as the live value and returns the previous
// value. Continuations use it to run under the counter captured when they
// were scheduled and to restore the caller's counter afterwards.
func (c *Counter) Swap(s Stack) Stack {
	prev := c.stack
	c.stack = append(Stack(nil), s...)
	return prev
}

// Restore reinstalls a value returned by Swap without copying it.
func (c *Counter) Restore(s Stack) {
	c.stack = s
}
