package pc

import "testing"

func TestEnterExit(t *testing.T) {
	c := New()
	if got := c.Key(); got != "0" {
		t.Fatalf("initial key %q", got)
	}
	g := c.Enter()
	if got := c.Key(); got != "1.0" {
		t.Fatalf("after enter %q", got)
	}
	inner := c.Enter()
	if got := c.Key(); got != "1.1.0" {
		t.Fatalf("nested %q", got)
	}
	inner.Exit()
	c.Enter().Exit()
	if got := c.Key(); got != "1.2" {
		t.Fatalf("after two inner ops %q", got)
	}
	g.Exit()
	if got := c.Key(); got != "1" {
		t.Fatalf("after exit %q", got)
	}
}

func TestExitRunsOnPanic(t *testing.T) {
	c := New()
	func() {
		defer func() { _ = recover() }()
		defer c.Enter().Exit()
		panic("boom")
	}()
	if c.Depth() != 1 || c.Key() != "1" {
		t.Fatalf("counter not restored: %s", c.Snapshot())
	}
}

func TestSwapIsolatesSnapshot(t *testing.T) {
	c := New()
	c.Enter()
	saved := c.Snapshot()

	c.Enter().Exit()
	c.Enter().Exit()
	live := c.Key()

	prev := c.Swap(saved)
	c.Enter().Exit()
	if got := c.Key(); got != "1.1" {
		t.Fatalf("continuation ran under %q", got)
	}
	c.Restore(prev)
	if got := c.Key(); got != live {
		t.Fatalf("restored %q want %q", got, live)
	}
	if saved.Key() != "1.0" {
		t.Fatalf("snapshot mutated: %s", saved)
	}
}

func TestDeterministicTraces(t *testing.T) {
	run := func() []string {
		c := New()
		var trace []string
		var op func(depth int)
		op = func(depth int) {
			defer c.Enter().Exit()
			trace = append(trace, c.Key())
			if depth > 0 {
				op(depth - 1)
				op(depth - 1)
			}
		}
		for i := 0; i < 3; i++ {
			op(2)
		}
		return trace
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("length mismatch")
	}
	seen := map[string]bool{}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("step %d: %s != %s", i, a[i], b[i])
		}
		if seen[a[i]] {
			t.Fatalf("duplicate counter %s", a[i])
		}
		seen[a[i]] = true
	}
}

func TestStackEqual(t *testing.T) {
	if !(Stack{1, 2}).Equal(Stack{1, 2}) || (Stack{1}).Equal(Stack{1, 0}) {
		t.Fatal("Equal")
	}
}
