package mpcrt

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/logging"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/matrix"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/pc"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/prss"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/sched"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/transport"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/wire"
)

// DefaultSecurityParameter is the statistical security parameter k used by
// the bit-double protocols.
const DefaultSecurityParameter = 30

// Options configures New.
type Options struct {
	// ID is the local player.
	ID PlayerID
	// Players lists every player, the local one included, with ids 1..n.
	Players []Player
	// Threshold is the number of corrupt players tolerated, 1 <= t < n.
	Threshold int
	// Transport connects the local player to every peer.
	Transport transport.Transport

	Variant Variant
	// SecurityParameter defaults to DefaultSecurityParameter.
	SecurityParameter int
	// Rand defaults to crypto/rand.Reader.
	Rand   io.Reader
	Logger logging.Logger
}

// Runtime executes MPC protocols for one player.
//
// All protocol methods, and everything touching shares before they settle,
// must run on the runtime's event loop: inside Exec or Eval, or inside a
// callback the runtime itself invoked. Share.Await and the lifecycle
// methods (Exec, Eval, Shutdown, Close) are safe from any goroutine.
type Runtime struct {
	id        PlayerID
	n         int
	threshold int
	players   map[PlayerID]Player
	variant   Variant
	strategy  strategy
	k         int
	rand      io.Reader
	log       logging.Logger

	tr      transport.Transport
	loop    *sched.Loop
	pc      *pc.Counter
	inboxes map[PlayerID]*transport.Inbox
	prfs    *prfCache

	pool   map[string]*async.Promise[Triple]
	needed map[Need][]pc.Stack
	fields map[string]field.Field
	hyper  map[string]*matrix.Matrix

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// New starts a runtime over an established transport. The event loop and
// one reader per peer run until Close.
func New(opts Options) (*Runtime, error) {
	n := len(opts.Players)
	if n < 2 || n > prss.MaxPlayers {
		return nil, errorf("New", "%w: %d players, need 2..%d", ErrInvalidParameter, n, prss.MaxPlayers)
	}
	if opts.Threshold < 1 || opts.Threshold >= n {
		return nil, errorf("New", "%w: threshold %d out of range 1..%d", ErrInvalidParameter, opts.Threshold, n-1)
	}
	if opts.Transport == nil {
		return nil, errorf("New", "%w: nil transport", ErrInvalidParameter)
	}
	players := make(map[PlayerID]Player, n)
	for _, p := range opts.Players {
		if p.ID < 1 || int(p.ID) > n {
			return nil, errorf("New", "%w: player id %d out of range 1..%d", ErrInvalidParameter, p.ID, n)
		}
		if _, dup := players[p.ID]; dup {
			return nil, errorf("New", "%w: duplicate player id %d", ErrInvalidParameter, p.ID)
		}
		players[p.ID] = p
	}
	self, ok := players[opts.ID]
	if !ok {
		return nil, errorf("New", "%w: local player %d not listed", ErrInvalidParameter, opts.ID)
	}
	strat, err := strategyFor(opts.Variant)
	if err != nil {
		return nil, err
	}

	k := opts.SecurityParameter
	if k <= 0 {
		k = DefaultSecurityParameter
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Reader
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		id:        opts.ID,
		n:         n,
		threshold: opts.Threshold,
		players:   players,
		variant:   opts.Variant,
		strategy:  strat,
		k:         k,
		rand:      rnd,
		log:       logger.With(logging.Player(opts.ID)),
		tr:        opts.Transport,
		loop:      sched.New(),
		pc:        pc.New(),
		inboxes:   make(map[PlayerID]*transport.Inbox, n-1),
		prfs:      newPRFCache(self),
		pool:      make(map[string]*async.Promise[Triple]),
		needed:    make(map[Need][]pc.Stack),
		fields:    make(map[string]field.Field),
		hyper:     make(map[string]*matrix.Matrix),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, id := range r.Players() {
		if id != r.id {
			r.inboxes[id] = transport.NewInbox()
		}
	}

	go func() { _ = r.loop.Run(ctx) }()
	for id := range r.inboxes {
		go r.readFrom(id)
	}
	r.log.Info(ctx, "runtime started", "players", n, "threshold", r.threshold, "variant", r.variant.String())
	return r, nil
}

// ID returns the local player id.
func (r *Runtime) ID() PlayerID { return r.id }

// N returns the number of players.
func (r *Runtime) N() int { return r.n }

// Threshold returns t.
func (r *Runtime) Threshold() int { return r.threshold }

// Variant returns the security variant the runtime was created with.
func (r *Runtime) Variant() Variant { return r.variant }

// Players returns all player ids in ascending order.
func (r *Runtime) Players() []PlayerID {
	ids := make([]PlayerID, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Player returns the configuration of player id.
func (r *Runtime) Player(id PlayerID) (Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// ProgramCounter returns the current program counter. Loop only.
func (r *Runtime) ProgramCounter() pc.Stack { return r.pc.Snapshot() }

// SetProgramCounter rewinds or advances the program counter, typically to
// replay a program after Preprocess. Loop only.
func (r *Runtime) SetProgramCounter(s pc.Stack) error {
	if len(s) == 0 {
		return errorf("SetProgramCounter", "%w: empty program counter", ErrInvalidParameter)
	}
	r.pc.Swap(s)
	return nil
}

// Exec runs fn on the event loop and waits for it to return.
func (r *Runtime) Exec(ctx context.Context, fn func() error) error {
	err := r.loop.Exec(ctx, fn)
	if errors.Is(err, sched.ErrStopped) {
		return errorf("Exec", "%w", ErrClosed)
	}
	return err
}

// Eval runs fn on the event loop and waits for the share it returns.
func (r *Runtime) Eval(ctx context.Context, fn func() *Share) (field.Element, error) {
	var s *Share
	if err := r.Exec(ctx, func() error {
		s = fn()
		return nil
	}); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errorf("Eval", "%w: no share returned", ErrInvalidParameter)
	}
	return s.Await(ctx)
}

func (r *Runtime) readFrom(peer PlayerID) {
	for {
		raw, err := r.tr.Receive(r.ctx, peer)
		if err != nil {
			if r.ctx.Err() == nil && !errors.Is(err, transport.ErrClosed) {
				r.log.Warn(r.ctx, "receive failed", logging.Player(peer), "error", err)
			}
			return
		}
		msg, err := wire.Unmarshal(raw)
		if err != nil {
			r.log.Warn(r.ctx, "dropping malformed message", logging.Player(peer), "error", err)
			continue
		}
		key := msg.PC.Key()
		if err := r.loop.Post(func() {
			r.log.Debug(r.ctx, "message received", logging.Player(peer), logging.PC(msg.PC), "kind", msg.Kind.String(), logging.Redacted("data"))
			r.inboxes[peer].Deliver(key, msg.Kind, msg.Data)
		}); err != nil {
			return
		}
	}
}

func (r *Runtime) sendAt(stack pc.Stack, to PlayerID, kind wire.Kind, data []byte) {
	b := wire.Message{PC: stack, Kind: kind, Data: data}.Marshal()
	if err := r.tr.Send(r.ctx, to, b); err != nil {
		r.log.Error(r.ctx, "send failed", logging.Player(to), logging.PC(stack), "kind", kind.String(), "error", err)
		return
	}
	r.log.Debug(r.ctx, "message sent", logging.Player(to), logging.PC(stack), "kind", kind.String(), logging.Redacted("data"))
}

func (r *Runtime) send(to PlayerID, kind wire.Kind, data []byte) {
	r.sendAt(r.pc.Snapshot(), to, kind, data)
}

func (r *Runtime) sendShare(to PlayerID, v field.Element) {
	r.send(to, wire.KindShare, v.Bytes())
}

func (r *Runtime) expect(from PlayerID, kind wire.Kind) *async.Promise[[]byte] {
	return r.inboxes[from].Expect(r.pc.Key(), kind)
}

func (r *Runtime) expectShare(from PlayerID, f field.Field) *async.Promise[field.Element] {
	return async.Then(r.expect(from, wire.KindShare), func(b []byte) (field.Element, error) {
		v, err := f.FromBytes(b)
		if err != nil {
			return nil, errorf("expectShare", "%w: bad share from player %d: %v", ErrProtocolViolation, from, err)
		}
		return v, nil
	})
}

// exchangeShares sends v to peer and returns the share peer sends back
// under the same program counter.
func (r *Runtime) exchangeShares(peer PlayerID, v field.Element) *async.Promise[field.Element] {
	if peer == r.id {
		return async.Resolved(v)
	}
	p := r.expectShare(peer, v.Field())
	r.sendShare(peer, v)
	return p
}

// SendData sends an opaque payload to a peer under the current program
// counter. The peer receives it with ExpectData at the same counter.
func (r *Runtime) SendData(to PlayerID, data []byte) error {
	if _, ok := r.inboxes[to]; !ok {
		return errorf("SendData", "%w: unknown peer %d", ErrInvalidParameter, to)
	}
	r.send(to, wire.KindText, data)
	return nil
}

// ExpectData returns the next payload sent with SendData by from under the
// current program counter.
func (r *Runtime) ExpectData(from PlayerID) (*async.Promise[[]byte], error) {
	if _, ok := r.inboxes[from]; !ok {
		return nil, errorf("ExpectData", "%w: unknown peer %d", ErrInvalidParameter, from)
	}
	return r.expect(from, wire.KindText), nil
}

// schedule runs fn once p succeeds, under the program counter captured now.
// The caller's counter is restored after fn returns.
func schedule[T, U any](r *Runtime, p *async.Promise[T], fn func(T) (U, error)) *async.Promise[U] {
	saved := r.pc.Snapshot()
	return async.Then(p, func(v T) (U, error) {
		prev := r.pc.Swap(saved)
		defer r.pc.Restore(prev)
		return fn(v)
	})
}

// scheduleChain is schedule for continuations that start further work.
func scheduleChain[T, U any](r *Runtime, p *async.Promise[T], fn func(T) *async.Promise[U]) *async.Promise[U] {
	saved := r.pc.Snapshot()
	return async.Chain(p, func(v T) *async.Promise[U] {
		prev := r.pc.Swap(saved)
		defer r.pc.Restore(prev)
		return fn(v)
	})
}

// Synchronize completes once every player has reached the same point.
func (r *Runtime) Synchronize() *async.Promise[struct{}] {
	defer r.pc.Enter().Exit()
	ps := make([]*async.Promise[field.Element], 0, r.n)
	for _, id := range r.Players() {
		ps = append(ps, r.exchangeShares(id, field.GF256.Zero()))
	}
	return async.Then(async.All(ps), func([]field.Element) (struct{}, error) {
		return struct{}{}, nil
	})
}

// Shutdown synchronizes with every player, then closes the runtime. The
// runtime is closed even when synchronization fails.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var done *async.Promise[struct{}]
	err := r.Exec(ctx, func() error {
		r.log.Info(ctx, "synchronizing shutdown")
		done = r.Synchronize()
		return nil
	})
	if err == nil {
		_, err = done.Await(ctx)
	}
	r.log.Info(ctx, "closing connections")
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close stops the event loop and closes the transport without
// synchronizing. Pending shares never settle.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		r.loop.Stop()
		if err := r.tr.Close(); err != nil {
			r.closeErr = errorf("Close", "%w: %v", ErrTransport, err)
		}
	})
	return r.closeErr
}

// Done is closed once the event loop has stopped.
func (r *Runtime) Done() <-chan struct{} { return r.loop.Done() }
