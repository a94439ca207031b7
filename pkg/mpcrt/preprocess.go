package mpcrt

import (
	"cmp"
	"slices"

	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/async"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/field"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/logging"
	"github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/pc"
)

// GeneratorTriples names the multiplication triple generator in a Need.
const GeneratorTriples = "generate_triples"

// Need identifies one kind of preprocessed material.
type Need struct {
	Generator string
	Field     string
}

// Program lists, per kind of material, the program counters at which a
// program consumed it.
type Program map[Need][]pc.Stack

func poolKey(f field.Field, key string) string {
	return f.Name() + "/" + key
}

// GetTriple returns the triple preprocessed for the current program
// counter. On a miss the need is recorded for NeededData and a fresh batch
// is generated on demand, of which the first triple is used.
func (r *Runtime) GetTriple(f field.Field) *async.Promise[Triple] {
	k := poolKey(f, r.pc.Key())
	if p, ok := r.pool[k]; ok {
		delete(r.pool, k)
		return p
	}
	need := Need{Generator: GeneratorTriples, Field: f.Name()}
	r.needed[need] = append(r.needed[need], r.pc.Snapshot())
	r.fields[f.Name()] = f
	r.log.Debug(r.ctx, "triple pool miss", logging.PC(r.pc.Snapshot()), "field", f.Name())

	_, batch := r.GenerateTriples(f)
	return async.Then(batch, func(ts []Triple) (Triple, error) {
		return ts[0], nil
	})
}

// NeededData returns the material requested so far without a preprocessed
// entry, in a form Preprocess accepts.
func (r *Runtime) NeededData() Program {
	out := make(Program, len(r.needed))
	for need, stacks := range r.needed {
		cp := make([]pc.Stack, len(stacks))
		for i, s := range stacks {
			cp[i] = append(pc.Stack(nil), s...)
		}
		out[need] = cp
	}
	return out
}

// PoolSize returns the number of preprocessed items not yet consumed.
func (r *Runtime) PoolSize() int { return len(r.pool) }

// Preprocess generates the material program asks for and stores it keyed
// by program counter. Entries are usable immediately; the returned promise
// settles once every batch has been generated. Rewind the program counter
// with SetProgramCounter and rerun the program to consume it.
func (r *Runtime) Preprocess(program Program) *async.Promise[struct{}] {
	needs := make([]Need, 0, len(program))
	for need := range program {
		if need.Generator != GeneratorTriples {
			return async.Failed[struct{}](errorf("Preprocess", "%w: unknown generator %q", ErrInvalidParameter, need.Generator))
		}
		if _, ok := r.fields[need.Field]; !ok {
			return async.Failed[struct{}](errorf("Preprocess", "%w: unknown field %q", ErrInvalidParameter, need.Field))
		}
		needs = append(needs, need)
	}
	slices.SortFunc(needs, func(a, b Need) int {
		return cmp.Or(cmp.Compare(a.Generator, b.Generator), cmp.Compare(a.Field, b.Field))
	})
	defer r.pc.Enter().Exit()

	var batches []*async.Promise[[]Triple]
	for _, need := range needs {
		f := r.fields[need.Field]
		stacks := program[need]
		delete(r.needed, need)
		r.log.Info(r.ctx, "preprocessing", "generator", need.Generator, "field", need.Field, "items", len(stacks))
		for i := 0; i < len(stacks); {
			count, batch := r.GenerateTriples(f)
			if count < 1 {
				return async.Then(batch, func([]Triple) (struct{}, error) { return struct{}{}, nil })
			}
			batches = append(batches, batch)
			for j := 0; j < count && i < len(stacks); j, i = j+1, i+1 {
				r.pool[poolKey(f, stacks[i].Key())] = async.Then(batch, func(ts []Triple) (Triple, error) {
					return ts[j], nil
				})
			}
		}
	}
	return async.Then(async.All(batches), func([][]Triple) (struct{}, error) {
		return struct{}{}, nil
	})
}
