// Package interp is the instruction- and block-level abstract
// interpreter at the core of the whole-program bytecode optimizer. It
// simulates the abstract effect of every instruction over the type
// lattice, reports per-instruction effect summaries (StepFlags) and
// per-block summaries (RunFlags), and hands resulting states to the
// surrounding fixpoint driver through the Propagater callback.
//
// The interpreter is conservative by construction: where it cannot
// prove an effect it reports the pessimistic answer. It has no failure
// mode short of a caller contract violation (malformed CFG, local ids
// out of range), which panics.
package interp

import (
	"riptide/internal/bc"
	"riptide/internal/index"
	"riptide/internal/types"
)

// Context identifies what is being analyzed.
type Context struct {
	Unit *bc.Unit
	Func *bc.Func
	// Class is the enclosing class when Func is a method, nil
	// otherwise.
	Class *bc.Class
}

// Interp bundles everything one stepper or runner invocation acts on:
// the read-only index, the analysis context, the shared per-function
// accumulator, the block being processed and the mutable state. State
// is exclusively owned by the caller for the duration of the call.
type Interp struct {
	Index   *index.Index
	Ctx     Context
	Collect *CollectedInfo
	Blk     *bc.Block
	State   *State
}

// Propagater receives abstract states for successor blocks. A nil
// state asks the driver to mark the block stale and re-run it from
// scratch on a future pass. Calls are synchronous; the implementation
// must merge or copy the state before returning and may not retain the
// pointer.
type Propagater interface {
	Propagate(blk bc.BlockID, st *State)
}

// PropagateFunc adapts a function to the Propagater interface.
type PropagateFunc func(bc.BlockID, *State)

func (f PropagateFunc) Propagate(blk bc.BlockID, st *State) { f(blk, st) }

// Step abstractly executes a single instruction against the state in
// in, returning its effect summary. The state must reflect the point
// immediately before the instruction; afterwards it reflects the point
// immediately after, assuming no exception. This entry point also
// serves drivers replaying from a mid-block position after the global
// analysis has finished; conditional-branch targets reachable from the
// instruction are not reported, so it is only valid where the caller
// already knows every successor state.
func Step(in *Interp, op bc.Bytecode) StepFlags {
	noProp := func(bc.BlockID, *State) {}
	return step(in, op, noProp)
}

func step(in *Interp, op bc.Bytecode, propagate func(bc.BlockID, *State)) StepFlags {
	flags := newStepFlags()
	env := &iss{Interp: in, flags: &flags, propagate: propagate}
	dispatch(env, op)

	// A constant-producing instruction marked CanConstProp is
	// replaceable by a push of its result, so nothing about it can
	// prevent eliding an enclosing call either.
	if flags.CanConstProp && !env.persistent && len(in.State.Stack) > 0 {
		if _, ok := env.topC().ConstVal(); ok {
			flags.EffectFree = true
		}
	}
	return flags
}

// Run abstractly executes the whole block referenced by in, invoking
// the stepper on each instruction in order and routing resulting
// states through prop:
//
//   - before each instruction, the pre-instruction state is snapshotted
//     when (and only when) the block has throw edges;
//   - each potentially-throwing step propagates that snapshot to every
//     throw edge, since the instruction may fault mid-execution;
//   - an unconditional transfer makes its target the sole successor and
//     the rest of the block dead;
//   - a step that never completes (a throw) ends the block with only
//     its throw edges receiving states; the fallthrough successor gets
//     nothing;
//   - returns fold into the RunFlags without stopping iteration;
//   - re-analysis requests queued by handlers are relayed as nil-state
//     propagations;
//   - at normal block end the state flows to the declared fallthrough
//     successor.
func Run(in *Interp, prop Propagater) RunFlags {
	ret := RunFlags{RetParam: bc.NoLocalID}
	blk := in.Blk
	hasThrow := blk.HasThrowEdges()

	for i := range blk.Code {
		var pre *State
		if hasThrow {
			pre = in.State.Copy()
		}

		flags := step(in, blk.Code[i], prop.Propagate)

		if flags.WasPEI && hasThrow {
			for _, h := range blk.Throw {
				prop.Propagate(h, pre)
			}
		}
		for _, stale := range in.Collect.takeReanalyze() {
			prop.Propagate(stale, nil)
		}

		if flags.HasReturned {
			if ret.HasReturned {
				ret.Returned = types.Union(ret.Returned, flags.Returned)
				if ret.RetParam != flags.RetParam {
					ret.RetParam = bc.NoLocalID
				}
			} else {
				ret.HasReturned = true
				ret.Returned = flags.Returned
				ret.RetParam = flags.RetParam
			}
		}
		for l, t := range flags.UsedLocalStatics {
			if ret.UsedLocalStatics == nil {
				ret.UsedLocalStatics = make(map[bc.LocalID]types.Type)
			}
			ret.UsedLocalStatics[l] = t
		}

		if flags.JmpDest != bc.NoBlockID {
			prop.Propagate(flags.JmpDest, in.State)
			return ret
		}
		if flags.Terminal {
			return ret
		}
	}

	if blk.Fallthrough != bc.NoBlockID {
		prop.Propagate(blk.Fallthrough, in.State)
	}
	return ret
}
