// Package analyze drives the abstract interpreter to a fixpoint. The
// per-function driver owns block scheduling and state merging; the
// program driver repeats per-function analysis while whole-program
// return summaries keep improving.
package analyze

import (
	"riptide/internal/bc"
	"riptide/internal/index"
	"riptide/internal/interp"
	"riptide/internal/types"
)

// FuncAnalysis is the result of analyzing one function to a fixpoint.
type FuncAnalysis struct {
	Ctx interp.Context

	// ReturnType is the union of every type the function can return;
	// TBottom when no return is reachable.
	ReturnType types.Type

	// RetParam is set when every reachable return echoes the same
	// parameter.
	RetParam bc.LocalID

	// BlockStates holds the converged entry state per block; nil for
	// unreachable blocks.
	BlockStates []*interp.State

	// Collect is the function's accumulator, kept for its statistics
	// and final local-static types.
	Collect *interp.CollectedInfo
}

// funcDriver is the Propagater for one function's worklist run.
type funcDriver struct {
	f      *bc.Func
	states []*interp.State
	queued []bool
	list   []bc.BlockID
}

func (d *funcDriver) enqueue(b bc.BlockID) {
	if b < 0 || int(b) >= len(d.queued) || d.queued[b] {
		return
	}
	d.queued[b] = true
	d.list = append(d.list, b)
}

func (d *funcDriver) next() (bc.BlockID, bool) {
	if len(d.list) == 0 {
		return bc.NoBlockID, false
	}
	b := d.list[0]
	d.list = d.list[1:]
	d.queued[b] = false
	return b, true
}

// Propagate merges an incoming state into the target block's entry
// state, scheduling the block when anything widened. A nil state is a
// staleness signal: the block re-runs from its current entry state.
func (d *funcDriver) Propagate(blk bc.BlockID, st *interp.State) {
	if d.f.Block(blk) == nil {
		panic("analyze: propagation to undeclared block")
	}
	if st == nil {
		d.enqueue(blk)
		return
	}
	if d.states[blk] == nil {
		d.states[blk] = st.Copy()
		d.enqueue(blk)
		return
	}
	if d.states[blk].Join(st) {
		d.enqueue(blk)
	}
}

// Func analyzes one function to a fixpoint over its blocks.
func Func(ix *index.Index, ctx interp.Context) *FuncAnalysis {
	f := ctx.Func
	d := &funcDriver{
		f:      f,
		states: make([]*interp.State, len(f.Blocks)),
		queued: make([]bool, len(f.Blocks)),
	}
	collect := interp.NewCollectedInfo(f)

	d.states[f.Entry] = interp.EntryState(f)
	d.enqueue(f.Entry)

	ret := types.TBottom
	retParam := bc.NoLocalID
	sawReturn := false

	for {
		bid, ok := d.next()
		if !ok {
			break
		}
		st := d.states[bid].Copy()
		in := &interp.Interp{
			Index:   ix,
			Ctx:     ctx,
			Collect: collect,
			Blk:     f.Block(bid),
			State:   st,
		}
		rf := interp.Run(in, d)
		if rf.HasReturned {
			ret = types.Union(ret, rf.Returned)
			if !sawReturn {
				retParam = rf.RetParam
			} else if retParam != rf.RetParam {
				retParam = bc.NoLocalID
			}
			sawReturn = true
		}
	}

	return &FuncAnalysis{
		Ctx:         ctx,
		ReturnType:  ret,
		RetParam:    retParam,
		BlockStates: d.states,
		Collect:     collect,
	}
}
