package interp_test

import (
	"testing"

	"riptide/internal/bc"
	"riptide/internal/index"
	"riptide/internal/interp"
	"riptide/internal/types"
)

// recorder captures every propagation the runner makes, snapshotting
// states so later mutation by the runner cannot blur the record.
type recorder struct {
	calls []propagation
}

type propagation struct {
	blk bc.BlockID
	st  *interp.State
}

func (r *recorder) Propagate(blk bc.BlockID, st *interp.State) {
	r.calls = append(r.calls, propagation{blk: blk, st: st.Copy()})
}

func runBlock(ix *index.Index, f *bc.Func, blk bc.BlockID, collect *interp.CollectedInfo) (interp.RunFlags, *interp.Interp, *recorder) {
	if ix == nil {
		ix = index.New(true)
	}
	if collect == nil {
		collect = interp.NewCollectedInfo(f)
	}
	in := &interp.Interp{
		Index:   ix,
		Ctx:     interp.Context{Func: f},
		Collect: collect,
		Blk:     f.Block(blk),
		State:   interp.EntryState(f),
	}
	rec := &recorder{}
	rf := interp.Run(in, rec)
	return rf, in, rec
}

func TestRunPropagatesSnapshotToThrowEdges(t *testing.T) {
	f := &bc.Func{
		Name:      "divider",
		NumParams: 2,
		NumLocals: 2,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.CGetL(0), bc.CGetL(1), bc.Div()},
				Fallthrough: bc.NoBlockID,
				Throw:       []bc.BlockID{1},
			},
			{ID: 1, Fallthrough: bc.NoBlockID},
		},
	}

	_, in, rec := runBlock(nil, f, 0, nil)

	if len(rec.calls) != 1 {
		t.Fatalf("%d propagations, want exactly 1 (the division's throw edge)", len(rec.calls))
	}
	call := rec.calls[0]
	if call.blk != 1 {
		t.Fatalf("propagated to b%d, want the handler b1", call.blk)
	}
	// The handler must see the state before the faulting instruction,
	// with both operands still on the stack.
	if got := len(call.st.Stack); got != 2 {
		t.Fatalf("handler entry stack depth %d, want 2", got)
	}
	if got := len(in.State.Stack); got != 1 {
		t.Fatalf("post-run stack depth %d, want 1", got)
	}
}

func TestRunNonPEIStepsSkipThrowEdges(t *testing.T) {
	f := &bc.Func{
		Name:      "quiet",
		NumParams: 0,
		NumLocals: 1,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.Int(1), bc.SetL(0), bc.PopC()},
				Fallthrough: 1,
				Throw:       []bc.BlockID{2},
			},
			{ID: 1, Fallthrough: bc.NoBlockID},
			{ID: 2, Fallthrough: bc.NoBlockID},
		},
	}

	_, _, rec := runBlock(nil, f, 0, nil)

	if len(rec.calls) != 1 {
		t.Fatalf("%d propagations, want only the fallthrough", len(rec.calls))
	}
	if rec.calls[0].blk != 1 {
		t.Fatalf("propagated to b%d, want the fallthrough b1", rec.calls[0].blk)
	}
}

func TestRunThrowEndsTheBlock(t *testing.T) {
	f := &bc.Func{
		Name:      "raiser",
		NumParams: 0,
		NumLocals: 0,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.Str("e"), bc.Throw(), bc.Int(1), bc.RetC()},
				Fallthrough: 1,
				Throw:       []bc.BlockID{2},
			},
			{ID: 1, Fallthrough: bc.NoBlockID},
			{ID: 2, Fallthrough: bc.NoBlockID},
		},
	}

	rf, in, rec := runBlock(nil, f, 0, nil)

	// Only the handler may see a state: the fallthrough successor is
	// unreachable and the dead tail is never evaluated.
	if len(rec.calls) != 1 {
		t.Fatalf("%d propagations, want exactly 1 (the throw edge)", len(rec.calls))
	}
	if rec.calls[0].blk != 2 {
		t.Fatalf("propagated to b%d, want the handler b2", rec.calls[0].blk)
	}
	if got := len(rec.calls[0].st.Stack); got != 1 {
		t.Fatalf("handler entry stack depth %d, want 1 (the thrown value)", got)
	}
	if rf.HasReturned {
		t.Error("dead return after the throw was evaluated")
	}
	if got := len(in.State.Stack); got != 0 {
		t.Errorf("post-run stack depth %d, want 0", got)
	}
}

func TestRunReturnAggregation(t *testing.T) {
	t.Run("literal through a local is no parameter echo", func(t *testing.T) {
		f := &bc.Func{
			Name:      "lit",
			NumLocals: 1,
			Entry:     0,
			Blocks: []bc.Block{
				{
					ID:          0,
					Code:        []bc.Bytecode{bc.Int(1), bc.SetL(0), bc.PopC(), bc.CGetL(0), bc.RetC()},
					Fallthrough: bc.NoBlockID,
				},
			},
		}
		rf, _, _ := runBlock(nil, f, 0, nil)
		if !rf.HasReturned {
			t.Fatal("return not reported")
		}
		if !rf.Returned.Equals(types.IntVal(1)) {
			t.Fatalf("Returned = %s, want Int=1", rf.Returned)
		}
		if rf.RetParam != bc.NoLocalID {
			t.Fatalf("RetParam = %d, want NoLocalID", rf.RetParam)
		}
	})

	t.Run("direct parameter echo", func(t *testing.T) {
		f := &bc.Func{
			Name:      "echo",
			NumParams: 1,
			NumLocals: 1,
			Entry:     0,
			Blocks: []bc.Block{
				{
					ID:          0,
					Code:        []bc.Bytecode{bc.CGetL(0), bc.RetC()},
					Fallthrough: bc.NoBlockID,
				},
			},
		}
		rf, _, _ := runBlock(nil, f, 0, nil)
		if rf.RetParam != 0 {
			t.Fatalf("RetParam = %d, want 0", rf.RetParam)
		}
		if !rf.Returned.Equals(types.TInitCell) {
			t.Fatalf("Returned = %s, want InitCell", rf.Returned)
		}
	})

	t.Run("multiple returns union and demote the echo", func(t *testing.T) {
		f := &bc.Func{
			Name:      "multi",
			NumParams: 1,
			NumLocals: 1,
			Entry:     0,
			Blocks: []bc.Block{
				{
					ID:          0,
					Code:        []bc.Bytecode{bc.CGetL(0), bc.RetC(), bc.Str("s"), bc.RetC()},
					Fallthrough: bc.NoBlockID,
				},
			},
		}
		rf, _, _ := runBlock(nil, f, 0, nil)
		want := types.Union(types.TInitCell, types.StrVal("s"))
		if !rf.Returned.Equals(want) {
			t.Fatalf("Returned = %s, want %s", rf.Returned, want)
		}
		if rf.RetParam != bc.NoLocalID {
			t.Fatalf("RetParam = %d, want NoLocalID after a non-echo return", rf.RetParam)
		}
	})
}

func TestRunStopsAtUnconditionalJump(t *testing.T) {
	f := &bc.Func{
		Name:      "jumper",
		NumLocals: 1,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.Jmp(2), bc.Int(1), bc.SetL(0), bc.PopC()},
				Fallthrough: 1,
			},
			{ID: 1, Fallthrough: bc.NoBlockID},
			{ID: 2, Fallthrough: bc.NoBlockID},
		},
	}

	_, in, rec := runBlock(nil, f, 0, nil)

	if len(rec.calls) != 1 {
		t.Fatalf("%d propagations, want exactly 1", len(rec.calls))
	}
	if rec.calls[0].blk != 2 {
		t.Fatalf("propagated to b%d, want the jump target b2", rec.calls[0].blk)
	}
	// The code after the jump must not have executed.
	if len(in.State.Stack) != 0 {
		t.Fatalf("stack depth %d, dead code was evaluated", len(in.State.Stack))
	}
	if !in.State.Locals[0].Equals(types.TUninit) {
		t.Fatalf("local $0 = %s, dead store was evaluated", in.State.Locals[0])
	}
}

func TestRunConditionalBranch(t *testing.T) {
	newBranchFunc := func(cond bc.Bytecode) *bc.Func {
		return &bc.Func{
			Name:      "branch",
			NumParams: 1,
			NumLocals: 1,
			Entry:     0,
			Blocks: []bc.Block{
				{ID: 0, Code: []bc.Bytecode{cond, bc.JmpZ(2)}, Fallthrough: 1},
				{ID: 1, Fallthrough: bc.NoBlockID},
				{ID: 2, Fallthrough: bc.NoBlockID},
			},
		}
	}

	t.Run("unknown condition reaches both successors", func(t *testing.T) {
		f := newBranchFunc(bc.CGetL(0))
		_, _, rec := runBlock(nil, f, 0, nil)
		if len(rec.calls) != 2 {
			t.Fatalf("%d propagations, want 2", len(rec.calls))
		}
		if rec.calls[0].blk != 2 || rec.calls[1].blk != 1 {
			t.Fatalf("propagated to b%d then b%d, want b2 then b1", rec.calls[0].blk, rec.calls[1].blk)
		}
		for _, c := range rec.calls {
			if len(c.st.Stack) != 0 {
				t.Fatalf("branch successor b%d saw stack depth %d, want 0", c.blk, len(c.st.Stack))
			}
		}
	})

	t.Run("known-false condition takes only the jump", func(t *testing.T) {
		f := newBranchFunc(bc.False())
		_, _, rec := runBlock(nil, f, 0, nil)
		if len(rec.calls) != 1 || rec.calls[0].blk != 2 {
			t.Fatalf("calls = %+v, want a single propagation to b2", rec.calls)
		}
	})

	t.Run("known-true condition takes only the fallthrough", func(t *testing.T) {
		f := newBranchFunc(bc.True())
		_, _, rec := runBlock(nil, f, 0, nil)
		if len(rec.calls) != 1 || rec.calls[0].blk != 1 {
			t.Fatalf("calls = %+v, want a single propagation to b1", rec.calls)
		}
	})

	t.Run("decided branch is strength-reduced", func(t *testing.T) {
		f := newBranchFunc(bc.False())
		collect := interp.NewCollectedInfo(f)
		runBlock(nil, f, 0, collect)
		if collect.StrengthReductions != 1 {
			t.Fatalf("StrengthReductions = %d, want 1", collect.StrengthReductions)
		}
	})
}

func TestRunIdempotent(t *testing.T) {
	f := &bc.Func{
		Name:      "twice",
		NumParams: 1,
		NumLocals: 2,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.CGetL(0), bc.Int(2), bc.Mul(), bc.SetL(1), bc.PopC(), bc.CGetL(1), bc.RetC()},
				Fallthrough: bc.NoBlockID,
			},
		},
	}

	rf1, in1, rec1 := runBlock(nil, f, 0, nil)
	rf2, in2, rec2 := runBlock(nil, f, 0, nil)

	if rf1.HasReturned != rf2.HasReturned ||
		!rf1.Returned.Equals(rf2.Returned) ||
		rf1.RetParam != rf2.RetParam {
		t.Fatalf("RunFlags differ across identical runs: %+v vs %+v", rf1, rf2)
	}
	if !in1.State.Equal(in2.State) {
		t.Fatalf("final states differ across identical runs:\n%s\n%s", in1.State, in2.State)
	}
	if len(rec1.calls) != len(rec2.calls) {
		t.Fatalf("propagation counts differ: %d vs %d", len(rec1.calls), len(rec2.calls))
	}
	for i := range rec1.calls {
		if rec1.calls[i].blk != rec2.calls[i].blk || !rec1.calls[i].st.Equal(rec2.calls[i].st) {
			t.Fatalf("propagation %d differs across identical runs", i)
		}
	}
}

func TestRunLocalStatics(t *testing.T) {
	f := &bc.Func{
		Name:      "counter",
		NumLocals: 1,
		Statics:   []bc.LocalID{0},
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.Int(5), bc.StaticLocInit(0)},
				Fallthrough: bc.NoBlockID,
			},
			{
				ID:          1,
				Code:        []bc.Bytecode{bc.Str("x"), bc.StaticLocInit(0)},
				Fallthrough: bc.NoBlockID,
			},
		},
	}

	collect := interp.NewCollectedInfo(f)

	rf0, in0, rec0 := runBlock(nil, f, 0, collect)
	if len(rec0.calls) != 0 {
		t.Fatalf("first observation triggered %d propagations, want 0", len(rec0.calls))
	}
	if got, ok := rf0.UsedLocalStatics[0]; !ok || !got.Equals(types.IntVal(5)) {
		t.Fatalf("UsedLocalStatics[$0] = %s (ok=%v), want Int=5", got, ok)
	}
	if !in0.State.Locals[0].Equals(types.IntVal(5)) {
		t.Fatalf("static local bound to %s, want Int=5", in0.State.Locals[0])
	}

	// A conflicting initializer type on another path raises the static's
	// type and must flag the earlier observer block stale.
	_, _, rec1 := runBlock(nil, f, 1, collect)
	if len(rec1.calls) != 1 {
		t.Fatalf("%d propagations after the type raise, want 1", len(rec1.calls))
	}
	if rec1.calls[0].blk != 0 || rec1.calls[0].st != nil {
		t.Fatalf("stale relay = (b%d, %v), want (b0, nil)", rec1.calls[0].blk, rec1.calls[0].st)
	}

	want := types.Union(types.IntVal(5), types.StrVal("x"))
	if got := collect.StaticType(0); !got.Equals(want) {
		t.Fatalf("StaticType($0) = %s, want %s", got, want)
	}
}

func TestRunStaticLocGet(t *testing.T) {
	f := &bc.Func{
		Name:      "reader",
		NumLocals: 1,
		Statics:   []bc.LocalID{0},
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.StaticLocGet(0), bc.RetC()},
				Fallthrough: bc.NoBlockID,
			},
		},
	}

	// No initializer observed anywhere yet: the read must stay maximally
	// imprecise rather than claim Bottom.
	rf, _, _ := runBlock(nil, f, 0, nil)
	if !rf.Returned.Equals(types.TInitCell) {
		t.Fatalf("Returned = %s, want InitCell", rf.Returned)
	}
	if _, ok := rf.UsedLocalStatics[0]; !ok {
		t.Fatal("static consultation not recorded in UsedLocalStatics")
	}
}
