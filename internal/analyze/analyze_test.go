package analyze_test

import (
	"context"
	"testing"

	"riptide/internal/analyze"
	"riptide/internal/bc"
	"riptide/internal/index"
	"riptide/internal/interp"
	"riptide/internal/types"
)

// countFunc builds the classic counting loop:
//
//	b0: i = 0
//	b1: if !(i < n) goto b3
//	b2: i = i + 1; goto b1
//	b3: return i
func countFunc() *bc.Func {
	return &bc.Func{
		Name:      "count",
		NumParams: 1,
		NumLocals: 2,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.Int(0), bc.SetL(1), bc.PopC()},
				Fallthrough: 1,
			},
			{
				ID:          1,
				Code:        []bc.Bytecode{bc.CGetL(1), bc.CGetL(0), bc.Lt(), bc.JmpNZ(2)},
				Fallthrough: 3,
			},
			{
				ID:          2,
				Code:        []bc.Bytecode{bc.CGetL(1), bc.Int(1), bc.Add(), bc.SetL(1), bc.PopC(), bc.Jmp(1)},
				Fallthrough: bc.NoBlockID,
			},
			{
				ID:          3,
				Code:        []bc.Bytecode{bc.CGetL(1), bc.RetC()},
				Fallthrough: bc.NoBlockID,
			},
		},
	}
}

func TestFuncLoopFixpoint(t *testing.T) {
	f := countFunc()
	unit := &bc.Unit{Name: "u", Funcs: []*bc.Func{f}}
	ix := index.New(true, unit)

	res := analyze.Func(ix, interp.Context{Unit: unit, Func: f})

	if !res.ReturnType.Equals(types.TNum) {
		t.Fatalf("ReturnType = %s, want Num", res.ReturnType)
	}
	if res.RetParam != bc.NoLocalID {
		t.Fatalf("RetParam = %d, want NoLocalID", res.RetParam)
	}

	// Every block is reachable and the loop head's entry state must have
	// converged to a fixpoint: joining the back-edge state changes
	// nothing.
	for i, st := range res.BlockStates {
		if st == nil {
			t.Fatalf("block b%d unreachable in a fully-connected CFG", i)
		}
	}
	head := res.BlockStates[1]
	if !head.Locals[1].Equals(types.TNum) {
		t.Fatalf("loop counter at head = %s, want Num", head.Locals[1])
	}
}

func TestFuncUnreachableBlock(t *testing.T) {
	f := &bc.Func{
		Name:      "dead",
		NumLocals: 1,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.Int(1), bc.RetC()},
				Fallthrough: bc.NoBlockID,
			},
			{
				ID:          1,
				Code:        []bc.Bytecode{bc.Str("never"), bc.RetC()},
				Fallthrough: bc.NoBlockID,
			},
		},
	}
	unit := &bc.Unit{Name: "u", Funcs: []*bc.Func{f}}
	res := analyze.Func(index.New(true, unit), interp.Context{Unit: unit, Func: f})

	if !res.ReturnType.Equals(types.IntVal(1)) {
		t.Fatalf("ReturnType = %s, dead block contributed a return", res.ReturnType)
	}
	if res.BlockStates[1] != nil {
		t.Fatal("unreachable block has an entry state")
	}
}

func TestFuncParameterEcho(t *testing.T) {
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
	unit := &bc.Unit{Name: "u", Funcs: []*bc.Func{f}}
	res := analyze.Func(index.New(true, unit), interp.Context{Unit: unit, Func: f})
	if res.RetParam != 0 {
		t.Fatalf("RetParam = %d, want 0", res.RetParam)
	}
}

func TestProgramRefinesAcrossFunctions(t *testing.T) {
	leaf := &bc.Func{
		Name:      "leaf",
		NumLocals: 0,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.Int(42), bc.RetC()},
				Fallthrough: bc.NoBlockID,
			},
		},
	}
	caller := &bc.Func{
		Name:      "caller",
		NumLocals: 0,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.FCall("leaf", 0, false), bc.RetC()},
				Fallthrough: bc.NoBlockID,
			},
		},
	}
	unit := &bc.Unit{Name: "u", Funcs: []*bc.Func{leaf, caller}}
	ix := index.New(true, unit)

	pa, err := analyze.Program(context.Background(), ix, unit, analyze.Options{Jobs: 1}, nil)
	if err != nil {
		t.Fatalf("Program: %v", err)
	}

	if got := pa.Funcs["leaf"].ReturnType; !got.Equals(types.IntVal(42)) {
		t.Fatalf("leaf return = %s, want Int=42", got)
	}
	if got := pa.Funcs["caller"].ReturnType; !got.Equals(types.IntVal(42)) {
		t.Fatalf("caller return = %s, refinement did not flow through the call", got)
	}
	if pa.Passes < 2 {
		t.Fatalf("Passes = %d, refinement needs at least two rounds", pa.Passes)
	}

	// Converged summaries are visible through the index too.
	fi, ok := ix.ResolveFunc("caller")
	if !ok {
		t.Fatal("caller missing from index")
	}
	if got := ix.ReturnType(fi); !got.Equals(types.IntVal(42)) {
		t.Fatalf("index summary = %s, want Int=42", got)
	}
}

func TestProgramMethods(t *testing.T) {
	method := &bc.Func{
		Name:      "get",
		Class:     "Box",
		NumParams: 1,
		NumLocals: 1,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.This(), bc.PopC(), bc.CGetL(0), bc.RetC()},
				Fallthrough: bc.NoBlockID,
			},
		},
	}
	unit := &bc.Unit{
		Name:    "u",
		Classes: []*bc.Class{{Name: "Box", Methods: []*bc.Func{method}}},
	}
	ix := index.New(true, unit)

	pa, err := analyze.Program(context.Background(), ix, unit, analyze.Options{}, nil)
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	res, ok := pa.Funcs["Box::get"]
	if !ok {
		t.Fatalf("method missing from results; have %d entries", len(pa.Funcs))
	}
	if res.RetParam != 0 {
		t.Fatalf("RetParam = %d, want 0", res.RetParam)
	}
}

func TestProgramEventSink(t *testing.T) {
	unit := &bc.Unit{Name: "u", Funcs: []*bc.Func{countFunc()}}
	ix := index.New(true, unit)

	ch := make(chan analyze.Event, 16)
	_, err := analyze.Program(context.Background(), ix, unit, analyze.Options{MaxPasses: 1}, analyze.ChannelSink{Ch: ch})
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	close(ch)

	var events []analyze.Event
	for ev := range ch {
		events = append(events, ev)
	}
	if len(events) != 1 {
		t.Fatalf("%d events, want 1", len(events))
	}
	if events[0].Pass != 1 || events[0].Func != "count" {
		t.Fatalf("event = %+v, want pass 1 of count", events[0])
	}
}

func TestProgramHonorsContextCancel(t *testing.T) {
	unit := &bc.Unit{Name: "u", Funcs: []*bc.Func{countFunc()}}
	ix := index.New(true, unit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := analyze.Program(ctx, ix, unit, analyze.Options{}, nil); err == nil {
		t.Fatal("cancelled context did not fail the analysis")
	}
}

func TestProgramStatistics(t *testing.T) {
	f := &bc.Func{
		Name:      "folds",
		NumLocals: 0,
		Entry:     0,
		Blocks: []bc.Block{
			{
				ID:          0,
				Code:        []bc.Bytecode{bc.Int(2), bc.Int(3), bc.FCall("add", 2, false), bc.RetC()},
				Fallthrough: bc.NoBlockID,
			},
		},
	}
	unit := &bc.Unit{Name: "u", Funcs: []*bc.Func{f}}
	ix := index.New(true, unit)

	pa, err := analyze.Program(context.Background(), ix, unit, analyze.Options{}, nil)
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if got := pa.Funcs["folds"].ReturnType; !got.Equals(types.IntVal(5)) {
		t.Fatalf("folded return = %s, want Int=5", got)
	}
	if pa.FoldedCalls == 0 {
		t.Fatal("folded call not counted")
	}
}
