package interp

import (
	"fmt"

	"riptide/internal/bc"
	"riptide/internal/types"
)

// iss is the interpreter step state: the Interp context plus the flags
// being built for the current instruction. All state access from opcode
// handlers goes through iss accessors, which is what keeps
// MayReadLocalSet and the conservative flag defaults enforced in one
// place instead of in every handler.
type iss struct {
	*Interp
	flags *StepFlags

	// persistent is set when the step wrote state that outlives the
	// current call (a function-local static). Such a step is never
	// effect-free or const-proppable, whatever the handler proves
	// about the value it computed.
	persistent bool

	// propagate forwards states to non-fallthrough successors for
	// instructions with more than one reachable target (conditional
	// branches). A bare Step call wires a no-op here.
	propagate func(bc.BlockID, *State)
}

// Flag relaxations. Handlers call these only for effects they have
// proven; the defaults are conservative.

func (e *iss) nothrow() { e.flags.WasPEI = false }

func (e *iss) constprop() {
	if e.persistent {
		return
	}
	e.flags.CanConstProp = true
}

func (e *iss) effectFree() {
	if e.persistent {
		return
	}
	e.flags.EffectFree = true
}

// terminal marks a step that never completes: control transfers to the
// block's throw edges (or out of the function) and nothing after the
// instruction is reachable.
func (e *iss) terminal() { e.flags.Terminal = true }

func (e *iss) jmp(b bc.BlockID) { e.flags.JmpDest = b }

func (e *iss) reduce(ops ...bc.Bytecode) {
	e.flags.StrengthReduced = ops
	if e.Collect != nil {
		e.Collect.StrengthReductions++
	}
}

func (e *iss) doReturn(t types.Type, param bc.LocalID) {
	e.flags.Returned = t
	e.flags.HasReturned = true
	e.flags.RetParam = param
}

// Stack access.

func (e *iss) push(t types.Type) {
	e.State.Stack = append(e.State.Stack, StackElem{T: t, EquivLocal: bc.NoLocalID})
}

func (e *iss) pushEquiv(t types.Type, l bc.LocalID) {
	e.State.Stack = append(e.State.Stack, StackElem{T: t, EquivLocal: l})
}

func (e *iss) popC() types.Type {
	return e.popElem().T
}

func (e *iss) popElem() StackElem {
	st := e.State
	if len(st.Stack) == 0 {
		panic(fmt.Sprintf("interp: %s: pop on empty abstract stack", e.Ctx.Func.Name))
	}
	el := st.Stack[len(st.Stack)-1]
	st.Stack = st.Stack[:len(st.Stack)-1]
	return el
}

func (e *iss) topC() types.Type {
	return e.topElem().T
}

func (e *iss) topElem() StackElem {
	st := e.State
	if len(st.Stack) == 0 {
		panic(fmt.Sprintf("interp: %s: top on empty abstract stack", e.Ctx.Func.Name))
	}
	return st.Stack[len(st.Stack)-1]
}

// argType returns the type of the i-th of n call arguments counted in
// push order (argument 0 is deepest).
func (e *iss) argType(n uint32, i int) types.Type {
	st := e.State
	if uint32(len(st.Stack)) < n {
		panic(fmt.Sprintf("interp: %s: %d call args on stack of depth %d", e.Ctx.Func.Name, n, len(st.Stack)))
	}
	return st.Stack[len(st.Stack)-int(n)+i].T
}

func (e *iss) popN(n uint32) {
	for range n {
		e.popC()
	}
}

// Local access.

// readLocal records a local in the conservative may-read set.
func (e *iss) readLocal(l bc.LocalID) {
	e.flags.MayReadLocalSet.Set(l)
}

// locRaw returns the local's tracked type, marking it read.
func (e *iss) locRaw(l bc.LocalID) types.Type {
	e.readLocal(l)
	if l < 0 || int(l) >= len(e.State.Locals) {
		panic(fmt.Sprintf("interp: %s: local $%d out of range", e.Ctx.Func.Name, l))
	}
	return e.State.Locals[l]
}

// locAsCell returns the local's type as an ordinary cell, widening the
// special constant markers, which are not type-tracked.
func (e *iss) locAsCell(l bc.LocalID) types.Type {
	t := e.locRaw(l)
	if t.IsMarker() {
		return types.TInitCell
	}
	return t
}

// setLoc writes a local. Writes are recorded in the may-read set as
// well since consumers use it as a conservative mention set; stack
// equivalences to the old value die here. Writes to local statics
// raise the static's observed type and pin the step's effect flags,
// since the write survives the call.
func (e *iss) setLoc(l bc.LocalID, t types.Type) {
	e.readLocal(l)
	if l < 0 || int(l) >= len(e.State.Locals) {
		panic(fmt.Sprintf("interp: %s: local $%d out of range", e.Ctx.Func.Name, l))
	}
	e.killLocEquiv(l)
	e.State.Locals[l] = t
	if e.Ctx.Func.IsStatic(l) {
		e.persistent = true
		if e.Collect != nil {
			e.Collect.raiseStatic(l, t)
		}
	}
}

// killLocEquiv forgets any stack slot's equivalence to the local.
func (e *iss) killLocEquiv(l bc.LocalID) {
	for i := range e.State.Stack {
		if e.State.Stack[i].EquivLocal == l {
			e.State.Stack[i].EquivLocal = bc.NoLocalID
		}
	}
}

// useStatic notes that the step consulted a static's current type,
// recording the observation both in the step flags and in the shared
// accumulator for re-analysis triggering.
func (e *iss) useStatic(l bc.LocalID) types.Type {
	blk := bc.NoBlockID
	if e.Blk != nil {
		blk = e.Blk.ID
	}
	t := e.Collect.observeStatic(l, blk)
	if e.flags.UsedLocalStatics == nil {
		e.flags.UsedLocalStatics = make(map[bc.LocalID]types.Type)
	}
	e.flags.UsedLocalStatics[l] = t
	return t
}

// Class-ref slot access. Slots past the tracked limit are not modeled.

func (e *iss) putSlot(s bc.ClsRefSlot, t types.Type) {
	if s < 0 || s >= MaxTrackedClsRefSlots {
		return
	}
	for int(s) >= len(e.State.ClsRefSlots) {
		e.State.ClsRefSlots = append(e.State.ClsRefSlots, types.TBottom)
	}
	e.State.ClsRefSlots[s] = t
}

func (e *iss) takeSlot(s bc.ClsRefSlot) types.Type {
	if s < 0 || s >= MaxTrackedClsRefSlots || int(s) >= len(e.State.ClsRefSlots) {
		return types.TCls
	}
	t := e.State.ClsRefSlots[s]
	e.State.ClsRefSlots[s] = types.TBottom
	if t.IsBottom() {
		return types.TCls
	}
	return t
}
