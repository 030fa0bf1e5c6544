package interp

import (
	"riptide/internal/bc"
	"riptide/internal/types"
)

// Tracking limits. Locals and class-ref slots past these ids are not
// tracked: consumers must assume untracked locals are always read and
// untracked slots always hold an arbitrary class.
const (
	MaxTrackedLocals      = 512
	MaxTrackedClsRefSlots = 64
)

// LocalBitset is a fixed bitset over the tracked local ids.
type LocalBitset [MaxTrackedLocals / 64]uint64

// Set marks a local as mentioned. Ids outside the tracked range are
// ignored; they are implicitly always in the set.
func (s *LocalBitset) Set(l bc.LocalID) {
	if l < 0 || l >= MaxTrackedLocals {
		return
	}
	s[l/64] |= 1 << (uint(l) % 64)
}

// Has reports whether a tracked local is in the set.
func (s *LocalBitset) Has(l bc.LocalID) bool {
	if l < 0 || l >= MaxTrackedLocals {
		return true
	}
	return s[l/64]&(1<<(uint(l)%64)) != 0
}

// Or merges another set into s.
func (s *LocalBitset) Or(o LocalBitset) {
	for i := range s {
		s[i] |= o[i]
	}
}

// Empty reports whether no tracked local is in the set.
func (s LocalBitset) Empty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

// StepFlags reports the effects of abstractly executing a single
// instruction. Every field defaults to its conservative value; opcode
// handlers only ever relax them, so a handler that forgets a case
// degrades to soundness rather than unsoundness.
type StepFlags struct {
	// WasPEI marks a potentially exception-throwing instruction. A PEI
	// must propagate the state from before the instruction across all
	// throw edges of the enclosing block.
	WasPEI bool

	// JmpDest, when not NoBlockID, says the instruction
	// unconditionally transferred control to that block; nothing after
	// it in the block is reachable.
	JmpDest bc.BlockID

	// Terminal marks an instruction that never completes: control
	// leaves through the enclosing block's throw edges (or out of the
	// function) and nothing after it in the block is reachable.
	Terminal bool

	// CanConstProp means that if the instruction pushed a constant
	// value it had no side effect besides computing it, so it can be
	// replaced with pops of its inputs and a push of the constant.
	CanConstProp bool

	// EffectFree means the instruction does not prevent a call to the
	// containing function from being discarded when its result is
	// unused. Instructions marked CanConstProp that produce a constant
	// result get this automatically.
	EffectFree bool

	// MayReadLocalSet conservatively over-approximates the locals the
	// instruction may read. Locals past MaxTrackedLocals are assumed
	// always read.
	MayReadLocalSet LocalBitset

	// StrengthReduced, when non-nil, is a cheaper replacement sequence
	// proven equivalent under the current state.
	StrengthReduced []bc.Bytecode

	// Returned is set when this step executed a return, with the
	// returned type.
	Returned    types.Type
	HasReturned bool

	// RetParam identifies the returned value's originating local when
	// it is exactly one parameter; NoLocalID otherwise.
	RetParam bc.LocalID

	// UsedLocalStatics maps local statics whose current type this
	// instruction consulted to the type that was used. The analyzer
	// re-runs dependent blocks when a static's type changes.
	UsedLocalStatics map[bc.LocalID]types.Type
}

// newStepFlags returns flags with every field at its safe default.
func newStepFlags() StepFlags {
	return StepFlags{
		WasPEI:   true,
		JmpDest:  bc.NoBlockID,
		RetParam: bc.NoLocalID,
	}
}

// RunFlags aggregates the per-step return information over a whole
// block run.
type RunFlags struct {
	// Returned is set if some instruction in the block executed a
	// return, with the union of the returned types.
	Returned    types.Type
	HasReturned bool

	// RetParam is the single parameter every return in the block
	// echoed, or NoLocalID.
	RetParam bc.LocalID

	// UsedLocalStatics is the union of the per-step observations.
	UsedLocalStatics map[bc.LocalID]types.Type
}
