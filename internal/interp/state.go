package interp

import (
	"fmt"
	"strings"

	"riptide/internal/bc"
	"riptide/internal/types"
)

// StackElem is one abstract operand-stack slot. EquivLocal, when not
// NoLocalID, names a local the value provably originated from and
// still equals; writes to that local kill the equivalence.
type StackElem struct {
	T          types.Type
	EquivLocal bc.LocalID
}

// State is the abstract machine state at a program point. It is
// exclusively owned by the block runner invocation acting on it; a
// Copy is what crosses block boundaries.
type State struct {
	Initialized bool

	Locals      []types.Type
	Stack       []StackElem
	ClsRefSlots []types.Type

	// ThisAvailable is true when the receiver object is known to be
	// bound at this point.
	ThisAvailable bool
}

// EntryState builds the abstract state at function entry: parameters
// hold arbitrary initialized cells, every other local is uninit.
func EntryState(f *bc.Func) *State {
	st := &State{
		Initialized: true,
		Locals:      make([]types.Type, f.NumLocals),
	}
	for i := range st.Locals {
		if uint32(i) < f.NumParams {
			st.Locals[i] = types.TInitCell
		} else {
			st.Locals[i] = types.TUninit
		}
	}
	st.ThisAvailable = f.Class != ""
	return st
}

// Copy returns a snapshot sharing nothing mutable with s.
func (s *State) Copy() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Initialized:   s.Initialized,
		ThisAvailable: s.ThisAvailable,
	}
	out.Locals = append([]types.Type(nil), s.Locals...)
	out.Stack = append([]StackElem(nil), s.Stack...)
	out.ClsRefSlots = append([]types.Type(nil), s.ClsRefSlots...)
	return out
}

// Join widens s to cover o as well, reporting whether s changed. The
// two states must describe the same program point: unequal stack
// depths are a contract violation in the CFG builder.
func (s *State) Join(o *State) bool {
	if o == nil || !o.Initialized {
		return false
	}
	if !s.Initialized {
		*s = *o.Copy()
		return true
	}
	if len(s.Stack) != len(o.Stack) {
		panic(fmt.Sprintf("interp: joining states with stack depths %d and %d", len(s.Stack), len(o.Stack)))
	}
	if len(s.Locals) != len(o.Locals) {
		panic(fmt.Sprintf("interp: joining states with %d and %d locals", len(s.Locals), len(o.Locals)))
	}

	changed := false
	for i := range s.Locals {
		u := types.Union(s.Locals[i], o.Locals[i])
		if !u.Equals(s.Locals[i]) {
			s.Locals[i] = u
			changed = true
		}
	}
	for i := range s.Stack {
		u := types.Union(s.Stack[i].T, o.Stack[i].T)
		if !u.Equals(s.Stack[i].T) {
			s.Stack[i].T = u
			changed = true
		}
		if s.Stack[i].EquivLocal != o.Stack[i].EquivLocal && s.Stack[i].EquivLocal != bc.NoLocalID {
			s.Stack[i].EquivLocal = bc.NoLocalID
			changed = true
		}
	}
	for len(s.ClsRefSlots) < len(o.ClsRefSlots) {
		s.ClsRefSlots = append(s.ClsRefSlots, types.TBottom)
	}
	for i := range o.ClsRefSlots {
		u := types.Union(s.ClsRefSlots[i], o.ClsRefSlots[i])
		if !u.Equals(s.ClsRefSlots[i]) {
			s.ClsRefSlots[i] = u
			changed = true
		}
	}
	if s.ThisAvailable && !o.ThisAvailable {
		s.ThisAvailable = false
		changed = true
	}
	return changed
}

// Equal reports whether two states are the same abstract state.
func (s *State) Equal(o *State) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Initialized != o.Initialized ||
		s.ThisAvailable != o.ThisAvailable ||
		len(s.Locals) != len(o.Locals) ||
		len(s.Stack) != len(o.Stack) ||
		len(s.ClsRefSlots) != len(o.ClsRefSlots) {
		return false
	}
	for i := range s.Locals {
		if !s.Locals[i].Equals(o.Locals[i]) {
			return false
		}
	}
	for i := range s.Stack {
		if !s.Stack[i].T.Equals(o.Stack[i].T) || s.Stack[i].EquivLocal != o.Stack[i].EquivLocal {
			return false
		}
	}
	for i := range s.ClsRefSlots {
		if !s.ClsRefSlots[i].Equals(o.ClsRefSlots[i]) {
			return false
		}
	}
	return true
}

func (s *State) String() string {
	if s == nil {
		return "<nil>"
	}
	if !s.Initialized {
		return "<unreachable>"
	}
	var b strings.Builder
	b.WriteString("locals[")
	for i, t := range s.Locals {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d:%s", i, t)
	}
	b.WriteString("] stack[")
	for i, e := range s.Stack {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.T.String())
		if e.EquivLocal != bc.NoLocalID {
			fmt.Fprintf(&b, "~$%d", e.EquivLocal)
		}
	}
	b.WriteString("]")
	return b.String()
}
