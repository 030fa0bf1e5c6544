package interp

import (
	"testing"

	"riptide/internal/bc"
)

func TestLocalBitsetSetHas(t *testing.T) {
	var s LocalBitset
	if !s.Empty() {
		t.Fatal("fresh bitset not empty")
	}

	ids := []bc.LocalID{0, 1, 63, 64, 127, 511}
	for _, l := range ids {
		s.Set(l)
	}
	for _, l := range ids {
		if !s.Has(l) {
			t.Errorf("local $%d not in set after Set", l)
		}
	}
	for _, l := range []bc.LocalID{2, 62, 65, 510} {
		if s.Has(l) {
			t.Errorf("local $%d unexpectedly in set", l)
		}
	}
	if s.Empty() {
		t.Fatal("non-empty bitset reported Empty")
	}
}

func TestLocalBitsetUntrackedAlwaysRead(t *testing.T) {
	var s LocalBitset
	// Ids past the tracked range are implicitly in every set; Set on
	// them must not write out of bounds.
	s.Set(MaxTrackedLocals)
	s.Set(MaxTrackedLocals + 100)
	if !s.Empty() {
		t.Fatal("out-of-range Set mutated tracked bits")
	}
	if !s.Has(MaxTrackedLocals) {
		t.Fatal("untracked local must always report as read")
	}
	if !s.Has(bc.NoLocalID) {
		t.Fatal("negative local must always report as read")
	}
}

func TestLocalBitsetOr(t *testing.T) {
	var a, b LocalBitset
	a.Set(3)
	b.Set(200)
	a.Or(b)
	if !a.Has(3) || !a.Has(200) {
		t.Fatalf("Or lost bits: has(3)=%v has(200)=%v", a.Has(3), a.Has(200))
	}
	if b.Has(3) {
		t.Fatal("Or mutated its operand")
	}
}

func TestNewStepFlagsConservativeDefaults(t *testing.T) {
	f := newStepFlags()
	if !f.WasPEI {
		t.Error("WasPEI must default to true")
	}
	if f.JmpDest != bc.NoBlockID {
		t.Errorf("JmpDest = %d, want NoBlockID", f.JmpDest)
	}
	if f.RetParam != bc.NoLocalID {
		t.Errorf("RetParam = %d, want NoLocalID", f.RetParam)
	}
	if f.CanConstProp || f.EffectFree || f.HasReturned {
		t.Error("relaxation flags must default to false")
	}
	if !f.MayReadLocalSet.Empty() {
		t.Error("MayReadLocalSet must start empty")
	}
}
