package interp

import (
	"sort"

	"riptide/internal/bc"
	"riptide/internal/types"
)

// CollectedInfo is the append-only accumulator shared across one
// function's whole analysis. Instruction handlers record findings that
// are not part of the per-point abstract state here: local-static type
// observations, re-analysis requests, and rewrite statistics.
type CollectedInfo struct {
	// staticTypes holds the union of every type each local static has
	// been observed to hold, indexed by local id.
	staticTypes []types.Type

	// deps maps a static local to the blocks whose results consulted
	// its type. Raising a static's type queues those blocks for
	// re-analysis.
	deps map[bc.LocalID]map[bc.BlockID]struct{}

	// reanalyze is the queue of stale blocks, drained by the block
	// runner and relayed to the driver as nil-state propagations.
	reanalyze []bc.BlockID

	// Rewrite statistics for reporting.
	FoldedCalls        int
	StrengthReductions int
}

// NewCollectedInfo returns an accumulator for one function.
func NewCollectedInfo(f *bc.Func) *CollectedInfo {
	ci := &CollectedInfo{
		deps: make(map[bc.LocalID]map[bc.BlockID]struct{}),
	}
	ci.staticTypes = make([]types.Type, f.NumLocals)
	return ci
}

// StaticType returns the current known type of a local static; TBottom
// until an initializer has been seen.
func (ci *CollectedInfo) StaticType(l bc.LocalID) types.Type {
	if l < 0 || int(l) >= len(ci.staticTypes) {
		return types.TTop
	}
	return ci.staticTypes[l]
}

// observeStatic records that blk's analysis consulted the static's
// current type.
func (ci *CollectedInfo) observeStatic(l bc.LocalID, blk bc.BlockID) types.Type {
	t := ci.StaticType(l)
	m, ok := ci.deps[l]
	if !ok {
		m = make(map[bc.BlockID]struct{})
		ci.deps[l] = m
	}
	m[blk] = struct{}{}
	return t
}

// raiseStatic widens a static's known type. If the type grows, every
// block that depended on the old type becomes stale.
func (ci *CollectedInfo) raiseStatic(l bc.LocalID, t types.Type) {
	if l < 0 || int(l) >= len(ci.staticTypes) {
		return
	}
	u := types.Union(ci.staticTypes[l], t)
	if u.Equals(ci.staticTypes[l]) {
		return
	}
	ci.staticTypes[l] = u
	stale := make([]bc.BlockID, 0, len(ci.deps[l]))
	for b := range ci.deps[l] {
		stale = append(stale, b)
	}
	// Deterministic relay order regardless of map iteration.
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	ci.reanalyze = append(ci.reanalyze, stale...)
}

// takeReanalyze drains the stale-block queue.
func (ci *CollectedInfo) takeReanalyze() []bc.BlockID {
	out := ci.reanalyze
	ci.reanalyze = nil
	return out
}
