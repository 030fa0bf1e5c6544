// Package index holds the whole-program summaries the abstract
// interpreter consults: function and class facts keyed by name. The
// index is immutable during an analysis pass; return-type refinement
// happens between passes, under a lock, driven by the analyzer.
package index

import (
	"sync"

	"riptide/internal/bc"
	"riptide/internal/types"
)

// FuncInfo summarizes one resolvable function.
type FuncInfo struct {
	Name      string
	NumParams uint32
	MinParams uint32
	Variadic  bool

	// Builtin marks native functions eligible for the direct
	// FCallBuiltin instruction form.
	Builtin bool

	// Pure marks functions whose calls have no observable side effect
	// besides their result. Only pure functions may be const-folded.
	Pure bool

	// Fold evaluates a call with all-constant arguments. Nil when the
	// function cannot be folded at compile time.
	Fold func(args []types.Value) (types.Value, bool)

	returnType types.Type
}

// ClassInfo summarizes one class declaration.
type ClassInfo struct {
	Name    string
	Parent  string
	Methods map[string]*FuncInfo
}

// Index is the read-only oracle over all loaded units.
type Index struct {
	mu      sync.RWMutex
	funcs   map[string]*FuncInfo
	classes map[string]*ClassInfo

	// complete is true when every unit of the program has been loaded,
	// so absence of a name proves the function does not exist.
	complete bool
}

// New builds an index over the given units, seeded with the native
// builtin registry. complete declares whether the units form the whole
// program.
func New(complete bool, units ...*bc.Unit) *Index {
	ix := &Index{
		funcs:    make(map[string]*FuncInfo),
		classes:  make(map[string]*ClassInfo),
		complete: complete,
	}
	for name, fi := range natives {
		ix.funcs[name] = fi
	}
	for _, u := range units {
		ix.addUnit(u)
	}
	return ix
}

func (ix *Index) addUnit(u *bc.Unit) {
	if u == nil {
		return
	}
	for _, f := range u.Funcs {
		ix.funcs[f.Name] = summarize(f)
	}
	for _, c := range u.Classes {
		ci := &ClassInfo{
			Name:    c.Name,
			Parent:  c.Parent,
			Methods: make(map[string]*FuncInfo, len(c.Methods)),
		}
		for _, m := range c.Methods {
			ci.Methods[m.Name] = summarize(m)
		}
		ix.classes[c.Name] = ci
	}
}

func summarize(f *bc.Func) *FuncInfo {
	return &FuncInfo{
		Name:      f.Name,
		NumParams: f.NumParams,
		MinParams: f.NumParams,
		// Nothing is known about a unit function's return until the
		// analyzer has visited it.
		returnType: types.TTop,
	}
}

// ResolveFunc looks up a function summary by name.
func (ix *Index) ResolveFunc(name string) (*FuncInfo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	fi, ok := ix.funcs[name]
	return fi, ok
}

// ResolveClass looks up a class summary by name.
func (ix *Index) ResolveClass(name string) (*ClassInfo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ci, ok := ix.classes[name]
	return ci, ok
}

// FuncExists answers the function_exists introspection builtin. The
// second result reports whether the index can answer at all: a partial
// index can confirm presence but never absence.
func (ix *Index) FuncExists(name string) (exists, known bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if _, ok := ix.funcs[name]; ok {
		return true, true
	}
	return false, ix.complete
}

// ReturnType returns the current best known return type of fn.
func (ix *Index) ReturnType(fn *FuncInfo) types.Type {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return fn.returnType
}

// RefineReturn narrows a function's return type between analysis
// passes. Widening is refused so repeated passes converge; it reports
// whether the summary changed.
func (ix *Index) RefineReturn(fn *FuncInfo, t types.Type) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if t.Equals(fn.returnType) || !t.Subtype(fn.returnType) {
		return false
	}
	fn.returnType = t
	return true
}
