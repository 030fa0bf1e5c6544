// Package bc defines the bytecode program representation the optimizer
// analyzes: instructions, basic blocks with explicit fallthrough and
// throw edges, functions, classes and units.
package bc

// Block is an ordered, finite sequence of instructions plus outgoing
// edge metadata. Branch targets live in the branch instructions
// themselves; Fallthrough is the successor reached when the block runs
// off its end, and Throw lists the exception handlers covering every
// instruction of the block.
type Block struct {
	ID          BlockID
	Code        []Bytecode
	Fallthrough BlockID
	Throw       []BlockID
}

// HasThrowEdges reports whether any exception handler covers the block.
func (b *Block) HasThrowEdges() bool { return len(b.Throw) > 0 }

// Func is one function's control-flow graph of bytecode blocks.
type Func struct {
	Name string
	// Class is the enclosing class name for methods, empty for free
	// functions.
	Class string

	NumParams uint32
	NumLocals uint32

	// Statics lists the locals that are function-local statics: their
	// cells persist across calls.
	Statics []LocalID

	Entry  BlockID
	Blocks []Block
}

// IsStatic reports whether the local is a function-local static.
func (f *Func) IsStatic(l LocalID) bool {
	for _, s := range f.Statics {
		if s == l {
			return true
		}
	}
	return false
}

// Block returns the block with the given id, or nil.
func (f *Func) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// Class groups the methods of one class declaration.
type Class struct {
	Name    string
	Parent  string
	Methods []*Func
}

// Unit is a compiled translation unit: the whole-program optimizer
// loads many of these and analyzes them together.
type Unit struct {
	Name    string
	Funcs   []*Func
	Classes []*Class
}

// AllFuncs returns every function in the unit, methods included.
func (u *Unit) AllFuncs() []*Func {
	out := make([]*Func, 0, len(u.Funcs))
	out = append(out, u.Funcs...)
	for _, c := range u.Classes {
		out = append(out, c.Methods...)
	}
	return out
}
