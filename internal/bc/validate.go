package bc

import (
	"errors"
	"fmt"
)

// Validate checks unit invariants. A unit that fails validation is a
// contract violation in whatever built it; the analysis never runs on
// one.
func Validate(u *Unit) error {
	if u == nil {
		return nil
	}
	var errs []error
	for _, f := range u.AllFuncs() {
		if f == nil {
			continue
		}
		if err := validateFunc(f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func validateFunc(f *Func) error {
	var errs []error

	if f.NumParams > f.NumLocals {
		errs = append(errs, fmt.Errorf("%d params exceed %d locals", f.NumParams, f.NumLocals))
	}
	if f.Block(f.Entry) == nil {
		errs = append(errs, fmt.Errorf("entry block b%d does not exist", f.Entry))
	}
	for _, s := range f.Statics {
		if s < 0 || uint32(s) >= f.NumLocals {
			errs = append(errs, fmt.Errorf("static local $%d out of range", s))
		}
	}

	for i := range f.Blocks {
		blk := &f.Blocks[i]
		if blk.ID != BlockID(i) {
			errs = append(errs, fmt.Errorf("block at index %d has id b%d", i, blk.ID))
		}
		if err := validateBlock(f, blk); err != nil {
			errs = append(errs, fmt.Errorf("b%d: %w", blk.ID, err))
		}
	}
	return errors.Join(errs...)
}

func validateBlock(f *Func, blk *Block) error {
	var errs []error

	checkTarget := func(what string, id BlockID) {
		if f.Block(id) == nil {
			errs = append(errs, fmt.Errorf("%s references undeclared block b%d", what, id))
		}
	}
	checkLocal := func(what string, l LocalID) {
		if l < 0 || uint32(l) >= f.NumLocals {
			errs = append(errs, fmt.Errorf("%s references local $%d beyond %d declared locals", what, l, f.NumLocals))
		}
	}

	if blk.Fallthrough != NoBlockID {
		checkTarget("fallthrough", blk.Fallthrough)
	}
	for _, t := range blk.Throw {
		checkTarget("throw edge", t)
	}

	for i := range blk.Code {
		op := &blk.Code[i]
		switch op.Op {
		case OpCGetL, OpSetL, OpPushL, OpUnsetL, OpIsTypeL:
			checkLocal(op.String(), op.Local)
		case OpStaticLocInit, OpStaticLocGet:
			checkLocal(op.String(), op.Local)
			if !f.IsStatic(op.Local) {
				errs = append(errs, fmt.Errorf("%s on non-static local", op))
			}
		case OpJmp, OpJmpZ, OpJmpNZ:
			checkTarget(op.String(), op.Target)
		case OpClsRefGetC, OpClsRefName:
			if op.Slot < 0 {
				errs = append(errs, fmt.Errorf("%s has negative slot", op))
			}
		}
	}
	return errors.Join(errs...)
}
