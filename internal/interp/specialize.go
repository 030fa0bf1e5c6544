package interp

import (
	"fortio.org/safecast"

	"riptide/internal/bc"
	"riptide/internal/index"
	"riptide/internal/types"
)

// fcall handles a named call: it tries the introspection shortcut,
// constant folding and the direct-builtin rewrite, in that order, and
// otherwise models the call conservatively through the index summary.
func fcall(e *iss, ca bc.CallArgs) {
	fn, ok := e.Index.ResolveFunc(ca.Func)
	if !ok {
		e.popN(ca.NumArgs)
		e.push(types.TTop)
		return
	}

	if fn.Name == index.FuncExistsName && !ca.Unpack {
		if handleFunctionExists(e, int(ca.NumArgs), true) {
			return
		}
	}

	if !ca.Unpack {
		if t, ok := constFold(e, ca.NumArgs, fn); ok {
			e.popN(ca.NumArgs)
			e.push(t)
			e.nothrow()
			e.constprop()
			e.Collect.FoldedCalls++
			return
		}
		if CanEmitBuiltinCall(fn, int(ca.NumArgs), ca.Unpack) {
			finishBuiltinCall(e, fn, ca.NumArgs, ca.Unpack)
			return
		}
	}

	e.popN(ca.NumArgs)
	e.push(e.Index.ReturnType(fn))
}

// fcallBuiltin models the direct builtin call form. Arguments that
// have become constants since the rewrite still fold here.
func fcallBuiltin(e *iss, ca bc.CallArgs) {
	fn, ok := e.Index.ResolveFunc(ca.Func)
	if !ok {
		e.popN(ca.NumArgs)
		e.push(types.TTop)
		return
	}
	if t, ok := constFold(e, ca.NumArgs, fn); ok {
		e.popN(ca.NumArgs)
		e.push(t)
		e.nothrow()
		e.constprop()
		e.Collect.FoldedCalls++
		return
	}
	e.popN(ca.NumArgs)
	e.push(e.Index.ReturnType(fn))
	if fn.Pure {
		e.effectFree()
	}
}

// CanEmitBuiltinCall reports whether a call site may be rewritten to
// the direct-builtin instruction form: the target must be a builtin
// and the argument shape must match its signature exactly, with no
// variadic unpacking ambiguity.
func CanEmitBuiltinCall(fn *index.FuncInfo, numParams int, hasUnpack bool) bool {
	if fn == nil || !fn.Builtin || hasUnpack || fn.Variadic {
		return false
	}
	n, err := safecast.Conv[uint32](numParams)
	if err != nil || n != fn.NumParams {
		return false
	}
	return fn.NumParams == fn.MinParams
}

// finishBuiltinCall rewrites an eligible call site to the direct
// builtin form: the call result takes the builtin's known return type
// and the rewrite is reported through StrengthReduced.
func finishBuiltinCall(e *iss, fn *index.FuncInfo, numParams uint32, unpack bool) {
	if unpack {
		return
	}
	e.reduce(bc.FCallBuiltin(fn.Name, numParams))
	e.popN(numParams)
	e.push(e.Index.ReturnType(fn))
	if fn.Pure {
		e.effectFree()
	}
}

// handleFunctionExists folds calls to the function_exists builtin when
// the queried name is a static string the index can answer. It reports
// whether the call site was handled.
func handleFunctionExists(e *iss, numArgs int, allowConstProp bool) bool {
	if numArgs != 1 {
		return false
	}
	v, ok := e.topC().ConstVal()
	if !ok || v.Kind != types.ValStr {
		return false
	}
	exists, known := e.Index.FuncExists(v.Str)
	if !known {
		return false
	}
	e.popC()
	e.push(types.BoolVal(exists))
	e.nothrow()
	if allowConstProp {
		e.constprop()
	}
	e.Collect.FoldedCalls++
	return true
}

// constFold evaluates a call to a pure foldable function whose
// arguments are all single concrete values in the current state. It
// never approximates: anything short of a provably side-effect-free,
// terminating evaluation yields no result. The state is not mutated;
// the caller rewrites the stack on success.
func constFold(e *iss, nArgs uint32, fn *index.FuncInfo) (types.Type, bool) {
	if fn == nil || !fn.Pure || fn.Fold == nil {
		return types.Type{}, false
	}
	if uint32(len(e.State.Stack)) < nArgs {
		return types.Type{}, false
	}
	args := make([]types.Value, nArgs)
	for i := range args {
		v, ok := e.argType(nArgs, i).ConstVal()
		if !ok {
			return types.Type{}, false
		}
		args[i] = v
	}
	v, ok := fn.Fold(args)
	if !ok {
		return types.Type{}, false
	}
	return types.FromValue(v), true
}

// ThisType determines the abstract type of the implicit receiver at
// the current point. The second result is false when the context has
// no statically-known bound receiver.
func ThisType(in *Interp) (types.Type, bool) {
	if in.Ctx.Class == nil || !in.State.ThisAvailable {
		return types.Type{}, false
	}
	return types.ObjOf(in.Ctx.Class.Name), true
}
