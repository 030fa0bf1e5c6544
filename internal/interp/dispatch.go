package interp

import (
	"fmt"

	"riptide/internal/bc"
	"riptide/internal/types"
)

// dispatch runs the abstract semantics for one instruction. Handlers
// leave the state reflecting the point just after the instruction on
// the no-exception path; flag relaxations happen only where proven.
func dispatch(e *iss, op bc.Bytecode) {
	switch op.Op {
	case bc.OpNop:
		e.nothrow()
		e.effectFree()

	case bc.OpInt:
		e.push(types.IntVal(op.Int))
		e.nothrow()
		e.constprop()
	case bc.OpDbl:
		e.push(types.DblVal(op.Dbl))
		e.nothrow()
		e.constprop()
	case bc.OpStr:
		e.push(types.StrVal(op.Str))
		e.nothrow()
		e.constprop()
	case bc.OpTrue:
		e.push(types.TTrue)
		e.nothrow()
		e.constprop()
	case bc.OpFalse:
		e.push(types.TFalse)
		e.nothrow()
		e.constprop()
	case bc.OpNull:
		e.push(types.TNull)
		e.nothrow()
		e.constprop()

	case bc.OpPopC:
		e.popC()
		e.nothrow()
		e.effectFree()

	case bc.OpDup:
		el := e.topElem()
		e.pushEquiv(el.T, el.EquivLocal)
		e.nothrow()
		e.effectFree()
		e.constprop()

	case bc.OpNot:
		t := e.popC()
		if tv, known := t.Truthiness(); known {
			e.push(types.BoolVal(!tv))
		} else {
			e.push(types.TBool)
		}
		e.nothrow()
		e.effectFree()
		e.constprop()

	case bc.OpAdd, bc.OpSub, bc.OpMul, bc.OpDiv, bc.OpMod:
		arith(e, op.Op)

	case bc.OpConcat:
		concat(e)

	case bc.OpSame, bc.OpNSame:
		t2, t1 := e.popC(), e.popC()
		v1, ok1 := t1.ConstVal()
		v2, ok2 := t2.ConstVal()
		switch {
		case ok1 && ok2:
			eq := v1.Equal(v2)
			if op.Op == bc.OpNSame {
				eq = !eq
			}
			e.push(types.BoolVal(eq))
		case !t1.Couldbe(t2):
			e.push(types.BoolVal(op.Op == bc.OpNSame))
		default:
			e.push(types.TBool)
		}
		e.nothrow()
		e.effectFree()
		e.constprop()

	case bc.OpLt, bc.OpGt:
		cmp(e, op.Op)

	case bc.OpCGetL:
		t := e.locAsCell(op.Local)
		if t.Couldbe(types.TUninit) {
			// Reading an undefined local completes with null after a
			// runtime notice, which can escalate.
			e.push(types.Union(types.TNull, t.StripUninit()))
		} else {
			e.pushEquiv(t, op.Local)
			e.nothrow()
			e.effectFree()
			e.constprop()
		}

	case bc.OpSetL:
		t := e.topC()
		e.setLoc(op.Local, t)
		e.State.Stack[len(e.State.Stack)-1].EquivLocal = op.Local
		e.nothrow()
		e.effectFree()

	case bc.OpPushL:
		t := e.locAsCell(op.Local)
		couldBeUninit := t.Couldbe(types.TUninit)
		e.setLoc(op.Local, types.TUninit)
		if couldBeUninit {
			e.push(types.Union(types.TNull, t.StripUninit()))
		} else {
			e.push(t)
			e.nothrow()
			e.effectFree()
		}

	case bc.OpUnsetL:
		e.setLoc(op.Local, types.TUninit)
		e.nothrow()
		e.effectFree()

	case bc.OpIsTypeL:
		isTypeL(e, op.Local, op.Pred)

	case bc.OpJmp:
		e.jmp(op.Target)
		e.nothrow()
		e.effectFree()

	case bc.OpJmpZ:
		jmpCond(e, op.Target, false)
	case bc.OpJmpNZ:
		jmpCond(e, op.Target, true)

	case bc.OpThrow:
		// Transfers to the throw edges; the no-exception path does not
		// exist.
		e.popC()
		e.terminal()

	case bc.OpRetC:
		el := e.popElem()
		param := bc.NoLocalID
		if el.EquivLocal != bc.NoLocalID && uint32(el.EquivLocal) < e.Ctx.Func.NumParams {
			param = el.EquivLocal
		}
		e.doReturn(el.T, param)
		e.nothrow()
		e.effectFree()

	case bc.OpFCall:
		fcall(e, op.Call)

	case bc.OpFCallBuiltin:
		fcallBuiltin(e, op.Call)

	case bc.OpThis:
		if t, ok := ThisType(e.Interp); ok {
			e.push(t)
		} else {
			e.push(types.TObj)
		}
		if e.State.ThisAvailable {
			e.nothrow()
			e.effectFree()
		}
		// Completing proves the receiver was bound.
		e.State.ThisAvailable = true

	case bc.OpClsRefGetC:
		t := e.popC()
		if v, ok := t.ConstVal(); ok && v.Kind == types.ValStr {
			if _, resolved := e.Index.ResolveClass(v.Str); resolved {
				e.putSlot(op.Slot, types.ClsVal(v.Str))
				e.nothrow()
				return
			}
		}
		e.putSlot(op.Slot, types.TCls)

	case bc.OpClsRefName:
		t := e.takeSlot(op.Slot)
		if v, ok := t.ConstVal(); ok && v.Kind == types.ValCls {
			e.push(types.StrVal(v.Str))
		} else {
			e.push(types.TStr)
		}
		e.nothrow()
		e.constprop()

	case bc.OpStaticLocInit:
		init := e.popC()
		e.Collect.raiseStatic(op.Local, init)
		cur := e.useStatic(op.Local)
		e.setLoc(op.Local, cur)
		e.nothrow()

	case bc.OpStaticLocGet:
		t := e.useStatic(op.Local)
		e.readLocal(op.Local)
		if t.IsBottom() {
			// No initializer observed yet on any path.
			e.push(types.TInitCell)
		} else {
			e.push(t)
		}
		e.nothrow()

	default:
		panic(fmt.Sprintf("interp: no abstract semantics for opcode %s", op.Op))
	}
}

func arith(e *iss, op bc.Op) {
	t2, t1 := e.popC(), e.popC()
	v1, ok1 := t1.ConstVal()
	v2, ok2 := t2.ConstVal()
	if ok1 && ok2 {
		if v, ok := evalArith(op, v1, v2); ok {
			e.push(types.FromValue(v))
			e.nothrow()
			e.effectFree()
			e.constprop()
			return
		}
	}
	numeric := t1.Subtype(types.TNum) && t2.Subtype(types.TNum)
	switch op {
	case bc.OpMod:
		e.push(types.TInt)
	default:
		e.push(types.TNum)
	}
	// Division and modulus fault on a zero divisor; the other three
	// fault only on non-numeric operands.
	if numeric && op != bc.OpDiv && op != bc.OpMod {
		e.nothrow()
		e.effectFree()
	}
}

func evalArith(op bc.Op, v1, v2 types.Value) (types.Value, bool) {
	if v1.Kind == types.ValInt && v2.Kind == types.ValInt {
		a, b := v1.Int, v2.Int
		switch op {
		case bc.OpAdd:
			if sum := a + b; (sum > a) == (b > 0) || b == 0 {
				return types.IntV(sum), true
			}
			return types.DblV(float64(a) + float64(b)), true
		case bc.OpSub:
			if diff := a - b; (diff < a) == (b > 0) || b == 0 {
				return types.IntV(diff), true
			}
			return types.DblV(float64(a) - float64(b)), true
		case bc.OpMul:
			p := a * b
			if a != 0 && (p/a != b || (a == -1 && b == minInt64)) {
				return types.DblV(float64(a) * float64(b)), true
			}
			return types.IntV(p), true
		case bc.OpDiv:
			if b == 0 {
				return types.Value{}, false
			}
			if a%b == 0 {
				return types.IntV(a / b), true
			}
			return types.DblV(float64(a) / float64(b)), true
		case bc.OpMod:
			if b == 0 {
				return types.Value{}, false
			}
			return types.IntV(a % b), true
		}
		return types.Value{}, false
	}

	a, okA := asDbl(v1)
	b, okB := asDbl(v2)
	if !okA || !okB {
		return types.Value{}, false
	}
	switch op {
	case bc.OpAdd:
		return types.DblV(a + b), true
	case bc.OpSub:
		return types.DblV(a - b), true
	case bc.OpMul:
		return types.DblV(a * b), true
	case bc.OpDiv:
		if b == 0 {
			return types.Value{}, false
		}
		return types.DblV(a / b), true
	}
	return types.Value{}, false
}

const minInt64 = -1 << 63

func asDbl(v types.Value) (float64, bool) {
	switch v.Kind {
	case types.ValInt:
		return float64(v.Int), true
	case types.ValDbl:
		return v.Dbl, true
	}
	return 0, false
}

func concat(e *iss) {
	t2, t1 := e.popC(), e.popC()
	v1, ok1 := t1.ConstVal()
	v2, ok2 := t2.ConstVal()
	if ok1 && ok2 {
		s1, okS1 := asStr(v1)
		s2, okS2 := asStr(v2)
		if okS1 && okS2 {
			e.push(types.StrVal(s1 + s2))
			e.nothrow()
			e.effectFree()
			e.constprop()
			return
		}
	}
	e.push(types.TStr)
	stringish := types.Union(types.TStr, types.TNum)
	if t1.Subtype(stringish) && t2.Subtype(stringish) {
		e.nothrow()
		e.effectFree()
	}
}

func asStr(v types.Value) (string, bool) {
	switch v.Kind {
	case types.ValStr:
		return v.Str, true
	case types.ValInt:
		return fmt.Sprintf("%d", v.Int), true
	case types.ValDbl:
		return fmt.Sprintf("%g", v.Dbl), true
	case types.ValNull:
		return "", true
	case types.ValBool:
		if v.Bool {
			return "1", true
		}
		return "", true
	}
	return "", false
}

func cmp(e *iss, op bc.Op) {
	t2, t1 := e.popC(), e.popC()
	v1, ok1 := t1.ConstVal()
	v2, ok2 := t2.ConstVal()
	if ok1 && ok2 {
		if lt, ok := evalLess(v1, v2); ok {
			res := lt
			if op == bc.OpGt {
				gt, _ := evalLess(v2, v1)
				res = gt
			}
			e.push(types.BoolVal(res))
			e.nothrow()
			e.effectFree()
			e.constprop()
			return
		}
	}
	e.push(types.TBool)
	comparable := (t1.Subtype(types.TNum) && t2.Subtype(types.TNum)) ||
		(t1.Subtype(types.TStr) && t2.Subtype(types.TStr))
	if comparable {
		e.nothrow()
		e.effectFree()
	}
}

func evalLess(v1, v2 types.Value) (bool, bool) {
	if v1.Kind == types.ValStr && v2.Kind == types.ValStr {
		return v1.Str < v2.Str, true
	}
	a, okA := asDbl(v1)
	b, okB := asDbl(v2)
	if okA && okB {
		return a < b, true
	}
	return false, false
}

var predTypes = map[bc.TypePred]types.Type{
	bc.PredNull: types.TNull,
	bc.PredBool: types.TBool,
	bc.PredInt:  types.TInt,
	bc.PredDbl:  types.TDbl,
	bc.PredStr:  types.TStr,
	bc.PredArr:  types.TArr,
	bc.PredObj:  types.TObj,
}

func isTypeL(e *iss, l bc.LocalID, pred bc.TypePred) {
	t := e.locAsCell(l)
	pt, ok := predTypes[pred]
	if !ok {
		e.push(types.TBool)
		return
	}
	maybeUninit := t.Couldbe(types.TUninit)
	tt := t.StripUninit()
	// Undefined locals answer null-checks as true and every other
	// predicate as false.
	uninitAnswer := pred == bc.PredNull
	definedTrue := !tt.IsBottom() && tt.Subtype(pt)
	definedFalse := !tt.Couldbe(pt)
	switch {
	case definedTrue && (!maybeUninit || uninitAnswer):
		e.push(types.TTrue)
	case tt.IsBottom() && maybeUninit:
		e.push(types.BoolVal(uninitAnswer))
	case definedFalse && (!maybeUninit || !uninitAnswer):
		e.push(types.TFalse)
	default:
		e.push(types.TBool)
	}
	e.nothrow()
	e.effectFree()
	e.constprop()
}

func jmpCond(e *iss, target bc.BlockID, takenWhenTruthy bool) {
	t := e.popC()
	e.nothrow()
	e.effectFree()
	if tv, known := t.Truthiness(); known {
		if tv == takenWhenTruthy {
			e.jmp(target)
			e.reduce(bc.PopC(), bc.Jmp(target))
		} else {
			// Branch never taken: plain fallthrough.
			e.reduce(bc.PopC())
		}
		return
	}
	e.propagate(target, e.State)
}
