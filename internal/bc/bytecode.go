package bc

import (
	"fmt"
	"strconv"
)

// CallArgs is the payload of the call instructions.
type CallArgs struct {
	Func    string
	NumArgs uint32
	Unpack  bool
}

// Bytecode is one instruction: an opcode plus its immediate payload.
// Which payload fields are meaningful is determined by Op.
type Bytecode struct {
	Op Op

	Int    int64
	Dbl    float64
	Str    string
	Local  LocalID
	Target BlockID
	Slot   ClsRefSlot
	Pred   TypePred
	Call   CallArgs
}

// Instruction makers, used by CFG builders, strength reduction and
// tests.

func Nop() Bytecode             { return Bytecode{Op: OpNop} }
func Int(n int64) Bytecode      { return Bytecode{Op: OpInt, Int: n} }
func Dbl(d float64) Bytecode    { return Bytecode{Op: OpDbl, Dbl: d} }
func Str(s string) Bytecode     { return Bytecode{Op: OpStr, Str: s} }
func True() Bytecode            { return Bytecode{Op: OpTrue} }
func False() Bytecode           { return Bytecode{Op: OpFalse} }
func Null() Bytecode            { return Bytecode{Op: OpNull} }
func PopC() Bytecode            { return Bytecode{Op: OpPopC} }
func Dup() Bytecode             { return Bytecode{Op: OpDup} }
func Not() Bytecode             { return Bytecode{Op: OpNot} }
func Add() Bytecode             { return Bytecode{Op: OpAdd} }
func Sub() Bytecode             { return Bytecode{Op: OpSub} }
func Mul() Bytecode             { return Bytecode{Op: OpMul} }
func Div() Bytecode             { return Bytecode{Op: OpDiv} }
func Mod() Bytecode             { return Bytecode{Op: OpMod} }
func Concat() Bytecode          { return Bytecode{Op: OpConcat} }
func Same() Bytecode            { return Bytecode{Op: OpSame} }
func NSame() Bytecode           { return Bytecode{Op: OpNSame} }
func Lt() Bytecode              { return Bytecode{Op: OpLt} }
func Gt() Bytecode              { return Bytecode{Op: OpGt} }
func CGetL(l LocalID) Bytecode  { return Bytecode{Op: OpCGetL, Local: l} }
func SetL(l LocalID) Bytecode   { return Bytecode{Op: OpSetL, Local: l} }
func PushL(l LocalID) Bytecode  { return Bytecode{Op: OpPushL, Local: l} }
func UnsetL(l LocalID) Bytecode { return Bytecode{Op: OpUnsetL, Local: l} }
func Jmp(t BlockID) Bytecode    { return Bytecode{Op: OpJmp, Target: t} }
func JmpZ(t BlockID) Bytecode   { return Bytecode{Op: OpJmpZ, Target: t} }
func JmpNZ(t BlockID) Bytecode  { return Bytecode{Op: OpJmpNZ, Target: t} }
func Throw() Bytecode           { return Bytecode{Op: OpThrow} }
func RetC() Bytecode            { return Bytecode{Op: OpRetC} }
func This() Bytecode            { return Bytecode{Op: OpThis} }

func IsTypeL(l LocalID, p TypePred) Bytecode {
	return Bytecode{Op: OpIsTypeL, Local: l, Pred: p}
}

func FCall(fn string, numArgs uint32, unpack bool) Bytecode {
	return Bytecode{Op: OpFCall, Call: CallArgs{Func: fn, NumArgs: numArgs, Unpack: unpack}}
}

func FCallBuiltin(fn string, numArgs uint32) Bytecode {
	return Bytecode{Op: OpFCallBuiltin, Call: CallArgs{Func: fn, NumArgs: numArgs}}
}

func ClsRefGetC(s ClsRefSlot) Bytecode { return Bytecode{Op: OpClsRefGetC, Slot: s} }
func ClsRefName(s ClsRefSlot) Bytecode { return Bytecode{Op: OpClsRefName, Slot: s} }
func StaticLocInit(l LocalID) Bytecode { return Bytecode{Op: OpStaticLocInit, Local: l} }
func StaticLocGet(l LocalID) Bytecode  { return Bytecode{Op: OpStaticLocGet, Local: l} }

func (b Bytecode) String() string {
	switch b.Op {
	case OpInt:
		return fmt.Sprintf("Int %d", b.Int)
	case OpDbl:
		return fmt.Sprintf("Dbl %g", b.Dbl)
	case OpStr:
		return "Str " + strconv.Quote(b.Str)
	case OpCGetL, OpSetL, OpPushL, OpUnsetL, OpStaticLocInit, OpStaticLocGet:
		return fmt.Sprintf("%s $%d", b.Op, b.Local)
	case OpIsTypeL:
		return fmt.Sprintf("IsTypeL $%d %s", b.Local, b.Pred)
	case OpJmp, OpJmpZ, OpJmpNZ:
		return fmt.Sprintf("%s ->b%d", b.Op, b.Target)
	case OpFCall:
		if b.Call.Unpack {
			return fmt.Sprintf("FCall %s(%d...)", b.Call.Func, b.Call.NumArgs)
		}
		return fmt.Sprintf("FCall %s(%d)", b.Call.Func, b.Call.NumArgs)
	case OpFCallBuiltin:
		return fmt.Sprintf("FCallBuiltin %s(%d)", b.Call.Func, b.Call.NumArgs)
	case OpClsRefGetC, OpClsRefName:
		return fmt.Sprintf("%s slot%d", b.Op, b.Slot)
	}
	return b.Op.String()
}
