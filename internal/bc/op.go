package bc

// Op enumerates bytecode opcodes. The production VM carries hundreds;
// the optimizer tracks the subset its passes and tests exercise.
type Op uint8

const (
	// OpNop does nothing.
	OpNop Op = iota

	// OpInt pushes an integer constant.
	OpInt
	// OpDbl pushes a float constant.
	OpDbl
	// OpStr pushes a string constant.
	OpStr
	// OpTrue pushes boolean true.
	OpTrue
	// OpFalse pushes boolean false.
	OpFalse
	// OpNull pushes null.
	OpNull

	// OpPopC pops the top of the stack.
	OpPopC
	// OpDup duplicates the top of the stack.
	OpDup
	// OpNot pops a cell and pushes its boolean negation.
	OpNot

	// OpAdd pops two cells and pushes their numeric sum.
	OpAdd
	// OpSub pops two cells and pushes their numeric difference.
	OpSub
	// OpMul pops two cells and pushes their numeric product.
	OpMul
	// OpDiv pops two cells and pushes their quotient. Faults on
	// division by zero.
	OpDiv
	// OpMod pops two cells and pushes their remainder. Faults on a
	// zero divisor.
	OpMod
	// OpConcat pops two cells and pushes their string concatenation.
	OpConcat

	// OpSame pops two cells and pushes identity comparison.
	OpSame
	// OpNSame pops two cells and pushes negated identity comparison.
	OpNSame
	// OpLt pops two cells and pushes a less-than comparison.
	OpLt
	// OpGt pops two cells and pushes a greater-than comparison.
	OpGt

	// OpCGetL pushes the value of a local.
	OpCGetL
	// OpSetL pops a cell into a local and pushes it back.
	OpSetL
	// OpPushL pushes a local and unsets it (move, not copy).
	OpPushL
	// OpUnsetL resets a local to uninit.
	OpUnsetL
	// OpIsTypeL pushes a type predicate applied to a local.
	OpIsTypeL

	// OpJmp transfers control to Target unconditionally.
	OpJmp
	// OpJmpZ pops a cell and jumps to Target when it is falsy.
	OpJmpZ
	// OpJmpNZ pops a cell and jumps to Target when it is truthy.
	OpJmpNZ
	// OpThrow pops a cell and raises it as an exception.
	OpThrow
	// OpRetC pops a cell and returns it from the function.
	OpRetC

	// OpFCall calls a named function with Call.NumArgs stack arguments.
	OpFCall
	// OpFCallBuiltin is the direct-call form for resolved builtins,
	// produced by call-site specialization.
	OpFCallBuiltin

	// OpThis pushes the receiver object.
	OpThis
	// OpClsRefGetC pops a class name and stores a class reference in
	// Slot.
	OpClsRefGetC
	// OpClsRefName pushes the name of the class held in Slot and frees
	// the slot.
	OpClsRefName

	// OpStaticLocInit binds a function-local static: pops the
	// initializer the first time the function runs, reuses the stored
	// cell afterwards.
	OpStaticLocInit
	// OpStaticLocGet pushes the current value of a local static.
	OpStaticLocGet
)

var opNames = [...]string{
	OpNop:           "Nop",
	OpInt:           "Int",
	OpDbl:           "Dbl",
	OpStr:           "Str",
	OpTrue:          "True",
	OpFalse:         "False",
	OpNull:          "Null",
	OpPopC:          "PopC",
	OpDup:           "Dup",
	OpNot:           "Not",
	OpAdd:           "Add",
	OpSub:           "Sub",
	OpMul:           "Mul",
	OpDiv:           "Div",
	OpMod:           "Mod",
	OpConcat:        "Concat",
	OpSame:          "Same",
	OpNSame:         "NSame",
	OpLt:            "Lt",
	OpGt:            "Gt",
	OpCGetL:         "CGetL",
	OpSetL:          "SetL",
	OpPushL:         "PushL",
	OpUnsetL:        "UnsetL",
	OpIsTypeL:       "IsTypeL",
	OpJmp:           "Jmp",
	OpJmpZ:          "JmpZ",
	OpJmpNZ:         "JmpNZ",
	OpThrow:         "Throw",
	OpRetC:          "RetC",
	OpFCall:         "FCall",
	OpFCallBuiltin:  "FCallBuiltin",
	OpThis:          "This",
	OpClsRefGetC:    "ClsRefGetC",
	OpClsRefName:    "ClsRefName",
	OpStaticLocInit: "StaticLocInit",
	OpStaticLocGet:  "StaticLocGet",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "Op?"
}

// TypePred is the predicate tested by OpIsTypeL.
type TypePred uint8

const (
	PredNull TypePred = iota
	PredBool
	PredInt
	PredDbl
	PredStr
	PredArr
	PredObj
)

var predNames = [...]string{
	PredNull: "Null",
	PredBool: "Bool",
	PredInt:  "Int",
	PredDbl:  "Dbl",
	PredStr:  "Str",
	PredArr:  "Arr",
	PredObj:  "Obj",
}

func (p TypePred) String() string {
	if int(p) < len(predNames) {
		return predNames[p]
	}
	return "Pred?"
}
