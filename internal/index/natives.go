package index

import (
	"math"

	"golang.org/x/text/unicode/norm"

	"riptide/internal/types"
)

// FuncExistsName is the introspection builtin special-cased by the
// call-site specializer.
const FuncExistsName = "function_exists"

// natives is the registry of VM builtins visible to every unit. Pure
// entries with a Fold rule are candidates for compile-time evaluation.
var natives = map[string]*FuncInfo{
	FuncExistsName: {
		Name:       FuncExistsName,
		NumParams:  1,
		MinParams:  1,
		Builtin:    true,
		Pure:       true,
		returnType: types.TBool,
	},
	"add": {
		Name:       "add",
		NumParams:  2,
		MinParams:  2,
		Builtin:    true,
		Pure:       true,
		returnType: types.TNum,
		Fold:       foldAdd,
	},
	"abs": {
		Name:       "abs",
		NumParams:  1,
		MinParams:  1,
		Builtin:    true,
		Pure:       true,
		returnType: types.TNum,
		Fold:       foldAbs,
	},
	"max": {
		Name:       "max",
		NumParams:  2,
		MinParams:  2,
		Builtin:    true,
		Pure:       true,
		returnType: types.TNum,
		Fold:       foldMax,
	},
	"strlen": {
		Name:       "strlen",
		NumParams:  1,
		MinParams:  1,
		Builtin:    true,
		Pure:       true,
		returnType: types.TInt,
		Fold:       foldStrlen,
	},
	"str_normalize": {
		Name:       "str_normalize",
		NumParams:  1,
		MinParams:  1,
		Builtin:    true,
		Pure:       true,
		returnType: types.TStr,
		Fold:       foldStrNormalize,
	},
	"print_r": {
		Name:       "print_r",
		NumParams:  1,
		MinParams:  1,
		Builtin:    true,
		returnType: types.TBool,
	},
	"microtime": {
		Name:       "microtime",
		NumParams:  0,
		MinParams:  0,
		Builtin:    true,
		returnType: types.TDbl,
	},
}

func numArg(v types.Value) (float64, bool, bool) {
	switch v.Kind {
	case types.ValInt:
		return float64(v.Int), true, true
	case types.ValDbl:
		return v.Dbl, false, true
	}
	return 0, false, false
}

func foldAdd(args []types.Value) (types.Value, bool) {
	if len(args) != 2 {
		return types.Value{}, false
	}
	if args[0].Kind == types.ValInt && args[1].Kind == types.ValInt {
		a, b := args[0].Int, args[1].Int
		sum := a + b
		// Integer overflow promotes to float at runtime.
		if (sum > a) == (b > 0) {
			return types.IntV(sum), true
		}
		return types.DblV(float64(a) + float64(b)), true
	}
	a, _, okA := numArg(args[0])
	b, _, okB := numArg(args[1])
	if !okA || !okB {
		return types.Value{}, false
	}
	return types.DblV(a + b), true
}

func foldAbs(args []types.Value) (types.Value, bool) {
	if len(args) != 1 {
		return types.Value{}, false
	}
	switch args[0].Kind {
	case types.ValInt:
		if args[0].Int == math.MinInt64 {
			return types.Value{}, false
		}
		if args[0].Int < 0 {
			return types.IntV(-args[0].Int), true
		}
		return args[0], true
	case types.ValDbl:
		return types.DblV(math.Abs(args[0].Dbl)), true
	}
	return types.Value{}, false
}

func foldMax(args []types.Value) (types.Value, bool) {
	if len(args) != 2 {
		return types.Value{}, false
	}
	a, _, okA := numArg(args[0])
	b, _, okB := numArg(args[1])
	if !okA || !okB {
		return types.Value{}, false
	}
	if a >= b {
		return args[0], true
	}
	return args[1], true
}

func foldStrlen(args []types.Value) (types.Value, bool) {
	if len(args) != 1 || args[0].Kind != types.ValStr {
		return types.Value{}, false
	}
	return types.IntV(int64(len(args[0].Str))), true
}

func foldStrNormalize(args []types.Value) (types.Value, bool) {
	if len(args) != 1 || args[0].Kind != types.ValStr {
		return types.Value{}, false
	}
	return types.StrV(norm.NFC.String(args[0].Str)), true
}
