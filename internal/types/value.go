package types

import (
	"fmt"
	"strconv"
)

// ValueKind distinguishes concrete runtime value payloads.
type ValueKind uint8

const (
	// ValNone means no concrete value is known.
	ValNone ValueKind = iota
	// ValNull is the null value.
	ValNull
	// ValBool is a boolean value.
	ValBool
	// ValInt is a 64-bit integer value.
	ValInt
	// ValDbl is a double-precision float value.
	ValDbl
	// ValStr is a string value.
	ValStr
	// ValCls is a resolved class name.
	ValCls
)

// Value is a single concrete runtime value, used when the abstract
// interpreter has pinned a slot down to exactly one possibility.
type Value struct {
	Kind ValueKind
	Bool bool
	Int  int64
	Dbl  float64
	Str  string
}

// NullV returns the null value.
func NullV() Value { return Value{Kind: ValNull} }

// BoolV returns a boolean value.
func BoolV(b bool) Value { return Value{Kind: ValBool, Bool: b} }

// IntV returns an integer value.
func IntV(n int64) Value { return Value{Kind: ValInt, Int: n} }

// DblV returns a float value.
func DblV(d float64) Value { return Value{Kind: ValDbl, Dbl: d} }

// StrV returns a string value.
func StrV(s string) Value { return Value{Kind: ValStr, Str: s} }

// ClsV returns a class-name value.
func ClsV(name string) Value { return Value{Kind: ValCls, Str: name} }

// Equal reports whether two values are the same concrete value.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValNone, ValNull:
		return true
	case ValBool:
		return v.Bool == o.Bool
	case ValInt:
		return v.Int == o.Int
	case ValDbl:
		return v.Dbl == o.Dbl
	case ValStr, ValCls:
		return v.Str == o.Str
	}
	return false
}

// Truthy reports the value's boolean conversion, and whether that
// conversion is defined for the kind.
func (v Value) Truthy() (bool, bool) {
	switch v.Kind {
	case ValNull:
		return false, true
	case ValBool:
		return v.Bool, true
	case ValInt:
		return v.Int != 0, true
	case ValDbl:
		return v.Dbl != 0, true
	case ValStr:
		return v.Str != "" && v.Str != "0", true
	}
	return false, false
}

func (v Value) String() string {
	switch v.Kind {
	case ValNull:
		return "null"
	case ValBool:
		return strconv.FormatBool(v.Bool)
	case ValInt:
		return strconv.FormatInt(v.Int, 10)
	case ValDbl:
		return strconv.FormatFloat(v.Dbl, 'g', -1, 64)
	case ValStr:
		return strconv.Quote(v.Str)
	case ValCls:
		return fmt.Sprintf("class(%s)", v.Str)
	}
	return "none"
}
