// Package types implements the abstract value lattice used by the
// bytecode optimizer. A Type is a set of possible runtime cell kinds,
// optionally pinned to a single concrete value. Types form a join
// semilattice under Union with TBottom as the least element and TTop
// as the greatest.
package types

import "strings"

// Kind is a bitset of runtime cell kinds.
type Kind uint16

const (
	// KUninit marks an uninitialized local slot.
	KUninit Kind = 1 << iota
	// KNull is the null cell.
	KNull
	// KFalse is boolean false.
	KFalse
	// KTrue is boolean true.
	KTrue
	// KInt is a 64-bit integer cell.
	KInt
	// KDbl is a float cell.
	KDbl
	// KStr is a string cell.
	KStr
	// KArr is an array cell.
	KArr
	// KObj is an object cell.
	KObj
	// KCls is a class reference.
	KCls

	kindLast
)

// Composite kind masks.
const (
	KBool     = KFalse | KTrue
	KNum      = KInt | KDbl
	KInitCell = kindLast - 1 - KUninit
	KCell     = kindLast - 1
)

// Marker tags a local slot whose declared value-kind is special-cased
// by the optimizer instead of being type-tracked. Markers sit outside
// the normal lattice: joining two distinct markers, or a marker with
// an ordinary type, widens to TTop.
type Marker uint8

const (
	// MarkNone means the type is an ordinary lattice element.
	MarkNone Marker = iota
	// MarkReadOnlyConstant tags a read-only constant local.
	MarkReadOnlyConstant
	// MarkDynamicConstant tags a dynamically initialized constant local.
	MarkDynamicConstant
)

// Type is an element of the abstract value lattice.
type Type struct {
	bits Kind
	mark Marker
	val  Value
}

// Common lattice elements.
var (
	TBottom   = Type{}
	TUninit   = Type{bits: KUninit}
	TNull     = Type{bits: KNull}
	TFalse    = Type{bits: KFalse}
	TTrue     = Type{bits: KTrue}
	TBool     = Type{bits: KBool}
	TInt      = Type{bits: KInt}
	TDbl      = Type{bits: KDbl}
	TNum      = Type{bits: KNum}
	TStr      = Type{bits: KStr}
	TArr      = Type{bits: KArr}
	TObj      = Type{bits: KObj}
	TCls      = Type{bits: KCls}
	TInitCell = Type{bits: KInitCell}
	TTop      = Type{bits: KCell}
)

// Sentinel markers outside the normal lattice.
var (
	ReadOnlyConstant = Type{mark: MarkReadOnlyConstant}
	DynamicConstant  = Type{mark: MarkDynamicConstant}
)

// IntVal returns the type of exactly the integer n.
func IntVal(n int64) Type { return Type{bits: KInt, val: IntV(n)} }

// DblVal returns the type of exactly the float d.
func DblVal(d float64) Type { return Type{bits: KDbl, val: DblV(d)} }

// StrVal returns the type of exactly the string s.
func StrVal(s string) Type { return Type{bits: KStr, val: StrV(s)} }

// ClsVal returns the type of a reference to exactly the named class.
func ClsVal(name string) Type { return Type{bits: KCls, val: ClsV(name)} }

// BoolVal returns TTrue or TFalse.
func BoolVal(b bool) Type {
	if b {
		return TTrue
	}
	return TFalse
}

// FromValue returns the most precise type for a concrete value.
func FromValue(v Value) Type {
	switch v.Kind {
	case ValNull:
		return TNull
	case ValBool:
		return BoolVal(v.Bool)
	case ValInt:
		return IntVal(v.Int)
	case ValDbl:
		return DblVal(v.Dbl)
	case ValStr:
		return StrVal(v.Str)
	case ValCls:
		return ClsVal(v.Str)
	}
	return TTop
}

// StripUninit removes the uninit possibility from t.
func (t Type) StripUninit() Type {
	if t.mark != MarkNone || t.bits&KUninit == 0 {
		return t
	}
	return Type{bits: t.bits &^ KUninit}
}

// ObjOf returns the type of objects of the named class or one of its
// subclasses.
func ObjOf(name string) Type { return Type{bits: KObj, val: ClsV(name)} }

// ObjClass returns the class name an object type is pinned to.
func (t Type) ObjClass() (string, bool) {
	if t.mark == MarkNone && t.bits == KObj && t.val.Kind == ValCls {
		return t.val.Str, true
	}
	return "", false
}

// IsMarker reports whether t is one of the sentinel markers.
func (t Type) IsMarker() bool { return t.mark != MarkNone }

// IsBottom reports whether t is the unreachable/empty type.
func (t Type) IsBottom() bool { return t.mark == MarkNone && t.bits == 0 }

// ConstVal returns the single concrete value t denotes, if there is
// exactly one.
func (t Type) ConstVal() (Value, bool) {
	if t.mark != MarkNone {
		return Value{}, false
	}
	switch t.bits {
	case KNull:
		return NullV(), true
	case KTrue:
		return BoolV(true), true
	case KFalse:
		return BoolV(false), true
	}
	if t.val.Kind != ValNone {
		// A pinned class name on an object type narrows the class, not
		// the value.
		if t.val.Kind == ValCls && t.bits != KCls {
			return Value{}, false
		}
		return t.val, true
	}
	return Value{}, false
}

// Union joins two types: the result is the least element covering both.
func Union(a, b Type) Type {
	if a.mark != MarkNone || b.mark != MarkNone {
		if a.mark == b.mark && a.bits == 0 && b.bits == 0 {
			return a
		}
		return TTop
	}
	if a.IsBottom() {
		return b
	}
	if b.IsBottom() {
		return a
	}
	out := Type{bits: a.bits | b.bits}
	if a.bits == b.bits && a.val.Equal(b.val) {
		out.val = a.val
	}
	return out
}

// Subtype reports whether every value of t is also a value of o.
func (t Type) Subtype(o Type) bool {
	if t.mark != MarkNone || o.mark != MarkNone {
		return t.mark == o.mark && t.bits == o.bits && t.val.Equal(o.val)
	}
	if t.IsBottom() {
		return true
	}
	if t.bits&^o.bits != 0 {
		return false
	}
	if o.val.Kind != ValNone {
		return t.val.Equal(o.val)
	}
	return true
}

// Couldbe reports whether t and o have any value in common.
func (t Type) Couldbe(o Type) bool {
	if t.mark != MarkNone || o.mark != MarkNone {
		return t.mark == o.mark
	}
	common := t.bits & o.bits
	if common == 0 {
		return false
	}
	if t.val.Kind != ValNone && o.val.Kind != ValNone {
		return t.val.Equal(o.val)
	}
	return true
}

// Equals reports whether two types are the same lattice element.
func (t Type) Equals(o Type) bool {
	return t.mark == o.mark && t.bits == o.bits && t.val.Equal(o.val)
}

// Truthiness reports the boolean conversion of every value of t, and
// whether that conversion is the same for all of them.
func (t Type) Truthiness() (bool, bool) {
	if t.mark != MarkNone {
		return false, false
	}
	if v, ok := t.ConstVal(); ok {
		return v.Truthy()
	}
	switch {
	case t.bits&^(KNull|KFalse|KUninit) == 0 && t.bits != 0:
		return false, true
	case t.bits == KTrue || t.bits == KObj || t.bits == KTrue|KObj:
		return true, true
	}
	return false, false
}

var kindNames = []struct {
	bit  Kind
	name string
}{
	{KUninit, "Uninit"},
	{KNull, "Null"},
	{KFalse, "False"},
	{KTrue, "True"},
	{KInt, "Int"},
	{KDbl, "Dbl"},
	{KStr, "Str"},
	{KArr, "Arr"},
	{KObj, "Obj"},
	{KCls, "Cls"},
}

func (t Type) String() string {
	switch t.mark {
	case MarkReadOnlyConstant:
		return "ReadOnlyConstant"
	case MarkDynamicConstant:
		return "DynamicConstant"
	}
	if t.bits == 0 {
		return "Bottom"
	}
	if t.bits == KCell {
		return "Top"
	}
	if t.bits == KBool {
		return "Bool"
	}
	if t.bits == KInitCell {
		return "InitCell"
	}
	var parts []string
	for _, kn := range kindNames {
		if t.bits&kn.bit != 0 {
			parts = append(parts, kn.name)
		}
	}
	s := strings.Join(parts, "|")
	if len(parts) > 1 {
		s = "{" + s + "}"
	}
	if t.val.Kind != ValNone {
		s += "=" + t.val.String()
	}
	return s
}
