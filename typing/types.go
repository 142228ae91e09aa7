package typing

import "fmt"

// VarType is the value type of a node or local in the input IR.  It should be
// one of the enumerated var types below.
type VarType int

// Enumeration of var types.  The order matters: the small integer types form a
// contiguous range, as do the integral types.
const (
	Undef VarType = iota
	Void
	Bool
	Byte
	UByte
	Short
	UShort
	Int
	UInt
	Long
	ULong
	Float
	Double
	Ref
	Byref
	Struct
)

var varTypeNames = [...]string{
	Undef:  "undef",
	Void:   "void",
	Bool:   "bool",
	Byte:   "byte",
	UByte:  "ubyte",
	Short:  "short",
	UShort: "ushort",
	Int:    "int",
	UInt:   "uint",
	Long:   "long",
	ULong:  "ulong",
	Float:  "float",
	Double: "double",
	Ref:    "ref",
	Byref:  "byref",
	Struct: "struct",
}

func (vt VarType) Repr() string {
	if vt < 0 || int(vt) >= len(varTypeNames) {
		return fmt.Sprintf("vartype(%d)", int(vt))
	}

	return varTypeNames[vt]
}

func (vt VarType) String() string {
	return vt.Repr()
}

// ParseVarType looks up a var type by its textual name.
func ParseVarType(name string) (VarType, bool) {
	for i, vtName := range varTypeNames {
		if vtName == name {
			return VarType(i), true
		}
	}

	return Undef, false
}

// -----------------------------------------------------------------------------

// IsSmall returns whether the type is narrower than the natural integer: these
// are the types that get widened when consumed.
func (vt VarType) IsSmall() bool {
	return Bool <= vt && vt <= UShort
}

// IsIntegral returns whether the type is one of the integer types.
func (vt VarType) IsIntegral() bool {
	return Bool <= vt && vt <= ULong
}

// IsIntegralOrI returns whether the type is integral or pointer-like.
func (vt VarType) IsIntegralOrI() bool {
	return vt.IsIntegral() || vt.IsGC()
}

// IsGC returns whether values of this type are pointers (managed or interior).
func (vt VarType) IsGC() bool {
	return vt == Ref || vt == Byref
}

func (vt VarType) IsFloating() bool {
	return vt == Float || vt == Double
}

// IsUnsigned returns whether the type is an unsigned integer.  Bool counts as
// unsigned.
func (vt VarType) IsUnsigned() bool {
	switch vt {
	case Bool, UByte, UShort, UInt, ULong:
		return true
	}

	return false
}

func (vt VarType) IsSigned() bool {
	return vt.IsIntegral() && !vt.IsUnsigned()
}

// IsLong returns whether the type is a 64-bit integer.
func (vt VarType) IsLong() bool {
	return vt == Long || vt == ULong
}

// ActualType returns the "actual" type a value of the given type has once it
// is loaded onto the evaluation stack: small types are widened to int and the
// unsigned types are folded into their signed equivalents.
func (vt VarType) ActualType() VarType {
	switch {
	case vt.IsSmall(), vt == UInt:
		return Int
	case vt == ULong:
		return Long
	}

	return vt
}

// Size returns the size of the type in bytes.  The pointer size is required to
// size the pointer types.  Struct has no intrinsic size and returns 0.
func (vt VarType) Size(ptrSize int) int {
	switch vt {
	case Bool, Byte, UByte:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	case Long, ULong, Double:
		return 8
	case Ref, Byref:
		return ptrSize
	}

	return 0
}

// -----------------------------------------------------------------------------

// Category is a coarse classification of var types used to select conversions.
type Category int

// Enumeration of categories.
const (
	CatOther    Category = iota
	CatInt32             // Bool through UInt
	CatInt64             // Long and ULong
	CatFloating          // Float and Double
	CatPointer           // Ref and Byref
)

// Category returns the conversion category of the type.
func (vt VarType) Category() Category {
	switch {
	case vt.IsLong():
		return CatInt64
	case vt.IsIntegral():
		return CatInt32
	case vt.IsFloating():
		return CatFloating
	case vt.IsGC():
		return CatPointer
	}

	return CatOther
}
