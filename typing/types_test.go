package typing

import "testing"

func TestActualType(t *testing.T) {
	tests := []struct {
		in, want VarType
	}{
		{Bool, Int},
		{Byte, Int},
		{UByte, Int},
		{Short, Int},
		{UShort, Int},
		{Int, Int},
		{UInt, Int},
		{Long, Long},
		{ULong, Long},
		{Float, Float},
		{Double, Double},
		{Ref, Ref},
		{Byref, Byref},
		{Struct, Struct},
	}

	for _, test := range tests {
		if got := test.in.ActualType(); got != test.want {
			t.Errorf("%s.ActualType() = %s, want %s", test.in, got, test.want)
		}
	}
}

func TestPredicates(t *testing.T) {
	if !UShort.IsSmall() || Int.IsSmall() {
		t.Error("small range is wrong")
	}

	if !Bool.IsUnsigned() || Byte.IsUnsigned() || !Byte.IsSigned() {
		t.Error("signedness is wrong")
	}

	if Float.IsSigned() || Ref.IsSigned() {
		t.Error("non-integers must not be signed")
	}

	if !Ref.IsIntegralOrI() || Double.IsIntegralOrI() {
		t.Error("integral-or-pointer is wrong")
	}
}

func TestSize(t *testing.T) {
	if Ref.Size(4) != 4 || Byref.Size(8) != 8 {
		t.Error("pointer size must follow the target")
	}

	if Short.Size(4) != 2 || Double.Size(4) != 8 || Struct.Size(4) != 0 {
		t.Error("fixed sizes are wrong")
	}
}

func TestCategory(t *testing.T) {
	tests := map[VarType]Category{
		Bool:   CatInt32,
		UInt:   CatInt32,
		Long:   CatInt64,
		ULong:  CatInt64,
		Float:  CatFloating,
		Byref:  CatPointer,
		Struct: CatOther,
		Void:   CatOther,
	}

	for vt, want := range tests {
		if got := vt.Category(); got != want {
			t.Errorf("%s.Category() = %d, want %d", vt, got, want)
		}
	}
}

func TestParseVarType(t *testing.T) {
	for vt := Undef; vt <= Struct; vt++ {
		got, ok := ParseVarType(vt.Repr())
		if !ok || got != vt {
			t.Errorf("ParseVarType(%q) = %s, %v", vt.Repr(), got, ok)
		}
	}

	if _, ok := ParseVarType("quad"); ok {
		t.Error("unknown names must not parse")
	}
}
