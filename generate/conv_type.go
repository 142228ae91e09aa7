package generate

import (
	"jitlower/mir"
	"jitlower/report"
	"jitlower/typing"

	"github.com/llir/llvm/ir/types"
)

// structInfo is the lowered form of a struct layout.
type structInfo struct {
	// typ is the lowered type.  It is the field's own type for structs
	// wrapping a single primitive.
	typ types.Type

	// single indicates that typ is the type of the only field.
	single bool

	// elemIndex maps the offset of each field onto the index of the struct
	// element it is stored in.
	elemIndex map[int]int
}

func (g *Generator) convVarType(vt typing.VarType) types.Type {
	switch vt {
	case typing.Bool, typing.Byte, typing.UByte:
		return types.I8
	case typing.Short, typing.UShort:
		return types.I16
	case typing.Int, typing.UInt:
		return types.I32
	case typing.Long, typing.ULong:
		return types.I64
	case typing.Float:
		return types.Float
	case typing.Double:
		return types.Double
	case typing.Ref, typing.Byref:
		return types.I8Ptr
	case typing.Void:
		return types.Void
	}

	report.Unsupported("values of type %s cannot be lowered without a layout", vt)
	return nil
}

// convTypeWithLayout converts a type which may be a struct.
func (g *Generator) convTypeWithLayout(vt typing.VarType, layout *mir.ClassLayout) types.Type {
	if vt == typing.Struct {
		if layout == nil {
			report.Unsupported("struct value without a layout")
		}

		return g.convLayout(layout)
	}

	return g.convVarType(vt)
}

// convLocalType returns the lowered type of a local.
func (g *Generator) convLocalType(lv *mir.LocalVar) types.Type {
	return g.convTypeWithLayout(lv.Type, lv.Layout)
}

// nativeIntType returns the integer type as wide as a pointer.
func (g *Generator) nativeIntType() *types.IntType {
	if g.prof.PointerSize == 8 {
		return types.I64
	}

	return types.I32
}

// convLayout returns the lowered type of a struct layout.
func (g *Generator) convLayout(layout *mir.ClassLayout) types.Type {
	return g.getStructInfo(layout).typ
}

// getStructInfo lowers a struct layout.  Fields are laid out at their exact
// offsets in a packed struct with explicit padding arrays in the gaps.
func (g *Generator) getStructInfo(layout *mir.ClassLayout) *structInfo {
	if si, ok := g.structs[layout]; ok {
		return si
	}

	si := &structInfo{elemIndex: make(map[int]int)}

	if layout.IsSinglePrimitive() {
		si.typ = g.convVarType(layout.Fields[0].Type)
		si.single = true
		si.elemIndex[layout.Fields[0].Offset] = 0

		g.structs[layout] = si
		return si
	}

	var elems []types.Type
	offset := 0
	for _, fd := range layout.Fields {
		if fd.Offset < offset {
			report.Unsupported("overlapping fields in struct %s", layout.Name)
		}

		if fd.Offset > offset {
			elems = append(elems, types.NewArray(uint64(fd.Offset-offset), types.I8))
		}

		si.elemIndex[fd.Offset] = len(elems)
		elems = append(elems, g.convFieldType(fd))
		offset = fd.Offset + g.fieldSize(fd)
	}

	if offset > layout.Size {
		report.Unsupported("fields of struct %s exceed its size", layout.Name)
	} else if offset < layout.Size {
		elems = append(elems, types.NewArray(uint64(layout.Size-offset), types.I8))
	}

	st := types.NewStruct(elems...)
	st.Packed = true
	si.typ = st

	g.structs[layout] = si
	return si
}

func (g *Generator) convFieldType(fd *mir.FieldDesc) types.Type {
	if fd.Layout != nil {
		return g.convLayout(fd.Layout)
	}

	return g.convVarType(fd.Type)
}

func (g *Generator) fieldSize(fd *mir.FieldDesc) int {
	if fd.Layout != nil {
		return fd.Layout.Size
	}

	return fd.Type.Size(g.prof.PointerSize)
}

// -----------------------------------------------------------------------------

// isIntType returns whether t is an integer type.
func isIntType(t types.Type) bool {
	_, ok := t.(*types.IntType)
	return ok
}

// isPtrType returns whether t is a pointer type.
func isPtrType(t types.Type) bool {
	_, ok := t.(*types.PointerType)
	return ok
}

// isFloatType returns whether t is a floating point type.
func isFloatType(t types.Type) bool {
	_, ok := t.(*types.FloatType)
	return ok
}

// intBits returns the width of an integer type.
func intBits(t types.Type) uint64 {
	return t.(*types.IntType).BitSize
}
