package mir

import "jitlower/typing"

// ClassLayout describes the fields of a value type.
type ClassLayout struct {
	Name string

	// Size is the size of the struct in bytes including any padding.
	Size int

	// Fields are the fields of the struct sorted by offset.
	Fields []*FieldDesc

	// SignificantPadding indicates that the bytes not covered by fields must
	// be preserved by copies (eg. explicit layout unions).
	SignificantPadding bool
}

// FieldDesc describes a single field of a struct.
type FieldDesc struct {
	Offset int
	Type   typing.VarType

	// GC indicates the field holds a reference the collector tracks.
	GC bool

	// Layout is the layout of struct-typed fields.
	Layout *ClassLayout
}

// HasGCPtr returns whether the struct contains any GC reference, directly or
// through nested structs.
func (cl *ClassLayout) HasGCPtr() bool {
	for _, fd := range cl.Fields {
		if fd.GC {
			return true
		}

		if fd.Layout != nil && fd.Layout.HasGCPtr() {
			return true
		}
	}

	return false
}

// IsSinglePrimitive returns whether the struct is a wrapper around a single
// primitive field.  Such structs are lowered as their field's type.
func (cl *ClassLayout) IsSinglePrimitive() bool {
	return len(cl.Fields) == 1 && cl.Fields[0].Layout == nil && cl.Fields[0].Type != typing.Struct
}
