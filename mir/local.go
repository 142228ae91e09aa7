package mir

import "jitlower/typing"

// FirstSsaNum is the number of the first SSA definition of a local.
const FirstSsaNum = 1

// SsaDef is one SSA definition of a local.
type SsaDef struct {
	// Def is the node that defines this version.  It is nil for an implicit
	// definition: a value that is live on entry to the method.
	Def *Node
}

// LocalVar describes a local variable, parameter, or temporary.
type LocalVar struct {
	Type   typing.VarType
	Layout *ClassLayout

	RefCount int

	// IsParam indicates the local is a parameter.  ArgNum is then the index
	// of the parameter of the lowered function (the shadow stack, if any,
	// occupies index 0).
	IsParam bool
	ArgNum  int

	AddrExposed bool
	InSsa       bool

	// Tracked indicates that liveness was computed for the local.
	Tracked bool

	// IsTemp indicates the local was introduced by the compiler.
	IsTemp bool

	// HasExplicitInit indicates that the method stores to the local before
	// any use so no prolog initialization is needed.
	HasExplicitInit bool

	// ShadowStackResident indicates the local lives on the shadow stack (it
	// holds GC references the collector must find) and so has no native
	// storage at all.
	ShadowStackResident bool

	// MustInit indicates that liveness found a path on which the local is
	// used before it is defined.  Lowering finalizes this for locals it zero
	// initializes.
	MustInit bool

	// PerSsa holds the SSA definitions of the local indexed by SSA number
	// minus FirstSsaNum.
	PerSsa []SsaDef
}

// SsaDef returns the SSA definition with the given number or nil.
func (lv *LocalVar) SsaDef(ssaNum int) *SsaDef {
	ix := ssaNum - FirstSsaNum
	if ix < 0 || ix >= len(lv.PerSsa) {
		return nil
	}

	return &lv.PerSsa[ix]
}

// NativeStorage returns whether the lowering gives the local storage of its
// own: either a stack slot or SSA values.
func (lv *LocalVar) NativeStorage() bool {
	return lv.RefCount > 0 && !lv.ShadowStackResident
}

// IsFrameLocal returns whether the local needs a stack slot: it is address
// exposed or it is not in SSA form.
func (lv *LocalVar) IsFrameLocal() bool {
	return lv.NativeStorage() && (!lv.InSsa || lv.AddrExposed)
}
