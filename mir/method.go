package mir

import "jitlower/typing"

// Method is the body of a single method in SSA form, as handed over by the
// upstream optimizer.
type Method struct {
	// Name is the display name of the method.  Symbol is its mangled name:
	// the name of the lowered function.
	Name   string
	Symbol string

	// Blocks are the basic blocks of the method in lexical order.  The first
	// block is the entry block.
	Blocks []*BasicBlock

	// Locals is the local variable table indexed by local number.
	Locals []*LocalVar

	ReturnType   typing.VarType
	ReturnLayout *ClassLayout

	// RetBuffer indicates that struct results are returned through a hidden
	// pointer parameter: the lowered function then returns void.
	RetBuffer bool

	// HasShadowStack indicates the lowered function receives the shadow
	// stack as its first parameter.  FrameSize is the number of bytes the
	// method itself uses on the shadow stack.
	HasShadowStack bool
	FrameSize      int

	// InitLocals indicates that all locals (and stack allocations) must be
	// zero initialized.
	InitLocals bool

	// EHRegions is the number of exception handling regions of the method.
	EHRegions int

	// Signature features the lowering does not support.
	ExplicitThis   bool
	TypeArg        bool
	ReversePInvoke bool

	// Document and FirstLine locate the method in its source file for
	// debug info.
	Document  string
	FirstLine int
}

// Local returns the local with the given number or nil.
func (m *Method) Local(lclNum int) *LocalVar {
	if lclNum < 0 || lclNum >= len(m.Locals) {
		return nil
	}

	return m.Locals[lclNum]
}

// ParamCount returns the number of parameters of the lowered function,
// counting the shadow stack.
func (m *Method) ParamCount() int {
	n := 0
	if m.HasShadowStack {
		n = 1
	}

	for _, lv := range m.Locals {
		if lv.IsParam && lv.ArgNum+1 > n {
			n = lv.ArgNum + 1
		}
	}

	return n
}

// ParamLocal returns the local bound to the parameter with the given index or
// nil.
func (m *Method) ParamLocal(argNum int) (int, *LocalVar) {
	for i, lv := range m.Locals {
		if lv.IsParam && lv.ArgNum == argNum {
			return i, lv
		}
	}

	return -1, nil
}
