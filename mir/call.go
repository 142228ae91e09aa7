package mir

import "jitlower/typing"

// CallKind classifies calls by how their target is found.
type CallKind int

// Enumeration of call kinds.
const (
	CallHelper   CallKind = iota // a runtime helper identified by HelperID
	CallUser                     // a direct call to a method by entry point handle
	CallIndirect                 // a call through a computed address
)

// HelperID names a runtime helper, eg. "LDIV".
type HelperID string

// Helpers with special treatment.
const (
	HelperReadyToRunStaticBase HelperID = "READYTORUN_STATIC_BASE"
)

// Call describes the target and arguments of a call node.
type Call struct {
	Kind CallKind

	// Helper identifies the helper of helper calls.
	Helper HelperID

	// Target is the entry point handle of user calls and the entry point of
	// the ready-to-run static base helper.
	Target Handle

	// Args are the arguments in the order the upstream IR lists them: this
	// is not necessarily the order of the parameters.
	Args []*CallArg

	// ReturnType is the declared return type.  ReturnLayout is the layout
	// of struct returns.
	ReturnType   typing.VarType
	ReturnLayout *ClassLayout

	// VirtualStub marks calls dispatched through a virtual stub.
	// VirtualVtable marks calls through a vtable slot loaded by Control.
	VirtualStub   bool
	VirtualVtable bool

	// Unmanaged marks user calls to targets that do not take the shadow
	// stack.
	Unmanaged bool

	// Control is the node computing the call target of vtable and indirect
	// calls.
	Control *Node
}

// CallArg is one argument of a call.
type CallArg struct {
	Node *Node

	// ArgNum is the index of the formal parameter the argument is passed in.
	ArgNum int

	// Type is the declared parameter type and Layout its struct layout.
	Type   typing.VarType
	Layout *ClassLayout
}
