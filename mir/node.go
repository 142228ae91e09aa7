package mir

import (
	"fmt"
	"jitlower/typing"
)

// Opcode designates the operation a node performs.
type Opcode int

// Enumeration of opcodes.
const (
	// Arithmetic
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpUDiv
	OpMod
	OpUMod
	OpAnd
	OpOr
	OpXor
	OpLsh
	OpRsh
	OpRsz
	OpNeg
	OpNot

	// Comparisons
	OpEq
	OpNe
	OpLt
	OpLe
	OpGe
	OpGt

	OpCast

	// Constants
	OpCnsInt
	OpCnsLng
	OpCnsDbl

	OpCall
	OpLclHeap

	// Memory
	OpInd
	OpObj
	OpBlk
	OpStoreInd
	OpStoreBlk
	OpStoreObj
	OpNullCheck

	// Locals
	OpLclVar
	OpStoreLclVar
	OpLclFld
	OpLclVarAddr
	OpLclFldAddr
	OpPhi
	OpPhiArg

	// Contained operands: these only ever appear as operands of other nodes.
	OpPutArgType
	OpFieldList
	OpInitVal

	// Control flow
	OpJTrue
	OpReturn

	OpILOffset
	OpNoOp

	// These can be represented but are never lowered.
	OpSwitch
	OpCatchArg
	OpKeepAlive
)

var opcodeNames = [...]string{
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpUDiv:        "udiv",
	OpMod:         "mod",
	OpUMod:        "umod",
	OpAnd:         "and",
	OpOr:          "or",
	OpXor:         "xor",
	OpLsh:         "lsh",
	OpRsh:         "rsh",
	OpRsz:         "rsz",
	OpNeg:         "neg",
	OpNot:         "not",
	OpEq:          "eq",
	OpNe:          "ne",
	OpLt:          "lt",
	OpLe:          "le",
	OpGe:          "ge",
	OpGt:          "gt",
	OpCast:        "cast",
	OpCnsInt:      "cns_int",
	OpCnsLng:      "cns_lng",
	OpCnsDbl:      "cns_dbl",
	OpCall:        "call",
	OpLclHeap:     "lclheap",
	OpInd:         "ind",
	OpObj:         "obj",
	OpBlk:         "blk",
	OpStoreInd:    "storeind",
	OpStoreBlk:    "store_blk",
	OpStoreObj:    "store_obj",
	OpNullCheck:   "nullcheck",
	OpLclVar:      "lcl_var",
	OpStoreLclVar: "store_lcl_var",
	OpLclFld:      "lcl_fld",
	OpLclVarAddr:  "lcl_var_addr",
	OpLclFldAddr:  "lcl_fld_addr",
	OpPhi:         "phi",
	OpPhiArg:      "phi_arg",
	OpPutArgType:  "putarg_type",
	OpFieldList:   "field_list",
	OpInitVal:     "init_val",
	OpJTrue:       "jtrue",
	OpReturn:      "return",
	OpILOffset:    "il_offset",
	OpNoOp:        "no_op",
	OpSwitch:      "switch",
	OpCatchArg:    "catch_arg",
	OpKeepAlive:   "keepalive",
}

func (op Opcode) Repr() string {
	if op < 0 || int(op) >= len(opcodeNames) {
		return fmt.Sprintf("op(%d)", int(op))
	}

	return opcodeNames[op]
}

func (op Opcode) String() string {
	return op.Repr()
}

// ParseOpcode looks up an opcode by its textual name.
func ParseOpcode(name string) (Opcode, bool) {
	for i, opName := range opcodeNames {
		if opName == name {
			return Opcode(i), true
		}
	}

	return 0, false
}

// IsCompare returns whether the opcode is a relational operator.
func (op Opcode) IsCompare() bool {
	return OpEq <= op && op <= OpGt
}

// -----------------------------------------------------------------------------

// NodeFlags is a set of per-node flags.
type NodeFlags int

// Enumeration of node flags.
const (
	// FlagUnsigned marks an operation that treats its operands as unsigned.
	FlagUnsigned NodeFlags = 1 << iota

	// FlagUnordered marks a floating comparison that is true when either
	// operand is NaN.
	FlagUnordered

	// FlagOverflow marks a checked operation.
	FlagOverflow

	// FlagNonFaulting marks an indirection whose address is known not null.
	FlagNonFaulting

	// FlagTgtNotHeap and FlagTgtHeap mark stores whose destination is known
	// to be outside or inside the GC heap.
	FlagTgtNotHeap
	FlagTgtHeap
)

var flagNames = []struct {
	flag NodeFlags
	name string
}{
	{FlagUnsigned, "unsigned"},
	{FlagUnordered, "unordered"},
	{FlagOverflow, "overflow"},
	{FlagNonFaulting, "nonfaulting"},
	{FlagTgtNotHeap, "tgt_not_heap"},
	{FlagTgtHeap, "tgt_heap"},
}

// ParseFlag looks up a flag by its textual name.
func ParseFlag(name string) (NodeFlags, bool) {
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.flag, true
		}
	}

	return 0, false
}

// HandleKind is the kind of runtime entity an opaque handle constant refers
// to.
type HandleKind int

// Enumeration of handle kinds.
const (
	HandleNone HandleKind = iota
	HandleToken
	HandleClass
	HandleMethod
	HandleField
	HandleString
	HandleStatic
)

var handleKindNames = [...]string{
	HandleNone:   "",
	HandleToken:  "token",
	HandleClass:  "class",
	HandleMethod: "method",
	HandleField:  "field",
	HandleString: "string",
	HandleStatic: "static",
}

func (hk HandleKind) String() string {
	if hk < 0 || int(hk) >= len(handleKindNames) {
		return fmt.Sprintf("handle(%d)", int(hk))
	}

	if hk == HandleNone {
		return "none"
	}

	return handleKindNames[hk]
}

// ParseHandleKind looks up a handle kind by its textual name.
func ParseHandleKind(name string) (HandleKind, bool) {
	for i, hkName := range handleKindNames {
		if hkName == name {
			return HandleKind(i), true
		}
	}

	return HandleNone, false
}

// Handle is an opaque reference to a runtime entity (a type, method, field,
// or string literal) which the linker resolves through a relocation.
type Handle uint64

// -----------------------------------------------------------------------------

// Node is a single instruction of the input IR.  Nodes are produced by the
// upstream optimizer and are never mutated during lowering.
type Node struct {
	// ID uniquely identifies the node within its method.
	ID int

	Op   Opcode
	Type typing.VarType

	// Operands are the nodes this node consumes.  For stores the address is
	// first and the data second.
	Operands []*Node

	Flags NodeFlags

	// Constant payload.
	IntVal     int64
	FloatVal   float64
	Handle     Handle
	HandleKind HandleKind

	// Local is the number of the local accessed by local nodes and phi
	// arguments.  Ssa is the SSA number of the definition used or created.
	Local int
	Ssa   int

	// Offset is the byte offset of local field accesses.
	Offset int

	// CastTo is the target type of a cast.
	CastTo typing.VarType

	// Layout is the struct layout of block loads, block stores, and struct
	// typed locals.
	Layout *ClassLayout

	// Call holds the call description of call nodes.
	Call *Call

	// Fields holds the uses of a field list.
	Fields []*FieldUse

	// Pred is the predecessor block a phi argument flows in from.
	Pred *BasicBlock

	// Line is the source line number of an IL offset node.
	Line int
}

// FieldUse is one field of a field list: the node providing its value, its
// byte offset in the struct, and its type.
type FieldUse struct {
	Node   *Node
	Offset int
	Type   typing.VarType
}

// Op1 returns the first operand of the node or nil.
func (n *Node) Op1() *Node {
	if len(n.Operands) > 0 {
		return n.Operands[0]
	}

	return nil
}

// Op2 returns the second operand of the node or nil.
func (n *Node) Op2() *Node {
	if len(n.Operands) > 1 {
		return n.Operands[1]
	}

	return nil
}

// Addr returns the address operand of an indirection or store.
func (n *Node) Addr() *Node {
	return n.Op1()
}

// Data returns the data operand of an indirect store.
func (n *Node) Data() *Node {
	return n.Op2()
}

func (n *Node) Has(flag NodeFlags) bool {
	return n.Flags&flag != 0
}

// IsIntegralConst returns whether the node is an integer constant with the
// given value.
func (n *Node) IsIntegralConst(v int64) bool {
	return (n.Op == OpCnsInt || n.Op == OpCnsLng) && n.HandleKind == HandleNone && n.IntVal == v
}

// IsLocalAddr returns whether the node computes the address of a local.
func (n *Node) IsLocalAddr() bool {
	return n.Op == OpLclVarAddr || n.Op == OpLclFldAddr
}

// IsIconHandle returns whether the node is a handle constant.
func (n *Node) IsIconHandle() bool {
	return n.Op == OpCnsInt && n.HandleKind != HandleNone
}

// IsInitBlk returns whether a block store fills its destination with a single
// byte value rather than copying a struct into it.
func (n *Node) IsInitBlk() bool {
	if n.Op != OpStoreBlk && n.Op != OpStoreObj {
		return false
	}

	data := n.Data()
	return data != nil && (data.Op == OpInitVal || data.IsIntegralConst(0))
}

// IsContained returns whether the node only exists as a part of its user.
func (n *Node) IsContained() bool {
	switch n.Op {
	case OpPutArgType, OpFieldList, OpInitVal, OpPhiArg:
		return true
	}

	return false
}
