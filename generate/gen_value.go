package generate

import (
	"jitlower/mir"
	"jitlower/report"
	"jitlower/typing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Values follow a "normalize on demand" convention: every node produces a raw
// value of exactly its own type (small integers stay small, addresses stay
// pointers) and every user reads it through consume which converts it to the
// type the user needs.

// produce records the value of a node.  A node is materialized exactly once.
func (g *Generator) produce(node *mir.Node, v value.Value) {
	_, ok := g.nodeValues[node]
	report.Assert(!ok, "node t%d is materialized twice", node.ID)
	report.Assert(v != nil, "node t%d produces no value", node.ID)

	g.nodeValues[node] = v
}

// nodeValue returns the raw value of a node.
func (g *Generator) nodeValue(node *mir.Node) value.Value {
	report.Assert(node != nil, "missing operand")

	v, ok := g.nodeValues[node]
	report.Assert(ok, "node t%d (%s) is used before it is materialized", node.ID, node.Op)

	return v
}

// consume returns the value of a node as seen by a user of type t.  If t is
// nil, integer values are widened to the node's actual type and all other
// values are returned raw.
func (g *Generator) consume(node *mir.Node, t types.Type) value.Value {
	v := g.nodeValue(node)

	if t == nil {
		if !isIntType(v.Type()) {
			return v
		}

		t = g.convVarType(node.Type.ActualType())
	}

	if v.Type().Equal(t) {
		return v
	}

	return g.normalize(node, v, t)
}

// normalize converts the raw value of a node to type t.
func (g *Generator) normalize(node *mir.Node, v value.Value, t types.Type) value.Value {
	from := v.Type()

	switch {
	case isIntType(from) && isPtrType(t):
		return g.block.NewIntToPtr(v, t)
	case isPtrType(from) && isIntType(t):
		return g.block.NewPtrToInt(v, t)
	case isPtrType(from) && isPtrType(t):
		return g.block.NewBitCast(v, t)
	case isIntType(from) && isIntType(t):
		if intBits(from) > intBits(t) {
			return g.block.NewTrunc(v, t)
		}

		if g.trueType(node).IsSigned() {
			return g.block.NewSExt(v, t)
		}

		return g.block.NewZExt(v, t)
	}

	report.Unsupported("cannot use a value of type %s as %s", from, t)
	return nil
}

// trueType returns the type that decides how the raw value of a node is
// extended: the type the value actually had before it was stored in a wider
// node.
func (g *Generator) trueType(node *mir.Node) typing.VarType {
	switch node.Op {
	case mir.OpCall:
		return node.Call.ReturnType
	case mir.OpLclVar:
		return g.method.Local(node.Local).Type
	case mir.OpCast:
		return node.CastTo
	}

	if node.Op.IsCompare() {
		// compares produce an i1 which is always zero extended
		return typing.UByte
	}

	return node.Type
}

// -----------------------------------------------------------------------------

// castIfNecessary converts v to type t in the current block if they differ.
func (g *Generator) castIfNecessary(v value.Value, t types.Type) value.Value {
	return castInBlock(g.block, v, t)
}

// castInBlock converts v to type t at the end of a block.  It supports
// pointer casts, conversions between integers and pointers, and integer
// truncation: the conversions needed to reconcile values that are the same
// thing seen through different types.
func castInBlock(b *ir.Block, v value.Value, t types.Type) value.Value {
	from := v.Type()
	if from.Equal(t) {
		return v
	}

	switch {
	case isPtrType(from) && isPtrType(t):
		return b.NewBitCast(v, t)
	case isIntType(from) && isPtrType(t):
		return b.NewIntToPtr(v, t)
	case isPtrType(from) && isIntType(t):
		return b.NewPtrToInt(v, t)
	case isIntType(from) && isIntType(t) && intBits(from) > intBits(t):
		return b.NewTrunc(v, t)
	}

	report.Unsupported("no cast from %s to %s", from, t)
	return nil
}

// gepOrAddr returns the address offset bytes past addr as an i8*.
func (g *Generator) gepOrAddr(addr value.Value, offset int) value.Value {
	addr = g.castIfNecessary(addr, types.I8Ptr)
	if offset == 0 {
		return addr
	}

	return g.block.NewGetElementPtr(types.I8, addr, constant.NewInt(types.I32, int64(offset)))
}

// zeroValue returns the zero value of a type.
func zeroValue(t types.Type) constant.Constant {
	switch v := t.(type) {
	case *types.IntType:
		return constant.NewInt(v, 0)
	case *types.FloatType:
		return constant.NewFloat(v, 0)
	case *types.PointerType:
		return constant.NewNull(v)
	}

	return constant.NewZeroInitializer(t)
}
