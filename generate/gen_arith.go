package generate

import (
	"jitlower/mir"
	"jitlower/report"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// checkOverflow rejects the checked forms of arithmetic.
func checkOverflow(node *mir.Node) {
	if node.Has(mir.FlagOverflow) {
		report.Unsupported("checked %s is not supported", node.Op)
	}
}

func (g *Generator) buildAdd(node *mir.Node) {
	checkOverflow(node)

	op1 := g.consume(node.Op1(), nil)
	op2 := g.consume(node.Op2(), nil)
	t1, t2 := op1.Type(), op2.Type()

	var result value.Value
	switch {
	case isPtrType(t1) && isIntType(t2):
		// indexing an i8* makes the offset a plain byte count
		base := g.castIfNecessary(op1, types.I8Ptr)
		result = g.block.NewGetElementPtr(types.I8, base, op2)
	case isIntType(t1) && t1.Equal(t2):
		result = g.block.NewAdd(op1, op2)
	default:
		report.Unsupported("add of %s and %s", t1, t2)
	}

	g.produce(node, result)
}

// buildArith lowers the arithmetic operators other than add.  Both operands
// are used as the type of the node.
func (g *Generator) buildArith(node *mir.Node) {
	checkOverflow(node)

	if node.Type.IsGC() {
		report.Unsupported("%s of %s values", node.Op, node.Type)
	}

	t := g.convVarType(node.Type)
	x := g.consume(node.Op1(), t)
	y := g.consume(node.Op2(), t)

	var result value.Value
	if node.Type.IsFloating() {
		switch node.Op {
		case mir.OpSub:
			result = g.block.NewFSub(x, y)
		case mir.OpMul:
			result = g.block.NewFMul(x, y)
		case mir.OpDiv:
			result = g.block.NewFDiv(x, y)
		case mir.OpMod:
			result = g.block.NewFRem(x, y)
		default:
			report.Unsupported("%s of %s values", node.Op, node.Type)
		}
	} else {
		switch node.Op {
		case mir.OpSub:
			result = g.block.NewSub(x, y)
		case mir.OpMul:
			result = g.block.NewMul(x, y)
		case mir.OpDiv:
			result = g.block.NewSDiv(x, y)
		case mir.OpUDiv:
			result = g.block.NewUDiv(x, y)
		case mir.OpMod:
			result = g.block.NewSRem(x, y)
		case mir.OpUMod:
			result = g.block.NewURem(x, y)
		}
	}

	g.produce(node, result)
}

func (g *Generator) buildBitwise(node *mir.Node) {
	if !node.Type.IsIntegral() {
		report.Unsupported("%s of %s values", node.Op, node.Type)
	}

	t := g.convVarType(node.Type)
	x := g.consume(node.Op1(), t)
	y := g.consume(node.Op2(), t)

	var result value.Value
	switch node.Op {
	case mir.OpAnd:
		result = g.block.NewAnd(x, y)
	case mir.OpOr:
		result = g.block.NewOr(x, y)
	case mir.OpXor:
		result = g.block.NewXor(x, y)
	}

	g.produce(node, result)
}

func (g *Generator) buildShift(node *mir.Node) {
	if !node.Type.IsIntegral() {
		report.Unsupported("%s of %s values", node.Op, node.Type)
	}

	t := g.convVarType(node.Type)
	x := g.consume(node.Op1(), t)

	// the shift count has its own type: it is resized to the shifted value
	count := g.consume(node.Op2(), nil)
	if !isIntType(count.Type()) {
		report.Unsupported("shift count of type %s", count.Type())
	}

	if cb, xb := intBits(count.Type()), intBits(t); cb < xb {
		count = g.block.NewZExt(count, t)
	} else if cb > xb {
		count = g.block.NewTrunc(count, t)
	}

	var result value.Value
	switch node.Op {
	case mir.OpLsh:
		result = g.block.NewShl(x, count)
	case mir.OpRsh:
		result = g.block.NewAShr(x, count)
	case mir.OpRsz:
		result = g.block.NewLShr(x, count)
	}

	g.produce(node, result)
}

func (g *Generator) buildUnary(node *mir.Node) {
	t := g.convVarType(node.Type)
	x := g.consume(node.Op1(), t)

	var result value.Value
	switch {
	case node.Op == mir.OpNeg && node.Type.IsFloating():
		result = g.block.NewFNeg(x)
	case node.Op == mir.OpNeg && node.Type.IsIntegral():
		result = g.block.NewSub(constant.NewInt(t.(*types.IntType), 0), x)
	case node.Op == mir.OpNot && node.Type.IsIntegral():
		result = g.block.NewXor(x, constant.NewInt(t.(*types.IntType), -1))
	default:
		report.Unsupported("%s of %s values", node.Op, node.Type)
	}

	g.produce(node, result)
}

// -----------------------------------------------------------------------------

// cmpKey selects a comparison predicate.  For integer compares the flag is
// the signedness and for floating compares it is whether the comparison is
// true for unordered operands (NaNs).
type cmpKey struct {
	op   mir.Opcode
	flag bool
}

var intPredicates = map[cmpKey]enum.IPred{
	{mir.OpEq, false}: enum.IPredEQ,
	{mir.OpEq, true}:  enum.IPredEQ,
	{mir.OpNe, false}: enum.IPredNE,
	{mir.OpNe, true}:  enum.IPredNE,
	{mir.OpLt, false}: enum.IPredSLT,
	{mir.OpLt, true}:  enum.IPredULT,
	{mir.OpLe, false}: enum.IPredSLE,
	{mir.OpLe, true}:  enum.IPredULE,
	{mir.OpGe, false}: enum.IPredSGE,
	{mir.OpGe, true}:  enum.IPredUGE,
	{mir.OpGt, false}: enum.IPredSGT,
	{mir.OpGt, true}:  enum.IPredUGT,
}

var floatPredicates = map[cmpKey]enum.FPred{
	{mir.OpEq, false}: enum.FPredOEQ,
	{mir.OpEq, true}:  enum.FPredUEQ,
	{mir.OpNe, false}: enum.FPredONE,
	{mir.OpNe, true}:  enum.FPredUNE,
	{mir.OpLt, false}: enum.FPredOLT,
	{mir.OpLt, true}:  enum.FPredULT,
	{mir.OpLe, false}: enum.FPredOLE,
	{mir.OpLe, true}:  enum.FPredULE,
	{mir.OpGe, false}: enum.FPredOGE,
	{mir.OpGe, true}:  enum.FPredUGE,
	{mir.OpGt, false}: enum.FPredOGT,
	{mir.OpGt, true}:  enum.FPredUGT,
}

func (g *Generator) buildCmp(node *mir.Node) {
	x := g.consume(node.Op1(), nil)
	y := g.consume(node.Op2(), nil)

	tx, ty := x.Type(), y.Type()
	if !tx.Equal(ty) {
		switch {
		case isPtrType(tx) && isIntType(ty):
			y = g.block.NewIntToPtr(y, tx)
		case isIntType(tx) && isPtrType(ty):
			x = g.block.NewIntToPtr(x, ty)
		case isPtrType(tx) && isPtrType(ty):
			y = g.block.NewBitCast(y, tx)
		default:
			report.Unsupported("comparison of %s and %s", tx, ty)
		}
	}

	var result value.Value
	if node.Op1().Type.IsIntegralOrI() {
		pred := intPredicates[cmpKey{node.Op, node.Has(mir.FlagUnsigned)}]
		result = g.block.NewICmp(pred, x, y)
	} else {
		pred := floatPredicates[cmpKey{node.Op, node.Has(mir.FlagUnordered)}]
		result = g.block.NewFCmp(pred, x, y)
	}

	g.produce(node, result)
}
