package generate

import (
	"jitlower/mir"
	"jitlower/report"

	"github.com/llir/llvm/ir/types"
)

// visitNode lowers a single node.  The set of opcodes lowered here is closed:
// anything else must have been removed by the upstream passes.
func (g *Generator) visitNode(node *mir.Node) {
	switch node.Op {
	case mir.OpAdd:
		g.buildAdd(node)
	case mir.OpSub, mir.OpMul, mir.OpDiv, mir.OpUDiv, mir.OpMod, mir.OpUMod:
		g.buildArith(node)
	case mir.OpAnd, mir.OpOr, mir.OpXor:
		g.buildBitwise(node)
	case mir.OpLsh, mir.OpRsh, mir.OpRsz:
		g.buildShift(node)
	case mir.OpNeg, mir.OpNot:
		g.buildUnary(node)
	case mir.OpEq, mir.OpNe, mir.OpLt, mir.OpLe, mir.OpGe, mir.OpGt:
		g.buildCmp(node)
	case mir.OpCast:
		g.buildCast(node)
	case mir.OpCnsInt:
		g.buildCnsInt(node)
	case mir.OpCnsLng:
		g.buildCnsLng(node)
	case mir.OpCnsDbl:
		g.buildCnsDouble(node)
	case mir.OpCall:
		g.buildCall(node)
	case mir.OpLclHeap:
		g.buildLclHeap(node)
	case mir.OpInd:
		g.buildInd(node)
	case mir.OpObj, mir.OpBlk:
		g.buildBlk(node)
	case mir.OpStoreInd:
		g.buildStoreInd(node)
	case mir.OpStoreBlk, mir.OpStoreObj:
		g.buildStoreBlk(node)
	case mir.OpNullCheck:
		g.buildNullCheck(node)
	case mir.OpLclVar:
		g.buildLocalVar(node)
	case mir.OpStoreLclVar:
		g.buildStoreLocalVar(node)
	case mir.OpLclFld:
		g.buildLocalField(node)
	case mir.OpLclVarAddr, mir.OpLclFldAddr:
		g.buildLocalVarAddr(node)
	case mir.OpPhi:
		g.buildEmptyPhi(node)
	case mir.OpJTrue:
		g.buildJTrue(node)
	case mir.OpReturn:
		g.buildReturn(node)
	case mir.OpILOffset:
		g.buildILOffset(node)
	case mir.OpNoOp:
		g.emitCall(g.cache.Intrinsic("llvm.donothing", types.Void))
	case mir.OpPhiArg, mir.OpPutArgType, mir.OpFieldList, mir.OpInitVal:
		// lowered as a part of their user
	default:
		report.Unsupported("%s nodes are not supported", node.Op)
	}
}

// buildILOffset starts a new statement.
func (g *Generator) buildILOffset(node *mir.Node) {
	g.curLine = node.Line
	g.curLocation = nil
}
