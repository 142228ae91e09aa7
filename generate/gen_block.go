package generate

import (
	"jitlower/mir"
	"jitlower/report"
	"jitlower/typing"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// visitBlock lowers a single block: all its nodes in order followed by the
// terminator implied by its jump kind.
func (g *Generator) visitBlock(b *mir.BasicBlock) {
	g.startBlock(b)

	for _, node := range b.Nodes {
		start := len(g.block.Insts)
		g.visitNode(node)
		g.locateInsts(g.block.Insts[start:])
	}

	g.endBlock(b)
	g.locateTerm(g.block)
}

func (g *Generator) startBlock(b *mir.BasicBlock) {
	if b.Kind == mir.JumpEHFinallyRet {
		report.Unsupported("finally handlers are not supported")
	}

	g.curBlock = b
	g.block = g.getBlock(b)

	// a statement does not span blocks
	g.curLine = 0
	g.curLocation = nil
}

// endBlock adds the terminator of the blocks whose jump is not the job of
// their last node.
func (g *Generator) endBlock(b *mir.BasicBlock) {
	switch b.Kind {
	case mir.JumpNone:
		if b.Next != nil {
			g.block.NewBr(g.getBlock(b.Next))
		}
	case mir.JumpAlways:
		if b.Dest != nil {
			g.block.NewBr(g.getBlock(b.Dest))
		}
	case mir.JumpThrow:
		g.block.NewUnreachable()
	}

	// the other kinds are terminated by their last node (or not at all
	// which fails the method once the walk is over)
}

// -----------------------------------------------------------------------------

func (g *Generator) buildJTrue(node *mir.Node) {
	if g.block.Term != nil {
		report.Unsupported("block %s has multiple terminators", g.block.Name())
	}

	cond := g.nodeValue(node.Op1())
	if !cond.Type().Equal(types.I1) {
		cond = g.truthValue(cond)
	}

	g.block.NewCondBr(cond, g.getBlock(g.curBlock.Dest), g.getBlock(g.curBlock.Next))
}

// truthValue compares a value against zero.
func (g *Generator) truthValue(v value.Value) value.Value {
	switch t := v.Type().(type) {
	case *types.IntType:
		return g.block.NewICmp(enum.IPredNE, v, constant.NewInt(t, 0))
	case *types.PointerType:
		return g.block.NewICmp(enum.IPredNE, v, constant.NewNull(t))
	}

	report.Unsupported("branch on a value of type %s", v.Type())
	return nil
}

func (g *Generator) buildReturn(node *mir.Node) {
	if g.block.Term != nil {
		report.Unsupported("block %s has multiple terminators", g.block.Name())
	}

	retType := g.fn.Sig.RetType
	if node.Type == typing.Void || retType.Equal(types.Void) {
		g.block.NewRet(nil)
		return
	}

	op := node.Op1()
	report.Assert(op != nil, "return of type %s without a value", node.Type)

	if node.Type == typing.Struct && op.IsIntegralConst(0) {
		g.block.NewRet(zeroValue(retType))
		return
	}

	if node.Type.ActualType() != op.Type.ActualType() {
		report.Unsupported("return of a %s value from a method returning %s", op.Type, node.Type)
	}

	g.block.NewRet(g.consume(op, retType))
}
