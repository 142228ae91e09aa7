package generate

import (
	"jitlower/mir"
	"jitlower/report"

	"github.com/llir/llvm/ir"
)

// Phis are lowered in two passes since the value flowing in from a back edge
// is only lowered after the phi itself.  buildEmptyPhi creates the phi without
// any incomings and fillPhis adds them once the whole method is lowered.

func (g *Generator) buildEmptyPhi(node *mir.Node) {
	first := node.Op1()
	report.Assert(first != nil && first.Op == mir.OpPhiArg, "phi t%d has no arguments", node.ID)

	lv := g.method.Local(first.Local)
	report.Assert(lv != nil, "phi t%d merges unknown local V%02d", node.ID, first.Local)

	// the phi can't be built with the constructor since it computes the
	// type from the incomings
	phi := &ir.InstPhi{Typ: g.convLocalType(lv)}

	// phis must lead the block
	insts := g.block.Insts
	pos := 0
	for pos < len(insts) {
		if _, ok := insts[pos].(*ir.InstPhi); !ok {
			break
		}

		pos++
	}

	insts = append(insts, nil)
	copy(insts[pos+1:], insts[pos:])
	insts[pos] = phi
	g.block.Insts = insts

	g.phis = append(g.phis, phiPair{node: node, phi: phi, block: g.curBlock})
	g.produce(node, phi)
}

// fillPhis adds the incomings of all the phis.  A value whose type differs
// from the phi's is converted at the end of its predecessor block.
func (g *Generator) fillPhis() {
	for _, pp := range g.phis {
		preds := pp.block.Preds
		if len(pp.node.Operands) != len(preds) {
			report.Unsupported("phi t%d has %d arguments but its block has %d predecessors", pp.node.ID, len(pp.node.Operands), len(preds))
		}

		// a block appears in preds once per edge so each argument consumes
		// one of its edges
		edges := make(map[*mir.BasicBlock]int, len(preds))
		for _, pred := range preds {
			edges[pred]++
		}

		for _, arg := range pp.node.Operands {
			report.Assert(arg.Op == mir.OpPhiArg, "phi t%d has a %s argument", pp.node.ID, arg.Op)

			if edges[arg.Pred] == 0 {
				report.Unsupported("phi t%d has an argument from %s which is not a predecessor of %s", pp.node.ID, arg.Pred.Name(), pp.block.Name())
			}
			edges[arg.Pred]--

			v, ok := g.localValues[ssaKey{arg.Local, arg.Ssa}]
			report.Assert(ok, "V%02d.%d flowing into phi t%d is never defined", arg.Local, arg.Ssa, pp.node.ID)

			pred := g.getBlock(arg.Pred)
			v = castInBlock(pred, v, pp.phi.Typ)

			pp.phi.Incs = append(pp.phi.Incs, ir.NewIncoming(v, pred))
		}
	}
}
