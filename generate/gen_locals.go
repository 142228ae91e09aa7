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

// initializeLocals gives every local with native storage its initial value:
// either in the SSA value map or in a stack slot allocated in the prolog.
func (g *Generator) initializeLocals() {
	for lclNum, lv := range g.method.Locals {
		if !lv.NativeStorage() {
			continue
		}

		t := g.convLocalType(lv)
		zero := zeroValue(t)

		var initValue value.Value
		if lv.IsParam {
			report.Assert(lv.ArgNum < len(g.fn.Params), "local V%02d is bound to missing parameter %d", lclNum, lv.ArgNum)
			initValue = g.fn.Params[lv.ArgNum]
		} else if lv.InSsa && !lv.AddrExposed {
			// SSA locals only need an initial value if their first
			// definition is implicit: liveness decides whether it is zero
			if len(lv.PerSsa) == 0 {
				continue
			}

			if lv.SsaDef(mir.FirstSsaNum).Def != nil {
				report.Assert(!lv.MustInit, "local V%02d must be initialized but has an explicit first definition", lclNum)
				continue
			}

			if lv.MustInit {
				initValue = zero
			}
		} else if !lv.HasExplicitInit {
			// untracked locals have no liveness so they are always zeroed
			if !lv.Tracked || lv.MustInit {
				initValue = zero
			}
		}

		if !lv.IsParam {
			lv.MustInit = initValue == zero
		}

		if initValue == nil {
			freeze := ir.NewInstFreeze(constant.NewUndef(t))
			g.prolog.Insts = append(g.prolog.Insts, freeze)
			initValue = freeze
		}

		if lv.IsFrameLocal() {
			slot := g.prolog.NewAlloca(t)
			g.prolog.NewStore(initValue, slot)
			g.frameSlots[lclNum] = slot
		} else {
			g.localValues[ssaKey{lclNum, mir.FirstSsaNum}] = initValue
		}
	}
}

// newTemp allocates an anonymous stack slot in the prolog.
func (g *Generator) newTemp(t types.Type) *ir.InstAlloca {
	slot := ir.NewAlloca(t)

	// the prolog ends in a branch once it is complete: the slot goes before
	// it since the terminator is kept apart from the instructions
	g.prolog.Insts = append(g.prolog.Insts, slot)
	return slot
}

// frameSlot returns the stack slot of a frame local.
func (g *Generator) frameSlot(lclNum int) value.Value {
	slot, ok := g.frameSlots[lclNum]
	report.Assert(ok, "local V%02d has no stack slot", lclNum)

	return slot
}

// localDesc returns the descriptor of the local accessed by a node.
func (g *Generator) localDesc(node *mir.Node) *mir.LocalVar {
	lv := g.method.Local(node.Local)
	report.Assert(lv != nil, "node t%d accesses unknown local V%02d", node.ID, node.Local)

	return lv
}

// -----------------------------------------------------------------------------

func (g *Generator) buildLocalVar(node *mir.Node) {
	lv := g.localDesc(node)

	var v value.Value
	if lv.IsFrameLocal() {
		v = g.block.NewLoad(g.convLocalType(lv), g.frameSlot(node.Local))
	} else {
		var ok bool
		v, ok = g.localValues[ssaKey{node.Local, node.Ssa}]
		report.Assert(ok, "V%02d.%d is used before it is defined", node.Local, node.Ssa)
	}

	// an int read of a long local implicitly truncates
	if lv.Type == typing.Long && node.Type == typing.Int {
		v = g.block.NewTrunc(v, types.I32)
	}

	g.produce(node, v)
}

func (g *Generator) buildStoreLocalVar(node *mir.Node) {
	lv := g.localDesc(node)
	t := g.convLocalType(lv)

	var v value.Value
	if node.Type == typing.Struct && node.Op1().IsIntegralConst(0) {
		v = zeroValue(t)
	} else {
		v = g.consume(node.Op1(), t)
	}

	if lv.IsFrameLocal() {
		g.block.NewStore(v, g.frameSlot(node.Local))
		return
	}

	key := ssaKey{node.Local, node.Ssa}
	_, ok := g.localValues[key]
	report.Assert(!ok, "V%02d.%d is defined twice", node.Local, node.Ssa)

	g.localValues[key] = v
}

func (g *Generator) buildLocalField(node *mir.Node) {
	if node.Type == typing.Struct {
		report.Unsupported("struct typed local field reads are not supported")
	}

	lv := g.localDesc(node)
	if !lv.IsFrameLocal() {
		report.Unsupported("field read of local V%02d which has no stack slot", node.Local)
	}

	t := g.convVarType(node.Type)
	addr := g.gepOrAddr(g.frameSlot(node.Local), node.Offset)
	addr = g.castIfNecessary(addr, types.NewPointer(t))

	g.produce(node, g.block.NewLoad(t, addr))
}

func (g *Generator) buildLocalVarAddr(node *mir.Node) {
	lv := g.localDesc(node)
	if !lv.IsFrameLocal() {
		report.Unsupported("address of local V%02d which has no stack slot", node.Local)
	}

	slot := g.frameSlot(node.Local)
	if node.Op == mir.OpLclFldAddr {
		g.produce(node, g.gepOrAddr(slot, node.Offset))
	} else {
		g.produce(node, slot)
	}
}
