package generate

import (
	"testing"

	"jitlower/config"
	"jitlower/mir"
	"jitlower/typing"

	"github.com/llir/llvm/ir"
)

// methodBuilder assembles input methods for the tests.
type methodBuilder struct {
	m      *mir.Method
	nextID int
}

func newMethod(name string) *methodBuilder {
	return &methodBuilder{m: &mir.Method{Name: name, Symbol: name, ReturnType: typing.Void}}
}

// param adds an SSA parameter with an implicit first definition.
func (mb *methodBuilder) param(vt typing.VarType, argNum int) int {
	return mb.local(&mir.LocalVar{
		Type:     vt,
		RefCount: 1,
		IsParam:  true,
		ArgNum:   argNum,
		InSsa:    true,
		Tracked:  true,
		PerSsa:   []mir.SsaDef{{}},
	})
}

func (mb *methodBuilder) local(lv *mir.LocalVar) int {
	mb.m.Locals = append(mb.m.Locals, lv)
	return len(mb.m.Locals) - 1
}

// block adds a block.  Blocks are linked in the order they are added and each
// block is a dominator tree child of the block passed as idom.
func (mb *methodBuilder) block(kind mir.JumpKind, idom *mir.BasicBlock) *mir.BasicBlock {
	b := &mir.BasicBlock{Num: len(mb.m.Blocks) + 1, Kind: kind}
	if idom != nil {
		idom.DomChildren = append(idom.DomChildren, b)
	}

	mb.m.Blocks = append(mb.m.Blocks, b)
	mb.m.LinkBlocks()
	return b
}

// node appends a node to a block.
func (mb *methodBuilder) node(b *mir.BasicBlock, op mir.Opcode, vt typing.VarType, operands ...*mir.Node) *mir.Node {
	mb.nextID++
	n := &mir.Node{ID: mb.nextID, Op: op, Type: vt, Operands: operands}
	b.Nodes = append(b.Nodes, n)
	return n
}

func (mb *methodBuilder) lclVar(b *mir.BasicBlock, lclNum, ssaNum int) *mir.Node {
	n := mb.node(b, mir.OpLclVar, mb.m.Locals[lclNum].Type.ActualType())
	n.Local, n.Ssa = lclNum, ssaNum
	return n
}

func (mb *methodBuilder) storeLclVar(b *mir.BasicBlock, lclNum, ssaNum int, data *mir.Node) *mir.Node {
	n := mb.node(b, mir.OpStoreLclVar, mb.m.Locals[lclNum].Type, data)
	n.Local, n.Ssa = lclNum, ssaNum
	return n
}

func (mb *methodBuilder) cnsInt(b *mir.BasicBlock, v int64) *mir.Node {
	n := mb.node(b, mir.OpCnsInt, typing.Int)
	n.IntVal = v
	return n
}

// -----------------------------------------------------------------------------

// lowering is the outcome of lowering a single method in a fresh module.
type lowering struct {
	gen    *Generator
	cache  *SymbolCache
	result *Result
	err    error
}

func lower(m *mir.Method, st *mir.SymbolTable) *lowering {
	if st == nil {
		st = mir.NewSymbolTable()
	}

	cache := NewSymbolCache(ir.NewModule(), config.Default())
	gen := NewGenerator(cache, st, m)
	result, err := gen.Generate()

	return &lowering{gen: gen, cache: cache, result: result, err: err}
}

func mustLower(t *testing.T, m *mir.Method, st *mir.SymbolTable) *lowering {
	t.Helper()

	l := lower(m, st)
	if l.err != nil {
		t.Fatalf("lowering %s failed: %s", m.Name, l.err)
	}

	return l
}

// block returns the lowered block with the given name.
func (l *lowering) block(t *testing.T, name string) *ir.Block {
	t.Helper()

	for _, b := range l.result.Func.Blocks {
		if b.Name() == name {
			return b
		}
	}

	t.Fatalf("no block %s", name)
	return nil
}

// insts returns all the instructions of the lowered function.
func (l *lowering) insts() []ir.Instruction {
	var insts []ir.Instruction
	for _, b := range l.result.Func.Blocks {
		insts = append(insts, b.Insts...)
	}

	return insts
}

// calls returns the names of the functions called directly by the lowered
// function in order.
func (l *lowering) calls() []string {
	var names []string
	for _, inst := range l.insts() {
		if call, ok := inst.(*ir.InstCall); ok {
			if f, ok := call.Callee.(*ir.Func); ok {
				names = append(names, f.Name())
			}
		}
	}

	return names
}

// count returns the number of instructions accepted by pred.
func (l *lowering) count(pred func(ir.Instruction) bool) int {
	n := 0
	for _, inst := range l.insts() {
		if pred(inst) {
			n++
		}
	}

	return n
}

func isAlloca(inst ir.Instruction) bool {
	_, ok := inst.(*ir.InstAlloca)
	return ok
}

func isStore(inst ir.Instruction) bool {
	_, ok := inst.(*ir.InstStore)
	return ok
}

func isPhi(inst ir.Instruction) bool {
	_, ok := inst.(*ir.InstPhi)
	return ok
}
