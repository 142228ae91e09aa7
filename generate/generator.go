package generate

import (
	"sort"

	"jitlower/config"
	"jitlower/mir"
	"jitlower/report"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Resolver resolves the handles of the input IR to symbol names.  Naming is
// the job of the surrounding compiler: the generator only records which
// handles it needed.
type Resolver interface {
	// SymbolName returns the mangled name of the entity a handle refers to.
	SymbolName(h mir.Handle) (string, error)

	// HelperEntry returns the entry point handle of a runtime helper.
	HelperEntry(id mir.HelperID) (mir.Handle, error)

	// MethodHandle returns the entry point handle of a runtime method.
	MethodHandle(class, method string) (mir.Handle, error)
}

// Reloc is a relocation the linker must apply: a reference from lowered code
// to the symbol of a handle.
type Reloc struct {
	Handle mir.Handle
	Symbol string
}

// Result is the output of lowering a single method.
type Result struct {
	Func   *ir.Func
	Relocs []Reloc
}

// ssaKey identifies an SSA definition of a local.
type ssaKey struct {
	lclNum int
	ssaNum int
}

// phiPair connects a phi node of the input IR to the phi instruction created
// for it.  The incomings are filled in once all the blocks are lowered.
type phiPair struct {
	node  *mir.Node
	phi   *ir.InstPhi
	block *mir.BasicBlock
}

// Generator lowers the body of a single method into a function of the output
// module.  A generator is used exactly once: for a concurrent build, create
// one generator per method all sharing the same SymbolCache.
type Generator struct {
	// cache is the shared symbol cache of the output module.
	cache *SymbolCache

	// prof is the lowering profile.
	prof *config.Profile

	// resolver names the handles referenced by the method.
	resolver Resolver

	// method is the method being lowered.
	method *mir.Method

	// fn is the function being built.
	fn *ir.Func

	// prolog is the entry block of fn.  All stack slots are allocated in it.
	prolog *ir.Block

	// block is the block instructions are currently appended to.  curBlock
	// is the input block being lowered.
	block    *ir.Block
	curBlock *mir.BasicBlock

	// blocks maps the input blocks onto their lowered counterparts.
	blocks map[*mir.BasicBlock]*ir.Block

	// nodeValues stores the value produced by each node.
	nodeValues map[*mir.Node]value.Value

	// localValues stores the value of each SSA definition of a local.
	localValues map[ssaKey]value.Value

	// frameSlots stores the stack slot of each frame local by local number.
	frameSlots map[int]value.Value

	// phis are the phis whose incomings must still be filled in.
	phis []phiPair

	// relocs are the relocations recorded while lowering.  relocSet is used
	// to deduplicate them.
	relocs   []Reloc
	relocSet map[mir.Handle]bool

	// structs caches the lowered form of struct layouts.
	structs map[*mir.ClassLayout]*structInfo

	// calleeShadowStack is the shadow stack passed to callees: it starts
	// right past the frame of this method.
	calleeShadowStack value.Value

	// nullCheckFunc is the null check function once it has been looked up.
	nullCheckFunc *ir.Func

	// subprogram is the debug subprogram of the method if debug info is
	// enabled.  curLine is the current source line and curLocation the
	// location created for it.
	subprogram  *metadata.DISubprogram
	curLine     int
	curLocation *metadata.DILocation
}

// NewGenerator creates a new generator for the given method.
func NewGenerator(cache *SymbolCache, resolver Resolver, method *mir.Method) *Generator {
	return &Generator{
		cache:       cache,
		prof:        cache.Profile(),
		resolver:    resolver,
		method:      method,
		blocks:      make(map[*mir.BasicBlock]*ir.Block),
		nodeValues:  make(map[*mir.Node]value.Value),
		localValues: make(map[ssaKey]value.Value),
		frameSlots:  make(map[int]value.Value),
		relocSet:    make(map[mir.Handle]bool),
		structs:     make(map[*mir.ClassLayout]*structInfo),
	}
}

// Generate lowers the method.  If lowering fails, a *report.Failure is
// returned and the function (if it was already declared) is left without a
// body.
func (g *Generator) Generate() (result *Result, err error) {
	defer func() {
		if err != nil && g.fn != nil {
			g.fn.Blocks = nil
			g.fn.Metadata = nil
		}
	}()

	defer report.CatchFailure(g.method.Name, &err)

	g.checkMethod()
	g.declareFunc()
	g.startDebugInfo()
	g.generateProlog()

	g.method.WalkDomTree(g.visitBlock)

	g.fillPhis()
	g.checkTerminators()
	g.locateProlog()

	sort.Slice(g.relocs, func(i, j int) bool {
		return g.relocs[i].Handle < g.relocs[j].Handle
	})

	return &Result{Func: g.fn, Relocs: g.relocs}, nil
}

// checkMethod rejects the methods whose shape the lowering does not support.
func (g *Generator) checkMethod() {
	m := g.method

	if m.ReversePInvoke {
		report.Unsupported("reverse native interop wrappers are not supported")
	}

	if m.ExplicitThis {
		report.Unsupported("explicit this parameters are not supported")
	}

	if m.TypeArg {
		report.Unsupported("generic context parameters are not supported")
	}

	if m.EHRegions > 0 {
		report.Unsupported("exception handling is not supported")
	}

	if len(m.Blocks) == 0 {
		report.Unsupported("method has no blocks")
	}
}

// declareFunc creates the function that will hold the method's body.
func (g *Generator) declareFunc() {
	m := g.method

	nparams := m.ParamCount()
	params := make([]types.Type, nparams)
	for i := range params {
		if i == 0 && m.HasShadowStack {
			params[i] = types.I8Ptr
			continue
		}

		_, lv := m.ParamLocal(i)
		if lv == nil {
			report.Unsupported("parameter %d has no local", i)
		}

		params[i] = g.convLocalType(lv)
	}

	retType := types.Type(types.Void)
	if !m.RetBuffer {
		retType = g.convTypeWithLayout(m.ReturnType, m.ReturnLayout)
	}

	fn, err := g.cache.ClaimDefinition(m.Symbol, types.NewFunc(retType, params...))
	if err != nil {
		report.Unsupported("%s", err)
	}

	g.fn = fn
}

// generateProlog creates the entry block, initializes the locals, and creates
// the blocks of the method.
func (g *Generator) generateProlog() {
	g.prolog = g.fn.NewBlock("Prolog")
	g.block = g.prolog

	g.initializeLocals()

	// only the blocks reachable through the dominator tree are lowered
	reachable := make(map[*mir.BasicBlock]bool)
	g.method.WalkDomTree(func(b *mir.BasicBlock) {
		reachable[b] = true
	})

	for _, b := range g.method.Blocks {
		if reachable[b] {
			g.blocks[b] = g.fn.NewBlock(b.Name())
		}
	}

	g.prolog.NewBr(g.getBlock(g.method.FirstBlock()))
}

// locateProlog gives the prolog the location of the first line of the method.
func (g *Generator) locateProlog() {
	g.curLine = 0
	g.curLocation = nil

	g.locateInsts(g.prolog.Insts)
	g.locateTerm(g.prolog)
}

// checkTerminators makes sure every block the lowering created ends in a
// terminator.  A block without one means the input ended a block in a way the
// lowering does not handle.
func (g *Generator) checkTerminators() {
	for _, b := range g.fn.Blocks {
		if b.Term == nil {
			report.Unsupported("block %s has no terminator", b.Name())
		}
	}
}

// -----------------------------------------------------------------------------

// getBlock returns the lowered block of an input block.
func (g *Generator) getBlock(b *mir.BasicBlock) *ir.Block {
	report.Assert(b != nil, "missing block")

	if lb, ok := g.blocks[b]; ok {
		return lb
	}

	report.Unsupported("block %s is not reachable from the entry block", b.Name())
	return nil
}

// symbolName resolves the name of a handle.
func (g *Generator) symbolName(h mir.Handle) string {
	name, err := g.resolver.SymbolName(h)
	if err != nil {
		report.Unsupported("%s", err)
	}

	return name
}

// addReloc records a relocation for a handle.
func (g *Generator) addReloc(h mir.Handle, symbol string) {
	if g.relocSet[h] {
		return
	}

	g.relocSet[h] = true
	g.relocs = append(g.relocs, Reloc{Handle: h, Symbol: symbol})
}

// resolveSymbol resolves the name of a handle and records a relocation for it.
func (g *Generator) resolveSymbol(h mir.Handle) string {
	name := g.symbolName(h)
	g.addReloc(h, name)
	return name
}
