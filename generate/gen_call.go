package generate

import (
	"sort"

	"jitlower/mir"
	"jitlower/report"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Managed code keeps its GC references on the shadow stack.  Calls into code
// that may allocate or trigger a collection pass the callee's shadow stack
// (the caller's own, advanced past the caller's frame) as an implicit first
// argument.  Calls into native code instead publish it in a thread-local so
// native code calling back into managed code can find it.

func (g *Generator) buildCall(node *mir.Node) {
	call := node.Call
	report.Assert(call != nil, "call t%d has no call description", node.ID)

	switch call.Kind {
	case mir.CallHelper:
		g.buildHelperCall(node, call)
	case mir.CallUser, mir.CallIndirect:
		g.buildUserCall(node, call)
	default:
		report.Unsupported("unknown call kind %d", call.Kind)
	}
}

func (g *Generator) buildHelperCall(node *mir.Node, call *mir.Call) {
	id := call.Helper
	if g.prof.UnsupportedHelpers[string(id)] {
		report.Unsupported("calls to helper %s are not supported", id)
	}

	retType := g.callReturnType(call)

	if id == mir.HelperReadyToRunStaticBase {
		if len(call.Args) > 0 {
			report.Unsupported("helper %s takes no arguments", id)
		}

		fn := g.cache.Function(g.resolveSymbol(call.Target), types.NewFunc(retType, types.I8Ptr))
		g.produce(node, g.emitCall(fn, g.shadowStackForCallee()))
		return
	}

	entry, err := g.resolver.HelperEntry(id)
	if err != nil {
		report.Unsupported("%s", err)
	}

	args := g.sortedArgs(node, call)
	takesShadowStack := g.prof.ShadowStackHelpers[string(id)]

	var params []types.Type
	if takesShadowStack {
		params = append(params, types.I8Ptr)
	}

	for _, arg := range args {
		params = append(params, g.argType(arg))
	}

	fn := g.cache.Function(g.resolveSymbol(entry), types.NewFunc(retType, params...))
	if len(fn.Sig.Params) != len(params) {
		report.Unsupported("helper %s is declared with %d parameters but called with %d", id, len(fn.Sig.Params), len(params))
	}

	var argValues []value.Value
	if takesShadowStack {
		argValues = append(argValues, g.shadowStackForCallee())
	} else {
		g.publishShadowStack()
	}

	for _, arg := range args {
		argValues = append(argValues, g.argValue(arg, fn.Sig.Params[len(argValues)]))
	}

	g.produce(node, g.emitCall(fn, argValues...))
}

func (g *Generator) buildUserCall(node *mir.Node, call *mir.Call) {
	if call.VirtualStub {
		report.Unsupported("virtual stub dispatch is not supported")
	}

	args := g.sortedArgs(node, call)

	var params []types.Type
	if !call.Unmanaged {
		params = append(params, types.I8Ptr)
	}

	for _, arg := range args {
		params = append(params, g.argType(arg))
	}

	sig := types.NewFunc(g.callReturnType(call), params...)

	var callee value.Value
	if call.Kind == mir.CallIndirect || call.VirtualVtable {
		if call.Control == nil {
			report.Unsupported("indirect call t%d has no target", node.ID)
		}

		callee = g.consume(call.Control, types.NewPointer(sig))
	} else {
		fn := g.cache.Function(g.resolveSymbol(call.Target), sig)
		if len(fn.Sig.Params) != len(params) {
			report.Unsupported("`%s` is declared with %d parameters but called with %d", fn.Name(), len(fn.Sig.Params), len(params))
		}

		callee = fn
		sig = fn.Sig
	}

	var argValues []value.Value
	if call.Unmanaged {
		g.publishShadowStack()
	} else {
		argValues = append(argValues, g.shadowStackForCallee())
	}

	for _, arg := range args {
		argValues = append(argValues, g.argValue(arg, sig.Params[len(argValues)]))
	}

	g.produce(node, g.emitCall(callee, argValues...))
}

// sortedArgs returns the arguments of a call in parameter order.
func (g *Generator) sortedArgs(node *mir.Node, call *mir.Call) []*mir.CallArg {
	args := make([]*mir.CallArg, len(call.Args))
	copy(args, call.Args)

	sort.SliceStable(args, func(i, j int) bool {
		return args[i].ArgNum < args[j].ArgNum
	})

	for i, arg := range args {
		if arg.ArgNum != i {
			report.Unsupported("call t%d has no argument for parameter %d", node.ID, i)
		}
	}

	return args
}

func (g *Generator) callReturnType(call *mir.Call) types.Type {
	return g.convTypeWithLayout(call.ReturnType, call.ReturnLayout)
}

func (g *Generator) argType(arg *mir.CallArg) types.Type {
	return g.convTypeWithLayout(arg.Type, arg.Layout)
}

// argValue returns the value of an argument passed as type t.
func (g *Generator) argValue(arg *mir.CallArg, t types.Type) value.Value {
	n := arg.Node
	if n.Op == mir.OpPutArgType {
		n = n.Op1()
	}

	if n.Op == mir.OpFieldList {
		return g.buildFieldList(n, t)
	}

	return g.consume(n, t)
}

// buildFieldList assembles a struct argument from its fields.
func (g *Generator) buildFieldList(fl *mir.Node, t types.Type) value.Value {
	if len(fl.Fields) == 0 {
		report.Unsupported("empty field list t%d", fl.ID)
	}

	if _, ok := t.(*types.StructType); !ok {
		// a struct wrapping a single primitive is passed as that primitive
		if len(fl.Fields) != 1 {
			report.Unsupported("field list t%d of %d fields passed as %s", fl.ID, len(fl.Fields), t)
		}

		return g.consume(fl.Fields[0].Node, t)
	}

	slot := g.newTemp(t)
	for _, use := range fl.Fields {
		ft := g.convVarType(use.Type)
		addr := g.castIfNecessary(g.gepOrAddr(slot, use.Offset), types.NewPointer(ft))
		g.block.NewStore(g.consume(use.Node, ft), addr)
	}

	return g.block.NewLoad(t, slot)
}

// -----------------------------------------------------------------------------

// shadowStackForCallee returns the shadow stack of callees.  It is computed
// once in the prolog.
func (g *Generator) shadowStackForCallee() value.Value {
	if g.calleeShadowStack != nil {
		return g.calleeShadowStack
	}

	if !g.method.HasShadowStack {
		report.Unsupported("method without a shadow stack makes calls")
	}

	var ss value.Value = g.fn.Params[0]
	if g.method.FrameSize != 0 {
		gep := ir.NewGetElementPtr(types.I8, ss, constant.NewInt(types.I32, int64(g.method.FrameSize)))
		g.prolog.Insts = append(g.prolog.Insts, gep)
		ss = gep
	}

	g.calleeShadowStack = ss
	return ss
}

// publishShadowStack stores the callee shadow stack into the thread-local
// native code reads it from.
func (g *Generator) publishShadowStack() {
	top := g.cache.ThreadLocal(g.prof.ShadowStackTop, types.I8Ptr)
	g.block.NewStore(g.shadowStackForCallee(), top)
}

// emitCall emits a call in the current block.
func (g *Generator) emitCall(callee value.Value, args ...value.Value) *ir.InstCall {
	return g.block.NewCall(callee, args...)
}
