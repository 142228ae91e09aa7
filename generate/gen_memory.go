package generate

import (
	"fmt"

	"jitlower/mir"
	"jitlower/report"
	"jitlower/typing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// barrierKind is the way a store of an object reference is performed.
type barrierKind int

const (
	barrierNone      barrierKind = iota // plain store: the destination is not on the heap
	barrierUnchecked                    // the destination is known to be on the heap
	barrierChecked                      // the destination may or may not be on the heap
)

// storeBarrier selects the write barrier of a store to addr.
func storeBarrier(store *mir.Node, addr *mir.Node) barrierKind {
	switch {
	case addr.IsLocalAddr(), store.Has(mir.FlagTgtNotHeap):
		return barrierNone
	case store.Has(mir.FlagTgtHeap):
		return barrierUnchecked
	default:
		return barrierChecked
	}
}

// writeBarrier returns the runtime function implementing a write barrier.
// Both take the destination address and the reference stored.
func (g *Generator) writeBarrier(kind barrierKind) *ir.Func {
	name := g.prof.CheckedAssignRef
	if kind == barrierUnchecked {
		name = g.prof.AssignRef
	}

	return g.cache.Function(name, types.NewFunc(types.Void, types.I8Ptr, types.I8Ptr))
}

// -----------------------------------------------------------------------------

func (g *Generator) buildInd(node *mir.Node) {
	t := g.convVarType(node.Type)
	addr := g.consume(node.Addr(), types.NewPointer(t))
	g.emitNullCheck(node, addr)

	g.produce(node, g.block.NewLoad(t, addr))
}

func (g *Generator) buildBlk(node *mir.Node) {
	if node.Layout == nil {
		report.Unsupported("block load without a layout")
	}

	t := g.convLayout(node.Layout)
	addr := g.consume(node.Addr(), types.NewPointer(t))
	g.emitNullCheck(node, addr)

	g.produce(node, g.block.NewLoad(t, addr))
}

func (g *Generator) buildStoreInd(node *mir.Node) {
	t := g.convVarType(node.Type)

	kind := barrierNone
	if node.Type == typing.Ref {
		kind = storeBarrier(node, node.Addr())
	}

	addrType := types.Type(types.NewPointer(t))
	if kind != barrierNone {
		addrType = types.I8Ptr
	}

	addr := g.consume(node.Addr(), addrType)
	data := g.consume(node.Data(), t)
	g.emitNullCheck(node, addr)

	if kind == barrierNone {
		g.block.NewStore(data, addr)
	} else {
		g.emitCall(g.writeBarrier(kind), addr, data)
	}
}

func (g *Generator) buildStoreBlk(node *mir.Node) {
	layout := node.Layout
	if layout == nil {
		report.Unsupported("block store without a layout")
	}

	addr := g.consume(node.Addr(), types.I8Ptr)
	g.emitNullCheck(node, addr)

	if node.IsInitBlk() {
		var fill value.Value
		if data := node.Data(); data.Op == mir.OpInitVal {
			fill = g.consume(data.Op1(), types.I8)
		} else {
			fill = constant.NewInt(types.I8, 0)
		}

		g.emitMemset(addr, fill, constant.NewInt(types.I32, int64(layout.Size)))
		return
	}

	data := g.consume(node.Data(), g.convLayout(layout))

	if layout.HasGCPtr() && storeBarrier(node, node.Addr()) != barrierNone {
		g.storeObjAtAddress(addr, data, layout)
	} else {
		g.block.NewStore(data, g.castIfNecessary(addr, types.NewPointer(data.Type())))
	}
}

// storeObjAtAddress stores a struct value field by field so that the object
// references in it go through the write barrier.  The field addresses may be
// interior pointers so the barrier is always the checked one.  Padding that
// must be preserved is copied from the struct's bytes.
func (g *Generator) storeObjAtAddress(base, data value.Value, layout *mir.ClassLayout) {
	si := g.getStructInfo(layout)

	var spill value.Value
	copyPadding := func(from, to int) {
		if spill == nil {
			slot := g.newTemp(data.Type())
			g.block.NewStore(data, slot)
			spill = slot
		}

		g.emitMemcpy(g.gepOrAddr(base, from), g.gepOrAddr(spill, from), constant.NewInt(types.I32, int64(to-from)))
	}

	covered := 0
	for _, fd := range layout.Fields {
		if layout.SignificantPadding && fd.Offset > covered {
			copyPadding(covered, fd.Offset)
		}

		addr := g.gepOrAddr(base, fd.Offset)

		fieldValue := data
		if !si.single {
			fieldValue = g.block.NewExtractValue(data, uint64(si.elemIndex[fd.Offset]))
		}

		switch {
		case fd.Layout != nil && fd.Layout.HasGCPtr():
			g.storeObjAtAddress(addr, fieldValue, fd.Layout)
		case fd.GC:
			g.emitCall(g.writeBarrier(barrierChecked), addr, g.castIfNecessary(fieldValue, types.I8Ptr))
		default:
			g.block.NewStore(fieldValue, g.castIfNecessary(addr, types.NewPointer(fieldValue.Type())))
		}

		covered = fd.Offset + g.fieldSize(fd)
	}

	if layout.SignificantPadding && covered < layout.Size {
		copyPadding(covered, layout.Size)
	}
}

func (g *Generator) buildLclHeap(node *mir.Node) {
	sizeNode := node.Op1()
	if sizeNode.IsIntegralConst(0) {
		g.produce(node, constant.NewNull(types.I8Ptr))
		return
	}

	size := g.consume(sizeNode, nil)
	if !isIntType(size.Type()) {
		report.Unsupported("stack allocation of a %s size", size.Type())
	}

	buf := g.block.NewAlloca(types.I8)
	buf.NElems = size
	buf.Align = ir.Align(8)

	if g.method.InitLocals {
		g.emitMemset(buf, constant.NewInt(types.I8, 0), size)
	}

	if (sizeNode.Op == mir.OpCnsInt || sizeNode.Op == mir.OpCnsLng) && !sizeNode.IsIconHandle() {
		g.produce(node, buf)
		return
	}

	// the allocation always happens but the result must still be null for
	// a zero size
	nonZero := g.block.NewICmp(enum.IPredNE, size, constant.NewInt(size.Type().(*types.IntType), 0))
	g.produce(node, g.block.NewSelect(nonZero, buf, constant.NewNull(types.I8Ptr)))
}

// -----------------------------------------------------------------------------

func (g *Generator) buildNullCheck(node *mir.Node) {
	addr := g.consume(node.Op1(), types.I8Ptr)
	g.emitNullCheck(node, addr)
}

// emitNullCheck checks the address of an indirection unless the indirection
// is known not to fault.
func (g *Generator) emitNullCheck(node *mir.Node, addr value.Value) {
	if node.Has(mir.FlagNonFaulting) {
		return
	}

	addr = g.castIfNecessary(addr, types.I8Ptr)
	g.emitCall(g.throwIfNullFunc(), g.shadowStackForCallee(), addr)
}

// throwIfNullFunc returns the function that throws a null reference exception
// if its address argument is null.  It is shared by the whole module.
func (g *Generator) throwIfNullFunc() *ir.Func {
	if g.nullCheckFunc != nil {
		return g.nullCheckFunc
	}

	h, err := g.resolver.MethodHandle(g.prof.NullRefClass, g.prof.NullRefMethod)
	if err != nil {
		report.Unsupported("%s", err)
	}

	thrower := g.cache.Function(g.resolveSymbol(h), types.NewFunc(types.Void, types.I8Ptr))

	sig := types.NewFunc(types.Void, types.I8Ptr, types.I8Ptr)
	f, _ := g.cache.DefineOnce(g.prof.ThrowIfNull, sig, func(f *ir.Func) {
		f.Linkage = enum.LinkageInternal

		shadowStack, addr := f.Params[0], f.Params[1]

		entry := f.NewBlock("Block")
		throwBlock := f.NewBlock("ThrowBlock")
		retBlock := f.NewBlock("RetBlock")

		isNull := entry.NewICmp(enum.IPredEQ, addr, constant.NewNull(types.I8Ptr))
		entry.NewCondBr(isNull, throwBlock, retBlock)

		throwBlock.NewCall(thrower, shadowStack)
		throwBlock.NewUnreachable()

		retBlock.NewRet(nil)
	})

	if len(f.Params) != 2 {
		report.Unsupported("`%s` is declared with the wrong signature", g.prof.ThrowIfNull)
	}

	g.nullCheckFunc = f
	return f
}

// -----------------------------------------------------------------------------

// emitMemset fills size bytes at addr with a byte value.
func (g *Generator) emitMemset(addr, fill, size value.Value) {
	st := size.Type()
	memset := g.cache.Intrinsic(
		fmt.Sprintf("llvm.memset.p0i8.%s", st),
		types.Void, types.I8Ptr, types.I8, st, types.I1,
	)

	g.emitCall(memset, g.castIfNecessary(addr, types.I8Ptr), fill, size, constant.False)
}

// emitMemcpy copies size bytes from src to dst.
func (g *Generator) emitMemcpy(dst, src, size value.Value) {
	st := size.Type()
	memcpy := g.cache.Intrinsic(
		fmt.Sprintf("llvm.memcpy.p0i8.p0i8.%s", st),
		types.Void, types.I8Ptr, types.I8Ptr, st, types.I1,
	)

	g.emitCall(memcpy, g.castIfNecessary(dst, types.I8Ptr), g.castIfNecessary(src, types.I8Ptr), size, constant.False)
}
