package generate

import (
	"testing"

	"jitlower/config"
	"jitlower/mir"
	"jitlower/typing"

	"github.com/google/go-cmp/cmp"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

func nullCheckSymbols() *mir.SymbolTable {
	st := mir.NewSymbolTable()
	st.AddMethod("ThrowHelpers", "ThrowNullReferenceException", 0x900)
	st.AddSymbol(0x900, "ThrowHelpers_ThrowNullReferenceException")
	return st
}

// buildStoreMethod builds `void M(byref p, T v) { *p = v; }`.
func buildStoreMethod(vt typing.VarType, flags mir.NodeFlags) *mir.Method {
	mb := newMethod("Store")
	mb.m.HasShadowStack = true

	p := mb.param(typing.Byref, 1)
	v := mb.param(vt, 2)

	bb := mb.block(mir.JumpReturn, nil)
	addr := mb.lclVar(bb, p, 1)
	data := mb.lclVar(bb, v, 1)

	store := mb.node(bb, mir.OpStoreInd, vt, addr, data)
	store.Flags = flags

	mb.node(bb, mir.OpReturn, typing.Void)
	return mb.m
}

func TestStoreWriteBarriers(t *testing.T) {
	tests := []struct {
		name   string
		vt     typing.VarType
		flags  mir.NodeFlags
		calls  []string
		stores int
	}{
		{"checked", typing.Ref, 0, []string{"RhpCheckedAssignRef"}, 0},
		{"heap", typing.Ref, mir.FlagTgtHeap, []string{"RhpAssignRef"}, 0},
		{"not heap", typing.Ref, mir.FlagTgtNotHeap, nil, 1},
		{"int", typing.Int, mir.FlagTgtHeap, nil, 1},
		{"null checked", typing.Int, 0, []string{"nativeaot.throwifnull"}, 1},
	}

	for _, test := range tests {
		flags := test.flags
		if test.name != "null checked" {
			flags |= mir.FlagNonFaulting
		}

		l := lower(buildStoreMethod(test.vt, flags), nullCheckSymbols())
		if l.err != nil {
			t.Errorf("%s: %s", test.name, l.err)
			continue
		}

		if diff := cmp.Diff(test.calls, l.calls()); diff != "" {
			t.Errorf("%s: calls mismatch (-want +got):\n%s", test.name, diff)
		}

		if n := l.count(isStore); n != test.stores {
			t.Errorf("%s: got %d stores, want %d", test.name, n, test.stores)
		}
	}
}

func TestStoreToLocalAddressHasNoBarrier(t *testing.T) {
	mb := newMethod("StoreLocal")
	mb.m.HasShadowStack = true

	v := mb.param(typing.Ref, 1)
	slot := mb.local(&mir.LocalVar{Type: typing.Ref, RefCount: 2, AddrExposed: true, Tracked: true, HasExplicitInit: true})

	bb := mb.block(mir.JumpReturn, nil)
	addr := mb.node(bb, mir.OpLclVarAddr, typing.Byref)
	addr.Local = slot
	data := mb.lclVar(bb, v, 1)

	store := mb.node(bb, mir.OpStoreInd, typing.Ref, addr, data)
	store.Flags = mir.FlagNonFaulting

	mb.node(bb, mir.OpReturn, typing.Void)

	l := mustLower(t, mb.m, nil)

	if calls := l.calls(); len(calls) != 0 {
		t.Errorf("got calls %v, want none", calls)
	}

	// the prolog initializes the slot, the body stores to it
	if n := l.count(isStore); n != 2 {
		t.Errorf("got %d stores, want 2", n)
	}
}

// buildStoreBlkMethod builds `void M(byref p, S v) { *p = v; }` for a struct
// layout.
func buildStoreBlkMethod(layout *mir.ClassLayout, flags mir.NodeFlags) *mir.Method {
	mb := newMethod("StoreBlk")
	mb.m.HasShadowStack = true

	p := mb.param(typing.Byref, 1)
	v := mb.param(typing.Struct, 2)
	mb.m.Locals[v].Layout = layout

	bb := mb.block(mir.JumpReturn, nil)
	store := mb.node(bb, mir.OpStoreBlk, typing.Struct, mb.lclVar(bb, p, 1), mb.lclVar(bb, v, 1))
	store.Layout = layout
	store.Flags = flags | mir.FlagNonFaulting

	mb.node(bb, mir.OpReturn, typing.Void)
	return mb.m
}

func TestStoreBlkWithGCFields(t *testing.T) {
	layout := &mir.ClassLayout{
		Name: "Pair",
		Size: 16,
		Fields: []*mir.FieldDesc{
			{Offset: 0, Type: typing.Ref, GC: true},
			{Offset: 4, Type: typing.Int},
			{Offset: 8, Type: typing.Long},
		},
	}

	tests := []struct {
		name     string
		flags    mir.NodeFlags
		calls    []string
		extracts int
		stores   int
	}{
		// field addresses may be interior pointers even into a known heap object
		{"heap", mir.FlagTgtHeap, []string{"RhpCheckedAssignRef"}, 3, 2},
		{"unknown", 0, []string{"RhpCheckedAssignRef"}, 3, 2},
		{"not heap", mir.FlagTgtNotHeap, nil, 0, 1},
	}

	for _, test := range tests {
		l := lower(buildStoreBlkMethod(layout, test.flags), nil)
		if l.err != nil {
			t.Errorf("%s: %s", test.name, l.err)
			continue
		}

		if diff := cmp.Diff(test.calls, l.calls()); diff != "" {
			t.Errorf("%s: calls mismatch (-want +got):\n%s", test.name, diff)
		}

		extracts := l.count(func(inst ir.Instruction) bool {
			_, ok := inst.(*ir.InstExtractValue)
			return ok
		})

		if extracts != test.extracts {
			t.Errorf("%s: got %d field extractions, want %d", test.name, extracts, test.extracts)
		}

		if n := l.count(isStore); n != test.stores {
			t.Errorf("%s: got %d plain stores, want %d", test.name, n, test.stores)
		}
	}
}

func TestStoreBlkToLocalAddressHasNoBarrier(t *testing.T) {
	layout := &mir.ClassLayout{
		Name: "Holder",
		Size: 8,
		Fields: []*mir.FieldDesc{
			{Offset: 0, Type: typing.Ref, GC: true},
		},
	}

	mb := newMethod("StoreBlkLocal")
	mb.m.HasShadowStack = true

	v := mb.param(typing.Struct, 1)
	mb.m.Locals[v].Layout = layout
	slot := mb.local(&mir.LocalVar{Type: typing.Struct, Layout: layout, RefCount: 2, AddrExposed: true, Tracked: true, HasExplicitInit: true})

	bb := mb.block(mir.JumpReturn, nil)
	addr := mb.node(bb, mir.OpLclVarAddr, typing.Byref)
	addr.Local = slot

	store := mb.node(bb, mir.OpStoreBlk, typing.Struct, addr, mb.lclVar(bb, v, 1))
	store.Layout = layout
	store.Flags = mir.FlagNonFaulting

	mb.node(bb, mir.OpReturn, typing.Void)

	l := mustLower(t, mb.m, nil)

	if calls := l.calls(); len(calls) != 0 {
		t.Errorf("got calls %v, want none", calls)
	}

	// the prolog initializes the slot, the body stores the whole struct
	if n := l.count(isStore); n != 2 {
		t.Errorf("got %d stores, want 2", n)
	}
}

func TestStoreBlkCopiesSignificantPadding(t *testing.T) {
	layout := &mir.ClassLayout{
		Name:               "Padded",
		Size:               24,
		SignificantPadding: true,
		Fields: []*mir.FieldDesc{
			{Offset: 0, Type: typing.Ref, GC: true},
			{Offset: 12, Type: typing.Int},
		},
	}

	l := mustLower(t, buildStoreBlkMethod(layout, 0), nil)

	var got []string
	var sizes []int64
	for _, inst := range l.insts() {
		call, ok := inst.(*ir.InstCall)
		if !ok {
			continue
		}

		f := call.Callee.(*ir.Func)
		if f.Name() == "RhpCheckedAssignRef" {
			got = append(got, "barrier")
			continue
		}

		got = append(got, "memcpy")
		if size, ok := call.Args[2].(*constant.Int); ok {
			sizes = append(sizes, size.X.Int64())
		}
	}

	// the gap between the fields and the tail are copied from a spill of the
	// struct value
	if diff := cmp.Diff([]string{"barrier", "memcpy", "memcpy"}, got); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int64{4, 8}, sizes); diff != "" {
		t.Errorf("padding sizes mismatch (-want +got):\n%s", diff)
	}

	// the int field and the spill
	if n := l.count(isStore); n != 2 {
		t.Errorf("got %d plain stores, want 2", n)
	}
}

func TestStoreBlkWithoutGCFields(t *testing.T) {
	layout := &mir.ClassLayout{
		Name:   "Point",
		Size:   8,
		Fields: []*mir.FieldDesc{{Offset: 0, Type: typing.Int}, {Offset: 4, Type: typing.Int}},
	}

	mb := newMethod("StorePoint")
	mb.m.HasShadowStack = true

	p := mb.param(typing.Byref, 1)
	v := mb.param(typing.Struct, 2)
	mb.m.Locals[v].Layout = layout

	bb := mb.block(mir.JumpReturn, nil)
	store := mb.node(bb, mir.OpStoreBlk, typing.Struct, mb.lclVar(bb, p, 1), mb.lclVar(bb, v, 1))
	store.Layout = layout
	store.Flags = mir.FlagNonFaulting

	mb.node(bb, mir.OpReturn, typing.Void)

	l := mustLower(t, mb.m, nil)

	if calls := l.calls(); len(calls) != 0 {
		t.Errorf("got calls %v, want none", calls)
	}

	if n := l.count(isStore); n != 1 {
		t.Errorf("got %d stores, want the struct stored at once", n)
	}
}

// buildLclHeapMethod builds a method allocating size bytes on the stack.
func buildLclHeapMethod(size func(mb *methodBuilder, bb *mir.BasicBlock) *mir.Node) (*mir.Method, *mir.Node) {
	mb := newMethod("StackAlloc")
	mb.m.InitLocals = true

	bb := mb.block(mir.JumpReturn, nil)
	alloc := mb.node(bb, mir.OpLclHeap, typing.Byref, size(mb, bb))

	mb.node(bb, mir.OpReturn, typing.Void)
	return mb.m, alloc
}

func TestLclHeapZeroSize(t *testing.T) {
	m, alloc := buildLclHeapMethod(func(mb *methodBuilder, bb *mir.BasicBlock) *mir.Node {
		return mb.cnsInt(bb, 0)
	})

	l := mustLower(t, m, nil)

	if _, ok := l.gen.nodeValues[alloc].(*constant.Null); !ok {
		t.Errorf("zero size allocation is %v, want null", l.gen.nodeValues[alloc])
	}

	if n := l.count(isAlloca); n != 0 {
		t.Errorf("got %d allocations, want none", n)
	}
}

func TestLclHeapConstantSize(t *testing.T) {
	m, alloc := buildLclHeapMethod(func(mb *methodBuilder, bb *mir.BasicBlock) *mir.Node {
		return mb.cnsInt(bb, 32)
	})

	l := mustLower(t, m, nil)

	buf, ok := l.gen.nodeValues[alloc].(*ir.InstAlloca)
	if !ok {
		t.Fatalf("allocation is %v, want the stack buffer", l.gen.nodeValues[alloc])
	}

	if buf.Align != 8 {
		t.Errorf("buffer aligned on %d, want 8", buf.Align)
	}

	if diff := cmp.Diff([]string{"llvm.memset.p0i8.i32"}, l.calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestLclHeapVariableSize(t *testing.T) {
	var size int
	m, alloc := buildLclHeapMethod(func(mb *methodBuilder, bb *mir.BasicBlock) *mir.Node {
		size = mb.param(typing.Int, 0)
		return mb.lclVar(bb, size, 1)
	})
	m.InitLocals = false

	l := mustLower(t, m, nil)

	sel, ok := l.gen.nodeValues[alloc].(*ir.InstSelect)
	if !ok {
		t.Fatalf("allocation is %v, want a select on the size", l.gen.nodeValues[alloc])
	}

	if _, ok := sel.ValueTrue.(*ir.InstAlloca); !ok {
		t.Error("a non-zero size does not select the stack buffer")
	}

	if _, ok := sel.ValueFalse.(*constant.Null); !ok {
		t.Error("a zero size does not select null")
	}

	if calls := l.calls(); len(calls) != 0 {
		t.Errorf("got calls %v without zero initialization", calls)
	}
}

// -----------------------------------------------------------------------------

func buildNullCheckMethod(name string, flags mir.NodeFlags) *mir.Method {
	mb := newMethod(name)
	mb.m.HasShadowStack = true
	mb.m.FrameSize = 4

	obj := mb.param(typing.Ref, 1)

	bb := mb.block(mir.JumpReturn, nil)
	check := mb.node(bb, mir.OpNullCheck, typing.Void, mb.lclVar(bb, obj, 1))
	check.Flags = flags

	mb.node(bb, mir.OpReturn, typing.Void)
	return mb.m
}

func TestNullCheck(t *testing.T) {
	st := nullCheckSymbols()
	cache := NewSymbolCache(ir.NewModule(), config.Default())

	for _, name := range []string{"First", "Second"} {
		result, err := NewGenerator(cache, st, buildNullCheckMethod(name, 0)).Generate()
		if err != nil {
			t.Fatalf("lowering %s failed: %s", name, err)
		}

		want := []Reloc{{0x900, "ThrowHelpers_ThrowNullReferenceException"}}
		if diff := cmp.Diff(want, result.Relocs); diff != "" {
			t.Errorf("%s: relocations mismatch (-want +got):\n%s", name, diff)
		}
	}

	var checks []*ir.Func
	for _, f := range cache.Module().Funcs {
		if f.Name() == "nativeaot.throwifnull" {
			checks = append(checks, f)
		}
	}

	if len(checks) != 1 {
		t.Fatalf("got %d null check functions, want 1", len(checks))
	}

	check := checks[0]
	if check.Linkage != enum.LinkageInternal {
		t.Error("the null check function is not internal")
	}

	var names []string
	for _, b := range check.Blocks {
		names = append(names, b.Name())
	}

	if diff := cmp.Diff([]string{"Block", "ThrowBlock", "RetBlock"}, names); diff != "" {
		t.Errorf("null check blocks mismatch (-want +got):\n%s", diff)
	}

	if !check.Sig.Equal(types.NewFunc(types.Void, types.I8Ptr, types.I8Ptr)) {
		t.Errorf("null check declared as %s", check.Sig)
	}
}

func TestNonFaultingSkipsNullCheck(t *testing.T) {
	l := mustLower(t, buildNullCheckMethod("NonFaulting", mir.FlagNonFaulting), nil)

	if calls := l.calls(); len(calls) != 0 {
		t.Errorf("got calls %v, want none", calls)
	}

	if len(l.result.Relocs) != 0 {
		t.Errorf("got relocations %v, want none", l.result.Relocs)
	}
}

func TestIndLoadsThroughCheckedAddress(t *testing.T) {
	mb := newMethod("Load")
	mb.m.HasShadowStack = true
	mb.m.ReturnType = typing.Int

	p := mb.param(typing.Byref, 1)

	bb := mb.block(mir.JumpReturn, nil)
	ind := mb.node(bb, mir.OpInd, typing.Int, mb.lclVar(bb, p, 1))
	mb.node(bb, mir.OpReturn, typing.Int, ind)

	l := mustLower(t, mb.m, nullCheckSymbols())

	if diff := cmp.Diff([]string{"nativeaot.throwifnull"}, l.calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	load, ok := l.gen.nodeValues[ind].(*ir.InstLoad)
	if !ok {
		t.Fatalf("indirection is %v, want a load", l.gen.nodeValues[ind])
	}

	if !load.Type().Equal(types.I32) {
		t.Errorf("loaded a %s, want i32", load.Type())
	}
}

func TestInitBlkFillsMemory(t *testing.T) {
	layout := &mir.ClassLayout{
		Name:   "Holder",
		Size:   12,
		Fields: []*mir.FieldDesc{{Offset: 0, Type: typing.Ref, GC: true}, {Offset: 8, Type: typing.Int}},
	}

	mb := newMethod("InitBlk")
	mb.m.HasShadowStack = true

	p := mb.param(typing.Byref, 1)

	bb := mb.block(mir.JumpReturn, nil)
	addr := mb.lclVar(bb, p, 1)
	fill := mb.node(bb, mir.OpInitVal, typing.Int, mb.cnsInt(bb, 0xff))

	store := mb.node(bb, mir.OpStoreBlk, typing.Struct, addr, fill)
	store.Layout = layout
	store.Flags = mir.FlagNonFaulting

	mb.node(bb, mir.OpReturn, typing.Void)

	l := mustLower(t, mb.m, nil)

	memset := findCall(t, l, "llvm.memset.p0i8.i32")
	if size, ok := memset.Args[2].(*constant.Int); !ok || size.X.Int64() != 12 {
		t.Errorf("filled %v bytes, want 12", memset.Args[2])
	}

	if diff := cmp.Diff([]string{"llvm.memset.p0i8.i32"}, l.calls()); diff != "" {
		t.Errorf("an init block store must not go through write barriers (-want +got):\n%s", diff)
	}
}
