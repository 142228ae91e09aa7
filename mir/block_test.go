package mir

import (
	"regexp"
	"testing"

	"jitlower/typing"

	"github.com/google/go-cmp/cmp"
)

func TestWalkDomTreePreOrder(t *testing.T) {
	//      1
	//    /   \
	//   2     5
	//  / \
	// 3   4
	b := make([]*BasicBlock, 6)
	for i := range b {
		b[i] = &BasicBlock{Num: i}
	}

	b[1].DomChildren = []*BasicBlock{b[2], b[5]}
	b[2].DomChildren = []*BasicBlock{b[3], b[4]}

	m := &Method{Blocks: []*BasicBlock{b[1], b[2], b[3], b[4], b[5]}}

	var order []int
	m.WalkDomTree(func(bb *BasicBlock) {
		order = append(order, bb.Num)
	})

	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, order); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkDomTreeEmpty(t *testing.T) {
	(&Method{}).WalkDomTree(func(*BasicBlock) {
		t.Error("visited a block of an empty method")
	})
}

func TestBlockName(t *testing.T) {
	if name := (&BasicBlock{Num: 3}).Name(); name != "BB03" {
		t.Errorf("got %s", name)
	}

	if name := (&BasicBlock{Num: 12}).Name(); name != "BB12" {
		t.Errorf("got %s", name)
	}
}

func TestParamLookup(t *testing.T) {
	m := &Method{
		HasShadowStack: true,
		Locals: []*LocalVar{
			{Type: typing.Int},
			{Type: typing.Ref, IsParam: true, ArgNum: 2},
			{Type: typing.Int, IsParam: true, ArgNum: 1},
		},
	}

	if n := m.ParamCount(); n != 3 {
		t.Errorf("ParamCount = %d, want 3", n)
	}

	if lclNum, lv := m.ParamLocal(2); lclNum != 1 || lv.Type != typing.Ref {
		t.Error("ParamLocal(2) is wrong")
	}

	if lclNum, _ := m.ParamLocal(0); lclNum != -1 {
		t.Error("the shadow stack must not be bound to a local")
	}
}

func TestNodePredicates(t *testing.T) {
	zero := &Node{Op: OpCnsInt, Type: typing.Int}
	handle := &Node{Op: OpCnsInt, Type: typing.Int, HandleKind: HandleClass}
	addr := &Node{Op: OpLclVarAddr, Type: typing.Byref}

	if !zero.IsIntegralConst(0) || handle.IsIntegralConst(0) {
		t.Error("IsIntegralConst is wrong")
	}

	if !handle.IsIconHandle() || zero.IsIconHandle() {
		t.Error("IsIconHandle is wrong")
	}

	initBlk := &Node{Op: OpStoreBlk, Operands: []*Node{addr, zero}}
	copyBlk := &Node{Op: OpStoreBlk, Operands: []*Node{addr, {Op: OpBlk, Type: typing.Struct}}}
	if !initBlk.IsInitBlk() || copyBlk.IsInitBlk() {
		t.Error("IsInitBlk is wrong")
	}

	if !addr.IsLocalAddr() {
		t.Error("IsLocalAddr is wrong")
	}
}

func TestHandleKindNames(t *testing.T) {
	for _, hk := range []HandleKind{HandleToken, HandleClass, HandleMethod, HandleField, HandleString, HandleStatic} {
		if got, ok := ParseHandleKind(hk.String()); !ok || got != hk {
			t.Errorf("%s does not parse back to itself", hk)
		}
	}

	if HandleNone.String() != "none" {
		t.Errorf("got %q for no handle", HandleNone.String())
	}

	if got := HandleKind(42).String(); got != "handle(42)" {
		t.Errorf("got %q for an unknown handle kind", got)
	}
}

func TestRepr(t *testing.T) {
	b := &BasicBlock{Num: 1, Kind: JumpReturn}
	cns := &Node{ID: 1, Op: OpCnsInt, Type: typing.Int, IntVal: 42}
	b.Nodes = []*Node{cns, {ID: 2, Op: OpReturn, Type: typing.Int, Operands: []*Node{cns}}}

	m := &Method{Name: "Answer", ReturnType: typing.Int, Blocks: []*BasicBlock{b}}

	want := "method Answer -> int\nBB01 (return):\n    t1 = cns_int.int 42\n    t2 = return.int (t1)\n"
	if diff := cmp.Diff(want, m.Repr()); diff != "" {
		t.Errorf("repr mismatch (-want +got):\n%s", diff)
	}

	layouts := map[string]*ClassLayout{"P": {Name: "P", Size: 4}}
	if !regexp.MustCompile(`Size:\s+4`).MatchString(LayoutsRepr(layouts)) {
		t.Error("layout dump is missing the size")
	}
}
