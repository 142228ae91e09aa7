package generate

import (
	"errors"
	"strings"
	"testing"

	"jitlower/config"
	"jitlower/mir"
	"jitlower/report"
	"jitlower/typing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// returnedValue returns the value returned by the single block of a lowered
// method.
func returnedValue(t *testing.T, l *lowering) value.Value {
	t.Helper()

	ret, ok := l.block(t, "BB01").Term.(*ir.TermRet)
	if !ok || ret.X == nil {
		t.Fatal("BB01 does not return a value")
	}

	return ret.X
}

func TestSmallIntsAreWidenedOnUse(t *testing.T) {
	tests := []struct {
		vt   typing.VarType
		want string
	}{
		{typing.Byte, "sext"},
		{typing.Short, "sext"},
		{typing.UByte, "zext"},
		{typing.UShort, "zext"},
		{typing.Bool, "zext"},
	}

	for _, test := range tests {
		mb := newMethod("Widen")
		mb.m.ReturnType = typing.Int

		p := mb.param(test.vt, 0)
		bb := mb.block(mir.JumpReturn, nil)
		mb.node(bb, mir.OpReturn, typing.Int, mb.lclVar(bb, p, 1))

		l := lower(mb.m, nil)
		if l.err != nil {
			t.Errorf("%s: %s", test.vt, l.err)
			continue
		}

		var got string
		switch returnedValue(t, l).(type) {
		case *ir.InstSExt:
			got = "sext"
		case *ir.InstZExt:
			got = "zext"
		}

		if got != test.want {
			t.Errorf("%s: widened with %q, want %q", test.vt, got, test.want)
		}

		if param := l.result.Func.Params[0]; param.Type().Equal(types.I32) {
			t.Errorf("%s: parameter is declared as i32, want its small type", test.vt)
		}
	}
}

func TestCompareResultIsZeroExtended(t *testing.T) {
	mb := newMethod("Less")
	mb.m.ReturnType = typing.Int

	a := mb.param(typing.Int, 0)
	b := mb.param(typing.Int, 1)

	bb := mb.block(mir.JumpReturn, nil)
	lt := mb.node(bb, mir.OpLt, typing.Int, mb.lclVar(bb, a, 1), mb.lclVar(bb, b, 1))
	lt.Flags = mir.FlagUnsigned
	mb.node(bb, mir.OpReturn, typing.Int, lt)

	l := mustLower(t, mb.m, nil)

	icmp, ok := l.gen.nodeValues[lt].(*ir.InstICmp)
	if !ok {
		t.Fatalf("compare is %v, want an icmp", l.gen.nodeValues[lt])
	}

	if icmp.Pred != enum.IPredULT {
		t.Errorf("unsigned less than uses %s", icmp.Pred)
	}

	zext, ok := returnedValue(t, l).(*ir.InstZExt)
	if !ok || zext.From != icmp {
		t.Error("the compare is not zero extended when returned")
	}
}

func TestFloatComparePredicates(t *testing.T) {
	tests := []struct {
		op    mir.Opcode
		flags mir.NodeFlags
		want  enum.FPred
	}{
		{mir.OpLt, 0, enum.FPredOLT},
		{mir.OpLt, mir.FlagUnordered, enum.FPredULT},
		{mir.OpNe, 0, enum.FPredONE},
		{mir.OpNe, mir.FlagUnordered, enum.FPredUNE},
		{mir.OpGe, mir.FlagUnordered, enum.FPredUGE},
	}

	for _, test := range tests {
		mb := newMethod("FloatCompare")
		mb.m.ReturnType = typing.Int

		a := mb.param(typing.Double, 0)
		b := mb.param(typing.Double, 1)

		bb := mb.block(mir.JumpReturn, nil)
		cmpNode := mb.node(bb, test.op, typing.Int, mb.lclVar(bb, a, 1), mb.lclVar(bb, b, 1))
		cmpNode.Flags = test.flags
		mb.node(bb, mir.OpReturn, typing.Int, cmpNode)

		l := mustLower(t, mb.m, nil)

		fcmp, ok := l.gen.nodeValues[cmpNode].(*ir.InstFCmp)
		if !ok {
			t.Errorf("%s: compare is %v, want an fcmp", test.op, l.gen.nodeValues[cmpNode])
			continue
		}

		if fcmp.Pred != test.want {
			t.Errorf("%s: got predicate %s, want %s", test.op, fcmp.Pred, test.want)
		}
	}
}

func TestCastTableCoversNumericCategories(t *testing.T) {
	categories := []typing.Category{typing.CatInt32, typing.CatInt64, typing.CatFloating}

	for _, from := range categories {
		for _, to := range categories {
			for _, unsigned := range []bool{false, true} {
				if _, ok := castTable[castRule{from, to, unsigned}]; !ok {
					t.Errorf("no cast from category %d to %d (unsigned: %v)", from, to, unsigned)
				}
			}
		}
	}
}

func TestCastLowering(t *testing.T) {
	tests := []struct {
		from, to typing.VarType
		flags    mir.NodeFlags
		want     string
	}{
		{typing.Int, typing.Long, 0, "sext"},
		{typing.Int, typing.ULong, mir.FlagUnsigned, "zext"},
		{typing.Long, typing.Int, 0, "trunc"},
		{typing.Int, typing.Double, 0, "sitofp"},
		{typing.UInt, typing.Double, mir.FlagUnsigned, "uitofp"},
		{typing.Double, typing.Int, 0, "fptosi"},
		{typing.Double, typing.ULong, 0, "fptoui"},
		{typing.Float, typing.Double, 0, "fpext"},
		{typing.Double, typing.Float, 0, "fptrunc"},
		{typing.Int, typing.UInt, 0, "none"},
	}

	for _, test := range tests {
		mb := newMethod("Cast")
		mb.m.ReturnType = test.to.ActualType()

		p := mb.param(test.from, 0)
		bb := mb.block(mir.JumpReturn, nil)
		cast := mb.node(bb, mir.OpCast, test.to.ActualType(), mb.lclVar(bb, p, 1))
		cast.CastTo = test.to
		cast.Flags = test.flags
		mb.node(bb, mir.OpReturn, test.to.ActualType(), cast)

		l := lower(mb.m, nil)
		if l.err != nil {
			t.Errorf("%s to %s: %s", test.from, test.to, l.err)
			continue
		}

		var got string
		switch v := l.gen.nodeValues[cast].(type) {
		case *ir.InstSExt:
			got = "sext"
		case *ir.InstZExt:
			got = "zext"
		case *ir.InstTrunc:
			got = "trunc"
		case *ir.InstSIToFP:
			got = "sitofp"
		case *ir.InstUIToFP:
			got = "uitofp"
		case *ir.InstFPToSI:
			got = "fptosi"
		case *ir.InstFPToUI:
			got = "fptoui"
		case *ir.InstFPExt:
			got = "fpext"
		case *ir.InstFPTrunc:
			got = "fptrunc"
		default:
			if v == l.result.Func.Params[0] {
				got = "none"
			}
		}

		if got != test.want {
			t.Errorf("%s to %s: lowered as %q, want %q", test.from, test.to, got, test.want)
		}
	}
}

func TestCheckedCastFails(t *testing.T) {
	mb := newMethod("CheckedCast")
	mb.m.ReturnType = typing.Int

	p := mb.param(typing.Long, 0)
	bb := mb.block(mir.JumpReturn, nil)
	cast := mb.node(bb, mir.OpCast, typing.Int, mb.lclVar(bb, p, 1))
	cast.CastTo = typing.Int
	cast.Flags = mir.FlagOverflow
	mb.node(bb, mir.OpReturn, typing.Int, cast)

	var f *report.Failure
	if l := lower(mb.m, nil); !errors.As(l.err, &f) || f.Internal {
		t.Errorf("got error %v, want an unsupported failure", l.err)
	}
}

// -----------------------------------------------------------------------------

func TestMaterializationIsChecked(t *testing.T) {
	mb := newMethod("Materialize")
	bb := mb.block(mir.JumpReturn, nil)
	n := mb.cnsInt(bb, 1)
	other := mb.cnsInt(bb, 2)

	gen := NewGenerator(NewSymbolCache(ir.NewModule(), config.Default()), mir.NewSymbolTable(), mb.m)

	tests := []struct {
		name string
		fn   func()
	}{
		{"produced twice", func() {
			gen.produce(n, constant.NewInt(types.I32, 1))
			gen.produce(n, constant.NewInt(types.I32, 1))
		}},
		{"used before produced", func() {
			gen.nodeValue(other)
		}},
	}

	for _, test := range tests {
		err := func() (err error) {
			defer report.CatchFailure(mb.m.Name, &err)
			test.fn()
			return nil
		}()

		var f *report.Failure
		if !errors.As(err, &f) || !f.Internal {
			t.Errorf("%s: got error %v, want an internal failure", test.name, err)
		}
	}
}

func TestUnsupportedHandleConstantNamesKind(t *testing.T) {
	mb := newMethod("StaticHandle")
	mb.m.ReturnType = typing.Int

	bb := mb.block(mir.JumpReturn, nil)
	cns := mb.cnsInt(bb, 0)
	cns.HandleKind = mir.HandleStatic
	cns.Handle = 0x40
	mb.node(bb, mir.OpReturn, typing.Int, cns)

	l := lower(mb.m, nil)
	if l.err == nil || !strings.Contains(l.err.Error(), "static handle constants") {
		t.Errorf("got error %v, want the handle kind named", l.err)
	}
}
