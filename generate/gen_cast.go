package generate

import (
	"jitlower/mir"
	"jitlower/report"
	"jitlower/typing"

	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// castKind is the conversion a cast lowers to.
type castKind int

const (
	castTrunc  castKind = iota // truncate (or nothing if the widths match)
	castSExt                   // sign extend
	castZExt                   // zero extend
	castSIToFP                 // signed integer to floating
	castUIToFP                 // unsigned integer to floating
	castFPCast                 // floating to floating
	castFPToSI                 // floating to signed integer
	castFPToUI                 // floating to unsigned integer
)

// castRule keys the cast table: the category of the source's actual type, the
// category of the target type, and the signedness that decides the
// conversion.  For integer sources this is the unsigned flag of the cast; for
// floating sources it is the unsignedness of the target.
type castRule struct {
	from, to typing.Category
	unsigned bool
}

// castTable lists every supported cast.  Pointer sources and targets are not
// lowered as casts.
var castTable = map[castRule]castKind{
	{typing.CatInt32, typing.CatInt32, false}: castTrunc,
	{typing.CatInt32, typing.CatInt32, true}:  castTrunc,
	{typing.CatInt64, typing.CatInt32, false}: castTrunc,
	{typing.CatInt64, typing.CatInt32, true}:  castTrunc,
	{typing.CatInt32, typing.CatInt64, false}: castSExt,
	{typing.CatInt32, typing.CatInt64, true}:  castZExt,
	{typing.CatInt64, typing.CatInt64, false}: castTrunc,
	{typing.CatInt64, typing.CatInt64, true}:  castTrunc,

	{typing.CatInt32, typing.CatFloating, false}: castSIToFP,
	{typing.CatInt32, typing.CatFloating, true}:  castUIToFP,
	{typing.CatInt64, typing.CatFloating, false}: castSIToFP,
	{typing.CatInt64, typing.CatFloating, true}:  castUIToFP,

	{typing.CatFloating, typing.CatFloating, false}: castFPCast,
	{typing.CatFloating, typing.CatFloating, true}:  castFPCast,
	{typing.CatFloating, typing.CatInt32, false}:    castFPToSI,
	{typing.CatFloating, typing.CatInt32, true}:     castFPToUI,
	{typing.CatFloating, typing.CatInt64, false}:    castFPToSI,
	{typing.CatFloating, typing.CatInt64, true}:     castFPToUI,
}

// lookupCast selects the conversion of a cast node.
func lookupCast(node *mir.Node) (castKind, bool) {
	from := node.Op1().Type.ActualType()
	to := node.CastTo

	unsigned := node.Has(mir.FlagUnsigned)
	if from.IsFloating() {
		unsigned = to.IsUnsigned()
	}

	kind, ok := castTable[castRule{from.Category(), to.Category(), unsigned}]
	return kind, ok
}

func (g *Generator) buildCast(node *mir.Node) {
	if node.Has(mir.FlagOverflow) {
		report.Unsupported("checked casts are not supported")
	}

	kind, ok := lookupCast(node)
	if !ok {
		report.Unsupported("cast from %s to %s", node.Op1().Type, node.CastTo)
	}

	from := g.convVarType(node.Op1().Type.ActualType())
	to := g.convVarType(node.CastTo)
	x := g.consume(node.Op1(), from)

	var result value.Value
	switch kind {
	case castTrunc:
		if from.Equal(to) {
			result = x
		} else {
			result = g.block.NewTrunc(x, to)
		}
	case castSExt:
		result = g.block.NewSExt(x, to)
	case castZExt:
		result = g.block.NewZExt(x, to)
	case castSIToFP:
		result = g.block.NewSIToFP(x, to)
	case castUIToFP:
		result = g.block.NewUIToFP(x, to)
	case castFPCast:
		result = g.fpCast(x, to)
	case castFPToSI:
		result = g.block.NewFPToSI(x, to)
	case castFPToUI:
		result = g.block.NewFPToUI(x, to)
	}

	g.produce(node, result)
}

// fpCast converts between floating types.
func (g *Generator) fpCast(x value.Value, to types.Type) value.Value {
	from := x.Type().(*types.FloatType)

	switch {
	case from.Equal(to):
		return x
	case from.Kind == types.FloatKindFloat:
		return g.block.NewFPExt(x, to)
	default:
		return g.block.NewFPTrunc(x, to)
	}
}
