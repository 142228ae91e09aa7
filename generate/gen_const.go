package generate

import (
	"jitlower/mir"
	"jitlower/report"
	"jitlower/typing"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// handleContentType is the type handle symbols are loaded as.
var handleContentType = types.NewPointer(types.I32)

func (g *Generator) buildCnsInt(node *mir.Node) {
	switch node.Type.Category() {
	case typing.CatInt32, typing.CatInt64:
		switch node.HandleKind {
		case mir.HandleNone:
			t := g.convVarType(node.Type.ActualType()).(*types.IntType)
			g.produce(node, constant.NewInt(t, node.IntVal))
		case mir.HandleToken, mir.HandleClass, mir.HandleMethod, mir.HandleField:
			g.produce(node, g.loadHandleSymbol(node.Handle))
		default:
			report.Unsupported("%s handle constants are not supported", node.HandleKind)
		}
	case typing.CatPointer:
		switch {
		case node.HandleKind == mir.HandleString:
			g.produce(node, g.loadHandleSymbol(node.Handle))
		case node.HandleKind != mir.HandleNone:
			report.Unsupported("%s handle constants of type %s are not supported", node.HandleKind, node.Type)
		case node.IntVal != 0:
			report.Unsupported("non-null %s constants are not supported", node.Type)
		default:
			g.produce(node, constant.NewNull(types.I8Ptr))
		}
	default:
		report.Unsupported("integer constants of type %s", node.Type)
	}
}

// loadHandleSymbol loads the value of the symbol a handle refers to.
func (g *Generator) loadHandleSymbol(h mir.Handle) value.Value {
	name := g.resolveSymbol(h)
	sym := g.cache.Global(name, handleContentType)

	return g.block.NewLoad(sym.ContentType, sym)
}

func (g *Generator) buildCnsLng(node *mir.Node) {
	g.produce(node, constant.NewInt(types.I64, node.IntVal))
}

func (g *Generator) buildCnsDouble(node *mir.Node) {
	switch node.Type {
	case typing.Double:
		g.produce(node, constant.NewFloat(types.Double, node.FloatVal))
	case typing.Float:
		g.produce(node, constant.NewFloat(types.Float, float64(float32(node.FloatVal))))
	default:
		report.Unsupported("floating constants of type %s", node.Type)
	}
}
