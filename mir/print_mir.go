package mir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kr/pretty"
)

// Repr returns the full textual representation of a method.
func (m *Method) Repr() string {
	sb := strings.Builder{}

	sb.WriteString("method ")
	sb.WriteString(m.Name)
	if m.Symbol != "" && m.Symbol != m.Name {
		sb.WriteString(" (")
		sb.WriteString(m.Symbol)
		sb.WriteRune(')')
	}

	sb.WriteString(" -> ")
	sb.WriteString(m.ReturnType.Repr())
	if m.HasShadowStack {
		fmt.Fprintf(&sb, " [shadow stack, frame %d]", m.FrameSize)
	}
	sb.WriteRune('\n')

	for i, lv := range m.Locals {
		fmt.Fprintf(&sb, "  V%02d %-6s refs=%d", i, lv.Type.Repr(), lv.RefCount)
		if lv.IsParam {
			fmt.Fprintf(&sb, " arg%d", lv.ArgNum)
		}

		if lv.InSsa {
			fmt.Fprintf(&sb, " ssa(%d)", len(lv.PerSsa))
		}

		if lv.AddrExposed {
			sb.WriteString(" addr-exposed")
		}

		if lv.MustInit {
			sb.WriteString(" must-init")
		}

		sb.WriteRune('\n')
	}

	for _, b := range m.Blocks {
		sb.WriteString(b.Repr())
	}

	return sb.String()
}

// Repr returns the textual representation of a block and its nodes.
func (b *BasicBlock) Repr() string {
	sb := strings.Builder{}

	sb.WriteString(b.Name())
	sb.WriteString(" (")
	sb.WriteString(b.Kind.Repr())
	if b.Dest != nil {
		sb.WriteString(" -> ")
		sb.WriteString(b.Dest.Name())
	}
	sb.WriteRune(')')

	if len(b.Preds) > 0 {
		preds := make([]string, len(b.Preds))
		for i, pred := range b.Preds {
			preds[i] = pred.Name()
		}

		sb.WriteString(" preds: ")
		sb.WriteString(strings.Join(preds, ", "))
	}

	sb.WriteString(":\n")

	for _, node := range b.Nodes {
		sb.WriteString("    ")
		sb.WriteString(node.Repr())
		sb.WriteRune('\n')
	}

	return sb.String()
}

// Repr returns the textual representation of a node.
func (n *Node) Repr() string {
	sb := strings.Builder{}

	fmt.Fprintf(&sb, "t%d = %s.%s", n.ID, n.Op.Repr(), n.Type.Repr())

	switch n.Op {
	case OpCnsInt, OpCnsLng:
		if n.HandleKind != HandleNone {
			fmt.Fprintf(&sb, " %s(%#x)", handleKindNames[n.HandleKind], uint64(n.Handle))
		} else {
			sb.WriteRune(' ')
			sb.WriteString(strconv.FormatInt(n.IntVal, 10))
		}
	case OpCnsDbl:
		sb.WriteRune(' ')
		sb.WriteString(strconv.FormatFloat(n.FloatVal, 'g', -1, 64))
	case OpLclVar, OpStoreLclVar, OpLclVarAddr:
		fmt.Fprintf(&sb, " V%02d", n.Local)
		if n.Ssa != 0 {
			fmt.Fprintf(&sb, " d:%d", n.Ssa)
		}
	case OpLclFld, OpLclFldAddr:
		fmt.Fprintf(&sb, " V%02d[+%d]", n.Local, n.Offset)
	case OpPhiArg:
		fmt.Fprintf(&sb, " V%02d u:%d", n.Local, n.Ssa)
		if n.Pred != nil {
			sb.WriteString(" from ")
			sb.WriteString(n.Pred.Name())
		}
	case OpCast:
		sb.WriteString(" to ")
		sb.WriteString(n.CastTo.Repr())
	case OpILOffset:
		fmt.Fprintf(&sb, " line %d", n.Line)
	case OpCall:
		if n.Call != nil {
			switch n.Call.Kind {
			case CallHelper:
				sb.WriteString(" helper ")
				sb.WriteString(string(n.Call.Helper))
			case CallUser:
				fmt.Fprintf(&sb, " user %#x", uint64(n.Call.Target))
			case CallIndirect:
				sb.WriteString(" indirect")
			}

			for _, arg := range n.Call.Args {
				fmt.Fprintf(&sb, " arg%d=t%d", arg.ArgNum, arg.Node.ID)
			}
		}
	}

	for i, operand := range n.Operands {
		if i == 0 {
			sb.WriteString(" (")
		} else {
			sb.WriteString(", ")
		}

		fmt.Fprintf(&sb, "t%d", operand.ID)

		if i == len(n.Operands)-1 {
			sb.WriteRune(')')
		}
	}

	return sb.String()
}

// LayoutsRepr pretty prints a set of struct layouts sorted by name.
func LayoutsRepr(layouts map[string]*ClassLayout) string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)

	sb := strings.Builder{}
	for _, name := range names {
		sb.WriteString(pretty.Sprint(layouts[name]))
		sb.WriteRune('\n')
	}

	return sb.String()
}
