package mir

import (
	"fmt"
	"io/ioutil"
	"jitlower/typing"

	"github.com/pelletier/go-toml"
)

// Unit is a loaded compilation unit: a set of methods sharing a symbol table
// and struct layouts.
type Unit struct {
	Methods []*Method
	Symbols *SymbolTable
	Layouts map[string]*ClassLayout
}

// tomlUnit represents a compilation unit as it is encoded in TOML
type tomlUnit struct {
	Symbols []*tomlSymbol `toml:"symbols"`
	Helpers []*tomlHelper `toml:"helpers"`
	Layouts []*tomlLayout `toml:"layouts"`
	Methods []*tomlMethod `toml:"methods"`
}

type tomlSymbol struct {
	Handle int64  `toml:"handle"`
	Name   string `toml:"name"`

	// Class and Method are set for symbols that must be found by name.
	Class  string `toml:"class,omitempty"`
	Method string `toml:"method,omitempty"`
}

type tomlHelper struct {
	ID     string `toml:"id"`
	Handle int64  `toml:"handle"`
}

type tomlLayout struct {
	Name    string       `toml:"name"`
	Size    int          `toml:"size"`
	Padding bool         `toml:"significant-padding"`
	Fields  []*tomlField `toml:"fields"`
}

type tomlField struct {
	Offset int    `toml:"offset"`
	Type   string `toml:"type"`
	GC     bool   `toml:"gc"`
	Layout string `toml:"layout,omitempty"`
}

type tomlMethod struct {
	Name           string       `toml:"name"`
	Symbol         string       `toml:"symbol"`
	Return         string       `toml:"return"`
	ReturnLayout   string       `toml:"return-layout,omitempty"`
	RetBuffer      bool         `toml:"ret-buffer"`
	ShadowStack    bool         `toml:"shadow-stack"`
	FrameSize      int          `toml:"frame-size"`
	InitLocals     bool         `toml:"init-locals"`
	EHRegions      int          `toml:"eh-regions"`
	ExplicitThis   bool         `toml:"explicit-this"`
	TypeArg        bool         `toml:"type-arg"`
	ReversePInvoke bool         `toml:"reverse-pinvoke"`
	Document       string       `toml:"document,omitempty"`
	FirstLine      int          `toml:"first-line"`
	Locals         []*tomlLocal `toml:"locals"`
	Blocks         []*tomlBlock `toml:"blocks"`
}

type tomlLocal struct {
	Type                string  `toml:"type"`
	Layout              string  `toml:"layout,omitempty"`
	RefCount            int     `toml:"ref-count"`
	Param               bool    `toml:"param"`
	Arg                 int     `toml:"arg"`
	AddrExposed         bool    `toml:"addr-exposed"`
	Ssa                 bool    `toml:"ssa"`
	Tracked             bool    `toml:"tracked"`
	Temp                bool    `toml:"temp"`
	ExplicitInit        bool    `toml:"explicit-init"`
	ShadowStackResident bool    `toml:"shadow-stack-resident"`
	MustInit            bool    `toml:"must-init"`
	SsaDefs             []int64 `toml:"ssa-defs,omitempty"`
}

type tomlBlock struct {
	Num         int         `toml:"num"`
	Jump        string      `toml:"jump"`
	Dest        int         `toml:"dest"`
	Preds       []int64     `toml:"preds,omitempty"`
	DomChildren []int64     `toml:"dom-children,omitempty"`
	Nodes       []*tomlNode `toml:"nodes"`
}

type tomlNode struct {
	ID         int             `toml:"id"`
	Op         string          `toml:"op"`
	Type       string          `toml:"type"`
	Operands   []int64         `toml:"operands,omitempty"`
	Flags      []string        `toml:"flags,omitempty"`
	Value      int64           `toml:"value"`
	Float      float64         `toml:"float"`
	Handle     int64           `toml:"handle"`
	HandleKind string          `toml:"handle-kind,omitempty"`
	Local      int             `toml:"local"`
	Ssa        int             `toml:"ssa"`
	Offset     int             `toml:"offset"`
	CastTo     string          `toml:"cast-to,omitempty"`
	Layout     string          `toml:"layout,omitempty"`
	Line       int             `toml:"line"`
	Pred       int             `toml:"pred"`
	Call       *tomlCall       `toml:"call"`
	Fields     []*tomlFieldUse `toml:"fields,omitempty"`
}

type tomlCall struct {
	Kind          string         `toml:"kind"`
	Helper        string         `toml:"helper,omitempty"`
	Target        int64          `toml:"target"`
	Return        string         `toml:"return"`
	ReturnLayout  string         `toml:"return-layout,omitempty"`
	VirtualStub   bool           `toml:"virtual-stub"`
	VirtualVtable bool           `toml:"virtual-vtable"`
	Unmanaged     bool           `toml:"unmanaged"`
	Control       int            `toml:"control"`
	Args          []*tomlCallArg `toml:"args,omitempty"`
}

type tomlCallArg struct {
	Node   int    `toml:"node"`
	Arg    int    `toml:"arg"`
	Type   string `toml:"type"`
	Layout string `toml:"layout,omitempty"`
}

type tomlFieldUse struct {
	Node   int    `toml:"node"`
	Offset int    `toml:"offset"`
	Type   string `toml:"type"`
}

// -----------------------------------------------------------------------------

// Load loads a compilation unit from the TOML file at path.
func Load(path string) (*Unit, error) {
	buff, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	unit, err := Parse(buff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return unit, nil
}

// Parse decodes a compilation unit from TOML text.
func Parse(buff []byte) (*Unit, error) {
	tu := &tomlUnit{}
	if err := toml.Unmarshal(buff, tu); err != nil {
		return nil, err
	}

	l := &loader{
		unit: &Unit{
			Symbols: NewSymbolTable(),
			Layouts: make(map[string]*ClassLayout),
		},
	}

	for _, ts := range tu.Symbols {
		l.unit.Symbols.AddSymbol(Handle(ts.Handle), ts.Name)

		if ts.Class != "" || ts.Method != "" {
			l.unit.Symbols.AddMethod(ts.Class, ts.Method, Handle(ts.Handle))
		}
	}

	for _, th := range tu.Helpers {
		l.unit.Symbols.AddHelper(HelperID(th.ID), Handle(th.Handle))
	}

	if err := l.loadLayouts(tu.Layouts); err != nil {
		return nil, err
	}

	for _, tm := range tu.Methods {
		m, err := l.loadMethod(tm)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", tm.Name, err)
		}

		l.unit.Methods = append(l.unit.Methods, m)
	}

	return l.unit, nil
}

// loader holds the state of a single unit being decoded.
type loader struct {
	unit *Unit

	// blocks and nodes are the blocks and nodes of the method currently
	// being loaded organized by number and ID.
	blocks map[int]*BasicBlock
	nodes  map[int]*Node
}

// loadLayouts loads all layouts.  Layouts may refer to each other in any
// order so they are created before their fields are resolved.
func (l *loader) loadLayouts(tls []*tomlLayout) error {
	for _, tl := range tls {
		if _, ok := l.unit.Layouts[tl.Name]; ok {
			return fmt.Errorf("layout `%s` defined multiple times", tl.Name)
		}

		l.unit.Layouts[tl.Name] = &ClassLayout{
			Name:               tl.Name,
			Size:               tl.Size,
			SignificantPadding: tl.Padding,
		}
	}

	for _, tl := range tls {
		cl := l.unit.Layouts[tl.Name]

		for _, tf := range tl.Fields {
			vt, err := parseType(tf.Type)
			if err != nil {
				return fmt.Errorf("layout `%s`: %w", tl.Name, err)
			}

			fd := &FieldDesc{Offset: tf.Offset, Type: vt, GC: tf.GC}
			if tf.Layout != "" {
				if fd.Layout, err = l.layout(tf.Layout); err != nil {
					return err
				}

				if fd.Layout == cl {
					return fmt.Errorf("layout `%s` contains itself", tl.Name)
				}
			}

			if tf.Offset < 0 || tf.Offset >= tl.Size {
				return fmt.Errorf("layout `%s`: field offset %d out of bounds", tl.Name, tf.Offset)
			}

			cl.Fields = append(cl.Fields, fd)
		}
	}

	return nil
}

func (l *loader) layout(name string) (*ClassLayout, error) {
	if name == "" {
		return nil, nil
	}

	if cl, ok := l.unit.Layouts[name]; ok {
		return cl, nil
	}

	return nil, fmt.Errorf("unknown layout `%s`", name)
}

// loadMethod loads a single method.
func (l *loader) loadMethod(tm *tomlMethod) (*Method, error) {
	l.blocks = make(map[int]*BasicBlock)
	l.nodes = make(map[int]*Node)

	retType, err := parseType(tm.Return)
	if err != nil {
		return nil, err
	}

	retLayout, err := l.layout(tm.ReturnLayout)
	if err != nil {
		return nil, err
	}

	m := &Method{
		Name:           tm.Name,
		Symbol:         tm.Symbol,
		ReturnType:     retType,
		ReturnLayout:   retLayout,
		RetBuffer:      tm.RetBuffer,
		HasShadowStack: tm.ShadowStack,
		FrameSize:      tm.FrameSize,
		InitLocals:     tm.InitLocals,
		EHRegions:      tm.EHRegions,
		ExplicitThis:   tm.ExplicitThis,
		TypeArg:        tm.TypeArg,
		ReversePInvoke: tm.ReversePInvoke,
		Document:       tm.Document,
		FirstLine:      tm.FirstLine,
	}

	if m.Symbol == "" {
		m.Symbol = m.Name
	}

	// create all blocks and nodes first so they can be referenced in any
	// order
	for _, tb := range tm.Blocks {
		if _, ok := l.blocks[tb.Num]; ok {
			return nil, fmt.Errorf("block %d defined multiple times", tb.Num)
		}

		kind, ok := ParseJumpKind(tb.Jump)
		if !ok {
			return nil, fmt.Errorf("unknown jump kind `%s`", tb.Jump)
		}

		b := &BasicBlock{Num: tb.Num, Kind: kind}
		l.blocks[tb.Num] = b
		m.Blocks = append(m.Blocks, b)

		for _, tn := range tb.Nodes {
			if _, ok := l.nodes[tn.ID]; ok {
				return nil, fmt.Errorf("node %d defined multiple times", tn.ID)
			}

			node := &Node{ID: tn.ID}
			l.nodes[tn.ID] = node
			b.Nodes = append(b.Nodes, node)
		}
	}

	for i, tb := range tm.Blocks {
		if err := l.loadBlock(m.Blocks[i], tb); err != nil {
			return nil, fmt.Errorf("block %d: %w", tb.Num, err)
		}
	}

	for i, tlv := range tm.Locals {
		lv, err := l.loadLocal(tlv)
		if err != nil {
			return nil, fmt.Errorf("local %d: %w", i, err)
		}

		m.Locals = append(m.Locals, lv)
	}

	m.LinkBlocks()
	return m, nil
}

func (l *loader) loadBlock(b *BasicBlock, tb *tomlBlock) error {
	var err error

	if b.Kind == JumpAlways || b.Kind == JumpCond {
		if b.Dest, err = l.block(tb.Dest); err != nil {
			return err
		}
	}

	for _, num := range tb.Preds {
		pred, err := l.block(int(num))
		if err != nil {
			return err
		}

		b.Preds = append(b.Preds, pred)
	}

	for _, num := range tb.DomChildren {
		child, err := l.block(int(num))
		if err != nil {
			return err
		}

		b.DomChildren = append(b.DomChildren, child)
	}

	for i, tn := range tb.Nodes {
		if err := l.loadNode(b.Nodes[i], tn); err != nil {
			return fmt.Errorf("node %d: %w", tn.ID, err)
		}
	}

	return nil
}

func (l *loader) loadNode(node *Node, tn *tomlNode) error {
	var err error

	op, ok := ParseOpcode(tn.Op)
	if !ok {
		return fmt.Errorf("unknown opcode `%s`", tn.Op)
	}
	node.Op = op

	if node.Type, err = parseType(tn.Type); err != nil {
		return err
	}

	for _, id := range tn.Operands {
		operand, err := l.node(int(id))
		if err != nil {
			return err
		}

		node.Operands = append(node.Operands, operand)
	}

	for _, name := range tn.Flags {
		flag, ok := ParseFlag(name)
		if !ok {
			return fmt.Errorf("unknown flag `%s`", name)
		}

		node.Flags |= flag
	}

	node.IntVal = tn.Value
	node.FloatVal = tn.Float
	node.Handle = Handle(tn.Handle)
	if node.HandleKind, ok = ParseHandleKind(tn.HandleKind); !ok {
		return fmt.Errorf("unknown handle kind `%s`", tn.HandleKind)
	}

	node.Local = tn.Local
	node.Ssa = tn.Ssa
	node.Offset = tn.Offset
	node.Line = tn.Line

	if tn.CastTo != "" {
		if node.CastTo, err = parseType(tn.CastTo); err != nil {
			return err
		}
	}

	if node.Layout, err = l.layout(tn.Layout); err != nil {
		return err
	}

	if op == OpPhiArg {
		if node.Pred, err = l.block(tn.Pred); err != nil {
			return err
		}
	}

	for _, tf := range tn.Fields {
		fu := &FieldUse{Offset: tf.Offset}
		if fu.Node, err = l.node(tf.Node); err != nil {
			return err
		}

		if fu.Type, err = parseType(tf.Type); err != nil {
			return err
		}

		node.Fields = append(node.Fields, fu)
	}

	if tn.Call != nil {
		if node.Call, err = l.loadCall(tn.Call); err != nil {
			return err
		}
	} else if op == OpCall {
		return fmt.Errorf("call node without a call description")
	}

	return nil
}

var callKinds = map[string]CallKind{
	"helper":   CallHelper,
	"user":     CallUser,
	"indirect": CallIndirect,
}

func (l *loader) loadCall(tc *tomlCall) (*Call, error) {
	var err error

	kind, ok := callKinds[tc.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown call kind `%s`", tc.Kind)
	}

	call := &Call{
		Kind:          kind,
		Helper:        HelperID(tc.Helper),
		Target:        Handle(tc.Target),
		VirtualStub:   tc.VirtualStub,
		VirtualVtable: tc.VirtualVtable,
		Unmanaged:     tc.Unmanaged,
	}

	if call.ReturnType, err = parseType(tc.Return); err != nil {
		return nil, err
	}

	if call.ReturnLayout, err = l.layout(tc.ReturnLayout); err != nil {
		return nil, err
	}

	if kind == CallIndirect || tc.VirtualVtable {
		if call.Control, err = l.node(tc.Control); err != nil {
			return nil, err
		}
	}

	for _, ta := range tc.Args {
		arg := &CallArg{ArgNum: ta.Arg}
		if arg.Node, err = l.node(ta.Node); err != nil {
			return nil, err
		}

		if arg.Type, err = parseType(ta.Type); err != nil {
			return nil, err
		}

		if arg.Layout, err = l.layout(ta.Layout); err != nil {
			return nil, err
		}

		call.Args = append(call.Args, arg)
	}

	return call, nil
}

func (l *loader) loadLocal(tlv *tomlLocal) (*LocalVar, error) {
	var err error

	lv := &LocalVar{
		RefCount:            tlv.RefCount,
		IsParam:             tlv.Param,
		ArgNum:              tlv.Arg,
		AddrExposed:         tlv.AddrExposed,
		InSsa:               tlv.Ssa,
		Tracked:             tlv.Tracked,
		IsTemp:              tlv.Temp,
		HasExplicitInit:     tlv.ExplicitInit,
		ShadowStackResident: tlv.ShadowStackResident,
		MustInit:            tlv.MustInit,
	}

	if lv.Type, err = parseType(tlv.Type); err != nil {
		return nil, err
	}

	if lv.Layout, err = l.layout(tlv.Layout); err != nil {
		return nil, err
	}

	if lv.Type == typing.Struct && lv.Layout == nil {
		return nil, fmt.Errorf("struct local without a layout")
	}

	for _, id := range tlv.SsaDefs {
		def := SsaDef{}
		if id != 0 {
			if def.Def, err = l.node(int(id)); err != nil {
				return nil, err
			}
		}

		lv.PerSsa = append(lv.PerSsa, def)
	}

	return lv, nil
}

// -----------------------------------------------------------------------------

func (l *loader) block(num int) (*BasicBlock, error) {
	if b, ok := l.blocks[num]; ok {
		return b, nil
	}

	return nil, fmt.Errorf("unknown block %d", num)
}

func (l *loader) node(id int) (*Node, error) {
	if node, ok := l.nodes[id]; ok {
		return node, nil
	}

	return nil, fmt.Errorf("unknown node %d", id)
}

// parseType parses a var type name.  The empty name is void.
func parseType(name string) (typing.VarType, error) {
	if name == "" {
		return typing.Void, nil
	}

	if vt, ok := typing.ParseVarType(name); ok {
		return vt, nil
	}

	return typing.Undef, fmt.Errorf("unknown type `%s`", name)
}
