package generate

import (
	"path/filepath"
	"reflect"

	"jitlower/common"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/metadata"
	"github.com/llir/llvm/ir/types"
)

// debugState is the debug info shared between all the methods of a module:
// one compile unit per source document.
type debugState struct {
	units map[string]*metadata.DICompileUnit

	// nextID is the next free metadata ID of the module.
	nextID metadata.MetadataID
}

func newDebugState() *debugState {
	return &debugState{units: make(map[string]*metadata.DICompileUnit)}
}

// DebugEnabled returns whether debug info is being emitted.
func (sc *SymbolCache) DebugEnabled() bool {
	return sc.debug != nil
}

// Subprogram creates the debug subprogram of a method defined in the given
// document at the given line.
func (sc *SymbolCache) Subprogram(name, linkageName, document string, line int) *metadata.DISubprogram {
	sc.m.Lock()
	defer sc.m.Unlock()

	cu := sc.compileUnit(document)

	subType := &metadata.DISubroutineType{
		MetadataID: sc.newMetadataID(),
		Types:      &metadata.Tuple{MetadataID: sc.newMetadataID()},
	}
	sc.mod.MetadataDefs = append(sc.mod.MetadataDefs, subType.Types, subType)

	sp := &metadata.DISubprogram{
		MetadataID:  sc.newMetadataID(),
		Distinct:    true,
		Name:        name,
		LinkageName: linkageName,
		Scope:       cu.File,
		File:        cu.File,
		Line:        int64(line),
		Type:        subType,
		ScopeLine:   int64(line),
		SPFlags:     enum.DISPFlagDefinition,
		Unit:        cu,
	}
	sc.mod.MetadataDefs = append(sc.mod.MetadataDefs, sp)

	return sp
}

// compileUnit returns the compile unit of a document, creating it and its
// file if necessary.  The cache must be locked.
func (sc *SymbolCache) compileUnit(document string) *metadata.DICompileUnit {
	if cu, ok := sc.debug.units[document]; ok {
		return cu
	}

	if len(sc.debug.units) == 0 {
		sc.addDebugModuleFlag()
	}

	file := &metadata.DIFile{
		MetadataID: sc.newMetadataID(),
		Filename:   filepath.Base(document),
		Directory:  filepath.Dir(document),
	}

	cu := &metadata.DICompileUnit{
		MetadataID:   sc.newMetadataID(),
		Distinct:     true,
		Language:     enum.DwarfLangC,
		File:         file,
		Producer:     "jitlower " + common.Version,
		EmissionKind: enum.EmissionKindFullDebug,
	}

	sc.mod.MetadataDefs = append(sc.mod.MetadataDefs, file, cu)

	if sc.mod.NamedMetadataDefs == nil {
		sc.mod.NamedMetadataDefs = make(map[string]*metadata.NamedDef)
	}

	named, ok := sc.mod.NamedMetadataDefs["llvm.dbg.cu"]
	if !ok {
		named = &metadata.NamedDef{Name: "llvm.dbg.cu"}
		sc.mod.NamedMetadataDefs["llvm.dbg.cu"] = named
	}
	named.Nodes = append(named.Nodes, cu)

	sc.debug.units[document] = cu
	return cu
}

// addDebugModuleFlag adds the "Debug Info Version" module flag without which
// the backend drops all debug info.  The cache must be locked.
func (sc *SymbolCache) addDebugModuleFlag() {
	flag := &metadata.Tuple{
		MetadataID: sc.newMetadataID(),
		Fields: []metadata.Field{
			&metadata.Value{Value: constant.NewInt(types.I32, 2)},
			&metadata.String{Value: "Debug Info Version"},
			&metadata.Value{Value: constant.NewInt(types.I32, 3)},
		},
	}
	sc.mod.MetadataDefs = append(sc.mod.MetadataDefs, flag)

	if sc.mod.NamedMetadataDefs == nil {
		sc.mod.NamedMetadataDefs = make(map[string]*metadata.NamedDef)
	}

	sc.mod.NamedMetadataDefs["llvm.module.flags"] = &metadata.NamedDef{
		Name:  "llvm.module.flags",
		Nodes: []metadata.Node{flag},
	}
}

func (sc *SymbolCache) newMetadataID() metadata.MetadataID {
	id := sc.debug.nextID
	sc.debug.nextID++
	return id
}

// -----------------------------------------------------------------------------

// newDebugLocation creates the location of a line in the current method.
func (g *Generator) newDebugLocation(line int) *metadata.DILocation {
	return &metadata.DILocation{
		MetadataID: -1,
		Line:       int64(line),
		Scope:      g.subprogram,
	}
}

// startDebugInfo creates the subprogram of the method if debug info is
// enabled and the method has a source document.
func (g *Generator) startDebugInfo() {
	m := g.method
	if !g.cache.DebugEnabled() || m.Document == "" {
		return
	}

	g.subprogram = g.cache.Subprogram(m.Name, m.Symbol, m.Document, m.FirstLine)
	g.fn.Metadata = append(g.fn.Metadata, &metadata.Attachment{Name: "dbg", Node: g.subprogram})
}

// debugAttachment returns the debug location attachment for instructions
// lowered at the current statement or nil if there is none.
func (g *Generator) debugAttachment() *metadata.Attachment {
	if g.subprogram == nil {
		return nil
	}

	if g.curLocation == nil {
		line := g.curLine
		if line == 0 {
			line = g.method.FirstLine
		}

		g.curLocation = g.newDebugLocation(line)
	}

	return &metadata.Attachment{Name: "dbg", Node: g.curLocation}
}

// locateInsts gives the instructions that have no debug location the
// location of the current statement.
func (g *Generator) locateInsts(insts []ir.Instruction) {
	if len(insts) == 0 {
		return
	}

	att := g.debugAttachment()
	if att == nil {
		return
	}

	for _, inst := range insts {
		setDebugLocation(inst, att)
	}
}

// locateTerm is locateInsts for the terminator of a block.
func (g *Generator) locateTerm(b *ir.Block) {
	if b.Term == nil {
		return
	}

	if att := g.debugAttachment(); att != nil {
		setDebugLocation(b.Term, att)
	}
}

// setDebugLocation attaches a location to an instruction or terminator unless
// it already has one.  All llir instructions and terminators embed ir.Metadata
// but there is no common interface to modify it through.
func setDebugLocation(inst interface{}, att *metadata.Attachment) {
	if md, ok := inst.(interface {
		MDAttachments() []*metadata.Attachment
	}); ok {
		for _, a := range md.MDAttachments() {
			if a.Name == "dbg" {
				return
			}
		}
	}

	v := reflect.ValueOf(inst)
	if v.Kind() != reflect.Ptr {
		return
	}

	field := v.Elem().FieldByName("Metadata")
	if !field.IsValid() || !field.CanSet() {
		return
	}

	field.Set(reflect.Append(field, reflect.ValueOf(att)))
}
