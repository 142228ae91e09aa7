package generate

import (
	"fmt"
	"sync"

	"jitlower/config"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// SymbolCache is the external symbol cache shared by all the generators
// lowering into the same module.  It is responsible for making sure that
// every external function, global, and intrinsic is declared exactly once no
// matter how many methods (or goroutines) reference it.
type SymbolCache struct {
	// m guards everything below: including the module's declaration lists
	// since creating a declaration appends to them.
	m *sync.Mutex

	// mod is the output module.
	mod *ir.Module

	// prof is the lowering profile.
	prof *config.Profile

	// funcs and globals are the declared symbols organized by name.
	funcs   map[string]*ir.Func
	globals map[string]*ir.Global

	// defined is the set of function names whose body has been claimed by a
	// generator or built by DefineOnce.
	defined map[string]bool

	// debug holds the shared debug info state.  It is nil unless debug info
	// is enabled.
	debug *debugState
}

// NewSymbolCache creates a new symbol cache for the given module.  Any
// functions and globals already in the module are reused by name.
func NewSymbolCache(mod *ir.Module, prof *config.Profile) *SymbolCache {
	sc := &SymbolCache{
		m:       &sync.Mutex{},
		mod:     mod,
		prof:    prof,
		funcs:   make(map[string]*ir.Func),
		globals: make(map[string]*ir.Global),
		defined: make(map[string]bool),
	}

	for _, f := range mod.Funcs {
		sc.funcs[f.Name()] = f
		if len(f.Blocks) > 0 {
			sc.defined[f.Name()] = true
		}
	}

	for _, g := range mod.Globals {
		sc.globals[g.Name()] = g
	}

	if prof.Debug {
		sc.debug = newDebugState()
	}

	return sc
}

// Module returns the module the cache declares into.
func (sc *SymbolCache) Module() *ir.Module {
	return sc.mod
}

// Profile returns the lowering profile.
func (sc *SymbolCache) Profile() *config.Profile {
	return sc.prof
}

// Function returns the function with the given name, declaring it with the
// given signature if it does not exist yet.  An existing function is returned
// as is even if its signature differs: callers must use its signature.
func (sc *SymbolCache) Function(name string, sig *types.FuncType) *ir.Func {
	sc.m.Lock()
	defer sc.m.Unlock()

	return sc.getFunc(name, sig)
}

// Intrinsic returns the declaration of a backend intrinsic.
func (sc *SymbolCache) Intrinsic(name string, retType types.Type, params ...types.Type) *ir.Func {
	return sc.Function(name, types.NewFunc(retType, params...))
}

// Global returns the external global with the given name and content type,
// declaring it if it does not exist yet.
func (sc *SymbolCache) Global(name string, contentType types.Type) *ir.Global {
	sc.m.Lock()
	defer sc.m.Unlock()

	return sc.getGlobal(name, contentType, false)
}

// ThreadLocal returns the external thread-local global with the given name
// and content type, declaring it if it does not exist yet.
func (sc *SymbolCache) ThreadLocal(name string, contentType types.Type) *ir.Global {
	sc.m.Lock()
	defer sc.m.Unlock()

	return sc.getGlobal(name, contentType, true)
}

// DefineOnce returns the function with the given name, building its body
// with build if nobody has done so yet.  created indicates whether this call
// built the body.  build runs with the cache locked: it must not call back
// into the cache.
func (sc *SymbolCache) DefineOnce(name string, sig *types.FuncType, build func(f *ir.Func)) (f *ir.Func, created bool) {
	sc.m.Lock()
	defer sc.m.Unlock()

	f = sc.getFunc(name, sig)
	if sc.defined[name] {
		return f, false
	}

	build(f)
	sc.defined[name] = true
	return f, true
}

// ClaimDefinition returns the function that will hold the body of a method.
// It fails if another method already defined a function of the same name or
// if a previous declaration has a different signature.
func (sc *SymbolCache) ClaimDefinition(name string, sig *types.FuncType) (*ir.Func, error) {
	sc.m.Lock()
	defer sc.m.Unlock()

	if sc.defined[name] {
		return nil, fmt.Errorf("function `%s` is defined multiple times", name)
	}

	f := sc.getFunc(name, sig)
	if !f.Sig.Equal(sig) {
		return nil, fmt.Errorf("function `%s` was declared as `%s`, but defined as `%s`", name, f.Sig, sig)
	}

	sc.defined[name] = true
	return f, nil
}

// -----------------------------------------------------------------------------

// getFunc implements Function.  The cache must be locked.
func (sc *SymbolCache) getFunc(name string, sig *types.FuncType) *ir.Func {
	if f, ok := sc.funcs[name]; ok {
		return f
	}

	params := make([]*ir.Param, len(sig.Params))
	for i, pt := range sig.Params {
		params[i] = ir.NewParam("", pt)
	}

	f := sc.mod.NewFunc(name, sig.RetType, params...)
	f.Sig.Variadic = sig.Variadic
	f.Linkage = enum.LinkageExternal
	f.FuncAttrs = append(f.FuncAttrs, enum.FuncAttrNoUnwind)

	// the function type is computed lazily: force it here so no two
	// generators race to compute it later
	f.Type()

	sc.funcs[name] = f
	return f
}

// getGlobal implements Global and ThreadLocal.  The cache must be locked.
func (sc *SymbolCache) getGlobal(name string, contentType types.Type, tls bool) *ir.Global {
	if g, ok := sc.globals[name]; ok {
		return g
	}

	g := sc.mod.NewGlobal(name, contentType)
	g.Linkage = enum.LinkageExternal
	g.ExternallyInitialized = true
	if tls {
		g.TLSModel = enum.TLSModelGeneric
	}

	g.Type()

	sc.globals[name] = g
	return g
}
