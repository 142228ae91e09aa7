package mir

import "fmt"

// SymbolTable maps the opaque handles of a compilation unit to the mangled
// names of the symbols they denote.  It is built by the loader and queried by
// the lowering.
type SymbolTable struct {
	// Names maps handles to mangled symbol names.
	Names map[Handle]string

	// Helpers maps helper ids to the handle of the helper's entry point.
	Helpers map[HelperID]Handle

	// Methods maps "class::method" pairs to method handles.
	Methods map[string]Handle
}

// NewSymbolTable creates a new empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Names:   make(map[Handle]string),
		Helpers: make(map[HelperID]Handle),
		Methods: make(map[string]Handle),
	}
}

// AddSymbol binds a handle to a mangled name.
func (st *SymbolTable) AddSymbol(h Handle, name string) {
	st.Names[h] = name
}

// AddHelper binds a helper id to the handle of its entry point.
func (st *SymbolTable) AddHelper(id HelperID, h Handle) {
	st.Helpers[id] = h
}

// AddMethod binds a class and method name pair to a method handle.
func (st *SymbolTable) AddMethod(class, method string, h Handle) {
	st.Methods[class+"::"+method] = h
}

// SymbolName returns the mangled name of the symbol a handle refers to.
func (st *SymbolTable) SymbolName(h Handle) (string, error) {
	if name, ok := st.Names[h]; ok {
		return name, nil
	}

	return "", fmt.Errorf("no symbol for handle %#x", uint64(h))
}

// HelperEntry returns the handle of a helper's entry point.
func (st *SymbolTable) HelperEntry(id HelperID) (Handle, error) {
	if h, ok := st.Helpers[id]; ok {
		return h, nil
	}

	return 0, fmt.Errorf("no entry point for helper %s", id)
}

// MethodHandle returns the handle of a method looked up by class and name.
func (st *SymbolTable) MethodHandle(class, method string) (Handle, error) {
	if h, ok := st.Methods[class+"::"+method]; ok {
		return h, nil
	}

	return 0, fmt.Errorf("no method %s::%s", class, method)
}
