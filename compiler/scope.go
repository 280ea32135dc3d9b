package compiler

// ---------------------------------------------------------------------------
// Lexical resolution shared by the checker and the code generator
// ---------------------------------------------------------------------------

// SymbolKind says what a declaration binds.
type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymParam
	SymFunction
	SymStruct
)

var symbolKindNames = [...]string{
	SymVariable: "variable",
	SymParam:    "parameter",
	SymFunction: "function",
	SymStruct:   "struct",
}

func (k SymbolKind) String() string {
	if int(k) < len(symbolKindNames) {
		return symbolKindNames[k]
	}
	return "symbol"
}

// Symbol is one declaration. Struct symbols have no slot.
type Symbol struct {
	ID   int
	Name string
	Kind SymbolKind
	Type Type
	Unit int // id of the owning compilation unit
	Slot int // local slot in that unit, -1 for structs
	Pos  Position
}

// Ref is a resolved variable reference: a local slot of the current unit,
// or an index into the current function's captures.
type Ref struct {
	Symbol  *Symbol
	Capture bool
	Index   int
}

// Capture describes one value a function takes from its enclosing unit when
// the closure is created.
type Capture struct {
	Symbol    *Symbol
	FromLocal bool // Index is a local slot of the enclosing unit, else one of its captures
	Index     int
}

// Unit is a compilation unit: the top level or one function body. Each unit
// owns an append-only slot counter; parameters take the first slots.
type Unit struct {
	ID       int
	Name     string
	Parent   int // -1 for the top level
	Params   []*Symbol
	Locals   []*Symbol // indexed by slot
	Captures []Capture
}

// LocalCount returns the number of slots the unit uses.
func (u *Unit) LocalCount() int {
	return len(u.Locals)
}

// VarNames returns the declared name of every slot.
func (u *Unit) VarNames() []string {
	names := make([]string, len(u.Locals))
	for i, s := range u.Locals {
		names[i] = s.Name
	}
	return names
}

// captureIndex returns the index of sym in the unit's captures, adding it,
// and the chain of captures through intermediate units, when missing.
func (r *Resolution) captureIndex(u *Unit, sym *Symbol) int {
	for i, c := range u.Captures {
		if c.Symbol == sym {
			return i
		}
	}
	parent := r.Units[u.Parent]
	c := Capture{Symbol: sym}
	if sym.Unit == parent.ID {
		c.FromLocal = true
		c.Index = sym.Slot
	} else {
		c.Index = r.captureIndex(parent, sym)
	}
	u.Captures = append(u.Captures, c)
	return len(u.Captures) - 1
}

// Resolution is what the checker learned about a program. The code generator
// reads slots and captures from it and never keeps a name table of its own.
type Resolution struct {
	Units   []*Unit // Units[0] is the top level
	Symbols []*Symbol
	Globals []*Symbol // top-level bindings in declaration order

	Refs    map[*Variable]Ref
	Decls   map[Node]*Symbol // let, fn, struct and for statements
	FnUnits map[*FnDecl]*Unit
	Structs map[*StructLiteral]*StructType
	Types   map[Expr]Type
}

func newResolution() *Resolution {
	return &Resolution{
		Units:   []*Unit{{ID: 0, Name: "<main>", Parent: -1}},
		Refs:    make(map[*Variable]Ref),
		Decls:   make(map[Node]*Symbol),
		FnUnits: make(map[*FnDecl]*Unit),
		Structs: make(map[*StructLiteral]*StructType),
		Types:   make(map[Expr]Type),
	}
}

// TypeOf returns the checked type of e.
func (r *Resolution) TypeOf(e Expr) (Type, bool) {
	t, ok := r.Types[e]
	return t, ok
}

// TypeAt returns the type of the innermost expression whose span contains
// offset.
func (r *Resolution) TypeAt(offset int) (Expr, Type, bool) {
	var best Expr
	for e := range r.Types {
		sp := e.Span()
		if !sp.Contains(offset) {
			continue
		}
		if best == nil || sp.End.Offset-sp.Start.Offset < best.Span().End.Offset-best.Span().Start.Offset {
			best = e
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best, r.Types[best], true
}

// Global returns the top-level binding named name, the latest one when it
// was shadowed.
func (r *Resolution) Global(name string) (*Symbol, bool) {
	for i := len(r.Globals) - 1; i >= 0; i-- {
		if r.Globals[i].Name == name {
			return r.Globals[i], true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Scope frames
// ---------------------------------------------------------------------------

// scopeFrame is one lexical scope. Frames live in an arena and refer to
// their parent by index.
type scopeFrame struct {
	parent   int // -1 for the root
	unit     int
	bindings []*Symbol
}

type scopeArena struct {
	frames []scopeFrame
}

func (a *scopeArena) push(parent, unit int) int {
	a.frames = append(a.frames, scopeFrame{parent: parent, unit: unit})
	return len(a.frames) - 1
}

func (a *scopeArena) bind(frame int, sym *Symbol) {
	a.frames[frame].bindings = append(a.frames[frame].bindings, sym)
}

// lookup scans newest-first within each frame, innermost frame first.
func (a *scopeArena) lookup(frame int, name string) (*Symbol, bool) {
	for f := frame; f >= 0; f = a.frames[f].parent {
		bindings := a.frames[f].bindings
		for i := len(bindings) - 1; i >= 0; i-- {
			if bindings[i].Name == name {
				return bindings[i], true
			}
		}
	}
	return nil, false
}
