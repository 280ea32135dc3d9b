package hash

// ---------------------------------------------------------------------------
// Frozen hashing AST types.
//
// These are stripped-down parallels of compiler/ast.go with no position
// data and no groupings. Two programs that differ only in layout, comments,
// parentheses or the order of struct literal fields produce identical
// hashing ASTs.
// ---------------------------------------------------------------------------

// HNode is the interface implemented by all hashing AST nodes.
type HNode interface {
	hnode() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

type HNumberLiteral struct{ Value float64 }
type HStringLiteral struct{ Value string }
type HNilLiteral struct{}
type HVariable struct{ Name string }

type HArrayLiteral struct{ Elements []HNode }

// HBinary is a binary operation; Op is the operator character.
type HBinary struct {
	Op    byte
	Left  HNode
	Right HNode
}

// HFieldInit is one field of a struct literal.
type HFieldInit struct {
	Name  string
	Value HNode
}

// HStructLiteral holds its fields sorted by name.
type HStructLiteral struct {
	Name   string
	Fields []HFieldInit
}

type HCall struct {
	Callee HNode
	Args   []HNode
}

func (*HNumberLiteral) hnode() {}
func (*HStringLiteral) hnode() {}
func (*HNilLiteral) hnode()    {}
func (*HVariable) hnode()      {}
func (*HArrayLiteral) hnode()  {}
func (*HBinary) hnode()        {}
func (*HStructLiteral) hnode() {}
func (*HCall) hnode()          {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// HType is a type annotation. A nil *HType serializes as an absent one.
type HType struct {
	Name     string
	Param    *HType
	Nullable bool
}

type HLet struct {
	Public bool
	Name   string
	Value  HNode // nil when there is no initializer
}

type HFieldDecl struct {
	Name string
	Type *HType
}

type HStruct struct {
	Public bool
	Name   string
	Fields []HFieldDecl
}

type HFnDecl struct {
	Public     bool
	Name       string
	Params     []string
	ReturnType *HType
	Body       []HNode
}

type HReturn struct{ Value HNode }
type HExprStmt struct{ Expr HNode }
type HBlock struct{ Statements []HNode }

type HFor struct {
	Var      string
	Iterable HNode
	Body     []HNode
}

type HImport struct {
	Name   string
	Module string
}

// HProgram is the root of a normalized program.
type HProgram struct {
	Statements []HNode
}

func (*HType) hnode()     {}
func (*HLet) hnode()      {}
func (*HStruct) hnode()   {}
func (*HFnDecl) hnode()   {}
func (*HReturn) hnode()   {}
func (*HExprStmt) hnode() {}
func (*HBlock) hnode()    {}
func (*HFor) hnode()      {}
func (*HImport) hnode()   {}
func (*HProgram) hnode()  {}
