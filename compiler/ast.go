package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for mia
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether offset falls inside the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset < s.End.Offset
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Program is a parsed source file: a list of top-level statements.
type Program struct {
	Statements []Stmt
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *NumberLiteral) Span() Span { return n.SpanVal }
func (n *NumberLiteral) node()      {}
func (n *NumberLiteral) expr()      {}

// StringLiteral represents a text literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// NilLiteral represents nil.
type NilLiteral struct {
	SpanVal Span
}

func (n *NilLiteral) Span() Span { return n.SpanVal }
func (n *NilLiteral) node()      {}
func (n *NilLiteral) expr()      {}

// Variable represents a reference to a named binding.
type Variable struct {
	SpanVal Span
	Name    string
}

func (n *Variable) Span() Span { return n.SpanVal }
func (n *Variable) node()      {}
func (n *Variable) expr()      {}

// Grouping represents a parenthesized expression.
type Grouping struct {
	SpanVal Span
	Inner   Expr
}

func (n *Grouping) Span() Span { return n.SpanVal }
func (n *Grouping) node()      {}
func (n *Grouping) expr()      {}

// BinaryExpr represents left OP right.
type BinaryExpr struct {
	SpanVal Span
	Left    Expr
	Op      TokenType // TokenPlus, TokenMinus, TokenStar or TokenSlash
	OpPos   Position
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// ArrayLiteral represents [e0, e1, ...].
type ArrayLiteral struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLiteral) Span() Span { return n.SpanVal }
func (n *ArrayLiteral) node()      {}
func (n *ArrayLiteral) expr()      {}

// FieldInit is one "name: value" entry of a struct literal.
type FieldInit struct {
	Name  string
	Pos   Position
	Value Expr
}

// StructLiteral represents Name { field: value, ... }. Fields are kept in
// the order they were written.
type StructLiteral struct {
	SpanVal Span
	Name    string
	Fields  []FieldInit
}

func (n *StructLiteral) Span() Span { return n.SpanVal }
func (n *StructLiteral) node()      {}
func (n *StructLiteral) expr()      {}

// Field returns the initializer for name.
func (n *StructLiteral) Field(name string) (FieldInit, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldInit{}, false
}

// CallExpr represents callee(args...).
type CallExpr struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// ---------------------------------------------------------------------------
// Type annotations
// ---------------------------------------------------------------------------

// TypeExpr is a written type annotation such as Array<String>?.
type TypeExpr struct {
	SpanVal  Span
	Name     string
	Param    *TypeExpr // set for Name<Param>
	Nullable bool
}

func (n *TypeExpr) Span() Span { return n.SpanVal }
func (n *TypeExpr) node()      {}

func (n *TypeExpr) String() string {
	s := n.Name
	if n.Param != nil {
		s += "<" + n.Param.String() + ">"
	}
	if n.Nullable {
		s += "?"
	}
	return s
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// LetStmt represents [pub] let name [= value];
type LetStmt struct {
	SpanVal Span
	Public  bool
	Name    string
	NamePos Position
	Value   Expr // nil when there is no initializer
}

func (n *LetStmt) Span() Span { return n.SpanVal }
func (n *LetStmt) node()      {}
func (n *LetStmt) stmt()      {}

// FieldDecl is one declared field of a struct.
type FieldDecl struct {
	Name string
	Pos  Position
	Type *TypeExpr
}

// StructDecl represents [pub] struct Name { field: Type, ... }
type StructDecl struct {
	SpanVal Span
	Public  bool
	Name    string
	Fields  []FieldDecl
}

func (n *StructDecl) Span() Span { return n.SpanVal }
func (n *StructDecl) node()      {}
func (n *StructDecl) stmt()      {}

// Param is a function parameter. Parameters carry no annotation.
type Param struct {
	Name string
	Pos  Position
}

// FnDecl represents [pub] fn name(params) [: Type] { body }
type FnDecl struct {
	SpanVal    Span
	Public     bool
	Name       string
	NamePos    Position
	Params     []Param
	ReturnType *TypeExpr // nil when unannotated
	Body       []Stmt
}

func (n *FnDecl) Span() Span { return n.SpanVal }
func (n *FnDecl) node()      {}
func (n *FnDecl) stmt()      {}

// ReturnStmt represents return value;
type ReturnStmt struct {
	SpanVal Span
	Value   Expr
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// BlockStmt represents { statements }.
type BlockStmt struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// ForStmt represents for name in iterable { body }.
type ForStmt struct {
	SpanVal  Span
	Var      string
	VarPos   Position
	Iterable Expr
	Body     *BlockStmt
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// ImportStmt represents import Name from 'module';
type ImportStmt struct {
	SpanVal Span
	Name    string
	Module  string
}

func (n *ImportStmt) Span() Span { return n.SpanVal }
func (n *ImportStmt) node()      {}
func (n *ImportStmt) stmt()      {}
