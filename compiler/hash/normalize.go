package hash

import (
	"sort"

	"github.com/sadraskol/mia/compiler"
)

// ---------------------------------------------------------------------------
// AST Normalization: compiler AST → frozen hashing AST
//
// Walks the compiler's working AST and produces the frozen hashing AST.
// Positions are dropped, groupings are unwrapped and struct literal fields
// are sorted by name, since the compiler emits them in declared order
// whatever order they were written in.
// ---------------------------------------------------------------------------

var operators = map[compiler.TokenType]byte{
	compiler.TokenPlus:  '+',
	compiler.TokenMinus: '-',
	compiler.TokenStar:  '*',
	compiler.TokenSlash: '/',
}

// NormalizeProgram transforms a parsed program into a frozen HProgram.
func NormalizeProgram(prog *compiler.Program) *HProgram {
	return &HProgram{Statements: normalizeStmts(prog.Statements)}
}

func normalizeStmts(stmts []compiler.Stmt) []HNode {
	out := make([]HNode, 0, len(stmts))
	for _, s := range stmts {
		if h := normalizeStmt(s); h != nil {
			out = append(out, h)
		}
	}
	return out
}

func normalizeStmt(stmt compiler.Stmt) HNode {
	switch s := stmt.(type) {
	case *compiler.LetStmt:
		h := &HLet{Public: s.Public, Name: s.Name}
		if s.Value != nil {
			h.Value = normalizeExpr(s.Value)
		}
		return h

	case *compiler.StructDecl:
		h := &HStruct{Public: s.Public, Name: s.Name}
		for _, f := range s.Fields {
			h.Fields = append(h.Fields, HFieldDecl{Name: f.Name, Type: normalizeType(f.Type)})
		}
		return h

	case *compiler.FnDecl:
		h := &HFnDecl{
			Public:     s.Public,
			Name:       s.Name,
			ReturnType: normalizeType(s.ReturnType),
			Body:       normalizeStmts(s.Body),
		}
		for _, p := range s.Params {
			h.Params = append(h.Params, p.Name)
		}
		return h

	case *compiler.ReturnStmt:
		return &HReturn{Value: normalizeExpr(s.Value)}

	case *compiler.ExprStmt:
		return &HExprStmt{Expr: normalizeExpr(s.Expr)}

	case *compiler.BlockStmt:
		return &HBlock{Statements: normalizeStmts(s.Statements)}

	case *compiler.ForStmt:
		h := &HFor{Var: s.Var, Iterable: normalizeExpr(s.Iterable)}
		if s.Body != nil {
			h.Body = normalizeStmts(s.Body.Statements)
		}
		return h

	case *compiler.ImportStmt:
		return &HImport{Name: s.Name, Module: s.Module}
	}
	return nil
}

func normalizeExpr(expr compiler.Expr) HNode {
	switch e := expr.(type) {
	case *compiler.NumberLiteral:
		return &HNumberLiteral{Value: e.Value}

	case *compiler.StringLiteral:
		return &HStringLiteral{Value: e.Value}

	case *compiler.NilLiteral:
		return &HNilLiteral{}

	case *compiler.Variable:
		return &HVariable{Name: e.Name}

	case *compiler.Grouping:
		return normalizeExpr(e.Inner)

	case *compiler.BinaryExpr:
		return &HBinary{
			Op:    operators[e.Op],
			Left:  normalizeExpr(e.Left),
			Right: normalizeExpr(e.Right),
		}

	case *compiler.ArrayLiteral:
		h := &HArrayLiteral{Elements: make([]HNode, len(e.Elements))}
		for i, el := range e.Elements {
			h.Elements[i] = normalizeExpr(el)
		}
		return h

	case *compiler.StructLiteral:
		h := &HStructLiteral{Name: e.Name}
		for _, f := range e.Fields {
			h.Fields = append(h.Fields, HFieldInit{Name: f.Name, Value: normalizeExpr(f.Value)})
		}
		sort.Slice(h.Fields, func(i, j int) bool { return h.Fields[i].Name < h.Fields[j].Name })
		return h

	case *compiler.CallExpr:
		h := &HCall{Callee: normalizeExpr(e.Callee), Args: make([]HNode, len(e.Args))}
		for i, arg := range e.Args {
			h.Args[i] = normalizeExpr(arg)
		}
		return h
	}
	return &HNilLiteral{}
}

func normalizeType(t *compiler.TypeExpr) *HType {
	if t == nil {
		return nil
	}
	return &HType{Name: t.Name, Param: normalizeType(t.Param), Nullable: t.Nullable}
}
