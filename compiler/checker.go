package compiler

import (
	"github.com/tliron/commonlog"
)

var checkerLog = commonlog.GetLogger("mia.checker")

// Checker type-checks a program and resolves every name to a slot or a
// capture. It stops at the first violation.
type Checker struct {
	res    *Resolution
	scopes scopeArena
	frame  int   // current scope frame
	unit   *Unit // current compilation unit

	// Set while checking a function body.
	inFunction bool
	returnType Type
}

// NewChecker creates a checker with an empty top-level scope.
func NewChecker() *Checker {
	c := &Checker{res: newResolution()}
	c.frame = c.scopes.push(-1, 0)
	c.unit = c.res.Units[0]
	return c
}

// Check type-checks prog and returns its resolution.
func Check(prog *Program, opts Options) (*Resolution, error) {
	c := NewChecker()
	res, err := c.CheckProgram(prog)
	if err != nil {
		err.File = opts.File
		return res, err
	}
	return res, nil
}

// CheckProgram checks every statement of prog. On failure the partial
// resolution is returned along with the error.
func (c *Checker) CheckProgram(prog *Program) (*Resolution, *TypeError) {
	for _, stmt := range prog.Statements {
		if err := c.checkStmt(stmt); err != nil {
			c.res.Globals = c.scopes.frames[0].bindings
			return c.res, err
		}
	}
	c.res.Globals = c.scopes.frames[0].bindings
	return c.res, nil
}

// declare binds name in the current frame. Every declaration gets a fresh
// slot in the current unit, so shadowing never reuses an outer slot.
func (c *Checker) declare(name string, kind SymbolKind, t Type, pos Position) *Symbol {
	sym := &Symbol{
		ID:   len(c.res.Symbols),
		Name: name,
		Kind: kind,
		Type: t,
		Unit: c.unit.ID,
		Slot: -1,
		Pos:  pos,
	}
	if kind != SymStruct {
		sym.Slot = len(c.unit.Locals)
		c.unit.Locals = append(c.unit.Locals, sym)
	}
	c.res.Symbols = append(c.res.Symbols, sym)
	c.scopes.bind(c.frame, sym)
	checkerLog.Debugf("bind %s %s: %s (unit %d, slot %d)", kind, name, t, sym.Unit, sym.Slot)
	return sym
}

// reference resolves a use of sym from the current unit.
func (c *Checker) reference(sym *Symbol) Ref {
	if sym.Unit == c.unit.ID {
		return Ref{Symbol: sym, Index: sym.Slot}
	}
	return Ref{Symbol: sym, Capture: true, Index: c.res.captureIndex(c.unit, sym)}
}

func (c *Checker) pushFrame() int {
	saved := c.frame
	c.frame = c.scopes.push(c.frame, c.unit.ID)
	return saved
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Checker) checkStmt(stmt Stmt) *TypeError {
	switch s := stmt.(type) {
	case *LetStmt:
		var t Type = Nullable(Infer)
		if s.Value != nil {
			vt, err := c.checkExpr(s.Value)
			if err != nil {
				return err
			}
			t = vt
		}
		c.res.Decls[s] = c.declare(s.Name, SymVariable, t, s.NamePos)

	case *StructDecl:
		st := &StructType{Name: s.Name}
		for _, f := range s.Fields {
			st.Fields = append(st.Fields, FieldType{Name: f.Name, Type: c.resolveType(f.Type)})
		}
		c.res.Decls[s] = c.declare(s.Name, SymStruct, st, s.SpanVal.Start)

	case *FnDecl:
		return c.checkFn(s)

	case *ReturnStmt:
		t, err := c.checkExpr(s.Value)
		if err != nil {
			return err
		}
		if c.inFunction && !CanBeInferredFrom(c.returnType, t) {
			return newError(KindReturn, s.SpanVal.Start, "Expected return type '%s', got '%s'", c.returnType, t)
		}

	case *ExprStmt:
		if _, err := c.checkExpr(s.Expr); err != nil {
			return err
		}

	case *BlockStmt:
		return c.checkBlock(s.Statements)

	case *ForStmt:
		t, err := c.checkExpr(s.Iterable)
		if err != nil {
			return err
		}
		var elem Type = Infer
		if nt, ok := t.(*NestedType); ok && Identical(nt.Base, ArrayType) {
			elem = nt.Param
		}
		saved := c.pushFrame()
		c.res.Decls[s] = c.declare(s.Var, SymVariable, elem, s.VarPos)
		err = c.checkBlock(s.Body.Statements)
		c.frame = saved
		return err

	case *ImportStmt:
		// Imports are accepted and bind nothing.

	default:
		return internalf("unexpected statement %T", stmt)
	}
	return nil
}

func (c *Checker) checkBlock(stmts []Stmt) *TypeError {
	saved := c.pushFrame()
	defer func() { c.frame = saved }()
	for _, stmt := range stmts {
		if err := c.checkStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

// checkFn checks a function body in a fresh unit, then binds the function
// name in the enclosing scope. The name is not visible inside the body.
// Without an annotation the return type is inferred, so any value may be
// returned.
func (c *Checker) checkFn(fn *FnDecl) *TypeError {
	var ret Type = Infer
	if fn.ReturnType != nil {
		ret = c.resolveType(fn.ReturnType)
	}

	unit := &Unit{ID: len(c.res.Units), Name: fn.Name, Parent: c.unit.ID}
	c.res.Units = append(c.res.Units, unit)
	c.res.FnUnits[fn] = unit

	savedFrame, savedUnit := c.frame, c.unit
	savedIn, savedRet := c.inFunction, c.returnType
	c.unit = unit
	c.frame = c.scopes.push(savedFrame, unit.ID)
	c.inFunction, c.returnType = true, ret

	for _, p := range fn.Params {
		unit.Params = append(unit.Params, c.declare(p.Name, SymParam, Infer, p.Pos))
	}
	var err *TypeError
	for _, stmt := range fn.Body {
		if err = c.checkStmt(stmt); err != nil {
			break
		}
	}

	c.frame, c.unit = savedFrame, savedUnit
	c.inFunction, c.returnType = savedIn, savedRet
	if err != nil {
		return err
	}

	c.res.Decls[fn] = c.declare(fn.Name, SymFunction, &FunctionType{Return: ret, Arity: len(fn.Params)}, fn.NamePos)
	return nil
}

// resolveType turns an annotation into a type. A name that is neither a
// builtin nor a struct in scope stays a NamedType.
func (c *Checker) resolveType(te *TypeExpr) Type {
	var t Type
	switch te.Name {
	case "String":
		t = TextType
	case "Number":
		t = NumberType
	case "Array":
		t = ArrayType
	case "Unit":
		t = UnitType
	default:
		t = &NamedType{Name: te.Name}
		if sym, ok := c.scopes.lookup(c.frame, te.Name); ok && sym.Kind == SymStruct {
			t = sym.Type
		}
	}
	if te.Param != nil {
		t = &NestedType{Base: t, Param: c.resolveType(te.Param)}
	}
	if te.Nullable {
		t = Nullable(t)
	}
	return t
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Checker) checkExpr(e Expr) (Type, *TypeError) {
	t, err := c.exprType(e)
	if err != nil {
		return nil, err
	}
	c.res.Types[e] = t
	checkerLog.Debugf("type of %T at %s: %s", e, e.Span().Start, t)
	return t, nil
}

func (c *Checker) exprType(e Expr) (Type, *TypeError) {
	switch n := e.(type) {
	case *NumberLiteral:
		return NumberType, nil

	case *StringLiteral:
		return TextType, nil

	case *NilLiteral:
		return Nullable(Infer), nil

	case *Variable:
		sym, ok := c.scopes.lookup(c.frame, n.Name)
		if !ok {
			return nil, newError(KindUnresolved, n.SpanVal.Start, "Variable '%s' not found", n.Name)
		}
		if sym.Kind == SymStruct {
			return nil, newError(KindNotAValue, n.SpanVal.Start, "'%s' is a struct, not a value", n.Name)
		}
		c.res.Refs[n] = c.reference(sym)
		return sym.Type, nil

	case *Grouping:
		return c.checkExpr(n.Inner)

	case *BinaryExpr:
		return c.checkBinary(n)

	case *ArrayLiteral:
		var elem Type = Infer
		for _, el := range n.Elements {
			t, err := c.checkExpr(el)
			if err != nil {
				return nil, err
			}
			switch {
			case isInfer(t):
			case isInfer(elem):
				elem = t
			case !Identical(elem, t):
				return nil, newError(KindArrayElement, el.Span().Start, "Literal array can only have a single type")
			}
		}
		return ArrayOf(elem), nil

	case *StructLiteral:
		return c.checkStructLiteral(n)

	case *CallExpr:
		return c.checkCall(n)
	}
	return nil, internalf("unexpected expression %T", e)
}

var operatorNames = map[TokenType]string{
	TokenPlus:  "+",
	TokenMinus: "-",
	TokenStar:  "*",
	TokenSlash: "/",
}

// checkBinary requires both operands to have the same type, Number for every
// operator and also String for '+'. An Infer operand takes the other's type.
func (c *Checker) checkBinary(n *BinaryExpr) (Type, *TypeError) {
	left, err := c.checkExpr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.checkExpr(n.Right)
	if err != nil {
		return nil, err
	}

	mismatch := func() *TypeError {
		return newError(KindOperator, n.OpPos, "Operator '%s' cannot be applied to '%s' and '%s'",
			operatorNames[n.Op], left, right)
	}

	operand := left
	switch {
	case isInfer(left):
		operand = right
	case isInfer(right):
	case !Identical(left, right):
		return nil, mismatch()
	}

	switch {
	case isInfer(operand):
	case Identical(operand, NumberType):
	case n.Op == TokenPlus && Identical(operand, TextType):
	default:
		return nil, mismatch()
	}
	return operand, nil
}

func (c *Checker) checkStructLiteral(n *StructLiteral) (Type, *TypeError) {
	sym, ok := c.scopes.lookup(c.frame, n.Name)
	if !ok {
		return nil, newError(KindUnresolved, n.SpanVal.Start, "Could not find structure declaration for '%s'", n.Name)
	}
	st, ok := sym.Type.(*StructType)
	if !ok || sym.Kind != SymStruct {
		return nil, newError(KindUnresolved, n.SpanVal.Start, "'%s' is not a struct", n.Name)
	}

	for _, f := range n.Fields {
		if _, ok := st.Field(f.Name); !ok {
			return nil, newError(KindStructShape, f.Pos, "Unknown field '%s' for struct '%s'", f.Name, n.Name)
		}
	}
	for _, decl := range st.Fields {
		init, ok := n.Field(decl.Name)
		if !ok {
			return nil, newError(KindStructShape, n.SpanVal.Start, "Missing field '%s' in struct '%s'", decl.Name, n.Name)
		}
		t, err := c.checkExpr(init.Value)
		if err != nil {
			return nil, err
		}
		if !CanBeInferredFrom(decl.Type, t) {
			return nil, newError(KindStructField, init.Pos, "Expected '%s', got '%s'", decl.Type, t)
		}
	}
	c.res.Structs[n] = st
	return st, nil
}

// checkCall requires a function callee with matching arity. Calling an Infer
// value (an untyped parameter) is allowed and yields Infer.
func (c *Checker) checkCall(n *CallExpr) (Type, *TypeError) {
	callee, err := c.checkExpr(n.Callee)
	if err != nil {
		return nil, err
	}
	for _, arg := range n.Args {
		if _, err := c.checkExpr(arg); err != nil {
			return nil, err
		}
	}
	switch ft := callee.(type) {
	case InferType:
		return Infer, nil
	case *FunctionType:
		if ft.Arity != len(n.Args) {
			return nil, newError(KindArity, n.SpanVal.Start, "Expected %d arguments, got %d", ft.Arity, len(n.Args))
		}
		return ft.Return, nil
	}
	return nil, newError(KindNotCallable, n.SpanVal.Start, "'%s' is not callable", callee)
}
