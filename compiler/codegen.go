package compiler

import (
	"github.com/sadraskol/mia/vm"
	"github.com/tliron/commonlog"
)

var compilerLog = commonlog.GetLogger("mia.compiler")

// ---------------------------------------------------------------------------
// Code generation: AST + Resolution -> bytecode
// ---------------------------------------------------------------------------

// codegen emits the bytecode of one compilation unit.
type codegen struct {
	res   *Resolution
	unit  *Unit
	chunk *vm.Chunk
	entry string
}

// Compile generates the top-level chunk of prog. Slots and captures come
// from res; a reference res does not know about is an internal error.
func Compile(prog *Program, res *Resolution, opts Options) (*vm.Chunk, error) {
	g := &codegen{
		res:   res,
		unit:  res.Units[0],
		chunk: vm.NewChunk("<main>"),
		entry: opts.entry(),
	}
	for _, stmt := range prog.Statements {
		if err := g.stmt(stmt); err != nil {
			err.File = opts.File
			return nil, err
		}
	}
	g.finish()
	compilerLog.Debugf("compiled %s: %d bytes, %d constants", g.chunk.Name, len(g.chunk.Code), len(g.chunk.Constants))
	return g.chunk, nil
}

func (g *codegen) finish() {
	g.chunk.LocalCount = g.unit.LocalCount()
	g.chunk.VarNames = g.unit.VarNames()
}

func (g *codegen) mark(pos Position) {
	g.chunk.AddSourceLocation(uint32(g.chunk.CurrentOffset()), uint32(pos.Line), uint16(pos.Column))
}

func (g *codegen) emitConstant(v vm.Value) *TypeError {
	if _, err := g.chunk.EmitConstant(v); err != nil {
		return internalf("%v", err)
	}
	return nil
}

func (g *codegen) emitCount(op vm.Opcode, n int) *TypeError {
	if n > vm.MaxOperand {
		return internalf("%s of %d elements exceeds %d", op, n, vm.MaxOperand)
	}
	g.chunk.EmitUint16(op, uint16(n))
	return nil
}

// emitIndex emits a slot or capture access, which must fit a u16 operand.
func (g *codegen) emitIndex(op vm.Opcode, index int) *TypeError {
	if index < 0 || index > vm.MaxOperand {
		return internalf("%s index %d out of operand range", op, index)
	}
	g.chunk.EmitUint16(op, uint16(index))
	return nil
}

func (g *codegen) declSlot(decl Node) (uint16, *TypeError) {
	sym, ok := g.res.Decls[decl]
	if !ok || sym.Slot < 0 {
		return 0, internalf("no slot for declaration at %s", decl.Span().Start)
	}
	if sym.Slot > vm.MaxOperand {
		return 0, internalf("slot %d of %s exceeds %d", sym.Slot, sym.Name, vm.MaxOperand)
	}
	return uint16(sym.Slot), nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *codegen) stmt(stmt Stmt) *TypeError {
	g.mark(stmt.Span().Start)
	switch s := stmt.(type) {
	case *LetStmt:
		if s.Value == nil {
			g.chunk.Emit(vm.OpNil)
		} else if err := g.expr(s.Value); err != nil {
			return err
		}
		if s.Public && s.Name == g.entry && g.unit.Parent < 0 {
			g.chunk.Emit(vm.OpReturn)
			return nil
		}
		slot, err := g.declSlot(s)
		if err != nil {
			return err
		}
		g.chunk.EmitUint16(vm.OpStore, slot)

	case *FnDecl:
		return g.function(s)

	case *ReturnStmt:
		if err := g.expr(s.Value); err != nil {
			return err
		}
		g.chunk.Emit(vm.OpReturn)

	case *ExprStmt:
		if err := g.expr(s.Expr); err != nil {
			return err
		}
		g.chunk.Emit(vm.OpPop)

	case *BlockStmt:
		for _, inner := range s.Statements {
			if err := g.stmt(inner); err != nil {
				return err
			}
		}

	case *ForStmt:
		return newError(KindInternal, s.SpanVal.Start, "for loops cannot be compiled yet")

	case *StructDecl, *ImportStmt:
		// Nothing to emit.

	default:
		return internalf("unexpected statement %T", stmt)
	}
	return nil
}

// function compiles fn into its own chunk and stores the resulting function
// value. Captured values are pushed in reverse capture order so that
// OpMakeClosure pops capture 0 first.
func (g *codegen) function(fn *FnDecl) *TypeError {
	unit, ok := g.res.FnUnits[fn]
	if !ok {
		return internalf("no unit for function %s", fn.Name)
	}

	inner := &codegen{res: g.res, unit: unit, chunk: vm.NewChunk(fn.Name), entry: g.entry}
	inner.chunk.ParamCount = len(fn.Params)
	for _, p := range fn.Params {
		inner.chunk.ParamNames = append(inner.chunk.ParamNames, p.Name)
	}
	for _, stmt := range fn.Body {
		if err := inner.stmt(stmt); err != nil {
			return err
		}
	}
	if !inner.chunk.EndsWithReturn() {
		inner.chunk.Emit(vm.OpNil)
		inner.chunk.Emit(vm.OpReturn)
	}
	inner.finish()

	slot, err := g.declSlot(fn)
	if err != nil {
		return err
	}
	returnType := Infer.String()
	if ft, ok := g.res.Decls[fn].Type.(*FunctionType); ok {
		returnType = ft.Return.String()
	}
	proto := &vm.Function{
		Arity:      len(fn.Params),
		Name:       fn.Name,
		Chunk:      inner.chunk,
		ReturnType: returnType,
	}

	g.mark(fn.NamePos)
	if len(unit.Captures) == 0 {
		if err := g.emitConstant(proto); err != nil {
			return err
		}
	} else {
		if len(unit.Captures) > 0xFF {
			return internalf("function %s captures %d values", fn.Name, len(unit.Captures))
		}
		for i := len(unit.Captures) - 1; i >= 0; i-- {
			c := unit.Captures[i]
			op := vm.OpLoadCapture
			if c.FromLocal {
				op = vm.OpLoad
			}
			if err := g.emitIndex(op, c.Index); err != nil {
				return err
			}
		}
		idx, cerr := g.chunk.AddConstant(proto)
		if cerr != nil {
			return internalf("%v", cerr)
		}
		g.chunk.EmitWithOperand(vm.OpMakeClosure, byte(idx>>8), byte(idx), byte(len(unit.Captures)))
	}

	g.chunk.EmitUint16(vm.OpStore, slot)
	compilerLog.Debugf("function %s: %d params, %d captures", fn.Name, len(fn.Params), len(unit.Captures))
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOps = map[TokenType]vm.Opcode{
	TokenPlus:  vm.OpAdd,
	TokenMinus: vm.OpSubtract,
	TokenStar:  vm.OpMultiply,
	TokenSlash: vm.OpDivide,
}

func (g *codegen) expr(e Expr) *TypeError {
	switch n := e.(type) {
	case *NumberLiteral:
		return g.emitConstant(vm.Number(n.Value))

	case *StringLiteral:
		return g.emitConstant(vm.Text(n.Value))

	case *NilLiteral:
		g.chunk.Emit(vm.OpNil)

	case *Variable:
		ref, ok := g.res.Refs[n]
		if !ok {
			return internalf("unresolved reference to %s at %s", n.Name, n.SpanVal.Start)
		}
		op := vm.OpLoad
		if ref.Capture {
			op = vm.OpLoadCapture
		}
		return g.emitIndex(op, ref.Index)

	case *Grouping:
		return g.expr(n.Inner)

	case *BinaryExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return internalf("unknown operator %s", n.Op)
		}
		// Right first: the VM pops the left operand first.
		if err := g.expr(n.Right); err != nil {
			return err
		}
		if err := g.expr(n.Left); err != nil {
			return err
		}
		g.mark(n.OpPos)
		g.chunk.Emit(op)

	case *ArrayLiteral:
		for i := len(n.Elements) - 1; i >= 0; i-- {
			if err := g.expr(n.Elements[i]); err != nil {
				return err
			}
		}
		return g.emitCount(vm.OpMakeArray, len(n.Elements))

	case *StructLiteral:
		st, ok := g.res.Structs[n]
		if !ok {
			return internalf("no struct type for literal %s at %s", n.Name, n.SpanVal.Start)
		}
		// Declared order, reversed: value then name for each field.
		for i := len(st.Fields) - 1; i >= 0; i-- {
			name := st.Fields[i].Name
			init, ok := n.Field(name)
			if !ok {
				return internalf("literal %s lacks field %s", n.Name, name)
			}
			if err := g.expr(init.Value); err != nil {
				return err
			}
			if err := g.emitConstant(vm.Text(name)); err != nil {
				return err
			}
		}
		return g.emitCount(vm.OpMakeStruct, len(st.Fields))

	case *CallExpr:
		if len(n.Args) > 0xFF {
			return internalf("call with %d arguments", len(n.Args))
		}
		for _, arg := range n.Args {
			if err := g.expr(arg); err != nil {
				return err
			}
		}
		if err := g.expr(n.Callee); err != nil {
			return err
		}
		g.mark(n.SpanVal.Start)
		g.chunk.EmitWithOperand(vm.OpCall, byte(len(n.Args)))

	default:
		return internalf("unexpected expression %T", e)
	}
	return nil
}
