package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: post-check warnings
// ---------------------------------------------------------------------------

// Warning is a non-fatal finding about a program that type-checked.
type Warning struct {
	Pos Position
	Msg string
}

func (w Warning) String() string {
	return fmt.Sprintf("warning: line %d, column %d: %s", w.Pos.Line, w.Pos.Column, w.Msg)
}

// SemanticAnalyzer looks for code that checks but is likely a mistake:
// statements after a return, bindings that are never read and imports,
// which bind nothing.
type SemanticAnalyzer struct {
	res      *Resolution
	entry    string
	warnings []Warning
}

// NewSemanticAnalyzer creates an analyzer over a completed resolution.
func NewSemanticAnalyzer(res *Resolution, entry string) *SemanticAnalyzer {
	if entry == "" {
		entry = DefaultEntry
	}
	return &SemanticAnalyzer{res: res, entry: entry}
}

// Warnings returns the findings sorted by position.
func (s *SemanticAnalyzer) Warnings() []Warning {
	sort.SliceStable(s.warnings, func(i, j int) bool {
		return s.warnings[i].Pos.Offset < s.warnings[j].Pos.Offset
	})
	return s.warnings
}

func (s *SemanticAnalyzer) warnAt(pos Position, format string, args ...interface{}) {
	s.warnings = append(s.warnings, Warning{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// AnalyzeProgram walks prog and then reports unread bindings.
func (s *SemanticAnalyzer) AnalyzeProgram(prog *Program) {
	s.analyzeStatements(prog.Statements)
	s.checkUnused()
}

func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		s.analyzeStmt(stmt)
	}
	s.checkUnreachableCode(stmts)
}

func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt) {
	switch st := stmt.(type) {
	case *FnDecl:
		s.analyzeStatements(st.Body)
	case *BlockStmt:
		s.analyzeStatements(st.Statements)
	case *ForStmt:
		if st.Body != nil {
			s.analyzeStatements(st.Body.Statements)
		}
	case *ImportStmt:
		s.warnAt(st.SpanVal.Start, "import of '%s' from '%s' binds nothing", st.Name, st.Module)
	}
}

// checkUnreachableCode warns once per statement list about code after a
// return.
func (s *SemanticAnalyzer) checkUnreachableCode(stmts []Stmt) {
	for i, stmt := range stmts {
		if _, isReturn := stmt.(*ReturnStmt); isReturn && i < len(stmts)-1 {
			s.warnAt(stmts[i+1].Span().Start, "unreachable code after return")
			return
		}
	}
}

// checkUnused warns about variables, parameters and functions that are never
// read. Public top-level bindings, the entry binding and names starting with
// '_' are exempt.
func (s *SemanticAnalyzer) checkUnused() {
	read := make(map[*Symbol]bool)
	for _, ref := range s.res.Refs {
		read[ref.Symbol] = true
	}

	exported := make(map[*Symbol]bool)
	for node, sym := range s.res.Decls {
		switch d := node.(type) {
		case *LetStmt:
			exported[sym] = d.Public || (sym.Unit == 0 && d.Name == s.entry)
		case *FnDecl:
			exported[sym] = d.Public
		}
	}

	for _, sym := range s.res.Symbols {
		if sym.Kind == SymStruct || read[sym] || exported[sym] || strings.HasPrefix(sym.Name, "_") {
			continue
		}
		s.warnAt(sym.Pos, "%s '%s' is never used", sym.Kind, sym.Name)
	}
}

// Analyze runs semantic analysis on a checked program and returns its
// warnings.
func Analyze(prog *Program, res *Resolution, opts Options) []Warning {
	analyzer := NewSemanticAnalyzer(res, opts.entry())
	analyzer.AnalyzeProgram(prog)
	return analyzer.Warnings()
}
