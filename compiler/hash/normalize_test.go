package hash

import (
	"testing"

	"github.com/sadraskol/mia/compiler"
)

func parse(t *testing.T, src string) *compiler.Program {
	t.Helper()
	prog, err := compiler.Parse("test.m", src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog
}

func TestNormalize_GroupingUnwrapped(t *testing.T) {
	prog := NormalizeProgram(parse(t, "let a = ((1) + (2));"))
	let := prog.Statements[0].(*HLet)
	bin, ok := let.Value.(*HBinary)
	if !ok {
		t.Fatalf("value: got %T, want *HBinary", let.Value)
	}
	if _, ok := bin.Left.(*HNumberLiteral); !ok {
		t.Errorf("left: got %T", bin.Left)
	}
	if bin.Op != '+' {
		t.Errorf("op: got %q", bin.Op)
	}
}

func TestNormalize_StructFieldsSorted(t *testing.T) {
	prog := NormalizeProgram(parse(t, "let p = P { c: 1, a: 2, b: 3 };"))
	lit := prog.Statements[0].(*HLet).Value.(*HStructLiteral)
	var names string
	for _, f := range lit.Fields {
		names += f.Name
	}
	if names != "abc" {
		t.Errorf("field order: got %s, want abc", names)
	}
}

func TestNormalize_Declarations(t *testing.T) {
	prog := NormalizeProgram(parse(t, `
pub struct Post { tags: Array<String>? }
fn f(a, b): Number { return a; }
import x from 'mod';
for t in [] { t; }
`))
	if len(prog.Statements) != 4 {
		t.Fatalf("statements: got %d, want 4", len(prog.Statements))
	}

	st := prog.Statements[0].(*HStruct)
	typ := st.Fields[0].Type
	if !st.Public || typ.Name != "Array" || !typ.Nullable || typ.Param == nil || typ.Param.Name != "String" {
		t.Errorf("struct: %+v, field type %+v", st, typ)
	}

	fn := prog.Statements[1].(*HFnDecl)
	if len(fn.Params) != 2 || fn.ReturnType == nil || fn.ReturnType.Name != "Number" || len(fn.Body) != 1 {
		t.Errorf("fn: %+v", fn)
	}

	if imp := prog.Statements[2].(*HImport); imp.Module != "mod" {
		t.Errorf("import: %+v", imp)
	}
	if loop := prog.Statements[3].(*HFor); loop.Var != "t" || len(loop.Body) != 1 {
		t.Errorf("for: %+v", loop)
	}
}

func TestHashProgram_LayoutInsensitive(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"whitespace", "let a = 1 + 2;", "let   a =\n  1 +\n  2;"},
		{"comments", "let a = 1;", "# leading\nlet a = 1; # trailing"},
		{"parentheses", "let a = 1 * 2;", "let a = ((1) * (2));"},
		{"field order", "let p = P { a: 1, b: 2 };", "let p = P { b: 2, a: 1 };"},
		{"trailing comma", "let a = [1, 2];", "let a = [1, 2,];"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha := HashProgram(parse(t, tt.a))
			hb := HashProgram(parse(t, tt.b))
			if ha != hb {
				t.Errorf("hashes differ: %s vs %s", ha.Short(), hb.Short())
			}
		})
	}
}

func TestHashProgram_SemanticsSensitive(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"literal", "let a = 1;", "let a = 2;"},
		{"name", "let a = 1;", "let b = 1;"},
		{"visibility", "let main = 1;", "pub let main = 1;"},
		{"operator", "let a = 1 + 2;", "let a = 1 - 2;"},
		{"associativity", "let a = 1 - 2 - 3;", "let a = 1 - (2 - 3);"},
		{"array order", "let a = [1, 2];", "let a = [2, 1];"},
		{"return type", "fn f() { }", "fn f(): Number { }"},
		{"nullable", "struct P { a: Number }", "struct P { a: Number? }"},
		{"uninitialized", "let a;", "let a = nil;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if HashProgram(parse(t, tt.a)) == HashProgram(parse(t, tt.b)) {
				t.Errorf("%q and %q hash the same", tt.a, tt.b)
			}
		})
	}
}

func TestSum_String(t *testing.T) {
	sum := HashProgram(parse(t, "pub let main = 1;"))
	if len(sum.String()) != 64 {
		t.Errorf("String(): got %d hex digits", len(sum.String()))
	}
	if sum.Short() != sum.String()[:12] {
		t.Errorf("Short(): got %s", sum.Short())
	}
}
