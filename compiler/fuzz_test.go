package compiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sadraskol/mia/vm"
)

// ---------------------------------------------------------------------------
// FuzzLexer: ensure the lexer never panics on arbitrary input.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	// Seed corpus: valid mia snippets covering diverse token types
	seeds := []string{
		// Punctuation
		`( ) [ ] { } < > = + - * / . ; , : ?`,
		// Numbers
		`42`, `0`, `3.14`, `41.82`, `1.`, `.5`,
		// Strings
		`'hello'`, `''`, `'multi
line'`,
		// Identifiers and keywords
		`foo`, `Foo`, `foo_bar`, `let`, `pub`, `struct`, `fn`, `return`, `import`, `from`, `for`, `in`, `nil`,
		// Comments
		"# comment\nlet a = 1;", `let a = 1; # trailing`,
		// Programs
		"pub let main = ['tag 1', 'tag 2'];",
		"struct P { a: Number?, tags: Array<String> }",
		// Edge cases
		`'unterminated`, `#`, `@`, `$`, `\`, `"double"`,
		// Unicode
		`'こんにちは'`, `café`,
		// Empty and whitespace
		``, `   `, "\t\n\r",
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		lexer := NewLexer(data)
		for i := 0; i < len(data)+2; i++ {
			tok := lexer.NextToken()
			if tok.Type == TokenEOF || tok.Type == TokenError {
				return
			}
			if tok.End.Offset < tok.Pos.Offset {
				t.Fatalf("token %v ends before it starts", tok)
			}
		}
		t.Fatalf("lexer did not reach EOF after %d tokens on %q", len(data)+2, data)
	})
}

// ---------------------------------------------------------------------------
// FuzzParser: ensure the parser never panics on arbitrary input.
// Parse errors are acceptable; panics are not.
// ---------------------------------------------------------------------------

func FuzzParser(f *testing.F) {
	seeds := []string{
		`let a = 1;`, `let a;`, `pub let main = a + b * c;`,
		`let a = (1 + 2) * 3;`, `let a = [1, 2, 3,];`,
		`let p = P { a: 1, b: 'x' };`,
		`struct P { a: Number, b: Array<String?>? }`,
		`fn f(a, b): Number { return a - b; }`,
		`fn f() { fn g() { return 1; } return g(); }`,
		`{ let x = 1; }`, `for x in xs { x; }`, `import x from 'y';`,
		`f(1)(2);`, `pub struct S { }`,
		// Edge cases that might trip up the parser
		``, `(`, `)`, `[`, `]`, `{`, `}`, `;`, `pub`, `pub 1;`,
		`let`, `let =`, `fn`, `fn f(`, `struct`, `struct P {`,
		`let a = P {`, `let a = [`, `let a = 1 +`, `Array<`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		prog, err := Parse("fuzz.m", data)
		if err != nil {
			var te *TypeError
			if !errors.As(err, &te) || te.Kind != KindSyntax {
				t.Fatalf("parse error %v is not a syntax error", err)
			}
			return
		}
		if prog == nil {
			t.Fatal("nil program without error")
		}
	})
}

// ---------------------------------------------------------------------------
// FuzzCompileAndRun: anything that builds must run without panicking.
// Runtime errors are acceptable.
// ---------------------------------------------------------------------------

func FuzzCompileAndRun(f *testing.F) {
	seeds := []string{
		`pub let main = 42;`,
		`pub let main = 'a' + 'b';`,
		`pub let main = nil;`,
		`pub let main = [1, 2, 3];`,
		`struct P { a: Number } pub let main = P { a: 1 };`,
		`fn f(a, b): Number { return a - b; } pub let main = f(10, 4);`,
		`let g = 1; fn f(): Number { return g; } pub let main = f();`,
		`fn f(x) { return x(x); } pub let main = f(f);`,
		`fn add(a, b) { return a + b; } pub let main = add(1, 'x');`,
		`pub let main = 1 / 0;`,
		``,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		result, err := Build("fuzz.m", data, Options{})
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = vm.Execute(result.Chunk, vm.WithContext(ctx), vm.WithMaxFrames(64))
	})
}

// ---------------------------------------------------------------------------
// FuzzSemantic: the analyzer must handle any program that checks.
// ---------------------------------------------------------------------------

func FuzzSemantic(f *testing.F) {
	seeds := []string{
		`let unused = 1;`,
		`fn f(a) { return 1; 2; }`,
		`import x from 'y';`,
		`let x = 1; { let x = 2; }`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		result, err := CheckSource("fuzz.m", data, Options{})
		if err != nil {
			return
		}
		for _, w := range Analyze(result.Program, result.Resolution, Options{}) {
			if w.Pos.Line < 1 {
				t.Errorf("warning without a position: %v", w)
			}
		}
	})
}
