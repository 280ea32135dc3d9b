package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sadraskol/mia/format"
	"github.com/sadraskol/mia/vm"
)

// Integration tests: build and run mia programs end to end.

func run(t *testing.T, source string) (string, error) {
	t.Helper()
	result, err := Build("test.m", source, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	value, err := vm.Execute(result.Chunk)
	if err != nil {
		return "", err
	}
	return format.JSON(value), nil
}

func TestIntegrationGolden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.m"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no testdata programs")
	}

	for _, file := range files {
		base := strings.TrimSuffix(file, ".m")
		t.Run(filepath.Base(base), func(t *testing.T) {
			source, err := os.ReadFile(file)
			if err != nil {
				t.Fatal(err)
			}
			result, buildErr := Build(file, string(source), Options{})

			if want, err := os.ReadFile(base + ".err"); err == nil {
				if buildErr == nil {
					t.Fatalf("built without error, want %q", want)
				}
				if got := buildErr.Error() + "\n"; got != string(want) {
					t.Errorf("error = %q, want %q", got, want)
				}
				return
			}
			if buildErr != nil {
				t.Fatalf("Build: %v", buildErr)
			}

			want, err := os.ReadFile(base + ".out")
			if err != nil {
				t.Fatal(err)
			}
			value, err := vm.Execute(result.Chunk)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if got := format.JSON(value) + "\n"; got != string(want) {
				t.Errorf("output:\n got  %s want %s", got, want)
			}
		})
	}
}

func TestIntegrationScenarioBExitCode(t *testing.T) {
	_, err := Build("b.m", "pub let main = ['tag 1', 2];", Options{})
	if ExitCode(err) != 231 {
		t.Errorf("exit code = %d, want 231", ExitCode(err))
	}
}

func TestIntegrationPrograms(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"number", "pub let main = 42;", "42"},
		{"precedence", "pub let main = 1 + 2 * 3 - 4 / 2;", "5"},
		{"left associative", "pub let main = 10 - 4 - 3;", "3"},
		{"fractional", "pub let main = 41.82;", "41.82"},
		{"division by zero", "pub let main = [1 / 0, (0 - 1) / 0];", "[inf,-inf]"},
		{"concat", "pub let main = 'a' + 'b';", `"ab"`},
		{"nil", "pub let main = nil;", "null"},
		{"no entry", "let main = 1;", "null"},
		{"empty array", "pub let main = [];", "[]"},
		{"variables", "let a = 2;\nlet b = a * a;\npub let main = [a, b];", "[2,4]"},
		{"call binds in order", "fn sub(a, b): Number { return a - b; }\npub let main = sub(10, 4);", "6"},
		{"unit function", "fn f() { 1; }\npub let main = f();", "null"},
		{"unannotated return", "fn f() { return 'done'; }\npub let main = f();", `"done"`},
		{"function value", "fn f() { }\npub let main = f;", "<fn f>"},
		{"shadowing", "let x = 1;\n{ let x = 2; }\npub let main = x;", "1"},
		{"shadow in block", "let x = 1;\n{ let x = x + 1; let y = x; }\npub let main = x;", "1"},
		{"capture", "let g = 'hi';\nfn f(): String { return g; }\npub let main = f();", `"hi"`},
		{"capture snapshot", "let g = 1;\nfn f(): Number { return g; }\nlet g = 2;\npub let main = [f(), g];", "[1,2]"},
		{"nested capture", "let a = 3;\nfn outer(): Number {\n  fn inner(): Number { return a * 2; }\n  return inner() + 1;\n}\npub let main = outer();", "7"},
		{"higher order", "fn twice(f, x) { return f(f(x)); }\nfn inc(n): Number { return n + 1; }\npub let main = twice(inc, 5);", "7"},
		{"call of non-function", "fn apply(f) { return f(); }\npub let main = apply(1);", "null"},
		{"struct", "struct P { a: Number, b: String? }\npub let main = P { b: nil, a: 1 };", `{"a":1,"b":null}`},
		{"nested struct", "struct In { v: Number }\nstruct Out { inner: In }\npub let main = Out { inner: In { v: 1 } };", `{"inner":{"v":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.source)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIntegrationGroupingIdempotent(t *testing.T) {
	for _, expr := range []string{"'x'", "1 + 2", "[1, 2]"} {
		plain, err := run(t, "pub let main = "+expr+";")
		if err != nil {
			t.Fatal(err)
		}
		grouped, err := run(t, "pub let main = ((("+expr+")));")
		if err != nil {
			t.Fatal(err)
		}
		if plain != grouped {
			t.Errorf("%s: %s != %s", expr, plain, grouped)
		}
	}
}

func TestIntegrationRuntimeError(t *testing.T) {
	_, err := run(t, "fn add(a, b) { return a + b; }\npub let main = add(1, 'x');")
	var rt *vm.RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("error = %v, want *vm.RuntimeError", err)
	}
	if !errors.Is(err, vm.ErrBadOperand) {
		t.Errorf("error = %v, want ErrBadOperand", err)
	}
	if rt.Chunk != "add" || rt.Line != 1 {
		t.Errorf("error at %s line %d, want add line 1", rt.Chunk, rt.Line)
	}
}

func TestIntegrationRecursionLimit(t *testing.T) {
	// A parameter can hold the function itself.
	source := "fn loop(f) { return f(f); }\npub let main = loop(loop);"
	result, err := Build("test.m", source, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = vm.Execute(result.Chunk, vm.WithMaxFrames(32))
	if !errors.Is(err, vm.ErrFrameOverflow) {
		t.Errorf("error = %v, want ErrFrameOverflow", err)
	}
}
