package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runMia runs the CLI with a private compile cache.
func runMia(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("MIA_CACHE", filepath.Join(t.TempDir(), "images.db"))
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Programs(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		code     int
		stdout   string
		stderrRe string
	}{
		{
			name:   "scenario A",
			source: "struct Post { name: String, opt: Number? }\npub let main = Post { opt: 41.82, name: 'Some name' };",
			stdout: `{"name":"Some name","opt":41.82}` + "\n",
		},
		{
			name:     "scenario B",
			source:   "pub let main = ['tag 1', 2];",
			code:     231,
			stderrRe: "Literal array can only have a single type\n",
		},
		{
			name:     "unresolved",
			source:   "pub let main = missing;",
			code:     12,
			stderrRe: "prog.m:1: Variable 'missing' not found\n",
		},
		{
			name:     "runtime error",
			source:   "fn add(a, b) { return a + b; }\npub let main = add(1, 'x');",
			code:     70,
			stderrRe: "runtime error: ",
		},
		{
			name:   "no entry prints nothing",
			source: "let x = 1;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "prog.m", tt.source)
			code, stdout, stderr := runMia(t, "", path)
			if code != tt.code {
				t.Fatalf("exit = %d, want %d (stderr %q)", code, tt.code, stderr)
			}
			if stdout != tt.stdout {
				t.Errorf("stdout = %q, want %q", stdout, tt.stdout)
			}
			if !strings.Contains(stderr, tt.stderrRe) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.stderrRe)
			}
		})
	}
}

func TestRun_Check(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.m", "let unused = 1;\npub let main = 2;")
	code, stdout, stderr := runMia(t, "", "-check", path)
	if code != 0 {
		t.Fatalf("exit = %d, stderr %q", code, stderr)
	}
	if stdout != "" {
		t.Errorf("-check should not run the program, stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "variable 'unused' is never used") {
		t.Errorf("stderr = %q, want an unused warning", stderr)
	}
}

func TestRun_Disasm(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.m", "pub let main = 1 + 2;")
	code, stdout, _ := runMia(t, "", "-disasm", path)
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stdout, "ADD") || !strings.Contains(stdout, "RETURN") {
		t.Errorf("listing = %q", stdout)
	}
}

func TestRun_ImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "prog.m", "let k = 10;\nfn add(n): Number { return n + k; }\npub let main = [add(1), add(2)];")
	img := filepath.Join(dir, "prog.miac")

	if code, _, stderr := runMia(t, "", "-o", img, src); code != 0 {
		t.Fatalf("compile exit = %d, stderr %q", code, stderr)
	}
	code, stdout, stderr := runMia(t, "", img)
	if code != 0 {
		t.Fatalf("image exit = %d, stderr %q", code, stderr)
	}
	if stdout != "[11,12]\n" {
		t.Errorf("stdout = %q, want [11,12]", stdout)
	}
}

func TestRun_BadImage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.miac", "not an image")
	code, _, stderr := runMia(t, "", path)
	if code != 1 || !strings.Contains(stderr, "bad.miac") {
		t.Errorf("exit = %d, stderr = %q", code, stderr)
	}
}

func TestRun_ManifestEntryAndCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mia.toml", "[project]\nname = \"demo\"\nentry = \"answer\"\n")
	path := writeFile(t, dir, "prog.m", "pub let answer = 6 * 7;")

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		if code := run([]string{path}, strings.NewReader(""), &stdout, &stderr); code != 0 {
			t.Fatalf("run %d: exit = %d, stderr %q", i, code, stderr.String())
		}
		if stdout.String() != "42\n" {
			t.Errorf("run %d: stdout = %q, want 42", i, stdout.String())
		}
	}

	if _, err := os.Stat(filepath.Join(dir, ".mia", "cache.db")); err != nil {
		t.Errorf("project cache not created: %v", err)
	}
}

func TestRun_EntryFlagOverridesManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mia.toml", "[project]\nentry = \"answer\"\n")
	path := writeFile(t, dir, "prog.m", "pub let answer = 1;\npub let other = 2;")

	code, stdout, stderr := runMia(t, "", "-no-cache", "-entry", "other", path)
	if code != 0 {
		t.Fatalf("exit = %d, stderr %q", code, stderr)
	}
	if stdout != "2\n" {
		t.Errorf("stdout = %q, want 2", stdout)
	}
}

func TestRun_InvalidManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mia.toml", "[run]\nmax-frames = -1\n")
	path := writeFile(t, dir, "prog.m", "pub let main = 1;")

	code, _, stderr := runMia(t, "", path)
	if code != 1 || !strings.Contains(stderr, "mia.toml") {
		t.Errorf("exit = %d, stderr = %q", code, stderr)
	}
}

func TestRun_BadFlag(t *testing.T) {
	code, _, _ := runMia(t, "", "-no-such-flag")
	if code != 2 {
		t.Errorf("exit = %d, want 2", code)
	}
}

func TestCacheCommand(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "images.db")
	t.Setenv("MIA_CACHE", cache)
	path := writeFile(t, t.TempDir(), "prog.m", "pub let main = 1;")

	var out, errOut bytes.Buffer
	for i := 0; i < 2; i++ {
		if code := run([]string{path}, strings.NewReader(""), &out, &errOut); code != 0 {
			t.Fatalf("exit = %d, stderr %q", code, errOut.String())
		}
	}

	out.Reset()
	if code := run([]string{"cache", "stats"}, nil, &out, &errOut); code != 0 {
		t.Fatalf("cache stats exit = %d, stderr %q", code, errOut.String())
	}
	if !strings.Contains(out.String(), "1 images") || !strings.Contains(out.String(), "1 hits") {
		t.Errorf("stats = %q", out.String())
	}

	out.Reset()
	if code := run([]string{"cache", "clear"}, nil, &out, &errOut); code != 0 {
		t.Fatalf("cache clear exit = %d", code)
	}
	if out.String() != "removed 1 images\n" {
		t.Errorf("clear = %q", out.String())
	}

	if code := run([]string{"cache", "bogus"}, nil, &out, &errOut); code != 2 {
		t.Errorf("unknown cache command exit = %d, want 2", code)
	}
}

func TestREPL(t *testing.T) {
	input := strings.Join([]string{
		"let a = 2;",
		"fn twice(n): Number {",
		"  return n * 2;",
		"}",
		"twice(a) + 1",
		"",
		"a + 'x';",
		":defs",
		"exit",
	}, "\n")

	code, stdout, _ := runMia(t, input, "-i")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	for _, want := range []string{
		"5\n",
		"<repl>:1: Operator '+' cannot be applied to 'Number' and 'String'",
		"let a = 2;\nfn twice(n): Number {",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("REPL output missing %q:\n%s", want, stdout)
		}
	}
}
