package compiler

import (
	"strings"
	"testing"
)

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
		line int
	}{
		{"undefined variable", "int main() {\n  return y;\n}", "undefined variable y", 2},
		{"duplicate parameter", "int f(int x, int x) { return x; }\nint main() { return 0; }", "duplicate parameter definition", 1},
		{"duplicate local", "int main() {\n  int a;\n  int a;\n  return 0;\n}", "duplicate local definition", 3},
		{"duplicate global", "int x;\nint x;\nint main() { return 0; }", "duplicate global definition", 2},
		{"global named like a syscall", "int printf;\nint main() { return 0; }", "duplicate global definition", 1},
		{"main missing", "int x;\n", "main() not defined", 2},
		{"main declared as variable", "int main;", "main() not defined", 1},
		{"bad global", "int 5;", "bad global declaration", 1},
		{"bad parameter", "int f(int 1) { return 0; }", "bad parameter declaration", 1},
		{"bad function definition", "int f() return 0;", "bad function definition", 1},
		{"bad local", "int main() { int 3; return 0; }", "bad local declaration", 1},
		{"bad enum identifier", "enum { 1 };", "bad enum identifier", 1},
		{"bad enum initializer", "enum { A = B };", "bad enum initializer", 1},
		{"assign to rvalue", "int main() { 5 = 3; return 0; }", "bad lvalue in assignment", 1},
		{"pre-increment rvalue", "int main() { ++5; return 0; }", "bad lvalue in pre-increment", 1},
		{"post-increment rvalue", "int main() { 5++; return 0; }", "bad lvalue in post-increment", 1},
		{"address of rvalue", "int main() { int *p; p = &5; return 0; }", "bad address-of", 1},
		{"dereference int", "int main() { int x; return *x; }", "bad dereference", 1},
		{"subscript int", "int main() { int x; return x[1]; }", "pointer type expected", 1},
		{"call undefined function", "int main() { return g(); }", "bad function call", 1},
		{"call variable", "int v; int main() { return v(); }", "bad function call", 1},
		{"missing semicolon", "int main() { return 0 }", "semicolon expected", 1},
		{"missing close paren", "int main() { return (1 + 2; }", "close paren expected", 1},
		{"missing close bracket", "int main() { char *s; s = \"a\"; return s[0; }", "close bracket expected", 1},
		{"conditional without colon", "int main() { return 1 ? 2; }", "conditional missing colon", 1},
		{"if without paren", "int main() { if 1 return 0; }", "open paren expected", 1},
		{"while without close paren", "int main() { while (1 return 0; }", "close paren expected", 1},
		{"eof in expression", "int main() { return", "unexpected eof in expression", 1},
		{"bad expression", "int main() { return ); }", "bad expression", 1},
		{"sizeof without paren", "int main() { return sizeof int; }", "open paren expected in sizeof", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileError(t, tt.src)
			if err.Msg != tt.msg {
				t.Errorf("expected message %q, got %q", tt.msg, err.Msg)
			}
			if err.Line != tt.line {
				t.Errorf("expected line %d, got %d", tt.line, err.Line)
			}
			if !strings.HasPrefix(err.Error(), "line ") {
				t.Errorf("unexpected error text %q", err.Error())
			}
		})
	}
}

func TestCompileErrors_StopAtFirst(t *testing.T) {
	err := compileError(t, "int main() {\n  return a;\n  return b;\n}")
	if err.Msg != "undefined variable a" {
		t.Errorf("expected first error only, got %q", err.Msg)
	}
}
