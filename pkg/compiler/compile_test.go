package compiler

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"c4vm/pkg/vm"
)

// runProgram compiles and runs src, returning the exit code and everything
// the program printed, with the exit banner removed.
func runProgram(t *testing.T, src string, args ...string) (int64, string) {
	t.Helper()
	prog, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v\nSource:\n%s", err, src)
	}
	var out bytes.Buffer
	m, err := vm.New(prog, vm.Config{Output: &out})
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	code, err := m.Run(append([]string{"test.c"}, args...))
	if err != nil {
		t.Fatalf("Run failed: %v\nOutput:\n%s", err, out.String())
	}
	printed := out.String()
	if i := strings.LastIndex(printed, "exit("); i >= 0 {
		printed = printed[:i]
	}
	return code, printed
}

// compileError compiles src and returns the compile error it must produce.
func compileError(t *testing.T, src string) *Error {
	t.Helper()
	_, err := Compile(src, Options{})
	if err == nil {
		t.Fatalf("expected compile error for:\n%s", src)
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *compiler.Error, got %T: %v", err, err)
	}
	return cerr
}

func TestCompile_ReturnValue(t *testing.T) {
	code, _ := runProgram(t, "int main() { return 42; }")
	if code != 42 {
		t.Errorf("expected exit code 42, got %d", code)
	}
}

func TestCompile_ExitBanner(t *testing.T) {
	prog, err := Compile("int main() { return 7; }", Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	var out bytes.Buffer
	m, err := vm.New(prog, vm.Config{Output: &out})
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	if _, err := m.Run(nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// ENT, IMM, LEV, then the PSH, EXIT epilogue
	want := "exit(7) cycle = 5\n"
	if out.String() != want {
		t.Errorf("expected %q, got %q", want, out.String())
	}
}

func TestCompile_EntryAndEpilogue(t *testing.T) {
	prog, err := Compile("int helper() { return 1; }\nint main() { return helper(); }", Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if vm.Opcode(prog.Code[0]) != vm.PSH || vm.Opcode(prog.Code[1]) != vm.EXIT {
		t.Errorf("expected PSH, EXIT epilogue, got %v", prog.Code[:2])
	}
	if vm.Opcode(prog.Code[2]) != vm.ENT {
		t.Errorf("expected first function at index 2, got %v", vm.Opcode(prog.Code[2]))
	}
	if prog.Entry <= 2 || vm.Opcode(prog.Code[prog.Entry]) != vm.ENT {
		t.Errorf("entry %d does not point at main's ENT", prog.Entry)
	}
	if err := prog.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	src := `
char *msg;
int count;
int main() {
	msg = "hello";
	count = 3;
	while (count) { printf("%s\n", msg); count--; }
	return 0;
}
`
	var images [][]byte
	for i := 0; i < 2; i++ {
		prog, err := Compile(src, Options{})
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		img, err := prog.MarshalImage()
		if err != nil {
			t.Fatalf("MarshalImage failed: %v", err)
		}
		images = append(images, img)
	}
	if !bytes.Equal(images[0], images[1]) {
		t.Error("identical sources produced different images")
	}
}

func TestCompile_ImageRoundTripRuns(t *testing.T) {
	prog, err := Compile(`int main() { printf("%d\n", 6 * 7); return 1; }`, Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	img, err := prog.MarshalImage()
	if err != nil {
		t.Fatalf("MarshalImage failed: %v", err)
	}
	loaded, err := vm.UnmarshalImage(img)
	if err != nil {
		t.Fatalf("UnmarshalImage failed: %v", err)
	}
	var out bytes.Buffer
	m, err := vm.New(loaded, vm.Config{Output: &out})
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	code, err := m.Run(nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 1 || !strings.HasPrefix(out.String(), "42\n") {
		t.Errorf("unexpected result %d, %q", code, out.String())
	}
}

func TestCompile_ScopeRestoredAfterFunction(t *testing.T) {
	src := `
int x;
int f(int x) { int y; y = x; return y; }
int main() { x = 5; return f(3) * 10 + x; }
`
	c := NewCompiler(src, Options{})
	prog, err := c.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	x, ok := c.Symbols().Lookup("x")
	if !ok || x.Class != ClassGlobal || x.Type != TypeInt {
		t.Errorf("expected x restored to int global, got %+v", x)
	}
	y, _ := c.Symbols().Lookup("y")
	if y.Class != ClassNone {
		t.Errorf("expected local y to be unbound after f, got %v", y.Class)
	}

	var out bytes.Buffer
	m, err := vm.New(prog, vm.Config{Output: &out})
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	code, err := m.Run(nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 35 {
		t.Errorf("expected 35, got %d", code)
	}
}

func TestCompile_Listing(t *testing.T) {
	src := "int main() {\n  return 42;\n}\n"
	var listing bytes.Buffer
	if _, err := Compile(src, Options{Listing: &listing}); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := "1: int main() {\n" +
		"2:   return 42;\n" +
		"    ENT  0\n" +
		"    IMM  42\n" +
		"    LEV \n" +
		"3: }\n" +
		"    LEV \n"
	if listing.String() != want {
		t.Errorf("listing mismatch\nwant:\n%s\ngot:\n%s", want, listing.String())
	}
}

func TestCompile_DataLimit(t *testing.T) {
	src := `int main() { printf("this string is far too long"); return 0; }`
	_, err := Compile(src, Options{MaxData: 16})
	var cerr *Error
	if !errors.As(err, &cerr) || !strings.Contains(cerr.Msg, "data segment overflow") {
		t.Fatalf("expected data segment overflow, got %v", err)
	}
	if _, err := Compile(`int main() { return 0; }`, Options{MaxData: 16}); err != nil {
		t.Fatalf("small program should fit: %v", err)
	}
}
