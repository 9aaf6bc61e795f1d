package vm_test

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"c4vm/pkg/asm"
	"c4vm/pkg/vm"
)

func runAsm(t *testing.T, src string, cfg vm.Config) (int64, string, error) {
	t.Helper()
	prog, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble failed: %v\n%s", err, src)
	}
	var out bytes.Buffer
	cfg.Output = &out
	m, err := vm.New(prog, cfg)
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	code, err := m.Run(nil)
	return code, out.String(), err
}

func TestVM_Arithmetic(t *testing.T) {
	tests := []struct {
		op   string
		l, r int64
		want int64
	}{
		{"ADD", 2, 3, 5},
		{"SUB", 2, 3, -1},
		{"MUL", -4, 3, -12},
		{"DIV", 7, 2, 3},
		{"DIV", -7, 2, -3},
		{"MOD", 7, 3, 1},
		{"MOD", -7, 3, -1},
		{"OR", 12, 3, 15},
		{"XOR", 12, 10, 6},
		{"AND", 12, 10, 8},
		{"SHL", 1, 10, 1024},
		{"SHR", -16, 2, -4},
		{"EQ", 4, 4, 1},
		{"NE", 4, 4, 0},
		{"LT", -1, 0, 1},
		{"GT", -1, 0, 0},
		{"LE", 3, 3, 1},
		{"GE", 2, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			src := "main: ENT 0\n" +
				"IMM " + strconv.FormatInt(tt.l, 10) + "\nPSH\n" +
				"IMM " + strconv.FormatInt(tt.r, 10) + "\n" +
				tt.op + "\nLEV\n"
			code, _, err := runAsm(t, src, vm.Config{})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if code != tt.want {
				t.Errorf("%d %s %d = %d, want %d", tt.l, tt.op, tt.r, code, tt.want)
			}
		})
	}
}

func TestVM_CallAndFrame(t *testing.T) {
	// add(a, b) { int t; t = a + b; return t; }  main() { return add(40, 2); }
	src := `
add:  ENT 1
      LEA -1
      PSH
      LEA 3
      LI
      PSH
      LEA 2
      LI
      ADD
      SI
      LEA -1
      LI
      LEV
main: ENT 0
      IMM 40
      PSH
      IMM 2
      PSH
      JSR add
      ADJ 2
      LEV
`
	code, out, err := runAsm(t, src, vm.Config{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 42 {
		t.Errorf("expected 42, got %d", code)
	}
	if !strings.HasPrefix(out, "exit(42) cycle = ") {
		t.Errorf("unexpected exit banner %q", out)
	}
}

func TestVM_ByteLoadsAndStores(t *testing.T) {
	src := `
main: ENT 0
      IMM buf
      PSH
      IMM 511
      SC
      IMM buf
      LC
      LEV
buf:  .WORD 0
`
	code, _, err := runAsm(t, src, vm.Config{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != -1 {
		t.Errorf("expected sign-extended -1, got %d", code)
	}
}

func TestVM_Printf(t *testing.T) {
	src := `
main: ENT 0
      IMM fmt
      PSH
      IMM 42
      PSH
      IMM who
      PSH
      PRTF
      ADJ 3
      LEV
fmt:  .STRING "%d %s\n"
who:  .STRING "world"
`
	code, out, err := runAsm(t, src, vm.Config{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.HasPrefix(out, "42 world\n") {
		t.Errorf("unexpected output %q", out)
	}
	if code != int64(len("42 world\n")) {
		t.Errorf("printf should return the byte count, got %d", code)
	}
}

func TestVM_Trace(t *testing.T) {
	var trace bytes.Buffer
	_, _, err := runAsm(t, "main: ENT 0\nIMM 3\nLEV", vm.Config{Trace: &trace})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := "1> ENT  0\n2> IMM  3\n3> LEV \n4> PSH \n5> EXIT\n"
	if trace.String() != want {
		t.Errorf("trace mismatch\nwant:\n%s\ngot:\n%s", want, trace.String())
	}
}

func TestVM_RuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"unknown instruction", "main: ENT 0\n.ENTRY main", "unknown instruction = "},
		{"division by zero", "main: IMM 1\nPSH\nIMM 0\nDIV\nLEV", "division by zero"},
		{"modulo by zero", "main: IMM 1\nPSH\nIMM 0\nMOD\nLEV", "modulo by zero"},
		{"null load", "main: IMM 0\nLI\nLEV", "memory fault"},
		{"wild store", "main: IMM -64\nPSH\nIMM 1\nSC\nLEV", "memory fault"},
		{"runaway recursion", "main: ENT 0\nJSR main", "stack overflow"},
		{"jump out of code", "main: JMP 1000", "pc out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.src
			prog, err := asm.Assemble(src)
			if err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}
			if tt.name == "unknown instruction" {
				// replace the body with a word that is no opcode
				prog.Code = append(prog.Code[:2], 77)
				prog.Lines = prog.Lines[:3]
			}
			m, err := vm.New(prog, vm.Config{Output: io.Discard, StackSize: 4096})
			if err != nil {
				t.Fatalf("vm.New failed: %v", err)
			}
			code, err := m.Run(nil)
			var rerr *vm.RuntimeError
			if !errors.As(err, &rerr) {
				t.Fatalf("expected *vm.RuntimeError, got %v", err)
			}
			if !strings.Contains(rerr.Error(), tt.msg) {
				t.Errorf("expected %q in %q", tt.msg, rerr.Error())
			}
			if code != -1 || m.ExitCode() != -1 || !m.Halted() {
				t.Errorf("expected halted with -1, got %d", code)
			}
			if err := m.Step(); !errors.Is(err, vm.ErrHalted) {
				t.Errorf("Step after failure = %v, want ErrHalted", err)
			}
		})
	}
}

func TestVM_ArgvLayout(t *testing.T) {
	// return argv[1][0] + argc
	src := `
main: ENT 0
      LEA 2
      LI
      PSH
      IMM 8
      ADD
      LI
      LC
      PSH
      LEA 3
      LI
      ADD
      LEV
`
	prog, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	m, err := vm.New(prog, vm.Config{Output: io.Discard})
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	code, err := m.Run([]string{"prog.c", "A"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 'A'+2 {
		t.Errorf("expected %d, got %d", 'A'+2, code)
	}
}

type mapFS map[string]string

func (fs mapFS) Open(name string, flags int) (io.ReadCloser, error) {
	s, ok := fs[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

func TestVM_FileSyscalls(t *testing.T) {
	// fd = open("f", 0); n = read(fd, buf, 16); close(fd); return n * 1000 + buf[0]
	src := `
main: ENT 1
      LEA -1
      PSH
      IMM path
      PSH
      IMM 0
      PSH
      OPEN
      ADJ 2
      SI
      LEA -1
      LI
      PSH
      IMM buf
      PSH
      IMM 16
      PSH
      READ
      ADJ 3
      PSH
      IMM 1000
      MUL
      PSH
      LEA -1
      LI
      PSH
      CLOS
      ADJ 1
      IMM buf
      LC
      ADD
      LEV
path: .STRING "f"
buf:  .STRING "................"
`
	code, _, err := runAsm(t, src, vm.Config{FS: mapFS{"f": "xyz"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 3000+'x' {
		t.Errorf("expected %d, got %d", 3000+'x', code)
	}
}

func TestVM_OpenMissingFile(t *testing.T) {
	src := `
main: ENT 0
      IMM path
      PSH
      IMM 0
      PSH
      OPEN
      ADJ 2
      LEV
path: .STRING "missing"
`
	code, _, err := runAsm(t, src, vm.Config{FS: mapFS{}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != -1 {
		t.Errorf("expected -1, got %d", code)
	}
}

func TestVM_Stdin(t *testing.T) {
	src := `
main: ENT 0
      IMM 0
      PSH
      IMM buf
      PSH
      IMM 4
      PSH
      READ
      ADJ 3
      IMM buf
      LC
      LEV
buf:  .WORD 0
`
	code, _, err := runAsm(t, src, vm.Config{Stdin: strings.NewReader("Q")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 'Q' {
		t.Errorf("expected %d, got %d", 'Q', code)
	}
}

func TestVM_StepByStep(t *testing.T) {
	prog, err := asm.Assemble("main: ENT 0\nIMM 9\nLEV")
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	m, err := vm.New(prog, vm.Config{Output: io.Discard})
	if err != nil {
		t.Fatalf("vm.New failed: %v", err)
	}
	if err := m.Step(); err == nil {
		t.Fatal("Step before Start should fail")
	}
	if err := m.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(nil); err == nil {
		t.Fatal("second Start should fail")
	}
	steps := 0
	for !m.Halted() {
		if err := m.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		steps++
	}
	if steps != 5 || m.Cycles() != 5 || m.ExitCode() != 9 {
		t.Errorf("steps %d cycles %d exit %d", steps, m.Cycles(), m.ExitCode())
	}
}
