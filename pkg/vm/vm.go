package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("c4vm.vm")

// Default region sizes.
const (
	DefaultHeapSize  = 1024 * 1024
	DefaultStackSize = 256 * 1024
)

// Config controls how a VM is laid out and wired to the host.
type Config struct {
	HeapSize  int
	StackSize int

	// Output receives printf output and the exit banner. Defaults to os.Stdout.
	Output io.Writer
	// Trace, when set, receives one line per executed instruction.
	Trace io.Writer
	// Stdin, when set, is readable by the program as file descriptor 0.
	Stdin io.Reader
	// FS backs open(). Defaults to the host file system.
	FS FileSystem
}

// RuntimeError is a fatal execution error. Execution cannot continue after it.
type RuntimeError struct {
	Cycle int64
	PC    int
	Line  int
	Msg   string
	Err   error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s! cycle = %d (pc %d, line %d)", e.Msg, e.Cycle, e.PC, e.Line)
	}
	return fmt.Sprintf("%s! cycle = %d (pc %d)", e.Msg, e.Cycle, e.PC)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

var ErrHalted = errors.New("vm halted")

// VM executes a Program. It is single-threaded: Step and Run must not be
// called concurrently.
type VM struct {
	prog  *Program
	mem   *memory
	heap  *heap
	files *fileTable

	out   io.Writer
	trace io.Writer

	a      int64 // accumulator
	pc     int   // index into prog.Code
	ip     int   // index of the instruction being executed
	sp, bp int64 // byte addresses into mem
	cycle  int64

	started  bool
	halted   bool
	exitCode int64
}

// New lays out memory for prog and loads its data segment.
func New(prog *Program, cfg Config) (*VM, error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	if cfg.HeapSize <= 0 {
		cfg.HeapSize = DefaultHeapSize
	}
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultStackSize
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.FS == nil {
		cfg.FS = HostFS{}
	}

	mem := newMemory(prog.Data, cfg.HeapSize, cfg.StackSize)
	v := &VM{
		prog:  prog,
		mem:   mem,
		heap:  newHeap(mem.heapBase, mem.stackBase),
		files: newFileTable(cfg.FS, cfg.Stdin),
		out:   cfg.Output,
		trace: cfg.Trace,
	}
	log.Debugf("loaded program: %d code words, %d data bytes, heap %d, stack %d",
		len(prog.Code), len(prog.Data), cfg.HeapSize, cfg.StackSize)
	return v, nil
}

// Start prepares the entry call: args become argc/argv and the return
// address points at the exit epilogue.
func (v *VM) Start(args []string) error {
	if v.started {
		return errors.New("vm already started")
	}
	v.started = true
	v.sp = v.mem.top()
	v.bp = v.sp

	argv := v.heap.alloc(int64(len(args)+1) * WordSize)
	if argv == 0 && len(args) > 0 {
		return errors.New("no heap space for program arguments")
	}
	for i, arg := range args {
		s := v.heap.alloc(int64(len(arg) + 1))
		if s == 0 {
			return errors.New("no heap space for program arguments")
		}
		buf, _ := v.mem.slice(s, int64(len(arg)+1))
		copy(buf, arg)
		buf[len(arg)] = 0
		_ = v.mem.storeWord(argv+int64(i)*WordSize, s)
	}

	for _, w := range []int64{int64(len(args)), argv, EpilogueAddr} {
		if err := v.push(w); err != nil {
			return err
		}
	}
	v.pc = v.prog.Entry
	return nil
}

// Halted reports whether the program has executed EXIT or failed.
func (v *VM) Halted() bool { return v.halted }

// ExitCode is the value passed to EXIT.
func (v *VM) ExitCode() int64 { return v.exitCode }

// Cycles is the number of instructions executed so far.
func (v *VM) Cycles() int64 { return v.cycle }

// Run starts the program with args and executes it to completion.
func (v *VM) Run(args []string) (int64, error) {
	if !v.started {
		if err := v.Start(args); err != nil {
			return -1, err
		}
	}
	defer v.files.closeAll()
	for !v.halted {
		if err := v.Step(); err != nil {
			return -1, err
		}
	}
	return v.exitCode, nil
}

func (v *VM) fail(msg string, err error) error {
	v.halted = true
	v.exitCode = -1
	return &RuntimeError{Cycle: v.cycle, PC: v.ip, Line: v.prog.Line(v.ip), Msg: msg, Err: err}
}

func (v *VM) memFault(err error) error {
	return v.fail(err.Error(), err)
}

func (v *VM) push(w int64) error {
	if v.sp-WordSize < v.mem.stackBase {
		return v.fail("stack overflow", nil)
	}
	v.sp -= WordSize
	if err := v.mem.storeWord(v.sp, w); err != nil {
		return v.memFault(err)
	}
	return nil
}

func (v *VM) pop() (int64, error) {
	w, err := v.mem.loadWord(v.sp)
	if err != nil {
		return 0, v.memFault(err)
	}
	v.sp += WordSize
	return w, nil
}

// arg reads the i-th word above the stack pointer without popping it.
func (v *VM) arg(i int64) (int64, error) {
	w, err := v.mem.loadWord(v.sp + i*WordSize)
	if err != nil {
		return 0, v.memFault(err)
	}
	return w, nil
}

// Step fetches, decodes and executes a single instruction.
func (v *VM) Step() error {
	if v.halted {
		return ErrHalted
	}
	if !v.started {
		return errors.New("vm not started")
	}
	v.ip = v.pc
	if v.pc < 0 || v.pc >= len(v.prog.Code) {
		return v.fail(fmt.Sprintf("pc out of range = %d", v.pc), nil)
	}

	op := Opcode(v.prog.Code[v.pc])
	v.pc++
	v.cycle++

	if !op.Valid() {
		return v.fail(fmt.Sprintf("unknown instruction = %d", int64(op)), nil)
	}

	var operand int64
	if op.HasOperand() {
		if v.pc >= len(v.prog.Code) {
			return v.fail("missing operand for "+op.String(), nil)
		}
		operand = v.prog.Code[v.pc]
	}
	if v.trace != nil {
		if op.HasOperand() {
			fmt.Fprintf(v.trace, "%d> %.4s %d\n", v.cycle, op.Mnemonic(), operand)
		} else {
			fmt.Fprintf(v.trace, "%d> %.4s\n", v.cycle, op.Mnemonic())
		}
	}
	if op.HasOperand() {
		v.pc++
	}

	switch op {
	case LEA:
		v.a = v.bp + operand*WordSize
	case IMM:
		v.a = operand
	case JMP:
		v.pc = int(operand)
	case JSR:
		if err := v.push(int64(v.pc)); err != nil {
			return err
		}
		v.pc = int(operand)
	case BZ:
		if v.a == 0 {
			v.pc = int(operand)
		}
	case BNZ:
		if v.a != 0 {
			v.pc = int(operand)
		}
	case ENT:
		if err := v.push(v.bp); err != nil {
			return err
		}
		v.bp = v.sp
		if v.sp-operand*WordSize < v.mem.stackBase {
			return v.fail("stack overflow", nil)
		}
		v.sp -= operand * WordSize
	case ADJ:
		v.sp += operand * WordSize
	case LEV:
		v.sp = v.bp
		bp, err := v.pop()
		if err != nil {
			return err
		}
		ret, err := v.pop()
		if err != nil {
			return err
		}
		v.bp, v.pc = bp, int(ret)

	case LI:
		w, err := v.mem.loadWord(v.a)
		if err != nil {
			return v.memFault(err)
		}
		v.a = w
	case LC:
		b, err := v.mem.loadByte(v.a)
		if err != nil {
			return v.memFault(err)
		}
		v.a = int64(int8(b))
	case SI:
		addr, err := v.pop()
		if err != nil {
			return err
		}
		if err := v.mem.storeWord(addr, v.a); err != nil {
			return v.memFault(err)
		}
	case SC:
		addr, err := v.pop()
		if err != nil {
			return err
		}
		if err := v.mem.storeByte(addr, byte(v.a)); err != nil {
			return v.memFault(err)
		}
		v.a = int64(int8(byte(v.a)))
	case PSH:
		return v.push(v.a)

	case OR, XOR, AND, EQ, NE, LT, GT, LE, GE, SHL, SHR, ADD, SUB, MUL, DIV, MOD:
		l, err := v.pop()
		if err != nil {
			return err
		}
		return v.arith(op, l)

	default:
		return v.syscall(op)
	}
	return nil
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// arith computes l op a into the accumulator.
func (v *VM) arith(op Opcode, l int64) error {
	r := v.a
	switch op {
	case OR:
		v.a = l | r
	case XOR:
		v.a = l ^ r
	case AND:
		v.a = l & r
	case EQ:
		v.a = b2i(l == r)
	case NE:
		v.a = b2i(l != r)
	case LT:
		v.a = b2i(l < r)
	case GT:
		v.a = b2i(l > r)
	case LE:
		v.a = b2i(l <= r)
	case GE:
		v.a = b2i(l >= r)
	case SHL:
		v.a = l << uint64(r)
	case SHR:
		v.a = l >> uint64(r)
	case ADD:
		v.a = l + r
	case SUB:
		v.a = l - r
	case MUL:
		v.a = l * r
	case DIV:
		if r == 0 {
			return v.fail("division by zero", nil)
		}
		v.a = l / r
	case MOD:
		if r == 0 {
			return v.fail("modulo by zero", nil)
		}
		v.a = l % r
	}
	return nil
}
