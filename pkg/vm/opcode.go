package vm

import "fmt"

// Opcode is a single bytecode instruction. Opcodes from LEA through ADJ are
// followed by exactly one inline operand word; the rest stand alone.
type Opcode int64

const (
	LEA Opcode = iota // a = bp + operand words
	IMM               // a = operand
	JMP               // pc = operand
	JSR               // push return address, pc = operand
	BZ                // if a == 0 { pc = operand }
	BNZ               // if a != 0 { pc = operand }
	ENT               // push bp, bp = sp, reserve operand words
	ADJ               // drop operand words of arguments
	LEV               // sp = bp, pop bp, pop pc
	LI                // a = word at a
	LC                // a = byte at a
	SI                // word at pop() = a
	SC                // byte at pop() = a
	PSH               // push a

	OR
	XOR
	AND
	EQ
	NE
	LT
	GT
	LE
	GE
	SHL
	SHR
	ADD
	SUB
	MUL
	DIV
	MOD

	OPEN
	READ
	CLOS
	PRTF
	MALC
	FREE
	MSET
	MCMP
	EXIT

	numOpcodes
)

// WordSize is the size in bytes of an int, a pointer and a stack slot.
const WordSize = 8

var opcodeNames = [...]string{
	LEA:  "LEA",
	IMM:  "IMM",
	JMP:  "JMP",
	JSR:  "JSR",
	BZ:   "BZ",
	BNZ:  "BNZ",
	ENT:  "ENT",
	ADJ:  "ADJ",
	LEV:  "LEV",
	LI:   "LI",
	LC:   "LC",
	SI:   "SI",
	SC:   "SC",
	PSH:  "PSH",
	OR:   "OR",
	XOR:  "XOR",
	AND:  "AND",
	EQ:   "EQ",
	NE:   "NE",
	LT:   "LT",
	GT:   "GT",
	LE:   "LE",
	GE:   "GE",
	SHL:  "SHL",
	SHR:  "SHR",
	ADD:  "ADD",
	SUB:  "SUB",
	MUL:  "MUL",
	DIV:  "DIV",
	MOD:  "MOD",
	OPEN: "OPEN",
	READ: "READ",
	CLOS: "CLOS",
	PRTF: "PRTF",
	MALC: "MALC",
	FREE: "FREE",
	MSET: "MSET",
	MCMP: "MCMP",
	EXIT: "EXIT",
}

// hasOperand is the per-opcode operand arity table.
var hasOperand = [numOpcodes]bool{
	LEA: true,
	IMM: true,
	JMP: true,
	JSR: true,
	BZ:  true,
	BNZ: true,
	ENT: true,
	ADJ: true,
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = Opcode(op)
	}
	return m
}()

// Valid reports whether op is one of the known instructions.
func (op Opcode) Valid() bool {
	return op >= 0 && op < numOpcodes
}

// HasOperand reports whether op is followed by an inline operand word.
func (op Opcode) HasOperand() bool {
	return op.Valid() && hasOperand[op]
}

// IsSyscall reports whether op is one of the host syscalls OPEN..EXIT.
func (op Opcode) IsSyscall() bool {
	return op >= OPEN && op <= EXIT
}

func (op Opcode) String() string {
	if op.Valid() {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int64(op))
}

// Mnemonic returns the name padded to four columns, the form used by the
// source listing and the execution trace.
func (op Opcode) Mnemonic() string {
	return fmt.Sprintf("%-4s", op.String())
}

// ParseOpcode looks up an instruction by its mnemonic.
func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}
