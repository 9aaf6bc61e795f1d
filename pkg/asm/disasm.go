package asm

import (
	"fmt"
	"strings"

	"c4vm/pkg/vm"
)

// Disassemble renders prog one instruction per line as
//
//	index: MNEM operand    ; line N
//
// followed by a hex dump of the data segment. Words that are not valid
// opcodes are shown as .WORD.
func Disassemble(prog *vm.Program) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; entry %d, %d code words, %d data bytes\n", prog.Entry, len(prog.Code), len(prog.Data))

	for pc := 0; pc < len(prog.Code); {
		start := pc
		op := vm.Opcode(prog.Code[pc])
		pc++

		marker := "  "
		if start == prog.Entry {
			marker = "=>"
		}
		switch {
		case !op.Valid():
			fmt.Fprintf(&sb, "%s%5d: .WORD %d", marker, start, int64(op))
		case op.HasOperand() && pc < len(prog.Code):
			fmt.Fprintf(&sb, "%s%5d: %s %d", marker, start, op.Mnemonic(), prog.Code[pc])
			pc++
		default:
			fmt.Fprintf(&sb, "%s%5d: %s", marker, start, op.Mnemonic())
		}
		if line := prog.Line(start); line > 0 {
			fmt.Fprintf(&sb, "\t; line %d", line)
		}
		sb.WriteByte('\n')
	}

	for off := 0; off < len(prog.Data); off += 16 {
		end := min(off+16, len(prog.Data))
		chunk := prog.Data[off:end]
		fmt.Fprintf(&sb, "%7d: % x  %s\n", vm.DataBase+int64(off), chunk, printable(chunk))
	}
	return sb.String()
}

func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		out[i] = c
	}
	return string(out)
}
