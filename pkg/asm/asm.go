// Package asm is a two-pass text assembler and a disassembler for the vm
// bytecode. It is used to write VM tests by hand and to dump compiled
// programs.
//
// Source format, one item per line:
//
//	label:              ; labels name the next code word or data item
//	IMM 42              ; mnemonic with its operand (number or label)
//	PSH
//	msg: .STRING "hi\n" ; NUL-terminated, word-aligned data
//	n:   .WORD 7        ; one data word
//	.ENTRY main         ; entry point (defaults to label main, else index 2)
//
// Comments start with ';' or "//". Every program begins with the PSH, EXIT
// epilogue at code indexes 0 and 1, reachable as the label EXIT_EPILOGUE.
package asm

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"c4vm/pkg/vm"
)

// EpilogueLabel names code index 0.
const EpilogueLabel = "EXIT_EPILOGUE"

type Assembler struct {
	labels map[string]int64
	entry  string
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]int64),
	}
}

func Assemble(code string) (*vm.Program, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*vm.Program, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, err
	}

	return a.pass2(lines)
}

// pass1 assigns every label its code index or data address.
func (a *Assembler) pass1(lines []string) error {
	a.labels[normalizeLabel(EpilogueLabel)] = vm.EpilogueAddr
	pc := int64(len(vm.NewProgram().Code))
	var dataLen int64

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		// a label addresses whatever the line defines: data for directives,
		// code otherwise
		addr := pc
		if p.mnemonic == ".STRING" || p.mnemonic == ".WORD" {
			addr = vm.DataBase + dataLen
		}
		for _, lbl := range p.labels {
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = addr
		}

		switch p.mnemonic {
		case "":
			continue
		case ".STRING":
			if len(p.operands) != 1 {
				return fmt.Errorf(".STRING expects exactly one string operand on line %d", lineNo)
			}
			dataLen = alignString(dataLen + int64(len(p.operands[0])))
			continue
		case ".WORD":
			if len(p.operands) != 1 {
				return fmt.Errorf(".WORD expects exactly one operand on line %d", lineNo)
			}
			dataLen += vm.WordSize
			continue
		case ".ENTRY":
			if len(p.operands) != 1 {
				return fmt.Errorf(".ENTRY expects exactly one label on line %d", lineNo)
			}
			a.entry = p.operands[0]
			continue
		}

		length, ok := instructionLength(p.mnemonic)
		if !ok {
			return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
		}
		pc += length
	}

	return nil
}

func (a *Assembler) pass2(lines []string) (*vm.Program, error) {
	prog := vm.NewProgram()

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}

		mnemonic := p.mnemonic
		ops := p.operands

		switch mnemonic {
		case "", ".ENTRY":
			continue
		case ".STRING":
			prog.Data = append(prog.Data, p.operands[0]...)
			prog.Data = append(prog.Data, make([]byte, alignString(int64(len(prog.Data)))-int64(len(prog.Data)))...)
			continue
		case ".WORD":
			val, err := a.parseImmediate(ops[0], lineNo)
			if err != nil {
				return nil, err
			}
			prog.Data = binary.LittleEndian.AppendUint64(prog.Data, uint64(val))
			continue
		}

		op, ok := vm.ParseOpcode(mnemonic)
		if !ok {
			return nil, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
		}
		if !op.HasOperand() {
			if len(ops) != 0 {
				return nil, fmt.Errorf("%s expects 0 operands on line %d", mnemonic, lineNo)
			}
			prog.Emit(int64(op), lineNo)
			continue
		}
		if len(ops) != 1 {
			return nil, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
		}
		imm, err := a.parseImmediate(ops[0], lineNo)
		if err != nil {
			return nil, err
		}
		prog.Emit(int64(op), lineNo)
		prog.Emit(imm, lineNo)
	}

	entry, err := a.entryPoint(len(prog.Code))
	if err != nil {
		return nil, err
	}
	prog.Entry = entry
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

func (a *Assembler) entryPoint(codeLen int) (int, error) {
	if a.entry != "" {
		addr, ok := a.labels[normalizeLabel(a.entry)]
		if !ok {
			return 0, fmt.Errorf("undefined entry label '%s'", a.entry)
		}
		return int(addr), nil
	}
	if addr, ok := a.labels[normalizeLabel("main")]; ok {
		return int(addr), nil
	}
	if codeLen <= 2 {
		return 0, fmt.Errorf("program has no code")
	}
	return 2, nil
}

// alignString returns the data length after NUL-terminating a string that
// ends at n: the next word boundary, always past at least one zero byte.
func alignString(n int64) int64 {
	return (n + vm.WordSize) &^ (vm.WordSize - 1)
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	// .STRING keeps its quoted operand verbatim, comment characters included
	upperRaw := strings.ToUpper(raw)
	if directiveIdx := strings.Index(upperRaw, ".STRING"); directiveIdx != -1 {
		preDirective := raw[:directiveIdx]
		if colonIdx := strings.Index(preDirective, ":"); colonIdx != -1 {
			label := strings.TrimSpace(preDirective[:colonIdx])
			if label != "" {
				p.labels = append(p.labels, label)
			}
		}

		opening := strings.Index(raw, "\"")
		closing := strings.LastIndex(raw, "\"")
		if opening != -1 && closing != -1 && opening != closing {
			p.mnemonic = ".STRING"
			content := raw[opening+1 : closing]
			if unquoted, err := strconv.Unquote(`"` + content + `"`); err == nil {
				p.operands = []string{unquoted}
			} else {
				p.operands = []string{content}
			}
			return p, nil
		}
		return p, fmt.Errorf("invalid string literal on line %d", lineNo)
	}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}
		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}
	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func (a *Assembler) parseImmediate(token string, lineNo int) (int64, error) {
	if value, err := strconv.ParseInt(token, 0, 64); err == nil {
		return value, nil
	}
	if len(token) == 3 && token[0] == '\'' && token[2] == '\'' {
		return int64(token[1]), nil
	}

	if addr, ok := a.labels[normalizeLabel(token)]; ok {
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

// instructionLength returns the number of code words an instruction takes:
// one, plus one for an inline operand.
func instructionLength(mnemonic string) (int64, bool) {
	op, ok := vm.ParseOpcode(strings.ToUpper(mnemonic))
	if !ok {
		return 0, false
	}
	if op.HasOperand() {
		return 2, true
	}
	return 1, true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
