package vm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// DataBase is the address of the first data segment byte. Addresses below it
// are never mapped, so a NULL dereference faults.
const DataBase int64 = WordSize

// ImageVersion is bumped whenever the encoded Program layout changes.
const ImageVersion = 1

// Program is a compiled, loadable unit: the code buffer, the initial data
// segment and the code index of the entry function.
//
// Code[0] and Code[1] always hold the PSH, EXIT epilogue that the entry
// function returns into, so its return value becomes the exit status.
type Program struct {
	Version int     `cbor:"version"`
	Code    []int64 `cbor:"code"`
	Data    []byte  `cbor:"data"`
	Entry   int     `cbor:"entry"`

	// Lines maps each code word to the source line that emitted it (0 if
	// unknown). It is optional and only used in diagnostics.
	Lines []int `cbor:"lines,omitempty"`
}

// EpilogueAddr is the return address pushed for the entry function.
const EpilogueAddr = 0

var ErrBadImage = errors.New("bad program image")

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// NewProgram returns an empty program holding only the exit epilogue.
func NewProgram() *Program {
	return &Program{
		Version: ImageVersion,
		Code:    []int64{int64(PSH), int64(EXIT)},
		Lines:   []int{0, 0},
	}
}

// Emit appends one instruction word and returns its index.
func (p *Program) Emit(word int64, line int) int {
	p.Code = append(p.Code, word)
	p.Lines = append(p.Lines, line)
	return len(p.Code) - 1
}

// Patch overwrites the word at index pos.
func (p *Program) Patch(pos int, word int64) {
	p.Code[pos] = word
}

// Line returns the source line recorded for code index pc.
func (p *Program) Line(pc int) int {
	if pc < 0 || pc >= len(p.Lines) {
		return 0
	}
	return p.Lines[pc]
}

// Validate checks that the program is internally consistent.
func (p *Program) Validate() error {
	if len(p.Code) < 2 || Opcode(p.Code[0]) != PSH || Opcode(p.Code[1]) != EXIT {
		return fmt.Errorf("%w: missing exit epilogue", ErrBadImage)
	}
	if p.Entry < 2 || p.Entry >= len(p.Code) {
		return fmt.Errorf("%w: entry %d outside code (%d words)", ErrBadImage, p.Entry, len(p.Code))
	}
	if len(p.Lines) != 0 && len(p.Lines) != len(p.Code) {
		return fmt.Errorf("%w: line table has %d entries for %d code words", ErrBadImage, len(p.Lines), len(p.Code))
	}
	return nil
}

// MarshalImage serializes the program to canonical CBOR. Identical programs
// always encode to identical bytes.
func (p *Program) MarshalImage() ([]byte, error) {
	return imageEncMode.Marshal(p)
}

// UnmarshalImage decodes and validates a program image.
func UnmarshalImage(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("vm: unmarshal image: %w", err)
	}
	if p.Version != ImageVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrBadImage, p.Version, ImageVersion)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
