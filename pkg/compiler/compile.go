package compiler

import (
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"c4vm/pkg/vm"
)

var log = commonlog.GetLogger("c4vm.compiler")

// DefaultMaxData bounds the data segment in bytes.
const DefaultMaxData = 256 * 1024

// Error is a fatal compile error. Compilation stops at the first one.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// bailout carries an *Error up the recursive descent to Compile.
type bailout struct{ err *Error }

// Options configures a compilation.
type Options struct {
	// Listing, when set, receives each source line followed by the
	// instructions it produced.
	Listing io.Writer
	// MaxData bounds the data segment in bytes. Zero means DefaultMaxData.
	MaxData int
}

// Compiler is the single-pass compiler context: the lexer, the current
// token, the symbol table and the code and data being emitted.
type Compiler struct {
	lex  *Lexer
	tok  Token
	syms *SymbolTable
	data *dataSegment
	prog *vm.Program
	opts Options

	main     *Symbol
	frameTop int64 // frame slot of the first local, relative to bp

	listed int // code index up to which the listing has been written
}

// builtin names, interned in this order before any user source
var (
	keywordNames = []struct {
		name string
		tt   TokenType
	}{
		{"char", CHAR}, {"else", ELSE}, {"enum", ENUM}, {"if", IF},
		{"int", INT}, {"return", RETURN}, {"sizeof", SIZEOF}, {"while", WHILE},
	}
	syscallNames = []struct {
		name string
		op   vm.Opcode
	}{
		{"open", vm.OPEN}, {"read", vm.READ}, {"close", vm.CLOS}, {"printf", vm.PRTF},
		{"malloc", vm.MALC}, {"free", vm.FREE}, {"memset", vm.MSET}, {"memcmp", vm.MCMP},
		{"exit", vm.EXIT},
	}
)

// registerBuiltins interns keywords and syscalls, "void" as a spelling of
// "char", and "main". It returns the entry for main.
func registerBuiltins(syms *SymbolTable) *Symbol {
	for _, kw := range keywordNames {
		syms.Intern(kw.name).Token = kw.tt
	}
	for _, sc := range syscallNames {
		sym := syms.Intern(sc.name)
		sym.Class = ClassSys
		sym.Type = TypeInt
		sym.Val = int64(sc.op)
	}
	syms.Intern("void").Token = CHAR
	return syms.Intern("main")
}

// NewCompiler prepares a compilation of src.
func NewCompiler(src string, opts Options) *Compiler {
	if opts.MaxData <= 0 {
		opts.MaxData = DefaultMaxData
	}
	c := &Compiler{
		syms: NewSymbolTable(),
		data: &dataSegment{},
		prog: vm.NewProgram(),
		opts: opts,
	}
	c.main = registerBuiltins(c.syms)
	c.listed = len(c.prog.Code)
	c.lex = newLexer(src, c.syms, c.data)
	if opts.Listing != nil {
		c.lex.onLine = c.listLine
	}
	return c
}

// Compile compiles src into a runnable program.
func Compile(src string, opts Options) (*vm.Program, error) {
	return NewCompiler(src, opts).Compile()
}

// Compile runs the whole single pass. It may only be called once.
func (c *Compiler) Compile() (prog *vm.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			log.Debugf("compile failed: %v", b.err)
			prog, err = nil, b.err
		}
	}()

	c.next()
	for c.tok.Type != EOF {
		c.declaration()
	}
	if c.main.Class != ClassFunc {
		c.fail("main() not defined")
	}

	c.prog.Entry = int(c.main.Val)
	c.prog.Data = c.data.buf
	log.Debugf("compiled %d code words, %d data bytes, %d symbols",
		len(c.prog.Code), len(c.data.buf), c.syms.Len())
	return c.prog, nil
}

// Symbols exposes the symbol table, for dumps and tests.
func (c *Compiler) Symbols() *SymbolTable { return c.syms }

func (c *Compiler) fail(format string, args ...any) {
	panic(bailout{&Error{Line: c.lex.line, Msg: fmt.Sprintf(format, args...)}})
}

func (c *Compiler) next() {
	c.tok = c.lex.Next()
}

// expect consumes the current token if it matches tt, otherwise fails with msg.
func (c *Compiler) expect(tt TokenType, msg string) {
	if c.tok.Type != tt {
		c.fail("%s", msg)
	}
	c.next()
}

func (c *Compiler) checkData() {
	if len(c.data.buf) > c.opts.MaxData {
		c.fail("data segment overflow (%d bytes)", len(c.data.buf))
	}
}

// listLine writes one source line and the code emitted since the last one.
func (c *Compiler) listLine(line int, text string) {
	w := c.opts.Listing
	fmt.Fprintf(w, "%d: %s", line, text)
	code := c.prog.Code
	for c.listed < len(code) {
		op := vm.Opcode(code[c.listed])
		c.listed++
		fmt.Fprintf(w, "%8.4s", op.Mnemonic())
		if op.HasOperand() && c.listed < len(code) {
			fmt.Fprintf(w, " %d\n", code[c.listed])
			c.listed++
		} else {
			fmt.Fprintln(w)
		}
	}
}
