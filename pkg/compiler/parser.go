package compiler

import "c4vm/pkg/vm"

// operand describes the value an expression left behind. When lvalue is
// set the accumulator holds the value's address and the load has not been
// emitted yet, so assignment, address-of and ++/-- can use the address
// directly.
type operand struct {
	typ    Type
	lvalue bool
}

func rvalueOf(t Type) operand { return operand{typ: t} }
func lvalueOf(t Type) operand { return operand{typ: t, lvalue: true} }

func (c *Compiler) emit(op vm.Opcode) int {
	return c.prog.Emit(int64(op), c.lex.line)
}

// emitArg emits op with its inline operand and returns the operand's index,
// for later patching.
func (c *Compiler) emitArg(op vm.Opcode, arg int64) int {
	c.emit(op)
	return c.prog.Emit(arg, c.lex.line)
}

// here is the code index of the next instruction.
func (c *Compiler) here() int64 {
	return int64(len(c.prog.Code))
}

// patchHere points the jump operand at pos to the next instruction.
func (c *Compiler) patchHere(pos int) {
	c.prog.Patch(pos, c.here())
}

func loadOp(t Type) vm.Opcode {
	if t.IsByte() {
		return vm.LC
	}
	return vm.LI
}

func storeOp(t Type) vm.Opcode {
	if t.IsByte() {
		return vm.SC
	}
	return vm.SI
}

// load turns a deferred lvalue into its value.
func (c *Compiler) load(x operand) operand {
	if x.lvalue {
		c.emit(loadOp(x.typ))
		x.lvalue = false
	}
	return x
}

// scale multiplies the accumulator by the stride of t, if any.
func (c *Compiler) scale(t Type) {
	if s := t.Stride(); s > 1 {
		c.emit(vm.PSH)
		c.emitArg(vm.IMM, s)
		c.emit(vm.MUL)
	}
}

// rvalue parses an expression at the given precedence and leaves its value
// in the accumulator.
func (c *Compiler) rvalue(prec int) operand {
	return c.load(c.expr(prec))
}

// expr is precedence climbing: a unary operand followed by every binary or
// postfix operator that binds at least as tightly as prec.
func (c *Compiler) expr(prec int) operand {
	x := c.unary()
	for {
		p, ok := binaryPrec[c.tok.Type]
		if !ok || p < prec {
			return x
		}
		x = c.binary(x)
	}
}

func (c *Compiler) unary() operand {
	tok := c.tok
	switch tok.Type {
	case EOF:
		c.fail("unexpected eof in expression")

	case INTEGER:
		c.next()
		c.emitArg(vm.IMM, tok.Val)
		return rvalueOf(TypeInt)

	case STRING:
		c.emitArg(vm.IMM, tok.Val)
		c.next()
		for c.tok.Type == STRING {
			c.next()
		}
		c.data.terminate()
		c.checkData()
		return rvalueOf(TypeChar.AddrOf())

	case SIZEOF:
		c.next()
		c.expect(LPAREN, "open paren expected in sizeof")
		t := TypeInt
		if c.tok.Type == CHAR {
			t = TypeChar
			c.next()
		} else if c.tok.Type == INT {
			c.next()
		}
		for c.tok.Type == STAR {
			c.next()
			t = t.AddrOf()
		}
		c.expect(RPAREN, "close paren expected in sizeof")
		c.emitArg(vm.IMM, t.Size())
		return rvalueOf(TypeInt)

	case IDENTIFIER:
		c.next()
		return c.identifier(tok.Sym)

	case LPAREN:
		c.next()
		if c.tok.Type == INT || c.tok.Type == CHAR {
			t := c.baseType()
			for c.tok.Type == STAR {
				c.next()
				t = t.AddrOf()
			}
			c.expect(RPAREN, "bad cast")
			x := c.rvalue(precIncDec)
			x.typ = t
			return x
		}
		x := c.expr(precAssign)
		c.expect(RPAREN, "close paren expected")
		return x

	case STAR:
		c.next()
		x := c.rvalue(precIncDec)
		if !x.typ.IsPointer() {
			c.fail("bad dereference")
		}
		return lvalueOf(x.typ.Deref())

	case AND:
		c.next()
		x := c.expr(precIncDec)
		if !x.lvalue {
			c.fail("bad address-of")
		}
		return rvalueOf(x.typ.AddrOf())

	case NOT:
		c.next()
		c.rvalue(precIncDec)
		c.emit(vm.PSH)
		c.emitArg(vm.IMM, 0)
		c.emit(vm.EQ)
		return rvalueOf(TypeInt)

	case TILDE:
		c.next()
		c.rvalue(precIncDec)
		c.emit(vm.PSH)
		c.emitArg(vm.IMM, -1)
		c.emit(vm.XOR)
		return rvalueOf(TypeInt)

	case PLUS:
		c.next()
		c.rvalue(precIncDec)
		return rvalueOf(TypeInt)

	case MINUS:
		c.next()
		if c.tok.Type == INTEGER {
			c.emitArg(vm.IMM, -c.tok.Val)
			c.next()
		} else {
			c.emitArg(vm.IMM, -1)
			c.emit(vm.PSH)
			c.rvalue(precIncDec)
			c.emit(vm.MUL)
		}
		return rvalueOf(TypeInt)

	case PLUS_PLUS, MINUS_MINUS:
		c.next()
		x := c.expr(precIncDec)
		if !x.lvalue {
			c.fail("bad lvalue in pre-increment")
		}
		c.emit(vm.PSH)
		c.emit(loadOp(x.typ))
		c.emit(vm.PSH)
		c.emitArg(vm.IMM, x.typ.Stride())
		if tok.Type == PLUS_PLUS {
			c.emit(vm.ADD)
		} else {
			c.emit(vm.SUB)
		}
		c.emit(storeOp(x.typ))
		return rvalueOf(x.typ)
	}

	c.fail("bad expression")
	return operand{}
}

// identifier handles a name in expression position: a call, an enum
// constant or a variable reference.
func (c *Compiler) identifier(sym *Symbol) operand {
	if c.tok.Type == LPAREN {
		c.next()
		var nargs int64
		for c.tok.Type != RPAREN {
			c.rvalue(precAssign)
			c.emit(vm.PSH)
			nargs++
			if c.tok.Type == COMMA {
				c.next()
			} else if c.tok.Type != RPAREN {
				c.fail("close paren expected in call")
			}
		}
		c.next()
		switch sym.Class {
		case ClassSys:
			c.emit(vm.Opcode(sym.Val))
		case ClassFunc:
			c.emitArg(vm.JSR, sym.Val)
		default:
			c.fail("bad function call")
		}
		if nargs > 0 {
			c.emitArg(vm.ADJ, nargs)
		}
		return rvalueOf(sym.Type)
	}

	switch sym.Class {
	case ClassEnum:
		c.emitArg(vm.IMM, sym.Val)
		return rvalueOf(TypeInt)
	case ClassLocal:
		c.emitArg(vm.LEA, c.frameTop-sym.Val)
	case ClassGlobal:
		c.emitArg(vm.IMM, sym.Val)
	default:
		c.fail("undefined variable %s", sym.Name)
	}
	return lvalueOf(sym.Type)
}

// binary consumes one binary or postfix operator whose left operand is x.
func (c *Compiler) binary(x operand) operand {
	op := c.tok.Type
	c.next()

	switch op {
	case ASSIGN:
		if !x.lvalue {
			c.fail("bad lvalue in assignment")
		}
		c.emit(vm.PSH)
		c.rvalue(precAssign)
		c.emit(storeOp(x.typ))
		return rvalueOf(x.typ)

	case QUESTION:
		c.load(x)
		bz := c.emitArg(vm.BZ, 0)
		c.rvalue(precAssign)
		c.expect(COLON, "conditional missing colon")
		jmp := c.emitArg(vm.JMP, 0)
		c.patchHere(bz)
		y := c.rvalue(precCond)
		c.patchHere(jmp)
		return y

	case OR_LOGICAL:
		c.load(x)
		bnz := c.emitArg(vm.BNZ, 0)
		c.rvalue(precLogicalAnd)
		c.patchHere(bnz)
		return rvalueOf(TypeInt)

	case AND_LOGICAL:
		c.load(x)
		bz := c.emitArg(vm.BZ, 0)
		c.rvalue(precBitOr)
		c.patchHere(bz)
		return rvalueOf(TypeInt)

	case PLUS:
		c.load(x)
		c.emit(vm.PSH)
		c.rvalue(precMultiplicative)
		c.scale(x.typ)
		c.emit(vm.ADD)
		return rvalueOf(x.typ)

	case MINUS:
		c.load(x)
		c.emit(vm.PSH)
		y := c.rvalue(precMultiplicative)
		if x.typ.IsPointer() && x.typ == y.typ {
			c.emit(vm.SUB)
			if s := x.typ.Stride(); s > 1 {
				c.emit(vm.PSH)
				c.emitArg(vm.IMM, s)
				c.emit(vm.DIV)
			}
			return rvalueOf(TypeInt)
		}
		c.scale(x.typ)
		c.emit(vm.SUB)
		return rvalueOf(x.typ)

	case PLUS_PLUS, MINUS_MINUS:
		if !x.lvalue {
			c.fail("bad lvalue in post-increment")
		}
		step := x.typ.Stride()
		apply, undo := vm.ADD, vm.SUB
		if op == MINUS_MINUS {
			apply, undo = vm.SUB, vm.ADD
		}
		c.emit(vm.PSH)
		c.emit(loadOp(x.typ))
		c.emit(vm.PSH)
		c.emitArg(vm.IMM, step)
		c.emit(apply)
		c.emit(storeOp(x.typ))
		c.emit(vm.PSH)
		c.emitArg(vm.IMM, step)
		c.emit(undo)
		return rvalueOf(x.typ)

	case LBRACKET:
		c.load(x)
		c.emit(vm.PSH)
		c.rvalue(precAssign)
		c.expect(RBRACKET, "close bracket expected")
		if !x.typ.IsPointer() {
			c.fail("pointer type expected")
		}
		c.scale(x.typ)
		c.emit(vm.ADD)
		return lvalueOf(x.typ.Deref())
	}

	// plain arithmetic, comparison and bitwise operators
	c.load(x)
	c.emit(vm.PSH)
	c.rvalue(binaryPrec[op] + 1)
	c.emit(arithOps[op])
	return rvalueOf(TypeInt)
}

var arithOps = map[TokenType]vm.Opcode{
	PIPE:       vm.OR,
	CARET:      vm.XOR,
	AND:        vm.AND,
	EQUALS:     vm.EQ,
	NOT_EQ:     vm.NE,
	LESS:       vm.LT,
	GREATER:    vm.GT,
	LESS_EQ:    vm.LE,
	GREATER_EQ: vm.GE,
	SHL_OP:     vm.SHL,
	SHR_OP:     vm.SHR,
	STAR:       vm.MUL,
	SLASH:      vm.DIV,
	PERCENT:    vm.MOD,
}
