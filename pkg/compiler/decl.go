package compiler

import "c4vm/pkg/vm"

// baseType consumes an optional int or char keyword. A missing keyword
// means int.
func (c *Compiler) baseType() Type {
	switch c.tok.Type {
	case INT:
		c.next()
	case CHAR:
		c.next()
		return TypeChar
	}
	return TypeInt
}

// pointers applies any number of leading '*' to t.
func (c *Compiler) pointers(t Type) Type {
	for c.tok.Type == STAR {
		c.next()
		t = t.AddrOf()
	}
	return t
}

// declaration parses one top-level declaration: an enum, a list of globals,
// or a function definition.
func (c *Compiler) declaration() {
	var base Type
	if c.tok.Type == ENUM {
		c.next()
		c.enum()
		base = TypeInt
	} else {
		base = c.baseType()
	}

	for c.tok.Type != SEMICOLON && c.tok.Type != RBRACE {
		t := c.pointers(base)
		if c.tok.Type != IDENTIFIER {
			c.fail("bad global declaration")
		}
		sym := c.tok.Sym
		if sym.Class != ClassNone {
			c.fail("duplicate global definition")
		}
		c.next()
		sym.Type = t

		if c.tok.Type == LPAREN {
			c.function(sym)
		} else {
			sym.Class = ClassGlobal
			sym.Val = c.data.reserveWord()
			c.checkData()
			log.Debugf("global %s %s at %d", t, sym.Name, sym.Val)
		}
		if c.tok.Type == COMMA {
			c.next()
		}
	}
	c.next()
}

// enum parses an optional tag and a brace-enclosed list of constants,
// numbered from zero or from the last explicit initializer.
func (c *Compiler) enum() {
	if c.tok.Type != LBRACE {
		c.next()
	}
	if c.tok.Type != LBRACE {
		return
	}
	c.next()
	var val int64
	for c.tok.Type != RBRACE {
		if c.tok.Type != IDENTIFIER {
			c.fail("bad enum identifier")
		}
		sym := c.tok.Sym
		c.next()
		if c.tok.Type == ASSIGN {
			c.next()
			if c.tok.Type != INTEGER {
				c.fail("bad enum initializer")
			}
			val = c.tok.Val
			c.next()
		}
		sym.Class = ClassEnum
		sym.Type = TypeInt
		sym.Val = val
		val++
		if c.tok.Type == COMMA {
			c.next()
		}
	}
	c.next()
}

// function compiles a definition whose name has been consumed. Parameters
// take frame slots 0..n-1, slot n+1 is the frame origin and locals follow
// it, so a variable's LEA offset is origin minus slot.
func (c *Compiler) function(sym *Symbol) {
	sym.Class = ClassFunc
	sym.Val = c.here()
	c.syms.EnterFunction()
	c.next()

	var slot int64
	for c.tok.Type != RPAREN {
		t := c.pointers(c.baseType())
		if c.tok.Type != IDENTIFIER {
			c.fail("bad parameter declaration")
		}
		if err := c.syms.BindLocal(c.tok.Sym, t, slot); err != nil {
			c.fail("duplicate parameter definition")
		}
		slot++
		c.next()
		if c.tok.Type == COMMA {
			c.next()
		}
	}
	c.next()
	if c.tok.Type != LBRACE {
		c.fail("bad function definition")
	}
	slot++
	c.frameTop = slot
	c.next()

	for c.tok.Type == INT || c.tok.Type == CHAR {
		base := c.baseType()
		for c.tok.Type != SEMICOLON {
			t := c.pointers(base)
			if c.tok.Type != IDENTIFIER {
				c.fail("bad local declaration")
			}
			slot++
			if err := c.syms.BindLocal(c.tok.Sym, t, slot); err != nil {
				c.fail("duplicate local definition")
			}
			c.next()
			if c.tok.Type == COMMA {
				c.next()
			}
		}
		c.next()
	}

	c.emitArg(vm.ENT, slot-c.frameTop)
	for c.tok.Type != RBRACE {
		c.statement()
	}
	c.emit(vm.LEV)
	c.syms.ExitFunction()
	log.Debugf("function %s at %d, %d locals", sym.Name, sym.Val, slot-c.frameTop)
}

func (c *Compiler) statement() {
	switch c.tok.Type {
	case IF:
		c.next()
		c.expect(LPAREN, "open paren expected")
		c.rvalue(precAssign)
		c.expect(RPAREN, "close paren expected")
		branch := c.emitArg(vm.BZ, 0)
		c.statement()
		if c.tok.Type == ELSE {
			skip := c.emitArg(vm.JMP, 0)
			c.patchHere(branch)
			branch = skip
			c.next()
			c.statement()
		}
		c.patchHere(branch)

	case WHILE:
		c.next()
		top := c.here()
		c.expect(LPAREN, "open paren expected")
		c.rvalue(precAssign)
		c.expect(RPAREN, "close paren expected")
		exit := c.emitArg(vm.BZ, 0)
		c.statement()
		c.emitArg(vm.JMP, top)
		c.patchHere(exit)

	case RETURN:
		c.next()
		if c.tok.Type != SEMICOLON {
			c.rvalue(precAssign)
		}
		c.emit(vm.LEV)
		c.expect(SEMICOLON, "semicolon expected")

	case LBRACE:
		c.next()
		for c.tok.Type != RBRACE {
			c.statement()
		}
		c.next()

	case SEMICOLON:
		c.next()

	default:
		c.rvalue(precAssign)
		c.expect(SEMICOLON, "semicolon expected")
	}
}
