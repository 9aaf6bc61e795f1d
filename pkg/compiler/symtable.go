package compiler

import (
	"fmt"
	"strings"
)

// Class says what an identifier currently names.
type Class int

const (
	ClassNone   Class = iota // seen, not declared
	ClassEnum                // enum constant; Val is its value
	ClassFunc                // function; Val is its code address
	ClassSys                 // host syscall; Val is its opcode
	ClassGlobal              // global variable; Val is its data address
	ClassLocal               // parameter or local; Val is its frame slot
)

var classNames = [...]string{
	ClassNone:   "none",
	ClassEnum:   "enum",
	ClassFunc:   "func",
	ClassSys:    "sys",
	ClassGlobal: "global",
	ClassLocal:  "local",
}

func (c Class) String() string {
	if int(c) >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Symbol is one entry per distinct identifier. Name, Hash and Token never
// change once interned; Class, Type and Val are the current binding.
type Symbol struct {
	Name  string
	Hash  int64
	Token TokenType // IDENTIFIER, or the keyword this name spells

	Class Class
	Type  Type
	Val   int64
}

type binding struct {
	sym   *Symbol
	class Class
	typ   Type
	val   int64
}

// SymbolTable interns identifiers in first-seen order. While a function is
// being compiled, parameters and locals shadow the outer binding of their
// name; the outer bindings are saved in an overlay and put back by
// ExitFunction.
type SymbolTable struct {
	syms   []*Symbol
	byName map[string]*Symbol

	shadowed []binding // overlay of the function being compiled
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]*Symbol)}
}

// hashName is the running identifier hash: h*147 + byte, then the length
// mixed into the low bits.
func hashName(name string) int64 {
	var h int64
	for i := 0; i < len(name); i++ {
		h = h*147 + int64(name[i])
	}
	return h<<6 + int64(len(name))
}

// Intern returns the entry for name, creating a plain identifier on first
// sight.
func (s *SymbolTable) Intern(name string) *Symbol {
	if sym, ok := s.byName[name]; ok {
		return sym
	}
	sym := &Symbol{Name: name, Hash: hashName(name), Token: IDENTIFIER}
	s.syms = append(s.syms, sym)
	s.byName[name] = sym
	return sym
}

// Lookup returns the entry for name without interning it.
func (s *SymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, ok := s.byName[name]
	return sym, ok
}

// Len is the number of interned names.
func (s *SymbolTable) Len() int { return len(s.syms) }

// EnterFunction starts a fresh shadowing overlay.
func (s *SymbolTable) EnterFunction() {
	s.shadowed = s.shadowed[:0]
}

// BindLocal makes sym a local of the current function with the given frame
// slot, saving its outer binding.
func (s *SymbolTable) BindLocal(sym *Symbol, typ Type, slot int64) error {
	if sym.Class == ClassLocal {
		return fmt.Errorf("%q already declared in this function", sym.Name)
	}
	s.shadowed = append(s.shadowed, binding{sym: sym, class: sym.Class, typ: sym.Type, val: sym.Val})
	sym.Class = ClassLocal
	sym.Type = typ
	sym.Val = slot
	return nil
}

// ExitFunction restores every binding shadowed since EnterFunction.
func (s *SymbolTable) ExitFunction() {
	for i := len(s.shadowed) - 1; i >= 0; i-- {
		b := s.shadowed[i]
		b.sym.Class, b.sym.Type, b.sym.Val = b.class, b.typ, b.val
	}
	s.shadowed = s.shadowed[:0]
}

// String returns the table in interning order.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	for _, sym := range s.syms {
		if sym.Token != IDENTIFIER {
			continue
		}
		if sym.Class == ClassNone {
			fmt.Fprintf(&sb, "  %-20s  (undeclared)\n", sym.Name)
			continue
		}
		fmt.Fprintf(&sb, "  %-20s  %-6s %-8s %d\n", sym.Name, sym.Class, sym.Type, sym.Val)
	}
	return sb.String()
}
