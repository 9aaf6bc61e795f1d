package compiler

import (
	"strings"

	"c4vm/pkg/vm"
)

// BaseType is the scalar a type is built from.
type BaseType int

const (
	BaseChar BaseType = iota
	BaseInt
)

// Type is a base type plus a number of pointer indirections.
type Type struct {
	Base BaseType
	Ptr  int
}

var (
	TypeChar = Type{Base: BaseChar}
	TypeInt  = Type{Base: BaseInt}
)

func (t Type) IsPointer() bool { return t.Ptr > 0 }

// AddrOf returns the type of a pointer to t.
func (t Type) AddrOf() Type { return Type{Base: t.Base, Ptr: t.Ptr + 1} }

// Deref returns the pointee type. Only valid when t is a pointer.
func (t Type) Deref() Type { return Type{Base: t.Base, Ptr: t.Ptr - 1} }

// IsByte reports whether values of this type are stored in one byte.
func (t Type) IsByte() bool { return t.Ptr == 0 && t.Base == BaseChar }

// Size is the storage size of a value of this type.
func (t Type) Size() int64 {
	if t.IsByte() {
		return 1
	}
	return vm.WordSize
}

// Stride is the amount pointer arithmetic and ++/-- move by: the pointee
// size for pointers, 1 for everything else.
func (t Type) Stride() int64 {
	if !t.IsPointer() {
		return 1
	}
	return t.Deref().Size()
}

func (t Type) String() string {
	base := "int"
	if t.Base == BaseChar {
		base = "char"
	}
	return base + strings.Repeat("*", t.Ptr)
}
