// Package compiler is a single-pass compiler for a small C subset: char, int
// and pointer types, enums, globals, functions, if, while and return. It
// emits bytecode for package vm directly while parsing.
//
// Pipeline: C source → Lexer → parser/code generator → vm.Program
package compiler
