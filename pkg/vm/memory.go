package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// memory is the VM's single flat address space:
//
//	[0, DataBase)              unmapped
//	[DataBase, heapBase)       data segment (strings, globals)
//	[heapBase, stackBase)      malloc heap
//	[stackBase, len(buf))      stack, growing down from the top
type memory struct {
	buf       []byte
	heapBase  int64
	stackBase int64
}

// faultError is returned by memory accessors and wrapped into a RuntimeError
// by the executor.
type faultError struct {
	addr int64
	size int64
}

func (e *faultError) Error() string {
	return fmt.Sprintf("memory fault at address %d (size %d)", e.addr, e.size)
}

func alignWord(n int64) int64 {
	return (n + WordSize - 1) &^ (WordSize - 1)
}

func newMemory(data []byte, heapSize, stackSize int) *memory {
	heapBase := alignWord(DataBase + int64(len(data)))
	stackBase := heapBase + alignWord(int64(heapSize))
	m := &memory{
		buf:       make([]byte, stackBase+alignWord(int64(stackSize))),
		heapBase:  heapBase,
		stackBase: stackBase,
	}
	copy(m.buf[DataBase:], data)
	return m
}

func (m *memory) top() int64 {
	return int64(len(m.buf))
}

func (m *memory) check(addr, size int64) error {
	if addr < DataBase || size < 0 || addr+size > int64(len(m.buf)) || addr+size < addr {
		return &faultError{addr: addr, size: size}
	}
	return nil
}

func (m *memory) loadWord(addr int64) (int64, error) {
	if err := m.check(addr, WordSize); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(m.buf[addr:])), nil
}

func (m *memory) storeWord(addr, val int64) error {
	if err := m.check(addr, WordSize); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[addr:], uint64(val))
	return nil
}

func (m *memory) loadByte(addr int64) (byte, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}
	return m.buf[addr], nil
}

func (m *memory) storeByte(addr int64, val byte) error {
	if err := m.check(addr, 1); err != nil {
		return err
	}
	m.buf[addr] = val
	return nil
}

// slice returns the n bytes at addr, aliasing VM memory.
func (m *memory) slice(addr, n int64) ([]byte, error) {
	if err := m.check(addr, n); err != nil {
		return nil, err
	}
	return m.buf[addr : addr+n], nil
}

// cstring reads the NUL-terminated string at addr.
func (m *memory) cstring(addr int64) (string, error) {
	if err := m.check(addr, 1); err != nil {
		return "", err
	}
	n := bytes.IndexByte(m.buf[addr:], 0)
	if n < 0 {
		return "", &faultError{addr: addr, size: int64(len(m.buf)) - addr}
	}
	return string(m.buf[addr : addr+int64(n)]), nil
}
