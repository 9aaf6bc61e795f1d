package vm

import "sort"

// heapAlign is the allocation granularity. Every block is a multiple of it,
// so malloc(8) still leaves room for two words like a typical host allocator.
const heapAlign = 2 * WordSize

type span struct {
	addr int64
	size int64
}

// heap is a first-fit allocator over [base, limit). Bookkeeping lives on the
// Go side; VM memory holds only payload bytes.
type heap struct {
	base, limit int64
	brk         int64
	free        []span // sorted by addr, coalesced
	live        map[int64]int64
}

func newHeap(base, limit int64) *heap {
	return &heap{
		base:  base,
		limit: limit,
		brk:   base,
		live:  make(map[int64]int64),
	}
}

// alloc returns the address of a block of at least n bytes, or 0 when the
// heap is exhausted.
func (h *heap) alloc(n int64) int64 {
	if n < 0 || n > h.limit-h.base {
		return 0
	}
	size := (n + heapAlign - 1) &^ (heapAlign - 1)
	if size == 0 {
		size = heapAlign
	}

	for i, s := range h.free {
		if s.size < size {
			continue
		}
		addr := s.addr
		if s.size == size {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = span{addr: s.addr + size, size: s.size - size}
		}
		h.live[addr] = size
		return addr
	}

	if h.brk+size > h.limit || h.brk+size < h.brk {
		return 0
	}
	addr := h.brk
	h.brk += size
	h.live[addr] = size
	return addr
}

// release returns a block to the free list. Unknown addresses, including
// NULL, are ignored.
func (h *heap) release(addr int64) {
	size, ok := h.live[addr]
	if !ok {
		return
	}
	delete(h.live, addr)

	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].addr > addr })
	h.free = append(h.free, span{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = span{addr: addr, size: size}

	// merge with successor, then predecessor
	if i+1 < len(h.free) && h.free[i].addr+h.free[i].size == h.free[i+1].addr {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].addr+h.free[i-1].size == h.free[i].addr {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}

	// give the tail back to the break
	if n := len(h.free); n > 0 && h.free[n-1].addr+h.free[n-1].size == h.brk {
		h.brk = h.free[n-1].addr
		h.free = h.free[:n-1]
	}
}

func (h *heap) inUse() int64 {
	var n int64
	for _, size := range h.live {
		n += size
	}
	return n
}
