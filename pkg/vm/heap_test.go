package vm

import "testing"

func TestHeap_AllocRounding(t *testing.T) {
	h := newHeap(64, 64+1024)
	tests := []struct {
		n    int64
		addr int64
	}{
		{1, 64},
		{8, 80},
		{17, 96},
		{0, 128},
	}
	for _, tt := range tests {
		if got := h.alloc(tt.n); got != tt.addr {
			t.Errorf("alloc(%d) = %d, want %d", tt.n, got, tt.addr)
		}
	}
	if h.inUse() != 16+16+32+16 {
		t.Errorf("inUse = %d", h.inUse())
	}
}

func TestHeap_Exhaustion(t *testing.T) {
	h := newHeap(16, 16+64)
	if a := h.alloc(64); a != 16 {
		t.Fatalf("alloc(64) = %d, want 16", a)
	}
	if a := h.alloc(1); a != 0 {
		t.Errorf("alloc on a full heap = %d, want 0", a)
	}
	if a := h.alloc(-1); a != 0 {
		t.Errorf("alloc(-1) = %d, want 0", a)
	}
}

func TestHeap_OversizedRequestWithFreeSpan(t *testing.T) {
	h := newHeap(0, 1024)
	a := h.alloc(64)
	b := h.alloc(16)
	h.release(a)
	free := append([]span(nil), h.free...)

	for _, n := range []int64{1025, 1<<63 - 1, 1<<63 - 15} {
		if got := h.alloc(n); got != 0 {
			t.Errorf("alloc(%d) = %d, want 0", n, got)
		}
	}
	if len(h.free) != len(free) || h.free[0] != free[0] {
		t.Errorf("free list changed by a failed alloc: %v, want %v", h.free, free)
	}
	if got := h.alloc(64); got != a {
		t.Errorf("alloc(64) after failures = %d, want %d", got, a)
	}
	h.release(b)
}

func TestHeap_FreeCoalescesAndReuses(t *testing.T) {
	h := newHeap(0, 1024)
	a := h.alloc(16)
	b := h.alloc(16)
	c := h.alloc(16)
	d := h.alloc(16)

	h.release(b)
	h.release(c)
	if len(h.free) != 1 || h.free[0] != (span{addr: b, size: 32}) {
		t.Fatalf("expected one coalesced span at %d, got %v", b, h.free)
	}
	if got := h.alloc(32); got != b {
		t.Errorf("first fit should reuse %d, got %d", b, got)
	}

	h.release(d)
	if h.brk != d {
		t.Errorf("freeing the tail should lower brk to %d, got %d", d, h.brk)
	}
	h.release(a)
	h.release(a) // double free is ignored
	h.release(12345)
	if h.inUse() != 32 {
		t.Errorf("inUse = %d, want 32", h.inUse())
	}
}
