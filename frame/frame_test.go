package frame

import "testing"

func TestAllocIsZeroed(t *testing.T) {
	p := NewPool(4)
	f, ok := p.Alloc()
	if !ok {
		t.Fatal("Alloc failed on a fresh pool")
	}
	b := p.Bytes(f)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d = %d, want 0", i, v)
			break
		}
	}
}

func TestAllocExhaustion(t *testing.T) {
	p := NewPool(2)
	if _, ok := p.Alloc(); !ok {
		t.Fatal("first alloc should succeed")
	}
	if _, ok := p.Alloc(); !ok {
		t.Fatal("second alloc should succeed")
	}
	if _, ok := p.Alloc(); ok {
		t.Fatal("third alloc should fail: pool exhausted")
	}
}

func TestFreeThenRealloc(t *testing.T) {
	p := NewPool(1)
	f, _ := p.Alloc()
	if got := p.Outstanding(); got != 1 {
		t.Fatalf("Outstanding() = %d, want 1", got)
	}
	p.Free(f)
	if got := p.Outstanding(); got != 0 {
		t.Fatalf("Outstanding() = %d, want 0", got)
	}
	if _, ok := p.Alloc(); !ok {
		t.Fatal("alloc after free should succeed")
	}
}

func TestDoubleFreePanics(t *testing.T) {
	p := NewPool(1)
	f, _ := p.Alloc()
	p.Free(f)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on double free")
		}
	}()
	p.Free(f)
}

func TestDataIsIndependentAcrossFrames(t *testing.T) {
	p := NewPool(2)
	a, _ := p.Alloc()
	b, _ := p.Alloc()
	p.Bytes(a)[0] = 0xAB
	p.Bytes(b)[0] = 0xCD
	if p.Bytes(a)[0] != 0xAB {
		t.Fatal("writing frame b corrupted frame a")
	}
}
