package addrspace_test

import (
	"testing"

	"r3kvm/addrspace"
	"r3kvm/fault"
	"r3kvm/frame"
	"r3kvm/region"
	"r3kvm/tlb"
)

const (
	textBase = 0x00400000
	textSize = 0x1000
)

func newLoadedSpace(t *testing.T, pool *frame.Pool) (*addrspace.T, *tlb.T) {
	t.Helper()
	as := addrspace.Create(pool)
	if _, err := as.DefineRegion(textBase, textSize, region.PF_R|region.PF_X); err != 0 {
		t.Fatalf("DefineRegion: %v", err)
	}
	if _, err := as.DefineStack(); err != 0 {
		t.Fatalf("DefineStack: %v", err)
	}
	tb := tlb.New()
	return as, tb
}

func TestDestroyReclaimsAllFrames(t *testing.T) {
	pool := frame.NewPool(16)
	as, tb := newLoadedSpace(t, pool)

	if err := fault.Fault(as, tb, fault.Write, textBase); err != 0 {
		t.Fatalf("fault: %v", err)
	}
	if pool.Outstanding() == 0 {
		t.Fatal("expected at least one resident frame before Destroy")
	}
	as.Destroy()
	if pool.Outstanding() != 0 {
		t.Fatalf("Outstanding() = %d after Destroy, want 0", pool.Outstanding())
	}
}

func TestForkIsIndependent(t *testing.T) {
	pool := frame.NewPool(16)
	as, tb := newLoadedSpace(t, pool)

	if err := fault.Fault(as, tb, fault.Write, textBase); err != 0 {
		t.Fatalf("fault: %v", err)
	}

	child, err := as.Copy(pool)
	if err != 0 {
		t.Fatalf("Copy: %v", err)
	}

	parentEntry, _ := as.PT.Lookup(textBase)
	childEntry, _ := child.PT.Lookup(textBase)
	if parentEntry.FrameNumber() == childEntry.FrameNumber() {
		t.Fatal("fork should physically duplicate frames, not share them")
	}

	pool.Bytes(childEntry.FrameNumber())[0] = 0xEE
	if pool.Bytes(parentEntry.FrameNumber())[0] == 0xEE {
		t.Fatal("writing the child's frame affected the parent's frame")
	}
}

func TestForkIsContentIdentical(t *testing.T) {
	pool := frame.NewPool(16)
	as, tb := newLoadedSpace(t, pool)

	if err := fault.Fault(as, tb, fault.Write, textBase); err != 0 {
		t.Fatalf("fault: %v", err)
	}
	parentEntry, _ := as.PT.Lookup(textBase)
	pool.Bytes(parentEntry.FrameNumber())[0] = 0xAB

	child, err := as.Copy(pool)
	if err != 0 {
		t.Fatalf("Copy: %v", err)
	}
	childEntry, _ := child.PT.Lookup(textBase)
	if pool.Bytes(childEntry.FrameNumber())[0] != 0xAB {
		t.Fatal("forked frame content should match the parent's at fork time")
	}
}

func TestPermissionRoundTrip(t *testing.T) {
	pool := frame.NewPool(16)
	as, tb := newLoadedSpace(t, pool)

	r, _ := as.Lookup(textBase)
	original := r.Perm

	if err := as.PrepareLoad(); err != 0 {
		t.Fatalf("PrepareLoad: %v", err)
	}
	if r.Perm != region.PF_R|region.PF_W|region.PF_X {
		t.Fatalf("PrepareLoad perm = %v, want RWX", r.Perm)
	}

	if err := fault.Fault(as, tb, fault.Write, textBase); err != 0 {
		t.Fatalf("fault during load: %v", err)
	}

	if err := as.CompleteLoad(tb); err != 0 {
		t.Fatalf("CompleteLoad: %v", err)
	}
	if r.Perm != original {
		t.Fatalf("CompleteLoad perm = %v, want restored %v", r.Perm, original)
	}

	entry, ok := as.PT.Lookup(textBase)
	if !ok {
		t.Fatal("expected the text page to still be resident after CompleteLoad")
	}
	if entry.IsDirty() {
		t.Fatal("hardened text page should not carry the Dirty bit: the region is read+execute only")
	}
}

func TestActivateInvalidatesTLB(t *testing.T) {
	pool := frame.NewPool(16)
	as, tb := newLoadedSpace(t, pool)

	if err := fault.Fault(as, tb, fault.Read, textBase); err != 0 {
		t.Fatalf("fault: %v", err)
	}
	if _, ok := tb.Probe(textBase & ^uint32(frame.PGSIZE-1)); !ok {
		t.Fatal("expected a TLB entry after a successful fault")
	}
	as.Activate(tb)
	if _, ok := tb.Probe(textBase & ^uint32(frame.PGSIZE-1)); ok {
		t.Fatal("Activate should invalidate every TLB slot")
	}
}
