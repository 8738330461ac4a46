package proc

import (
	"testing"

	"r3kvm/addrspace"
	"r3kvm/fault"
	"r3kvm/frame"
	"r3kvm/region"
	"r3kvm/tlb"
)

func TestVMFaultWithNoCurrentAddressSpace(t *testing.T) {
	SetCurrent(nil)
	if err := VMFault(tlb.New(), fault.Read, 0x400000); err == 0 {
		t.Fatal("a fault with no current address space should fail")
	}
}

func TestVMFaultDelegatesToCurrent(t *testing.T) {
	pool := frame.NewPool(16)
	as := addrspace.Create(pool)
	as.DefineRegion(0x400000, 0x1000, region.PF_R|region.PF_X)
	SetCurrent(as)
	defer SetCurrent(nil)

	tb := tlb.New()
	if err := VMFault(tb, fault.Read, 0x400000); err != 0 {
		t.Fatalf("VMFault: %v", err)
	}
	if pool.Outstanding() != 1 {
		t.Fatalf("Outstanding() = %d, want 1", pool.Outstanding())
	}
}

func TestActivateAndDeactivateNoOpWithoutCurrent(t *testing.T) {
	SetCurrent(nil)
	tb := tlb.New()
	// Must not panic: a kernel thread with no address space is routine.
	Activate(tb)
	Deactivate(tb)
}

func TestActivateInvalidatesCurrentTLB(t *testing.T) {
	pool := frame.NewPool(16)
	as := addrspace.Create(pool)
	as.DefineRegion(0x400000, 0x1000, region.PF_R|region.PF_X)
	SetCurrent(as)
	defer SetCurrent(nil)

	tb := tlb.New()
	if err := VMFault(tb, fault.Read, 0x400000); err != 0 {
		t.Fatalf("VMFault: %v", err)
	}
	if _, ok := tb.Probe(0x400000); !ok {
		t.Fatal("expected a TLB entry after the fault")
	}
	Activate(tb)
	if _, ok := tb.Probe(0x400000); ok {
		t.Fatal("Activate should invalidate every TLB slot")
	}
}
