// Package fault implements vm_fault, the TLB-miss and TLB-modified trap
// entry point described in spec.md section 4.5.
package fault

import (
	"r3kvm/addrspace"
	"r3kvm/defs"
	"r3kvm/pagetable"
	"r3kvm/tlb"
)

/// Kind identifies the trap that drove the fault, mirroring
/// VM_FAULT_READ/VM_FAULT_WRITE/VM_FAULT_READONLY.
type Kind int

const (
	Read     Kind = iota /// TLB miss on a load
	Write                /// TLB miss on a store
	ReadOnly             /// store to a page the TLB reports as not dirty
)

/// Fault resolves one page fault against as, the MIPS R3000-style
/// two-level page table it owns, and refills the TLB on success.
//
// as may be nil: that represents both "no current process" and "no
// address space" from spec.md section 4.5 step 4, since a *addrspace.T
// receiver is never itself the absent case the caller must guard
// against — callers (see package proc) pass proc.Current() directly.
func Fault(as *addrspace.T, t *tlb.T, kind Kind, faultAddr uint32) defs.Err_t {
	if faultAddr == 0 {
		return defs.EFAULT
	}

	switch kind {
	case ReadOnly:
		return defs.EFAULT
	case Read, Write:
		// continue below
	default:
		return defs.EINVAL
	}

	if as == nil || as.PT == nil || as.Regions.Len() == 0 {
		return defs.EFAULT
	}

	faultPage := faultAddr & pagetable.PageMask
	rgn, regionOK := as.Lookup(faultAddr)

	entry, present := as.PT.Lookup(faultPage)
	if present && regionOK {
		t.Raise()
		t.WriteRandom(faultPage, entry)
		t.Lower()
		return 0
	}

	// Either there is no translation, or a stale translation survives a
	// region that no longer exists; both fall through to the region
	// check below, which is the asymmetry spec.md section 4.5 calls out
	// explicitly.
	if !regionOK {
		return defs.EFAULT
	}

	f, ok := as.Alloc.Alloc()
	if !ok {
		return defs.ENOMEM
	}

	flags := pagetable.Valid
	if rgn.Perm.Writable() {
		flags |= pagetable.Dirty
	}
	entrylo := pagetable.MakeEntryLo(f, flags)

	if err := as.PT.Install(faultPage, entrylo); err != 0 {
		as.Alloc.Free(f)
		return defs.EFAULT
	}

	t.Raise()
	t.WriteRandom(faultPage, entrylo)
	t.Lower()
	return 0
}
