// Package addrspace implements the per-process address space: the
// aggregate of a page table and a region list described in spec.md
// section 4.3, plus the load-phase hooks of section 4.4.
package addrspace

import (
	"sync"

	"r3kvm/defs"
	"r3kvm/frame"
	"r3kvm/pagetable"
	"r3kvm/region"
	"r3kvm/tlb"
)

/// UserStackTop is the fixed architectural user-stack top address.
const UserStackTop uint32 = 0x80000000

/// StackPages is the number of pages reserved for the user stack.
const StackPages = 16

/// StackSize is the user stack's size in bytes (16 pages, 65536 bytes).
const StackSize = uint32(StackPages) * uint32(frame.PGSIZE)

/// T is a process address space: exactly one page table, one region
/// list, and a cached stack-top pointer. The embedded mutex mirrors the
/// shape of biscuit's Vm_t, but none of this package's methods (nor
/// fault.Fault) acquire it; spec.md section 5 notes the fault handler is
/// not reentrant for a single address space in this kernel's scheduling
/// model.
type T struct {
	sync.Mutex

	PT      *pagetable.Table
	Regions region.List
	Alloc   frame.Allocator

	StackTop uint32
}

/// Bootstrap is vm_bootstrap: a no-op, per spec.md section 9 ("no global
/// state is required by the current design").
func Bootstrap() {}

/// Create allocates an address space with an empty page table, no
/// regions, and no stack pointer. Unlike as_create in the source, this
/// cannot fail: see pagetable.Create's doc comment for why Go has no
/// OUT_OF_MEMORY path at struct-allocation granularity. alloc is the
/// physical-frame collaborator this address space's page table will
/// draw from and return frames to.
func Create(alloc frame.Allocator) *T {
	return &T{
		PT:    pagetable.Create(),
		Alloc: alloc,
	}
}

/// Destroy frees every resident physical frame, via the page table, and
/// releases the address space's structures to the garbage collector.
/// It panics on a nil receiver rather than tolerating one: spec.md
/// section 9 records that the source's as_destroy never tolerated a nil
/// as, and callers must guarantee non-nil.
func (as *T) Destroy() {
	if as == nil {
		panic("addrspace: Destroy called on a nil address space")
	}
	as.PT.Destroy(as.Alloc)
}

/// DefineRegion adds a new region, at the front of the region list, with
/// Perm = SavedPerm = perm.
func (as *T) DefineRegion(base, size uint32, perm region.Perm) (*region.Region, defs.Err_t) {
	return as.Regions.Define(base, size, perm)
}

/// DefineStack defines the 16-page stack region ending at
/// UserStackTop with Read+Write permission and returns the stack top as
/// the initial stack pointer.
func (as *T) DefineStack() (uint32, defs.Err_t) {
	base := UserStackTop - StackSize
	if _, err := as.Regions.Define(base, StackSize, region.PF_R|region.PF_W); err != 0 {
		return 0, err
	}
	as.StackTop = UserStackTop
	return UserStackTop, 0
}

/// Lookup finds the region (if any) containing vaddr.
func (as *T) Lookup(vaddr uint32) (*region.Region, bool) {
	return as.Regions.Lookup(vaddr)
}

/// Activate invalidates every TLB slot, the same unconditional sweep
/// as_activate performs once proc_getas() has confirmed a non-nil
/// address space. The nil-task short circuit named in spec.md section
/// 4.3 belongs to the caller (see package proc), since a *T receiver is
/// never itself the "no address space" case.
func (as *T) Activate(t *tlb.T) {
	t.InvalidateAll()
}

/// Deactivate performs the same TLB invalidation as Activate. The
/// source implements both identically; spec.md section 4.3 preserves
/// that symmetry rather than inventing a distinct deactivate behavior.
func (as *T) Deactivate(t *tlb.T) {
	t.InvalidateAll()
}

/// PrepareLoad saves every region's current permission into SavedPerm
/// and grants Read+Write+Execute everywhere, letting the ELF loader
/// write into segments (e.g. text) that are not ordinarily writable.
/// It fails with EFAULT if as is nil or has no regions defined yet —
/// the literal translation of the source's "as->regions == NULL" check,
/// which in a linked-list representation means "no regions".
func (as *T) PrepareLoad() defs.Err_t {
	if as == nil || as.Regions.Len() == 0 {
		return defs.EFAULT
	}
	for _, r := range as.Regions.All() {
		r.SavedPerm = r.Perm
		r.Perm = region.PF_R | region.PF_W | region.PF_X
	}
	return 0
}

/// CompleteLoad restores every region's permission from SavedPerm, then
/// hardens every resident page-table entry: each present leaf is
/// rebuilt from its frame number plus Valid, with Dirty set iff the
/// entry's containing region is now writable. A page whose virtual
/// address falls in no region is left untouched, matching the source's
/// silent fallthrough. Finally the TLB is invalidated so no stale
/// translation can leak the temporary writable state.
func (as *T) CompleteLoad(t *tlb.T) defs.Err_t {
	if as == nil || as.Regions.Len() == 0 {
		return defs.EFAULT
	}
	for _, r := range as.Regions.All() {
		r.Perm = r.SavedPerm
	}
	as.PT.ForEachPresent(func(va uint32, entry *pagetable.EntryLo) {
		rgn, ok := as.Regions.Lookup(va)
		if !ok {
			return
		}
		newEntry := pagetable.MakeEntryLo(entry.FrameNumber(), pagetable.Valid)
		if rgn.Perm.Writable() {
			newEntry |= pagetable.Dirty
		}
		*entry = newEntry
	})
	t.InvalidateAll()
	return 0
}

/// Copy implements fork: a fresh address space with every region
/// cloned (preserving Perm and SavedPerm) and every resident page
/// physically duplicated into a freshly allocated frame, as spec.md
/// section 4.3 and section 1's non-goals require (no copy-on-write, no
/// sharing). On any allocation failure the partially built address
/// space is unwound: every frame copy already made for the child is
/// freed and (nil, ENOMEM) is returned. This corrects the known source
/// bug named in spec.md section 7, where as_copy leaks every resource
/// allocated before the failure.
func (as *T) Copy(alloc frame.Allocator) (*T, defs.Err_t) {
	child := Create(alloc)
	child.Regions = *as.Regions.Clone()
	child.StackTop = as.StackTop

	var allocated []frame.Frame
	unwind := func() {
		for _, f := range allocated {
			alloc.Free(f)
		}
	}

	var ferr defs.Err_t
	as.PT.ForEachPresent(func(va uint32, entry *pagetable.EntryLo) {
		if ferr != 0 {
			return
		}
		newFrame, ok := alloc.Alloc()
		if !ok {
			ferr = defs.ENOMEM
			return
		}
		allocated = append(allocated, newFrame)

		src := alloc.Bytes(entry.FrameNumber())
		dst := alloc.Bytes(newFrame)
		*dst = *src

		flags := *entry & (pagetable.Valid | pagetable.Dirty | pagetable.Global | pagetable.NoCache)
		newEntry := pagetable.MakeEntryLo(newFrame, flags)
		if err := child.PT.Install(va, newEntry); err != 0 {
			ferr = err
			return
		}
	})

	if ferr != 0 {
		unwind()
		return nil, ferr
	}
	return child, 0
}
