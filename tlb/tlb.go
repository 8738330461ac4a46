// Package tlb simulates the MIPS R3000 software-managed translation
// lookaside buffer: the tlb_write/tlb_random/splhigh/splx contract that
// spec.md section 6 lists as consumed, not owned, by the VM core.
package tlb

import (
	"math/rand/v2"
	"sync"

	"r3kvm/pagetable"
)

/// NumSlots is the hardware-defined TLB size. 64 is the typical R3000
/// count named in spec.md section 6.
const NumSlots = 64

type slot struct {
	hi    uint32
	lo    pagetable.EntryLo
	valid bool
}

/// T is a simulated TLB instance. Real hardware has exactly one per CPU;
/// spec.md section 5 notes this kernel configuration is uniprocessor, so
/// one instance models the whole machine.
type T struct {
	mu      sync.Mutex
	slots   [NumSlots]slot
	raised  bool
}

/// New returns a TLB with every slot invalid, as after a hardware reset.
func New() *T {
	return &T{}
}

/// Raise acquires the critical section that brackets TLB mutation,
/// simulating splhigh(). It must be paired with Lower, mirroring the
/// nesting contract spec.md section 6 requires of splhigh/splx and the
/// Lock_pmap/Unlock_pmap pattern biscuit's vm package uses for the same
/// purpose.
func (t *T) Raise() {
	if t.raised {
		panic("tlb: splhigh called while already raised")
	}
	t.mu.Lock()
	t.raised = true
}

/// Lower restores the previous interrupt level, simulating splx().
func (t *T) Lower() {
	if !t.raised {
		panic("tlb: splx called without a matching splhigh")
	}
	t.raised = false
	t.mu.Unlock()
}

func (t *T) assertRaised() {
	if !t.raised {
		panic("tlb: mutation requires Raise to be held")
	}
}

/// WriteAt installs (hi, lo) into a specific slot. Must be called with
/// Raise held.
func (t *T) WriteAt(idx int, hi uint32, lo pagetable.EntryLo) {
	t.assertRaised()
	t.slots[idx] = slot{hi: hi, lo: lo, valid: true}
}

/// WriteRandom installs (hi, lo) into a hardware-chosen slot, simulating
/// tlb_random. Must be called with Raise held.
func (t *T) WriteRandom(hi uint32, lo pagetable.EntryLo) {
	t.assertRaised()
	idx := rand.IntN(NumSlots)
	t.slots[idx] = slot{hi: hi, lo: lo, valid: true}
}

/// InvalidateAll writes an invalid entry into every slot under one
/// critical section, the behavior addrspace.Activate, Deactivate, and
/// CompleteLoad all require (spec.md section 4.3, section 4.4).
func (t *T) InvalidateAll() {
	t.Raise()
	defer t.Lower()
	for i := range t.slots {
		t.slots[i] = slot{}
	}
}

/// Probe reports whether vpage (a page-aligned virtual address) has a
/// valid translation currently loaded, and what it maps to. It exists
/// for tests that want to observe TLB state directly; the fault handler
/// itself never probes the TLB, only refills it.
func (t *T) Probe(vpage uint32) (pagetable.EntryLo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.slots {
		if s.valid && s.hi == vpage {
			return s.lo, true
		}
	}
	return 0, false
}

/// Shootdown is vm_tlbshootdown: structurally unreachable in this
/// uniprocessor configuration, per spec.md section 5 and section 7. It
/// exists only so the core's exposed surface matches spec.md section 6
/// exactly.
func Shootdown() {
	panic("tlb: shootdown requested on a uniprocessor configuration")
}
