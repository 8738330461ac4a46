// Package pagetable implements the two-level sparse software page table
// described in spec.md section 4.2: a 2048-entry top level, each
// pointing to an optional 512-entry leaf of TLB-format entrylo words.
package pagetable

import (
	"r3kvm/defs"
	"r3kvm/frame"
)

/// TopBits and BotBits split a 32-bit virtual address into page-table
/// indices; the remaining low 12 bits are the in-page offset.
const (
	TopBits  = 11
	BotBits  = 9
	TopSlots = 1 << TopBits /// 2048
	BotSlots = 1 << BotBits /// 512
	TopShift = 21
	BotShift = 12
	BotMask  = BotSlots - 1 /// 0x1FF
)

/// PageMask clears the in-page offset from a virtual address, producing
/// the containing page's base address.
const PageMask uint32 = ^(uint32(frame.PGSIZE) - 1)

/// EntryLo is a TLB entry-low word: the physical frame number in the top
/// 20 bits plus the R3000 hardware bits (NoCache, Dirty, Valid, Global).
/// A value of 0 means "no mapping".
type EntryLo uint32

const (
	FrameShift = frame.PGSHIFT
	FrameMask  EntryLo = 0xFFFFF000
	NoCache    EntryLo = 1 << 11
	Dirty      EntryLo = 1 << 10
	Valid      EntryLo = 1 << 9
	Global     EntryLo = 1 << 8
)

/// MakeEntryLo packs a frame number and flag bits into an entrylo word.
func MakeEntryLo(f frame.Frame, flags EntryLo) EntryLo {
	return EntryLo(uint32(f)<<FrameShift) | flags
}

/// FrameNumber extracts the physical frame number from an entrylo word.
func (e EntryLo) FrameNumber() frame.Frame {
	return frame.Frame((uint32(e) & uint32(FrameMask)) >> FrameShift)
}

/// IsValid reports whether the entry's Valid bit is set.
func (e EntryLo) IsValid() bool { return e&Valid != 0 }

/// IsDirty reports whether the entry's Dirty bit is set; on this
/// architecture Dirty doubles as the write-permission gate (spec.md
/// section 9, "Dirty-as-writability encoding").
func (e EntryLo) IsDirty() bool { return e&Dirty != 0 }

/// Decompose splits a page-aligned virtual address into its top-level
/// and bottom-level page-table indices.
func Decompose(va uint32) (top, bot int) {
	top = int(va >> TopShift)
	bot = int((va >> BotShift) & BotMask)
	return
}

/// Table is the two-level sparse page table owned by exactly one
/// address space. A nil leaf slice means "no second-level array
/// allocated"; a present leaf's 512 entries default to 0, meaning
/// unmapped.
type Table struct {
	top [TopSlots]*[BotSlots]EntryLo
}

/// Create allocates an empty table with every top-level slot absent.
/// Unlike the original's kmalloc-based create_pagetable, this can never
/// fail: Go's allocator does not return nil on exhaustion, it panics the
/// process, so there is no OUT_OF_MEMORY path to surface here. The
/// page-table core's only realistic allocation failure is a physical
/// frame (see fault.Fault and addrspace.Copy), which is exercised through
/// frame.Allocator instead.
func Create() *Table {
	return &Table{}
}

/// Lookup returns the entrylo mapped at va, or (0, false) if the top
/// slot is absent or the leaf entry is zero.
func (t *Table) Lookup(va uint32) (EntryLo, bool) {
	top, bot := Decompose(va)
	leaf := t.top[top]
	if leaf == nil {
		return 0, false
	}
	e := leaf[bot]
	if e == 0 {
		return 0, false
	}
	return e, true
}

/// Install places entrylo at va, allocating the leaf array on demand.
/// It fails with EFAULT if a non-zero entry already occupies the slot —
/// the source's ALREADY_MAPPED condition, which spec.md section 7 says
/// is surfaced to callers as EFAULT rather than as a distinct code.
func (t *Table) Install(va uint32, entrylo EntryLo) defs.Err_t {
	top, bot := Decompose(va)
	if t.top[top] == nil {
		t.top[top] = &[BotSlots]EntryLo{}
	}
	leaf := t.top[top]
	if leaf[bot] != 0 {
		return defs.EFAULT
	}
	leaf[bot] = entrylo
	return 0
}

/// Remove clears the entry at va without touching the backing frame,
/// returning the entry that was present (if any). Destroy and fork's
/// failure-unwind path do not call it.
func (t *Table) Remove(va uint32) (EntryLo, bool) {
	top, bot := Decompose(va)
	leaf := t.top[top]
	if leaf == nil {
		return 0, false
	}
	e := leaf[bot]
	if e == 0 {
		return 0, false
	}
	leaf[bot] = 0
	return e, true
}

/// ForEachPresent iterates every non-zero leaf entry, invoking f with
/// the reconstructed virtual address and a pointer to the entry so
/// callers (complete_load's hardening pass, fork's duplication pass)
/// can rewrite it in place.
func (t *Table) ForEachPresent(f func(va uint32, entry *EntryLo)) {
	for top, leaf := range t.top {
		if leaf == nil {
			continue
		}
		for bot := range leaf {
			if leaf[bot] == 0 {
				continue
			}
			va := uint32(top<<TopShift) | uint32(bot<<BotShift)
			f(va, &leaf[bot])
		}
	}
}

/// Destroy frees every physical frame referenced by a present leaf
/// entry via alloc, the simulated analog of destroy_pagetable walking
/// every leaf and calling free_kpages. The top-level and leaf arrays
/// themselves need no explicit free: Go's garbage collector reclaims
/// them once the Table becomes unreachable.
func (t *Table) Destroy(alloc frame.Allocator) {
	t.ForEachPresent(func(va uint32, entry *EntryLo) {
		alloc.Free(entry.FrameNumber())
	})
}
