// Package region implements the per-address-space list of defined
// virtual memory ranges described in spec.md section 4.1.
package region

import "r3kvm/defs"

/// Perm is a permission bitmask. spec.md section 9 flags that the
/// original source ORs readable/writeable/executable into one
/// undifferentiated bit; this implementation keeps the individual PF_R/
/// PF_W/PF_X bits distinct, as spec.md section 4.1 requires, using the
/// same bit positions the OS/161 ELF loader's PF_* flags occupy.
type Perm uint8

const (
	PF_X Perm = 1 << 0 /// executable
	PF_W Perm = 1 << 1 /// writable
	PF_R Perm = 1 << 2 /// readable
)

/// Readable, Writable, and Executable report individual permission bits.
func (p Perm) Readable() bool   { return p&PF_R != 0 }
func (p Perm) Writable() bool   { return p&PF_W != 0 }
func (p Perm) Executable() bool { return p&PF_X != 0 }

/// Region is a half-open virtual range [Base, Base+Size) with a
/// currently-enforced permission set and the permission set to restore
/// once a load-phase override ends.
type Region struct {
	Base      uint32
	Size      uint32
	Perm      Perm
	SavedPerm Perm
}

/// Contains reports whether vaddr falls within this region's half-open
/// range.
func (r *Region) Contains(vaddr uint32) bool {
	return vaddr >= r.Base && vaddr < r.Base+r.Size
}

/// List is the ordered set of regions defined in one address space.
/// Newest-first insertion order matches the source's linked list; a
/// plain slice is the idiomatic Go substitute spec.md section 9 calls
/// out as acceptable.
type List struct {
	regions []*Region
}

/// Define adds a new region at the front of the list (newest first)
/// with Perm = SavedPerm = perm. No overlap
/// check is performed: spec.md section 3 explicitly makes this a
/// non-goal, left to well-behaved callers (the ELF loader and stack
/// setup).
func (l *List) Define(base, size uint32, perm Perm) (*Region, defs.Err_t) {
	r := &Region{Base: base, Size: size, Perm: perm, SavedPerm: perm}
	l.regions = append([]*Region{r}, l.regions...)
	return r, 0
}

/// Lookup performs a linear scan for the first region containing vaddr.
/// O(n) over regions, acceptable per spec.md section 4.1 because user
/// processes have a handful of regions.
func (l *List) Lookup(vaddr uint32) (*Region, bool) {
	for _, r := range l.regions {
		if r.Contains(vaddr) {
			return r, true
		}
	}
	return nil, false
}

/// All returns every defined region, in list order, for callers
/// (complete_load's hardening pass, fork's clone) that must visit all of
/// them.
func (l *List) All() []*Region {
	return l.regions
}

/// Len reports the number of defined regions.
func (l *List) Len() int {
	return len(l.regions)
}

/// Clone deep-copies every region, preserving both Perm and SavedPerm,
/// for addrspace.Copy's fork path.
func (l *List) Clone() *List {
	out := &List{regions: make([]*Region, len(l.regions))}
	for i, r := range l.regions {
		cp := *r
		out.regions[i] = &cp
	}
	return out
}
