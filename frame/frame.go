// Package frame is the simulated physical-frame allocator. It stands in
// for the host kernel's alloc_kpages/free_kpages/PADDR_TO_KVADDR contract
// (spec.md section 6), which the virtual-memory core only consumes and
// never implements itself.
package frame

import (
	"fmt"
	"sync"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// Frame identifies a physical page by frame number, not byte address.
/// It packs directly into the top 20 bits of a MIPS EntryLo word.
type Frame uint32

/// Allocator abstracts physical-frame allocation so that pagetable,
/// addrspace, and fault can be tested against a fake without pulling in
/// a full Pool.
type Allocator interface {
	Alloc() (Frame, bool)
	Free(Frame)
	Bytes(Frame) *[PGSIZE]byte
}

/// Pool is a fixed-size arena of physical pages with a free list, the
/// simulated analog of biscuit's Physmem_t. Unlike Physmem_t this pool
/// carries no refcounts: spec.md's non-goals exclude shared pages, so a
/// frame has exactly one owner at a time and Free always reclaims it.
type Pool struct {
	mu    sync.Mutex
	pages [][PGSIZE]byte
	free  []Frame
	used  int
}

/// NewPool reserves capacity frames of backing storage, all initially
/// free. Mirrors mem.Phys_init's up-front reservation.
func NewPool(capacity int) *Pool {
	p := &Pool{
		pages: make([][PGSIZE]byte, capacity),
		free:  make([]Frame, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.free[i] = Frame(capacity - 1 - i)
	}
	return p
}

/// Alloc removes a frame from the free list and zero-fills it, mirroring
/// vm_fault's bzero after alloc_kpages. Returns false if the pool is
/// exhausted.
func (p *Pool) Alloc() (Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return 0, false
	}
	n := len(p.free) - 1
	f := p.free[n]
	p.free = p.free[:n]
	p.used++
	p.pages[f] = [PGSIZE]byte{}
	return f, true
}

/// Free returns a frame to the pool. It panics on a double free, the
/// same "XXXPANIC" discipline biscuit's mem.go uses for refcount
/// underflow.
func (p *Pool) Free(f Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ff := range p.free {
		if ff == f {
			panic("frame: double free")
		}
	}
	p.free = append(p.free, f)
	p.used--
	if p.used < 0 {
		panic("frame: negative outstanding count")
	}
}

/// Bytes returns the direct-mapped backing storage for a frame, the
/// simulated analog of Physmem_t.Dmap.
func (p *Pool) Bytes(f Frame) *[PGSIZE]byte {
	return &p.pages[f]
}

/// Outstanding reports the number of frames currently allocated. Used by
/// the destroy-reclaims-all property test (spec.md section 8, property 1).
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

/// Capacity reports the total number of frames the pool manages.
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

/// Report returns a one-line summary of pool occupancy for the caller to
/// print, in the fmt-as-kprintf style mem.Phys_init uses for its boot
/// message.
func (p *Pool) Report() string {
	return fmt.Sprintf("frame pool: %d/%d frames in use", p.Outstanding(), p.Capacity())
}
