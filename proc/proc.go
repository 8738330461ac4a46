// Package proc is a minimal stand-in for the process descriptor and its
// current-process accessor (proc_getas() in spec.md section 6). The
// real process descriptor, scheduler, and thread model are named
// out of scope by spec.md section 1; this package exists only to give
// Activate/Deactivate/vm_fault a "current address space, or none"
// source to call, the same role biscuit's Proc_t plays for Vm_t.
package proc

import (
	"sync"

	"r3kvm/addrspace"
	"r3kvm/defs"
	"r3kvm/fault"
	"r3kvm/tlb"
)

var (
	mu      sync.Mutex
	current *addrspace.T
)

/// Current returns the running thread's address space, or nil for a
/// kernel thread with none, mirroring proc_getas().
func Current() *addrspace.T {
	mu.Lock()
	defer mu.Unlock()
	return current
}

/// SetCurrent installs as as the current thread's address space. Test
/// harnesses and cmd/vmctl use this in place of a real scheduler
/// context switch.
func SetCurrent(as *addrspace.T) {
	mu.Lock()
	defer mu.Unlock()
	current = as
}

/// Activate is as_activate: it fetches the current address space and,
/// if one exists, invalidates the TLB. A kernel thread with no address
/// space leaves the prior address space's translations in place, per
/// spec.md section 4.3.
func Activate(t *tlb.T) {
	as := Current()
	if as == nil {
		return
	}
	as.Activate(t)
}

/// Deactivate is as_deactivate, identical in behavior to Activate per
/// spec.md section 4.3.
func Deactivate(t *tlb.T) {
	as := Current()
	if as == nil {
		return
	}
	as.Deactivate(t)
}

/// VMFault is vm_fault: it resolves a page fault against the current
/// thread's address space. A nil current address space covers both "no
/// current process" and "no address space" from spec.md section 4.5
/// step 4, since fault.Fault already treats a nil receiver as EFAULT.
func VMFault(t *tlb.T, kind fault.Kind, faultAddr uint32) defs.Err_t {
	return fault.Fault(Current(), t, kind, faultAddr)
}
