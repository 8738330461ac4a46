// Package defs holds types and constants shared across the virtual-memory
// core. It has no dependencies on the rest of the tree.
package defs

/// Err_t is a kernel-style error code. Zero means success; a non-zero
/// value identifies the failure. The core returns the constants below
/// as they are, e.g. defs.ENOMEM; unlike biscuit's vm package, it does
/// not negate them.
type Err_t int

/// Error kinds returned by the virtual-memory core. These are the only
/// failures the core produces; ALREADY_MAPPED never crosses a package
/// boundary; it is translated to EFAULT first.
const (
	EFAULT Err_t = 1 /// invalid or disallowed address
	ENOMEM Err_t = 2 /// allocation failure (frame or heap)
	EINVAL Err_t = 3 /// bad argument, e.g. unknown fault kind
)

/// String renders an error kind for logging and test failure messages.
func (e Err_t) String() string {
	switch e {
	case 0:
		return "ok"
	case EFAULT:
		return "EFAULT"
	case ENOMEM:
		return "ENOMEM"
	case EINVAL:
		return "EINVAL"
	default:
		return "Err_t(?)"
	}
}
