//go:build linux

package shmsync

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Raw futex operations. FUTEX_PRIVATE_FLAG is deliberately not used: the
// words these operate on may live in memory shared between processes.
const (
	futexOpWait = 0
	futexOpWake = 1
)

// futexWait blocks until the word at addr no longer holds val, bounded by
// timeout (negative means no timeout). A spurious return with nil error is
// possible; callers re-check the word and loop.
func futexWait(addr *uint32, val uint32, timeout time.Duration) error {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexOpWait),
		uintptr(val),
		uintptr(unsafe.Pointer(ts)),
		0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// futexWake wakes up to n waiters blocked on the word at addr.
func futexWake(addr *uint32, n int) error {
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexOpWake),
		uintptr(n),
		0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
