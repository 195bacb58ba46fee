//go:build linux

package shmsync

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

// controlBlock is the fixed-layout record a shared-memory wait point
// occupies inside a mapped region: the internal lock, the two futex-backed
// signals, and the bookkeeping records. Every field is either a futex word
// or an atomic value, so the zero-filled memory of a fresh region is a
// valid, open wait point.
type controlBlock struct {
	mu      futexMutex
	sema    futexSema
	hand    futexSema
	counter WaitCounter
	flags   WaitFlags
}

// ControlBlockSize is the number of bytes a shared control block occupies.
// Hosts placing several wait points in one region space them by at least
// this much, keeping controlBlockAlign alignment.
const ControlBlockSize = int(unsafe.Sizeof(controlBlock{}))

const controlBlockAlign = 8

// ShmControl is a Control whose records live inside caller-provided mapped
// memory. Any process mapping the same bytes can drive the same wait point.
type ShmControl struct {
	block *controlBlock
}

// ControlAt interprets the start of mem as a shared control block. mem is
// typically a slice of a Region's bytes; it must hold at least
// ControlBlockSize bytes and be 8-byte aligned. The memory is used in
// place, not copied.
func ControlAt(mem []byte) (*ShmControl, error) {
	if len(mem) < ControlBlockSize {
		return nil, fmt.Errorf("shmsync: control block needs %d bytes, have %d", ControlBlockSize, len(mem))
	}
	ptr := unsafe.Pointer(&mem[0])
	if uintptr(ptr)%controlBlockAlign != 0 {
		return nil, fmt.Errorf("shmsync: control block memory is not %d-byte aligned", controlBlockAlign)
	}
	return &ShmControl{block: (*controlBlock)(ptr)}, nil
}

// Counter returns the wait point's registration bookkeeping.
func (c *ShmControl) Counter() *WaitCounter {
	return &c.block.counter
}

// Flags returns the wait point's status bits.
func (c *ShmControl) Flags() *WaitFlags {
	return &c.block.flags
}

// Locker returns the internal bookkeeping lock.
func (c *ShmControl) Locker() sync.Locker {
	return &c.block.mu
}

// SemaWait consumes one wake token, bounded by timeout.
func (c *ShmControl) SemaWait(timeout time.Duration) bool {
	return c.block.sema.wait(timeout)
}

// SemaPost makes n wake tokens available.
func (c *ShmControl) SemaPost(n int) bool {
	return c.block.sema.post(n)
}

// HandshakeWait consumes one acknowledgment, bounded by timeout.
func (c *ShmControl) HandshakeWait(timeout time.Duration) bool {
	return c.block.hand.wait(timeout)
}

// HandshakePost makes n acknowledgments available.
func (c *ShmControl) HandshakePost(n int) bool {
	return c.block.hand.post(n)
}
