package shmsync

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// ringHeader holds the ring's read and write positions. The counters grow
// monotonically and wrap naturally in uint32 arithmetic; used space is
// always tail - head, so no slot is wasted distinguishing full from empty.
// Atomic stores keep the positions visible to other processes mapping the
// same bytes; mutual exclusion is the owning channel's job.
//
// The data capacity must be a power of two: position-to-index mapping masks
// the counters, and masking is the only mapping that stays continuous when
// a counter wraps past 2^32.
type ringHeader struct {
	head atomic.Uint32
	tail atomic.Uint32
}

const ringHeaderSize = int(unsafe.Sizeof(ringHeader{}))

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// ring is a bounded byte queue laid out in caller-provided memory: a
// ringHeader followed by the data area. It performs no locking; callers
// serialize access with an external lock and check free/used before
// writing or reading.
type ring struct {
	hdr  *ringHeader
	data []byte
}

// ringAt interprets mem as a ring buffer. The data capacity is
// len(mem) - ringHeaderSize, and must be a power of two.
func ringAt(mem []byte) (*ring, error) {
	if len(mem) <= ringHeaderSize {
		return nil, fmt.Errorf("shmsync: ring needs more than %d bytes, have %d", ringHeaderSize, len(mem))
	}
	capacity := len(mem) - ringHeaderSize
	if capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("shmsync: ring capacity %d is not a power of two", capacity)
	}
	ptr := unsafe.Pointer(&mem[0])
	if uintptr(ptr)%4 != 0 {
		return nil, fmt.Errorf("shmsync: ring memory is not 4-byte aligned")
	}
	return &ring{
		hdr:  (*ringHeader)(ptr),
		data: mem[ringHeaderSize:],
	}, nil
}

// capacity returns the total data capacity in bytes.
func (r *ring) capacity() int {
	return len(r.data)
}

// used returns the number of unread bytes.
func (r *ring) used() int {
	return int(r.hdr.tail.Load() - r.hdr.head.Load())
}

// free returns the number of writable bytes.
func (r *ring) free() int {
	return r.capacity() - r.used()
}

// write appends p to the ring. The caller must have verified free() >=
// len(p) while holding the external lock.
func (r *ring) write(p []byte) {
	tail := r.hdr.tail.Load()
	idx := int(tail & uint32(len(r.data)-1))
	n := copy(r.data[idx:], p)
	copy(r.data, p[n:])
	r.hdr.tail.Store(tail + uint32(len(p)))
}

// read fills p from the ring. The caller must have verified used() >=
// len(p) while holding the external lock.
func (r *ring) read(p []byte) {
	head := r.hdr.head.Load()
	idx := int(head & uint32(len(r.data)-1))
	n := copy(p, r.data[idx:])
	copy(p[n:], r.data)
	r.hdr.head.Store(head + uint32(len(p)))
}
