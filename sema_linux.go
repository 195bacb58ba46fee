//go:build linux

package shmsync

import (
	"sync/atomic"
	"time"
	"unsafe"
)

// futexSema is a counting signal backed by a single futex word. When the
// word lives inside a shared memory region, posts and waits coordinate
// across process boundaries.
type futexSema struct {
	value atomic.Uint32
}

func (s *futexSema) word() *uint32 {
	return (*uint32)(unsafe.Pointer(&s.value))
}

// post makes n tokens available and wakes up to n waiters.
func (s *futexSema) post(n int) bool {
	if n <= 0 {
		return true
	}
	s.value.Add(uint32(n))
	return futexWake(s.word(), n) == nil
}

// wait consumes one token, blocking for at most timeout (negative means
// forever, zero polls once). It reports whether a token was consumed.
func (s *futexSema) wait(timeout time.Duration) bool {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		for {
			v := s.value.Load()
			if v == 0 {
				break
			}
			if s.value.CompareAndSwap(v, v-1) {
				return true
			}
		}
		remaining := Forever
		if timeout >= 0 {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return false
			}
		}
		// EINTR, EAGAIN and ETIMEDOUT all fall through to re-check the
		// value against the deadline.
		futexWait(s.word(), 0, remaining)
	}
}

// futexMutex is a process-shared mutex over a single futex word, usable as
// the internal lock of a shared control block. It implements sync.Locker.
// The zero value is an unlocked mutex.
type futexMutex struct {
	state atomic.Uint32
}

const (
	mutexFree      = 0
	mutexLocked    = 1
	mutexContended = 2
)

func (m *futexMutex) word() *uint32 {
	return (*uint32)(unsafe.Pointer(&m.state))
}

// Lock acquires the mutex, parking on the futex under contention.
func (m *futexMutex) Lock() {
	if m.state.CompareAndSwap(mutexFree, mutexLocked) {
		return
	}
	for m.state.Swap(mutexContended) != mutexFree {
		futexWait(m.word(), mutexContended, Forever)
	}
}

// Unlock releases the mutex and wakes one parked acquirer, if any.
func (m *futexMutex) Unlock() {
	if m.state.Swap(mutexFree) == mutexContended {
		futexWake(m.word(), 1)
	}
}
