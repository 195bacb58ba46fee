package shmsync

import (
	"sync"
	"time"
)

// Control supplies a Waiter with its shared state and signal primitives.
// Implementations decide where the state lives: NewLocalControl keeps it in
// process memory, ControlAt places it inside a mapped shared region.
//
// The internal lock returned by Locker serializes bookkeeping mutations
// (the pending count and the drain/post/acknowledge sequences). It is
// distinct from the external lock a WaitIf caller holds, and the two must
// never be confused.
type Control interface {
	// Counter returns the wait point's registration bookkeeping.
	Counter() *WaitCounter

	// Flags returns the wait point's status bits.
	Flags() *WaitFlags

	// Locker returns the internal lock guarding pending-count mutations.
	Locker() sync.Locker

	// SemaWait blocks until a wake token can be consumed, bounded by
	// timeout (Forever to block indefinitely, 0 to poll). It reports
	// whether a token was consumed.
	SemaWait(timeout time.Duration) bool

	// SemaPost makes n wake tokens available and reports success.
	SemaPost(n int) bool

	// HandshakeWait blocks until an acknowledgment can be consumed,
	// with the same timeout semantics as SemaWait.
	HandshakeWait(timeout time.Duration) bool

	// HandshakePost makes n acknowledgments available and reports success.
	HandshakePost(n int) bool
}

// tokenBucket is a bounded counting signal built on a buffered channel.
// The channel-based design gives lock-free post and a timed wait without
// any platform dependencies.
type tokenBucket struct {
	ch chan struct{}
}

func newTokenBucket(capacity int) *tokenBucket {
	return &tokenBucket{ch: make(chan struct{}, capacity)}
}

func (b *tokenBucket) post(n int) bool {
	for i := 0; i < n; i++ {
		select {
		case b.ch <- struct{}{}:
		default:
			return false
		}
	}
	return true
}

func (b *tokenBucket) wait(timeout time.Duration) bool {
	if timeout == 0 {
		select {
		case <-b.ch:
			return true
		default:
			return false
		}
	}
	if timeout < 0 {
		<-b.ch
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-b.ch:
		return true
	case <-t.C:
		return false
	}
}

// localTokenCapacity bounds how many unconsumed tokens a local signal can
// hold. Posts beyond the bound fail rather than block.
const localTokenCapacity = 1024

// LocalControl is an in-process Control. It implements the same interface
// as the shared-memory control block, backed by Go channels and a
// sync.Mutex, so hosts and tests can exercise the protocol without any
// platform support.
type LocalControl struct {
	counter WaitCounter
	flags   WaitFlags
	mu      sync.Mutex
	sema    *tokenBucket
	hand    *tokenBucket
}

// NewLocalControl returns a ready-to-use in-process Control. The wait point
// starts open.
func NewLocalControl() *LocalControl {
	return &LocalControl{
		sema: newTokenBucket(localTokenCapacity),
		hand: newTokenBucket(localTokenCapacity),
	}
}

// Counter returns the wait point's registration bookkeeping.
func (c *LocalControl) Counter() *WaitCounter {
	return &c.counter
}

// Flags returns the wait point's status bits.
func (c *LocalControl) Flags() *WaitFlags {
	return &c.flags
}

// Locker returns the internal bookkeeping lock.
func (c *LocalControl) Locker() sync.Locker {
	return &c.mu
}

// SemaWait consumes one wake token, bounded by timeout.
func (c *LocalControl) SemaWait(timeout time.Duration) bool {
	return c.sema.wait(timeout)
}

// SemaPost makes n wake tokens available.
func (c *LocalControl) SemaPost(n int) bool {
	return c.sema.post(n)
}

// HandshakeWait consumes one acknowledgment, bounded by timeout.
func (c *LocalControl) HandshakeWait(timeout time.Duration) bool {
	return c.hand.wait(timeout)
}

// HandshakePost makes n acknowledgments available.
func (c *LocalControl) HandshakePost(n int) bool {
	return c.hand.post(n)
}
