package shmsync

import (
	"sync"
	"sync/atomic"
	"time"
)

// Forever is the timeout sentinel that makes a wait block indefinitely.
// Forced teardown via QuitWaiting still guarantees a bounded exit.
const Forever time.Duration = -1

// defaultTimeout bounds the internal drain and acknowledgment waits.
// It must be short enough not to stall teardown and long enough for an
// in-flight wake token to be consumed.
const defaultTimeout = 100 * time.Millisecond

// WaitCounter tracks how many callers are registered at a wait point.
//
// The waiting count is updated atomically and may be read lock-free. The
// pending count is the notifier's debt: a snapshot of how many wake tokens
// are still owed to registered waiters. It is only touched while the
// Control's internal lock is held, and always satisfies
// 0 <= pending <= waiting when observed under that lock.
type WaitCounter struct {
	waiting atomic.Int32
	pending int32
}

// Waiting returns the number of currently registered waiters.
func (c *WaitCounter) Waiting() int32 {
	return c.waiting.Load()
}

// Pending returns the number of wake tokens still owed to registered
// waiters. The caller must hold the Control's internal lock.
func (c *WaitCounter) Pending() int32 {
	return c.pending
}

// WaitFlags carries the status bits of a wait point. All fields are atomic
// so they can be read and written from any process mapping the record.
type WaitFlags struct {
	waiting atomic.Bool
	closed  atomic.Bool
	destroy atomic.Bool
}

// IsWaiting reports whether a waiter is currently parked at this wait point.
func (f *WaitFlags) IsWaiting() bool {
	return f.waiting.Load()
}

// IsClosed reports whether the wait point has been closed.
func (f *WaitFlags) IsClosed() bool {
	return f.closed.Load()
}

// Waiter implements the wait/notify protocol over a Control. The algorithms
// are stateless; all shared state lives in the Control's records, so any
// number of Waiter values (in any number of processes) may drive the same
// wait point.
type Waiter struct {
	ctrl Control
}

// NewWaiter returns a Waiter operating on ctrl.
func NewWaiter(ctrl Control) *Waiter {
	return &Waiter{ctrl: ctrl}
}

// Control returns the Control this Waiter operates on.
func (w *Waiter) Control() Control {
	return w.ctrl
}

// WaitIf blocks the caller until the wait point is notified, unless needWait
// reports false. The caller must hold mtx, which guards the predicate state;
// it is released for the blocking portion and reacquired before returning,
// matching the condition-variable calling convention. timeout bounds the
// block; pass Forever to wait indefinitely.
//
// WaitIf returns true if the condition was already satisfied or the caller
// was woken normally, and false if the wait point is closed, the wait timed
// out, or a forced teardown intervened. Because a wake can race the caller's
// own predicate re-check, callers with multiple waiters should re-test the
// predicate and loop.
func (w *Waiter) WaitIf(mtx sync.Locker, needWait func() bool, timeout time.Duration) bool {
	flags := w.ctrl.Flags()
	if flags.closed.Load() {
		return false
	}

	counter := w.ctrl.Counter()
	counter.waiting.Add(1)
	flags.waiting.Store(true)

	// Unregister on every exit path. The decrement floors at zero so a
	// destructive broadcast reset cannot drive the count negative.
	var once sync.Once
	unregister := func() {
		once.Do(func() {
			for cur := counter.waiting.Load(); cur > 0; cur = counter.waiting.Load() {
				if counter.waiting.CompareAndSwap(cur, cur-1) {
					break
				}
			}
			flags.waiting.Store(false)
		})
	}
	defer unregister()

	lk := w.ctrl.Locker()
	lk.Lock()
	if !needWait() {
		// The condition became true between the caller's check and our
		// registration; no need to block.
		lk.Unlock()
		return true
	}
	// Fix, at this instant, how many wake tokens a notifier owes.
	counter.pending = counter.waiting.Load()
	lk.Unlock()

	mtx.Unlock()

	ret := false
	for {
		if !flags.waiting.Load() || flags.closed.Load() {
			flags.destroy.Store(false)
			ret = false
			break
		}
		if flags.destroy.Swap(false) {
			ret = false
			// Absorb a wake token that may already be in flight.
			w.ctrl.SemaWait(defaultTimeout)
			break
		}
		ret = w.ctrl.SemaWait(timeout)
		if !flags.destroy.Load() {
			break
		}
	}
	unregister()

	// Tell the notifier this waiter has left the blocking state, whether
	// or not the wait itself succeeded.
	ret = w.ctrl.HandshakePost(1) && ret

	mtx.Lock()
	return ret
}

// Notify wakes one registered waiter. If no waiter is registered it returns
// true without posting. The post-then-acknowledge pairing keeps a second
// concurrent notifier from posting into a system where the previous token
// has not yet been consumed.
func (w *Waiter) Notify() bool {
	counter := w.ctrl.Counter()
	if counter.waiting.Load() == 0 {
		return true
	}
	lk := w.ctrl.Locker()
	lk.Lock()
	defer lk.Unlock()

	w.clearHandshake()
	ret := true
	if counter.pending > 0 {
		ret = w.ctrl.SemaPost(1)
		counter.pending--
		ret = ret && w.ctrl.HandshakeWait(defaultTimeout)
	}
	return ret
}

// Broadcast wakes every waiter registered at the time of the call. Waiters
// registering afterward are not included. Broadcast is destructive: once the
// acknowledgment loop completes, all registered waiters are considered
// released regardless of individual acknowledgment outcomes, and the waiting
// count is reset to zero.
func (w *Waiter) Broadcast() bool {
	counter := w.ctrl.Counter()
	if counter.waiting.Load() == 0 {
		return true
	}
	lk := w.ctrl.Locker()
	lk.Lock()
	defer lk.Unlock()

	w.clearHandshake()
	ret := true
	if counter.pending > 0 {
		ret = w.ctrl.SemaPost(int(counter.pending))
		// The pending > 0 guard above fences this division.
		per := defaultTimeout / time.Duration(counter.pending)
		for counter.pending > 0 {
			counter.pending--
			ret = w.ctrl.HandshakeWait(per) && ret
		}
		counter.waiting.Store(0)
	}
	return ret
}

// QuitWaiting forces a blocked waiter out so the wait point can be torn
// down. Unlike Notify it does not assume a pending snapshot exists: it posts
// whatever tokens are owed but advances the bookkeeping by exactly one,
// since this path guarantees at least one forced wake rather than a fair
// one-for-one exchange.
func (w *Waiter) QuitWaiting() bool {
	flags := w.ctrl.Flags()
	flags.destroy.Store(true)
	if !flags.waiting.Swap(false) {
		return true
	}
	counter := w.ctrl.Counter()
	if counter.waiting.Load() == 0 {
		return true
	}
	lk := w.ctrl.Locker()
	lk.Lock()
	defer lk.Unlock()

	w.clearHandshake()
	ret := true
	if counter.pending > 0 {
		ret = w.ctrl.SemaPost(int(counter.pending))
		counter.pending--
		ret = ret && w.ctrl.HandshakeWait(defaultTimeout)
	}
	return ret
}

// Open marks the wait point usable again after a Close.
func (w *Waiter) Open() {
	w.ctrl.Flags().closed.Store(false)
}

// Close permanently closes the wait point and releases every registered
// waiter. New WaitIf calls fail immediately once Close has been called.
func (w *Waiter) Close() bool {
	w.ctrl.Flags().closed.Store(true)
	return w.Broadcast()
}

// clearHandshake discards acknowledgments left over from an already
// completed cycle so a new handshake cannot be confused with a stale one.
func (w *Waiter) clearHandshake() {
	for w.ctrl.HandshakeWait(0) {
	}
}
