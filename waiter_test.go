package shmsync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// waitPending reads the pending count under the control's internal lock,
// polling until it reaches want or the deadline passes.
func waitPending(t *testing.T, ctrl Control, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		lk := ctrl.Locker()
		lk.Lock()
		p := ctrl.Counter().Pending()
		lk.Unlock()
		if p == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("pending count never reached %d", want)
}

func TestWaitIfClosedFailsImmediately(t *testing.T) {
	ctrl := NewLocalControl()
	w := NewWaiter(ctrl)
	w.Close()

	var mu sync.Mutex
	mu.Lock()
	ok := w.WaitIf(&mu, func() bool { return true }, Forever)
	mu.Unlock()

	assert.False(t, ok, "wait on a closed wait point must fail")
	assert.Equal(t, int32(0), ctrl.Counter().Waiting(), "closed fast-fail must not register")
}

func TestWaitIfPredicateAlreadySatisfied(t *testing.T) {
	ctrl := NewLocalControl()
	w := NewWaiter(ctrl)

	var mu sync.Mutex
	mu.Lock()
	ok := w.WaitIf(&mu, func() bool { return false }, Forever)
	mu.Unlock()

	assert.True(t, ok, "satisfied predicate must succeed without blocking")
	assert.Equal(t, int32(0), ctrl.Counter().Waiting())
	assert.False(t, ctrl.Flags().IsWaiting())
}

func TestNotifyNoWaiters(t *testing.T) {
	ctrl := NewLocalControl()
	w := NewWaiter(ctrl)

	assert.True(t, w.Notify(), "notify with no waiters succeeds trivially")
	assert.False(t, ctrl.SemaWait(0), "no wake token may be posted")
}

func TestWaitIfTimeout(t *testing.T) {
	ctrl := NewLocalControl()
	w := NewWaiter(ctrl)

	var mu sync.Mutex
	start := time.Now()
	mu.Lock()
	ok := w.WaitIf(&mu, func() bool { return true }, 30*time.Millisecond)
	mu.Unlock()

	assert.False(t, ok, "an unnotified wait must time out")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, int32(0), ctrl.Counter().Waiting())
	assert.False(t, ctrl.Flags().IsWaiting())
}

func TestWaitNotifyRendezvous(t *testing.T) {
	ctrl := NewLocalControl()
	w := NewWaiter(ctrl)

	var mu sync.Mutex
	ready := false
	done := make(chan bool, 1)

	go func() {
		mu.Lock()
		ok := w.WaitIf(&mu, func() bool { return !ready }, Forever)
		mu.Unlock()
		done <- ok
	}()

	mu.Lock()
	ready = true
	mu.Unlock()

	// Keep notifying until the waiter reports back; a notify issued before
	// the waiter snapshots its token debt is a benign no-op.
	for {
		w.Notify()
		select {
		case ok := <-done:
			assert.True(t, ok, "woken waiter must report success")
			assert.Equal(t, int32(0), ctrl.Counter().Waiting())
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func TestQuitWaitingReleasesBlockedWaiter(t *testing.T) {
	ctrl := NewLocalControl()
	w := NewWaiter(ctrl)

	var mu sync.Mutex
	done := make(chan bool, 1)
	go func() {
		mu.Lock()
		ok := w.WaitIf(&mu, func() bool { return true }, Forever)
		mu.Unlock()
		done <- ok
	}()

	waitPending(t, ctrl, 1)

	assert.True(t, w.QuitWaiting())
	select {
	case ok := <-done:
		assert.False(t, ok, "forced teardown must surface as failure")
	case <-time.After(2 * time.Second):
		t.Fatal("QuitWaiting did not release the blocked waiter in time")
	}
	assert.False(t, ctrl.Flags().IsWaiting())
	assert.Equal(t, int32(0), ctrl.Counter().Waiting())
}

func TestBroadcastReleasesAllWaiters(t *testing.T) {
	ctrl := NewLocalControl()
	w := NewWaiter(ctrl)

	var mu sync.Mutex
	ready := false
	done := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		go func() {
			mu.Lock()
			ok := w.WaitIf(&mu, func() bool { return !ready }, Forever)
			mu.Unlock()
			done <- ok
		}()
	}

	// All three must be registered and accounted for before broadcasting,
	// otherwise the destructive reset would strand a late registrant.
	waitPending(t, ctrl, 3)

	lk := ctrl.Locker()
	lk.Lock()
	p, wc := ctrl.Counter().Pending(), ctrl.Counter().Waiting()
	lk.Unlock()
	assert.Equal(t, int32(3), p)
	assert.Equal(t, int32(3), wc)

	mu.Lock()
	ready = true
	mu.Unlock()

	assert.True(t, w.Broadcast())
	for i := 0; i < 3; i++ {
		select {
		case ok := <-done:
			assert.True(t, ok, "broadcast waiter %d", i)
		case <-time.After(2 * time.Second):
			t.Fatal("broadcast did not release all waiters")
		}
	}
	assert.Equal(t, int32(0), ctrl.Counter().Waiting(), "broadcast must reset the waiting count")

	lk.Lock()
	p = ctrl.Counter().Pending()
	lk.Unlock()
	assert.Equal(t, int32(0), p)
}

func TestCloseReleasesParkedWaiter(t *testing.T) {
	ctrl := NewLocalControl()
	w := NewWaiter(ctrl)

	var mu sync.Mutex
	done := make(chan bool, 1)
	go func() {
		mu.Lock()
		ok := w.WaitIf(&mu, func() bool { return true }, Forever)
		mu.Unlock()
		done <- ok
	}()

	waitPending(t, ctrl, 1)
	w.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not release the parked waiter")
	}

	// New waits fail once the point is closed.
	mu.Lock()
	ok := w.WaitIf(&mu, func() bool { return true }, Forever)
	mu.Unlock()
	assert.False(t, ok)
	assert.Equal(t, int32(0), ctrl.Counter().Waiting())

	w.Open()
	mu.Lock()
	ok = w.WaitIf(&mu, func() bool { return false }, Forever)
	mu.Unlock()
	assert.True(t, ok, "reopened wait point must accept waits again")
}

// TestWaitingCountStaysNonNegative hammers the protocol with concurrent
// short waits, notifies and broadcasts and checks the registration count
// never underflows.
func TestWaitingCountStaysNonNegative(t *testing.T) {
	ctrl := NewLocalControl()
	w := NewWaiter(ctrl)

	var mu sync.Mutex
	var waiters, notifiers sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		waiters.Add(1)
		go func() {
			defer waiters.Done()
			for j := 0; j < 200; j++ {
				mu.Lock()
				w.WaitIf(&mu, func() bool { return true }, time.Millisecond)
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < 2; i++ {
		notifiers.Add(1)
		go func(broadcast bool) {
			defer notifiers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if broadcast {
					w.Broadcast()
				} else {
					w.Notify()
				}
			}
		}(i == 0)
	}

	sampler := make(chan struct{})
	go func() {
		defer close(sampler)
		for {
			select {
			case <-stop:
				return
			default:
				if ctrl.Counter().Waiting() < 0 {
					t.Error("waiting count went negative")
					return
				}
			}
		}
	}()

	waiters.Wait()
	close(stop)
	notifiers.Wait()
	<-sampler

	assert.GreaterOrEqual(t, ctrl.Counter().Waiting(), int32(0))
}
