// Package shmsync provides cross-process synchronization primitives for Go
// programs that share a memory-mapped control block with other processes.
//
// Ordinary condition variables cannot be placed in shared memory: they assume
// all waiters and notifiers live under a single scheduler. Shmsync replaces
// them with a wait/notify protocol built from atomically updated counters and
// flags plus two bounded-wait counting signals (a wake token and a handshake
// acknowledgment), so a notify is observably complete only once a waiter has
// consumed the wake.
//
// # The Wait Coordinator
//
// The core type is Waiter, which operates on a Control: a small record of
// bookkeeping state (WaitCounter, WaitFlags), an internal lock, and the two
// signal primitives. A Waiter behaves like a condition variable whose shared
// state may live in another process:
//
//	ctrl := shmsync.NewLocalControl()
//	w := shmsync.NewWaiter(ctrl)
//
//	// waiting side, mu guards the predicate state
//	mu.Lock()
//	ok := w.WaitIf(&mu, func() bool { return !ready }, shmsync.Forever)
//	mu.Unlock()
//
//	// notifying side
//	mu.Lock()
//	ready = true
//	mu.Unlock()
//	w.Notify()
//
// Notify wakes one waiter, Broadcast wakes all currently registered waiters,
// and QuitWaiting forces a blocked waiter out so the wait point can be torn
// down safely.
//
// # Cross-process operation (Linux)
//
// On Linux the Control records can be placed directly inside a shared memory
// region. The signal primitives and the internal lock are futex-backed, so
// any process that maps the same region participates in the protocol:
//
//	region, _ := shmsync.CreateRegion("my_region", 4096)
//	defer region.Close()
//
//	ctrl, _ := shmsync.ControlAt(region.Bytes())
//	w := shmsync.NewWaiter(ctrl)
//
// On other platforms the shared memory constructors return ErrNotAvailable;
// NewLocalControl works everywhere for single-process coordination.
//
// # Channels
//
// Channel is a minimal host for the wait protocol: a bounded byte ring
// carrying length-prefixed MessagePack messages, with one wait point for
// readers and one for writers. NewLocalChannel backs the ring with process
// memory; CreateChannel and OpenChannel (Linux) lay the entire channel out
// in a named shared region so two processes can exchange messages:
//
//	ch, _ := shmsync.CreateChannel("my_chan", 64*1024)
//	defer ch.Close()
//
//	ch.Send(map[string]interface{}{"op": "ping"}, time.Second)
//
//	var msg map[string]interface{}
//	ch.Recv(&msg, time.Second)
package shmsync
