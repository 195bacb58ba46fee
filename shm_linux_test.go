//go:build linux

package shmsync

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testRegionName(t *testing.T) string {
	return fmt.Sprintf("shmsync_test_%d_%s", os.Getpid(), t.Name())
}

func TestFutexSemaPostWait(t *testing.T) {
	var s futexSema

	assert.False(t, s.wait(0), "empty sema must fail a zero-timeout poll")

	assert.True(t, s.post(2))
	assert.True(t, s.wait(0))
	assert.True(t, s.wait(0))
	assert.False(t, s.wait(20*time.Millisecond), "drained sema must time out")

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.post(1)
	}()
	assert.True(t, s.wait(2*time.Second), "a posted token must wake the waiter")
}

func TestFutexMutexExcludes(t *testing.T) {
	var mu futexMutex
	var wg sync.WaitGroup

	counter := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8000, counter)
}

func TestShmControlRendezvous(t *testing.T) {
	ctrl, err := ControlAt(make([]byte, ControlBlockSize))
	assert.Nil(t, err)
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

	for {
		w.Notify()
		select {
		case ok := <-done:
			assert.True(t, ok)
			assert.Equal(t, int32(0), ctrl.Counter().Waiting())
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRegionCreateOpen(t *testing.T) {
	name := testRegionName(t)

	r1, err := CreateRegion(name, 4096)
	if err != nil {
		t.Skipf("cannot create shared memory region: %v", err)
	}
	defer r1.Unlink()
	defer r1.Close()

	copy(r1.Bytes(), "hello across mappings")

	r2, err := OpenRegion(name, 4096)
	assert.Nil(t, err)
	defer r2.Close()

	assert.Equal(t, 4096, r2.Size())
	assert.Equal(t, []byte("hello across mappings"), r2.Bytes()[:21])
}

// TestCreateRegionResetsStaleRegion checks that creating over a name left
// behind by a crashed prior run yields zero-filled memory rather than the
// old contents.
func TestCreateRegionResetsStaleRegion(t *testing.T) {
	name := testRegionName(t)

	r1, err := CreateRegion(name, 4096)
	if err != nil {
		t.Skipf("cannot create shared memory region: %v", err)
	}
	for i := range r1.Bytes() {
		r1.Bytes()[i] = 0xFF
	}
	// Close without Unlink simulates a crash leaving the name behind.
	assert.Nil(t, r1.Close())

	r2, err := CreateRegion(name, 4096)
	assert.Nil(t, err)
	defer r2.Unlink()
	defer r2.Close()

	assert.Equal(t, make([]byte, 4096), r2.Bytes(), "recreated region must be zero-filled")
}

func TestOpenRegionSizeMismatch(t *testing.T) {
	name := testRegionName(t)

	r1, err := CreateRegion(name, 4096)
	if err != nil {
		t.Skipf("cannot create shared memory region: %v", err)
	}
	defer r1.Unlink()
	defer r1.Close()

	_, err = OpenRegion(name, 8192)
	assert.NotNil(t, err, "opening beyond the backing file size must fail")
}

func TestShmChannelAcrossMappings(t *testing.T) {
	name := testRegionName(t)

	ch1, err := CreateChannel(name, 1024)
	if err != nil {
		t.Skipf("cannot create shared memory channel: %v", err)
	}
	defer ch1.Region().Unlink()
	defer ch1.Close()

	ch2, err := OpenChannel(name, 1024)
	assert.Nil(t, err)
	defer ch2.Close()

	// The two Channel values map the same region, so a message sent on one
	// mapping arrives on the other, exactly as it would across processes.
	sent := testMsg{Op: "cross", Seq: 7}
	assert.Nil(t, ch1.Send(sent, time.Second))

	var got testMsg
	assert.Nil(t, ch2.Recv(&got, time.Second))
	assert.Equal(t, sent, got)

	// And a receiver parked on one mapping is woken from the other.
	errs := make(chan error, 1)
	vals := make(chan testMsg, 1)
	go func() {
		var m testMsg
		err := ch2.Recv(&m, 5*time.Second)
		vals <- m
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, ch1.Send(testMsg{Op: "wake", Seq: 8}, time.Second))
	assert.Nil(t, <-errs)
	assert.Equal(t, "wake", (<-vals).Op)
}
