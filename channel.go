package shmsync

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// frameHeaderSize is the length prefix in front of every encoded message,
// a 4-byte big-endian payload size. Matches the framing used on the
// non-Go side of the protocol.
const frameHeaderSize = 4

// scratchBufSize is the pooled buffer size for message framing. Payloads
// larger than this get a one-off allocation.
const scratchBufSize = 4096

// Channel is a bounded message queue built on the wait protocol: a byte
// ring carrying length-prefixed MessagePack messages, one wait point woken
// when data arrives and one woken when space frees up, and an external lock
// serializing ring access.
//
// With NewLocalChannel the ring lives in process memory and the channel
// coordinates goroutines. With CreateChannel/OpenChannel (Linux) the entire
// channel, lock and wait points included, lives in a named shared memory
// region and coordinates processes.
//
// Channel is safe for concurrent use by multiple senders and receivers.
type Channel struct {
	// mu is the external lock guarding the ring. It is a futexMutex for
	// shared-memory channels and a sync.Mutex for local ones.
	mu sync.Locker

	// readable is notified when a message has been written.
	readable *Waiter

	// writable is notified when ring space has been freed.
	writable *Waiter

	buf  *ring
	ser  Serializer
	pool *BufferPool

	// region backs shared-memory channels; nil for local ones.
	region *Region
}

// NewLocalChannel creates an in-process channel with the given ring
// capacity in bytes, rounded up to a power of two. The ring must be able to
// hold at least one framed message, so capacity must exceed frame overhead.
func NewLocalChannel(capacity int) (*Channel, error) {
	if capacity <= frameHeaderSize {
		return nil, fmt.Errorf("shmsync: channel capacity %d is too small", capacity)
	}
	mem := make([]byte, ringHeaderSize+nextPow2(capacity))
	buf, err := ringAt(mem)
	if err != nil {
		return nil, err
	}
	return &Channel{
		mu:       &sync.Mutex{},
		readable: NewWaiter(NewLocalControl()),
		writable: NewWaiter(NewLocalControl()),
		buf:      buf,
		ser:      MsgpackSerializer{},
		pool:     NewBufferPool(scratchBufSize, 8),
	}, nil
}

// SetSerializer replaces the channel's payload codec. Both endpoints must
// agree; call this before the first Send or Recv.
func (c *Channel) SetSerializer(s Serializer) {
	c.ser = s
}

// Capacity returns the ring capacity in bytes. It may exceed the capacity
// requested at construction, which is rounded up to a power of two.
func (c *Channel) Capacity() int {
	return c.buf.capacity()
}

// Send encodes v and appends it to the ring, blocking for up to timeout
// while the ring lacks space (Forever to block indefinitely). It returns
// ErrTooLarge if the encoded message can never fit, ErrClosed if the
// channel is closed, or ErrTimeout if space did not free up in time.
func (c *Channel) Send(v interface{}, timeout time.Duration) error {
	data, err := c.ser.Marshal(v)
	if err != nil {
		return fmt.Errorf("shmsync: encode message: %w", err)
	}
	need := frameHeaderSize + len(data)
	if need > c.buf.capacity() {
		return ErrTooLarge
	}

	c.mu.Lock()
	if c.writable.Control().Flags().IsClosed() {
		c.mu.Unlock()
		return ErrClosed
	}
	for c.buf.free() < need {
		if c.writable.Control().Flags().IsClosed() {
			c.mu.Unlock()
			return ErrClosed
		}
		if !c.writable.WaitIf(c.mu, func() bool { return c.buf.free() < need }, timeout) {
			closed := c.writable.Control().Flags().IsClosed()
			c.mu.Unlock()
			if closed {
				return ErrClosed
			}
			return ErrTimeout
		}
	}

	hdr := c.pool.Get()[:frameHeaderSize]
	binary.BigEndian.PutUint32(hdr, uint32(len(data)))
	c.buf.write(hdr)
	c.buf.write(data)
	c.pool.Put(hdr)
	c.mu.Unlock()

	// A failed notify means no receiver consumed the wake in time; the
	// message itself is already in the ring, so it is not an error.
	c.readable.Notify()
	return nil
}

// Recv decodes the next message into v, blocking for up to timeout while
// the ring is empty (Forever to block indefinitely). It returns ErrClosed
// once the channel is closed and drained, or ErrTimeout if no message
// arrived in time.
func (c *Channel) Recv(v interface{}, timeout time.Duration) error {
	c.mu.Lock()
	for c.buf.used() < frameHeaderSize {
		if c.readable.Control().Flags().IsClosed() {
			c.mu.Unlock()
			return ErrClosed
		}
		if !c.readable.WaitIf(c.mu, func() bool { return c.buf.used() < frameHeaderSize }, timeout) {
			closed := c.readable.Control().Flags().IsClosed()
			c.mu.Unlock()
			if closed {
				return ErrClosed
			}
			return ErrTimeout
		}
	}

	hdr := c.pool.Get()[:frameHeaderSize]
	c.buf.read(hdr)
	length := int(binary.BigEndian.Uint32(hdr))
	c.pool.Put(hdr)

	// A frame is written in one critical section, so the payload is
	// complete once the header is visible.
	var payload []byte
	pooled := length <= c.pool.Size()
	if pooled {
		payload = c.pool.Get()[:length]
	} else {
		payload = make([]byte, length)
	}
	c.buf.read(payload)
	c.mu.Unlock()

	c.writable.Notify()

	err := c.ser.Unmarshal(payload, v)
	if pooled {
		c.pool.Put(payload[:cap(payload)])
	}
	if err != nil {
		return fmt.Errorf("shmsync: decode message: %w", err)
	}
	return nil
}

// Region returns the shared memory region backing this channel, or nil for
// local channels. Useful for unlinking the region name at teardown.
func (c *Channel) Region() *Region {
	return c.region
}

// Close closes both wait points, releasing any blocked senders and
// receivers, and unmaps the backing region for shared-memory channels.
// Close does not unlink a shared region; see Region.Unlink.
//
// For shared-memory channels the unmap invalidates the channel's memory in
// this process: wait for released Send/Recv calls to return before letting
// the Channel be garbage collected, and do not start new operations after
// Close.
func (c *Channel) Close() error {
	c.readable.Close()
	c.writable.Close()
	if c.region != nil {
		return c.region.Close()
	}
	return nil
}
