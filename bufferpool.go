package shmsync

// BufferPool manages a pool of reusable byte slices for message framing,
// reducing GC pressure on busy channels. It uses a channel-based design for
// thread-safe access without locks, so Get and Put are safe for concurrent
// use by any number of goroutines.
type BufferPool struct {
	pool    chan []byte
	bufSize int
}

// NewBufferPool creates a pool pre-populated with count buffers of bufSize
// bytes each.
func NewBufferPool(bufSize, count int) *BufferPool {
	pool := make(chan []byte, count)
	for i := 0; i < count; i++ {
		pool <- make([]byte, bufSize)
	}
	return &BufferPool{
		pool:    pool,
		bufSize: bufSize,
	}
}

// Size returns the capacity of buffers managed by this pool.
func (bp *BufferPool) Size() int {
	return bp.bufSize
}

// Get returns a buffer of length bufSize, allocating a fresh one if the
// pool is empty.
func (bp *BufferPool) Get() []byte {
	select {
	case buf := <-bp.pool:
		return buf
	default:
		return make([]byte, bp.bufSize)
	}
}

// Put returns a buffer to the pool for reuse. Buffers with the wrong
// capacity are discarded, as is anything beyond the pool's capacity.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.bufSize {
		return
	}
	select {
	case bp.pool <- buf[:bp.bufSize]:
	default:
		// Pool is full; let the buffer be collected.
	}
}
