//go:build linux

package shmsync

import (
	"fmt"
	"unsafe"
)

// Shared channel region layout: external futex mutex, the two control
// blocks (readable, writable), then the ring header and data. Everything
// is zero-initialized by region creation.

const (
	chanMutexOff = 0
	chanCtrlROff = controlBlockAlign // mutex word padded to block alignment
	chanCtrlWOff = chanCtrlROff + ((ControlBlockSize + controlBlockAlign - 1) &^ (controlBlockAlign - 1))
	chanRingOff  = chanCtrlWOff + ((ControlBlockSize + controlBlockAlign - 1) &^ (controlBlockAlign - 1))
)

// ChannelRegionSize returns the shared memory size needed for a channel
// with the given ring capacity. The capacity is rounded up to a power of
// two, as the ring requires.
func ChannelRegionSize(capacity int) int {
	return chanRingOff + ringHeaderSize + nextPow2(capacity)
}

// CreateChannel creates a named shared-memory channel with the given ring
// capacity in bytes. Other processes attach with OpenChannel using the same
// name and capacity.
func CreateChannel(name string, capacity int) (*Channel, error) {
	if capacity <= frameHeaderSize {
		return nil, fmt.Errorf("shmsync: channel capacity %d is too small", capacity)
	}
	region, err := CreateRegion(name, ChannelRegionSize(capacity))
	if err != nil {
		return nil, err
	}
	return channelAt(region)
}

// OpenChannel attaches to an existing shared-memory channel. The name and
// capacity must match those used by CreateChannel.
func OpenChannel(name string, capacity int) (*Channel, error) {
	if capacity <= frameHeaderSize {
		return nil, fmt.Errorf("shmsync: channel capacity %d is too small", capacity)
	}
	region, err := OpenRegion(name, ChannelRegionSize(capacity))
	if err != nil {
		return nil, err
	}
	return channelAt(region)
}

func channelAt(region *Region) (*Channel, error) {
	mem := region.Bytes()
	ctrlR, err := ControlAt(mem[chanCtrlROff:])
	if err != nil {
		region.Close()
		return nil, err
	}
	ctrlW, err := ControlAt(mem[chanCtrlWOff:])
	if err != nil {
		region.Close()
		return nil, err
	}
	buf, err := ringAt(mem[chanRingOff:])
	if err != nil {
		region.Close()
		return nil, err
	}
	return &Channel{
		mu:       (*futexMutex)(unsafe.Pointer(&mem[chanMutexOff])),
		readable: NewWaiter(ctrlR),
		writable: NewWaiter(ctrlW),
		buf:      buf,
		ser:      MsgpackSerializer{},
		pool:     NewBufferPool(scratchBufSize, 8),
		region:   region,
	}, nil
}
