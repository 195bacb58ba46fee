package shmsync

import "errors"

var (
	// ErrClosed is returned when an operation is attempted on a channel
	// that has been closed, or when a wait point is closed while a caller
	// is blocked on it.
	ErrClosed = errors.New("shmsync: channel is closed")

	// ErrTimeout is returned when a bounded Send or Recv did not complete
	// within the caller's timeout. The operation may be retried.
	ErrTimeout = errors.New("shmsync: operation timed out")

	// ErrTooLarge is returned when an encoded message cannot ever fit in
	// the channel's ring buffer, regardless of how long the caller waits.
	ErrTooLarge = errors.New("shmsync: message exceeds channel capacity")
)
