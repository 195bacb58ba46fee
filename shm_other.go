//go:build !linux

package shmsync

// Stub implementations for platforms without shared memory support.
// All operations return ErrNotAvailable.

func createRegion(name string, size int) (*Region, error) {
	return nil, ErrNotAvailable
}

func openRegion(name string, size int) (*Region, error) {
	return nil, ErrNotAvailable
}

func (r *Region) close() error {
	return ErrNotAvailable
}

func unlinkRegion(name string) error {
	return ErrNotAvailable
}
