package shmsync

import "errors"

// ErrNotAvailable is returned when shared memory or futex-backed controls
// are requested on a platform without support. In-process coordination via
// NewLocalControl and NewLocalChannel works everywhere.
var ErrNotAvailable = errors.New("shmsync: shared memory is not available on this platform")

// Region is a named shared memory segment mapped into the current process.
// Create it in one process with CreateRegion and map the same bytes in
// another with OpenRegion; both must agree on the name and size.
//
// A freshly created region is zero-filled, which is exactly the initial
// state the control block and channel layouts expect, so no separate
// initialization step is needed.
type Region struct {
	name string
	data []byte
}

// CreateRegion creates and maps a named shared memory region of size bytes.
func CreateRegion(name string, size int) (*Region, error) {
	return createRegion(name, size)
}

// OpenRegion maps an existing named shared memory region. The name and size
// must match those used at creation.
func OpenRegion(name string, size int) (*Region, error) {
	return openRegion(name, size)
}

// Name returns the identifier used to create or open this region.
func (r *Region) Name() string {
	return r.name
}

// Size returns the size of the mapped region in bytes.
func (r *Region) Size() int {
	return len(r.data)
}

// Bytes returns the mapped memory. The slice is only valid until Close.
func (r *Region) Bytes() []byte {
	return r.data
}

// Close unmaps the region from this process. The underlying segment remains
// until Unlink removes its name and all processes have unmapped it.
func (r *Region) Close() error {
	return r.close()
}

// Unlink removes the region's name from the system. Existing mappings stay
// valid; the segment is destroyed once the last one is closed.
func (r *Region) Unlink() error {
	return unlinkRegion(r.name)
}
