//go:build linux

package shmsync

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// shmPath maps a region name to its backing file under /dev/shm, the same
// namespace POSIX shm_open uses, so regions are visible to non-Go processes
// that open them with shm_open(3).
func shmPath(name string) string {
	return "/dev/shm/" + strings.TrimPrefix(name, "/")
}

func createRegion(name string, size int) (*Region, error) {
	path := shmPath(name)

	// O_EXCL guarantees the mapping starts zero-filled, which the control
	// block and ring layouts rely on. A name that already exists is a
	// leftover from a crashed prior run; remove it and retry once.
	var fd int
	for attempt := 0; ; attempt++ {
		f, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR|unix.O_CLOEXEC, 0o600)
		if err == nil {
			fd = f
			break
		}
		if err != unix.EEXIST || attempt > 0 {
			return nil, fmt.Errorf("shmsync: create region %q: %w", name, err)
		}
		if err := unix.Unlink(path); err != nil && err != unix.ENOENT {
			return nil, fmt.Errorf("shmsync: remove stale region %q: %w", name, err)
		}
	}
	// The mapping keeps the segment alive; the descriptor is not needed
	// after mmap.
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Unlink(path)
		return nil, fmt.Errorf("shmsync: size region %q: %w", name, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Unlink(path)
		return nil, fmt.Errorf("shmsync: map region %q: %w", name, err)
	}
	return &Region{name: name, data: data}, nil
}

func openRegion(name string, size int) (*Region, error) {
	fd, err := unix.Open(shmPath(name), unix.O_RDWR|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shmsync: open region %q: %w", name, err)
	}
	defer unix.Close(fd)

	// Mapping past the end of the backing file would SIGBUS on access;
	// fail with a usable error instead.
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("shmsync: stat region %q: %w", name, err)
	}
	if st.Size < int64(size) {
		return nil, fmt.Errorf("shmsync: region %q is %d bytes, need %d", name, st.Size, size)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shmsync: map region %q: %w", name, err)
	}
	return &Region{name: name, data: data}, nil
}

func (r *Region) close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	if err == nil {
		r.data = nil
	}
	return err
}

func unlinkRegion(name string) error {
	if err := unix.Unlink(shmPath(name)); err != nil {
		return fmt.Errorf("shmsync: unlink region %q: %w", name, err)
	}
	return nil
}
