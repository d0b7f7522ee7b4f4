// Package marker maps the first page of a jitdump file into the
// process. The mapping is never touched; it exists so that perf sees
// the file in the process maps (live as an MMAP event, or later through
// /proc/<pid>/maps) and picks the jitdump up.
package marker

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Handle owns the marker mapping. Close is safe to call repeatedly.
type Handle struct {
	mu  sync.Mutex
	mem []byte
}

// Open maps page 0 of fd. The mapping must be executable or perf record
// without -d ignores it.
func Open(fd uintptr) (*Handle, error) {
	mem, err := unix.Mmap(int(fd), 0, unix.Getpagesize(), unix.PROT_READ|unix.PROT_EXEC, unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "could not mmap JIT marker")
	}

	return &Handle{mem: mem}, nil
}

// Addr returns the start of the mapping, or 0 once closed.
func (h *Handle) Addr() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.mem == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(h.mem)))
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.mem == nil {
		return nil
	}
	err := unix.Munmap(h.mem)
	h.mem = nil

	return errors.Wrap(err, "could not munmap JIT marker")
}
