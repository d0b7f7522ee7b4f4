package jithost

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Region is an anonymous mapping holding one function's code.
type Region struct {
	Name string
	Addr uint64
	Size uint64

	mu  sync.Mutex
	mem []byte
}

// mapCode copies code into fresh pages and seals them read-execute.
// When the system refuses executable anonymous memory the pages are left
// read-only, which is enough for the code to be recorded.
func mapCode(name string, code []byte) (*Region, bool, error) {
	if len(code) == 0 {
		return nil, false, errors.Wrap(ErrEmptyCode, name)
	}
	pageSize := unix.Getpagesize()
	length := (len(code) + pageSize - 1) &^ (pageSize - 1)

	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to map %d bytes for %s", length, name)
	}
	copy(mem, code)

	exec := true
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		exec = false
		if err := unix.Mprotect(mem, unix.PROT_READ); err != nil {
			unix.Munmap(mem)
			return nil, false, errors.Wrapf(err, "failed to protect code of %s", name)
		}
	}

	return &Region{
		Name: name,
		Addr: uint64(uintptr(unsafe.Pointer(&mem[0]))),
		Size: uint64(len(code)),
		mem:  mem,
	}, exec, nil
}

// Bytes returns the code held by the region, or nil once freed.
func (r *Region) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mem == nil {
		return nil
	}
	return r.mem[:r.Size]
}

func (r *Region) free() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mem == nil {
		return ErrAlreadyFreed
	}
	err := unix.Munmap(r.mem)
	r.mem = nil

	return err
}
