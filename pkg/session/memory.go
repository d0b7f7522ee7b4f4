package session

import (
	"runtime/debug"
	"unsafe"

	"github.com/pkg/errors"
)

// CodeReader copies the bytes of an emitted code range.
type CodeReader interface {
	ReadCode(addr, size uint64) ([]byte, error)
}

type CodeReaderFunc func(addr, size uint64) ([]byte, error)

func (f CodeReaderFunc) ReadCode(addr, size uint64) ([]byte, error) {
	return f(addr, size)
}

// SelfMemory reads code from the address space of the current process.
// A fault while copying is turned into ErrUnreadableCode instead of
// crashing the host.
type SelfMemory struct{}

func (SelfMemory) ReadCode(addr, size uint64) (code []byte, err error) {
	if addr == 0 || addr+size < addr {
		return nil, errors.Wrapf(ErrBadCodeRange, "%#x+%d", addr, size)
	}

	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			code = nil
			err = errors.Wrapf(ErrUnreadableCode, "%#x+%d: %v", addr, size, r)
		}
	}()

	//nolint:govet // addr points at code owned by the host, not by the Go heap.
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
	code = make([]byte, size)
	copy(code, src)

	return code, nil
}
