package jitdump

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"
)

var order = binary.NativeEndian

// EncodeHeader returns the 40-byte file header. TotalSize is forced to
// HeaderSize.
func EncodeHeader(h Header) []byte {
	b := make([]byte, 0, HeaderSize)
	b = order.AppendUint32(b, h.Magic)
	b = order.AppendUint32(b, h.Version)
	b = order.AppendUint32(b, HeaderSize)
	b = order.AppendUint32(b, h.ElfMach)
	b = order.AppendUint32(b, h.Pad1)
	b = order.AppendUint32(b, h.Pid)
	b = order.AppendUint64(b, h.Timestamp)
	b = order.AppendUint64(b, h.Flags)

	return b
}

// CodeLoadSize returns the total size of a code-load record carrying
// name and size bytes of code.
func CodeLoadSize(name string, size uint64) uint64 {
	return CodeLoadFixedSize + uint64(len(name)) + 1 + size
}

// DebugInfoSize returns the total size of a debug-info record for lines.
func DebugInfoSize(lines []LineEntry) uint64 {
	size := uint64(DebugInfoFixedSize)
	for _, l := range lines {
		size += DebugEntryFixedSize + uint64(len(l.File)) + 1
	}

	return size
}

// EncodeCodeLoad lays out a code-load record: prefix, fixed fields, the
// NUL-terminated name and then exactly rec.CodeSize bytes of code.
func EncodeCodeLoad(timestamp uint64, rec CodeLoad, name string, code []byte) ([]byte, error) {
	if uint64(len(code)) != rec.CodeSize {
		return nil, errors.Wrapf(ErrCodeSizeMismatch, "have %d bytes, declared %d", len(code), rec.CodeSize)
	}
	size := CodeLoadSize(name, rec.CodeSize)
	if size > math.MaxUint32 {
		return nil, errors.Wrapf(ErrRecordTooLarge, "code-load record for %q is %d bytes", name, size)
	}

	b := make([]byte, 0, size)
	b = appendPrefix(b, Prefix{Kind: KindCodeLoad, TotalSize: uint32(size), Timestamp: timestamp})
	b = order.AppendUint32(b, rec.Pid)
	b = order.AppendUint32(b, rec.Tid)
	b = order.AppendUint64(b, rec.Vma)
	b = order.AppendUint64(b, rec.CodeAddr)
	b = order.AppendUint64(b, rec.CodeSize)
	b = order.AppendUint64(b, rec.CodeIndex)
	b = appendCString(b, name)
	b = append(b, code...)

	return b, nil
}

// EncodeDebugInfo lays out a debug-info record for the code at addr.
// Entries keep the order of lines; offset is added to every entry
// address. File names are always written in full, so a name holding a
// NUL byte or equal to the same-file marker is rejected.
func EncodeDebugInfo(timestamp, addr uint64, lines []LineEntry, offset uint64) ([]byte, error) {
	for i, l := range lines {
		if err := CheckFileName(l.File); err != nil {
			return nil, errors.Wrapf(err, "debug entry %d", i)
		}
	}
	size := DebugInfoSize(lines)
	if size > math.MaxUint32 {
		return nil, errors.Wrapf(ErrRecordTooLarge, "debug-info record for %#x is %d bytes", addr, size)
	}

	b := make([]byte, 0, size)
	b = appendPrefix(b, Prefix{Kind: KindDebugInfo, TotalSize: uint32(size), Timestamp: timestamp})
	b = order.AppendUint64(b, addr)
	b = order.AppendUint64(b, uint64(len(lines)))
	for _, l := range lines {
		b = order.AppendUint64(b, l.Addr+offset)
		b = order.AppendUint32(b, uint32(l.Line))
		b = order.AppendUint32(b, uint32(l.Discriminator))
		b = appendCString(b, l.File)
	}

	return b, nil
}

// CheckFileName reports whether file can be written as a debug entry
// file name.
func CheckFileName(file string) error {
	if strings.IndexByte(file, 0) >= 0 || file == string(sameFile[:1]) {
		return errors.Wrapf(ErrBadFileName, "%q", file)
	}

	return nil
}

func appendPrefix(b []byte, p Prefix) []byte {
	b = order.AppendUint32(b, uint32(p.Kind))
	b = order.AppendUint32(b, p.TotalSize)
	return order.AppendUint64(b, p.Timestamp)
}

func appendCString(b []byte, s string) []byte {
	b = append(b, s...)
	return append(b, 0)
}
