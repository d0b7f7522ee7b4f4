// Package jitdump encodes and decodes the perf jitdump format: a file
// header followed by self-describing records that tell perf about code
// generated at runtime.
//
// All integers are written in host byte order, field by field, so the
// layout never depends on Go struct padding.
package jitdump

import "fmt"

const (
	// Magic is "JiTD". A reader on a host of the other endianness sees
	// SwappedMagic instead.
	Magic        uint32 = 0x4A695444
	SwappedMagic uint32 = 0x4454694A
	Version      uint32 = 1

	// FlagArchTimestamp marks a file whose timestamps come from an
	// architecture-specific clock instead of CLOCK_MONOTONIC.
	FlagArchTimestamp uint64 = 1 << 0

	HeaderSize = 40
	PrefixSize = 16

	codeLoadBodySize   = 40
	debugInfoBodySize  = 16
	debugEntryBodySize = 16

	// CodeLoadFixedSize and DebugInfoFixedSize include the prefix.
	CodeLoadFixedSize   = PrefixSize + codeLoadBodySize
	DebugInfoFixedSize  = PrefixSize + debugInfoBodySize
	DebugEntryFixedSize = debugEntryBodySize
)

// sameFile replaces a debug entry file name equal to the previous one.
// Decoded, never encoded.
var sameFile = []byte{0xff, 0x00}

type Kind uint32

const (
	KindCodeLoad Kind = iota
	KindCodeMove
	KindDebugInfo
	KindCodeClose
	KindUnwindingInfo
)

func (k Kind) String() string {
	switch k {
	case KindCodeLoad:
		return "CODE_LOAD"
	case KindCodeMove:
		return "CODE_MOVE"
	case KindDebugInfo:
		return "DEBUG_INFO"
	case KindCodeClose:
		return "CODE_CLOSE"
	case KindUnwindingInfo:
		return "UNWINDING_INFO"
	default:
		return fmt.Sprintf("KIND(%d)", uint32(k))
	}
}

// Header is the file header, written once at offset 0.
type Header struct {
	Magic     uint32
	Version   uint32
	TotalSize uint32
	ElfMach   uint32
	Pad1      uint32
	Pid       uint32
	Timestamp uint64
	Flags     uint64
}

// Prefix starts every record. TotalSize covers the prefix, the fixed
// body and all trailing variable-length data.
type Prefix struct {
	Kind      Kind
	TotalSize uint32
	Timestamp uint64
}

// CodeLoad holds the fixed fields of a code-load record.
type CodeLoad struct {
	Pid       uint32
	Tid       uint32
	Vma       uint64
	CodeAddr  uint64
	CodeSize  uint64
	CodeIndex uint64
}

// LineEntry is one row of a line table as handed out by a debug-line
// provider, before any address correction.
type LineEntry struct {
	Addr          uint64
	File          string
	Line          int32
	Discriminator int32
}

// DebugEntry is one decoded entry of a debug-info record. Addr is the
// address stored in the file, offset correction included.
type DebugEntry struct {
	Addr          uint64
	Line          int32
	Discriminator int32
	File          string
}

// Record is any decoded record.
type Record interface {
	RecordPrefix() Prefix
}

type CodeLoadRecord struct {
	Prefix
	CodeLoad
	Name string
	Code []byte
}

type DebugInfoRecord struct {
	Prefix
	CodeAddr uint64
	Entries  []DebugEntry
}

// RawRecord carries the undecoded body of kinds this package does not
// interpret.
type RawRecord struct {
	Prefix
	Body []byte
}

func (p Prefix) RecordPrefix() Prefix { return p }
