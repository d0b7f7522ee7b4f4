package jitdump

import "github.com/pkg/errors"

var (
	ErrBadMagic          = errors.New("bad jitdump magic")
	ErrByteOrder         = errors.New("jitdump written with the other byte order")
	ErrBadHeaderSize     = errors.New("jitdump header size too small")
	ErrBadRecordSize     = errors.New("record size does not match its content")
	ErrRecordTooLarge    = errors.New("record does not fit a 32-bit size")
	ErrCodeSizeMismatch  = errors.New("code bytes do not match the declared code size")
	ErrMissingTerminator = errors.New("string is not NUL-terminated")
	ErrBadFileName       = errors.New("debug entry file name cannot be encoded")
)
