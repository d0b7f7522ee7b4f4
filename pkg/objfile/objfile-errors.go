package objfile

import (
	"github.com/pkg/errors"
)

var (
	ErrNoFunctionSymbols = errors.New("no functions found")
	ErrPathEmpty         = errors.New("object path is empty")
	ErrElfFileNil        = errors.New("elf file is nil")
	ErrShortCode         = errors.New("short read of function code")
)
