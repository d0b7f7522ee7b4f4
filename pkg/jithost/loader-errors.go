package jithost

import (
	"github.com/pkg/errors"
)

var (
	ErrNoFunctions  = errors.New("no functions to load")
	ErrListenerNil  = errors.New("listener is nil")
	ErrEmptyCode    = errors.New("function has no code")
	ErrAlreadyFreed = errors.New("region already freed")
)
