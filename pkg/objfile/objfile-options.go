package objfile

import (
	"debug/elf"

	log "github.com/rs/zerolog"
)

type ObjectOptions struct {
	symPatternInclude string
	symPatternExclude string
	symBindInclude    []elf.SymBind
	symBindExclude    []elf.SymBind

	logger log.Logger
}

type Option func(*Object)

func WithSymPatternInclude(patternInclude string) Option {
	return func(o *Object) {
		o.symPatternInclude = patternInclude
	}
}

func WithSymPatternExclude(patternExclude string) Option {
	return func(o *Object) {
		o.symPatternExclude = patternExclude
	}
}

func WithSymBindInclude(symBind ...elf.SymBind) Option {
	return func(o *Object) {
		o.symBindInclude = symBind
	}
}

func WithSymBindExclude(symBind ...elf.SymBind) Option {
	return func(o *Object) {
		o.symBindExclude = symBind
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Object) {
		o.logger = logger
	}
}
