package session

import (
	"time"

	log "github.com/rs/zerolog"

	"github.com/maxgio92/perfjit/internal/settings"
	"github.com/maxgio92/perfjit/pkg/clock"
	"github.com/maxgio92/perfjit/pkg/selfimage"
)

type SessionOptions struct {
	baseDir         string
	jitLang         string
	selfImagePath   string
	pid             int
	debugAddrOffset uint64
	now             func() time.Time

	clock      clock.Clock
	codeReader CodeReader

	logger log.Logger
}

type Option func(*Session)

func defaultOptions() *SessionOptions {
	return &SessionOptions{
		jitLang:         settings.JitLang,
		selfImagePath:   selfimage.SelfExe,
		debugAddrOffset: settings.DebugAddrOffset,
		now:             time.Now,
		codeReader:      SelfMemory{},
		logger:          log.Nop(),
	}
}

// WithBaseDir overrides $JITDUMPDIR and the home directory.
func WithBaseDir(dir string) Option {
	return func(s *Session) {
		s.baseDir = dir
	}
}

func WithJitLang(lang string) Option {
	return func(s *Session) {
		s.jitLang = lang
	}
}

// WithSelfImagePath sets the image probed for the ELF machine.
func WithSelfImagePath(path string) Option {
	return func(s *Session) {
		s.selfImagePath = path
	}
}

// WithPid sets the pid written to the header and records, and used in
// the dump file name. It defaults to the current process.
func WithPid(pid int) Option {
	return func(s *Session) {
		s.pid = pid
	}
}

// WithDebugAddrOffset sets the correction added to every debug entry
// address. The default matches the 64-bit ELF header perf prepends to
// the functions it re-creates; other loaders need other values.
func WithDebugAddrOffset(offset uint64) Option {
	return func(s *Session) {
		s.debugAddrOffset = offset
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithClock replaces CLOCK_MONOTONIC. perf only correlates records with
// samples when both share a clock.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

func WithCodeReader(r CodeReader) Option {
	return func(s *Session) {
		s.codeReader = r
	}
}

func WithLogger(logger log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}
