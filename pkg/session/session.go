// Package session writes a perf jitdump for the code a JIT emits in
// this process.
//
// A Session goes Uninitialized → Initializing → Active or Inert, and
// Active → Closed. It becomes Active only if every setup step succeeds:
// clock check, session directory, dump file, ELF machine probe, header,
// marker mapping. Otherwise it stays Inert for good and every event is
// a no-op: not being profilable must never break the host.
package session

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/maxgio92/perfjit/pkg/clock"
	"github.com/maxgio92/perfjit/pkg/dumpfile"
	"github.com/maxgio92/perfjit/pkg/jitdump"
	"github.com/maxgio92/perfjit/pkg/marker"
	"github.com/maxgio92/perfjit/pkg/selfimage"
	"github.com/maxgio92/perfjit/pkg/store"
)

type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
	StateInert
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateInert:
		return "inert"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CodeRange is a span of emitted machine code.
type CodeRange struct {
	Addr uint64
	Size uint64
}

// Listener is what a JIT host notifies.
type Listener interface {
	OnCodeEmitted(r CodeRange, name string, lines []jitdump.LineEntry) error
	OnCodeFreed(r CodeRange) error
}

var _ Listener = (*Session)(nil)

type Session struct {
	// mu serializes Init and Close. Events only read state.
	mu    sync.Mutex
	state atomic.Int32

	writer  *dumpfile.Writer
	marker  *marker.Handle
	emitted atomic.Uint64
	initErr error

	*SessionOptions
}

func New(opts ...Option) *Session {
	s := &Session{SessionOptions: defaultOptions()}
	for _, opt := range opts {
		opt(s)
	}
	if s.pid == 0 {
		s.pid = unix.Getpid()
	}
	s.logger = s.logger.With().Str("component", "session").Logger()

	return s
}

// Open is New followed by Init. The session is returned even when Init
// fails, in which case it is Inert.
func Open(opts ...Option) (*Session, error) {
	s := New(opts...)
	return s, s.Init()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Err returns why the session is Inert, if it is.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.initErr
}

// Path returns the dump file path, or "" if none was created.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return ""
	}
	return s.writer.Name()
}

// Emitted returns how many code-load records were written.
func (s *Session) Emitted() uint64 {
	return s.emitted.Load()
}

// Init runs the setup once. Later calls return the first outcome.
func (s *Session) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateUninitialized {
		return s.initErr
	}
	s.state.Store(int32(StateInitializing))

	if err := s.setup(); err != nil {
		if rerr := s.release(); rerr != nil {
			s.logger.Debug().Err(rerr).Msg("failed to release partial session")
		}
		s.initErr = &InertError{Cause: err}
		s.state.Store(int32(StateInert))
		s.logger.Warn().Err(err).Msg("jitdump disabled")

		return s.initErr
	}
	s.state.Store(int32(StateActive))
	s.logger.Info().Str("path", s.writer.Name()).Int("pid", s.pid).Msg("jitdump enabled")

	return nil
}

func (s *Session) setup() error {
	if s.clock == nil {
		c, err := clock.NewMonotonic()
		if err != nil {
			return errors.Wrap(err, "kernel does not support CLOCK_MONOTONIC")
		}
		s.clock = c
	}

	dir, err := store.Resolve(
		store.WithBaseDir(s.baseDir),
		store.WithLang(s.jitLang),
		store.WithNow(s.now),
	)
	if err != nil {
		return errors.Wrap(err, "could not initialize debugging directory")
	}

	s.writer, err = dumpfile.Create(
		filepath.Join(dir, store.DumpFileName(s.pid)),
		dumpfile.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}

	machine, err := selfimage.Machine(s.selfImagePath)
	if err != nil {
		return errors.Wrap(err, "could not identify the ELF machine")
	}

	header := jitdump.EncodeHeader(jitdump.Header{
		Magic:     jitdump.Magic,
		Version:   jitdump.Version,
		ElfMach:   uint32(machine),
		Pid:       uint32(s.pid),
		Timestamp: s.clock.Now(),
	})
	if err := s.writer.WriteHeader(header); err != nil {
		return err
	}

	fd, err := s.writer.Fd()
	if err != nil {
		return err
	}
	// Signal this process emits JIT information.
	s.marker, err = marker.Open(fd)
	if err != nil {
		return err
	}

	return nil
}

// release drops the marker and the file. Must hold mu.
func (s *Session) release() error {
	var err error
	if s.marker != nil {
		err = s.marker.Close()
	}
	if s.writer != nil {
		if cerr := s.writer.Close(); cerr != nil {
			if err != nil {
				s.logger.Warn().Err(err).Msg("failed to release marker")
			}
			err = cerr
		}
	}

	return err
}

// OnCodeEmitted writes a debug-info record for lines, if any, then the
// code-load record for r, as one unit. Empty ranges are skipped: they
// cannot be sampled. An error only drops this event; the session stays
// Active.
func (s *Session) OnCodeEmitted(r CodeRange, name string, lines []jitdump.LineEntry) error {
	if s.State() == StateUninitialized {
		// Init failures are logged and recorded; events stay no-ops.
		_ = s.Init()
	}
	if s.State() != StateActive || r.Size == 0 {
		return nil
	}
	if strings.IndexByte(name, 0) >= 0 {
		return errors.Wrapf(ErrBadSymbolName, "%q", name)
	}
	for _, l := range lines {
		if jitdump.CheckFileName(l.File) != nil {
			return errors.Wrapf(ErrBadFileName, "%q in %s", l.File, name)
		}
	}

	code, err := s.codeReader.ReadCode(r.Addr, r.Size)
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", name).Msg("dropping code event")
		return errors.Wrapf(err, "failed to read code of %s", name)
	}

	tid := uint32(unix.Gettid())
	index, err := s.writer.WriteEvent(func(index uint64) ([]byte, error) {
		// Debug info must come first: perf ignores it once the code is
		// loaded.
		ts := s.clock.Now()
		var buf []byte
		if len(lines) > 0 {
			dbg, err := jitdump.EncodeDebugInfo(ts, r.Addr, lines, s.debugAddrOffset)
			if err != nil {
				return nil, err
			}
			buf = dbg
		}
		load, err := jitdump.EncodeCodeLoad(ts, jitdump.CodeLoad{
			Pid:       uint32(s.pid),
			Tid:       tid,
			CodeAddr:  r.Addr,
			CodeSize:  r.Size,
			CodeIndex: index,
		}, name, code)
		if err != nil {
			return nil, err
		}

		return append(buf, load...), nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", name).Msg("dropping code event")
		return errors.Wrapf(err, "failed to write %s", name)
	}
	s.emitted.Add(1)

	s.logger.Debug().
		Str("symbol", name).
		Uint64("addr", r.Addr).
		Uint64("size", r.Size).
		Int("lines", len(lines)).
		Uint64("code_index", index).
		Msg("code emitted")

	return nil
}

// OnCodeFreed does nothing. jitdump has an unload record, but perf has
// no use for it: it infers removal from the code pages being unmapped.
func (s *Session) OnCodeFreed(_ CodeRange) error {
	return nil
}

// Close unmaps the marker and closes the dump file. It is a no-op
// unless the session is Active.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateActive {
		return nil
	}
	s.state.Store(int32(StateClosed))

	return s.release()
}
