// Package dumpfile owns an open jitdump file. A Writer is the single
// serialization point of a session: the write cursor and the code index
// sequence live behind the same mutex, so concurrent events never
// interleave and indices are handed out in file order.
package dumpfile

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
)

// FileMode is what perf's own jitdump writers use.
const FileMode = 0o666

var (
	ErrClosed        = errors.New("dump file is closed")
	ErrHeaderWritten = errors.New("header already written")
	ErrNoHeader      = errors.New("header not written yet")
)

type Writer struct {
	mu sync.Mutex

	file      *os.File
	path      string
	offset    int64
	nextIndex uint64
	header    bool

	logger log.Logger
}

type Option func(*Writer)

func WithLogger(logger log.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// Create creates (or truncates) path for reading and writing.
func Create(path string, opts ...Option) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, FileMode)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open JIT dump file %s", path)
	}

	w := &Writer{
		file:      f,
		path:      path,
		nextIndex: 1,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

func (w *Writer) Name() string {
	return w.path
}

// Fd is the descriptor the marker maps. It fails with ErrClosed once
// the file is closed.
func (w *Writer) Fd() (uintptr, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, ErrClosed
	}
	return w.file.Fd(), nil
}

// Offset returns the write cursor.
func (w *Writer) Offset() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.offset
}

// WriteHeader writes the file header at offset 0. It must be the first
// write.
func (w *Writer) WriteHeader(header []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}
	if w.header {
		return ErrHeaderWritten
	}
	if err := w.append(header); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	w.header = true

	return nil
}

// Encoder builds the bytes of one event given the code index reserved
// for it. It runs with the writer lock held and must not block.
type Encoder func(codeIndex uint64) ([]byte, error)

// WriteEvent reserves the next code index, encodes the event and appends
// it as one contiguous unit. The index is consumed only when the event
// is fully written; on failure the file is cut back to the previous
// cursor so no partial record stays behind.
func (w *Writer) WriteEvent(encode Encoder) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, ErrClosed
	}
	if !w.header {
		return 0, ErrNoHeader
	}

	index := w.nextIndex
	buf, err := encode(index)
	if err != nil {
		return 0, err
	}
	if err := w.append(buf); err != nil {
		return 0, err
	}
	w.nextIndex++

	return index, nil
}

// append writes buf at the cursor. Must hold mu.
func (w *Writer) append(buf []byte) error {
	n, err := w.file.WriteAt(buf, w.offset)
	if err == nil && n == len(buf) {
		w.offset += int64(n)
		return nil
	}
	if err == nil {
		err = errors.Errorf("short write: %d of %d bytes", n, len(buf))
	}
	if terr := w.file.Truncate(w.offset); terr != nil {
		w.logger.Warn().Err(terr).Int64("offset", w.offset).Msg("failed to drop partial record")
	}

	return errors.Wrap(err, "failed to append to dump file")
}

// Close syncs and closes the file. Further calls are no-ops.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil

	serr := f.Sync()
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed to close dump file")
	}

	return errors.Wrap(serr, "failed to sync dump file")
}
