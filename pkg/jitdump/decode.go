package jitdump

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Reader decodes a jitdump stream: ReadHeader once, then Next until
// io.EOF.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadHeader reads the file header and skips any header bytes beyond
// the ones this package knows about.
func (r *Reader) ReadHeader() (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	h := &Header{
		Magic:     order.Uint32(buf[0:]),
		Version:   order.Uint32(buf[4:]),
		TotalSize: order.Uint32(buf[8:]),
		ElfMach:   order.Uint32(buf[12:]),
		Pad1:      order.Uint32(buf[16:]),
		Pid:       order.Uint32(buf[20:]),
		Timestamp: order.Uint64(buf[24:]),
		Flags:     order.Uint64(buf[32:]),
	}
	switch h.Magic {
	case Magic:
	case SwappedMagic:
		return nil, ErrByteOrder
	default:
		return nil, errors.Wrapf(ErrBadMagic, "found %#x", h.Magic)
	}
	if h.TotalSize < HeaderSize {
		return nil, errors.Wrapf(ErrBadHeaderSize, "found %d", h.TotalSize)
	}
	if extra := int64(h.TotalSize) - HeaderSize; extra > 0 {
		if _, err := io.CopyN(io.Discard, r.r, extra); err != nil {
			return nil, errors.Wrap(err, "failed to skip header padding")
		}
	}

	return h, nil
}

// Next returns the next record. It returns io.EOF at a clean end of
// stream and io.ErrUnexpectedEOF when the last record is truncated.
func (r *Reader) Next() (Record, error) {
	buf := make([]byte, PrefixSize)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	p := Prefix{
		Kind:      Kind(order.Uint32(buf[0:])),
		TotalSize: order.Uint32(buf[4:]),
		Timestamp: order.Uint64(buf[8:]),
	}
	if p.TotalSize < PrefixSize {
		return nil, errors.Wrapf(ErrBadRecordSize, "%s record declares %d bytes", p.Kind, p.TotalSize)
	}

	body := make([]byte, p.TotalSize-PrefixSize)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch p.Kind {
	case KindCodeLoad:
		return decodeCodeLoad(p, body)
	case KindDebugInfo:
		return decodeDebugInfo(p, body)
	default:
		return &RawRecord{Prefix: p, Body: body}, nil
	}
}

// ReadAll decodes a whole stream.
func ReadAll(rd io.Reader) (*Header, []Record, error) {
	r := NewReader(rd)
	h, err := r.ReadHeader()
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return h, records, nil
		}
		if err != nil {
			return h, records, err
		}
		records = append(records, rec)
	}
}

func decodeCodeLoad(p Prefix, body []byte) (*CodeLoadRecord, error) {
	if len(body) < codeLoadBodySize {
		return nil, errors.Wrapf(ErrBadRecordSize, "code-load body is %d bytes", len(body))
	}
	rec := &CodeLoadRecord{
		Prefix: p,
		CodeLoad: CodeLoad{
			Pid:       order.Uint32(body[0:]),
			Tid:       order.Uint32(body[4:]),
			Vma:       order.Uint64(body[8:]),
			CodeAddr:  order.Uint64(body[16:]),
			CodeSize:  order.Uint64(body[24:]),
			CodeIndex: order.Uint64(body[32:]),
		},
	}

	rest := body[codeLoadBodySize:]
	if rec.CodeSize > uint64(len(rest)) {
		return nil, errors.Wrapf(ErrBadRecordSize, "code size %d exceeds record", rec.CodeSize)
	}
	nameLen := uint64(len(rest)) - rec.CodeSize
	name := rest[:nameLen]
	if nameLen == 0 || name[nameLen-1] != 0 {
		return nil, errors.Wrap(ErrMissingTerminator, "code-load symbol name")
	}
	if i := bytes.IndexByte(name, 0); uint64(i) != nameLen-1 {
		return nil, errors.Wrapf(ErrBadRecordSize, "symbol name ends %d bytes early", nameLen-1-uint64(i))
	}
	rec.Name = string(name[:nameLen-1])
	rec.Code = rest[nameLen:]

	return rec, nil
}

func decodeDebugInfo(p Prefix, body []byte) (*DebugInfoRecord, error) {
	if len(body) < debugInfoBodySize {
		return nil, errors.Wrapf(ErrBadRecordSize, "debug-info body is %d bytes", len(body))
	}
	rec := &DebugInfoRecord{
		Prefix:   p,
		CodeAddr: order.Uint64(body[0:]),
	}
	n := order.Uint64(body[8:])
	rest := body[debugInfoBodySize:]

	// Every entry takes at least its fixed part plus a terminator.
	if n > uint64(len(rest))/(debugEntryBodySize+1) {
		return nil, errors.Wrapf(ErrBadRecordSize, "%d debug entries do not fit %d bytes", n, len(rest))
	}
	rec.Entries = make([]DebugEntry, 0, n)
	var prev string
	for i := uint64(0); i < n; i++ {
		if len(rest) < debugEntryBodySize {
			return nil, errors.Wrapf(ErrBadRecordSize, "debug entry %d truncated", i)
		}
		e := DebugEntry{
			Addr:          order.Uint64(rest[0:]),
			Line:          int32(order.Uint32(rest[8:])),
			Discriminator: int32(order.Uint32(rest[12:])),
		}
		rest = rest[debugEntryBodySize:]

		if bytes.HasPrefix(rest, sameFile) {
			e.File = prev
			rest = rest[len(sameFile):]
		} else {
			end := bytes.IndexByte(rest, 0)
			if end < 0 {
				return nil, errors.Wrapf(ErrMissingTerminator, "debug entry %d file name", i)
			}
			e.File = string(rest[:end])
			rest = rest[end+1:]
		}
		prev = e.File
		rec.Entries = append(rec.Entries, e)
	}
	if len(rest) != 0 {
		return nil, errors.Wrapf(ErrBadRecordSize, "%d trailing bytes after debug entries", len(rest))
	}

	return rec, nil
}
