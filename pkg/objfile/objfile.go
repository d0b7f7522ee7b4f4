// Package objfile reads the functions of an ELF object, their machine
// code and their DWARF line tables, so that they can be replayed as if
// a JIT had just emitted them.
package objfile

import (
	"debug/dwarf"
	"debug/elf"
	"io"
	"os"
	"regexp"
	"sort"
	"sync"

	"github.com/aquasecurity/libbpfgo/helpers"
	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/maxgio92/perfjit/pkg/jitdump"
)

// Function is a sized STT_FUNC symbol. Offset is where its code starts
// in the object file.
type Function struct {
	Name   string
	Addr   uint64
	Size   uint64
	Offset uint64
}

type Object struct {
	path  string
	file  *elf.File
	raw   *os.File
	funcs []Function

	include *regexp.Regexp
	exclude *regexp.Regexp

	linesOnce sync.Once
	lines     []jitdump.LineEntry

	*ObjectOptions
}

// New returns an Object with no file loaded yet.
func New(opts ...Option) (*Object, error) {
	o := &Object{
		ObjectOptions: &ObjectOptions{logger: log.Nop()},
	}
	for _, opt := range opts {
		opt(o)
	}

	var err error
	if o.symPatternInclude != "" {
		if o.include, err = regexp.Compile(o.symPatternInclude); err != nil {
			return nil, errors.Wrap(err, "invalid include pattern")
		}
	}
	if o.symPatternExclude != "" {
		if o.exclude, err = regexp.Compile(o.symPatternExclude); err != nil {
			return nil, errors.Wrap(err, "invalid exclude pattern")
		}
	}

	return o, nil
}

// Open is New followed by Load.
func Open(path string, opts ...Option) (*Object, error) {
	o, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := o.Load(path); err != nil {
		return nil, err
	}

	return o, nil
}

// Load opens the ELF file at path and collects its functions.
func (o *Object) Load(path string) error {
	if path == "" {
		return ErrPathEmpty
	}
	o.path = path

	var err error
	o.file, err = elf.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open elf file")
	}
	if o.file == nil {
		return ErrElfFileNil
	}
	o.raw, err = os.Open(path)
	if err != nil {
		o.file.Close()
		return errors.Wrap(err, "failed to open object file")
	}

	if err = o.loadFunctions(); err != nil {
		o.Close()
		return err
	}

	return nil
}

func (o *Object) Path() string {
	return o.path
}

// Functions returns the selected functions, by address.
func (o *Object) Functions() []Function {
	return o.funcs
}

func (o *Object) Close() error {
	var err error
	if o.raw != nil {
		err = o.raw.Close()
		o.raw = nil
	}
	if o.file != nil {
		if cerr := o.file.Close(); cerr != nil {
			err = cerr
		}
		o.file = nil
	}

	return err
}

func (o *Object) loadFunctions() error {
	funcSyms, err := o.getFuncSyms()
	if err != nil {
		return err
	}
	if len(funcSyms) == 0 {
		return ErrNoFunctionSymbols
	}

	o.logger.Debug().
		Int("functions", len(funcSyms)).
		Str("path", o.path).
		Str("include", o.symPatternInclude).
		Str("exclude", o.symPatternExclude).
		Msg("getting function offsets from symbols")
	for _, sym := range funcSyms {
		offset, err := helpers.SymbolToOffset(o.path, sym.Name)
		if err != nil {
			// Symbols at the very start of a section are not resolved
			// by the helper.
			o.logger.Debug().Err(err).Str("symbol", sym.Name).Msg("falling back to section offset")
			off, ok := o.sectionOffset(sym)
			if !ok {
				continue
			}
			offset = uint32(off)
		}
		o.funcs = append(o.funcs, Function{
			Name:   sym.Name,
			Addr:   sym.Value,
			Size:   sym.Size,
			Offset: uint64(offset),
		})
	}
	if len(o.funcs) == 0 {
		return ErrNoFunctionSymbols
	}
	sort.SliceStable(o.funcs, func(i, j int) bool {
		return o.funcs[i].Addr < o.funcs[j].Addr
	})

	return nil
}

func (o *Object) getFuncSyms() ([]elf.Symbol, error) {
	var funcSyms []elf.Symbol
	if o.file == nil {
		return nil, ErrElfFileNil
	}
	syms, err := o.file.Symbols()
	if err != nil {
		return nil, err
	}

	for _, sym := range syms {
		// Exclude non-function symbols.
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
			continue
		}
		// Nothing to replay for an unsized or undefined function.
		if sym.Size == 0 || sym.Section == elf.SHN_UNDEF {
			continue
		}
		if !o.ShouldIncludeSymbol(sym) {
			continue
		}

		funcSyms = append(funcSyms, sym)
	}

	return funcSyms, nil
}

func (o *Object) sectionOffset(sym elf.Symbol) (uint64, bool) {
	if sym.Section >= elf.SHN_LORESERVE || int(sym.Section) >= len(o.file.Sections) {
		return 0, false
	}
	s := o.file.Sections[sym.Section]
	if s.Type == elf.SHT_NOBITS || sym.Value < s.Addr || sym.Value-s.Addr+sym.Size > s.Size {
		return 0, false
	}

	return sym.Value - s.Addr + s.Offset, true
}

func (o *Object) ShouldIncludeSymbol(sym elf.Symbol) bool {
	// Exclude symbols with specific bind.
	for _, bind := range o.symBindExclude {
		if elf.ST_BIND(sym.Info) == bind {
			return false
		}
	}
	// Include only symbols with specific bind.
	if o.symBindInclude != nil {
		for _, bind := range o.symBindInclude {
			if elf.ST_BIND(sym.Info) == bind {
				return true
			}
		}
		return false
	}
	// Exclude symbols that match a specific regex pattern.
	if o.exclude != nil && o.exclude.MatchString(sym.Name) {
		return false
	}
	// Include only symbols that match a specific regex pattern.
	if o.include != nil {
		return o.include.MatchString(sym.Name)
	}

	return true
}

// Code reads the machine code of fn from the object file.
func (o *Object) Code(fn Function) ([]byte, error) {
	if o.raw == nil {
		return nil, ErrElfFileNil
	}
	buf := make([]byte, fn.Size)
	n, err := o.raw.ReadAt(buf, int64(fn.Offset))
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			err = ErrShortCode
		}
		return nil, errors.Wrapf(err, "failed to read %d bytes of %s", fn.Size, fn.Name)
	}

	return buf, nil
}

// Lines returns the line table rows that fall into fn, by address. An
// object without DWARF has no rows.
func (o *Object) Lines(fn Function) []jitdump.LineEntry {
	o.linesOnce.Do(o.loadLines)

	lo := sort.Search(len(o.lines), func(i int) bool {
		return o.lines[i].Addr >= fn.Addr
	})
	hi := lo
	for hi < len(o.lines) && o.lines[hi].Addr < fn.Addr+fn.Size {
		hi++
	}
	if lo == hi {
		return nil
	}

	return append([]jitdump.LineEntry(nil), o.lines[lo:hi]...)
}

func (o *Object) loadLines() {
	if o.file == nil {
		return
	}
	d, err := o.file.DWARF()
	if err != nil {
		o.logger.Debug().Err(err).Str("path", o.path).Msg("no line information")
		return
	}

	r := d.Reader()
	for {
		cu, err := r.Next()
		if err != nil {
			o.logger.Debug().Err(err).Msg("failed to read compile unit")
			break
		}
		if cu == nil {
			break
		}
		if cu.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		o.lines = append(o.lines, readLines(d, cu, o.logger)...)
		r.SkipChildren()
	}

	sort.SliceStable(o.lines, func(i, j int) bool {
		return o.lines[i].Addr < o.lines[j].Addr
	})
	o.logger.Debug().Int("rows", len(o.lines)).Str("path", o.path).Msg("loaded line table")
}

func readLines(d *dwarf.Data, cu *dwarf.Entry, logger log.Logger) []jitdump.LineEntry {
	lr, err := d.LineReader(cu)
	if err != nil || lr == nil {
		return nil
	}

	var rows []jitdump.LineEntry
	var le dwarf.LineEntry
	for {
		if err := lr.Next(&le); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug().Err(err).Msg("failed to read line entry")
			}
			return rows
		}
		if le.EndSequence || le.File == nil {
			continue
		}
		rows = append(rows, jitdump.LineEntry{
			Addr:          le.Address,
			File:          le.File.Name,
			Line:          int32(le.Line),
			Discriminator: int32(le.Discriminator),
		})
	}
}
