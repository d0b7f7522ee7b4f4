// Package jithost plays the part of a JIT: it copies function code into
// fresh executable pages and notifies a session.Listener, the same way
// a real JIT would after finishing a function.
package jithost

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/maxgio92/perfjit/internal/utils"
	"github.com/maxgio92/perfjit/pkg/jitdump"
	"github.com/maxgio92/perfjit/pkg/objfile"
	"github.com/maxgio92/perfjit/pkg/session"
)

// Source provides functions to load. *objfile.Object is one.
type Source interface {
	Functions() []objfile.Function
	Code(fn objfile.Function) ([]byte, error)
	Lines(fn objfile.Function) []jitdump.LineEntry
}

var _ Source = (*objfile.Object)(nil)

type Loader struct {
	listener session.Listener

	// regions maps a symbol cookie to its *Region.
	regions sync.Map

	total    atomic.Int64
	skipped  atomic.Int64
	consumed atomic.Uint64

	*LoaderOptions
}

type cookie uint64

func NewLoader(listener session.Listener, opts ...Option) *Loader {
	l := &Loader{
		listener:      listener,
		LoaderOptions: defaultOptions(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "loader").Logger()

	return l
}

// Load maps every function of src and announces it. A function that
// cannot be read, mapped or recorded is logged and skipped. Load stops
// early when ctx is done.
func (l *Loader) Load(ctx context.Context, src Source) error {
	if l.listener == nil {
		return ErrListenerNil
	}
	funcs := src.Functions()
	if len(funcs) == 0 {
		return ErrNoFunctions
	}
	l.total.Add(int64(len(funcs)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	l.logger.Debug().Int("functions", len(funcs)).Int("workers", l.workers).Msg("loading functions")
	for _, fn := range funcs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := l.loadOne(src, fn); err != nil {
				l.skipped.Add(1)
				l.logger.Warn().Err(err).Str("symbol", fn.Name).Msg("skipping function")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

func (l *Loader) loadOne(src Source, fn objfile.Function) error {
	id := cookie(utils.Hash(fn.Name))
	if _, ok := l.regions.Load(id); ok {
		l.logger.Debug().Str("symbol", fn.Name).Msg("duplicate symbol")
		l.skipped.Add(1)
		return nil
	}

	code, err := src.Code(fn)
	if err != nil {
		return err
	}
	region, exec, err := mapCode(fn.Name, code)
	if err != nil {
		return err
	}
	if !exec {
		l.logger.Debug().Str("symbol", fn.Name).Msg("executable memory denied, code mapped read-only")
	}
	if _, loaded := l.regions.LoadOrStore(id, region); loaded {
		l.skipped.Add(1)
		if err := region.free(); err != nil {
			l.logger.Debug().Err(err).Str("symbol", fn.Name).Msg("failed to unmap duplicate")
		}
		return nil
	}

	lines := Rebase(src.Lines(fn), fn.Addr, region.Addr)
	// The code stays mapped even if the event is dropped.
	if err := l.listener.OnCodeEmitted(session.CodeRange{Addr: region.Addr, Size: region.Size}, fn.Name, lines); err != nil {
		l.logger.Warn().Err(err).Str("symbol", fn.Name).Msg("code event dropped")
		return nil
	}
	l.consumed.Add(1)

	return nil
}

// Rebase moves line rows from the function at from to the copy at to.
func Rebase(lines []jitdump.LineEntry, from, to uint64) []jitdump.LineEntry {
	if len(lines) == 0 {
		return nil
	}
	out := make([]jitdump.LineEntry, len(lines))
	for i, l := range lines {
		out[i] = l
		out[i].Addr = l.Addr - from + to
	}

	return out
}

// Loaded returns how many functions are currently mapped.
func (l *Loader) Loaded() int {
	return utils.LenSyncMap(&l.regions)
}

// Progress returns how many functions were handled, mapped or skipped,
// and how many were requested.
func (l *Loader) Progress() (done, total int64) {
	return int64(l.Loaded()) + l.skipped.Load(), l.total.Load()
}

// Rate returns how many functions were announced since the previous
// call.
func (l *Loader) Rate() uint64 {
	return l.consumed.Swap(0)
}

// Regions returns the mapped regions by address.
func (l *Loader) Regions() []*Region {
	var regions []*Region
	l.regions.Range(func(_, v any) bool {
		regions = append(regions, v.(*Region))
		return true
	})
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Addr < regions[j].Addr
	})

	return regions
}

// Unload notifies the listener that every region is gone and unmaps
// them. It returns the first failure.
func (l *Loader) Unload() error {
	var first error
	l.regions.Range(func(k, v any) bool {
		r := v.(*Region)
		l.regions.Delete(k)

		if l.listener != nil {
			if err := l.listener.OnCodeFreed(session.CodeRange{Addr: r.Addr, Size: r.Size}); err != nil && first == nil {
				first = err
			}
		}
		if err := r.free(); err != nil && first == nil {
			first = errors.Wrapf(err, "failed to unmap %s", r.Name)
		}
		return true
	})

	return first
}
