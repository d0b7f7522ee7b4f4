// Package store resolves the per-session directory a jitdump file is
// written into.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/maxgio92/perfjit/internal/settings"
)

var ErrNoBaseDir = errors.New("no base directory")

type Options struct {
	baseDir string
	lang    string
	now     func() time.Time
}

type Option func(*Options)

// WithBaseDir takes precedence over the environment and the home
// directory.
func WithBaseDir(dir string) Option {
	return func(o *Options) {
		o.baseDir = dir
	}
}

func WithLang(lang string) Option {
	return func(o *Options) {
		o.lang = lang
	}
}

func WithNow(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

// BaseDir returns the directory the jit tree hangs off: the explicit
// override, then $JITDUMPDIR, then the home directory, then ".".
func BaseDir(override string) string {
	if override != "" {
		return override
	}
	if dir := os.Getenv(settings.DumpDirEnv); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}

	return "."
}

// Resolve creates <base>/.debug/jit and, below it, a fresh
// <lang>-jit-<YYYYMMDD>-<suffix> directory, and returns the latter.
// Failures are not retried.
func Resolve(opts ...Option) (string, error) {
	o := &Options{
		lang: settings.JitLang,
		now:  time.Now,
	}
	for _, f := range opts {
		f(o)
	}

	base := BaseDir(o.baseDir)
	if base == "" {
		return "", ErrNoBaseDir
	}

	jitDir := filepath.Join(base, settings.DebugDir)
	if err := os.MkdirAll(jitDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "could not create jit cache directory %s", jitDir)
	}

	pattern := o.lang + "-jit-" + o.now().Format("20060102") + "-*"
	dir, err := os.MkdirTemp(jitDir, pattern)
	if err != nil {
		return "", errors.Wrapf(err, "could not create unique jit cache directory in %s", jitDir)
	}

	return dir, nil
}

// DumpFileName is the name perf looks for: jit-<pid>.dump.
func DumpFileName(pid int) string {
	return fmt.Sprintf("jit-%d.dump", pid)
}
