package jithost

import (
	"runtime"

	log "github.com/rs/zerolog"
)

type LoaderOptions struct {
	workers int
	logger  log.Logger
}

type Option func(*Loader)

// WithWorkers bounds how many functions are mapped and announced at
// the same time.
func WithWorkers(workers int) Option {
	return func(o *Loader) {
		if workers > 0 {
			o.workers = workers
		}
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Loader) {
		o.logger = logger
	}
}

func defaultOptions() *LoaderOptions {
	return &LoaderOptions{
		workers: runtime.NumCPU(),
		logger:  log.Nop(),
	}
}
