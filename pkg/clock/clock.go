// Package clock provides the timestamp domain of a jitdump session.
package clock

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var ErrUnavailable = errors.New("CLOCK_MONOTONIC is not available")

// Clock returns nanosecond timestamps. perf correlates them with its own
// samples, so they must come from the clock perf uses (-k mono).
type Clock interface {
	Now() uint64
}

// Monotonic reads CLOCK_MONOTONIC.
type Monotonic struct{}

// NewMonotonic returns a Monotonic clock after checking the kernel
// supports it.
func NewMonotonic() (Monotonic, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return Monotonic{}, errors.Wrap(ErrUnavailable, err.Error())
	}
	if ts.Nano() == 0 {
		return Monotonic{}, ErrUnavailable
	}

	return Monotonic{}, nil
}

// Now returns 0 if the clock cannot be read, which NewMonotonic rules
// out in practice.
func (Monotonic) Now() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}

	return uint64(ts.Nano())
}
