package healthcheck

import (
	"bufio"
	"context"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrTimeout   = errors.New("timeout waiting for readiness")
	ErrNotSocket = errors.New("path exists but is not a Unix socket")
)

// Wait polls socketPath every interval until a server reports ready,
// and returns the information it sent. It gives up when ctx is done.
func Wait(ctx context.Context, socketPath string, interval time.Duration) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, ok, err := poll(socketPath, interval)
		if err != nil {
			return "", err
		}
		if ok {
			return info, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll tries once. Only conditions that retrying cannot fix are errors.
func poll(socketPath string, timeout time.Duration) (string, bool, error) {
	fi, err := os.Stat(socketPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "error checking socket")
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return "", false, errors.Wrap(ErrNotSocket, socketPath)
	}

	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		if errors.Is(err, syscall.EACCES) {
			return "", false, errors.Wrap(err, "failed connecting")
		}
		return "", false, nil
	}
	defer conn.Close()

	// The server answers only once ready, so keep the line open for a
	// single interval.
	conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil || len(line) == 0 || line[0] != ReadyMsg {
		return "", false, nil
	}

	return strings.TrimSuffix(line[1:], "\n"), true, nil
}
