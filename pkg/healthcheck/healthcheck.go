// Package healthcheck lets other processes know when an emitting
// process has announced all of its code, over a Unix domain socket.
//
// Once ready, every client receives ReadyMsg followed by the dump file
// path and a newline.
package healthcheck

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
)

const ReadyMsg = 0x01

type Server struct {
	ln         net.Listener
	socketPath string

	once    sync.Once
	readyCh chan struct{}
	info    string

	logger log.Logger
}

func NewServer(socketPath string, logger log.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		readyCh:    make(chan struct{}),
		logger:     logger.With().Str("component", "healthcheck").Logger(),
	}
}

// Listen starts accepting connections until ctx is done or Shutdown is
// called.
func (s *Server) Listen(ctx context.Context) error {
	// Remove a stale socket left by a previous run.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove stale socket")
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrap(err, "failed to listen on UDS")
	}
	s.ln = ln

	go s.acceptConnections(ctx)

	return nil
}

// MarkReady releases every pending and future client with info.
// Only the first call has effect.
func (s *Server) MarkReady(info string) {
	s.once.Do(func() {
		s.logger.Debug().Str("info", info).Msg("marking readiness")
		s.info = info
		close(s.readyCh)
	})
}

// Shutdown closes the listener and removes the socket.
func (s *Server) Shutdown() error {
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("error closing listener")
		}
	}

	if err := os.Remove(s.socketPath); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debug().Err(err).Msg("error removing socket")
			return err
		}
		s.logger.Debug().Msg("socket file already removed")
	}

	return nil
}

func (s *Server) acceptConnections(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("stopping accepting connections")
			return
		default:
			conn, err := s.ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					s.logger.Debug().Msg("listener closed")
					return
				}
				s.logger.Warn().Err(err).Msg("accept error")
				continue
			}

			go s.processConnection(ctx, conn)
		}
	}
}

// processConnection answers a client once the server is ready.
func (s *Server) processConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	select {
	case <-s.readyCh:
		if !s.isConnectionAlive(conn) {
			s.logger.Debug().Msg("connection is closed")
			return
		}
		msg := append([]byte{ReadyMsg}, s.info...)
		msg = append(msg, '\n')
		if err := s.safeWrite(conn, msg); err != nil {
			if !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				s.logger.Debug().Err(err).Msg("failed to write")
			}
		}
	case <-ctx.Done():
		s.logger.Debug().Msg("not sending readiness as context is canceled")
		return
	}
}

func (s *Server) isConnectionAlive(conn net.Conn) bool {
	conn.SetReadDeadline(time.Now())
	if _, err := conn.Read([]byte{}); err == io.EOF {
		s.logger.Debug().Err(err).Msg("peer already closed the connection")
		return false
	}
	conn.SetReadDeadline(time.Time{})

	return true
}

func (s *Server) safeWrite(conn net.Conn, data []byte) error {
	_, err := conn.Write(data)
	if err != nil {
		switch {
		case errors.Is(err, syscall.EPIPE):
			return errors.Wrap(err, "peer closed the connection")
		case errors.Is(err, syscall.ECONNRESET):
			return errors.Wrap(err, "peer reset the connection")
		default:
			return errors.Wrap(err, "failed to write")
		}
	}
	return nil
}
