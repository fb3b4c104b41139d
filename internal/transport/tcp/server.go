// Package tcptransport is the raw-stream surface: terminator-delimited JSON
// commands over a long-lived connection. Each connection carries its own
// session state, established by an in-stream login and discarded on close.
package tcptransport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	authmodels "idwallet/internal/auth/models"
	"idwallet/internal/platform/metrics"
	"idwallet/internal/protocol/command"
	"idwallet/internal/protocol/frame"
	dErrors "idwallet/pkg/domain-errors"
)

// Dispatcher routes a parsed command under the session gate.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command, session *authmodels.Session) (command.Response, *authmodels.Session)
}

// Config carries the stream transport settings.
type Config struct {
	Addr        string
	TLSCertFile string
	TLSKeyFile  string
	Terminator  string
	// MaxFrameBuffer bounds per-connection reassembly; exceeding it drops
	// the connection.
	MaxFrameBuffer int
	ReadTimeout    time.Duration
}

// Server accepts raw-stream connections and runs one handler goroutine per
// connection. Responses on a connection are written in request order because
// a single goroutine reads, dispatches, and writes sequentially.
type Server struct {
	cfg        Config
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewServer(cfg Config, dispatcher Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
	}
}

// listen opens the configured listener, TLS when a certificate pair is set.
func (s *Server) listen() (net.Listener, error) {
	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load TLS certificate: %w", err)
		}
		return tls.Listen("tcp", s.cfg.Addr, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	}
	return net.Listen("tcp", s.cfg.Addr)
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. Exposed separately
// so tests can inject a loopback listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("stream transport listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn owns one connection for its whole lifetime. The session starts
// nil and is bound only by a successful in-stream login; it never outlives
// the connection.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)
	defer func() {
		_ = conn.Close()
		logger.Debug("connection closed")
	}()

	// Closing the socket on cancellation unblocks the read loop, so an
	// active client cannot hold up shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	logger.Debug("connection accepted")

	reassembler, err := frame.New([]byte(s.cfg.Terminator), s.cfg.MaxFrameBuffer)
	if err != nil {
		logger.Error("invalid framing configuration", "error", err)
		return
	}

	var session *authmodels.Session
	buf := make([]byte, 512)
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, readErr := conn.Read(buf)
		if n > 0 {
			frames, feedErr := reassembler.Feed(buf[:n])
			for _, raw := range frames {
				if s.metrics != nil {
					s.metrics.FramesAssembled.Inc()
				}
				if len(raw) == 0 {
					continue
				}
				session = s.serveFrame(ctx, conn, raw, session, logger)
			}
			if errors.Is(feedErr, frame.ErrOverflow) {
				if s.metrics != nil {
					s.metrics.FrameOverflows.Inc()
				}
				logger.Warn("reassembly buffer overflow, dropping connection",
					"pending", reassembler.Pending(),
				)
				s.writeResponse(conn, command.Fail("frame_overflow", dErrors.New(dErrors.CodeFrameOverflow, "command exceeds maximum size")), logger)
				return
			}
		}
		if readErr != nil {
			if !isExpectedClose(readErr) {
				logger.Warn("read failed", "error", readErr)
			}
			return
		}
	}
}

// serveFrame parses, dispatches, and answers one frame, returning the
// session to carry forward on this connection.
func (s *Server) serveFrame(ctx context.Context, conn net.Conn, raw []byte, session *authmodels.Session, logger *slog.Logger) *authmodels.Session {
	cmd, err := command.Parse(raw)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeUnknownCommand) && s.metrics != nil {
			s.metrics.UnknownCommands.Inc()
		}
		logger.Warn("rejected command", "error", err.Error())
		s.writeResponse(conn, command.Fail(cmd.Type, err), logger)
		return session
	}

	resp, newSession := s.dispatcher.Dispatch(ctx, cmd, session)
	if newSession != nil {
		session = newSession
		logger.Info("session bound to connection",
			"session_id", session.ID.String(),
			"username", session.Username,
		)
	}
	s.writeResponse(conn, resp, logger)
	return session
}

func (s *Server) writeResponse(conn net.Conn, resp command.Response, logger *slog.Logger) {
	payload, err := json.Marshal(resp)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		return
	}
	payload = append(payload, []byte(s.cfg.Terminator)...)
	if _, err := conn.Write(payload); err != nil {
		logger.Warn("write failed", "error", err)
	}
}

func isExpectedClose(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
