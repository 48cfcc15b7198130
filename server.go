package streamprobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Server accepts websocket connections from an audio-streaming peer, runs one
// session per connection and reports aggregate throughput periodically.
type Server struct {
	logger   *slog.Logger
	opts     serverOptions
	upgrader websocket.Upgrader

	http     *http.Server
	listener net.Listener
	port     int

	stats    *Stats
	reporter *reporter

	sessions map[string]*Session
	mu       sync.Mutex

	stopReporter context.CancelFunc
	shutdownOnce sync.Once
}

func NewServer(options ...Option) *Server {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}

	s := &Server{
		logger: opts.logger.With(
			slog.String("component", "server"),
		),
		opts:     opts,
		stats:    &Stats{},
		sessions: make(map[string]*Session),
	}
	s.reporter = newReporter(s.stats, opts.reportInterval, opts.logger)

	mux := http.NewServeMux()
	path := opts.path
	if opts.anyPath || path == "" {
		path = "/"
	}
	mux.HandleFunc(path, s.handleUpgrade)

	s.http = &http.Server{
		Addr:    opts.addr,
		Handler: mux,
	}

	return s
}

// Port returns the bound listener port once Run has succeeded.
func (s *Server) Port() int {
	return s.port
}

// Stats returns a snapshot of the aggregate counters.
func (s *Server) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Run binds the listener and starts serving upgrades. It returns once the
// server is accepting connections; a failure to bind is fatal.
func (s *Server) Run(ctx context.Context) error {
	var err error
	s.listener, err = net.Listen("tcp", s.opts.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.addr, err)
	}
	if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
		s.logger = s.logger.With(slog.String("addr", tcpAddr.String()))
	}

	s.logger.Info("listening", slog.String("path", s.opts.path))

	reporterCtx, cancel := context.WithCancel(context.Background())
	s.stopReporter = cancel
	go s.reporter.run(reporterCtx)

	ready := make(chan struct{})
	serveErr := make(chan error, 1)
	go func() {
		close(ready)
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ready:
		return nil
	case err := <-serveErr:
		return err
	}
}

// Shutdown closes all sessions, stops the reporter and logs the final
// aggregate stats.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutting down")

		if s.stopReporter != nil {
			s.stopReporter()
		}

		s.mu.Lock()
		for _, sess := range s.sessions {
			sess.close("server shutdown")
		}
		s.mu.Unlock()

		err = s.http.Shutdown(ctx)

		final := s.stats.Snapshot()
		s.logger.Info("final stats",
			slog.Uint64("sessions_total", final.SessionsTotal),
			slog.Uint64("audio_frames", final.AudioFrames),
			slog.Uint64("events", final.ControlEvents),
			slog.Uint64("bytes_total", final.BytesTotal),
		)
	})
	return err
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("path", r.URL.Path),
	)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	sess := newSession(conn, s.stats, logger, &s.opts)

	s.addSession(sess)
	defer s.removeSession(sess)

	logger.Info("new connection", slog.String("session_id", sess.id))

	sess.run()
}

func (s *Server) addSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.id] = sess
	s.stats.sessionStarted()
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.id)
	s.stats.sessionEnded()
}
