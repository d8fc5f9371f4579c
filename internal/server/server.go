// Package server implements the TCP endpoint of a single virtual
// instrument: an accept loop plus one read-dispatch-write goroutine per
// client connection.
package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pfjsystems/virtbench/dispatch"
	"github.com/pfjsystems/virtbench/internal/telemetry"
)

// Config carries the listener settings of one instrument endpoint.
type Config struct {
	Name  string // instrument name, used in logs, metrics and telemetry
	Bench string // bench identifier, used in telemetry events
	Bind  string // interface to bind, "" for all
	Port  int    // requested port; anything below 1024 picks an OS-assigned one
}

// Server owns one instrument's listener. Start returns once the port is
// bound; Stop ends accepting while letting open connections finish
// their current batch, the contract behind the close command.
type Server struct {
	cfg  Config
	disp *dispatch.Dispatcher
	pub  telemetry.Publisher
	log  *zap.SugaredLogger

	ln      net.Listener
	wg      sync.WaitGroup
	closing atomic.Bool
	doneC   chan struct{}

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New assembles a Server. A nil publisher disables telemetry.
func New(cfg Config, disp *dispatch.Dispatcher, pub telemetry.Publisher, log *zap.SugaredLogger) *Server {
	if pub == nil {
		pub = telemetry.Nop()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		cfg:   cfg,
		disp:  disp,
		pub:   pub,
		log:   log,
		doneC: make(chan struct{}),
		conns: make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and launches the accept loop. It returns
// immediately; use Port to learn the bound port when the config asked
// for an ephemeral one.
func (s *Server) Start() error {
	port := s.cfg.Port
	if port < 1024 {
		// Privileged and unset ports both fall back to an OS-assigned one.
		port = 0
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Bind, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Infow("instrument listening", "instrument", s.cfg.Name, "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Port returns the port the listener is bound to.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Done is closed once the accept loop has exited, i.e. after Stop or a
// client-issued close command.
func (s *Server) Done() <-chan struct{} {
	return s.doneC
}

// Stop makes the endpoint refuse new connections and lets every open
// connection wind down after the batch it is currently serving. Safe to
// call from a command handler and idempotent.
func (s *Server) Stop() {
	if s.closing.Swap(true) {
		return
	}
	s.log.Infow("instrument closing", "instrument", s.cfg.Name)
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

// Shutdown stops the endpoint and force-closes connections that are
// still open, then waits for the handler goroutines up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	defer close(s.doneC)

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warnw("accept failed", "instrument", s.cfg.Name, "err", err)
			continue
		}

		s.track(conn)
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
