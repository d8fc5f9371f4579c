package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pfjsystems/virtbench/internal/metrics"
	"github.com/pfjsystems/virtbench/internal/telemetry"
	"github.com/pfjsystems/virtbench/protocol"
)

// serveConn runs one client session: read a request, answer every
// command it carries in order, repeat until the client hangs up or the
// endpoint is closing. A read of pure whitespace yields no commands and
// no response bytes, and the connection stays open.
func (s *Server) serveConn(c net.Conn) {
	defer s.wg.Done()
	defer s.untrack(c)
	defer c.Close()

	id := uuid.New().String()[:8]
	log := s.log.With("instrument", s.cfg.Name, "conn", id, "remote", c.RemoteAddr().String())
	log.Infow("client connected")
	defer log.Infow("client disconnected")

	metrics.ConnectionsTotal.WithLabelValues(s.cfg.Name).Inc()
	metrics.ConnectionsActive.WithLabelValues(s.cfg.Name).Inc()
	defer metrics.ConnectionsActive.WithLabelValues(s.cfg.Name).Dec()

	buf := make([]byte, protocol.MaxRequestBytes)
	for !s.closing.Load() {
		n, err := c.Read(buf)
		if n > 0 {
			if werr := s.answer(c, id, buf[:n]); werr != nil {
				log.Warnw("write failed", "err", werr)
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
			case errors.Is(err, net.ErrClosed):
			default:
				log.Warnw("read failed", "err", err)
			}
			return
		}
	}
}

// answer dispatches one network read and writes one response line per
// command, in arrival order, as a single write.
func (s *Server) answer(c net.Conn, connID string, req []byte) error {
	start := time.Now()

	cmds := protocol.Split(req)
	if len(cmds) == 0 {
		return nil
	}
	lines := s.disp.DispatchBatch(cmds)

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString(protocol.Terminator)
	}
	if _, err := c.Write([]byte(b.String())); err != nil {
		return err
	}

	metrics.BytesRead.WithLabelValues(s.cfg.Name).Add(float64(len(req)))
	metrics.CommandsTotal.WithLabelValues(s.cfg.Name).Add(float64(len(cmds)))
	for _, line := range lines {
		if protocol.IsError(line) {
			metrics.CommandErrors.WithLabelValues(s.cfg.Name).Inc()
		}
	}
	metrics.BatchDuration.Observe(time.Since(start).Seconds())

	s.trace(connID, cmds, lines)
	return nil
}

// trace publishes one telemetry event per command, after the client has
// already been answered.
func (s *Server) trace(connID string, cmds []protocol.Command, lines []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	at := time.Now()
	for i, cmd := range cmds {
		ev := telemetry.Event{
			Bench:      s.cfg.Bench,
			Instrument: s.cfg.Name,
			Conn:       connID,
			Command:    cmd.Raw,
			Response:   lines[i],
			At:         at,
		}
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.log.Warnw("telemetry publish failed", "err", err)
			return
		}
	}
}
