// Package ingress is the concrete development/test transport that feeds
// SamplePackets into the orchestrator. The message-bus
// transport is an external collaborator reachable only through an
// interface — no MQTT client library is wired into this module,
// so (mirroring internal/egress's LogSink/MemSink split) the real
// broker subscription is left as a TODO for the deployment environment
// and this package instead ships a newline-delimited-JSON TCP listener,
// grounded on the operator package's Unix-socket accept loop.
package ingress

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/solusimicro/vibralyzer/internal/ringbuf"
)

const maxLineBytes = 1 << 20

// Sink receives one decoded packet at a time. orchestrator.Orchestrator
// satisfies this with its Ingest method.
type Sink interface {
	Ingest(pkt ringbuf.SamplePacket)
}

// Server accepts TCP connections, each expected to carry one
// newline-delimited JSON SamplePacket per line, and forwards every
// decoded packet to Sink.Ingest.
type Server struct {
	addr string
	sink Sink
	log  *zap.Logger
}

// NewServer creates an ingress Server bound to addr (e.g. "0.0.0.0:9000").
func NewServer(addr string, sink Sink, log *zap.Logger) *Server {
	return &Server{addr: addr, sink: sink, log: log}
}

// ListenAndServe accepts connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ingress: listen %q: %w", s.addr, err)
	}
	defer lis.Close()

	s.log.Info("ingress listener started", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("ingress: accept error", zap.Error(err))
				continue
			}
		}
		go s.handleConn(conn)
	}
}

// handleConn decodes one newline-delimited JSON SamplePacket per line
// until the peer disconnects. A malformed line is logged and skipped;
// it does not close the connection.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var pkt ringbuf.SamplePacket
		if err := json.Unmarshal(line, &pkt); err != nil {
			s.log.Debug("ingress: malformed packet line", zap.Error(err))
			continue
		}
		if pkt.Timestamp == 0 {
			pkt.Timestamp = float64(time.Now().UnixNano()) / 1e9
		}
		s.sink.Ingest(pkt)
	}
}
