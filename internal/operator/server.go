// Package operator — server.go
//
// Unix domain socket server for vibralyzer operator overrides.
//
// Protocol: newline-delimited JSON over a Unix domain socket.
// Socket path: /run/vibralyzer/operator.sock (configurable).
// Permissions: 0600, owned by root. Only root can connect.
//
// Commands (JSON request → JSON response):
//
//	{"cmd":"status","asset":"A1","point":"DE"}
//	  → Returns the point's current PHI, SCADA state, FSM state, and pin status.
//	  → Response: {"ok":true,"asset":"A1","point":"DE","phi":82.4,"state":"WATCH","fsm_state":"WATCH"}
//	    ("pinned":true is added while a pin is active).
//
//	{"cmd":"pin","asset":"A1","point":"DE","state":"WARNING"}
//	  → Pins the point's reported state. The orchestrator continues running
//	    the evidence track underneath but reports the pinned state downstream
//	    until unpinned.
//	  → Response: {"ok":true,"asset":"A1","point":"DE","pinned_state":"WARNING"}
//
//	{"cmd":"unpin","asset":"A1","point":"DE"}
//	  → Removes the pin, resuming normal state reporting.
//	  → Response: {"ok":true,"asset":"A1","point":"DE"}
//
//	{"cmd":"reset_cooldown","asset":"A1","point":"DE","state":"WARNING"}
//	  → Clears the L2 cooldown timer for this (asset, point), allowing an
//	    immediate re-trigger. state must be a valid state name, but the
//	    point has one timer shared by every state, and that is what is cleared.
//	  → Response: {"ok":true,"asset":"A1","point":"DE"}
//
//	{"cmd":"list"}
//	  → Returns every tracked point with its current state.
//	  → Response: {"ok":true,"points":[{"asset":"A1","point":"DE","state":"NORMAL"},...]}
//
// Security:
//   - Socket is created with 0600 permissions; only root can connect.
//   - Each connection is handled in a separate goroutine.
//   - Max concurrent connections: 4 (operator use only, not high-throughput).
//   - Max request size: 4096 bytes (prevents memory exhaustion).
//   - Connection timeout: 10s read, 10s write.
package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/solusimicro/vibralyzer/internal/types"
)

const (
	maxConcurrentConns = 4
	maxRequestBytes    = 4096
	connTimeout        = 10 * time.Second
)

// PointRegistry is the interface the operator server uses to read and
// mutate per-point state. Implemented by the orchestrator's point table.
type PointRegistry interface {
	// Status returns the most recently computed PHI, SCADA state, FSM
	// state, and pin status for (asset, point). ok is false if the point
	// has never been evaluated.
	Status(asset, point string) (status PointStatus, ok bool)

	// PinState pins a point's reported SCADA state, preventing the
	// orchestrator from publishing anything other than the pinned state
	// until unpinned. The underlying evidence track keeps running.
	PinState(asset, point string, state types.StateLabel)

	// UnpinState removes the pin on a point.
	UnpinState(asset, point string)

	// ResetCooldown clears the L2 cooldown timer for (asset, point),
	// allowing an immediate re-trigger. The orchestrator's implementation
	// clears the point's single timer whatever state is passed.
	ResetCooldown(asset, point string, state types.StateLabel)

	// ListAll returns every tracked point's current status.
	ListAll() []PointStatus
}

// PointStatus is a snapshot of a single point's state.
type PointStatus struct {
	Asset      string           `json:"asset"`
	Point      string           `json:"point"`
	PHI        float64          `json:"phi"`
	State      types.StateLabel `json:"state"`
	FSMState   types.Level      `json:"fsm_state"`
	Pinned     bool             `json:"pinned"`
	PinnedTo   types.StateLabel `json:"pinned_to,omitempty"`
}

// Request is the JSON structure for operator commands.
type Request struct {
	Cmd   string `json:"cmd"`             // status | pin | unpin | reset_cooldown | list
	Asset string `json:"asset,omitempty"` // target asset
	Point string `json:"point,omitempty"` // target point
	State string `json:"state,omitempty"` // target state for pin/reset_cooldown
}

// Response is the JSON structure for operator command responses.
type Response struct {
	OK          bool          `json:"ok"`
	Error       string        `json:"error,omitempty"`
	Asset       string        `json:"asset,omitempty"`
	Point       string        `json:"point,omitempty"`
	PHI         float64       `json:"phi,omitempty"`
	State       string        `json:"state,omitempty"`
	FSMState    string        `json:"fsm_state,omitempty"`
	Pinned      bool          `json:"pinned,omitempty"`
	PinnedState string        `json:"pinned_state,omitempty"`
	Points      []PointStatus `json:"points,omitempty"`
}

// Server is the operator Unix domain socket server.
type Server struct {
	socketPath string
	registry   PointRegistry
	log        *zap.Logger
	sem        chan struct{} // Semaphore: max concurrent connections.
}

// NewServer creates an operator Server.
func NewServer(socketPath string, registry PointRegistry, log *zap.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		registry:   registry,
		log:        log,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

// ListenAndServe starts the operator socket server.
// Removes any stale socket file before binding.
// Blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Remove stale socket.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("operator: remove stale socket %q: %w", s.socketPath, err)
	}

	// Ensure parent directory exists.
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("operator: mkdir %q: %w", filepath.Dir(s.socketPath), err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("operator: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	// Set socket permissions to 0600 (root only).
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		return fmt.Errorf("operator: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("operator socket listening", zap.String("path", s.socketPath))

	// Close listener on context cancellation.
	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil // Clean shutdown.
			default:
				s.log.Error("operator: accept error", zap.Error(err))
				continue
			}
		}

		// Acquire semaphore (non-blocking; reject if at capacity).
		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("operator: max connections reached, rejecting")
			_ = conn.Close()
			continue
		}

		go func(c net.Conn) {
			defer func() { <-s.sem }()
			defer c.Close()
			s.handleConn(c)
		}(conn)
	}
}

// handleConn handles a single operator connection.
// Reads one JSON request, executes the command, writes one JSON response.
func (s *Server) handleConn(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	// Read request (max maxRequestBytes).
	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		s.log.Warn("operator: read error", zap.Error(err))
		return
	}

	var req Request
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, Response{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	resp := s.dispatch(req)
	s.writeResponse(conn, resp)
}

// dispatch routes a request to the appropriate handler.
func (s *Server) dispatch(req Request) Response {
	switch req.Cmd {
	case "status":
		return s.cmdStatus(req)
	case "pin":
		return s.cmdPin(req)
	case "unpin":
		return s.cmdUnpin(req)
	case "reset_cooldown":
		return s.cmdResetCooldown(req)
	case "list":
		return s.cmdList()
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *Server) cmdStatus(req Request) Response {
	if req.Asset == "" || req.Point == "" {
		return Response{OK: false, Error: "asset and point required for status"}
	}
	st, ok := s.registry.Status(req.Asset, req.Point)
	if !ok {
		return Response{OK: false, Error: fmt.Sprintf("point %s/%s not tracked", req.Asset, req.Point)}
	}
	return Response{
		OK:       true,
		Asset:    req.Asset,
		Point:    req.Point,
		PHI:      st.PHI,
		State:    st.State.String(),
		FSMState: st.FSMState.String(),
		Pinned:   st.Pinned,
	}
}

func (s *Server) cmdPin(req Request) Response {
	if req.Asset == "" || req.Point == "" {
		return Response{OK: false, Error: "asset and point required for pin"}
	}
	target, err := parseStateLabel(req.State)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.registry.PinState(req.Asset, req.Point, target)
	s.log.Info("operator: point pinned",
		zap.String("asset", req.Asset), zap.String("point", req.Point),
		zap.String("state", target.String()))
	return Response{OK: true, Asset: req.Asset, Point: req.Point, PinnedState: target.String()}
}

func (s *Server) cmdUnpin(req Request) Response {
	if req.Asset == "" || req.Point == "" {
		return Response{OK: false, Error: "asset and point required for unpin"}
	}
	s.registry.UnpinState(req.Asset, req.Point)
	s.log.Info("operator: point unpinned", zap.String("asset", req.Asset), zap.String("point", req.Point))
	return Response{OK: true, Asset: req.Asset, Point: req.Point}
}

func (s *Server) cmdResetCooldown(req Request) Response {
	if req.Asset == "" || req.Point == "" {
		return Response{OK: false, Error: "asset and point required for reset_cooldown"}
	}
	target, err := parseStateLabel(req.State)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.registry.ResetCooldown(req.Asset, req.Point, target)
	s.log.Info("operator: cooldown reset",
		zap.String("asset", req.Asset), zap.String("point", req.Point),
		zap.String("state", target.String()))
	return Response{OK: true, Asset: req.Asset, Point: req.Point}
}

func (s *Server) cmdList() Response {
	return Response{OK: true, Points: s.registry.ListAll()}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

// parseStateLabel converts a state name string to a types.StateLabel.
func parseStateLabel(name string) (types.StateLabel, error) {
	switch name {
	case "NORMAL":
		return types.StateNormal, nil
	case "WATCH":
		return types.StateWatch, nil
	case "WARNING":
		return types.StateWarning, nil
	case "ALARM":
		return types.StateAlarm, nil
	default:
		return types.StateNormal, fmt.Errorf("unknown state %q (valid: NORMAL WATCH WARNING ALARM)", name)
	}
}

// ─── Mutex-protected in-memory registry (used by the agent) ──────────────────

// MemRegistry is a thread-safe in-memory implementation of PointRegistry.
// The orchestrator updates it after every evaluation and passes it to the
// operator server.
type MemRegistry struct {
	mu     sync.RWMutex
	points map[string]*pointEntry
}

type pointEntry struct {
	asset, point string
	phi          float64
	state        types.StateLabel
	fsmState     types.Level
	pinned       bool
	pinnedTo     types.StateLabel
}

// NewMemRegistry creates an empty MemRegistry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{points: make(map[string]*pointEntry)}
}

func registryKey(asset, point string) string {
	return asset + "\x00" + point
}

// Update records the orchestrator's latest evaluation for (asset, point).
// Called after every pipeline pass, regardless of pin status.
func (r *MemRegistry) Update(asset, point string, phi float64, state types.StateLabel, fsmState types.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.points[registryKey(asset, point)]
	if !ok {
		e = &pointEntry{asset: asset, point: point}
		r.points[registryKey(asset, point)] = e
	}
	e.phi = phi
	e.state = state
	e.fsmState = fsmState
}

// ReportedState returns the state the orchestrator should publish: the pin
// if one is active, otherwise the evidence-derived state passed in.
func (r *MemRegistry) ReportedState(asset, point string, evidenceState types.StateLabel) types.StateLabel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.points[registryKey(asset, point)]; ok && e.pinned {
		return e.pinnedTo
	}
	return evidenceState
}

func (r *MemRegistry) Status(asset, point string) (PointStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.points[registryKey(asset, point)]
	if !ok {
		return PointStatus{}, false
	}
	return PointStatus{
		Asset: e.asset, Point: e.point, PHI: e.phi,
		State: e.state, FSMState: e.fsmState,
		Pinned: e.pinned, PinnedTo: e.pinnedTo,
	}, true
}

func (r *MemRegistry) PinState(asset, point string, state types.StateLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := registryKey(asset, point)
	e, ok := r.points[k]
	if !ok {
		e = &pointEntry{asset: asset, point: point}
		r.points[k] = e
	}
	e.pinned = true
	e.pinnedTo = state
}

func (r *MemRegistry) UnpinState(asset, point string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.points[registryKey(asset, point)]; ok {
		e.pinned = false
	}
}

// ResetCooldown is a no-op on MemRegistry itself; the orchestrator wires
// this to the cooldown.Tracker it owns (MemRegistry only tracks pin/status
// state, not cooldown timers).
func (r *MemRegistry) ResetCooldown(asset, point string, state types.StateLabel) {}

func (r *MemRegistry) ListAll() []PointStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PointStatus, 0, len(r.points))
	for _, e := range r.points {
		out = append(out, PointStatus{
			Asset: e.asset, Point: e.point, PHI: e.phi,
			State: e.state, FSMState: e.fsmState,
			Pinned: e.pinned, PinnedTo: e.pinnedTo,
		})
	}
	return out
}

var _ PointRegistry = (*MemRegistry)(nil)
