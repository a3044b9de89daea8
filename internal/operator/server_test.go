package operator_test

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/solusimicro/vibralyzer/internal/operator"
	"github.com/solusimicro/vibralyzer/internal/types"
)

func TestMemRegistry_StatusUnknownPoint(t *testing.T) {
	r := operator.NewMemRegistry()
	if _, ok := r.Status("a1", "p1"); ok {
		t.Fatal("expected ok=false for untracked point")
	}
}

func TestMemRegistry_UpdateThenStatus(t *testing.T) {
	r := operator.NewMemRegistry()
	r.Update("a1", "p1", 82.4, types.StateWatch, types.LevelWatch)
	st, ok := r.Status("a1", "p1")
	if !ok {
		t.Fatal("expected point to be tracked after Update")
	}
	if st.PHI != 82.4 || st.State != types.StateWatch || st.FSMState != types.LevelWatch {
		t.Fatalf("got %+v", st)
	}
}

func TestMemRegistry_PinOverridesReportedState(t *testing.T) {
	r := operator.NewMemRegistry()
	r.Update("a1", "p1", 40, types.StateAlarm, types.LevelAlarm)
	r.PinState("a1", "p1", types.StateNormal)
	got := r.ReportedState("a1", "p1", types.StateAlarm)
	if got != types.StateNormal {
		t.Fatalf("expected pin to override reported state to NORMAL, got %v", got)
	}
}

func TestMemRegistry_UnpinRestoresEvidenceState(t *testing.T) {
	r := operator.NewMemRegistry()
	r.Update("a1", "p1", 40, types.StateAlarm, types.LevelAlarm)
	r.PinState("a1", "p1", types.StateNormal)
	r.UnpinState("a1", "p1")
	got := r.ReportedState("a1", "p1", types.StateAlarm)
	if got != types.StateAlarm {
		t.Fatalf("expected unpin to restore evidence state, got %v", got)
	}
}

func TestMemRegistry_ListAllReturnsEveryPoint(t *testing.T) {
	r := operator.NewMemRegistry()
	r.Update("a1", "p1", 90, types.StateNormal, types.LevelNormal)
	r.Update("a2", "p1", 60, types.StateWarning, types.LevelWarning)
	all := r.ListAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 tracked points, got %d", len(all))
	}
}

func sendRequest(t *testing.T, socketPath string, req operator.Request) operator.Response {
	t.Helper()
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		t.Fatalf("dial operator socket: %v", err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("write request: %v", err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp operator.Response
	if err := json.Unmarshal(buf[:n], &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestServer_StatusPinUnpinRoundTrip(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "operator.sock")
	r := operator.NewMemRegistry()
	r.Update("A1", "DE", 82.4, types.StateWatch, types.LevelWatch)

	srv := operator.NewServer(socketPath, r, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	waitForSocket(t, socketPath)

	status := sendRequest(t, socketPath, operator.Request{Cmd: "status", Asset: "A1", Point: "DE"})
	if !status.OK || status.State != "WATCH" {
		t.Fatalf("unexpected status response: %+v", status)
	}

	pin := sendRequest(t, socketPath, operator.Request{Cmd: "pin", Asset: "A1", Point: "DE", State: "WARNING"})
	if !pin.OK || pin.PinnedState != "WARNING" {
		t.Fatalf("unexpected pin response: %+v", pin)
	}

	unpin := sendRequest(t, socketPath, operator.Request{Cmd: "unpin", Asset: "A1", Point: "DE"})
	if !unpin.OK {
		t.Fatalf("unexpected unpin response: %+v", unpin)
	}

	list := sendRequest(t, socketPath, operator.Request{Cmd: "list"})
	if !list.OK || len(list.Points) != 1 {
		t.Fatalf("unexpected list response: %+v", list)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func TestServer_UnknownCommandErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "operator.sock")
	r := operator.NewMemRegistry()
	srv := operator.NewServer(socketPath, r, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.ListenAndServe(ctx) }()
	waitForSocket(t, socketPath)

	resp := sendRequest(t, socketPath, operator.Request{Cmd: "bogus"})
	if resp.OK {
		t.Fatal("expected error response for unknown command")
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", path, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("operator socket %q never became available", path)
}

