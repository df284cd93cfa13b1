package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/mlegge/hatchd/internal/api"
)

type stubController struct {
	status api.SessionStatus
}

func (s *stubController) Status() api.SessionStatus {
	return s.status
}

func startServer(t *testing.T, ctrl api.Controller) (string, context.CancelFunc) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, err := NewServer(Config{Controller: ctrl, Listener: ln})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return "http://" + ln.Addr().String(), cancel
}

func TestNewServerRequiresController(t *testing.T) {
	if _, err := NewServer(Config{Addr: "127.0.0.1:0"}); err == nil {
		t.Fatalf("expected error for missing controller")
	}
}

func TestHealthz(t *testing.T) {
	base, _ := startServer(t, &stubController{})

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ctrl := &stubController{status: api.SessionStatus{
		Session: "abc",
		Ready:   true,
		State:   "ready",
		Port:    "42101",
	}}
	base, _ := startServer(t, ctrl)

	resp, err := http.Get(base + "/v1/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}

	var status api.SessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Ready || status.Port != "42101" || status.Session != "abc" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStatusEndpointRejectsPost(t *testing.T) {
	base, _ := startServer(t, &stubController{})

	resp, err := http.Post(base+"/v1/status", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	base, _ := startServer(t, &stubController{})

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, err := NewServer(Config{Controller: &stubController{}, Listener: ln})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	addr := fmt.Sprintf("http://%s/healthz", ln.Addr().String())
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(addr)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}
