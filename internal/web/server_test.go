package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Mickyleitor/meshtastic-watcher/internal/logic"
	"github.com/Mickyleitor/meshtastic-watcher/internal/status"
)

func testTracker() *status.Tracker {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := status.NewTracker(start, status.Config{
		TickMs:         30000,
		PulseMs:        120,
		TriggerTicks:   1440,
		ConfirmSamples: 3,
		RiseMillivolts: 3000,
		FallMillivolts: 2900,
		Broker:         "tcp://broker:1883",
		HTTPAddr:       ":8080",
	})
	tr.Update(logic.PowerNormal, 7, 0, 0)
	tr.SetVoltage(3050)
	return tr
}

func TestHandleIndexHTML(t *testing.T) {
	s := New(":0", testTracker())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.handleIndex(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML content type, got %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{"Meshtastic Watcher", "NORMAL", "3050 mV", "1440"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestHandleIndexNotFound(t *testing.T) {
	s := New(":0", testTracker())

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	s.handleIndex(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandleJSON(t *testing.T) {
	s := New(":0", testTracker())

	req := httptest.NewRequest(http.MethodGet, "/index.json", nil)
	rec := httptest.NewRecorder()
	s.handleJSON(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Power != "NORMAL" {
		t.Errorf("expected power NORMAL, got %q", parsed.Status.Power)
	}
	if parsed.Status.SupplyMv != 3050 {
		t.Errorf("expected supply 3050, got %d", parsed.Status.SupplyMv)
	}
}

func TestHTMLShowsLockout(t *testing.T) {
	tr := testTracker()
	tr.Update(logic.PowerLockedOut, 0, 10, 0)
	s := New(":0", tr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.handleIndex(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "LOCKED_OUT") {
		t.Error("body missing LOCKED_OUT state")
	}
	if !strings.Contains(body, "lockedout") {
		t.Error("body missing lockout styling class")
	}
}

func TestServeAndShutdown(t *testing.T) {
	s := New(":0", testTracker())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/index.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if err := <-done; err != http.ErrServerClosed {
		t.Errorf("expected ErrServerClosed, got %v", err)
	}
}
