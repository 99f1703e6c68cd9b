package httpserver

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/tinytelemetry/logwatchd/internal/dispatch"
)

type fakeSource struct {
	stats dispatch.Stats
}

func (f *fakeSource) Stats() dispatch.Stats { return f.stats }

func startServer(t *testing.T, src StatusSource) *Server {
	t.Helper()

	// Grab a free port, then hand it to the server.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probe listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	s := NewServer(addr, src)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	// Wait for the server to come up.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not come up")
	return nil
}

func getJSON(t *testing.T, url string, dest any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want 200", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestHealthReflectsLoggable(t *testing.T) {
	src := &fakeSource{stats: dispatch.Stats{State: "running", Loggable: true}}
	s := startServer(t, src)

	var health struct {
		Status   string `json:"status"`
		Loggable bool   `json:"loggable"`
		State    string `json:"state"`
	}
	getJSON(t, fmt.Sprintf("http://%s/api/health", s.Addr()), &health)

	if health.Status != "ok" || !health.Loggable || health.State != "running" {
		t.Fatalf("health = %+v, want ok/loggable/running", health)
	}
}

func TestHealthDisabledAfterFailedProbe(t *testing.T) {
	src := &fakeSource{stats: dispatch.Stats{State: "disabled", Loggable: false}}
	s := startServer(t, src)

	var health struct {
		Status   string `json:"status"`
		Loggable bool   `json:"loggable"`
	}
	getJSON(t, fmt.Sprintf("http://%s/api/health", s.Addr()), &health)

	if health.Status != "disabled" || health.Loggable {
		t.Fatalf("health = %+v, want disabled", health)
	}
}

func TestStatsPassthrough(t *testing.T) {
	src := &fakeSource{stats: dispatch.Stats{
		State:         "running",
		Loggable:      true,
		LinesSeen:     42,
		LinesDropped:  3,
		LinesWritten:  39,
		Restarts:      1,
		PersistActive: true,
	}}
	s := startServer(t, src)

	var stats dispatch.Stats
	getJSON(t, fmt.Sprintf("http://%s/api/stats", s.Addr()), &stats)

	if stats != src.stats {
		t.Fatalf("stats = %+v, want %+v", stats, src.stats)
	}
}
