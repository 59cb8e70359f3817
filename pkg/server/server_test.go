package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/quorum/pkg/config"
	"mercator-hq/quorum/pkg/telemetry/health"
	"mercator-hq/quorum/pkg/telemetry/logging"
	"mercator-hq/quorum/pkg/telemetry/metrics"
)

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}
}

type failingPing struct{}

func (failingPing) Ping(context.Context) error { return errors.New("closed") }

func TestHandler_Routes(t *testing.T) {
	checker := health.New(time.Second)
	collector := metrics.NewCollector(metrics.Config{Enabled: true}, nil)
	s := New(testConfig(), checker, WithMetrics(collector, "/metrics"), WithVersion("1.0.0", "abc", "now"))
	h := s.Handler()

	for _, path := range []string{"/health", "/ready", "/version", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `quorum_http_requests_total{code="200",method="GET",path="GET /health"} 1`) {
		t.Errorf("metrics missing /health request:\n%s", body)
	}
	if !strings.Contains(body, `path="unmatched"`) {
		t.Error("metrics missing unmatched route")
	}
}

func TestHandler_ReadyFails(t *testing.T) {
	checker := health.New(time.Second)
	checker.Register("workflow_store", health.PingCheck(failingPing{}))

	rec := httptest.NewRecorder()
	New(testConfig(), checker).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ready = %d, want 503", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	s := New(testConfig(), health.New(0), WithHandler("GET /echo", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetRequestID(r.Context())
	})))
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "req-42" || rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Errorf("context id %q, header %q, want req-42", seen, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/echo", nil))
	if got := rec.Header().Get(RequestIDHeader); got == "" || got != seen {
		t.Errorf("generated id header %q, context %q", got, seen)
	}
}

func TestRecoverer(t *testing.T) {
	collector := metrics.NewCollector(metrics.Config{Enabled: true}, nil)
	s := New(testConfig(), health.New(0),
		WithMetrics(collector, "/metrics"),
		WithHandler("GET /boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})),
	)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
	// The panic unwinds past the instrumentation, so nothing is counted.
	n, err := testutil.GatherAndCount(collector.Registry(), "quorum_http_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("recorded %d request series for a panicking handler", n)
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := New(testConfig(), health.New(0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	var addr string
	for i := 0; i < 100 && addr == ""; i++ {
		time.Sleep(10 * time.Millisecond)
		addr = s.Addr()
	}
	if addr == "" {
		t.Fatal("server did not start listening")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := s.Start(ctx); err == nil {
		t.Error("second Start() = nil, want already running")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}
