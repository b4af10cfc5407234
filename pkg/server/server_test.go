package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

// setupTestServer creates a server backed by a temporary data directory.
func setupTestServer(t *testing.T) (*Server, func()) {
	tmpDir, err := os.MkdirTemp("", "laura-feed-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	config := &Config{
		Host:           "localhost",
		Port:           0, // Random port
		DataDir:        tmpDir,
		BufferSize:     100,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		EnableLogging:  false, // Disable for tests
	}

	srv, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	cleanup := func() {
		srv.db.Close()
		os.RemoveAll(tmpDir)
	}

	return srv, cleanup
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Host != "localhost" {
		t.Errorf("expected host localhost, got %s", config.Host)
	}
	if config.Port != 8080 {
		t.Errorf("expected port 8080, got %d", config.Port)
	}
	if config.BufferSize != 1000 {
		t.Errorf("expected buffer size 1000, got %d", config.BufferSize)
	}
	if !config.EnableCORS {
		t.Error("expected CORS enabled by default")
	}
	if config.EnableGraphQL {
		t.Error("expected GraphQL disabled by default")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
	if _, ok := resp["uptime"]; !ok {
		t.Error("expected an uptime field")
	}
}

func TestPrometheusMetricsEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/_metrics", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain content type, got %s", ct)
	}
}

func TestGetDatabase(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	if srv.GetDatabase() == nil {
		t.Error("expected a non-nil database")
	}
}

func TestGetFeedSource(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	if srv.GetFeedSource() == nil {
		t.Error("expected a non-nil feed source")
	}
}

func TestGetMetricsCollector(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	if srv.GetMetricsCollector() == nil {
		t.Error("expected a non-nil metrics collector")
	}
}

func TestGetResourceTracker(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	if srv.GetResourceTracker() == nil {
		t.Error("expected a non-nil resource tracker")
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodOptions, "/_health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for preflight, got %d", w.Code)
	}
	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected wildcard origin, got %s", origin)
	}
	if methods := w.Header().Get("Access-Control-Allow-Methods"); methods != "GET, POST, OPTIONS" {
		t.Errorf("expected GET, POST, OPTIONS, got %s", methods)
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "laura-feed-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	config := DefaultConfig()
	config.DataDir = tmpDir
	config.AllowedOrigins = []string{"https://example.com"}

	srv, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.db.Close()

	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "https://example.com" {
		t.Errorf("expected configured origin, got %s", origin)
	}
}

func TestRequestSizeLimitMiddlewareServesNormalRequests(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	// The limiting middleware only bounds the body reader; it never rejects
	// a request up front. This just confirms a request still passes through
	// it untouched.
	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestGraphQLDisabledByDefault(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader([]byte(`{"query":"{ ping }"}`)))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 when GraphQL is disabled, got %d", w.Code)
	}
}

func TestGraphQLEnabled(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "laura-feed-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	config := DefaultConfig()
	config.DataDir = tmpDir
	config.EnableGraphQL = true

	srv, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.db.Close()

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader([]byte(`{"query":"{ ping }"}`)))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/graphiql", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected GraphiQL playground to be served, got %d", w.Code)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["hello"] != "world" {
		t.Errorf("expected hello=world, got %v", resp)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "bad_request", "missing field")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["ok"] != false {
		t.Errorf("expected ok=false, got %v", resp["ok"])
	}
	if resp["error"] != "bad_request" {
		t.Errorf("expected error=bad_request, got %v", resp["error"])
	}
	if resp["message"] != "missing field" {
		t.Errorf("expected message=missing field, got %v", resp["message"])
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]int{"count": 3})

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("expected ok=true, got %v", resp["ok"])
	}
}

func TestShutdown(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	// Start the HTTP listener so Shutdown has something real to stop.
	go srv.httpSrv.ListenAndServe()
	time.Sleep(10 * time.Millisecond)

	if err := srv.Shutdown(); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestMiddlewareRecoversFromPanic(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	srv.router.Get("/_panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/_panic", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected the recoverer middleware to turn a panic into a 500, got %d", w.Code)
	}
}

func TestNotFoundRoute(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
