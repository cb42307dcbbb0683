package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/snapshot"
	"github.com/newtron-network/routewatch/pkg/util"
	"github.com/newtron-network/routewatch/pkg/version"
)

func testSnapshot() *model.Snapshot {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := model.NewSnapshot("cycle-7", at)
	s.CompletedAt = at.Add(time.Minute)

	pe1 := model.NewDevice(model.InventoryDevice{Name: "pe1.msk", Site: "msk-dc1", Regions: []string{"Moscow"}})
	pe1.CollectedAt = at.Add(5 * time.Second)
	pe1.Interfaces["517"] = model.LogicalInterface{Name: "ge-0/0/1.0", Speed: "1000mbps", Description: "core <a&b>"}
	pe1.NextHops["10.255.0.2"] = model.NextHopEntry{
		Name:    "pe2.msk",
		Regions: []string{"Moscow"},
		Labels:  map[string]string{"10.0.0.2": "299776"},
	}
	s.Exporters["10.255.0.1"] = pe1

	down := model.NewDevice(model.InventoryDevice{Name: "pe3.spb"})
	down.Error = "device 10.255.0.3 unreachable: i/o timeout"
	s.Exporters["10.255.0.3"] = down
	return s
}

func newTestServer(t *testing.T, snap *model.Snapshot) (*Server, *snapshot.Store) {
	t.Helper()
	store := snapshot.New()
	if snap != nil {
		store.Publish(snap)
	}
	return New(Config{}, store), store
}

func do(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNew_Defaults(t *testing.T) {
	s, _ := newTestServer(t, nil)
	assert.Equal(t, DefaultListen, s.config.Listen)
	assert.Equal(t, DefaultConfig().ShutdownTimeout, s.config.ShutdownTimeout)
	require.NotNil(t, s.httpServer)
	assert.Equal(t, DefaultListen, s.httpServer.Addr)
	require.NotNil(t, s.rateLimiter)
}

func TestNotReady(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	for _, path := range []string{"/snapshot", "/tmp.json", "/v1/devices", "/v1/devices/10.255.0.1"} {
		t.Run(path, func(t *testing.T) {
			w := do(t, h, path)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.NotEmpty(t, w.Header().Get("Retry-After"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, ErrCodeServiceUnavailable, resp.Code)
			assert.True(t, resp.Retryable)
			assert.Equal(t, w.Header().Get("X-Request-Id"), resp.RequestID)
		})
	}

	w := do(t, h, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_ready")
}

func TestSnapshotDocument(t *testing.T) {
	snap := testSnapshot()
	s, _ := newTestServer(t, snap)
	h := s.Handler()

	for _, path := range []string{"/snapshot", "/tmp.json"} {
		t.Run(path, func(t *testing.T) {
			w := do(t, h, path)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, `"cycle-7"`, w.Header().Get("ETag"))
			assert.Contains(t, w.Body.String(), "core <a&b>")

			got, err := model.Decode(w.Body)
			require.NoError(t, err)
			assert.Equal(t, snap.Addresses(), got.Addresses())
			assert.Equal(t, "pe2.msk", got.Exporters["10.255.0.1"].NextHops["10.255.0.2"].Name)
			assert.Equal(t, snap.Exporters["10.255.0.3"].Error, got.Exporters["10.255.0.3"].Error)
		})
	}
}

func TestSnapshotNotModified(t *testing.T) {
	s, store := newTestServer(t, testSnapshot())
	h := s.Handler()

	w := do(t, h, "/snapshot", "If-None-Match", `"cycle-7"`)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())

	next := testSnapshot()
	next.ID = "cycle-8"
	store.Publish(next)

	w = do(t, h, "/snapshot", "If-None-Match", `"cycle-7"`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"cycle-8"`, w.Header().Get("ETag"))
}

func TestDevices(t *testing.T) {
	s, _ := newTestServer(t, testSnapshot())

	w := do(t, s.Handler(), "/v1/devices")
	require.Equal(t, http.StatusOK, w.Code)

	var list DeviceList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "cycle-7", list.Snapshot)
	require.Len(t, list.Devices, 2)

	pe1 := list.Devices["10.255.0.1"]
	assert.Equal(t, "pe1.msk", pe1.Name)
	assert.Equal(t, "msk-dc1", pe1.Site)
	assert.Equal(t, []string{"Moscow"}, pe1.Regions)
	assert.Equal(t, 1, pe1.Interfaces)
	assert.Equal(t, 1, pe1.NextHops)
	assert.Empty(t, pe1.Error)

	assert.Contains(t, list.Devices["10.255.0.3"].Error, "unreachable")
}

func TestDevice(t *testing.T) {
	s, _ := newTestServer(t, testSnapshot())
	h := s.Handler()

	w := do(t, h, "/v1/devices/10.255.0.1")
	require.Equal(t, http.StatusOK, w.Code)
	var d model.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "pe1.msk", d.Name)
	assert.Equal(t, "ge-0/0/1.0", d.Interfaces["517"].Name)

	w = do(t, h, "/v1/devices/10.9.9.9")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeNotFound, resp.Code)
	assert.Equal(t, "10.9.9.9", resp.Details["address"])
	assert.False(t, resp.Retryable)
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t, testSnapshot())
	h := s.Handler()

	w := do(t, h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = do(t, h, "/ready")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "cycle-7", resp.Snapshot)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, testSnapshot())
	h := s.Handler()

	do(t, h, "/v1/devices/10.255.0.1")
	w := do(t, h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "routewatch_http_requests_total")
	assert.Contains(t, w.Body.String(), `path="/v1/devices/{address}"`)
}

func TestMiddlewareHeaders(t *testing.T) {
	s, _ := newTestServer(t, testSnapshot())
	h := s.Handler()

	w := do(t, h, "/v1/devices")
	assert.Equal(t, version.UserAgent(), w.Header().Get("Server"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	const id = "6f1c1c4e-8a59-4c1e-9f55-0d6f6f0b9a10"
	w = do(t, h, "/v1/devices", "X-Request-Id", id)
	assert.Equal(t, id, w.Header().Get("X-Request-Id"))

	w = do(t, h, "/v1/devices", "X-Request-Id", "not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", w.Header().Get("X-Request-Id"))
}

func TestRateLimit(t *testing.T) {
	store := snapshot.New()
	store.Publish(testSnapshot())
	s := New(Config{RateLimit: 0.001, RateLimitBurst: 1}, store)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, "/v1/devices").Code)

	w := do(t, h, "/v1/devices")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeRateLimitExceeded, resp.Code)

	// Probes are not limited.
	assert.Equal(t, http.StatusOK, do(t, h, "/health").Code)
}

type panicSource struct{}

func (panicSource) Current() (*model.Snapshot, error) { panic("boom") }

func TestPanicRecovery(t *testing.T) {
	s := New(Config{}, panicSource{})

	w := do(t, s.Handler(), "/snapshot")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeInternalError, resp.Code)
}

type failingSource struct{ err error }

func (f failingSource) Current() (*model.Snapshot, error) { return nil, f.err }

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"not found", fmt.Errorf("device 10.9.9.9: %w", util.ErrNotFound), http.StatusNotFound, ErrCodeNotFound, false},
		{"not ready", util.ErrNotReady, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, true},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternalError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, retryable := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.retryable, retryable)
		})
	}
}

func TestSourceFailure(t *testing.T) {
	s := New(Config{}, failingSource{err: errors.New("store corrupted")})

	w := do(t, s.Handler(), "/v1/devices")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeInternalError, resp.Code)
	assert.False(t, resp.Retryable)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, testSnapshot())
	req := httptest.NewRequest(http.MethodPost, "/snapshot", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServe_ShutdownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, testSnapshot())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestStart_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := New(Config{Listen: ln.Addr().String()}, snapshot.New())
	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
