package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/h1d/internal/pool"
)

// --- DefaultAdminConfig ---

func TestDefaultAdminConfig_Values(t *testing.T) {
	cfg := DefaultAdminConfig()
	assert.Equal(t, "127.0.0.1:9091", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func testAdminConfig() AdminConfig {
	cfg := DefaultAdminConfig()
	cfg.Addr = "127.0.0.1:0"
	return cfg
}

// --- NewManager ---

func TestNewManager(t *testing.T) {
	m := NewManager(http.NewServeMux(), DefaultAdminConfig(), zap.NewNop())

	require.NotNil(t, m)
	assert.True(t, m.IsRunning()) // not closed yet
	assert.Equal(t, "127.0.0.1:9091", m.Addr())
}

// --- Start / Shutdown lifecycle ---

func TestManager_StartAndShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	m := NewManager(handler, testAdminConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager(http.NewServeMux(), testAdminConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	err := m.Start()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestManager_ShutdownIdempotent(t *testing.T) {
	m := NewManager(http.NewServeMux(), testAdminConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_StartAfterShutdown(t *testing.T) {
	m := NewManager(http.NewServeMux(), testAdminConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Start()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestManager_Errors(t *testing.T) {
	m := NewManager(http.NewServeMux(), testAdminConfig(), zap.NewNop())

	select {
	case <-m.Errors():
		t.Fatal("should not have received an error")
	default:
	}
}

// --- AdminHandler ---

type fakeEngine struct {
	down bool
}

func (f fakeEngine) ShuttingDown() bool { return f.down }

func (f fakeEngine) Stats() EngineStats {
	return EngineStats{
		Workers: pool.WorkerPoolStats{Workers: 4, Active: 1},
		Queue:   pool.QueueStats{Depth: 2},
		Buffers: pool.BufferStats{RecvHitRate: 0.5},
	}
}

func TestAdminHandler_Healthz(t *testing.T) {
	tests := []struct {
		name   string
		engine HealthReporter
		code   int
		status string
	}{
		{"no engine", nil, http.StatusOK, "ok"},
		{"running", fakeEngine{}, http.StatusOK, "ok"},
		{"shutting down", fakeEngine{down: true}, http.StatusServiceUnavailable, "shutting_down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AdminHandler(tt.engine, prometheus.NewRegistry())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
			if tt.engine != nil {
				engine := body["engine"].(map[string]any)
				workers := engine["workers"].(map[string]any)
				assert.Equal(t, float64(4), workers["workers"])
				buffers := engine["buffers"].(map[string]any)
				assert.Equal(t, 0.5, buffers["recv_hit_rate"])
			}
		})
	}
}

func TestAdminHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "h1d_admin_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	rec := httptest.NewRecorder()
	AdminHandler(nil, reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "h1d_admin_test_total 3")
}

func TestAdminHandler_LiveEngine(t *testing.T) {
	r := startEngine(t, testConfig(), nil)
	m := NewManager(AdminHandler(r.e, prometheus.NewRegistry()), testAdminConfig(), zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + m.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, r.stop(t))
	resp, err = http.Get("http://" + m.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
