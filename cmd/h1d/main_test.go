package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/h1d/config"
	"github.com/BaSui01/h1d/internal/router"
	"github.com/BaSui01/h1d/internal/server"
	"github.com/BaSui01/h1d/internal/tlsutil"
)

func TestInitLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := config.DefaultLogConfig()
			cfg.Level = tt.level
			cfg.OutputPaths = []string{filepath.Join(t.TempDir(), "h1d.log")}
			logger := initLogger(cfg)
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestInitLogger_ConsoleFormat(t *testing.T) {
	cfg := config.DefaultLogConfig()
	cfg.Format = "console"
	cfg.OutputPaths = nil
	assert.NotNil(t, initLogger(cfg))
}

func TestSplitHosts(t *testing.T) {
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, splitHosts(" localhost, ,127.0.0.1 "))
	assert.Nil(t, splitHosts(""))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("", config.DefaultEnvPrefix)
	require.NoError(t, err)
	assert.Equal(t, 4221, cfg.Server.Port)

	path := filepath.Join(t.TempDir(), "h1d.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  workers: 0\n"), 0644))
	_, err = loadConfig(path, config.DefaultEnvPrefix)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be positive")
}

func TestLoadConfig_EnvPrefix(t *testing.T) {
	t.Setenv("EDGE_SERVER_PORT", "8080")
	t.Setenv("H1D_SERVER_PORT", "9090")

	cfg, err := loadConfig("", "EDGE")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)

	// 前缀下的覆盖同样经过校验
	t.Setenv("EDGE_ADMIN_PORT", "8080")
	_, err = loadConfig("", "EDGE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin port must differ from server port")
}

func startDefaultEngine(t *testing.T, opts ...server.Option) *server.Engine {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.Workers = 2
	cfg.ReadTimeout = 50 * time.Millisecond
	cfg.AcceptPollInterval = 20 * time.Millisecond
	cfg.HandleSignals = false

	routes := router.Default(router.BuildInfo{Version: "test"}, time.Now())
	opts = append([]server.Option{server.WithLogger(zaptest.NewLogger(t))}, opts...)
	e, err := server.New(cfg, routes, opts...)
	require.NoError(t, err)
	require.NoError(t, e.Listen())

	done := make(chan struct{})
	go func() {
		_ = e.Serve(context.Background())
		close(done)
	}()
	t.Cleanup(func() {
		e.Shutdown("test")
		<-done
	})
	return e
}

func TestCheckHealth(t *testing.T) {
	e := startDefaultEngine(t)
	assert.NoError(t, checkHealth("http://"+e.Addr().String()+"/", 2*time.Second, false))
	assert.Error(t, checkHealth("http://127.0.0.1:1", 200*time.Millisecond, false))
}

func TestCheckHealth_TLS(t *testing.T) {
	cert, err := tlsutil.SelfSigned("127.0.0.1")
	require.NoError(t, err)
	e := startDefaultEngine(t, server.WithTLS(tlsutil.ServerConfig(cert)))

	addr := "https://" + e.Addr().String()
	assert.NoError(t, checkHealth(addr, 2*time.Second, true))
	assert.Error(t, checkHealth(addr, 2*time.Second, false), "self-signed certificate must not verify")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.StdinControl = false
	cfg.Admin.Port = 0

	srv := NewServer(cfg, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
