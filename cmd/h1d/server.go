package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/h1d/config"
	"github.com/BaSui01/h1d/internal/control"
	"github.com/BaSui01/h1d/internal/metrics"
	"github.com/BaSui01/h1d/internal/router"
	"github.com/BaSui01/h1d/internal/server"
	"github.com/BaSui01/h1d/internal/telemetry"
	"github.com/BaSui01/h1d/internal/tlsutil"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组装引擎、管理端口、stdin 控制与遥测
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	engine *server.Engine
	admin  *server.Manager
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otel,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Run 启动全部组件并阻塞到引擎停止
func (s *Server) Run(ctx context.Context) error {
	defer s.shutdownTelemetry()
	if err := s.initEngine(); err != nil {
		return err
	}

	if err := s.engine.Listen(); err != nil {
		return err
	}

	if s.cfg.Admin.Enabled {
		if err := s.startAdmin(); err != nil {
			return err
		}
		defer s.stopAdmin()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.engine.Serve(gctx)
	})
	if s.admin != nil {
		g.Go(func() error {
			select {
			case err := <-s.admin.Errors():
				s.engine.Shutdown("admin server failed")
				return fmt.Errorf("admin server: %w", err)
			case <-s.engine.Flag().Done():
				return nil
			}
		})
	}
	if s.cfg.Server.StdinControl {
		g.Go(func() error {
			// stdin 读取失败只影响控制面，不终止服务
			if err := control.NewWatcher(os.Stdin, s.engine.Flag(), s.logger).Run(gctx); err != nil {
				s.logger.Warn("stdin control disabled", zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *Server) initEngine() error {
	collector := metrics.NewCollector("h1d", s.logger)

	// 遥测未启用或初始化失败时 Instruments 为 nil
	opts := []server.Option{
		server.WithLogger(s.logger),
		server.WithMetrics(collector),
		server.WithInstruments(s.otel.Instruments()),
	}

	if s.cfg.TLS.Enabled {
		tlsConfig, err := tlsutil.LoadServerConfig(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("load tls material: %w", err)
		}
		opts = append(opts, server.WithTLS(tlsConfig))
	}

	routes := router.Default(router.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, time.Now())

	engine, err := server.New(server.ConfigFrom(s.cfg), routes, opts...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	s.engine = engine
	return nil
}

func (s *Server) startAdmin() error {
	a := s.cfg.Admin
	s.admin = server.NewManager(server.AdminHandler(s.engine, nil), server.AdminConfig{
		Addr:            a.Addr(),
		ReadTimeout:     a.ReadTimeout,
		WriteTimeout:    a.WriteTimeout,
		ShutdownTimeout: a.ShutdownTimeout,
	}, s.logger)
	return s.admin.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

func (s *Server) stopAdmin() {
	if err := s.admin.Shutdown(context.Background()); err != nil {
		s.logger.Error("admin shutdown error", zap.Error(err))
	}
}

func (s *Server) shutdownTelemetry() {
	if s.otel == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}
}
