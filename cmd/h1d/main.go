// =============================================================================
// h1d 主入口
// =============================================================================
// 持久连接 HTTP/1.1 服务引擎，包含示例路由、管理端口与 Prometheus 指标
//
// 使用方法:
//
//	h1d serve                       # 启动服务
//	h1d serve --config h1d.yaml     # 指定配置文件
//	h1d version                     # 显示版本信息
//	h1d health                      # 健康检查
//	h1d gencert                     # 生成自签名证书
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/h1d/config"
	"github.com/BaSui01/h1d/internal/telemetry"
	"github.com/BaSui01/h1d/internal/tlsutil"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "gencert":
		runGenCert(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	envPrefix := fs.String("env-prefix", config.DefaultEnvPrefix, "Prefix of environment overrides")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, *envPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting h1d",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, telemetry.EngineInfoFrom(cfg), logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	srv := NewServer(cfg, logger, otelProviders)
	if err := srv.Run(context.Background()); err != nil {
		logger.Error("h1d stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("h1d stopped")
}

func loadConfig(path, envPrefix string) (*config.Config, error) {
	loader := config.NewLoader().
		WithEnvPrefix(envPrefix).
		WithValidator((*config.Config).Validate)
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:4221", "Server address (http:// or https://)")
	insecure := fs.Bool("insecure", false, "Skip TLS certificate verification")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	fs.Parse(args)

	if err := checkHealth(*addr, *timeout, *insecure); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("OK")
}

func checkHealth(addr string, timeout time.Duration, insecure bool) error {
	client := tlsutil.SecureHTTPClient(timeout, insecure)
	resp, err := client.Get(strings.TrimRight(addr, "/") + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// 🔐 证书生成命令
// =============================================================================

func runGenCert(args []string) {
	fs := flag.NewFlagSet("gencert", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	envPrefix := fs.String("env-prefix", config.DefaultEnvPrefix, "Prefix of environment overrides")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "Comma-separated DNS names and IPs")
	validFor := fs.Duration("valid-for", 365*24*time.Hour, "Certificate validity")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath, *envPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := tlsutil.WriteSelfSigned(cfg.TLS.CertFile, cfg.TLS.KeyFile, splitHosts(*hosts), *validFor); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate certificate: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s and %s\n", cfg.TLS.CertFile, cfg.TLS.KeyFile)
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("h1d %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`h1d - persistent-connection HTTP/1.1 server

Usage:
  h1d <command> [options]

Commands:
  serve     Start the server
  version   Show version information
  health    Check server health
  gencert   Write a self-signed certificate to tls.cert_file / tls.key_file
  help      Show this help message

Options for 'serve' and 'gencert':
  --config <path>        Path to configuration file (YAML)
  --env-prefix <prefix>  Prefix of environment overrides (default H1D)

While serving, typing "shutdown" on stdin stops the server gracefully.

Examples:
  h1d serve
  h1d serve --config /etc/h1d/h1d.yaml
  H1D_TLS_ENABLED=true h1d serve
  EDGE_SERVER_PORT=8080 h1d serve --env-prefix EDGE
  h1d gencert --hosts localhost,127.0.0.1
  h1d health --addr https://localhost:4221 --insecure
  h1d version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}
	if len(zapConfig.OutputPaths) == 0 {
		zapConfig.OutputPaths = []string{"stdout"}
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
