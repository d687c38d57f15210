// =============================================================================
// 📦 h1d 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		TLS:       DefaultTLSConfig(),
		Admin:     DefaultAdminConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认引擎配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:               "0.0.0.0",
		Port:               4221,
		Backlog:            20,
		Workers:            20,
		MaxQueueDepth:      0,
		ReadTimeout:        1 * time.Second,
		WriteTimeout:       1 * time.Second,
		IdleTimeout:        60 * time.Second,
		HeaderTimeout:      10 * time.Second,
		AcceptPollInterval: 1 * time.Second,
		MaxHeaderBytes:     8192,
		MaxBodyBytes:       10 << 20,
		AcceptRate:         0,
		AcceptBurst:        0,
		StdinControl:       true,
	}
}

// DefaultTLSConfig 返回默认 TLS 配置
func DefaultTLSConfig() TLSConfig {
	return TLSConfig{
		Enabled:          false,
		CertFile:         "certs/server-cert.pem",
		KeyFile:          "certs/server-priv.pem",
		HandshakeTimeout: 10 * time.Second,
	}
}

// DefaultAdminConfig 返回默认管理端口配置
func DefaultAdminConfig() AdminConfig {
	return AdminConfig{
		Enabled:         true,
		Host:            "127.0.0.1",
		Port:            9091,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "h1d",
		SampleRate:   0.1,
	}
}
