// =============================================================================
// 📦 h1d 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("h1d.yaml").
//	    WithEnvPrefix("H1D").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 h1d 的完整配置结构。监听参数在启动时确定，运行期间不变。
type Config struct {
	// Server 引擎配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// TLS 传输配置
	TLS TLSConfig `yaml:"tls" env:"TLS"`

	// Admin 管理端口（/metrics、/healthz）
	Admin AdminConfig `yaml:"admin" env:"ADMIN"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 引擎配置
type ServerConfig struct {
	// 监听地址
	Host string `yaml:"host" env:"HOST"`
	// 监听端口
	Port int `yaml:"port" env:"PORT"`
	// listen(2) 积压队列长度
	Backlog int `yaml:"backlog" env:"BACKLOG"`
	// worker 数量
	Workers int `yaml:"workers" env:"WORKERS"`
	// 任务队列上限，0 表示不限
	MaxQueueDepth int `yaml:"max_queue_depth" env:"MAX_QUEUE_DEPTH"`
	// 单次读超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 单次写超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 长连接空闲超时，0 表示不限
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 请求首字节到头部块结束的时限，0 表示不限
	HeaderTimeout time.Duration `yaml:"header_timeout" env:"HEADER_TIMEOUT"`
	// accept 轮询间隔
	AcceptPollInterval time.Duration `yaml:"accept_poll_interval" env:"ACCEPT_POLL_INTERVAL"`
	// 接收缓冲区（请求行 + 头部块上限）
	MaxHeaderBytes int `yaml:"max_header_bytes" env:"MAX_HEADER_BYTES"`
	// 正文上限，0 表示不限
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	// 每秒接受连接数上限，0 表示不限
	AcceptRate float64 `yaml:"accept_rate" env:"ACCEPT_RATE"`
	// 接受连接突发量
	AcceptBurst int `yaml:"accept_burst" env:"ACCEPT_BURST"`
	// 是否监听标准输入上的 shutdown 命令
	StdinControl bool `yaml:"stdin_control" env:"STDIN_CONTROL"`
}

// Addr 返回 host:port
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// TLSConfig TLS 配置
type TLSConfig struct {
	// 是否启用 TLS
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 证书路径（PEM）
	CertFile string `yaml:"cert_file" env:"CERT_FILE"`
	// 私钥路径（PEM）
	KeyFile string `yaml:"key_file" env:"KEY_FILE"`
	// 握手总时长上限
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
}

// AdminConfig 管理端口配置
type AdminConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 监听地址
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Addr 返回 host:port
func (a AdminConfig) Addr() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// DefaultEnvPrefix 环境变量覆盖的默认前缀
const DefaultEnvPrefix = "H1D"

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// ✅ 配置验证
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证引擎配置
	s := c.Server
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, "invalid server port")
	}
	if s.Backlog <= 0 {
		errs = append(errs, "backlog must be positive")
	}
	if s.Workers <= 0 {
		errs = append(errs, "workers must be positive")
	}
	if s.MaxQueueDepth < 0 {
		errs = append(errs, "max_queue_depth must not be negative")
	}
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		errs = append(errs, "read_timeout and write_timeout must be positive")
	}
	if s.IdleTimeout < 0 {
		errs = append(errs, "idle_timeout must not be negative")
	}
	if s.HeaderTimeout < 0 {
		errs = append(errs, "header_timeout must not be negative")
	}
	if s.AcceptPollInterval <= 0 {
		errs = append(errs, "accept_poll_interval must be positive")
	}
	if s.MaxHeaderBytes < 64 {
		errs = append(errs, "max_header_bytes must be at least 64")
	}
	if s.MaxBodyBytes < 0 {
		errs = append(errs, "max_body_bytes must not be negative")
	}
	if s.AcceptRate < 0 {
		errs = append(errs, "accept_rate must not be negative")
	}
	if s.AcceptRate > 0 && s.AcceptBurst <= 0 {
		errs = append(errs, "accept_burst must be positive when accept_rate is set")
	}

	// 验证 TLS 配置
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, "tls requires cert_file and key_file")
	}
	if c.TLS.HandshakeTimeout < 0 {
		errs = append(errs, "handshake_timeout must not be negative")
	}

	// 验证管理端口
	if c.Admin.Enabled {
		if c.Admin.Port < 0 || c.Admin.Port > 65535 {
			errs = append(errs, "invalid admin port")
		}
		if c.Admin.Port != 0 && c.Admin.Port == s.Port {
			errs = append(errs, "admin port must differ from server port")
		}
	}

	// 验证日志配置
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, "log format must be json or console")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
