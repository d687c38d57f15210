// =============================================================================
// h1d OpenTelemetry 初始化
// =============================================================================
// 为引擎建立 TracerProvider / MeterProvider，resource 中带上监听地址、
// TLS 模式与 worker 数量，并创建连接处理器使用的请求指标。
// 禁用时不创建任何 exporter，全局 provider 保持 noop。
// =============================================================================

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/BaSui01/h1d/config"
)

// EngineInfo 被观测引擎的静态描述，写入 OTel resource
type EngineInfo struct {
	Host    string
	Port    int
	TLS     bool
	Workers int
}

// EngineInfoFrom 从应用配置提取引擎描述
func EngineInfoFrom(cfg *config.Config) EngineInfo {
	return EngineInfo{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		TLS:     cfg.TLS.Enabled,
		Workers: cfg.Server.Workers,
	}
}

func (e EngineInfo) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.ServerAddress(e.Host),
		semconv.ServerPort(e.Port),
		attribute.Bool("h1d.tls", e.TLS),
		attribute.Int("h1d.workers", e.Workers),
	}
}

// Option 调整 Init 的导出方式
type Option func(*options)

type options struct {
	metricReader  sdkmetric.Reader
	spanProcessor sdktrace.SpanProcessor
}

// WithMetricReader 使用给定 reader 代替 OTLP 周期导出
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricReader = r }
}

// WithSpanProcessor 使用给定 processor 代替 OTLP 批量导出
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessor = sp }
}

// Providers 持有 SDK provider 与请求指标。禁用时全部为 nil，Shutdown 为空操作。
type Providers struct {
	tp          *sdktrace.TracerProvider
	mp          *sdkmetric.MeterProvider
	instruments *Instruments
}

// Init 初始化 OTel SDK 并注册为全局 provider。
// cfg.Enabled 为 false 时返回 noop Providers，不连接任何外部服务。
func Init(cfg config.TelemetryConfig, engine EngineInfo, logger *zap.Logger, opts ...Option) (*Providers, error) {
	if !cfg.Enabled {
		logger.Info("telemetry disabled, using noop providers")
		return &Providers{}, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()

	attrs := append([]attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(buildVersion()),
	}, engine.attributes()...)
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	spanProcessor := o.spanProcessor
	if spanProcessor == nil {
		traceExporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		spanProcessor = sdktrace.NewBatchSpanProcessor(traceExporter)
	}

	metricReader := o.metricReader
	if metricReader == nil {
		metricExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		metricReader = sdkmetric.NewPeriodicReader(metricExporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(spanProcessor),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricReader),
		sdkmetric.WithResource(res),
	)

	instruments, err := NewInstruments(mp.Meter(instrumentationName))
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.Float64("sample_rate", cfg.SampleRate),
		zap.Bool("tls", engine.TLS),
		zap.Int("workers", engine.Workers),
	)

	return &Providers{tp: tp, mp: mp, instruments: instruments}, nil
}

// Instruments 返回请求指标；禁用时为 nil（Record 为空操作）
func (p *Providers) Instruments() *Instruments {
	if p == nil {
		return nil
	}
	return p.instruments
}

// Shutdown 刷出未导出的 span 与指标并关闭 exporter
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// buildVersion 从构建信息读取模块版本，取不到时为 "dev"
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
