package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/BaSui01/h1d/internal/server"

// Tracer 返回引擎使用的 tracer。未调用 Init 时为全局 noop 实现。
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartRequestSpan 为一次请求开启服务端 span
func StartRequestSpan(ctx context.Context, method, path, remoteAddr string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.URLPath(path),
			semconv.NetworkProtocolVersion("1.1"),
			semconv.ClientAddress(remoteAddr),
		),
	)
}

// EndRequestSpan 记录响应状态码并结束 span；5xx 或路由错误标记为 Error
func EndRequestSpan(span trace.Span, status int, err error) {
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	if err != nil {
		span.RecordError(err)
	}
	if status >= 500 || err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
	}
	span.End()
}

// Instruments 请求级 OTel 指标，随 MeterProvider 经 OTLP 导出
type Instruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewInstruments 在给定 meter 上创建请求指标
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	requests, err := meter.Int64Counter("h1d.server.requests",
		metric.WithDescription("Number of HTTP requests served"),
	)
	if err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram("h1d.server.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &Instruments{requests: requests, duration: duration}, nil
}

// Record 记录一次请求；nil Instruments 为空操作
func (i *Instruments) Record(ctx context.Context, method string, status int, d time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		semconv.HTTPRequestMethodKey.String(method),
		semconv.HTTPResponseStatusCode(status),
	)
	i.requests.Add(ctx, 1, attrs)
	i.duration.Record(ctx, d.Seconds(), attrs)
}
