// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有记录方法对 nil 接收者安全，未启用指标时可直接传 nil。
type Collector struct {
	// 连接指标
	connectionsAccepted *prometheus.CounterVec
	connectionsRejected *prometheus.CounterVec
	connectionsActive   prometheus.Gauge
	tlsHandshakes       *prometheus.CounterVec

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec
	protocolErrors      *prometheus.CounterVec

	// 引擎指标
	queueDepth  prometheus.Gauge
	workersBusy prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 连接指标
	c.connectionsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted connections",
		},
		[]string{"transport"}, // plain, tls
	)

	c.connectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Total number of connections closed without being served",
		},
		[]string{"reason"},
	)

	c.connectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections currently owned by a worker",
		},
	)

	c.tlsHandshakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tls_handshakes_total",
			Help:      "Total number of TLS handshakes by result",
		},
		[]string{"result"}, // ok, failed, shutdown
	)

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size on the wire in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method"},
	)

	c.protocolErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of rejected requests by status code",
		},
		[]string{"status"},
	)

	// 引擎指标
	c.queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Number of accepted connections waiting for a worker",
		},
	)

	c.workersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Number of workers currently serving a connection",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔌 连接指标记录
// =============================================================================

// RecordAccepted 记录接受的连接
func (c *Collector) RecordAccepted(transport string) {
	if c == nil {
		return
	}
	c.connectionsAccepted.WithLabelValues(transport).Inc()
}

// RecordRejected 记录未被服务即关闭的连接
func (c *Collector) RecordRejected(reason string) {
	if c == nil {
		return
	}
	c.connectionsRejected.WithLabelValues(reason).Inc()
}

// ConnectionOpened 连接交给 worker
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Inc()
	c.workersBusy.Inc()
}

// ConnectionClosed 连接处理结束
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Dec()
	c.workersBusy.Dec()
}

// RecordHandshake 记录 TLS 握手结果
func (c *Collector) RecordHandshake(result string) {
	if c == nil {
		return
	}
	c.tlsHandshakes.WithLabelValues(result).Inc()
}

// SetQueueDepth 设置当前排队数量
func (c *Collector) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method string, status int, duration time.Duration, requestSize, responseSize int64) {
	if c == nil {
		return
	}
	method = methodLabel(method)
	c.httpRequestsTotal.WithLabelValues(method, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method).Observe(float64(responseSize))
}

// RecordProtocolError 记录被拒绝的请求
func (c *Collector) RecordProtocolError(status int) {
	if c == nil {
		return
	}
	c.protocolErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// methodLabel 限制 method 标签基数
func methodLabel(method string) string {
	switch method {
	case "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS":
		return method
	default:
		return "OTHER"
	}
}
