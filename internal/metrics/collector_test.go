package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.connectionsAccepted)
	assert.NotNil(t, collector.tlsHandshakes)
	assert.NotNil(t, collector.queueDepth)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", 200, 100*time.Millisecond, 0, 128)
	collector.RecordHTTPRequest("GET", 204, 50*time.Millisecond, 0, 64)
	collector.RecordHTTPRequest("POST", 404, 10*time.Millisecond, 2, 32)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "4xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequestDuration))
}

func TestCollector_MethodLabelBounded(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("BREW", 200, time.Millisecond, 0, 0)
	collector.RecordHTTPRequest("PROPFIND", 200, time.Millisecond, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("OTHER", "2xx")))
}

func TestCollector_ConnectionLifecycle(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordAccepted("plain")
	collector.RecordAccepted("tls")
	collector.RecordAccepted("tls")
	collector.RecordRejected("queue_full")
	collector.ConnectionOpened()
	collector.ConnectionOpened()
	collector.ConnectionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.connectionsAccepted.WithLabelValues("tls")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.connectionsRejected.WithLabelValues("queue_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.connectionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.workersBusy))
}

func TestCollector_HandshakeAndProtocolErrors(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHandshake("ok")
	collector.RecordHandshake("failed")
	collector.RecordProtocolError(505)
	collector.RecordProtocolError(400)
	collector.RecordProtocolError(400)
	collector.SetQueueDepth(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tlsHandshakes.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.protocolErrors.WithLabelValues("400")))
	assert.Equal(t, 7.0, testutil.ToFloat64(collector.queueDepth))
}

func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector
	assert.NotPanics(t, func() {
		collector.RecordAccepted("plain")
		collector.RecordRejected("rate_limited")
		collector.ConnectionOpened()
		collector.ConnectionClosed()
		collector.RecordHandshake("ok")
		collector.SetQueueDepth(1)
		collector.RecordHTTPRequest("GET", 200, time.Millisecond, 0, 0)
		collector.RecordProtocolError(400)
	})
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 并发记录多个指标
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			collector.RecordHTTPRequest("GET", 200, 100*time.Millisecond, 1024, 2048)
			collector.ConnectionOpened()
			collector.ConnectionClosed()
			done <- true
		}(i)
	}

	// 等待所有 goroutine 完成
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "2xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.connectionsActive))
}

func TestCollector_MetricsRegistration(t *testing.T) {
	logger := zap.NewNop()

	// 创建自定义 registry
	registry := prometheus.NewRegistry()

	// 创建 collector（会自动注册到默认 registry）
	collector := NewCollector(nextTestNamespace(), logger)

	// 手动注册到自定义 registry
	registry.MustRegister(collector.httpRequestsTotal)
	registry.MustRegister(collector.httpRequestDuration)

	// 记录一些数据
	collector.RecordHTTPRequest("GET", 200, 100*time.Millisecond, 0, 0)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "1xx", statusCode(100))
	assert.Equal(t, "2xx", statusCode(200))
	assert.Equal(t, "4xx", statusCode(413))
	assert.Equal(t, "5xx", statusCode(505))
	assert.Equal(t, "unknown", statusCode(0))
}
