// =============================================================================
// 🚀 h1d 线协议基准测试
// =============================================================================
// 覆盖连接热路径：请求解析与响应序列化
//
// 运行方式:
//   go test -bench=. -benchmem ./internal/http1/...
// =============================================================================

package http1

import (
	"strings"
	"testing"

	"github.com/BaSui01/h1d/internal/shutdown"
)

const benchRequest = "POST /echo HTTP/1.1\r\n" +
	"Host: localhost:4221\r\n" +
	"User-Agent: bench/1.0\r\n" +
	"Accept: */*\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Length: 11\r\n" +
	"\r\n" +
	"hello world"

// BenchmarkReader_ReadRequest 单个请求的完整解析
func BenchmarkReader_ReadRequest(b *testing.B) {
	flag := shutdown.New()
	raw := []byte(benchRequest)

	b.ReportAllocs()
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r := NewReader(newFake(raw), flag, ReaderOptions{})
		req, err := r.ReadRequest()
		if err != nil {
			b.Fatal(err)
		}
		req.Release()
		r.Release()
	}
}

// BenchmarkReader_KeepAlive 同一连接上连续读取多个请求
func BenchmarkReader_KeepAlive(b *testing.B) {
	const perConn = 32
	flag := shutdown.New()
	raw := []byte(strings.Repeat(benchRequest, perConn))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r := NewReader(newFake(raw), flag, ReaderOptions{})
		for j := 0; j < perConn; j++ {
			req, err := r.ReadRequest()
			if err != nil {
				b.Fatal(err)
			}
			req.Release()
		}
		r.Release()
	}
}

// BenchmarkSerialize 典型纯文本响应的序列化
func BenchmarkSerialize(b *testing.B) {
	resp := NewResponse()
	resp.SetText(StatusOK, strings.Repeat("x", 512))
	resp.SetHeader("X-Request-Id", "0f8fad5b-d9cb-469f-a165-70867728950e")

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := Serialize(resp, false); err != nil {
			b.Fatal(err)
		}
	}
}
