// Package transport 抽象明文套接字与 TLS 流，提供带超时的阻塞读写，
// 并把超时、对端关闭与进程关闭统一为哨兵错误。
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

var (
	// ErrWouldBlock 本次读写在超时内没有进展，调用方检查关闭标志后重试
	ErrWouldBlock = errors.New("transport: would block")
	// ErrClosed 对端正常关闭（或零长度读写）
	ErrClosed = errors.New("transport: closed by peer")
	// ErrShutdown 重试期间观察到进程关闭标志
	ErrShutdown = errors.New("transport: shutdown in progress")
	// ErrHandshake TLS 握手失败，连接被丢弃
	ErrHandshake = errors.New("transport: tls handshake failed")
	// ErrAlreadyClosed 传输句柄已被关闭
	ErrAlreadyClosed = errors.New("transport: already closed")
)

// Transport 单个客户端连接的读写抽象
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// Close 消费句柄：只有第一次调用会关闭底层连接
	Close() error
	RemoteAddr() net.Addr
}

// Stopper 进程关闭标志的只读视图
type Stopper interface {
	IsSet() bool
}

// Options 传输层超时配置
type Options struct {
	// 单次读超时，超时返回 ErrWouldBlock
	ReadTimeout time.Duration
	// 单次写超时
	WriteTimeout time.Duration
	// TLS 握手总时长上限，0 表示仅受关闭标志约束
	HandshakeTimeout time.Duration
}

// DefaultOptions 返回默认超时配置
func DefaultOptions() Options {
	return Options{
		ReadTimeout:      time.Second,
		WriteTimeout:     time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// classify 把 net.Conn 的返回值映射为传输层信号
func classify(op string, n, want int, err error) error {
	if err == nil {
		if n == 0 && want > 0 {
			return ErrClosed
		}
		return nil
	}
	if errors.Is(err, io.EOF) {
		return ErrClosed
	}
	if isTimeout(err) {
		return ErrWouldBlock
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
