package http1

import (
	"errors"
	"fmt"
)

var (
	// ErrPeerClosed 对端在发送任何字节前关闭了连接，静默退出即可
	ErrPeerClosed = errors.New("http1: peer closed connection")
	// ErrIdleTimeout 长连接在等待下一个请求时空闲超时
	ErrIdleTimeout = errors.New("http1: keep-alive idle timeout")
	// ErrHeaderTimeout 请求已开始但头部块未在时限内读完
	ErrHeaderTimeout = errors.New("http1: header read timeout")
	// ErrUnknownStatus 状态码不在表中且未提供原因短语
	ErrUnknownStatus = errors.New("http1: unknown status code")
	// ErrInvalidHeader 响应头部名称或值包含非法字符
	ErrInvalidHeader = errors.New("http1: invalid response header")
)

// ProtocolError 已分配状态码的请求解析失败：发送响应后关闭连接
type ProtocolError struct {
	Status int
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("http1: %d %s: %v", e.Status, e.Reason, e.Err)
	}
	return fmt.Sprintf("http1: %d %s", e.Status, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolError(status int, reason string) error {
	return &ProtocolError{Status: status, Reason: reason}
}

// AsProtocolError 提取错误链中的 *ProtocolError
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsQuietClose 连接应直接关闭且不发送任何响应
func IsQuietClose(err error) bool {
	return errors.Is(err, ErrPeerClosed) ||
		errors.Is(err, ErrIdleTimeout) ||
		errors.Is(err, ErrHeaderTimeout)
}
