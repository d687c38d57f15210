package http1

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/h1d/internal/header"
	"github.com/BaSui01/h1d/internal/pool"
	"github.com/BaSui01/h1d/internal/transport"
)

// Serialize 把响应组装为完整的线格式字节。
// 组装失败时不产生任何输出。
func Serialize(resp *Response, closeConn bool) ([]byte, error) {
	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)

	if err := writeResponse(buf, resp, closeConn); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Send 组装响应并完整写出，返回已发送字节数
func Send(t transport.Transport, stop transport.Stopper, resp *Response, closeConn bool) (int, error) {
	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)

	if err := writeResponse(buf, resp, closeConn); err != nil {
		return 0, err
	}
	return WriteAll(t, stop, buf.Bytes())
}

// WriteAll 阻塞写出 p 的全部字节：部分写入继续写，ErrWouldBlock 在检查
// 关闭标志后重试；其他错误或关闭标志置位时中止。
func WriteAll(t transport.Transport, stop transport.Stopper, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		n, err := t.Write(p[sent:])
		sent += n
		if err == nil {
			continue
		}
		if errors.Is(err, transport.ErrWouldBlock) {
			if stop.IsSet() {
				return sent, transport.ErrShutdown
			}
			continue
		}
		return sent, err
	}
	return sent, nil
}

func writeResponse(buf *bytes.Buffer, resp *Response, closeConn bool) error {
	reason := resp.Reason
	if reason == "" {
		text, ok := StatusText(resp.StatusCode)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownStatus, resp.StatusCode)
		}
		reason = text
	}
	if resp.StatusCode < 100 || resp.StatusCode > 999 || strings.ContainsAny(reason, "\r\n") {
		return fmt.Errorf("%w: %d %q", ErrUnknownStatus, resp.StatusCode, reason)
	}

	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(resp.StatusCode))
	buf.WriteByte(' ')
	buf.WriteString(reason)
	buf.WriteString("\r\n")

	var herr error
	resp.Header.Each(func(name, value string) bool {
		switch header.Fold(name) {
		case "content-length", "connection":
			return true
		}
		if name == "" || strings.ContainsAny(name, ": \t\r\n") || strings.ContainsAny(value, "\r\n") {
			herr = fmt.Errorf("%w: %q", ErrInvalidHeader, name)
			return false
		}
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
		return true
	})
	if herr != nil {
		buf.Reset()
		return herr
	}

	if closeConn {
		buf.WriteString("Connection: close\r\n")
	}
	buf.WriteString("Content-Length: ")
	buf.WriteString(strconv.Itoa(len(resp.Body)))
	buf.WriteString("\r\n\r\n")
	buf.Write(resp.Body)
	return nil
}
