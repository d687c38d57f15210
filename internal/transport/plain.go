package transport

import (
	"net"
	"sync/atomic"
)

// Plain 明文 TCP 传输，对 net.Conn 的薄封装
type Plain struct {
	conn   net.Conn
	opts   Options
	closed atomic.Bool
}

// NewPlain 包装一个已接受的连接
func NewPlain(conn net.Conn, opts Options) *Plain {
	return &Plain{conn: conn, opts: opts}
}

// Read 在 ReadTimeout 内读取；超时返回 ErrWouldBlock
func (p *Plain) Read(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrAlreadyClosed
	}
	_ = p.conn.SetReadDeadline(deadline(p.opts.ReadTimeout))
	n, err := p.conn.Read(b)
	return n, classify("read", n, len(b), err)
}

// Write 在 WriteTimeout 内写出；可能只写出部分字节
func (p *Plain) Write(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrAlreadyClosed
	}
	_ = p.conn.SetWriteDeadline(deadline(p.opts.WriteTimeout))
	n, err := p.conn.Write(b)
	return n, classify("write", n, len(b), err)
}

// Close 关闭底层连接，重复调用返回 ErrAlreadyClosed
func (p *Plain) Close() error {
	if p.closed.Swap(true) {
		return ErrAlreadyClosed
	}
	return p.conn.Close()
}

// RemoteAddr 返回对端地址
func (p *Plain) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}
