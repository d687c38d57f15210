package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// HandshakeState TLS 握手状态
type HandshakeState int32

const (
	StateInit HandshakeState = iota
	StateHandshaking
	StateEstablished
	StateFailed
)

func (s HandshakeState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TLS 基于 crypto/tls 的传输。读写之前必须完成握手。
type TLS struct {
	raw    *retryConn
	conn   *tls.Conn
	opts   Options
	state  atomic.Int32
	closed atomic.Bool
}

// NewTLS 用共享的服务端配置包装一个已接受的连接，握手延迟到首次使用
func NewTLS(conn net.Conn, cfg *tls.Config, stop Stopper, opts Options) *TLS {
	raw := &retryConn{Conn: conn, stop: stop, opts: opts}
	raw.retryReads.Store(true)
	return &TLS{
		raw:  raw,
		conn: tls.Server(raw, cfg),
		opts: opts,
	}
}

// State 返回当前握手状态
func (t *TLS) State() HandshakeState {
	return HandshakeState(t.state.Load())
}

// Retries 返回握手期间因超时重入 HANDSHAKING 的次数
func (t *TLS) Retries() int64 {
	return t.raw.retries.Load()
}

// Handshake 执行服务端握手。
// 底层读写超时会在检查关闭标志后重试；协议错误返回 ErrHandshake，
// 关闭标志置位返回 ErrShutdown。
func (t *TLS) Handshake(ctx context.Context) error {
	switch t.State() {
	case StateEstablished:
		return nil
	case StateFailed:
		return ErrHandshake
	}
	if t.closed.Load() {
		return ErrAlreadyClosed
	}
	t.state.Store(int32(StateHandshaking))

	if t.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.HandshakeTimeout)
		defer cancel()
	}

	err := t.conn.HandshakeContext(ctx)
	if err == nil {
		t.raw.retryReads.Store(false)
		t.state.Store(int32(StateEstablished))
		return nil
	}
	t.state.Store(int32(StateFailed))
	if errors.Is(err, ErrShutdown) || t.raw.stop.IsSet() {
		return ErrShutdown
	}
	return fmt.Errorf("%w: %v", ErrHandshake, err)
}

// Read 读取解密后的数据；未握手时先握手
func (t *TLS) Read(b []byte) (int, error) {
	if t.closed.Load() {
		return 0, ErrAlreadyClosed
	}
	if err := t.Handshake(context.Background()); err != nil {
		return 0, err
	}
	_ = t.conn.SetReadDeadline(deadline(t.opts.ReadTimeout))
	n, err := t.conn.Read(b)
	if errors.Is(err, ErrShutdown) {
		return n, ErrShutdown
	}
	return n, classify("tls read", n, len(b), err)
}

// Write 加密写出。crypto/tls 的写超时会破坏连接状态，
// 因此超时重试在底层 retryConn 中完成，这里不会返回 ErrWouldBlock。
func (t *TLS) Write(b []byte) (int, error) {
	if t.closed.Load() {
		return 0, ErrAlreadyClosed
	}
	if err := t.Handshake(context.Background()); err != nil {
		return 0, err
	}
	n, err := t.conn.Write(b)
	if errors.Is(err, ErrShutdown) {
		return n, ErrShutdown
	}
	return n, classify("tls write", n, len(b), err)
}

// Close 已建立的连接先发送 close_notify，再关闭底层连接
func (t *TLS) Close() error {
	if t.closed.Swap(true) {
		return ErrAlreadyClosed
	}
	t.raw.closing.Store(true)
	if t.State() == StateEstablished {
		err := t.conn.Close()
		// close_notify 失败不影响底层连接已关闭
		_ = t.raw.Close()
		return err
	}
	return t.raw.Close()
}

// RemoteAddr 返回对端地址
func (t *TLS) RemoteAddr() net.Addr {
	return t.raw.RemoteAddr()
}

// retryConn 位于 crypto/tls 之下：握手期间吞掉读超时、关闭前始终吞掉写超时，
// 每次重试前检查关闭标志。Close 只生效一次，因为 crypto/tls 在握手
// 被 context 中断时也会关闭底层连接。
type retryConn struct {
	net.Conn
	stop       Stopper
	opts       Options
	retryReads atomic.Bool
	closing    atomic.Bool
	retries    atomic.Int64
	closeOnce  sync.Once
	closeErr   error
}

func (c *retryConn) Read(b []byte) (int, error) {
	for {
		if c.retryReads.Load() {
			_ = c.Conn.SetReadDeadline(deadline(c.opts.ReadTimeout))
		}
		n, err := c.Conn.Read(b)
		if err == nil || n > 0 || !isTimeout(err) || !c.retryReads.Load() {
			return n, err
		}
		if c.stop.IsSet() {
			return 0, ErrShutdown
		}
		c.retries.Add(1)
	}
}

func (c *retryConn) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		_ = c.Conn.SetWriteDeadline(deadline(c.opts.WriteTimeout))
		n, err := c.Conn.Write(b[written:])
		written += n
		if err == nil {
			continue
		}
		if !isTimeout(err) || c.closing.Load() {
			return written, err
		}
		if c.stop.IsSet() {
			return written, ErrShutdown
		}
	}
	return written, nil
}

func (c *retryConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}
