package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/h1d/internal/ctxkeys"
	"github.com/BaSui01/h1d/internal/http1"
	"github.com/BaSui01/h1d/internal/telemetry"
	"github.com/BaSui01/h1d/internal/transport"
)

// =============================================================================
// 🔌 连接处理
// =============================================================================

var errRouterPanic = errors.New("server: router panicked")

// conn 单个 worker 独占的连接状态
type conn struct {
	e      *Engine
	t      transport.Transport
	reader *http1.Reader
	resp   *http1.Response
	remote string
	logger *zap.Logger
}

// handle 是 worker 的任务处理函数。连接级错误在内部消化，
// 只有引擎自身的不变量被破坏时才返回错误（随后触发全局关闭）。
func (e *Engine) handle(ctx context.Context, task *Task) error {
	e.metrics.SetQueueDepth(e.queue.Len())

	remote := task.Conn.RemoteAddr().String()
	logger := e.logger.With(
		zap.String("conn_id", task.ID),
		zap.String("remote_addr", remote))
	ctx = ctxkeys.WithConnID(ctx, task.ID)
	ctx = ctxkeys.WithRemoteAddr(ctx, remote)

	opts := transport.Options{
		ReadTimeout:      e.cfg.ReadTimeout,
		WriteTimeout:     e.cfg.WriteTimeout,
		HandshakeTimeout: e.cfg.HandshakeTimeout,
	}

	// 握手期间 worker 同样被占用
	e.metrics.ConnectionOpened()
	defer e.metrics.ConnectionClosed()

	var t transport.Transport
	if e.tlsConfig != nil {
		tt := transport.NewTLS(task.Conn, e.tlsConfig, e.flag, opts)
		t = tt
		defer closeTransport(t, logger)
		if err := tt.Handshake(ctx); err != nil {
			if errors.Is(err, transport.ErrShutdown) {
				e.metrics.RecordHandshake("shutdown")
			} else {
				e.metrics.RecordHandshake("failed")
				logger.Debug("tls handshake failed", zap.Error(err))
			}
			return nil
		}
		e.metrics.RecordHandshake("ok")
	} else {
		t = transport.NewPlain(task.Conn, opts)
		defer closeTransport(t, logger)
	}

	c := &conn{
		e: e,
		t: t,
		reader: http1.NewReader(t, e.flag, http1.ReaderOptions{
			MaxHeaderBytes: e.cfg.MaxHeaderBytes,
			MaxBodyBytes:   e.cfg.MaxBodyBytes,
			IdleTimeout:    e.cfg.IdleTimeout,
			HeaderTimeout:  e.cfg.HeaderTimeout,
		}),
		resp:   http1.NewResponse(),
		remote: remote,
		logger: logger,
	}
	defer c.release()

	logger.Debug("connection opened", zap.Duration("queued", time.Since(task.Accepted)))
	return c.serve(ctx)
}

func closeTransport(t transport.Transport, logger *zap.Logger) {
	if err := t.Close(); err != nil && !errors.Is(err, transport.ErrAlreadyClosed) {
		logger.Debug("close connection", zap.Error(err))
	}
}

func (c *conn) release() {
	c.reader.Release()
	c.resp.Header.Destroy(nil)
}

// serve 在连接保持且未关闭时循环：读请求 → 路由 → 发送
func (c *conn) serve(ctx context.Context) error {
	for seq := 1; !c.e.flag.IsSet(); seq++ {
		req, err := c.reader.ReadRequest()
		if err != nil {
			return c.readFailed(err)
		}

		closeConn, err := c.serveRequest(ctxkeys.WithRequestSeq(ctx, seq), req)
		req.Release()
		if err != nil || closeConn {
			return err
		}
	}
	return nil
}

// readFailed 处理读取失败：协议错误发送最小错误响应后关闭，其余直接关闭
func (c *conn) readFailed(err error) error {
	pe, ok := http1.AsProtocolError(err)
	if !ok {
		if !http1.IsQuietClose(err) {
			c.logger.Debug("connection aborted", zap.Error(err))
		}
		return nil
	}

	c.e.metrics.RecordProtocolError(pe.Status)
	c.logger.Debug("rejecting request",
		zap.Int("status", pe.Status),
		zap.String("reason", pe.Reason))

	http1.ErrorResponse(c.resp, pe.Status)
	payload, serr := http1.Serialize(c.resp, true)
	if serr != nil {
		return fmt.Errorf("serialize %d response: %w", pe.Status, serr)
	}
	if _, werr := http1.WriteAll(c.t, c.e.flag, payload); werr != nil {
		c.logger.Debug("send error response failed", zap.Error(werr))
	}
	return nil
}

// serveRequest 处理单个请求，返回是否应关闭连接
func (c *conn) serveRequest(ctx context.Context, req *http1.Request) (bool, error) {
	start := time.Now()
	ctx, span := telemetry.StartRequestSpan(ctx, req.Method, req.Path(), c.remote)

	c.resp.Reset()
	routeErr := c.route(ctx, req)
	if routeErr != nil {
		c.logger.Warn("router failed",
			zap.String("method", req.Method),
			zap.String("target", req.Target),
			zap.Error(routeErr))
		http1.ErrorResponse(c.resp, http1.StatusInternalServerError)
	}

	closeConn := req.Close
	payload, err := http1.Serialize(c.resp, closeConn)
	if err != nil {
		// 路由产出了无法序列化的响应（未知状态码、非法头部），替换为 500
		c.logger.Warn("router response rejected", zap.Error(err))
		if routeErr == nil {
			routeErr = err
		}
		http1.ErrorResponse(c.resp, http1.StatusInternalServerError)
		payload, err = http1.Serialize(c.resp, closeConn)
		if err != nil {
			telemetry.EndRequestSpan(span, http1.StatusInternalServerError, err)
			return true, fmt.Errorf("serialize 500 response: %w", err)
		}
	}

	sent, werr := http1.WriteAll(c.t, c.e.flag, payload)
	duration := time.Since(start)
	status := c.resp.StatusCode

	c.e.metrics.RecordHTTPRequest(req.Method, status, duration, int64(len(req.Body)), int64(sent))
	c.e.instruments.Record(ctx, req.Method, status, duration)
	telemetry.EndRequestSpan(span, status, routeErr)

	if werr != nil {
		c.logger.Debug("send response failed",
			zap.Int("sent", sent),
			zap.Int("size", len(payload)),
			zap.Error(werr))
		return true, nil
	}

	c.logger.Debug("request served",
		zap.String("method", req.Method),
		zap.String("target", req.Target),
		zap.Int("status", status),
		zap.Duration("duration", duration),
		zap.Bool("close", closeConn))
	return closeConn, nil
}

// route 调用路由并把 panic 转换为错误
func (c *conn) route(ctx context.Context, req *http1.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("router panic", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", errRouterPanic, r)
		}
	}()
	return c.e.router.Route(ctx, req, c.resp)
}
