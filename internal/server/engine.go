package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/h1d/config"
	"github.com/BaSui01/h1d/internal/http1"
	"github.com/BaSui01/h1d/internal/metrics"
	"github.com/BaSui01/h1d/internal/pool"
	"github.com/BaSui01/h1d/internal/shutdown"
	"github.com/BaSui01/h1d/internal/telemetry"
)

// =============================================================================
// 🚀 引擎
// =============================================================================

var (
	ErrAlreadyServing = errors.New("server: already serving")
	ErrNoRouter       = errors.New("server: router is required")
)

// Config 引擎配置
type Config struct {
	// 监听地址 host:port，端口为 0 时由内核分配
	Addr string
	// listen(2) 积压队列长度
	Backlog int
	// worker 数量
	Workers int
	// 任务队列上限，0 表示不限
	MaxQueueDepth int

	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	HeaderTimeout    time.Duration
	HandshakeTimeout time.Duration

	// accept 轮询间隔，决定无连接时观察关闭标志的延迟
	AcceptPollInterval time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int64

	// 每秒接受连接数上限，0 表示不限
	AcceptRate  float64
	AcceptBurst int

	// 是否安装 SIGINT/SIGTERM 处理
	HandleSignals bool
}

// DefaultConfig 返回默认引擎配置
func DefaultConfig() Config {
	return Config{
		Addr:               "0.0.0.0:4221",
		Backlog:            20,
		Workers:            20,
		ReadTimeout:        time.Second,
		WriteTimeout:       time.Second,
		IdleTimeout:        time.Minute,
		HeaderTimeout:      10 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		AcceptPollInterval: time.Second,
		MaxHeaderBytes:     http1.DefaultMaxHeaderBytes,
		MaxBodyBytes:       10 << 20,
		HandleSignals:      true,
	}
}

// ConfigFrom 从应用配置构建引擎配置
func ConfigFrom(cfg *config.Config) Config {
	s := cfg.Server
	return Config{
		Addr:               s.Addr(),
		Backlog:            s.Backlog,
		Workers:            s.Workers,
		MaxQueueDepth:      s.MaxQueueDepth,
		ReadTimeout:        s.ReadTimeout,
		WriteTimeout:       s.WriteTimeout,
		IdleTimeout:        s.IdleTimeout,
		HeaderTimeout:      s.HeaderTimeout,
		HandshakeTimeout:   cfg.TLS.HandshakeTimeout,
		AcceptPollInterval: s.AcceptPollInterval,
		MaxHeaderBytes:     s.MaxHeaderBytes,
		MaxBodyBytes:       s.MaxBodyBytes,
		AcceptRate:         s.AcceptRate,
		AcceptBurst:        s.AcceptBurst,
		HandleSignals:      true,
	}
}

// Task 一个已接受、尚未被服务的连接。所有权从 acceptor 转移给取到它的 worker。
type Task struct {
	Conn     net.Conn
	ID       string
	Accepted time.Time
}

// Option 引擎可选项
type Option func(*Engine)

// WithTLS 启用 TLS 传输，配置在所有连接间共享
func WithTLS(cfg *tls.Config) Option {
	return func(e *Engine) { e.tlsConfig = cfg }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics 设置 Prometheus 收集器
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithInstruments 设置 OTel 请求指标
func WithInstruments(i *telemetry.Instruments) Option {
	return func(e *Engine) { e.instruments = i }
}

// WithFlag 使用外部创建的关闭标志（例如与 stdin 控制共享）
func WithFlag(f *shutdown.Flag) Option {
	return func(e *Engine) { e.flag = f }
}

// Engine 持久连接 HTTP/1.1 服务引擎：acceptor + 任务队列 + 固定 worker 池
type Engine struct {
	cfg         Config
	router      http1.Router
	tlsConfig   *tls.Config
	flag        *shutdown.Flag
	queue       *pool.TaskQueue[*Task]
	workers     *pool.WorkerPool[*Task]
	limiter     *rate.Limiter
	metrics     *metrics.Collector
	instruments *telemetry.Instruments
	logger      *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	serving  bool
}

// New 创建引擎，不绑定端口
func New(cfg Config, router http1.Router, opts ...Option) (*Engine, error) {
	if router == nil {
		return nil, ErrNoRouter
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = def.Backlog
	}
	if cfg.AcceptPollInterval <= 0 {
		cfg.AcceptPollInterval = def.AcceptPollInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	e := &Engine{cfg: cfg, router: router}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.With(zap.String("component", "engine"))
	if e.flag == nil {
		e.flag = shutdown.New()
	}
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), burst)
	}

	e.queue = pool.NewTaskQueue[*Task](cfg.MaxQueueDepth)
	e.workers = pool.NewWorkerPool(pool.WorkerPoolConfig{
		Workers: cfg.Workers,
		PanicHandler: func(r any) {
			e.logger.Error("worker panic", zap.Any("panic", r), zap.Stack("stack"))
		},
	}, e.queue, e.flag, e.handle, e.logger)

	return e, nil
}

// Listen 绑定监听端口。Serve 在未调用 Listen 时会自动调用。
func (e *Engine) Listen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return nil
	}
	ln, err := listenTCP(e.cfg.Addr, e.cfg.Backlog)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", e.cfg.Addr, err)
	}
	e.listener = ln
	e.logger.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("backlog", e.cfg.Backlog),
		zap.Bool("tls", e.tlsConfig != nil))
	return nil
}

// Addr 返回实际监听地址；未监听时为 nil
func (e *Engine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// Flag 返回引擎的关闭标志
func (e *Engine) Flag() *shutdown.Flag {
	return e.flag
}

// Shutdown 置位关闭标志；Serve 在下一次轮询时开始有序拆除
func (e *Engine) Shutdown(reason string) {
	if e.flag.Set(reason) {
		e.logger.Info("shutdown requested", zap.String("reason", reason))
	}
}

// ShuttingDown 报告关闭标志是否已置位
func (e *Engine) ShuttingDown() bool {
	return e.flag.IsSet()
}

// EngineStats 引擎运行状态
type EngineStats struct {
	Workers pool.WorkerPoolStats `json:"workers"`
	Queue   pool.QueueStats      `json:"queue"`
	Buffers pool.BufferStats     `json:"buffers"`
}

// Stats 返回 worker 池、队列与缓冲池统计
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Workers: e.workers.Stats(),
		Queue:   e.queue.Stats(),
		Buffers: pool.BufferPoolStats(),
	}
}

// Serve 运行 acceptor 直到关闭标志置位（信号、ctx 取消、Shutdown 或内部故障），
// 然后按顺序拆除：关闭监听 → 唤醒全部 worker → 等待 worker 退出 →
// 关闭队列中剩余的连接 → 关闭队列 → 释放 TLS 配置。
func (e *Engine) Serve(ctx context.Context) error {
	if err := e.Listen(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.serving {
		e.mu.Unlock()
		return ErrAlreadyServing
	}
	e.serving = true
	ln := e.listener
	e.mu.Unlock()

	if e.cfg.HandleSignals {
		stop := e.watchSignals()
		defer stop()
	}
	go func() {
		select {
		case <-ctx.Done():
			e.Shutdown("context canceled")
		case <-e.flag.Done():
		}
	}()

	if err := e.workers.Start(ctx); err != nil {
		e.Shutdown("worker pool start failed")
		_ = ln.Close()
		return err
	}

	acceptErr := e.acceptLoop(ln)
	return errors.Join(acceptErr, e.teardown(ln))
}

func (e *Engine) teardown(ln net.Listener) error {
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		e.logger.Warn("close listener", zap.Error(err))
	}
	e.Shutdown("acceptor stopped")

	workerErr := e.workers.Wait()

	drained := e.queue.Drain(func(task *Task) {
		_ = task.Conn.Close()
		e.metrics.RecordRejected("shutdown")
	})
	e.queue.Close()
	e.metrics.SetQueueDepth(0)

	e.mu.Lock()
	e.tlsConfig = nil
	e.mu.Unlock()

	e.logger.Info("engine stopped",
		zap.String("reason", e.flag.Reason()),
		zap.Int("drained", drained),
		zap.Error(workerErr))
	return workerErr
}

// watchSignals 单独的 goroutine 接收 SIGINT/SIGTERM，只负责置位关闭标志
func (e *Engine) watchSignals() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			e.Shutdown("signal: " + sig.String())
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// deadlineListener 支持 accept 超时的监听器（*net.TCPListener）
type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

func (e *Engine) acceptLoop(ln net.Listener) error {
	dl, timed := ln.(deadlineListener)
	waitCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-e.flag.Done():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	var backoff time.Duration
	for !e.flag.IsSet() {
		if e.limiter != nil {
			if err := e.limiter.Wait(waitCtx); err != nil {
				return nil
			}
		}
		if timed {
			_ = dl.SetDeadline(time.Now().Add(e.cfg.AcceptPollInterval))
		}
		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if e.flag.IsSet() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// EMFILE、ECONNABORTED 等瞬时错误：退避后继续
			backoff = nextBackoff(backoff)
			e.logger.Warn("accept failed, retrying",
				zap.Error(err),
				zap.Duration("backoff", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if err := e.dispatch(conn); err != nil {
			e.Shutdown("enqueue failed: " + err.Error())
			return err
		}
	}
	return nil
}

// dispatch 把连接包装为任务入队并唤醒一个 worker。
// 队列满时关闭连接并继续；其他失败为终止性错误。
func (e *Engine) dispatch(conn net.Conn) error {
	task := &Task{
		Conn:     conn,
		ID:       uuid.NewString(),
		Accepted: time.Now(),
	}
	transportName := "plain"
	if e.tlsConfig != nil {
		transportName = "tls"
	}
	e.metrics.RecordAccepted(transportName)

	err := e.queue.Enqueue(task)
	switch {
	case err == nil:
		e.metrics.SetQueueDepth(e.queue.Len())
		return nil
	case errors.Is(err, pool.ErrQueueFull):
		e.logger.Warn("task queue full, rejecting connection",
			zap.String("conn_id", task.ID),
			zap.String("remote_addr", conn.RemoteAddr().String()))
		e.metrics.RecordRejected("queue_full")
		_ = conn.Close()
		return nil
	default:
		e.metrics.RecordRejected("enqueue_failed")
		_ = conn.Close()
		return fmt.Errorf("enqueue task: %w", err)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	return min(d*2, time.Second)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
