// Package pool provides the fixed worker pool, its task queue and
// object pools used on the connection hot path.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/h1d/internal/shutdown"
)

var (
	ErrPoolStarted = errors.New("pool: already started")
	ErrTaskPanic   = errors.New("pool: task panicked")
)

// Handler 处理一个任务直到完成。返回错误表示不可恢复的故障，会触发全局关闭。
type Handler[T any] func(ctx context.Context, task T) error

// WorkerPoolConfig configures the pool.
type WorkerPoolConfig struct {
	Workers      int       `json:"workers"`
	PanicHandler func(any) `json:"-"`
}

// WorkerPool 固定数量的长驻 worker，从 TaskQueue 取任务执行
type WorkerPool[T any] struct {
	workers      int
	queue        *TaskQueue[T]
	flag         *shutdown.Flag
	handler      Handler[T]
	panicHandler func(any)
	logger       *zap.Logger

	group   *errgroup.Group
	started atomic.Bool

	// Metrics
	activeCount atomic.Int32
	processed   atomic.Int64
	failed      atomic.Int64
}

// NewWorkerPool 创建 worker 池。关闭标志置位时会广播唤醒所有等待的 worker。
func NewWorkerPool[T any](config WorkerPoolConfig, queue *TaskQueue[T], flag *shutdown.Flag, handler Handler[T], logger *zap.Logger) *WorkerPool[T] {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &WorkerPool[T]{
		workers:      config.Workers,
		queue:        queue,
		flag:         flag,
		handler:      handler,
		panicHandler: config.PanicHandler,
		logger:       logger.With(zap.String("component", "worker_pool")),
	}
	flag.OnSet(queue.Broadcast)
	return p
}

// Start 启动全部 worker
func (p *WorkerPool[T]) Start(ctx context.Context) error {
	if p.started.Swap(true) {
		return ErrPoolStarted
	}
	g, gctx := errgroup.WithContext(ctx)
	p.group = g
	for i := 0; i < p.workers; i++ {
		id := i
		g.Go(func() error {
			return p.worker(gctx, id)
		})
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workers))
	return nil
}

// Wait 等待全部 worker 退出，返回第一个不可恢复的错误
func (p *WorkerPool[T]) Wait() error {
	if p.group == nil {
		return nil
	}
	return p.group.Wait()
}

func (p *WorkerPool[T]) worker(ctx context.Context, id int) error {
	for {
		task, ok := p.queue.waitDequeue(p.flag.IsSet)
		if !ok {
			p.logger.Debug("worker exiting", zap.Int("worker", id))
			return nil
		}

		p.activeCount.Add(1)
		err := p.execute(ctx, task)
		p.activeCount.Add(-1)
		p.processed.Add(1)

		if err != nil {
			p.failed.Add(1)
			p.logger.Error("unrecoverable task failure, shutting down",
				zap.Int("worker", id),
				zap.Error(err))
			p.flag.Set(fmt.Sprintf("worker %d: %v", id, err))
			return err
		}
	}
}

func (p *WorkerPool[T]) execute(ctx context.Context, task T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()

	return p.handler(ctx, task)
}

// Stats returns pool statistics.
func (p *WorkerPool[T]) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		Workers:   p.workers,
		Active:    int(p.activeCount.Load()),
		Queued:    p.queue.Len(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// WorkerPoolStats contains pool statistics.
type WorkerPoolStats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}
