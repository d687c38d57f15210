package pool

import (
	"errors"
	"sync"
)

var (
	// ErrQueueFull 队列已达到 MaxDepth
	ErrQueueFull = errors.New("pool: task queue is full")
	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("pool: task queue is closed")
)

type queueNode[T any] struct {
	value T
	next  *queueNode[T]
}

// TaskQueue 由单个互斥锁保护的 FIFO 链表，条件变量用于唤醒等待的 worker。
// 队列本身从不阻塞出队，阻塞等待由 WorkerPool 在持锁状态下完成。
type TaskQueue[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	head     *queueNode[T]
	tail     *queueNode[T]
	size     int
	maxDepth int
	closed   bool

	enqueued int64
	dequeued int64
	rejected int64
}

// NewTaskQueue 创建任务队列。maxDepth <= 0 表示不限深度。
func NewTaskQueue[T any](maxDepth int) *TaskQueue[T] {
	q := &TaskQueue[T]{maxDepth: maxDepth}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue 追加到队尾并唤醒一个等待者，O(1)
func (q *TaskQueue[T]) Enqueue(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.maxDepth > 0 && q.size >= q.maxDepth {
		q.rejected++
		return ErrQueueFull
	}

	n := &queueNode[T]{value: v}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.size++
	q.enqueued++
	q.cond.Signal()
	return nil
}

// TryDequeue 从队头取出一个任务；队列为空时立即返回 false
func (q *TaskQueue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *TaskQueue[T]) popLocked() (T, bool) {
	var zero T
	n := q.head
	if n == nil {
		return zero, false
	}
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.size--
	q.dequeued++
	v := n.value
	n.value = zero
	n.next = nil
	return v, true
}

// waitDequeue 持锁等待直到队列非空、stop 返回 true 或队列关闭。
// 观察到 stop 后不再出队。
func (q *TaskQueue[T]) waitDequeue(stop func() bool) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed && !stop() {
		q.cond.Wait()
	}
	if stop() {
		var zero T
		return zero, false
	}
	return q.popLocked()
}

// Len 当前排队数量
func (q *TaskQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Broadcast 唤醒所有等待者。持锁广播，避免等待者在检查条件与进入等待之间错过唤醒。
func (q *TaskQueue[T]) Broadcast() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Close 拒绝后续入队并唤醒所有等待者；已排队的任务保留，需 Drain
func (q *TaskQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Drain 按 FIFO 顺序取出全部剩余任务，在锁外逐个交给 fn，返回数量
func (q *TaskQueue[T]) Drain(fn func(T)) int {
	q.mu.Lock()
	var items []T
	for {
		v, ok := q.popLocked()
		if !ok {
			break
		}
		items = append(items, v)
	}
	q.mu.Unlock()

	if fn != nil {
		for _, v := range items {
			fn(v)
		}
	}
	return len(items)
}

// Stats 返回队列统计
func (q *TaskQueue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Depth:    q.size,
		MaxDepth: q.maxDepth,
		Enqueued: q.enqueued,
		Dequeued: q.dequeued,
		Rejected: q.rejected,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Depth    int   `json:"depth"`
	MaxDepth int   `json:"max_depth"`
	Enqueued int64 `json:"enqueued"`
	Dequeued int64 `json:"dequeued"`
	Rejected int64 `json:"rejected"`
}
