// Package shutdown 提供进程级关闭标志。
//
// Flag 只能被置位一次且永不清除，是整个引擎唯一的终止条件：
// 接收循环、每个阻塞 I/O 重试点以及工作协程的队列等待都会轮询它。
package shutdown

import (
	"sync"
	"sync/atomic"
)

// Flag 关闭标志
type Flag struct {
	set    atomic.Bool
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	hooks  []func()
	reason string
}

// New 创建未置位的关闭标志
func New() *Flag {
	return &Flag{done: make(chan struct{})}
}

// Set 置位标志并依次调用已注册的唤醒钩子。
// 返回 true 表示本次调用完成了置位，重复调用返回 false。
func (f *Flag) Set(reason string) bool {
	first := false
	f.once.Do(func() {
		first = true
		f.mu.Lock()
		f.reason = reason
		f.set.Store(true)
		hooks := f.hooks
		f.hooks = nil
		f.mu.Unlock()

		close(f.done)
		for _, h := range hooks {
			h()
		}
	})
	return first
}

// IsSet 报告标志是否已置位
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Done 返回在置位时关闭的通道，便于在 select 与 context 中使用
func (f *Flag) Done() <-chan struct{} {
	return f.done
}

// Reason 返回首次置位时给出的原因
func (f *Flag) Reason() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reason
}

// OnSet 注册置位时执行的钩子（例如广播队列条件变量）。
// 若标志已置位，钩子立即执行。
func (f *Flag) OnSet(hook func()) {
	f.mu.Lock()
	if !f.set.Load() {
		f.hooks = append(f.hooks, hook)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	hook()
}
