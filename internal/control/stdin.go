// Package control 实现进程控制面：从标准输入读取运维命令。
package control

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/h1d/internal/shutdown"
)

// ShutdownCommand 以此前缀开头的输入行会置位关闭标志
const ShutdownCommand = "shutdown"

// Watcher 逐行读取控制输入
type Watcher struct {
	in     io.Reader
	flag   *shutdown.Flag
	logger *zap.Logger
}

// NewWatcher 创建控制输入监听器
func NewWatcher(in io.Reader, flag *shutdown.Flag, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		in:     in,
		flag:   flag,
		logger: logger.With(zap.String("component", "control")),
	}
}

// Run 阻塞读取输入直到收到 shutdown 命令、输入结束或 ctx 取消。
// 输入结束（EOF）不会触发关闭，返回 nil。
func (w *Watcher) Run(ctx context.Context) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		scanner := bufio.NewScanner(w.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.flag.Done():
			return nil
		case err := <-errCh:
			if err != nil && !errors.Is(err, io.EOF) {
				w.logger.Warn("control input failed", zap.Error(err))
				return err
			}
			w.logger.Debug("control input closed")
			return nil
		case line := <-lines:
			if strings.HasPrefix(line, ShutdownCommand) {
				w.logger.Info("shutdown command received")
				w.flag.Set("stdin: " + ShutdownCommand)
				return nil
			}
			if strings.TrimSpace(line) != "" {
				w.logger.Debug("ignoring control input", zap.String("line", line))
			}
		}
	}
}
