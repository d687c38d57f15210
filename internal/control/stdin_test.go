package control

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/h1d/internal/shutdown"
)

func TestWatcher_ShutdownCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		set   bool
	}{
		{"exact", "shutdown\n", true},
		{"prefix", "shutdown now please\n", true},
		{"after noise", "status\n\nhelp\nshutdown\n", true},
		{"no trailing newline", "shutdown", true},
		{"leading space", " shutdown\n", false},
		{"uppercase", "SHUTDOWN\n", false},
		{"other commands", "stop\nquit\n", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := shutdown.New()
			w := NewWatcher(strings.NewReader(tt.input), flag, zaptest.NewLogger(t))
			require.NoError(t, w.Run(context.Background()))
			assert.Equal(t, tt.set, flag.IsSet())
			if tt.set {
				assert.Equal(t, "stdin: shutdown", flag.Reason())
			}
		})
	}
}

func TestWatcher_StopsWhenFlagSetElsewhere(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	flag := shutdown.New()
	done := make(chan error, 1)
	go func() { done <- NewWatcher(pr, flag, nil).Run(context.Background()) }()

	flag.Set("signal")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not return")
	}
	assert.Equal(t, "signal", flag.Reason())
}

func TestWatcher_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	flag := shutdown.New()
	done := make(chan error, 1)
	go func() { done <- NewWatcher(pr, flag, nil).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not return")
	}
	assert.False(t, flag.IsSet())
}

func TestWatcher_ReadError(t *testing.T) {
	pr, pw := io.Pipe()
	boom := errors.New("tty gone")
	pw.CloseWithError(boom)

	flag := shutdown.New()
	err := NewWatcher(pr, flag, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, flag.IsSet())
}
