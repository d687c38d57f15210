package shutdown

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlag_SetOnce(t *testing.T) {
	f := New()
	assert.False(t, f.IsSet())

	assert.True(t, f.Set("signal"))
	assert.True(t, f.IsSet())
	assert.False(t, f.Set("stdin"), "second Set must not re-trigger")
	assert.Equal(t, "signal", f.Reason())

	select {
	case <-f.Done():
	default:
		t.Fatal("Done channel should be closed")
	}
}

func TestFlag_HooksRunOnce(t *testing.T) {
	f := New()
	var calls atomic.Int32
	f.OnSet(func() { calls.Add(1) })
	f.OnSet(func() { calls.Add(1) })

	f.Set("test")
	f.Set("again")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFlag_HookAfterSetRunsImmediately(t *testing.T) {
	f := New()
	f.Set("test")

	ran := false
	f.OnSet(func() { ran = true })
	assert.True(t, ran)
}

func TestFlag_ConcurrentSet(t *testing.T) {
	f := New()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Set("race") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
