package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTask_TicksUntilStopped(t *testing.T) {
	var ticks atomic.Int32
	task := New(10*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	})

	task.Start(context.Background())
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	task.Stop()
	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no ticks after Stop returns")
	assert.False(t, task.Running())
}

func TestTask_Immediate(t *testing.T) {
	fired := make(chan struct{}, 1)
	task := New(time.Hour, func(ctx context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, Immediate())

	task.Start(context.Background())
	defer task.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("immediate tick did not run")
	}
}

func TestTask_StartStopIdempotent(t *testing.T) {
	var ticks atomic.Int32
	task := New(10*time.Millisecond, func(ctx context.Context) { ticks.Add(1) })

	task.Stop()
	task.Start(context.Background())
	task.Start(context.Background())
	assert.True(t, task.Running())

	task.Stop()
	task.Stop()
	assert.False(t, task.Running())

	task.Start(context.Background())
	assert.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, 5*time.Millisecond)
	task.Stop()
}

func TestTask_StopWaitsForInFlightTick(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool
	task := New(time.Millisecond, func(ctx context.Context) {
		select {
		case entered <- struct{}{}:
		default:
			return
		}
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	task.Start(context.Background())
	<-entered
	task.Stop()
	assert.True(t, finished.Load())
}

func TestTask_ParentContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	task := New(5*time.Millisecond, func(ctx context.Context) { ticks.Add(1) })

	task.Start(ctx)
	cancel()
	task.Stop()

	n := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, ticks.Load())
}
