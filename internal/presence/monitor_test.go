package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

// scriptedProber answers probes from a fixed script, then repeats the last answer
type scriptedProber struct {
	mu     sync.Mutex
	script []bool
	calls  int
}

func (p *scriptedProber) Probe(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	p.calls++
	return p.script[i]
}

func newTestMonitor(prober Prober, starts, ends *atomic.Int32) *Monitor {
	logger, _ := logrustest.NewNullLogger()
	return New(prober, 5*time.Millisecond, Handlers{
		OnGameStart: func() { starts.Add(1) },
		OnGameEnd:   func() { ends.Add(1) },
	}, logger, nil)
}

func TestTick_EdgeTriggered(t *testing.T) {
	var starts, ends atomic.Int32
	prober := &scriptedProber{script: []bool{false, true, true, true, false, false, true, false}}
	m := newTestMonitor(prober, &starts, &ends)

	ctx := context.Background()
	expect := []struct {
		state  State
		starts int32
		ends   int32
	}{
		{Idle, 0, 0},
		{InGame, 1, 0},
		{InGame, 1, 0},
		{InGame, 1, 0},
		{Idle, 1, 1},
		{Idle, 1, 1},
		{InGame, 2, 1},
		{Idle, 2, 2},
	}
	for i, want := range expect {
		m.Tick(ctx)
		assert.Equal(t, want.state, m.State(), "tick %d", i)
		assert.Equal(t, want.starts, starts.Load(), "tick %d", i)
		assert.Equal(t, want.ends, ends.Load(), "tick %d", i)
	}
}

func TestTick_CancelledProbeIgnored(t *testing.T) {
	var starts, ends atomic.Int32
	m := newTestMonitor(&scriptedProber{script: []bool{true}}, &starts, &ends)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Tick(ctx)

	assert.Equal(t, Idle, m.State())
	assert.Zero(t, starts.Load())
}

func TestMonitor_StartStop(t *testing.T) {
	var starts, ends atomic.Int32
	m := newTestMonitor(&scriptedProber{script: []bool{true}}, &starts, &ends)

	m.Start(context.Background())
	m.Start(context.Background())
	assert.Eventually(t, func() bool { return starts.Load() == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), starts.Load(), "start fires once per transition")
	assert.Zero(t, ends.Load())
	assert.Equal(t, InGame, m.State())
}
