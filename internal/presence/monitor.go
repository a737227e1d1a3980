package presence

import (
	"context"
	"sync"
	"time"

	"ghostreplay/internal/metrics"
	"ghostreplay/internal/poller"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is the probe period
const DefaultInterval = 2 * time.Second

// State of the monitor
type State int

const (
	Idle State = iota
	InGame
)

func (s State) String() string {
	if s == InGame {
		return "in_game"
	}
	return "idle"
}

// Prober reports whether the game-state API currently answers
type Prober interface {
	Probe(ctx context.Context) bool
}

// Handlers are invoked on the monitor goroutine, once per edge
type Handlers struct {
	OnGameStart func()
	OnGameEnd   func()
}

// Monitor polls the game-state API and turns reachability into
// edge-triggered game start and end notifications. There is no debounce:
// a single failed probe while in game ends the game.
type Monitor struct {
	prober   Prober
	handlers Handlers
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	task     *poller.Task

	mu    sync.Mutex
	state State
}

// New creates an idle monitor
func New(prober Prober, interval time.Duration, handlers Handlers, log logrus.FieldLogger, m *metrics.Metrics) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	mon := &Monitor{
		prober:   prober,
		handlers: handlers,
		log:      log.WithField("component", "presence"),
		metrics:  m,
	}
	mon.task = poller.New(interval, mon.Tick)
	return mon
}

// Start begins probing. Idempotent.
func (m *Monitor) Start(ctx context.Context) {
	if m.task.Running() {
		return
	}
	m.log.WithField("interval", m.task.Interval().String()).Info("[Presence] Watching for League game")
	m.task.Start(ctx)
}

// Stop halts probing and waits for an in-flight probe. Idempotent.
// The current state is kept; no end notification is fired.
func (m *Monitor) Stop() {
	m.task.Stop()
}

// State returns the last observed state
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Tick runs one probe and fires a handler on a state edge
func (m *Monitor) Tick(ctx context.Context) {
	start := time.Now()
	reachable := m.prober.Probe(ctx)
	if ctx.Err() != nil {
		return
	}

	result := metrics.ResultOK
	if !reachable {
		result = metrics.ResultUnreachable
	}
	m.metrics.ObservePoll("presence", result, time.Since(start))

	m.mu.Lock()
	prev := m.state
	if reachable {
		m.state = InGame
	} else {
		m.state = Idle
	}
	next := m.state
	m.mu.Unlock()

	if prev == next {
		return
	}

	m.metrics.SetInGame(next == InGame)
	switch next {
	case InGame:
		m.log.Info("[Presence] Game detected")
		if m.handlers.OnGameStart != nil {
			m.handlers.OnGameStart()
		}
	case Idle:
		m.log.Info("[Presence] Game ended")
		if m.handlers.OnGameEnd != nil {
			m.handlers.OnGameEnd()
		}
	}
}
