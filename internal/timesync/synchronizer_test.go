package timesync

import (
	"testing"
	"time"

	"ghostreplay/internal/session"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

var t0 = time.UnixMilli(1754221407085)

func ms(d time.Duration) int64 {
	return t0.Add(d).UnixMilli()
}

func legacy(events ...session.GameEvent) *session.RecordingSession {
	return &session.RecordingSession{ID: "legacy", Events: events, Legacy: true}
}

func recorded(events ...session.GameEvent) *session.RecordingSession {
	s := session.New("live", t0)
	s.Events = events
	return s
}

func ev(name string, t float64) session.GameEvent {
	return session.GameEvent{EventName: name, EventTime: t}
}

func captured(name string, t float64, at time.Duration) session.GameEvent {
	return session.GameEvent{EventName: name, EventTime: t, CapturedAt: ms(at)}
}

func TestWallClock_FullGame(t *testing.T) {
	s := recorded(captured(session.EventGameStart, 10.0, 12*time.Second))

	res := ComputeOffset(s)

	assert.Equal(t, StrategyWallClock, res.Strategy)
	assert.InDelta(t, 2.0, res.OffsetSeconds, 1e-9)
	assert.False(t, res.IsMidGame)
}

func TestWallClock_FullGameClampedAtZero(t *testing.T) {
	s := recorded(captured(session.EventGameStart, 5.0, 2*time.Second))
	res := ComputeOffset(s)
	assert.Equal(t, StrategyWallClock, res.Strategy)
	assert.Zero(t, res.OffsetSeconds)
}

func TestWallClock_MidGame(t *testing.T) {
	s := recorded(
		// historical dump
		captured(session.EventGameStart, 0.02, 200*time.Millisecond),
		captured(session.EventChampionKill, 400, 200*time.Millisecond),
		// first event seen live
		captured(session.EventChampionKill, 1058.3, 5*time.Second),
		captured(session.EventTurretKilled, 1100, 47*time.Second),
	)

	res := ComputeOffset(s)

	assert.Equal(t, StrategyWallClock, res.Strategy)
	assert.True(t, res.IsMidGame)
	assert.InDelta(t, -1058.3, res.OffsetSeconds, 1e-9)
	assert.InDelta(t, 0, VideoTime(1058.3, res.OffsetSeconds), 1e-9)
}

func TestWallClock_OnlyHistorical(t *testing.T) {
	s := recorded(
		captured(session.EventGameStart, 0.02, 100*time.Millisecond),
		captured(session.EventChampionKill, 900, 999*time.Millisecond),
	)

	res := ComputeOffset(s)

	assert.Equal(t, StrategyWallClock, res.Strategy)
	assert.True(t, res.IsMidGame)
	assert.Zero(t, res.OffsetSeconds)
}

func TestWallClock_EarliestByCaptureTime(t *testing.T) {
	// arrival order differs from capture order
	s := recorded(
		captured(session.EventChampionKill, 20, 30*time.Second),
		captured(session.EventGameStart, 0.5, 3*time.Second),
	)

	res := ComputeOffset(s)
	assert.InDelta(t, 2.5, res.OffsetSeconds, 1e-9)
}

func TestWallClock_UnreliableFallsThrough(t *testing.T) {
	s := recorded(
		captured(session.EventGameStart, 0.01, 400*time.Second),
	)

	res := ComputeOffset(s)

	// 400s of loading is not believable; GameStart near zero gives 30
	assert.Equal(t, StrategyGameStart, res.Strategy)
	assert.Equal(t, 30.0, res.OffsetSeconds)
}

func TestWallClock_SkippedWithoutStamps(t *testing.T) {
	_, ok := WallClock{}.Estimate(legacy(captured(session.EventGameStart, 10, 12*time.Second)))
	assert.False(t, ok, "legacy sessions have no recording start")

	_, ok = WallClock{}.Estimate(recorded(ev(session.EventGameStart, 10)))
	assert.False(t, ok, "no captured events")
}

func TestMinionsSpawning(t *testing.T) {
	tests := []struct {
		name   string
		events []session.GameEvent
		want   float64
	}{
		{
			name:   "quick start with early first blood",
			events: []session.GameEvent{ev(session.EventGameStart, 0.02), ev(session.EventMinionsSpawning, 65), ev(session.EventFirstBlood, 110)},
			want:   20,
		},
		{
			name:   "quick start without early action",
			events: []session.GameEvent{ev(session.EventGameStart, 0.02), ev(session.EventMinionsSpawning, 65), ev(session.EventFirstBlood, 300)},
			want:   35,
		},
		{
			name:   "very early first blood",
			events: []session.GameEvent{ev(session.EventGameStart, 2), ev(session.EventMinionsSpawning, 65), ev(session.EventFirstBlood, 90)},
			want:   25,
		},
		{
			name: "three early kills",
			events: []session.GameEvent{
				ev(session.EventMinionsSpawning, 65),
				ev(session.EventChampionKill, 120), ev(session.EventChampionKill, 150), ev(session.EventChampionKill, 199),
			},
			want: 45,
		},
		{
			name:   "no early kills",
			events: []session.GameEvent{ev(session.EventMinionsSpawning, 65), ev(session.EventChampionKill, 200)},
			want:   90,
		},
		{
			name:   "some early kills",
			events: []session.GameEvent{ev(session.EventMinionsSpawning, 65), ev(session.EventChampionKill, 150)},
			want:   75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeOffset(legacy(tt.events...))
			assert.Equal(t, StrategyMinionsSpawning, res.Strategy)
			assert.Equal(t, tt.want, res.OffsetSeconds)
			assert.False(t, res.IsMidGame)
		})
	}
}

func TestMinionsSpawning_RequiresPositiveTime(t *testing.T) {
	_, ok := MinionsSpawning{}.Estimate(legacy(ev(session.EventMinionsSpawning, 0)))
	assert.False(t, ok)
}

func TestGameStart(t *testing.T) {
	res := ComputeOffset(legacy(ev(session.EventGameStart, 0.1)))
	assert.Equal(t, StrategyGameStart, res.Strategy)
	assert.Equal(t, 30.0, res.OffsetSeconds)

	res = ComputeOffset(legacy(ev(session.EventGameStart, 4)))
	assert.Equal(t, 75.0, res.OffsetSeconds)

	res = ComputeOffset(legacy(ev(session.EventGameStart, 640)))
	assert.True(t, res.IsMidGame)
	assert.Equal(t, -640.0, res.OffsetSeconds)
}

func TestEarliestEvent(t *testing.T) {
	tests := []struct {
		events []session.GameEvent
		want   float64
	}{
		{[]session.GameEvent{ev(session.EventTurretKilled, 119)}, 45},
		{[]session.GameEvent{ev(session.EventDragonKill, 239), ev(session.EventChampionKill, 280)}, 75},
		{[]session.GameEvent{ev(session.EventChampionKill, 250)}, 105},
	}
	for _, tt := range tests {
		res := ComputeOffset(legacy(tt.events...))
		assert.Equal(t, StrategyEarliestEvent, res.Strategy)
		assert.Equal(t, tt.want, res.OffsetSeconds)
	}
}

func TestEarliestEvent_IgnoresOutOfRange(t *testing.T) {
	res := ComputeOffset(legacy(ev(session.EventChampionKill, 0), ev(session.EventChampionKill, 301), ev(session.EventAce, 10)))
	assert.Equal(t, StrategyDefault, res.Strategy)
	assert.Equal(t, DefaultOffset, res.OffsetSeconds)
}

func TestDefault_Empty(t *testing.T) {
	res := ComputeOffset(legacy())
	assert.Equal(t, DefaultOffset, res.OffsetSeconds)
	assert.False(t, res.IsMidGame)

	res = ComputeOffset(nil)
	assert.Equal(t, DefaultOffset, res.OffsetSeconds)
}

func TestVideoTime(t *testing.T) {
	assert.InDelta(t, 35.4, VideoTime(10.4, 25), 1e-9)
	assert.Equal(t, 0.0, VideoTime(100, -1058.3))
}

func TestSynchronizer_UsesChain(t *testing.T) {
	logger, _ := logrustest.NewNullLogger()
	syncer := New(logger, nil)

	res := syncer.ComputeOffset(recorded(captured(session.EventGameStart, 10.0, 12*time.Second)))
	assert.InDelta(t, 2.0, res.OffsetSeconds, 1e-9)
}
