package timesync

import (
	"math"

	"ghostreplay/internal/session"
)

const (
	// LiveCaptureThreshold separates events observed live from the
	// historical dump the API returns when recording starts mid-game
	LiveCaptureThreshold int64 = 1000 // ms after recording start

	// FullGameCutoff is the game time under which the first live event
	// means the recording covered the start of the game
	FullGameCutoff = 30.0

	// MaxWallClockOffset bounds a believable loading-screen offset
	MaxWallClockOffset = 300.0

	// DefaultOffset is the loading estimate used when nothing better is known
	DefaultOffset = 75.0

	gameStartEpsilon = 0.5
	earlyKillCutoff  = 200.0
	earlyEventCutoff = 300.0
)

// Strategy names
const (
	StrategyWallClock       = "wall_clock"
	StrategyMinionsSpawning = "minions_spawning"
	StrategyGameStart       = "game_start"
	StrategyEarliestEvent   = "earliest_event"
	StrategyDefault         = "default"
)

// Result is the alignment between the game clock and the video clock
type Result struct {
	OffsetSeconds float64 `json:"offsetSeconds"`
	IsMidGame     bool    `json:"isMidGame"`
	Strategy      string  `json:"strategy"`
}

// Strategy estimates the offset from one kind of signal. ok is false when
// the signal is missing or unreliable and the next strategy should run.
type Strategy interface {
	Name() string
	Estimate(s *session.RecordingSession) (Result, bool)
}

// WallClock uses the recording start and local capture stamps
type WallClock struct{}

func (WallClock) Name() string { return StrategyWallClock }

func (w WallClock) Estimate(s *session.RecordingSession) (Result, bool) {
	if !s.HasRecordingStart() {
		return Result{}, false
	}
	start := s.Metadata.RecordingStartTime

	var (
		first   *session.GameEvent
		stamped bool
	)
	for i := range s.Events {
		e := &s.Events[i]
		if !e.HasCapturedAt() {
			continue
		}
		stamped = true
		if e.CapturedAt-start < LiveCaptureThreshold {
			continue
		}
		if first == nil || e.CapturedAt < first.CapturedAt ||
			(e.CapturedAt == first.CapturedAt && e.EventTime < first.EventTime) {
			first = e
		}
	}
	if !stamped {
		return Result{}, false
	}
	if first == nil {
		// everything arrived in the initial dump
		return w.result(0, true), true
	}

	if first.EventTime >= FullGameCutoff {
		return w.result(-first.EventTime, true), true
	}

	raw := float64(first.CapturedAt-start)/1000 - first.EventTime
	if math.Abs(raw) > MaxWallClockOffset {
		return Result{}, false
	}
	return w.result(math.Max(0, raw), false), true
}

func (w WallClock) result(offset float64, midGame bool) Result {
	return Result{OffsetSeconds: offset, IsMidGame: midGame, Strategy: w.Name()}
}

// MinionsSpawning estimates loading time from early-game activity once the
// minion wave landmark is present
type MinionsSpawning struct{}

func (MinionsSpawning) Name() string { return StrategyMinionsSpawning }

func (m MinionsSpawning) Estimate(s *session.RecordingSession) (Result, bool) {
	minions, ok := find(s.Events, session.EventMinionsSpawning)
	if !ok || minions.EventTime <= 0 {
		return Result{}, false
	}

	firstBlood, hasFirstBlood := find(s.Events, session.EventFirstBlood)
	gameStart, hasGameStart := find(s.Events, session.EventGameStart)

	var offset float64
	if hasGameStart && math.Abs(gameStart.EventTime) < gameStartEpsilon {
		if hasFirstBlood && firstBlood.EventTime < 120 {
			offset = 20
		} else {
			offset = 35
		}
	} else {
		earlyKills := 0
		for _, e := range s.Events {
			if e.IsKill() && e.EventTime < earlyKillCutoff {
				earlyKills++
			}
		}
		switch {
		case hasFirstBlood && firstBlood.EventTime < 100:
			offset = 25
		case earlyKills >= 3:
			offset = 45
		case earlyKills == 0:
			offset = 90
		default:
			offset = DefaultOffset
		}
	}
	return Result{OffsetSeconds: offset, Strategy: m.Name()}, true
}

// GameStart uses the GameStart landmark alone
type GameStart struct{}

func (GameStart) Name() string { return StrategyGameStart }

func (g GameStart) Estimate(s *session.RecordingSession) (Result, bool) {
	start, ok := find(s.Events, session.EventGameStart)
	if !ok {
		return Result{}, false
	}
	switch t := start.EventTime; {
	case t > FullGameCutoff:
		return Result{OffsetSeconds: -t, IsMidGame: true, Strategy: g.Name()}, true
	case math.Abs(t) < gameStartEpsilon:
		return Result{OffsetSeconds: 30, Strategy: g.Name()}, true
	default:
		return Result{OffsetSeconds: DefaultOffset, Strategy: g.Name()}, true
	}
}

// EarliestEvent buckets the time of the first kill or objective
type EarliestEvent struct{}

func (EarliestEvent) Name() string { return StrategyEarliestEvent }

var significantEvents = map[string]bool{
	session.EventChampionKill: true,
	session.EventFirstBlood:   true,
	session.EventTurretKilled: true,
	session.EventInhibKilled:  true,
	session.EventDragonKill:   true,
	session.EventHeraldKill:   true,
	session.EventBaronKill:    true,
	session.EventHordeKill:    true,
	session.EventAtakhanKill:  true,
}

func (e EarliestEvent) Estimate(s *session.RecordingSession) (Result, bool) {
	earliest := math.Inf(1)
	for _, ev := range s.Events {
		if !significantEvents[ev.EventName] {
			continue
		}
		if ev.EventTime > 0 && ev.EventTime < earlyEventCutoff && ev.EventTime < earliest {
			earliest = ev.EventTime
		}
	}
	if math.IsInf(earliest, 1) {
		return Result{}, false
	}

	var offset float64
	switch {
	case earliest < 120:
		offset = 45
	case earliest < 240:
		offset = 75
	default:
		offset = 105
	}
	return Result{OffsetSeconds: offset, Strategy: e.Name()}, true
}

// Default always applies
type Default struct{}

func (Default) Name() string { return StrategyDefault }

func (d Default) Estimate(*session.RecordingSession) (Result, bool) {
	return Result{OffsetSeconds: DefaultOffset, Strategy: d.Name()}, true
}

// find returns the first event named name in arrival order
func find(events []session.GameEvent, name string) (session.GameEvent, bool) {
	for _, e := range events {
		if e.EventName == name {
			return e, true
		}
	}
	return session.GameEvent{}, false
}
