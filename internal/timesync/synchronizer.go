package timesync

import (
	"math"

	"ghostreplay/internal/metrics"
	"ghostreplay/internal/session"

	"github.com/sirupsen/logrus"
)

// DefaultStrategies is the evaluation order, most precise first
func DefaultStrategies() []Strategy {
	return []Strategy{
		WallClock{},
		MinionsSpawning{},
		GameStart{},
		EarliestEvent{},
		Default{},
	}
}

// Synchronizer maps game-clock timestamps onto the video clock. It never
// fails: with no usable signal the default offset is returned.
type Synchronizer struct {
	strategies []Strategy
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
}

// New creates a synchronizer over the default strategy chain
func New(log logrus.FieldLogger, m *metrics.Metrics) *Synchronizer {
	return &Synchronizer{
		strategies: DefaultStrategies(),
		log:        log.WithField("component", "timesync"),
		metrics:    m,
	}
}

// ComputeOffset runs the strategies in order; the first applicable one wins
func (s *Synchronizer) ComputeOffset(sess *session.RecordingSession) Result {
	res := ComputeOffset(sess, s.strategies...)
	s.metrics.SyncComputed(res.Strategy, res.IsMidGame)
	s.log.WithFields(logrus.Fields{
		"session":  sess.ID,
		"strategy": res.Strategy,
		"offset":   res.OffsetSeconds,
		"midGame":  res.IsMidGame,
	}).Debug("[Timeline] Calculated game time offset")
	return res
}

// ComputeOffset evaluates strategies (the default chain when none are
// given) against sess. An empty session gets the default offset.
func ComputeOffset(sess *session.RecordingSession, strategies ...Strategy) Result {
	if sess == nil || len(sess.Events) == 0 {
		return Default{}.mustEstimate()
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	for _, st := range strategies {
		if res, ok := st.Estimate(sess); ok {
			return res
		}
	}
	return Default{}.mustEstimate()
}

func (d Default) mustEstimate() Result {
	res, _ := d.Estimate(nil)
	return res
}

// VideoTime converts a game time into video seconds, clamped at zero
func VideoTime(gameTime, offset float64) float64 {
	return math.Max(0, gameTime+offset)
}
