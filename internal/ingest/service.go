package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ghostreplay/internal/liveclient"
	"ghostreplay/internal/metrics"
	"ghostreplay/internal/poller"
	"ghostreplay/internal/roster"
	"ghostreplay/internal/session"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is the event poll period while recording
const DefaultInterval = time.Second

// ErrAlreadyRecording is returned when a second recording is started
var ErrAlreadyRecording = errors.New("already recording")

// EventSource is the subset of the live client used while recording
type EventSource interface {
	FetchEvents(ctx context.Context) ([]session.GameEvent, error)
	FetchRoster(ctx context.Context) ([]roster.Entry, error)
	FetchActivePlayerName(ctx context.Context) (string, bool)
}

// Saver persists a finalized session
type Saver interface {
	Save(ctx context.Context, s *session.RecordingSession) error
}

// Hooks observe the live session. They run outside the service lock.
type Hooks struct {
	OnEvent     func(sessionID string, event session.GameEvent)
	OnFinalized func(s *session.RecordingSession, err error)
}

// Status is a point-in-time view of the service
type Status struct {
	Recording        bool      `json:"recording"`
	SessionID        string    `json:"sessionId,omitempty"`
	StartedAt        time.Time `json:"startedAt,omitempty"`
	ActivePlayerName string    `json:"activePlayerName,omitempty"`
	EventCount       int       `json:"eventCount"`
}

// Service polls the event feed while a recording is active, dedupes by
// event id, enriches kills from the roster and saves the session on stop.
type Service struct {
	source   EventSource
	saver    Saver
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	hooks    Hooks
	interval time.Duration
	now      func() time.Time
	roster   *roster.Cache

	initialPoll bool

	mu   sync.Mutex
	live *session.RecordingSession
	seen map[int]struct{}
	task *poller.Task
}

// Option configures a Service
type Option func(*Service)

// WithInterval sets the poll period
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithoutInitialPoll delays the first poll by one interval. Tests use it to
// drive PollOnce by hand.
func WithoutInitialPoll() Option {
	return func(s *Service) {
		s.initialPoll = false
	}
}

// WithRosterTTL sets how long a fetched roster is reused
func WithRosterTTL(d time.Duration) Option {
	return func(s *Service) {
		s.roster = roster.NewCache(d)
	}
}

// WithClock overrides the wall clock (used by tests)
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithHooks installs session observers
func WithHooks(h Hooks) Option {
	return func(s *Service) {
		s.hooks = h
	}
}

// WithMetrics records poll and ingestion metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates an idle ingestion service
func NewService(source EventSource, saver Saver, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		source:   source,
		saver:    saver,
		log:      log.WithField("component", "ingest"),
		interval: DefaultInterval,
		now:      time.Now,
		roster:   roster.NewCache(roster.DefaultTTL),

		initialPoll: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRecording begins a new live session. The first poll runs right away
// so a mid-game join captures the historical dump within the live-capture
// threshold; the active player name is resolved alongside it.
func (s *Service) StartRecording(ctx context.Context, sessionID string) error {
	if !session.ValidID(sessionID) {
		return fmt.Errorf("%w: %q", session.ErrInvalidSession, sessionID)
	}

	s.mu.Lock()
	if s.live != nil {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	sess := session.New(sessionID, s.now())
	s.live = sess
	s.seen = make(map[int]struct{})
	s.roster.Reset()

	var opts []poller.Option
	if s.initialPoll {
		opts = append(opts, poller.Immediate())
	}
	task := poller.New(s.interval, func(ctx context.Context) {
		s.poll(ctx, sess)
	}, opts...)
	s.task = task
	task.Start(context.WithoutCancel(ctx))
	s.mu.Unlock()

	s.metrics.SetRecording(true)

	name, ok := s.source.FetchActivePlayerName(ctx)

	s.mu.Lock()
	if ok && s.live == sess {
		sess.Metadata.ActivePlayerName = name
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session": sessionID,
		"player":  name,
	}).Info("[Ingest] Started recording")
	return nil
}

// StopRecording halts polling and persists the session. No appends happen
// after it returns. Stopping while idle is a successful no-op returning nil.
func (s *Service) StopRecording(ctx context.Context) (*session.RecordingSession, error) {
	s.mu.Lock()
	sess, task := s.live, s.task
	s.live, s.task, s.seen = nil, nil, nil
	s.mu.Unlock()

	if sess == nil {
		return nil, nil
	}
	if task != nil {
		task.Stop()
	}
	s.metrics.SetRecording(false)

	sess.Finalize(s.now())
	err := s.saver.Save(ctx, sess)
	s.metrics.SessionSaved(err)

	entry := s.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"events":  len(sess.Events),
	})
	if err != nil {
		entry.WithError(err).Error("[Ingest] Failed to save recording")
	} else {
		entry.Info("[Ingest] Saved recording")
	}

	if s.hooks.OnFinalized != nil {
		s.hooks.OnFinalized(sess, err)
	}
	if err != nil {
		return sess, fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return sess, nil
}

// PollOnce runs one poll against the live session, if any
func (s *Service) PollOnce(ctx context.Context) {
	s.mu.Lock()
	sess := s.live
	s.mu.Unlock()
	if sess != nil {
		s.poll(ctx, sess)
	}
}

// Recording reports whether a session is live
func (s *Service) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live != nil
}

// Status returns a snapshot of the live session
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live == nil {
		return Status{}
	}
	return Status{
		Recording:        true,
		SessionID:        s.live.ID,
		StartedAt:        time.UnixMilli(s.live.Metadata.RecordingStartTime).UTC(),
		ActivePlayerName: s.live.Metadata.ActivePlayerName,
		EventCount:       len(s.live.Events),
	}
}

// Snapshot returns a copy of the live session, or nil when idle
func (s *Service) Snapshot() *session.RecordingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		return nil
	}
	return s.live.Clone()
}

// poll refreshes the roster when stale, fetches the feed and appends unseen
// events. Results are discarded if sess stopped being live meanwhile.
func (s *Service) poll(ctx context.Context, sess *session.RecordingSession) {
	if s.roster.Stale(s.now()) {
		entries, err := s.source.FetchRoster(ctx)
		if err != nil {
			s.log.WithError(err).Debug("[Ingest] Roster refresh failed")
		} else if len(entries) > 0 {
			s.roster.Set(entries, s.now())
		}
	}

	start := time.Now()
	events, err := s.source.FetchEvents(ctx)
	if err != nil {
		result := metrics.ResultError
		if errors.Is(err, liveclient.ErrUnreachable) {
			result = metrics.ResultUnreachable
		}
		s.metrics.ObservePoll("ingest", result, time.Since(start))
		s.log.WithError(err).Debug("[Ingest] Polling error (normal if not in game)")
		return
	}
	s.metrics.ObservePoll("ingest", metrics.ResultOK, time.Since(start))

	entries := s.roster.Entries()

	s.mu.Lock()
	if s.live != sess {
		s.mu.Unlock()
		return
	}
	capturedAt := s.now().UnixMilli()
	var added []session.GameEvent
	for _, ev := range events {
		if _, dup := s.seen[ev.EventID]; dup {
			continue
		}
		s.seen[ev.EventID] = struct{}{}

		ev = roster.Enrich(ev, entries)
		ev.CapturedAt = capturedAt
		sess.Events = append(sess.Events, ev)
		added = append(added, ev)
	}
	s.mu.Unlock()

	if len(added) == 0 {
		return
	}
	s.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"new":     len(added),
	}).Debug("[Ingest] Found new events")

	for _, ev := range added {
		s.metrics.EventIngested(ev.EventName)
		if s.hooks.OnEvent != nil {
			s.hooks.OnEvent(sess.ID, ev)
		}
	}
}
