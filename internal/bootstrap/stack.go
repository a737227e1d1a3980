package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ghostreplay/internal/archive"
	"ghostreplay/internal/catalog"
	"ghostreplay/internal/config"
	"ghostreplay/internal/feed"
	"ghostreplay/internal/ingest"
	"ghostreplay/internal/liveclient"
	"ghostreplay/internal/metrics"
	"ghostreplay/internal/notify"
	"ghostreplay/internal/presence"
	"ghostreplay/internal/recorder"
	"ghostreplay/internal/review"
	"ghostreplay/internal/session"
	"ghostreplay/internal/timesync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Listeners observe the stack from the outside (the desktop shell)
type Listeners struct {
	OnEvent    func(sessionID string, ev session.GameEvent)
	OnPresence func(state presence.State)
	OnSaved    func(s *session.RecordingSession, err error)
}

// Status is the live view served at /api/status and sent to new feed
// subscribers
type Status struct {
	Presence    string        `json:"presence"`
	AutoRecord  bool          `json:"autoRecord"`
	PendingStop bool          `json:"pendingStop"`
	Ingest      ingest.Status `json:"ingest"`
	FeedClients int           `json:"feedClients"`
	Archive     bool          `json:"archive"`
	Notify      bool          `json:"notifyConnected"`
}

// Stack is the fully wired recorder
type Stack struct {
	Config    config.Config
	Log       logrus.FieldLogger
	Metrics   *metrics.Metrics
	Client    *liveclient.Client
	Store     *session.FileStore
	Catalog   *catalog.Catalog
	Archive   *archive.Archive
	Publisher notify.Publisher
	Feed      *feed.Hub
	Ingest    *ingest.Service
	Recorder  *recorder.AutoRecorder
	Presence  *presence.Monitor
	Review    *review.Service
	API       *review.API

	listeners Listeners

	mu     sync.Mutex
	server *http.Server
}

// New wires every component from cfg. The optional archive and NATS
// connections are skipped with a warning when they cannot be reached.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger, listeners Listeners) (*Stack, error) {
	s := &Stack{
		Config:    cfg,
		Log:       log,
		Metrics:   metrics.New("ghostreplay"),
		listeners: listeners,
	}

	s.Client = liveclient.New(
		liveclient.WithBaseURL(cfg.LiveClientURL),
		liveclient.WithTimeout(cfg.LiveClientTimeout),
		liveclient.WithLogger(log),
	)
	log.WithField("url", s.Client.BaseURL()).Info("[Bootstrap] Watching the live client API")

	store, err := session.NewFileStore(cfg.RecordingsDir)
	if err != nil {
		return nil, err
	}
	s.Store = store

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	s.Catalog = cat

	s.Archive = s.connectArchive(ctx)
	s.Publisher = s.connectPublisher()

	s.Feed = feed.NewHub(func() any { return s.Status() }, log, s.Metrics)

	var archiver recorder.Archiver
	if s.Archive != nil {
		archiver = s.Archive
	}
	finalizer := recorder.NewFinalizer(s.Catalog, archiver, s.Publisher, log)

	s.Ingest = ingest.NewService(s.Client, s.Store, log,
		ingest.WithInterval(cfg.IngestInterval),
		ingest.WithRosterTTL(cfg.RosterTTL),
		ingest.WithMetrics(s.Metrics),
		ingest.WithHooks(ingest.Hooks{
			OnEvent:     s.onEvent,
			OnFinalized: func(sess *session.RecordingSession, err error) { s.onFinalized(finalizer, sess, err) },
		}),
	)

	s.Recorder = recorder.NewAutoRecorder(s.Ingest, log,
		recorder.WithStopDelay(cfg.StopDelay),
		recorder.WithCapture(recorder.NoopCapture{Log: log}),
		recorder.WithPublisher(s.Publisher),
		recorder.WithEnabled(cfg.AutoRecord),
	)

	handlers := s.Recorder.Handlers(ctx)
	s.Presence = presence.New(s.Client, cfg.PresenceInterval, presence.Handlers{
		OnGameStart: func() {
			s.onPresence(presence.InGame)
			handlers.OnGameStart()
		},
		OnGameEnd: func() {
			s.onPresence(presence.Idle)
			handlers.OnGameEnd()
		},
	}, log, s.Metrics)

	var reviewOpts []review.ServiceOption
	if s.Archive != nil {
		reviewOpts = append(reviewOpts, review.WithArchive(s.Archive))
	}
	s.Review = review.NewService(s.Store, s.Catalog, timesync.New(log, s.Metrics), log, reviewOpts...)
	s.API = review.NewAPI(s.Review, log,
		review.WithController(s.Recorder),
		review.WithStatus(func() any { return s.Status() }),
		review.WithLiveFeed(s.Feed),
		review.WithAPIMetrics(s.Metrics),
	)

	return s, nil
}

func (s *Stack) connectArchive(ctx context.Context) *archive.Archive {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	a, err := archive.Connect(connectCtx, s.Config.DatabaseURL)
	switch {
	case errors.Is(err, archive.ErrDisabled):
		return nil
	case err != nil:
		s.Log.WithError(err).Warn("[Archive] PostgreSQL unavailable, archiving disabled")
		return nil
	}
	s.Log.Info("[Archive] Connected to PostgreSQL")
	return a
}

func (s *Stack) connectPublisher() notify.Publisher {
	if s.Config.NATSURL == "" {
		return notify.Noop{}
	}
	p, err := notify.ConnectNATS(s.Config.NATSURL, s.Log)
	if err != nil {
		s.Log.WithError(err).Warn("[Notify] NATS unavailable, notifications disabled")
		return notify.Noop{}
	}
	return p
}

func (s *Stack) onEvent(sessionID string, ev session.GameEvent) {
	s.Feed.PublishEvent(sessionID, ev)
	if s.listeners.OnEvent != nil {
		s.listeners.OnEvent(sessionID, ev)
	}
}

func (s *Stack) onFinalized(f *recorder.Finalizer, sess *session.RecordingSession, err error) {
	f.Finalized(sess, err)
	s.Feed.Broadcast(feed.Message{Type: feed.TypeRecording, SessionID: sess.ID, Data: s.Status()})
	if s.listeners.OnSaved != nil {
		s.listeners.OnSaved(sess, err)
	}
}

func (s *Stack) onPresence(state presence.State) {
	s.Feed.Broadcast(feed.Message{Type: feed.TypePresence, Data: state.String()})
	if s.listeners.OnPresence != nil {
		s.listeners.OnPresence(state)
	}
}

// Status returns the live view of the recorder
func (s *Stack) Status() Status {
	return Status{
		Presence:    s.Presence.State().String(),
		AutoRecord:  s.Recorder.Enabled(),
		PendingStop: s.Recorder.Pending(),
		Ingest:      s.Ingest.Status(),
		FeedClients: s.Feed.Subscribers(),
		Archive:     s.Archive != nil,
		Notify:      s.notifyConnected(),
	}
}

func (s *Stack) notifyConnected() bool {
	nc, ok := s.Publisher.(*notify.NATSPublisher)
	return ok && nc.IsConnected()
}

// Start begins watching for games
func (s *Stack) Start(ctx context.Context) {
	s.Presence.Start(ctx)
}

// Serve runs the review HTTP server until ctx is done or Close is called
func (s *Stack) Serve(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              s.Config.ReviewAddr,
		Handler:           s.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.Log.WithField("addr", s.Config.ReviewAddr).Info("[Review] HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("review server failed: %w", err)
	}
	return nil
}

// Close stops presence, persists an active recording and releases every
// connection. Errors are joined.
func (s *Stack) Close(ctx context.Context) error {
	s.Presence.Stop()

	var errs []error
	if err := s.Recorder.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop recording: %w", err))
	}

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("review server: %w", err))
		}
	}

	s.Feed.Close()
	if err := s.Publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("notify: %w", err))
	}
	if s.Archive != nil {
		s.Archive.Close()
	}
	if err := s.Catalog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("catalog: %w", err))
	}
	return errors.Join(errs...)
}
