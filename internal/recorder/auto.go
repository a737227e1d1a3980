package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ghostreplay/internal/ingest"
	"ghostreplay/internal/notify"
	"ghostreplay/internal/presence"
	"ghostreplay/internal/session"

	"github.com/sirupsen/logrus"
)

// DefaultStopDelay is how long ingestion keeps running after the game ends
// so the final events make it into the session
const DefaultStopDelay = 3 * time.Second

// Ingestor is the recording side of the ingestion service
type Ingestor interface {
	StartRecording(ctx context.Context, sessionID string) error
	StopRecording(ctx context.Context) (*session.RecordingSession, error)
	Recording() bool
}

// AutoRecorder turns presence edges into recordings. A game start begins
// capture and ingestion under a fresh session id; a game end stops both
// after StopDelay. A start that arrives while a stop is pending stops the
// previous session immediately before starting the next.
type AutoRecorder struct {
	ingest    Ingestor
	capture   CaptureController
	publisher notify.Publisher
	log       logrus.FieldLogger
	stopDelay time.Duration
	now       func() time.Time

	// op serializes start and stop sequences
	op sync.Mutex

	mu      sync.Mutex
	enabled bool
	pending *time.Timer
	gen     uint64
}

// Option configures an AutoRecorder
type Option func(*AutoRecorder)

// WithStopDelay overrides DefaultStopDelay. Zero stops synchronously.
func WithStopDelay(d time.Duration) Option {
	return func(a *AutoRecorder) {
		if d >= 0 {
			a.stopDelay = d
		}
	}
}

// WithCapture installs a capture controller
func WithCapture(c CaptureController) Option {
	return func(a *AutoRecorder) {
		if c != nil {
			a.capture = c
		}
	}
}

// WithPublisher installs a lifecycle publisher
func WithPublisher(p notify.Publisher) Option {
	return func(a *AutoRecorder) {
		if p != nil {
			a.publisher = p
		}
	}
}

// WithClock overrides the clock used for session ids
func WithClock(now func() time.Time) Option {
	return func(a *AutoRecorder) {
		a.now = now
	}
}

// WithEnabled sets the initial auto-record toggle
func WithEnabled(enabled bool) Option {
	return func(a *AutoRecorder) {
		a.enabled = enabled
	}
}

// NewAutoRecorder creates an enabled recorder
func NewAutoRecorder(in Ingestor, log logrus.FieldLogger, opts ...Option) *AutoRecorder {
	a := &AutoRecorder{
		ingest:    in,
		capture:   NoopCapture{},
		publisher: notify.Noop{},
		log:       log.WithField("component", "recorder"),
		stopDelay: DefaultStopDelay,
		now:       time.Now,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handlers binds the recorder to presence notifications
func (a *AutoRecorder) Handlers(ctx context.Context) presence.Handlers {
	return presence.Handlers{
		OnGameStart: func() { a.GameStarted(ctx) },
		OnGameEnd:   func() { a.GameEnded(ctx) },
	}
}

// Enabled reports whether presence edges start recordings
func (a *AutoRecorder) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// SetEnabled toggles auto-recording. An active recording is not affected.
func (a *AutoRecorder) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
	a.log.WithField("enabled", enabled).Info("[AutoRecord] Toggled")
}

// GameStarted handles a presence start edge
func (a *AutoRecorder) GameStarted(ctx context.Context) {
	a.op.Lock()
	defer a.op.Unlock()

	hadPending := a.cancelPending()
	if hadPending {
		a.log.Info("[AutoRecord] New game before delayed stop, stopping previous recording now")
		a.stop(ctx)
	}

	a.publish(ctx, notify.SubjectGameStarted, nil)

	if !a.Enabled() {
		return
	}
	if _, err := a.start(ctx); err != nil {
		a.log.WithError(err).Warn("[AutoRecord] Could not start recording")
	}
}

// GameEnded handles a presence end edge
func (a *AutoRecorder) GameEnded(ctx context.Context) {
	a.publish(ctx, notify.SubjectGameEnded, nil)

	if !a.ingest.Recording() {
		return
	}

	if a.stopDelay == 0 {
		a.op.Lock()
		defer a.op.Unlock()
		a.cancelPending()
		a.stop(ctx)
		return
	}

	stopCtx := context.WithoutCancel(ctx)
	a.mu.Lock()
	if a.pending != nil {
		a.pending.Stop()
	}
	a.gen++
	gen := a.gen
	a.pending = time.AfterFunc(a.stopDelay, func() { a.delayedStop(stopCtx, gen) })
	a.mu.Unlock()

	a.log.WithField("delay", a.stopDelay.String()).Info("[AutoRecord] Game ended, stopping after delay")
}

// StartRecording starts a recording outside of presence control
func (a *AutoRecorder) StartRecording(ctx context.Context) (string, error) {
	a.op.Lock()
	defer a.op.Unlock()
	if a.cancelPending() {
		a.stop(ctx)
	}
	return a.start(ctx)
}

// StopRecording stops the active recording right away, cancelling any
// pending delayed stop. Returns nil when nothing was recording.
func (a *AutoRecorder) StopRecording(ctx context.Context) (*session.RecordingSession, error) {
	a.op.Lock()
	defer a.op.Unlock()
	a.cancelPending()
	return a.stop(ctx)
}

// Close flushes a pending stop and stops any active recording
func (a *AutoRecorder) Close(ctx context.Context) error {
	_, err := a.StopRecording(ctx)
	return err
}

// Pending reports whether a delayed stop is scheduled
func (a *AutoRecorder) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

func (a *AutoRecorder) delayedStop(ctx context.Context, gen uint64) {
	a.op.Lock()
	defer a.op.Unlock()

	a.mu.Lock()
	if a.gen != gen || a.pending == nil {
		a.mu.Unlock()
		return
	}
	a.pending = nil
	a.mu.Unlock()

	a.stop(ctx)
}

// cancelPending drops a scheduled stop and reports whether one existed.
// A timer that already fired is invalidated through the generation.
func (a *AutoRecorder) cancelPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	if a.pending == nil {
		return false
	}
	a.pending.Stop()
	a.pending = nil
	return true
}

// start requires a.op
func (a *AutoRecorder) start(ctx context.Context) (string, error) {
	if a.ingest.Recording() {
		return "", ingest.ErrAlreadyRecording
	}
	id := session.NewID(a.now())

	if err := a.capture.StartCapture(ctx, id); err != nil {
		return "", fmt.Errorf("failed to start capture: %w", err)
	}
	if err := a.ingest.StartRecording(ctx, id); err != nil {
		// the capture belongs to id, which never started
		if stopErr := a.capture.StopCapture(ctx); stopErr != nil {
			a.log.WithError(stopErr).Warn("[AutoRecord] Failed to stop capture")
		}
		return "", err
	}

	a.log.WithField("session", id).Info("[AutoRecord] Recording started")
	a.publish(ctx, notify.SubjectRecordingStarted, map[string]string{"sessionId": id})
	return id, nil
}

// stop requires a.op
func (a *AutoRecorder) stop(ctx context.Context) (*session.RecordingSession, error) {
	sess, err := a.ingest.StopRecording(ctx)
	if sess == nil && err == nil {
		return nil, nil
	}
	if capErr := a.capture.StopCapture(ctx); capErr != nil {
		a.log.WithError(capErr).Warn("[AutoRecord] Failed to stop capture")
	}
	if err != nil {
		return sess, err
	}
	a.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"events":  len(sess.Events),
	}).Info("[AutoRecord] Recording stopped")
	return sess, nil
}

func (a *AutoRecorder) publish(ctx context.Context, subject string, payload any) {
	if err := a.publisher.Publish(ctx, subject, payload); err != nil {
		a.log.WithError(err).WithField("subject", subject).Warn("[AutoRecord] Failed to publish notification")
	}
}
