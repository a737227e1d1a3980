package recorder

import (
	"context"
	"time"

	"ghostreplay/internal/notify"
	"ghostreplay/internal/session"

	"github.com/sirupsen/logrus"
)

const finalizeTimeout = 15 * time.Second

// Indexer records a finalized session in the local catalog
type Indexer interface {
	Index(ctx context.Context, s *session.RecordingSession) error
}

// Archiver mirrors a finalized session to long-term storage
type Archiver interface {
	Store(ctx context.Context, s *session.RecordingSession) (bool, error)
}

// FinalizedPayload is published once a session is on disk
type FinalizedPayload struct {
	SessionID          string    `json:"sessionId"`
	RecordedAt         time.Time `json:"recordedAt"`
	RecordingStartTime int64     `json:"recordingStartTime,omitempty"`
	ActivePlayerName   string    `json:"activePlayerName,omitempty"`
	TotalEvents        int       `json:"totalEvents"`
	Archived           bool      `json:"archived"`
}

// Finalizer fans a saved session out to the catalog, the archive and the
// notification bus. Every sink is optional and failures are only logged;
// the session file is already the source of truth.
type Finalizer struct {
	catalog   Indexer
	archive   Archiver
	publisher notify.Publisher
	log       logrus.FieldLogger
}

// NewFinalizer creates a finalizer; nil sinks are skipped
func NewFinalizer(catalog Indexer, archive Archiver, publisher notify.Publisher, log logrus.FieldLogger) *Finalizer {
	if publisher == nil {
		publisher = notify.Noop{}
	}
	return &Finalizer{
		catalog:   catalog,
		archive:   archive,
		publisher: publisher,
		log:       log.WithField("component", "finalizer"),
	}
}

// Finalized matches ingest.Hooks.OnFinalized
func (f *Finalizer) Finalized(s *session.RecordingSession, saveErr error) {
	if s == nil {
		return
	}
	entry := f.log.WithField("session", s.ID)
	if saveErr != nil {
		entry.WithError(saveErr).Warn("[Finalize] Session was not saved, skipping index")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if f.catalog != nil {
		if err := f.catalog.Index(ctx, s); err != nil {
			entry.WithError(err).Warn("[Finalize] Failed to index session")
		}
	}

	archived := false
	if f.archive != nil {
		inserted, err := f.archive.Store(ctx, s)
		switch {
		case err != nil:
			entry.WithError(err).Warn("[Finalize] Failed to archive session")
		case !inserted:
			entry.Debug("[Finalize] Session already archived")
		default:
			archived = true
		}
	}

	payload := FinalizedPayload{
		SessionID:          s.ID,
		RecordedAt:         s.Metadata.RecordedAt,
		RecordingStartTime: s.Metadata.RecordingStartTime,
		ActivePlayerName:   s.Metadata.ActivePlayerName,
		TotalEvents:        s.Metadata.TotalEvents,
		Archived:           archived,
	}
	if err := f.publisher.Publish(ctx, notify.SubjectRecordingFinalized, payload); err != nil {
		entry.WithError(err).Warn("[Finalize] Failed to publish notification")
	}
}
