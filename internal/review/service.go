package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghostreplay/internal/archive"
	"ghostreplay/internal/catalog"
	"ghostreplay/internal/session"
	"ghostreplay/internal/timeline"
	"ghostreplay/internal/timesync"

	"github.com/sirupsen/logrus"
)

// Store is the read side of the session file store
type Store interface {
	Load(ctx context.Context, idOrPath string) (*session.RecordingSession, error)
	List() ([]string, error)
}

// Catalog is the session index used for listings and cached alignments
type Catalog interface {
	Index(ctx context.Context, s *session.RecordingSession) error
	Get(ctx context.Context, id string) (catalog.Entry, error)
	List(ctx context.Context, limit int) ([]catalog.Entry, error)
	Annotation(ctx context.Context, id string) (timesync.Result, bool, error)
	SaveAnnotation(ctx context.Context, id string, res timesync.Result) error
}

// Archive is the read side of the PostgreSQL archive
type Archive interface {
	Load(ctx context.Context, id string) (*session.RecordingSession, error)
	EventCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

// ErrArchiveDisabled is returned by archive queries when no archive is configured
var ErrArchiveDisabled = errors.New("archive not configured")

// TimelineRequest selects what a review timeline shows
type TimelineRequest struct {
	VisibleTypes []string
	KDAOnly      bool
	// ManualOffset is a user correction in seconds added to the computed offset
	ManualOffset float64
}

// Marker is one grouped timeline entry ready for display
type Marker struct {
	timeline.GroupedEvent
	Label   string `json:"label"`
	Tooltip string `json:"tooltip"`
}

// Timeline is the review view of one session
type Timeline struct {
	SessionID        string          `json:"sessionId"`
	ActivePlayerName string          `json:"activePlayerName,omitempty"`
	Sync             timesync.Result `json:"sync"`
	ManualOffset     float64         `json:"manualOffset"`
	Offset           float64         `json:"offset"`
	TotalEvents      int             `json:"totalEvents"`
	Markers          []Marker        `json:"markers"`
}

// Service answers review queries over persisted sessions
type Service struct {
	store   Store
	catalog Catalog
	archive Archive
	sync    *timesync.Synchronizer
	log     logrus.FieldLogger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithArchive serves sessions whose file is gone from the archive
func WithArchive(a Archive) ServiceOption {
	return func(s *Service) { s.archive = a }
}

// NewService creates a review service. catalog may be nil, in which case
// every listing reads the session files.
func NewService(store Store, cat Catalog, sync *timesync.Synchronizer, log logrus.FieldLogger, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		catalog: cat,
		sync:    sync,
		log:     log.WithField("component", "review"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadSession reads a session by id or by the path of its video file. A
// session missing on disk is read from the archive when one is configured.
func (s *Service) LoadSession(ctx context.Context, idOrPath string) (*session.RecordingSession, error) {
	sess, err := s.store.Load(ctx, idOrPath)
	if err == nil || s.archive == nil || !errors.Is(err, session.ErrNotFound) || !session.ValidID(idOrPath) {
		return sess, err
	}

	archived, archiveErr := s.archive.Load(ctx, idOrPath)
	if archiveErr != nil {
		if !errors.Is(archiveErr, archive.ErrNotFound) {
			s.log.WithError(archiveErr).WithField("session", idOrPath).Warn("[Review] Archive lookup failed")
		}
		return nil, err
	}
	s.log.WithField("session", idOrPath).Info("[Review] Loaded session from archive")
	return archived, nil
}

// EventStats counts archived events per type for sessions recorded since t
func (s *Service) EventStats(ctx context.Context, since time.Time) (map[string]int, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.EventCounts(ctx, since)
}

// Alignment returns the offset of a session. The first computation is
// cached in the catalog and reused afterwards.
func (s *Service) Alignment(ctx context.Context, sess *session.RecordingSession) timesync.Result {
	if s.catalog != nil {
		res, ok, err := s.catalog.Annotation(ctx, sess.ID)
		if err != nil {
			s.log.WithError(err).WithField("session", sess.ID).Warn("[Review] Failed to read cached alignment")
		}
		if ok {
			return res
		}
	}

	res := s.sync.ComputeOffset(sess)

	if s.catalog != nil {
		if err := s.catalog.Index(ctx, sess); err != nil {
			s.log.WithError(err).WithField("session", sess.ID).Warn("[Review] Failed to index session")
		} else if err := s.catalog.SaveAnnotation(ctx, sess.ID, res); err != nil {
			s.log.WithError(err).WithField("session", sess.ID).Warn("[Review] Failed to cache alignment")
		}
	}
	return res
}

// Timeline loads a session and builds its grouped markers
func (s *Service) Timeline(ctx context.Context, idOrPath string, req TimelineRequest) (*Timeline, error) {
	sess, err := s.LoadSession(ctx, idOrPath)
	if err != nil {
		return nil, err
	}
	return s.BuildTimeline(ctx, sess, req), nil
}

// BuildTimeline groups the events of an already loaded session
func (s *Service) BuildTimeline(ctx context.Context, sess *session.RecordingSession, req TimelineRequest) *Timeline {
	res := s.Alignment(ctx, sess)
	offset := res.OffsetSeconds + req.ManualOffset

	filter := timeline.Filter{
		VisibleTypes:       req.VisibleTypes,
		KDAOnly:            req.KDAOnly,
		PlayerName:         sess.Metadata.ActivePlayerName,
		MidGame:            res.IsMidGame,
		RecordingStartTime: sess.Metadata.RecordingStartTime,
	}
	groups := timeline.Group(sess.Events, filter, offset)

	kdaMode := req.KDAOnly && sess.Metadata.ActivePlayerName != ""
	markers := make([]Marker, 0, len(groups))
	for _, g := range groups {
		markers = append(markers, Marker{
			GroupedEvent: g,
			Label:        timeline.Label(g.EventType),
			Tooltip:      timeline.Tooltip(g, kdaMode, sess.Metadata.ActivePlayerName),
		})
	}

	return &Timeline{
		SessionID:        sess.ID,
		ActivePlayerName: sess.Metadata.ActivePlayerName,
		Sync:             res,
		ManualOffset:     req.ManualOffset,
		Offset:           offset,
		TotalEvents:      len(sess.Events),
		Markers:          markers,
	}
}

// List returns the persisted sessions, newest first. Files missing from the
// catalog are indexed on the way.
func (s *Service) List(ctx context.Context) ([]catalog.Entry, error) {
	ids, err := s.store.List()
	if err != nil {
		return nil, err
	}

	indexed := make(map[string]catalog.Entry)
	if s.catalog != nil {
		all, err := s.catalog.List(ctx, 0)
		if err != nil {
			return nil, err
		}
		for _, e := range all {
			indexed[e.ID] = e
		}
	}

	entries := make([]catalog.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := indexed[id]; ok {
			entries = append(entries, e)
			continue
		}
		entry, err := s.index(ctx, id)
		if err != nil {
			if errors.Is(err, session.ErrInvalidFormat) {
				s.log.WithField("session", id).Warn("[Review] Skipping unreadable session file")
				continue
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// index reads a session file missing from the catalog and adds it
func (s *Service) index(ctx context.Context, id string) (catalog.Entry, error) {
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if s.catalog != nil {
		if err := s.catalog.Index(ctx, sess); err != nil {
			s.log.WithError(err).WithField("session", id).Warn("[Review] Failed to index session")
		}
	}
	return entryOf(sess), nil
}

func entryOf(sess *session.RecordingSession) catalog.Entry {
	recordedAt := sess.Metadata.RecordedAt
	if recordedAt.IsZero() && sess.HasRecordingStart() {
		recordedAt = time.UnixMilli(sess.Metadata.RecordingStartTime).UTC()
	}
	return catalog.Entry{
		ID:                 sess.ID,
		RecordedAt:         recordedAt,
		RecordingStartTime: sess.Metadata.RecordingStartTime,
		ActivePlayerName:   sess.Metadata.ActivePlayerName,
		TotalEvents:        sess.Metadata.TotalEvents,
		Legacy:             sess.Legacy,
	}
}
