package session

import (
	"encoding/json"
	"strings"
	"time"
)

// Metadata is the header written alongside the events of a session file
type Metadata struct {
	RecordedAt         time.Time `json:"recordedAt"`
	RecordingStartTime int64     `json:"recordingStartTime,omitempty"` // unix ms, zero for legacy sessions
	ActivePlayerName   string    `json:"activePlayerName,omitempty"`
	TotalEvents        int       `json:"totalEvents"`
}

// RecordingSession is the persisted unit of work for one recording.
// Events are kept in arrival order, not game-time order.
type RecordingSession struct {
	ID       string
	Metadata Metadata
	Events   []GameEvent

	// Legacy is set when the session was loaded from a bare event array
	Legacy bool
}

// New creates an empty live session that started recording at startedAt
func New(id string, startedAt time.Time) *RecordingSession {
	return &RecordingSession{
		ID: id,
		Metadata: Metadata{
			RecordingStartTime: startedAt.UnixMilli(),
		},
		Events: make([]GameEvent, 0, 64),
	}
}

// HasRecordingStart reports whether the wall-clock start of capture is known
func (s *RecordingSession) HasRecordingStart() bool {
	return s.Metadata.RecordingStartTime > 0
}

// Finalize stamps recordedAt and the event count before serialization
func (s *RecordingSession) Finalize(recordedAt time.Time) {
	s.Metadata.RecordedAt = recordedAt.UTC()
	s.Metadata.TotalEvents = len(s.Events)
}

// Clone returns a deep copy safe to hand to readers while the original is live
func (s *RecordingSession) Clone() *RecordingSession {
	out := *s
	out.Events = make([]GameEvent, len(s.Events))
	for i, e := range s.Events {
		out.Events[i] = e.clone()
	}
	return &out
}

func (e GameEvent) clone() GameEvent {
	out := e
	if e.Assisters != nil {
		out.Assisters = append([]string(nil), e.Assisters...)
	}
	if e.AssisterChampions != nil {
		out.AssisterChampions = append([]string(nil), e.AssisterChampions...)
	}
	if e.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = append([]byte(nil), v...)
		}
	}
	return out
}

// NewID builds a session id from a timestamp, e.g. 2025-08-03T11-43-27-085Z.
// It is the UTC ISO-8601 form with ':' and '.' replaced so it is file-name safe.
func NewID(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}
