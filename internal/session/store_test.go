package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(id string) *RecordingSession {
	start := time.UnixMilli(1754221407085)
	s := New(id, start)
	s.Metadata.ActivePlayerName = "Riven"
	s.Events = append(s.Events,
		GameEvent{EventID: 0, EventName: EventGameStart, EventTime: 0.02, CapturedAt: start.UnixMilli() + 150},
		GameEvent{
			EventID:        1,
			EventName:      EventChampionKill,
			EventTime:      502.4,
			KillerName:     "Riven",
			VictimName:     "Nami",
			Assisters:      []string{"Lux"},
			KillerChampion: "Riven",
			CapturedAt:     start.UnixMilli() + 35400,
		},
		GameEvent{
			EventID:   2,
			EventName: EventDragonKill,
			EventTime: 610.9,
			Extra: map[string]json.RawMessage{
				"DragonType": json.RawMessage(`"Fire"`),
				"Stolen":     json.RawMessage(`"False"`),
			},
		},
	)
	s.Finalize(start.Add(20 * time.Minute))
	return s
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	s := sampleSession("2025-08-03T11-43-27-085Z")
	require.NoError(t, store.Save(context.Background(), s))

	loaded, err := store.Load(context.Background(), s.ID)
	require.NoError(t, err)

	assert.False(t, loaded.Legacy)
	assert.Equal(t, s.Events, loaded.Events)
	assert.Equal(t, s.Metadata.RecordingStartTime, loaded.Metadata.RecordingStartTime)
	assert.Equal(t, "Riven", loaded.Metadata.ActivePlayerName)
	assert.Equal(t, 3, loaded.Metadata.TotalEvents)
	assert.True(t, s.Metadata.RecordedAt.Equal(loaded.Metadata.RecordedAt))
}

func TestLoad_LegacyArray(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	s := sampleSession("legacy")
	data, err := json.Marshal(s.Events)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy"+FileSuffix), data, 0644))

	loaded, err := store.Load(context.Background(), "legacy")
	require.NoError(t, err)

	assert.True(t, loaded.Legacy)
	assert.False(t, loaded.HasRecordingStart())
	assert.Equal(t, s.Events, loaded.Events)
	assert.Equal(t, 3, loaded.Metadata.TotalEvents)
}

func TestSave_NeverOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	s := sampleSession("2025-08-03T11-43-27-085Z")
	require.NoError(t, store.Save(context.Background(), s))

	s.Events = nil
	err = store.Save(context.Background(), s)
	assert.ErrorIs(t, err, ErrSessionExists)

	loaded, err := store.Load(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Events, 3)
}

func TestSave_RejectsPathLikeID(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = store.Save(context.Background(), sampleSession("../escape"))
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLoad_FromVideoPath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	s := sampleSession("2025-08-03T11-43-27-085Z")
	require.NoError(t, store.Save(context.Background(), s))

	loaded, err := store.Load(context.Background(), filepath.Join(dir, s.ID+".mov"))
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Len(t, loaded.Events, 3)
}

func TestLoad_FromBareVideoName(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	s := sampleSession("2025-08-03T11-43-27-085Z")
	require.NoError(t, store.Save(context.Background(), s))

	for _, name := range []string{s.ID + ".mp4", s.ID + ".MKV", s.ID + FileSuffix} {
		loaded, err := store.Load(context.Background(), name)
		require.NoError(t, err, name)
		assert.Equal(t, s.ID, loaded.ID, name)
	}

	_, err = store.Load(context.Background(), ".mp4")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLoad_Missing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecode_InvalidShapes(t *testing.T) {
	for _, input := range []string{``, `"text"`, `{"metadata":{}}`, `{"events": 12}`} {
		_, err := Decode("x", []byte(input))
		assert.ErrorIs(t, err, ErrInvalidFormat, "input %q", input)
	}
}

func TestList_NewestFirst(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"2025-08-01T10-00-00-000Z", "2025-08-03T10-00-00-000Z", "2025-08-02T10-00-00-000Z"} {
		require.NoError(t, store.Save(context.Background(), sampleSession(id)))
	}

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-03T10-00-00-000Z", "2025-08-02T10-00-00-000Z", "2025-08-01T10-00-00-000Z"}, ids)
}

func TestNewID(t *testing.T) {
	ts := time.Date(2025, 8, 3, 11, 43, 27, 85*int(time.Millisecond), time.UTC)
	assert.Equal(t, "2025-08-03T11-43-27-085Z", NewID(ts))
}

func TestGameEvent_ExtraFieldsSurvive(t *testing.T) {
	raw := `{"EventID":7,"EventName":"Multikill","EventTime":812.5,"KillerName":"Riven","KillStreak":3}`

	var e GameEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, 7, e.EventID)
	assert.Equal(t, json.RawMessage(`3`), e.Extra["KillStreak"])
	assert.NotContains(t, e.Extra, "KillerName")

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestClone_IsIndependent(t *testing.T) {
	s := sampleSession("x")
	c := s.Clone()
	c.Events[1].Assisters[0] = "changed"
	c.Events = append(c.Events, GameEvent{EventID: 99})

	assert.Equal(t, "Lux", s.Events[1].Assisters[0])
	assert.Len(t, s.Events, 3)
}
