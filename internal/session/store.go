package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileSuffix is appended to a session id to form its file name
const FileSuffix = ".events.json"

var (
	ErrNotFound       = errors.New("session not found")
	ErrSessionExists  = errors.New("session already persisted")
	ErrInvalidFormat  = errors.New("invalid events file format")
	ErrInvalidSession = errors.New("invalid session id")
)

// fileFormat is the on-disk layout written since recordingStartTime was introduced
type fileFormat struct {
	Metadata Metadata    `json:"metadata"`
	Events   []GameEvent `json:"events"`
}

// Encode serializes a session in the metadata+events layout
func Encode(s *RecordingSession) ([]byte, error) {
	events := s.Events
	if events == nil {
		events = []GameEvent{}
	}
	data, err := json.MarshalIndent(fileFormat{Metadata: s.Metadata, Events: events}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	return data, nil
}

// Decode parses either the current layout or the legacy bare event array
func Decode(id string, data []byte) (*RecordingSession, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrInvalidFormat
	}

	switch trimmed[0] {
	case '[':
		var events []GameEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return &RecordingSession{
			ID:       id,
			Metadata: Metadata{TotalEvents: len(events)},
			Events:   events,
			Legacy:   true,
		}, nil
	case '{':
		var raw struct {
			Metadata *Metadata   `json:"metadata"`
			Events   []GameEvent `json:"events"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		if raw.Events == nil {
			return nil, fmt.Errorf("%w: missing events", ErrInvalidFormat)
		}
		s := &RecordingSession{ID: id, Events: raw.Events}
		if raw.Metadata != nil {
			s.Metadata = *raw.Metadata
		}
		if s.Metadata.TotalEvents == 0 {
			s.Metadata.TotalEvents = len(raw.Events)
		}
		return s, nil
	default:
		return nil, ErrInvalidFormat
	}
}

// ValidID reports whether id is a bare session id (no path components)
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

// FileStore keeps one <id>.events.json file per session in a directory
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the recordings directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the recordings directory
func (f *FileStore) Dir() string {
	return f.dir
}

// Path returns the events file path for a session id
func (f *FileStore) Path(id string) string {
	return filepath.Join(f.dir, id+FileSuffix)
}

// Save writes a finalized session. Sessions are immutable once written, so an
// existing file for the same id is never overwritten.
func (f *FileStore) Save(ctx context.Context, s *RecordingSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidID(s.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidSession, s.ID)
	}

	data, err := Encode(s)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.Path(s.ID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrSessionExists, s.ID)
	}

	tmp, err := os.CreateTemp(f.dir, s.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session %s: %w", s.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close session %s: %w", s.ID, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize session %s: %w", s.ID, err)
	}
	return nil
}

// Load reads a session by id. A path to a video file (or to an events file)
// is also accepted; its sibling <basename>.events.json is read.
func (f *FileStore) Load(ctx context.Context, idOrPath string) (*RecordingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, path := f.resolve(idOrPath)
	if id == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, idOrPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	return Decode(id, data)
}

// videoExts are the recording containers whose sibling events file is looked up
var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".mov":  true,
	".flv":  true,
	".avi":  true,
}

// resolve maps an id or a file path onto (id, events file path)
func (f *FileStore) resolve(idOrPath string) (string, string) {
	if ValidID(idOrPath) {
		id := strings.TrimSuffix(idOrPath, FileSuffix)
		if ext := filepath.Ext(id); videoExts[strings.ToLower(ext)] {
			id = strings.TrimSuffix(id, ext)
		}
		if id == "" {
			return "", ""
		}
		return id, f.Path(id)
	}
	if !strings.ContainsAny(idOrPath, `/\`) {
		return "", ""
	}

	dir := filepath.Dir(idOrPath)
	base := filepath.Base(idOrPath)
	if strings.HasSuffix(base, FileSuffix) {
		id := strings.TrimSuffix(base, FileSuffix)
		return id, idOrPath
	}
	id := strings.TrimSuffix(base, filepath.Ext(base))
	return id, filepath.Join(dir, id+FileSuffix)
}

// List returns the ids of all persisted sessions, newest first
func (f *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), FileSuffix))
	}
	// ids are timestamps, so lexical order is chronological
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
