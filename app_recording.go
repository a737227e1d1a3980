package main

import (
	"errors"

	"ghostreplay/internal/bootstrap"
	"ghostreplay/internal/catalog"
	"ghostreplay/internal/review"
	"ghostreplay/internal/session"
)

var errNotReady = errors.New("recorder is not running")

// GetStatus returns the live recorder status
func (a *App) GetStatus() (bootstrap.Status, error) {
	if a.stack == nil {
		return bootstrap.Status{}, errNotReady
	}
	return a.stack.Status(), nil
}

// ListSessions returns recorded sessions, newest first
func (a *App) ListSessions() ([]catalog.Entry, error) {
	if a.stack == nil {
		return nil, errNotReady
	}
	return a.stack.Review.List(a.ctx)
}

// LoadSession reads a session by id or by the path of its video file
func (a *App) LoadSession(idOrPath string) (map[string]interface{}, error) {
	if a.stack == nil {
		return nil, errNotReady
	}
	s, err := a.stack.Review.LoadSession(a.ctx, idOrPath)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":       s.ID,
		"metadata": s.Metadata,
		"legacy":   s.Legacy,
		"events":   s.Events,
	}, nil
}

// GetTimeline builds the grouped markers of a session. An empty types list
// shows the default event types.
func (a *App) GetTimeline(idOrPath string, types []string, kdaOnly bool, manualOffset float64) (*review.Timeline, error) {
	if a.stack == nil {
		return nil, errNotReady
	}
	return a.stack.Review.Timeline(a.ctx, idOrPath, review.TimelineRequest{
		VisibleTypes: types,
		KDAOnly:      kdaOnly,
		ManualOffset: manualOffset,
	})
}

// StartRecording starts a recording right away
func (a *App) StartRecording() (string, error) {
	if a.stack == nil {
		return "", errNotReady
	}
	return a.stack.Recorder.StartRecording(a.ctx)
}

// StopRecording stops the active recording, returning its id, or an empty
// string when nothing was recording
func (a *App) StopRecording() (string, error) {
	if a.stack == nil {
		return "", errNotReady
	}
	s, err := a.stack.Recorder.StopRecording(a.ctx)
	if s == nil {
		return "", err
	}
	return s.ID, err
}

// ToggleRecording starts a recording when idle and stops it otherwise
func (a *App) ToggleRecording() {
	if a.stack == nil {
		return
	}
	if a.stack.Ingest.Recording() {
		if _, err := a.StopRecording(); err != nil {
			a.log.WithError(err).Warn("Failed to stop recording")
		}
		return
	}
	if _, err := a.StartRecording(); err != nil {
		a.log.WithError(err).Warn("Failed to start recording")
	}
}

// SetAutoRecord toggles recording on game start
func (a *App) SetAutoRecord(enabled bool) bool {
	if a.stack == nil {
		return false
	}
	a.stack.Recorder.SetEnabled(enabled)
	return a.stack.Recorder.Enabled()
}

// GetLiveSession returns a copy of the session being recorded, if any
func (a *App) GetLiveSession() *session.RecordingSession {
	if a.stack == nil {
		return nil
	}
	return a.stack.Ingest.Snapshot()
}
