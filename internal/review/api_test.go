package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ghostreplay/internal/ingest"
	"ghostreplay/internal/metrics"
	"ghostreplay/internal/session"

	"github.com/gin-gonic/gin"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	recording bool
	enabled   bool
}

func (f *fakeController) StartRecording(context.Context) (string, error) {
	if f.recording {
		return "", ingest.ErrAlreadyRecording
	}
	f.recording = true
	return "2025-08-03T11-43-27-085Z", nil
}

func (f *fakeController) StopRecording(context.Context) (*session.RecordingSession, error) {
	if !f.recording {
		return nil, nil
	}
	f.recording = false
	s := session.New("2025-08-03T11-43-27-085Z", time.Now())
	s.Finalize(time.Now())
	return s, nil
}

func (f *fakeController) Enabled() bool       { return f.enabled }
func (f *fakeController) SetEnabled(on bool) { f.enabled = on }

func newTestRouter(t *testing.T) (*gin.Engine, string, *fakeController) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := logrustest.NewNullLogger()

	svc, store, _ := newTestService(t)
	id := recordMidGameSession(t, store)
	ctrl := &fakeController{enabled: true}

	api := NewAPI(svc, logger,
		WithController(ctrl),
		WithStatus(func() any { return gin.H{"presence": "Idle"} }),
		WithAPIMetrics(metrics.New("ghostreplay")),
		WithLiveFeed(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})),
	)
	return api.Router(), id, ctrl
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAPI_Timeline(t *testing.T) {
	router, id, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/api/sessions/"+id+"/timeline?types=ChampionKill&manualOffset=-0.4", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tl Timeline
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tl))
	assert.Equal(t, id, tl.SessionID)
	assert.InDelta(t, -467.4, tl.Offset, 1e-9)
	require.Len(t, tl.Markers, 1)
	assert.InDelta(t, 35.0, tl.Markers[0].VideoTime, 1e-6)
}

func TestAPI_TimelineBadQuery(t *testing.T) {
	router, id, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/api/sessions/"+id+"/timeline?manualOffset=soon", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, http.MethodGet, "/api/sessions/"+id+"/timeline?kda=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_Sessions(t *testing.T) {
	router, id, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, id, list.Sessions[0].ID)

	w = serve(router, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"activePlayerName":"Riven"`)

	w = serve(router, http.MethodGet, "/api/sessions/2020-01-01T00-00-00-000Z", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_RecordingControl(t *testing.T) {
	router, _, ctrl := newTestRouter(t)

	w := serve(router, http.MethodPost, "/api/recording/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2025-08-03T11-43-27-085Z")

	w = serve(router, http.MethodPost, "/api/recording/start", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(router, http.MethodPost, "/api/recording/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stopped":true`)

	w = serve(router, http.MethodPost, "/api/recording/stop", "")
	assert.Contains(t, w.Body.String(), `"stopped":false`)

	w = serve(router, http.MethodPut, "/api/autorecord", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ctrl.enabled)

	w = serve(router, http.MethodPut, "/api/autorecord", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_StatusHealthMetricsLive(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := serve(router, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"presence":"Idle"}`, w.Body.String())

	w = serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = serve(router, http.MethodGet, "/api/live", "")
	assert.Equal(t, http.StatusTeapot, w.Code)

	w = serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ghostreplay_")
}

func TestAPI_EventStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := logrustest.NewNullLogger()

	router, _, _ := newTestRouter(t)
	w := serve(router, http.MethodGet, "/api/stats/events", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	arc := &fakeArchive{counts: map[string]int{session.EventDragonKill: 3}}
	archived := NewAPI(newArchivedService(t, arc), logger).Router()

	w = serve(archived, http.MethodGet, "/api/stats/events?since=2025-08-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"DragonKill":3`)
	assert.True(t, arc.since.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))

	w = serve(archived, http.MethodGet, "/api/stats/events?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
