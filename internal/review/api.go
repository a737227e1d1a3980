package review

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ghostreplay/internal/ingest"
	"ghostreplay/internal/metrics"
	"ghostreplay/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Controller starts and stops recordings on request
type Controller interface {
	StartRecording(ctx context.Context) (string, error)
	StopRecording(ctx context.Context) (*session.RecordingSession, error)
	Enabled() bool
	SetEnabled(enabled bool)
}

// API serves the review HTTP endpoints
type API struct {
	svc       *Service
	control   Controller
	status    func() any
	live      http.Handler
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	startTime time.Time
}

// APIOption configures an API
type APIOption func(*API)

// WithController enables the recording control endpoints
func WithController(c Controller) APIOption {
	return func(a *API) { a.control = c }
}

// WithStatus sets the provider behind GET /api/status
func WithStatus(status func() any) APIOption {
	return func(a *API) { a.status = status }
}

// WithLiveFeed mounts a websocket handler at GET /api/live
func WithLiveFeed(h http.Handler) APIOption {
	return func(a *API) { a.live = h }
}

// WithAPIMetrics adds request metrics and GET /metrics
func WithAPIMetrics(m *metrics.Metrics) APIOption {
	return func(a *API) { a.metrics = m }
}

// NewAPI creates the HTTP surface over svc
func NewAPI(svc *Service, log logrus.FieldLogger, opts ...APIOption) *API {
	a := &API{
		svc:       svc,
		log:       log.WithField("component", "review-api"),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router builds the gin engine
func (a *API) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if a.metrics != nil {
		router.Use(a.metrics.Middleware())
		router.GET("/metrics", a.metrics.Handler())
	}

	router.GET("/health", a.handleHealth)

	api := router.Group("/api")
	api.GET("/sessions", a.handleListSessions)
	api.GET("/sessions/:id", a.handleGetSession)
	api.GET("/sessions/:id/timeline", a.handleTimeline)
	api.GET("/status", a.handleStatus)
	api.GET("/stats/events", a.handleEventStats)
	if a.live != nil {
		api.GET("/live", gin.WrapH(a.live))
	}
	if a.control != nil {
		api.POST("/recording/start", a.handleStartRecording)
		api.POST("/recording/stop", a.handleStopRecording)
		api.PUT("/autorecord", a.handleAutoRecord)
	}
	return router
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(a.startTime).Round(time.Second).String(),
	})
}

func (a *API) handleListSessions(c *gin.Context) {
	entries, err := a.svc.List(c.Request.Context())
	if err != nil {
		a.log.WithError(err).Error("[Review] Failed to list sessions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": entries, "count": len(entries)})
}

func (a *API) handleGetSession(c *gin.Context) {
	sess, err := a.svc.LoadSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       sess.ID,
		"metadata": sess.Metadata,
		"legacy":   sess.Legacy,
		"events":   sess.Events,
	})
}

func (a *API) handleTimeline(c *gin.Context) {
	req := TimelineRequest{}
	if types := strings.TrimSpace(c.Query("types")); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				req.VisibleTypes = append(req.VisibleTypes, t)
			}
		}
	}
	if kda := c.Query("kda"); kda != "" {
		v, err := strconv.ParseBool(kda)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kda must be a boolean"})
			return
		}
		req.KDAOnly = v
	}
	if manual := c.Query("manualOffset"); manual != "" {
		v, err := strconv.ParseFloat(manual, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "manualOffset must be a number"})
			return
		}
		req.ManualOffset = v
	}

	tl, err := a.svc.Timeline(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, tl)
}

func (a *API) handleStatus(c *gin.Context) {
	if a.status == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, a.status())
}

func (a *API) handleEventStats(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		since = t
	}

	counts, err := a.svc.EventStats(c.Request.Context(), since)
	if errors.Is(err, ErrArchiveDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		a.log.WithError(err).Error("[Review] Failed to count archived events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "counts": counts})
}

func (a *API) handleStartRecording(c *gin.Context) {
	id, err := a.control.StartRecording(c.Request.Context())
	if errors.Is(err, ingest.ErrAlreadyRecording) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		a.log.WithError(err).Error("[Review] Failed to start recording")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start recording"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id})
}

func (a *API) handleStopRecording(c *gin.Context) {
	sess, err := a.control.StopRecording(c.Request.Context())
	if err != nil {
		a.log.WithError(err).Error("[Review] Failed to stop recording")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop recording"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"stopped": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stopped":     true,
		"sessionId":   sess.ID,
		"totalEvents": sess.Metadata.TotalEvents,
	})
}

func (a *API) handleAutoRecord(c *gin.Context) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected {\"enabled\": bool}"})
		return
	}
	a.control.SetEnabled(*body.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": a.control.Enabled()})
}

func (a *API) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, session.ErrInvalidSession):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
	case errors.Is(err, session.ErrInvalidFormat):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "session file is not readable"})
	default:
		a.log.WithError(err).Error("[Review] Failed to load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
	}
}
