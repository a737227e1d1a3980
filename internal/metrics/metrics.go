package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll results
const (
	ResultOK          = "ok"
	ResultUnreachable = "unreachable"
	ResultError       = "error"
)

// Metrics owns the Prometheus collectors of the recorder.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	pollsTotal     *prometheus.CounterVec
	pollDuration   *prometheus.HistogramVec
	inGame         prometheus.Gauge
	recording      prometheus.Gauge
	eventsIngested *prometheus.CounterVec
	sessionsSaved  *prometheus.CounterVec
	syncStrategy   *prometheus.CounterVec
	feedClients    prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates the collectors on a dedicated registry
func New(serviceName string) *Metrics {
	prefix := strings.ReplaceAll(serviceName, "-", "_")

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_live_client_polls_total",
		Help: "Live client polls by loop and result",
	}, []string{"loop", "result"})

	m.pollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prefix + "_live_client_poll_duration_seconds",
		Help:    "Live client poll duration in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 3},
	}, []string{"loop"})

	m.inGame = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_in_game",
		Help: "1 while a game is detected",
	})

	m.recording = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_recording",
		Help: "1 while an event recording is active",
	})

	m.eventsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_events_ingested_total",
		Help: "New events appended to the live session, by event name",
	}, []string{"event"})

	m.sessionsSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_sessions_saved_total",
		Help: "Finalized sessions by persistence result",
	}, []string{"result"})

	m.syncStrategy = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_sync_strategy_total",
		Help: "Timeline offset computations by winning strategy",
	}, []string{"strategy", "mid_game"})

	m.feedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_feed_clients",
		Help: "Connected live feed subscribers",
	})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prefix + "_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pollsTotal,
		m.pollDuration,
		m.inGame,
		m.recording,
		m.eventsIngested,
		m.sessionsSaved,
		m.syncStrategy,
		m.feedClients,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Registry exposes the underlying registry (used by tests)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePoll records one live client request of a polling loop
func (m *Metrics) ObservePoll(loop, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(loop, result).Inc()
	m.pollDuration.WithLabelValues(loop).Observe(took.Seconds())
}

// SetInGame flips the presence gauge
func (m *Metrics) SetInGame(inGame bool) {
	if m == nil {
		return
	}
	m.inGame.Set(boolValue(inGame))
}

// SetRecording flips the recording gauge
func (m *Metrics) SetRecording(recording bool) {
	if m == nil {
		return
	}
	m.recording.Set(boolValue(recording))
}

// EventIngested counts one newly appended event
func (m *Metrics) EventIngested(eventName string) {
	if m == nil {
		return
	}
	m.eventsIngested.WithLabelValues(eventName).Inc()
}

// SessionSaved counts one persistence attempt
func (m *Metrics) SessionSaved(err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.sessionsSaved.WithLabelValues(result).Inc()
}

// SyncComputed counts one offset computation
func (m *Metrics) SyncComputed(strategy string, midGame bool) {
	if m == nil {
		return
	}
	m.syncStrategy.WithLabelValues(strategy, strconv.FormatBool(midGame)).Inc()
}

// FeedClientConnected adjusts the subscriber gauge by delta
func (m *Metrics) FeedClientConnected(delta int) {
	if m == nil {
		return
	}
	m.feedClients.Add(float64(delta))
}

// Middleware returns gin middleware that collects HTTP metrics
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequests.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus scrape handler for this registry
func (m *Metrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Status(404) }
	}
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
