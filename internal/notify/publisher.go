package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Subjects of the lifecycle notifications
const (
	SubjectGameStarted        = "ghostreplay.game.started"
	SubjectGameEnded          = "ghostreplay.game.ended"
	SubjectRecordingStarted   = "ghostreplay.recording.started"
	SubjectRecordingFinalized = "ghostreplay.recording.finalized"
)

// SourceService identifies this process in envelopes
const SourceService = "ghostreplay"

// Envelope wraps every published payload
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope serializes payload into an envelope for subject
func NewEnvelope(subject string, payload any, now time.Time) (Envelope, error) {
	env := Envelope{
		EventID:       uuid.New().String(),
		EventType:     subject,
		Timestamp:     now.UTC(),
		SourceService: SourceService,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		env.Payload = data
	}
	return env, nil
}

// Publisher sends lifecycle notifications
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close() error
}

// Noop drops every notification
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Close() error                              { return nil }

// NATSPublisher publishes envelopes on a core NATS connection
type NATSPublisher struct {
	nc  *nats.Conn
	log logrus.FieldLogger
	mu  sync.Mutex
}

// ConnectNATS dials the NATS servers
func ConnectNATS(servers string, log logrus.FieldLogger) (*NATSPublisher, error) {
	log = log.WithField("component", "notify")

	opts := []nats.Option{
		nats.Name(SourceService),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.WithField("servers", servers).Info("Connected to NATS")
	return &NATSPublisher{nc: nc, log: log}, nil
}

// Publish wraps payload in an envelope and publishes it on subject
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := NewEnvelope(subject, payload, time.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc == nil {
		return fmt.Errorf("not connected to NATS")
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"subject": subject,
		"eventId": env.EventID,
	}).Debug("Published event to NATS")
	return nil
}

// Close flushes and closes the connection
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc == nil {
		return nil
	}
	if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
		p.log.WithError(err).Warn("NATS flush failed")
	}
	p.nc.Close()
	p.nc = nil
	p.log.Info("NATS connection closed")
	return nil
}

// IsConnected reports whether the connection is up
func (p *NATSPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nc != nil && p.nc.IsConnected()
}
