package liveclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ghostreplay/internal/roster"
	"ghostreplay/internal/session"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the loopback address of the in-game Live Client Data API
	DefaultBaseURL = "https://127.0.0.1:2999"

	defaultTimeout = 3 * time.Second

	eventDataPath        = "/liveclientdata/eventdata"
	playerListPath       = "/liveclientdata/playerlist"
	activePlayerNamePath = "/liveclientdata/activeplayername"
	allGameDataPath      = "/liveclientdata/allgamedata"
)

// ErrUnreachable means the API refused, timed out, or answered non-200.
// Callers treat it as "not in game".
var ErrUnreachable = errors.New("live client not available")

// Client talks to the Live Client Data API exposed by a running game
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        logrus.FieldLogger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for dropped payload entries
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a live client. The game serves a self-signed certificate on
// loopback, so verification is disabled.
func New(opts ...Option) *Client {
	null := logrus.New()
	null.SetOutput(io.Discard)

	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		baseURL: DefaultBaseURL,
		log:     null,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs a GET and returns the body of a 200 response.
// Any transport failure or other status maps to ErrUnreachable.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return body, nil
}

// Probe reports whether a game is currently running
func (c *Client) Probe(ctx context.Context) bool {
	_, err := c.get(ctx, allGameDataPath)
	return err == nil
}

// FetchEvents returns the full event history of the running game
func (c *Client) FetchEvents(ctx context.Context) ([]session.GameEvent, error) {
	body, err := c.get(ctx, eventDataPath)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Events []json.RawMessage `json:"Events"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}

	events := make([]session.GameEvent, 0, len(payload.Events))
	for _, raw := range payload.Events {
		ev, err := DecodeEvent(raw)
		if err != nil {
			c.log.WithError(err).Debug("[LiveClient] Dropping malformed event")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// FetchRoster returns the participants of the running game
func (c *Client) FetchRoster(ctx context.Context) ([]roster.Entry, error) {
	body, err := c.get(ctx, playerListPath)
	if err != nil {
		return nil, err
	}

	var players []Player
	if err := json.Unmarshal(body, &players); err != nil {
		return nil, fmt.Errorf("failed to parse players: %w", err)
	}

	entries := make([]roster.Entry, 0, len(players))
	for _, p := range players {
		entries = append(entries, p.Entry())
	}
	return entries, nil
}

// FetchActivePlayerName resolves the local player's name without its #tag.
// It asks /activeplayername first and falls back to the first human player in
// /allgamedata. ok is false when neither source answers.
func (c *Client) FetchActivePlayerName(ctx context.Context) (string, bool) {
	if body, err := c.get(ctx, activePlayerNamePath); err == nil {
		if name := cleanPlayerName(body); name != "" {
			return name, true
		}
	}

	body, err := c.get(ctx, allGameDataPath)
	if err != nil {
		return "", false
	}

	var data struct {
		AllPlayers []Player `json:"allPlayers"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", false
	}
	for _, p := range data.AllPlayers {
		if p.SummonerName != "" && !p.IsBot {
			return stripTag(p.SummonerName), true
		}
	}
	return "", false
}

// cleanPlayerName accepts a JSON string or a bare body and strips quotes and tag
func cleanPlayerName(body []byte) string {
	var name string
	if err := json.Unmarshal(body, &name); err != nil {
		name = string(bytes.TrimSpace(body))
	}
	name = strings.ReplaceAll(name, `"`, "")
	return strings.TrimSpace(stripTag(name))
}

func stripTag(name string) string {
	if i := strings.IndexByte(name, '#'); i >= 0 {
		return name[:i]
	}
	return name
}
