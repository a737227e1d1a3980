package liveclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ghostreplay/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventFeed = `{"Events":[
	{"EventID":0,"EventName":"GameStart","EventTime":0.02},
	{"EventID":1,"EventName":"MinionsSpawning","EventTime":65.0},
	{"EventID":2,"EventName":"ChampionKill","EventTime":502.4,"KillerName":"LeBlanc Main","VictimName":"Nami","Assisters":["Riven"]},
	{"EventID":3,"EventName":"DragonKill","EventTime":610.9,"DragonType":"Fire","Stolen":"False","KillerName":"Riven","Assisters":[]},
	{"EventID":"4","EventName":"Ace","EventTime":700},
	{"EventID":5,"EventTime":701},
	{"EventID":6.5,"EventName":"Ace","EventTime":702}
]}`

func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	server := httptest.NewTLSServer(mux)
	t.Cleanup(server.Close)
	return server
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func TestFetchEvents_DecodesAndValidates(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		eventDataPath: respond(eventFeed),
	})
	client := New(WithBaseURL(server.URL))

	events, err := client.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 4, "malformed entries are dropped")

	kill := events[2]
	assert.Equal(t, 2, kill.EventID)
	assert.Equal(t, session.EventChampionKill, kill.EventName)
	assert.InDelta(t, 502.4, kill.EventTime, 1e-9)
	assert.Equal(t, "LeBlanc Main", kill.KillerName)
	assert.Equal(t, []string{"Riven"}, kill.Assisters)
	assert.Zero(t, kill.CapturedAt)

	dragon := events[3]
	assert.Equal(t, json.RawMessage(`"Fire"`), dragon.Extra["DragonType"])
}

func TestDecodeEvent_DiscardsLocalAnnotations(t *testing.T) {
	ev, err := DecodeEvent(json.RawMessage(`{"EventID":9,"EventName":"ChampionKill","EventTime":1,"KillerChampion":"Teemo","capturedAt":5}`))
	require.NoError(t, err)
	assert.Empty(t, ev.KillerChampion)
	assert.Zero(t, ev.CapturedAt)
}

func TestFetchEvents_Unreachable(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		eventDataPath: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	})
	client := New(WithBaseURL(server.URL))

	_, err := client.FetchEvents(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)

	closed := httptest.NewTLSServer(http.NotFoundHandler())
	closed.Close()
	client = New(WithBaseURL(closed.URL), WithTimeout(200*time.Millisecond))
	_, err = client.FetchEvents(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestFetchEvents_Timeout(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		eventDataPath: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		},
	})
	client := New(WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))

	_, err := client.FetchEvents(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestFetchRoster(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		playerListPath: respond(`[
			{"summonerName":"LeBlanc Main#NA1","riotIdGameName":"LeBlanc Main","championName":"LeBlanc","team":"ORDER"},
			{"summonerName":"","riotId":"Nami#EUW","championName":"Nami","team":"CHAOS"},
			{"summonerName":"Lux Bot","championName":"Lux","isBot":true}
		]`),
	})
	client := New(WithBaseURL(server.URL))

	entries, err := client.FetchRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "LeBlanc Main#NA1", entries[0].SummonerName)
	assert.Equal(t, "LeBlanc Main", entries[0].GameName)
	assert.Equal(t, "Nami#EUW", entries[1].SummonerName)
	assert.Equal(t, "Nami", entries[1].GameName)
	assert.True(t, entries[2].IsBot)
}

func TestFetchActivePlayerName(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		activePlayerNamePath: respond(`"Riven Enjoyer#EUW"`),
	})
	client := New(WithBaseURL(server.URL))

	name, ok := client.FetchActivePlayerName(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Riven Enjoyer", name)
}

func TestFetchActivePlayerName_FallsBackToAllGameData(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		activePlayerNamePath: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
		allGameDataPath: respond(`{"allPlayers":[
			{"summonerName":"Bot Annie","isBot":true},
			{"summonerName":"","isBot":false},
			{"summonerName":"Riven#EUW","isBot":false}
		]}`),
	})
	client := New(WithBaseURL(server.URL))

	name, ok := client.FetchActivePlayerName(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Riven", name)
}

func TestFetchActivePlayerName_Unknown(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{})
	client := New(WithBaseURL(server.URL))

	name, ok := client.FetchActivePlayerName(context.Background())
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestProbe(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		allGameDataPath: respond(`{}`),
	})
	assert.True(t, New(WithBaseURL(server.URL)).Probe(context.Background()))

	down := newTestServer(t, map[string]http.HandlerFunc{})
	assert.False(t, New(WithBaseURL(down.URL)).Probe(context.Background()))
}

func TestCleanPlayerName(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`"Riven#EUW"`, "Riven"},
		{`Riven`, "Riven"},
		{`"Nami Main"`, "Nami Main"},
		{`""`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanPlayerName([]byte(tt.body)), tt.body)
	}
}
