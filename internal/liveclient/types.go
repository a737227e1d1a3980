package liveclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"ghostreplay/internal/roster"
	"ghostreplay/internal/session"
)

// Player is an entry of /playerlist and of allPlayers in /allgamedata
type Player struct {
	SummonerName   string `json:"summonerName"`
	RiotID         string `json:"riotId"`
	RiotIDGameName string `json:"riotIdGameName"`
	ChampionName   string `json:"championName"`
	IsBot          bool   `json:"isBot"`
	Team           string `json:"team"`
}

// Entry converts the player into a roster entry
func (p Player) Entry() roster.Entry {
	display := p.SummonerName
	if display == "" {
		display = p.RiotID
	}

	gameName := p.RiotIDGameName
	if gameName == "" && strings.Contains(p.RiotID, "#") {
		gameName = stripTag(p.RiotID)
	}

	return roster.Entry{
		SummonerName: display,
		GameName:     gameName,
		ChampionName: p.ChampionName,
		IsBot:        p.IsBot,
	}
}

var errMalformedEvent = errors.New("malformed event")

// DecodeEvent validates one raw event of the feed and converts it into a
// GameEvent. EventID must be an integer, EventName a non-empty string and
// EventTime a finite number. Champion identities and capture stamps are
// local annotations, so any such keys sent by the API are discarded.
func DecodeEvent(raw json.RawMessage) (session.GameEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return session.GameEvent{}, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}

	var id float64
	if err := requireField(fields, "EventID", &id); err != nil {
		return session.GameEvent{}, err
	}
	if id != math.Trunc(id) {
		return session.GameEvent{}, fmt.Errorf("%w: non-integer EventID %v", errMalformedEvent, id)
	}

	var name string
	if err := requireField(fields, "EventName", &name); err != nil {
		return session.GameEvent{}, err
	}
	if name == "" {
		return session.GameEvent{}, fmt.Errorf("%w: empty EventName", errMalformedEvent)
	}

	var t float64
	if err := requireField(fields, "EventTime", &t); err != nil {
		return session.GameEvent{}, err
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return session.GameEvent{}, fmt.Errorf("%w: invalid EventTime", errMalformedEvent)
	}

	var ev session.GameEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return session.GameEvent{}, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	ev.KillerChampion = ""
	ev.VictimChampion = ""
	ev.AssisterChampions = nil
	ev.CapturedAt = 0
	return ev, nil
}

func requireField(fields map[string]json.RawMessage, key string, dst any) error {
	v, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: missing %s", errMalformedEvent, key)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%w: bad %s: %v", errMalformedEvent, key, err)
	}
	return nil
}
