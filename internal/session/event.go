package session

import (
	"encoding/json"
	"fmt"
)

// Well-known event names reported by the live client
const (
	EventGameStart       = "GameStart"
	EventMinionsSpawning = "MinionsSpawning"
	EventFirstBrick      = "FirstBrick"
	EventFirstBlood      = "FirstBlood"
	EventChampionKill    = "ChampionKill"
	EventMultikill       = "Multikill"
	EventAce             = "Ace"
	EventTurretKilled    = "TurretKilled"
	EventInhibKilled     = "InhibKilled"
	EventDragonKill      = "DragonKill"
	EventHeraldKill      = "HeraldKill"
	EventHordeKill       = "HordeKill"
	EventBaronKill       = "BaronKill"
	EventAtakhanKill     = "AtakhanKill"
	EventGameEnd         = "GameEnd"
)

// GameEvent is one occurrence reported by the live client event feed.
//
// CapturedAt is stamped locally (unix milliseconds) when the ingestion loop
// first saw the event; zero means it was never observed live. The champion
// fields are resolved from the roster at ingestion time and never come from
// the API. Extra carries any type-specific fields (DragonType, Stolen, ...)
// so they survive a save/load cycle.
type GameEvent struct {
	EventID   int     `json:"EventID"`
	EventName string  `json:"EventName"`
	EventTime float64 `json:"EventTime"`

	KillerName string   `json:"KillerName,omitempty"`
	VictimName string   `json:"VictimName,omitempty"`
	Assisters  []string `json:"Assisters,omitempty"`

	KillerChampion    string   `json:"KillerChampion,omitempty"`
	VictimChampion    string   `json:"VictimChampion,omitempty"`
	AssisterChampions []string `json:"AssisterChampions,omitempty"`

	CapturedAt int64 `json:"capturedAt,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// knownFields are the keys owned by the typed GameEvent fields
var knownFields = []string{
	"EventID", "EventName", "EventTime",
	"KillerName", "VictimName", "Assisters",
	"KillerChampion", "VictimChampion", "AssisterChampions",
	"capturedAt",
}

// IsKnownField reports whether key maps onto a typed GameEvent field
func IsKnownField(key string) bool {
	for _, k := range knownFields {
		if k == key {
			return true
		}
	}
	return false
}

// IsKill reports whether the event is a champion kill
func (e GameEvent) IsKill() bool {
	return e.EventName == EventChampionKill
}

// HasCapturedAt reports whether the event was observed by a live poll
func (e GameEvent) HasCapturedAt() bool {
	return e.CapturedAt > 0
}

// Involves reports whether player is the killer, the victim or an assister
func (e GameEvent) Involves(player string) bool {
	if player == "" {
		return false
	}
	if e.KillerName == player || e.VictimName == player {
		return true
	}
	for _, a := range e.Assisters {
		if a == player {
			return true
		}
	}
	return false
}

// KillerDisplay returns the killer champion, falling back to the raw name
func (e GameEvent) KillerDisplay() string {
	if e.KillerChampion != "" {
		return e.KillerChampion
	}
	return e.KillerName
}

// VictimDisplay returns the victim champion, falling back to the raw name
func (e GameEvent) VictimDisplay() string {
	if e.VictimChampion != "" {
		return e.VictimChampion
	}
	return e.VictimName
}

// MarshalJSON writes the typed fields and merges Extra back in.
func (e GameEvent) MarshalJSON() ([]byte, error) {
	type plain GameEvent
	known, err := json.Marshal(plain(e))
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(e.Extra)+len(knownFields))
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range e.Extra {
		if _, taken := merged[k]; taken || IsKnownField(k) {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the typed fields and keeps every other key in Extra.
func (e *GameEvent) UnmarshalJSON(data []byte) error {
	type plain GameEvent
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}
	for _, k := range knownFields {
		delete(all, k)
	}
	if len(all) > 0 {
		p.Extra = all
	}

	*e = GameEvent(p)
	return nil
}
