package roster

import (
	"strings"
	"sync"
	"time"

	"ghostreplay/internal/session"
)

// DefaultTTL is how long a fetched roster is trusted before a refresh
const DefaultTTL = 30 * time.Second

// Entry is one participant of the live game
type Entry struct {
	SummonerName string // display name, may be a compound Riot ID ("Name#TAG")
	GameName     string // alternate name, the part of the Riot ID before '#'
	ChampionName string
	IsBot        bool
}

// Match resolves a raw participant name reported by an event against the
// roster. Tiers are tried in order and the first hit wins:
//  1. exact display name
//  2. alternate game name
//  3. display name starting with rawName + "#"
func Match(entries []Entry, rawName string) (Entry, bool) {
	if rawName == "" || len(entries) == 0 {
		return Entry{}, false
	}
	for _, tier := range matchTiers {
		for _, e := range entries {
			if tier(e, rawName) {
				return e, true
			}
		}
	}
	return Entry{}, false
}

var matchTiers = []func(Entry, string) bool{
	matchExact,
	matchGameName,
	matchTagPrefix,
}

func matchExact(e Entry, name string) bool {
	return e.SummonerName == name
}

func matchGameName(e Entry, name string) bool {
	return e.GameName != "" && e.GameName == name
}

func matchTagPrefix(e Entry, name string) bool {
	return e.SummonerName != "" && strings.HasPrefix(e.SummonerName, name+"#")
}

// Champion returns the champion for rawName, if the roster knows it
func Champion(entries []Entry, rawName string) (string, bool) {
	e, ok := Match(entries, rawName)
	if !ok || e.ChampionName == "" {
		return "", false
	}
	return e.ChampionName, true
}

// Enrich returns a copy of a kill event with champion identities filled in.
// Non-kill events are returned unchanged. Unresolved killer and victim
// champions stay empty; unresolved assisters keep their raw name.
func Enrich(event session.GameEvent, entries []Entry) session.GameEvent {
	if !event.IsKill() {
		return event
	}

	out := event
	if champ, ok := Champion(entries, event.KillerName); ok {
		out.KillerChampion = champ
	}
	if champ, ok := Champion(entries, event.VictimName); ok {
		out.VictimChampion = champ
	}
	if len(event.Assisters) > 0 {
		out.AssisterChampions = make([]string, len(event.Assisters))
		for i, name := range event.Assisters {
			if champ, ok := Champion(entries, name); ok {
				out.AssisterChampions[i] = champ
			} else {
				out.AssisterChampions[i] = name
			}
		}
	}
	return out
}

// Cache holds the last successfully fetched roster for one recording
type Cache struct {
	mu        sync.RWMutex
	entries   []Entry
	fetchedAt time.Time
	ttl       time.Duration
}

// NewCache creates an empty roster cache
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl}
}

// Stale reports whether the roster is empty or older than the TTL
func (c *Cache) Stale(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries) == 0 || now.Sub(c.fetchedAt) > c.ttl
}

// Set replaces the cached roster
func (c *Cache) Set(entries []Entry, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append([]Entry(nil), entries...)
	c.fetchedAt = now
}

// Entries returns the cached roster
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries
}

// Reset empties the cache
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.fetchedAt = time.Time{}
}
