package roster

import (
	"testing"
	"time"

	"ghostreplay/internal/session"

	"github.com/stretchr/testify/assert"
)

var testRoster = []Entry{
	{SummonerName: "Riven#NA1", GameName: "Riven", ChampionName: "Riven"},
	{SummonerName: "LORDMASTERKING#9999", ChampionName: "LeBlanc"},
	{SummonerName: "Nami Main", GameName: "NamiMain", ChampionName: "Nami"},
	{SummonerName: "Lux Bot", ChampionName: "Lux", IsBot: true},
}

func TestMatch_ExactName(t *testing.T) {
	e, ok := Match(testRoster, "Nami Main")
	assert.True(t, ok)
	assert.Equal(t, "Nami", e.ChampionName)
}

func TestMatch_GameName(t *testing.T) {
	e, ok := Match(testRoster, "NamiMain")
	assert.True(t, ok)
	assert.Equal(t, "Nami", e.ChampionName)
}

func TestMatch_TagPrefix(t *testing.T) {
	e, ok := Match(testRoster, "LORDMASTERKING")
	assert.True(t, ok)
	assert.Equal(t, "LeBlanc", e.ChampionName)
}

func TestMatch_TierOrder(t *testing.T) {
	// An exact display-name hit outranks an earlier entry's alternate name
	entries := []Entry{
		{SummonerName: "Someone#EUW", GameName: "Ahri", ChampionName: "Zed"},
		{SummonerName: "Ahri", ChampionName: "Ahri"},
	}
	e, ok := Match(entries, "Ahri")
	assert.True(t, ok)
	assert.Equal(t, "Ahri", e.ChampionName)
}

func TestMatch_PrefixNeedsTagSeparator(t *testing.T) {
	_, ok := Match(testRoster, "Riv")
	assert.False(t, ok)
}

func TestMatch_Unknown(t *testing.T) {
	_, ok := Match(testRoster, "Minion_T100L1S01N0001")
	assert.False(t, ok)

	_, ok = Match(nil, "Riven")
	assert.False(t, ok)

	_, ok = Match(testRoster, "")
	assert.False(t, ok)
}

func TestEnrich_KillEvent(t *testing.T) {
	ev := session.GameEvent{
		EventID:    1,
		EventName:  session.EventChampionKill,
		EventTime:  502.4,
		KillerName: "Riven",
		VictimName: "Nami",
		Assisters:  []string{"LORDMASTERKING", "Stranger"},
	}

	out := Enrich(ev, testRoster)

	assert.Equal(t, "Riven", out.KillerChampion)
	// "Nami" is neither a display name, game name, nor "Nami#..." prefix
	assert.Empty(t, out.VictimChampion)
	assert.Equal(t, []string{"LeBlanc", "Stranger"}, out.AssisterChampions)
	assert.Nil(t, ev.AssisterChampions, "input must not be mutated")
}

func TestEnrich_SkipsNonKill(t *testing.T) {
	ev := session.GameEvent{EventID: 3, EventName: session.EventTurretKilled, KillerName: "Riven"}
	out := Enrich(ev, testRoster)
	assert.Empty(t, out.KillerChampion)
}

func TestEnrich_EmptyRoster(t *testing.T) {
	ev := session.GameEvent{EventID: 1, EventName: session.EventChampionKill, KillerName: "Riven", Assisters: []string{"Lux"}}
	out := Enrich(ev, nil)
	assert.Empty(t, out.KillerChampion)
	assert.Equal(t, []string{"Lux"}, out.AssisterChampions)
}

func TestCache_Staleness(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewCache(30 * time.Second)

	assert.True(t, c.Stale(now), "empty cache is stale")

	c.Set(testRoster, now)
	assert.False(t, c.Stale(now.Add(10*time.Second)))
	assert.True(t, c.Stale(now.Add(31*time.Second)))

	c.Reset()
	assert.True(t, c.Stale(now))
	assert.Empty(t, c.Entries())
}
