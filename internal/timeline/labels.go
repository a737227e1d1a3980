package timeline

import "ghostreplay/internal/session"

// Icon keys understood by the frontend
const (
	IconKill       = "kill"
	IconTower      = "tower"
	IconDragon     = "dragon"
	IconBaron      = "baron"
	IconFirstBlood = "first-blood"
	IconAce        = "ace"
	IconInhibitor  = "inhibitor"
	IconHerald     = "herald"
	IconMultikill  = "multikill"
	IconAtakhan    = "atakhan"
	IconVoidgrubs  = "voidgrubs"

	IconKDAKill   = "kda-kill"
	IconKDADeath  = "kda-death"
	IconKDAAssist = "kda-assist"
)

var eventIcons = map[string]string{
	session.EventChampionKill: IconKill,
	session.EventTurretKilled: IconTower,
	session.EventDragonKill:   IconDragon,
	session.EventBaronKill:    IconBaron,
	session.EventFirstBlood:   IconFirstBlood,
	session.EventAce:          IconAce,
	session.EventInhibKilled:  IconInhibitor,
	session.EventHeraldKill:   IconHerald,
	session.EventMultikill:    IconMultikill,
	session.EventAtakhanKill:  IconAtakhan,
	session.EventHordeKill:    IconVoidgrubs,
}

// EventLabels are the human names of event types
var EventLabels = map[string]string{
	session.EventChampionKill: "Kill",
	"ChampionSpecialKill":     "Special Kill",
	session.EventFirstBlood:   "First Blood",
	session.EventTurretKilled: "Tower",
	session.EventInhibKilled:  "Inhibitor",
	session.EventDragonKill:   "Dragon",
	session.EventBaronKill:    "Baron",
	session.EventHeraldKill:   "Herald",
	session.EventHordeKill:    "Voidgrubs",
	session.EventAtakhanKill:  "Atakhan",
	session.EventMultikill:    "Multikill",
	session.EventAce:          "Ace",
}

// DefaultVisible are the event types shown when the viewer picks none
var DefaultVisible = []string{
	session.EventChampionKill,
	session.EventTurretKilled,
	session.EventDragonKill,
	session.EventBaronKill,
	session.EventFirstBlood,
	session.EventAce,
	session.EventInhibKilled,
	session.EventHeraldKill,
	session.EventMultikill,
}

// Label returns the display name of an event type
func Label(eventType string) string {
	if l, ok := EventLabels[eventType]; ok {
		return l
	}
	return eventType
}

// Icon returns the icon key of an event type
func Icon(eventType string) string {
	if icon, ok := eventIcons[eventType]; ok {
		return icon
	}
	return IconKill
}

// KDAIcon picks the icon of a kill from the player's point of view
func KDAIcon(e session.GameEvent, player string) string {
	switch {
	case e.VictimName == player:
		return IconKDADeath
	case e.KillerName == player:
		return IconKDAKill
	case contains(e.Assisters, player):
		return IconKDAAssist
	default:
		return IconKDAKill
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
