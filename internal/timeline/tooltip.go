package timeline

import (
	"fmt"
	"strings"

	"ghostreplay/internal/session"
)

// Tooltip renders the hover text of a group, e.g. "2x Kill @ 35.4s"
// followed by one line per kill
func Tooltip(g GroupedEvent, kdaMode bool, player string) string {
	var b strings.Builder
	if g.Count > 1 {
		fmt.Fprintf(&b, "%dx ", g.Count)
	}
	fmt.Fprintf(&b, "%s @ %.1fs", Label(g.EventType), g.VideoTime)

	if g.EventType != session.EventChampionKill || len(g.Events) == 0 {
		return b.String()
	}

	for _, e := range g.Events {
		var line string
		if kdaMode && player != "" {
			line = kdaLine(e, player)
		} else {
			line = killLine(e)
		}
		if line == "" {
			line = fmt.Sprintf("Kill @ %.1fs", e.EventTime)
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

func killLine(e session.GameEvent) string {
	switch {
	case e.KillerChampion != "" && e.VictimChampion != "":
		return e.KillerChampion + " killed " + e.VictimChampion + assistedBy(e.AssisterChampions)
	case e.KillerName != "" && e.VictimName != "":
		return e.KillerName + " killed " + e.VictimName + assistedBy(e.Assisters)
	default:
		return ""
	}
}

func kdaLine(e session.GameEvent, player string) string {
	var line string
	switch {
	case e.VictimName == player:
		line = "YOU died to " + e.KillerDisplay()
	case e.KillerName == player:
		line = "YOU killed " + e.VictimDisplay()
	case contains(e.Assisters, player):
		line = "YOU assisted: " + e.KillerDisplay() + " killed " + e.VictimDisplay()
	}
	if line == "" {
		return ""
	}

	switch {
	case e.KillerName == player:
		line += assistedBy(e.AssisterChampions)
	case e.VictimName == player:
		others := make([]string, 0, len(e.Assisters))
		for _, a := range e.Assisters {
			if a != player {
				others = append(others, a)
			}
		}
		line += assistedBy(others)
	}
	return line
}

func assistedBy(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return " (assisted by " + strings.Join(names, ", ") + ")"
}
