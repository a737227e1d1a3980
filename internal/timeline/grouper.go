package timeline

import (
	"math"
	"sort"

	"ghostreplay/internal/session"
	"ghostreplay/internal/timesync"
)

// GroupWindow is the maximum distance in video seconds between an event and
// the start of the group it joins
const GroupWindow = 20.0

// Filter selects which events are placed on the timeline
type Filter struct {
	// VisibleTypes lists the event types to show; empty means DefaultVisible
	VisibleTypes []string

	// KDAOnly keeps only kills in which PlayerName took part
	KDAOnly    bool
	PlayerName string

	// MidGame drops the historical dump: events captured less than a second
	// after RecordingStartTime, or never captured live
	MidGame            bool
	RecordingStartTime int64
}

// kdaActive reports whether KDA filtering applies
func (f Filter) kdaActive() bool {
	return f.KDAOnly && f.PlayerName != ""
}

// GroupedEvent is a cluster of same-type events shown as one marker
type GroupedEvent struct {
	EventType string              `json:"eventType"`
	Events    []session.GameEvent `json:"events"`
	VideoTime float64             `json:"videoTime"`
	Count     int                 `json:"count"`
	Icon      string              `json:"icon"`
}

// Group clusters events into timeline markers, ordered by video time.
// An event joins the first earlier group of the same type whose start is
// within GroupWindow of its video time; a group's start is its earliest member.
func Group(events []session.GameEvent, filter Filter, offset float64) []GroupedEvent {
	selected := Select(events, filter)
	if len(selected) == 0 {
		return []GroupedEvent{}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].EventTime < selected[j].EventTime
	})

	groups := make([]GroupedEvent, 0, len(selected))
	for _, e := range selected {
		vt := timesync.VideoTime(e.EventTime, offset)

		joined := false
		for i := range groups {
			g := &groups[i]
			if g.EventType != e.EventName || math.Abs(vt-g.VideoTime) > GroupWindow {
				continue
			}
			g.Events = append(g.Events, e)
			g.Count = len(g.Events)
			g.VideoTime = math.Min(g.VideoTime, vt)
			joined = true
			break
		}
		if joined {
			continue
		}

		icon := Icon(e.EventName)
		if filter.kdaActive() && e.IsKill() {
			icon = KDAIcon(e, filter.PlayerName)
		}
		groups = append(groups, GroupedEvent{
			EventType: e.EventName,
			Events:    []session.GameEvent{e},
			VideoTime: vt,
			Count:     1,
			Icon:      icon,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].VideoTime < groups[j].VideoTime
	})
	return groups
}

// Select applies the visibility, historical-dump and KDA filters
func Select(events []session.GameEvent, filter Filter) []session.GameEvent {
	visible := filter.VisibleTypes
	if len(visible) == 0 {
		visible = DefaultVisible
	}
	allowed := make(map[string]bool, len(visible))
	for _, t := range visible {
		allowed[t] = true
	}

	dropHistorical := filter.MidGame && filter.RecordingStartTime > 0

	out := make([]session.GameEvent, 0, len(events))
	for _, e := range events {
		if !allowed[e.EventName] || e.EventTime < 0 {
			continue
		}
		if dropHistorical {
			if !e.HasCapturedAt() || e.CapturedAt-filter.RecordingStartTime < timesync.LiveCaptureThreshold {
				continue
			}
		}
		if filter.kdaActive() && !(e.IsKill() && e.Involves(filter.PlayerName)) {
			continue
		}
		out = append(out, e)
	}
	return out
}
