package timeclock

import (
	"sort"
)

// Group holds every punch of one student on one UTC calendar day.
type Group struct {
	StudentID string
	DateKey   string
	Events    []RawEvent
}

// Key identifies the group as studentID||date.
func (g Group) Key() string {
	return g.StudentID + "||" + g.DateKey
}

// Result is the output of replaying one or more groups.
type Result struct {
	Sessions []Session
	Warnings []Warning
}

// GroupEvents partitions events by student and UTC day and sorts each group
// chronologically. Events without a student or timestamp cannot be placed
// and are counted in skipped. Groups come back ordered by key.
func GroupEvents(events []RawEvent) (groups []Group, skipped int) {
	byKey := make(map[string]*Group)
	for _, ev := range events {
		if ev.StudentID == "" || ev.Timestamp.IsZero() {
			skipped++
			continue
		}
		g := Group{StudentID: ev.StudentID, DateKey: DateKey(ev.Timestamp)}
		existing, ok := byKey[g.Key()]
		if !ok {
			existing = &g
			byKey[g.Key()] = existing
		}
		existing.Events = append(existing.Events, ev)
	}

	groups = make([]Group, 0, len(byKey))
	for _, g := range byKey {
		sort.SliceStable(g.Events, func(i, j int) bool {
			return g.Events[i].Timestamp.Before(g.Events[j].Timestamp)
		})
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key() < groups[j].Key()
	})
	return groups, skipped
}

// Reconstruct folds a sorted group through the state machine. A day yields
// at most one session: when the day holds several completed spans the last
// one is kept, matching the one-session-per-day storage key.
func Reconstruct(g Group) Result {
	state := NewState(g.StudentID, g.DateKey)
	var res Result
	var last *Session
	for _, ev := range g.Events {
		next, session, warnings := Step(state, Classify(ev.Action), ev.Timestamp)
		state = next
		if session != nil {
			last = session
		}
		res.Warnings = append(res.Warnings, warnings...)
	}
	res.Warnings = append(res.Warnings, Finish(state)...)
	if last != nil {
		res.Sessions = []Session{*last}
	}
	return res
}

// ReconstructAll replays every group independently and concatenates the
// results in group order.
func ReconstructAll(groups []Group) Result {
	var all Result
	for _, g := range groups {
		res := Reconstruct(g)
		all.Sessions = append(all.Sessions, res.Sessions...)
		all.Warnings = append(all.Warnings, res.Warnings...)
	}
	return all
}
