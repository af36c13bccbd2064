package timeclock

import "time"

// Phase is the position of the per-day state machine.
type Phase int

const (
	Idle Phase = iota
	InSession
	OnBreak
)

func (p Phase) String() string {
	switch p {
	case InSession:
		return "in_session"
	case OnBreak:
		return "on_break"
	default:
		return "idle"
	}
}

// State is the machine value threaded through Step. It is copied, never
// shared, so every transition yields a fresh value.
type State struct {
	StudentID    string
	DateKey      string
	Phase        Phase
	SessionStart time.Time
	BreakStart   time.Time
	BreakTotal   time.Duration
	BreakCount   int
}

// NewState returns an Idle machine for one student-day.
func NewState(studentID, dateKey string) State {
	return State{StudentID: studentID, DateKey: dateKey}
}

// idle clears every accumulator while keeping the group identity.
func (s State) idle() State {
	return NewState(s.StudentID, s.DateKey)
}

// Step applies one classified punch and returns the next state along with
// any session or warnings the transition emits.
func Step(s State, kind ActionKind, ts time.Time) (State, *Session, []Warning) {
	switch kind {
	case ClockIn:
		// Latest clock-in wins: a still-open session is dropped silently.
		next := s.idle()
		next.Phase = InSession
		next.SessionStart = ts
		return next, nil, nil

	case BreakStart:
		s.BreakCount++
		if s.Phase == InSession {
			s.Phase = OnBreak
			s.BreakStart = ts
		}
		return s, nil, nil

	case BreakEnd:
		if s.Phase == OnBreak {
			s = s.closeBreak(ts)
		}
		return s, nil, nil

	case ClockOut:
		if s.Phase == Idle {
			return s, nil, []Warning{s.warn(ClockOutWithoutClockIn, ts)}
		}
		if s.Phase == OnBreak {
			s = s.closeBreak(ts)
		}
		gross := nonNegative(ts.Sub(s.SessionStart))
		session := &Session{
			StudentID:  s.StudentID,
			DateKey:    s.DateKey,
			ClockIn:    s.SessionStart,
			ClockOut:   ts,
			Gross:      gross,
			Break:      s.BreakTotal,
			Net:        nonNegative(gross - s.BreakTotal),
			BreakCount: s.BreakCount,
		}
		return s.idle(), session, nil
	}
	return s, nil, nil
}

// Finish reports what is left open once a day's events are exhausted.
func Finish(s State) []Warning {
	var warnings []Warning
	if s.Phase == OnBreak {
		warnings = append(warnings, s.warn(OpenBreak, s.BreakStart))
	}
	if s.Phase == InSession || s.Phase == OnBreak {
		warnings = append(warnings, s.warn(OpenSession, s.SessionStart))
	}
	return warnings
}

func (s State) closeBreak(ts time.Time) State {
	s.BreakTotal += nonNegative(ts.Sub(s.BreakStart))
	s.BreakStart = time.Time{}
	s.Phase = InSession
	return s
}

func (s State) warn(issue IssueKind, anchor time.Time) Warning {
	return Warning{StudentID: s.StudentID, DateKey: s.DateKey, Issue: issue, Anchor: anchor}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
