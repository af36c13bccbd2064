// Package timeclock turns raw timeclock punches into per-day work sessions
// and anomaly warnings.
package timeclock

import "time"

// DateLayout is the calendar-day key format used for grouping and storage.
const DateLayout = "2006-01-02"

// RawEvent is a single punch as recorded by the ingestion source. Events are
// append-only and never modified.
type RawEvent struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Source    string    `json:"source"`
}

// Session is one completed clock-in to clock-out span.
type Session struct {
	StudentID  string        `json:"student_id"`
	DateKey    string        `json:"date"`
	ClockIn    time.Time     `json:"clock_in"`
	ClockOut   time.Time     `json:"clock_out"`
	Gross      time.Duration `json:"gross"`
	Break      time.Duration `json:"break"`
	Net        time.Duration `json:"net"`
	BreakCount int           `json:"break_count"`
}

// IssueKind names an anomaly found while replaying a day.
type IssueKind string

const (
	ClockOutWithoutClockIn IssueKind = "Clock Out Without Clock In"
	OpenSession            IssueKind = "Open Session (No Clock Out)"
	OpenBreak              IssueKind = "Open Break (No Break End)"
)

// Warning records an anomaly in the punch stream. Warnings are output, not
// failures; a day may carry several.
type Warning struct {
	StudentID string    `json:"student_id"`
	DateKey   string    `json:"date"`
	Issue     IssueKind `json:"issue"`
	Anchor    time.Time `json:"anchor"`
}

// DateKey returns the UTC calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
