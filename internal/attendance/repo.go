package attendance

import (
	"context"
	"strconv"
	"strings"
	"time"

	"timeclock/internal/timeclock"
)

// EventLog is the append-only punch log.
type EventLog interface {
	AppendEvent(ctx context.Context, evt timeclock.RawEvent) error
	// EventsSince returns events with timestamp >= since, oldest first.
	EventsSince(ctx context.Context, since time.Time) ([]timeclock.RawEvent, error)
}

// SessionWriter persists rebuild output. A batch is applied all-or-nothing
// and every row overwrites any prior row with the same ID.
type SessionWriter interface {
	WriteSessionBatch(ctx context.Context, batch SessionBatch) error
}

// Repository is everything the attendance service needs from storage.
type Repository interface {
	EventLog
	SessionWriter
}

// StoredSession is a session under its deterministic storage key.
type StoredSession struct {
	ID string `json:"id"`
	timeclock.Session
}

// StoredWarning is a warning under its deterministic storage key.
type StoredWarning struct {
	ID string `json:"id"`
	timeclock.Warning
}

// SessionBatch is the full write set of one rebuild run.
type SessionBatch struct {
	Sessions []StoredSession
	Warnings []StoredWarning
}

// Empty reports whether the batch has nothing to write.
func (b SessionBatch) Empty() bool {
	return len(b.Sessions) == 0 && len(b.Warnings) == 0
}

// SessionKey is studentID_date; one session per student per day.
func SessionKey(s timeclock.Session) string {
	return s.StudentID + "_" + s.DateKey
}

// WarningKey is studentID_date_issue_anchorMillis, so re-runs that observe the
// same anomaly at the same instant converge on one row.
func WarningKey(w timeclock.Warning) string {
	return w.StudentID + "_" + w.DateKey + "_" + sanitizeIssue(w.Issue) + "_" +
		strconv.FormatInt(w.Anchor.UnixMilli(), 10)
}

func sanitizeIssue(issue timeclock.IssueKind) string {
	return strings.Join(strings.Fields(string(issue)), "_")
}

// NewSessionBatch keys a reconstruction result. Rows sharing a key collapse
// to the last one computed, in first-seen order.
func NewSessionBatch(res timeclock.Result) SessionBatch {
	var batch SessionBatch

	sessionAt := make(map[string]int)
	for _, s := range res.Sessions {
		row := StoredSession{ID: SessionKey(s), Session: s}
		if i, ok := sessionAt[row.ID]; ok {
			batch.Sessions[i] = row
			continue
		}
		sessionAt[row.ID] = len(batch.Sessions)
		batch.Sessions = append(batch.Sessions, row)
	}

	warningAt := make(map[string]int)
	for _, w := range res.Warnings {
		row := StoredWarning{ID: WarningKey(w), Warning: w}
		if i, ok := warningAt[row.ID]; ok {
			batch.Warnings[i] = row
			continue
		}
		warningAt[row.ID] = len(batch.Warnings)
		batch.Warnings = append(batch.Warnings, row)
	}
	return batch
}
