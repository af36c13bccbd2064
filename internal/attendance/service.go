// Package attendance rebuilds sessions and warnings from the punch log and
// accepts new punches into it.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"timeclock/internal/metrics"
	"timeclock/internal/timeclock"
)

// DefaultLookbackDays is used when a rebuild is requested without a window.
const DefaultLookbackDays = 30

// ErrInvalidEvent is returned by Ingest for punches missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// RebuildResult reports what one rebuild run did. It is for observability;
// correctness does not depend on it.
type RebuildResult struct {
	GroupsProcessed int `json:"processedGroups"`
	SessionsWritten int `json:"sessionsWritten"`
	WarningsWritten int `json:"warningsWritten"`
	SkippedEvents   int `json:"skippedEvents"`
	LookbackDays    int `json:"daysBack"`
}

// Service coordinates punch ingestion and session reconstruction.
type Service struct {
	repo            Repository
	logger          *slog.Logger
	now             func() time.Time
	defaultLookback int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultLookback sets the window used when callers pass days <= 0.
func WithDefaultLookback(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.defaultLookback = days
		}
	}
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		logger:          slog.Default(),
		now:             time.Now,
		defaultLookback: DefaultLookbackDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest appends a punch to the event log. The action label is stored
// upper-cased and the source defaults to "form".
func (s *Service) Ingest(ctx context.Context, studentID string, ts time.Time, action, source string) (timeclock.RawEvent, error) {
	studentID = strings.TrimSpace(studentID)
	action = strings.TrimSpace(action)
	if studentID == "" || action == "" || ts.IsZero() {
		return timeclock.RawEvent{}, fmt.Errorf("%w: student, timestamp and action are required", ErrInvalidEvent)
	}
	if source == "" {
		source = "form"
	}

	evt := timeclock.RawEvent{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Timestamp: ts.UTC(),
		Action:    strings.ToUpper(action),
		Source:    source,
	}
	if err := s.repo.AppendEvent(ctx, evt); err != nil {
		return timeclock.RawEvent{}, fmt.Errorf("append event: %w", err)
	}
	metrics.EventsIngested.Inc()
	return evt, nil
}

// RebuildSessions replays every punch from UTC midnight lookbackDays ago and
// upserts the resulting sessions and warnings in one batch. Repeated runs
// with overlapping windows converge on the same rows.
func (s *Service) RebuildSessions(ctx context.Context, lookbackDays int) (res RebuildResult, err error) {
	began := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues("rebuild_sessions", metrics.Outcome(err)).
			Observe(time.Since(began).Seconds())
	}()

	if lookbackDays <= 0 {
		lookbackDays = s.defaultLookback
	}
	res.LookbackDays = lookbackDays
	// Whole UTC days only; a partly replayed day would turn a shift into a
	// lone clock-out.
	since := s.now().UTC().AddDate(0, 0, -lookbackDays).Truncate(24 * time.Hour)

	events, err := s.repo.EventsSince(ctx, since)
	if err != nil {
		return res, fmt.Errorf("load events since %s: %w", since.Format(time.RFC3339), err)
	}

	groups, skipped := timeclock.GroupEvents(events)
	if skipped > 0 {
		s.logger.Warn("skipping events without student or timestamp", "count", skipped)
		metrics.EventsSkipped.Add(float64(skipped))
	}
	res.GroupsProcessed = len(groups)
	res.SkippedEvents = skipped

	batch := NewSessionBatch(timeclock.ReconstructAll(groups))
	if !batch.Empty() {
		if err := s.repo.WriteSessionBatch(ctx, batch); err != nil {
			return res, fmt.Errorf("write session batch: %w", err)
		}
	}
	res.SessionsWritten = len(batch.Sessions)
	res.WarningsWritten = len(batch.Warnings)

	metrics.SessionsWritten.Add(float64(res.SessionsWritten))
	for _, w := range batch.Warnings {
		metrics.WarningsWritten.WithLabelValues(string(w.Issue)).Inc()
	}

	s.logger.Info("sessions rebuilt",
		"days_back", lookbackDays,
		"events", len(events),
		"groups", res.GroupsProcessed,
		"sessions", res.SessionsWritten,
		"warnings", res.WarningsWritten,
	)
	return res, nil
}
