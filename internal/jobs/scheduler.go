package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"timeclock/internal/queue"
	"timeclock/internal/timeclock"
)

// Publisher enqueues messages.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Entry is a message published on a fixed interval.
type Entry struct {
	Name     string
	Interval time.Duration
	// Message builds the message for a tick at now.
	Message func(now time.Time) (queue.Message, error)
}

// RebuildEvery publishes a rebuild over the last days days.
func RebuildEvery(interval time.Duration, days int) Entry {
	return Entry{
		Name:     "rebuild-sessions",
		Interval: interval,
		Message: func(time.Time) (queue.Message, error) {
			return queue.NewMessage(queue.TypeRebuild, queue.RebuildJob{Days: days})
		},
	}
}

// PayrollDueEvery publishes a payroll run for every period ended by the tick's
// UTC day.
func PayrollDueEvery(interval time.Duration) Entry {
	return Entry{
		Name:     "generate-due-payroll",
		Interval: interval,
		Message: func(now time.Time) (queue.Message, error) {
			return queue.NewMessage(queue.TypePayrollDue, queue.PayrollDueJob{Today: timeclock.DateKey(now)})
		},
	}
}

// Scheduler publishes entries on their intervals.
type Scheduler struct {
	pub     Publisher
	entries []Entry
	logger  *slog.Logger
	now     func() time.Time
	onStart bool
}

// NewScheduler creates a scheduler. When runOnStart is set, every entry also
// fires once immediately.
func NewScheduler(pub Publisher, logger *slog.Logger, runOnStart bool, entries ...Entry) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{pub: pub, entries: entries, logger: logger, now: time.Now, onStart: runOnStart}
}

// Run blocks until ctx is done. Entries with a non-positive interval are
// disabled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		if e.Interval <= 0 {
			s.logger.Info("schedule disabled", "job", e.Name)
			continue
		}
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e Entry) {
	s.logger.Info("job scheduled", "job", e.Name, "schedule", "@every "+e.Interval.String())
	if s.onStart {
		s.fire(ctx, e)
	}
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, e)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, e Entry) {
	msg, err := e.Message(s.now().UTC())
	if err != nil {
		s.logger.Error("build job message failed", "job", e.Name, "error", err)
		return
	}
	if err := s.pub.Publish(ctx, msg); err != nil {
		if ctx.Err() == nil {
			s.logger.Error("publish job failed", "job", e.Name, "error", err)
		}
		return
	}
	s.logger.Debug("job published", "job", e.Name, "type", msg.Type)
}
