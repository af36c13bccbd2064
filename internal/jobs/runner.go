// Package jobs executes queued background work and schedules its periodic
// enqueueing.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"timeclock/internal/attendance"
	"timeclock/internal/payroll"
	"timeclock/internal/queue"
	"timeclock/internal/timeclock"
)

// ErrUnknownJob is returned for messages of an unrecognized type.
var ErrUnknownJob = errors.New("unknown job type")

// Rebuilder rebuilds sessions from the punch log.
type Rebuilder interface {
	RebuildSessions(ctx context.Context, lookbackDays int) (attendance.RebuildResult, error)
}

// PayrollGenerator writes payroll records.
type PayrollGenerator interface {
	GeneratePayroll(ctx context.Context, periodID string) (payroll.Summary, error)
	GenerateDue(ctx context.Context, today time.Time) ([]payroll.Summary, error)
}

// Runner executes queue messages one at a time.
type Runner struct {
	rebuild Rebuilder
	payroll PayrollGenerator
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner creates a runner. A nil logger uses slog.Default.
func NewRunner(rebuild Rebuilder, pay PayrollGenerator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{rebuild: rebuild, payroll: pay, logger: logger, now: time.Now}
}

// Run handles messages until msgs closes. Job failures are logged and do not
// stop the loop; the next scheduled run retries.
func (r *Runner) Run(ctx context.Context, msgs <-chan queue.Message) {
	for msg := range msgs {
		if err := r.Handle(ctx, msg); err != nil {
			r.logger.Error("job failed", "type", msg.Type, "error", err)
		}
	}
}

// Handle executes a single message.
func (r *Runner) Handle(ctx context.Context, msg queue.Message) error {
	log := r.logger.With("type", msg.Type)
	switch msg.Type {
	case queue.TypeRebuild:
		var job queue.RebuildJob
		if err := msg.Decode(&job); err != nil {
			return err
		}
		res, err := r.rebuild.RebuildSessions(ctx, job.Days)
		if err != nil {
			return err
		}
		log.Info("rebuild job done", "groups", res.GroupsProcessed, "sessions", res.SessionsWritten, "warnings", res.WarningsWritten)
		return nil

	case queue.TypePayroll:
		var job queue.PayrollJob
		if err := msg.Decode(&job); err != nil {
			return err
		}
		if job.PeriodID == "" {
			return fmt.Errorf("payroll job without period id")
		}
		sum, err := r.payroll.GeneratePayroll(ctx, job.PeriodID)
		if err != nil {
			return err
		}
		log.Info("payroll job done", "period_id", sum.PeriodID, "records", sum.RecordsWritten, "skipped", sum.Skipped)
		return nil

	case queue.TypePayrollDue:
		var job queue.PayrollDueJob
		if err := msg.Decode(&job); err != nil {
			return err
		}
		today := r.now()
		if job.Today != "" {
			t, err := time.ParseInLocation(timeclock.DateLayout, job.Today, time.UTC)
			if err != nil {
				return fmt.Errorf("payroll-due job: bad date %q: %w", job.Today, err)
			}
			today = t
		}
		sums, err := r.payroll.GenerateDue(ctx, today)
		if err != nil {
			return err
		}
		written := 0
		for _, s := range sums {
			written += s.RecordsWritten
		}
		log.Info("payroll-due job done", "periods", len(sums), "records", written)
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.Type)
	}
}
