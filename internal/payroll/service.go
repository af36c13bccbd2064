package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"timeclock/internal/metrics"
	"timeclock/internal/timeclock"
)

// ErrPeriodNotFound is returned when a requested pay period does not exist.
var ErrPeriodNotFound = errors.New("pay period not found")

// Source is the read side payroll generation depends on.
type Source interface {
	// PayPeriod returns ErrPeriodNotFound (possibly wrapped) for unknown IDs.
	PayPeriod(ctx context.Context, id string) (PayPeriod, error)
	PeriodsEndingBy(ctx context.Context, t time.Time) ([]PayPeriod, error)
	// SessionsBetween and WarningsBetween filter by date key, inclusive.
	SessionsBetween(ctx context.Context, startKey, endKey string) ([]timeclock.Session, error)
	WarningsBetween(ctx context.Context, startKey, endKey string) ([]timeclock.Warning, error)
	// ApprovedRewards filters approved purchases by creation instant, inclusive.
	ApprovedRewards(ctx context.Context, start, end time.Time) ([]RewardPurchase, error)
	RewardSpend(ctx context.Context, studentID string) (float64, error)
	PayrollForStudent(ctx context.Context, studentID string) ([]Record, error)
}

// Writer persists payroll records all-or-nothing, overwriting by record ID.
type Writer interface {
	WritePayrollBatch(ctx context.Context, records []Record) error
}

// Repository is everything the payroll service needs from storage.
type Repository interface {
	Source
	Writer
}

// Summary describes the outcome of generating one period.
type Summary struct {
	PeriodID       string `json:"periodId"`
	RecordsWritten int    `json:"recordsWritten"`
	Skipped        bool   `json:"skipped"`
	Reason         string `json:"reason,omitempty"`
}

// Balance is a student's reward bank.
type Balance struct {
	StudentID        string  `json:"studentId"`
	TotalGross       float64 `json:"totalGross"`
	TotalRewardSpend float64 `json:"totalRewardSpend"`
	Balance          float64 `json:"balance"`
}

// Service generates payroll records.
type Service struct {
	repo   Repository
	cfg    Config
	logger *slog.Logger
}

// NewService creates a payroll service. A nil logger uses slog.Default.
func NewService(repo Repository, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultHourlyRate <= 0 {
		cfg.DefaultHourlyRate = DefaultHourlyRate
	}
	return &Service{repo: repo, cfg: cfg, logger: logger}
}

// GeneratePayroll computes and writes the records of one period. A period
// without both dates is skipped without error. Re-running overwrites the
// same records.
func (s *Service) GeneratePayroll(ctx context.Context, periodID string) (Summary, error) {
	period, err := s.repo.PayPeriod(ctx, periodID)
	if err != nil {
		return Summary{PeriodID: periodID}, fmt.Errorf("load pay period %q: %w", periodID, err)
	}
	return s.generate(ctx, period)
}

// GenerateDue generates every period whose last day finished before the UTC
// day of today. One period's failure to write aborts the run; periods with
// bad dates are skipped.
func (s *Service) GenerateDue(ctx context.Context, today time.Time) ([]Summary, error) {
	cutoff := today.UTC().Truncate(24 * time.Hour)
	loaded, err := s.repo.PeriodsEndingBy(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("load periods ending by %s: %w", timeclock.DateKey(cutoff), err)
	}
	// End dates sit at midnight of the last day, which is still taking punches
	// when it equals cutoff.
	periods := loaded[:0]
	for _, p := range loaded {
		if p.EndDate != nil && !p.EndDate.Before(cutoff) {
			continue
		}
		periods = append(periods, p)
	}
	if len(periods) == 0 {
		s.logger.Info("no pay periods due", "cutoff", timeclock.DateKey(cutoff))
		return nil, nil
	}

	summaries := make([]Summary, 0, len(periods))
	for _, p := range periods {
		sum, err := s.generate(ctx, p)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

func (s *Service) generate(ctx context.Context, period PayPeriod) (sum Summary, err error) {
	began := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues("generate_payroll", metrics.Outcome(err)).
			Observe(time.Since(began).Seconds())
	}()

	sum.PeriodID = period.ID
	log := s.logger.With("period_id", period.ID)

	start, end, startKey, endKey, ok := period.Bounds()
	if !ok {
		log.Warn("skipping pay period: missing start/end")
		metrics.PayrollPeriodsSkipped.WithLabelValues("missing_dates").Inc()
		sum.Skipped, sum.Reason = true, "missing start/end"
		return sum, nil
	}
	rate := period.Rate(s.cfg.DefaultHourlyRate)
	log.Info("processing pay period", "start", startKey, "end", endKey, "hourly_rate", rate)

	sessions, err := s.repo.SessionsBetween(ctx, startKey, endKey)
	if err != nil {
		return sum, fmt.Errorf("load sessions for %s: %w", period.ID, err)
	}
	warnings, err := s.repo.WarningsBetween(ctx, startKey, endKey)
	if err != nil {
		return sum, fmt.Errorf("load warnings for %s: %w", period.ID, err)
	}
	rewards, err := s.repo.ApprovedRewards(ctx, start, end)
	if err != nil {
		return sum, fmt.Errorf("load rewards for %s: %w", period.ID, err)
	}

	records := Aggregate(period, sessions, warnings, rewards, s.cfg)
	if len(records) == 0 {
		log.Info("no sessions in pay period, nothing written")
		metrics.PayrollPeriodsSkipped.WithLabelValues("no_sessions").Inc()
		sum.Skipped, sum.Reason = true, "no sessions"
		return sum, nil
	}

	if err := s.repo.WritePayrollBatch(ctx, records); err != nil {
		return sum, fmt.Errorf("write payroll for %s: %w", period.ID, err)
	}
	sum.RecordsWritten = len(records)
	metrics.PayrollRecordsWritten.Add(float64(len(records)))
	log.Info("payroll written", "records", len(records))
	return sum, nil
}

// Balance sums gross pay from records whose period ended on or after since
// (all records when since is nil), less approved reward spend. The balance
// never drops below zero.
func (s *Service) Balance(ctx context.Context, studentID string, since *time.Time) (Balance, error) {
	bal := Balance{StudentID: studentID}
	if studentID == "" {
		return bal, nil
	}

	spend, err := s.repo.RewardSpend(ctx, studentID)
	if err != nil {
		return bal, fmt.Errorf("load reward spend: %w", err)
	}
	records, err := s.repo.PayrollForStudent(ctx, studentID)
	if err != nil {
		return bal, fmt.Errorf("load payroll records: %w", err)
	}

	for _, r := range records {
		if since != nil && !r.PeriodEnd.IsZero() && r.PeriodEnd.Before(*since) {
			continue
		}
		bal.TotalGross += r.GrossPay
	}
	bal.TotalGross = Round2(bal.TotalGross)
	bal.TotalRewardSpend = Round2(spend)
	bal.Balance = Round2(max(0, bal.TotalGross-bal.TotalRewardSpend))
	return bal, nil
}
