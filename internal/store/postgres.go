package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"timeclock/internal/attendance"
	"timeclock/internal/payroll"
	"timeclock/internal/timeclock"
)

// Postgres implements the attendance and payroll repositories on top of a
// Postgres database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a repository over an open pool.
func NewPostgres(db *DB) *Postgres {
	return &Postgres{db: db.Client}
}

// AppendEvent inserts one raw punch.
func (p *Postgres) AppendEvent(ctx context.Context, evt timeclock.RawEvent) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO timeclock_events (id, student_id, occurred_at, action, source)
		VALUES ($1, $2, $3, $4, $5)
	`, evt.ID, evt.StudentID, evt.Timestamp, evt.Action, evt.Source)
	return err
}

// EventsSince returns punches at or after since, oldest first.
func (p *Postgres) EventsSince(ctx context.Context, since time.Time) ([]timeclock.RawEvent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, student_id, occurred_at, action, source
		FROM timeclock_events
		WHERE occurred_at >= $1
		ORDER BY occurred_at ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []timeclock.RawEvent
	for rows.Next() {
		var evt timeclock.RawEvent
		if err := rows.Scan(&evt.ID, &evt.StudentID, &evt.Timestamp, &evt.Action, &evt.Source); err != nil {
			return nil, err
		}
		evt.Timestamp = evt.Timestamp.UTC()
		events = append(events, evt)
	}
	return events, rows.Err()
}

// WriteSessionBatch upserts sessions and warnings in one transaction.
func (p *Postgres) WriteSessionBatch(ctx context.Context, batch attendance.SessionBatch) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		for _, s := range batch.Sessions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sessions (id, student_id, date_key, clock_in, clock_out, gross_ms, break_ms, net_ms, break_count, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
				ON CONFLICT (id) DO UPDATE SET
					student_id = EXCLUDED.student_id,
					date_key = EXCLUDED.date_key,
					clock_in = EXCLUDED.clock_in,
					clock_out = EXCLUDED.clock_out,
					gross_ms = EXCLUDED.gross_ms,
					break_ms = EXCLUDED.break_ms,
					net_ms = EXCLUDED.net_ms,
					break_count = EXCLUDED.break_count,
					updated_at = NOW()
			`, s.ID, s.StudentID, s.DateKey, s.ClockIn, s.ClockOut,
				s.Gross.Milliseconds(), s.Break.Milliseconds(), s.Net.Milliseconds(), s.BreakCount); err != nil {
				return fmt.Errorf("upsert session %s: %w", s.ID, err)
			}
		}
		for _, w := range batch.Warnings {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO warnings (id, student_id, date_key, issue, anchor_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
				ON CONFLICT (id) DO UPDATE SET
					issue = EXCLUDED.issue,
					anchor_at = EXCLUDED.anchor_at,
					updated_at = NOW()
			`, w.ID, w.StudentID, w.DateKey, string(w.Issue), w.Anchor); err != nil {
				return fmt.Errorf("upsert warning %s: %w", w.ID, err)
			}
		}
		return nil
	})
}

// PayPeriod loads one period by ID.
func (p *Postgres) PayPeriod(ctx context.Context, id string) (payroll.PayPeriod, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, start_date, end_date, hourly_rate, display
		FROM pay_periods WHERE id = $1
	`, id)
	period, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.PayPeriod{}, fmt.Errorf("%w: %s", payroll.ErrPeriodNotFound, id)
	}
	return period, err
}

// PeriodsEndingBy lists periods whose end date is at or before t.
func (p *Postgres) PeriodsEndingBy(ctx context.Context, t time.Time) ([]payroll.PayPeriod, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, start_date, end_date, hourly_rate, display
		FROM pay_periods
		WHERE end_date <= $1
		ORDER BY end_date ASC
	`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []payroll.PayPeriod
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, rows.Err()
}

// UpsertPayPeriods writes periods in one transaction, replacing existing ones.
func (p *Postgres) UpsertPayPeriods(ctx context.Context, periods []payroll.PayPeriod) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		for _, period := range periods {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pay_periods (id, start_date, end_date, hourly_rate, display)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET
					start_date = EXCLUDED.start_date,
					end_date = EXCLUDED.end_date,
					hourly_rate = EXCLUDED.hourly_rate,
					display = EXCLUDED.display
			`, period.ID, period.StartDate, period.EndDate, period.HourlyRate, period.Display); err != nil {
				return fmt.Errorf("upsert pay period %s: %w", period.ID, err)
			}
		}
		return nil
	})
}

// SessionsBetween returns sessions whose date key is within [startKey, endKey].
func (p *Postgres) SessionsBetween(ctx context.Context, startKey, endKey string) ([]timeclock.Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT student_id, date_key, clock_in, clock_out, gross_ms, break_ms, net_ms, break_count
		FROM sessions
		WHERE date_key >= $1 AND date_key <= $2
		ORDER BY student_id, date_key
	`, startKey, endKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []timeclock.Session
	for rows.Next() {
		var s timeclock.Session
		var grossMs, breakMs, netMs int64
		if err := rows.Scan(&s.StudentID, &s.DateKey, &s.ClockIn, &s.ClockOut, &grossMs, &breakMs, &netMs, &s.BreakCount); err != nil {
			return nil, err
		}
		s.Gross = time.Duration(grossMs) * time.Millisecond
		s.Break = time.Duration(breakMs) * time.Millisecond
		s.Net = time.Duration(netMs) * time.Millisecond
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// WarningsBetween returns warnings whose date key is within [startKey, endKey].
func (p *Postgres) WarningsBetween(ctx context.Context, startKey, endKey string) ([]timeclock.Warning, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT student_id, date_key, issue, anchor_at
		FROM warnings
		WHERE date_key >= $1 AND date_key <= $2
		ORDER BY student_id, date_key, anchor_at
	`, startKey, endKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warnings []timeclock.Warning
	for rows.Next() {
		var w timeclock.Warning
		var issue string
		if err := rows.Scan(&w.StudentID, &w.DateKey, &issue, &w.Anchor); err != nil {
			return nil, err
		}
		w.Issue = timeclock.IssueKind(issue)
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// ApprovedRewards returns approved purchases created within [start, end].
func (p *Postgres) ApprovedRewards(ctx context.Context, start, end time.Time) ([]payroll.RewardPurchase, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, student_id, reward_id, reward_name, cost, status, created_at
		FROM reward_purchases
		WHERE status = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC, id ASC
	`, payroll.StatusApproved, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rewards []payroll.RewardPurchase
	for rows.Next() {
		var r payroll.RewardPurchase
		if err := rows.Scan(&r.ID, &r.StudentID, &r.RewardID, &r.RewardName, &r.Cost, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

// RewardSpend totals every approved purchase of a student.
func (p *Postgres) RewardSpend(ctx context.Context, studentID string) (float64, error) {
	var total float64
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost), 0)
		FROM reward_purchases
		WHERE student_id = $1 AND status = $2
	`, studentID, payroll.StatusApproved).Scan(&total)
	return total, err
}

// WritePayrollBatch upserts one period's records in one transaction.
func (p *Postgres) WritePayrollBatch(ctx context.Context, records []payroll.Record) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range records {
			items, err := json.Marshal(r.RewardItems)
			if err != nil {
				return fmt.Errorf("encode reward items for %s: %w", r.ID, err)
			}
			var periodEnd any
			if !r.PeriodEnd.IsZero() {
				periodEnd = r.PeriodEnd
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO payroll (id, student_id, period_id, period_end, net_hours, paid_hours, gross_pay,
					warning_count, warning_deduction, reward_deduction, deductions, net_pay, reward_items, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
				ON CONFLICT (id) DO UPDATE SET
					period_end = EXCLUDED.period_end,
					net_hours = EXCLUDED.net_hours,
					paid_hours = EXCLUDED.paid_hours,
					gross_pay = EXCLUDED.gross_pay,
					warning_count = EXCLUDED.warning_count,
					warning_deduction = EXCLUDED.warning_deduction,
					reward_deduction = EXCLUDED.reward_deduction,
					deductions = EXCLUDED.deductions,
					net_pay = EXCLUDED.net_pay,
					reward_items = EXCLUDED.reward_items,
					updated_at = NOW()
			`, r.ID, r.StudentID, r.PeriodID, periodEnd, r.NetHours, r.PaidHours, r.GrossPay,
				r.WarningCount, r.WarningDeduction, r.RewardDeduction, r.Deductions, r.NetPay, string(items)); err != nil {
				return fmt.Errorf("upsert payroll %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// PayrollForStudent lists a student's records, newest period first.
func (p *Postgres) PayrollForStudent(ctx context.Context, studentID string) ([]payroll.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, student_id, period_id, period_end, net_hours, paid_hours, gross_pay,
			warning_count, warning_deduction, reward_deduction, deductions, net_pay, reward_items
		FROM payroll
		WHERE student_id = $1
		ORDER BY period_end DESC NULLS LAST
		LIMIT 1000
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []payroll.Record
	for rows.Next() {
		var r payroll.Record
		var periodEnd sql.NullTime
		var items []byte
		if err := rows.Scan(&r.ID, &r.StudentID, &r.PeriodID, &periodEnd, &r.NetHours, &r.PaidHours, &r.GrossPay,
			&r.WarningCount, &r.WarningDeduction, &r.RewardDeduction, &r.Deductions, &r.NetPay, &items); err != nil {
			return nil, err
		}
		if periodEnd.Valid {
			r.PeriodEnd = periodEnd.Time.UTC()
		}
		if err := json.Unmarshal(items, &r.RewardItems); err != nil {
			return nil, fmt.Errorf("decode reward items for %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *Postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row rowScanner) (payroll.PayPeriod, error) {
	var period payroll.PayPeriod
	var start, end sql.NullTime
	var rate sql.NullFloat64
	if err := row.Scan(&period.ID, &start, &end, &rate, &period.Display); err != nil {
		return payroll.PayPeriod{}, err
	}
	if start.Valid {
		t := start.Time.UTC()
		period.StartDate = &t
	}
	if end.Valid {
		t := end.Time.UTC()
		period.EndDate = &t
	}
	if rate.Valid {
		r := rate.Float64
		period.HourlyRate = &r
	}
	return period, nil
}
