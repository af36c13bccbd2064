package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"timeclock/internal/attendance"
	"timeclock/internal/payroll"
	"timeclock/internal/timeclock"
)

// Memory is an in-process repository for local runs and tests. Batches are
// applied under one lock, so readers never see half of a batch.
type Memory struct {
	mu       sync.RWMutex
	events   []timeclock.RawEvent
	sessions map[string]attendance.StoredSession
	warnings map[string]attendance.StoredWarning
	periods  map[string]payroll.PayPeriod
	rewards  []payroll.RewardPurchase
	payroll  map[string]payroll.Record
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]attendance.StoredSession),
		warnings: make(map[string]attendance.StoredWarning),
		periods:  make(map[string]payroll.PayPeriod),
		payroll:  make(map[string]payroll.Record),
	}
}

// Healthy always reports true.
func (m *Memory) Healthy(context.Context) bool { return true }

func (m *Memory) AppendEvent(_ context.Context, evt timeclock.RawEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *Memory) EventsSince(_ context.Context, since time.Time) ([]timeclock.RawEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []timeclock.RawEvent
	for _, evt := range m.events {
		if !evt.Timestamp.Before(since) {
			out = append(out, evt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) WriteSessionBatch(_ context.Context, batch attendance.SessionBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range batch.Sessions {
		if s.ID == "" {
			return fmt.Errorf("session for %s on %s has no id", s.StudentID, s.DateKey)
		}
	}
	for _, w := range batch.Warnings {
		if w.ID == "" {
			return fmt.Errorf("warning for %s on %s has no id", w.StudentID, w.DateKey)
		}
	}
	for _, s := range batch.Sessions {
		m.sessions[s.ID] = s
	}
	for _, w := range batch.Warnings {
		m.warnings[w.ID] = w
	}
	return nil
}

// PutPayPeriod stores or replaces a period.
func (m *Memory) PutPayPeriod(p payroll.PayPeriod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[p.ID] = p
}

// UpsertPayPeriods stores or replaces each period.
func (m *Memory) UpsertPayPeriods(_ context.Context, periods []payroll.PayPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range periods {
		m.periods[p.ID] = p
	}
	return nil
}

// PutRewardPurchase records a purchase.
func (m *Memory) PutRewardPurchase(r payroll.RewardPurchase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards = append(m.rewards, r)
}

func (m *Memory) PayPeriod(_ context.Context, id string) (payroll.PayPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.periods[id]
	if !ok {
		return payroll.PayPeriod{}, fmt.Errorf("%w: %s", payroll.ErrPeriodNotFound, id)
	}
	return p, nil
}

func (m *Memory) PeriodsEndingBy(_ context.Context, t time.Time) ([]payroll.PayPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.PayPeriod
	for _, p := range m.periods {
		if p.EndDate != nil && !p.EndDate.After(t) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndDate.Equal(*out[j].EndDate) {
			return out[i].EndDate.Before(*out[j].EndDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SessionsBetween(_ context.Context, startKey, endKey string) ([]timeclock.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []timeclock.Session
	for _, s := range m.sessions {
		if s.DateKey >= startKey && s.DateKey <= endKey {
			out = append(out, s.Session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentID != out[j].StudentID {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].DateKey < out[j].DateKey
	})
	return out, nil
}

func (m *Memory) WarningsBetween(_ context.Context, startKey, endKey string) ([]timeclock.Warning, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.warnings))
	for id, w := range m.warnings {
		if w.DateKey >= startKey && w.DateKey <= endKey {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]timeclock.Warning, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.warnings[id].Warning)
	}
	return out, nil
}

func (m *Memory) ApprovedRewards(_ context.Context, start, end time.Time) ([]payroll.RewardPurchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.RewardPurchase
	for _, r := range m.rewards {
		if r.Status != payroll.StatusApproved {
			continue
		}
		if r.CreatedAt.Before(start) || r.CreatedAt.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) RewardSpend(_ context.Context, studentID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, r := range m.rewards {
		if r.StudentID == studentID && r.Status == payroll.StatusApproved {
			total += r.Cost
		}
	}
	return total, nil
}

func (m *Memory) WritePayrollBatch(_ context.Context, records []payroll.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("payroll record for %s has no id", r.StudentID)
		}
	}
	for _, r := range records {
		m.payroll[r.ID] = r
	}
	return nil
}

func (m *Memory) PayrollForStudent(_ context.Context, studentID string) ([]payroll.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.Record
	for _, r := range m.payroll {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodEnd.Equal(out[j].PeriodEnd) {
			return out[i].PeriodEnd.After(out[j].PeriodEnd)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Sessions returns a snapshot of stored sessions keyed by ID.
func (m *Memory) Sessions() map[string]attendance.StoredSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]attendance.StoredSession, len(m.sessions))
	for k, v := range m.sessions {
		out[k] = v
	}
	return out
}

// Warnings returns a snapshot of stored warnings keyed by ID.
func (m *Memory) Warnings() map[string]attendance.StoredWarning {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]attendance.StoredWarning, len(m.warnings))
	for k, v := range m.warnings {
		out[k] = v
	}
	return out
}

// Payroll returns a snapshot of stored payroll records keyed by ID.
func (m *Memory) Payroll() map[string]payroll.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]payroll.Record, len(m.payroll))
	for k, v := range m.payroll {
		out[k] = v
	}
	return out
}
