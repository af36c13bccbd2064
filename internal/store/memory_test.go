package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeclock/internal/attendance"
	"timeclock/internal/payroll"
	"timeclock/internal/timeclock"
)

func ts(d, h int) time.Time {
	return time.Date(2024, 6, d, h, 0, 0, 0, time.UTC)
}

func TestMemoryEventsSince(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, e := range []timeclock.RawEvent{
		{ID: "3", StudentID: "s", Timestamp: ts(3, 9)},
		{ID: "1", StudentID: "s", Timestamp: ts(1, 9)},
		{ID: "2", StudentID: "s", Timestamp: ts(2, 9)},
	} {
		require.NoError(t, m.AppendEvent(ctx, e))
	}

	events, err := m.EventsSince(ctx, ts(2, 9))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].ID)
	assert.Equal(t, "3", events[1].ID)
}

func TestMemorySessionBatchUpserts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	s := timeclock.Session{StudentID: "s", DateKey: "2024-06-01", Net: time.Hour}

	require.NoError(t, m.WriteSessionBatch(ctx, attendance.SessionBatch{
		Sessions: []attendance.StoredSession{{ID: "s_2024-06-01", Session: s}},
	}))
	s.Net = 2 * time.Hour
	require.NoError(t, m.WriteSessionBatch(ctx, attendance.SessionBatch{
		Sessions: []attendance.StoredSession{{ID: "s_2024-06-01", Session: s}},
	}))
	require.Len(t, m.Sessions(), 1)
	assert.Equal(t, 2*time.Hour, m.Sessions()["s_2024-06-01"].Net)
}

func TestMemoryBatchIsAllOrNothing(t *testing.T) {
	m := NewMemory()
	err := m.WriteSessionBatch(context.Background(), attendance.SessionBatch{
		Sessions: []attendance.StoredSession{{ID: "ok", Session: timeclock.Session{StudentID: "s"}}},
		Warnings: []attendance.StoredWarning{{Warning: timeclock.Warning{StudentID: "s"}}},
	})
	assert.Error(t, err)
	assert.Empty(t, m.Sessions())

	err = m.WritePayrollBatch(context.Background(), []payroll.Record{{ID: "a", StudentID: "a"}, {StudentID: "b"}})
	assert.Error(t, err)
	assert.Empty(t, m.Payroll())
}

func TestMemoryDateKeyRanges(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	batch := attendance.SessionBatch{}
	for _, date := range []string{"2024-05-31", "2024-06-01", "2024-06-14", "2024-06-15"} {
		batch.Sessions = append(batch.Sessions, attendance.StoredSession{
			ID:      "s_" + date,
			Session: timeclock.Session{StudentID: "s", DateKey: date},
		})
		batch.Warnings = append(batch.Warnings, attendance.StoredWarning{
			ID:      "w_" + date,
			Warning: timeclock.Warning{StudentID: "s", DateKey: date, Issue: timeclock.OpenSession},
		})
	}
	require.NoError(t, m.WriteSessionBatch(ctx, batch))

	sessions, err := m.SessionsBetween(ctx, "2024-06-01", "2024-06-14")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2024-06-01", sessions[0].DateKey)
	assert.Equal(t, "2024-06-14", sessions[1].DateKey)

	warnings, err := m.WarningsBetween(ctx, "2024-06-01", "2024-06-14")
	require.NoError(t, err)
	assert.Len(t, warnings, 2)
}

func TestMemoryPeriodsAndRewards(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.UpsertPayPeriods(ctx, payroll.BuildPeriods(ts(1, 0), ts(15, 0), 15)))
	m.PutPayPeriod(payroll.PayPeriod{ID: "no-dates"})

	_, err := m.PayPeriod(ctx, "1999-01-01")
	assert.ErrorIs(t, err, payroll.ErrPeriodNotFound)

	due, err := m.PeriodsEndingBy(ctx, ts(28, 0))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "2024-06-14", due[0].ID)
	assert.Equal(t, "2024-06-28", due[1].ID)

	m.PutRewardPurchase(payroll.RewardPurchase{ID: "a", StudentID: "s", Cost: 5, Status: payroll.StatusApproved, CreatedAt: ts(14, 0)})
	m.PutRewardPurchase(payroll.RewardPurchase{ID: "b", StudentID: "s", Cost: 7, Status: payroll.StatusApproved, CreatedAt: ts(14, 1)})
	m.PutRewardPurchase(payroll.RewardPurchase{ID: "c", StudentID: "s", Cost: 9, Status: payroll.StatusPending, CreatedAt: ts(2, 0)})

	rewards, err := m.ApprovedRewards(ctx, ts(1, 0), ts(14, 0))
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, "a", rewards[0].ID)

	spend, err := m.RewardSpend(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 12.0, spend)
}

func TestMemoryPayrollForStudent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.WritePayrollBatch(ctx, []payroll.Record{
		{ID: "s_1", StudentID: "s", PeriodEnd: ts(14, 0)},
		{ID: "s_2", StudentID: "s", PeriodEnd: ts(28, 0)},
		{ID: "t_1", StudentID: "t", PeriodEnd: ts(14, 0)},
	}))

	records, err := m.PayrollForStudent(ctx, "s")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "s_2", records[0].ID)
	assert.True(t, m.Healthy(ctx))
}
