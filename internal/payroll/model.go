package payroll

import (
	"time"

	"timeclock/internal/timeclock"
)

const (
	DefaultHourlyRate          = 15.0
	DefaultDeductionPerWarning = 5.0

	StatusApproved = "approved"
	StatusPending  = "pending"
)

// Config holds the pay constants applied during aggregation.
type Config struct {
	DefaultHourlyRate   float64
	DeductionPerWarning float64
}

// DefaultConfig returns the rates used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DefaultHourlyRate:   DefaultHourlyRate,
		DeductionPerWarning: DefaultDeductionPerWarning,
	}
}

// PayPeriod is an externally managed pay window. Either bound may be missing
// in stored data; such periods are skipped.
type PayPeriod struct {
	ID         string     `json:"id"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	HourlyRate *float64   `json:"hourly_rate,omitempty"`
	Display    string     `json:"display,omitempty"`
}

// Rate returns the period's hourly rate or fallback when unset.
func (p PayPeriod) Rate(fallback float64) float64 {
	if p.HourlyRate != nil {
		return *p.HourlyRate
	}
	return fallback
}

// Bounds returns the period's instant range and its UTC date keys. ok is
// false when either bound is missing.
func (p PayPeriod) Bounds() (start, end time.Time, startKey, endKey string, ok bool) {
	if p.StartDate == nil || p.EndDate == nil || p.StartDate.IsZero() || p.EndDate.IsZero() {
		return time.Time{}, time.Time{}, "", "", false
	}
	start, end = p.StartDate.UTC(), p.EndDate.UTC()
	return start, end, timeclock.DateKey(start), timeclock.DateKey(end), true
}

// RewardPurchase is a reward bought with earned pay. Only approved purchases
// are deducted.
type RewardPurchase struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	RewardID   string    `json:"reward_id,omitempty"`
	RewardName string    `json:"reward_name,omitempty"`
	Cost       float64   `json:"cost"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ItemName is the label shown on a pay stub.
func (r RewardPurchase) ItemName() string {
	switch {
	case r.RewardName != "":
		return r.RewardName
	case r.RewardID != "":
		return r.RewardID
	default:
		return "Reward"
	}
}

// RewardItem is one itemized reward deduction.
type RewardItem struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

// Record is one student's pay for one period.
type Record struct {
	ID               string       `json:"id"`
	StudentID        string       `json:"studentId"`
	PeriodID         string       `json:"periodId"`
	PeriodEnd        time.Time    `json:"periodEnd"`
	NetHours         float64      `json:"netHours"`
	PaidHours        float64      `json:"paidHours"`
	GrossPay         float64      `json:"totalPay"`
	WarningCount     int          `json:"warningCount"`
	WarningDeduction float64      `json:"warningDeduction"`
	RewardDeduction  float64      `json:"rewardDeduction"`
	Deductions       float64      `json:"deductions"`
	NetPay           float64      `json:"netPay"`
	RewardItems      []RewardItem `json:"rewardItems"`
}
