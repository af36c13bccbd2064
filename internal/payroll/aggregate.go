// Package payroll turns stored sessions, warnings and reward purchases into
// per-student pay records for a pay period.
package payroll

import (
	"math"
	"sort"
	"strings"
	"time"

	"timeclock/internal/timeclock"
)

// Round2 rounds to cents, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// RecordKey is the storage key of a student's record for a period. Slashes
// in the student ID are replaced so the key stays a single path segment.
func RecordKey(studentID, periodID string) string {
	return strings.ReplaceAll(studentID, "/", "_") + "_" + periodID
}

// Aggregate computes one record per student with at least one session. It
// assumes the inputs are already filtered to the period: sessions and
// warnings by date key, rewards by approved status and creation instant.
// Records are returned ordered by student ID.
func Aggregate(period PayPeriod, sessions []timeclock.Session, warnings []timeclock.Warning, rewards []RewardPurchase, cfg Config) []Record {
	netByStudent := make(map[string]time.Duration)
	for _, s := range sessions {
		if s.StudentID == "" {
			continue
		}
		netByStudent[s.StudentID] += s.Net
	}
	if len(netByStudent) == 0 {
		return nil
	}

	warningCount := make(map[string]int)
	for _, w := range warnings {
		if w.StudentID == "" {
			continue
		}
		warningCount[w.StudentID]++
	}

	rewardTotal := make(map[string]float64)
	rewardItems := make(map[string][]RewardItem)
	for _, r := range rewards {
		if r.StudentID == "" || r.Status != StatusApproved {
			continue
		}
		rewardTotal[r.StudentID] += r.Cost
		rewardItems[r.StudentID] = append(rewardItems[r.StudentID], RewardItem{Name: r.ItemName(), Cost: r.Cost})
	}

	rate := period.Rate(cfg.DefaultHourlyRate)
	var periodEnd time.Time
	if period.EndDate != nil {
		periodEnd = period.EndDate.UTC()
	}

	records := make([]Record, 0, len(netByStudent))
	for studentID, net := range netByStudent {
		netHours := net.Hours()
		grossPay := Round2(netHours * rate)
		warningDeduction := float64(warningCount[studentID]) * cfg.DeductionPerWarning
		rewardDeduction := rewardTotal[studentID]
		deductions := warningDeduction + rewardDeduction

		items := rewardItems[studentID]
		if items == nil {
			items = []RewardItem{}
		}

		records = append(records, Record{
			ID:               RecordKey(studentID, period.ID),
			StudentID:        studentID,
			PeriodID:         period.ID,
			PeriodEnd:        periodEnd,
			NetHours:         netHours,
			PaidHours:        netHours,
			GrossPay:         grossPay,
			WarningCount:     warningCount[studentID],
			WarningDeduction: warningDeduction,
			RewardDeduction:  rewardDeduction,
			Deductions:       deductions,
			// Deductions are not capped; net pay can go negative.
			NetPay:      Round2(grossPay - deductions),
			RewardItems: items,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StudentID < records[j].StudentID
	})
	return records
}
