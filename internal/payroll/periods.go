package payroll

import (
	"fmt"
	"time"

	"timeclock/internal/timeclock"
)

// BuildPeriods lays out back-to-back two-week periods starting at first and
// continuing while a period's start is not after last. Each period ends 13
// days after it starts and is keyed by its end date.
func BuildPeriods(first, last time.Time, hourlyRate float64) []PayPeriod {
	var periods []PayPeriod
	for start := first; !start.After(last); start = start.AddDate(0, 0, 14) {
		start := start
		end := start.AddDate(0, 0, 13)
		rate := hourlyRate
		periods = append(periods, PayPeriod{
			ID:         timeclock.DateKey(end),
			StartDate:  &start,
			EndDate:    &end,
			HourlyRate: &rate,
			Display:    displayRange(start, end),
		})
	}
	return periods
}

func displayRange(start, end time.Time) string {
	return fmt.Sprintf("%s - %s", start.Format("Jan 2"), end.Format("Jan 2, 2006"))
}
