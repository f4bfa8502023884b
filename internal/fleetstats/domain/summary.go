package fleetstats

import (
	"time"

	history "paygo-cloud/internal/history/domain"
)

// DayCount holds the number of units in each credit status on one day.
type DayCount struct {
	Day         time.Time `json:"day"`
	Stock       int       `json:"stock"`
	InCredit    int       `json:"inCredit"`
	OutOfCredit int       `json:"outOfCredit"`
	Unlocked    int       `json:"unlocked"`
}

// Add tallies n units of the given status. Unknown kinds are ignored.
func (c *DayCount) Add(kind history.StatusKind, n int) {
	switch kind {
	case history.KindStock:
		c.Stock += n
	case history.KindInCredit:
		c.InCredit += n
	case history.KindOutOfCredit:
		c.OutOfCredit += n
	case history.KindUnlocked:
		c.Unlocked += n
	}
}

// Total returns the number of units counted on the day.
func (c DayCount) Total() int {
	return c.Stock + c.InCredit + c.OutOfCredit + c.Unlocked
}

// OutOfCreditRatio returns the out-of-credit share of the day's units.
func (c DayCount) OutOfCreditRatio() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.OutOfCredit) / float64(total)
}

// Summary is the per-day fleet view over a contiguous day range.
type Summary struct {
	Start      time.Time
	End        time.Time
	Units      int
	Days       []DayCount
	ComputedAt time.Time
}

// NewSummary assembles a summary from per-day counts ordered by day.
func NewSummary(days []DayCount, computedAt time.Time) *Summary {
	summary := &Summary{Days: days, ComputedAt: computedAt.UTC()}
	if len(days) == 0 {
		return summary
	}
	summary.Start = days[0].Day
	summary.End = days[len(days)-1].Day
	for _, day := range days {
		if day.Total() > summary.Units {
			summary.Units = day.Total()
		}
	}
	return summary
}

// CountTable folds a history table into per-day status counts.
func CountTable(table *history.HistoryTable) ([]DayCount, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	days := table.Axis().Days()
	counts := make([]DayCount, len(days))
	for i, day := range days {
		counts[i].Day = day
	}
	for _, id := range table.Units() {
		column, ok := table.Unit(id)
		if !ok {
			continue
		}
		for i := 0; i < column.Len() && i < len(counts); i++ {
			counts[i].Add(column.At(i).Kind, 1)
		}
	}
	return counts, nil
}

// Range returns the summary narrowed to [from, to]. Zero bounds keep the
// corresponding edge of the stored range.
func (s *Summary) Range(from, to time.Time) (*Summary, error) {
	if s == nil {
		return nil, ErrSummaryNotFound
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, ErrInvalidRange
	}
	if from.IsZero() && to.IsZero() {
		return s, nil
	}
	var days []DayCount
	for _, day := range s.Days {
		if !from.IsZero() && day.Day.Before(history.DayStart(from)) {
			continue
		}
		if !to.IsZero() && day.Day.After(history.DayStart(to)) {
			continue
		}
		days = append(days, day)
	}
	return NewSummary(days, s.ComputedAt), nil
}
