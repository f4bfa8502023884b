package history

import "strconv"

// StatusKind discriminates the per-day credit status of a unit.
type StatusKind string

const (
	// KindStock marks days before the unit's install day.
	KindStock StatusKind = "stock"
	// KindInCredit marks days the unit still holds credit.
	KindInCredit StatusKind = "in_credit"
	// KindOutOfCredit marks days the unit has exhausted its credit.
	KindOutOfCredit StatusKind = "out_of_credit"
	// KindUnlocked marks days on or after the unit's unlock day.
	KindUnlocked StatusKind = "unlocked"
)

// IsValid reports whether the kind is one of the known statuses.
func (k StatusKind) IsValid() bool {
	switch k {
	case KindStock, KindInCredit, KindOutOfCredit, KindUnlocked:
		return true
	}
	return false
}

// DayStatus is the credit status of one unit on one calendar day.
// CreditDays is set for KindInCredit, StreakDays for KindOutOfCredit.
// TopUpWeeks carries the raw daily top-up total when the table was built
// in diagnostic mode and is zero otherwise.
type DayStatus struct {
	Kind       StatusKind `json:"kind"`
	CreditDays float64    `json:"creditDays,omitempty"`
	StreakDays int        `json:"streakDays,omitempty"`
	TopUpWeeks float64    `json:"topUpWeeks,omitempty"`
}

// Stock returns the pre-install status.
func Stock() DayStatus { return DayStatus{Kind: KindStock} }

// InCredit returns the status for a day with creditDays of credit left.
func InCredit(creditDays float64) DayStatus {
	return DayStatus{Kind: KindInCredit, CreditDays: creditDays}
}

// OutOfCredit returns the status for the streakDays-th consecutive day
// without credit, counted from zero.
func OutOfCredit(streakDays int) DayStatus {
	return DayStatus{Kind: KindOutOfCredit, StreakDays: streakDays}
}

// Unlocked returns the permanently unlocked status.
func Unlocked() DayStatus { return DayStatus{Kind: KindUnlocked} }

// Cell renders the status as one table cell: "S" for stock, "U" for
// unlocked, the remaining credit as a plain number, and the out-of-credit
// streak as a non-positive number.
func (s DayStatus) Cell() string {
	switch s.Kind {
	case KindStock:
		return "S"
	case KindUnlocked:
		return "U"
	case KindInCredit:
		return strconv.FormatFloat(s.CreditDays, 'f', -1, 64)
	case KindOutOfCredit:
		return strconv.Itoa(-s.StreakDays)
	}
	return ""
}

// Number returns the numeric cell value and true for in-credit and
// out-of-credit days; stock and unlocked days carry no number.
func (s DayStatus) Number() (float64, bool) {
	switch s.Kind {
	case KindInCredit:
		return s.CreditDays, true
	case KindOutOfCredit:
		return -float64(s.StreakDays), true
	}
	return 0, false
}

// WithTopUp returns a copy of the status carrying the day's top-up total.
func (s DayStatus) WithTopUp(weeks float64) DayStatus {
	s.TopUpWeeks = weeks
	return s
}
