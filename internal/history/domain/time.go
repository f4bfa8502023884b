package history

import "time"

const dayKeyLayout = "20060102"

// DayKey is the persisted representation of one calendar day.
type DayKey string

// NewDayKey builds a DayKey for the day containing t.
func NewDayKey(t time.Time) (DayKey, error) {
	if t.IsZero() {
		return "", ErrInvalidDay
	}
	return DayKey(DayStart(t).Format(dayKeyLayout)), nil
}

// ParseDayKey restores the day start from its stored key.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDay
	}
	return t, nil
}

// String returns the raw string for storage.
func (k DayKey) String() string { return string(k) }

// DayStart truncates t to midnight UTC of its calendar day.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay returns the day start following t's day.
func NextDay(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

// DayAxis is the shared inclusive day range every unit history aligns to.
// Both bounds are day starts; the axis owns no per-unit state.
type DayAxis struct {
	start time.Time
	end   time.Time
}

// NewDayAxis builds an axis covering [start, end] at day granularity.
func NewDayAxis(start, end time.Time) (DayAxis, error) {
	if start.IsZero() || end.IsZero() {
		return DayAxis{}, ErrInvalidAxis
	}
	s, e := DayStart(start), DayStart(end)
	if e.Before(s) {
		return DayAxis{}, ErrInvalidAxis
	}
	return DayAxis{start: s, end: e}, nil
}

// Start returns the first day on the axis.
func (a DayAxis) Start() time.Time { return a.start }

// End returns the last day on the axis, inclusive.
func (a DayAxis) End() time.Time { return a.end }

// IsZero reports whether the axis is unset.
func (a DayAxis) IsZero() bool { return a.start.IsZero() }

// Len returns the number of days on the axis.
func (a DayAxis) Len() int {
	if a.IsZero() {
		return 0
	}
	return int(a.end.Sub(a.start)/(24*time.Hour)) + 1
}

// Days materializes every day on the axis in order.
func (a DayAxis) Days() []time.Time {
	days := make([]time.Time, 0, a.Len())
	for d := a.start; !d.After(a.end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Index returns the axis position of the day containing t.
func (a DayAxis) Index(t time.Time) (int, bool) {
	if a.IsZero() {
		return 0, false
	}
	d := DayStart(t)
	if d.Before(a.start) || d.After(a.end) {
		return 0, false
	}
	return int(d.Sub(a.start) / (24 * time.Hour)), true
}

// Clamp narrows the axis to its overlap with [from, to].
// Zero bounds leave the corresponding side untouched.
func (a DayAxis) Clamp(from, to time.Time) (DayAxis, error) {
	if a.IsZero() {
		return DayAxis{}, ErrInvalidAxis
	}
	s, e := a.start, a.end
	if !from.IsZero() && DayStart(from).After(s) {
		s = DayStart(from)
	}
	if !to.IsZero() && DayStart(to).Before(e) {
		e = DayStart(to)
	}
	return NewDayAxis(s, e)
}
