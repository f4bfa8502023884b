package history

import (
	"sort"
	"time"
)

// UnitHistory is one unit's day-by-day credit status on a shared axis.
// Immutable after construction.
type UnitHistory struct {
	unitID   string
	axis     DayAxis
	statuses []DayStatus
}

// NewUnitHistory builds a history; statuses must cover the axis exactly.
func NewUnitHistory(unitID string, axis DayAxis, statuses []DayStatus) (*UnitHistory, error) {
	if unitID == "" {
		return nil, ErrEmptyUnitID
	}
	if axis.IsZero() {
		return nil, ErrInvalidAxis
	}
	if len(statuses) != axis.Len() {
		return nil, ErrAxisMismatch
	}
	owned := make([]DayStatus, len(statuses))
	copy(owned, statuses)
	return &UnitHistory{unitID: unitID, axis: axis, statuses: owned}, nil
}

// UnitID returns the unit identifier.
func (h *UnitHistory) UnitID() string { return h.unitID }

// Axis returns the day axis the history is aligned to.
func (h *UnitHistory) Axis() DayAxis { return h.axis }

// Len returns the number of days covered.
func (h *UnitHistory) Len() int { return len(h.statuses) }

// At returns the status at axis position i.
func (h *UnitHistory) At(i int) DayStatus { return h.statuses[i] }

// On returns the status for the day containing t.
func (h *UnitHistory) On(t time.Time) (DayStatus, bool) {
	i, ok := h.axis.Index(t)
	if !ok {
		return DayStatus{}, false
	}
	return h.statuses[i], true
}

// Statuses returns a copy of the full status sequence.
func (h *UnitHistory) Statuses() []DayStatus {
	out := make([]DayStatus, len(h.statuses))
	copy(out, h.statuses)
	return out
}

// Slice returns the history narrowed to the overlap with [from, to].
func (h *UnitHistory) Slice(from, to time.Time) (*UnitHistory, error) {
	sub, err := h.axis.Clamp(from, to)
	if err != nil {
		return nil, err
	}
	lo, _ := h.axis.Index(sub.Start())
	hi, _ := h.axis.Index(sub.End())
	return NewUnitHistory(h.unitID, sub, h.statuses[lo:hi+1])
}

// Extend appends a continuation history, returning the combined history.
// The continuation's axis must start on the day after this history ends.
func (h *UnitHistory) Extend(tail *UnitHistory) (*UnitHistory, error) {
	if tail == nil {
		return nil, ErrNilHistory
	}
	if tail.unitID != h.unitID {
		return nil, ErrAxisMismatch
	}
	if !tail.axis.Start().Equal(NextDay(h.axis.End())) {
		return nil, ErrAxisMismatch
	}
	axis, err := NewDayAxis(h.axis.Start(), tail.axis.End())
	if err != nil {
		return nil, err
	}
	joined := make([]DayStatus, 0, len(h.statuses)+len(tail.statuses))
	joined = append(joined, h.statuses...)
	joined = append(joined, tail.statuses...)
	return NewUnitHistory(h.unitID, axis, joined)
}

// HistoryTable is the unit×day status table: one column per unit, every
// column aligned to the same day axis. Units without events never appear.
type HistoryTable struct {
	axis    DayAxis
	columns map[string]*UnitHistory
}

// NewHistoryTable builds an empty table over the given axis.
func NewHistoryTable(axis DayAxis) (*HistoryTable, error) {
	if axis.IsZero() {
		return nil, ErrInvalidAxis
	}
	return &HistoryTable{axis: axis, columns: make(map[string]*UnitHistory)}, nil
}

// Add merges a unit history into the table as a new column.
func (t *HistoryTable) Add(h *UnitHistory) error {
	if h == nil {
		return ErrNilHistory
	}
	if !h.axis.Start().Equal(t.axis.Start()) || !h.axis.End().Equal(t.axis.End()) {
		return ErrAxisMismatch
	}
	if _, ok := t.columns[h.unitID]; ok {
		return ErrDuplicateUnit
	}
	t.columns[h.unitID] = h
	return nil
}

// Axis returns the shared day axis.
func (t *HistoryTable) Axis() DayAxis { return t.axis }

// Len returns the number of unit columns.
func (t *HistoryTable) Len() int { return len(t.columns) }

// Unit returns the column for a unit id.
func (t *HistoryTable) Unit(id string) (*UnitHistory, bool) {
	h, ok := t.columns[id]
	return h, ok
}

// Units returns all unit ids in lexical order.
func (t *HistoryTable) Units() []string {
	ids := make([]string, 0, len(t.columns))
	for id := range t.columns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Slice returns the table narrowed to the overlap with [from, to],
// restricted to the given units when any are named.
func (t *HistoryTable) Slice(from, to time.Time, unitIDs []string) (*HistoryTable, error) {
	sub, err := t.axis.Clamp(from, to)
	if err != nil {
		return nil, err
	}
	out, err := NewHistoryTable(sub)
	if err != nil {
		return nil, err
	}

	ids := unitIDs
	if len(ids) == 0 {
		ids = t.Units()
	}
	for _, id := range ids {
		h, ok := t.columns[id]
		if !ok {
			continue
		}
		cut, err := h.Slice(sub.Start(), sub.End())
		if err != nil {
			return nil, err
		}
		if err := out.Add(cut); err != nil {
			return nil, err
		}
	}
	return out, nil
}
