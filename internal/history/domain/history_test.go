package history

import (
	"errors"
	"testing"
	"time"
)

func TestDayAxis(t *testing.T) {
	axis, err := NewDayAxis(day(0).Add(13*time.Hour), day(4).Add(2*time.Minute))
	if err != nil {
		t.Fatalf("new day axis: %v", err)
	}
	if !axis.Start().Equal(day(0)) || !axis.End().Equal(day(4)) {
		t.Fatalf("expected bounds truncated to day starts, got %v..%v", axis.Start(), axis.End())
	}
	if axis.Len() != 5 {
		t.Fatalf("expected 5 days, got %d", axis.Len())
	}

	days := axis.Days()
	if len(days) != 5 || !days[2].Equal(day(2)) {
		t.Fatalf("unexpected materialized days: %v", days)
	}

	if i, ok := axis.Index(day(3).Add(5 * time.Hour)); !ok || i != 3 {
		t.Fatalf("expected index 3, got %d ok=%v", i, ok)
	}
	if _, ok := axis.Index(day(5)); ok {
		t.Fatal("expected day past the end to have no index")
	}

	if _, err := NewDayAxis(day(4), day(0)); !errors.Is(err, ErrInvalidAxis) {
		t.Fatalf("expected ErrInvalidAxis for reversed bounds, got %v", err)
	}
	if _, err := NewDayAxis(time.Time{}, day(0)); !errors.Is(err, ErrInvalidAxis) {
		t.Fatalf("expected ErrInvalidAxis for zero start, got %v", err)
	}
}

func TestDayAxisClamp(t *testing.T) {
	axis := mustAxis(t, day(0), day(9))

	sub, err := axis.Clamp(day(2), day(5))
	if err != nil {
		t.Fatalf("clamp: %v", err)
	}
	if !sub.Start().Equal(day(2)) || !sub.End().Equal(day(5)) {
		t.Fatalf("unexpected clamped bounds %v..%v", sub.Start(), sub.End())
	}

	open, err := axis.Clamp(time.Time{}, day(3))
	if err != nil {
		t.Fatalf("clamp open start: %v", err)
	}
	if !open.Start().Equal(day(0)) || !open.End().Equal(day(3)) {
		t.Fatalf("unexpected open-start bounds %v..%v", open.Start(), open.End())
	}

	if _, err := axis.Clamp(day(7), day(2)); !errors.Is(err, ErrInvalidAxis) {
		t.Fatalf("expected ErrInvalidAxis for empty overlap, got %v", err)
	}
}

func TestDayKeyRoundTrip(t *testing.T) {
	key, err := NewDayKey(time.Date(2026, 3, 10, 17, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new day key: %v", err)
	}
	if key.String() != "20260310" {
		t.Fatalf("expected key 20260310, got %s", key)
	}

	back, err := ParseDayKey(key.String())
	if err != nil {
		t.Fatalf("parse day key: %v", err)
	}
	if !back.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected parsed day start, got %v", back)
	}

	if _, err := NewDayKey(time.Time{}); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
	if _, err := ParseDayKey("2026-03-10"); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay for wrong layout, got %v", err)
	}
}

func TestUnitHistoryConstructionAndSlice(t *testing.T) {
	axis := mustAxis(t, day(0), day(4))
	statuses := []DayStatus{Stock(), InCredit(7), InCredit(6), InCredit(5), InCredit(4)}

	h, err := NewUnitHistory("unit-1", axis, statuses)
	if err != nil {
		t.Fatalf("new unit history: %v", err)
	}

	// Mutating the input slice must not reach the history.
	statuses[0] = Unlocked()
	if h.At(0).Kind != KindStock {
		t.Fatal("history shares storage with the caller's slice")
	}

	if got, ok := h.On(day(2).Add(6 * time.Hour)); !ok || got != InCredit(6) {
		t.Fatalf("expected in-credit 6 on day 2, got %+v ok=%v", got, ok)
	}
	if _, ok := h.On(day(9)); ok {
		t.Fatal("expected no status outside the axis")
	}

	cut, err := h.Slice(day(1), day(3))
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if cut.Len() != 3 || cut.At(0) != InCredit(7) || cut.At(2) != InCredit(5) {
		t.Fatalf("unexpected slice contents: %+v", cut.Statuses())
	}

	if _, err := NewUnitHistory("unit-1", axis, statuses[:2]); !errors.Is(err, ErrAxisMismatch) {
		t.Fatalf("expected ErrAxisMismatch for short statuses, got %v", err)
	}
	if _, err := NewUnitHistory("", axis, statuses); !errors.Is(err, ErrEmptyUnitID) {
		t.Fatalf("expected ErrEmptyUnitID, got %v", err)
	}
}

func TestUnitHistoryExtend(t *testing.T) {
	head, err := NewUnitHistory("unit-1", mustAxis(t, day(0), day(1)), []DayStatus{InCredit(2), InCredit(1)})
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	tail, err := NewUnitHistory("unit-1", mustAxis(t, day(2), day(3)), []DayStatus{OutOfCredit(0), OutOfCredit(1)})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}

	full, err := head.Extend(tail)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if full.Len() != 4 || full.At(3) != OutOfCredit(1) {
		t.Fatalf("unexpected extended history: %+v", full.Statuses())
	}

	gap, err := NewUnitHistory("unit-1", mustAxis(t, day(3), day(4)), []DayStatus{Stock(), Stock()})
	if err != nil {
		t.Fatalf("gap: %v", err)
	}
	if _, err := head.Extend(gap); !errors.Is(err, ErrAxisMismatch) {
		t.Fatalf("expected ErrAxisMismatch for non-contiguous tail, got %v", err)
	}

	other, err := NewUnitHistory("unit-2", mustAxis(t, day(2), day(3)), []DayStatus{Stock(), Stock()})
	if err != nil {
		t.Fatalf("other: %v", err)
	}
	if _, err := head.Extend(other); !errors.Is(err, ErrAxisMismatch) {
		t.Fatalf("expected ErrAxisMismatch for foreign unit, got %v", err)
	}
}

func TestHistoryTable(t *testing.T) {
	axis := mustAxis(t, day(0), day(2))
	table, err := NewHistoryTable(axis)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}

	mk := func(id string, st DayStatus) *UnitHistory {
		h, err := NewUnitHistory(id, axis, []DayStatus{st, st, st})
		if err != nil {
			t.Fatalf("history %s: %v", id, err)
		}
		return h
	}

	if err := table.Add(mk("unit-b", InCredit(3))); err != nil {
		t.Fatalf("add unit-b: %v", err)
	}
	if err := table.Add(mk("unit-a", Stock())); err != nil {
		t.Fatalf("add unit-a: %v", err)
	}

	if got := table.Units(); len(got) != 2 || got[0] != "unit-a" || got[1] != "unit-b" {
		t.Fatalf("expected lexical unit order, got %v", got)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 columns, got %d", table.Len())
	}

	if err := table.Add(mk("unit-a", Unlocked())); !errors.Is(err, ErrDuplicateUnit) {
		t.Fatalf("expected ErrDuplicateUnit, got %v", err)
	}
	if err := table.Add(nil); !errors.Is(err, ErrNilHistory) {
		t.Fatalf("expected ErrNilHistory, got %v", err)
	}

	short, err := NewUnitHistory("unit-c", mustAxis(t, day(0), day(1)), []DayStatus{Stock(), Stock()})
	if err != nil {
		t.Fatalf("short history: %v", err)
	}
	if err := table.Add(short); !errors.Is(err, ErrAxisMismatch) {
		t.Fatalf("expected ErrAxisMismatch, got %v", err)
	}
}

func TestHistoryTableSlice(t *testing.T) {
	axis := mustAxis(t, day(0), day(4))
	table, err := NewHistoryTable(axis)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	for _, id := range []string{"unit-1", "unit-2", "unit-3"} {
		h, err := NewUnitHistory(id, axis, []DayStatus{InCredit(5), InCredit(4), InCredit(3), InCredit(2), InCredit(1)})
		if err != nil {
			t.Fatalf("history %s: %v", id, err)
		}
		if err := table.Add(h); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	cut, err := table.Slice(day(1), day(3), []string{"unit-2", "unit-9"})
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if cut.Len() != 1 {
		t.Fatalf("expected only known units kept, got %d columns", cut.Len())
	}
	h, ok := cut.Unit("unit-2")
	if !ok {
		t.Fatal("expected unit-2 column")
	}
	if h.Len() != 3 || h.At(0) != InCredit(4) {
		t.Fatalf("unexpected sliced column: %+v", h.Statuses())
	}

	all, err := table.Slice(time.Time{}, time.Time{}, nil)
	if err != nil {
		t.Fatalf("slice all: %v", err)
	}
	if all.Len() != 3 || all.Axis().Len() != 5 {
		t.Fatalf("expected full table slice, got %d columns over %d days", all.Len(), all.Axis().Len())
	}
}

func TestDayStatusCellAndNumber(t *testing.T) {
	cases := []struct {
		status DayStatus
		cell   string
	}{
		{Stock(), "S"},
		{Unlocked(), "U"},
		{InCredit(7), "7"},
		{InCredit(10.5), "10.5"},
		{OutOfCredit(0), "0"},
		{OutOfCredit(12), "-12"},
	}
	for _, tc := range cases {
		if got := tc.status.Cell(); got != tc.cell {
			t.Fatalf("cell for %+v: expected %q, got %q", tc.status, tc.cell, got)
		}
	}

	if n, ok := InCredit(3).Number(); !ok || n != 3 {
		t.Fatalf("expected numeric 3, got %v ok=%v", n, ok)
	}
	if n, ok := OutOfCredit(2).Number(); !ok || n != -2 {
		t.Fatalf("expected numeric -2, got %v ok=%v", n, ok)
	}
	if _, ok := Stock().Number(); ok {
		t.Fatal("expected stock to carry no number")
	}
	if _, ok := Unlocked().Number(); ok {
		t.Fatal("expected unlocked to carry no number")
	}
}
