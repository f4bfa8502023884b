package history

import "time"

// DefaultUnlockCode is the transaction function code that permanently
// unlocks a unit when no other code is configured.
const DefaultUnlockCode = 5

// CreditEvent is one transaction-log row as the simulator consumes it:
// a timestamp, a function code and the top-up value in weeks. Unlock
// events carry no value.
type CreditEvent struct {
	At    time.Time
	Code  int
	Weeks float64
}

// SimState is the fold state carried from one simulated day to the next.
type SimState struct {
	CreditDays float64
	Streak     int
}

// Snapshot captures where a unit's fold stopped so the history can be
// extended later without replaying the whole feed.
type Snapshot struct {
	UnitID     string
	LastDay    time.Time
	InstallDay time.Time
	UnlockDay  time.Time // zero when the unit never unlocked
	State      SimState
}

// SimulatorConfig tunes a Simulator.
type SimulatorConfig struct {
	// UnlockCode is the function code treated as a permanent unlock.
	// Zero selects DefaultUnlockCode.
	UnlockCode int
	// IncludeTopUps carries the raw daily top-up totals on every emitted
	// status (diagnostic mode).
	IncludeTopUps bool
}

// Simulator produces the day-by-day credit status sequence for one unit.
// It holds no per-unit state; the same instance may run units concurrently.
type Simulator struct {
	unlockCode    int
	includeTopUps bool
}

// NewSimulator constructs a Simulator.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.UnlockCode == 0 {
		cfg.UnlockCode = DefaultUnlockCode
	}
	return &Simulator{
		unlockCode:    cfg.UnlockCode,
		includeTopUps: cfg.IncludeTopUps,
	}
}

// Run simulates one unit over the shared axis and returns its history
// together with the fold snapshot after the last axis day.
//
// Days before installDay are stock. From installDay on, the day's top-up
// total (weeks, times seven) is added to the remaining credit before the
// day is judged: positive credit emits the in-credit status and burns one
// day, otherwise the out-of-credit streak is emitted and grown. Days on or
// after the earliest unlock event are unlocked, overriding everything
// else. A zero installDay defaults to the unit's earliest event day.
func (s *Simulator) Run(unitID string, events []CreditEvent, axis DayAxis, installDay time.Time) (*UnitHistory, Snapshot, error) {
	if unitID == "" {
		return nil, Snapshot{}, ErrEmptyUnitID
	}
	if axis.IsZero() {
		return nil, Snapshot{}, ErrInvalidAxis
	}
	if len(events) == 0 {
		return nil, Snapshot{}, ErrNoEvents
	}

	totals, firstDay, unlockDay, err := s.scan(events)
	if err != nil {
		return nil, Snapshot{}, err
	}
	if installDay.IsZero() {
		installDay = firstDay
	} else {
		installDay = DayStart(installDay)
	}

	statuses, state := s.fold(axis, totals, installDay, unlockDay, SimState{})
	h, err := NewUnitHistory(unitID, axis, statuses)
	if err != nil {
		return nil, Snapshot{}, err
	}

	snap := Snapshot{
		UnitID:     unitID,
		LastDay:    axis.End(),
		InstallDay: installDay,
		UnlockDay:  unlockDay,
		State:      state,
	}
	return h, snap, nil
}

// Resume extends a previously simulated unit across the new axis, which
// must start on the day after the snapshot's last day. Events older than
// the snapshot are rejected with ErrStaleSnapshot; such units need a full
// rebuild. An empty event slice is valid and lets credit decay or the
// streak grow across the new days.
func (s *Simulator) Resume(snap Snapshot, events []CreditEvent, axis DayAxis) (*UnitHistory, Snapshot, error) {
	if snap.UnitID == "" {
		return nil, Snapshot{}, ErrEmptyUnitID
	}
	if snap.LastDay.IsZero() || snap.InstallDay.IsZero() {
		return nil, Snapshot{}, ErrNoSnapshot
	}
	if axis.IsZero() || !axis.Start().Equal(NextDay(snap.LastDay)) {
		return nil, Snapshot{}, ErrInvalidAxis
	}

	totals, firstDay, newUnlock, err := s.scan(events)
	if err != nil {
		return nil, Snapshot{}, err
	}
	if !firstDay.IsZero() && !firstDay.After(snap.LastDay) {
		return nil, Snapshot{}, ErrStaleSnapshot
	}

	unlockDay := snap.UnlockDay
	if unlockDay.IsZero() || (!newUnlock.IsZero() && newUnlock.Before(unlockDay)) {
		unlockDay = newUnlock
	}

	statuses, state := s.fold(axis, totals, snap.InstallDay, unlockDay, snap.State)
	h, err := NewUnitHistory(snap.UnitID, axis, statuses)
	if err != nil {
		return nil, Snapshot{}, err
	}

	next := Snapshot{
		UnitID:     snap.UnitID,
		LastDay:    axis.End(),
		InstallDay: snap.InstallDay,
		UnlockDay:  unlockDay,
		State:      state,
	}
	return h, next, nil
}

// scan sums events into per-day top-up totals and derives the first event
// day and the earliest unlock day. Unlock events never contribute weeks.
func (s *Simulator) scan(events []CreditEvent) (map[DayKey]float64, time.Time, time.Time, error) {
	totals := make(map[DayKey]float64, len(events))
	var firstDay, unlockDay time.Time
	for _, ev := range events {
		if ev.At.IsZero() {
			return nil, time.Time{}, time.Time{}, ErrInvalidDay
		}
		day := DayStart(ev.At)
		if firstDay.IsZero() || day.Before(firstDay) {
			firstDay = day
		}
		if ev.Code == s.unlockCode {
			if unlockDay.IsZero() || day.Before(unlockDay) {
				unlockDay = day
			}
			continue
		}
		totals[DayKey(day.Format(dayKeyLayout))] += ev.Weeks
	}
	return totals, firstDay, unlockDay, nil
}

func (s *Simulator) fold(axis DayAxis, totals map[DayKey]float64, installDay, unlockDay time.Time, st SimState) ([]DayStatus, SimState) {
	statuses := make([]DayStatus, 0, axis.Len())
	for d := axis.Start(); !d.After(axis.End()); d = d.AddDate(0, 0, 1) {
		total := totals[DayKey(d.Format(dayKeyLayout))]

		var cur DayStatus
		switch {
		case !unlockDay.IsZero() && !d.Before(unlockDay):
			cur = Unlocked()
		case d.Before(installDay):
			cur = Stock()
		default:
			st.CreditDays += total * 7
			if st.CreditDays > 0 {
				cur = InCredit(st.CreditDays)
				st.CreditDays--
				st.Streak = 0
			} else {
				cur = OutOfCredit(st.Streak)
				st.Streak++
			}
		}

		if s.includeTopUps {
			cur = cur.WithTopUp(total)
		}
		statuses = append(statuses, cur)
	}
	return statuses, st
}
