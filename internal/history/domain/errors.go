package history

import "errors"

var (
	// ErrEmptyUnitID is returned when a unit id is empty.
	ErrEmptyUnitID = errors.New("history: empty unit id")
	// ErrInvalidDay is returned when a day value is zero.
	ErrInvalidDay = errors.New("history: invalid day")
	// ErrInvalidAxis is returned when axis bounds are zero or reversed.
	ErrInvalidAxis = errors.New("history: invalid day axis")
	// ErrAxisMismatch is returned when a history does not share the table axis.
	ErrAxisMismatch = errors.New("history: day axis mismatch")
	// ErrNoEvents is returned when a unit is simulated with no events.
	ErrNoEvents = errors.New("history: unit has no events")
	// ErrNilHistory is returned when adding a nil history to a table.
	ErrNilHistory = errors.New("history: nil history")
	// ErrDuplicateUnit is returned when a table already holds the unit column.
	ErrDuplicateUnit = errors.New("history: duplicate unit column")
	// ErrHistoryNotFound is returned when no stored history matches a query.
	ErrHistoryNotFound = errors.New("history: not found")
	// ErrNoSnapshot is returned when a unit has no stored fold snapshot.
	ErrNoSnapshot = errors.New("history: no snapshot")
	// ErrStaleSnapshot is returned when events predate a fold snapshot.
	ErrStaleSnapshot = errors.New("history: events predate snapshot")
)
