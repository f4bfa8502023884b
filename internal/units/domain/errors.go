package units

import "errors"

var (
	// ErrEmptyUnitID marks a unit with no identifier.
	ErrEmptyUnitID = errors.New("units: empty unit id")
	// ErrUnitNotFound marks a lookup for an unregistered unit.
	ErrUnitNotFound = errors.New("units: unit not found")
	// ErrInvalidInstallDay marks a zero or unparseable install day.
	ErrInvalidInstallDay = errors.New("units: invalid install day")
)
