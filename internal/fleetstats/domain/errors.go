package fleetstats

import "errors"

var (
	// ErrNilTable is returned when counting a nil table.
	ErrNilTable = errors.New("fleetstats: nil table")
	// ErrSummaryNotFound is returned when no summary has been computed.
	ErrSummaryNotFound = errors.New("fleetstats: summary not found")
	// ErrInvalidRange is returned when a day range is reversed.
	ErrInvalidRange = errors.New("fleetstats: invalid day range")
)
