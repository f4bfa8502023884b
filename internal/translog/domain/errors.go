package translog

import "errors"

var (
	// ErrEmptyUnitID is returned when an event carries no unit id.
	ErrEmptyUnitID = errors.New("translog: empty unit id")
	// ErrInvalidTimestamp is returned when an event timestamp is zero.
	ErrInvalidTimestamp = errors.New("translog: invalid timestamp")
	// ErrNoFeedFiles is returned when a feed directory holds no CSV files.
	ErrNoFeedFiles = errors.New("translog: no feed files")
	// ErrMissingColumn is returned when a feed file lacks a required column.
	ErrMissingColumn = errors.New("translog: missing required column")
	// ErrEmptyFeed is returned when a feed yields no usable events at all.
	ErrEmptyFeed = errors.New("translog: empty feed")
)
