package translog

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TransactionEvent is one cleaned transaction-log row: a normalized unit
// id, the transaction time, the function code and the resolved top-up
// value in weeks. Unlock events carry zero weeks.
type TransactionEvent struct {
	UnitID string    `json:"unitId"`
	At     time.Time `json:"at"`
	Code   int       `json:"code"`
	Weeks  float64   `json:"weeks"`
}

// Validate checks the fields every consumer relies on.
func (e TransactionEvent) Validate() error {
	if e.UnitID == "" {
		return ErrEmptyUnitID
	}
	if e.At.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// DedupeKey identifies a transaction for duplicate elimination. Two rows
// with the same unit, instant, code and value are one transaction.
func (e TransactionEvent) DedupeKey() string {
	return e.UnitID + "|" + e.At.UTC().Format(time.RFC3339Nano) + "|" +
		strconv.Itoa(e.Code) + "|" + strconv.FormatFloat(e.Weeks, 'f', -1, 64)
}

// NormalizeUnitID trims surrounding whitespace and the trailing ".0" that
// spreadsheet exports append to numeric unit ids.
func NormalizeUnitID(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.TrimSuffix(id, ".0")
	return id
}

// GroupByUnit splits events per unit, each group ordered by timestamp.
func GroupByUnit(events []TransactionEvent) map[string][]TransactionEvent {
	byUnit := make(map[string][]TransactionEvent)
	for _, ev := range events {
		byUnit[ev.UnitID] = append(byUnit[ev.UnitID], ev)
	}
	for _, group := range byUnit {
		sort.Slice(group, func(i, j int) bool { return group[i].At.Before(group[j].At) })
	}
	return byUnit
}

// FeedSource supplies the full cleaned transaction feed.
type FeedSource interface {
	Load(ctx context.Context) ([]TransactionEvent, error)
}

// Repository persists ingested transaction events.
type Repository interface {
	// InsertEvents stores events, skipping duplicates, and returns the
	// number of newly inserted rows.
	InsertEvents(ctx context.Context, events []TransactionEvent) (int, error)
	// Load returns every stored event ordered by timestamp.
	Load(ctx context.Context) ([]TransactionEvent, error)
	// LoadSince returns events strictly after the given instant.
	LoadSince(ctx context.Context, after time.Time) ([]TransactionEvent, error)
}
