package history

import (
	"context"
	"time"
)

// Repository persists built history tables and per-unit fold snapshots.
// Zero from/to bounds on the load side select the full stored range.
type Repository interface {
	// SaveTable replaces the stored table, axis and snapshots as a whole.
	SaveTable(ctx context.Context, table *HistoryTable, snaps []Snapshot) error
	// AppendHistories upserts day rows for the given histories, merges
	// their fold snapshots and extends the stored bounds. Existing units
	// take a continuation tail; units new to the table take a full column.
	AppendHistories(ctx context.Context, histories []*UnitHistory, snaps []Snapshot) error
	LoadTable(ctx context.Context, from, to time.Time) (*HistoryTable, error)
	LoadUnit(ctx context.Context, unitID string, from, to time.Time) (*UnitHistory, error)
	ListSnapshots(ctx context.Context) ([]Snapshot, error)
	Bounds(ctx context.Context) (time.Time, time.Time, error)
}
