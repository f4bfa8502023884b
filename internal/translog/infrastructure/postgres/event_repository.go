package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	translog "paygo-cloud/internal/translog/domain"
)

const defaultEventsTable = "translog_events"

// EventRepository is a Postgres store for ingested transaction events.
// It doubles as a feed source for table rebuilds.
type EventRepository struct {
	db    *sql.DB
	table string
}

// EventRepositoryOption configures the repository.
type EventRepositoryOption func(*EventRepository)

// WithEventsTable overrides the default table name.
func WithEventsTable(table string) EventRepositoryOption {
	return func(repo *EventRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewEventRepository creates a repository using the default table name.
func NewEventRepository(db *sql.DB, opts ...EventRepositoryOption) *EventRepository {
	repo := &EventRepository{db: db, table: defaultEventsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InsertEvents stores events, skipping rows already present, and returns
// the number of newly inserted rows.
func (r *EventRepository) InsertEvents(ctx context.Context, events []translog.TransactionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
INSERT INTO %s (unit_id, ts, function_code, weeks)
VALUES ($1, $2, $3, $4)
ON CONFLICT (unit_id, ts, function_code) DO NOTHING`, r.table)

	inserted := 0
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, ev.UnitID, ev.At.UTC(), ev.Code, ev.Weeks)
		if err != nil {
			return 0, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Load returns every stored event ordered by timestamp. It implements
// translog.FeedSource.
func (r *EventRepository) Load(ctx context.Context) ([]translog.TransactionEvent, error) {
	query := fmt.Sprintf(`
SELECT unit_id, ts, function_code, weeks
FROM %s
ORDER BY ts ASC, unit_id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// LoadSince returns events strictly after the given instant.
func (r *EventRepository) LoadSince(ctx context.Context, after time.Time) ([]translog.TransactionEvent, error) {
	query := fmt.Sprintf(`
SELECT unit_id, ts, function_code, weeks
FROM %s
WHERE ts > $1
ORDER BY ts ASC, unit_id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, after.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]translog.TransactionEvent, error) {
	var events []translog.TransactionEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func scanEvent(scanner interface{ Scan(dest ...any) error }) (translog.TransactionEvent, error) {
	var ev translog.TransactionEvent
	if err := scanner.Scan(&ev.UnitID, &ev.At, &ev.Code, &ev.Weeks); err != nil {
		return translog.TransactionEvent{}, err
	}
	ev.At = ev.At.UTC()
	if ev.UnitID == "" {
		return translog.TransactionEvent{}, errors.New("translog repo: empty unit id row")
	}
	return ev, nil
}
