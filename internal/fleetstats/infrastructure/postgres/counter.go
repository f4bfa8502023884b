package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	fleetstats "paygo-cloud/internal/fleetstats/domain"
	history "paygo-cloud/internal/history/domain"
)

const defaultDayTable = "history_unit_days"

// Counter aggregates per-day status counts directly in SQL over the
// history day table.
type Counter struct {
	db    *sql.DB
	table string
}

// CounterOption configures the counter.
type CounterOption func(*Counter)

// WithDayTable overrides the day table name.
func WithDayTable(table string) CounterOption {
	return func(c *Counter) {
		if table != "" {
			c.table = table
		}
	}
}

// NewCounter constructs a counter over the history day table.
func NewCounter(db *sql.DB, opts ...CounterOption) *Counter {
	counter := &Counter{db: db, table: defaultDayTable}
	for _, opt := range opts {
		opt(counter)
	}
	return counter
}

// CountByDay groups stored day rows by day and status kind.
func (c *Counter) CountByDay(ctx context.Context, from, to time.Time) ([]fleetstats.DayCount, error) {
	if c == nil || c.db == nil {
		return nil, errors.New("fleet counter: nil db")
	}
	start, end, err := c.bounds(ctx)
	if err != nil {
		return nil, err
	}
	axis, err := history.NewDayAxis(start, end)
	if err != nil {
		return nil, err
	}
	sub, err := axis.Clamp(from, to)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT day, kind, COUNT(*)
FROM %s
WHERE day >= $1 AND day <= $2
GROUP BY day, kind
ORDER BY day ASC`, c.table)

	rows, err := c.db.QueryContext(ctx, query, sub.Start(), sub.End())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := sub.Days()
	counts := make([]fleetstats.DayCount, len(days))
	for i, day := range days {
		counts[i].Day = day
	}
	for rows.Next() {
		var (
			day  time.Time
			kind string
			n    int
		)
		if err := rows.Scan(&day, &kind, &n); err != nil {
			return nil, err
		}
		index, ok := sub.Index(day.UTC())
		if !ok {
			continue
		}
		counts[index].Add(history.StatusKind(kind), n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (c *Counter) bounds(ctx context.Context) (time.Time, time.Time, error) {
	query := fmt.Sprintf(`SELECT MIN(day), MAX(day) FROM %s`, c.table)
	var start, end sql.NullTime
	if err := c.db.QueryRowContext(ctx, query).Scan(&start, &end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !start.Valid || !end.Valid {
		return time.Time{}, time.Time{}, history.ErrHistoryNotFound
	}
	return start.Time.UTC(), end.Time.UTC(), nil
}
