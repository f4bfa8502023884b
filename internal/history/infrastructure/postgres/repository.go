package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	history "paygo-cloud/internal/history/domain"
)

const (
	defaultDayTable      = "history_unit_days"
	defaultSnapshotTable = "history_snapshots"
)

// Repository is a Postgres implementation of the history store. Day rows
// are keyed (unit_id, day), fold snapshots are keyed by unit id.
type Repository struct {
	db            *sql.DB
	dayTable      string
	snapshotTable string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithDayTable overrides the default day table name.
func WithDayTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.dayTable = table
		}
	}
}

// WithSnapshotTable overrides the default snapshot table name.
func WithSnapshotTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.snapshotTable = table
		}
	}
}

// NewRepository constructs a repository using the default table names.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	repo := &Repository{
		db:            db,
		dayTable:      defaultDayTable,
		snapshotTable: defaultSnapshotTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SaveTable replaces the stored table and snapshots in one transaction.
func (r *Repository) SaveTable(ctx context.Context, table *history.HistoryTable, snaps []history.Snapshot) error {
	if r == nil || r.db == nil {
		return errors.New("history repo: nil db")
	}
	if table == nil {
		return history.ErrNilHistory
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, r.dayTable)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, r.snapshotTable)); err != nil {
		return err
	}
	for _, id := range table.Units() {
		column, _ := table.Unit(id)
		if err := r.insertColumn(ctx, tx, column); err != nil {
			return err
		}
	}
	for _, snap := range snaps {
		if err := r.upsertSnapshot(ctx, tx, snap); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendHistories upserts day rows for the given histories and merges
// their snapshots. It fails with ErrHistoryNotFound on an empty store.
func (r *Repository) AppendHistories(ctx context.Context, histories []*history.UnitHistory, snaps []history.Snapshot) error {
	if r == nil || r.db == nil {
		return errors.New("history repo: nil db")
	}
	if _, _, err := r.Bounds(ctx); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, column := range histories {
		if column == nil {
			return history.ErrNilHistory
		}
		if err := r.insertColumn(ctx, tx, column); err != nil {
			return err
		}
	}
	for _, snap := range snaps {
		if err := r.upsertSnapshot(ctx, tx, snap); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadTable returns the stored table narrowed to [from, to]. Units whose
// rows do not cover the whole requested range are left out.
func (r *Repository) LoadTable(ctx context.Context, from, to time.Time) (*history.HistoryTable, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	start, end, err := r.Bounds(ctx)
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
SELECT unit_id, day, kind, credit_days, streak_days, topup_weeks
FROM %s
WHERE day >= $1 AND day <= $2
ORDER BY unit_id ASC, day ASC`, r.dayTable)

	rows, err := r.db.QueryContext(ctx, query, sub.Start(), sub.End())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table, err := history.NewHistoryTable(sub)
	if err != nil {
		return nil, err
	}

	var (
		currentID string
		statuses  []history.DayStatus
	)
	flush := func() error {
		if currentID == "" {
			return nil
		}
		// A column shorter than the range does not cover it and is skipped.
		if len(statuses) != sub.Len() {
			return nil
		}
		column, err := history.NewUnitHistory(currentID, sub, statuses)
		if err != nil {
			return err
		}
		return table.Add(column)
	}
	for rows.Next() {
		unitID, _, status, err := scanStatusRow(rows)
		if err != nil {
			return nil, err
		}
		if unitID != currentID {
			if err := flush(); err != nil {
				return nil, err
			}
			currentID = unitID
			statuses = statuses[:0]
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadUnit returns one unit's column narrowed to [from, to].
func (r *Repository) LoadUnit(ctx context.Context, unitID string, from, to time.Time) (*history.UnitHistory, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	if unitID == "" {
		return nil, history.ErrEmptyUnitID
	}

	query := fmt.Sprintf(`
SELECT unit_id, day, kind, credit_days, streak_days, topup_weeks
FROM %s
WHERE unit_id = $1
ORDER BY day ASC`, r.dayTable)

	rows, err := r.db.QueryContext(ctx, query, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		statuses []history.DayStatus
		firstDay time.Time
		lastDay  time.Time
	)
	for rows.Next() {
		_, day, status, err := scanStatusRow(rows)
		if err != nil {
			return nil, err
		}
		if firstDay.IsZero() {
			firstDay = day
		}
		lastDay = day
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, history.ErrHistoryNotFound
	}

	axis, err := history.NewDayAxis(firstDay, lastDay)
	if err != nil {
		return nil, err
	}
	if len(statuses) != axis.Len() {
		return nil, fmt.Errorf("history repo: day rows for unit %s not contiguous", unitID)
	}
	column, err := history.NewUnitHistory(unitID, axis, statuses)
	if err != nil {
		return nil, err
	}
	return column.Slice(from, to)
}

// ListSnapshots returns all fold snapshots ordered by unit id.
func (r *Repository) ListSnapshots(ctx context.Context) ([]history.Snapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT unit_id, last_day, install_day, unlock_day, credit_days, streak_days
FROM %s
ORDER BY unit_id ASC`, r.snapshotTable)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []history.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Bounds returns the first and last stored day.
func (r *Repository) Bounds(ctx context.Context) (time.Time, time.Time, error) {
	if r == nil || r.db == nil {
		return time.Time{}, time.Time{}, errors.New("history repo: nil db")
	}

	query := fmt.Sprintf(`SELECT MIN(day), MAX(day) FROM %s`, r.dayTable)
	var start, end sql.NullTime
	if err := r.db.QueryRowContext(ctx, query).Scan(&start, &end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !start.Valid || !end.Valid {
		return time.Time{}, time.Time{}, history.ErrHistoryNotFound
	}
	return start.Time.UTC(), end.Time.UTC(), nil
}

func (r *Repository) insertColumn(ctx context.Context, tx *sql.Tx, column *history.UnitHistory) error {
	query := fmt.Sprintf(`
INSERT INTO %s (unit_id, day, kind, credit_days, streak_days, topup_weeks)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (unit_id, day)
DO UPDATE SET
	kind = EXCLUDED.kind,
	credit_days = EXCLUDED.credit_days,
	streak_days = EXCLUDED.streak_days,
	topup_weeks = EXCLUDED.topup_weeks`, r.dayTable)

	days := column.Axis().Days()
	for i, day := range days {
		status := column.At(i)
		if !status.Kind.IsValid() {
			return fmt.Errorf("history repo: invalid status kind %q", status.Kind)
		}
		if _, err := tx.ExecContext(ctx, query,
			column.UnitID(), day, string(status.Kind),
			status.CreditDays, status.StreakDays, status.TopUpWeeks,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) upsertSnapshot(ctx context.Context, tx *sql.Tx, snap history.Snapshot) error {
	if snap.UnitID == "" {
		return history.ErrEmptyUnitID
	}
	unlock := sql.NullTime{}
	if !snap.UnlockDay.IsZero() {
		unlock = sql.NullTime{Time: snap.UnlockDay, Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (unit_id, last_day, install_day, unlock_day, credit_days, streak_days)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (unit_id)
DO UPDATE SET
	last_day = EXCLUDED.last_day,
	install_day = EXCLUDED.install_day,
	unlock_day = EXCLUDED.unlock_day,
	credit_days = EXCLUDED.credit_days,
	streak_days = EXCLUDED.streak_days`, r.snapshotTable)

	_, err := tx.ExecContext(ctx, query,
		snap.UnitID, snap.LastDay, snap.InstallDay, unlock,
		snap.State.CreditDays, snap.State.Streak,
	)
	return err
}

func scanStatusRow(scanner interface{ Scan(dest ...any) error }) (string, time.Time, history.DayStatus, error) {
	var (
		unitID     string
		day        time.Time
		kind       string
		creditDays float64
		streakDays int
		topUpWeeks float64
	)
	if err := scanner.Scan(&unitID, &day, &kind, &creditDays, &streakDays, &topUpWeeks); err != nil {
		return "", time.Time{}, history.DayStatus{}, err
	}
	status := history.DayStatus{
		Kind:       history.StatusKind(kind),
		CreditDays: creditDays,
		StreakDays: streakDays,
		TopUpWeeks: topUpWeeks,
	}
	if !status.Kind.IsValid() {
		return "", time.Time{}, history.DayStatus{}, fmt.Errorf("history repo: invalid status kind %q", kind)
	}
	return unitID, day.UTC(), status, nil
}

func scanSnapshot(scanner interface{ Scan(dest ...any) error }) (history.Snapshot, error) {
	var (
		unitID     string
		lastDay    time.Time
		installDay time.Time
		unlockDay  sql.NullTime
		creditDays float64
		streak     int
	)
	if err := scanner.Scan(&unitID, &lastDay, &installDay, &unlockDay, &creditDays, &streak); err != nil {
		return history.Snapshot{}, err
	}
	snap := history.Snapshot{
		UnitID:     unitID,
		LastDay:    lastDay.UTC(),
		InstallDay: installDay.UTC(),
		State:      history.SimState{CreditDays: creditDays, Streak: streak},
	}
	if unlockDay.Valid {
		snap.UnlockDay = unlockDay.Time.UTC()
	}
	return snap, nil
}
