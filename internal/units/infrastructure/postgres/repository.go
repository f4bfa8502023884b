package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	units "paygo-cloud/internal/units/domain"
)

const defaultUnitsTable = "units"

// Repository is a Postgres implementation of the unit registry.
type Repository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithUnitsTable overrides the default table name.
func WithUnitsTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	repo := &Repository{db: db, table: defaultUnitsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get loads a unit by id.
func (r *Repository) Get(ctx context.Context, id string) (*units.Unit, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("units repo: nil db")
	}
	if id == "" {
		return nil, units.ErrEmptyUnitID
	}

	query := fmt.Sprintf(`
SELECT id, install_day, note, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	unit, err := scanUnit(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, units.ErrUnitNotFound
		}
		return nil, err
	}
	return unit, nil
}

// List returns every registered unit ordered by id.
func (r *Repository) List(ctx context.Context) ([]units.Unit, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("units repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, install_day, note, created_at, updated_at
FROM %s
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []units.Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *unit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// Save upserts a unit.
func (r *Repository) Save(ctx context.Context, unit *units.Unit) error {
	if r == nil || r.db == nil {
		return errors.New("units repo: nil db")
	}
	if unit == nil {
		return units.ErrEmptyUnitID
	}
	if err := unit.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	install_day,
	note
) VALUES (
	$1, $2, $3
)
ON CONFLICT (id)
DO UPDATE SET
	install_day = EXCLUDED.install_day,
	note = EXCLUDED.note,
	updated_at = NOW()`, r.table)

	var installDay sql.NullTime
	if unit.HasInstallOverride() {
		installDay = sql.NullTime{Time: unit.InstallDay.UTC(), Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, query, unit.ID, installDay, unit.Note); err != nil {
		return err
	}
	now := time.Now().UTC()
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = now
	}
	unit.UpdatedAt = now
	return nil
}

// Register inserts units that are not yet known, skipping existing rows, and
// returns the number of newly added units.
func (r *Repository) Register(ctx context.Context, ids []string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("units repo: nil db")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
INSERT INTO %s (id)
VALUES ($1)
ON CONFLICT (id) DO NOTHING`, r.table)

	added := 0
	for _, id := range ids {
		if id == "" {
			return 0, units.ErrEmptyUnitID
		}
		res, err := tx.ExecContext(ctx, query, id)
		if err != nil {
			return 0, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		added += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// InstallOverrides returns install days for units that carry one.
func (r *Repository) InstallOverrides(ctx context.Context) (map[string]time.Time, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("units repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, install_day
FROM %s
WHERE install_day IS NOT NULL`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var day time.Time
		if err := rows.Scan(&id, &day); err != nil {
			return nil, err
		}
		overrides[id] = day.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

func scanUnit(scanner interface{ Scan(dest ...any) error }) (*units.Unit, error) {
	var unit units.Unit
	var installDay sql.NullTime
	var note sql.NullString
	if err := scanner.Scan(&unit.ID, &installDay, &note, &unit.CreatedAt, &unit.UpdatedAt); err != nil {
		return nil, err
	}
	if installDay.Valid {
		unit.InstallDay = installDay.Time.UTC()
	}
	if note.Valid {
		unit.Note = note.String
	}
	unit.CreatedAt = unit.CreatedAt.UTC()
	unit.UpdatedAt = unit.UpdatedAt.UTC()
	return &unit, nil
}
