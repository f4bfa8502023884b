package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"paygo-cloud/internal/history/application"
)

const defaultJobsTable = "history_jobs"

// JobStore persists build jobs in Postgres.
type JobStore struct {
	db    *sql.DB
	table string
}

// JobStoreOption configures the job store.
type JobStoreOption func(*JobStore)

// WithJobsTable overrides the default jobs table name.
func WithJobsTable(table string) JobStoreOption {
	return func(store *JobStore) {
		if table != "" {
			store.table = table
		}
	}
}

// NewJobStore constructs a job store using the default table name.
func NewJobStore(db *sql.DB, opts ...JobStoreOption) *JobStore {
	store := &JobStore{db: db, table: defaultJobsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// CreateJob inserts a new job record.
func (s *JobStore) CreateJob(ctx context.Context, job *application.Job) error {
	if s == nil || s.db == nil {
		return errors.New("job store: nil db")
	}
	if job == nil || job.ID == "" {
		return errors.New("job store: empty job id")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, job_type, status, error, units, failures,
	start_day, end_day, created_at, started_at, ended_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.Type, job.Status, job.Error, job.Units, job.Failures,
		nullTime(job.StartDay), nullTime(job.EndDay),
		job.CreatedAt, nullTime(job.StartedAt), nullTime(job.EndedAt),
	)
	return err
}

// UpdateJob overwrites an existing job record.
func (s *JobStore) UpdateJob(ctx context.Context, job *application.Job) error {
	if s == nil || s.db == nil {
		return errors.New("job store: nil db")
	}
	if job == nil || job.ID == "" {
		return errors.New("job store: empty job id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET job_type = $1, status = $2, error = $3, units = $4, failures = $5,
	start_day = $6, end_day = $7, started_at = $8, ended_at = $9
WHERE id = $10`, s.table)

	result, err := s.db.ExecContext(ctx, query,
		job.Type, job.Status, job.Error, job.Units, job.Failures,
		nullTime(job.StartDay), nullTime(job.EndDay),
		nullTime(job.StartedAt), nullTime(job.EndedAt),
		job.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return application.ErrJobNotFound
	}
	return nil
}

// GetJob returns the job with the given id.
func (s *JobStore) GetJob(ctx context.Context, id string) (*application.Job, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("job store: nil db")
	}
	if id == "" {
		return nil, errors.New("job store: empty job id")
	}

	query := fmt.Sprintf(`
SELECT id, job_type, status, error, units, failures,
	start_day, end_day, created_at, started_at, ended_at
FROM %s
WHERE id = $1`, s.table)

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, application.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns jobs newest first, up to limit when positive.
func (s *JobStore) ListJobs(ctx context.Context, limit int) ([]*application.Job, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("job store: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, job_type, status, error, units, failures,
	start_day, end_day, created_at, started_at, ended_at
FROM %s
ORDER BY created_at DESC, id ASC`, s.table)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*application.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*application.Job, error) {
	var (
		job       application.Job
		startDay  sql.NullTime
		endDay    sql.NullTime
		startedAt sql.NullTime
		endedAt   sql.NullTime
	)
	if err := scanner.Scan(
		&job.ID, &job.Type, &job.Status, &job.Error, &job.Units, &job.Failures,
		&startDay, &endDay, &job.CreatedAt, &startedAt, &endedAt,
	); err != nil {
		return nil, err
	}
	job.CreatedAt = job.CreatedAt.UTC()
	if startDay.Valid {
		job.StartDay = startDay.Time.UTC()
	}
	if endDay.Valid {
		job.EndDay = endDay.Time.UTC()
	}
	if startedAt.Valid {
		job.StartedAt = startedAt.Time.UTC()
	}
	if endedAt.Valid {
		job.EndedAt = endedAt.Time.UTC()
	}
	return &job, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
