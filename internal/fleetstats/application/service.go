package application

import (
	"context"
	"errors"
	"log"
	"time"

	fleetstats "paygo-cloud/internal/fleetstats/domain"
	historyapp "paygo-cloud/internal/history/application"
	history "paygo-cloud/internal/history/domain"
)

// Counter produces per-day status counts. Zero bounds select the full
// stored range.
type Counter interface {
	CountByDay(ctx context.Context, from, to time.Time) ([]fleetstats.DayCount, error)
}

// Store caches the computed summary.
type Store interface {
	Save(ctx context.Context, summary *fleetstats.Summary) error
	Load(ctx context.Context) (*fleetstats.Summary, error)
}

// Service recomputes the fleet summary from the stored table and serves
// range queries from the cached copy.
type Service struct {
	counter Counter
	store   Store
	logger  *log.Logger
	clock   historyapp.Clock
}

// NewService constructs the service. Logger and clock may be nil.
func NewService(counter Counter, store Store, logger *log.Logger, clock historyapp.Clock) (*Service, error) {
	if counter == nil {
		return nil, errors.New("fleet service: nil counter")
	}
	if store == nil {
		return nil, errors.New("fleet service: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	if clock == nil {
		clock = historyapp.SystemClock{}
	}
	return &Service{counter: counter, store: store, logger: logger, clock: clock}, nil
}

// Recompute rebuilds the cached summary from the stored table.
func (s *Service) Recompute(ctx context.Context) (*fleetstats.Summary, error) {
	counts, err := s.counter.CountByDay(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	summary := fleetstats.NewSummary(counts, s.clock.Now())
	if err := s.store.Save(ctx, summary); err != nil {
		return nil, err
	}
	s.logger.Printf("fleet summary recomputed: units=%d days=%d", summary.Units, len(summary.Days))
	return summary, nil
}

// Summary returns the cached summary narrowed to [from, to], computing it
// first when the cache is cold.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*fleetstats.Summary, error) {
	summary, err := s.store.Load(ctx)
	if errors.Is(err, fleetstats.ErrSummaryNotFound) {
		summary, err = s.Recompute(ctx)
	}
	if err != nil {
		return nil, err
	}
	return summary.Range(from, to)
}

// HandleTableRebuilt refreshes the summary after a table build.
func (s *Service) HandleTableRebuilt(ctx context.Context, event historyapp.TableRebuilt) error {
	if _, err := s.Recompute(ctx); err != nil {
		s.logger.Printf("fleet summary recompute after %s build failed: %v", event.Mode, err)
		return err
	}
	return nil
}

// RepositoryCounter counts statuses by walking the stored history table.
type RepositoryCounter struct {
	repo history.Repository
}

// NewRepositoryCounter constructs a counter over the history store.
func NewRepositoryCounter(repo history.Repository) (*RepositoryCounter, error) {
	if repo == nil {
		return nil, errors.New("fleet counter: nil repository")
	}
	return &RepositoryCounter{repo: repo}, nil
}

// CountByDay loads the table and folds it into per-day counts.
func (c *RepositoryCounter) CountByDay(ctx context.Context, from, to time.Time) ([]fleetstats.DayCount, error) {
	table, err := c.repo.LoadTable(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return fleetstats.CountTable(table)
}
