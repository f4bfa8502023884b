package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	history "paygo-cloud/internal/history/domain"
	historymetrics "paygo-cloud/internal/history/metrics"
	translog "paygo-cloud/internal/translog/domain"
)

// TableRebuilt is emitted after a table build has been stored.
type TableRebuilt struct {
	Mode       string
	StartDay   time.Time
	EndDay     time.Time
	Units      int
	Failures   int
	OccurredAt time.Time
}

// TablePublisher emits table lifecycle events.
type TablePublisher interface {
	PublishTableRebuilt(ctx context.Context, event TableRebuilt) error
}

// InstallOverrideSource resolves install days recorded outside the feed.
type InstallOverrideSource interface {
	InstallOverrides(ctx context.Context) (map[string]time.Time, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// RebuildService replaces the stored table with a fresh build of the
// whole feed.
type RebuildService struct {
	feed      translog.FeedSource
	builder   *Builder
	repo      history.Repository
	overrides InstallOverrideSource
	publisher TablePublisher
	metrics   *historymetrics.Metrics
	logger    *log.Logger
	clock     Clock
	start     time.Time
	end       time.Time
}

// NewRebuildService constructs the service. Overrides, publisher, metrics
// and logger may be nil.
func NewRebuildService(
	cfg Config,
	feed translog.FeedSource,
	builder *Builder,
	repo history.Repository,
	overrides InstallOverrideSource,
	publisher TablePublisher,
	metrics *historymetrics.Metrics,
	logger *log.Logger,
	clock Clock,
) (*RebuildService, error) {
	if feed == nil {
		return nil, errors.New("rebuild service: nil feed")
	}
	if builder == nil {
		return nil, errors.New("rebuild service: nil builder")
	}
	if repo == nil {
		return nil, errors.New("rebuild service: nil repository")
	}
	start, end, err := cfg.Bounds()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &RebuildService{
		feed:      feed,
		builder:   builder,
		repo:      repo,
		overrides: overrides,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		clock:     clock,
		start:     start,
		end:       end,
	}, nil
}

// Rebuild loads the feed, builds the table and stores it.
func (s *RebuildService) Rebuild(ctx context.Context) (*BuildResult, error) {
	if s == nil {
		return nil, errors.New("rebuild service: nil")
	}

	events, err := s.feed.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}

	var installs map[string]time.Time
	if s.overrides != nil {
		installs, err = s.overrides.InstallOverrides(ctx)
		if err != nil {
			return nil, fmt.Errorf("load install overrides: %w", err)
		}
	}

	result, err := s.builder.Build(ctx, events, BuildOptions{
		Start:            s.start,
		End:              s.end,
		InstallOverrides: installs,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveTable(ctx, result.Table, result.Snapshots); err != nil {
		return nil, fmt.Errorf("save table: %w", err)
	}

	s.observe(result)
	s.publish(ctx, JobTypeRebuild, result)
	s.logf("history_rebuild_done", result)
	return result, nil
}

func (s *RebuildService) observe(result *BuildResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.TableUnits.Set(float64(result.Units))
	s.metrics.TableDays.Set(float64(result.Table.Axis().Len()))
	s.metrics.FailedUnits.Set(float64(len(result.Failures)))
	s.metrics.FeedEvents.Set(float64(result.Events))
}

func (s *RebuildService) publish(ctx context.Context, mode string, result *BuildResult) {
	if s.publisher == nil {
		return
	}
	axis := result.Table.Axis()
	event := TableRebuilt{
		Mode:       mode,
		StartDay:   axis.Start(),
		EndDay:     axis.End(),
		Units:      result.Units,
		Failures:   len(result.Failures),
		OccurredAt: s.clock.Now(),
	}
	if err := s.publisher.PublishTableRebuilt(ctx, event); err != nil && s.logger != nil {
		s.logger.Printf("event=history_publish_failed mode=%s error=%s", mode, err)
	}
}

func (s *RebuildService) logf(event string, result *BuildResult) {
	if s.logger == nil {
		return
	}
	axis := result.Table.Axis()
	s.logger.Printf("event=%s units=%d failures=%d days=%d events=%d duration=%s range=%s..%s",
		event, result.Units, len(result.Failures), axis.Len(), result.Events,
		result.Duration.Round(time.Millisecond),
		axis.Start().Format(dateLayout), axis.End().Format(dateLayout))
}
