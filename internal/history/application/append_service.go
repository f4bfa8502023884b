package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	history "paygo-cloud/internal/history/domain"
	historymetrics "paygo-cloud/internal/history/metrics"
	translog "paygo-cloud/internal/translog/domain"
)

// IncrementalFeed loads only events recorded after a given instant.
type IncrementalFeed interface {
	LoadSince(ctx context.Context, after time.Time) ([]translog.TransactionEvent, error)
}

// AppendResult is the outcome of one append run.
type AppendResult struct {
	Start    time.Time
	End      time.Time
	Extended int
	Fresh    int
	Failures []UnitFailure
	Events   int
	UpToDate bool
	Duration time.Duration
}

// AppendService extends the stored table with the days and events that
// arrived since the last build. Stored columns are continued from their
// snapshots, units first seen in the new events are simulated over the
// full axis.
type AppendService struct {
	feed      translog.FeedSource
	sim       *history.Simulator
	repo      history.Repository
	overrides InstallOverrideSource
	publisher TablePublisher
	metrics   *historymetrics.Metrics
	logger    *log.Logger
	clock     Clock
}

// NewAppendService constructs the service. Overrides, publisher, metrics
// and logger may be nil.
func NewAppendService(
	feed translog.FeedSource,
	sim *history.Simulator,
	repo history.Repository,
	overrides InstallOverrideSource,
	publisher TablePublisher,
	metrics *historymetrics.Metrics,
	logger *log.Logger,
	clock Clock,
) (*AppendService, error) {
	if feed == nil {
		return nil, errors.New("append service: nil feed")
	}
	if sim == nil {
		return nil, errors.New("append service: nil simulator")
	}
	if repo == nil {
		return nil, errors.New("append service: nil repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &AppendService{
		feed:      feed,
		sim:       sim,
		repo:      repo,
		overrides: overrides,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		clock:     clock,
	}, nil
}

// Append continues the stored table up to the day after the newest event.
// It fails with ErrHistoryNotFound when no table has been built yet.
func (s *AppendService) Append(ctx context.Context) (*AppendResult, error) {
	if s == nil {
		return nil, errors.New("append service: nil")
	}
	started := time.Now().UTC()

	storedStart, storedEnd, err := s.repo.Bounds(ctx)
	if err != nil {
		return nil, fmt.Errorf("load table bounds: %w", err)
	}
	snaps, err := s.repo.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	events, err := s.loadNewEvents(ctx, storedEnd)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	if len(events) == 0 {
		if s.logger != nil {
			s.logger.Printf("event=history_append_noop end=%s", storedEnd.Format(dateLayout))
		}
		return &AppendResult{
			Start:    storedStart,
			End:      storedEnd,
			UpToDate: true,
			Duration: time.Since(started),
		}, nil
	}

	newEnd := storedEnd
	for _, event := range events {
		if candidate := history.NextDay(history.DayStart(event.At)); candidate.After(newEnd) {
			newEnd = candidate
		}
	}
	tailAxis, err := history.NewDayAxis(history.NextDay(storedEnd), newEnd)
	if err != nil {
		return nil, err
	}
	fullAxis, err := history.NewDayAxis(storedStart, newEnd)
	if err != nil {
		return nil, err
	}

	byUnit := translog.GroupByUnit(events)
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].UnitID < snaps[j].UnitID })

	var (
		histories []*history.UnitHistory
		outSnaps  []history.Snapshot
		failures  []UnitFailure
		extended  int
	)

	// Every stored column grows to the new end, with or without new events.
	for _, snap := range snaps {
		unitEvents := byUnit[snap.UnitID]
		delete(byUnit, snap.UnitID)
		column, next, runErr := s.sim.Resume(snap, toCreditEvents(unitEvents), tailAxis)
		if runErr != nil {
			failures = append(failures, UnitFailure{UnitID: snap.UnitID, Reason: runErr.Error()})
			continue
		}
		histories = append(histories, column)
		outSnaps = append(outSnaps, next)
		extended++
	}

	freshIDs := make([]string, 0, len(byUnit))
	for unitID := range byUnit {
		freshIDs = append(freshIDs, unitID)
	}
	sort.Strings(freshIDs)

	var installs map[string]time.Time
	if len(freshIDs) > 0 && s.overrides != nil {
		installs, err = s.overrides.InstallOverrides(ctx)
		if err != nil {
			return nil, fmt.Errorf("load install overrides: %w", err)
		}
	}

	fresh := 0
	for _, unitID := range freshIDs {
		var install time.Time
		if installs != nil {
			install = installs[unitID]
		}
		column, next, runErr := s.sim.Run(unitID, toCreditEvents(byUnit[unitID]), fullAxis, install)
		if runErr != nil {
			failures = append(failures, UnitFailure{UnitID: unitID, Reason: runErr.Error()})
			continue
		}
		histories = append(histories, column)
		outSnaps = append(outSnaps, next)
		fresh++
	}

	if err := s.repo.AppendHistories(ctx, histories, outSnaps); err != nil {
		return nil, fmt.Errorf("append histories: %w", err)
	}

	result := &AppendResult{
		Start:    storedStart,
		End:      newEnd,
		Extended: extended,
		Fresh:    fresh,
		Failures: failures,
		Events:   len(events),
		Duration: time.Since(started),
	}
	s.observe(fullAxis, len(outSnaps), len(failures), len(events))
	s.publish(ctx, result)
	if s.logger != nil {
		s.logger.Printf("event=history_append_done extended=%d fresh=%d failures=%d events=%d days=%d duration=%s range=%s..%s",
			extended, fresh, len(failures), len(events), fullAxis.Len(),
			result.Duration.Round(time.Millisecond),
			storedStart.Format(dateLayout), newEnd.Format(dateLayout))
	}
	return result, nil
}

// loadNewEvents returns feed events on days after the stored end. Events on
// already simulated days are dropped, backdated corrections need a rebuild.
func (s *AppendService) loadNewEvents(ctx context.Context, storedEnd time.Time) ([]translog.TransactionEvent, error) {
	cutoff := history.NextDay(storedEnd)
	var (
		events []translog.TransactionEvent
		err    error
	)
	if inc, ok := s.feed.(IncrementalFeed); ok {
		events, err = inc.LoadSince(ctx, cutoff.Add(-time.Nanosecond))
	} else {
		events, err = s.feed.Load(ctx)
	}
	if err != nil {
		return nil, err
	}
	filtered := events[:0]
	dropped := 0
	for _, event := range events {
		if event.At.Before(cutoff) {
			dropped++
			continue
		}
		filtered = append(filtered, event)
	}
	if dropped > 0 && s.logger != nil {
		s.logger.Printf("event=history_append_skipped_events count=%d cutoff=%s", dropped, cutoff.Format(dateLayout))
	}
	return filtered, nil
}

func (s *AppendService) observe(axis history.DayAxis, units, failed, events int) {
	if s.metrics == nil {
		return
	}
	s.metrics.TableUnits.Set(float64(units))
	s.metrics.TableDays.Set(float64(axis.Len()))
	s.metrics.FailedUnits.Set(float64(failed))
	s.metrics.FeedEvents.Set(float64(events))
}

func (s *AppendService) publish(ctx context.Context, result *AppendResult) {
	if s.publisher == nil {
		return
	}
	event := TableRebuilt{
		Mode:       JobTypeAppend,
		StartDay:   result.Start,
		EndDay:     result.End,
		Units:      result.Extended + result.Fresh,
		Failures:   len(result.Failures),
		OccurredAt: s.clock.Now(),
	}
	if err := s.publisher.PublishTableRebuilt(ctx, event); err != nil && s.logger != nil {
		s.logger.Printf("event=history_publish_failed mode=%s error=%s", JobTypeAppend, err)
	}
}
