package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	history "paygo-cloud/internal/history/domain"
	translog "paygo-cloud/internal/translog/domain"
)

// BuildOptions control a single table build.
type BuildOptions struct {
	// Start and End override the axis bounds derived from the feed. A zero
	// time keeps the derived bound.
	Start time.Time
	End   time.Time
	// InstallOverrides maps unit ids to install days recorded outside the
	// transaction feed.
	InstallOverrides map[string]time.Time
}

// UnitFailure records a unit whose simulation was skipped.
type UnitFailure struct {
	UnitID string `json:"unitId"`
	Reason string `json:"reason"`
}

// BuildResult is the outcome of one table build.
type BuildResult struct {
	Table     *history.HistoryTable
	Snapshots []history.Snapshot
	Failures  []UnitFailure
	Units     int
	Events    int
	Duration  time.Duration
}

// Builder fans the per-unit simulator out over the feed and merges the
// columns onto a shared day axis. A failing unit is recorded and skipped,
// it never aborts the build.
type Builder struct {
	sim           *history.Simulator
	workers       int
	progressEvery int
	logger        *log.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(sim *history.Simulator, workers, progressEvery int, logger *log.Logger) (*Builder, error) {
	if sim == nil {
		return nil, errors.New("history builder: nil simulator")
	}
	if workers <= 0 {
		workers = 4
	}
	if progressEvery <= 0 {
		progressEvery = 100
	}
	return &Builder{
		sim:           sim,
		workers:       workers,
		progressEvery: progressEvery,
		logger:        logger,
	}, nil
}

// Build simulates every unit in the feed and returns the merged table.
func (b *Builder) Build(ctx context.Context, events []translog.TransactionEvent, opts BuildOptions) (*BuildResult, error) {
	if b == nil {
		return nil, errors.New("history builder: nil")
	}
	if len(events) == 0 {
		return nil, translog.ErrEmptyFeed
	}

	axis, err := deriveAxis(events, opts.Start, opts.End)
	if err != nil {
		return nil, err
	}
	table, err := history.NewHistoryTable(axis)
	if err != nil {
		return nil, err
	}

	byUnit := translog.GroupByUnit(events)
	unitIDs := make([]string, 0, len(byUnit))
	for unitID := range byUnit {
		unitIDs = append(unitIDs, unitID)
	}
	sort.Strings(unitIDs)
	total := len(unitIDs)
	started := time.Now().UTC()

	var (
		mu        sync.Mutex
		snapshots []history.Snapshot
		failures  []UnitFailure
		done      int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, unitID := range unitIDs {
		unitEvents := byUnit[unitID]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var install time.Time
			if opts.InstallOverrides != nil {
				install = opts.InstallOverrides[unitID]
			}
			column, snap, runErr := b.sim.Run(unitID, toCreditEvents(unitEvents), axis, install)

			mu.Lock()
			defer mu.Unlock()
			if runErr != nil {
				failures = append(failures, UnitFailure{UnitID: unitID, Reason: runErr.Error()})
			} else if addErr := table.Add(column); addErr != nil {
				failures = append(failures, UnitFailure{UnitID: unitID, Reason: addErr.Error()})
			} else {
				snapshots = append(snapshots, snap)
			}
			done++
			if done%b.progressEvery == 0 || done == total {
				b.reportProgress(done, total, started)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].UnitID < snapshots[j].UnitID })
	sort.Slice(failures, func(i, j int) bool { return failures[i].UnitID < failures[j].UnitID })

	return &BuildResult{
		Table:     table,
		Snapshots: snapshots,
		Failures:  failures,
		Units:     len(snapshots),
		Events:    len(events),
		Duration:  time.Since(started),
	}, nil
}

func (b *Builder) reportProgress(done, total int, started time.Time) {
	if b.logger == nil {
		return
	}
	elapsed := time.Since(started)
	var remaining time.Duration
	if done > 0 {
		remaining = time.Duration(float64(elapsed) / float64(done) * float64(total-done))
	}
	b.logger.Printf("event=history_build_progress done=%d total=%d elapsed=%s remaining=%s",
		done, total, elapsed.Round(time.Second), remaining.Round(time.Second))
}

func deriveAxis(events []translog.TransactionEvent, start, end time.Time) (history.DayAxis, error) {
	var minAt, maxAt time.Time
	for _, event := range events {
		// Zero timestamps fail per unit during simulation, they must not
		// poison the shared axis.
		if event.At.IsZero() {
			continue
		}
		if minAt.IsZero() || event.At.Before(minAt) {
			minAt = event.At
		}
		if maxAt.IsZero() || event.At.After(maxAt) {
			maxAt = event.At
		}
	}
	if start.IsZero() {
		if minAt.IsZero() {
			return history.DayAxis{}, history.ErrInvalidAxis
		}
		start = history.DayStart(minAt)
	}
	if end.IsZero() {
		if maxAt.IsZero() {
			return history.DayAxis{}, history.ErrInvalidAxis
		}
		// The axis runs one day past the last transaction so the final
		// decrement is visible.
		end = history.NextDay(history.DayStart(maxAt))
	}
	return history.NewDayAxis(start, end)
}

func toCreditEvents(events []translog.TransactionEvent) []history.CreditEvent {
	converted := make([]history.CreditEvent, len(events))
	for i, event := range events {
		converted[i] = history.CreditEvent{At: event.At, Code: event.Code, Weeks: event.Weeks}
	}
	return converted
}
