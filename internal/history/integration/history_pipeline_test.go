package integration_test

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"paygo-cloud/internal/history/application"
	history "paygo-cloud/internal/history/domain"
	"paygo-cloud/internal/history/infrastructure/memory"
	historynotify "paygo-cloud/internal/history/notify"
	translog "paygo-cloud/internal/translog/domain"
)

var base = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time { return base.AddDate(0, 0, offset) }

func feedEvent(unitID string, dayOffset, code int, weeks float64) translog.TransactionEvent {
	return translog.TransactionEvent{
		UnitID: unitID,
		At:     day(dayOffset).Add(9 * time.Hour),
		Code:   code,
		Weeks:  weeks,
	}
}

type memoryFeed struct {
	mu     sync.Mutex
	events []translog.TransactionEvent
}

func (f *memoryFeed) Add(events ...translog.TransactionEvent) {
	f.mu.Lock()
	f.events = append(f.events, events...)
	f.mu.Unlock()
}

func (f *memoryFeed) Load(ctx context.Context) ([]translog.TransactionEvent, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]translog.TransactionEvent, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *memoryFeed) LoadSince(ctx context.Context, after time.Time) ([]translog.TransactionEvent, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []translog.TransactionEvent
	for _, event := range f.events {
		if event.At.After(after) {
			out = append(out, event)
		}
	}
	return out, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []application.TableRebuilt
}

func (r *eventRecorder) PublishTableRebuilt(ctx context.Context, event application.TableRebuilt) error {
	_ = ctx
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) Events() []application.TableRebuilt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]application.TableRebuilt, len(r.events))
	copy(out, r.events)
	return out
}

type notifyRecorder struct {
	mu   sync.Mutex
	msgs []historynotify.BuildMessage
}

func (r *notifyRecorder) Notify(ctx context.Context, msg historynotify.BuildMessage) error {
	_ = ctx
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *notifyRecorder) Messages() []historynotify.BuildMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]historynotify.BuildMessage, len(r.msgs))
	copy(out, r.msgs)
	return out
}

type pipeline struct {
	runner    *application.Runner
	repo      *memory.Repository
	jobs      *memory.JobStore
	publisher *eventRecorder
	notifier  *notifyRecorder
}

func newPipeline(t *testing.T, feed translog.FeedSource) *pipeline {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	sim := history.NewSimulator(history.SimulatorConfig{})
	builder, err := application.NewBuilder(sim, 2, 100, logger)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	repo := memory.NewRepository()
	publisher := &eventRecorder{}
	notifier := &notifyRecorder{}

	rebuild, err := application.NewRebuildService(application.Config{}, feed, builder, repo, nil, publisher, nil, logger, nil)
	if err != nil {
		t.Fatalf("new rebuild service: %v", err)
	}
	appender, err := application.NewAppendService(feed, sim, repo, nil, publisher, nil, logger, nil)
	if err != nil {
		t.Fatalf("new append service: %v", err)
	}

	jobs := memory.NewJobStore()
	runner, err := application.NewRunner(rebuild, appender, jobs, notifier, nil, logger, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	return &pipeline{runner: runner, repo: repo, jobs: jobs, publisher: publisher, notifier: notifier}
}

func cells(t *testing.T, column *history.UnitHistory) []string {
	t.Helper()
	out := make([]string, 0, column.Len())
	for i := 0; i < column.Len(); i++ {
		out = append(out, column.At(i).Cell())
	}
	return out
}

func assertCells(t *testing.T, column *history.UnitHistory, want []string) {
	t.Helper()
	got := cells(t, column)
	if len(got) != len(want) {
		t.Fatalf("unit %s: expected %d cells, got %d (%v)", column.UnitID(), len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unit %s day %d: expected %q, got %q (full: %v)", column.UnitID(), i, want[i], got[i], got)
		}
	}
}

func TestPipeline_RebuildThenAppend(t *testing.T) {
	ctx := context.Background()
	feed := &memoryFeed{}
	feed.Add(
		feedEvent("A", 0, 3, 1),
		feedEvent("B", 2, 4, 4),
		feedEvent("U", 1, 5, 0),
	)
	p := newPipeline(t, feed)

	job, err := p.runner.RunNow(ctx, application.JobTypeRebuild)
	if err != nil {
		t.Fatalf("run rebuild: %v", err)
	}
	if job.Status != application.JobStatusSucceeded || job.Units != 3 || job.Failures != 0 {
		t.Fatalf("unexpected rebuild job: %+v", job)
	}
	if !job.StartDay.Equal(day(0)) || !job.EndDay.Equal(day(3)) {
		t.Fatalf("expected job range %s..%s, got %s..%s", day(0), day(3), job.StartDay, job.EndDay)
	}

	table, err := p.repo.LoadTable(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	if table.Len() != 3 || table.Axis().Len() != 4 {
		t.Fatalf("expected 3 units over 4 days, got %d units over %d days", table.Len(), table.Axis().Len())
	}
	colA, _ := table.Unit("A")
	assertCells(t, colA, []string{"7", "6", "5", "4"})
	colB, _ := table.Unit("B")
	assertCells(t, colB, []string{"S", "S", "28", "27"})
	colU, _ := table.Unit("U")
	assertCells(t, colU, []string{"S", "U", "U", "U"})

	if events := p.publisher.Events(); len(events) != 1 || events[0].Mode != application.JobTypeRebuild {
		t.Fatalf("expected one rebuild event, got %+v", events)
	}
	if msgs := p.notifier.Messages(); len(msgs) != 1 || msgs[0].Status != application.JobStatusSucceeded {
		t.Fatalf("expected one succeeded notification, got %+v", msgs)
	}

	// Two quiet days pass, then unit A tops up again.
	feed.Add(feedEvent("A", 5, 3, 1))

	job2, err := p.runner.RunNow(ctx, application.JobTypeAppend)
	if err != nil {
		t.Fatalf("run append: %v", err)
	}
	if job2.Status != application.JobStatusSucceeded || job2.Units != 3 {
		t.Fatalf("unexpected append job: %+v", job2)
	}
	if !job2.EndDay.Equal(day(6)) {
		t.Fatalf("expected append end %s, got %s", day(6), job2.EndDay)
	}

	unitA, err := p.repo.LoadUnit(ctx, "A", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load unit A: %v", err)
	}
	assertCells(t, unitA, []string{"7", "6", "5", "4", "3", "9", "8"})

	unitB, err := p.repo.LoadUnit(ctx, "B", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load unit B: %v", err)
	}
	assertCells(t, unitB, []string{"S", "S", "28", "27", "26", "25", "24"})

	unitU, err := p.repo.LoadUnit(ctx, "U", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load unit U: %v", err)
	}
	assertCells(t, unitU, []string{"S", "U", "U", "U", "U", "U", "U"})

	window, err := p.repo.LoadTable(ctx, day(5), day(6))
	if err != nil {
		t.Fatalf("load window: %v", err)
	}
	if window.Axis().Len() != 2 || window.Len() != 3 {
		t.Fatalf("expected 3 units over 2 days, got %d over %d", window.Len(), window.Axis().Len())
	}
	winA, _ := window.Unit("A")
	assertCells(t, winA, []string{"9", "8"})

	if events := p.publisher.Events(); len(events) != 2 || events[1].Mode != application.JobTypeAppend {
		t.Fatalf("expected rebuild+append events, got %+v", events)
	}
}

func TestPipeline_AppendFallsBackToRebuildOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	feed := &memoryFeed{}
	feed.Add(feedEvent("A", 0, 3, 1))
	p := newPipeline(t, feed)

	job, err := p.runner.RunNow(ctx, application.JobTypeAppend)
	if err != nil {
		t.Fatalf("run append on empty store: %v", err)
	}
	if job.Status != application.JobStatusSucceeded || job.Units != 1 {
		t.Fatalf("unexpected fallback job: %+v", job)
	}
	if _, _, err := p.repo.Bounds(ctx); err != nil {
		t.Fatalf("expected stored table after fallback: %v", err)
	}
}

func TestPipeline_AppendWithoutNewEventsIsNoop(t *testing.T) {
	ctx := context.Background()
	feed := &memoryFeed{}
	feed.Add(feedEvent("A", 0, 3, 1))
	p := newPipeline(t, feed)

	if _, err := p.runner.RunNow(ctx, application.JobTypeRebuild); err != nil {
		t.Fatalf("run rebuild: %v", err)
	}
	job, err := p.runner.RunNow(ctx, application.JobTypeAppend)
	if err != nil {
		t.Fatalf("run append: %v", err)
	}
	if job.Status != application.JobStatusSucceeded || job.Units != 0 {
		t.Fatalf("expected a succeeded noop job, got %+v", job)
	}
	if !job.EndDay.Equal(day(1)) {
		t.Fatalf("expected end to stay %s, got %s", day(1), job.EndDay)
	}
}

func TestPipeline_FreshUnitJoinsOnAppend(t *testing.T) {
	ctx := context.Background()
	feed := &memoryFeed{}
	feed.Add(feedEvent("A", 0, 3, 1))
	p := newPipeline(t, feed)

	if _, err := p.runner.RunNow(ctx, application.JobTypeRebuild); err != nil {
		t.Fatalf("run rebuild: %v", err)
	}

	feed.Add(feedEvent("C", 2, 3, 1))
	job, err := p.runner.RunNow(ctx, application.JobTypeAppend)
	if err != nil {
		t.Fatalf("run append: %v", err)
	}
	if job.Units != 2 {
		t.Fatalf("expected one extended and one fresh unit, got %+v", job)
	}

	unitC, err := p.repo.LoadUnit(ctx, "C", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load unit C: %v", err)
	}
	assertCells(t, unitC, []string{"S", "S", "7", "6"})

	unitA, err := p.repo.LoadUnit(ctx, "A", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load unit A: %v", err)
	}
	assertCells(t, unitA, []string{"7", "6", "5", "4"})
}

func TestPipeline_RejectsUnknownMode(t *testing.T) {
	feed := &memoryFeed{}
	feed.Add(feedEvent("A", 0, 3, 1))
	p := newPipeline(t, feed)

	if _, err := p.runner.RunNow(context.Background(), "nightly"); err == nil {
		t.Fatal("expected error for unknown job mode")
	}
}
