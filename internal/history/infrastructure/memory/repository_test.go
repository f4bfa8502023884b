package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"paygo-cloud/internal/history/application"
	history "paygo-cloud/internal/history/domain"
)

var base = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time { return base.AddDate(0, 0, offset) }

func mustAxis(t *testing.T, from, to int) history.DayAxis {
	t.Helper()
	axis, err := history.NewDayAxis(day(from), day(to))
	if err != nil {
		t.Fatalf("new axis: %v", err)
	}
	return axis
}

func column(t *testing.T, unitID string, axis history.DayAxis) *history.UnitHistory {
	t.Helper()
	statuses := make([]history.DayStatus, axis.Len())
	for i := range statuses {
		statuses[i] = history.InCredit(float64(axis.Len() - i))
	}
	h, err := history.NewUnitHistory(unitID, axis, statuses)
	if err != nil {
		t.Fatalf("new unit history: %v", err)
	}
	return h
}

func snapshot(unitID string, last int) history.Snapshot {
	return history.Snapshot{
		UnitID:     unitID,
		LastDay:    day(last),
		InstallDay: day(0),
		State:      history.SimState{CreditDays: 1},
	}
}

func savedTable(t *testing.T, repo *Repository, axis history.DayAxis, unitIDs ...string) {
	t.Helper()
	table, err := history.NewHistoryTable(axis)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	snaps := make([]history.Snapshot, 0, len(unitIDs))
	for _, id := range unitIDs {
		if err := table.Add(column(t, id, axis)); err != nil {
			t.Fatalf("add column: %v", err)
		}
		snaps = append(snaps, snapshot(id, 2))
	}
	if err := repo.SaveTable(context.Background(), table, snaps); err != nil {
		t.Fatalf("save table: %v", err)
	}
}

func TestRepositorySaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	axis := mustAxis(t, 0, 2)
	savedTable(t, repo, axis, "B", "A")

	table, err := repo.LoadTable(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	if got := table.Units(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("expected units [A B], got %v", got)
	}

	start, end, err := repo.Bounds(ctx)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if !start.Equal(day(0)) || !end.Equal(day(2)) {
		t.Fatalf("expected bounds %s..%s, got %s..%s", day(0), day(2), start, end)
	}

	snaps, err := repo.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snaps) != 2 || snaps[0].UnitID != "A" || snaps[1].UnitID != "B" {
		t.Fatalf("expected snapshots sorted [A B], got %+v", snaps)
	}
}

func TestRepositoryAppendExtendsBounds(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	savedTable(t, repo, mustAxis(t, 0, 1), "A")

	tail := column(t, "A", mustAxis(t, 2, 3))
	fresh := column(t, "B", mustAxis(t, 0, 3))
	err := repo.AppendHistories(ctx, []*history.UnitHistory{tail, fresh}, []history.Snapshot{
		snapshot("A", 3), snapshot("B", 3),
	})
	if err != nil {
		t.Fatalf("append histories: %v", err)
	}

	_, end, err := repo.Bounds(ctx)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if !end.Equal(day(3)) {
		t.Fatalf("expected end %s, got %s", day(3), end)
	}

	unitA, err := repo.LoadUnit(ctx, "A", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load unit A: %v", err)
	}
	if unitA.Len() != 4 {
		t.Fatalf("expected 4 days for A, got %d", unitA.Len())
	}

	table, err := repo.LoadTable(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 units, got %d", table.Len())
	}
}

func TestRepositoryAppendOnEmptyStore(t *testing.T) {
	repo := NewRepository()
	tail := column(t, "A", mustAxis(t, 0, 1))
	err := repo.AppendHistories(context.Background(), []*history.UnitHistory{tail}, nil)
	if !errors.Is(err, history.ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound, got %v", err)
	}
}

func TestRepositoryAppendRejectsDetachedColumn(t *testing.T) {
	repo := NewRepository()
	savedTable(t, repo, mustAxis(t, 0, 1), "A")

	// A new unit's column must start at the table start.
	detached := column(t, "B", mustAxis(t, 1, 3))
	err := repo.AppendHistories(context.Background(), []*history.UnitHistory{detached}, nil)
	if !errors.Is(err, history.ErrAxisMismatch) {
		t.Fatalf("expected ErrAxisMismatch, got %v", err)
	}
}

func TestRepositoryLoadTableSkipsShortColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	savedTable(t, repo, mustAxis(t, 0, 1), "A", "B")

	// Only A grows; B stays behind and cannot cover the widened range.
	tail := column(t, "A", mustAxis(t, 2, 3))
	if err := repo.AppendHistories(ctx, []*history.UnitHistory{tail}, []history.Snapshot{snapshot("A", 3)}); err != nil {
		t.Fatalf("append histories: %v", err)
	}

	full, err := repo.LoadTable(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load full table: %v", err)
	}
	if full.Len() != 1 {
		t.Fatalf("expected only unit A over the full range, got %d units", full.Len())
	}
	if _, ok := full.Unit("A"); !ok {
		t.Fatal("unit A missing from full range")
	}

	old, err := repo.LoadTable(ctx, day(0), day(1))
	if err != nil {
		t.Fatalf("load old range: %v", err)
	}
	if old.Len() != 2 {
		t.Fatalf("expected both units over the old range, got %d", old.Len())
	}
}

func TestRepositoryLoadUnitUnknown(t *testing.T) {
	repo := NewRepository()
	savedTable(t, repo, mustAxis(t, 0, 1), "A")

	if _, err := repo.LoadUnit(context.Background(), "Z", time.Time{}, time.Time{}); !errors.Is(err, history.ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound, got %v", err)
	}
}

func TestJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore()

	first := &application.Job{ID: "job-1", Type: application.JobTypeRebuild, Status: application.JobStatusCreated, CreatedAt: base}
	second := &application.Job{ID: "job-2", Type: application.JobTypeAppend, Status: application.JobStatusCreated, CreatedAt: base.Add(time.Hour)}
	if err := store.CreateJob(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := store.CreateJob(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if err := store.CreateJob(ctx, first); err == nil {
		t.Fatal("expected duplicate id error")
	}

	first.Status = application.JobStatusSucceeded
	if err := store.UpdateJob(ctx, first); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != application.JobStatusSucceeded {
		t.Fatalf("expected succeeded, got %q", got.Status)
	}

	jobs, err := store.ListJobs(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "job-2" {
		t.Fatalf("expected newest first, got %+v", jobs)
	}
	limited, err := store.ListJobs(ctx, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "job-2" {
		t.Fatalf("expected only newest, got %+v", limited)
	}

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, application.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := store.UpdateJob(ctx, &application.Job{ID: "missing"}); !errors.Is(err, application.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound on update, got %v", err)
	}
}
