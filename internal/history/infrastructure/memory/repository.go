package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	history "paygo-cloud/internal/history/domain"
)

// Repository is an in-memory history store.
type Repository struct {
	mu      sync.RWMutex
	axis    history.DayAxis
	columns map[string]*history.UnitHistory
	snaps   map[string]history.Snapshot
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{
		columns: make(map[string]*history.UnitHistory),
		snaps:   make(map[string]history.Snapshot),
	}
}

// SaveTable replaces the stored table as a whole.
func (r *Repository) SaveTable(ctx context.Context, table *history.HistoryTable, snaps []history.Snapshot) error {
	_ = ctx
	if table == nil {
		return history.ErrNilHistory
	}

	columns := make(map[string]*history.UnitHistory, table.Len())
	for _, id := range table.Units() {
		column, _ := table.Unit(id)
		columns[id] = column
	}
	stored := make(map[string]history.Snapshot, len(snaps))
	for _, snap := range snaps {
		stored[snap.UnitID] = snap
	}

	r.mu.Lock()
	r.axis = table.Axis()
	r.columns = columns
	r.snaps = stored
	r.mu.Unlock()
	return nil
}

// AppendHistories extends stored columns and inserts new ones.
func (r *Repository) AppendHistories(ctx context.Context, histories []*history.UnitHistory, snaps []history.Snapshot) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.axis.IsZero() {
		return history.ErrHistoryNotFound
	}

	end := r.axis.End()
	for _, h := range histories {
		if h == nil {
			return history.ErrNilHistory
		}
		if existing, ok := r.columns[h.UnitID()]; ok {
			merged, err := existing.Extend(h)
			if err != nil {
				return err
			}
			r.columns[h.UnitID()] = merged
			h = merged
		} else {
			if !h.Axis().Start().Equal(r.axis.Start()) {
				return history.ErrAxisMismatch
			}
			r.columns[h.UnitID()] = h
		}
		if h.Axis().End().After(end) {
			end = h.Axis().End()
		}
	}
	if end.After(r.axis.End()) {
		axis, err := history.NewDayAxis(r.axis.Start(), end)
		if err != nil {
			return err
		}
		r.axis = axis
	}
	for _, snap := range snaps {
		r.snaps[snap.UnitID] = snap
	}
	return nil
}

// LoadTable returns the stored table narrowed to [from, to]. Columns that
// do not cover the requested range are left out.
func (r *Repository) LoadTable(ctx context.Context, from, to time.Time) (*history.HistoryTable, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.axis.IsZero() {
		return nil, history.ErrHistoryNotFound
	}

	sub, err := r.axis.Clamp(from, to)
	if err != nil {
		return nil, err
	}
	table, err := history.NewHistoryTable(sub)
	if err != nil {
		return nil, err
	}
	for _, column := range r.columns {
		if column.Axis().Start().After(sub.Start()) || column.Axis().End().Before(sub.End()) {
			continue
		}
		cut, err := column.Slice(sub.Start(), sub.End())
		if err != nil {
			return nil, err
		}
		if err := table.Add(cut); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// LoadUnit returns one unit's column narrowed to [from, to].
func (r *Repository) LoadUnit(ctx context.Context, unitID string, from, to time.Time) (*history.UnitHistory, error) {
	_ = ctx
	if unitID == "" {
		return nil, history.ErrEmptyUnitID
	}
	r.mu.RLock()
	column, ok := r.columns[unitID]
	r.mu.RUnlock()
	if !ok {
		return nil, history.ErrHistoryNotFound
	}
	return column.Slice(from, to)
}

// ListSnapshots returns all fold snapshots ordered by unit id.
func (r *Repository) ListSnapshots(ctx context.Context) ([]history.Snapshot, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]history.Snapshot, 0, len(r.snaps))
	for _, snap := range r.snaps {
		out = append(out, snap)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID < out[j].UnitID })
	return out, nil
}

// Bounds returns the stored axis bounds.
func (r *Repository) Bounds(ctx context.Context) (time.Time, time.Time, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.axis.IsZero() {
		return time.Time{}, time.Time{}, history.ErrHistoryNotFound
	}
	return r.axis.Start(), r.axis.End(), nil
}
