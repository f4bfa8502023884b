package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	units "paygo-cloud/internal/units/domain"
)

// Repository is an in-memory unit registry for tests and DB-less runs.
type Repository struct {
	mu    sync.RWMutex
	units map[string]units.Unit
}

// NewRepository creates an empty registry.
func NewRepository() *Repository {
	return &Repository{units: make(map[string]units.Unit)}
}

// Get returns one unit by id.
func (r *Repository) Get(ctx context.Context, id string) (*units.Unit, error) {
	if id == "" {
		return nil, units.ErrEmptyUnitID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	unit, ok := r.units[id]
	if !ok {
		return nil, units.ErrUnitNotFound
	}
	return &unit, nil
}

// List returns every registered unit ordered by id.
func (r *Repository) List(ctx context.Context) ([]units.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]units.Unit, 0, len(r.units))
	for _, unit := range r.units {
		list = append(list, unit)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Save upserts a unit.
func (r *Repository) Save(ctx context.Context, unit *units.Unit) error {
	if unit == nil {
		return units.ErrEmptyUnitID
	}
	if err := unit.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored := *unit
	if existing, ok := r.units[unit.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.units[unit.ID] = stored
	*unit = stored
	return nil
}

// Register adds units that are not yet known and leaves existing rows alone.
func (r *Repository) Register(ctx context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	added := 0
	for _, id := range ids {
		if id == "" {
			return added, units.ErrEmptyUnitID
		}
		if _, ok := r.units[id]; ok {
			continue
		}
		r.units[id] = units.Unit{ID: id, CreatedAt: now, UpdatedAt: now}
		added++
	}
	return added, nil
}

// InstallOverrides returns install days for units that carry one.
func (r *Repository) InstallOverrides(ctx context.Context) (map[string]time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	overrides := make(map[string]time.Time)
	for id, unit := range r.units {
		if unit.HasInstallOverride() {
			overrides[id] = unit.InstallDay
		}
	}
	return overrides, nil
}
