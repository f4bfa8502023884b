package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	history "paygo-cloud/internal/history/domain"
	translog "paygo-cloud/internal/translog/domain"
	units "paygo-cloud/internal/units/domain"
)

// Service manages the unit registry. It implements the install override
// source the table builds resolve before simulating.
type Service struct {
	repo   units.Repository
	logger *log.Logger
}

// NewService constructs a registry service.
func NewService(repo units.Repository, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("units service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, logger: logger}, nil
}

// List returns every registered unit ordered by id.
func (s *Service) List(ctx context.Context) ([]units.Unit, error) {
	return s.repo.List(ctx)
}

// Get returns one unit by its normalized id.
func (s *Service) Get(ctx context.Context, id string) (*units.Unit, error) {
	id = translog.NormalizeUnitID(id)
	if id == "" {
		return nil, units.ErrEmptyUnitID
	}
	return s.repo.Get(ctx, id)
}

// SetInstallDay records an install day override for a unit, registering the
// unit first if the feed has not mentioned it yet. The day is truncated to
// its UTC day start so override keys line up with the table axis.
func (s *Service) SetInstallDay(ctx context.Context, id string, day time.Time, note string) (*units.Unit, error) {
	id = translog.NormalizeUnitID(id)
	if id == "" {
		return nil, units.ErrEmptyUnitID
	}
	if day.IsZero() {
		return nil, units.ErrInvalidInstallDay
	}
	day = history.DayStart(day)

	unit, err := s.repo.Get(ctx, id)
	if errors.Is(err, units.ErrUnitNotFound) {
		unit = &units.Unit{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("load unit %s: %w", id, err)
	}

	unit.InstallDay = day
	if note != "" {
		unit.Note = note
	}
	if err := s.repo.Save(ctx, unit); err != nil {
		return nil, fmt.Errorf("save unit %s: %w", id, err)
	}
	s.logger.Printf("unit registry: install day for %s set to %s", id, day.Format("2006-01-02"))
	return unit, nil
}

// RegisterSeen adds units mentioned by the feed that are not yet registered.
// Existing rows, including their install overrides, are left untouched.
func (s *Service) RegisterSeen(ctx context.Context, ids []string) (int, error) {
	normalized := make([]string, 0, len(ids))
	for _, raw := range ids {
		if id := translog.NormalizeUnitID(raw); id != "" {
			normalized = append(normalized, id)
		}
	}
	if len(normalized) == 0 {
		return 0, nil
	}

	added, err := s.repo.Register(ctx, normalized)
	if err != nil {
		return added, fmt.Errorf("register units: %w", err)
	}
	if added > 0 {
		s.logger.Printf("unit registry: %d new units registered", added)
	}
	return added, nil
}

// InstallOverrides returns the recorded install day overrides keyed by unit
// id. Table builds call this before simulating.
func (s *Service) InstallOverrides(ctx context.Context) (map[string]time.Time, error) {
	return s.repo.InstallOverrides(ctx)
}
