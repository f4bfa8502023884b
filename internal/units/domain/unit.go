package units

import (
	"context"
	"time"
)

// Unit is one metered unit known to the registry. Units are registered when
// the transaction feed first mentions them; an install day override recorded
// here replaces the feed-derived install day during table builds.
type Unit struct {
	ID         string
	InstallDay time.Time // zero when no override is recorded
	Note       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks unit invariants.
func (u Unit) Validate() error {
	if u.ID == "" {
		return ErrEmptyUnitID
	}
	return nil
}

// HasInstallOverride reports whether an install day override is recorded.
func (u Unit) HasInstallOverride() bool {
	return !u.InstallDay.IsZero()
}

// Repository manages unit persistence.
type Repository interface {
	Get(ctx context.Context, id string) (*Unit, error)
	List(ctx context.Context) ([]Unit, error)
	Save(ctx context.Context, unit *Unit) error
	// Register inserts units that are not yet known, leaving existing rows
	// untouched, and returns the number of newly added units.
	Register(ctx context.Context, ids []string) (int, error)
	// InstallOverrides returns the install day for every unit that carries
	// an override.
	InstallOverrides(ctx context.Context) (map[string]time.Time, error)
}
