package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	translog "paygo-cloud/internal/translog/domain"
)

// EventRepository is an in-memory transaction event store used when no
// database is configured and in tests.
type EventRepository struct {
	mu     sync.RWMutex
	events map[string]translog.TransactionEvent
}

// NewEventRepository creates an empty store.
func NewEventRepository() *EventRepository {
	return &EventRepository{events: make(map[string]translog.TransactionEvent)}
}

// InsertEvents stores events, skipping rows already present, and returns
// the number of newly inserted rows.
func (r *EventRepository) InsertEvents(_ context.Context, events []translog.TransactionEvent) (int, error) {
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return 0, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, ev := range events {
		key := rowKey(ev)
		if _, ok := r.events[key]; ok {
			continue
		}
		r.events[key] = ev
		inserted++
	}
	return inserted, nil
}

// Load returns every stored event ordered by timestamp. It implements
// translog.FeedSource.
func (r *EventRepository) Load(_ context.Context) ([]translog.TransactionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(time.Time{}), nil
}

// LoadSince returns events strictly after the given instant.
func (r *EventRepository) LoadSince(_ context.Context, after time.Time) ([]translog.TransactionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(after), nil
}

func (r *EventRepository) sorted(after time.Time) []translog.TransactionEvent {
	out := make([]translog.TransactionEvent, 0, len(r.events))
	for _, ev := range r.events {
		if !after.IsZero() && !ev.At.After(after) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].UnitID < out[j].UnitID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// rowKey matches the Postgres uniqueness of (unit, instant, code): the
// weeks value is derived from the code and never distinguishes rows.
func rowKey(ev translog.TransactionEvent) string {
	return ev.UnitID + "|" + ev.At.UTC().Format(time.RFC3339Nano) + "|" + strconv.Itoa(ev.Code)
}
