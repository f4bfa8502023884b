package memory

import (
	"context"
	"errors"
	"sync"

	fleetstats "paygo-cloud/internal/fleetstats/domain"
)

// SummaryStore holds the latest computed summary in memory.
type SummaryStore struct {
	mu      sync.RWMutex
	summary *fleetstats.Summary
}

// NewSummaryStore constructs an empty store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{}
}

// Save replaces the cached summary.
func (s *SummaryStore) Save(_ context.Context, summary *fleetstats.Summary) error {
	if summary == nil {
		return errors.New("fleet store: nil summary")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = copySummary(summary)
	return nil
}

// Load returns the cached summary.
func (s *SummaryStore) Load(_ context.Context) (*fleetstats.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return nil, fleetstats.ErrSummaryNotFound
	}
	return copySummary(s.summary), nil
}

func copySummary(in *fleetstats.Summary) *fleetstats.Summary {
	out := *in
	out.Days = append([]fleetstats.DayCount(nil), in.Days...)
	return &out
}
