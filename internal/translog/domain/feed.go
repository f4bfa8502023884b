package translog

import (
	"context"
	"fmt"
	"sort"
)

// MergedSource combines several feed sources into one deduplicated feed.
// The rebuild uses it when transactions arrive both as CSV drops and over
// the ingest API.
type MergedSource struct {
	sources []FeedSource
}

// NewMergedSource builds a merged source. Nil sources are skipped.
func NewMergedSource(sources ...FeedSource) *MergedSource {
	kept := make([]FeedSource, 0, len(sources))
	for _, src := range sources {
		if src != nil {
			kept = append(kept, src)
		}
	}
	return &MergedSource{sources: kept}
}

// Load concatenates every source, drops duplicate transactions and returns
// the result ordered by timestamp.
func (m *MergedSource) Load(ctx context.Context) ([]TransactionEvent, error) {
	seen := make(map[string]struct{})
	var merged []TransactionEvent
	for i, src := range m.sources {
		events, err := src.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("feed source %d: %w", i, err)
		}
		for _, ev := range events {
			key := ev.DedupeKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, ev)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].At.Equal(merged[j].At) {
			return merged[i].UnitID < merged[j].UnitID
		}
		return merged[i].At.Before(merged[j].At)
	})
	return merged, nil
}
