package translog

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubSource struct {
	events []TransactionEvent
	err    error
}

func (s stubSource) Load(ctx context.Context) ([]TransactionEvent, error) {
	return s.events, s.err
}

func TestMergedSourceDedupesAndOrders(t *testing.T) {
	at := func(h int) time.Time {
		return time.Date(2026, time.March, 1, h, 0, 0, 0, time.UTC)
	}
	shared := TransactionEvent{UnitID: "UNIT-A", At: at(10), Code: 3, Weeks: 1}
	csv := stubSource{events: []TransactionEvent{
		{UnitID: "UNIT-B", At: at(12), Code: 4, Weeks: 4},
		shared,
	}}
	ingested := stubSource{events: []TransactionEvent{
		shared,
		{UnitID: "UNIT-A", At: at(8), Code: 5},
	}}

	merged, err := NewMergedSource(csv, nil, ingested).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(merged) != 3 {
		t.Fatalf("expected 3 events, got %d", len(merged))
	}
	if merged[0].At != at(8) || merged[1].At != at(10) || merged[2].At != at(12) {
		t.Fatalf("events out of order: %+v", merged)
	}
}

func TestMergedSourcePropagatesErrors(t *testing.T) {
	boom := errors.New("feed unavailable")
	_, err := NewMergedSource(stubSource{err: boom}).Load(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}
