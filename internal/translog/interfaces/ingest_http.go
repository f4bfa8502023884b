package interfaces

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"paygo-cloud/internal/eventing"
	"paygo-cloud/internal/observability/metrics"
	translogevents "paygo-cloud/internal/translog/application/events"
	translog "paygo-cloud/internal/translog/domain"
)

// IngestHandler handles transaction batches posted by the payment backends.
type IngestHandler struct {
	repo      translog.Repository
	mapping   translog.MappingTable
	publisher *eventing.Publisher
	logger    *log.Logger
}

// NewIngestHandler constructs an ingest handler. The publisher may be nil.
func NewIngestHandler(repo translog.Repository, mapping translog.MappingTable, publisher *eventing.Publisher, logger *log.Logger) (*IngestHandler, error) {
	if repo == nil {
		return nil, errors.New("translog ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{repo: repo, mapping: mapping.Normalize(), publisher: publisher, logger: logger}, nil
}

// ServeHTTP ingests transaction events.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.IngestResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.IngestResultError
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("translog ingest: read body error: %v", err)
		result = metrics.IngestResultError
		metrics.IncIngestError("read_body")
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("translog ingest: decode error: %v", err)
		result = metrics.IngestResultError
		metrics.IncIngestError("invalid_json")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	events, err := req.toEvents(h.mapping)
	if err != nil {
		h.logger.Printf("translog ingest: invalid payload: %v", err)
		result = metrics.IngestResultError
		metrics.IncIngestError("invalid_payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	inserted, err := h.repo.InsertEvents(r.Context(), events)
	if err != nil {
		h.logger.Printf("translog ingest: insert error: %v", err)
		result = metrics.IngestResultError
		metrics.IncIngestError("insert_error")
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	if h.publisher != nil && inserted > 0 {
		var latestAt time.Time
		seen := make(map[string]struct{})
		units := make([]string, 0, len(events))
		for _, event := range events {
			if event.At.After(latestAt) {
				latestAt = event.At
			}
			if _, ok := seen[event.UnitID]; ok {
				continue
			}
			seen[event.UnitID] = struct{}{}
			units = append(units, event.UnitID)
		}
		sort.Strings(units)
		received := translogevents.TransactionsReceived{
			EventID:    eventing.NewEventID(),
			Units:      units,
			Received:   len(events),
			Inserted:   inserted,
			LatestAt:   latestAt,
			OccurredAt: time.Now().UTC(),
		}
		ctx := eventing.WithEventID(r.Context(), received.EventID)
		if err := h.publisher.Publish(ctx, received); err != nil {
			h.logger.Printf("translog ingest: publish error: %v", err)
		}
	}

	resp := map[string]any{"received": len(events), "inserted": inserted}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type ingestRequest struct {
	UnitID       string              `json:"unitId"`
	TS           int64               `json:"ts"`
	Code         int                 `json:"code"`
	Weeks        float64             `json:"weeks"`
	Transactions []ingestTransaction `json:"transactions"`
}

type ingestTransaction struct {
	UnitID string  `json:"unitId"`
	TS     int64   `json:"ts"`
	Code   int     `json:"code"`
	Weeks  float64 `json:"weeks"`
}

func (r ingestRequest) toEvents(mapping translog.MappingTable) ([]translog.TransactionEvent, error) {
	items := r.Transactions
	if len(items) == 0 && r.TS != 0 {
		items = []ingestTransaction{{UnitID: r.UnitID, TS: r.TS, Code: r.Code, Weeks: r.Weeks}}
	}
	if len(items) == 0 {
		return nil, errors.New("no transactions")
	}

	events := make([]translog.TransactionEvent, 0, len(items))
	for _, item := range items {
		ts, err := parseTimestamp(item.TS)
		if err != nil {
			return nil, err
		}
		event := translog.TransactionEvent{
			UnitID: translog.NormalizeUnitID(item.UnitID),
			At:     ts,
			Code:   item.Code,
			Weeks:  item.Weeks,
		}
		// Weeks omitted by the poster are resolved from the mapping
		// table. Unlock events never carry a value.
		if event.Weeks == 0 && event.Code != mapping.UnlockCode {
			event.Weeks = mapping.Values.Weeks(event.Code)
		}
		if err := event.Validate(); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func parseTimestamp(value int64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, errors.New("invalid ts")
	}
	// Accept milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC(), nil
	}
	return time.Unix(value, 0).UTC(), nil
}
