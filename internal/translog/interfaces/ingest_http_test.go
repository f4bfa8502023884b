package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paygo-cloud/internal/translog/infrastructure/memory"

	translog "paygo-cloud/internal/translog/domain"
)

func newTestIngest(t *testing.T) (*IngestHandler, *memory.EventRepository) {
	t.Helper()
	repo := memory.NewEventRepository()
	handler, err := NewIngestHandler(repo, translog.DefaultMappingTable(), nil, nil)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	return handler, repo
}

func TestIngestBatch(t *testing.T) {
	handler, repo := newTestIngest(t)

	body := `{"transactions": [
		{"unitId": "UNIT-001", "ts": 1764583200, "code": 3},
		{"unitId": "UNIT-001", "ts": 1764583200, "code": 3},
		{"unitId": "UNIT-002.0", "ts": 1764586800000, "code": 4}
	]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/translog/transactions", strings.NewReader(body))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["received"] != 3 {
		t.Fatalf("expected 3 received, got %d", resp["received"])
	}
	if resp["inserted"] != 2 {
		t.Fatalf("expected 2 inserted, got %d", resp["inserted"])
	}

	events, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 stored events, got %d", len(events))
	}
	if events[0].UnitID != "UNIT-001" || events[0].Weeks != 1 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].UnitID != "UNIT-002" {
		t.Fatalf("expected spreadsheet suffix stripped, got %q", events[1].UnitID)
	}
	if events[1].Weeks != 4 {
		t.Fatalf("expected code 4 resolved to 4 weeks, got %v", events[1].Weeks)
	}
	wantAt := time.Date(2025, time.December, 1, 11, 0, 0, 0, time.UTC)
	if !events[1].At.Equal(wantAt) {
		t.Fatalf("expected millisecond ts parsed to %s, got %s", wantAt, events[1].At)
	}
}

func TestIngestSingleTransaction(t *testing.T) {
	handler, repo := newTestIngest(t)

	body := `{"unitId": "UNIT-007", "ts": 1764583200, "code": 5}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/translog/transactions", strings.NewReader(body))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	events, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(events))
	}
	if events[0].Code != 5 || events[0].Weeks != 0 {
		t.Fatalf("expected unlock with zero weeks, got %+v", events[0])
	}
}

func TestIngestExplicitWeeksKept(t *testing.T) {
	handler, repo := newTestIngest(t)

	body := `{"transactions": [{"unitId": "UNIT-003", "ts": 1764583200, "code": 3, "weeks": 2.5}]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/translog/transactions", strings.NewReader(body))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	events, _ := repo.Load(context.Background())
	if len(events) != 1 || events[0].Weeks != 2.5 {
		t.Fatalf("expected explicit weeks kept, got %+v", events)
	}
}

func TestIngestRejectsBadRequests(t *testing.T) {
	handler, _ := newTestIngest(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translog/transactions", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/translog/transactions", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/translog/transactions", strings.NewReader(`{"transactions": []}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/translog/transactions", strings.NewReader(`{"transactions": [{"unitId": "", "ts": 1764583200, "code": 3}]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing unit, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/translog/transactions", strings.NewReader(`{"transactions": [{"unitId": "UNIT-001", "ts": -5, "code": 3}]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad ts, got %d", rec.Code)
	}
}
