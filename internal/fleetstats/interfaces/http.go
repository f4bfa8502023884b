package interfaces

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"paygo-cloud/internal/fleetstats/application"
	fleetstats "paygo-cloud/internal/fleetstats/domain"
	history "paygo-cloud/internal/history/domain"
	"paygo-cloud/internal/observability/metrics"
)

const dayLayout = "2006-01-02"

// SummaryHandler serves the per-day fleet status summary.
type SummaryHandler struct {
	service *application.Service
	logger  *log.Logger
}

// NewSummaryHandler constructs the handler.
func NewSummaryHandler(service *application.Service, logger *log.Logger) (*SummaryHandler, error) {
	if service == nil {
		return nil, errors.New("fleet handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SummaryHandler{service: service, logger: logger}, nil
}

// ServeHTTP answers fleet summary queries.
func (h *SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveFleetSummary(result, time.Since(start))
	}()

	from, to, err := parseDayRange(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		result = metrics.ResultError
		respondSummaryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(buildSummaryResponse(summary))
}

type summaryResponse struct {
	Start      string        `json:"start"`
	End        string        `json:"end"`
	Units      int           `json:"units"`
	ComputedAt time.Time     `json:"computedAt"`
	Days       []dayResponse `json:"days"`
}

type dayResponse struct {
	Day              string  `json:"day"`
	Stock            int     `json:"stock"`
	InCredit         int     `json:"inCredit"`
	OutOfCredit      int     `json:"outOfCredit"`
	Unlocked         int     `json:"unlocked"`
	Total            int     `json:"total"`
	OutOfCreditRatio float64 `json:"outOfCreditRatio"`
}

func buildSummaryResponse(summary *fleetstats.Summary) summaryResponse {
	resp := summaryResponse{
		Units:      summary.Units,
		ComputedAt: summary.ComputedAt,
		Days:       make([]dayResponse, 0, len(summary.Days)),
	}
	if !summary.Start.IsZero() {
		resp.Start = summary.Start.Format(dayLayout)
		resp.End = summary.End.Format(dayLayout)
	}
	for _, day := range summary.Days {
		resp.Days = append(resp.Days, dayResponse{
			Day:              day.Day.Format(dayLayout),
			Stock:            day.Stock,
			InCredit:         day.InCredit,
			OutOfCredit:      day.OutOfCredit,
			Unlocked:         day.Unlocked,
			Total:            day.Total(),
			OutOfCreditRatio: day.OutOfCreditRatio(),
		})
	}
	return resp
}

func parseDayRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseDayQuery(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDayQuery(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return from, to, nil
}

func parseDayQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dayLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be YYYY-MM-DD")
	}
	return parsed.UTC(), nil
}

func respondSummaryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, history.ErrHistoryNotFound):
		http.Error(w, "no stored history", http.StatusNotFound)
	case errors.Is(err, fleetstats.ErrInvalidRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "fleet summary error", http.StatusInternalServerError)
	}
}
