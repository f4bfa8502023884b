package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paygo-cloud/internal/audit"
	"paygo-cloud/internal/auth"
	"paygo-cloud/internal/history/application"
	history "paygo-cloud/internal/history/domain"
	"paygo-cloud/internal/observability/metrics"
)

const defaultJobListLimit = 20

// Handler serves the unit history table APIs.
type Handler struct {
	repo        history.Repository
	runner      *application.Runner
	jobs        application.JobStore
	auditLogger audit.Logger
}

// NewHandler constructs a Handler. The audit logger may be nil.
func NewHandler(repo history.Repository, runner *application.Runner, jobs application.JobStore, auditLogger audit.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("history handler: nil repository")
	}
	if runner == nil {
		return nil, errors.New("history handler: nil runner")
	}
	if jobs == nil {
		return nil, errors.New("history handler: nil job store")
	}
	return &Handler{repo: repo, runner: runner, jobs: jobs, auditLogger: auditLogger}, nil
}

// ServeHTTP routes history endpoints under /api/v1/history.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/history/table" && r.Method == http.MethodGet:
		h.handleTable(w, r)
	case path == "/api/v1/history/rebuild" && r.Method == http.MethodPost:
		h.handleRebuild(w, r)
	case path == "/api/v1/history/jobs" && r.Method == http.MethodGet:
		h.handleJobs(w, r)
	case strings.HasPrefix(path, "/api/v1/history/jobs/") && r.Method == http.MethodGet:
		h.handleJobByID(w, r, strings.TrimPrefix(path, "/api/v1/history/jobs/"))
	case strings.HasPrefix(path, "/api/v1/history/units/") && r.Method == http.MethodGet:
		h.handleUnit(w, r, strings.TrimPrefix(path, "/api/v1/history/units/"))
	case path == "/api/v1/history/export.csv" && r.Method == http.MethodGet:
		h.handleExport(w, r, "csv")
	case path == "/api/v1/history/export.xlsx" && r.Method == http.MethodGet:
		h.handleExport(w, r, "xlsx")
	case path == "/api/v1/history/export.pdf" && r.Method == http.MethodGet:
		h.handleExport(w, r, "pdf")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type unitColumn struct {
	UnitID   string              `json:"unitId"`
	Cells    []string            `json:"cells"`
	Statuses []history.DayStatus `json:"statuses"`
}

type tableResponse struct {
	Start string       `json:"start"`
	End   string       `json:"end"`
	Days  []string     `json:"days"`
	Units []unitColumn `json:"units"`
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveHistoryQuery(result, time.Since(start))
	}()

	from, to, err := parseDayRange(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table, err := h.loadTable(r, from, to)
	if err != nil {
		result = metrics.ResultError
		respondHistoryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(buildTableResponse(table))
}

func (h *Handler) handleUnit(w http.ResponseWriter, r *http.Request, unitID string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveHistoryQuery(result, time.Since(start))
	}()

	if unitID == "" || strings.Contains(unitID, "/") {
		result = metrics.ResultError
		w.WriteHeader(http.StatusNotFound)
		return
	}
	from, to, err := parseDayRange(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	column, err := h.repo.LoadUnit(r.Context(), unitID, from, to)
	if err != nil {
		result = metrics.ResultError
		respondHistoryError(w, err)
		return
	}

	resp := struct {
		UnitID   string              `json:"unitId"`
		Start    string              `json:"start"`
		End      string              `json:"end"`
		Days     []string            `json:"days"`
		Cells    []string            `json:"cells"`
		Statuses []history.DayStatus `json:"statuses"`
	}{
		UnitID:   column.UnitID(),
		Start:    column.Axis().Start().Format(dayLayout),
		End:      column.Axis().End().Format(dayLayout),
		Days:     formatDays(column.Axis()),
		Cells:    renderCells(column),
		Statuses: column.Statuses(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveHistoryExport(format, result, time.Since(start))
	}()

	from, to, err := parseDayRange(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table, err := h.loadTable(r, from, to)
	if err != nil {
		result = metrics.ResultError
		respondHistoryError(w, err)
		return
	}

	var data []byte
	var contentType string
	switch format {
	case "csv":
		data, err = BuildTableCSV(table)
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		data, err = BuildTableXLSX(table)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = BuildTableSummaryPDF(table)
		contentType = "application/pdf"
	}
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, "history.export", "history_table", "", map[string]any{
		"format": format,
		"units":  table.Len(),
		"start":  table.Axis().Start().Format(dayLayout),
		"end":    table.Axis().End().Format(dayLayout),
	})
}

func (h *Handler) handleRebuild(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		var req struct {
			Mode string `json:"mode"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mode = req.Mode
	}
	if mode == "" {
		mode = application.JobTypeRebuild
	}

	job, err := h.runner.RunNow(r.Context(), mode)
	if errors.Is(err, application.ErrJobRunning) {
		http.Error(w, "build already running", http.StatusConflict)
		return
	}
	if err != nil && job == nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(job)
	h.logAudit(r, "history.rebuild", "history_job", job.ID, map[string]any{
		"mode":   mode,
		"status": job.Status,
	})
}

func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	list, err := h.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		http.Error(w, "query jobs error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleJobByID(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, application.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "query job error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(job)
}

func (h *Handler) loadTable(r *http.Request, from, to time.Time) (*history.HistoryTable, error) {
	table, err := h.repo.LoadTable(r.Context(), from, to)
	if err != nil {
		return nil, err
	}
	if raw := r.URL.Query().Get("units"); raw != "" {
		ids := splitUnitIDs(raw)
		table, err = table.Slice(time.Time{}, time.Time{}, ids)
		if err != nil {
			return nil, err
		}
	}
	return table, nil
}

func (h *Handler) logAudit(r *http.Request, action, resourceType, resourceID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func buildTableResponse(table *history.HistoryTable) tableResponse {
	resp := tableResponse{
		Start: table.Axis().Start().Format(dayLayout),
		End:   table.Axis().End().Format(dayLayout),
		Days:  formatDays(table.Axis()),
		Units: make([]unitColumn, 0, table.Len()),
	}
	for _, unitID := range table.Units() {
		column, ok := table.Unit(unitID)
		if !ok {
			continue
		}
		resp.Units = append(resp.Units, unitColumn{
			UnitID:   unitID,
			Cells:    renderCells(column),
			Statuses: column.Statuses(),
		})
	}
	return resp
}

func formatDays(axis history.DayAxis) []string {
	days := axis.Days()
	out := make([]string, len(days))
	for i, day := range days {
		out[i] = day.Format(dayLayout)
	}
	return out
}

func renderCells(column *history.UnitHistory) []string {
	cells := make([]string, column.Len())
	for i := range cells {
		cells[i] = column.At(i).Cell()
	}
	return cells
}

func splitUnitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
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

func respondHistoryError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, history.ErrHistoryNotFound):
		http.Error(w, "no stored history", http.StatusNotFound)
	case errors.Is(err, history.ErrInvalidAxis), errors.Is(err, history.ErrEmptyUnitID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "query history error", http.StatusInternalServerError)
	}
}
