package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"paygo-cloud/internal/audit"
	"paygo-cloud/internal/auth"
	"paygo-cloud/internal/units/application"
	units "paygo-cloud/internal/units/domain"
)

const dayLayout = "2006-01-02"

// Handler serves the unit registry endpoints.
type Handler struct {
	service     *application.Service
	auditLogger audit.Logger
}

// NewHandler constructs a Handler. The audit logger may be nil.
func NewHandler(service *application.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("units handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes unit registry requests under /api/v1/units.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/units" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	}
	if !strings.HasPrefix(path, "/api/v1/units/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.TrimPrefix(path, "/api/v1/units/"), "/")
	if len(parts) == 2 && parts[0] != "" && parts[1] == "install-date" {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleInstallDay(w, r, parts[0])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

type unitResponse struct {
	UnitID     string    `json:"unitId"`
	InstallDay string    `json:"installDay,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		http.Error(w, "query units error", http.StatusInternalServerError)
		return
	}
	resp := make([]unitResponse, 0, len(list))
	for _, unit := range list {
		resp = append(resp, buildUnitResponse(unit))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleInstallDay(w http.ResponseWriter, r *http.Request, unitID string) {
	var req struct {
		InstallDay string `json:"installDay"`
		Note       string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.InstallDay == "" {
		http.Error(w, "installDay is required", http.StatusBadRequest)
		return
	}
	day, err := time.Parse(dayLayout, req.InstallDay)
	if err != nil {
		http.Error(w, "installDay must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	unit, err := h.service.SetInstallDay(r.Context(), unitID, day.UTC(), req.Note)
	if err != nil {
		respondUnitError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(buildUnitResponse(*unit))
	h.logAudit(r, "units.install_day.set", unit.ID, map[string]any{
		"installDay": req.InstallDay,
	})
}

func (h *Handler) logAudit(r *http.Request, action, unitID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "unit",
		ResourceID:   unitID,
		UnitID:       unitID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func buildUnitResponse(unit units.Unit) unitResponse {
	resp := unitResponse{
		UnitID:    unit.ID,
		Note:      unit.Note,
		CreatedAt: unit.CreatedAt,
		UpdatedAt: unit.UpdatedAt,
	}
	if unit.HasInstallOverride() {
		resp.InstallDay = unit.InstallDay.Format(dayLayout)
	}
	return resp
}

func respondUnitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, units.ErrEmptyUnitID), errors.Is(err, units.ErrInvalidInstallDay):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "save unit error", http.StatusInternalServerError)
	}
}
