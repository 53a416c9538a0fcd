package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

type templateRequest struct {
	ID                  string `json:"id"`
	Weekday             *int   `json:"weekday"`
	OpenTime            string `json:"open_time"`
	CloseTime           string `json:"close_time"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	Active              *bool  `json:"active"`
}

func (t templateRequest) toTemplate(tenantID string) (model.AvailabilityTemplate, error) {
	if t.Weekday == nil {
		return model.AvailabilityTemplate{}, errInvalid("weekday is required")
	}
	open, err := model.ParseClock(t.OpenTime)
	if err != nil {
		return model.AvailabilityTemplate{}, err
	}
	closeAt, err := model.ParseClock(t.CloseTime)
	if err != nil {
		return model.AvailabilityTemplate{}, err
	}
	active := true
	if t.Active != nil {
		active = *t.Active
	}
	tpl := model.AvailabilityTemplate{
		ID:                  strings.TrimSpace(t.ID),
		TenantID:            tenantID,
		Weekday:             time.Weekday(*t.Weekday),
		OpenTime:            open,
		CloseTime:           closeAt,
		SlotDurationMinutes: t.SlotDurationMinutes,
		Active:              active,
	}
	return tpl, tpl.Validate()
}

// Templates lists (GET) or creates (POST) availability templates.
func (h *Handler) Templates(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}
	switch r.Method {
	case http.MethodGet:
		tpls, err := h.templates.List(r.Context(), tenantID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": tpls})
	case http.MethodPost:
		var req templateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		tpl, err := req.toTemplate(tenantID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		created, err := h.templates.Create(r.Context(), tpl)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}
	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "id is required")
		return
	}
	tpl, err := req.toTemplate(tenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.templates.Update(r.Context(), tpl)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.templates.Delete(r.Context(), tenantID, strings.TrimSpace(req.ID)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
