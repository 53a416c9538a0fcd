package handlers

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

type slotsResponse struct {
	TenantID string            `json:"tenant_id"`
	Date     model.Date        `json:"date"`
	Slots    []model.ClockTime `json:"slots"`
}

// PublicSlots answers unknown tenants with an empty list.
func (h *Handler) PublicSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "tenant_id is required")
		return
	}
	date, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slots, err := h.engine.PublicSlots(r.Context(), tenantID, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{TenantID: tenantID, Date: date, Slots: slots})
}

func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}
	date, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slots, err := h.engine.Slots(r.Context(), tenantID, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{TenantID: tenantID, Date: date, Slots: slots})
}
