package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
)

type bookRequest struct {
	TenantID        string `json:"tenant_id"`
	ServiceID       string `json:"service_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	StaffID         string `json:"staff_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

func (b bookRequest) toRequest(tenantID string, src model.Source) (booking.Request, error) {
	date, err := model.ParseDate(b.Date)
	if err != nil {
		return booking.Request{}, err
	}
	start, err := model.ParseClock(b.StartTime)
	if err != nil {
		return booking.Request{}, err
	}
	return booking.Request{
		TenantID:  tenantID,
		ServiceID: b.ServiceID,
		Date:      date,
		StartTime: start,
		Customer: model.Customer{
			Name:  b.CustomerName,
			Email: b.CustomerEmail,
			Phone: b.CustomerPhone,
		},
		StaffID:          b.StaffID,
		PaymentReference: b.PaymentIntentID,
		Source:           src,
	}, nil
}

func (h *Handler) PublicBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.book(w, r, req, strings.TrimSpace(req.TenantID), model.SourcePublic)
}

// Appointments lists (GET) or books on behalf of the business (POST).
func (h *Handler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listAppointments(w, r)
	case http.MethodPost:
		tenantID := requireTenant(w, r)
		if tenantID == "" {
			return
		}
		var req bookRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		h.book(w, r, req, tenantID, model.SourceAdmin)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request, body bookRequest, tenantID string, src model.Source) {
	req, err := body.toRequest(tenantID, src)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.arbiter.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}
	q := r.URL.Query()

	// Single appointment lookup.
	if id := strings.TrimSpace(q.Get("id")); id != "" {
		appt, err := h.lifecycle.Get(r.Context(), tenantID, id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
		return
	}

	var f storage.AppointmentFilter
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		date, err := model.ParseDate(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.Date = date
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.Status = st
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErrorCode(w, http.StatusBadRequest, "invalid_input", "invalid limit")
			return
		}
		f.Limit = n
	}

	appts, err := h.lifecycle.List(r.Context(), tenantID, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": appts})
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}
	var req struct {
		AppointmentID string `json:"appointment_id"`
		Status        string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	to, err := model.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appt, err := h.lifecycle.Transition(r.Context(), tenantID, req.AppointmentID, to, actorFromHeader(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}
	actor := actorFromHeader(r)
	if actor == "" {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "missing "+HeaderUserID)
		return
	}
	var req struct {
		AppointmentID string `json:"appointment_id"`
		ToStaffID     string `json:"to_staff_id"`
		Reason        string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	appt, tr, err := h.lifecycle.TransferStaff(r.Context(), lifecycle.TransferRequest{
		TenantID:      tenantID,
		AppointmentID: req.AppointmentID,
		ToStaffID:     req.ToStaffID,
		TransferredBy: actor,
		Reason:        req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointment": appt,
		"transfer":    tr,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}
	var req struct {
		AppointmentID string `json:"appointment_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.lifecycle.Delete(r.Context(), tenantID, req.AppointmentID, actorFromHeader(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Transfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}
	q := r.URL.Query()
	trs, err := h.lifecycle.ListTransfers(r.Context(), tenantID, storage.TransferFilter{
		AppointmentID: q.Get("appointment_id"),
		StaffID:       q.Get("staff_id"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": trs})
}
