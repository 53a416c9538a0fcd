package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/templates"
)

// Gateway-set identity headers. Authentication happens upstream.
const (
	HeaderTenantID = "X-Tenant-Id"
	HeaderUserID   = "X-User-Id"
)

type Handler struct {
	engine    *availability.Engine
	arbiter   *booking.Arbiter
	lifecycle *lifecycle.Manager
	templates *templates.Service
	logger    *slog.Logger
}

func New(engine *availability.Engine, arbiter *booking.Arbiter, mgr *lifecycle.Manager, tpls *templates.Service, logger *slog.Logger) *Handler {
	return &Handler{
		engine:    engine,
		arbiter:   arbiter,
		lifecycle: mgr,
		templates: tpls,
		logger:    logger,
	}
}

// Register mounts every route. public wraps the unauthenticated routes
// (rate limiting); pass nil to mount them bare.
func (h *Handler) Register(mux *http.ServeMux, public func(http.Handler) http.Handler) {
	if public == nil {
		public = func(next http.Handler) http.Handler { return next }
	}
	mux.Handle("/api/v1/public/slots", public(http.HandlerFunc(h.PublicSlots)))
	mux.Handle("/api/v1/public/book", public(http.HandlerFunc(h.PublicBook)))

	mux.HandleFunc("/api/v1/slots", h.Slots)
	mux.HandleFunc("/api/v1/appointments", h.Appointments)
	mux.HandleFunc("/api/v1/appointments/status", h.Transition)
	mux.HandleFunc("/api/v1/appointments/transfer", h.Transfer)
	mux.HandleFunc("/api/v1/appointments/delete", h.Delete)
	mux.HandleFunc("/api/v1/transfers", h.Transfers)
	mux.HandleFunc("/api/v1/templates", h.Templates)
	mux.HandleFunc("/api/v1/templates/update", h.UpdateTemplate)
	mux.HandleFunc("/api/v1/templates/delete", h.DeleteTemplate)
}

func tenantIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderTenantID))
}

func actorFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}

// requireTenant writes a 400 and returns "" when the gateway did not set a tenant.
func requireTenant(w http.ResponseWriter, r *http.Request) string {
	id := tenantIDFromHeader(r)
	if id == "" {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "missing "+HeaderTenantID)
	}
	return id
}
