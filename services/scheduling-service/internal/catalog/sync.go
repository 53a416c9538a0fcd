package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	TopicTenantUpserted  = "business.tenant.upserted.v1"
	TopicServiceUpserted = "business.service.upserted.v1"
	TopicStaffUpserted   = "business.staff.upserted.v1"
)

// Topics lists everything the catalog sync subscribes to.
func Topics() []string {
	return []string{TopicTenantUpserted, TopicServiceUpserted, TopicStaffUpserted}
}

// Writer is the part of the store the sync writes to.
type Writer interface {
	UpsertTenant(ctx context.Context, t model.Tenant) error
	UpsertService(ctx context.Context, s model.Service) error
	UpsertStaff(ctx context.Context, s model.Staff) error
}

// Sync keeps the local tenant, service and staff tables in step with the
// business service's events.
type Sync struct {
	store  Writer
	logger *slog.Logger
}

func NewSync(store Writer, logger *slog.Logger) *Sync {
	return &Sync{store: store, logger: logger}
}

// Event payloads published by the business service. IsActive defaults to
// true when omitted.

type TenantUpsert struct {
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
}

type ServiceUpsert struct {
	BusinessID      string          `json:"business_id"`
	ServiceID       string          `json:"service_id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	IsActive        *bool           `json:"is_active"`
}

type StaffUpsert struct {
	BusinessID string `json:"business_id"`
	StaffID    string `json:"staff_id"`
	Name       string `json:"name"`
	IsActive   *bool  `json:"is_active"`
}

// Handle applies one message. Malformed payloads are logged and dropped so
// they do not block the partition; storage errors are returned.
func (s *Sync) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case TopicTenantUpserted:
		var p TenantUpsert
		if !s.decode(msg, &p) {
			return nil
		}
		if strings.TrimSpace(p.BusinessID) == "" {
			s.logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}
		return s.store.UpsertTenant(ctx, model.Tenant{ID: p.BusinessID, Name: p.Name})

	case TopicServiceUpserted:
		var p ServiceUpsert
		if !s.decode(msg, &p) {
			return nil
		}
		if p.BusinessID == "" || p.ServiceID == "" || p.DurationMinutes <= 0 || p.Price.IsNegative() {
			s.logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}
		return s.store.UpsertService(ctx, model.Service{
			ID:              p.ServiceID,
			TenantID:        p.BusinessID,
			Name:            p.Name,
			DurationMinutes: p.DurationMinutes,
			Price:           p.Price,
			IsActive:        active(p.IsActive),
		})

	case TopicStaffUpserted:
		var p StaffUpsert
		if !s.decode(msg, &p) {
			return nil
		}
		if p.BusinessID == "" || p.StaffID == "" {
			s.logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}
		return s.store.UpsertStaff(ctx, model.Staff{
			ID:       p.StaffID,
			TenantID: p.BusinessID,
			Name:     p.Name,
			IsActive: active(p.IsActive),
		})
	}
	return fmt.Errorf("unexpected topic %q", msg.Topic)
}

func (s *Sync) decode(msg kafka.Message, v any) bool {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		s.logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
		return false
	}
	return true
}

func active(v *bool) bool {
	return v == nil || *v
}
