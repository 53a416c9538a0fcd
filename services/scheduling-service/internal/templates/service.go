package templates

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
)

// Invalidator drops cached availability for a tenant after a template write.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

// Service is the Availability Template Store: validated CRUD over the
// storage port with cache invalidation on every write.
type Service struct {
	store  storage.Store
	cache  Invalidator
	clock  clock.Clock
	logger *slog.Logger
}

// New builds the service; cache may be nil when no cache is configured.
func New(store storage.Store, cache Invalidator, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Service{store: store, cache: cache, clock: clk, logger: logger}
}

func (s *Service) List(ctx context.Context, tenantID string) ([]model.AvailabilityTemplate, error) {
	tpls, err := s.store.ListTemplates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tpls == nil {
		tpls = []model.AvailabilityTemplate{}
	}
	return tpls, nil
}

func (s *Service) Create(ctx context.Context, tpl model.AvailabilityTemplate) (model.AvailabilityTemplate, error) {
	if err := tpl.Validate(); err != nil {
		return model.AvailabilityTemplate{}, err
	}
	now := s.clock.Now().UTC()
	tpl.ID = uuid.NewString()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	if err := s.store.CreateTemplate(ctx, tpl); err != nil {
		return model.AvailabilityTemplate{}, err
	}
	s.invalidate(ctx, tpl.TenantID)
	return tpl, nil
}

func (s *Service) Update(ctx context.Context, tpl model.AvailabilityTemplate) (model.AvailabilityTemplate, error) {
	if err := tpl.Validate(); err != nil {
		return model.AvailabilityTemplate{}, err
	}
	cur, err := s.store.GetTemplate(ctx, tpl.TenantID, tpl.ID)
	if err != nil {
		return model.AvailabilityTemplate{}, err
	}
	tpl.CreatedAt = cur.CreatedAt
	tpl.UpdatedAt = s.clock.Now().UTC()
	if err := s.store.UpdateTemplate(ctx, tpl); err != nil {
		return model.AvailabilityTemplate{}, err
	}
	s.invalidate(ctx, tpl.TenantID)
	return tpl, nil
}

func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.store.DeleteTemplate(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("template cache invalidation failed", "err", err, "tenant_id", tenantID)
	}
}
